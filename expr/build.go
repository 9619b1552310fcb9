package expr

// Builders for the node kinds the lowering pass emits most often.

// Const returns a constant node.
func Const(v any) *Constant { return &Constant{Value: v} }

// Nil returns a constant nil.
func Nil() *Constant { return &Constant{} }

// Var returns a fresh variable.
func Var(name string) *Variable { return &Variable{Name: name} }

// RefParam returns a fresh by-reference parameter.
func RefParam(name string) *Variable { return &Variable{Name: name, ByRef: true} }

// Seq returns a block without declarations.
func Seq(exprs ...Node) *Block { return &Block{Exprs: exprs} }

// Scope returns a block declaring vars.
func Scope(vars []*Variable, exprs ...Node) *Block { return &Block{Vars: vars, Exprs: exprs} }

// Set returns target = value.
func Set(target, value Node) *Assign { return &Assign{Target: target, Value: value} }

// Op returns a binary operation.
func Op(op string, left, right Node) *Binary { return &Binary{Op: op, Left: left, Right: right} }

// Eq returns left == right.
func Eq(left, right Node) *Binary { return Op("==", left, right) }

// Ne returns left != right.
func Ne(left, right Node) *Binary { return Op("!=", left, right) }

// If returns a condition without an else branch.
func If(test, then Node) *Condition { return &Condition{Test: test, Then: then} }

// IfElse returns a two-branch condition.
func IfElse(test, then, els Node) *Condition { return &Condition{Test: test, Then: then, Else: els} }

// NewLabel returns a fresh label target.
func NewLabel(name string) *LabelTarget { return &LabelTarget{Name: name} }

// Mark returns a label node for t.
func Mark(t *LabelTarget) *Label { return &Label{Target: t} }

// Jump returns goto t.
func Jump(t *LabelTarget) *Goto { return &Goto{Target: t} }

// Ret returns a return of v.
func Ret(v Node) *Return { return &Return{Value: v} }

// CallFn returns a call of the free function m.
func CallFn(m *Method, args ...Node) *Call { return &Call{Method: m, Args: args} }

// NewTarget returns a fresh yield target.
func NewTarget(name string) *YieldTarget { return &YieldTarget{Name: name} }

// YieldOf returns a value-producing yield.
func YieldOf(t *YieldTarget, v Node) *Yield { return &Yield{Target: t, Value: v} }

// YieldBreak returns the terminating yield.
func YieldBreak(t *YieldTarget) *Yield { return &Yield{Target: t} }

// Case returns a switch case on constant values.
func Case(body Node, values ...any) *SwitchCase {
	c := &SwitchCase{Body: body}
	for _, v := range values {
		c.Values = append(c.Values, Const(v))
	}
	return c
}
