package expr

// Kind identifies the concrete type of a Node.
type Kind uint8

const (
	KindConstant Kind = iota
	KindVariable
	KindBlock
	KindAssign
	KindBinary
	KindUnary
	KindCall
	KindNew
	KindMember
	KindIndex
	KindNewArray
	KindCondition
	KindLoop
	KindLabel
	KindGoto
	KindSwitch
	KindReturn
	KindTry
	KindThrow
	KindTypeIs
	KindLambda
	KindInvoke
	KindYield
	KindGenerator
	KindMakeGenerator
	KindMakeSequence
)

var kindNames = [...]string{
	KindConstant:      "constant",
	KindVariable:      "variable",
	KindBlock:         "block",
	KindAssign:        "assign",
	KindBinary:        "binary",
	KindUnary:         "unary",
	KindCall:          "call",
	KindNew:           "new",
	KindMember:        "member",
	KindIndex:         "index",
	KindNewArray:      "array",
	KindCondition:     "condition",
	KindLoop:          "loop",
	KindLabel:         "label",
	KindGoto:          "goto",
	KindSwitch:        "switch",
	KindReturn:        "return",
	KindTry:           "try",
	KindThrow:         "throw",
	KindTypeIs:        "typeis",
	KindLambda:        "lambda",
	KindInvoke:        "invoke",
	KindYield:         "yield",
	KindGenerator:     "generator",
	KindMakeGenerator: "make_generator",
	KindMakeSequence:  "make_sequence",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Node is a node of the expression tree.
type Node interface {
	Kind() Kind
}

// Constant is a literal value.
type Constant struct {
	Value any
}

// Variable is a storage location. Identity is the pointer.
// ByRef marks a lambda parameter bound to the caller's storage.
type Variable struct {
	Name  string
	ByRef bool
}

// Block declares Vars for the duration of Exprs and evaluates to the value
// of the last expression.
type Block struct {
	Vars  []*Variable
	Exprs []Node
}

// Assign stores Value into Target, which is a *Variable, *Member or *Index.
type Assign struct {
	Target Node
	Value  Node
}

// Binary applies a binary operator. "&&" and "||" short-circuit.
type Binary struct {
	Op    string
	Left  Node
	Right Node
}

// Unary applies a unary operator.
type Unary struct {
	Op      string
	Operand Node
}

// Method is a host function. Recv is nil for free functions.
type Method struct {
	Name string
	Fn   func(recv any, args []any) (any, error)
}

// Call invokes Method with an optional receiver. The receiver is evaluated
// before the arguments.
type Call struct {
	Object Node
	Method *Method
	Args   []Node
}

// New constructs a value with Ctor, or an empty object when Ctor is nil.
type New struct {
	Ctor *Method
	Args []Node
}

// Member reads a named field of Object.
type Member struct {
	Object Node
	Name   string
}

// Index reads Object[Args...].
type Index struct {
	Object Node
	Args   []Node
}

// NewArray builds an array from Elems.
type NewArray struct {
	Elems []Node
}

// Condition evaluates Then when Test is true and Else otherwise.
// Else may be nil.
type Condition struct {
	Test Node
	Then Node
	Else Node
}

// Loop runs Body forever. A Goto to Break leaves the loop, a Goto to
// Continue starts the next iteration. Both targets are optional.
type Loop struct {
	Body     Node
	Break    *LabelTarget
	Continue *LabelTarget
}

// LabelTarget is the identity of a jump destination.
type LabelTarget struct {
	Name string
}

// Label marks the position of Target.
type Label struct {
	Target *LabelTarget
}

// Goto transfers control to Target.
type Goto struct {
	Target *LabelTarget
}

// SwitchCase runs Body when the switch value equals any of Values.
// Values are constants.
type SwitchCase struct {
	Values []Node
	Body   Node
}

// Switch selects a case by Value. Default may be nil.
type Switch struct {
	Value   Node
	Cases   []*SwitchCase
	Default Node
}

// Return leaves the enclosing Lambda with Value, which may be nil.
type Return struct {
	Value Node
}

// Catch handles exceptions leaving a Try body. An empty Class matches any
// exception. Var, when set, is bound to the exception for Filter and Body.
type Catch struct {
	Class  string
	Var    *Variable
	Filter Node
	Body   Node
}

// Try protects Body. Finally runs on every exit, Fault only when an
// exception leaves the region.
type Try struct {
	Body     Node
	Handlers []*Catch
	Finally  Node
	Fault    Node
}

// Throw raises Value. A nil Value rethrows the exception being handled.
type Throw struct {
	Value Node
}

// TypeIs tests whether Operand is an exception of Class.
type TypeIs struct {
	Operand Node
	Class   string
}

// Lambda is a nested function.
type Lambda struct {
	Name   string
	Params []*Variable
	Body   Node
}

// Invoke calls the closure produced by Fn.
type Invoke struct {
	Fn   Node
	Args []Node
}

// YieldTarget identifies the generator a Yield belongs to.
type YieldTarget struct {
	Name string
}

// Yield suspends the generator identified by Target. A nil Value is the
// terminating suspension that ends the sequence.
type Yield struct {
	Target *YieldTarget
	Value  Node
}

// IsBreak reports whether y ends the sequence instead of producing a value.
func (y *Yield) IsBreak() bool { return y.Value == nil }

// Generator is a generator definition. Every Yield in Body must carry
// Target. Restartable generators produce a fresh state machine each time
// iteration begins; others are one-shot.
type Generator struct {
	Name        string
	Target      *YieldTarget
	Element     string
	Body        Node
	Restartable bool
}

// MakeGenerator creates a one-shot resumable computation from a resume
// lambda taking (state, current) by reference.
type MakeGenerator struct {
	Resume *Lambda
}

// MakeSequence creates a restartable sequence whose Factory produces a new
// generator on each call.
type MakeSequence struct {
	Factory *Lambda
}

func (*Constant) Kind() Kind      { return KindConstant }
func (*Variable) Kind() Kind      { return KindVariable }
func (*Block) Kind() Kind         { return KindBlock }
func (*Assign) Kind() Kind        { return KindAssign }
func (*Binary) Kind() Kind        { return KindBinary }
func (*Unary) Kind() Kind         { return KindUnary }
func (*Call) Kind() Kind          { return KindCall }
func (*New) Kind() Kind           { return KindNew }
func (*Member) Kind() Kind        { return KindMember }
func (*Index) Kind() Kind         { return KindIndex }
func (*NewArray) Kind() Kind      { return KindNewArray }
func (*Condition) Kind() Kind     { return KindCondition }
func (*Loop) Kind() Kind          { return KindLoop }
func (*Label) Kind() Kind         { return KindLabel }
func (*Goto) Kind() Kind          { return KindGoto }
func (*Switch) Kind() Kind        { return KindSwitch }
func (*Return) Kind() Kind        { return KindReturn }
func (*Try) Kind() Kind           { return KindTry }
func (*Throw) Kind() Kind         { return KindThrow }
func (*TypeIs) Kind() Kind        { return KindTypeIs }
func (*Lambda) Kind() Kind        { return KindLambda }
func (*Invoke) Kind() Kind        { return KindInvoke }
func (*Yield) Kind() Kind         { return KindYield }
func (*Generator) Kind() Kind     { return KindGenerator }
func (*MakeGenerator) Kind() Kind { return KindMakeGenerator }
func (*MakeSequence) Kind() Kind  { return KindMakeSequence }
