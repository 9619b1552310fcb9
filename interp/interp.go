package interp

import (
	"github.com/wippyai/genlower/errors"
	"github.com/wippyai/genlower/expr"
)

// Flow is the control flow state after evaluating a node.
type Flow uint8

const (
	FlowNormal Flow = iota // evaluation completed with Value
	FlowJump               // goto Label is looking for its target
	FlowReturn             // return from the enclosing lambda with Value
	FlowThrow              // Exc is propagating
)

// Result is the outcome of evaluating a node. It unifies values and
// non-local control flow.
type Result struct {
	Value any
	Label *expr.LabelTarget
	Exc   *Exception
	Flow  Flow
}

func ok(v any) Result { return Result{Value: v} }

func jump(t *expr.LabelTarget) Result { return Result{Flow: FlowJump, Label: t} }

func returning(v any) Result { return Result{Flow: FlowReturn, Value: v} }

func throwing(exc *Exception) Result { return Result{Flow: FlowThrow, Exc: exc} }

func (r Result) normal() bool { return r.Flow == FlowNormal }

func internal(format string, args ...any) error {
	return errors.Internal(errors.PhaseRuntime, format, args...)
}

// Option configures a Program.
type Option func(*Program)

// WithRegistry sets the operator registry. Defaults to DefaultRegistry().
func WithRegistry(r *Registry) Option {
	return func(p *Program) { p.ops = r }
}

// WithStepLimit bounds the number of nodes a program may evaluate over its
// lifetime, including steps of the generators it creates. Zero means no
// limit.
func WithStepLimit(n int) Option {
	return func(p *Program) { p.limit = n }
}

// Program is a compiled tree ready for evaluation.
//
// Evaluation supports goto into nested blocks, condition branches, loop
// bodies and switch cases: a jump travels outward until it reaches the
// block holding its label, which then re-enters its children in seek mode
// down to the label. Jumps into a try region or into an expression
// operand are rejected.
type Program struct {
	root  expr.Node
	ops   *Registry
	holds map[expr.Node]map[*expr.LabelTarget]bool
	steps int
	limit int
}

// Compile indexes the labels of root. Every label must be bound at most
// once.
func Compile(root expr.Node, opts ...Option) (*Program, error) {
	p := &Program{
		root:  root,
		holds: make(map[expr.Node]map[*expr.LabelTarget]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.ops == nil {
		p.ops = DefaultRegistry()
	}
	if _, err := p.index(root, make(map[*expr.LabelTarget]bool)); err != nil {
		return nil, err
	}
	return p, nil
}

// index records, for every node, the labels bound beneath it within the
// same function.
func (p *Program) index(n expr.Node, bound map[*expr.LabelTarget]bool) ([]*expr.LabelTarget, error) {
	switch n := n.(type) {
	case nil:
		return nil, nil
	case *expr.Label:
		if bound[n.Target] {
			return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
				Node("label").
				Detail("label %s bound more than once", n.Target.Name).
				Build()
		}
		bound[n.Target] = true
		return []*expr.LabelTarget{n.Target}, nil
	case *expr.Lambda:
		_, err := p.index(n.Body, bound)
		return nil, err
	}

	var labels []*expr.LabelTarget
	for _, k := range expr.Children(n) {
		ls, err := p.index(k, bound)
		if err != nil {
			return nil, err
		}
		labels = append(labels, ls...)
	}
	if len(labels) > 0 {
		set := p.holds[n]
		if set == nil {
			set = make(map[*expr.LabelTarget]bool, len(labels))
			p.holds[n] = set
		}
		for _, l := range labels {
			set[l] = true
		}
	}
	return labels, nil
}

// reaches reports whether seeking t from n is possible: n is the label or
// binds it beneath.
func (p *Program) reaches(n expr.Node, t *expr.LabelTarget) bool {
	if l, ok := n.(*expr.Label); ok {
		return l.Target == t
	}
	return p.holds[n][t]
}

// Run evaluates the root in a fresh environment.
func (p *Program) Run() (any, error) {
	r, err := p.exec(p.root, newEnv(nil), nil)
	if err != nil {
		return nil, err
	}
	switch r.Flow {
	case FlowThrow:
		return nil, errors.Uncaught(r.Exc)
	case FlowJump:
		return nil, internal("goto %s has no target", r.Label.Name)
	}
	return r.Value, nil
}

// env is one lexical scope.
type env struct {
	vars   map[*expr.Variable]*Cell
	parent *env
	// exc is the exception being handled in a catch scope.
	exc *Exception
}

func newEnv(parent *env) *env {
	return &env{vars: make(map[*expr.Variable]*Cell), parent: parent}
}

func (e *env) declare(v *expr.Variable) *Cell {
	c := &Cell{}
	e.vars[v] = c
	return c
}

func (e *env) lookup(v *expr.Variable) *Cell {
	for s := e; s != nil; s = s.parent {
		if c, ok := s.vars[v]; ok {
			return c
		}
	}
	return nil
}

func (e *env) handling() *Exception {
	for s := e; s != nil; s = s.parent {
		if s.exc != nil {
			return s.exc
		}
	}
	return nil
}

// exec evaluates n. A non-nil seek enters n on the way to that label
// instead of evaluating it from the start.
func (p *Program) exec(n expr.Node, e *env, seek *expr.LabelTarget) (Result, error) {
	if seek != nil {
		return p.seek(n, e, seek)
	}
	if p.limit > 0 {
		p.steps++
		if p.steps > p.limit {
			return Result{}, errors.New(errors.PhaseRuntime, errors.KindLimit).
				Detail("step limit %d exceeded", p.limit).
				Build()
		}
	}

	switch n := n.(type) {
	case nil:
		return ok(nil), nil
	case *expr.Constant:
		return ok(n.Value), nil
	case *expr.Variable:
		c := e.lookup(n)
		if c == nil {
			return Result{}, internal("variable %s is not in scope", n.Name)
		}
		return ok(c.Value), nil
	case *expr.Block:
		return p.block(n, e, nil)
	case *expr.Assign:
		return p.assign(n, e)
	case *expr.Binary:
		return p.binary(n, e)
	case *expr.Unary:
		r, err := p.exec(n.Operand, e, nil)
		if err != nil || !r.normal() {
			return r, err
		}
		fn := p.ops.Unary(n.Op)
		if fn == nil {
			return Result{}, errors.NotFound(errors.PhaseRuntime, "unary operator", n.Op)
		}
		return p.host(fn(r.Value))
	case *expr.Call:
		return p.callMethod(n, e)
	case *expr.New:
		args, r, err := p.values(n.Args, e)
		if err != nil || !r.normal() {
			return r, err
		}
		if n.Ctor == nil {
			return ok(NewObject()), nil
		}
		return p.host(n.Ctor.Fn(nil, args))
	case *expr.Member:
		r, err := p.exec(n.Object, e, nil)
		if err != nil || !r.normal() {
			return r, err
		}
		return member(r.Value, n.Name)
	case *expr.Index:
		vals, r, err := p.values(append([]expr.Node{n.Object}, n.Args...), e)
		if err != nil || !r.normal() {
			return r, err
		}
		return index(vals[0], vals[1:])
	case *expr.NewArray:
		vals, r, err := p.values(n.Elems, e)
		if err != nil || !r.normal() {
			return r, err
		}
		if vals == nil {
			vals = []any{}
		}
		return ok(vals), nil
	case *expr.Condition:
		return p.condition(n, e, nil)
	case *expr.Loop:
		return p.loop(n, e, nil)
	case *expr.Label:
		return ok(nil), nil
	case *expr.Goto:
		debugf("goto %s", n.Target.Name)
		return jump(n.Target), nil
	case *expr.Switch:
		return p.switchNode(n, e, nil)
	case *expr.Return:
		r, err := p.exec(n.Value, e, nil)
		if err != nil || !r.normal() {
			return r, err
		}
		return returning(r.Value), nil
	case *expr.Try:
		return p.try(n, e)
	case *expr.Throw:
		return p.throw(n, e)
	case *expr.TypeIs:
		r, err := p.exec(n.Operand, e, nil)
		if err != nil || !r.normal() {
			return r, err
		}
		exc, isExc := r.Value.(*Exception)
		return ok(isExc && exc.Matches(n.Class)), nil
	case *expr.Lambda:
		return ok(&Closure{Lambda: n, prog: p, env: e}), nil
	case *expr.Invoke:
		return p.invoke(n, e)
	case *expr.MakeGenerator:
		return ok(newGenerator(&Closure{Lambda: n.Resume, prog: p, env: e})), nil
	case *expr.MakeSequence:
		return ok(&Sequence{factory: &Closure{Lambda: n.Factory, prog: p, env: e}}), nil
	case *expr.Yield, *expr.Generator:
		return Result{}, errors.Unsupported(errors.PhaseRuntime, nil, n.Kind().String(),
			"generator constructs must be lowered before evaluation")
	}
	return Result{}, internal("cannot evaluate %T", n)
}

// seek enters n on the way to label t.
func (p *Program) seek(n expr.Node, e *env, t *expr.LabelTarget) (Result, error) {
	debugf("seek %s through %s", t.Name, n.Kind())
	switch n := n.(type) {
	case *expr.Label:
		if n.Target != t {
			return Result{}, internal("seek %s reached label %s", t.Name, n.Target.Name)
		}
		return ok(nil), nil
	case *expr.Block:
		return p.block(n, e, t)
	case *expr.Condition:
		return p.condition(n, e, t)
	case *expr.Loop:
		return p.loop(n, e, t)
	case *expr.Switch:
		return p.switchNode(n, e, t)
	case *expr.Try:
		return Result{}, internal("goto %s jumps into a protected region", t.Name)
	}
	return Result{}, internal("goto %s jumps into %s", t.Name, n.Kind())
}

func (p *Program) block(b *expr.Block, e *env, seek *expr.LabelTarget) (Result, error) {
	be := e
	if len(b.Vars) > 0 {
		be = newEnv(e)
		for _, v := range b.Vars {
			be.declare(v)
		}
	}

	for {
		start := 0
		if seek != nil {
			start = -1
			for i, k := range b.Exprs {
				if p.reaches(k, seek) {
					start = i
					break
				}
			}
			if start < 0 {
				return Result{}, internal("label %s is not in block", seek.Name)
			}
		}

		var last any
		restart := false
		for i := start; i < len(b.Exprs); i++ {
			var s *expr.LabelTarget
			if i == start {
				s = seek
			}
			r, err := p.exec(b.Exprs[i], be, s)
			if err != nil {
				return r, err
			}
			if r.Flow == FlowJump && p.holds[b][r.Label] {
				seek = r.Label
				restart = true
				break
			}
			if !r.normal() {
				return r, nil
			}
			last = r.Value
		}
		if !restart {
			return ok(last), nil
		}
	}
}

func (p *Program) assign(n *expr.Assign, e *env) (Result, error) {
	switch t := n.Target.(type) {
	case *expr.Variable:
		r, err := p.exec(n.Value, e, nil)
		if err != nil || !r.normal() {
			return r, err
		}
		c := e.lookup(t)
		if c == nil {
			return Result{}, internal("variable %s is not in scope", t.Name)
		}
		c.Value = r.Value
		return r, nil
	case *expr.Member:
		vals, r, err := p.values([]expr.Node{t.Object, n.Value}, e)
		if err != nil || !r.normal() {
			return r, err
		}
		obj, isObj := vals[0].(*Object)
		if !isObj {
			return Result{}, errors.TypeMismatch(errors.PhaseRuntime, "."+t.Name, vals[0])
		}
		obj.Fields[t.Name] = vals[1]
		return ok(vals[1]), nil
	case *expr.Index:
		nodes := append(append([]expr.Node{t.Object}, t.Args...), n.Value)
		vals, r, err := p.values(nodes, e)
		if err != nil || !r.normal() {
			return r, err
		}
		v := vals[len(vals)-1]
		return setIndex(vals[0], vals[1:len(vals)-1], v)
	}
	return Result{}, internal("cannot assign to %s", n.Target.Kind())
}

func (p *Program) binary(n *expr.Binary, e *env) (Result, error) {
	switch n.Op {
	case "&&", "||":
		r, err := p.exec(n.Left, e, nil)
		if err != nil || !r.normal() {
			return r, err
		}
		if Truthy(r.Value) == (n.Op == "||") {
			return ok(n.Op == "||"), nil
		}
		r, err = p.exec(n.Right, e, nil)
		if err != nil || !r.normal() {
			return r, err
		}
		return ok(Truthy(r.Value)), nil
	}

	vals, r, err := p.values([]expr.Node{n.Left, n.Right}, e)
	if err != nil || !r.normal() {
		return r, err
	}
	fn := p.ops.Binary(n.Op)
	if fn == nil {
		return Result{}, errors.NotFound(errors.PhaseRuntime, "binary operator", n.Op)
	}
	return p.host(fn(vals[0], vals[1]))
}

// values evaluates nodes left to right. Evaluation stops at the first
// non-normal flow, which is returned.
func (p *Program) values(nodes []expr.Node, e *env) ([]any, Result, error) {
	var out []any
	for _, k := range nodes {
		r, err := p.exec(k, e, nil)
		if err != nil || !r.normal() {
			return nil, r, err
		}
		out = append(out, r.Value)
	}
	return out, ok(nil), nil
}

// host converts the result of a host function. An *Exception error is
// thrown, other errors abort evaluation.
func (p *Program) host(v any, err error) (Result, error) {
	if err != nil {
		if exc, isExc := err.(*Exception); isExc {
			return throwing(exc), nil
		}
		return Result{}, err
	}
	return ok(v), nil
}

func (p *Program) callMethod(n *expr.Call, e *env) (Result, error) {
	if n.Method == nil || n.Method.Fn == nil {
		return Result{}, errors.NotFound(errors.PhaseRuntime, "method", methodName(n.Method))
	}
	var recv any
	if n.Object != nil {
		r, err := p.exec(n.Object, e, nil)
		if err != nil || !r.normal() {
			return r, err
		}
		recv = r.Value
	}
	args, r, err := p.values(n.Args, e)
	if err != nil || !r.normal() {
		return r, err
	}
	return p.host(n.Method.Fn(recv, args))
}

func methodName(m *expr.Method) string {
	if m == nil {
		return "<nil>"
	}
	return m.Name
}

func (p *Program) invoke(n *expr.Invoke, e *env) (Result, error) {
	r, err := p.exec(n.Fn, e, nil)
	if err != nil || !r.normal() {
		return r, err
	}
	c, isClosure := r.Value.(*Closure)
	if !isClosure {
		return Result{}, errors.TypeMismatch(errors.PhaseRuntime, "invoke", r.Value)
	}
	args, r, err := p.values(n.Args, e)
	if err != nil || !r.normal() {
		return r, err
	}
	return p.call(c, args)
}

// call runs a closure. By-reference parameters given a *Cell are bound to
// it; every other parameter gets a fresh cell.
func (p *Program) call(c *Closure, args []any) (Result, error) {
	le := newEnv(c.env)
	for i, param := range c.Lambda.Params {
		var arg any
		if i < len(args) {
			arg = args[i]
		}
		if cell, isCell := arg.(*Cell); isCell && param.ByRef {
			le.vars[param] = cell
			continue
		}
		le.declare(param).Value = arg
	}

	r, err := p.exec(c.Lambda.Body, le, nil)
	if err != nil {
		return r, err
	}
	switch r.Flow {
	case FlowReturn:
		return ok(r.Value), nil
	case FlowJump:
		return Result{}, internal("goto %s leaves function %s", r.Label.Name, c.Lambda.Name)
	}
	return r, nil
}

func (p *Program) condition(n *expr.Condition, e *env, seek *expr.LabelTarget) (Result, error) {
	if seek != nil {
		switch {
		case p.reaches(n.Then, seek):
			return p.exec(n.Then, e, seek)
		case n.Else != nil && p.reaches(n.Else, seek):
			return p.exec(n.Else, e, seek)
		}
		return Result{}, internal("goto %s jumps into a condition test", seek.Name)
	}

	r, err := p.exec(n.Test, e, nil)
	if err != nil || !r.normal() {
		return r, err
	}
	if Truthy(r.Value) {
		return p.exec(n.Then, e, nil)
	}
	return p.exec(n.Else, e, nil)
}

func (p *Program) loop(n *expr.Loop, e *env, seek *expr.LabelTarget) (Result, error) {
	for {
		r, err := p.exec(n.Body, e, seek)
		seek = nil
		if err != nil {
			return r, err
		}
		switch r.Flow {
		case FlowNormal:
		case FlowJump:
			switch {
			case n.Break != nil && r.Label == n.Break:
				return ok(nil), nil
			case n.Continue != nil && r.Label == n.Continue:
			case p.reaches(n.Body, r.Label):
				seek = r.Label
			default:
				return r, nil
			}
		default:
			return r, nil
		}
	}
}

func (p *Program) switchNode(n *expr.Switch, e *env, seek *expr.LabelTarget) (Result, error) {
	if seek != nil {
		for _, c := range n.Cases {
			if p.reaches(c.Body, seek) {
				return p.exec(c.Body, e, seek)
			}
		}
		if n.Default != nil && p.reaches(n.Default, seek) {
			return p.exec(n.Default, e, seek)
		}
		return Result{}, internal("goto %s jumps into a switch value", seek.Name)
	}

	r, err := p.exec(n.Value, e, nil)
	if err != nil || !r.normal() {
		return r, err
	}
	v := r.Value
	for _, c := range n.Cases {
		for _, cv := range c.Values {
			r, err := p.exec(cv, e, nil)
			if err != nil || !r.normal() {
				return r, err
			}
			if Equal(v, r.Value) {
				return p.exec(c.Body, e, nil)
			}
		}
	}
	return p.exec(n.Default, e, nil)
}

// try runs a protected region. Handlers are tried in order; Fault runs
// when an exception leaves the region, Finally on every exit. A finally
// that does not complete normally replaces the pending outcome.
func (p *Program) try(n *expr.Try, e *env) (Result, error) {
	r, err := p.exec(n.Body, e, nil)
	if err != nil {
		return r, err
	}

	if r.Flow == FlowThrow {
		for _, h := range n.Handlers {
			handled, hr, err := p.handle(h, r.Exc, e)
			if err != nil {
				return hr, err
			}
			if handled {
				r = hr
				break
			}
		}
	}

	if r.Flow == FlowThrow && n.Fault != nil {
		fr, err := p.exec(n.Fault, e, nil)
		if err != nil {
			return fr, err
		}
		if !fr.normal() {
			r = fr
		}
	}

	if n.Finally != nil {
		fr, err := p.exec(n.Finally, e, nil)
		if err != nil {
			return fr, err
		}
		if !fr.normal() {
			return fr, nil
		}
	}
	return r, nil
}

// handle runs h for exc when its class and filter accept it. An exception
// raised by the filter counts as a rejection.
func (p *Program) handle(h *expr.Catch, exc *Exception, e *env) (bool, Result, error) {
	if !exc.Matches(h.Class) {
		return false, Result{}, nil
	}
	he := newEnv(e)
	he.exc = exc
	if h.Var != nil {
		he.declare(h.Var).Value = exc
	}
	if h.Filter != nil {
		fr, err := p.exec(h.Filter, he, nil)
		if err != nil {
			return false, fr, err
		}
		if !fr.normal() || !Truthy(fr.Value) {
			return false, Result{}, nil
		}
	}
	r, err := p.exec(h.Body, he, nil)
	return true, r, err
}

func (p *Program) throw(n *expr.Throw, e *env) (Result, error) {
	if n.Value == nil {
		exc := e.handling()
		if exc == nil {
			return Result{}, internal("rethrow outside a handler")
		}
		return throwing(exc), nil
	}
	r, err := p.exec(n.Value, e, nil)
	if err != nil || !r.normal() {
		return r, err
	}
	if exc, isExc := r.Value.(*Exception); isExc {
		return throwing(exc), nil
	}
	return throwing(NewException("Error", r.Value)), nil
}

func member(v any, name string) (Result, error) {
	switch v := v.(type) {
	case *Object:
		return ok(v.Fields[name]), nil
	case *Exception:
		switch name {
		case "class":
			return ok(v.Class), nil
		case "value":
			return ok(v.Value), nil
		}
	case []any:
		if name == "length" {
			return ok(int64(len(v))), nil
		}
	case string:
		if name == "length" {
			return ok(int64(len(v))), nil
		}
	}
	return Result{}, errors.TypeMismatch(errors.PhaseRuntime, "."+name, v)
}

func index(v any, args []any) (Result, error) {
	if len(args) != 1 {
		return Result{}, internal("index takes one argument, got %d", len(args))
	}
	switch v := v.(type) {
	case []any:
		i, isInt := args[0].(int64)
		if !isInt {
			return Result{}, errors.TypeMismatch(errors.PhaseRuntime, "[]", args[0])
		}
		if i < 0 || i >= int64(len(v)) {
			return throwing(NewException("IndexError", i)), nil
		}
		return ok(v[i]), nil
	case *Object:
		key, isString := args[0].(string)
		if !isString {
			return Result{}, errors.TypeMismatch(errors.PhaseRuntime, "[]", args[0])
		}
		return ok(v.Fields[key]), nil
	}
	return Result{}, errors.TypeMismatch(errors.PhaseRuntime, "[]", v)
}

func setIndex(v any, args []any, value any) (Result, error) {
	if len(args) != 1 {
		return Result{}, internal("index takes one argument, got %d", len(args))
	}
	switch v := v.(type) {
	case []any:
		i, isInt := args[0].(int64)
		if !isInt {
			return Result{}, errors.TypeMismatch(errors.PhaseRuntime, "[]=", args[0])
		}
		if i < 0 || i >= int64(len(v)) {
			return throwing(NewException("IndexError", i)), nil
		}
		v[i] = value
		return ok(value), nil
	case *Object:
		key, isString := args[0].(string)
		if !isString {
			return Result{}, errors.TypeMismatch(errors.PhaseRuntime, "[]=", args[0])
		}
		v.Fields[key] = value
		return ok(value), nil
	}
	return Result{}, errors.TypeMismatch(errors.PhaseRuntime, "[]=", v)
}
