package rewrite

import (
	"github.com/wippyai/genlower/expr"
)

// value rewrites n for use as an operand. The prefix runs first and may
// suspend; the returned node then computes the value without suspending.
// Subtrees without a yield come back unchanged with no prefix.
func (p *pass) value(n expr.Node) ([]expr.Node, expr.Node, error) {
	if !p.hasYield(n) {
		return nil, n, nil
	}

	switch n := n.(type) {
	case *expr.Yield:
		pre, err := p.yield(n)
		return pre, expr.Nil(), err

	case *expr.Block:
		return p.blockValue(n)

	case *expr.Assign:
		pre, store, err := p.assign(n)
		if err != nil {
			return nil, nil, err
		}
		if v, ok := store.Target.(*expr.Variable); ok {
			return append(pre, store), v, nil
		}
		tmp := p.temp("tmp")
		pre = append(pre, expr.Set(tmp, store.Value))
		store.Value = tmp
		return append(pre, store), tmp, nil

	case *expr.Condition, *expr.Switch, *expr.Try:
		tmp := p.temp("tmp")
		pre, err := p.stmts(sink(n, tmp))
		return pre, tmp, err

	case *expr.Loop:
		pre, err := p.stmts(n)
		return pre, expr.Nil(), err

	case *expr.Binary:
		if (n.Op == "&&" || n.Op == "||") && p.hasYield(n.Right) {
			return p.value(shortCircuit(n))
		}
	}

	return p.operands(n)
}

// operands spills the operands of an expression node and rebuilds it.
func (p *pass) operands(n expr.Node) ([]expr.Node, expr.Node, error) {
	pre, kids, err := p.spill(expr.Children(n), false)
	if err != nil {
		return nil, nil, err
	}
	return pre, expr.WithChildren(n, kids), nil
}

// spill rewrites operands that are evaluated left to right. Operands
// before the last suspending one are stashed in temporaries so later
// suspensions cannot change what they computed; the rest stay in place,
// which keeps their evaluation after every suspension. With all set every
// operand is stashed.
func (p *pass) spill(kids []expr.Node, all bool) ([]expr.Node, []expr.Node, error) {
	last := -1
	for i, k := range kids {
		if p.hasYield(k) {
			last = i
		}
	}
	if all {
		last = len(kids)
	}

	var pre []expr.Node
	out := make([]expr.Node, len(kids))
	for i, k := range kids {
		if k == nil || i > last {
			out[i] = k
			continue
		}
		kp, v, err := p.value(k)
		if err != nil {
			return nil, nil, err
		}
		pre = append(pre, kp...)
		if i == last {
			out[i] = v
			continue
		}
		out[i] = p.stash(&pre, v)
	}
	return pre, out, nil
}

// stash evaluates v into a temporary now. Constants and temporaries the
// pass owns are already stable.
func (p *pass) stash(pre *[]expr.Node, v expr.Node) expr.Node {
	switch v := v.(type) {
	case *expr.Constant:
		return v
	case *expr.Variable:
		if p.tempSet[v] {
			return v
		}
	}
	tmp := p.temp("tmp")
	*pre = append(*pre, expr.Set(tmp, v))
	return tmp
}

// assign splits an assignment into a prefix and the store. The receiver
// and index operands of the target are evaluated before the value, the
// store itself happens last, as in the original.
func (p *pass) assign(n *expr.Assign) ([]expr.Node, *expr.Assign, error) {
	valueYields := p.hasYield(n.Value)

	var pre []expr.Node
	target := n.Target
	switch t := n.Target.(type) {
	case *expr.Member:
		tp, kids, err := p.spill([]expr.Node{t.Object}, valueYields)
		if err != nil {
			return nil, nil, err
		}
		pre = tp
		target = &expr.Member{Object: kids[0], Name: t.Name}
	case *expr.Index:
		tp, kids, err := p.spill(append([]expr.Node{t.Object}, t.Args...), valueYields)
		if err != nil {
			return nil, nil, err
		}
		pre = tp
		target = &expr.Index{Object: kids[0], Args: kids[1:]}
	}

	vp, v, err := p.value(n.Value)
	if err != nil {
		return nil, nil, err
	}
	pre = append(pre, vp...)
	return pre, expr.Set(target, v), nil
}

// blockValue flattens a suspending block used as a value. Its variables
// are hoisted, so splicing its expressions into the enclosing sequence
// does not change their scope.
func (p *pass) blockValue(b *expr.Block) ([]expr.Node, expr.Node, error) {
	pre := p.hoist(b.Vars)
	if len(b.Exprs) == 0 {
		return pre, expr.Nil(), nil
	}
	for _, e := range b.Exprs[:len(b.Exprs)-1] {
		s, err := p.stmts(e)
		if err != nil {
			return nil, nil, err
		}
		pre = append(pre, s...)
	}
	lp, v, err := p.value(b.Exprs[len(b.Exprs)-1])
	if err != nil {
		return nil, nil, err
	}
	return append(pre, lp...), v, nil
}

// sink pushes an assignment to tmp into every branch of a value-producing
// construct so it can be rewritten as a statement. Missing branches
// assign nil.
func sink(n expr.Node, tmp *expr.Variable) expr.Node {
	set := func(b expr.Node) expr.Node {
		if b == nil {
			return expr.Set(tmp, expr.Nil())
		}
		return expr.Set(tmp, b)
	}

	switch n := n.(type) {
	case *expr.Condition:
		return &expr.Condition{Test: n.Test, Then: set(n.Then), Else: set(n.Else)}
	case *expr.Switch:
		out := &expr.Switch{Value: n.Value, Default: set(n.Default)}
		for _, c := range n.Cases {
			out.Cases = append(out.Cases, &expr.SwitchCase{Values: c.Values, Body: set(c.Body)})
		}
		return out
	case *expr.Try:
		out := &expr.Try{Body: set(n.Body), Finally: n.Finally, Fault: n.Fault}
		for _, h := range n.Handlers {
			out.Handlers = append(out.Handlers, &expr.Catch{
				Class:  h.Class,
				Var:    h.Var,
				Filter: h.Filter,
				Body:   set(h.Body),
			})
		}
		return out
	}
	return n
}

// shortCircuit turns a logical operator whose right operand suspends into
// a condition, so the right operand still runs only when needed.
func shortCircuit(n *expr.Binary) expr.Node {
	if n.Op == "&&" {
		return expr.IfElse(n.Left, n.Right, expr.Const(false))
	}
	return expr.IfElse(n.Left, expr.Const(true), n.Right)
}
