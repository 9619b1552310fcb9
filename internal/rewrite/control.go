package rewrite

import (
	"go.uber.org/zap"

	"github.com/wippyai/genlower/expr"
)

// stmt rewrites n in statement position. A nil node stays nil.
func (p *pass) stmt(n expr.Node) (expr.Node, error) {
	if n == nil {
		return nil, nil
	}
	out, err := p.stmts(n)
	if err != nil {
		return nil, err
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return expr.Seq(out...), nil
}

// stmts rewrites n in statement position into a sequence to be spliced
// into the enclosing block. Subtrees without a yield are returned as is.
func (p *pass) stmts(n expr.Node) ([]expr.Node, error) {
	if !p.hasYield(n) {
		return []expr.Node{n}, nil
	}

	switch n := n.(type) {
	case *expr.Yield:
		return p.yield(n)

	case *expr.Block:
		out := p.hoist(n.Vars)
		for _, e := range n.Exprs {
			s, err := p.stmts(e)
			if err != nil {
				return nil, err
			}
			out = append(out, s...)
		}
		return []expr.Node{expr.Seq(out...)}, nil

	case *expr.Assign:
		pre, store, err := p.assign(n)
		if err != nil {
			return nil, err
		}
		return append(pre, store), nil

	case *expr.Condition:
		pre, test, err := p.value(n.Test)
		if err != nil {
			return nil, err
		}
		then, err := p.stmt(n.Then)
		if err != nil {
			return nil, err
		}
		els, err := p.stmt(n.Else)
		if err != nil {
			return nil, err
		}
		return append(pre, &expr.Condition{Test: test, Then: then, Else: els}), nil

	case *expr.Loop:
		body, err := p.stmt(n.Body)
		if err != nil {
			return nil, err
		}
		return []expr.Node{&expr.Loop{Body: body, Break: n.Break, Continue: n.Continue}}, nil

	case *expr.Switch:
		pre, v, err := p.value(n.Value)
		if err != nil {
			return nil, err
		}
		out := &expr.Switch{Value: v}
		for _, c := range n.Cases {
			body, err := p.stmt(c.Body)
			if err != nil {
				return nil, err
			}
			out.Cases = append(out.Cases, &expr.SwitchCase{Values: c.Values, Body: body})
		}
		if out.Default, err = p.stmt(n.Default); err != nil {
			return nil, err
		}
		return append(pre, out), nil

	case *expr.Try:
		out, err := p.try(n)
		if err != nil {
			return nil, err
		}
		return []expr.Node{out}, nil
	}

	pre, v, err := p.value(n)
	if err != nil {
		return nil, err
	}
	return append(pre, v), nil
}

// yield expands a suspension:
//
//	current = v; state = k; router = yielding; return yielded
//	resume_k: router = running; state = finished
//	if disposing { state = finished; return finished }
//
// The dispose check is left out inside a suspending finally so a dispose
// runs the finally to its end.
func (p *pass) yield(y *expr.Yield) ([]expr.Node, error) {
	if y.IsBreak() {
		return []expr.Node{
			expr.Set(p.state, expr.Const(expr.StateFinished)),
			expr.Ret(expr.Const(expr.NextFinished)),
		}, nil
	}

	pre, v, err := p.value(y.Value)
	if err != nil {
		return nil, err
	}

	m := p.markers.next()
	p.log.Debug("yield marker", zap.Int64("state", m.State), zap.Bool("in_finally", p.finallyDepth > 0))

	ret := expr.Ret(expr.Const(expr.NextYielded))
	p.suspends[ret] = true

	out := append(pre,
		expr.Set(p.current, v),
		expr.Set(p.state, expr.Const(m.State)),
		expr.Set(p.router, expr.Const(expr.RouterYielding)),
		ret,
		expr.Mark(m.Label),
		expr.Set(p.router, expr.Const(expr.RouterRunning)),
		expr.Set(p.state, expr.Const(expr.StateFinished)),
	)
	if p.finallyDepth == 0 {
		out = append(out, p.disposeExit())
	}
	return out, nil
}

// disposeExit leaves the machine when the current step is a dispose.
func (p *pass) disposeExit() expr.Node {
	return expr.If(p.disposing, expr.Seq(
		expr.Set(p.state, expr.Const(expr.StateFinished)),
		expr.Ret(expr.Const(expr.NextFinished)),
	))
}
