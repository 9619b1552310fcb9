package rewrite

import (
	"go.uber.org/multierr"

	"github.com/wippyai/genlower/errors"
	"github.com/wippyai/genlower/expr"
)

// verify checks the invariants of an assembled tree: every label is bound
// once, every marker and goto resolves, states are dense from 1, and every
// variable is referenced inside a scope declaring it. Variables in free
// belong to the enclosing function and are always in scope.
func verify(tree expr.Node, markers []*Marker, free map[*expr.Variable]bool) error {
	var errs error

	bound := make(map[*expr.LabelTarget]int)
	var order []*expr.LabelTarget
	loops := make(map[*expr.LabelTarget]bool)
	var gotos []*expr.LabelTarget
	expr.Walk(tree, func(n expr.Node) bool {
		switch n := n.(type) {
		case *expr.Label:
			if bound[n.Target] == 0 {
				order = append(order, n.Target)
			}
			bound[n.Target]++
		case *expr.Loop:
			if n.Break != nil {
				loops[n.Break] = true
			}
			if n.Continue != nil {
				loops[n.Continue] = true
			}
		case *expr.Goto:
			gotos = append(gotos, n.Target)
		}
		return true
	})

	for _, t := range order {
		if bound[t] > 1 {
			errs = multierr.Append(errs, errors.Internal(errors.PhaseAssemble,
				"label %s bound %d times", t.Name, bound[t]))
		}
	}
	for _, m := range markers {
		if bound[m.Label] == 0 {
			errs = multierr.Append(errs, errors.Internal(errors.PhaseAssemble,
				"marker %d resumes at unbound label %s", m.State, m.Label.Name))
		}
	}
	for _, t := range gotos {
		if bound[t] == 0 && !loops[t] {
			errs = multierr.Append(errs, errors.Internal(errors.PhaseAssemble,
				"goto %s has no label", t.Name))
		}
	}

	states := NewBitSet(len(markers))
	for _, m := range markers {
		if m.State < expr.FirstState || states.Set(uint32(m.State)) {
			errs = multierr.Append(errs, errors.Internal(errors.PhaseAssemble,
				"state %d assigned twice or out of range", m.State))
		}
	}
	if !states.Dense(len(markers)) {
		errs = multierr.Append(errs, errors.Internal(errors.PhaseAssemble,
			"states are not dense in 1..%d", len(markers)))
	}

	sc := newScopeChecker(free)
	sc.visit(tree)
	for _, v := range sc.unscoped {
		errs = multierr.Append(errs, errors.Internal(errors.PhaseAssemble,
			"variable %s referenced outside its scope", v.Name))
	}
	return errs
}

// freeVariables returns the variables n references without declaring.
func freeVariables(n expr.Node) map[*expr.Variable]bool {
	sc := newScopeChecker(nil)
	sc.visit(n)
	free := make(map[*expr.Variable]bool, len(sc.unscoped))
	for _, v := range sc.unscoped {
		free[v] = true
	}
	return free
}

// scopeChecker records variable references that no enclosing declaration
// covers.
type scopeChecker struct {
	free     map[*expr.Variable]bool
	scopes   [][]*expr.Variable
	seen     map[*expr.Variable]bool
	unscoped []*expr.Variable
}

func newScopeChecker(free map[*expr.Variable]bool) *scopeChecker {
	return &scopeChecker{free: free, seen: make(map[*expr.Variable]bool)}
}

func (c *scopeChecker) declared(v *expr.Variable) bool {
	if c.free[v] {
		return true
	}
	for i := len(c.scopes) - 1; i >= 0; i-- {
		for _, d := range c.scopes[i] {
			if d == v {
				return true
			}
		}
	}
	return false
}

func (c *scopeChecker) within(vars []*expr.Variable, fn func()) {
	c.scopes = append(c.scopes, vars)
	fn()
	c.scopes = c.scopes[:len(c.scopes)-1]
}

func (c *scopeChecker) visit(n expr.Node) {
	switch n := n.(type) {
	case nil:
	case *expr.Variable:
		if !c.declared(n) && !c.seen[n] {
			c.seen[n] = true
			c.unscoped = append(c.unscoped, n)
		}
	case *expr.Block:
		c.within(n.Vars, func() {
			for _, e := range n.Exprs {
				c.visit(e)
			}
		})
	case *expr.Lambda:
		c.within(n.Params, func() { c.visit(n.Body) })
	case *expr.Try:
		c.visit(n.Body)
		for _, h := range n.Handlers {
			var vars []*expr.Variable
			if h.Var != nil {
				vars = []*expr.Variable{h.Var}
			}
			c.within(vars, func() {
				c.visit(h.Filter)
				c.visit(h.Body)
			})
		}
		c.visit(n.Finally)
		c.visit(n.Fault)
	default:
		for _, k := range expr.Children(n) {
			c.visit(k)
		}
	}
}
