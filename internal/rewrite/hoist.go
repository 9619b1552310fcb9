package rewrite

import (
	"go.uber.org/zap"

	"github.com/wippyai/genlower/expr"
)

// hoist moves the declarations of a suspending block into machine scope
// and returns the resets that clear them on each entry of the block. A
// resume jumps past the resets. Hoisted variables live in one machine
// slot, so closures created on different entries share it.
func (p *pass) hoist(vars []*expr.Variable) []expr.Node {
	if len(vars) == 0 {
		return nil
	}
	resets := make([]expr.Node, 0, len(vars))
	for _, v := range vars {
		p.declare(v)
		resets = append(resets, expr.Set(v, expr.Nil()))
	}
	return resets
}

// declare adds v to the hoisted set once. Identity decides, not name.
func (p *pass) declare(v *expr.Variable) {
	if p.hoistedSet[v] {
		return
	}
	p.hoistedSet[v] = true
	p.hoisted = append(p.hoisted, v)
	p.log.Debug("hoist", zap.String("var", v.Name), zap.Int("hoisted", len(p.hoisted)))
}

// temp allocates a machine-owned temporary.
func (p *pass) temp(name string) *expr.Variable {
	v := expr.Var(name)
	p.tempSet[v] = true
	p.temps = append(p.temps, v)
	return v
}
