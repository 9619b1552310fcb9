package rewrite

import (
	"slices"

	"github.com/wippyai/genlower/expr"
)

// assemble wraps the rewritten body into the resume lambda:
//
//	[hoisted, temps, router, disposing] {
//	  router = running; disposing = false
//	  make_generator func(&state, &current) {
//	    switch state {
//	    case k: goto resume_k
//	    case dispose(k): disposing = true; state = k; goto resume_k
//	    case finished: goto end
//	    }
//	    state = finished
//	    body
//	    state = finished
//	  end:
//	    return finished
//	  }
//	}
//
// Restartable generators get a factory lambda around the whole block so
// each iteration starts from fresh machine state.
func (p *pass) assemble(body expr.Node) expr.Node {
	end := expr.NewLabel("end")

	dispatch := &expr.Switch{Value: p.state}
	for _, m := range p.markers.all() {
		dispatch.Cases = append(dispatch.Cases,
			expr.Case(expr.Jump(m.Label), m.State),
			expr.Case(expr.Seq(
				expr.Set(p.disposing, expr.Const(true)),
				expr.Set(p.state, expr.Const(m.State)),
				expr.Jump(m.Label),
			), expr.DisposeState(m.State)),
		)
	}
	dispatch.Cases = append(dispatch.Cases, expr.Case(expr.Jump(end), expr.StateFinished))

	resume := &expr.Lambda{
		Name:   p.def.Name,
		Params: []*expr.Variable{p.state, p.current},
		Body: expr.Seq(
			dispatch,
			expr.Set(p.state, expr.Const(expr.StateFinished)),
			body,
			expr.Set(p.state, expr.Const(expr.StateFinished)),
			expr.Mark(end),
			expr.Ret(expr.Const(expr.NextFinished)),
		),
	}

	vars := slices.Concat(p.hoisted, p.temps, []*expr.Variable{p.router, p.disposing})
	machine := expr.Scope(vars,
		expr.Set(p.router, expr.Const(expr.RouterRunning)),
		expr.Set(p.disposing, expr.Const(false)),
		&expr.MakeGenerator{Resume: resume},
	)
	if !p.def.Restartable {
		return machine
	}
	return &expr.MakeSequence{Factory: &expr.Lambda{Name: p.def.Name, Body: machine}}
}
