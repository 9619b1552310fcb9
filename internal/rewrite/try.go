package rewrite

import (
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/genlower/errors"
	"github.com/wippyai/genlower/expr"
)

// Escalation tiers of a try region.
const (
	tierNone    = 0 // nothing suspends
	tierBody    = 1 // the protected body suspends
	tierCatch   = 2 // a handler body suspends
	tierFinally = 3 // the finally suspends
)

// try rewrites a try region whose body, handlers or finally suspend.
//
// A resume may not enter a protected region mid-body, so every marker
// inside is routed from a label placed before the try through a router at
// the top of the body. Suspending handlers are deferred until after the
// try, suspending finally blocks are inlined after it.
func (p *pass) try(t *expr.Try) (expr.Node, error) {
	if p.hasYield(t.Fault) {
		return nil, errors.YieldInFault(nil)
	}
	for _, h := range t.Handlers {
		if p.hasYield(h.Filter) {
			return nil, errors.YieldInFilter(nil)
		}
	}

	tier := tierBody
	pos := p.markers.mark()
	region, err := p.stmt(t.Body)
	if err != nil {
		return nil, err
	}
	markers := slices.Clone(p.markers.since(pos))

	var (
		handlers     []*expr.Catch
		deferred     []expr.Node
		catchMarkers []*Marker
	)
	for _, h := range t.Handlers {
		if !p.hasYield(h.Body) {
			handlers = append(handlers, h)
			continue
		}
		capture, run, hm, err := p.deferCatch(h)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, capture)
		deferred = append(deferred, run)
		catchMarkers = append(catchMarkers, hm...)
	}

	if len(deferred) > 0 {
		tier = tierCatch
		inner := p.protect(region, markers, &expr.Try{Handlers: handlers})
		region = expr.Seq(append([]expr.Node{inner}, deferred...)...)
		markers = append(markers, catchMarkers...)
		handlers = nil
	}

	if p.hasYield(t.Finally) {
		tier = tierFinally
		fpos := p.markers.mark()
		p.finallyDepth++
		fin, err := p.stmt(t.Finally)
		p.finallyDepth--
		if err != nil {
			return nil, err
		}
		finMarkers := slices.Clone(p.markers.since(fpos))

		if len(handlers) > 0 || t.Fault != nil {
			region = p.protect(region, markers, &expr.Try{Handlers: handlers, Fault: t.Fault})
		}
		p.logTier(tier, len(markers), len(finMarkers))
		return p.inlineFinally(region, markers, fin, finMarkers), nil
	}

	p.logTier(tier, len(markers), 0)
	if len(handlers) == 0 && t.Finally == nil && t.Fault == nil {
		return region, nil
	}
	fin := t.Finally
	if fin != nil && len(markers) > 0 {
		fin = expr.If(expr.Ne(p.router, expr.Const(expr.RouterYielding)), fin)
	}
	return p.protect(region, markers, &expr.Try{Handlers: handlers, Finally: fin, Fault: t.Fault}), nil
}

func (p *pass) logTier(tier, markers, finallyMarkers int) {
	p.log.Debug("try region",
		zap.Int("tier", tier),
		zap.Int("markers", markers),
		zap.Int("finally_markers", finallyMarkers))
}

// protect wraps region as the body of t. When markers suspend inside the
// region, a label is placed before the try, the body starts with a router
// to the markers, and the markers are redirected to the label.
func (p *pass) protect(region expr.Node, markers []*Marker, t *expr.Try) expr.Node {
	if len(markers) == 0 {
		t.Body = region
		return t
	}
	start := expr.NewLabel("try")
	t.Body = expr.Seq(router(p.state, markers), region)
	redirect(markers, start)
	return expr.Seq(expr.Mark(start), t)
}

// deferCatch splits a suspending handler into a capture that stores the
// exception in a slot and a guarded run of the handler after the try.
// The handler variable is hoisted, and a rethrow in the handler becomes a
// throw of that variable.
func (p *pass) deferCatch(h *expr.Catch) (*expr.Catch, expr.Node, []*Marker, error) {
	slot := p.temp("slot")
	exc := h.Var
	if exc == nil {
		exc = expr.Var("e")
	}
	p.declare(exc)

	caught := expr.Var("caught")
	filter := h.Filter
	if filter != nil && h.Var != nil {
		filter = substitute(filter, h.Var, caught)
	}
	capture := &expr.Catch{
		Class:  h.Class,
		Var:    caught,
		Filter: filter,
		Body:   expr.Set(slot, caught),
	}

	pos := p.markers.mark()
	body, err := p.stmt(bindRethrow(h.Body, exc))
	if err != nil {
		return nil, nil, nil, err
	}
	markers := slices.Clone(p.markers.since(pos))

	run := expr.If(expr.Ne(slot, expr.Nil()), expr.Seq(
		expr.Set(exc, slot),
		expr.Set(slot, expr.Nil()),
		body,
	))
	return capture, run, markers, nil
}

// inlineFinally replaces a try whose finally suspends:
//
//	saved = nil; pending = 0
//	try_label:
//	try { router; region } catch ex { saved = ex }
//	finally_label:
//	router
//	if router == yielding goto finally_end
//	finally
//	if saved != nil { exc = saved; saved = nil; throw exc }
//	if disposing { state = finished; return finished }
//	switch pending { case i: pending = 0; exit_i }
//	finally_end:
//
// Every exit from the region other than a suspension sets pending and
// jumps to the finally, which replays the exit once it completes.
func (p *pass) inlineFinally(region expr.Node, markers []*Marker, fin expr.Node, finMarkers []*Marker) expr.Node {
	tryStart := expr.NewLabel("try")
	finStart := expr.NewLabel("finally")
	finEnd := expr.NewLabel("endfinally")
	saved := p.temp("saved")
	pending := p.temp("pending")
	exc := p.temp("exc")
	ex := expr.Var("ex")

	region, exits := p.routeExits(region, pending, finStart)
	body := region
	if len(markers) > 0 {
		body = expr.Seq(router(p.state, markers), region)
		redirect(markers, tryStart)
	}
	finRouter := router(p.state, finMarkers)
	redirect(finMarkers, finStart)

	out := []expr.Node{
		expr.Set(saved, expr.Nil()),
		expr.Set(pending, expr.Const(int64(0))),
		expr.Mark(tryStart),
		&expr.Try{
			Body:     body,
			Handlers: []*expr.Catch{{Var: ex, Body: expr.Set(saved, ex)}},
		},
		expr.Mark(finStart),
		finRouter,
		expr.If(expr.Eq(p.router, expr.Const(expr.RouterYielding)), expr.Jump(finEnd)),
		fin,
		expr.If(expr.Ne(saved, expr.Nil()), expr.Seq(
			expr.Set(exc, saved),
			expr.Set(saved, expr.Nil()),
			&expr.Throw{Value: exc},
		)),
	}
	if p.finallyDepth == 0 {
		out = append(out, p.disposeExit())
	}
	if len(exits) > 0 {
		dispatch := &expr.Switch{Value: pending}
		for i, exit := range exits {
			dispatch.Cases = append(dispatch.Cases, expr.Case(
				expr.Seq(expr.Set(pending, expr.Const(int64(0))), exit),
				int64(i+1),
			))
		}
		out = append(out, dispatch)
	}
	out = append(out, expr.Mark(finEnd))
	return expr.Seq(out...)
}

// routeExits rewrites every exit from region that is not a suspension:
// gotos to labels defined outside region, and returns. Each becomes
// pending = i; goto finStart. The original exits are returned in order.
func (p *pass) routeExits(region expr.Node, pending *expr.Variable, finStart *expr.LabelTarget) (expr.Node, []expr.Node) {
	inside := definedLabels(region)
	var exits []expr.Node
	rw := expr.Rewriter{
		Skip: isLambda,
		Post: func(n expr.Node) expr.Node {
			switch n := n.(type) {
			case *expr.Goto:
				if inside[n.Target] {
					return n
				}
			case *expr.Return:
				if p.suspends[n] {
					return n
				}
			default:
				return n
			}
			exits = append(exits, n)
			return expr.Seq(
				expr.Set(pending, expr.Const(int64(len(exits)))),
				expr.Jump(finStart),
			)
		},
	}
	return rw.Apply(region), exits
}

// definedLabels returns the jump targets defined within n, including the
// break and continue targets of loops.
func definedLabels(n expr.Node) map[*expr.LabelTarget]bool {
	set := make(map[*expr.LabelTarget]bool)
	expr.Walk(n, func(k expr.Node) bool {
		switch k := k.(type) {
		case *expr.Lambda:
			return false
		case *expr.Label:
			set[k.Target] = true
		case *expr.Loop:
			if k.Break != nil {
				set[k.Break] = true
			}
			if k.Continue != nil {
				set[k.Continue] = true
			}
		}
		return true
	})
	return set
}

// bindRethrow replaces rethrows that refer to the handler being deferred
// with a throw of exc. Rethrows in nested handlers refer to their own
// exception and nested functions are not part of the handler.
func bindRethrow(n expr.Node, exc *expr.Variable) expr.Node {
	switch n := n.(type) {
	case nil:
		return nil
	case *expr.Throw:
		if n.Value == nil {
			return &expr.Throw{Value: exc}
		}
	case *expr.Lambda:
		return n
	case *expr.Try:
		body := bindRethrow(n.Body, exc)
		fin := bindRethrow(n.Finally, exc)
		fault := bindRethrow(n.Fault, exc)
		if body == n.Body && fin == n.Finally && fault == n.Fault {
			return n
		}
		return &expr.Try{Body: body, Handlers: n.Handlers, Finally: fin, Fault: fault}
	}
	out, _ := expr.MapChildren(n, func(k expr.Node) (expr.Node, error) {
		return bindRethrow(k, exc), nil
	})
	return out
}

// substitute replaces references to from with to.
func substitute(n expr.Node, from, to *expr.Variable) expr.Node {
	return expr.Rewrite(n, func(k expr.Node) expr.Node {
		if k == expr.Node(from) {
			return to
		}
		return k
	})
}
