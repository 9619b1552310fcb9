package rewrite

import (
	"strconv"

	"github.com/wippyai/genlower/expr"
)

// Marker is the resume point of one value-producing yield.
//
// Label is where a resume with State must jump to reach the yield. It
// starts as the label placed right after the yield and is redirected
// outward by every try region that cannot be entered mid-body, so the
// outermost dispatch always jumps to the innermost position it may
// legally reach. Routers emitted inside a region capture Label before the
// region redirects it.
type Marker struct {
	Label *expr.LabelTarget
	State int64
}

// Redirect points the marker at label. Earlier routers keep the label
// they were built with.
func (m *Marker) Redirect(label *expr.LabelTarget) {
	m.Label = label
}

// registry allocates markers in traversal order.
type registry struct {
	markers []*Marker
}

// next allocates the marker with the next dense state and a fresh resume
// label.
func (r *registry) next() *Marker {
	state := expr.FirstState + int64(len(r.markers))
	m := &Marker{
		State: state,
		Label: expr.NewLabel("resume" + strconv.FormatInt(state, 10)),
	}
	r.markers = append(r.markers, m)
	return m
}

// mark returns a position that since can later slice from.
func (r *registry) mark() int {
	return len(r.markers)
}

// since returns the markers allocated after pos.
func (r *registry) since(pos int) []*Marker {
	return r.markers[pos:]
}

// all returns every allocated marker in state order.
func (r *registry) all() []*Marker {
	return r.markers
}

// router returns a switch on state that jumps to the current label of each
// marker. Unmatched states fall through.
func router(state *expr.Variable, markers []*Marker) expr.Node {
	sw := &expr.Switch{Value: state}
	for _, m := range markers {
		sw.Cases = append(sw.Cases, expr.Case(expr.Jump(m.Label), m.State))
	}
	return sw
}

// redirect points every marker at label.
func redirect(markers []*Marker, label *expr.LabelTarget) {
	for _, m := range markers {
		m.Redirect(label)
	}
}
