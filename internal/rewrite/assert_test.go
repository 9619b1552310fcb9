package rewrite

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/multierr"

	generrors "github.com/wippyai/genlower/errors"
	"github.com/wippyai/genlower/expr"
)

func TestVerify(t *testing.T) {
	x := expr.Var("x")
	bound := expr.NewLabel("bound")
	loose := expr.NewLabel("loose")
	brk := expr.NewLabel("brk")

	tests := []struct {
		name    string
		tree    expr.Node
		markers []*Marker
		free    map[*expr.Variable]bool
		want    string
	}{
		{
			name:    "valid",
			tree:    expr.Scope([]*expr.Variable{x}, expr.Set(x, i64(1)), expr.Mark(bound), expr.Jump(bound)),
			markers: []*Marker{{Label: bound, State: 1}},
		},
		{
			name: "loop targets resolve",
			tree: &expr.Loop{Break: brk, Body: expr.Jump(brk)},
		},
		{
			name:    "unbound marker",
			tree:    expr.Seq(),
			markers: []*Marker{{Label: loose, State: 1}},
			want:    "unbound label",
		},
		{
			name: "label bound twice",
			tree: expr.Seq(expr.Mark(bound), expr.Mark(bound)),
			want: "bound 2 times",
		},
		{
			name: "goto without label",
			tree: expr.Jump(loose),
			want: "has no label",
		},
		{
			name: "sparse states",
			tree: expr.Seq(expr.Mark(bound), expr.Mark(loose)),
			markers: []*Marker{
				{Label: bound, State: 1},
				{Label: loose, State: 3},
			},
			want: "not dense",
		},
		{
			name: "duplicate state",
			tree: expr.Seq(expr.Mark(bound), expr.Mark(loose)),
			markers: []*Marker{
				{Label: bound, State: 1},
				{Label: loose, State: 1},
			},
			want: "assigned twice",
		},
		{
			name: "variable outside scope",
			tree: expr.Seq(expr.Scope([]*expr.Variable{x}), expr.Set(x, i64(1))),
			want: "outside its scope",
		},
		{
			name: "free variable allowed",
			tree: expr.Set(x, i64(1)),
			free: map[*expr.Variable]bool{x: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verify(tt.tree, tt.markers, tt.free)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("verify failed: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected an error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
			for _, e := range multierr.Errors(err) {
				if !errors.Is(e, &generrors.Error{Phase: generrors.PhaseAssemble, Kind: generrors.KindInternal}) {
					t.Errorf("error %v is not an internal assemble error", e)
				}
			}
		})
	}
}

func TestFreeVariables(t *testing.T) {
	x := expr.Var("x")
	y := expr.Var("y")
	p := expr.Var("p")
	e := expr.Var("e")
	n := expr.Seq(
		expr.Set(x, i64(1)),
		expr.Scope([]*expr.Variable{y}, expr.Set(y, x)),
		&expr.Lambda{Params: []*expr.Variable{p}, Body: p},
		&expr.Try{Body: expr.Nil(), Handlers: []*expr.Catch{{Var: e, Body: e}}},
	)

	free := freeVariables(n)
	if len(free) != 1 || !free[x] {
		t.Errorf("free = %v, want only x", free)
	}
}
