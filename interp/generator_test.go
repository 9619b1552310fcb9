package interp

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	generrors "github.com/wippyai/genlower/errors"
	"github.com/wippyai/genlower/expr"
)

// counter builds a resume lambda by hand: it yields 1..n and records the
// states it was resumed with.
func counter(n int64, seen *[]int64) *expr.MakeGenerator {
	state := expr.RefParam("state")
	current := expr.RefParam("current")
	record := &expr.Method{Name: "seen", Fn: func(_ any, args []any) (any, error) {
		*seen = append(*seen, args[0].(int64))
		return nil, nil
	}}

	next := expr.Op("+", state, i64(1))
	return &expr.MakeGenerator{Resume: &expr.Lambda{
		Name:   "counter",
		Params: []*expr.Variable{state, current},
		Body: expr.Seq(
			expr.CallFn(record, state),
			expr.If(expr.Eq(state, i64(expr.StateNotStarted)), expr.Set(state, i64(0))),
			expr.If(expr.Op("<", state, i64(0)), expr.Seq(
				expr.Set(state, i64(expr.StateFinished)),
				expr.Ret(i64(expr.NextFinished)),
			)),
			expr.If(expr.Op(">=", state, i64(n)), expr.Seq(
				expr.Set(state, i64(expr.StateFinished)),
				expr.Ret(i64(expr.NextFinished)),
			)),
			expr.Set(current, next),
			expr.Set(state, next),
			expr.Ret(i64(expr.NextYielded)),
		),
	}}
}

func startGenerator(t *testing.T, n expr.Node) *Generator {
	t.Helper()
	g, err := AsGenerator(run(t, n))
	if err != nil {
		t.Fatalf("AsGenerator failed: %v", err)
	}
	return g
}

func TestGenerator_Protocol(t *testing.T) {
	var seen []int64
	g := startGenerator(t, counter(2, &seen))

	if g.State() != expr.StateNotStarted {
		t.Errorf("initial State = %d, want not started", g.State())
	}
	got, err := Collect(g, 0)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if diff := cmp.Diff([]any{int64(1), int64(2)}, got); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
	if !g.Done() || g.State() != expr.StateFinished {
		t.Errorf("Done = %v, State = %d after exhaustion", g.Done(), g.State())
	}
	if more, err := g.Next(); more || err != nil {
		t.Errorf("Next after finish = %v, %v", more, err)
	}
	if diff := cmp.Diff([]int64{-1, 1, 2}, seen); diff != "" {
		t.Errorf("resume states mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerator_CollectLimit(t *testing.T) {
	var seen []int64
	g := startGenerator(t, counter(5, &seen))
	got, err := Collect(g, 2)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(got) != 2 || g.Done() {
		t.Errorf("Collect(2) = %v, done = %v", got, g.Done())
	}
}

func TestGenerator_DisposeSendsDisposeState(t *testing.T) {
	var seen []int64
	g := startGenerator(t, counter(5, &seen))
	if more, err := g.Next(); !more || err != nil {
		t.Fatalf("Next = %v, %v", more, err)
	}
	if err := g.Dispose(); err != nil {
		t.Fatalf("Dispose failed: %v", err)
	}
	if !g.Done() {
		t.Error("disposed generator should be done")
	}
	want := []int64{expr.StateNotStarted, expr.DisposeState(1)}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("resume states mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerator_DisposeNotStarted(t *testing.T) {
	var seen []int64
	g := startGenerator(t, counter(5, &seen))
	if err := g.Dispose(); err != nil {
		t.Fatalf("Dispose failed: %v", err)
	}
	if len(seen) != 0 {
		t.Errorf("dispose of a fresh generator resumed it: %v", seen)
	}
	if more, _ := g.Next(); more {
		t.Error("disposed generator produced a value")
	}
}

func TestGenerator_BadResumeCode(t *testing.T) {
	state := expr.RefParam("state")
	current := expr.RefParam("current")
	bad := &expr.MakeGenerator{Resume: &expr.Lambda{
		Params: []*expr.Variable{state, current},
		Body:   expr.Ret(expr.Const("nope")),
	}}
	g := startGenerator(t, bad)
	_, err := g.Next()
	if !errors.Is(err, &generrors.Error{Phase: generrors.PhaseRuntime, Kind: generrors.KindInternal}) {
		t.Errorf("err = %v, want internal error", err)
	}
	if !g.Done() {
		t.Error("generator should be finished after a failed step")
	}
}

func TestSequence_IndependentIterators(t *testing.T) {
	var seen []int64
	seq := &expr.MakeSequence{Factory: &expr.Lambda{Body: counter(3, &seen)}}
	s, ok := run(t, seq).(*Sequence)
	if !ok {
		t.Fatal("make_sequence should evaluate to a Sequence")
	}

	a, err := s.Iterator()
	if err != nil {
		t.Fatalf("Iterator failed: %v", err)
	}
	if _, err := a.Next(); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	b, err := AsGenerator(s)
	if err != nil {
		t.Fatalf("AsGenerator failed: %v", err)
	}
	if b.State() != expr.StateNotStarted {
		t.Errorf("new iterator starts at state %d", b.State())
	}
	rest, err := Collect(b, 0)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(rest) != 3 {
		t.Errorf("second iterator yielded %v, want three values", rest)
	}
	if a.Current() != int64(1) || a.State() != 1 {
		t.Errorf("first iterator changed: current %v state %d", a.Current(), a.State())
	}
}

func TestAsGenerator_TypeMismatch(t *testing.T) {
	_, err := AsGenerator(int64(3))
	if !errors.Is(err, &generrors.Error{Phase: generrors.PhaseRuntime, Kind: generrors.KindTypeMismatch}) {
		t.Errorf("err = %v, want type mismatch", err)
	}
}
