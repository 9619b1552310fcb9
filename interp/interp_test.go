package interp

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	generrors "github.com/wippyai/genlower/errors"
	"github.com/wippyai/genlower/expr"
)

func i64(v int64) *expr.Constant { return expr.Const(v) }

func run(t *testing.T, n expr.Node, opts ...Option) any {
	t.Helper()
	p, err := Compile(n, opts...)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	v, err := p.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return v
}

type recorder struct {
	log []any
}

func (r *recorder) method(name string) *expr.Method {
	return &expr.Method{Name: name, Fn: func(_ any, args []any) (any, error) {
		if len(args) == 0 {
			r.log = append(r.log, name)
			return nil, nil
		}
		r.log = append(r.log, args[0])
		return args[0], nil
	}}
}

func TestRun_Values(t *testing.T) {
	x := expr.Var("x")
	tests := []struct {
		name string
		node expr.Node
		want any
	}{
		{"constant", i64(3), int64(3)},
		{"block value is last", expr.Seq(i64(1), i64(2)), int64(2)},
		{"empty block", expr.Seq(), nil},
		{"assign returns value", expr.Scope([]*expr.Variable{x}, expr.Set(x, i64(4))), int64(4)},
		{"arithmetic", expr.Op("*", expr.Op("+", i64(1), i64(2)), i64(4)), int64(12)},
		{"mixed arithmetic", expr.Op("+", i64(1), expr.Const(0.5)), 1.5},
		{"string concat", expr.Op("+", expr.Const("n="), i64(2)), "n=2"},
		{"dot concat", expr.Op("..", i64(1), expr.Const(true)), "1true"},
		{"comparison", expr.Op("<", expr.Const("a"), expr.Const("b")), true},
		{"equality across numbers", expr.Eq(i64(2), expr.Const(2.0)), true},
		{"not", &expr.Unary{Op: "!", Operand: expr.Nil()}, true},
		{"negate", &expr.Unary{Op: "-", Operand: i64(5)}, int64(-5)},
		{"and short-circuits", expr.Op("&&", expr.Const(false), &expr.Unary{Op: "-", Operand: expr.Const("x")}), false},
		{"or", expr.Op("||", expr.Nil(), expr.Const("y")), true},
		{"condition", expr.IfElse(expr.Const(""), i64(1), i64(2)), int64(2)},
		{"array length", &expr.Member{Object: &expr.NewArray{Elems: []expr.Node{i64(1), i64(2)}}, Name: "length"}, int64(2)},
		{"index", &expr.Index{Object: &expr.NewArray{Elems: []expr.Node{i64(5), i64(6)}}, Args: []expr.Node{i64(1)}}, int64(6)},
		{"switch", &expr.Switch{Value: i64(2), Cases: []*expr.SwitchCase{
			expr.Case(expr.Const("one"), int64(1)),
			expr.Case(expr.Const("two"), int64(2), int64(3)),
		}, Default: expr.Const("other")}, "two"},
		{"switch default", &expr.Switch{Value: i64(9), Cases: []*expr.SwitchCase{
			expr.Case(expr.Const("one"), int64(1)),
		}, Default: expr.Const("other")}, "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, run(t, tt.node)); diff != "" {
				t.Errorf("value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRun_Objects(t *testing.T) {
	o := expr.Var("o")
	n := expr.Scope([]*expr.Variable{o},
		expr.Set(o, &expr.New{}),
		expr.Set(&expr.Member{Object: o, Name: "a"}, i64(1)),
		expr.Set(&expr.Index{Object: o, Args: []expr.Node{expr.Const("b")}}, i64(2)),
		expr.Op("+", &expr.Member{Object: o, Name: "b"}, &expr.Index{Object: o, Args: []expr.Node{expr.Const("a")}}),
	)
	if got := run(t, n); got != int64(3) {
		t.Errorf("got %v, want 3", got)
	}
}

func TestRun_GotoIntoNestedBlocks(t *testing.T) {
	rec := &recorder{}
	log := rec.method("log")
	inner := expr.NewLabel("inner")
	skip := expr.NewLabel("skip")

	n := expr.Seq(
		expr.Jump(skip),
		expr.CallFn(log, expr.Const("skipped")),
		expr.Mark(skip),
		expr.Jump(inner),
		expr.IfElse(expr.Const(false),
			expr.Seq(expr.CallFn(log, expr.Const("then")), expr.Mark(inner), expr.CallFn(log, expr.Const("after inner"))),
			expr.CallFn(log, expr.Const("else")),
		),
		expr.CallFn(log, expr.Const("end")),
	)
	run(t, n)
	if diff := cmp.Diff([]any{"after inner", "end"}, rec.log); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_GotoIntoLoopAndSwitch(t *testing.T) {
	rec := &recorder{}
	log := rec.method("log")
	i := expr.Var("i")
	mid := expr.NewLabel("mid")
	inCase := expr.NewLabel("case")
	brk := expr.NewLabel("brk")
	cont := expr.NewLabel("cont")

	n := expr.Scope([]*expr.Variable{i},
		expr.Set(i, i64(0)),
		expr.Jump(mid),
		&expr.Loop{Break: brk, Continue: cont, Body: expr.Seq(
			expr.CallFn(log, expr.Const("top")),
			expr.If(expr.Eq(i, i64(2)), expr.Jump(brk)),
			expr.Mark(mid),
			expr.Set(i, expr.Op("+", i, i64(1))),
			expr.CallFn(log, i),
			expr.Jump(cont),
			expr.CallFn(log, expr.Const("unreachable")),
		)},
		expr.Jump(inCase),
		&expr.Switch{Value: i64(0), Cases: []*expr.SwitchCase{
			expr.Case(expr.Seq(expr.Mark(inCase), expr.CallFn(log, expr.Const("case"))), int64(1)),
		}},
	)
	run(t, n)
	want := []any{int64(1), "top", int64(2), "top", "case"}
	if diff := cmp.Diff(want, rec.log); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_GotoIntoTryRejected(t *testing.T) {
	l := expr.NewLabel("in")
	n := expr.Seq(expr.Jump(l), &expr.Try{Body: expr.Seq(expr.Mark(l)), Finally: expr.Nil()})
	p, err := Compile(n)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	_, err = p.Run()
	if !errors.Is(err, &generrors.Error{Phase: generrors.PhaseRuntime, Kind: generrors.KindInternal}) {
		t.Errorf("err = %v, want internal error", err)
	}
}

func TestCompile_DuplicateLabel(t *testing.T) {
	l := expr.NewLabel("x")
	_, err := Compile(expr.Seq(expr.Mark(l), expr.Seq(expr.Mark(l))))
	if !errors.Is(err, &generrors.Error{Phase: generrors.PhaseRuntime, Kind: generrors.KindInvalidInput}) {
		t.Errorf("err = %v, want invalid input", err)
	}
}

func TestRun_TryFinallyFault(t *testing.T) {
	rec := &recorder{}
	log := rec.method("log")
	e := expr.Var("e")

	tests := []struct {
		name string
		node expr.Node
		want any
		log  []any
	}{
		{
			name: "finally on normal exit",
			node: &expr.Try{Body: i64(1), Finally: expr.CallFn(log, expr.Const("fin")), Fault: expr.CallFn(log, expr.Const("fault"))},
			want: int64(1),
			log:  []any{"fin"},
		},
		{
			name: "catch then finally",
			node: &expr.Try{
				Body:     &expr.Throw{Value: expr.Const("x")},
				Handlers: []*expr.Catch{{Class: "Other", Body: expr.Const("wrong")}, {Var: e, Body: &expr.Member{Object: e, Name: "value"}}},
				Finally:  expr.CallFn(log, expr.Const("fin")),
			},
			want: "x",
			log:  []any{"fin"},
		},
		{
			name: "filter rejects",
			node: &expr.Try{Body: &expr.Try{
				Body:     &expr.Throw{Value: expr.Const("x")},
				Handlers: []*expr.Catch{{Var: e, Filter: expr.Const(false), Body: expr.Const("inner")}},
				Fault:    expr.CallFn(log, expr.Const("fault")),
			}, Handlers: []*expr.Catch{{Body: expr.Const("outer")}}},
			want: "outer",
			log:  []any{"fault"},
		},
		{
			name: "rethrow reaches outer handler",
			node: &expr.Try{Body: &expr.Try{
				Body:     &expr.Throw{Value: expr.Const("x")},
				Handlers: []*expr.Catch{{Body: expr.Seq(expr.CallFn(log, expr.Const("inner")), &expr.Throw{})}},
			}, Handlers: []*expr.Catch{{Var: e, Body: &expr.TypeIs{Operand: e, Class: "Error"}}}},
			want: true,
			log:  []any{"inner"},
		},
		{
			name: "finally jump overrides throw",
			node: func() expr.Node {
				out := expr.NewLabel("out")
				return expr.Seq(
					&expr.Try{Body: &expr.Throw{Value: expr.Const("x")}, Finally: expr.Jump(out)},
					expr.CallFn(log, expr.Const("skipped")),
					expr.Mark(out),
					expr.Const("landed"),
				)
			}(),
			want: "landed",
		},
		{
			name: "host exception is thrown",
			node: &expr.Try{
				Body:     expr.Op("/", i64(1), i64(0)),
				Handlers: []*expr.Catch{{Class: "ArithmeticError", Body: expr.Const("div")}},
			},
			want: "div",
		},
		{
			name: "index out of range throws",
			node: &expr.Try{
				Body:     &expr.Index{Object: &expr.NewArray{}, Args: []expr.Node{i64(0)}},
				Handlers: []*expr.Catch{{Class: "IndexError", Body: expr.Const("oob")}},
			},
			want: "oob",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec.log = nil
			if diff := cmp.Diff(tt.want, run(t, tt.node)); diff != "" {
				t.Errorf("value mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.log, rec.log); diff != "" {
				t.Errorf("log mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRun_Uncaught(t *testing.T) {
	p, err := Compile(&expr.Throw{Value: expr.Const("boom")})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	_, err = p.Run()
	var exc *Exception
	if !errors.As(err, &exc) {
		t.Fatalf("err = %v, want an exception", err)
	}
	if exc.Class != "Error" || exc.Value != "boom" {
		t.Errorf("exception = %v", exc)
	}
	if !errors.Is(err, &generrors.Error{Phase: generrors.PhaseRuntime, Kind: generrors.KindUncaught}) {
		t.Errorf("err = %v, want uncaught", err)
	}
}

func TestRun_ClosuresAndByRef(t *testing.T) {
	x := expr.Var("x")
	cell := expr.RefParam("cell")
	f := expr.Var("f")

	n := expr.Scope([]*expr.Variable{x, f},
		expr.Set(x, i64(1)),
		expr.Set(f, &expr.Lambda{Name: "bump", Body: expr.Seq(
			expr.Set(x, expr.Op("+", x, i64(10))),
			expr.Ret(x),
		)}),
		&expr.Invoke{Fn: f},
	)
	if got := run(t, n); got != int64(11) {
		t.Errorf("closure result = %v, want 11", got)
	}

	set := &expr.Lambda{Params: []*expr.Variable{cell}, Body: expr.Set(cell, i64(42))}
	c, ok := run(t, set).(*Closure)
	if !ok {
		t.Fatal("lambda should evaluate to a closure")
	}
	out := &Cell{}
	if _, err := c.Call(out); err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if out.Value != int64(42) {
		t.Errorf("by-ref cell = %v, want 42", out.Value)
	}
}

func TestRun_StepLimit(t *testing.T) {
	l := expr.NewLabel("top")
	n := expr.Seq(expr.Mark(l), expr.Jump(l))
	p, err := Compile(n, WithStepLimit(100))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	_, err = p.Run()
	if !errors.Is(err, &generrors.Error{Phase: generrors.PhaseRuntime, Kind: generrors.KindLimit}) {
		t.Errorf("err = %v, want step limit", err)
	}
}

func TestRun_CustomOperator(t *testing.T) {
	r := DefaultRegistry()
	r.RegisterBinary("max", func(a, b any) (any, error) {
		if a.(int64) > b.(int64) {
			return a, nil
		}
		return b, nil
	})
	if got := run(t, expr.Op("max", i64(3), i64(7)), WithRegistry(r)); got != int64(7) {
		t.Errorf("max = %v, want 7", got)
	}
	if missing := r.Missing([]string{"+", "max", "pow"}); !cmp.Equal(missing, []string{"pow"}) {
		t.Errorf("Missing = %v, want [pow]", missing)
	}

	p, err := Compile(expr.Op("pow", i64(2), i64(3)))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if _, err := p.Run(); !errors.Is(err, &generrors.Error{Phase: generrors.PhaseRuntime, Kind: generrors.KindNotFound}) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestRun_RejectsUnloweredYield(t *testing.T) {
	gen := expr.NewTarget("gen")
	p, err := Compile(expr.YieldOf(gen, i64(1)))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if _, err := p.Run(); !errors.Is(err, &generrors.Error{Phase: generrors.PhaseRuntime, Kind: generrors.KindUnsupported}) {
		t.Errorf("err = %v, want unsupported", err)
	}
}
