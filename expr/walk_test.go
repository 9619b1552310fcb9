package expr

import (
	"strings"
	"testing"
)

func TestMapChildren_Unchanged(t *testing.T) {
	x := Var("x")
	n := Seq(Set(x, Const(int64(1))), Op("+", x, Const(int64(2))))

	out, err := MapChildren(n, func(k Node) (Node, error) { return k, nil })
	if err != nil {
		t.Fatalf("MapChildren: %v", err)
	}
	if out != Node(n) {
		t.Error("expected identical node when no child changed")
	}
}

func TestMapChildren_Changed(t *testing.T) {
	one := Const(int64(1))
	two := Const(int64(2))
	n := Op("+", one, two)

	out, err := MapChildren(n, func(k Node) (Node, error) {
		if k == Node(two) {
			return Const(int64(3)), nil
		}
		return k, nil
	})
	if err != nil {
		t.Fatalf("MapChildren: %v", err)
	}
	b, ok := out.(*Binary)
	if !ok || out == Node(n) {
		t.Fatalf("expected a new binary node, got %T", out)
	}
	if b.Left != Node(one) {
		t.Error("unchanged operand should keep its identity")
	}
	if b.Right.(*Constant).Value != int64(3) {
		t.Errorf("right = %v, want 3", b.Right.(*Constant).Value)
	}
}

func TestWithChildren_TryLayout(t *testing.T) {
	e := Var("e")
	try := &Try{
		Body: Const("body"),
		Handlers: []*Catch{
			{Class: "A", Var: e, Filter: Const("filter"), Body: Const("h0")},
			{Body: Const("h1")},
		},
		Finally: Const("finally"),
	}

	kids := Children(try)
	if len(kids) != 7 {
		t.Fatalf("expected 7 operand slots, got %d", len(kids))
	}
	if kids[3] != nil {
		t.Error("absent filter should appear as nil")
	}
	if kids[6] != nil {
		t.Error("absent fault should appear as nil")
	}

	rebuilt := WithChildren(try, kids).(*Try)
	if rebuilt.Handlers[0].Var != e || rebuilt.Handlers[0].Class != "A" {
		t.Error("handler metadata not preserved")
	}
	if rebuilt.Finally != try.Finally {
		t.Error("finally not preserved")
	}
}

func TestWithChildren_SwitchLayout(t *testing.T) {
	sw := &Switch{
		Value: Var("s"),
		Cases: []*SwitchCase{
			Case(Const("a"), int64(1), int64(2)),
			Case(Const("b"), int64(3)),
		},
	}
	kids := Children(sw)
	if len(kids) != 1+3+1+2+1 {
		t.Fatalf("unexpected operand count %d", len(kids))
	}
	rebuilt := WithChildren(sw, kids).(*Switch)
	if len(rebuilt.Cases) != 2 || len(rebuilt.Cases[0].Values) != 2 {
		t.Fatal("case layout not preserved")
	}
	if rebuilt.Cases[1].Body != sw.Cases[1].Body {
		t.Error("case body not preserved")
	}
}

func TestRewrite_SkipPrunes(t *testing.T) {
	inner := &Lambda{Body: Const(int64(1))}
	n := Seq(Const(int64(1)), inner)

	rw := Rewriter{
		Skip: func(n Node) bool { _, ok := n.(*Lambda); return ok },
		Post: func(n Node) Node {
			if c, ok := n.(*Constant); ok && c.Value == int64(1) {
				return Const(int64(9))
			}
			return n
		},
	}
	out := rw.Apply(n).(*Block)
	if out.Exprs[0].(*Constant).Value != int64(9) {
		t.Error("constant outside lambda should be rewritten")
	}
	if out.Exprs[1] != Node(inner) {
		t.Error("skipped lambda should keep its identity")
	}
}

func TestWalk_Prune(t *testing.T) {
	n := Seq(Const(int64(1)), &Lambda{Body: Seq(Const(int64(2)))})
	var seen []Kind
	Walk(n, func(n Node) bool {
		seen = append(seen, n.Kind())
		return n.Kind() != KindLambda
	})
	want := []Kind{KindBlock, KindConstant, KindLambda}
	if len(seen) != len(want) {
		t.Fatalf("seen %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("seen[%d] = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestFormat_DistinctIdentities(t *testing.T) {
	a := Var("x")
	b := Var("x")
	n := Seq(Scope([]*Variable{a}, Set(a, Const(int64(1)))), Scope([]*Variable{b}, Set(b, Const(int64(2)))))

	out := Format(n)
	if !strings.Contains(out, "x = 1") || !strings.Contains(out, "x#2 = 2") {
		t.Errorf("expected distinct names for distinct variables:\n%s", out)
	}
}

func TestFingerprint_Stable(t *testing.T) {
	build := func() Node {
		l := NewLabel("end")
		return Seq(Jump(l), Mark(l), Const("done"))
	}
	if Fingerprint(build()) != Fingerprint(build()) {
		t.Error("structurally equal trees should share a fingerprint")
	}
	if Fingerprint(build()) == Fingerprint(Seq(Const("done"))) {
		t.Error("different trees should not share a fingerprint")
	}
}

func TestDisposeState(t *testing.T) {
	for _, s := range []int64{1, 2, 17} {
		d := DisposeState(s)
		if d == StateNotStarted || d == StateFinished || d > 0 {
			t.Errorf("DisposeState(%d) = %d collides with a reserved state", s, d)
		}
		got, ok := IsDisposeState(d)
		if !ok || got != s {
			t.Errorf("IsDisposeState(%d) = %d, %v; want %d, true", d, got, ok, s)
		}
	}
	for _, s := range []int64{StateNotStarted, StateFinished, 3} {
		if _, ok := IsDisposeState(s); ok {
			t.Errorf("IsDisposeState(%d) should be false", s)
		}
	}
}
