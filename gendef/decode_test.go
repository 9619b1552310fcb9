package gendef_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/genlower"
	generrors "github.com/wippyai/genlower/errors"
	"github.com/wippyai/genlower/expr"
	"github.com/wippyai/genlower/gendef"
	"github.com/wippyai/genlower/interp"
)

// run parses src, lowers it and drains the generator.
func run(t *testing.T, src string, host *gendef.Host) []any {
	t.Helper()
	def, err := gendef.Parse([]byte(src), host)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	res, err := genlower.Lower(def, genlower.Config{Asserts: true})
	if err != nil {
		t.Fatalf("Lower failed: %v", err)
	}
	prog, err := interp.Compile(res.Tree)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	v, err := prog.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	g, err := interp.AsGenerator(v)
	if err != nil {
		t.Fatalf("AsGenerator failed: %v", err)
	}
	got, err := interp.Collect(g, 0)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	return got
}

func TestParse_Loop(t *testing.T) {
	host := gendef.NewHost()
	got := run(t, `
name: evens
functions: [record]
body:
  - let: {i: 0}
  - loop:
      break: done
      body:
        - if:
            test: {bin: [">=", {var: i}, 6]}
            then: [{goto: done}]
        - yield: {var: i}
        - set: [i, {bin: ["+", {var: i}, 2]}]
  - call: [record, finished]
`, host)

	if diff := cmp.Diff([]any{int64(0), int64(2), int64(4)}, got); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"finished"}, host.Log); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_TryCatchFinally(t *testing.T) {
	host := gendef.NewHost()
	got := run(t, `
name: guarded
body:
  - try:
      body:
        - yield: 1
        - call: [fail, Boom, 2]
        - yield: 99
      catch:
        - class: Boom
          var: e
          filter: {bin: ["==", {member: [{var: e}, value]}, 2]}
          body:
            - call: [log, caught, {member: [{var: e}, class]}]
            - yield: 2
      finally:
        - call: [log, cleanup]
  - yield: 3
`, host)

	if diff := cmp.Diff([]any{int64(1), int64(2), int64(3)}, got); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"caught Boom", "cleanup"}, host.Log); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_LambdaAndSwitch(t *testing.T) {
	got := run(t, `
name: mixed
body:
  - let:
      n: 0
      bump: {lambda: {name: bump, body: [{set: [n, {bin: ["+", {var: n}, 1]}]}]}}
      add: {lambda: {params: [a, b], body: [{return: {bin: ["+", {var: a}, {var: b}]}}]}}
  - invoke: [{var: bump}]
  - invoke: [{var: bump}]
  - switch:
      value: {var: n}
      cases:
        - values: [1]
          body: [{yield: one}]
        - values: [2, 3]
          body: [{yield: two}]
      default: [{yield: other}]
  - yield: {call: [len, {array: [a, b, c]}]}
  - yield: {index: [{array: [10, 20]}, 1]}
  - yield: {not: true}
  - yield: {neg: 5}
  - yield: {invoke: [{var: add}, 1, 2]}
`, nil)

	want := []any{"two", int64(3), int64(20), false, int64(-5), int64(3)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Scalars(t *testing.T) {
	got := run(t, `
name: scalars
body:
  - yield: 1
  - yield: 1.5
  - yield: true
  - yield: hello
  - yield: "42"
  - yield: {const: null}
`, nil)

	want := []any{int64(1), 1.5, true, "hello", "42", nil}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_YieldBreakAndBlocks(t *testing.T) {
	got := run(t, `
name: early
body:
  - block:
      - let: {x: 1}
      - yield: {var: x}
  - block:
      - let: {x: 2}
      - yield: {var: x}
      - break: null
  - yield: 3
`, nil)

	if diff := cmp.Diff([]any{int64(1), int64(2)}, got); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_NestedGenerator(t *testing.T) {
	got := run(t, `
name: outer
body:
  - yield:
      generator:
        name: inner
        body:
          - yield: 7
          - yield: 8
`, nil)

	if len(got) != 1 {
		t.Fatalf("outer yielded %d values, want 1", len(got))
	}
	g, err := interp.AsGenerator(got[0])
	if err != nil {
		t.Fatalf("AsGenerator failed: %v", err)
	}
	vals, err := interp.Collect(g, 0)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if diff := cmp.Diff([]any{int64(7), int64(8)}, vals); diff != "" {
		t.Errorf("inner values mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Definition(t *testing.T) {
	def, err := gendef.Parse([]byte(`
name: seq
element: int
restartable: true
body:
  - yield: 1
`), nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if def.Name != "seq" || def.Element != "int" || !def.Restartable {
		t.Errorf("definition = %+v", def)
	}
	if def.Target == nil || def.Target.Name != "seq" {
		t.Errorf("target = %v, want one named seq", def.Target)
	}
	y, ok := def.Body.(*expr.Block).Exprs[0].(*expr.Yield)
	if !ok || y.Target != def.Target {
		t.Error("yield should use the definition target")
	}
}

func TestHost_Register(t *testing.T) {
	host := gendef.NewHost()
	host.Register("double", func(args []any) (any, error) {
		return args[0].(int64) * 2, nil
	})
	got := run(t, `
name: custom
functions: [double]
body:
  - yield: {call: [double, 21]}
`, host)

	if diff := cmp.Diff([]any{int64(42)}, got); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
	names := host.Names()
	if names[0] != "double" {
		t.Errorf("Names = %v, want sorted with double first", names)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind generrors.Kind
		want string
	}{
		{
			name: "yaml syntax",
			src:  "name: [unterminated",
			kind: generrors.KindInvalidData,
			want: "parse definition",
		},
		{
			name: "no body",
			src:  "name: empty",
			kind: generrors.KindInvalidData,
			want: "no body",
		},
		{
			name: "undefined variable",
			src:  "name: g\nbody:\n  - yield: {var: j}\n",
			kind: generrors.KindInvalidData,
			want: `line 3: undefined variable "j"`,
		},
		{
			name: "unknown function",
			src:  "name: g\nbody:\n  - call: [launch]\n",
			kind: generrors.KindInvalidData,
			want: `unknown function "launch"`,
		},
		{
			name: "function not listed",
			src:  "name: g\nfunctions: [log]\nbody:\n  - call: [record, 1]\n",
			kind: generrors.KindInvalidData,
			want: "not listed",
		},
		{
			name: "listed function missing from host",
			src:  "name: g\nfunctions: [launch]\nbody:\n  - yield: 1\n",
			kind: generrors.KindNotFound,
			want: `function "launch" not found`,
		},
		{
			name: "unknown kind",
			src:  "name: g\nbody:\n  - spawn: 1\n",
			kind: generrors.KindInvalidData,
			want: `unknown node kind "spawn"`,
		},
		{
			name: "two kind keys",
			src:  "name: g\nbody:\n  - {yield: 1, throw: 2}\n",
			kind: generrors.KindInvalidData,
			want: "exactly one kind key",
		},
		{
			name: "undefined label",
			src:  "name: g\nbody:\n  - goto: nowhere\n",
			kind: generrors.KindInvalidData,
			want: `label "nowhere" is never defined`,
		},
		{
			name: "duplicate label",
			src:  "name: g\nbody:\n  - label: here\n  - label: here\n",
			kind: generrors.KindInvalidData,
			want: `label "here" defined twice`,
		},
		{
			name: "redeclared variable",
			src:  "name: g\nbody:\n  - let: {x: 1}\n  - let: {x: 2}\n",
			kind: generrors.KindInvalidData,
			want: "declared twice",
		},
		{
			name: "label across lambda",
			src:  "name: g\nbody:\n  - label: out\n  - lambda: {body: [{goto: out}]}\n",
			kind: generrors.KindInvalidData,
			want: `label "out" is never defined`,
		},
		{
			name: "unexpected key",
			src:  "name: g\nbody:\n  - if: {test: true, then: [], otherwise: []}\n",
			kind: generrors.KindInvalidData,
			want: `unexpected key "otherwise"`,
		},
		{
			name: "bad assignment target",
			src:  "name: g\nbody:\n  - set: [{const: 1}, 2]\n",
			kind: generrors.KindInvalidData,
			want: "cannot assign",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gendef.Parse([]byte(tt.src), nil)
			if err == nil {
				t.Fatalf("expected an error containing %q", tt.want)
			}
			if !errors.Is(err, &generrors.Error{Phase: generrors.PhaseLoad, Kind: tt.kind}) {
				t.Errorf("err = %v, want load %s", err, tt.kind)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestParse_ErrorPath(t *testing.T) {
	_, err := gendef.Parse([]byte(`
name: g
body:
  - yield: 1
  - loop:
      body:
        - yield: {var: j}
`), nil)
	var gerr *generrors.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("err = %v, want *errors.Error", err)
	}
	want := []string{"body[1]", "loop", "body[0]", "yield", "var"}
	if diff := cmp.Diff(want, gerr.Path); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}
}
