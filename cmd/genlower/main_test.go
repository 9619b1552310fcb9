package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/wippyai/genlower/interp"
)

const counting = `
name: counting
body:
  - try:
      body:
        - yield: 1
        - yield: 2
      finally:
        - call: [log, done]
`

func writeDef(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "def.yaml")
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestLoad_StartsFreshGenerators(t *testing.T) {
	s, err := load(writeDef(t, counting), zap.NewNop())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if s.res.States != 2 {
		t.Errorf("States = %d, want 2", s.res.States)
	}

	g, err := s.start()
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	got, err := interp.Collect(g, 0)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if diff := cmp.Diff([]any{int64(1), int64(2)}, got); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"done"}, s.host.Log); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}

func TestStepper_Restart(t *testing.T) {
	m := newStepperModel(writeDef(t, counting), zap.NewNop())
	msg := m.load()
	m.Update(msg)
	if m.err != nil {
		t.Fatalf("load failed: %v", m.err)
	}

	m.take(1)
	m.restart()
	m.take(0)
	if diff := cmp.Diff([]string{"1", "2"}, m.values); diff != "" {
		t.Errorf("values after restart mismatch (-want +got):\n%s", diff)
	}
	if !m.gen.Done() {
		t.Error("drained generator should be done")
	}
}

func TestRun_Modes(t *testing.T) {
	path := writeDef(t, counting)
	tests := []struct {
		name string
		opts options
	}{
		{"check", options{file: path, check: true}},
		{"print", options{file: path, print: true, source: true}},
		{"run", options{file: path, run: true, disposeAfter: -1}},
		{"dispose", options{file: path, run: true, disposeAfter: 1}},
		{"dispose before start", options{file: path, run: true, disposeAfter: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := run(tt.opts, zap.NewNop()); err != nil {
				t.Errorf("run failed: %v", err)
			}
		})
	}
}

func TestRun_ReportsViolations(t *testing.T) {
	path := writeDef(t, `
name: bad
body:
  - lambda: {body: [{yield: 1}]}
`)
	if err := run(options{file: path, check: true}, zap.NewNop()); err == nil {
		t.Fatal("expected a structural error")
	}
}
