package interp

import (
	"go.uber.org/zap"

	"github.com/wippyai/genlower/errors"
	"github.com/wippyai/genlower/expr"
)

// Generator drives an assembled state machine. It is not safe for
// concurrent use: each step runs synchronously on the caller's goroutine.
type Generator struct {
	resume  *Closure
	state   Cell
	current Cell
	done    bool
}

func newGenerator(resume *Closure) *Generator {
	return &Generator{
		resume: resume,
		state:  Cell{Value: expr.StateNotStarted},
	}
}

// Next runs the machine to its next suspension. It reports false once the
// sequence has ended. An error, including an exception escaping the body,
// leaves the generator finished.
func (g *Generator) Next() (bool, error) {
	if g.done {
		return false, nil
	}
	r, err := g.resume.prog.call(g.resume, []any{&g.state, &g.current})
	if err != nil {
		g.finish()
		return false, err
	}
	if r.Flow == FlowThrow {
		g.finish()
		return false, errors.Uncaught(r.Exc)
	}
	code, isCode := r.Value.(int64)
	if !isCode {
		g.finish()
		return false, internal("resume returned %T, want a next code", r.Value)
	}
	if code == expr.NextYielded {
		Logger().Debug("generator yielded", zap.Int64("state", g.State()))
		return true, nil
	}
	g.finish()
	return false, nil
}

// Current returns the value produced by the last successful Next.
func (g *Generator) Current() any {
	return g.current.Value
}

// State returns the resume state.
func (g *Generator) State() int64 {
	s, _ := g.state.Value.(int64)
	return s
}

// Done reports whether the generator has finished.
func (g *Generator) Done() bool {
	return g.done
}

// Dispose tears the generator down. A generator suspended inside a try
// region is resumed in dispose mode so pending finally blocks run exactly
// once; finally blocks that suspend are driven to completion. A generator
// that has not started or has finished is only marked finished.
func (g *Generator) Dispose() error {
	if g.done {
		return nil
	}
	s := g.State()
	if s <= expr.StateFinished {
		g.finish()
		return nil
	}
	for {
		Logger().Debug("dispose generator", zap.Int64("state", s))
		g.state.Value = expr.DisposeState(s)
		more, err := g.Next()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		s = g.State()
	}
}

func (g *Generator) finish() {
	g.done = true
	g.state.Value = expr.StateFinished
}

// Sequence is a restartable generator. Every Iterator call runs the
// factory and gets independent machine state.
type Sequence struct {
	factory *Closure
}

// Iterator starts a new iteration.
func (s *Sequence) Iterator() (*Generator, error) {
	v, err := s.factory.Call()
	if err != nil {
		if exc, isExc := err.(*Exception); isExc {
			return nil, errors.Uncaught(exc)
		}
		return nil, err
	}
	g, isGen := v.(*Generator)
	if !isGen {
		return nil, internal("sequence factory returned %T", v)
	}
	return g, nil
}

// AsGenerator returns v as a generator, starting a new iteration when v is
// a Sequence.
func AsGenerator(v any) (*Generator, error) {
	switch v := v.(type) {
	case *Generator:
		return v, nil
	case *Sequence:
		return v.Iterator()
	}
	return nil, errors.TypeMismatch(errors.PhaseRuntime, "generator", v)
}

// Collect drains g into a slice. A positive limit stops after that many
// values without disposing g.
func Collect(g *Generator, limit int) ([]any, error) {
	var out []any
	for limit <= 0 || len(out) < limit {
		more, err := g.Next()
		if err != nil {
			return out, err
		}
		if !more {
			break
		}
		out = append(out, g.Current())
	}
	return out, nil
}
