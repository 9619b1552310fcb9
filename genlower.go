package genlower

import (
	"go.uber.org/zap"

	"github.com/wippyai/genlower/expr"
	"github.com/wippyai/genlower/internal/rewrite"
)

// Config configures lowering. The zero value is valid.
type Config struct {
	// Logger receives debug output: marker allocation, the tier chosen for
	// each try region, and a summary per generator.
	Logger *zap.Logger
	// Asserts verifies the assembled tree: every marker label is bound
	// exactly once, states are dense from 1 and every variable is used
	// inside its scope. Violations are internal errors.
	Asserts bool
}

// Result is a lowered generator.
type Result struct {
	// Tree evaluates to an expr.MakeGenerator, or an expr.MakeSequence
	// when the definition is restartable.
	Tree expr.Node
	// Hoisted lists the body variables moved to machine scope.
	Hoisted []*expr.Variable
	// Temps lists the temporaries the machine owns.
	Temps []*expr.Variable
	// States is the number of resume states, 1 through States.
	States int
}

// Lower rewrites def into a resumable state machine. Generator definitions
// nested in the body are lowered first. Any structural violation fails the
// whole call; no partial output is returned.
func Lower(def *expr.Generator, cfg Config) (*Result, error) {
	res, err := rewrite.New(rewrite.Config{
		Logger:  cfg.Logger,
		Asserts: cfg.Asserts,
	}).Lower(def)
	if err != nil {
		return nil, err
	}
	return &Result{
		Tree:    res.Tree,
		Hoisted: res.Hoisted,
		Temps:   res.Temps,
		States:  res.States,
	}, nil
}

// IsLowered reports whether n already contains an assembled state machine.
func IsLowered(n expr.Node) bool {
	found := false
	expr.Walk(n, func(k expr.Node) bool {
		switch k.(type) {
		case *expr.MakeGenerator, *expr.MakeSequence:
			found = true
		}
		return !found
	})
	return found
}

// Check reports every structural violation in def without lowering it.
func Check(def *expr.Generator) error {
	if def == nil || def.Target == nil {
		_, err := rewrite.New(rewrite.Config{}).Lower(def)
		return err
	}
	return rewrite.Check(def.Target, def.Body)
}
