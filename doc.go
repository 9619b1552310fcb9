// Package genlower lowers generator bodies into resumable state machines.
//
// A generator body is ordinary sequential code over the expr tree that
// contains yields: points that hand a value to the caller and pause until
// the caller asks for the next one. Lowering rewrites such a body into a
// single resume function driven by an integer state, using only blocks,
// labels, gotos, switches and try regions, so any backend that executes
// plain trees can run it.
//
// # Architecture Overview
//
//	genlower/            Root package with Config, Lower and IsLowered
//	├── expr/            Expression tree, builders, rewrite utility, printer
//	├── internal/rewrite Marker registry, hoisting, spilling, try tiers, assembly
//	├── interp/          Tree evaluator and generator driver
//	├── gendef/          YAML definition format
//	├── conformance/     YAML scenario suites for the whole pipeline
//	├── errors/          Structured error types for debugging
//	└── cmd/genlower     CLI and interactive stepper
//
// # Quick Start
//
// Lower a definition and drive it:
//
//	res, err := genlower.Lower(def, genlower.Config{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	prog, err := interp.Compile(res.Tree)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	v, err := prog.Run()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	gen, _ := interp.AsGenerator(v)
//	for {
//	    more, err := gen.Next()
//	    if err != nil || !more {
//	        break
//	    }
//	    fmt.Println(gen.Current())
//	}
//
// # Resume Protocol
//
// The assembled tree evaluates to a MakeGenerator whose resume lambda takes
// (state, current) by reference and returns expr.NextYielded or
// expr.NextFinished. State starts at expr.StateNotStarted, holds the marker
// of the last yield while suspended, and is expr.StateFinished once done.
// A dispose request for a machine suspended at k is expr.DisposeState(k);
// the machine then unwinds through every pending finally exactly once.
//
// Restartable generators evaluate to a MakeSequence whose factory returns a
// fresh machine on every call.
//
// # Try Regions
//
// A resume may not enter a protected region mid-body, so yields inside a
// try are reached through a router placed at the top of the try body.
// Handlers that yield are deferred until the try has exited, with the
// exception kept in a hoisted slot. Finally blocks that yield are inlined
// after the try, with pending exits replayed once they complete. Yields
// inside exception filters or fault blocks are rejected.
//
// # Error Handling
//
// Errors use the structured errors package. Structural violations are
// reported together with the path of each offending node:
//
//	res, err := genlower.Lower(def, cfg)
//	if err != nil {
//	    for _, e := range multierr.Errors(err) {
//	        fmt.Println(e)
//	    }
//	}
package genlower
