// Package errors provides structured error types for the generator lowering
// pass and the runtime that drives lowered generators.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type carries the path of the offending construct in
// the generator body, the kind of node found there, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseCheck, errors.KindYieldInFilter).
//		Path("body[2]", "try", "catch[1]", "filter").
//		Node("yield").
//		Detail("filters are evaluated during unwinding").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.YieldInFault(path)
//	err := errors.Internal(errors.PhaseAssemble, "marker %d has no label", 3)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
