package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseCheck    Phase = "check"    // structural validation of a definition
	PhaseRewrite  Phase = "rewrite"  // body rewriting
	PhaseAssemble Phase = "assemble" // state machine assembly
	PhaseRuntime  Phase = "runtime"  // evaluation of assembled trees
	PhaseLoad     Phase = "load"     // definition loading
)

// Kind categorizes the error
type Kind string

const (
	KindYieldInFilter  Kind = "yield_in_filter"
	KindYieldInFault   Kind = "yield_in_fault"
	KindYieldInLambda  Kind = "yield_in_lambda"
	KindTargetMismatch Kind = "target_mismatch"
	KindUnsupported    Kind = "unsupported"
	KindInternal       Kind = "internal"
	KindInvalidInput   Kind = "invalid_input"
	KindInvalidData    Kind = "invalid_data"
	KindNotFound       Kind = "not_found"
	KindUncaught       Kind = "uncaught"
	KindTypeMismatch   Kind = "type_mismatch"
	KindLimit          Kind = "limit"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Node   string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Node != "" {
		b.WriteString(" (")
		b.WriteString(e.Node)
		b.WriteByte(')')
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the construct path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Node sets the kind of the offending node
func (b *Builder) Node(kind string) *Builder {
	b.err.Node = kind
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for structural violations

// YieldInFilter rejects a suspension inside an exception filter
func YieldInFilter(path []string) *Error {
	return &Error{
		Phase:  PhaseCheck,
		Kind:   KindYieldInFilter,
		Path:   path,
		Node:   "yield",
		Detail: "exception filters cannot suspend",
	}
}

// YieldInFault rejects a suspension inside a fault block
func YieldInFault(path []string) *Error {
	return &Error{
		Phase:  PhaseCheck,
		Kind:   KindYieldInFault,
		Path:   path,
		Node:   "yield",
		Detail: "fault blocks cannot suspend",
	}
}

// YieldInLambda rejects a suspension captured by a nested ordinary function
func YieldInLambda(path []string, lambda string) *Error {
	if lambda == "" {
		lambda = "anonymous function"
	}
	return &Error{
		Phase:  PhaseCheck,
		Kind:   KindYieldInLambda,
		Path:   path,
		Node:   "yield",
		Detail: fmt.Sprintf("yield inside nested function %s belongs to the enclosing generator", lambda),
	}
}

// TargetMismatch rejects a suspension whose identity is not the generator's
func TargetMismatch(path []string, got, want string) *Error {
	return &Error{
		Phase:  PhaseCheck,
		Kind:   KindTargetMismatch,
		Path:   path,
		Node:   "yield",
		Detail: fmt.Sprintf("yield target %q does not belong to generator %q", got, want),
	}
}

// Unsupported creates an unsupported construct error
func Unsupported(phase Phase, path []string, node, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Path:   path,
		Node:   node,
		Detail: what,
	}
}

// Internal reports a broken invariant of the pass itself
func Internal(phase Phase, detail string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInternal,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// TypeMismatch creates an operand type error
func TypeMismatch(phase Phase, op string, value any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Detail: fmt.Sprintf("%s: unexpected operand %T", op, value),
		Value:  value,
	}
}

// Uncaught wraps an exception that escaped a generator step
func Uncaught(cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindUncaught,
		Detail: "exception escaped generator",
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates a definition loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}
