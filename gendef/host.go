package gendef

import (
	"sort"
	"strings"

	"github.com/wippyai/genlower/errors"
	"github.com/wippyai/genlower/expr"
	"github.com/wippyai/genlower/interp"
)

// HostFunc implements a host function. Returning an *interp.Exception as
// the error throws it into the evaluated tree.
type HostFunc func(args []any) (any, error)

// Host resolves the function names used by call and new nodes.
//
// Builtins:
//
//	log(args...)            appends the stringified args, space separated, to Log
//	record(v)               appends v to Log and returns it
//	fail(class, value)      throws an exception
//	exception(class, value) returns an exception without throwing it
//	str(args...)            concatenates the stringified args
//	len(v)                  length of an array or string
//	push(array, v)          returns array with v appended
type Host struct {
	methods map[string]*expr.Method
	// Log collects the side effects of log and record in call order.
	Log []any
}

// NewHost creates a Host with the builtins registered.
func NewHost() *Host {
	h := &Host{methods: make(map[string]*expr.Method)}
	h.Register("log", func(args []any) (any, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = interp.Stringify(a)
		}
		h.Log = append(h.Log, strings.Join(parts, " "))
		return nil, nil
	})
	h.Register("record", func(args []any) (any, error) {
		v := arg(args, 0)
		h.Log = append(h.Log, v)
		return v, nil
	})
	h.Register("fail", func(args []any) (any, error) {
		return nil, exception(args)
	})
	h.Register("exception", func(args []any) (any, error) {
		return exception(args), nil
	})
	h.Register("str", func(args []any) (any, error) {
		var sb strings.Builder
		for _, a := range args {
			sb.WriteString(interp.Stringify(a))
		}
		return sb.String(), nil
	})
	h.Register("len", func(args []any) (any, error) {
		switch v := arg(args, 0).(type) {
		case []any:
			return int64(len(v)), nil
		case string:
			return int64(len(v)), nil
		default:
			return nil, errors.TypeMismatch(errors.PhaseRuntime, "len", v)
		}
	})
	h.Register("push", func(args []any) (any, error) {
		arr, ok := arg(args, 0).([]any)
		if !ok {
			return nil, errors.TypeMismatch(errors.PhaseRuntime, "push", arg(args, 0))
		}
		out := make([]any, len(arr), len(arr)+1)
		copy(out, arr)
		return append(out, arg(args, 1)), nil
	})
	return h
}

// Register adds or replaces a host function.
func (h *Host) Register(name string, fn HostFunc) {
	h.methods[name] = &expr.Method{
		Name: name,
		Fn:   func(_ any, args []any) (any, error) { return fn(args) },
	}
}

// Method returns the method for name, or nil.
func (h *Host) Method(name string) *expr.Method {
	return h.methods[name]
}

// Names returns the registered function names in sorted order.
func (h *Host) Names() []string {
	names := make([]string, 0, len(h.methods))
	for n := range h.methods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Reset clears Log.
func (h *Host) Reset() {
	h.Log = nil
}

func arg(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func exception(args []any) *interp.Exception {
	class, _ := arg(args, 0).(string)
	if class == "" {
		class = "Error"
	}
	return interp.NewException(class, arg(args, 1))
}
