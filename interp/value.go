package interp

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/wippyai/genlower/expr"
)

// Cell is the storage of one variable. Passing a *Cell to a by-reference
// parameter binds the parameter to it.
type Cell struct {
	Value any
}

// Object is a value with named fields created by a New without a
// constructor.
type Object struct {
	Fields map[string]any
}

// NewObject creates an empty object.
func NewObject() *Object {
	return &Object{Fields: make(map[string]any)}
}

// Exception is a thrown value. It implements error so host functions can
// throw by returning one.
type Exception struct {
	Value any
	Class string
}

// NewException creates an exception of class carrying value.
func NewException(class string, value any) *Exception {
	return &Exception{Class: class, Value: value}
}

func (e *Exception) Error() string {
	if e.Value == nil {
		return e.Class
	}
	return e.Class + ": " + Stringify(e.Value)
}

// Matches reports whether a handler for class catches e. An empty class
// catches everything.
func (e *Exception) Matches(class string) bool {
	return class == "" || class == e.Class
}

// Closure is a Lambda together with the environment it was created in.
type Closure struct {
	Lambda *expr.Lambda
	prog   *Program
	env    *env
}

// Call invokes the closure. An exception leaving the closure is returned
// as an *Exception error.
func (c *Closure) Call(args ...any) (any, error) {
	r, err := c.prog.call(c, args)
	if err != nil {
		return nil, err
	}
	if r.Flow == FlowThrow {
		return nil, r.Exc
	}
	return r.Value, nil
}

// Truthy converts a value to a condition result. nil, false, zero numbers
// and the empty string are false.
func Truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != ""
	}
	return true
}

// Equal compares values. Numbers compare across int64 and float64, other
// values by Go equality where comparable.
func Equal(a, b any) bool {
	if x, ok := toFloat(a); ok {
		if y, ok := toFloat(b); ok {
			return x == y
		}
		return false
	}
	switch a.(type) {
	case []any, map[string]any:
		return false
	}
	switch b.(type) {
	case []any, map[string]any:
		return false
	}
	return a == b
}

// Stringify renders a value for logs and string concatenation.
func Stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return "nil"
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = Stringify(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Object:
		keys := make([]string, 0, len(v.Fields))
		for k := range v.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + Stringify(v.Fields[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Exception:
		return v.Error()
	case *Closure:
		if v.Lambda.Name != "" {
			return "func " + v.Lambda.Name
		}
		return "func"
	}
	return fmt.Sprint(v)
}
