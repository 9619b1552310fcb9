package interp

import (
	"math"
	"strings"

	"github.com/wippyai/genlower/errors"
)

// BinaryFunc applies a binary operator to evaluated operands.
type BinaryFunc func(left, right any) (any, error)

// UnaryFunc applies a unary operator to an evaluated operand.
type UnaryFunc func(operand any) (any, error)

// Registry maps operator symbols to their implementations.
//
// Operators are looked up by symbol at evaluation time, so hosts can add
// or replace operators before running a program. The short-circuit
// operators "&&" and "||" are evaluated by the interpreter itself and are
// never looked up here.
type Registry struct {
	binary map[string]BinaryFunc
	unary  map[string]UnaryFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		binary: make(map[string]BinaryFunc),
		unary:  make(map[string]UnaryFunc),
	}
}

// DefaultRegistry returns a registry with arithmetic, comparison, logical
// and string operators.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterArithmetic(r)
	RegisterComparison(r)
	RegisterLogical(r)
	RegisterString(r)
	return r
}

// RegisterBinary adds or replaces a binary operator.
func (r *Registry) RegisterBinary(op string, fn BinaryFunc) {
	r.binary[op] = fn
}

// RegisterUnary adds or replaces a unary operator.
func (r *Registry) RegisterUnary(op string, fn UnaryFunc) {
	r.unary[op] = fn
}

// Binary returns the binary operator for op, or nil.
func (r *Registry) Binary(op string) BinaryFunc {
	return r.binary[op]
}

// Unary returns the unary operator for op, or nil.
func (r *Registry) Unary(op string) UnaryFunc {
	return r.unary[op]
}

// Missing returns the binary operators in ops that have no implementation.
func (r *Registry) Missing(ops []string) []string {
	var missing []string
	for _, op := range ops {
		if r.binary[op] == nil {
			missing = append(missing, op)
		}
	}
	return missing
}

// RegisterArithmetic registers + - * / % on int64 and float64 operands.
// Mixed operands are promoted to float64. Integer division by zero throws
// an ArithmeticError exception.
func RegisterArithmetic(r *Registry) {
	r.RegisterBinary("+", numeric("+",
		func(a, b int64) (any, error) { return a + b, nil },
		func(a, b float64) any { return a + b }))
	r.RegisterBinary("-", numeric("-",
		func(a, b int64) (any, error) { return a - b, nil },
		func(a, b float64) any { return a - b }))
	r.RegisterBinary("*", numeric("*",
		func(a, b int64) (any, error) { return a * b, nil },
		func(a, b float64) any { return a * b }))
	r.RegisterBinary("/", numeric("/",
		func(a, b int64) (any, error) {
			if b == 0 {
				return nil, NewException("ArithmeticError", "division by zero")
			}
			return a / b, nil
		},
		func(a, b float64) any { return a / b }))
	r.RegisterBinary("%", numeric("%",
		func(a, b int64) (any, error) {
			if b == 0 {
				return nil, NewException("ArithmeticError", "division by zero")
			}
			return a % b, nil
		},
		func(a, b float64) any { return math.Mod(a, b) }))

	r.RegisterUnary("-", func(v any) (any, error) {
		switch v := v.(type) {
		case int64:
			return -v, nil
		case float64:
			return -v, nil
		}
		return nil, errors.TypeMismatch(errors.PhaseRuntime, "-", v)
	})
}

// RegisterComparison registers == != < <= > >=. Equality works on any
// comparable values; ordering on numbers and strings.
func RegisterComparison(r *Registry) {
	r.RegisterBinary("==", func(a, b any) (any, error) { return Equal(a, b), nil })
	r.RegisterBinary("!=", func(a, b any) (any, error) { return !Equal(a, b), nil })
	r.RegisterBinary("<", ordering("<", func(c int) bool { return c < 0 }))
	r.RegisterBinary("<=", ordering("<=", func(c int) bool { return c <= 0 }))
	r.RegisterBinary(">", ordering(">", func(c int) bool { return c > 0 }))
	r.RegisterBinary(">=", ordering(">=", func(c int) bool { return c >= 0 }))
}

// RegisterLogical registers the non-short-circuit "!" operator.
func RegisterLogical(r *Registry) {
	r.RegisterUnary("!", func(v any) (any, error) { return !Truthy(v), nil })
}

// RegisterString registers ".." concatenation of any two values.
func RegisterString(r *Registry) {
	r.RegisterBinary("..", func(a, b any) (any, error) {
		var sb strings.Builder
		sb.WriteString(Stringify(a))
		sb.WriteString(Stringify(b))
		return sb.String(), nil
	})
}

func numeric(op string, ints func(a, b int64) (any, error), floats func(a, b float64) any) BinaryFunc {
	return func(a, b any) (any, error) {
		if x, ok := a.(int64); ok {
			if y, ok := b.(int64); ok {
				return ints(x, y)
			}
		}
		if op == "+" {
			if x, ok := a.(string); ok {
				return x + Stringify(b), nil
			}
		}
		x, ok := toFloat(a)
		if !ok {
			return nil, errors.TypeMismatch(errors.PhaseRuntime, op, a)
		}
		y, ok := toFloat(b)
		if !ok {
			return nil, errors.TypeMismatch(errors.PhaseRuntime, op, b)
		}
		return floats(x, y), nil
	}
}

func ordering(op string, pred func(int) bool) BinaryFunc {
	return func(a, b any) (any, error) {
		if x, ok := a.(string); ok {
			y, ok := b.(string)
			if !ok {
				return nil, errors.TypeMismatch(errors.PhaseRuntime, op, b)
			}
			return pred(strings.Compare(x, y)), nil
		}
		if x, ok := a.(int64); ok {
			if y, ok := b.(int64); ok {
				switch {
				case x < y:
					return pred(-1), nil
				case x > y:
					return pred(1), nil
				}
				return pred(0), nil
			}
		}
		x, ok := toFloat(a)
		if !ok {
			return nil, errors.TypeMismatch(errors.PhaseRuntime, op, a)
		}
		y, ok := toFloat(b)
		if !ok {
			return nil, errors.TypeMismatch(errors.PhaseRuntime, op, b)
		}
		switch {
		case x < y:
			return pred(-1), nil
		case x > y:
			return pred(1), nil
		}
		return pred(0), nil
	}
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
