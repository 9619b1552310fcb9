package rewrite

import (
	"slices"
	"strconv"

	"go.uber.org/multierr"

	"github.com/wippyai/genlower/errors"
	"github.com/wippyai/genlower/expr"
)

// Check reports every structural violation in a generator body: yields
// that do not carry target, yields inside filters, faults or nested
// functions, returns outside nested functions, and switch cases on
// non-constant values. Violations are combined with multierr, each
// carrying the path of the offending node.
func Check(target *expr.YieldTarget, body expr.Node) error {
	c := &checker{target: target}
	c.visit(body, []string{"body"}, region{})
	return c.errs
}

type checker struct {
	target *expr.YieldTarget
	errs   error
}

// region describes the constructs enclosing a node.
type region struct {
	lambda *expr.Lambda
	filter bool
	fault  bool
}

func (c *checker) report(err error) {
	c.errs = multierr.Append(c.errs, err)
}

func (c *checker) visit(n expr.Node, path []string, in region) {
	switch n := n.(type) {
	case nil:
		return

	case *expr.Yield:
		c.yield(n, path, in)
		c.visit(n.Value, field(path, "value"), in)

	case *expr.Return:
		if in.lambda == nil {
			c.report(errors.Unsupported(errors.PhaseCheck, path, "return",
				"generators finish by running off the end or with yield break"))
		}
		c.visit(n.Value, field(path, "value"), in)

	case *expr.Generator:
		// A nested definition has its own target and is lowered on its own.
		if n.Target == nil {
			c.report(errors.New(errors.PhaseCheck, errors.KindInvalidInput).
				Path(path...).
				Node(n.Kind().String()).
				Detail("nested generator has no yield target").
				Build())
			return
		}
		outer := c.target
		c.target = n.Target
		c.visit(n.Body, field(path, generatorSegment(n)), region{})
		c.target = outer

	case *expr.Lambda:
		inner := in
		inner.lambda = n
		c.visit(n.Body, field(path, lambdaSegment(n)), inner)

	case *expr.Block:
		for i, e := range n.Exprs {
			c.visit(e, index(path, i), in)
		}

	case *expr.Try:
		c.visit(n.Body, field(path, "body"), in)
		for i, h := range n.Handlers {
			hp := field(path, "catch["+strconv.Itoa(i)+"]")
			filter := in
			filter.filter = true
			c.visit(h.Filter, field(hp, "filter"), filter)
			c.visit(h.Body, hp, in)
		}
		c.visit(n.Finally, field(path, "finally"), in)
		fault := in
		fault.fault = true
		c.visit(n.Fault, field(path, "fault"), fault)

	case *expr.Switch:
		c.visit(n.Value, field(path, "value"), in)
		for i, sc := range n.Cases {
			cp := field(path, "case["+strconv.Itoa(i)+"]")
			for _, v := range sc.Values {
				if _, ok := v.(*expr.Constant); !ok {
					c.report(errors.New(errors.PhaseCheck, errors.KindUnsupported).
						Path(cp...).
						Node(v.Kind().String()).
						Detail("switch case values must be constants").
						Build())
				}
			}
			c.visit(sc.Body, cp, in)
		}
		c.visit(n.Default, field(path, "default"), in)

	case *expr.Condition:
		c.visit(n.Test, field(path, "test"), in)
		c.visit(n.Then, field(path, "then"), in)
		c.visit(n.Else, field(path, "else"), in)

	case *expr.Loop:
		c.visit(n.Body, field(path, "loop"), in)

	case *expr.Assign:
		c.visit(n.Target, field(path, "target"), in)
		c.visit(n.Value, field(path, "value"), in)

	default:
		for i, k := range expr.Children(n) {
			c.visit(k, field(path, n.Kind().String()+"["+strconv.Itoa(i)+"]"), in)
		}
	}
}

func (c *checker) yield(y *expr.Yield, path []string, in region) {
	switch {
	case y.Target != c.target:
		got := "<nil>"
		if y.Target != nil {
			got = y.Target.Name
		}
		c.report(errors.TargetMismatch(path, got, c.target.Name))
	case in.lambda != nil:
		c.report(errors.YieldInLambda(path, in.lambda.Name))
	case in.filter:
		c.report(errors.YieldInFilter(path))
	case in.fault:
		c.report(errors.YieldInFault(path))
	}
}

func lambdaSegment(l *expr.Lambda) string {
	if l.Name == "" {
		return "func"
	}
	return "func(" + l.Name + ")"
}

func generatorSegment(g *expr.Generator) string {
	if g.Name == "" {
		return "generator"
	}
	return "generator(" + g.Name + ")"
}

// field returns path extended by name.
func field(path []string, name string) []string {
	return append(slices.Clip(path), name)
}

// index returns path with [i] appended to its last segment.
func index(path []string, i int) []string {
	out := slices.Clone(path)
	out[len(out)-1] += "[" + strconv.Itoa(i) + "]"
	return out
}
