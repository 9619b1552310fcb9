package rewrite

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/genlower/errors"
	"github.com/wippyai/genlower/expr"
)

// Config configures a Lowerer.
type Config struct {
	// Logger receives debug output for one lowering. Defaults to Logger().
	Logger *zap.Logger
	// Asserts verifies label binding, state density and variable scoping
	// of the assembled tree.
	Asserts bool
}

// Result is the output of lowering one generator.
type Result struct {
	// Tree evaluates to a MakeGenerator, or a MakeSequence for restartable
	// generators.
	Tree    expr.Node
	Hoisted []*expr.Variable
	Temps   []*expr.Variable
	States  int
}

// Lowerer rewrites generator definitions into state machines.
type Lowerer struct {
	log *zap.Logger
	cfg Config
}

// New creates a Lowerer.
func New(cfg Config) *Lowerer {
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}
	return &Lowerer{cfg: cfg, log: log}
}

// Lower lowers def. Structural violations are reported together and no
// output is produced for a definition that has any.
func (l *Lowerer) Lower(def *expr.Generator) (*Result, error) {
	if def == nil || def.Body == nil {
		return nil, errors.InvalidInput(errors.PhaseCheck, "generator definition has no body")
	}
	if def.Target == nil {
		return nil, errors.InvalidInput(errors.PhaseCheck, "generator definition has no yield target")
	}

	body, nestedErr := l.lowerNested(def.Body)
	if err := multierr.Append(nestedErr, Check(def.Target, body)); err != nil {
		return nil, err
	}

	p := newPass(def, l.log)
	rewritten, err := p.stmt(body)
	if err != nil {
		return nil, err
	}
	tree := p.assemble(rewritten)

	if l.cfg.Asserts {
		if err := verify(tree, p.markers.all(), freeVariables(body)); err != nil {
			return nil, err
		}
	}

	l.log.Debug("lowered generator",
		zap.String("name", def.Name),
		zap.Int("states", len(p.markers.all())),
		zap.Int("hoisted", len(p.hoisted)),
		zap.Int("temps", len(p.temps)))

	return &Result{
		Tree:    tree,
		States:  len(p.markers.all()),
		Hoisted: p.hoisted,
		Temps:   p.temps,
	}, nil
}

// lowerNested replaces every generator definition inside body, including
// those under nested functions, with its assembled tree. Inner definitions
// are lowered before the ones enclosing them. A definition that fails is
// replaced by nil and its violations are combined with the others.
func (l *Lowerer) lowerNested(body expr.Node) (expr.Node, error) {
	var errs error
	out := expr.Rewrite(body, func(n expr.Node) expr.Node {
		g, ok := n.(*expr.Generator)
		if !ok {
			return n
		}
		res, err := l.Lower(g)
		if err != nil {
			errs = multierr.Append(errs, err)
			return expr.Nil()
		}
		return res.Tree
	})
	return out, errs
}

// pass holds the accumulators of one generator rewrite.
type pass struct {
	log *zap.Logger
	def *expr.Generator

	markers registry

	hoisted    []*expr.Variable
	hoistedSet map[*expr.Variable]bool
	temps      []*expr.Variable
	tempSet    map[*expr.Variable]bool

	// yields memoizes whether a subtree suspends.
	yields map[expr.Node]bool
	// suspends holds the returns that hand a value to the caller. Exit
	// routing through an inline finally leaves them alone.
	suspends map[*expr.Return]bool

	// finallyDepth counts enclosing finally bodies that suspend. Yields
	// there keep running on dispose so the finally completes.
	finallyDepth int

	state     *expr.Variable
	current   *expr.Variable
	router    *expr.Variable
	disposing *expr.Variable
}

func newPass(def *expr.Generator, log *zap.Logger) *pass {
	return &pass{
		log:        log,
		def:        def,
		hoistedSet: make(map[*expr.Variable]bool),
		tempSet:    make(map[*expr.Variable]bool),
		yields:     make(map[expr.Node]bool),
		suspends:   make(map[*expr.Return]bool),
		state:      expr.RefParam("state"),
		current:    expr.RefParam("current"),
		router:     expr.Var("router"),
		disposing:  expr.Var("disposing"),
	}
}

// hasYield reports whether n contains a yield outside nested functions.
func (p *pass) hasYield(n expr.Node) bool {
	if n == nil {
		return false
	}
	if v, ok := p.yields[n]; ok {
		return v
	}
	found := false
	switch n.(type) {
	case *expr.Yield:
		found = true
	case *expr.Lambda:
	default:
		for _, k := range expr.Children(n) {
			if p.hasYield(k) {
				found = true
				break
			}
		}
	}
	p.yields[n] = found
	return found
}

func isLambda(n expr.Node) bool {
	_, ok := n.(*expr.Lambda)
	return ok
}
