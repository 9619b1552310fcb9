package gendef

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/genlower/errors"
	"github.com/wippyai/genlower/expr"
)

// Definition is the top level of a definition document.
type Definition struct {
	Name        string    `yaml:"name"`
	Element     string    `yaml:"element,omitempty"`
	Restartable bool      `yaml:"restartable,omitempty"`
	Functions   []string  `yaml:"functions,omitempty"`
	Body        yaml.Node `yaml:"body"`
}

// Load reads and decodes the definition at path.
func Load(path string, host *Host) (*expr.Generator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read definition", err)
	}
	return Parse(data, host)
}

// Parse decodes a definition document.
func Parse(data []byte, host *Host) (*expr.Generator, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Load("parse definition", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.InvalidData(errors.PhaseLoad, nil, "empty definition")
	}
	return Decode(doc.Content[0], host)
}

// Decode decodes a definition from an already parsed mapping node, such as
// one embedded in a test suite. A nil host gets the builtins.
func Decode(n *yaml.Node, host *Host) (*expr.Generator, error) {
	var def Definition
	if err := n.Decode(&def); err != nil {
		return nil, errors.Load("decode definition", err)
	}
	if host == nil {
		host = NewHost()
	}

	d := &decoder{host: host}
	if def.Functions != nil {
		d.allowed = make(map[string]bool, len(def.Functions))
		for _, name := range def.Functions {
			if host.Method(name) == nil {
				return nil, errors.NotFound(errors.PhaseLoad, "function", name)
			}
			d.allowed[name] = true
		}
	}
	return d.generator(&def, []string{"body"})
}

type decoder struct {
	host    *Host
	allowed map[string]bool

	target *expr.YieldTarget
	labels *labelSet
	scopes []*scope
}

// scope maps names to variables. Scopes with a block collect the
// declarations of let.
type scope struct {
	block *expr.Block
	vars  map[string]*expr.Variable
}

// labelSet holds the labels of one function body. Gotos may refer to
// labels defined later.
type labelSet struct {
	targets map[string]*expr.LabelTarget
	defined map[string]bool
	first   map[string][]string
}

func newLabelSet() *labelSet {
	return &labelSet{
		targets: make(map[string]*expr.LabelTarget),
		defined: make(map[string]bool),
		first:   make(map[string][]string),
	}
}

func (l *labelSet) ref(name string, path []string) *expr.LabelTarget {
	t, ok := l.targets[name]
	if !ok {
		t = expr.NewLabel(name)
		l.targets[name] = t
		l.first[name] = path
	}
	return t
}

func (d *decoder) fail(n *yaml.Node, path []string, format string, args ...any) error {
	return errors.InvalidData(errors.PhaseLoad, path,
		fmt.Sprintf("line %d: %s", n.Line, fmt.Sprintf(format, args...)))
}

// generator decodes a definition body in a fresh function context.
func (d *decoder) generator(def *Definition, path []string) (*expr.Generator, error) {
	if def.Body.Kind == 0 {
		return nil, errors.InvalidData(errors.PhaseLoad, path, "definition has no body")
	}
	name := def.Name
	if name == "" {
		name = "gen"
	}
	target := expr.NewTarget(name)

	savedTarget, savedLabels := d.target, d.labels
	d.target, d.labels = target, newLabelSet()
	defer func() { d.target, d.labels = savedTarget, savedLabels }()

	body, err := d.function(&def.Body, path)
	if err != nil {
		return nil, err
	}
	return &expr.Generator{
		Name:        def.Name,
		Target:      target,
		Element:     def.Element,
		Body:        body,
		Restartable: def.Restartable,
	}, nil
}

// function decodes a body and checks that every referenced label is
// defined in it.
func (d *decoder) function(n *yaml.Node, path []string) (expr.Node, error) {
	body, err := d.block(n, path)
	if err != nil {
		return nil, err
	}
	for name, t := range d.labels.targets {
		if !d.labels.defined[name] {
			return nil, errors.InvalidData(errors.PhaseLoad, d.labels.first[name],
				fmt.Sprintf("label %q is never defined", t.Name))
		}
	}
	return body, nil
}

// block decodes a statement list into a scope.
func (d *decoder) block(n *yaml.Node, path []string) (*expr.Block, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, d.fail(n, path, "expected a list of statements")
	}
	b := &expr.Block{}
	d.scopes = append(d.scopes, &scope{block: b, vars: make(map[string]*expr.Variable)})
	defer func() { d.scopes = d.scopes[:len(d.scopes)-1] }()

	for i, k := range n.Content {
		s, err := d.node(k, indexed(path, i))
		if err != nil {
			return nil, err
		}
		b.Exprs = append(b.Exprs, s)
	}
	return b, nil
}

// optionalBlock decodes an optional statement list.
func (d *decoder) optionalBlock(n *yaml.Node, path []string) (expr.Node, error) {
	if n == nil {
		return nil, nil
	}
	return d.block(n, path)
}

// bind runs fn inside a scope declaring vars, which is used for lambda
// parameters and catch variables.
func (d *decoder) bind(vars []*expr.Variable, fn func() error) error {
	s := &scope{vars: make(map[string]*expr.Variable, len(vars))}
	for _, v := range vars {
		s.vars[v.Name] = v
	}
	d.scopes = append(d.scopes, s)
	defer func() { d.scopes = d.scopes[:len(d.scopes)-1] }()
	return fn()
}

func (d *decoder) lookup(n *yaml.Node, path []string, name string) (*expr.Variable, error) {
	for i := len(d.scopes) - 1; i >= 0; i-- {
		if v, ok := d.scopes[i].vars[name]; ok {
			return v, nil
		}
	}
	return nil, d.fail(n, path, "undefined variable %q", name)
}

func (d *decoder) declare(n *yaml.Node, path []string, name string) (*expr.Variable, error) {
	for i := len(d.scopes) - 1; i >= 0; i-- {
		s := d.scopes[i]
		if s.block == nil {
			continue
		}
		if _, dup := s.vars[name]; dup {
			return nil, d.fail(n, path, "variable %q declared twice in one block", name)
		}
		v := expr.Var(name)
		s.vars[name] = v
		s.block.Vars = append(s.block.Vars, v)
		return v, nil
	}
	return nil, d.fail(n, path, "let outside a block")
}

func (d *decoder) method(n *yaml.Node, path []string, name string) (*expr.Method, error) {
	if d.allowed != nil && !d.allowed[name] {
		return nil, d.fail(n, path, "function %q is not listed in functions", name)
	}
	m := d.host.Method(name)
	if m == nil {
		return nil, d.fail(n, path, "unknown function %q", name)
	}
	return m, nil
}

// node decodes one statement or expression. Scalars are constants; every
// other node is a mapping with a single key naming its kind.
func (d *decoder) node(n *yaml.Node, path []string) (expr.Node, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		v, err := scalar(n)
		if err != nil {
			return nil, d.fail(n, path, "%v", err)
		}
		return expr.Const(v), nil
	case yaml.AliasNode:
		return d.node(n.Alias, path)
	case yaml.MappingNode:
	default:
		return nil, d.fail(n, path, "expected a scalar or a single-key mapping")
	}
	if len(n.Content) != 2 {
		return nil, d.fail(n, path, "node must have exactly one kind key")
	}

	kind, v := n.Content[0].Value, n.Content[1]
	p := field(path, kind)
	switch kind {
	case "const":
		if v.Kind != yaml.ScalarNode {
			return nil, d.fail(v, p, "const takes a scalar")
		}
		return d.node(v, p)
	case "var":
		name, err := d.name(v, p)
		if err != nil {
			return nil, err
		}
		return d.lookup(v, p, name)
	case "yield":
		value, err := d.node(v, p)
		if err != nil {
			return nil, err
		}
		return expr.YieldOf(d.target, value), nil
	case "break":
		return expr.YieldBreak(d.target), nil
	case "let":
		return d.let(v, p)
	case "set":
		return d.set(v, p)
	case "call":
		return d.call(v, p)
	case "if":
		return d.condition(v, p)
	case "loop":
		return d.loop(v, p)
	case "try":
		return d.try(v, p)
	case "throw":
		value, err := d.node(v, p)
		if err != nil {
			return nil, err
		}
		return &expr.Throw{Value: value}, nil
	case "rethrow":
		return &expr.Throw{}, nil
	case "block":
		return d.block(v, p)
	case "bin":
		items, err := d.list(v, p, 3, 3)
		if err != nil {
			return nil, err
		}
		op, err := d.name(items[0], p)
		if err != nil {
			return nil, err
		}
		operands, err := d.nodes(items[1:], p, 1)
		if err != nil {
			return nil, err
		}
		return expr.Op(op, operands[0], operands[1]), nil
	case "not", "neg":
		operand, err := d.node(v, p)
		if err != nil {
			return nil, err
		}
		op := "!"
		if kind == "neg" {
			op = "-"
		}
		return &expr.Unary{Op: op, Operand: operand}, nil
	case "array":
		items, err := d.list(v, p, 0, -1)
		if err != nil {
			return nil, err
		}
		elems, err := d.nodes(items, p, 0)
		if err != nil {
			return nil, err
		}
		return &expr.NewArray{Elems: elems}, nil
	case "index":
		items, err := d.list(v, p, 2, -1)
		if err != nil {
			return nil, err
		}
		kids, err := d.nodes(items, p, 0)
		if err != nil {
			return nil, err
		}
		return &expr.Index{Object: kids[0], Args: kids[1:]}, nil
	case "member":
		items, err := d.list(v, p, 2, 2)
		if err != nil {
			return nil, err
		}
		obj, err := d.node(items[0], indexed(p, 0))
		if err != nil {
			return nil, err
		}
		name, err := d.name(items[1], p)
		if err != nil {
			return nil, err
		}
		return &expr.Member{Object: obj, Name: name}, nil
	case "new":
		return d.construct(v, p)
	case "goto":
		name, err := d.name(v, p)
		if err != nil {
			return nil, err
		}
		return expr.Jump(d.labels.ref(name, p)), nil
	case "label":
		name, err := d.name(v, p)
		if err != nil {
			return nil, err
		}
		if err := d.define(v, p, name); err != nil {
			return nil, err
		}
		return expr.Mark(d.labels.ref(name, p)), nil
	case "lambda":
		return d.lambda(v, p)
	case "invoke":
		items, err := d.list(v, p, 1, -1)
		if err != nil {
			return nil, err
		}
		kids, err := d.nodes(items, p, 0)
		if err != nil {
			return nil, err
		}
		return &expr.Invoke{Fn: kids[0], Args: kids[1:]}, nil
	case "switch":
		return d.switchNode(v, p)
	case "return":
		if v.ShortTag() == "!!null" {
			return expr.Ret(nil), nil
		}
		value, err := d.node(v, p)
		if err != nil {
			return nil, err
		}
		return expr.Ret(value), nil
	case "is":
		items, err := d.list(v, p, 2, 2)
		if err != nil {
			return nil, err
		}
		operand, err := d.node(items[0], indexed(p, 0))
		if err != nil {
			return nil, err
		}
		class, err := d.name(items[1], p)
		if err != nil {
			return nil, err
		}
		return &expr.TypeIs{Operand: operand, Class: class}, nil
	case "generator":
		var def Definition
		if err := v.Decode(&def); err != nil {
			return nil, d.fail(v, p, "%v", err)
		}
		return d.generator(&def, p)
	}
	return nil, d.fail(n, path, "unknown node kind %q", kind)
}

// let declares variables in the enclosing block in mapping order and
// assigns their initial values.
func (d *decoder) let(n *yaml.Node, path []string) (expr.Node, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) == 0 {
		return nil, d.fail(n, path, "let takes a mapping of names to values")
	}
	var sets []expr.Node
	for i := 0; i < len(n.Content); i += 2 {
		name := n.Content[i].Value
		// The initializer is decoded before the name is in scope.
		value, err := d.node(n.Content[i+1], field(path, name))
		if err != nil {
			return nil, err
		}
		v, err := d.declare(n.Content[i], path, name)
		if err != nil {
			return nil, err
		}
		sets = append(sets, expr.Set(v, value))
	}
	if len(sets) == 1 {
		return sets[0], nil
	}
	return expr.Seq(sets...), nil
}

func (d *decoder) set(n *yaml.Node, path []string) (expr.Node, error) {
	items, err := d.list(n, path, 2, 2)
	if err != nil {
		return nil, err
	}
	var target expr.Node
	if items[0].Kind == yaml.ScalarNode {
		target, err = d.lookup(items[0], path, items[0].Value)
	} else {
		target, err = d.node(items[0], indexed(path, 0))
	}
	if err != nil {
		return nil, err
	}
	switch target.(type) {
	case *expr.Variable, *expr.Member, *expr.Index:
	default:
		return nil, d.fail(items[0], path, "cannot assign to %s", target.Kind())
	}
	value, err := d.node(items[1], indexed(path, 1))
	if err != nil {
		return nil, err
	}
	return expr.Set(target, value), nil
}

func (d *decoder) call(n *yaml.Node, path []string) (expr.Node, error) {
	items, err := d.list(n, path, 1, -1)
	if err != nil {
		return nil, err
	}
	name, err := d.name(items[0], path)
	if err != nil {
		return nil, err
	}
	m, err := d.method(items[0], path, name)
	if err != nil {
		return nil, err
	}
	args, err := d.nodes(items[1:], path, 1)
	if err != nil {
		return nil, err
	}
	return expr.CallFn(m, args...), nil
}

func (d *decoder) construct(n *yaml.Node, path []string) (expr.Node, error) {
	if n.ShortTag() == "!!null" {
		return &expr.New{}, nil
	}
	items, err := d.list(n, path, 1, -1)
	if err != nil {
		return nil, err
	}
	name, err := d.name(items[0], path)
	if err != nil {
		return nil, err
	}
	m, err := d.method(items[0], path, name)
	if err != nil {
		return nil, err
	}
	args, err := d.nodes(items[1:], path, 1)
	if err != nil {
		return nil, err
	}
	return &expr.New{Ctor: m, Args: args}, nil
}

func (d *decoder) condition(n *yaml.Node, path []string) (expr.Node, error) {
	f, err := d.fields(n, path, "test", "then", "else")
	if err != nil {
		return nil, err
	}
	if f["test"] == nil || f["then"] == nil {
		return nil, d.fail(n, path, "if needs test and then")
	}
	test, err := d.node(f["test"], field(path, "test"))
	if err != nil {
		return nil, err
	}
	then, err := d.block(f["then"], field(path, "then"))
	if err != nil {
		return nil, err
	}
	els, err := d.optionalBlock(f["else"], field(path, "else"))
	if err != nil {
		return nil, err
	}
	return &expr.Condition{Test: test, Then: then, Else: els}, nil
}

func (d *decoder) loop(n *yaml.Node, path []string) (expr.Node, error) {
	f, err := d.fields(n, path, "body", "break", "continue")
	if err != nil {
		return nil, err
	}
	if f["body"] == nil {
		return nil, d.fail(n, path, "loop needs a body")
	}
	out := &expr.Loop{}
	for _, key := range []string{"break", "continue"} {
		k := f[key]
		if k == nil {
			continue
		}
		name, err := d.name(k, field(path, key))
		if err != nil {
			return nil, err
		}
		if err := d.define(k, field(path, key), name); err != nil {
			return nil, err
		}
		if key == "break" {
			out.Break = d.labels.ref(name, path)
		} else {
			out.Continue = d.labels.ref(name, path)
		}
	}
	body, err := d.block(f["body"], field(path, "body"))
	if err != nil {
		return nil, err
	}
	out.Body = body
	return out, nil
}

func (d *decoder) try(n *yaml.Node, path []string) (expr.Node, error) {
	f, err := d.fields(n, path, "body", "catch", "finally", "fault")
	if err != nil {
		return nil, err
	}
	if f["body"] == nil {
		return nil, d.fail(n, path, "try needs a body")
	}
	out := &expr.Try{}
	if out.Body, err = d.block(f["body"], field(path, "body")); err != nil {
		return nil, err
	}
	if c := f["catch"]; c != nil {
		if c.Kind != yaml.SequenceNode {
			return nil, d.fail(c, path, "catch takes a list of handlers")
		}
		for i, h := range c.Content {
			handler, err := d.catch(h, field(path, "catch["+strconv.Itoa(i)+"]"))
			if err != nil {
				return nil, err
			}
			out.Handlers = append(out.Handlers, handler)
		}
	}
	if out.Finally, err = d.optionalBlock(f["finally"], field(path, "finally")); err != nil {
		return nil, err
	}
	if out.Fault, err = d.optionalBlock(f["fault"], field(path, "fault")); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *decoder) catch(n *yaml.Node, path []string) (*expr.Catch, error) {
	f, err := d.fields(n, path, "class", "var", "filter", "body")
	if err != nil {
		return nil, err
	}
	h := &expr.Catch{}
	if c := f["class"]; c != nil {
		if h.Class, err = d.name(c, path); err != nil {
			return nil, err
		}
	}
	var vars []*expr.Variable
	if v := f["var"]; v != nil {
		name, err := d.name(v, path)
		if err != nil {
			return nil, err
		}
		h.Var = expr.Var(name)
		vars = append(vars, h.Var)
	}
	err = d.bind(vars, func() error {
		if f["filter"] != nil {
			if h.Filter, err = d.node(f["filter"], field(path, "filter")); err != nil {
				return err
			}
		}
		body := f["body"]
		if body == nil {
			h.Body = expr.Nil()
			return nil
		}
		h.Body, err = d.block(body, path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (d *decoder) lambda(n *yaml.Node, path []string) (expr.Node, error) {
	f, err := d.fields(n, path, "name", "params", "body")
	if err != nil {
		return nil, err
	}
	if f["body"] == nil {
		return nil, d.fail(n, path, "lambda needs a body")
	}
	l := &expr.Lambda{}
	if nm := f["name"]; nm != nil {
		if l.Name, err = d.name(nm, path); err != nil {
			return nil, err
		}
	}
	if ps := f["params"]; ps != nil {
		items, err := d.list(ps, field(path, "params"), 0, -1)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			name, err := d.name(item, field(path, "params"))
			if err != nil {
				return nil, err
			}
			if ref, ok := strings.CutPrefix(name, "&"); ok {
				l.Params = append(l.Params, expr.RefParam(ref))
				continue
			}
			l.Params = append(l.Params, expr.Var(name))
		}
	}

	saved := d.labels
	d.labels = newLabelSet()
	defer func() { d.labels = saved }()

	err = d.bind(l.Params, func() error {
		l.Body, err = d.function(f["body"], path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (d *decoder) switchNode(n *yaml.Node, path []string) (expr.Node, error) {
	f, err := d.fields(n, path, "value", "cases", "default")
	if err != nil {
		return nil, err
	}
	if f["value"] == nil {
		return nil, d.fail(n, path, "switch needs a value")
	}
	out := &expr.Switch{}
	if out.Value, err = d.node(f["value"], field(path, "value")); err != nil {
		return nil, err
	}
	if cs := f["cases"]; cs != nil {
		items, err := d.list(cs, path, 0, -1)
		if err != nil {
			return nil, err
		}
		for i, item := range items {
			cp := field(path, "case["+strconv.Itoa(i)+"]")
			cf, err := d.fields(item, cp, "values", "body")
			if err != nil {
				return nil, err
			}
			if cf["values"] == nil || cf["body"] == nil {
				return nil, d.fail(item, cp, "case needs values and body")
			}
			vals, err := d.list(cf["values"], cp, 1, -1)
			if err != nil {
				return nil, err
			}
			c := &expr.SwitchCase{}
			if c.Values, err = d.nodes(vals, cp, 0); err != nil {
				return nil, err
			}
			if c.Body, err = d.block(cf["body"], cp); err != nil {
				return nil, err
			}
			out.Cases = append(out.Cases, c)
		}
	}
	if out.Default, err = d.optionalBlock(f["default"], field(path, "default")); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *decoder) define(n *yaml.Node, path []string, name string) error {
	if d.labels.defined[name] {
		return d.fail(n, path, "label %q defined twice", name)
	}
	d.labels.defined[name] = true
	return nil
}

// fields returns the values of a mapping node by key. Keys outside allowed
// are rejected.
func (d *decoder) fields(n *yaml.Node, path []string, allowed ...string) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, d.fail(n, path, "expected a mapping")
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i < len(n.Content); i += 2 {
		key := n.Content[i].Value
		known := false
		for _, a := range allowed {
			if a == key {
				known = true
				break
			}
		}
		if !known {
			return nil, d.fail(n.Content[i], path, "unexpected key %q", key)
		}
		out[key] = n.Content[i+1]
	}
	return out, nil
}

// list returns the items of a sequence node with between lo and hi
// items. A negative hi means no upper bound.
func (d *decoder) list(n *yaml.Node, path []string, lo, hi int) ([]*yaml.Node, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, d.fail(n, path, "expected a list")
	}
	if len(n.Content) < lo || (hi >= 0 && len(n.Content) > hi) {
		if lo == hi {
			return nil, d.fail(n, path, "expected %d items, got %d", lo, len(n.Content))
		}
		return nil, d.fail(n, path, "expected at least %d items, got %d", lo, len(n.Content))
	}
	return n.Content, nil
}

// nodes decodes items; offset is the position of the first item in the
// enclosing list, used for paths.
func (d *decoder) nodes(items []*yaml.Node, path []string, offset int) ([]expr.Node, error) {
	out := make([]expr.Node, 0, len(items))
	for i, item := range items {
		k, err := d.node(item, indexed(path, i+offset))
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

func (d *decoder) name(n *yaml.Node, path []string) (string, error) {
	if n.Kind != yaml.ScalarNode || n.Value == "" {
		return "", d.fail(n, path, "expected a name")
	}
	return n.Value, nil
}

func scalar(n *yaml.Node) (any, error) {
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		err := n.Decode(&b)
		return b, err
	case "!!int":
		var i int64
		err := n.Decode(&i)
		return i, err
	case "!!float":
		var f float64
		err := n.Decode(&f)
		return f, err
	}
	return n.Value, nil
}

func field(path []string, name string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, name)
}

// indexed returns path with [i] appended to its last segment.
func indexed(path []string, i int) []string {
	out := make([]string, len(path))
	copy(out, path)
	out[len(out)-1] += "[" + strconv.Itoa(i) + "]"
	return out
}
