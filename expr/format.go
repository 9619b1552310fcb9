package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Format renders n as indented pseudo-source. Variables and labels are
// named by their Name, suffixed with #k when distinct identities share a
// name, so the output is deterministic for a given tree.
func Format(n Node) string {
	p := &printer{
		vars:   make(map[*Variable]string),
		labels: make(map[*LabelTarget]string),
		taken:  make(map[string]int),
	}
	p.node(n)
	return p.b.String()
}

type printer struct {
	b      strings.Builder
	vars   map[*Variable]string
	labels map[*LabelTarget]string
	taken  map[string]int
	indent int
}

func (p *printer) unique(base string) string {
	p.taken[base]++
	if k := p.taken[base]; k > 1 {
		return base + "#" + strconv.Itoa(k)
	}
	return base
}

func (p *printer) varName(v *Variable) string {
	if name, ok := p.vars[v]; ok {
		return name
	}
	base := v.Name
	if base == "" {
		base = "v"
	}
	name := p.unique(base)
	p.vars[v] = name
	return name
}

func (p *printer) labelName(t *LabelTarget) string {
	if t == nil {
		return "<nil>"
	}
	if name, ok := p.labels[t]; ok {
		return name
	}
	base := t.Name
	if base == "" {
		base = "L"
	}
	name := p.unique("@" + base)
	p.labels[t] = name
	return name
}

func (p *printer) write(s string) { p.b.WriteString(s) }

func (p *printer) newline() {
	p.b.WriteByte('\n')
	p.b.WriteString(strings.Repeat("  ", p.indent))
}

func (p *printer) list(nodes []Node) {
	for i, n := range nodes {
		if i > 0 {
			p.write(", ")
		}
		p.node(n)
	}
}

func (p *printer) body(n Node) {
	if b, ok := n.(*Block); ok {
		p.block(b)
		return
	}
	p.write("{")
	p.indent++
	p.newline()
	p.node(n)
	p.indent--
	p.newline()
	p.write("}")
}

func (p *printer) block(b *Block) {
	if len(b.Vars) > 0 {
		p.write("[")
		for i, v := range b.Vars {
			if i > 0 {
				p.write(", ")
			}
			p.write(p.varName(v))
		}
		p.write("] ")
	}
	if len(b.Exprs) == 0 {
		p.write("{}")
		return
	}
	p.write("{")
	p.indent++
	for _, e := range b.Exprs {
		p.newline()
		p.node(e)
	}
	p.indent--
	p.newline()
	p.write("}")
}

func (p *printer) node(n Node) {
	switch n := n.(type) {
	case nil:
		p.write("<nil>")
	case *Constant:
		p.write(formatValue(n.Value))
	case *Variable:
		p.write(p.varName(n))
	case *Block:
		p.block(n)
	case *Assign:
		p.node(n.Target)
		p.write(" = ")
		p.node(n.Value)
	case *Binary:
		p.write("(")
		p.node(n.Left)
		p.write(" " + n.Op + " ")
		p.node(n.Right)
		p.write(")")
	case *Unary:
		p.write(n.Op)
		p.node(n.Operand)
	case *Call:
		if n.Object != nil {
			p.node(n.Object)
			p.write(".")
		}
		p.write(methodName(n.Method))
		p.write("(")
		p.list(n.Args)
		p.write(")")
	case *New:
		p.write("new ")
		p.write(methodName(n.Ctor))
		p.write("(")
		p.list(n.Args)
		p.write(")")
	case *Member:
		p.node(n.Object)
		p.write("." + n.Name)
	case *Index:
		p.node(n.Object)
		p.write("[")
		p.list(n.Args)
		p.write("]")
	case *NewArray:
		p.write("[")
		p.list(n.Elems)
		p.write("]")
	case *Condition:
		p.write("if ")
		p.node(n.Test)
		p.write(" ")
		p.body(n.Then)
		if n.Else != nil {
			p.write(" else ")
			p.body(n.Else)
		}
	case *Loop:
		p.write("loop")
		if n.Break != nil {
			p.write(" break " + p.labelName(n.Break))
		}
		if n.Continue != nil {
			p.write(" continue " + p.labelName(n.Continue))
		}
		p.write(" ")
		p.body(n.Body)
	case *Label:
		p.write(p.labelName(n.Target) + ":")
	case *Goto:
		p.write("goto " + p.labelName(n.Target))
	case *Switch:
		p.switchNode(n)
	case *Return:
		p.write("return")
		if n.Value != nil {
			p.write(" ")
			p.node(n.Value)
		}
	case *Try:
		p.tryNode(n)
	case *Throw:
		if n.Value == nil {
			p.write("rethrow")
			return
		}
		p.write("throw ")
		p.node(n.Value)
	case *TypeIs:
		p.node(n.Operand)
		p.write(" is " + n.Class)
	case *Lambda:
		p.write("func ")
		if n.Name != "" {
			p.write(n.Name)
		}
		p.write("(")
		for i, v := range n.Params {
			if i > 0 {
				p.write(", ")
			}
			if v.ByRef {
				p.write("&")
			}
			p.write(p.varName(v))
		}
		p.write(") ")
		p.body(n.Body)
	case *Invoke:
		p.node(n.Fn)
		p.write("(")
		p.list(n.Args)
		p.write(")")
	case *Yield:
		name := "?"
		if n.Target != nil {
			name = n.Target.Name
		}
		if n.IsBreak() {
			p.write("yield break(" + name + ")")
			return
		}
		p.write("yield(" + name + ") ")
		p.node(n.Value)
	case *Generator:
		p.write("generator " + n.Name)
		if n.Restartable {
			p.write(" restartable")
		}
		p.write(" ")
		p.body(n.Body)
	case *MakeGenerator:
		p.write("make_generator ")
		p.node(n.Resume)
	case *MakeSequence:
		p.write("make_sequence ")
		p.node(n.Factory)
	default:
		p.write(fmt.Sprintf("<%T>", n))
	}
}

func (p *printer) switchNode(n *Switch) {
	p.write("switch ")
	p.node(n.Value)
	p.write(" {")
	p.indent++
	for _, c := range n.Cases {
		p.newline()
		p.write("case ")
		p.list(c.Values)
		p.write(": ")
		p.body(c.Body)
	}
	if n.Default != nil {
		p.newline()
		p.write("default: ")
		p.body(n.Default)
	}
	p.indent--
	p.newline()
	p.write("}")
}

func (p *printer) tryNode(n *Try) {
	p.write("try ")
	p.body(n.Body)
	for _, h := range n.Handlers {
		p.write(" catch")
		if h.Class != "" {
			p.write(" " + h.Class)
		}
		if h.Var != nil {
			p.write(" " + p.varName(h.Var))
		}
		if h.Filter != nil {
			p.write(" when ")
			p.node(h.Filter)
		}
		p.write(" ")
		p.body(h.Body)
	}
	if n.Finally != nil {
		p.write(" finally ")
		p.body(n.Finally)
	}
	if n.Fault != nil {
		p.write(" fault ")
		p.body(n.Fault)
	}
}

func methodName(m *Method) string {
	if m == nil {
		return "object"
	}
	return m.Name
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(v)
	default:
		return fmt.Sprint(v)
	}
}
