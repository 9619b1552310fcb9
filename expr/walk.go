package expr

// Children returns the operands of n in evaluation order. Optional operands
// that are absent appear as nil so the result lines up with WithChildren.
// Declarations (Block.Vars, Catch.Var, Lambda.Params) are not operands.
func Children(n Node) []Node {
	switch n := n.(type) {
	case *Block:
		return n.Exprs
	case *Assign:
		return []Node{n.Target, n.Value}
	case *Binary:
		return []Node{n.Left, n.Right}
	case *Unary:
		return []Node{n.Operand}
	case *Call:
		return append([]Node{n.Object}, n.Args...)
	case *New:
		return n.Args
	case *Member:
		return []Node{n.Object}
	case *Index:
		return append([]Node{n.Object}, n.Args...)
	case *NewArray:
		return n.Elems
	case *Condition:
		return []Node{n.Test, n.Then, n.Else}
	case *Loop:
		return []Node{n.Body}
	case *Switch:
		kids := []Node{n.Value}
		for _, c := range n.Cases {
			kids = append(kids, c.Values...)
			kids = append(kids, c.Body)
		}
		return append(kids, n.Default)
	case *Return:
		return []Node{n.Value}
	case *Try:
		kids := []Node{n.Body}
		for _, h := range n.Handlers {
			kids = append(kids, h.Filter, h.Body)
		}
		return append(kids, n.Finally, n.Fault)
	case *Throw:
		return []Node{n.Value}
	case *TypeIs:
		return []Node{n.Operand}
	case *Lambda:
		return []Node{n.Body}
	case *Invoke:
		return append([]Node{n.Fn}, n.Args...)
	case *Yield:
		return []Node{n.Value}
	case *Generator:
		return []Node{n.Body}
	case *MakeGenerator:
		return []Node{n.Resume}
	case *MakeSequence:
		return []Node{n.Factory}
	}
	return nil
}

// WithChildren returns a shallow copy of n with its operands replaced by
// kids, which must line up with Children(n).
func WithChildren(n Node, kids []Node) Node {
	switch n := n.(type) {
	case *Block:
		return &Block{Vars: n.Vars, Exprs: kids}
	case *Assign:
		return &Assign{Target: kids[0], Value: kids[1]}
	case *Binary:
		return &Binary{Op: n.Op, Left: kids[0], Right: kids[1]}
	case *Unary:
		return &Unary{Op: n.Op, Operand: kids[0]}
	case *Call:
		return &Call{Object: kids[0], Method: n.Method, Args: kids[1:]}
	case *New:
		return &New{Ctor: n.Ctor, Args: kids}
	case *Member:
		return &Member{Object: kids[0], Name: n.Name}
	case *Index:
		return &Index{Object: kids[0], Args: kids[1:]}
	case *NewArray:
		return &NewArray{Elems: kids}
	case *Condition:
		return &Condition{Test: kids[0], Then: kids[1], Else: kids[2]}
	case *Loop:
		return &Loop{Body: kids[0], Break: n.Break, Continue: n.Continue}
	case *Switch:
		out := &Switch{Value: kids[0]}
		i := 1
		for _, c := range n.Cases {
			nc := &SwitchCase{Values: kids[i : i+len(c.Values)]}
			i += len(c.Values)
			nc.Body = kids[i]
			i++
			out.Cases = append(out.Cases, nc)
		}
		out.Default = kids[i]
		return out
	case *Return:
		return &Return{Value: kids[0]}
	case *Try:
		out := &Try{Body: kids[0]}
		i := 1
		for _, h := range n.Handlers {
			out.Handlers = append(out.Handlers, &Catch{
				Class:  h.Class,
				Var:    h.Var,
				Filter: kids[i],
				Body:   kids[i+1],
			})
			i += 2
		}
		out.Finally = kids[i]
		out.Fault = kids[i+1]
		return out
	case *Throw:
		return &Throw{Value: kids[0]}
	case *TypeIs:
		return &TypeIs{Operand: kids[0], Class: n.Class}
	case *Lambda:
		return &Lambda{Name: n.Name, Params: n.Params, Body: kids[0]}
	case *Invoke:
		return &Invoke{Fn: kids[0], Args: kids[1:]}
	case *Yield:
		return &Yield{Target: n.Target, Value: kids[0]}
	case *Generator:
		return &Generator{
			Name:        n.Name,
			Target:      n.Target,
			Element:     n.Element,
			Body:        kids[0],
			Restartable: n.Restartable,
		}
	case *MakeGenerator:
		return &MakeGenerator{Resume: kids[0].(*Lambda)}
	case *MakeSequence:
		return &MakeSequence{Factory: kids[0].(*Lambda)}
	}
	return n
}

// MapChildren applies fn to every non-nil operand of n. When fn returns
// every operand unchanged, n itself is returned.
func MapChildren(n Node, fn func(Node) (Node, error)) (Node, error) {
	kids := Children(n)
	if len(kids) == 0 {
		return n, nil
	}
	var out []Node
	for i, k := range kids {
		if k == nil {
			continue
		}
		nk, err := fn(k)
		if err != nil {
			return nil, err
		}
		if nk != k && out == nil {
			out = make([]Node, len(kids))
			copy(out, kids)
		}
		if out != nil {
			out[i] = nk
		}
	}
	if out == nil {
		return n, nil
	}
	return WithChildren(n, out), nil
}

// Rewriter performs a post-order rewrite.
type Rewriter struct {
	// Skip prunes a subtree, which is then returned unchanged.
	Skip func(Node) bool
	// Post rewrites a node whose operands were already rewritten.
	// Returning its argument reports no change.
	Post func(Node) Node
}

// Apply rewrites n. Subtrees in which nothing changed keep their identity.
func (rw Rewriter) Apply(n Node) Node {
	if n == nil {
		return nil
	}
	if rw.Skip != nil && rw.Skip(n) {
		return n
	}
	out, _ := MapChildren(n, func(k Node) (Node, error) {
		return rw.Apply(k), nil
	})
	if rw.Post != nil {
		out = rw.Post(out)
	}
	return out
}

// Rewrite is Rewriter{Post: post}.Apply(n).
func Rewrite(n Node, post func(Node) Node) Node {
	return Rewriter{Post: post}.Apply(n)
}

// Walk visits n and its operands in pre-order. Returning false from fn
// skips the operands of that node.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, k := range Children(n) {
		Walk(k, fn)
	}
}
