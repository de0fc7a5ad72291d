// Package simplify is the one-use inlining pass of spec.md §4.3: a pure
// `let`-bound value referenced exactly once is substituted directly at
// its use site and the binding dropped, then any binding left with zero
// references is dropped outright. Both rewrites run to a fixpoint since
// inlining one binding can drop another's use count to zero or one.
package simplify

import "stackc/internal/ir"

// Contract simplifies every entry body and the storage initializer,
// trusting the checker's UseCount annotation where a subtree hasn't been
// touched yet and re-deriving it once inlining invalidates it.
func Contract(c *ir.Contract) *ir.Contract {
	out := &ir.Contract{Name: c.Name, Storage: c.Storage, Init: c.Init}
	for _, g := range c.Globals {
		out.Globals = append(out.Globals, ir.GlobalBinding{Name: g.Name, Value: fixpoint(g.Value)})
	}
	if c.Init != nil {
		out.Init = fixpoint(c.Init)
	}
	for _, e := range c.Entries {
		out.Entries = append(out.Entries, ir.Entry{
			Name: e.Name, ParamName: e.ParamName, ParamTy: e.ParamTy,
			StorageName: e.StorageName, At: e.At, Body: fixpoint(e.Body),
		})
	}
	return out
}

// fixpoint alternates inlining and dead-binding elimination until a
// round changes nothing.
func fixpoint(n *ir.Node) *ir.Node {
	for {
		next := node(n)
		if next == n {
			return n
		}
		n = next
	}
}

func node(n *ir.Node) *ir.Node {
	if n == nil {
		return nil
	}
	if n.Tag == ir.Let {
		bound := node(n.Bound)
		body := node(n.Body)

		// body is physically unchanged from what the checker's
		// annotateUseCounts saw, so its UseCount is still exact; only
		// recompute when a nested rewrite could have invalidated it.
		uses := n.UseCount
		if body != n.Body {
			uses = countRefs(body, n.Name)
		}

		if bound.Pure && uses == 0 {
			return body
		}
		if bound.Pure && uses == 1 {
			return substitute(body, n.Name, bound)
		}
		if bound == n.Bound && body == n.Body {
			return n
		}
		cp := *n
		cp.Bound, cp.Body, cp.UseCount = bound, body, uses
		return &cp
	}
	return rebuild(n, node)
}

// countRefs recomputes how many times name is referenced in n, stopping
// at a shadowing Let/Lambda binding of the same name. Only needed once a
// nested rewrite has invalidated the checker's UseCount annotation for
// this binder; node seeds straight from n.UseCount otherwise.
func countRefs(n *ir.Node, name string) int {
	if n == nil {
		return 0
	}
	switch n.Tag {
	case ir.Var:
		if n.Var == name {
			return 1
		}
		return 0
	case ir.Lambda:
		if n.Param == name {
			return 0
		}
		return countRefs(n.Lam, name)
	case ir.Let:
		c := countRefs(n.Bound, name)
		if n.Name == name {
			return c
		}
		return c + countRefs(n.Body, name)
	}
	total := 0
	ir.ForEachChild(n, func(child *ir.Node) { total += countRefs(child, name) })
	return total
}

// substitute replaces every free occurrence of name in n with value,
// stopping at a shadowing Let or Lambda binding of the same name.
// value is pure and used exactly once, so duplicating its pointer here
// is safe: no other live reference observes it.
func substitute(n *ir.Node, name string, value *ir.Node) *ir.Node {
	if n == nil {
		return nil
	}
	switch n.Tag {
	case ir.Var:
		if n.Var == name {
			return value
		}
		return n
	case ir.Lambda:
		if n.Param == name {
			return n
		}
	case ir.Let:
		boundSub := substitute(n.Bound, name, value)
		if n.Name == name {
			if boundSub == n.Bound {
				return n
			}
			cp := *n
			cp.Bound = boundSub
			return &cp
		}
		bodySub := substitute(n.Body, name, value)
		if boundSub == n.Bound && bodySub == n.Body {
			return n
		}
		cp := *n
		cp.Bound, cp.Body = boundSub, bodySub
		return &cp
	}
	return rebuild(n, func(c *ir.Node) *ir.Node { return substitute(c, name, value) })
}

// rebuild applies f to every child of n, returning n itself when nothing
// changed (spec.md §9 physical-identity preservation).
func rebuild(n *ir.Node, f func(*ir.Node) *ir.Node) *ir.Node {
	changed := false
	rw := func(c *ir.Node) *ir.Node {
		if c == nil {
			return nil
		}
		r := f(c)
		if r != c {
			changed = true
		}
		return r
	}

	cp := *n
	cp.Bound = rw(n.Bound)
	cp.Body = rw(n.Body)
	cp.First = rw(n.First)
	cp.Second = rw(n.Second)
	cp.Cond = rw(n.Cond)
	cp.Then = rw(n.Then)
	cp.Else = rw(n.Else)
	cp.Lam = rw(n.Lam)
	cp.Env = rw(n.Env)
	cp.Scrutinee = rw(n.Scrutinee)
	cp.NoneBody = rw(n.NoneBody)
	cp.SomeBody = rw(n.SomeBody)
	cp.NilBody = rw(n.NilBody)
	cp.ConsBody = rw(n.ConsBody)
	cp.PlusBody = rw(n.PlusBody)
	cp.MinusBody = rw(n.MinusBody)
	cp.LoopBody = rw(n.LoopBody)
	cp.Acc = rw(n.Acc)
	cp.Collection = rw(n.Collection)
	cp.IterBody = rw(n.IterBody)
	cp.Object = rw(n.Object)
	cp.Value = rw(n.Value)
	cp.Contract = rw(n.Contract)
	cp.Amount = rw(n.Amount)
	cp.TransferArg = rw(n.TransferArg)
	cp.FailMsg = rw(n.FailMsg)
	cp.CreateStorage = rw(n.CreateStorage)
	cp.UnpackBytes = rw(n.UnpackBytes)

	if len(n.Cases) > 0 {
		cases := make([]ir.Case, len(n.Cases))
		for i, c := range n.Cases {
			b := rw(c.Body)
			cases[i] = ir.Case{Ctor: c.Ctor, Var: c.Var, Body: b}
		}
		cp.Cases = cases
	}
	if len(n.FieldVals) > 0 {
		vals := make([]*ir.Node, len(n.FieldVals))
		for i, v := range n.FieldVals {
			vals[i] = rw(v)
		}
		cp.FieldVals = vals
	}
	if len(n.Args) > 0 {
		args := make([]*ir.Node, len(n.Args))
		for i, a := range n.Args {
			args[i] = rw(a)
		}
		cp.Args = args
	}

	if !changed {
		return n
	}
	return &cp
}
