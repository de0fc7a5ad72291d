package ir

// ForEachChild visits every immediate child of n, in a fixed field order
// (not evaluation order: a loop's LoopBody is visited before its Acc).
// Shared by internal/check (free-variable and use-count analysis) and
// internal/simplify (inlining and dead-binding elimination) so the two
// passes can't drift out of sync on the node shape.
func ForEachChild(n *Node, f func(*Node)) {
	visit := func(x *Node) {
		if x != nil {
			f(x)
		}
	}
	visit(n.Bound)
	visit(n.Body)
	visit(n.First)
	visit(n.Second)
	visit(n.Cond)
	visit(n.Then)
	visit(n.Else)
	visit(n.Lam)
	visit(n.Env)
	for _, a := range n.Args {
		visit(a)
	}
	visit(n.Scrutinee)
	visit(n.NoneBody)
	visit(n.SomeBody)
	visit(n.NilBody)
	visit(n.ConsBody)
	visit(n.PlusBody)
	visit(n.MinusBody)
	for _, cs := range n.Cases {
		visit(cs.Body)
	}
	visit(n.LoopBody)
	visit(n.Acc)
	visit(n.Collection)
	visit(n.IterBody)
	for _, fv := range n.FieldVals {
		visit(fv)
	}
	visit(n.Object)
	visit(n.Value)
	visit(n.Contract)
	visit(n.Amount)
	visit(n.TransferArg)
	visit(n.FailMsg)
	visit(n.CreateStorage)
	visit(n.UnpackBytes)
}
