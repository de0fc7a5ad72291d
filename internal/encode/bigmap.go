package encode

import (
	"stackc/internal/ir"
	"stackc/internal/types"
)

// rewriteEmptyBigMap implements the §9 Open Question resolution recorded
// in SPEC_FULL.md: a storage initializer that mentions an empty big_map
// constant receives that big_map pre-bound at slot 0 rather than
// constructing one inline, since EMPTY_BIG_MAP is only valid as a
// literal at the point Michelson allocates contract storage. The
// rewrite wraps the initializer body in a Let that binds a slot-0 name
// to an EMPTY_BIG_MAP constant typed like the first empty big_map
// literal found in the initializer (storageTy is not consulted), and
// replaces the empty big_map literals substituteEmptyBigMaps reaches
// with references to that name.
func rewriteEmptyBigMap(init *ir.Node, storageTy *types.Type) *ir.Node {
	if !storageHasEmptyBigMap(init) {
		return init
	}
	const slot0 = "__bigmap_slot0"
	substituted := substituteEmptyBigMaps(init, slot0)
	bigMapTy := firstBigMapConst(init)
	if bigMapTy == nil {
		return init
	}
	return &ir.Node{
		Tag: ir.Let, Ty: substituted.Ty, At: init.At, Name: slot0,
		Bound: &ir.Node{Tag: ir.ConstNode, Ty: bigMapTy, At: init.At,
			Const: types.EmptyBigMap(bigMapTy.Args[0], bigMapTy.Args[1]), Pure: true},
		Body:     substituted,
		Transfer: substituted.Transfer, Pure: substituted.Pure,
	}
}

func storageHasEmptyBigMap(n *ir.Node) bool {
	return firstBigMapConst(n) != nil
}

func firstBigMapConst(n *ir.Node) *types.Type {
	if n == nil {
		return nil
	}
	if n.Tag == ir.ConstNode && n.Const.Kind == types.CBigMap && len(n.Const.Keys) == 0 {
		return n.Ty
	}
	var found *types.Type
	ir.ForEachChild(n, func(child *ir.Node) {
		if found == nil {
			found = firstBigMapConst(child)
		}
	})
	return found
}

// substituteEmptyBigMaps replaces empty big_map ConstNodes with a Var
// reference to the pre-bound slot, preserving physical identity for
// every subtree that contains no such constant. It descends only through
// Bound, Body, First, Second, Cond, Then, Else, FieldVals and Args; a
// literal under any other child (a match arm, a loop or fold body, a
// lambda body, a transfer argument) is left in place.
func substituteEmptyBigMaps(n *ir.Node, slot string) *ir.Node {
	if n == nil {
		return nil
	}
	if n.Tag == ir.ConstNode && n.Const.Kind == types.CBigMap && len(n.Const.Keys) == 0 {
		return &ir.Node{Tag: ir.Var, Ty: n.Ty, At: n.At, Var: slot, Pure: true}
	}
	changed := false
	cp := *n
	rewriteField := func(c *ir.Node) *ir.Node {
		if c == nil {
			return nil
		}
		r := substituteEmptyBigMaps(c, slot)
		if r != c {
			changed = true
		}
		return r
	}
	cp.Bound = rewriteField(n.Bound)
	cp.Body = rewriteField(n.Body)
	cp.First = rewriteField(n.First)
	cp.Second = rewriteField(n.Second)
	cp.Cond = rewriteField(n.Cond)
	cp.Then = rewriteField(n.Then)
	cp.Else = rewriteField(n.Else)
	if len(n.FieldVals) > 0 {
		vals := make([]*ir.Node, len(n.FieldVals))
		for i, v := range n.FieldVals {
			vals[i] = rewriteField(v)
		}
		cp.FieldVals = vals
	}
	if len(n.Args) > 0 {
		args := make([]*ir.Node, len(n.Args))
		for i, a := range n.Args {
			args[i] = rewriteField(a)
		}
		cp.Args = args
	}
	if !changed {
		return n
	}
	return &cp
}
