package encode

import (
	"stackc/internal/env"
	"stackc/internal/ir"
	"stackc/internal/types"
)

// variantEncodedType returns the right-leaning `or` type representing
// ctors[from:] of def, the physical encoding a constructor's Left/Right
// injections target (spec.md §4.2 "declaration order is stable").
func variantEncodedType(def *env.VariantDef, from int) *types.Type {
	if from == len(def.Ctors)-1 {
		return def.Ctors[from].Ty
	}
	return types.Or(def.Ctors[from].Ty, variantEncodedType(def, from+1))
}

// apply lowers constructor/Left/Right applications to the binarized Or
// encoding and otherwise just recurses into the primitive's arguments.
func (enc *Encoder) apply(n *ir.Node) (*ir.Node, error) {
	switch n.Prim {
	case "Left", "Right":
		arg, err := enc.node(n.Args[0])
		if err != nil {
			return nil, err
		}
		if arg == n.Args[0] {
			return n, nil
		}
		cp := *n
		cp.Args = []*ir.Node{arg}
		return &cp, nil
	}

	if owners := enc.Env.CtorOwners(n.Prim); len(owners) == 1 {
		return enc.ctorConstruct(n, owners[0])
	}
	return enc.rebuildGeneric(n)
}

func (enc *Encoder) ctorConstruct(n *ir.Node, variantName string) (*ir.Node, error) {
	def := enc.Env.Variants[variantName]
	idx, _ := def.CtorIndex(n.Prim)

	val, err := enc.node(n.Args[0])
	if err != nil {
		return nil, err
	}

	var built *ir.Node
	if idx < len(def.Ctors)-1 {
		built = &ir.Node{Tag: ir.Apply, Ty: variantEncodedType(def, idx), At: n.At,
			Prim: "Left", Args: []*ir.Node{val}, Transfer: val.Transfer, Pure: val.Pure}
	} else {
		built = val
	}
	for i := idx - 1; i >= 0; i-- {
		built = &ir.Node{Tag: ir.Apply, Ty: variantEncodedType(def, i), At: n.At,
			Prim: "Right", Args: []*ir.Node{built}, Transfer: built.Transfer, Pure: built.Pure}
	}
	return built, nil
}
