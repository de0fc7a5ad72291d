package codegen

import (
	"stackc/internal/michelson"
	"stackc/internal/types"
)

// compileConst lowers a checked literal to a single PUSH, except the
// empty big_map (spec.md §9 open question): EMPTY_BIG_MAP is its own
// instruction, never a PUSH-able literal, and every big_map constant
// reaching codegen is the one the encoder's rewriteEmptyBigMap already
// bound to a storage slot.
func compileConst(c types.Const, ty *types.Type) (michelson.Seq, error) {
	if c.Kind == types.CBigMap {
		return michelson.Seq{{Op: michelson.OpEmptyBigMap, Tys: []*types.Type{ty.Args[0], ty.Args[1]}}}, nil
	}
	return michelson.Seq{{Op: michelson.OpPush, Ty: ty, Const: c}}, nil
}
