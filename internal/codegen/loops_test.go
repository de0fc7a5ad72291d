package codegen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"stackc/internal/env"
	"stackc/internal/eval"
	"stackc/internal/ir"
	"stackc/internal/michelson"
	"stackc/internal/types"
)

// runLoopLeftAcc compiles a loop_left node whose body always takes the
// Right arm on its first pass (compileLoopLeft seeds LOOP_LEFT with a
// LEFT value, so the body runs exactly once) and evaluates
// it, returning the final storage. The accumulator node varies between
// callers; the loop body doesn't care how its initial value was built.
func runLoopLeftAcc(t *testing.T, acc *ir.Node) types.Const {
	t.Helper()
	g := New(env.New(), false)

	orTy := types.Or(types.Int, types.Int)
	body := &ir.Node{
		Tag: ir.Apply, Prim: "Right", Ty: orTy,
		Args: []*ir.Node{{Tag: ir.Var, Var: "st", Ty: types.Int}},
	}
	n := &ir.Node{Tag: ir.LoopLeft, Acc: acc, AccVar: "st", LoopBody: body, Ty: types.Int}

	seq, _, err := g.compileLoopLeft(n, []string{"entry_param"})
	require.NoError(t, err)
	seq = append(seq,
		michelson.Instr{Op: michelson.OpNil, Ty: types.Operation},
		michelson.Instr{Op: michelson.OpPair},
		dipDrop(1, 1),
	)

	prog := michelson.Program{Parameter: types.Unit, Storage: types.Int, Code: michelson.ToConcrete(seq)}
	res, err := eval.Run(prog, types.Unit_(), types.Const{Kind: types.CInt, Int: 0})
	require.NoError(t, err)
	return res.Storage
}

// TestLoopLeftAccConventionsAgree is the resolved open question's
// property test: whichever shape the accumulator arrives in, LOOP_LEFT's
// Left-seeding and the body's trailing dipDrop behave identically.
// acc here is a plain literal in one case and an expression in the
// other; both get LEFT-wrapped by compileLoopLeft the same way.
func TestLoopLeftAccConventionsAgree(t *testing.T) {
	literalAcc := &ir.Node{Tag: ir.ConstNode, Const: types.Const{Kind: types.CInt, Int: 5}, Ty: types.Int}
	computedAcc := &ir.Node{
		Tag: ir.Apply, Prim: "+", Ty: types.Int,
		Args: []*ir.Node{
			{Tag: ir.ConstNode, Const: types.Const{Kind: types.CInt, Int: 2}, Ty: types.Int},
			{Tag: ir.ConstNode, Const: types.Const{Kind: types.CInt, Int: 3}, Ty: types.Int},
		},
	}

	fromLiteral := runLoopLeftAcc(t, literalAcc)
	fromComputed := runLoopLeftAcc(t, computedAcc)

	require.Equal(t, fromLiteral, fromComputed)
	require.Equal(t, types.CInt, fromLiteral.Kind)
	require.Equal(t, int64(5), fromLiteral.Int)
}
