package simplify

import (
	"testing"

	"github.com/stretchr/testify/require"

	"stackc/internal/ir"
	"stackc/internal/types"
)

func constInt(v int64) *ir.Node {
	return &ir.Node{Tag: ir.ConstNode, Ty: types.Int, Pure: true, Const: types.Const{Kind: types.CInt, Int: v}}
}

// TestContractSeedsFromCheckerUseCount proves node() trusts the checker's
// UseCount annotation, rather than recomputing it, whenever a let's body
// hasn't been touched by a nested rewrite. x is referenced twice in the
// body, but UseCount is deliberately set to 1 (standing in for the
// checker's annotation) to tell the two code paths apart: recomputing
// from scratch would see 2 uses and leave the let in place, while
// trusting the seeded count of 1 takes the single-use inlining branch
// and substitutes both occurrences.
func TestContractSeedsFromCheckerUseCount(t *testing.T) {
	body := &ir.Node{
		Tag: ir.Apply, Ty: types.Int, Prim: "+",
		Args: []*ir.Node{
			{Tag: ir.Var, Ty: types.Int, Var: "x"},
			{Tag: ir.Var, Ty: types.Int, Var: "x"},
		},
	}
	let := &ir.Node{
		Tag: ir.Let, Ty: types.Int, Name: "x",
		Bound: constInt(9), Body: body, UseCount: 1,
	}

	out := node(let)

	require.Equal(t, ir.Apply, out.Tag, "seeding should inline into the unchanged body, not keep the let")
	require.Equal(t, ir.ConstNode, out.Args[0].Tag)
	require.Equal(t, int64(9), out.Args[0].Const.Int)
	require.Equal(t, ir.ConstNode, out.Args[1].Tag)
	require.Equal(t, int64(9), out.Args[1].Const.Int)
}

// TestContractRecomputesAfterNestedRewrite covers the case the checker's
// annotation can't describe: an outer let whose body contains an inner
// let that simplification itself eliminates, changing how many times the
// outer binding is actually referenced by the time the outer let runs.
func TestContractRecomputesAfterNestedRewrite(t *testing.T) {
	// let outer = 1 in (let inner = outer in inner), inner is pure and
	// used once so it inlines to `outer`, leaving the outer var itself as
	// outer's body -- a single reference, matching the checker's original
	// annotation of 1, but reached via recomputation, not the stale field.
	innerBody := &ir.Node{Tag: ir.Var, Ty: types.Int, Var: "inner"}
	inner := &ir.Node{
		Tag: ir.Let, Ty: types.Int, Name: "inner",
		Bound: &ir.Node{Tag: ir.Var, Ty: types.Int, Var: "outer", Pure: true},
		Body:  innerBody, UseCount: 1,
	}
	outer := &ir.Node{
		Tag: ir.Let, Ty: types.Int, Name: "outer",
		Bound: constInt(3), Body: inner, UseCount: 1,
	}

	out := fixpoint(outer)

	require.Equal(t, ir.ConstNode, out.Tag)
	require.Equal(t, int64(3), out.Const.Int)
}
