package untype

import (
	"testing"

	"github.com/stretchr/testify/require"

	"stackc/internal/ast"
	"stackc/internal/ir"
	"stackc/internal/types"
)

func TestNodeVar(t *testing.T) {
	n := &ir.Node{Tag: ir.Var, Var: "x", Ty: types.Int}
	got := Node(n)
	require.Equal(t, ast.EVar, got.Desc.Tag)
	require.Equal(t, "x", got.Desc.Var)
}

func TestNodeNilPropagates(t *testing.T) {
	require.Nil(t, Node(nil))
}

func TestNodeIf(t *testing.T) {
	n := &ir.Node{
		Tag:  ir.If,
		Cond: &ir.Node{Tag: ir.ConstNode, Const: types.Const{Kind: types.CBool, Bool: true}},
		Then: &ir.Node{Tag: ir.Var, Var: "a"},
		Else: &ir.Node{Tag: ir.Var, Var: "b"},
	}
	got := Node(n)
	require.Equal(t, ast.EIf, got.Desc.Tag)
	require.Equal(t, ast.EConst, got.Desc.Cond.Desc.Tag)
	require.Equal(t, "a", got.Desc.Then.Desc.Var)
	require.Equal(t, "b", got.Desc.Else.Desc.Var)
}

// TestNodeClosureFlattensEnv covers the one structurally asymmetric case:
// ir.Closure wraps a nested Lambda plus a separately compiled captured
// env tuple, but the untyped surface form only ever has a bare lambda
// shape. untype must recover the lambda's Param/ParamTy/Recur/body and
// drop the env tuple outright.
func TestNodeClosureFlattensEnv(t *testing.T) {
	inner := &ir.Node{
		Tag:     ir.Lambda,
		Param:   "x",
		ParamTy: types.Int,
		Recur:   true,
		Lam:     &ir.Node{Tag: ir.Var, Var: "x"},
	}
	closure := &ir.Node{
		Tag: ir.Closure,
		Lam: inner,
		Env: &ir.Node{Tag: ir.ConstNode, Const: types.Const{Kind: types.CUnit}},
	}

	got := Node(closure)
	require.Equal(t, ast.EClosureLit, got.Desc.Tag)
	require.Equal(t, "x", got.Desc.Param)
	require.True(t, types.Equal(types.Int, got.Desc.ParamTy))
	require.True(t, got.Desc.Recur)
	require.Equal(t, ast.EVar, got.Desc.Lam.Desc.Tag)
}

func TestContractFields(t *testing.T) {
	c := &ir.Contract{
		Name:    "c",
		Storage: types.Nat,
		Globals: []ir.GlobalBinding{{Name: "g", Value: &ir.Node{Tag: ir.ConstNode, Const: types.Const{Kind: types.CNat, Int: 1}}}},
		Entries: []ir.Entry{{Name: "main", ParamName: "p", ParamTy: types.Int, StorageName: "s", Body: &ir.Node{Tag: ir.Var, Var: "p"}}},
	}
	out := Contract(c)
	require.Equal(t, "c", out.Name)
	require.Len(t, out.Globals, 1)
	require.Equal(t, "g", out.Globals[0].Name)
	require.Len(t, out.Entries, 1)
	require.Equal(t, "main", out.Entries[0].Name)
}
