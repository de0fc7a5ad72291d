// Package untype is the decompile direction's post-Decompiler stage
// (spec.md §2's pipeline: "Parsed M → Symbolic interpreter → Decompiler →
// Untyper → Printer"): it discards the inferred types a reconstructed
// internal/ir.Contract carries, recovering the untyped internal/ast shape
// the same way a fresh parse of L source would. internal/ir's node
// variants mirror internal/ast's one-for-one (ir.Closure aside, see
// Node), so this is a straight structural walk rather than an inference
// problem.
package untype

import (
	"stackc/internal/ast"
	"stackc/internal/ir"
)

// Contract untypes a whole decompiled contract.
func Contract(c *ir.Contract) *ast.Contract {
	out := &ast.Contract{Name: c.Name, Storage: c.Storage}
	for _, g := range c.Globals {
		out.Globals = append(out.Globals, ast.GlobalBinding{Name: g.Name, Value: Node(g.Value)})
	}
	for _, e := range c.Entries {
		out.Entries = append(out.Entries, ast.Entry{
			Name: e.Name, ParamName: e.ParamName, ParamTy: e.ParamTy,
			StorageName: e.StorageName, Body: Node(e.Body), At: e.At,
		})
	}
	if c.Init != nil {
		out.Init = Node(c.Init)
	}
	return out
}

// Node untypes one typed term, recursing into every child. Nil is
// propagated to nil so callers can untype optional fields uniformly.
func Node(n *ir.Node) *ast.Expr {
	if n == nil {
		return nil
	}
	e := &ast.Expr{At: n.At, Name: n.Name}
	d := &e.Desc
	switch n.Tag {
	case ir.Var:
		d.Tag, d.Var = ast.EVar, n.Var
	case ir.ConstNode:
		d.Tag, d.Const = ast.EConst, n.Const
	case ir.Let:
		d.Tag, d.Name, d.Bound, d.Body = ast.ELet, n.Name, Node(n.Bound), Node(n.Body)
	case ir.Seq:
		d.Tag, d.First, d.Second = ast.ESeq, Node(n.First), Node(n.Second)
	case ir.If:
		d.Tag, d.Cond, d.Then, d.Else = ast.EIf, Node(n.Cond), Node(n.Then), Node(n.Else)
	case ir.Lambda:
		d.Tag, d.Param, d.ParamTy, d.Lam, d.Recur = ast.ELambda, n.Param, n.ParamTy, Node(n.Lam), n.Recur
	case ir.Closure:
		// ir represents a closure as a nested Lambda node plus a separately
		// compiled env tuple (internal/codegen.compileClosure); the surface
		// form has no such split, so flatten back to the inner lambda's
		// shape and drop the captured-env tuple, matching how a plain
		// `fun param -> body` reads regardless of what it closes over.
		d.Tag = ast.EClosureLit
		d.Param, d.ParamTy, d.Recur = n.Lam.Param, n.Lam.ParamTy, n.Lam.Recur
		d.Lam = Node(n.Lam.Lam)
	case ir.Apply:
		d.Tag, d.Prim = ast.EApply, n.Prim
		for _, a := range n.Args {
			d.Args = append(d.Args, Node(a))
		}
	case ir.MatchOption:
		d.Tag, d.Scrutinee = ast.EMatchOption, Node(n.Scrutinee)
		d.NoneCase, d.SomeVar, d.SomeCase = Node(n.NoneBody), n.SomeVar, Node(n.SomeBody)
	case ir.MatchNat:
		d.Tag, d.Scrutinee = ast.EMatchNat, Node(n.Scrutinee)
		d.PlusVar, d.PlusCase = n.PlusVar, Node(n.PlusBody)
		d.MinusVar, d.MinusCase = n.MinusVar, Node(n.MinusBody)
	case ir.MatchList:
		d.Tag, d.Scrutinee = ast.EMatchList, Node(n.Scrutinee)
		d.NilCase = Node(n.NilBody)
		d.HeadVar, d.TailVar, d.ConsCase = n.HeadVar, n.TailVar, Node(n.ConsBody)
	case ir.MatchVariant:
		d.Tag, d.Scrutinee = ast.EMatchVariant, Node(n.Scrutinee)
		for _, c := range n.Cases {
			d.Cases = append(d.Cases, ast.MatchCase{Ctor: c.Ctor, Var: c.Var, Body: Node(c.Body)})
		}
	case ir.Loop:
		d.Tag, d.Acc, d.AccVar, d.LoopCond = ast.ELoop, Node(n.Acc), n.AccVar, Node(n.LoopBody)
	case ir.LoopLeft:
		d.Tag, d.Acc, d.AccVar, d.LoopCond = ast.ELoopLeft, Node(n.Acc), n.AccVar, Node(n.LoopBody)
	case ir.Fold:
		d.Tag = ast.EFold
		d.Acc, d.AccVar, d.EltVar, d.Collection, d.LoopCond = Node(n.Acc), n.AccVar, n.EltVar, Node(n.Collection), Node(n.IterBody)
	case ir.MapNode:
		d.Tag = ast.EMap
		d.EltVar, d.Collection, d.LoopCond = n.EltVar, Node(n.Collection), Node(n.IterBody)
	case ir.MapFold:
		d.Tag = ast.EMapFold
		d.Acc, d.AccVar, d.EltVar, d.Collection, d.LoopCond = Node(n.Acc), n.AccVar, n.EltVar, Node(n.Collection), Node(n.IterBody)
	case ir.RecordConstruct:
		d.Tag, d.RecordName = ast.ERecordConstruct, n.RecordName
		for i, f := range n.FieldOrder {
			d.Fields = append(d.Fields, ast.FieldInit{Field: f, Value: Node(n.FieldVals[i])})
		}
	case ir.Project:
		d.Tag, d.Object, d.Field = ast.EProject, Node(n.Object), n.Field
	case ir.SetField:
		d.Tag, d.Object, d.Field, d.Value = ast.ESetField, Node(n.Object), n.Field, Node(n.Value)
	case ir.Transfer:
		d.Tag, d.Contract, d.Amount, d.TransferArg = ast.ETransfer, Node(n.Contract), Node(n.Amount), Node(n.TransferArg)
	case ir.Failwith:
		d.Tag, d.FailMsg = ast.EFailwith, Node(n.FailMsg)
	case ir.CreateContract:
		d.Tag, d.CreateStorage = ast.ECreateContract, Node(n.CreateStorage)
	case ir.ContractAt:
		d.Tag, d.Object, d.ContractParamTy = ast.EContractAt, Node(n.Object), n.ContractParamTy
	case ir.Unpack:
		d.Tag, d.UnpackBytes, d.UnpackTy = ast.EUnpack, Node(n.UnpackBytes), n.UnpackTy
	}
	return e
}
