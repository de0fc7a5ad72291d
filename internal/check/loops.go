package check

import (
	"stackc/internal/ast"
	"stackc/internal/diag"
	"stackc/internal/ir"
	"stackc/internal/types"
)

// inferLoop types a `loop` whose body must return `(bool, acc)` (spec.md
// §4.4 "Loops and folds").
func (c *Checker) inferLoop(e *ast.Expr) (*ir.Node, error) {
	acc, err := c.infer(e.Desc.Acc)
	if err != nil {
		return nil, err
	}
	mark := c.Env.Push(e.Desc.AccVar, acc.Ty)
	body, err := c.check(e.Desc.LoopCond, types.Tuple(types.Bool, acc.Ty))
	c.Env.PopTo(mark)
	if err != nil {
		return nil, err
	}
	return &ir.Node{Tag: ir.Loop, Ty: acc.Ty, At: e.At, Name: e.Name,
		AccVar: e.Desc.AccVar, Acc: acc, LoopBody: body,
		Transfer: acc.Transfer || body.Transfer, Pure: acc.Pure && body.Pure,
	}, nil
}

// inferLoopLeft types `loop_left`, whose body returns an `or`: Left
// continues, Right produces the final accumulator (spec.md §9 open
// question). internal/codegen lowers every accumulator through one
// LEFT-seed-then-LOOP_LEFT shape; it has no separate acc=Some and
// acc=None code paths.
func (c *Checker) inferLoopLeft(e *ast.Expr) (*ir.Node, error) {
	acc, err := c.infer(e.Desc.Acc)
	if err != nil {
		return nil, err
	}
	mark := c.Env.Push(e.Desc.AccVar, acc.Ty)
	body, err := c.infer(e.Desc.LoopCond)
	c.Env.PopTo(mark)
	if err != nil {
		return nil, err
	}
	if body.Ty.Kind != types.KOr {
		return nil, diag.New(diag.Semantic, diag.TypeMismatch, e.At, "loop_left body must return an `or`, got %s", body.Ty)
	}
	return &ir.Node{Tag: ir.LoopLeft, Ty: body.Ty.Args[1], At: e.At, Name: e.Name,
		AccVar: e.Desc.AccVar, Acc: acc, LoopBody: body,
		Transfer: acc.Transfer || body.Transfer, Pure: acc.Pure && body.Pure,
	}, nil
}

func (c *Checker) inferFold(e *ast.Expr) (*ir.Node, error) {
	coll, err := c.infer(e.Desc.Collection)
	if err != nil {
		return nil, err
	}
	eltTy, err := elementType(coll.Ty, e.At)
	if err != nil {
		return nil, err
	}
	acc, err := c.infer(e.Desc.Acc)
	if err != nil {
		return nil, err
	}
	mark := c.Env.Push(e.Desc.EltVar, eltTy)
	c.Env.Push(e.Desc.AccVar, acc.Ty)
	body, err := c.barrier("inside a fold body", func() (*ir.Node, error) {
		return c.check(e.Desc.LoopCond, acc.Ty)
	})
	c.Env.PopTo(mark)
	if err != nil {
		return nil, err
	}
	return &ir.Node{Tag: ir.Fold, Ty: acc.Ty, At: e.At, Name: e.Name,
		EltVar: e.Desc.EltVar, AccVar: e.Desc.AccVar, Acc: acc, Collection: coll, IterBody: body,
		Transfer: coll.Transfer || acc.Transfer, Pure: coll.Pure && acc.Pure && body.Pure,
	}, nil
}

func (c *Checker) inferMap(e *ast.Expr) (*ir.Node, error) {
	coll, err := c.infer(e.Desc.Collection)
	if err != nil {
		return nil, err
	}
	eltTy, err := elementType(coll.Ty, e.At)
	if err != nil {
		return nil, err
	}
	mark := c.Env.Push(e.Desc.EltVar, eltTy)
	body, err := c.barrier("inside a map body", func() (*ir.Node, error) {
		return c.infer(e.Desc.LoopCond)
	})
	c.Env.PopTo(mark)
	if err != nil {
		return nil, err
	}
	resultTy := rebuildCollection(coll.Ty, body.Ty)
	return &ir.Node{Tag: ir.MapNode, Ty: resultTy, At: e.At, Name: e.Name,
		EltVar: e.Desc.EltVar, Collection: coll, IterBody: body,
		Transfer: coll.Transfer, Pure: coll.Pure && body.Pure,
	}, nil
}

func (c *Checker) inferMapFold(e *ast.Expr) (*ir.Node, error) {
	coll, err := c.infer(e.Desc.Collection)
	if err != nil {
		return nil, err
	}
	eltTy, err := elementType(coll.Ty, e.At)
	if err != nil {
		return nil, err
	}
	acc, err := c.infer(e.Desc.Acc)
	if err != nil {
		return nil, err
	}
	mark := c.Env.Push(e.Desc.EltVar, eltTy)
	c.Env.Push(e.Desc.AccVar, acc.Ty)
	body, err := c.barrier("inside a map_fold body", func() (*ir.Node, error) {
		return c.infer(e.Desc.LoopCond)
	})
	c.Env.PopTo(mark)
	if err != nil {
		return nil, err
	}
	if body.Ty.Kind != types.KTuple || len(body.Ty.Args) != 2 {
		return nil, diag.New(diag.Semantic, diag.TypeMismatch, e.At, "map_fold body must return (elt,acc), got %s", body.Ty)
	}
	resultTy := types.Tuple(rebuildCollection(coll.Ty, body.Ty.Args[0]), body.Ty.Args[1])
	return &ir.Node{Tag: ir.MapFold, Ty: resultTy, At: e.At, Name: e.Name,
		EltVar: e.Desc.EltVar, AccVar: e.Desc.AccVar, Acc: acc, Collection: coll, IterBody: body,
		Transfer: coll.Transfer || acc.Transfer, Pure: coll.Pure && acc.Pure && body.Pure,
	}, nil
}

func elementType(collTy *types.Type, at diag.Loc) (*types.Type, error) {
	switch collTy.Kind {
	case types.KList, types.KSet:
		return collTy.Args[0], nil
	case types.KMap, types.KBigMap:
		return types.Tuple(collTy.Args[0], collTy.Args[1]), nil
	}
	return nil, diag.New(diag.Semantic, diag.TypeMismatch, at, "not an iterable collection: %s", collTy)
}

func rebuildCollection(collTy, eltTy *types.Type) *types.Type {
	switch collTy.Kind {
	case types.KList:
		return types.List(eltTy)
	case types.KSet:
		return types.Set(eltTy)
	case types.KMap:
		return types.Map(collTy.Args[0], eltTy)
	}
	return eltTy
}
