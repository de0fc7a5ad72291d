// Package check is the bidirectional typechecker of spec.md §4.1: match,
// lambdas, and let-bodies propagate an expected type downward; constants
// and applications synthesize upward. Unification is structural and
// first-order — L has no polymorphism left once encoding finishes
// (spec.md §3 invariant: "types are monomorphic after typechecking"), so
// there is nothing to generalize here, only to check or infer.
package check

import (
	"stackc/internal/ast"
	"stackc/internal/diag"
	"stackc/internal/env"
	"stackc/internal/ir"
	"stackc/internal/types"
)

// Mode controls the decompiling-mode relaxations of spec.md §4.7: the
// decompiler feeds its reconstructed, unnamed AST back through the
// typechecker, which must tolerate unused bindings and ambiguous records
// that a human-authored program would never produce.
type Mode int

const (
	Strict Mode = iota
	Decompiling
)

// Checker holds the environment and effect-context stack needed across a
// single contract's typechecking pass.
type Checker struct {
	Env  *env.Env
	Mode Mode

	// effectBarrier counts nested contexts that forbid a transfer effect:
	// lambda bodies and fold/map/map_fold bodies (spec.md §4.1). The
	// storage initializer and the arguments of bigmap lookups are not
	// wrapped in a barrier, so a transfer there is not rejected.
	effectBarrier int
	barrierWhy    string

	inInitializer bool
	selfParamTy   *types.Type
}

func New(e *env.Env, mode Mode) *Checker {
	return &Checker{Env: e, Mode: mode}
}

// CheckContract typechecks every global, entry, and the optional
// initializer of an untyped contract.
func (c *Checker) CheckContract(in *ast.Contract) (*ir.Contract, error) {
	for _, r := range in.Records {
		c.Env.RegisterRecord(r)
	}
	for _, v := range in.Variants {
		c.Env.RegisterVariant(v)
	}

	if err := checkBigMapPlacement(in.Storage); err != nil {
		return nil, err
	}

	out := &ir.Contract{Name: in.Name, Storage: in.Storage}

	for _, g := range in.Globals {
		typed, err := c.infer(g.Value)
		if err != nil {
			return nil, err
		}
		c.Env.Push(g.Name, typed.Ty)
		out.Globals = append(out.Globals, ir.GlobalBinding{Name: g.Name, Value: typed})
	}

	if in.Init != nil {
		c.inInitializer = true
		mark := c.Env.Push("storage_init", in.Storage)
		typed, err := c.infer(in.Init)
		c.Env.PopTo(mark)
		c.inInitializer = false
		if err != nil {
			return nil, err
		}
		if !types.Equal(typed.Ty, in.Storage) {
			return nil, diag.New(diag.Semantic, diag.TypeMismatch, in.Init.At,
				"storage initializer must produce %s, got %s", in.Storage, typed.Ty)
		}
		out.Init = typed
	}

	for _, ent := range in.Entries {
		c.selfParamTy = ent.ParamTy
		mark := c.Env.Push(ent.ParamName, ent.ParamTy)
		c.Env.Push(ent.StorageName, in.Storage)
		body, err := c.infer(ent.Body)
		c.Env.PopTo(mark)
		if err != nil {
			return nil, err
		}
		want := types.Tuple(types.List(types.Operation), in.Storage)
		if !types.Equal(body.Ty, want) {
			return nil, diag.New(diag.Semantic, diag.TypeMismatch, ent.Body.At,
				"entry %s must return %s, got %s", ent.Name, want, body.Ty)
		}
		out.Entries = append(out.Entries, ir.Entry{
			Name: ent.Name, ParamName: ent.ParamName, ParamTy: ent.ParamTy,
			StorageName: ent.StorageName, Body: body, At: ent.At,
		})
	}

	annotateUseCounts(out)
	return out, nil
}

// checkBigMapPlacement enforces spec.md §3's invariant that a big_map may
// appear only as the first component of storage: either storage is itself
// a bare big_map, or it's a tuple whose first element is one. Anywhere
// else — a second tuple component, nested inside a list/option/other
// compound, or inside the big_map's own key/value types — is rejected.
func checkBigMapPlacement(storage *types.Type) error {
	if storage.Kind == types.KBigMap {
		if hasBigMap(storage.Args[0]) || hasBigMap(storage.Args[1]) {
			return badBigMapErr(storage)
		}
		return nil
	}
	if storage.Kind == types.KTuple && len(storage.Args) > 0 && storage.Args[0].Kind == types.KBigMap {
		bm := storage.Args[0]
		if hasBigMap(bm.Args[0]) || hasBigMap(bm.Args[1]) {
			return badBigMapErr(storage)
		}
		for _, rest := range storage.Args[1:] {
			if hasBigMap(rest) {
				return badBigMapErr(storage)
			}
		}
		return nil
	}
	if hasBigMap(storage) {
		return badBigMapErr(storage)
	}
	return nil
}

func hasBigMap(ty *types.Type) bool {
	if ty == nil {
		return false
	}
	if ty.Kind == types.KBigMap {
		return true
	}
	for _, a := range ty.Args {
		if hasBigMap(a) {
			return true
		}
	}
	return false
}

func badBigMapErr(storage *types.Type) error {
	return diag.New(diag.Semantic, diag.BadBigMap, diag.Loc{},
		"big_map may only appear as the first component of storage, got %s", storage)
}

// barrier runs fn inside an effect barrier, restoring the previous state
// after. why is used in the ForbiddenEffect error message.
func (c *Checker) barrier(why string, fn func() (*ir.Node, error)) (*ir.Node, error) {
	prevWhy := c.barrierWhy
	c.effectBarrier++
	c.barrierWhy = why
	n, err := fn()
	if err == nil {
		err = c.forbidTransfer(n)
	}
	c.effectBarrier--
	c.barrierWhy = prevWhy
	return n, err
}

func (c *Checker) forbidTransfer(n *ir.Node) error {
	if c.effectBarrier > 0 && n.Transfer {
		return diag.New(diag.Forbidden, diag.ForbiddenEffect, n.At,
			"transfer-causing expression not allowed %s", c.barrierWhy)
	}
	return nil
}

// check propagates an expected type downward (bidirectional "check" mode).
func (c *Checker) check(e *ast.Expr, want *types.Type) (*ir.Node, error) {
	switch e.Desc.Tag {
	case ast.EIf:
		return c.checkIf(e, want)
	case ast.ELambda:
		return c.checkLambda(e, want)
	case ast.ELet:
		return c.checkLet(e, want)
	case ast.EMatchVariant:
		return c.checkMatchVariant(e, want)
	case ast.EApply:
		if e.Desc.Prim == "Left" || e.Desc.Prim == "Right" {
			return c.checkLeftRight(e, want)
		}
	}
	n, err := c.infer(e)
	if err != nil {
		return nil, err
	}
	if want != nil && !types.Equal(n.Ty, want) {
		return nil, diag.New(diag.Semantic, diag.TypeMismatch, e.At,
			"expected %s, got %s", want, n.Ty)
	}
	return n, nil
}

func (c *Checker) checkLeftRight(e *ast.Expr, want *types.Type) (*ir.Node, error) {
	if want == nil || want.Kind != types.KOr {
		return nil, diag.New(diag.Semantic, diag.UnannotatedSum, e.At,
			"%s requires a surrounding `or` type annotation", e.Desc.Prim)
	}
	var sub *types.Type
	if e.Desc.Prim == "Left" {
		sub = want.Args[0]
	} else {
		sub = want.Args[1]
	}
	arg, err := c.check(e.Desc.Args[0], sub)
	if err != nil {
		return nil, err
	}
	return &ir.Node{Tag: ir.Apply, Ty: want, At: e.At, Name: e.Name, Prim: e.Desc.Prim,
		Args: []*ir.Node{arg}, Transfer: arg.Transfer, Pure: arg.Pure}, nil
}

func (c *Checker) checkIf(e *ast.Expr, want *types.Type) (*ir.Node, error) {
	cond, err := c.check(e.Desc.Cond, types.Bool)
	if err != nil {
		return nil, err
	}
	then, err := c.check(e.Desc.Then, want)
	if err != nil {
		return nil, err
	}
	els, err := c.check(e.Desc.Else, want)
	if err != nil {
		return nil, err
	}
	resultTy := want
	if resultTy == nil {
		resultTy = then.Ty
	}
	return &ir.Node{Tag: ir.If, Ty: resultTy, At: e.At, Name: e.Name,
		Cond: cond, Then: then, Else: els,
		Transfer: cond.Transfer || then.Transfer || els.Transfer,
		Pure:     cond.Pure && then.Pure && els.Pure,
	}, nil
}

func (c *Checker) checkLet(e *ast.Expr, want *types.Type) (*ir.Node, error) {
	bound, err := c.infer(e.Desc.Bound)
	if err != nil {
		return nil, err
	}
	mark := c.Env.Push(e.Desc.Name, bound.Ty)
	body, err := c.check(e.Desc.Body, want)
	c.Env.PopTo(mark)
	if err != nil {
		return nil, err
	}
	return &ir.Node{Tag: ir.Let, Ty: body.Ty, At: e.At, Name: e.Desc.Name,
		Bound: bound, Body: body,
		Transfer: bound.Transfer || body.Transfer,
		Pure:     bound.Pure && body.Pure,
	}, nil
}

func (c *Checker) checkLambda(e *ast.Expr, want *types.Type) (*ir.Node, error) {
	if want != nil && want.Kind != types.KLambda && c.Mode != Decompiling {
		return nil, diag.New(diag.Semantic, diag.TypeMismatch, e.At,
			"expected %s, got a lambda", want)
	}
	paramTy := e.Desc.ParamTy
	var retTy *types.Type
	if want != nil && want.Kind == types.KLambda {
		paramTy = want.Args[0]
		retTy = want.Args[1]
	}
	mark := c.Env.Push(e.Desc.Param, paramTy)
	body, err := c.barrier("inside a lambda body", func() (*ir.Node, error) {
		return c.check(e.Desc.Lam, retTy)
	})
	c.Env.PopTo(mark)
	if err != nil {
		return nil, err
	}
	ty := types.Lambda(paramTy, body.Ty)
	return &ir.Node{Tag: ir.Lambda, Ty: ty, At: e.At, Name: e.Name,
		Param: e.Desc.Param, ParamTy: paramTy, Lam: body, Recur: e.Desc.Recur,
		Pure: true,
	}, nil
}

// FreeVars collects the free variables of n into out, given the set of
// names already bound in the enclosing context. Used by internal/encode's
// closure conversion to decide which names a lambda must capture.
func FreeVars(n *ir.Node, bound map[string]bool, out map[string]bool) {
	freeVars(n, bound, out)
}

func freeVars(n *ir.Node, bound map[string]bool, out map[string]bool) {
	if n == nil {
		return
	}
	switch n.Tag {
	case ir.Var:
		if !bound[n.Var] {
			out[n.Var] = true
		}
	case ir.Lambda:
		inner := clone(bound)
		inner[n.Param] = true
		freeVars(n.Lam, inner, out)
	case ir.Let:
		freeVars(n.Bound, bound, out)
		inner := clone(bound)
		inner[n.Name] = true
		freeVars(n.Body, inner, out)
	default:
		ir.ForEachChild(n, func(child *ir.Node) { freeVars(child, bound, out) })
	}
}

func clone(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
