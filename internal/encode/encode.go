// Package encode is the Encoder of spec.md §4.2: it transforms the typed
// IR into a canonical shape while preserving types — record/tuple access
// and construction become nested pairs, variant constructors and matches
// become a right-leaning Left/Right tree, multi-entry contracts become a
// single dispatching entry, and free-variable-capturing lambdas are
// lambda-lifted into a closure pair.
package encode

import (
	"github.com/iancoleman/strcase"

	"stackc/internal/diag"
	"stackc/internal/env"
	"stackc/internal/ir"
	"stackc/internal/types"
)

// Encoder rewrites a checked contract into the canonical shape codegen
// expects. Lambda-lifted closures are built in place (a Closure node
// wherever the source had a capturing Lambda) rather than hoisted to a
// separate top-level table; codegen compiles a Closure the same way
// wherever it appears in the tree.
type Encoder struct {
	Env *env.Env
}

func New(e *env.Env) *Encoder {
	return &Encoder{Env: e}
}

// EncodeContract rewrites every global, entry body, and the storage
// initializer, then synthesizes the dispatch entry point (spec.md §4.2
// "Entry-point dispatch").
func (enc *Encoder) EncodeContract(in *ir.Contract) (*ir.Contract, error) {
	out := &ir.Contract{Name: in.Name, Storage: in.Storage}
	for _, g := range in.Globals {
		v, err := enc.node(g.Value)
		if err != nil {
			return nil, err
		}
		out.Globals = append(out.Globals, ir.GlobalBinding{Name: g.Name, Value: v})
	}
	if in.Init != nil {
		initBody, err := enc.node(in.Init)
		if err != nil {
			return nil, err
		}
		initBody = rewriteEmptyBigMap(initBody, in.Storage)
		out.Init = initBody
	}

	encodedEntries := make([]ir.Entry, len(in.Entries))
	for i, e := range in.Entries {
		body, err := enc.node(e.Body)
		if err != nil {
			return nil, err
		}
		encodedEntries[i] = ir.Entry{Name: e.Name, ParamName: e.ParamName, ParamTy: e.ParamTy,
			StorageName: e.StorageName, Body: body, At: e.At}
	}

	if len(encodedEntries) == 1 {
		out.Entries = encodedEntries
		return out, nil
	}

	dispatched, err := enc.synthesizeDispatch(encodedEntries)
	if err != nil {
		return nil, err
	}
	out.Entries = []ir.Entry{dispatched}
	return out, nil
}

// synthesizeDispatch builds the single entry of spec.md §4.2: its
// parameter is the right-leaning `or` over every entry's parameter type,
// and each arm is tagged `entry_NAME`: as the Case constructor of every
// arm but the last, and as the debug name of the last arm's parameter
// reference. Codegen emits no RENAME for these tags, and the decompiler
// does not recover entry names from them.
func (enc *Encoder) synthesizeDispatch(entries []ir.Entry) (ir.Entry, error) {
	paramTy := entries[len(entries)-1].ParamTy
	for i := len(entries) - 2; i >= 0; i-- {
		paramTy = types.Or(entries[i].ParamTy, paramTy)
	}

	const dispatchParam = "entry_param"
	const storageName = "storage"

	var build func(i int) *ir.Node
	build = func(i int) *ir.Node {
		e := entries[i]
		// entry_NAME must itself be a valid annotation identifier
		// (codegen.annotName applies the same rule to plain variable
		// names), so an entry declared `doThing` dispatches as
		// `entry_do_thing`, not a mixed-case constructor name.
		ctorName := "entry_" + strcase.ToSnake(e.Name)
		if i == len(entries)-1 {
			return &ir.Node{Tag: ir.Let, Ty: e.Body.Ty, Name: e.ParamName,
				Bound: &ir.Node{Tag: ir.Var, Ty: e.ParamTy, Var: dispatchParam, Name: ctorName, Pure: true},
				Body:  e.Body, Pure: e.Body.Pure, Transfer: e.Body.Transfer,
			}
		}
		rest := build(i + 1)
		return &ir.Node{
			Tag: ir.MatchVariant, Ty: rest.Ty,
			Scrutinee: &ir.Node{Tag: ir.Var, Ty: paramTy, Var: dispatchParam, Pure: true},
			Cases: []ir.Case{
				{Ctor: ctorName, Var: e.ParamName, Body: e.Body},
				{Ctor: "$rest", Var: dispatchParam, Body: rest},
			},
			Pure: rest.Pure, Transfer: rest.Transfer,
		}
	}

	return ir.Entry{
		Name: "main", ParamName: dispatchParam, ParamTy: paramTy, StorageName: storageName,
		Body: build(0),
	}, nil
}

// node dispatches the rewrite over one typed term, returning the same
// pointer when no child changed (spec.md §9 physical-identity
// preservation).
func (enc *Encoder) node(n *ir.Node) (*ir.Node, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Tag {
	case ir.RecordConstruct:
		return enc.recordConstruct(n)
	case ir.Project:
		return enc.project(n)
	case ir.SetField:
		return enc.setField(n)
	case ir.Apply:
		return enc.apply(n)
	case ir.Lambda:
		return enc.lambda(n)
	}
	return enc.rebuildGeneric(n)
}

// rebuildGeneric recurses into every child via ir.ForEachChild's shape,
// only allocating a new node when a child actually changed.
func (enc *Encoder) rebuildGeneric(n *ir.Node) (*ir.Node, error) {
	changed := false
	rewrite := func(c *ir.Node) (*ir.Node, error) {
		if c == nil {
			return nil, nil
		}
		r, err := enc.node(c)
		if err != nil {
			return nil, err
		}
		if r != c {
			changed = true
		}
		return r, nil
	}

	out := *n // shallow copy; fields rewritten in place below

	var err error
	if out.Bound, err = rewrite(n.Bound); err != nil {
		return nil, err
	}
	if out.Body, err = rewrite(n.Body); err != nil {
		return nil, err
	}
	if out.First, err = rewrite(n.First); err != nil {
		return nil, err
	}
	if out.Second, err = rewrite(n.Second); err != nil {
		return nil, err
	}
	if out.Cond, err = rewrite(n.Cond); err != nil {
		return nil, err
	}
	if out.Then, err = rewrite(n.Then); err != nil {
		return nil, err
	}
	if out.Else, err = rewrite(n.Else); err != nil {
		return nil, err
	}
	if out.Lam, err = rewrite(n.Lam); err != nil {
		return nil, err
	}
	if out.Scrutinee, err = rewrite(n.Scrutinee); err != nil {
		return nil, err
	}
	if out.NoneBody, err = rewrite(n.NoneBody); err != nil {
		return nil, err
	}
	if out.SomeBody, err = rewrite(n.SomeBody); err != nil {
		return nil, err
	}
	if out.NilBody, err = rewrite(n.NilBody); err != nil {
		return nil, err
	}
	if out.ConsBody, err = rewrite(n.ConsBody); err != nil {
		return nil, err
	}
	if out.PlusBody, err = rewrite(n.PlusBody); err != nil {
		return nil, err
	}
	if out.MinusBody, err = rewrite(n.MinusBody); err != nil {
		return nil, err
	}
	if len(n.Cases) > 0 {
		cases := make([]ir.Case, len(n.Cases))
		for i, cs := range n.Cases {
			b, err := rewrite(cs.Body)
			if err != nil {
				return nil, err
			}
			cases[i] = ir.Case{Ctor: cs.Ctor, Var: cs.Var, Body: b}
		}
		out.Cases = cases
	}
	if out.LoopBody, err = rewrite(n.LoopBody); err != nil {
		return nil, err
	}
	if out.Acc, err = rewrite(n.Acc); err != nil {
		return nil, err
	}
	if out.Collection, err = rewrite(n.Collection); err != nil {
		return nil, err
	}
	if out.IterBody, err = rewrite(n.IterBody); err != nil {
		return nil, err
	}
	if out.Object, err = rewrite(n.Object); err != nil {
		return nil, err
	}
	if out.Value, err = rewrite(n.Value); err != nil {
		return nil, err
	}
	if out.Contract, err = rewrite(n.Contract); err != nil {
		return nil, err
	}
	if out.Amount, err = rewrite(n.Amount); err != nil {
		return nil, err
	}
	if out.TransferArg, err = rewrite(n.TransferArg); err != nil {
		return nil, err
	}
	if out.FailMsg, err = rewrite(n.FailMsg); err != nil {
		return nil, err
	}
	if out.CreateStorage, err = rewrite(n.CreateStorage); err != nil {
		return nil, err
	}
	if out.UnpackBytes, err = rewrite(n.UnpackBytes); err != nil {
		return nil, err
	}
	if len(n.Args) > 0 {
		args := make([]*ir.Node, len(n.Args))
		for i, a := range n.Args {
			r, err := rewrite(a)
			if err != nil {
				return nil, err
			}
			args[i] = r
		}
		out.Args = args
	}

	if !changed {
		return n, nil
	}
	return &out, nil
}

func internalErr(where string, n *ir.Node, format string, args ...interface{}) error {
	return diag.Internalf(where, n.At, format, args...)
}
