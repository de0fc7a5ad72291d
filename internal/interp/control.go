package interp

import (
	"stackc/internal/diag"
	"stackc/internal/env"
	"stackc/internal/ir"
	"stackc/internal/michelson"
	"stackc/internal/types"
)

// matchOption reconstructs `match scrutinee with None -> ... | Some x -> ...`
// from IF_NONE, given the stack at the instant it runs (s[0] is the already
// -decompiled scrutinee, popped by IF_NONE before either branch starts).
func (d *Decompiler) matchOption(ins michelson.Instr, s []*slot) (*ir.Node, error) {
	if len(s) < 1 {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "IF_NONE needs a scrutinee")
	}
	scrut := s[0]
	outer := s[1:]
	if scrut.Def.Ty == nil || scrut.Def.Ty.Kind != types.KOption {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "IF_NONE scrutinee is not an option")
	}
	payloadTy := scrut.Def.Ty.Args[0]

	noneBody, err := d.run(ins.Then, outer)
	if err != nil {
		return nil, err
	}
	names, someBody, err := d.runBinding(ins.Else, append([]*slot{freshSlot(payloadTy)}, outer...), 1)
	if err != nil {
		return nil, err
	}
	return &ir.Node{
		Tag: ir.MatchOption, Scrutinee: scrut.Def,
		NoneBody: noneBody, SomeVar: names[0], SomeBody: someBody,
		Ty: noneBody.Ty,
	}, nil
}

// matchNat reconstructs `match n with Plus p -> ... | Minus m -> ...`
// (spec.md §4.4's int sign match) from the DUP;ISNAT;IF_NONE triple. s is
// the stack as it stood before the leading DUP ran, s[0] the scrutinee int.
func (d *Decompiler) matchNat(ins michelson.Instr, s []*slot) (*ir.Node, error) {
	if len(s) < 1 {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "int match needs a scrutinee")
	}
	scrut := s[0]
	outer := s[1:]

	if len(ins.Then) < 1 || ins.Then[0].Op != michelson.OpAbs {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "int match's negative branch does not start with ABS")
	}
	absNode := &ir.Node{Tag: ir.Apply, Prim: "abs", Args: []*ir.Node{scrut.Def}, Ty: types.Nat}
	minusNames, minusBody, err := d.runBinding(ins.Then[1:], append([]*slot{anonSlot(absNode)}, outer...), 1)
	if err != nil {
		return nil, err
	}

	plusNames, plusBody, err := d.runBinding(ins.Else,
		append([]*slot{freshSlot(types.Nat), anonSlot(scrut.Def)}, outer...), 2)
	if err != nil {
		return nil, err
	}

	return &ir.Node{
		Tag: ir.MatchNat, Scrutinee: scrut.Def,
		MinusVar: minusNames[0], MinusBody: minusBody,
		PlusVar: plusNames[0], PlusBody: plusBody,
		Ty: minusBody.Ty,
	}, nil
}

// matchList reconstructs `match l with [] -> ... | head :: tail -> ...`
// from IF_CONS.
func (d *Decompiler) matchList(ins michelson.Instr, s []*slot) (*ir.Node, error) {
	if len(s) < 1 {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "IF_CONS needs a scrutinee")
	}
	scrut := s[0]
	outer := s[1:]
	if scrut.Def.Ty == nil || scrut.Def.Ty.Kind != types.KList {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "IF_CONS scrutinee is not a list")
	}
	eltTy := scrut.Def.Ty.Args[0]

	nilBody, err := d.run(ins.Else, outer)
	if err != nil {
		return nil, err
	}
	names, consBody, err := d.runBinding(ins.Then,
		append([]*slot{freshSlot(scrut.Def.Ty), freshSlot(eltTy)}, outer...), 2)
	if err != nil {
		return nil, err
	}
	return &ir.Node{
		Tag: ir.MatchList, Scrutinee: scrut.Def,
		NilBody: nilBody, HeadVar: names[1], TailVar: names[0], ConsBody: consBody,
		Ty: nilBody.Ty,
	}, nil
}

// matchVariant reconstructs a variant/`or` match from IF_LEFT. A named
// variant scrutinee nests one IF_LEFT per constructor in registration
// order (internal/codegen.variantNest); an anonymous binary `or`
// (entry-dispatch synthesis) is a single IF_LEFT with no registry entry.
func (d *Decompiler) matchVariant(ins michelson.Instr, s []*slot) (*ir.Node, error) {
	if len(s) < 1 {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "IF_LEFT needs a scrutinee")
	}
	scrut := s[0]
	outer := s[1:]

	var cases []ir.Case
	var err error
	if scrut.Def.Ty != nil && scrut.Def.Ty.Kind == types.KOr {
		cases, err = d.binaryOrCases(ins, scrut.Def.Ty, outer)
	} else if scrut.Def.Ty != nil {
		def, ok := d.Env.Variants[scrut.Def.Ty.Name]
		if !ok {
			return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "variant %q not registered", scrut.Def.Ty.Name)
		}
		cases, err = d.variantNest(ins, def, 0, outer)
	} else {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "IF_LEFT scrutinee has unknown type")
	}
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "IF_LEFT produced no cases")
	}
	return &ir.Node{Tag: ir.MatchVariant, Scrutinee: scrut.Def, Cases: cases, Ty: cases[0].Body.Ty}, nil
}

func (d *Decompiler) binaryOrCases(ins michelson.Instr, orTy *types.Type, outer []*slot) ([]ir.Case, error) {
	leftNames, leftBody, err := d.runBinding(ins.Then, append([]*slot{freshSlot(orTy.Args[0])}, outer...), 1)
	if err != nil {
		return nil, err
	}
	rightNames, rightBody, err := d.runBinding(ins.Else, append([]*slot{freshSlot(orTy.Args[1])}, outer...), 1)
	if err != nil {
		return nil, err
	}
	return []ir.Case{
		{Ctor: "Left", Var: leftNames[0], Body: leftBody},
		{Ctor: "Right", Var: rightNames[0], Body: rightBody},
	}, nil
}

// variantNest mirrors internal/codegen.variantNest's peeling order: one
// IF_LEFT per constructor in declaration order, with the last constructor
// reached via the Else branch directly (no further nesting), matching
// internal/encode's variantEncodedType.
func (d *Decompiler) variantNest(ins michelson.Instr, def *env.VariantDef, idx int, outer []*slot) ([]ir.Case, error) {
	name := def.Ctors[idx].Name
	leftNames, leftBody, err := d.runBinding(ins.Then, append([]*slot{freshSlot(def.Ctors[idx].Ty)}, outer...), 1)
	if err != nil {
		return nil, err
	}
	cases := []ir.Case{{Ctor: name, Var: leftNames[0], Body: leftBody}}

	if idx == len(def.Ctors)-1 {
		return cases, nil
	}
	if len(ins.Else) == 1 && ins.Else[0].Op == michelson.OpIfLeft {
		rest, err := d.variantNest(ins.Else[0], def, idx+1, outer)
		if err != nil {
			return nil, err
		}
		return append(cases, rest...), nil
	}
	// Reached the last real constructor even though more are registered
	// (a wildcard case absorbed the remainder at encode time); treat the
	// Else branch as that final constructor's body directly.
	lastName := def.Ctors[len(def.Ctors)-1].Name
	rightNames, rightBody, err := d.runBinding(ins.Else, append([]*slot{freshSlot(def.Ctors[len(def.Ctors)-1].Ty)}, outer...), 1)
	if err != nil {
		return nil, err
	}
	return append(cases, ir.Case{Ctor: lastName, Var: rightNames[0], Body: rightBody}), nil
}

// matchLoop reconstructs `loop acc = init in body` from LOOP. s[0] is the
// already-decompiled prime value (the loop body evaluated once against
// the accumulator), s[1] the initial accumulator.
func (d *Decompiler) matchLoop(ins michelson.Instr, s []*slot) (*ir.Node, error) {
	if len(s) < 2 {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "LOOP prelude left too few stack slots")
	}
	prime := s[0]
	acc := s[1]
	if !acc.Named {
		acc.Named = true
		acc.Name = d.freshName("_loopvar")
	}
	return &ir.Node{
		Tag: ir.Loop, Acc: acc.Def, AccVar: acc.Name, LoopBody: prime.Def,
		Ty: acc.Def.Ty,
	}, nil
}

// matchLoopLeft reconstructs `loop_left acc = init in body` from LOOP_LEFT.
// s[0] is the un-wrapped initial accumulator (before LEFT injected it).
func (d *Decompiler) matchLoopLeft(ins michelson.Instr, s []*slot) (*ir.Node, error) {
	if len(s) < 1 {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "LOOP_LEFT needs an initial accumulator")
	}
	acc := s[0]
	outer := s[1:]
	names, body, err := d.runBinding(ins.Then, append([]*slot{freshSlot(acc.Def.Ty)}, outer...), 1)
	if err != nil {
		return nil, err
	}
	return &ir.Node{Tag: ir.LoopLeft, Acc: acc.Def, AccVar: names[0], LoopBody: body, Ty: body.Ty}, nil
}

// matchFold reconstructs `fold acc = init over coll with elt -> ...` from
// ITER, recognized by its trailing DIP_DROP(1,2) (element + accumulator).
// A MAP_FOLD-shaped ITER body (internal/codegen.compileMapFold's 8
// -instruction CONS-merge trailer) is a known, documented gap: it fails
// closed here rather than attempting a partial reconstruction.
func (d *Decompiler) matchFold(ins michelson.Instr, s []*slot) (*ir.Node, error) {
	if len(s) < 2 {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "ITER needs a collection and accumulator")
	}
	coll := s[0]
	acc := s[1]
	outer := s[2:]
	if isMapFoldTrailer(ins.Then) {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "map_fold decompilation is not supported")
	}
	eltTy, err := elementType(coll.Def.Ty)
	if err != nil {
		return nil, err
	}
	names, body, err := d.runBinding(ins.Then,
		append([]*slot{freshSlot(eltTy), freshSlot(acc.Def.Ty)}, outer...), 2)
	if err != nil {
		return nil, err
	}
	return &ir.Node{
		Tag: ir.Fold, AccVar: names[1], EltVar: names[0],
		Acc: acc.Def, Collection: coll.Def, IterBody: body, Ty: acc.Def.Ty,
	}, nil
}

// matchMap reconstructs `map coll with elt -> ...` from MAP.
func (d *Decompiler) matchMap(ins michelson.Instr, s []*slot) (*ir.Node, error) {
	if len(s) < 1 {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "MAP needs a collection")
	}
	coll := s[0]
	outer := s[1:]
	eltTy, err := elementType(coll.Def.Ty)
	if err != nil {
		return nil, err
	}
	names, body, err := d.runBinding(ins.Then, append([]*slot{freshSlot(eltTy)}, outer...), 1)
	if err != nil {
		return nil, err
	}
	outTy := &types.Type{Kind: coll.Def.Ty.Kind, Args: []*types.Type{body.Ty}}
	return &ir.Node{Tag: ir.MapNode, EltVar: names[0], Collection: coll.Def, IterBody: body, Ty: outTy}, nil
}

func elementType(t *types.Type) (*types.Type, error) {
	if t == nil || len(t.Args) < 1 || (t.Kind != types.KList && t.Kind != types.KSet && t.Kind != types.KMap && t.Kind != types.KBigMap) {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "ITER/MAP target is not a collection")
	}
	if t.Kind == types.KMap || t.Kind == types.KBigMap {
		return types.Tuple(t.Args[0], t.Args[1]), nil
	}
	return t.Args[0], nil
}

// isMapFoldTrailer checks for internal/codegen.compileMapFold's fixed
// 8-instruction CONS-merge trailer at the end of an ITER body.
func isMapFoldTrailer(seq []michelson.Instr) bool {
	if len(seq) < 8 {
		return false
	}
	t := seq[len(seq)-8:]
	return t[0].Op == michelson.OpDup && t[0].N == 1 &&
		t[1].Op == michelson.OpCar &&
		t[2].Op == michelson.OpDip && t[2].N == 1 && len(t[2].Nested) == 1 && t[2].Nested[0].Op == michelson.OpCdr &&
		t[3].Op == michelson.OpDig && t[3].N == 4 &&
		t[4].Op == michelson.OpSwap &&
		t[5].Op == michelson.OpCons &&
		t[6].Op == michelson.OpSwap &&
		t[7].Op == michelson.OpDipDrop && t[7].N == 2 && t[7].N2 == 2
}
