package codegen

import (
	"stackc/internal/diag"
	"stackc/internal/ir"
	"stackc/internal/michelson"
	"stackc/internal/types"
)

// compileLoop lowers `loop` (spec.md §4.4) to Michelson LOOP. LOOP
// expects a bare bool on top before it starts, but our body computes
// the continuation test and the next accumulator together as one
// (bool,acc) pair, so the body is compiled twice: once to prime the
// initial test, once as the LOOP's own body. Both copies share the
// same (DUP;CAR;DIP{CDR};DIP_DROP) unpack, which splits the pair back
// into a bare bool on top of the acc it replaces.
func (g *Gen) compileLoop(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	accSeq, _, err := g.compile(n.Acc, stack)
	if err != nil {
		return nil, nil, err
	}
	env := push(stack, n.AccVar)

	primeSeq, _, err := g.compile(n.LoopBody, env)
	if err != nil {
		return nil, nil, err
	}
	prelude := append(accSeq, primeSeq...)
	prelude = append(prelude, unpackLoopStep()...)

	bodySeq, _, err := g.compile(n.LoopBody, env)
	if err != nil {
		return nil, nil, err
	}
	loopBody := append(bodySeq, unpackLoopStep()...)

	out := append(prelude, michelson.Instr{Op: michelson.OpLoop, Then: loopBody, Name: n.Name})
	return out, push(stack, ""), nil
}

// unpackLoopStep splits a (bool,acc) pair sitting on top of a stale
// copy of acc into [bool, acc, ...], dropping the stale copy: DUP the
// pair, CAR the copy for the bool, DIP one level to CDR the original
// into the new acc in place, then drop the now-dead stale acc beneath.
func unpackLoopStep() michelson.Seq {
	return michelson.Seq{
		{Op: michelson.OpDup, N: 1},
		{Op: michelson.OpCar},
		{Op: michelson.OpDip, N: 1, Nested: michelson.Seq{{Op: michelson.OpCdr}}},
		dipDrop(2, 1),
	}
}

// compileLoopLeft lowers `loop_left` to LOOP_LEFT (spec.md §9 open
// question: both acc=Some and acc=None body shapes work the same way
// here, since the body itself decides via Left/Right which case it
// produced). The initial accumulator is wrapped in LEFT to seed the
// `or`; each iteration's body already returns the next `or` value
// directly, so only the stale unwrapped payload underneath needs
// dropping.
func (g *Gen) compileLoopLeft(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	accSeq, _, err := g.compile(n.Acc, stack)
	if err != nil {
		return nil, nil, err
	}
	seeded := append(accSeq, michelson.Instr{Op: michelson.OpLeft, Ty: n.Ty})

	env := push(stack, n.AccVar)
	bodySeq, _, err := g.compile(n.LoopBody, env)
	if err != nil {
		return nil, nil, err
	}
	loopBody := append(bodySeq, dipDrop(1, 1))

	out := append(seeded, michelson.Instr{Op: michelson.OpLoopLeft, Then: loopBody, Name: n.Name})
	return out, push(stack, ""), nil
}

// compileFold lowers `fold` to ITER: the accumulator is pushed below
// the collection so ITER's per-element body sees [elt, acc, ...] and
// replaces both with the single new acc, matching ITER's `'a:'s -> 's`
// contract with 's = [acc, ...stack].
func (g *Gen) compileFold(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	accSeq, _, err := g.compile(n.Acc, stack)
	if err != nil {
		return nil, nil, err
	}
	accEnv := push(stack, n.AccVar)
	collSeq, _, err := g.compile(n.Collection, accEnv)
	if err != nil {
		return nil, nil, err
	}

	bodyEnv := push(accEnv, n.EltVar)
	bodySeq, _, err := g.compile(n.IterBody, bodyEnv)
	if err != nil {
		return nil, nil, err
	}
	iterBody := append(bodySeq, dipDrop(1, 2))

	out := append(accSeq, collSeq...)
	out = append(out, michelson.Instr{Op: michelson.OpIter, Then: iterBody, Name: n.Name})
	return out, push(stack, ""), nil
}

// compileMap lowers `map` to MAP: each element is replaced by the
// body's result in place, MAP's `'a:'s -> 'b:'s` contract needing only
// the stale input element dropped from beneath the new one.
func (g *Gen) compileMap(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	collSeq, _, err := g.compile(n.Collection, stack)
	if err != nil {
		return nil, nil, err
	}
	bodyEnv := push(stack, n.EltVar)
	bodySeq, _, err := g.compile(n.IterBody, bodyEnv)
	if err != nil {
		return nil, nil, err
	}
	mapBody := append(bodySeq, dipDrop(1, 1))

	out := append(collSeq, michelson.Instr{Op: michelson.OpMap, Then: mapBody, Name: n.Name})
	return out, push(stack, ""), nil
}

// compileMapFold lowers `map_fold` over a list. Michelson has no
// combined map+fold primitive, so this builds the output list with
// ITER+CONS (which visits front-to-back and so naturally reverses it),
// threading the accumulator alongside, then un-reverses with a second
// NIL+ITER+CONS pass before pairing the two results together. Only
// list collections are supported: set/map map_fold would need
// UPDATE-based reconstruction instead of CONS, and no source in the
// corpus this was grounded on exercises that combination.
func (g *Gen) compileMapFold(n *ir.Node, stack []string) (michelson.Seq, []string, error) {
	if n.Collection.Ty.Kind != types.KList {
		return nil, nil, diag.Internalf("codegen", n.At,
			"map_fold over %s not supported, only list", n.Collection.Ty)
	}
	outEltTy := n.IterBody.Ty.Args[0]

	nilSeq := michelson.Seq{{Op: michelson.OpNil, Ty: outEltTy}}
	outlistEnv := push(stack, "__outlist")

	accSeq, _, err := g.compile(n.Acc, outlistEnv)
	if err != nil {
		return nil, nil, err
	}
	accEnv := push(outlistEnv, n.AccVar)
	collSeq, _, err := g.compile(n.Collection, accEnv)
	if err != nil {
		return nil, nil, err
	}

	bodyEnv := push(accEnv, n.EltVar)
	bodySeq, _, err := g.compile(n.IterBody, bodyEnv)
	if err != nil {
		return nil, nil, err
	}
	iterBody := append(bodySeq,
		michelson.Instr{Op: michelson.OpDup, N: 1},
		michelson.Instr{Op: michelson.OpCar},
		michelson.Instr{Op: michelson.OpDip, N: 1, Nested: michelson.Seq{{Op: michelson.OpCdr}}},
		michelson.Instr{Op: michelson.OpDig, N: 4},
		michelson.Instr{Op: michelson.OpSwap},
		michelson.Instr{Op: michelson.OpCons},
		michelson.Instr{Op: michelson.OpSwap},
		dipDrop(2, 2),
	)

	out := append(nilSeq, accSeq...)
	out = append(out, collSeq...)
	out = append(out, michelson.Instr{Op: michelson.OpIter, Then: iterBody, Name: n.Name})

	out = append(out, michelson.Instr{Op: michelson.OpSwap})
	out = append(out, reverseList(outEltTy)...)
	out = append(out, michelson.Instr{Op: michelson.OpPair})

	return out, push(stack, ""), nil
}

// reverseList expects a list on top of the stack and leaves its
// reverse in the same place: building a list by consing while
// iterating front-to-back reverses it, so running the same macro
// twice restores the original order.
func reverseList(eltTy *types.Type) michelson.Seq {
	return michelson.Seq{
		{Op: michelson.OpNil, Ty: eltTy},
		{Op: michelson.OpSwap},
		{Op: michelson.OpIter, Then: michelson.Seq{{Op: michelson.OpCons}}},
	}
}
