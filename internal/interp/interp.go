// Package interp is the Interp + Decompiler of spec.md §4.7: it runs a
// symbolic stack machine over a decoded M program, reconstructing a typed
// IR term from the flat instruction stream. Every M instruction's stack
// effect is statically known (there is no data-dependent branching in the
// *shape* of the stack, only in its values), so the reconstruction is a
// straight-line simulation rather than an abstract-interpretation fixpoint:
// a slot stack mirrors the one internal/codegen pushes and pops, built in
// reverse.
//
// Two compiler idioms drive how a slot becomes a named internal/ir.Let
// rather than an inlined subexpression: internal/codegen only ever DUPs a
// position to satisfy an internal/ir.Var reference (never to duplicate an
// anonymous intermediate), and it only ever closes a scope with
// DIP_DROP(1,1)/DIP_DROP(1,2) immediately after that scope's body finishes
// — match/loop constructs consume their own closing drop as part of
// recognizing the construct itself (control.go), so a DIP_DROP seen during
// plain straight-line scanning can only be a genuine `let`.
package interp

import (
	"fmt"

	"stackc/internal/diag"
	"stackc/internal/env"
	"stackc/internal/ir"
	"stackc/internal/michelson"
	"stackc/internal/types"
)

// Decompiler rebuilds a typed ir.Contract from a decoded M program.
type Decompiler struct {
	Env   *env.Env
	fresh int
}

func New(e *env.Env) *Decompiler {
	return &Decompiler{Env: e}
}

func (d *Decompiler) freshName(prefix string) string {
	d.fresh++
	return fmt.Sprintf("%s%d", prefix, d.fresh)
}

// slot is one position of the symbolic stack. Named slots (entry
// parameters, lambda/closure params, let/match bindings) carry a stable
// identifier from the moment they're introduced; computed slots start
// anonymous and are only given a name the first time something DUPs them
// — exactly the cases internal/codegen's own DUP emission covers.
type slot struct {
	Def   *ir.Node
	Named bool
	Name  string
}

func namedSlot(name string, ty *types.Type) *slot {
	return &slot{Def: &ir.Node{Tag: ir.Var, Var: name, Ty: ty, Pure: true}, Named: true, Name: name}
}

func anonSlot(n *ir.Node) *slot {
	return &slot{Def: n}
}

// Program decompiles a full contract: spec.md §6's three top-level
// stanzas, undoing internal/codegen.Gen.entry's fixed prelude/trailer to
// recover the single named entry body.
func (d *Decompiler) Program(p michelson.Program) (*ir.Contract, error) {
	instrs, err := michelson.FromConcrete(p.Code)
	if err != nil {
		return nil, err
	}
	if len(instrs) < 4 {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "contract code too short to be a compiled entry")
	}
	prelude := instrs[:3]
	if !matchesPrelude(prelude) {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "contract code does not start with the expected parameter/storage split")
	}
	trailer := instrs[len(instrs)-1]
	if trailer.Op != michelson.OpDipDrop || trailer.N != 1 || trailer.N2 != 2 {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "contract code does not end with the expected entry cleanup")
	}

	paramName := prelude[1].Name
	if paramName == "" {
		paramName = d.freshName("param")
	}
	storageName := d.freshName("storage")

	body := instrs[3 : len(instrs)-1]
	stack := []*slot{namedSlot(paramName, p.Parameter), namedSlot(storageName, p.Storage)}
	result, err := d.run(body, stack)
	if err != nil {
		return nil, err
	}

	entry := ir.Entry{
		Name:        "main",
		ParamName:   paramName,
		ParamTy:     p.Parameter,
		StorageName: storageName,
		Body:        result,
	}
	return &ir.Contract{Name: "main", Storage: p.Storage, Entries: []ir.Entry{entry}}, nil
}

// matchesPrelude checks the fixed `DUP 1; CAR @param; DIP{CDR}` split
// internal/codegen.Gen.entry always emits.
func matchesPrelude(seq []michelson.Instr) bool {
	if seq[0].Op != michelson.OpDup || seq[0].N != 1 {
		return false
	}
	if seq[1].Op != michelson.OpCar {
		return false
	}
	if seq[2].Op != michelson.OpDip || seq[2].N != 1 || len(seq[2].Nested) != 1 || seq[2].Nested[0].Op != michelson.OpCdr {
		return false
	}
	return true
}

// isUnpackLoopStep checks for internal/codegen.unpackLoopStep's fixed
// 4-instruction shape at the front of seq.
func isUnpackLoopStep(seq []michelson.Instr) bool {
	if len(seq) < 4 {
		return false
	}
	if seq[0].Op != michelson.OpDup || seq[0].N != 1 {
		return false
	}
	if seq[1].Op != michelson.OpCar {
		return false
	}
	if seq[2].Op != michelson.OpDip || seq[2].N != 1 || len(seq[2].Nested) != 1 || seq[2].Nested[0].Op != michelson.OpCdr {
		return false
	}
	if seq[3].Op != michelson.OpDipDrop || seq[3].N != 2 || seq[3].N2 != 1 {
		return false
	}
	return true
}

// freshSlot introduces a not-yet-named binding placeholder: the value a
// match/loop/iter branch receives from the construct itself rather than
// from any reconstructed expression. Its Def is never read as a value,
// only as a type carrier, until something DUPs it and it gets a name.
func freshSlot(ty *types.Type) *slot {
	return &slot{Def: &ir.Node{Tag: ir.Var, Ty: ty}}
}

// run decompiles a whole straight-line frame (an entry body, a branch, a
// lambda body, ...), returning the single net value it computes. Bare
// DROPs (internal/ir.Seq's discard) are accumulated and folded back in
// once the frame's final value is known, since a DROP's "second half" is
// simply whatever the rest of the frame goes on to compute.
func (d *Decompiler) run(seq []michelson.Instr, stack []*slot) (*ir.Node, error) {
	final, discards, err := d.runFrame(seq, stack)
	if err != nil {
		return nil, err
	}
	if len(final) == 0 {
		return nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "frame produced no value")
	}
	return foldDiscards(final[0].Def, discards), nil
}

// runFrame is run's building block: it simulates seq against stack and
// returns the raw resulting stack plus any bare-DROP discards collected
// along the way, without folding them into the top value yet. Match/loop
// branch reconstruction needs this raw form since the branch's trailing
// DIP_DROP must be read as the construct's own variable binding(s), not
// folded away as a generic let.
func (d *Decompiler) runFrame(seq []michelson.Instr, stack []*slot) ([]*slot, []*ir.Node, error) {
	var discards []*ir.Node
	i := 0
	for i < len(seq) {
		consumed, dropped, err := d.step(seq[i:], &stack)
		if err != nil {
			return nil, nil, err
		}
		if dropped != nil {
			discards = append(discards, dropped)
		}
		i += consumed
	}
	return stack, discards, nil
}

func foldDiscards(result *ir.Node, discards []*ir.Node) *ir.Node {
	for i := len(discards) - 1; i >= 0; i-- {
		result = &ir.Node{Tag: ir.Seq, First: discards[i], Second: result, Ty: result.Ty}
	}
	return result
}

// runBinding simulates a branch sequence that ends in a fixed
// DIP_DROP(1,n) closing n bindings (internal/codegen's match/loop/iter
// bodies all end this way), and returns the n bound names (top of stack
// first, i.e. the reverse of the order each construct's own push calls
// introduced them)
// together with the branch's reconstructed body. n must match the
// trailing DIP_DROP's drop count exactly.
func (d *Decompiler) runBinding(seq []michelson.Instr, stack []*slot, n int) (names []string, body *ir.Node, err error) {
	if len(seq) == 0 {
		return nil, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "binding branch has no instructions")
	}
	last := seq[len(seq)-1]
	if last.Op != michelson.OpDipDrop || last.N != 1 || last.N2 != n {
		return nil, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "binding branch does not end in the expected DIP_DROP(1,%d)", n)
	}
	final, discards, err := d.runFrame(seq[:len(seq)-1], stack)
	if err != nil {
		return nil, nil, err
	}
	if len(final) < n+1 {
		return nil, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "binding branch left too few stack slots")
	}
	body = foldDiscards(final[0].Def, discards)
	names = make([]string, n)
	for i := 0; i < n; i++ {
		b := final[1+i]
		if !b.Named {
			b.Named = true
			b.Name = d.freshName("_")
		}
		names[i] = b.Name
	}
	return names, body, nil
}

// step executes the instruction(s) at the front of seq against stack,
// returning how many raw instructions it consumed (more than one for the
// composite constructs recognized in control.go/lambda.go) and, for a
// bare DROP, the discarded value (nil otherwise).
func (d *Decompiler) step(seq []michelson.Instr, stack *[]*slot) (consumed int, dropped *ir.Node, err error) {
	ins := seq[0]
	s := *stack

	if ins.Op == michelson.OpDip {
		if consumed, ok := d.stepClosureExec(seq, &s); ok {
			*stack = s
			return consumed, nil, nil
		}
	}

	if ins.Op == michelson.OpDup && len(seq) >= 3 && seq[1].Op == michelson.OpISNat && seq[2].Op == michelson.OpIfNone {
		node, err := d.matchNat(seq[2], s)
		if err != nil {
			return 0, nil, err
		}
		*stack = append([]*slot{anonSlot(node)}, s[1:]...)
		return 3, nil, nil
	}

	// internal/codegen.compileLoop's fixed unpackLoopStep (DUP;CAR;
	// DIP{CDR};DIP_DROP(2,1)) always immediately precedes the LOOP
	// instruction it primes; recognizing that exact shape here lets the
	// already-decompiled prime value (s[0], still in terms of the
	// accumulator's Var) serve directly as LoopBody, with no need to
	// split accSeq from primeSeq.
	if isUnpackLoopStep(seq) && len(seq) >= 5 && seq[4].Op == michelson.OpLoop {
		node, err := d.matchLoop(seq[4], s)
		if err != nil {
			return 0, nil, err
		}
		*stack = append([]*slot{anonSlot(node)}, s[2:]...)
		return 5, nil, nil
	}

	// internal/codegen.compileLoopLeft seeds the loop with a bare LEFT
	// immediately followed by LOOP_LEFT.
	if ins.Op == michelson.OpLeft && len(seq) >= 2 && seq[1].Op == michelson.OpLoopLeft {
		node, err := d.matchLoopLeft(seq[1], s)
		if err != nil {
			return 0, nil, err
		}
		*stack = append([]*slot{anonSlot(node)}, s[1:]...)
		return 2, nil, nil
	}

	// internal/codegen.reverseList (list.rev, and map_fold's un-reverse
	// pass) is NIL;SWAP;ITER{CONS}.
	if ins.Op == michelson.OpNil && len(seq) >= 3 && seq[1].Op == michelson.OpSwap && seq[2].Op == michelson.OpIter &&
		len(seq[2].Then) == 1 && seq[2].Then[0].Op == michelson.OpCons {
		if len(s) < 1 {
			return 0, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "list.rev needs an argument")
		}
		node := &ir.Node{Tag: ir.Apply, Prim: "list.rev", Args: []*ir.Node{s[0].Def}, Ty: s[0].Def.Ty}
		*stack = append([]*slot{anonSlot(node)}, s[1:]...)
		return 3, nil, nil
	}

	switch ins.Op {
	case michelson.OpIfNone:
		node, err := d.matchOption(ins, s)
		if err != nil {
			return 0, nil, err
		}
		*stack = append([]*slot{anonSlot(node)}, s[1:]...)
		return 1, nil, nil

	case michelson.OpIfCons:
		node, err := d.matchList(ins, s)
		if err != nil {
			return 0, nil, err
		}
		*stack = append([]*slot{anonSlot(node)}, s[1:]...)
		return 1, nil, nil

	case michelson.OpIfLeft:
		node, err := d.matchVariant(ins, s)
		if err != nil {
			return 0, nil, err
		}
		*stack = append([]*slot{anonSlot(node)}, s[1:]...)
		return 1, nil, nil

	case michelson.OpIf:
		if len(s) < 1 {
			return 0, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "IF needs a condition")
		}
		cond := s[0]
		thenNode, err := d.run(ins.Then, s[1:])
		if err != nil {
			return 0, nil, err
		}
		elseNode, err := d.run(ins.Else, s[1:])
		if err != nil {
			return 0, nil, err
		}
		node := &ir.Node{Tag: ir.If, Cond: cond.Def, Then: thenNode, Else: elseNode, Ty: thenNode.Ty}
		*stack = append([]*slot{anonSlot(node)}, s[1:]...)
		return 1, nil, nil

	case michelson.OpIter:
		node, err := d.matchFold(ins, s)
		if err != nil {
			return 0, nil, err
		}
		*stack = append([]*slot{anonSlot(node)}, s[1:]...)
		return 1, nil, nil

	case michelson.OpMap:
		node, err := d.matchMap(ins, s)
		if err != nil {
			return 0, nil, err
		}
		*stack = append([]*slot{anonSlot(node)}, s[1:]...)
		return 1, nil, nil
	}

	if ins.Op == michelson.OpLambda {
		consumed, err := d.stepLambda(seq, &s)
		if err != nil {
			return 0, nil, err
		}
		*stack = s
		return consumed, nil, nil
	}

	switch ins.Op {
	case michelson.OpDup:
		n := ins.N
		if n < 1 || n > len(s) {
			return 0, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "DUP %d out of range", n)
		}
		target := s[n-1]
		if !target.Named {
			target.Named = true
			target.Name = d.freshName("t")
		}
		*stack = append([]*slot{namedSlot(target.Name, target.Def.Ty)}, s...)
		return 1, nil, nil

	case michelson.OpSwap:
		if len(s) < 2 {
			return 0, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "SWAP needs 2 items")
		}
		s[0], s[1] = s[1], s[0]
		*stack = s
		return 1, nil, nil

	case michelson.OpDig:
		n := ins.N
		if n < 0 || n >= len(s) {
			return 0, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "DIG %d out of range", n)
		}
		x := s[n]
		rest := append(append([]*slot{}, s[:n]...), s[n+1:]...)
		*stack = append([]*slot{x}, rest...)
		return 1, nil, nil

	case michelson.OpDug:
		n := ins.N
		if n < 0 || n >= len(s) {
			return 0, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "DUG %d out of range", n)
		}
		x := s[0]
		rest := s[1:]
		out := append(append([]*slot{}, rest[:n]...), append([]*slot{x}, rest[n:]...)...)
		*stack = out
		return 1, nil, nil

	case michelson.OpDrop:
		n := ins.N
		if n == 0 {
			n = 1
		}
		if n > len(s) {
			return 0, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "DROP %d out of range", n)
		}
		dropped = s[0].Def
		*stack = s[n:]
		return 1, dropped, nil

	case michelson.OpDipDrop:
		if len(s) < ins.N+ins.N2 {
			return 0, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "DIP_DROP(%d,%d) out of range", ins.N, ins.N2)
		}
		protected := append([]*slot{}, s[:ins.N]...)
		rest := s[ins.N+ins.N2:]
		if ins.N != 1 {
			// internal/codegen emits a protect count other than 1 in
			// unpackLoopStep (DIP_DROP(2,1), dropping the stale accumulator
			// copy beneath the freshly unpacked bool/acc pair) and in
			// compileMapFold (DIP_DROP(2,2)), whose code matchFold rejects
			// first; it carries no binding semantics, just a stack-shape
			// cleanup.
			*stack = append(protected, rest...)
			return 1, nil, nil
		}
		body := s[0]
		bound := s[1 : 1+ins.N2]
		letNode := body.Def
		for i := len(bound) - 1; i >= 0; i-- {
			b := bound[i]
			name := b.Name
			if !b.Named {
				name = d.freshName("_")
			}
			letNode = &ir.Node{Tag: ir.Let, Name: name, Bound: b.Def, Body: letNode, Ty: letNode.Ty}
		}
		*stack = append([]*slot{anonSlot(letNode)}, rest...)
		return 1, nil, nil

	case michelson.OpDip:
		if ins.N > len(s) {
			return 0, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "DIP %d out of range", ins.N)
		}
		protected := append([]*slot{}, s[:ins.N]...)
		below := append([]*slot{}, s[ins.N:]...)
		newBelow, discards, err := d.runFrame(ins.Nested, below)
		if err != nil {
			return 0, nil, err
		}
		if len(newBelow) == 0 {
			return 0, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "DIP body produced no value")
		}
		newBelow[0] = anonSlot(foldDiscards(newBelow[0].Def, discards))
		*stack = append(protected, newBelow...)
		return 1, nil, nil

	case michelson.OpPush:
		*stack = append([]*slot{anonSlot(&ir.Node{Tag: ir.ConstNode, Const: ins.Const, Ty: ins.Ty, Pure: true})}, s...)
		return 1, nil, nil

	case michelson.OpUnit:
		*stack = pushConst(s, types.Const{Kind: types.CUnit}, types.Unit)
		return 1, nil, nil

	case michelson.OpNil:
		*stack = pushConst(s, types.Const{Kind: types.CList}, types.List(ins.Ty))
		return 1, nil, nil

	case michelson.OpNone:
		*stack = pushConst(s, types.Const{Kind: types.COption}, types.Option(ins.Ty))
		return 1, nil, nil

	case michelson.OpEmptySet:
		*stack = pushConst(s, types.Const{Kind: types.CSet}, types.Set(ins.Ty))
		return 1, nil, nil

	case michelson.OpEmptyMap:
		k, v, splitErr := mapElemTypes(ins)
		if splitErr != nil {
			return 0, nil, splitErr
		}
		*stack = pushConst(s, types.Const{Kind: types.CMap}, types.Map(k, v))
		return 1, nil, nil

	case michelson.OpEmptyBigMap:
		k, v, splitErr := mapElemTypes(ins)
		if splitErr != nil {
			return 0, nil, splitErr
		}
		*stack = pushConst(s, types.Const{Kind: types.CBigMap}, types.BigMap(k, v))
		return 1, nil, nil

	case michelson.OpRename:
		// RENAME only re-annotates the top debug name; it carries no
		// stack-shape information the decompiler needs to preserve.
		return 1, nil, nil

	case michelson.OpSelf:
		return d.nullary(stack, ins, "self", nil)
	case michelson.OpBalance:
		return d.nullary(stack, ins, "balance", types.Tez)
	case michelson.OpNow:
		return d.nullary(stack, ins, "now", types.Timestamp)
	case michelson.OpAmount:
		return d.nullary(stack, ins, "amount", types.Tez)
	case michelson.OpSender:
		return d.nullary(stack, ins, "sender", types.Address)
	case michelson.OpSource:
		return d.nullary(stack, ins, "source", types.Address)
	case michelson.OpStepsToQuota:
		return d.nullary(stack, ins, "steps_to_quota", types.Nat)

	case michelson.OpFailwith:
		if len(s) < 1 {
			return 0, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "FAILWITH needs an argument")
		}
		msg := s[0]
		node := &ir.Node{Tag: ir.Failwith, FailMsg: msg.Def, Ty: types.Tuple(types.List(types.Operation), types.Unit)}
		*stack = append([]*slot{anonSlot(node)}, s[1:]...)
		return 1, nil, nil

	case michelson.OpTransferTokens:
		if len(s) < 3 {
			return 0, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "TRANSFER_TOKENS needs 3 arguments")
		}
		arg, amount, contract := s[0], s[1], s[2]
		node := &ir.Node{Tag: ir.Transfer, Contract: contract.Def, Amount: amount.Def, TransferArg: arg.Def, Ty: types.Operation, Transfer: true}
		*stack = append([]*slot{anonSlot(node)}, s[3:]...)
		return 1, nil, nil

	case michelson.OpContract:
		if len(s) < 1 {
			return 0, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "CONTRACT needs an argument")
		}
		obj := s[0]
		node := &ir.Node{Tag: ir.ContractAt, Object: obj.Def, ContractParamTy: ins.Ty, Ty: types.Option(types.Contract(ins.Ty))}
		*stack = append([]*slot{anonSlot(node)}, s[1:]...)
		return 1, nil, nil

	case michelson.OpUnpack:
		if len(s) < 1 {
			return 0, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "UNPACK needs an argument")
		}
		bytes := s[0]
		node := &ir.Node{Tag: ir.Unpack, UnpackBytes: bytes.Def, UnpackTy: ins.Ty, Ty: types.Option(ins.Ty)}
		*stack = append([]*slot{anonSlot(node)}, s[1:]...)
		return 1, nil, nil

	case michelson.OpCompare:
		// internal/codegen.compileCompare always follows COMPARE
		// immediately with the bool-producing tail opcode; a bare
		// COMPARE with no such follower never occurs in compiled output.
		if len(seq) < 2 {
			return 0, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "COMPARE without a following relational opcode")
		}
		prim, ok := compareTail(seq[1].Op)
		if !ok {
			return 0, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "COMPARE followed by unexpected opcode")
		}
		if len(s) < 2 {
			return 0, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "%s needs 2 arguments", prim)
		}
		node := &ir.Node{Tag: ir.Apply, Prim: prim, Args: []*ir.Node{s[0].Def, s[1].Def}, Ty: types.Bool}
		*stack = append([]*slot{anonSlot(node)}, s[2:]...)
		return 2, nil, nil

	case michelson.OpLeft:
		if len(s) < 1 {
			return 0, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "LEFT needs an argument")
		}
		node := &ir.Node{Tag: ir.Apply, Prim: "Left", Args: []*ir.Node{s[0].Def}, Ty: types.Or(s[0].Def.Ty, ins.Ty)}
		*stack = append([]*slot{anonSlot(node)}, s[1:]...)
		return 1, nil, nil

	case michelson.OpRight:
		if len(s) < 1 {
			return 0, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "RIGHT needs an argument")
		}
		node := &ir.Node{Tag: ir.Apply, Prim: "Right", Args: []*ir.Node{s[0].Def}, Ty: types.Or(ins.Ty, s[0].Def.Ty)}
		*stack = append([]*slot{anonSlot(node)}, s[1:]...)
		return 1, nil, nil

	case michelson.OpExec:
		if len(s) < 2 {
			return 0, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "EXEC needs 2 arguments")
		}
		arg, fn := s[0], s[1]
		resultTy := types.Unit
		if fn.Def.Ty != nil && fn.Def.Ty.Kind == types.KLambda && len(fn.Def.Ty.Args) == 2 {
			resultTy = fn.Def.Ty.Args[1]
		}
		node := &ir.Node{Tag: ir.Apply, Prim: "exec", Args: []*ir.Node{fn.Def, arg.Def}, Ty: resultTy}
		*stack = append([]*slot{anonSlot(node)}, s[2:]...)
		return 1, nil, nil
	}

	if prim, arity, resultTy, ok := primitiveOp(ins); ok {
		if len(s) < arity {
			return 0, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "%s needs %d arguments", prim, arity)
		}
		args := make([]*ir.Node, arity)
		for i := 0; i < arity; i++ {
			args[i] = s[i].Def
		}
		ty := resultTy(ins, args)
		node := &ir.Node{Tag: ir.Apply, Prim: prim, Args: args, Ty: ty}
		*stack = append([]*slot{anonSlot(node)}, s[arity:]...)
		return 1, nil, nil
	}

	return 0, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "unrecognized instruction %v", ins.Op)
}

func (d *Decompiler) nullary(stack *[]*slot, ins michelson.Instr, prim string, ty *types.Type) (int, *ir.Node, error) {
	node := &ir.Node{Tag: ir.Apply, Prim: prim, Ty: ty, Pure: true}
	*stack = append([]*slot{anonSlot(node)}, *stack...)
	return 1, nil, nil
}

func pushConst(s []*slot, c types.Const, ty *types.Type) []*slot {
	return append([]*slot{anonSlot(&ir.Node{Tag: ir.ConstNode, Const: c, Ty: ty, Pure: true})}, s...)
}

func mapElemTypes(ins michelson.Instr) (*types.Type, *types.Type, error) {
	if len(ins.Tys) == 2 {
		return ins.Tys[0], ins.Tys[1], nil
	}
	return nil, nil, diag.New(diag.Decompile, diag.UnstructuredProgram, diag.Loc{}, "EMPTY_MAP/EMPTY_BIG_MAP missing key/value types")
}

// primitiveOp maps the M ops that always lower 1:1 from a single
// internal/check primitive application (internal/codegen/primitives.go's
// compileApply) back to that primitive name, arity, and result-type rule.
// Args are read off the stack top-down, matching the reverse compile
// order internal/codegen.compileArgsReverse leaves them in, so args[0] in
// the rebuilt node is always the current stack top.
func primitiveOp(ins michelson.Instr) (prim string, arity int, resultTy func(michelson.Instr, []*ir.Node) *types.Type, ok bool) {
	unary := func(p string, ty *types.Type) (string, int, func(michelson.Instr, []*ir.Node) *types.Type, bool) {
		return p, 1, func(michelson.Instr, []*ir.Node) *types.Type { return ty }, true
	}
	unaryLike := func(p string) (string, int, func(michelson.Instr, []*ir.Node) *types.Type, bool) {
		return p, 1, func(_ michelson.Instr, a []*ir.Node) *types.Type { return a[0].Ty }, true
	}
	binary := func(p string, ty *types.Type) (string, int, func(michelson.Instr, []*ir.Node) *types.Type, bool) {
		return p, 2, func(michelson.Instr, []*ir.Node) *types.Type { return ty }, true
	}

	switch ins.Op {
	case michelson.OpAdd:
		return binary("+", nil)
	case michelson.OpSub:
		return binary("-", nil)
	case michelson.OpMul:
		return binary("*", nil)
	case michelson.OpEDiv:
		return binary("/", nil)
	case michelson.OpNot:
		return unaryLike("not")
	case michelson.OpAnd:
		return binary("and", nil)
	case michelson.OpOr:
		return binary("or", nil)
	case michelson.OpXor:
		return binary("xor", nil)
	case michelson.OpInt:
		return unary("int", types.Int)
	case michelson.OpAbs:
		return unary("abs", types.Nat)
	case michelson.OpISNat:
		return unary("is_nat", types.Option(types.Nat))
	case michelson.OpPair:
		return "pair", 2, func(_ michelson.Instr, a []*ir.Node) *types.Type { return types.Tuple(a[0].Ty, a[1].Ty) }, true
	case michelson.OpCar:
		return "car", 1, func(_ michelson.Instr, a []*ir.Node) *types.Type { return pairElem(a[0].Ty, 0) }, true
	case michelson.OpCdr:
		return "cdr", 1, func(_ michelson.Instr, a []*ir.Node) *types.Type { return pairElem(a[0].Ty, 1) }, true
	case michelson.OpSome:
		return "Some", 1, func(_ michelson.Instr, a []*ir.Node) *types.Type { return types.Option(a[0].Ty) }, true
	case michelson.OpCons:
		return "Cons", 2, func(_ michelson.Instr, a []*ir.Node) *types.Type { return a[1].Ty }, true
	case michelson.OpSize:
		return unary("list.size", types.Nat)
	case michelson.OpConcat:
		return binary("concat", types.String)
	case michelson.OpSlice:
		return "slice", 3, func(_ michelson.Instr, a []*ir.Node) *types.Type { return types.Option(types.String) }, true
	case michelson.OpBlake2B:
		return unary("blake2b", types.Bytes)
	case michelson.OpSha256:
		return unary("sha256", types.Bytes)
	case michelson.OpSha512:
		return unary("sha512", types.Bytes)
	case michelson.OpKeccak:
		return unary("keccak", types.Bytes)
	case michelson.OpSha3:
		return unary("sha3", types.Bytes)
	case michelson.OpPack:
		return unary("pack", types.Bytes)
	case michelson.OpCheckSignature:
		return "check_signature", 3, func(michelson.Instr, []*ir.Node) *types.Type { return types.Bool }, true
	case michelson.OpHashKey:
		return unary("hash_key", types.KeyHash)
	case michelson.OpMem:
		return "coll.mem", 2, func(michelson.Instr, []*ir.Node) *types.Type { return types.Bool }, true
	case michelson.OpGet:
		return "map.get", 2, func(_ michelson.Instr, a []*ir.Node) *types.Type { return types.Option(pairElem(a[1].Ty, 1)) }, true
	case michelson.OpUpdate:
		return "map.update", 3, func(_ michelson.Instr, a []*ir.Node) *types.Type { return a[2].Ty }, true
	case michelson.OpAddress:
		return unary("address", types.Address)
	case michelson.OpSetDelegate:
		return unary("set_delegate", types.Operation)
	case michelson.OpImplicitAccount:
		return unary("implicit_account", types.Contract(types.Unit))
	}
	return "", 0, nil, false
}

// compareTail maps the bool-producing opcode that always immediately
// follows COMPARE (internal/codegen.compileCompare) back to the relational
// operator it came from.
func compareTail(op michelson.Op) (string, bool) {
	switch op {
	case michelson.OpEq:
		return "=", true
	case michelson.OpNeq:
		return "<>", true
	case michelson.OpLt:
		return "<", true
	case michelson.OpGt:
		return ">", true
	case michelson.OpLe:
		return "<=", true
	case michelson.OpGe:
		return ">=", true
	}
	return "", false
}

// pairElem reads the kth component off a reconstructed tuple/pair type;
// car/cdr on anything narrower is a decompile-time shape error.
func pairElem(t *types.Type, k int) *types.Type {
	if t == nil || t.Kind != types.KTuple || len(t.Args) < 2 {
		return types.Unit
	}
	if k == 0 {
		return t.Args[0]
	}
	if len(t.Args) == 2 {
		return t.Args[1]
	}
	return &types.Type{Kind: types.KTuple, Args: t.Args[1:]}
}
