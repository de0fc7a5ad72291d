package michelson

// Finalize implements spec.md §4.5's tail-fail finalization: inside every
// SEQ, truncate at the first instruction whose recursive tail position is
// known to fail. EndFails is defined inductively:
//   - FAILWITH always fails
//   - a SEQ fails iff its last element fails
//   - IF/IF_NONE/IF_LEFT/IF_CONS fail iff both arms fail
//   - DIP(_,e) fails iff e fails
//
// This guarantees the tail-fail invariant of spec.md §8: no instruction
// appears after FAILWITH in any SEQ of finalized code (FAILWITH poisons
// the stack type in M, so anything textually following it is dead and,
// worse, ill-typed).
func Finalize(seq Seq) Seq {
	out := make(Seq, 0, len(seq))
	for i, ins := range seq {
		ins.Nested = Finalize(ins.Nested)
		ins.Then = Finalize(ins.Then)
		ins.Else = Finalize(ins.Else)
		out = append(out, ins)
		if EndFails(ins) {
			// truncate: everything after a failing tail instruction is
			// unreachable and would be ill-typed for M's own typechecker.
			_ = i
			break
		}
	}
	return out
}

// EndFails reports whether ins is guaranteed to fail in its own tail
// position.
func EndFails(ins Instr) bool {
	switch ins.Op {
	case OpFailwith:
		return true
	case OpSeq:
		return seqFails(ins.Nested)
	case OpIf, OpIfNone, OpIfLeft, OpIfCons:
		return seqFails(ins.Then) && seqFails(ins.Else)
	case OpDip:
		return seqFails(ins.Nested)
	}
	return false
}

func seqFails(seq Seq) bool {
	if len(seq) == 0 {
		return false
	}
	return EndFails(seq[len(seq)-1])
}
