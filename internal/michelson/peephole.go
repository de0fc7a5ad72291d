package michelson

// Peephole applies the windowed rewrite rules of spec.md §4.5:
//   - collapse `PUSH k; DROP` when k is pure (constants always are)
//   - collapse `DUP 1; DIP_DROP(1,1)` into nothing (self-dup immediately
//     discarded)
//   - merge adjacent `DIP(k,_)` of compatible depth
//
// It is applied bottom-up so nested sequences are canonicalized before the
// enclosing one is scanned.
func Peephole(seq Seq, enabled bool) Seq {
	if !enabled || len(seq) == 0 {
		return seq
	}
	out := make(Seq, 0, len(seq))
	for _, ins := range seq {
		ins.Nested = Peephole(ins.Nested, enabled)
		ins.Then = Peephole(ins.Then, enabled)
		ins.Else = Peephole(ins.Else, enabled)
		out = append(out, ins)
	}
	return peepholeWindow(out)
}

func peepholeWindow(seq Seq) Seq {
	changed := true
	for changed {
		changed = false
		out := make(Seq, 0, len(seq))
		i := 0
		for i < len(seq) {
			// PUSH k; DROP -> (nothing), PUSH is always pure.
			if i+1 < len(seq) && seq[i].Op == OpPush && seq[i+1].Op == OpDrop {
				i += 2
				changed = true
				continue
			}
			// DUP 1; DIP_DROP(1,1) -> (nothing): this is a true identity
			// only when the DUP targets the top element itself (n==1) and
			// exactly that one copy is dropped (n2==1) — compileLet's
			// "bind and immediately return the same variable" idiom is
			// the only place this arises, since the bound value always
			// sits at depth 1 when referenced with nothing compiled in
			// between. A DUP at any deeper n (e.g. referencing an outer
			// binding) paired with a same-count DIP_DROP is a genuine
			// stack-compaction, not a cancelling pair — eliding it would
			// drop live values (see compileFold's trailer, which emits
			// exactly `DUP 2; DIP_DROP(1,2)` for a fold body that just
			// returns its accumulator, where both counts matching is
			// required, not coincidental).
			if i+1 < len(seq) && seq[i].Op == OpDup && seq[i+1].Op == OpDipDrop &&
				seq[i].N == 1 && seq[i+1].N == 1 && seq[i+1].N2 == 1 {
				i += 2
				changed = true
				continue
			}
			// adjacent DIP(k, a); DIP(k, b) at the same depth -> DIP(k, a;b)
			if i+1 < len(seq) && seq[i].Op == OpDip && seq[i+1].Op == OpDip && seq[i].N == seq[i+1].N {
				merged := seq[i]
				merged.Nested = append(append(Seq{}, seq[i].Nested...), seq[i+1].Nested...)
				out = append(out, merged)
				i += 2
				changed = true
				continue
			}
			out = append(out, seq[i])
			i++
		}
		seq = out
	}
	return seq
}
