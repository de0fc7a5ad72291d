package michelson

import (
	"testing"

	"github.com/stretchr/testify/require"

	"stackc/internal/types"
)

func constInt(v int64) Instr {
	return Instr{Op: OpPush, Const: types.Const{Kind: types.CInt, Int: v}}
}

// TestPeepholeDoesNotCancelMismatchedDupDepth is the regression case for
// `let x = 5 in let y = 10 in x`: codegen emits
// PUSH 5; PUSH 10; DUP 2; DIP_DROP(1,1); DIP_DROP(1,1) — the inner
// DUP 2; DIP_DROP(1,1) pair is not a cancelling no-op (it pulls x from
// depth 2 to the top, then drops the unrelated y binding beneath it),
// only DUP 1; DIP_DROP(1,1) pairs ever cancel. Peephole must leave this
// sequence's value-producing shape intact.
func TestPeepholeDoesNotCancelMismatchedDupDepth(t *testing.T) {
	seq := Seq{
		constInt(5),
		constInt(10),
		{Op: OpDup, N: 2},
		{Op: OpDipDrop, N: 1, N2: 1},
		{Op: OpDipDrop, N: 1, N2: 1},
	}

	out := Peephole(seq, true)

	var pushes, dups, dipDrops int
	for _, ins := range out {
		switch ins.Op {
		case OpPush:
			pushes++
		case OpDup:
			dups++
		case OpDipDrop:
			dipDrops++
		}
	}
	require.Equal(t, 2, pushes)
	require.Equal(t, 1, dups, "the DUP 2 must survive peephole, it is not a cancelling pair")
	require.Equal(t, 2, dipDrops)
}

// TestPeepholeCancelsSelfDupDiscard covers the one pattern that really is
// a universal identity: DUP 1 (self-dup) immediately discarded by
// DIP_DROP(1,1).
func TestPeepholeCancelsSelfDupDiscard(t *testing.T) {
	seq := Seq{
		constInt(7),
		{Op: OpDup, N: 1},
		{Op: OpDipDrop, N: 1, N2: 1},
	}

	out := Peephole(seq, true)

	require.Equal(t, Seq{constInt(7)}, out)
}

// TestPeepholeDoesNotCancelFoldTrailer covers compileFold's trailer,
// which always emits `DIP_DROP(1,2)` regardless of what precedes it; a
// fold body that just returns its accumulator compiles to exactly
// `DUP 2; DIP_DROP(1,2)`, matching dup depth and drop count, but this
// pair implements ITER's required stack-contract cleanup and must not be
// elided.
func TestPeepholeDoesNotCancelFoldTrailer(t *testing.T) {
	seq := Seq{
		{Op: OpDup, N: 2},
		{Op: OpDipDrop, N: 1, N2: 2},
	}

	out := Peephole(seq, true)
	require.Equal(t, seq, out)
}
