package michelson

import (
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/require"

	"stackc/internal/types"
)

// diffText renders a unified diff between two EmitText outputs so a
// round-trip mismatch shows exactly which printed line moved, rather
// than just "not equal" on a multi-line program string.
func diffText(t *testing.T, a, b string) string {
	t.Helper()
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: "want",
		ToFile:   "got",
		Context:  2,
	}
	out, err := difflib.GetUnifiedDiffString(diff)
	require.NoError(t, err)
	return out
}

// TestEmitTextRoundTripIsStable is the golden compile/decompile check
// SPEC_FULL.md's test tooling section describes: EmitText -> ParseProgram
// -> EmitText again must reach a fixed point, since a real compile then
// decompile pass depends on the printer and the text parser agreeing on
// every instruction it emits.
func TestEmitTextRoundTripIsStable(t *testing.T) {
	prog := Program{
		Parameter: types.Or(types.Int, types.Nat),
		Storage:   types.Tuple(types.Int, types.Bool),
		Code: []Concrete{
			{Prim: "DUP"},
			{Prim: "CAR"},
			{Prim: "IF_LEFT",
				Args: []Concrete{
					{Prim: "SEQ", Args: []Concrete{{Prim: "DROP"}}},
					{Prim: "SEQ", Args: []Concrete{{Prim: "DROP"}}},
				},
			},
			{Prim: "PUSH", Args: []Concrete{{Prim: "int"}, {Prim: "0"}}},
			{Prim: "NIL", Args: []Concrete{{Prim: "operation"}}},
			{Prim: "PAIR"},
		},
	}

	first := EmitText(prog)
	parsed, err := ParseProgram(first)
	require.NoError(t, err)
	second := EmitText(parsed)

	if first != second {
		t.Fatalf("round trip not stable:\n%s", diffText(t, first, second))
	}
}
