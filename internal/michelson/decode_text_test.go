package michelson

import (
	"testing"

	"github.com/stretchr/testify/require"

	"stackc/internal/types"
)

func TestParseProgramRoundTrip(t *testing.T) {
	prog := Program{
		Parameter: types.Int,
		Storage:   types.Nat,
		Code: []Concrete{
			{Prim: "CAR"},
			{Prim: "PUSH", Args: []Concrete{{Prim: "nat"}, {Prim: "1"}}},
			{Prim: "ADD"},
			{Prim: "NIL", Args: []Concrete{{Prim: "operation"}}},
			{Prim: "PAIR"},
		},
	}

	text := EmitText(prog)
	got, err := ParseProgram(text)
	require.NoError(t, err)

	require.True(t, types.Equal(prog.Parameter, got.Parameter))
	require.True(t, types.Equal(prog.Storage, got.Storage))
	require.Equal(t, prog.Code, got.Code)
}

func TestParseConstRoundTrip(t *testing.T) {
	cases := []Concrete{
		{Prim: "42"},
		{Prim: `"hello"`},
		{Prim: "Pair", Args: []Concrete{{Prim: "1"}, {Prim: "2"}}},
		{Prim: "Some", Args: []Concrete{{Prim: "3"}}},
		{Prim: "SEQ", Args: []Concrete{{Prim: "1"}, {Prim: "2"}, {Prim: "3"}}},
	}
	for _, c := range cases {
		text := EmitConstText(c)
		got, err := ParseConst(text)
		require.NoError(t, err)
		require.Equal(t, c, got)
	}
}

func TestParseProgramRejectsMissingStanza(t *testing.T) {
	_, err := ParseProgram("parameter int; code {};")
	require.Error(t, err)
}

func TestParseConstValueGroundKinds(t *testing.T) {
	c, err := ParseConst("123")
	require.NoError(t, err)
	v, err := ParseConstValue(c, types.Nat)
	require.NoError(t, err)
	require.Equal(t, types.CNat, v.Kind)
	require.Equal(t, int64(123), v.Int)
}
