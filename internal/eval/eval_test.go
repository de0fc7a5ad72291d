package eval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"stackc/internal/michelson"
	"stackc/internal/types"
)

// addEntryProgram builds `{ DUP 1 ; CAR ; DIP 1 { CDR } ; ADD ; NIL operation ; PAIR }`:
// the minimal (operations, new_storage) shape every compiled entry point
// returns, adding the parameter into the storage.
func addEntryProgram() michelson.Program {
	seq := []michelson.Instr{
		{Op: michelson.OpDup, N: 1},
		{Op: michelson.OpCar},
		{Op: michelson.OpDip, N: 1, Nested: []michelson.Instr{{Op: michelson.OpCdr}}},
		{Op: michelson.OpAdd},
		{Op: michelson.OpNil, Ty: types.Operation},
		{Op: michelson.OpPair},
	}
	return michelson.Program{
		Parameter: types.Int,
		Storage:   types.Int,
		Code:      michelson.ToConcrete(seq),
	}
}

func TestRunAddsParamToStorage(t *testing.T) {
	prog := addEntryProgram()
	param := types.Const{Kind: types.CInt, Int: 5}
	storage := types.Const{Kind: types.CInt, Int: 7}

	res, err := Run(prog, param, storage)
	require.NoError(t, err)
	require.Equal(t, 0, res.Operations)
	require.Equal(t, types.CInt, res.Storage.Kind)
	require.Equal(t, int64(12), res.Storage.Int)
}

func TestRunFailwith(t *testing.T) {
	seq := []michelson.Instr{
		{Op: michelson.OpDrop, N: 1},
		{Op: michelson.OpPush, Const: types.Const{Kind: types.CString, Str: "boom"}},
		{Op: michelson.OpFailwith},
	}
	prog := michelson.Program{Parameter: types.Unit, Storage: types.Unit, Code: michelson.ToConcrete(seq)}

	_, err := Run(prog, types.Unit_(), types.Unit_())
	require.Error(t, err)
}

func TestRunStackUnderflow(t *testing.T) {
	seq := []michelson.Instr{{Op: michelson.OpAdd}}
	prog := michelson.Program{Parameter: types.Int, Storage: types.Int, Code: michelson.ToConcrete(seq)}

	_, err := Run(prog, types.Const{Kind: types.CInt, Int: 1}, types.Const{Kind: types.CInt, Int: 1})
	require.Error(t, err)
}
