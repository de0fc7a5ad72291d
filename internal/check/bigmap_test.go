package check

import (
	"testing"

	"github.com/stretchr/testify/require"

	"stackc/internal/ast"
	"stackc/internal/diag"
	"stackc/internal/env"
	"stackc/internal/types"
)

func checkEmptyContract(t *testing.T, storage *types.Type) error {
	t.Helper()
	c := New(env.New(), Strict)
	_, err := c.CheckContract(&ast.Contract{Name: "c", Storage: storage})
	return err
}

// TestBigMapFirstTupleComponentIsValid covers the one accepted shape
// (spec.md §3): a big_map as the first element of a storage tuple.
func TestBigMapFirstTupleComponentIsValid(t *testing.T) {
	storage := types.Tuple(types.BigMap(types.Nat, types.Nat), types.Int)
	require.NoError(t, checkEmptyContract(t, storage))
}

// TestBareBigMapStorageIsValid covers the other accepted shape: storage
// that is nothing but the big_map itself.
func TestBareBigMapStorageIsValid(t *testing.T) {
	storage := types.BigMap(types.Nat, types.Int)
	require.NoError(t, checkEmptyContract(t, storage))
}

// TestBigMapAsSecondComponentIsRejected is the reviewer's own failing
// example: storage (int, bigmap nat nat) must raise BadBigMap, not
// typecheck silently into an invariant internal/encode's bigmap slot-0
// convention assumes but never itself validates.
func TestBigMapAsSecondComponentIsRejected(t *testing.T) {
	storage := types.Tuple(types.Int, types.BigMap(types.Nat, types.Nat))
	err := checkEmptyContract(t, storage)
	require.Error(t, err)

	de, ok := err.(*diag.Error)
	require.True(t, ok, "expected a *diag.Error, got %T", err)
	require.Equal(t, diag.BadBigMap, de.Reason)
}

// TestTwoBigMapsAreRejected covers a tuple with a big_map correctly
// placed first but a second one elsewhere in storage.
func TestTwoBigMapsAreRejected(t *testing.T) {
	storage := types.Tuple(types.BigMap(types.Nat, types.Nat), types.BigMap(types.Int, types.Int))
	err := checkEmptyContract(t, storage)
	require.Error(t, err)

	de, ok := err.(*diag.Error)
	require.True(t, ok, "expected a *diag.Error, got %T", err)
	require.Equal(t, diag.BadBigMap, de.Reason)
}
