// internal/submission/store_test.go
package submission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "github.com/gitcoinco/grants-stack-sub000/internal/common/errors"
)

// ==========================
// StatusStore Tests
// ==========================

func TestStatusStore_BeginEnd(t *testing.T) {
	store := NewStatusStore()

	require.NoError(t, store.Begin("0xA"))

	err := store.Begin("0xA")
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeSubmissionInFlight, stderrors.Normalize(err).Code)

	// Other rounds are independent.
	require.NoError(t, store.Begin("0xB"))

	store.End("0xA")
	assert.NoError(t, store.Begin("0xA"))
}

func TestStatusStore_PhaseProgression(t *testing.T) {
	store := NewStatusStore()
	require.NoError(t, store.Begin("0xA"))

	status, ok := store.Get("0xA")
	require.True(t, ok)
	assert.Equal(t, PhaseBuildingApplication, status.Phase)

	store.SetPhase("0xA", PhaseSigningApplication)
	store.SetMetadataCid("0xA", "QmApp")
	store.SetTxHash("0xA", "0xTx")
	store.SetPhase("0xA", PhaseSent)

	status, _ = store.Get("0xA")
	assert.Equal(t, PhaseSent, status.Phase)
	assert.Equal(t, "QmApp", status.MetadataCid)
	assert.Equal(t, "0xTx", status.TxHash)
	assert.False(t, status.UpdatedAt.IsZero())
}

func TestStatusStore_FailAndResetError(t *testing.T) {
	store := NewStatusStore()
	require.NoError(t, store.Begin("0xA"))
	store.SetPhase("0xA", PhaseSendingTx)

	store.Fail("0xA", PhaseSendingTx, stderrors.NewTransactionRevertedError("0xTx"))

	status, _ := store.Get("0xA")
	assert.Equal(t, PhaseError, status.Phase)
	assert.Equal(t, PhaseSendingTx, status.FailingPhase)
	require.NotNil(t, status.Error)
	assert.Equal(t, stderrors.ErrCodeTransactionReverted, status.Error.Code)

	store.ResetError("0xA")
	status, _ = store.Get("0xA")
	assert.Equal(t, PhaseSendingTx, status.Phase)
	assert.Zero(t, status.FailingPhase)
	assert.Nil(t, status.Error)
}

func TestStatusStore_ResetErrorIgnoredWhenNotFailed(t *testing.T) {
	store := NewStatusStore()
	require.NoError(t, store.Begin("0xA"))
	store.SetPhase("0xA", PhaseIndexing)

	store.ResetError("0xA")

	status, _ := store.Get("0xA")
	assert.Equal(t, PhaseIndexing, status.Phase)
}

func TestStatusStore_Reset(t *testing.T) {
	store := NewStatusStore()
	require.NoError(t, store.Begin("0xA"))
	store.SetPhase("0xA", PhaseSent)

	store.Reset("0xA")

	_, ok := store.Get("0xA")
	assert.False(t, ok)
}

func TestStatusStore_GetUnknownRound(t *testing.T) {
	store := NewStatusStore()
	_, ok := store.Get("0xUnknown")
	assert.False(t, ok)
}
