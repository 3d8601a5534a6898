// internal/adapters/wallet/signer_test.go
package wallet

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Throwaway key used only in tests.
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// Address derived from testPrivateKey.
const testAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

// ==========================
// LocalSigner Tests
// ==========================

func TestNewLocalSigner(t *testing.T) {
	tests := []struct {
		name        string
		key         string
		expectError bool
	}{
		{
			name: "valid key without prefix",
			key:  testPrivateKey,
		},
		{
			name: "valid key with 0x prefix",
			key:  "0x" + testPrivateKey,
		},
		{
			name:        "invalid hex",
			key:         "not-a-key",
			expectError: true,
		},
		{
			name:        "empty key",
			key:         "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer, err := NewLocalSigner(tt.key, 1)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testAddress, signer.Address())
		})
	}
}

func TestSignMessage_RecoversToSignerAddress(t *testing.T) {
	signer, err := NewLocalSigner(testPrivateKey, 1)
	require.NoError(t, err)

	message := "0x1de1cf4726ae8a63230b2f12160b4a35ecb8e0d235d24fa1eff06a3ec4a6ae34"

	sig, err := signer.SignMessage(context.Background(), message)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sig, "0x"))
	assert.Len(t, sig, 132)

	recovered, err := RecoverSigner(message, sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), recovered)
}

func TestSignMessage_CancelledContext(t *testing.T) {
	signer, err := NewLocalSigner(testPrivateKey, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = signer.SignMessage(ctx, "anything")
	assert.Error(t, err)
}

// ==========================
// RecoverSigner Tests
// ==========================

func TestRecoverSigner_InvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		signature string
	}{
		{name: "not hex", signature: "zzzz"},
		{name: "too short", signature: "0x0102"},
		{name: "empty", signature: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RecoverSigner("message", tt.signature)
			assert.Error(t, err)
		})
	}
}

func TestRecoverSigner_DifferentMessageDifferentAddress(t *testing.T) {
	signer, err := NewLocalSigner(testPrivateKey, 1)
	require.NoError(t, err)

	sig, err := signer.SignMessage(context.Background(), "original")
	require.NoError(t, err)

	recovered, err := RecoverSigner("tampered", sig)
	require.NoError(t, err)
	assert.NotEqual(t, signer.Address(), recovered)
}
