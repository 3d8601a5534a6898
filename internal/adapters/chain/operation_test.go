// internal/adapters/chain/operation_test.go
package chain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, results <-chan CheckpointResult) []CheckpointResult {
	t.Helper()
	var out []CheckpointResult
	for r := range results {
		out = append(out, r)
	}
	return out
}

// ==========================
// Execute Tests
// ==========================

func TestExecute_AllStepsSucceed(t *testing.T) {
	op := NewOperation(
		Step{Checkpoint: CheckpointIPFS, Run: func(ctx context.Context) (interface{}, error) {
			return "QmCid", nil
		}},
		Step{Checkpoint: CheckpointTransaction, Run: func(ctx context.Context) (interface{}, error) {
			return "0xHash", nil
		}},
		Step{Checkpoint: CheckpointTransactionStatus, Run: func(ctx context.Context) (interface{}, error) {
			return nil, nil
		}},
	)

	results := collect(t, op.Execute(context.Background()))

	require.Len(t, results, 3)
	assert.Equal(t, CheckpointIPFS, results[0].Checkpoint)
	assert.Equal(t, "QmCid", results[0].Value)
	assert.Equal(t, CheckpointTransaction, results[1].Checkpoint)
	assert.Equal(t, "0xHash", results[1].Value)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
}

func TestExecute_StopsAfterFirstFailure(t *testing.T) {
	laterRan := false

	op := NewOperation(
		Step{Checkpoint: CheckpointIPFS, Run: func(ctx context.Context) (interface{}, error) {
			return "QmCid", nil
		}},
		Step{Checkpoint: CheckpointTransaction, Run: func(ctx context.Context) (interface{}, error) {
			return nil, assert.AnError
		}},
		Step{Checkpoint: CheckpointTransactionStatus, Run: func(ctx context.Context) (interface{}, error) {
			laterRan = true
			return nil, nil
		}},
	)

	results := collect(t, op.Execute(context.Background()))

	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.False(t, laterRan)
}

func TestExecute_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	op := NewOperation(
		Step{Checkpoint: CheckpointIPFS, Run: func(ctx context.Context) (interface{}, error) {
			t.Fatal("step must not run after cancellation")
			return nil, nil
		}},
	)

	results := collect(t, op.Execute(ctx))

	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
}

func TestExecute_EmptyOperation(t *testing.T) {
	op := NewOperation()
	results := collect(t, op.Execute(context.Background()))
	assert.Empty(t, results)
}
