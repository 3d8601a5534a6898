// internal/adapters/chain/operation.go

// Package chain executes the on-chain side of a submission as an ordered
// sequence of checkpointed steps and reports progress through a channel, so
// the state machine can advance its phase as each checkpoint lands.
package chain

import "context"

// Checkpoint names a progress point of a chain operation.
type Checkpoint string

const (
	CheckpointIPFS              Checkpoint = "ipfs"
	CheckpointTransaction       Checkpoint = "transaction"
	CheckpointTransactionStatus Checkpoint = "transactionStatus"
	CheckpointIndexingStatus    Checkpoint = "indexingStatus"
)

// Step is one unit of a chain operation. Run returns the checkpoint's value,
// such as a CID or a transaction hash.
type Step struct {
	Checkpoint Checkpoint
	Run        func(ctx context.Context) (interface{}, error)
}

// CheckpointResult is emitted once per attempted step.
type CheckpointResult struct {
	Checkpoint Checkpoint
	Value      interface{}
	Err        error
}

// Operation is an ordered list of steps executed at most once.
type Operation struct {
	steps []Step
}

func NewOperation(steps ...Step) *Operation {
	return &Operation{steps: steps}
}

// Execute runs the steps in order on a separate goroutine. Each step's
// result is sent on the returned channel; execution stops after the first
// failed step, and the channel is closed when no more results will come.
// Context cancellation surfaces as the failing step's error.
func (o *Operation) Execute(ctx context.Context) <-chan CheckpointResult {
	results := make(chan CheckpointResult)

	go func() {
		defer close(results)

		for _, step := range o.steps {
			if err := ctx.Err(); err != nil {
				results <- CheckpointResult{Checkpoint: step.Checkpoint, Err: err}
				return
			}

			value, err := step.Run(ctx)
			results <- CheckpointResult{Checkpoint: step.Checkpoint, Value: value, Err: err}
			if err != nil {
				return
			}
		}
	}()

	return results
}
