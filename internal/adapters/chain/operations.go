// internal/adapters/chain/operations.go
package chain

import (
	"context"

	"github.com/gitcoinco/grants-stack-sub000/pkg/schema"
)

// Broadcaster is the transaction-level surface the operations need. *Client
// implements it; tests script it.
type Broadcaster interface {
	ApplyToRound(ctx context.Context, roundAddress, projectID, strategy string, metaPtr schema.MetaPtr) (string, error)
	CreateProject(ctx context.Context, registryAddress string, metaPtr schema.MetaPtr) (string, error)
	WaitForReceipt(ctx context.Context, txHash string) error
}

// Pinner is the metadata-upload surface of the ipfs checkpoint.
type Pinner interface {
	PinJSON(ctx context.Context, name string, content interface{}) (string, error)
}

// ApplyParams configures an apply-to-round operation.
type ApplyParams struct {
	RoundAddress string
	ProjectID    string

	// Strategy is the round's payout strategy contract, recorded with the
	// application so payouts can route to it.
	Strategy string

	// Application is the signed payload pinned at the ipfs checkpoint.
	Application interface{}
	PinName     string

	// MetadataProtocol is the pointer protocol recorded on chain for the
	// pinned CID.
	MetadataProtocol string

	// WaitForIndexing blocks until the indexer has picked up the
	// application; runs as the indexingStatus checkpoint.
	WaitForIndexing func(ctx context.Context, metadataCid, txHash string) error
}

// NewApplyOperation wires the four apply checkpoints: pin the signed
// application, send the apply transaction, wait for its receipt, wait for
// the indexer. The ipfs checkpoint's value is the CID; the transaction
// checkpoint's value is the transaction hash.
func NewApplyOperation(broadcaster Broadcaster, pinner Pinner, p ApplyParams) *Operation {
	var metadataCid, txHash string

	return NewOperation(
		Step{Checkpoint: CheckpointIPFS, Run: func(ctx context.Context) (interface{}, error) {
			cid, err := pinner.PinJSON(ctx, p.PinName, p.Application)
			if err != nil {
				return nil, err
			}
			metadataCid = cid
			return cid, nil
		}},
		Step{Checkpoint: CheckpointTransaction, Run: func(ctx context.Context) (interface{}, error) {
			hash, err := broadcaster.ApplyToRound(ctx, p.RoundAddress, p.ProjectID, p.Strategy, schema.MetaPtr{
				Protocol: p.MetadataProtocol,
				Pointer:  metadataCid,
			})
			if err != nil {
				return nil, err
			}
			txHash = hash
			return hash, nil
		}},
		Step{Checkpoint: CheckpointTransactionStatus, Run: func(ctx context.Context) (interface{}, error) {
			return nil, broadcaster.WaitForReceipt(ctx, txHash)
		}},
		Step{Checkpoint: CheckpointIndexingStatus, Run: func(ctx context.Context) (interface{}, error) {
			return nil, p.WaitForIndexing(ctx, metadataCid, txHash)
		}},
	)
}

// CreateProjectParams configures a project-creation operation.
type CreateProjectParams struct {
	RegistryAddress string

	// Metadata is the project record pinned at the ipfs checkpoint.
	Metadata interface{}
	PinName  string

	MetadataProtocol string
}

// NewCreateProjectOperation wires the three project-creation checkpoints:
// pin the project metadata, send the registry transaction, wait for its
// receipt. Indexing is observed by the apply operation that follows.
func NewCreateProjectOperation(broadcaster Broadcaster, pinner Pinner, p CreateProjectParams) *Operation {
	var metadataCid, txHash string

	return NewOperation(
		Step{Checkpoint: CheckpointIPFS, Run: func(ctx context.Context) (interface{}, error) {
			cid, err := pinner.PinJSON(ctx, p.PinName, p.Metadata)
			if err != nil {
				return nil, err
			}
			metadataCid = cid
			return cid, nil
		}},
		Step{Checkpoint: CheckpointTransaction, Run: func(ctx context.Context) (interface{}, error) {
			hash, err := broadcaster.CreateProject(ctx, p.RegistryAddress, schema.MetaPtr{
				Protocol: p.MetadataProtocol,
				Pointer:  metadataCid,
			})
			if err != nil {
				return nil, err
			}
			txHash = hash
			return hash, nil
		}},
		Step{Checkpoint: CheckpointTransactionStatus, Run: func(ctx context.Context) (interface{}, error) {
			return nil, broadcaster.WaitForReceipt(ctx, txHash)
		}},
	)
}
