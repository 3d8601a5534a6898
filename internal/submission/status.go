// internal/submission/status.go

// Package submission drives a round application through its phases:
// building, optional encryption authentication, signing, metadata upload,
// optional project creation, the apply transaction, and indexing. Progress
// is exposed as a per-round status plus a derived step list.
package submission

import (
	"encoding/json"
	"fmt"
	"time"

	stderrors "github.com/gitcoinco/grants-stack-sub000/internal/common/errors"
)

// Phase is the state machine's position. Values are ordered: within one
// attempt the phase only moves forward, so a later status never carries a
// smaller phase unless the attempt failed.
type Phase int

const (
	PhaseBuildingApplication Phase = iota + 1
	PhaseLitAuthentication
	PhaseSigningApplication
	PhaseUploadingMetadata
	PhaseCreateProject
	PhaseSendingTx
	PhaseIndexing
	PhaseSent

	// PhaseError is terminal for the attempt; Status.FailingPhase records
	// where the submission was when it failed.
	PhaseError
)

var phaseNames = map[Phase]string{
	PhaseBuildingApplication: "BuildingApplication",
	PhaseLitAuthentication:   "LitAuthentication",
	PhaseSigningApplication:  "SigningApplication",
	PhaseUploadingMetadata:   "UploadingMetadata",
	PhaseCreateProject:       "CreateProject",
	PhaseSendingTx:           "SendingTx",
	PhaseIndexing:            "Indexing",
	PhaseSent:                "Sent",
	PhaseError:               "Error",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// MarshalJSON emits the phase name, not its ordinal.
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// Status is the submission's externally visible state for one round.
type Status struct {
	Phase Phase `json:"phase"`

	// FailingPhase is only meaningful while Phase is PhaseError.
	FailingPhase Phase                    `json:"failingPhase,omitempty"`
	Error        *stderrors.StandardError `json:"error,omitempty"`

	MetadataCid string    `json:"metadataCid,omitempty"`
	TxHash      string    `json:"txHash,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
