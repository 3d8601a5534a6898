// internal/submission/steps.go
package submission

// StepState is the display state of one step in the progress list.
type StepState string

const (
	StepCompleted StepState = "completed"
	StepCurrent   StepState = "current"
	StepWaiting   StepState = "waiting"
	StepError     StepState = "error"
)

// StepStatus pairs a phase with its display state.
type StepStatus struct {
	Phase Phase     `json:"phase"`
	State StepState `json:"state"`
}

// Flow is the ordered phase list of one submission variant.
type Flow []Phase

// ApplyFlow covers a submission for an existing project without encrypted
// answers.
var ApplyFlow = Flow{
	PhaseBuildingApplication,
	PhaseSigningApplication,
	PhaseUploadingMetadata,
	PhaseSendingTx,
	PhaseIndexing,
}

// EncryptedApplyFlow adds the encryption authentication phase.
var EncryptedApplyFlow = Flow{
	PhaseBuildingApplication,
	PhaseLitAuthentication,
	PhaseSigningApplication,
	PhaseUploadingMetadata,
	PhaseSendingTx,
	PhaseIndexing,
}

// CreateProjectFlow covers submissions that must anchor the project on the
// round's chain before applying.
var CreateProjectFlow = Flow{
	PhaseBuildingApplication,
	PhaseSigningApplication,
	PhaseUploadingMetadata,
	PhaseCreateProject,
	PhaseSendingTx,
	PhaseIndexing,
}

// PublishProjectFlow is the step list shown while publishing a project's
// metadata on its own, outside any round.
var PublishProjectFlow = Flow{
	PhaseUploadingMetadata,
	PhaseSendingTx,
	PhaseIndexing,
}

// FlowFor picks the flow for a submission attempt.
func FlowFor(needsEncryption, needsProject bool) Flow {
	switch {
	case needsProject:
		return CreateProjectFlow
	case needsEncryption:
		return EncryptedApplyFlow
	default:
		return ApplyFlow
	}
}

// StepStates derives the per-step display states from a status. Pure: the
// same flow and status always yield the same list.
//
// Phases strictly below the effective current phase are completed and phases
// above it are waiting. A terminal PhaseSent marks every step completed. On
// error, the failing phase carries the error state and everything before it
// stays completed. Comparing ordinals rather than positions keeps a flow
// honest even while the machine sits in a phase that flow does not display.
func StepStates(flow Flow, status Status) []StepStatus {
	steps := make([]StepStatus, 0, len(flow))

	if status.Phase == PhaseSent {
		for _, p := range flow {
			steps = append(steps, StepStatus{Phase: p, State: StepCompleted})
		}
		return steps
	}

	marker := status.Phase
	failed := status.Phase == PhaseError
	if failed {
		marker = status.FailingPhase
	}

	for _, p := range flow {
		switch {
		case p == marker && failed:
			steps = append(steps, StepStatus{Phase: p, State: StepError})
		case p == marker:
			steps = append(steps, StepStatus{Phase: p, State: StepCurrent})
		case p < marker:
			steps = append(steps, StepStatus{Phase: p, State: StepCompleted})
		default:
			steps = append(steps, StepStatus{Phase: p, State: StepWaiting})
		}
	}
	return steps
}
