// internal/submission/submitter.go
package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gitcoinco/grants-stack-sub000/internal/adapters/chain"
	"github.com/gitcoinco/grants-stack-sub000/internal/adapters/indexer"
	"github.com/gitcoinco/grants-stack-sub000/internal/adapters/ipfs"
	"github.com/gitcoinco/grants-stack-sub000/internal/adapters/lit"
	"github.com/gitcoinco/grants-stack-sub000/internal/adapters/wallet"
	"github.com/gitcoinco/grants-stack-sub000/internal/builder"
	stderrors "github.com/gitcoinco/grants-stack-sub000/internal/common/errors"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/logger"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/metrics"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/tracking"
	"github.com/gitcoinco/grants-stack-sub000/pkg/schema"
)

// RoundLoader resolves a round and its application form schema.
type RoundLoader interface {
	Get(ctx context.Context, roundID string) (*indexer.RoundRecord, *schema.RoundApplicationMetadata, error)
}

// ProjectSource is the indexer surface the submitter needs.
type ProjectSource interface {
	GetProjectPointer(ctx context.Context, projectID string) (schema.MetaPtr, error)
	GetProjectAnchor(ctx context.Context, projectID string, chainID int64) (string, error)
	HasApplied(ctx context.Context, roundID, projectID string) (bool, error)
	WaitForApplication(ctx context.Context, roundID, metadataCid, txHash string) error
}

// Attempt is the journal record of one submission attempt.
type Attempt struct {
	ID          string
	RoundID     string
	ProjectID   string
	Phase       string
	ErrorCode   string
	MetadataCid string
	TxHash      string
	FinishedAt  time.Time
}

// AttemptJournal persists finished attempts.
type AttemptJournal interface {
	RecordAttempt(ctx context.Context, attempt Attempt) error
}

// Notifier announces terminal states. Both calls are best effort.
type Notifier interface {
	SubmissionSent(ctx context.Context, roundID, projectID, txHash string)
	SubmissionFailed(ctx context.Context, roundID, projectID string, err error)
}

// Request is one application to submit.
type Request struct {
	RoundID   string
	ProjectID string
	Answers   schema.Answers

	// NewProject, when set, is a project that must be anchored on the
	// round's chain before applying. ProjectID is assigned from the created
	// anchor in that case.
	NewProject *schema.Project
}

// Deps are the submitter's collaborators. Rounds, Projects, Pinner, Chain,
// Builder, Signer, Statuses and Logger are required; the rest may be nil.
type Deps struct {
	Rounds    RoundLoader
	Projects  ProjectSource
	Pinner    ipfs.Pinner
	Chain     chain.Broadcaster
	Builder   *builder.Builder
	Encrypter lit.Encrypter
	Signer    wallet.Signer
	Statuses  *StatusStore
	Applied   *AppliedStore
	Journal   AttemptJournal
	Notifier  Notifier
	Reporter  *tracking.Reporter
	Logger    logger.Logger

	// RegistryAddress is the project registry contract used by the
	// CreateProject phase.
	RegistryAddress string

	// MetadataProtocol is recorded on chain alongside pinned CIDs.
	MetadataProtocol string
}

// Submitter runs the submission state machine.
type Submitter struct {
	deps Deps
}

func NewSubmitter(deps Deps) *Submitter {
	if deps.Encrypter == nil {
		deps.Encrypter = lit.NopEncrypter{}
	}
	if deps.Reporter == nil {
		deps.Reporter = tracking.NewReporter(nil, deps.Logger)
	}
	if deps.MetadataProtocol == "" {
		deps.MetadataProtocol = "1"
	}
	return &Submitter{deps: deps}
}

// Status returns the round's submission status and its step list.
func (s *Submitter) Status(roundID string, flow Flow) (Status, []StepStatus, bool) {
	status, ok := s.deps.Statuses.Get(roundID)
	if !ok {
		return Status{}, nil, false
	}
	return status, StepStates(flow, status), true
}

// Submit runs one submission attempt for the round. A second call for the
// same round while an attempt is running fails fast; a finished or failed
// attempt does not block a retry.
func (s *Submitter) Submit(ctx context.Context, req Request) (Status, error) {
	if err := s.deps.Statuses.Begin(req.RoundID); err != nil {
		return Status{}, err
	}
	defer s.deps.Statuses.End(req.RoundID)

	metrics.SubmissionsInFlight.Inc()
	defer metrics.SubmissionsInFlight.Dec()

	attemptID := uuid.NewString()
	started := time.Now()

	err := s.run(ctx, attemptID, req)

	outcome := "sent"
	if err != nil {
		outcome = "error"
	}
	metrics.SubmissionDuration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())

	status, _ := s.deps.Statuses.Get(req.RoundID)
	return status, err
}

func (s *Submitter) run(ctx context.Context, attemptID string, req Request) error {
	d := s.deps

	// BuildingApplication: load the round, validate the form, check for an
	// earlier application.
	s.advance(req.RoundID, PhaseBuildingApplication)

	record, metadata, err := d.Rounds.Get(ctx, req.RoundID)
	if err != nil {
		return s.fail(ctx, attemptID, req, PhaseBuildingApplication, err)
	}

	if validationErrs, err := schema.ValidateAnswers(metadata, req.Answers); err != nil {
		return s.fail(ctx, attemptID, req, PhaseBuildingApplication, err)
	} else if len(validationErrs) > 0 {
		details, _ := json.Marshal(validationErrs)
		return s.fail(ctx, attemptID, req, PhaseBuildingApplication,
			stderrors.NewAnswerValidationFailedError(string(details)))
	}

	project, needsProject, err := s.resolveProject(ctx, req)
	if err != nil {
		return s.fail(ctx, attemptID, req, PhaseBuildingApplication, err)
	}

	if err := s.checkDuplicate(ctx, req.RoundID, project.ID); err != nil {
		return s.fail(ctx, attemptID, req, PhaseBuildingApplication, err)
	}

	// LitAuthentication covers the encryption handshake and the builder call
	// as a whole; any failure in either lands here. The handshake itself only
	// runs for rounds with answered encrypted questions.
	s.advance(req.RoundID, PhaseLitAuthentication)
	if builder.HasEncryptedAnswers(metadata, req.Answers) {
		if err := d.Encrypter.Connect(ctx); err != nil {
			return s.fail(ctx, attemptID, req, PhaseLitAuthentication, err)
		}
	}

	app, err := d.Builder.Build(ctx, builder.Input{
		RoundID:  req.RoundID,
		Metadata: metadata,
		Project:  project,
		Answers:  req.Answers,
	})
	if err != nil {
		return s.fail(ctx, attemptID, req, PhaseLitAuthentication, err)
	}

	// SigningApplication: hash the canonical payload and sign it.
	s.advance(req.RoundID, PhaseSigningApplication)
	signed, err := builder.Sign(ctx, d.Signer, app)
	if err != nil {
		return s.fail(ctx, attemptID, req, PhaseSigningApplication, err)
	}

	projectID := project.ID
	if needsProject {
		if err := s.createProject(ctx, attemptID, req, project); err != nil {
			return err
		}

		// The anchor is the project's canonical identity on the round's
		// chain; the apply transaction must reference it, not the id the
		// caller supplied.
		anchor, err := d.Projects.GetProjectAnchor(ctx, project.ID, d.Signer.ChainID())
		if err != nil {
			return s.fail(ctx, attemptID, req, PhaseSigningApplication, err)
		}
		projectID = anchor
	}

	return s.apply(ctx, attemptID, req, record, signed, projectID)
}

// resolveProject loads the project record, or passes through the new project
// a create-project submission carries.
func (s *Submitter) resolveProject(ctx context.Context, req Request) (*schema.Project, bool, error) {
	if req.NewProject != nil {
		return req.NewProject, true, nil
	}

	ptr, err := s.deps.Projects.GetProjectPointer(ctx, req.ProjectID)
	if err != nil {
		return nil, false, err
	}

	var project schema.Project
	if err := s.deps.Pinner.FetchJSON(ctx, ptr.Pointer, &project); err != nil {
		return nil, false, err
	}
	if project.ID == "" {
		project.ID = req.ProjectID
	}
	return &project, false, nil
}

func (s *Submitter) checkDuplicate(ctx context.Context, roundID, projectID string) error {
	if s.deps.Applied != nil {
		applied, err := s.deps.Applied.HasApplied(ctx, roundID, projectID)
		if err != nil {
			s.deps.Logger.Warn("applied store unavailable", map[string]interface{}{
				"round": roundID,
				"error": err.Error(),
			})
		} else if applied {
			return stderrors.NewDuplicateApplicationError(roundID, projectID)
		}
	}

	applied, err := s.deps.Projects.HasApplied(ctx, roundID, projectID)
	if err != nil {
		return err
	}
	if applied {
		return stderrors.NewDuplicateApplicationError(roundID, projectID)
	}
	return nil
}

// createProject anchors the project on the round's chain before applying.
func (s *Submitter) createProject(ctx context.Context, attemptID string, req Request, project *schema.Project) error {
	s.advance(req.RoundID, PhaseUploadingMetadata)

	op := chain.NewCreateProjectOperation(s.deps.Chain, s.deps.Pinner, chain.CreateProjectParams{
		RegistryAddress:  s.deps.RegistryAddress,
		Metadata:         project,
		PinName:          fmt.Sprintf("project-%s", attemptID),
		MetadataProtocol: s.deps.MetadataProtocol,
	})

	for result := range op.Execute(ctx) {
		if result.Err != nil {
			return s.fail(ctx, attemptID, req, createProjectFailPhase(result.Checkpoint), result.Err)
		}
		if result.Checkpoint == chain.CheckpointIPFS {
			s.advance(req.RoundID, PhaseCreateProject)
		}
	}
	return nil
}

// apply runs the checkpointed apply operation and advances phases as the
// checkpoints land.
func (s *Submitter) apply(ctx context.Context, attemptID string, req Request, record *indexer.RoundRecord, signed *schema.SignedRoundApplication, projectID string) error {
	// The create-project path has already moved past the upload phase.
	if status, ok := s.deps.Statuses.Get(req.RoundID); !ok || status.Phase < PhaseUploadingMetadata {
		s.advance(req.RoundID, PhaseUploadingMetadata)
	}

	op := chain.NewApplyOperation(s.deps.Chain, s.deps.Pinner, chain.ApplyParams{
		RoundAddress:     record.ID,
		ProjectID:        projectID,
		Strategy:         record.PayoutStrategy,
		Application:      signed,
		PinName:          fmt.Sprintf("application-%s", attemptID),
		MetadataProtocol: s.deps.MetadataProtocol,
		WaitForIndexing: func(ctx context.Context, metadataCid, txHash string) error {
			return s.deps.Projects.WaitForApplication(ctx, req.RoundID, metadataCid, txHash)
		},
	})

	var metadataCid, txHash string
	for result := range op.Execute(ctx) {
		if result.Err != nil {
			return s.fail(ctx, attemptID, req, applyFailPhase(result.Checkpoint), result.Err)
		}

		switch result.Checkpoint {
		case chain.CheckpointIPFS:
			metadataCid, _ = result.Value.(string)
			s.deps.Statuses.SetMetadataCid(req.RoundID, metadataCid)
			s.advance(req.RoundID, PhaseSendingTx)
		case chain.CheckpointTransaction:
			txHash, _ = result.Value.(string)
			s.deps.Statuses.SetTxHash(req.RoundID, txHash)
		case chain.CheckpointTransactionStatus:
			s.advance(req.RoundID, PhaseIndexing)
		}
	}

	return s.finish(ctx, attemptID, req, projectID, metadataCid, txHash)
}

func (s *Submitter) finish(ctx context.Context, attemptID string, req Request, projectID, metadataCid, txHash string) error {
	d := s.deps

	s.advance(req.RoundID, PhaseSent)
	metrics.SubmissionsCompleted.WithLabelValues(fmt.Sprintf("%d", d.Signer.ChainID())).Inc()

	if d.Applied != nil {
		if err := d.Applied.MarkApplied(ctx, req.RoundID, projectID, txHash); err != nil {
			d.Logger.Warn("applied store write failed", map[string]interface{}{
				"round": req.RoundID,
				"error": err.Error(),
			})
		}
	}

	s.journal(ctx, Attempt{
		ID:          attemptID,
		RoundID:     req.RoundID,
		ProjectID:   projectID,
		Phase:       PhaseSent.String(),
		MetadataCid: metadataCid,
		TxHash:      txHash,
		FinishedAt:  time.Now().UTC(),
	})

	if d.Notifier != nil {
		d.Notifier.SubmissionSent(ctx, req.RoundID, projectID, txHash)
	}

	d.Logger.Info("application submitted", map[string]interface{}{
		"round":       req.RoundID,
		"project":     projectID,
		"txHash":      txHash,
		"metadataCid": metadataCid,
	})
	return nil
}

// fail records the failing phase, reports the error to the tracker and the
// logger, journals the attempt, and returns the normalized error.
func (s *Submitter) fail(ctx context.Context, attemptID string, req Request, phase Phase, err error) error {
	d := s.deps
	stdErr := stderrors.Normalize(err)

	d.Statuses.Fail(req.RoundID, phase, stdErr)
	metrics.SubmissionsFailed.WithLabelValues(phase.String(), string(stdErr.Code)).Inc()

	d.Reporter.Report(ctx, stdErr, map[string]string{
		"round":   req.RoundID,
		"project": req.ProjectID,
		"phase":   phase.String(),
	})

	status, _ := d.Statuses.Get(req.RoundID)
	s.journal(ctx, Attempt{
		ID:          attemptID,
		RoundID:     req.RoundID,
		ProjectID:   req.ProjectID,
		Phase:       phase.String(),
		ErrorCode:   string(stdErr.Code),
		MetadataCid: status.MetadataCid,
		TxHash:      status.TxHash,
		FinishedAt:  time.Now().UTC(),
	})

	if d.Notifier != nil {
		d.Notifier.SubmissionFailed(ctx, req.RoundID, req.ProjectID, stdErr)
	}
	return stdErr
}

func (s *Submitter) advance(roundID string, phase Phase) {
	s.deps.Statuses.SetPhase(roundID, phase)
	metrics.SubmissionPhases.WithLabelValues(phase.String()).Inc()
}

func (s *Submitter) journal(ctx context.Context, attempt Attempt) {
	if s.deps.Journal == nil {
		return
	}
	if err := s.deps.Journal.RecordAttempt(ctx, attempt); err != nil {
		s.deps.Logger.Warn("journal write failed", map[string]interface{}{
			"attempt": attempt.ID,
			"error":   err.Error(),
		})
	}
}

func applyFailPhase(cp chain.Checkpoint) Phase {
	switch cp {
	case chain.CheckpointIPFS:
		return PhaseUploadingMetadata
	case chain.CheckpointTransaction, chain.CheckpointTransactionStatus:
		return PhaseSendingTx
	case chain.CheckpointIndexingStatus:
		return PhaseIndexing
	}
	return PhaseError
}

// createProjectFailPhase keeps the historical status copy: a failed
// transaction during project creation has always been surfaced under the
// signing step, and downstream consumers key off that label.
func createProjectFailPhase(cp chain.Checkpoint) Phase {
	switch cp {
	case chain.CheckpointIPFS:
		return PhaseUploadingMetadata
	case chain.CheckpointTransaction:
		return PhaseSigningApplication
	}
	return PhaseCreateProject
}
