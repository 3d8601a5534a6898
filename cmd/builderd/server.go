// cmd/builderd/server.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gitcoinco/grants-stack-sub000/internal/adapters/lit"
	"github.com/gitcoinco/grants-stack-sub000/internal/builder"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/config"
	stderrors "github.com/gitcoinco/grants-stack-sub000/internal/common/errors"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/logger"
	"github.com/gitcoinco/grants-stack-sub000/internal/journal"
	"github.com/gitcoinco/grants-stack-sub000/internal/submission"
	"github.com/gitcoinco/grants-stack-sub000/pkg/schema"
)

// server exposes the submission pipeline over HTTP. One submitter is built
// per apply request because the threshold-encryption client is scoped to the
// round contract it encrypts for.
type server struct {
	cfg      *config.Config
	deps     submission.Deps
	statuses *submission.StatusStore
	journal  *journal.Journal
	logger   logger.Logger
}

type applyRequest struct {
	RoundID    string          `json:"roundId"`
	ProjectID  string          `json:"projectId"`
	Answers    schema.Answers  `json:"answers"`
	NewProject *schema.Project `json:"newProject,omitempty"`
}

type applyResponse struct {
	RoundID string           `json:"roundId"`
	Phase   submission.Phase `json:"phase"`
}

type statusResponse struct {
	RoundID string                  `json:"roundId"`
	Status  submission.Status       `json:"status"`
	Steps   []submission.StepStatus `json:"steps"`
}

type errorResponse struct {
	Error *stderrors.StandardError `json:"error"`
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/applications", s.handleApply)
	mux.HandleFunc("GET /v1/rounds/{roundId}/status", s.handleStatus)
	mux.HandleFunc("GET /v1/rounds/{roundId}/attempts", s.handleAttempts)
	mux.HandleFunc("POST /v1/rounds/{roundId}/reset-error", s.handleResetError)
	mux.HandleFunc("POST /v1/rounds/{roundId}/reset", s.handleReset)
	return mux
}

func (s *server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest,
			stderrors.NewAnswerValidationFailedError("request body is not valid JSON"))
		return
	}
	if req.RoundID == "" {
		writeError(w, http.StatusBadRequest,
			stderrors.NewAnswerValidationFailedError("roundId is required"))
		return
	}
	if req.ProjectID == "" && req.NewProject == nil {
		writeError(w, http.StatusBadRequest,
			stderrors.NewAnswerValidationFailedError("projectId or newProject is required"))
		return
	}
	if s.statuses.InFlight(req.RoundID) {
		writeError(w, http.StatusConflict, stderrors.NewSubmissionInFlightError(req.RoundID))
		return
	}

	sub := s.submitterFor(req.RoundID)
	timeout := time.Duration(s.cfg.Submission.PhaseTimeout*int(submission.PhaseSent)) * time.Millisecond

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		_, err := sub.Submit(ctx, submission.Request{
			RoundID:    req.RoundID,
			ProjectID:  req.ProjectID,
			Answers:    req.Answers,
			NewProject: req.NewProject,
		})
		if err != nil {
			s.logger.Warn("submission attempt failed", map[string]interface{}{
				"round": req.RoundID,
				"error": err.Error(),
			})
		}
	}()

	writeJSON(w, http.StatusAccepted, applyResponse{
		RoundID: req.RoundID,
		Phase:   submission.PhaseBuildingApplication,
	})
}

// submitterFor clones the shared dependencies with an encrypter bound to the
// round contract.
func (s *server) submitterFor(roundID string) *submission.Submitter {
	deps := s.deps
	enc := lit.Encrypter(lit.NopEncrypter{})
	if s.cfg.Encryption.URL != "" {
		enc = lit.NewClient(s.cfg.Encryption, s.cfg.Chain.ChainName, roundID, s.logger)
	}
	deps.Encrypter = enc
	deps.Builder = builder.New(enc, s.logger)
	return submission.NewSubmitter(deps)
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	roundID := r.PathValue("roundId")

	flow, ok := parseFlow(r.URL.Query().Get("flow"))
	if !ok {
		writeError(w, http.StatusBadRequest,
			stderrors.NewAnswerValidationFailedError("unknown flow"))
		return
	}

	status, found := s.statuses.Get(roundID)
	if !found {
		writeError(w, http.StatusNotFound, stderrors.NewRoundNotFoundError(roundID))
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		RoundID: roundID,
		Status:  status,
		Steps:   submission.StepStates(flow, status),
	})
}

func (s *server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	roundID := r.PathValue("roundId")

	attempts, err := s.journal.AttemptsForRound(r.Context(), roundID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, stderrors.Normalize(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"roundId":  roundID,
		"attempts": attempts,
	})
}

func (s *server) handleResetError(w http.ResponseWriter, r *http.Request) {
	roundID := r.PathValue("roundId")
	s.statuses.ResetError(roundID)

	status, found := s.statuses.Get(roundID)
	if !found {
		writeError(w, http.StatusNotFound, stderrors.NewRoundNotFoundError(roundID))
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{RoundID: roundID, Status: status})
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	roundID := r.PathValue("roundId")
	if s.statuses.InFlight(roundID) {
		writeError(w, http.StatusConflict, stderrors.NewSubmissionInFlightError(roundID))
		return
	}
	s.statuses.Reset(roundID)
	w.WriteHeader(http.StatusNoContent)
}

func parseFlow(name string) (submission.Flow, bool) {
	switch name {
	case "", "apply":
		return submission.ApplyFlow, true
	case "apply-encrypted":
		return submission.EncryptedApplyFlow, true
	case "create-project":
		return submission.CreateProjectFlow, true
	case "publish-project":
		return submission.PublishProjectFlow, true
	default:
		return nil, false
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err *stderrors.StandardError) {
	writeJSON(w, status, errorResponse{Error: err})
}
