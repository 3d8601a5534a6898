// internal/submission/store.go
package submission

import (
	"sync"
	"time"

	stderrors "github.com/gitcoinco/grants-stack-sub000/internal/common/errors"
)

// StatusStore keeps the live status of each round's submission and enforces
// one in-flight submission per round.
type StatusStore struct {
	mu       sync.RWMutex
	statuses map[string]Status
	inFlight map[string]bool
}

func NewStatusStore() *StatusStore {
	return &StatusStore{
		statuses: make(map[string]Status),
		inFlight: make(map[string]bool),
	}
}

// Begin claims the round for a new submission. A second submission for the
// same round while one is running is rejected; the status of a finished or
// failed submission does not block a retry.
func (s *StatusStore) Begin(roundID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight[roundID] {
		return stderrors.NewSubmissionInFlightError(roundID)
	}
	s.inFlight[roundID] = true
	s.statuses[roundID] = Status{
		Phase:     PhaseBuildingApplication,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

// InFlight reports whether a submission currently holds the round.
func (s *StatusStore) InFlight(roundID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inFlight[roundID]
}

// End releases the round's in-flight claim.
func (s *StatusStore) End(roundID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, roundID)
}

// Get returns the round's status and whether a submission was ever started.
func (s *StatusStore) Get(roundID string) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[roundID]
	return status, ok
}

// SetPhase advances the round to phase, keeping accumulated progress fields.
func (s *StatusStore) SetPhase(roundID string, phase Phase) {
	s.update(roundID, func(st *Status) {
		st.Phase = phase
		st.FailingPhase = 0
		st.Error = nil
	})
}

// SetMetadataCid records the pinned application metadata CID.
func (s *StatusStore) SetMetadataCid(roundID, cid string) {
	s.update(roundID, func(st *Status) { st.MetadataCid = cid })
}

// SetTxHash records the apply transaction hash.
func (s *StatusStore) SetTxHash(roundID, txHash string) {
	s.update(roundID, func(st *Status) { st.TxHash = txHash })
}

// Fail moves the round to the error state, remembering which phase failed.
func (s *StatusStore) Fail(roundID string, failingPhase Phase, err error) {
	s.update(roundID, func(st *Status) {
		st.Phase = PhaseError
		st.FailingPhase = failingPhase
		st.Error = stderrors.Normalize(err)
	})
}

// ResetError rewinds an errored submission to its failing phase so it can be
// retried from there. No-op unless the round is in the error state.
func (s *StatusStore) ResetError(roundID string) {
	s.update(roundID, func(st *Status) {
		if st.Phase != PhaseError {
			return
		}
		st.Phase = st.FailingPhase
		st.FailingPhase = 0
		st.Error = nil
	})
}

// Reset discards the round's status entirely.
func (s *StatusStore) Reset(roundID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.statuses, roundID)
}

func (s *StatusStore) update(roundID string, fn func(*Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := s.statuses[roundID]
	fn(&status)
	status.UpdatedAt = time.Now().UTC()
	s.statuses[roundID] = status
}
