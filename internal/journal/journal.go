// internal/journal/journal.go

// Package journal keeps a durable postgres record of every submission
// attempt, successful or not, for support and reconciliation.
package journal

import (
	"context"
	"database/sql"

	stderrors "github.com/gitcoinco/grants-stack-sub000/internal/common/errors"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/logger"
	"github.com/gitcoinco/grants-stack-sub000/internal/submission"
)

const createTableStmt = `
CREATE TABLE IF NOT EXISTS submission_attempts (
	id            TEXT PRIMARY KEY,
	round_id      TEXT NOT NULL,
	project_id    TEXT NOT NULL,
	phase         TEXT NOT NULL,
	error_code    TEXT NOT NULL DEFAULT '',
	metadata_cid  TEXT NOT NULL DEFAULT '',
	tx_hash       TEXT NOT NULL DEFAULT '',
	finished_at   TIMESTAMPTZ NOT NULL
)`

const insertAttemptStmt = `
INSERT INTO submission_attempts
	(id, round_id, project_id, phase, error_code, metadata_cid, tx_hash, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const selectByRoundStmt = `
SELECT id, round_id, project_id, phase, error_code, metadata_cid, tx_hash, finished_at
FROM submission_attempts
WHERE round_id = $1
ORDER BY finished_at DESC`

// Journal writes submission attempts to postgres.
type Journal struct {
	db     *sql.DB
	logger logger.Logger
}

func New(db *sql.DB, log logger.Logger) *Journal {
	return &Journal{db: db, logger: log}
}

// Init creates the attempts table when it doesn't exist yet.
func (j *Journal) Init(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, createTableStmt); err != nil {
		return stderrors.NewJournalWriteFailedError(err)
	}
	return nil
}

// RecordAttempt persists one finished attempt.
func (j *Journal) RecordAttempt(ctx context.Context, attempt submission.Attempt) error {
	_, err := j.db.ExecContext(ctx, insertAttemptStmt,
		attempt.ID,
		attempt.RoundID,
		attempt.ProjectID,
		attempt.Phase,
		attempt.ErrorCode,
		attempt.MetadataCid,
		attempt.TxHash,
		attempt.FinishedAt,
	)
	if err != nil {
		return stderrors.NewJournalWriteFailedError(err)
	}
	return nil
}

// AttemptsForRound returns the round's attempts, newest first.
func (j *Journal) AttemptsForRound(ctx context.Context, roundID string) ([]submission.Attempt, error) {
	rows, err := j.db.QueryContext(ctx, selectByRoundStmt, roundID)
	if err != nil {
		return nil, stderrors.NewJournalWriteFailedError(err)
	}
	defer rows.Close()

	var attempts []submission.Attempt
	for rows.Next() {
		var a submission.Attempt
		if err := rows.Scan(&a.ID, &a.RoundID, &a.ProjectID, &a.Phase, &a.ErrorCode, &a.MetadataCid, &a.TxHash, &a.FinishedAt); err != nil {
			return nil, stderrors.NewJournalWriteFailedError(err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewJournalWriteFailedError(err)
	}
	return attempts, nil
}
