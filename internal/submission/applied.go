// internal/submission/applied.go
package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gitcoinco/grants-stack-sub000/internal/common/database"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/logger"
)

// AppliedStore remembers which projects applied to which rounds, so the
// duplicate check survives restarts and doesn't depend on indexer lag.
type AppliedStore struct {
	redis  *database.RedisClient
	ttl    time.Duration
	logger logger.Logger
}

func NewAppliedStore(redisClient *database.RedisClient, ttl time.Duration, log logger.Logger) *AppliedStore {
	return &AppliedStore{redis: redisClient, ttl: ttl, logger: log}
}

func appliedKey(roundID, projectID string) string {
	return fmt.Sprintf("applied:%s:%s", roundID, projectID)
}

// MarkApplied records a completed application with the transaction hash as
// the value.
func (s *AppliedStore) MarkApplied(ctx context.Context, roundID, projectID, txHash string) error {
	if err := s.redis.Set(ctx, appliedKey(roundID, projectID), txHash, s.ttl); err != nil {
		return fmt.Errorf("mark applied: %w", err)
	}
	return nil
}

// HasApplied reports whether a completed application is on record.
func (s *AppliedStore) HasApplied(ctx context.Context, roundID, projectID string) (bool, error) {
	_, err := s.redis.Get(ctx, appliedKey(roundID, projectID))
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("applied lookup: %w", err)
	}
	return true, nil
}

// Clear drops the record, letting the project apply again after a round
// reset.
func (s *AppliedStore) Clear(ctx context.Context, roundID, projectID string) error {
	if err := s.redis.Del(ctx, appliedKey(roundID, projectID)); err != nil {
		return fmt.Errorf("clear applied: %w", err)
	}
	return nil
}
