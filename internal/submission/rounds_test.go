// internal/submission/rounds_test.go
package submission

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitcoinco/grants-stack-sub000/internal/adapters/indexer"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/config"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/database"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/logger"
	"github.com/gitcoinco/grants-stack-sub000/pkg/schema"
)

func newRoundCacheHarness(t *testing.T, indexerCalls *int32) (*RoundCache, redismock.ClientMock) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(indexerCalls, 1)
		w.Write([]byte(`{
			"data": {
				"round": {
					"id": "0xRound",
					"applicationMetaPtr": {"protocol": "1", "pointer": "QmSchema"}
				}
			}
		}`))
	}))
	t.Cleanup(server.Close)

	idx := indexer.NewClient(config.IndexerConfig{
		URL:         server.URL,
		Timeout:     5000,
		SyncTimeout: 1000,
		PollEvery:   50,
	}, logger.NewTestLogger(t))

	pinner := &fakePinner{
		log: &phaseLog{store: NewStatusStore()},
		objects: map[string]interface{}{
			"QmSchema": submissionMetadata(),
		},
	}

	db, mock := redismock.NewClientMock()
	cache := NewRoundCache(idx, pinner, &database.RedisClient{Client: db}, time.Hour, logger.NewTestLogger(t))
	return cache, mock
}

// ==========================
// RoundCache Tests
// ==========================

func TestRoundCache_MissLoadsAndCaches(t *testing.T) {
	var indexerCalls int32
	cache, mock := newRoundCacheHarness(t, &indexerCalls)

	mock.ExpectGet("round:0xRound").RedisNil()
	mock.Regexp().ExpectSet("round:0xRound", `.*QmSchema.*`, time.Hour).SetVal("OK")

	record, metadata, err := cache.Get(context.Background(), "0xRound")
	require.NoError(t, err)

	assert.Equal(t, "0xRound", record.ID)
	assert.Equal(t, "QmSchema", record.ApplicationMetaPtr.Pointer)
	require.NotNil(t, metadata)
	assert.Len(t, metadata.ApplicationSchema.Questions, 4)
	assert.Equal(t, int32(1), atomic.LoadInt32(&indexerCalls))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoundCache_HitSkipsIndexer(t *testing.T) {
	var indexerCalls int32
	cache, mock := newRoundCacheHarness(t, &indexerCalls)

	cached, err := json.Marshal(cachedRound{
		Record: indexer.RoundRecord{
			ID:                 "0xRound",
			ApplicationMetaPtr: schema.MetaPtr{Protocol: "1", Pointer: "QmSchema"},
		},
		Metadata: submissionMetadata(),
	})
	require.NoError(t, err)

	mock.ExpectGet("round:0xRound").SetVal(string(cached))

	record, metadata, err := cache.Get(context.Background(), "0xRound")
	require.NoError(t, err)
	assert.Equal(t, "0xRound", record.ID)
	require.NotNil(t, metadata)
	assert.Equal(t, int32(0), atomic.LoadInt32(&indexerCalls))
}

func TestRoundCache_CorruptEntryFallsThrough(t *testing.T) {
	var indexerCalls int32
	cache, mock := newRoundCacheHarness(t, &indexerCalls)

	mock.ExpectGet("round:0xRound").SetVal("not json")
	mock.Regexp().ExpectSet("round:0xRound", `.*`, time.Hour).SetVal("OK")

	_, metadata, err := cache.Get(context.Background(), "0xRound")
	require.NoError(t, err)
	require.NotNil(t, metadata)
	assert.Equal(t, int32(1), atomic.LoadInt32(&indexerCalls))
}
