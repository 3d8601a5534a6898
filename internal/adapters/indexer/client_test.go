// internal/adapters/indexer/client_test.go
package indexer

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/gitcoinco/grants-stack-sub000/internal/common/config"
	stderrors "github.com/gitcoinco/grants-stack-sub000/internal/common/errors"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/logger"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.IndexerConfig{
		URL:         server.URL,
		Timeout:     5000,
		SyncTimeout: 200,
		PollEvery:   20,
	}, logger.NewTestLogger(t))
}

func graphqlResponse(data string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(data))
	}
}

// ==========================
// GetRound Tests
// ==========================

func TestGetRound_Success(t *testing.T) {
	client := newTestClient(t, graphqlResponse(`{
		"data": {
			"round": {
				"id": "0xRound",
				"applicationMetaPtr": {"protocol": "1", "pointer": "QmSchema"},
				"payoutStrategy": {"id": "0xPayout"},
				"applicationsStartTime": 100,
				"applicationsEndTime": 200
			}
		}
	}`))

	round, err := client.GetRound(context.Background(), "0xRound")
	require.NoError(t, err)
	assert.Equal(t, "0xRound", round.ID)
	assert.Equal(t, "QmSchema", round.ApplicationMetaPtr.Pointer)
	assert.Equal(t, "0xPayout", round.PayoutStrategy)
	assert.Equal(t, int64(100), round.ApplicationsStartTime)
	assert.Equal(t, int64(200), round.ApplicationsEndTime)
}

func TestGetRound_NotFound(t *testing.T) {
	client := newTestClient(t, graphqlResponse(`{"data": {"round": null}}`))

	_, err := client.GetRound(context.Background(), "0xMissing")
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeRoundNotFound, stderrors.Normalize(err).Code)
}

func TestGetRound_MissingMetadataPointer(t *testing.T) {
	client := newTestClient(t, graphqlResponse(`{
		"data": {"round": {"id": "0xRound", "applicationMetaPtr": {"protocol": "1", "pointer": ""}}}
	}`))

	_, err := client.GetRound(context.Background(), "0xRound")
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeRoundMetadataMissing, stderrors.Normalize(err).Code)
}

func TestGetRound_GraphQLError(t *testing.T) {
	client := newTestClient(t, graphqlResponse(`{"errors": [{"message": "boom"}]}`))

	_, err := client.GetRound(context.Background(), "0xRound")
	assert.Error(t, err)
}

// ==========================
// GetProjectPointer Tests
// ==========================

func TestGetProjectPointer(t *testing.T) {
	tests := []struct {
		name        string
		response    string
		expectError bool
		pointer     string
	}{
		{
			name:     "found",
			response: `{"data": {"project": {"id": "0x1", "metaPtr": {"protocol": "1", "pointer": "QmProj"}}}}`,
			pointer:  "QmProj",
		},
		{
			name:        "missing project",
			response:    `{"data": {"project": null}}`,
			expectError: true,
		},
		{
			name:        "empty pointer",
			response:    `{"data": {"project": {"id": "0x1", "metaPtr": {"protocol": "1", "pointer": ""}}}}`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, graphqlResponse(tt.response))

			ptr, err := client.GetProjectPointer(context.Background(), "0x1")
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.pointer, ptr.Pointer)
		})
	}
}

// ==========================
// GetProjectAnchor Tests
// ==========================

func TestGetProjectAnchor_Found(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "0x1", gjson.GetBytes(raw, "variables.projectId").String())
		assert.Equal(t, int64(10), gjson.GetBytes(raw, "variables.chainId").Int())

		w.Write([]byte(`{"data": {"projectAnchors": [{"id": "0xAnchor"}]}}`))
	}))

	anchor, err := client.GetProjectAnchor(context.Background(), "0x1", 10)
	require.NoError(t, err)
	assert.Equal(t, "0xAnchor", anchor)
}

func TestGetProjectAnchor_NotIndexedYet(t *testing.T) {
	client := newTestClient(t, graphqlResponse(`{"data": {"projectAnchors": []}}`))

	_, err := client.GetProjectAnchor(context.Background(), "0x1", 10)
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeAnchorResolutionFailed, stderrors.Normalize(err).Code)
}

// ==========================
// WaitForApplication Tests
// ==========================

func TestWaitForApplication_IndexedAfterPolls(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.Write([]byte(`{"data": {"roundApplications": []}}`))
			return
		}
		w.Write([]byte(`{"data": {"roundApplications": [{"id": "app-1", "status": "PENDING"}]}}`))
	}))

	err := client.WaitForApplication(context.Background(), "0xRound", "QmApp", "0xTx")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
}

func TestWaitForApplication_Timeout(t *testing.T) {
	client := newTestClient(t, graphqlResponse(`{"data": {"roundApplications": []}}`))

	err := client.WaitForApplication(context.Background(), "0xRound", "QmApp", "0xTx")
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeIndexingTimeout, stderrors.Normalize(err).Code)
}

// ==========================
// HasApplied Tests
// ==========================

func TestHasApplied(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		projectID := gjson.GetBytes(raw, "variables.projectId").String()
		if projectID == "0xApplied" {
			w.Write([]byte(`{"data": {"roundApplications": [{"id": "app-1"}]}}`))
			return
		}
		w.Write([]byte(`{"data": {"roundApplications": []}}`))
	}))

	applied, err := client.HasApplied(context.Background(), "0xRound", "0xApplied")
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = client.HasApplied(context.Background(), "0xRound", "0xFresh")
	require.NoError(t, err)
	assert.False(t, applied)
}
