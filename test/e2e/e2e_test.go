// test/e2e/e2e_test.go

// End-to-end test of the submission pipeline: real indexer, pinning, and
// encryption adapters against local HTTP stubs, a stubbed transaction
// broadcaster, and the real builder, signer, state machine, and journal.
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/gitcoinco/grants-stack-sub000/internal/adapters/indexer"
	"github.com/gitcoinco/grants-stack-sub000/internal/adapters/ipfs"
	"github.com/gitcoinco/grants-stack-sub000/internal/adapters/lit"
	"github.com/gitcoinco/grants-stack-sub000/internal/adapters/wallet"
	"github.com/gitcoinco/grants-stack-sub000/internal/builder"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/config"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/database"
	stderrors "github.com/gitcoinco/grants-stack-sub000/internal/common/errors"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/logger"
	"github.com/gitcoinco/grants-stack-sub000/internal/journal"
	"github.com/gitcoinco/grants-stack-sub000/internal/submission"
	"github.com/gitcoinco/grants-stack-sub000/pkg/schema"
)

// Hardhat account #0; never holds real funds.
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

const (
	roundSchemaCid = "QmRoundSchema"
	projectMetaCid = "QmProjectMeta"
	applicationCid = "QmBuiltApplication"
)

// stubBroadcaster replaces the RPC-backed chain client; everything else in
// the pipeline is real.
type stubBroadcaster struct {
	applyCalls      int
	createCalls     int
	receiptWaits    int
	appliedProject  string
	appliedStrategy string
}

func (b *stubBroadcaster) ApplyToRound(ctx context.Context, roundAddress, projectID, strategy string, metaPtr schema.MetaPtr) (string, error) {
	b.applyCalls++
	b.appliedProject = projectID
	b.appliedStrategy = strategy
	return "0xApplyTx", nil
}

func (b *stubBroadcaster) CreateProject(ctx context.Context, registryAddress string, metaPtr schema.MetaPtr) (string, error) {
	b.createCalls++
	return "0xCreateTx", nil
}

func (b *stubBroadcaster) WaitForReceipt(ctx context.Context, txHash string) error {
	b.receiptWaits++
	return nil
}

// ==========================
// Service Stubs
// ==========================

type services struct {
	indexerSrv *httptest.Server
	ipfsSrv    *httptest.Server
	litSrv     *httptest.Server

	hasApplied bool
	pinCount   int
}

func startServices(tb testing.TB) *services {
	tb.Helper()
	s := &services{}

	s.indexerSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(tb, err)
		query := gjson.GetBytes(body, "query").String()
		vars := gjson.GetBytes(body, "variables")

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(query, "round(id:"):
			fmt.Fprintf(w, `{"data":{"round":{
				"id":%q,
				"applicationMetaPtr":{"protocol":"1","pointer":%q},
				"payoutStrategy":{"id":"0xPayout"},
				"applicationsStartTime":0,
				"applicationsEndTime":4102444800}}}`,
				vars.Get("id").String(), roundSchemaCid)
		case strings.Contains(query, "projectAnchors"):
			fmt.Fprint(w, `{"data":{"projectAnchors":[{"id":"0xAnchor"}]}}`)
		case strings.Contains(query, "project(id:"):
			fmt.Fprintf(w, `{"data":{"project":{
				"id":%q,
				"metaPtr":{"protocol":"1","pointer":%q}}}}`,
				vars.Get("id").String(), projectMetaCid)
		case vars.Get("projectId").Exists():
			if s.hasApplied {
				fmt.Fprint(w, `{"data":{"roundApplications":[{"id":"app-0"}]}}`)
			} else {
				fmt.Fprint(w, `{"data":{"roundApplications":[]}}`)
			}
		default:
			// Indexing-wait poll; the application is visible immediately.
			fmt.Fprint(w, `{"data":{"roundApplications":[{"id":"app-1","status":"PENDING"}]}}`)
		}
	}))
	tb.Cleanup(s.indexerSrv.Close)

	mux := http.NewServeMux()
	mux.HandleFunc("/pinning/pinJSONToIPFS", func(w http.ResponseWriter, r *http.Request) {
		s.pinCount++
		json.NewEncoder(w).Encode(map[string]string{"IpfsHash": applicationCid})
	})
	mux.HandleFunc("/ipfs/"+roundSchemaCid, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(roundMetadata())
	})
	mux.HandleFunc("/ipfs/"+projectMetaCid, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(schema.Project{
			ID:      "0xProject",
			Title:   "Test Project",
			Website: "https://project.example",
			MetaPtr: schema.MetaPtr{Protocol: "1", Pointer: projectMetaCid},
		})
	})
	s.ipfsSrv = httptest.NewServer(mux)
	tb.Cleanup(s.ipfsSrv.Close)

	litMux := http.NewServeMux()
	litMux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"sessionSig": "0xSessionSig"})
	})
	litMux.HandleFunc("/encrypt", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"ciphertext":            "0xCipher",
			"encryptedSymmetricKey": "0xSymKey",
		})
	})
	s.litSrv = httptest.NewServer(litMux)
	tb.Cleanup(s.litSrv.Close)

	return s
}

func roundMetadata() *schema.RoundApplicationMetadata {
	return &schema.RoundApplicationMetadata{
		Version: "2.0.0",
		ApplicationSchema: schema.ApplicationSchema{
			Questions: []schema.Question{
				{ID: 0, Type: schema.QuestionProject},
				{ID: 1, Type: schema.QuestionRecipient, Required: true},
				{ID: 2, Type: schema.QuestionEmail, Title: "Contact email", Required: true, Encrypted: true},
				{ID: 3, Type: schema.QuestionParagraph, Title: "Pitch", Required: true},
			},
		},
	}
}

func answers() schema.Answers {
	return schema.Answers{
		"2": "grants@example.com",
		"3": "We build grant tooling.",
	}
}

// ==========================
// Pipeline Assembly
// ==========================

type pipeline struct {
	submitter *submission.Submitter
	statuses  *submission.StatusStore
	chain     *stubBroadcaster
	sqlMock   sqlmock.Sqlmock
}

func buildPipeline(t *testing.T, svc *services) *pipeline {
	t.Helper()
	log := logger.NewTestLogger(t)

	pinner := ipfs.NewClient(config.IpfsConfig{
		PinningURL: svc.ipfsSrv.URL,
		GatewayURL: svc.ipfsSrv.URL,
		JWT:        "test-jwt",
		Timeout:    2000,
	}, log)

	idx := indexer.NewClient(config.IndexerConfig{
		URL:         svc.indexerSrv.URL,
		Timeout:     2000,
		SyncTimeout: 5000,
		PollEvery:   20,
	}, log)

	encrypter := lit.NewClient(config.EncryptionConfig{
		URL:         svc.litSrv.URL,
		AuthTimeout: 2000,
		Timeout:     2000,
	}, "testnet", "0xRound", log)

	signer, err := wallet.NewLocalSigner(testPrivateKey, 31337)
	require.NoError(t, err)

	// Cold redis mock: every cache access misses, which exercises the
	// fall-through paths of the round cache and the applied store.
	redisDB, _ := redismock.NewClientMock()
	redisClient := &database.RedisClient{Client: redisDB}

	sqlDB, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	broadcaster := &stubBroadcaster{}
	statuses := submission.NewStatusStore()

	sub := submission.NewSubmitter(submission.Deps{
		Rounds:           submission.NewRoundCache(idx, pinner, redisClient, time.Hour, log),
		Projects:         idx,
		Pinner:           pinner,
		Chain:            broadcaster,
		Builder:          builder.New(encrypter, log),
		Encrypter:        encrypter,
		Signer:           signer,
		Statuses:         statuses,
		Applied:          submission.NewAppliedStore(redisClient, time.Hour, log),
		Journal:          journal.New(sqlDB, log),
		Logger:           log,
		RegistryAddress:  "0xRegistry",
		MetadataProtocol: "1",
	})

	return &pipeline{
		submitter: sub,
		statuses:  statuses,
		chain:     broadcaster,
		sqlMock:   sqlMock,
	}
}

// ==========================
// End-to-End Tests
// ==========================

func TestSubmitApplication(t *testing.T) {
	svc := startServices(t)
	p := buildPipeline(t, svc)

	p.sqlMock.ExpectExec("INSERT INTO submission_attempts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	status, err := p.submitter.Submit(context.Background(), submission.Request{
		RoundID:   "0xRound",
		ProjectID: "0xProject",
		Answers:   answers(),
	})
	require.NoError(t, err)

	assert.Equal(t, submission.PhaseSent, status.Phase)
	assert.Equal(t, applicationCid, status.MetadataCid)
	assert.Equal(t, "0xApplyTx", status.TxHash)

	assert.Equal(t, 1, p.chain.applyCalls)
	assert.Zero(t, p.chain.createCalls)
	assert.Equal(t, 1, p.chain.receiptWaits)
	assert.Equal(t, "0xPayout", p.chain.appliedStrategy)
	assert.Equal(t, 1, svc.pinCount)

	assert.NoError(t, p.sqlMock.ExpectationsWereMet())

	steps := submission.StepStates(submission.EncryptedApplyFlow, status)
	for _, step := range steps {
		assert.Equal(t, submission.StepCompleted, step.State, step.Phase.String())
	}
}

func TestSubmitApplication_NewProject(t *testing.T) {
	svc := startServices(t)
	p := buildPipeline(t, svc)

	p.sqlMock.ExpectExec("INSERT INTO submission_attempts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	status, err := p.submitter.Submit(context.Background(), submission.Request{
		RoundID: "0xRound",
		Answers: answers(),
		NewProject: &schema.Project{
			ID:    "0xNewProject",
			Title: "Fresh Project",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, submission.PhaseSent, status.Phase)
	assert.Equal(t, 1, p.chain.createCalls)
	assert.Equal(t, 1, p.chain.applyCalls)
	assert.Equal(t, 2, p.chain.receiptWaits)
	// Project metadata pin plus application pin.
	assert.Equal(t, 2, svc.pinCount)

	// The apply transaction references the anchor the indexer resolved after
	// project creation.
	assert.Equal(t, "0xAnchor", p.chain.appliedProject)
}

func TestSubmitApplication_Duplicate(t *testing.T) {
	svc := startServices(t)
	svc.hasApplied = true
	p := buildPipeline(t, svc)

	p.sqlMock.ExpectExec("INSERT INTO submission_attempts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	status, err := p.submitter.Submit(context.Background(), submission.Request{
		RoundID:   "0xRound",
		ProjectID: "0xProject",
		Answers:   answers(),
	})
	require.Error(t, err)

	stdErr := stderrors.Normalize(err)
	assert.Equal(t, stderrors.ErrCodeDuplicateApplication, stdErr.Code)
	assert.Equal(t, submission.PhaseError, status.Phase)
	assert.Equal(t, submission.PhaseBuildingApplication, status.FailingPhase)
	assert.Zero(t, p.chain.applyCalls)
}

func TestSubmitApplication_ValidationFailure(t *testing.T) {
	svc := startServices(t)
	p := buildPipeline(t, svc)

	p.sqlMock.ExpectExec("INSERT INTO submission_attempts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	bad := answers()
	delete(bad, "3")

	status, err := p.submitter.Submit(context.Background(), submission.Request{
		RoundID:   "0xRound",
		ProjectID: "0xProject",
		Answers:   bad,
	})
	require.Error(t, err)

	stdErr := stderrors.Normalize(err)
	assert.Equal(t, stderrors.ErrCodeAnswerValidationFailed, stdErr.Code)
	assert.Equal(t, submission.PhaseError, status.Phase)
	assert.Zero(t, svc.pinCount)
}

// ==========================
// Benchmarks
// ==========================

func BenchmarkSubmitApplication(b *testing.B) {
	svc := startServices(b)
	log := logger.NewNoOpLogger()

	pinner := ipfs.NewClient(config.IpfsConfig{
		PinningURL: svc.ipfsSrv.URL,
		GatewayURL: svc.ipfsSrv.URL,
		JWT:        "test-jwt",
		Timeout:    2000,
	}, log)
	idx := indexer.NewClient(config.IndexerConfig{
		URL:         svc.indexerSrv.URL,
		Timeout:     2000,
		SyncTimeout: 5000,
		PollEvery:   20,
	}, log)
	signer, err := wallet.NewLocalSigner(testPrivateKey, 31337)
	require.NoError(b, err)
	redisDB, _ := redismock.NewClientMock()
	redisClient := &database.RedisClient{Client: redisDB}

	sub := submission.NewSubmitter(submission.Deps{
		Rounds:           submission.NewRoundCache(idx, pinner, redisClient, time.Hour, log),
		Projects:         idx,
		Pinner:           pinner,
		Chain:            &stubBroadcaster{},
		Builder:          builder.New(lit.NopEncrypter{}, log),
		Signer:           signer,
		Statuses:         submission.NewStatusStore(),
		Logger:           log,
		RegistryAddress:  "0xRegistry",
		MetadataProtocol: "1",
	})

	req := submission.Request{
		RoundID:   "0xRound",
		ProjectID: "0xProject",
		Answers:   answers(),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sub.Submit(context.Background(), req)
	}
}
