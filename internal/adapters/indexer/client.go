// internal/adapters/indexer/client.go

// Package indexer queries the external chain indexer for round and project
// records and polls it until a submitted application becomes visible.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/gitcoinco/grants-stack-sub000/internal/common/config"
	stderrors "github.com/gitcoinco/grants-stack-sub000/internal/common/errors"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/httpx"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/logger"
	"github.com/gitcoinco/grants-stack-sub000/pkg/schema"
)

// RoundRecord is the slice of indexer round state the submitter needs.
type RoundRecord struct {
	ID                    string
	ApplicationMetaPtr    schema.MetaPtr
	PayoutStrategy        string
	ApplicationsStartTime int64
	ApplicationsEndTime   int64
}

// Client queries the indexer's GraphQL endpoint.
type Client struct {
	url         string
	syncTimeout time.Duration
	pollEvery   time.Duration
	httpClient  *httpx.Client
	logger      logger.Logger
}

func NewClient(cfg config.IndexerConfig, log logger.Logger) *Client {
	return &Client{
		url:         cfg.URL,
		syncTimeout: time.Duration(cfg.SyncTimeout) * time.Millisecond,
		pollEvery:   time.Duration(cfg.PollEvery) * time.Millisecond,
		httpClient:  httpx.NewClient(time.Duration(cfg.Timeout) * time.Millisecond),
		logger:      log,
	}
}

const roundQuery = `query ($id: String!) {
  round(id: $id) {
    id
    applicationMetaPtr { protocol pointer }
    payoutStrategy { id }
    applicationsStartTime
    applicationsEndTime
  }
}`

// GetRound loads the round record, including the pointer to its application
// form schema.
func (c *Client) GetRound(ctx context.Context, roundID string) (*RoundRecord, error) {
	body, err := c.query(ctx, roundQuery, map[string]interface{}{"id": roundID})
	if err != nil {
		return nil, stderrors.NewIndexerQueryFailedError("round", err)
	}

	round := gjson.GetBytes(body, "data.round")
	if !round.Exists() || round.Type == gjson.Null {
		return nil, stderrors.NewRoundNotFoundError(roundID)
	}

	ptr := round.Get("applicationMetaPtr")
	if !ptr.Exists() || ptr.Get("pointer").String() == "" {
		return nil, stderrors.NewRoundMetadataMissingError(roundID)
	}

	return &RoundRecord{
		ID: round.Get("id").String(),
		ApplicationMetaPtr: schema.MetaPtr{
			Protocol: ptr.Get("protocol").String(),
			Pointer:  ptr.Get("pointer").String(),
		},
		PayoutStrategy:        round.Get("payoutStrategy.id").String(),
		ApplicationsStartTime: round.Get("applicationsStartTime").Int(),
		ApplicationsEndTime:   round.Get("applicationsEndTime").Int(),
	}, nil
}

const projectQuery = `query ($id: String!) {
  project(id: $id) {
    id
    metaPtr { protocol pointer }
  }
}`

// GetProjectPointer resolves a project id to its metadata pointer. The full
// project record lives in metadata storage, not in the indexer.
func (c *Client) GetProjectPointer(ctx context.Context, projectID string) (schema.MetaPtr, error) {
	body, err := c.query(ctx, projectQuery, map[string]interface{}{"id": projectID})
	if err != nil {
		return schema.MetaPtr{}, stderrors.NewIndexerQueryFailedError("project", err)
	}

	project := gjson.GetBytes(body, "data.project")
	if !project.Exists() || project.Type == gjson.Null {
		return schema.MetaPtr{}, stderrors.NewProjectMetadataMissingError(projectID)
	}

	ptr := project.Get("metaPtr")
	if ptr.Get("pointer").String() == "" {
		return schema.MetaPtr{}, stderrors.NewProjectMetadataMissingError(projectID)
	}

	return schema.MetaPtr{
		Protocol: ptr.Get("protocol").String(),
		Pointer:  ptr.Get("pointer").String(),
	}, nil
}

const anchorQuery = `query ($projectId: String!, $chainId: Int!) {
  projectAnchors(where: {project: $projectId, chainId: $chainId}) {
    id
  }
}`

// GetProjectAnchor resolves the project's canonical on-chain identifier on
// the given chain. A project replicated from another chain gets an anchor
// only once the indexer has observed its registry transaction.
func (c *Client) GetProjectAnchor(ctx context.Context, projectID string, chainID int64) (string, error) {
	body, err := c.query(ctx, anchorQuery, map[string]interface{}{
		"projectId": projectID,
		"chainId":   chainID,
	})
	if err != nil {
		return "", stderrors.NewIndexerQueryFailedError("projectAnchors", err)
	}

	anchors := gjson.GetBytes(body, "data.projectAnchors")
	if !anchors.IsArray() || len(anchors.Array()) == 0 {
		return "", stderrors.NewAnchorResolutionFailedError(projectID)
	}
	return anchors.Array()[0].Get("id").String(), nil
}

const applicationQuery = `query ($roundId: String!, $metadataCid: String!) {
  roundApplications(where: {round: $roundId, metaPtr_: {pointer: $metadataCid}}) {
    id
    status
  }
}`

// IsApplicationIndexed reports whether the indexer has picked up the
// application whose metadata lives at metadataCid.
func (c *Client) IsApplicationIndexed(ctx context.Context, roundID, metadataCid string) (bool, error) {
	body, err := c.query(ctx, applicationQuery, map[string]interface{}{
		"roundId":     roundID,
		"metadataCid": metadataCid,
	})
	if err != nil {
		return false, stderrors.NewIndexerQueryFailedError("roundApplications", err)
	}

	apps := gjson.GetBytes(body, "data.roundApplications")
	return apps.IsArray() && len(apps.Array()) > 0, nil
}

// WaitForApplication polls until the application is indexed or the sync
// timeout elapses. Query errors during polling are logged and retried; only
// the timeout ends the wait.
func (c *Client) WaitForApplication(ctx context.Context, roundID, metadataCid, txHash string) error {
	waitCtx, cancel := context.WithTimeout(ctx, c.syncTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()

	for {
		indexed, err := c.IsApplicationIndexed(waitCtx, roundID, metadataCid)
		if err != nil {
			c.logger.Warn("indexer poll failed", map[string]interface{}{
				"round": roundID,
				"error": err.Error(),
			})
		}
		if indexed {
			return nil
		}

		select {
		case <-waitCtx.Done():
			return stderrors.NewIndexingTimeoutError(txHash)
		case <-ticker.C:
		}
	}
}

const appliedQuery = `query ($roundId: String!, $projectId: String!) {
  roundApplications(where: {round: $roundId, project: $projectId}) {
    id
  }
}`

// HasApplied reports whether the project already has an application in the
// round.
func (c *Client) HasApplied(ctx context.Context, roundID, projectID string) (bool, error) {
	body, err := c.query(ctx, appliedQuery, map[string]interface{}{
		"roundId":   roundID,
		"projectId": projectID,
	})
	if err != nil {
		return false, stderrors.NewIndexerQueryFailedError("roundApplications", err)
	}

	apps := gjson.GetBytes(body, "data.roundApplications")
	return apps.IsArray() && len(apps.Array()) > 0, nil
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

func (c *Client) query(ctx context.Context, query string, variables map[string]interface{}) ([]byte, error) {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("indexer returned %d: %s", resp.StatusCode, string(body))
	}

	if errs := gjson.GetBytes(body, "errors"); errs.Exists() && len(errs.Array()) > 0 {
		return nil, fmt.Errorf("indexer query error: %s", errs.Array()[0].Get("message").String())
	}
	return body, nil
}
