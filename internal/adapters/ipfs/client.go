// internal/adapters/ipfs/client.go

// Package ipfs pins application metadata to a pinning service and fetches
// pinned documents back through a gateway.
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gitcoinco/grants-stack-sub000/internal/common/config"
	stderrors "github.com/gitcoinco/grants-stack-sub000/internal/common/errors"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/httpx"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/logger"
)

// Pinner stores a JSON document and returns its content identifier.
type Pinner interface {
	PinJSON(ctx context.Context, name string, content interface{}) (string, error)
	FetchJSON(ctx context.Context, cid string, out interface{}) error
}

// Client is a pinning-service Pinner using JWT auth, with gateway reads.
type Client struct {
	pinningURL string
	gatewayURL string
	jwt        string
	httpClient *httpx.Client
	logger     logger.Logger
}

func NewClient(cfg config.IpfsConfig, log logger.Logger) *Client {
	return &Client{
		pinningURL: cfg.PinningURL,
		gatewayURL: cfg.GatewayURL,
		jwt:        cfg.JWT,
		httpClient: httpx.NewClient(time.Duration(cfg.Timeout) * time.Millisecond),
		logger:     log,
	}
}

type pinRequest struct {
	PinataContent  interface{} `json:"pinataContent"`
	PinataMetadata pinMetadata `json:"pinataMetadata"`
}

type pinMetadata struct {
	Name string `json:"name"`
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// PinJSON pins content under name and returns the resulting CID.
func (c *Client) PinJSON(ctx context.Context, name string, content interface{}) (string, error) {
	body, err := json.Marshal(pinRequest{
		PinataContent:  content,
		PinataMetadata: pinMetadata{Name: name},
	})
	if err != nil {
		return "", stderrors.NewMetadataUploadFailedError(err)
	}

	req, err := http.NewRequest(http.MethodPost, c.pinningURL+"/pinning/pinJSONToIPFS", bytes.NewReader(body))
	if err != nil {
		return "", stderrors.NewMetadataUploadFailedError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	resp, err := c.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return "", stderrors.NewMetadataUploadFailedError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", stderrors.NewMetadataUploadFailedError(err)
	}
	if resp.StatusCode >= 400 {
		return "", stderrors.NewMetadataUploadFailedError(
			fmt.Errorf("pinning service returned %d: %s", resp.StatusCode, string(raw)))
	}

	var pin pinResponse
	if err := json.Unmarshal(raw, &pin); err != nil {
		return "", stderrors.NewMetadataUploadFailedError(err)
	}
	if pin.IpfsHash == "" {
		return "", stderrors.NewMetadataUploadFailedError(fmt.Errorf("empty CID in pin response"))
	}

	c.logger.Info("pinned metadata", map[string]interface{}{
		"name": name,
		"cid":  pin.IpfsHash,
	})
	return pin.IpfsHash, nil
}

// FetchJSON reads a pinned document from the gateway into out.
func (c *Client) FetchJSON(ctx context.Context, cid string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.gatewayURL+"/ipfs/"+cid, nil)
	if err != nil {
		return stderrors.NewMetadataFetchFailedError(cid, err)
	}

	resp, err := c.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return stderrors.NewMetadataFetchFailedError(cid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return stderrors.NewMetadataFetchFailedError(cid,
			fmt.Errorf("gateway returned %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return stderrors.NewMetadataFetchFailedError(cid, err)
	}
	return nil
}
