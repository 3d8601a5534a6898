// internal/adapters/lit/lit.go

// Package lit encrypts individual form answers through a threshold
// encryption service. The service requires an interactive authentication
// handshake before the first encryption of a session, so the client connects
// lazily and exactly once.
package lit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gitcoinco/grants-stack-sub000/internal/common/config"
	stderrors "github.com/gitcoinco/grants-stack-sub000/internal/common/errors"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/httpx"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/logger"
	"github.com/gitcoinco/grants-stack-sub000/pkg/schema"
)

// Encrypter turns one plaintext answer into its ciphertext form. Connect is
// the authentication handshake; it may block on user interaction and is
// reported as its own failing phase when it errors.
type Encrypter interface {
	Connect(ctx context.Context) error
	Encrypt(ctx context.Context, plaintext string) (*schema.EncryptedAnswer, error)
}

// Client talks to the encryption service over HTTP.
type Client struct {
	baseURL     string
	chainName   string
	contract    string
	authTimeout time.Duration
	httpClient  *httpx.Client
	logger      logger.Logger

	connectOnce sync.Once
	connectErr  error
	sessionSig  string
}

// NewClient builds an encryption client scoped to one chain and round
// contract; the access-control condition pins decryption to round operators
// of that contract.
func NewClient(cfg config.EncryptionConfig, chainName, roundContract string, log logger.Logger) *Client {
	return &Client{
		baseURL:     cfg.URL,
		chainName:   chainName,
		contract:    roundContract,
		authTimeout: time.Duration(cfg.AuthTimeout) * time.Millisecond,
		httpClient:  httpx.NewClient(time.Duration(cfg.Timeout) * time.Millisecond),
		logger:      log,
	}
}

type authRequest struct {
	Chain string `json:"chain"`
}

type authResponse struct {
	SessionSig string `json:"sessionSig"`
}

type encryptRequest struct {
	Chain      string `json:"chain"`
	Contract   string `json:"contract"`
	SessionSig string `json:"sessionSig"`
	Plaintext  string `json:"plaintext"`
}

type encryptResponse struct {
	Ciphertext            string `json:"ciphertext"`
	EncryptedSymmetricKey string `json:"encryptedSymmetricKey"`
}

// Connect performs the authentication handshake. Safe to call from multiple
// goroutines; only the first call does work, later calls return its result.
func (c *Client) Connect(ctx context.Context) error {
	c.connectOnce.Do(func() {
		authCtx, cancel := context.WithTimeout(ctx, c.authTimeout)
		defer cancel()

		c.logger.Info("authenticating with encryption service", map[string]interface{}{
			"chain": c.chainName,
		})

		resp, err := c.post(authCtx, "/auth", authRequest{Chain: c.chainName})
		if err != nil {
			c.connectErr = stderrors.NewEncryptionAuthFailedError(err)
			return
		}

		var auth authResponse
		if err := json.Unmarshal(resp, &auth); err != nil {
			c.connectErr = stderrors.NewEncryptionAuthFailedError(err)
			return
		}
		if auth.SessionSig == "" {
			c.connectErr = stderrors.NewEncryptionAuthFailedError(
				fmt.Errorf("empty session signature"))
			return
		}

		c.sessionSig = auth.SessionSig
	})
	return c.connectErr
}

// Encrypt ciphers one answer under the round's access-control condition.
// Connect must have succeeded first.
func (c *Client) Encrypt(ctx context.Context, plaintext string) (*schema.EncryptedAnswer, error) {
	if c.sessionSig == "" {
		return nil, stderrors.NewEncryptionAuthFailedError(
			fmt.Errorf("encrypt called before connect"))
	}

	resp, err := c.post(ctx, "/encrypt", encryptRequest{
		Chain:      c.chainName,
		Contract:   c.contract,
		SessionSig: c.sessionSig,
		Plaintext:  plaintext,
	})
	if err != nil {
		return nil, stderrors.NewEncryptionFailedError(err)
	}

	var enc encryptResponse
	if err := json.Unmarshal(resp, &enc); err != nil {
		return nil, stderrors.NewEncryptionFailedError(err)
	}
	if enc.Ciphertext == "" || enc.EncryptedSymmetricKey == "" {
		return nil, stderrors.NewEncryptionFailedError(
			fmt.Errorf("incomplete encryption response"))
	}

	return &schema.EncryptedAnswer{
		Ciphertext:            enc.Ciphertext,
		EncryptedSymmetricKey: enc.EncryptedSymmetricKey,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw := new(bytes.Buffer)
	if _, err := raw.ReadFrom(resp.Body); err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("encryption service returned %d: %s", resp.StatusCode, raw.String())
	}
	return raw.Bytes(), nil
}
