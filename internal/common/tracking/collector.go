// internal/common/tracking/collector.go

// Package tracking reports failures to an external error-tracking collector.
// Every submission failure is reported both here and to the structured
// logger so that operational dashboards and ad-hoc debugging see the same
// events.
package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gitcoinco/grants-stack-sub000/internal/common/errors"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/httpx"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/logger"
)

// Collector delivers error events to an external tracking service.
type Collector interface {
	CaptureError(ctx context.Context, err error, tags map[string]string)
}

// event is the wire shape posted to the collector.
type event struct {
	Message   string            `json:"message"`
	Code      string            `json:"code,omitempty"`
	Details   string            `json:"details,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// HTTPCollector posts events to a collector endpoint.
type HTTPCollector struct {
	url    string
	apiKey string
	client *httpx.Client
	logger logger.Logger
}

func NewHTTPCollector(url, apiKey string, timeout time.Duration, log logger.Logger) *HTTPCollector {
	return &HTTPCollector{
		url:    url,
		apiKey: apiKey,
		client: httpx.NewClient(timeout),
		logger: log,
	}
}

func (c *HTTPCollector) CaptureError(ctx context.Context, err error, tags map[string]string) {
	stdErr := errors.Normalize(err)

	ev := event{
		Message:   stdErr.Message,
		Code:      string(stdErr.Code),
		Details:   stdErr.Details,
		Tags:      tags,
		Timestamp: time.Now().UTC(),
	}

	body, marshalErr := json.Marshal(ev)
	if marshalErr != nil {
		return
	}

	req, reqErr := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(body))
	if reqErr != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, doErr := c.client.DoWithContext(ctx, req)
	if doErr != nil {
		// Tracking is best effort; a dead collector must never break a
		// submission.
		c.logger.Warn("error event delivery failed", map[string]interface{}{
			"error": doErr.Error(),
		})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		c.logger.Warn("collector rejected error event", map[string]interface{}{
			"status": resp.StatusCode,
		})
	}
}

// NopCollector discards events; used in tests and when tracking is disabled.
type NopCollector struct{}

func (NopCollector) CaptureError(context.Context, error, map[string]string) {}

// Reporter fans a failure out to the collector and the structured logger.
type Reporter struct {
	collector Collector
	logger    logger.Logger
}

func NewReporter(collector Collector, log logger.Logger) *Reporter {
	if collector == nil {
		collector = NopCollector{}
	}
	return &Reporter{collector: collector, logger: log}
}

// Report normalizes err, logs it with classification fields, and forwards it
// to the collector with the same tags.
func (r *Reporter) Report(ctx context.Context, err error, tags map[string]string) {
	stdErr := errors.Normalize(err)

	fields := map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"retries":       errors.GetRetryCount(stdErr.Code),
		"errorCategory": errors.GetErrorCategory(stdErr.Code),
	}
	for k, v := range tags {
		fields[k] = v
	}
	r.logger.Error(stdErr.Message, fields)

	r.collector.CaptureError(ctx, stdErr, tags)
}
