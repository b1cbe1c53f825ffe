package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/equalcollective/xray/domain"
)

// Sender delivers a batch of serialized events to the ingestion boundary,
// best-effort, and reports success or failure.
type Sender interface {
	Send(ctx context.Context, events []domain.IngestEvent) error
}

// httpSender posts batches to the backend's /ingest endpoint.
type httpSender struct {
	baseURL string
	client  *http.Client
}

func newHTTPSender(baseURL string, timeout time.Duration) *httpSender {
	return &httpSender{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *httpSender) Send(ctx context.Context, events []domain.IngestEvent) error {
	body, err := json.Marshal(domain.IngestRequest{Events: events})
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/ingest", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ingest returned status %d", resp.StatusCode)
	}
	return nil
}
