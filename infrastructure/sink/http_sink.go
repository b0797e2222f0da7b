package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"webpilot-go/domain/artifact"
)

// HTTPSinkConfig contains configuration for the HTTP sink.
type HTTPSinkConfig struct {
	BaseURL        string
	Timeout        time.Duration
	HealthInterval time.Duration
	HealthTimeout  time.Duration
}

// DefaultHTTPSinkConfig returns default HTTP sink configuration.
func DefaultHTTPSinkConfig() *HTTPSinkConfig {
	return &HTTPSinkConfig{
		BaseURL:        "http://localhost:8000",
		Timeout:        30 * time.Second,
		HealthInterval: 5 * time.Second,
		HealthTimeout:  3 * time.Second,
	}
}

// HTTPSink uploads artifacts to a remote collection service. A background
// loop polls the service health endpoint; uploads are rejected locally
// while the service is down instead of piling up timeouts.
type HTTPSink struct {
	config       *HTTPSinkConfig
	httpClient   *http.Client
	healthy      atomic.Bool
	healthCtx    context.Context
	healthCancel context.CancelFunc
	healthWg     sync.WaitGroup
}

// NewHTTPSink creates a new HTTP artifact sink and starts its health loop.
func NewHTTPSink(config *HTTPSinkConfig) *HTTPSink {
	if config == nil {
		config = DefaultHTTPSinkConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &HTTPSink{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		healthCtx:    ctx,
		healthCancel: cancel,
	}

	s.performHealthCheck()

	s.healthWg.Add(1)
	go s.healthCheckLoop()

	return s
}

// Store uploads one artifact.
func (s *HTTPSink) Store(ctx context.Context, a *artifact.Artifact) error {
	if !s.IsHealthy() {
		return fmt.Errorf("artifact service is currently unavailable")
	}

	params := url.Values{}
	params.Add("session_id", a.SessionID)
	params.Add("page_id", a.PageID)
	params.Add("label", a.Label)
	params.Add("format", a.Format)
	params.Add("url", a.URL)
	requestURL := fmt.Sprintf("%s/v1/artifacts?%s", s.config.BaseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(a.Data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// IsHealthy returns true if the artifact service is available.
func (s *HTTPSink) IsHealthy() bool {
	return s.healthy.Load()
}

// Close stops the health loop.
func (s *HTTPSink) Close() {
	if s.healthCancel != nil {
		s.healthCancel()
	}
	s.healthWg.Wait()
}

func (s *HTTPSink) healthCheckLoop() {
	defer s.healthWg.Done()

	ticker := time.NewTicker(s.config.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.healthCtx.Done():
			return
		case <-ticker.C:
			s.performHealthCheck()
		}
	}
}

func (s *HTTPSink) performHealthCheck() {
	ctx, cancel := context.WithTimeout(s.healthCtx, s.config.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.BaseURL+"/health", nil)
	if err != nil {
		s.healthy.Store(false)
		return
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.healthy.Store(false)
		return
	}
	defer resp.Body.Close()

	s.healthy.Store(resp.StatusCode == http.StatusOK)
}

var _ artifact.Sink = (*HTTPSink)(nil)
