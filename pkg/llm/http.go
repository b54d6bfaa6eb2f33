package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/codeready-toolchain/concierge/pkg/metrics"
	"github.com/codeready-toolchain/concierge/pkg/version"
)

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	// URL is the full endpoint, e.g. http://generator:8000/v1/generate.
	URL string
	// Timeout bounds one Generate call including retries.
	Timeout time.Duration
	// MaxRetries bounds retries after the first attempt.
	MaxRetries int
	// InitialInterval is the first backoff delay.
	InitialInterval time.Duration
}

// HTTPGenerator POSTs JSON requests to the generative backend.
type HTTPGenerator struct {
	cfg     HTTPConfig
	client  *http.Client
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewHTTPGenerator creates an HTTP generator. m may be nil.
func NewHTTPGenerator(cfg HTTPConfig, m *metrics.Metrics) *HTTPGenerator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 200 * time.Millisecond
	}
	return &HTTPGenerator{
		cfg:     cfg,
		client:  &http.Client{},
		metrics: m,
		log:     slog.With("component", "llm-http"),
	}
}

type httpReply struct {
	Content  string       `json:"content"`
	Metadata wireMetadata `json:"metadata"`
}

// statusError is a non-2xx backend response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("generative backend returned %d: %s", e.code, e.body)
}

// Generate implements Generator. Transport errors and 5xx responses are
// retried with exponential backoff; other failures are returned at once.
func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (*Reply, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode generate request: %w", err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = g.cfg.InitialInterval
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(g.cfg.MaxRetries)), ctx)

	var out httpReply
	attempt := 0
	op := func() error {
		attempt++
		reply, err := g.post(ctx, payload)
		if err != nil {
			g.log.Warn("Generate attempt failed",
				"conversation_id", req.ConversationID, "attempt", attempt, "error", err)
			return err
		}
		out = *reply
		return nil
	}
	err = backoff.Retry(op, policy)
	if err == nil {
		var reply *Reply
		reply, err = newReply(strings.TrimSpace(out.Content), out.Metadata)
		g.metrics.ObserveBackend("http", err, time.Since(start))
		return reply, err
	}
	g.metrics.ObserveBackend("http", err, time.Since(start))
	return nil, err
}

func (g *HTTPGenerator) post(ctx context.Context, payload []byte) (*httpReply, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build generate request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", version.Full())

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call generative backend: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read generate response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return nil, &statusError{code: resp.StatusCode, body: string(body)}
	}
	if resp.StatusCode >= 300 {
		return nil, backoff.Permanent(&statusError{code: resp.StatusCode, body: string(body)})
	}

	var reply httpReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode generate response: %w", err))
	}
	return &reply, nil
}
