// Package sidecar implements transcription.Loader on top of an HTTP inference
// sidecar that hosts faster-whisper and stable-whisper models.
//
// Protocol:
//
//	POST /v1/models          {"engine","model"}                -> {"id"}
//	POST /v1/transcriptions  {"model_id","engine","model","args"}
//	    text/event-stream    event: segment | error | done     -> Streamed
//	    application/json     {"segments":[...]}                -> Materialized
//	GET  /health
package sidecar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/whisperjob/httpclient"
	"github.com/kbukum/whisperjob/logger"
	"github.com/kbukum/whisperjob/resilience"
	"github.com/kbukum/whisperjob/transcription"
	"github.com/kbukum/whisperjob/version"
)

const (
	pathModels         = "/v1/models"
	pathTranscriptions = "/v1/transcriptions"
	pathHealth         = "/health"
)

// URLResolver rewrites audio urls before they are sent to the sidecar.
type URLResolver interface {
	Resolve(ctx context.Context, raw string) (string, error)
}

// Option configures a Loader.
type Option func(*Loader)

// WithURLResolver rewrites the "url" argument, e.g. to presign s3:// urls.
func WithURLResolver(r URLResolver) Option {
	return func(l *Loader) { l.resolver = r }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// Loader loads models on the sidecar.
type Loader struct {
	client   *httpclient.Client
	resolver URLResolver
	retry    resilience.RetryConfig
	probe    time.Duration
	log      *logger.Logger
}

var _ transcription.Loader = (*Loader)(nil)

// NewLoader creates a sidecar-backed loader.
func NewLoader(cfg Config, opts ...Option) (*Loader, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := httpclient.New(httpclient.Config{
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.LoadTimeout,
		BearerToken: cfg.APIKey,
		UserAgent:   "whisperjob/" + version.Short(),
	})
	if err != nil {
		return nil, err
	}
	l := &Loader{client: client, probe: cfg.Timeout, log: logger.Get("sidecar")}
	// A sidecar that is still starting refuses connections or answers 503.
	// Timeouts are not retried: a model download may legitimately take the
	// whole load timeout.
	l.retry = resilience.DefaultRetryConfig()
	l.retry.MaxAttempts = cfg.LoadAttempts
	l.retry.InitialBackoff = time.Second
	l.retry.RetryIf = func(err error) bool {
		return httpclient.IsRetryable(err) && !httpclient.IsTimeout(err)
	}
	l.retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		l.log.Warn("Sidecar load failed, retrying", logger.MergeWithError(logger.Fields(
			"attempt", attempt, "backoff", backoff.String()), err))
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

type loadRequest struct {
	Engine string `json:"engine"`
	Model  string `json:"model"`
}

type loadResponse struct {
	ID string `json:"id"`
}

// Load asks the sidecar to load (engine, model) and returns a handle to it.
// Models are fetched from the network when not present locally.
func (l *Loader) Load(ctx context.Context, engine, model string) (transcription.Model, error) {
	resp, err := resilience.Retry(ctx, l.retry, func() (*httpclient.Response, error) {
		return l.client.Do(ctx, httpclient.Request{
			Method: http.MethodPost,
			Path:   pathModels,
			Body:   loadRequest{Engine: engine, Model: model},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("sidecar: load %s/%s: %w", engine, model, err)
	}

	var out loadResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("sidecar: decode load response: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("sidecar: load %s/%s: empty model id", engine, model)
	}

	l.log.Debug("Sidecar model ready", logger.Fields(
		logger.FieldEngine, engine, logger.FieldModel, model, "model_id", out.ID))
	return &Model{id: out.ID, engine: engine, name: model, loader: l}, nil
}

// Ping checks that the sidecar is reachable within the probe timeout.
func (l *Loader) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.probe)
	defer cancel()
	_, err := l.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: pathHealth})
	return err
}
