package beacon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// timestampLayout matches JavaScript's Date.prototype.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z"

type settings struct {
	client *http.Client
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Reporter or a Tracker.
type Option func(*settings)

// WithHTTPClient sets the client used to post envelopes.
func WithHTTPClient(client *http.Client) Option {
	return func(s *settings) { s.client = client }
}

// WithLogger sets the diagnostic channel delivery failures are written to.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

func newSettings(opts []Option) settings {
	s := settings{
		client: http.DefaultClient,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.client == nil {
		s.client = http.DefaultClient
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Reporter posts event envelopes to the collection endpoint. Failures are
// logged and never returned.
type Reporter struct {
	endpoint string
	path     string
	client   *http.Client
	logger   *slog.Logger
	now      func() time.Time

	inflight sync.WaitGroup
}

// NewReporter returns a reporter posting to endpoint. path is stamped on
// every envelope.
func NewReporter(endpoint, path string, opts ...Option) *Reporter {
	s := newSettings(opts)
	return &Reporter{
		endpoint: endpoint,
		path:     path,
		client:   s.client,
		logger:   s.logger,
		now:      s.now,
	}
}

// Path returns the page path stamped on every envelope.
func (r *Reporter) Path() string {
	return r.path
}

// Report sends an envelope of the given type with extra merged over the base
// fields. The request runs in the background; the returned channel is closed
// once the attempt has settled, whatever its outcome.
func (r *Reporter) Report(eventType string, extra map[string]any) <-chan struct{} {
	done := make(chan struct{})

	body, err := r.encode(eventType, extra)
	if err != nil {
		r.fail(eventType, err)
		close(done)
		return done
	}

	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		defer close(done)
		if err := r.post(body); err != nil {
			r.fail(eventType, err)
		}
	}()
	return done
}

// Wait blocks until every report issued so far has settled.
func (r *Reporter) Wait() {
	r.inflight.Wait()
}

func (r *Reporter) encode(eventType string, extra map[string]any) (body []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("encode envelope: %v", p)
		}
	}()

	envelope := map[string]any{
		"type":      eventType,
		"path":      r.path,
		"timestamp": r.now().UTC().Format(timestampLayout),
	}
	for key, value := range extra {
		envelope[key] = value
	}

	body, err = json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return body, nil
}

func (r *Reporter) post(body []byte) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("send envelope: %v", p)
		}
	}()

	request, err := http.NewRequest(http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := r.client.Do(request)
	if err != nil {
		return fmt.Errorf("send envelope: %w", err)
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return response.Body.Close()
}

func (r *Reporter) fail(eventType string, err error) {
	r.logger.Error("analytics error", "type", eventType, "endpoint", r.endpoint, "error", err)
}
