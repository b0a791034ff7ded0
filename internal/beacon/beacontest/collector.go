package beacontest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

// Request is one request received by a Collector.
type Request struct {
	Method      string
	Path        string
	ContentType string
	Body        map[string]any
}

// Collector is an httptest endpoint that records every envelope posted to it.
type Collector struct {
	*httptest.Server

	mu       sync.Mutex
	requests []Request
	status   int
}

// NewCollector starts a collector answering every request with status.
func NewCollector(status int) *Collector {
	c := &Collector{status: status}
	c.Server = httptest.NewServer(http.HandlerFunc(c.handle))
	return c
}

func (c *Collector) handle(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	c.mu.Lock()
	c.requests = append(c.requests, Request{
		Method:      r.Method,
		Path:        r.URL.Path,
		ContentType: r.Header.Get("Content-Type"),
		Body:        body,
	})
	c.mu.Unlock()

	w.WriteHeader(c.status)
}

// Requests returns a copy of everything received so far.
func (c *Collector) Requests() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Request(nil), c.requests...)
}

// ByType returns the bodies of received envelopes of the given type.
func (c *Collector) ByType(eventType string) []map[string]any {
	var bodies []map[string]any
	for _, r := range c.Requests() {
		if r.Body["type"] == eventType {
			bodies = append(bodies, r.Body)
		}
	}
	return bodies
}
