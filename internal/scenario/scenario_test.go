package scenario

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentbai/pagebeacon/internal/beacon"
	"github.com/vincentbai/pagebeacon/internal/beacon/beacontest"
	"github.com/vincentbai/pagebeacon/internal/logging"
	"github.com/vincentbai/pagebeacon/internal/models"
)

const blogVisit = `
path: /blog/post-1
user_agent: Mozilla/5.0 (scenario)
document_height: 5000
viewport_height: 1000
elements:
  - tag: A
    id: cta
    class: btn primary
    href: https://example.com
    tracked: true
  - tag: a
    id: footer
    href: /about
steps:
  - scroll: 40
  - scroll: 25
  - scroll: 70
  - wait: 5s
  - unload: true
  - click: cta
`

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return nil
}

func TestDecodeValidScenario(t *testing.T) {
	s, err := Decode(strings.NewReader(blogVisit))
	require.NoError(t, err)

	assert.Equal(t, "/blog/post-1", s.Path)
	assert.Len(t, s.Elements, 2)
	assert.Len(t, s.Steps, 6)
	require.NotNil(t, s.Steps[0].Scroll)
	assert.Equal(t, 40.0, *s.Steps[0].Scroll)
}

func TestDecodeRejectsBadScenarios(t *testing.T) {
	tests := map[string]string{
		"relative path":   "path: blog\n",
		"unknown element": "path: /\nsteps:\n  - click: nope\n",
		"two actions":     "path: /\nsteps:\n  - scroll: 10\n    unload: true\n",
		"empty step":      "path: /\nsteps:\n  - {}\n",
		"bad wait":        "path: /\nsteps:\n  - wait: soon\n",
		"unknown key":     "path: /\ntitle: hi\n",
		"missing tag":     "path: /\nelements:\n  - id: x\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(body))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(blogVisit), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Mozilla/5.0 (scenario)", s.UserAgent)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRunReplaysVisit(t *testing.T) {
	collector := beacontest.NewCollector(http.StatusOK)
	defer collector.Close()

	s, err := Decode(strings.NewReader(blogVisit))
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)}
	runner := Runner{
		Endpoint: collector.URL + "/",
		Options:  []beacon.Option{beacon.WithClock(clock.Now), beacon.WithLogger(logging.Discard())},
		Sleep:    clock.Sleep,
	}

	result, err := runner.Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, 70, result.MaxScroll)
	assert.True(t, result.Unloaded)
	assert.Equal(t, []string{"https://example.com"}, result.Navigations)

	for _, r := range collector.Requests() {
		assert.Equal(t, models.TrackPath, r.Path)
		assert.Equal(t, "/blog/post-1", r.Body["path"])
	}

	durations := collector.ByType(models.TypeSessionDuration)
	require.Len(t, durations, 1)
	assert.Equal(t, float64(5000), durations[0]["duration_ms"])

	clicks := collector.ByType(models.TypeClick)
	require.Len(t, clicks, 1)
	assert.Equal(t, "a", clicks[0]["element"])
	assert.Equal(t, "cta", clicks[0]["element_id"])
	assert.Equal(t, "btn primary", clicks[0]["class_name"])
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	collector := beacontest.NewCollector(http.StatusOK)
	defer collector.Close()

	s, err := Decode(strings.NewReader("path: /\nsteps:\n  - wait: 1h\n  - unload: true\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := Runner{
		Endpoint: collector.URL,
		Options:  []beacon.Option{beacon.WithLogger(logging.Discard())},
	}
	result, err := runner.Run(ctx, s)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, result.Unloaded)
	assert.Empty(t, collector.ByType(models.TypeSessionDuration))
}
