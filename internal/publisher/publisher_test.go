package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentbai/pagebeacon/internal/models"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestNewPublisherConfiguresWriter(t *testing.T) {
	p := New([]string{"localhost:9092"}, "analytics.page_events")
	defer p.Close()

	writer, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, "analytics.page_events", writer.Topic)
	assert.Equal(t, "localhost:9092", writer.Addr.String())
}

func TestRecordPublishesKeyedByPath(t *testing.T) {
	writer := &fakeWriter{}
	p := &Publisher{writer: writer}

	maxScroll := 70
	err := p.Record(context.Background(), models.Event{
		ID:        "abc",
		Type:      models.TypeScrollDepth,
		Path:      "blog/post-1",
		TSUTC:     1719837296000,
		TSISO:     "2024-07-01T12:34:56.000Z",
		MaxScroll: &maxScroll,
	})
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "blog/post-1", string(msg.Key))

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, map[string]any{
		"id":         "abc",
		"type":       "scroll_depth",
		"path":       "blog/post-1",
		"timestamp":  "2024-07-01T12:34:56.000Z",
		"max_scroll": float64(70),
	}, body)
}

func TestRecordWrapsWriterError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("leader not available")}
	p := &Publisher{writer: writer}

	err := p.Record(context.Background(), models.Event{ID: "abc", Type: models.TypePageView})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestClose(t *testing.T) {
	writer := &fakeWriter{}
	p := &Publisher{writer: writer}

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}
