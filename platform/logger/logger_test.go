package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithContextAddsTraceAndChat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	ctx := ContextWithTraceID(context.Background(), "trace-1")
	ctx = ContextWithChatID(ctx, 111)
	log.WithContext(ctx).Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "trace-1", entry["trace_id"])
	assert.EqualValues(t, 111, entry["chat_id"])
	assert.Equal(t, "trace-1", TraceIDFrom(ctx))
}

func TestUpdateHandledLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("production", &buf)

	log.UpdateHandled(UpdateFields{ChatID: 5, UpdateType: "callback_query", CallbackData: "estate_search:next_offer:1"}, time.Millisecond, nil)
	log.UpdateHandled(UpdateFields{ChatID: 5, UpdateType: "message"}, time.Millisecond, errors.New("boom"))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var ok, failed map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &ok))
	require.NoError(t, json.Unmarshal(lines[1], &failed))

	assert.Equal(t, "INFO", ok["level"])
	assert.Equal(t, "estate_search:next_offer:1", ok["callback_data"])
	assert.Equal(t, "ERROR", failed["level"])
	assert.Equal(t, "boom", failed["error"])
}
