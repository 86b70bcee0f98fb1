package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingHandler struct{}

func (failingHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("handler error") }
func (h failingHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h failingHandler) WithGroup(string) slog.Handler           { return h }

func textHandler(buf *bytes.Buffer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level})
}

func TestMultiHandler_FansOut(t *testing.T) {
	var file, otel bytes.Buffer
	logger := slog.New(NewMultiHandler(nil, textHandler(&file, slog.LevelInfo), textHandler(&otel, slog.LevelInfo)))

	logger.Info("stereo on", "player", 1)

	assert.Contains(t, file.String(), "player=1")
	assert.Contains(t, otel.String(), "player=1")
}

func TestMultiHandler_EnabledByAny(t *testing.T) {
	ctx := context.Background()
	info := textHandler(&bytes.Buffer{}, slog.LevelInfo)
	debug := textHandler(&bytes.Buffer{}, slog.LevelDebug)

	assert.False(t, NewMultiHandler(info).Enabled(ctx, slog.LevelDebug))
	assert.True(t, NewMultiHandler(info, debug).Enabled(ctx, slog.LevelDebug))
	assert.False(t, NewMultiHandler().Enabled(ctx, slog.LevelError))
}

func TestMultiHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	multi := NewMultiHandler(textHandler(&buf, slog.LevelInfo))

	assert.Equal(t, multi, multi.WithGroup(""))

	logger := slog.New(multi.WithAttrs([]slog.Attr{slog.String("component", "pose")}).WithGroup("hmd"))
	logger.Info("tracked", "yaw", 90)

	assert.Contains(t, buf.String(), "component=pose")
	assert.Contains(t, buf.String(), "hmd.yaw=90")
}

func TestMultiHandler_ErrorsDoNotStopFanOut(t *testing.T) {
	var buf bytes.Buffer
	multi := NewMultiHandler(failingHandler{}, textHandler(&buf, slog.LevelInfo), failingHandler{})

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "still written", 0)
	err := multi.Handle(context.Background(), r)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler error")
	assert.Contains(t, buf.String(), "still written")
}

func TestContextHandler_ContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil), nil))

	ctx := WithAttrs(context.Background(), slog.Int("player", 4))
	ctx = WithAttrs(ctx, slog.String("command", ":VR:UPDATE:"))
	logger.InfoContext(ctx, "applied")
	logger.Info("plain")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "player=4")
	assert.Contains(t, string(lines[0]), "command=:VR:UPDATE:")
	assert.NotContains(t, string(lines[1]), "player=")
}

func TestContextHandler_ProviderPerRecord(t *testing.T) {
	var buf bytes.Buffer
	phase := "idle"
	h := NewContextHandler(slog.NewTextHandler(&buf, nil), func() []slog.Attr {
		return []slog.Attr{slog.String("phase", phase)}
	})
	logger := slog.New(h)

	logger.Info("one")
	phase = "left-eye"
	logger.Info("two")

	assert.Contains(t, buf.String(), "phase=idle")
	assert.Contains(t, buf.String(), "phase=left-eye")
	assert.Equal(t, h, h.WithGroup(""))
}
