package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func newTestManager(level string) (*SlogManager, *bytes.Buffer, *bytes.Buffer) {
	var file, console bytes.Buffer
	m := NewSlogManager()
	m.console = &console
	m.Setup(&file, level, nil)
	return m, &file, &console
}

func TestSetup_FileKeepsConsoleQuiet(t *testing.T) {
	m, file, console := newTestManager("info")
	m.Logger().Info("view submitted")

	assert.Contains(t, file.String(), "view submitted")
	assert.Contains(t, file.String(), "Logging initialized")
	assert.Empty(t, console.String())
}

func TestSetup_ConsoleFallback(t *testing.T) {
	var console bytes.Buffer
	m := NewSlogManager()
	m.console = &console
	m.Setup(nil, "info", nil)
	m.Logger().Info("no log file")

	assert.Contains(t, console.String(), "no log file")
}

func TestSetup_Levels(t *testing.T) {
	m, file, _ := newTestManager("warn")
	m.Logger().Info("skybox loaded")
	m.Logger().Warn("skybox face missing")

	assert.NotContains(t, file.String(), "skybox loaded")
	assert.Contains(t, file.String(), "skybox face missing")

	m, file, _ = newTestManager("trace")
	m.Logger().Debug("eye pass")
	assert.Contains(t, file.String(), "eye pass")
}

func TestSetup_TimesAreUTC(t *testing.T) {
	m, file, _ := newTestManager("info")
	m.Logger().Info("tick")

	line := strings.Split(strings.TrimSpace(file.String()), "\n")[1]
	require.True(t, strings.HasPrefix(line, "time="))
	stamp := strings.Fields(line)[0]
	assert.True(t, strings.HasSuffix(stamp, "Z"), "expected UTC stamp, got %s", stamp)
}

func TestSetup_ReplacesLogger(t *testing.T) {
	m, first, _ := newTestManager("info")

	var second bytes.Buffer
	m.Setup(&second, "info", nil)
	m.Logger().Info("after map change")

	assert.NotContains(t, first.String(), "after map change")
	assert.Contains(t, second.String(), "after map change")
}

func TestSetup_ContextProviderAddsAttrs(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.SetContextProvider(func() []slog.Attr {
		return []slog.Attr{slog.String("map", "c1a0"), slog.String("phase", "idle")}
	})
	m.Setup(&buf, "info", nil)

	m.Logger().Info("frame")
	assert.Contains(t, buf.String(), "map=c1a0")
	assert.Contains(t, buf.String(), "phase=idle")
}

func TestSetup_WithOTelProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	t.Cleanup(func() { provider.Shutdown(context.Background()) })

	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", provider)

	m.Logger().Info("otel integrated")
	assert.Contains(t, buf.String(), "otel=true")
	assert.Contains(t, buf.String(), "otel integrated")
	assert.NoError(t, m.Flush(context.Background()))
}

func TestLogger_DefaultBeforeSetup(t *testing.T) {
	m := NewSlogManager()
	assert.Equal(t, slog.Default(), m.Logger())
	assert.NoError(t, m.Flush(context.Background()))
}

func TestForward(t *testing.T) {
	m, file, _ := newTestManager("debug")

	m.Forward("vr_hud", "warning", "hand model missing", slog.Int("player", 2))
	m.Forward("sqlite:dumpLoop", "trace", "Dumped to disk")

	out := file.String()
	assert.Contains(t, out, `level=WARN msg="hand model missing" source=vr_hud player=2`)
	assert.Contains(t, out, `level=DEBUG msg="Dumped to disk" source=sqlite:dumpLoop`)
}

func TestForward_BeforeSetup(t *testing.T) {
	var console bytes.Buffer
	m := NewSlogManager()
	m.console = &console

	m.Forward("vr_hud", "info", "dropped")
	assert.Empty(t, console.String())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"trace", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" info ", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"fatal", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}
