package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// ServiceName identifies this module in log and telemetry output.
const ServiceName = "hlvr-vrcore"

// SlogManager owns the render-path logger. Records go to the log file, or
// to the console when no file is open, and to the OTel bridge when a
// provider is set.
type SlogManager struct {
	logger      *slog.Logger
	logProvider *sdklog.LoggerProvider
	context     ContextProvider
	console     io.Writer
}

func NewSlogManager() *SlogManager {
	return &SlogManager{console: os.Stdout}
}

// SetContextProvider adds attributes to every record, e.g. the current map
// and frame phase. Call it before Setup.
func (m *SlogManager) SetContextProvider(p ContextProvider) {
	m.context = p
}

// ParseLevel maps a config or client level name to a slog level. Unknown
// names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE", "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR", "FATAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339Nano))
	}
	return a
}

// Setup builds the handler chain, replacing any earlier one. A nil file
// logs to the console; a nil provider disables OTel logging.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider) {
	lvl := ParseLevel(level)
	m.logProvider = provider

	// the game owns the console, so it is only a fallback
	out := file
	if out == nil {
		out = m.console
	}
	handlers := []slog.Handler{
		slog.NewTextHandler(out, &slog.HandlerOptions{Level: lvl, ReplaceAttr: utcTime}),
	}
	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(provider)))
	}

	m.logger = slog.New(NewContextHandler(NewMultiHandler(handlers...), m.context))
	m.logger.Info("Logging initialized", "level", lvl.String(), "otel", provider != nil)
}

// Logger returns the configured logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider == nil {
		return nil
	}
	return m.logProvider.ForceFlush(ctx)
}

// Forward records a message that originated elsewhere: a client script
// relayed by a log command, or a backend's background loop. It is dropped
// before Setup.
func (m *SlogManager) Forward(source, level, msg string, attrs ...slog.Attr) {
	if m.logger == nil {
		return
	}
	attrs = append([]slog.Attr{slog.String("source", source)}, attrs...)
	m.logger.LogAttrs(context.Background(), ParseLevel(level), msg, attrs...)
}
