package logging

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// badKey names a value whose key is missing or not a string, as slog does.
const badKey = "!BADKEY"

// DispatcherLogger writes dispatcher logs through zerolog so command
// handling lands in the same JSON sink as the storage layer.
type DispatcherLogger struct {
	logger zerolog.Logger
}

func NewDispatcherLogger(logger zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{logger: logger.With().Str("component", "dispatcher").Logger()}
}

func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	emit(l.logger.Debug(), msg, keysAndValues)
}

func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	emit(l.logger.Info(), msg, keysAndValues)
}

func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	emit(l.logger.Error(), msg, keysAndValues)
}

// emit adds the pairs with typed zerolog fields. A nil event means the level
// is disabled.
func emit(e *zerolog.Event, msg string, kv []any) {
	if e == nil {
		return
	}
	for len(kv) > 0 {
		key, ok := kv[0].(string)
		if !ok || len(kv) == 1 {
			addField(e, badKey, kv[0])
			kv = kv[1:]
			continue
		}
		addField(e, key, kv[1])
		kv = kv[2:]
	}
	e.Msg(msg)
}

func addField(e *zerolog.Event, key string, v any) {
	switch v := v.(type) {
	case error:
		e.AnErr(key, v)
	case time.Duration:
		e.Dur(key, v)
	case string:
		e.Str(key, v)
	case int:
		e.Int(key, v)
	case bool:
		e.Bool(key, v)
	case []string:
		e.Strs(key, v)
	case fmt.Stringer:
		e.Stringer(key, v)
	default:
		e.Interface(key, v)
	}
}
