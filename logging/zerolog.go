package logging

import "github.com/rs/zerolog"

// ZerologAdapter implements Logger on top of a zerolog.Logger. Args are
// alternating key/value pairs; a trailing key without a value is logged under
// "!BADKEY".
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter wraps l.
func NewZerologAdapter(l zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: l}
}

// Debug logs a debug message.
func (z *ZerologAdapter) Debug(msg string, args ...any) { emit(z.logger.Debug(), msg, args) }

// Info logs an informational message.
func (z *ZerologAdapter) Info(msg string, args ...any) { emit(z.logger.Info(), msg, args) }

// Warn logs a warning message.
func (z *ZerologAdapter) Warn(msg string, args ...any) { emit(z.logger.Warn(), msg, args) }

// Error logs an error message.
func (z *ZerologAdapter) Error(msg string, args ...any) { emit(z.logger.Error(), msg, args) }

func emit(ev *zerolog.Event, msg string, args []any) {
	if ev == nil {
		return
	}
	for i := 0; i < len(args); i++ {
		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			ev = ev.Interface("!BADKEY", args[i])
			continue
		}
		switch v := args[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		default:
			ev = ev.Interface(key, v)
		}
		i++
	}
	ev.Msg(msg)
}
