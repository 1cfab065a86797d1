package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var defaultOutput io.Writer = os.Stdout

const (
	LogFormatJSON = "json"
	LogFormatText = "text"

	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelError = "error"
	LogLevelNone  = "none"
)

type defaultLogger struct {
	zerolog.Logger
}

// NewDefaultLogger returns a Logger backed by zerolog, configured with the
// given output format ("json" or "text") and minimum level.
func NewDefaultLogger(format, level string) (Logger, error) {
	var zlevel zerolog.Level
	switch strings.ToLower(level) {
	case LogLevelDebug:
		zlevel = zerolog.DebugLevel
	case LogLevelInfo:
		zlevel = zerolog.InfoLevel
	case LogLevelError:
		zlevel = zerolog.ErrorLevel
	case LogLevelNone:
		zlevel = zerolog.Disabled
	default:
		return nil, fmt.Errorf("unknown log level: %q", level)
	}

	var writer io.Writer
	switch strings.ToLower(format) {
	case LogFormatJSON:
		writer = NewSyncWriter(defaultOutput)
	case LogFormatText:
		writer = zerolog.ConsoleWriter{Out: NewSyncWriter(defaultOutput)}
	default:
		return nil, fmt.Errorf("unknown log format: %q", format)
	}

	zl := zerolog.New(writer).Level(zlevel).With().Timestamp().Logger()
	return &defaultLogger{Logger: zl}, nil
}

func (l *defaultLogger) Debug(msg string, keyvals ...interface{}) { l.logf(zerolog.DebugLevel, msg, keyvals) }
func (l *defaultLogger) Info(msg string, keyvals ...interface{})  { l.logf(zerolog.InfoLevel, msg, keyvals) }
func (l *defaultLogger) Error(msg string, keyvals ...interface{}) { l.logf(zerolog.ErrorLevel, msg, keyvals) }

func (l *defaultLogger) With(keyvals ...interface{}) Logger {
	ctx := l.Logger.With()
	for i := 0; i+1 < len(keyvals); i += 2 {
		ctx = ctx.Interface(fmt.Sprint(keyvals[i]), keyvals[i+1])
	}
	return &defaultLogger{Logger: ctx.Logger()}
}

func (l *defaultLogger) logf(level zerolog.Level, msg string, keyvals []interface{}) {
	ev := l.Logger.WithLevel(level)
	for i := 0; i+1 < len(keyvals); i += 2 {
		ev = ev.Interface(fmt.Sprint(keyvals[i]), keyvals[i+1])
	}
	ev.Msg(msg)
}
