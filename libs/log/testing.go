package log

import (
	"sync"
	"testing"
)

var (
	testingLoggerMu sync.Mutex
	testingLogger   Logger
)

// TestingLogger returns a Logger that writes to stdout when `go test -v` is
// used, and is silent otherwise. The result is cached per process, the way
// the teacher's libs/log.TestingLogger does it, so every package's tests
// share one logger instance.
func TestingLogger() Logger {
	testingLoggerMu.Lock()
	defer testingLoggerMu.Unlock()

	if testingLogger != nil {
		return testingLogger
	}

	if testing.Verbose() {
		l, err := NewDefaultLogger(LogFormatText, LogLevelDebug)
		if err != nil {
			panic(err)
		}
		testingLogger = l
	} else {
		testingLogger = NewNopLogger()
	}

	return testingLogger
}
