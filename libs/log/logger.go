// Package log provides a small structured-logging interface used by every
// component of the node view synchronizer, so that library code never
// depends on a concrete logging backend.
package log

import (
	"fmt"
	"io"

	kitlog "github.com/go-kit/kit/log"
)

// Logger is what every package in this module takes at construction time.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})

	// With returns a new Logger with the given key/value pairs attached to
	// every subsequent call.
	With(keyvals ...interface{}) Logger
}

// Hexadecimal renders a byte slice as uppercase hex for log fields, e.g.
// logger.Info("received", "id", log.Hexadecimal{B: id[:]}).
type Hexadecimal struct {
	B []byte
}

func (h Hexadecimal) String() string {
	return fmt.Sprintf("%X", h.B)
}

// NewSyncWriter wraps w so that concurrent writers never interleave partial
// log lines; every default Logger in this package writes through one.
func NewSyncWriter(w io.Writer) io.Writer {
	return kitlog.NewSyncWriter(w)
}
