package persist

import (
	"io"
	"log"
	"os"

	"github.com/threefoldtech/stabilitypool/build"
)

// Logger is a leveled, file-backed logger matching the teacher's
// persist.Logger: every line is timestamped, a STARTUP line is written on
// open and a SHUTDOWN line on Close, and Critical/Severe route through
// build.Critical/build.Severe so they panic in debug builds.
type Logger struct {
	*log.Logger
	closer io.Closer
}

// NewFileLogger creates a logger that writes to filename, appending if it
// already exists.
func NewFileLogger(filename string) (*Logger, error) {
	f, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0660)
	if err != nil {
		return nil, err
	}
	logger := log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile|log.LUTC)
	logger.Println("STARTUP: stability pool guardian log started")
	return &Logger{Logger: logger, closer: f}, nil
}

// NewNopLogger returns a logger that discards everything, useful for
// tests and the Mock oracle.
func NewNopLogger() *Logger {
	return &Logger{Logger: log.New(io.Discard, "", 0)}
}

// Debugln logs at debug level. The teacher distinguishes this from
// Println only by convention (both write to the same file); this module
// follows that same convention rather than adding a dependency on a
// structured logging library the corpus itself does not use.
func (l *Logger) Debugln(v ...interface{}) {
	l.Println(append([]interface{}{"[DEBUG]"}, v...)...)
}

// Severe logs a significant but non-fatal problem via build.Severe, which
// panics only in debug builds.
func (l *Logger) Severe(v ...interface{}) {
	l.Println(append([]interface{}{"[SEVERE]"}, v...)...)
	build.Severe(v...)
}

// Critical logs and then calls build.Critical. The audit check of spec
// §4.10 calls build.Critical directly, not through this method.
func (l *Logger) Critical(v ...interface{}) {
	l.Println(append([]interface{}{"[CRITICAL]"}, v...)...)
	build.Critical(v...)
}

// Close writes a SHUTDOWN line and closes the underlying file.
func (l *Logger) Close() error {
	l.Println("SHUTDOWN: stability pool guardian log finished")
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
