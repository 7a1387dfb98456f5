package skew

import "log"

// Logger is the minimal logging interface used across the harness.
type Logger interface {
	Printf(format string, v ...any)
}

type defaultLogger struct{}

func (l *defaultLogger) Printf(format string, v ...any) {
	log.Printf(format, v...)
}
