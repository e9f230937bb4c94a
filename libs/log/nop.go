package log

import (
	"github.com/rs/zerolog"
)

// NewNopLogger returns a logger that discards everything, for use in
// tests and as the fallback when no logger is wired.
func NewNopLogger() Logger {
	return &defaultLogger{
		Logger: zerolog.Nop(),
	}
}
