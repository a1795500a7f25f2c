package logger

import "io"

// Discard returns a Logger that drops everything. Intended for tests and
// tools that need a Logger but no output.
func Discard() Logger {
	l := NewLogrusLogger(&Config{Level: LevelFatal, Format: "text"})
	l.SetOutput(io.Discard)
	return l
}
