package logger

import "io"

type Logger interface {
	Info(message string, v ...interface{})
	Warn(message string, v ...interface{})
	Error(message string, v ...interface{})
	Debug(message string, v ...interface{})
	// WithPrefix returns a logger sharing the output and level but with another prefix.
	WithPrefix(prefix string) Logger
	Level() int
	GetWriter() io.Writer
}
