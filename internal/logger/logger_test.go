package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewLogger(buf, "[test]", LogLevelWarn)

	l.Debug("debug %d", 1)
	l.Info("info %d", 2)
	l.Warn("warn %d", 3)
	l.Error("error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "[test] [WARN] warn 3")
	assert.Contains(t, out, "[test] [ERROR] error 4")
}

func TestErrorAlwaysPrinted(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewLogger(buf, "[test]", LogLevelError)

	l.Warn("dropped")
	l.Error("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestWithPrefixSharesOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewLogger(buf, "[root]", LogLevelDebug)

	child := l.WithPrefix("[child]")
	child.Debug("hello")

	assert.Contains(t, buf.String(), "[child] [DEBUG] hello")
	assert.Equal(t, LogLevelDebug, child.Level())
	assert.Equal(t, l.GetWriter(), child.GetWriter())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected int
		wantErr  bool
	}{
		{"", LogLevelInfo, false},
		{"info", LogLevelInfo, false},
		{"DEBUG", LogLevelDebug, false},
		{" warn ", LogLevelWarn, false},
		{"warning", LogLevelWarn, false},
		{"error", LogLevelError, false},
		{"verbose", LogLevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}
