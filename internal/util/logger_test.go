package util

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestToZerologLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   LogLevel
		want zerolog.Level
	}{
		{TraceLevel, zerolog.TraceLevel},
		{DebugLevel, zerolog.DebugLevel},
		{InfoLevel, zerolog.InfoLevel},
		{WarnLevel, zerolog.WarnLevel},
		{ErrorLevel, zerolog.ErrorLevel},
		{42, zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, toZerologLevel(tt.in))
	}
}

func TestZerologWriter_StripsStdlogPrefix(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := zerologWriter{logger: zerolog.New(&buf), level: zerolog.InfoLevel}

	n, err := w.Write([]byte("2024/01/01 00:00:00 fuse: mounted ok\n"))

	assert.NoError(t, err)
	assert.Equal(t, len("2024/01/01 00:00:00 fuse: mounted ok\n"), n)
	assert.Contains(t, buf.String(), `"message":"mounted ok"`)
}

func TestValueOrDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "x", ValueOrDefault(nil, "x"))
	assert.Equal(t, "y", ValueOrDefault(Pointer("y"), "x"))
	assert.Equal(t, 0, ValueOrDefault(Pointer(0), 7))
}
