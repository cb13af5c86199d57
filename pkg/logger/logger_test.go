package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, parseLevel(tc.in), "level %q", tc.in)
	}
}

func TestNew_WritesStructuredOutput(t *testing.T) {
	l := New(Config{Level: "info"})

	var buf bytes.Buffer
	l = l.Output(&buf)
	l.Info().Str("component", "test").Msg("server ready")

	assert.Contains(t, buf.String(), `"server ready"`)
	assert.Contains(t, buf.String(), `"component":"test"`)
}

func TestNew_InstallsGlobal(t *testing.T) {
	New(Config{Level: "warn"})

	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	var buf bytes.Buffer
	log.Logger = log.Logger.Output(&buf)
	log.Warn().Msg("via global")
	assert.Contains(t, buf.String(), "via global")
}
