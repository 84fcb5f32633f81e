package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Output: &buf})

	l.Info().Str("window", "2024-W02").Msg("dashboard assembled")

	out := buf.String()
	assert.Contains(t, out, `"message":"dashboard assembled"`)
	assert.Contains(t, out, `"window":"2024-W02"`)
	assert.Contains(t, out, `"service":"visit-engine"`)
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Pretty: true, Output: &buf})

	l.Info().Msg("listening")

	assert.Contains(t, buf.String(), "listening")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, ParseLevel(tc.in), tc.in)
	}
}

func TestNew_SetsGlobalLevel(t *testing.T) {
	New(Config{Level: "error", Output: &bytes.Buffer{}})
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())

	New(Config{Level: "debug", Output: &bytes.Buffer{}})
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	l := Component(New(Config{Level: "info", Output: &buf}), "scheduler")

	l.Warn().Msg("missing price")
	assert.Contains(t, buf.String(), `"component":"scheduler"`)
}
