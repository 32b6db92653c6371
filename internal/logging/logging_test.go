package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLevelRouting(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger, cleanup, err := NewWithStreams(Config{Level: "info", Format: "json"}, Streams{Stdout: &stdout, Stderr: &stderr})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("stock distributed", zap.Int64("item_id", 7))
	logger.Warn("careful")
	logger.Error("boom")
	cleanup()

	out := stdout.String()
	assert.Contains(t, out, "stock distributed")
	assert.Contains(t, out, "careful")
	assert.NotContains(t, out, "boom")
	assert.NotContains(t, out, "hidden")

	assert.Contains(t, stderr.String(), "boom")
	assert.NotContains(t, stderr.String(), "careful")

	var entry map[string]any
	first := strings.SplitN(out, "\n", 2)[0]
	require.NoError(t, json.Unmarshal([]byte(first), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.EqualValues(t, 7, entry["item_id"])
}

func TestLogFileReceivesAllLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duka.log")
	var stdout, stderr bytes.Buffer
	logger, cleanup, err := NewWithStreams(Config{File: path}, Streams{Stdout: &stdout, Stderr: &stderr})
	require.NoError(t, err)

	logger.Info("one")
	logger.Error("two")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"one"`)
	assert.Contains(t, string(data), `"msg":"two"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"DEBUG", zapcore.DebugLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestUnknownFormat(t *testing.T) {
	_, _, err := New(Config{Format: "xml"})
	assert.Error(t, err)
}
