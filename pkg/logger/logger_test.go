package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/koopa0/system-design/14-realtime-match/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseLevel 測試日誌級別解析
func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, logger.ParseLevel(tt.input))
		})
	}
}

// TestNew_JSONFormat 測試 JSON 輸出
func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New("info", "json", &buf)

	log.Info("match started", "match_id", "match_1")
	log.Debug("filtered out")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "match started", entry["msg"])
	assert.Equal(t, "match_1", entry["match_id"])
}

// TestNew_TextFormat 測試文字輸出與級別過濾
func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New("warn", "text", &buf)

	log.Info("hidden")
	log.Warn("visible", "player_id", "p1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "player_id=p1")
}
