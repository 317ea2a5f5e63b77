package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/routesync/internal/config"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestJSONToConsoleAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "routesync.log")
	var console bytes.Buffer
	log, err := New(config.LogConfig{Level: "info", Format: "json", Path: path}, &console)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("navigator: started", "routes", 2)
	require.NoError(t, log.Close())

	var rec map[string]any
	require.NoError(t, json.Unmarshal(console.Bytes(), &rec))
	require.Equal(t, "navigator: started", rec["msg"])
	require.EqualValues(t, 2, rec["routes"])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, console.String(), string(data))
}

func TestLevelCanChange(t *testing.T) {
	var console bytes.Buffer
	log, err := New(config.LogConfig{Level: "warn"}, &console)
	require.NoError(t, err)
	log.Info("quiet")
	require.Zero(t, console.Len())

	log.Level.Set(slog.LevelDebug)
	log.Debug("loud")
	require.Contains(t, console.String(), "loud")
}
