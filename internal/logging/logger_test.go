package logging

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_FileJSON(t *testing.T) {
	Shutdown()
	defer Shutdown()

	path := filepath.Join(t.TempDir(), "claudeye.log")
	Init(Config{Level: "debug", Format: "json", File: path})

	ForComponent(CompPoller).Debug("cycle_done", slog.Int("sessions", 3))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	sc := bufio.NewScanner(f)
	require.True(t, sc.Scan(), "log file is empty")

	var record map[string]any
	require.NoError(t, json.Unmarshal(sc.Bytes(), &record))
	assert.Equal(t, "cycle_done", record["msg"])
	assert.Equal(t, "poller", record["component"])
	assert.EqualValues(t, 3, record["sessions"])
}

func TestForComponent_CreatedBeforeInit(t *testing.T) {
	Shutdown()
	defer Shutdown()

	early := ForComponent(CompMux)

	path := filepath.Join(t.TempDir(), "early.log")
	Init(Config{Level: "info", Format: "json", File: path})
	early.Info("after_init")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"after_init"`)
	assert.Contains(t, string(data), `"component":"mux"`)
}

func TestInit_LevelFilters(t *testing.T) {
	Shutdown()
	defer Shutdown()

	path := filepath.Join(t.TempDir(), "level.log")
	Init(Config{Level: "warn", File: path})

	log := ForComponent(CompRegistry)
	log.Info("dropped")
	log.Warn("kept")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
