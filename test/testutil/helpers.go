package testutil

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/vaultcopy/internal/config"
)

// LogEntry represents a captured log entry for testing
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// TestTimeout provides timeout context for tests.
func TestTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

// TestContext creates a test context with reasonable timeout.
func TestContext() (context.Context, context.CancelFunc) {
	return TestTimeout(30 * time.Second)
}

// TestConfigWithDir creates a test configuration keeping state in dataDir.
func TestConfigWithDir(dataDir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.State = config.StateConfig{
		Backend: "json",
		Dir:     filepath.Join(dataDir, "state"),
	}
	cfg.Log = config.LogConfig{
		Level:  "debug",
		Format: "json",
	}
	return cfg
}

// CompareFiles compares two files for equality.
func CompareFiles(t *testing.T, path1, path2 string) {
	content1, err := os.ReadFile(path1)
	require.NoError(t, err, "Failed to read %s", path1)

	content2, err := os.ReadFile(path2)
	require.NoError(t, err, "Failed to read %s", path2)

	assert.Equal(t, content1, content2, "Files should be identical")
}

// AssertNoTempFiles fails if a staged temp file was left under root.
func AssertNoTempFiles(t *testing.T, root string) {
	t.Helper()

	for rel := range ReadTree(t, root) {
		assert.NotContains(t, rel, ".tmp.", "leftover temp file")
	}
}

// LogOutput captures JSON log output for testing.
type LogOutput struct {
	mu      sync.RWMutex
	entries []LogEntry
}

// NewLogOutput creates a new log output capturer.
func NewLogOutput() *LogOutput {
	return &LogOutput{}
}

// Write implements io.Writer to capture log output.
func (lo *LogOutput) Write(p []byte) (n int, err error) {
	var entry LogEntry
	if err := json.Unmarshal(p, &entry); err == nil {
		lo.mu.Lock()
		lo.entries = append(lo.entries, entry)
		lo.mu.Unlock()
	}
	return len(p), nil
}

// Entries returns captured log entries.
func (lo *LogOutput) Entries() []LogEntry {
	lo.mu.RLock()
	defer lo.mu.RUnlock()

	entries := make([]LogEntry, len(lo.entries))
	copy(entries, lo.entries)
	return entries
}

// HasMessage checks if any log entry contains the message.
func (lo *LogOutput) HasMessage(message string) bool {
	lo.mu.RLock()
	defer lo.mu.RUnlock()

	for _, entry := range lo.entries {
		if strings.Contains(entry.Message, message) {
			return true
		}
	}
	return false
}
