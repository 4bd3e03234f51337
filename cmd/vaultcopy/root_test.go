package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/TheMichaelB/vaultcopy/internal/models"
	"github.com/TheMichaelB/vaultcopy/internal/services/replicate"
)

func TestSetupCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	stateDir := filepath.Join(dir, "data", "state")
	logFile := filepath.Join(dir, "logs", "nested", "vaultcopy.log")

	path := filepath.Join(dir, "vaultcopy.yaml")
	content := "state:\n  dir: " + stateDir + "\nlog:\n  file: " + logFile + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfgFile, jsonOutput = path, true
	t.Cleanup(func() {
		cfgFile, jsonOutput = "", false
	})

	require.NoError(t, setup(rootCmd, nil))

	assert.DirExists(t, stateDir)
	assert.FileExists(t, logFile)
	assert.Equal(t, stateDir, cfg.State.Dir)
}

func TestCopyReport(t *testing.T) {
	t.Run("finished run", func(t *testing.T) {
		result := &replicate.Result{
			RunID:    "run-1",
			Progress: models.Progress{BytesCopied: 50, TotalBytes: 200, FilesCopied: 2},
		}

		out := copyReport("/src", "/dst", result, []string{"Encrypted a.txt"}, nil)

		assert.Equal(t, true, out["success"])
		assert.Equal(t, "run-1", out["run_id"])
		assert.InDelta(t, 25.0, out["percent"], 0.001)
		assert.Equal(t, []string{"Encrypted a.txt"}, out["messages"])
		assert.NotContains(t, out, "error")
	})

	t.Run("empty tree is complete", func(t *testing.T) {
		out := copyReport("/src", "/dst", &replicate.Result{}, nil, nil)
		assert.InDelta(t, 100.0, out["percent"], 0.001)
	})

	t.Run("failure before the walk", func(t *testing.T) {
		err := errors.Errorf("%w: /dst needs 10 bytes", models.ErrInsufficientSpace)

		out := copyReport("/src", "/dst", nil, nil, err)

		assert.Equal(t, false, out["success"])
		assert.Equal(t, models.Code(err), out["error_code"])
		assert.NotContains(t, out, "percent")
		assert.NotContains(t, out, "run_id")
	})
}
