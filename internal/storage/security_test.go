package storage_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/vaultcopy/internal/events"
	"github.com/TheMichaelB/vaultcopy/internal/storage"
)

func newStore(t *testing.T) (*storage.LocalStore, string) {
	t.Helper()
	tmpDir := t.TempDir()
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	store, err := storage.NewLocalStore(tmpDir, logger)
	require.NoError(t, err)
	return store, tmpDir
}

func TestPathSanitization(t *testing.T) {
	store, tmpDir := newStore(t)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{
			name:    "normal path",
			path:    "notes/test.md",
			wantErr: false,
		},
		{
			name:    "path with dots",
			path:    "notes/./test.md",
			wantErr: false,
		},
		{
			name:    "dots inside a name",
			path:    "notes/v1..2/test.md",
			wantErr: false,
		},
		{
			name:    "parent directory traversal",
			path:    "../etc/passwd",
			wantErr: true,
		},
		{
			name:    "embedded parent traversal",
			path:    "notes/../../etc/passwd",
			wantErr: true,
		},
		{
			name:    "absolute path",
			path:    "/etc/passwd",
			wantErr: false, // Gets normalized to etc/passwd
		},
		{
			name:    "null bytes",
			path:    "test\x00.md",
			wantErr: true,
		},
		{
			name:    "very long path",
			path:    strings.Repeat("a/", 2100) + "file.md",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			abs, err := store.Abs(tt.path)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "path")
			} else {
				require.NoError(t, err)
				assert.True(t, strings.HasPrefix(abs, tmpDir))
			}
		})
	}
}

func TestWindowsReservedNames(t *testing.T) {
	if runtime.GOOS != "windows" {
		t.Skip("Windows-specific test")
	}

	store, _ := newStore(t)

	for _, name := range []string{"CON", "PRN", "AUX", "NUL", "COM1", "LPT1"} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, store.EnsureDir(name))
			assert.Error(t, store.EnsureDir("folder/"+name+".txt"))
		})
	}

	for _, char := range `<>:"|?*` {
		assert.Error(t, store.EnsureDir(fmt.Sprintf("dir%c", char)))
	}
}

func TestSymlinkNotFollowed(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Symlink test requires Unix-like OS")
	}

	store, tmpDir := newStore(t)

	external := filepath.Join(t.TempDir(), "external.txt")
	require.NoError(t, os.WriteFile(external, []byte("external"), 0644))
	require.NoError(t, os.Symlink(external, filepath.Join(tmpDir, "link.txt")))

	abs, err := store.Abs("link.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "link.txt"), abs)
	info, err := os.Lstat(abs)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink)

	exists, err := store.Exists("link.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDirectoryOperations(t *testing.T) {
	store, root := newStore(t)

	require.NoError(t, store.EnsureDir("a/b/c/d/e"))

	for _, dir := range []string{"a", "a/b", "a/b/c", "a/b/c/d", "a/b/c/d/e"} {
		exists, err := store.Exists(dir)
		require.NoError(t, err)
		assert.True(t, exists)
		assert.DirExists(t, filepath.Join(root, filepath.FromSlash(dir)))
	}

	exists, err := store.Exists("missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestHasCapacity(t *testing.T) {
	store, _ := newStore(t)

	assert.True(t, store.HasCapacity("not/yet/created", 1))
	assert.True(t, store.HasCapacity("x", 0))
	assert.False(t, store.HasCapacity("x", 1<<62))
}
