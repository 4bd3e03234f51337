package testutil

import (
	"bytes"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/vaultcopy/internal/events"
)

// TestPassword is used by tests that do not care about the password.
const TestPassword = "correct horse battery staple"

// NewTestLogger creates a logger for testing.
func NewTestLogger() *events.Logger {
	var buf bytes.Buffer
	return events.NewTestLogger(events.DebugLevel, "json", &buf)
}

// SampleTree is a small source tree with nested directories. Keys are slash
// separated paths, values are file contents.
var SampleTree = map[string]string{
	"a.txt":             "alpha",
	"notes/b.md":        "# Notes\n\nSome text.\n",
	"notes/daily/c.txt": "2024-01-15",
	"photos/empty.jpg":  "",
}

// RandomBytes returns n bytes from a generator seeded with seed.
func RandomBytes(n int, seed uint64) []byte {
	var key [32]byte
	key[0] = byte(seed)
	key[1] = byte(seed >> 8)

	out := make([]byte, n)
	_, _ = rand.NewChaCha8(key).Read(out)
	return out
}

// WriteTree creates files under root. A key ending in "/" creates an empty
// directory.
func WriteTree(t testing.TB, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if strings.HasSuffix(rel, "/") {
			require.NoError(t, os.MkdirAll(path, 0755))
			continue
		}

		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

// ReadTree returns every regular file under root keyed by slash separated
// relative path.
func ReadTree(t testing.TB, root string) map[string]string {
	t.Helper()

	files := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)

	return files
}

// TreeSize adds up the content lengths of files.
func TreeSize(files map[string]string) int64 {
	var total int64
	for rel, content := range files {
		if !strings.HasSuffix(rel, "/") {
			total += int64(len(content))
		}
	}
	return total
}
