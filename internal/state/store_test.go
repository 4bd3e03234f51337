package state_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/TheMichaelB/vaultcopy/internal/config"
	"github.com/TheMichaelB/vaultcopy/internal/events"
	"github.com/TheMichaelB/vaultcopy/internal/models"
	"github.com/TheMichaelB/vaultcopy/internal/state"
)

func testLogger() *events.Logger {
	var buf bytes.Buffer
	return events.NewTestLogger(events.DebugLevel, "json", &buf)
}

func newRecord(id string, started time.Time) *models.RunRecord {
	return &models.RunRecord{
		ID:           id,
		SourceDir:    "/src",
		TargetDir:    "/dst",
		EncryptFiles: true,
		StartedAt:    started,
	}
}

func TestJSONStore(t *testing.T) {
	store, err := state.NewJSONStore(t.TempDir(), testLogger())
	require.NoError(t, err)
	defer store.Close()

	testStoreOperations(t, store)
}

func TestSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	store, err := state.NewSQLiteStore(dbPath, testLogger())
	require.NoError(t, err)
	defer store.Close()

	testStoreOperations(t, store)
}

func TestMockStore(t *testing.T) {
	testStoreOperations(t, state.NewMockStore())
}

func testStoreOperations(t *testing.T, store state.Store) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	runID := "run-123"

	t.Run("load non-existent", func(t *testing.T) {
		_, err := store.Load(runID)
		assert.ErrorIs(t, err, state.ErrRunNotFound)
	})

	t.Run("save and load", func(t *testing.T) {
		rec := newRecord(runID, base)
		rec.Finish(models.Progress{
			FilesCopied:  3,
			FilesSkipped: 1,
			DirsCreated:  2,
			BytesCopied:  4096,
		}, false, nil, base.Add(90*time.Second))

		require.NoError(t, store.Save(rec))

		loaded, err := store.Load(runID)
		require.NoError(t, err)

		assert.Equal(t, rec.ID, loaded.ID)
		assert.Equal(t, rec.SourceDir, loaded.SourceDir)
		assert.Equal(t, rec.TargetDir, loaded.TargetDir)
		assert.True(t, loaded.EncryptFiles)
		assert.False(t, loaded.DecryptFiles)
		assert.Equal(t, 3, loaded.FilesCopied)
		assert.Equal(t, 1, loaded.FilesSkipped)
		assert.Equal(t, 2, loaded.DirsCreated)
		assert.Equal(t, int64(4096), loaded.BytesCopied)
		assert.Equal(t, models.OutcomeCompleted, loaded.Outcome)
		assert.Equal(t, base.Unix(), loaded.StartedAt.Unix())
		assert.Equal(t, 90*time.Second, loaded.Duration())
	})

	t.Run("update existing", func(t *testing.T) {
		rec := newRecord(runID, base)
		rec.Finish(models.Progress{FilesFailed: 2}, false, errors.New("disk full"), base.Add(time.Minute))
		require.NoError(t, store.Save(rec))

		loaded, err := store.Load(runID)
		require.NoError(t, err)

		assert.Equal(t, models.OutcomeFailed, loaded.Outcome)
		assert.Equal(t, 2, loaded.FilesFailed)
		assert.Equal(t, 0, loaded.FilesCopied)
		assert.Equal(t, "disk full", loaded.Error)
	})

	t.Run("list newest first", func(t *testing.T) {
		require.NoError(t, store.Save(newRecord("run-older", base.Add(-time.Hour))))
		require.NoError(t, store.Save(newRecord("run-newer", base.Add(time.Hour))))

		records, err := store.List(0)
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "run-newer", records[0].ID)
		assert.Equal(t, runID, records[1].ID)
		assert.Equal(t, "run-older", records[2].ID)

		limited, err := store.List(2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)
		assert.Equal(t, "run-newer", limited[0].ID)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(runID))

		_, err := store.Load(runID)
		assert.ErrorIs(t, err, state.ErrRunNotFound)

		_, err = store.Load("run-older")
		assert.NoError(t, err)

		assert.NoError(t, store.Delete("never-saved"))
	})
}

func TestJSONStoreCorruption(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := state.NewJSONStore(tmpDir, testLogger())
	require.NoError(t, err)

	require.NoError(t, store.Save(newRecord("corrupt-test", time.Now())))
	statePath := filepath.Join(tmpDir, "corrupt-test.json")

	t.Run("invalid json", func(t *testing.T) {
		require.NoError(t, os.WriteFile(statePath, []byte("invalid json"), 0600))

		_, err := store.Load("corrupt-test")
		assert.ErrorIs(t, err, state.ErrStateCorrupt)
	})

	t.Run("checksum mismatch", func(t *testing.T) {
		require.NoError(t, store.Save(newRecord("corrupt-test", time.Now())))

		data, err := os.ReadFile(statePath)
		require.NoError(t, err)
		tampered := strings.Replace(string(data), `"files_copied": 0`, `"files_copied": 99`, 1)
		require.NotEqual(t, string(data), tampered)
		require.NoError(t, os.WriteFile(statePath, []byte(tampered), 0600))

		_, err = store.Load("corrupt-test")
		assert.ErrorIs(t, err, state.ErrStateCorrupt)
	})

	t.Run("list skips corrupt files", func(t *testing.T) {
		require.NoError(t, store.Save(newRecord("healthy", time.Now())))

		records, err := store.List(0)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "healthy", records[0].ID)
	})
}

func TestJSONStoreRejectsBadID(t *testing.T) {
	store, err := state.NewJSONStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	assert.Error(t, store.Save(newRecord("", time.Now())))
	assert.Error(t, store.Save(newRecord("../escape", time.Now())))
}

func TestMigration(t *testing.T) {
	tmpDir := t.TempDir()
	logger := testLogger()

	jsonStore, err := state.NewJSONStore(filepath.Join(tmpDir, "json"), logger)
	require.NoError(t, err)
	defer jsonStore.Close()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := []string{"run1", "run2", "run3"}
	for i, id := range ids {
		rec := newRecord(id, base.Add(time.Duration(i)*time.Hour))
		rec.Finish(models.Progress{FilesCopied: i * 10}, false, nil, base.Add(time.Duration(i)*time.Hour+time.Minute))
		require.NoError(t, jsonStore.Save(rec))
	}

	sqliteStore, err := state.NewSQLiteStore(filepath.Join(tmpDir, "runs.db"), logger)
	require.NoError(t, err)
	defer sqliteStore.Close()

	require.NoError(t, jsonStore.Migrate(sqliteStore))

	migrated, err := sqliteStore.List(0)
	require.NoError(t, err)
	require.Len(t, migrated, 3)
	assert.Equal(t, "run3", migrated[0].ID)

	for i, id := range ids {
		rec, err := sqliteStore.Load(id)
		require.NoError(t, err)
		assert.Equal(t, i*10, rec.FilesCopied)
	}
}

func TestNewStore(t *testing.T) {
	logger := testLogger()

	t.Run("json default", func(t *testing.T) {
		dir := t.TempDir()
		store, err := state.NewStore(config.StateConfig{Dir: dir}, logger)
		require.NoError(t, err)
		defer store.Close()

		assert.IsType(t, &state.JSONStore{}, store)
		assert.DirExists(t, filepath.Join(dir, "runs"))
	})

	t.Run("sqlite", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested")
		store, err := state.NewStore(config.StateConfig{Backend: "sqlite", Dir: dir}, logger)
		require.NoError(t, err)
		defer store.Close()

		assert.IsType(t, &state.SQLiteStore{}, store)
		assert.FileExists(t, filepath.Join(dir, "runs.db"))
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := state.NewStore(config.StateConfig{Backend: "redis", Dir: t.TempDir()}, logger)
		assert.ErrorIs(t, err, models.ErrInvalidConfig)
	})
}
