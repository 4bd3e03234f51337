package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/TheMichaelB/vaultcopy/internal/events"
	"github.com/TheMichaelB/vaultcopy/internal/models"
)

// JSONStore keeps one JSON file per run.
type JSONStore struct {
	baseDir string
	logger  *events.Logger

	mu sync.RWMutex
}

// NewJSONStore creates a JSON-based run store.
func NewJSONStore(baseDir string, logger *events.Logger) (*JSONStore, error) {
	if err := ensureDir(baseDir); err != nil {
		return nil, err
	}

	return &JSONStore{
		baseDir: baseDir,
		logger:  logger.WithField("component", "json_state_store"),
	}, nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Errorf("create state directory: %w", err)
	}
	return nil
}

// Load reads a run record.
func (s *JSONStore) Load(id string) (*models.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.load(id)
}

func (s *JSONStore) load(id string) (*models.RunRecord, error) {
	path := s.runPath(id)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrRunNotFound
		}
		return nil, errors.Errorf("read state file: %w", err)
	}

	var wrapper runFile
	if err := json.Unmarshal(data, &wrapper); err != nil || wrapper.RunRecord == nil {
		return nil, ErrStateCorrupt
	}

	if wrapper.Checksum != "" {
		calculated, err := checksum(wrapper)
		if err != nil {
			return nil, err
		}
		if calculated != wrapper.Checksum {
			s.logger.WithFields(map[string]interface{}{
				"run_id":   id,
				"expected": wrapper.Checksum,
				"actual":   calculated,
			}).Error("State checksum mismatch")
			return nil, ErrStateCorrupt
		}
	}

	if wrapper.SchemaVersion != CurrentSchemaVersion {
		s.logger.WithField("version", wrapper.SchemaVersion).Warn("State schema version mismatch")
	}

	return wrapper.RunRecord, nil
}

// Save writes a run record atomically.
func (s *JSONStore) Save(rec *models.RunRecord) error {
	if rec.ID == "" || strings.ContainsAny(rec.ID, `/\`) {
		return errors.Errorf("invalid run id %q", rec.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	wrapper := runFile{
		RunRecord:     rec,
		SchemaVersion: CurrentSchemaVersion,
		SavedAt:       time.Now().UTC(),
	}

	sum, err := checksum(wrapper)
	if err != nil {
		return err
	}
	wrapper.Checksum = sum

	jsonData, err := json.MarshalIndent(wrapper, "", "  ")
	if err != nil {
		return errors.Errorf("marshal run: %w", err)
	}

	path := s.runPath(rec.ID)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, jsonData, 0600); err != nil {
		return errors.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Errorf("rename state file: %w", err)
	}

	s.logger.WithField("run_id", rec.ID).Debug("Saved run")
	return nil
}

// List returns run records, newest first.
func (s *JSONStore) List(limit int) ([]*models.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, errors.Errorf("read state directory: %w", err)
	}

	var records []*models.RunRecord
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}

		rec, err := s.load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			s.logger.WithError(err).WithField("file", name).Warn("Skipping unreadable run")
			continue
		}
		records = append(records, rec)
	}

	sortNewestFirst(records)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Delete removes a run record.
func (s *JSONStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.runPath(id)); err != nil && !os.IsNotExist(err) {
		return errors.Errorf("delete run: %w", err)
	}
	return nil
}

// Migrate copies all records to another store.
func (s *JSONStore) Migrate(target Store) error {
	records, err := s.List(0)
	if err != nil {
		return errors.Errorf("list runs: %w", err)
	}

	s.logger.WithField("count", len(records)).Info("Migrating runs")

	for _, rec := range records {
		if err := target.Save(rec); err != nil {
			return errors.Errorf("save run %s: %w", rec.ID, err)
		}
	}

	return nil
}

// Close releases resources.
func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) runPath(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}

// checksum hashes the wrapper with its checksum field cleared.
func checksum(w runFile) (string, error) {
	w.Checksum = ""
	data, err := json.Marshal(w)
	if err != nil {
		return "", errors.Errorf("marshal run for checksum: %w", err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}
