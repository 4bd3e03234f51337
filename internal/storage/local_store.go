package storage

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/TheMichaelB/vaultcopy/internal/events"
	"github.com/TheMichaelB/vaultcopy/internal/models"
)

// DefaultBulkThreshold is the size above which plain copies use the kernel
// copy path.
const DefaultBulkThreshold = 10 * 1024 * 1024

// DefaultBulkExtent is the number of bytes moved per kernel copy call.
const DefaultBulkExtent = 8 * 1024 * 1024

// LocalStore writes the target tree of a copy.
type LocalStore struct {
	baseDir string
	logger  *events.Logger

	bulkThreshold int64
	bulkExtent    int64

	// Security settings
	maxPathLength int
}

// NewLocalStore creates a local file store rooted at baseDir.
func NewLocalStore(baseDir string, logger *events.Logger) (*LocalStore, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, errors.Errorf("resolve base directory: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, models.NewTransferError("mkdir", absPath, err)
	}

	return &LocalStore{
		baseDir:       absPath,
		logger:        logger.WithField("component", "local_store"),
		bulkThreshold: DefaultBulkThreshold,
		bulkExtent:    DefaultBulkExtent,
		maxPathLength: 4096,
	}, nil
}

// SetBulkThreshold sets the size above which plain copies use the bulk path.
func (s *LocalStore) SetBulkThreshold(size int64) {
	s.bulkThreshold = size
}

// SetBulkExtent sets the number of bytes per bulk copy call.
func (s *LocalStore) SetBulkExtent(size int64) {
	if size > 0 {
		s.bulkExtent = size
	}
}

// Abs resolves path inside the store.
func (s *LocalStore) Abs(path string) (string, error) {
	return s.sanitizePath(path)
}

// Exists checks if a file exists.
func (s *LocalStore) Exists(path string) (bool, error) {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return false, errors.Errorf("sanitize path: %w", err)
	}

	_, err = os.Lstat(safePath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, models.NewTransferError("stat", safePath, err)
}

// EnsureDir creates a directory if it doesn't exist.
func (s *LocalStore) EnsureDir(path string) error {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return errors.Errorf("sanitize path: %w", err)
	}

	if err := os.MkdirAll(safePath, 0755); err != nil {
		return models.NewTransferError("mkdir", safePath, err)
	}
	return nil
}

// HasCapacity reports whether need bytes fit on the volume holding path.
// An unknown amount of free space counts as enough.
func (s *LocalStore) HasCapacity(path string, need int64) bool {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return true
	}
	return HasCapacity(safePath, need)
}

// Commit renames the staged temp file onto its target. On failure the temp
// file is left for the caller to Discard.
func (s *LocalStore) Commit(staged *Staged) error {
	if err := os.Rename(staged.TempPath, staged.FinalPath); err != nil {
		return models.NewTransferError("rename", staged.FinalPath, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"path": staged.FinalPath,
		"size": staged.Written,
	}).Debug("File committed")

	return nil
}

// Discard removes the staged temp file.
func (s *LocalStore) Discard(staged *Staged) {
	if staged == nil {
		return
	}
	if err := os.Remove(staged.TempPath); err != nil && !os.IsNotExist(err) {
		s.logger.WithError(err).WithField("path", staged.TempPath).Warn("Failed to remove temp file")
	}
}

// SetModTime updates file modification time.
func (s *LocalStore) SetModTime(path string, modTime time.Time) error {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return errors.Errorf("sanitize path: %w", err)
	}

	return os.Chtimes(safePath, time.Now(), modTime)
}

// Helper methods

// sanitizePath validates and normalizes a file path.
func (s *LocalStore) sanitizePath(path string) (string, error) {
	if strings.ContainsRune(path, 0) {
		return "", errors.New("path contains null bytes")
	}

	normalized := filepath.FromSlash(path)
	cleaned := filepath.Clean(normalized)

	for _, part := range strings.Split(cleaned, string(filepath.Separator)) {
		if part == ".." {
			return "", errors.New("invalid path: contains '..'")
		}
	}

	cleaned = strings.TrimPrefix(cleaned, string(filepath.Separator))
	if cleaned == "." {
		cleaned = ""
	}

	fullPath := filepath.Join(s.baseDir, cleaned)

	prefix := strings.TrimSuffix(s.baseDir, string(filepath.Separator)) + string(filepath.Separator)
	if !strings.HasPrefix(fullPath, prefix) && fullPath != s.baseDir {
		return "", errors.New("path escapes base directory")
	}

	if len(fullPath) > s.maxPathLength {
		return "", errors.Errorf("path too long: %d characters (max: %d)", len(fullPath), s.maxPathLength)
	}

	if err := validatePlatformPath(cleaned); err != nil {
		return "", err
	}

	return fullPath, nil
}

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// validatePlatformPath checks platform-specific path restrictions.
func validatePlatformPath(path string) error {
	if runtime.GOOS != "windows" {
		return nil
	}

	for _, part := range strings.Split(path, string(filepath.Separator)) {
		baseName := strings.TrimSuffix(part, filepath.Ext(part))
		if reservedNames[strings.ToUpper(baseName)] {
			return errors.Errorf("invalid path: contains reserved name '%s'", part)
		}

		if i := strings.IndexAny(part, `<>:"|?*`); i >= 0 {
			return errors.Errorf("invalid path: contains character '%c'", part[i])
		}
	}

	return nil
}
