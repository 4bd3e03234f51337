package state

import (
	"path/filepath"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/TheMichaelB/vaultcopy/internal/config"
	"github.com/TheMichaelB/vaultcopy/internal/events"
	"github.com/TheMichaelB/vaultcopy/internal/models"
)

// Store keeps the history of copy runs.
type Store interface {
	// Save inserts or replaces a run record.
	Save(rec *models.RunRecord) error

	// Load retrieves one run record.
	Load(id string) (*models.RunRecord, error)

	// List returns up to limit records, newest first. A limit of zero
	// returns everything.
	List(limit int) ([]*models.RunRecord, error)

	// Delete removes a run record.
	Delete(id string) error

	// Migrate copies every record into target.
	Migrate(target Store) error

	// Close releases resources.
	Close() error
}

// Errors
var (
	ErrRunNotFound  = errors.Base("run not found")
	ErrStateCorrupt = errors.Base("state file is corrupt")
)

// CurrentSchemaVersion for migrations.
const CurrentSchemaVersion = 1

// runFile wraps a record with store metadata.
type runFile struct {
	*models.RunRecord

	SchemaVersion int       `json:"schema_version"`
	SavedAt       time.Time `json:"saved_at"`
	Checksum      string    `json:"checksum,omitempty"`
}

// NewStore opens the backend selected in cfg.
func NewStore(cfg config.StateConfig, logger *events.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "json":
		return NewJSONStore(filepath.Join(cfg.Dir, "runs"), logger)
	case "sqlite":
		if err := ensureDir(cfg.Dir); err != nil {
			return nil, err
		}
		return NewSQLiteStore(filepath.Join(cfg.Dir, "runs.db"), logger)
	default:
		return nil, errors.Errorf("%w: unknown state backend %q", models.ErrInvalidConfig, cfg.Backend)
	}
}

func sortNewestFirst(records []*models.RunRecord) {
	for i := 1; i < len(records); i++ {
		for j := i; j > 0 && records[j].StartedAt.After(records[j-1].StartedAt); j-- {
			records[j], records[j-1] = records[j-1], records[j]
		}
	}
}
