package state

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"gitlab.com/tozd/go/errors"

	"github.com/TheMichaelB/vaultcopy/internal/events"
	"github.com/TheMichaelB/vaultcopy/internal/models"
)

// SQLiteStore keeps run records in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger
}

// NewSQLiteStore creates a SQLite run store.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, errors.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "sqlite_state_store"),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, errors.Errorf("initialize database: %w", err)
	}

	return store, nil
}

// initialize creates tables and indexes.
func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS runs (
        id TEXT PRIMARY KEY,
        source_dir TEXT NOT NULL,
        target_dir TEXT NOT NULL,
        encrypt_files INTEGER NOT NULL DEFAULT 0,
        decrypt_files INTEGER NOT NULL DEFAULT 0,
        encrypt_dir_names INTEGER NOT NULL DEFAULT 0,
        decrypt_dir_names INTEGER NOT NULL DEFAULT 0,
        started_at TIMESTAMP NOT NULL,
        finished_at TIMESTAMP,
        files_copied INTEGER NOT NULL DEFAULT 0,
        files_skipped INTEGER NOT NULL DEFAULT 0,
        files_failed INTEGER NOT NULL DEFAULT 0,
        dirs_created INTEGER NOT NULL DEFAULT 0,
        bytes_copied INTEGER NOT NULL DEFAULT 0,
        outcome TEXT NOT NULL DEFAULT '',
        error TEXT
    );

    CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

    CREATE TABLE IF NOT EXISTS schema_info (
        version INTEGER PRIMARY KEY
    );
    `

	if _, err := s.db.Exec(schema); err != nil {
		return errors.Errorf("create schema: %w", err)
	}

	if _, err := s.db.Exec("INSERT OR IGNORE INTO schema_info (version) VALUES (?)", CurrentSchemaVersion); err != nil {
		return errors.Errorf("record schema version: %w", err)
	}

	return nil
}

const runColumns = `id, source_dir, target_dir, encrypt_files, decrypt_files,
        encrypt_dir_names, decrypt_dir_names, started_at, finished_at,
        files_copied, files_skipped, files_failed, dirs_created, bytes_copied,
        outcome, error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.RunRecord, error) {
	var rec models.RunRecord
	var finished sql.NullTime
	var errText sql.NullString
	var outcome string

	err := row.Scan(&rec.ID, &rec.SourceDir, &rec.TargetDir,
		&rec.EncryptFiles, &rec.DecryptFiles, &rec.EncryptDirNames, &rec.DecryptDirNames,
		&rec.StartedAt, &finished,
		&rec.FilesCopied, &rec.FilesSkipped, &rec.FilesFailed, &rec.DirsCreated, &rec.BytesCopied,
		&outcome, &errText)
	if err != nil {
		return nil, err
	}

	rec.Outcome = models.RunOutcome(outcome)
	if finished.Valid {
		rec.FinishedAt = finished.Time
	}
	if errText.Valid {
		rec.Error = errText.String
	}
	return &rec, nil
}

// Load retrieves a run record.
func (s *SQLiteStore) Load(id string) (*models.RunRecord, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)

	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, errors.Errorf("query run: %w", err)
	}
	return rec, nil
}

// Save inserts or replaces a run record.
func (s *SQLiteStore) Save(rec *models.RunRecord) error {
	s.logger.WithFields(map[string]interface{}{
		"run_id":  rec.ID,
		"outcome": string(rec.Outcome),
	}).Debug("Saving run to SQLite")

	var finished sql.NullTime
	if !rec.FinishedAt.IsZero() {
		finished = sql.NullTime{Time: rec.FinishedAt.UTC(), Valid: true}
	}
	var errText sql.NullString
	if rec.Error != "" {
		errText = sql.NullString{String: rec.Error, Valid: true}
	}

	_, err := s.db.Exec(`
        INSERT INTO runs (`+runColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            finished_at = excluded.finished_at,
            files_copied = excluded.files_copied,
            files_skipped = excluded.files_skipped,
            files_failed = excluded.files_failed,
            dirs_created = excluded.dirs_created,
            bytes_copied = excluded.bytes_copied,
            outcome = excluded.outcome,
            error = excluded.error
    `, rec.ID, rec.SourceDir, rec.TargetDir,
		rec.EncryptFiles, rec.DecryptFiles, rec.EncryptDirNames, rec.DecryptDirNames,
		rec.StartedAt.UTC(), finished,
		rec.FilesCopied, rec.FilesSkipped, rec.FilesFailed, rec.DirsCreated, rec.BytesCopied,
		string(rec.Outcome), errText)
	if err != nil {
		return errors.Errorf("upsert run: %w", err)
	}

	return nil
}

// List returns run records, newest first.
func (s *SQLiteStore) List(limit int) ([]*models.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []*models.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, errors.Errorf("scan run row: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Delete removes a run record.
func (s *SQLiteStore) Delete(id string) error {
	if _, err := s.db.Exec("DELETE FROM runs WHERE id = ?", id); err != nil {
		return errors.Errorf("delete run: %w", err)
	}
	return nil
}

// Migrate copies all records to another store.
func (s *SQLiteStore) Migrate(target Store) error {
	records, err := s.List(0)
	if err != nil {
		return err
	}

	start := time.Now()
	for _, rec := range records {
		if err := target.Save(rec); err != nil {
			return errors.Errorf("save run %s: %w", rec.ID, err)
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"count":    len(records),
		"duration": time.Since(start).String(),
	}).Info("Migrated runs")

	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
