package models

import (
	"fmt"
	"time"
)

// RunOutcome is how a copy run ended.
type RunOutcome string

const (
	OutcomeCompleted RunOutcome = "completed"
	OutcomeCancelled RunOutcome = "cancelled"
	OutcomeFailed    RunOutcome = "failed"
)

// RunRecord is the history entry kept for one copy run. It never holds the
// password.
type RunRecord struct {
	ID              string     `json:"id"`
	SourceDir       string     `json:"source_dir"`
	TargetDir       string     `json:"target_dir"`
	EncryptFiles    bool       `json:"encrypt_files"`
	DecryptFiles    bool       `json:"decrypt_files"`
	EncryptDirNames bool       `json:"encrypt_dir_names"`
	DecryptDirNames bool       `json:"decrypt_dir_names"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      time.Time  `json:"finished_at"`
	FilesCopied     int        `json:"files_copied"`
	FilesSkipped    int        `json:"files_skipped"`
	FilesFailed     int        `json:"files_failed"`
	DirsCreated     int        `json:"dirs_created"`
	BytesCopied     int64      `json:"bytes_copied"`
	Outcome         RunOutcome `json:"outcome"`
	Error           string     `json:"error,omitempty"`
}

// NewRunRecord starts a record for opts.
func NewRunRecord(id string, opts *CopyOptions, started time.Time) *RunRecord {
	return &RunRecord{
		ID:              id,
		SourceDir:       opts.SourceDir,
		TargetDir:       opts.TargetDir,
		EncryptFiles:    opts.EncryptFiles,
		DecryptFiles:    opts.DecryptFiles,
		EncryptDirNames: opts.EncryptDirNames,
		DecryptDirNames: opts.DecryptDirNames,
		StartedAt:       started,
	}
}

// Finish copies the final counters and outcome into the record.
func (r *RunRecord) Finish(p Progress, cancelled bool, err error, finished time.Time) {
	r.FinishedAt = finished
	r.FilesCopied = p.FilesCopied
	r.FilesSkipped = p.FilesSkipped
	r.FilesFailed = p.FilesFailed
	r.DirsCreated = p.DirsCreated
	r.BytesCopied = p.BytesCopied

	switch {
	case err != nil:
		r.Outcome = OutcomeFailed
		r.Error = err.Error()
	case cancelled:
		r.Outcome = OutcomeCancelled
	default:
		r.Outcome = OutcomeCompleted
	}
}

// Duration returns how long the run took.
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Mode summarizes the transform flags, for listings.
func (r *RunRecord) Mode() string {
	files := "copy"
	switch {
	case r.EncryptFiles:
		files = "encrypt"
	case r.DecryptFiles:
		files = "decrypt"
	}

	switch {
	case r.EncryptDirNames:
		return fmt.Sprintf("%s+dirnames", files)
	case r.DecryptDirNames:
		return fmt.Sprintf("%s-dirnames", files)
	}
	return files
}
