package storage

import (
	"context"
	"time"
)

// TargetStore is the destination side of a copy. Paths are relative to the
// store root and use forward or native separators.
type TargetStore interface {
	// Abs resolves a relative path after sanitizing it.
	Abs(path string) (string, error)

	// EnsureDir creates a directory and its parents.
	EnsureDir(path string) error

	// Exists checks if a file or directory exists.
	Exists(path string) (bool, error)

	// HasCapacity reports whether need bytes fit next to path.
	HasCapacity(path string, need int64) bool

	// Transfer writes the source file to a temporary file next to
	// req.Target.
	Transfer(ctx context.Context, req TransferRequest) (*Staged, error)

	// Commit moves a staged file onto its target name, replacing any
	// existing file.
	Commit(staged *Staged) error

	// Discard removes a staged file that was not committed.
	Discard(staged *Staged)

	// SetModTime updates file modification time.
	SetModTime(path string, modTime time.Time) error
}

var _ TargetStore = (*LocalStore)(nil)
