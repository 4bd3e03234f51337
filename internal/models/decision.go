package models

import (
	"fmt"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"
)

// Resolution is the caller's answer to a target that already exists.
type Resolution int

const (
	ResolutionReplace Resolution = iota
	ResolutionSkip
	ResolutionCancel
)

func (r Resolution) String() string {
	switch r {
	case ResolutionReplace:
		return "replace"
	case ResolutionSkip:
		return "skip"
	case ResolutionCancel:
		return "cancel"
	default:
		return fmt.Sprintf("resolution(%d)", int(r))
	}
}

// ParseResolution accepts the String forms.
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToLower(s) {
	case "replace":
		return ResolutionReplace, nil
	case "skip":
		return ResolutionSkip, nil
	case "cancel":
		return ResolutionCancel, nil
	}
	return ResolutionSkip, errors.Errorf("unknown conflict resolution %q", s)
}

// ErrorDecision is the caller's answer to a failed entry.
type ErrorDecision int

const (
	DecisionRetry ErrorDecision = iota
	DecisionSkip
	DecisionCancel
)

func (d ErrorDecision) String() string {
	switch d {
	case DecisionRetry:
		return "retry"
	case DecisionSkip:
		return "skip"
	case DecisionCancel:
		return "cancel"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// ParseErrorDecision accepts the String forms.
func ParseErrorDecision(s string) (ErrorDecision, error) {
	switch strings.ToLower(s) {
	case "retry":
		return DecisionRetry, nil
	case "skip":
		return DecisionSkip, nil
	case "cancel":
		return DecisionCancel, nil
	}
	return DecisionSkip, errors.Errorf("unknown error decision %q", s)
}

// Progress is a snapshot of a running copy.
type Progress struct {
	Phase        string    `json:"phase"`
	CurrentFile  string    `json:"current_file"`
	BytesCopied  int64     `json:"bytes_copied"`
	TotalBytes   int64     `json:"total_bytes"`
	FilesCopied  int       `json:"files_copied"`
	FilesSkipped int       `json:"files_skipped"`
	FilesFailed  int       `json:"files_failed"`
	DirsCreated  int       `json:"dirs_created"`
	StartTime    time.Time `json:"start_time"`
}

// Percent returns BytesCopied as a share of TotalBytes, capped at 100.
func (p *Progress) Percent() float64 {
	if p.TotalBytes <= 0 {
		return 100
	}
	pct := float64(p.BytesCopied) / float64(p.TotalBytes) * 100
	if pct > 100 {
		return 100
	}
	return pct
}
