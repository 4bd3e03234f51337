package replicate

import "github.com/TheMichaelB/vaultcopy/internal/models"

// Callbacks is how the engine asks its caller for decisions and reports what
// it is doing. Every method is called synchronously on the walking goroutine
// and must return before the walk continues.
type Callbacks interface {
	// OnConflict is called when target already exists.
	OnConflict(target string) models.Resolution

	// OnError is called when an entry could not be copied.
	OnError(source string, err error) models.ErrorDecision

	// OnProgress reports cumulative bytes for the whole run.
	OnProgress(label string, copied, total int64)

	// OnLog receives short user facing messages.
	OnLog(msg string)

	// IsCancelled is polled before every entry and between chunks.
	IsCancelled() bool
}

// CallbackFuncs adapts plain functions to Callbacks. Nil fields fall back to
// skipping conflicts and failures, never cancelling, and dropping progress
// and log lines.
type CallbackFuncs struct {
	Conflict  func(target string) models.Resolution
	Error     func(source string, err error) models.ErrorDecision
	Progress  func(label string, copied, total int64)
	Log       func(msg string)
	Cancelled func() bool
}

var _ Callbacks = CallbackFuncs{}

func (f CallbackFuncs) OnConflict(target string) models.Resolution {
	if f.Conflict == nil {
		return models.ResolutionSkip
	}
	return f.Conflict(target)
}

func (f CallbackFuncs) OnError(source string, err error) models.ErrorDecision {
	if f.Error == nil {
		return models.DecisionSkip
	}
	return f.Error(source, err)
}

func (f CallbackFuncs) OnProgress(label string, copied, total int64) {
	if f.Progress != nil {
		f.Progress(label, copied, total)
	}
}

func (f CallbackFuncs) OnLog(msg string) {
	if f.Log != nil {
		f.Log(msg)
	}
}

func (f CallbackFuncs) IsCancelled() bool {
	return f.Cancelled != nil && f.Cancelled()
}
