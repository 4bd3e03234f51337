package replicate

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gitlab.com/tozd/go/errors"

	"github.com/TheMichaelB/vaultcopy/internal/events"
	"github.com/TheMichaelB/vaultcopy/internal/models"
	"github.com/TheMichaelB/vaultcopy/internal/state"
)

// Service provides high-level copy operations and keeps the run history.
type Service struct {
	engine *Engine
	state  state.Store
	logger *events.Logger

	now func() time.Time
}

// NewService creates a copy service. history may be nil.
func NewService(engine *Engine, history state.Store, logger *events.Logger) *Service {
	return &Service{
		engine: engine,
		state:  history,
		logger: logger.WithField("service", "replicate"),
		now:    time.Now,
	}
}

// Copy runs the engine under a fresh run ID and records the outcome.
// Rejected options are returned without a history entry.
func (s *Service) Copy(ctx context.Context, opts *models.CopyOptions, cb Callbacks) (*Result, error) {
	id := uuid.NewString()
	ctx = events.WithRunID(events.WithLogger(ctx, s.logger), id)

	rec := models.NewRunRecord(id, opts, s.now())

	result, err := s.engine.Run(ctx, opts, cb)
	var ve *models.ValidationError
	if errors.As(err, &ve) || errors.Is(err, ErrRunInProgress) {
		return nil, err
	}

	var progress models.Progress
	cancelled := false
	if result != nil {
		progress = result.Progress
		cancelled = result.Cancelled
	}
	rec.Finish(progress, cancelled, err, s.now())
	s.record(rec)

	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) record(rec *models.RunRecord) {
	if s.state == nil {
		return
	}
	if err := s.state.Save(rec); err != nil {
		s.logger.WithError(err).WithField("run_id", rec.ID).Warn("Failed to save run history")
	}
}

// History returns recent runs, newest first.
func (s *Service) History(limit int) ([]*models.RunRecord, error) {
	if s.state == nil {
		return nil, nil
	}
	return s.state.List(limit)
}

// GetProgress returns copy progress.
func (s *Service) GetProgress() *models.Progress {
	return s.engine.GetProgress()
}

// Cancel stops an ongoing copy.
func (s *Service) Cancel() {
	s.engine.Cancel()
}
