package replicate

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/TheMichaelB/vaultcopy/internal/config"
	"github.com/TheMichaelB/vaultcopy/internal/crypto"
	"github.com/TheMichaelB/vaultcopy/internal/events"
	"github.com/TheMichaelB/vaultcopy/internal/models"
	"github.com/TheMichaelB/vaultcopy/internal/names"
	"github.com/TheMichaelB/vaultcopy/internal/storage"
)

// ErrRunInProgress is returned when Run is called on a busy engine.
var ErrRunInProgress = errors.Base("copy already in progress")

// Phases reported in models.Progress.
const (
	PhaseScanning  = "scanning"
	PhaseCopying   = "copying"
	PhaseCompleted = "completed"
	PhaseCancelled = "cancelled"
)

// EngineConfig contains copy tuning.
type EngineConfig struct {
	MaxRetries       int
	BulkThreshold    int64
	BulkExtent       int64
	MappingFile      string
	MappingCacheSize int
}

// EngineConfigFrom picks the engine settings out of the transfer section.
func EngineConfigFrom(cfg config.TransferConfig) *EngineConfig {
	return &EngineConfig{
		MaxRetries:       cfg.MaxRetries,
		BulkThreshold:    cfg.BulkThreshold,
		BulkExtent:       cfg.BulkExtent,
		MappingFile:      cfg.MappingFile,
		MappingCacheSize: cfg.MappingCacheSize,
	}
}

// StoreFactory opens the target side of a run.
type StoreFactory func(root string, logger *events.Logger) (storage.TargetStore, error)

// Result is what a finished run reports.
type Result struct {
	RunID     string
	Progress  models.Progress
	Cancelled bool
}

// Engine implements the tree copy algorithm.
type Engine struct {
	codec  *crypto.Codec
	logger *events.Logger
	config EngineConfig

	newStore StoreFactory

	// Progress tracking
	progress atomic.Value // *models.Progress

	mu       sync.Mutex
	running  bool
	cancelFn context.CancelFunc
}

// NewEngine creates a copy engine.
func NewEngine(codec *crypto.Codec, config *EngineConfig, logger *events.Logger) *Engine {
	if codec == nil {
		codec = crypto.DefaultCodec()
	}

	e := &Engine{
		codec:  codec,
		logger: logger.WithField("component", "copy_engine"),
		config: *config,
	}
	if e.config.MaxRetries <= 0 {
		e.config.MaxRetries = 16
	}
	e.newStore = e.localStore

	return e
}

// SetStoreFactory replaces how the target store is opened.
func (e *Engine) SetStoreFactory(f StoreFactory) {
	e.newStore = f
}

func (e *Engine) localStore(root string, logger *events.Logger) (storage.TargetStore, error) {
	store, err := storage.NewLocalStore(root, logger)
	if err != nil {
		return nil, err
	}
	if e.config.BulkThreshold > 0 {
		store.SetBulkThreshold(e.config.BulkThreshold)
	}
	store.SetBulkExtent(e.config.BulkExtent)
	return store, nil
}

// GetProgress returns current progress.
func (e *Engine) GetProgress() *models.Progress {
	if p := e.progress.Load(); p != nil {
		return p.(*models.Progress)
	}
	return nil
}

// Cancel stops an ongoing run at the next check point.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancelFn != nil {
		e.logger.Info("Cancelling copy")
		e.cancelFn()
	}
}

// Run copies opts.SourceDir into opts.TargetDir. Invalid options are
// returned before anything is written. Per entry failures go through cb and
// never end the run on their own; a cancelled run returns a nil error with
// Result.Cancelled set.
func (e *Engine) Run(ctx context.Context, opts *models.CopyOptions, cb Callbacks) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if cb == nil {
		cb = CallbackFuncs{}
	}

	info, err := os.Stat(opts.SourceDir)
	if err != nil {
		return nil, &models.ValidationError{Field: "source", Message: err.Error()}
	}
	if !info.IsDir() {
		return nil, &models.ValidationError{Field: "source", Message: "source is not a directory"}
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, ErrRunInProgress
	}
	e.running = true

	ctx, cancel := context.WithCancel(ctx)
	e.cancelFn = cancel
	e.mu.Unlock()

	defer func() {
		cancel()
		e.mu.Lock()
		e.running = false
		e.cancelFn = nil
		e.mu.Unlock()
	}()

	logger := e.logger
	if id := events.GetRunID(ctx); id != "" {
		logger = logger.WithField("run_id", id)
	}

	store, err := e.newStore(opts.TargetDir, logger)
	if err != nil {
		return nil, errors.Errorf("open target: %w", err)
	}

	mapping, err := names.NewMapping(e.config.MappingFile, e.config.MappingCacheSize)
	if err != nil {
		return nil, err
	}

	r := &run{
		engine:  e,
		ctx:     ctx,
		cancel:  cancel,
		opts:    opts,
		cb:      cb,
		store:   store,
		obf:     names.NewObfuscator(opts, e.codec, mapping, logger),
		mapping: mapping,
		logger:  logger,
		progress: models.Progress{
			Phase:     PhaseScanning,
			StartTime: time.Now(),
		},
	}
	r.publish()

	logger.WithFields(map[string]interface{}{
		"source":        opts.SourceDir,
		"target":        opts.TargetDir,
		"encrypt_files": opts.EncryptFiles,
		"decrypt_files": opts.DecryptFiles,
		"encrypt_dirs":  opts.EncryptDirNames,
		"decrypt_dirs":  opts.DecryptDirNames,
	}).Info("Starting copy")

	r.progress.TotalBytes = r.scan()
	r.progress.Phase = PhaseCopying
	r.publish()

	r.walk()

	if r.cancelled {
		r.progress.Phase = PhaseCancelled
		cb.OnLog("Copy cancelled")
	} else {
		r.progress.Phase = PhaseCompleted
	}
	r.progress.CurrentFile = ""
	r.publish()

	logger.WithFields(map[string]interface{}{
		"duration":      time.Since(r.progress.StartTime).String(),
		"files_copied":  r.progress.FilesCopied,
		"files_skipped": r.progress.FilesSkipped,
		"files_failed":  r.progress.FilesFailed,
		"bytes":         r.progress.BytesCopied,
		"cancelled":     r.cancelled,
	}).Info("Copy finished")

	return &Result{
		RunID:     events.GetRunID(ctx),
		Progress:  r.progress,
		Cancelled: r.cancelled,
	}, nil
}
