package replicate

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"gitlab.com/tozd/go/errors"

	"github.com/TheMichaelB/vaultcopy/internal/events"
	"github.com/TheMichaelB/vaultcopy/internal/models"
	"github.com/TheMichaelB/vaultcopy/internal/names"
	"github.com/TheMichaelB/vaultcopy/internal/storage"
)

// run is the state of one Engine.Run call. It is only touched by the
// walking goroutine.
type run struct {
	engine *Engine
	ctx    context.Context
	cancel context.CancelFunc

	opts    *models.CopyOptions
	cb      Callbacks
	store   storage.TargetStore
	obf     *names.Obfuscator
	mapping *names.Mapping
	logger  *events.Logger

	progress  models.Progress
	cancelled bool
}

// node is one source entry waiting to be visited.
type node struct {
	source       string // absolute source path
	parent       string // absolute source parent
	rel          string // slash separated, relative to the source root
	name         string
	targetParent string // relative to the target root
	isDir        bool
}

func (r *run) publish() {
	snapshot := r.progress
	r.engine.progress.Store(&snapshot)
}

func (r *run) stop() {
	r.cancelled = true
	r.cancel()
}

// stopped reports whether the run should end, polling the caller.
func (r *run) stopped() bool {
	if r.cancelled {
		return true
	}
	if r.ctx.Err() != nil || r.cb.IsCancelled() {
		r.stop()
		return true
	}
	return false
}

func (r *run) relPath(p string) string {
	rel, err := filepath.Rel(r.opts.SourceDir, p)
	if err != nil {
		return models.NormalizePath(p)
	}
	return models.NormalizePath(rel)
}

// skipReason returns why an entry is left out of the copy, or "" to keep it.
func (r *run) skipReason(rel, name string, typ fs.FileMode) string {
	switch {
	case typ&fs.ModeSymlink != 0:
		return "symlink"
	case !typ.IsDir() && !typ.IsRegular():
		return "not a regular file"
	case r.opts.Excluded(rel):
		return "excluded"
	case !typ.IsDir() && r.obf.Active() && r.mapping.IsSidecar(name):
		return "name mapping"
	}
	return ""
}

// scan adds up the sizes of every file the walk will visit.
func (r *run) scan() int64 {
	var total int64
	root := r.opts.SourceDir

	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			r.logger.WithError(err).WithField("path", p).Debug("Scan skipped entry")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if p == root {
			return nil
		}
		if r.ctx.Err() != nil {
			return r.ctx.Err()
		}

		if r.skipReason(r.relPath(p), d.Name(), d.Type()) != "" {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})

	r.logger.WithField("total_bytes", total).Debug("Scan complete")
	return total
}

// walk visits the tree depth first in lexical order. Directories are
// created before anything inside them.
func (r *run) walk() {
	root := node{source: r.opts.SourceDir, isDir: true}

	var stack []node
	push := func(nodes []node) {
		for i := len(nodes) - 1; i >= 0; i-- {
			stack = append(stack, nodes[i])
		}
	}
	push(r.children(root, ""))

	for len(stack) > 0 {
		if r.stopped() {
			return
		}

		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !n.isDir {
			r.visitFile(n)
			continue
		}

		target, ok := r.visitDir(n)
		if ok && !r.cancelled {
			push(r.children(n, target))
		}
	}
}

// children lists dir. Entries come back sorted by name.
func (r *run) children(dir node, targetDir string) []node {
	var entries []os.DirEntry
	ok := r.attempt(dir.source, func(int) error {
		var err error
		entries, err = os.ReadDir(dir.source)
		if err != nil {
			return models.NewTransferError("readdir", dir.source, err)
		}
		return nil
	})
	if !ok {
		return nil
	}

	nodes := make([]node, 0, len(entries))
	for _, entry := range entries {
		rel := path.Join(dir.rel, entry.Name())
		source := filepath.Join(dir.source, entry.Name())

		switch reason := r.skipReason(rel, entry.Name(), entry.Type()); reason {
		case "":
		case "symlink", "not a regular file":
			r.cb.OnLog(fmt.Sprintf("Skipping %s: %s", source, reason))
			continue
		default:
			r.logger.WithFields(map[string]interface{}{
				"path":   source,
				"reason": reason,
			}).Debug("Skipping entry")
			continue
		}

		nodes = append(nodes, node{
			source:       source,
			parent:       dir.source,
			rel:          rel,
			name:         entry.Name(),
			targetParent: targetDir,
			isDir:        entry.IsDir(),
		})
	}
	return nodes
}

// visitDir creates the target directory for n and records its short name
// when names are being encrypted. It returns the target path relative to
// the target root.
func (r *run) visitDir(n node) (string, bool) {
	r.progress.CurrentFile = n.rel
	r.publish()

	var target string
	ok := r.attempt(n.source, func(int) error {
		name, err := r.obf.TargetDirName(n.parent, n.name)
		if err != nil {
			return err
		}
		target = path.Join(n.targetParent, name)

		existed, err := r.store.Exists(target)
		if err != nil {
			return err
		}
		if err := r.store.EnsureDir(target); err != nil {
			return err
		}
		if !existed {
			r.progress.DirsCreated++
		}

		if r.opts.EncryptDirNames {
			parent, err := r.store.Abs(n.targetParent)
			if err != nil {
				return err
			}
			if err := r.obf.Record(parent, name, n.name); err != nil {
				return models.NewTransferError("record name", r.mapping.Path(parent), err)
			}
		}
		return nil
	})

	if ok {
		r.logger.WithFields(map[string]interface{}{
			"source": n.rel,
			"target": target,
		}).Debug("Directory ready")
	}
	return target, ok
}

// mode picks what happens to the contents of a file. Sidecars only reach
// the walk when no name transform is active and are copied as they are.
func (r *run) mode(name string) storage.Mode {
	switch {
	case r.mapping.IsSidecar(name):
		return storage.ModePlain
	case r.opts.EncryptFiles:
		return storage.ModeEncrypt
	case r.opts.DecryptFiles:
		return storage.ModeDecrypt
	default:
		return storage.ModePlain
	}
}

// visitFile copies one file. A retry starts again from the conflict check.
func (r *run) visitFile(n node) {
	r.progress.CurrentFile = n.rel
	r.publish()

	mode := r.mode(n.name)
	leaf := n.name
	if mode != storage.ModePlain {
		leaf = names.FileTargetName(n.name, r.opts.EncryptFiles, r.opts.DecryptFiles)
	}
	target := path.Join(n.targetParent, leaf)

	spaceWarned := false

	ok := r.attempt(n.source, func(int) error {
		info, err := os.Lstat(n.source)
		if err != nil {
			return models.NewTransferError("stat", n.source, err)
		}

		exists, err := r.store.Exists(target)
		if err != nil {
			return err
		}
		if exists {
			abs, _ := r.store.Abs(target)
			resolution := r.cb.OnConflict(abs)
			r.logger.WithFields(map[string]interface{}{
				"target":     abs,
				"resolution": resolution.String(),
			}).Info("Target exists")

			switch resolution {
			case models.ResolutionSkip:
				r.progress.FilesSkipped++
				r.cb.OnLog("Skipped existing " + abs)
				return nil
			case models.ResolutionCancel:
				r.stop()
				return nil
			}
		}

		// A retry right after the warning goes ahead regardless. Later
		// retries check again.
		if spaceWarned {
			spaceWarned = false
		} else if !r.store.HasCapacity(target, info.Size()) {
			spaceWarned = true
			return errors.Errorf("%w: %s needs %d bytes", models.ErrInsufficientSpace, target, info.Size())
		}

		var attemptBytes int64
		staged, err := r.store.Transfer(r.ctx, storage.TransferRequest{
			Source:   n.source,
			Target:   target,
			Size:     info.Size(),
			Mode:     mode,
			Password: r.opts.Password,
			Codec:    r.engine.codec,
			OnBytes: func(k int64) {
				attemptBytes += k
				r.addBytes(n.source, k)
			},
		})
		if err == nil {
			if err = r.store.Commit(staged); err != nil {
				r.store.Discard(staged)
			}
		}
		if err != nil {
			// Bytes already reported stay counted, so the total grows.
			r.progress.TotalBytes += attemptBytes
			return err
		}

		if err := r.store.SetModTime(target, info.ModTime()); err != nil {
			r.logger.WithError(err).WithField("target", target).Debug("Could not set modification time")
		}

		r.progress.FilesCopied++
		r.publish()

		switch mode {
		case storage.ModeEncrypt:
			r.cb.OnLog("Encrypted " + target)
		case storage.ModeDecrypt:
			r.cb.OnLog("Decrypted " + target)
		}
		return nil
	})

	if !ok && !r.cancelled {
		r.progress.FilesFailed++
		r.publish()
	}
}

func (r *run) addBytes(label string, n int64) {
	r.progress.BytesCopied += n
	r.progress.CurrentFile = label
	r.publish()

	r.cb.OnProgress(label, r.progress.BytesCopied, r.progress.TotalBytes)
	if r.cb.IsCancelled() {
		r.stop()
	}
}

// attempt runs fn until it succeeds or the caller decides otherwise. It
// reports whether fn succeeded.
func (r *run) attempt(source string, fn func(try int) error) bool {
	for try := 0; ; try++ {
		err := fn(try)
		if err == nil {
			return true
		}
		if r.stopped() {
			return false
		}

		r.logger.WithError(err).WithFields(map[string]interface{}{
			"source": source,
			"code":   models.Code(err),
			"try":    try + 1,
		}).Warn("Entry failed")

		switch r.cb.OnError(source, err) {
		case models.DecisionRetry:
			if try >= r.engine.config.MaxRetries {
				r.cb.OnLog(fmt.Sprintf("Giving up on %s after %d attempts", source, try+1))
				return false
			}
			r.cb.OnLog("Retrying " + source)
		case models.DecisionCancel:
			r.stop()
			return false
		default:
			r.cb.OnLog(fmt.Sprintf("Skipped %s: %s", source, models.Describe(err)))
			return false
		}
	}
}
