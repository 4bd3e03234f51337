package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/TheMichaelB/vaultcopy/internal/crypto"
	"github.com/TheMichaelB/vaultcopy/internal/models"
)

// Mode selects what happens to file contents on the way through.
type Mode int

const (
	ModePlain Mode = iota
	ModeEncrypt
	ModeDecrypt
)

func (m Mode) String() string {
	switch m {
	case ModePlain:
		return "plain"
	case ModeEncrypt:
		return "encrypt"
	case ModeDecrypt:
		return "decrypt"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// TransferRequest describes one file transfer.
type TransferRequest struct {
	Source   string // absolute source path
	Target   string // final path relative to the store root
	Size     int64  // source size, -1 if unknown
	Mode     Mode
	Password string
	Codec    crypto.StreamCodec
	OnBytes  func(int64)
}

// Staged is a fully written temp file waiting to be committed.
type Staged struct {
	TempPath  string
	FinalPath string
	Written   int64
	Bulk      bool
}

// BufferSize returns the chunk size for a plain buffered copy.
func BufferSize(size int64) int {
	if size >= 0 && size < 1024*1024 {
		return 64 * 1024
	}
	return 256 * 1024
}

// Transfer copies req.Source into a temp file beside req.Target. Plain
// copies above the bulk threshold go through the kernel copy path; all
// other copies are buffered. Context cancellation is observed between
// chunks. The temp file is removed on any failure.
func (s *LocalStore) Transfer(ctx context.Context, req TransferRequest) (*Staged, error) {
	finalPath, err := s.sanitizePath(req.Target)
	if err != nil {
		return nil, errors.Errorf("sanitize path: %w", err)
	}

	src, err := os.Open(req.Source)
	if err != nil {
		return nil, models.NewTransferError("open", req.Source, err)
	}
	defer src.Close()

	perm := os.FileMode(0644)
	if info, err := src.Stat(); err == nil {
		perm = info.Mode().Perm()
		if req.Size < 0 {
			req.Size = info.Size()
		}
	}

	tempPath := fmt.Sprintf("%s.tmp.%d", finalPath, time.Now().UnixNano())
	dst, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, perm|0200)
	if err != nil {
		return nil, models.NewTransferError("create", tempPath, err)
	}

	staged := &Staged{TempPath: tempPath, FinalPath: finalPath}
	success := false
	defer func() {
		if !success {
			dst.Close()
			_ = os.Remove(tempPath)
		}
	}()

	counted := func(n int64) {
		staged.Written += n
		if req.OnBytes != nil {
			req.OnBytes(n)
		}
	}

	logger := s.logger.WithFields(map[string]interface{}{
		"source": req.Source,
		"target": req.Target,
		"mode":   req.Mode.String(),
		"size":   req.Size,
	})

	switch {
	case req.Mode == ModeEncrypt || req.Mode == ModeDecrypt:
		if req.Codec == nil {
			return nil, errors.New("transfer: codec required for encrypt or decrypt")
		}
		if err := s.transferCrypto(ctx, src, dst, req, counted); err != nil {
			return nil, err
		}

	case req.Size > s.bulkThreshold:
		staged.Bulk = true
		logger.Debug("Using bulk copy")
		if err := bulkCopy(ctx, dst, src, req.Size, s.bulkExtent, counted); err != nil {
			return nil, wrapCopyError(req.Source, err)
		}

	default:
		if err := bufferedCopy(ctx, dst, src, BufferSize(req.Size), counted); err != nil {
			return nil, wrapCopyError(req.Source, err)
		}
	}

	if err := dst.Sync(); err != nil {
		return nil, models.NewTransferError("sync", tempPath, err)
	}
	if err := dst.Close(); err != nil {
		return nil, models.NewTransferError("close", tempPath, err)
	}

	success = true
	logger.WithField("written", staged.Written).Debug("Transfer staged")

	return staged, nil
}

func (s *LocalStore) transferCrypto(ctx context.Context, src io.Reader, dst io.Writer, req TransferRequest, counted func(int64)) error {
	var err error
	if req.Mode == ModeEncrypt {
		err = req.Codec.Encrypt(ctx, src, dst, req.Password, req.Size, counted)
	} else {
		err = req.Codec.Decrypt(ctx, src, dst, req.Password, req.Size, counted)
	}

	if err == nil {
		return nil
	}

	var se *models.SecurityError
	if errors.As(err, &se) {
		se.Path = req.Source
		return err
	}
	var fe *models.FormatError
	if errors.As(err, &fe) {
		fe.Path = req.Source
		return err
	}
	return wrapCopyError(req.Source, err)
}

func wrapCopyError(path string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, crypto.ErrTooLarge) {
		return err
	}
	return models.NewTransferError("copy", path, err)
}

// bufferedCopy copies src to dst in chunks of size bufSize.
func bufferedCopy(ctx context.Context, dst io.Writer, src io.Reader, bufSize int, onBytes func(int64)) error {
	buf := make([]byte, bufSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return errors.Errorf("write: %w", err)
			}
			onBytes(int64(n))
		}

		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return errors.Errorf("read: %w", rerr)
		}
	}
}

// copyExtents is the portable bulk path: io.CopyN in extents of size
// extent with a cancellation check between them.
func copyExtents(ctx context.Context, dst io.Writer, src io.Reader, remaining, extent int64, onBytes func(int64)) error {
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := io.CopyN(dst, src, min(extent, remaining))
		if n > 0 {
			onBytes(n)
			remaining -= n
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}

	// The source may have grown since it was sized.
	return bufferedCopy(ctx, dst, src, BufferSize(-1), onBytes)
}
