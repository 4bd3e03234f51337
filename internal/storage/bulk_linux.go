//go:build linux

package storage

import (
	"context"
	"os"

	"golang.org/x/sys/unix"
)

// bulkCopy moves size bytes with copy_file_range, letting the kernel skip
// the user space round trip. File systems that refuse the call fall back to
// extent-sized io.CopyN.
func bulkCopy(ctx context.Context, dst, src *os.File, size, extent int64, onBytes func(int64)) error {
	srcFd := int(src.Fd())
	dstFd := int(dst.Fd())
	remaining := size

	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := unix.CopyFileRange(srcFd, nil, dstFd, nil, int(min(extent, remaining)), 0)
		if err != nil {
			switch err {
			case unix.EINTR, unix.EAGAIN:
				continue
			case unix.ENOSYS, unix.EXDEV, unix.EINVAL, unix.EOPNOTSUPP, unix.EPERM:
				return copyExtents(ctx, dst, src, remaining, extent, onBytes)
			}
			return &os.SyscallError{Syscall: "copy_file_range", Err: err}
		}
		if n == 0 {
			// Source shorter than its recorded size.
			return nil
		}

		onBytes(int64(n))
		remaining -= int64(n)
	}

	// The source may have grown since it was sized.
	return bufferedCopy(ctx, dst, src, BufferSize(-1), onBytes)
}
