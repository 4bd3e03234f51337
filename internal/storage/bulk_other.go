//go:build !linux

package storage

import (
	"context"
	"os"
)

// bulkCopy copies size bytes in extents without a kernel fast path.
func bulkCopy(ctx context.Context, dst, src *os.File, size, extent int64, onBytes func(int64)) error {
	return copyExtents(ctx, dst, src, size, extent, onBytes)
}
