package storage

import (
	"os"
	"path/filepath"
)

// HasCapacity reports whether need bytes fit on the volume holding path. The
// nearest existing ancestor is checked, so path itself may not exist yet.
// When free space cannot be determined the answer is true.
func HasCapacity(path string, need int64) bool {
	if need <= 0 {
		return true
	}

	dir := path
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return true
		}
		dir = parent
	}

	free, ok := freeSpace(dir)
	if !ok {
		return true
	}
	return free >= uint64(need)
}
