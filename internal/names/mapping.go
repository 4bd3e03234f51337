package names

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"gitlab.com/tozd/go/errors"
)

// DefaultMappingFile is the sidecar written next to obfuscated directories.
const DefaultMappingFile = ".dirnames.map"

// Mapping reads and appends the per-directory sidecar that maps short names
// back to original names. Each line is "short=original"; later lines win.
// A Mapping is owned by one walker and is not safe for concurrent use.
type Mapping struct {
	fileName string
	cache    *simplelru.LRU[string, map[string]string]
}

// NewMapping creates a mapping that keeps at most cacheSize parent
// directories in memory.
func NewMapping(fileName string, cacheSize int) (*Mapping, error) {
	if fileName == "" {
		fileName = DefaultMappingFile
	}
	if cacheSize <= 0 {
		cacheSize = 128
	}

	cache, err := simplelru.NewLRU[string, map[string]string](cacheSize, nil)
	if err != nil {
		return nil, errors.Errorf("create mapping cache: %w", err)
	}

	return &Mapping{fileName: fileName, cache: cache}, nil
}

// FileName returns the sidecar file name.
func (m *Mapping) FileName() string {
	return m.fileName
}

// IsSidecar reports whether name is the sidecar file.
func (m *Mapping) IsSidecar(name string) bool {
	return name == m.fileName
}

// Path returns the sidecar path inside dir.
func (m *Mapping) Path(dir string) string {
	return filepath.Join(dir, m.fileName)
}

// Lookup returns the original name recorded for short in dir.
func (m *Mapping) Lookup(dir, short string) (string, bool, error) {
	entries, err := m.load(dir)
	if err != nil {
		return "", false, err
	}
	original, ok := entries[short]
	return original, ok, nil
}

// Append records short=original in dir's sidecar. Nothing is written when
// the same entry is already the current one.
func (m *Mapping) Append(dir, short, original string) error {
	if strings.ContainsAny(original, "\r\n") || strings.ContainsAny(short, "=\r\n") {
		return errors.Errorf("name %q cannot be stored in a mapping file", original)
	}

	entries, err := m.load(dir)
	if err != nil {
		return err
	}
	if entries[short] == original {
		return nil
	}

	path := m.Path(dir)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Errorf("open mapping %s: %w", path, err)
	}

	if _, err := f.WriteString(short + "=" + original + "\n"); err != nil {
		f.Close()
		return errors.Errorf("append mapping %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return errors.Errorf("close mapping %s: %w", path, err)
	}

	entries[short] = original
	return nil
}

func (m *Mapping) load(dir string) (map[string]string, error) {
	key := filepath.Clean(dir)
	if entries, ok := m.cache.Get(key); ok {
		return entries, nil
	}

	entries, err := readMapping(m.Path(key))
	if err != nil {
		return nil, err
	}

	m.cache.Add(key, entries)
	return entries, nil
}

func readMapping(path string) (map[string]string, error) {
	entries := make(map[string]string)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil
		}
		return nil, errors.Errorf("open mapping %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		short, original, ok := strings.Cut(line, "=")
		if !ok || short == "" || original == "" {
			continue
		}
		entries[short] = original
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Errorf("read mapping %s: %w", path, err)
	}

	return entries, nil
}
