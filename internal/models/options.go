package models

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultShortNameLength is the number of characters kept from the encoded
// HMAC when a directory name is shortened.
const DefaultShortNameLength = 16

// MaxShortNameLength is the length of an unpadded base64url SHA-256 digest.
const MaxShortNameLength = 43

// CopyOptions describes one replication run. It is built once and not
// modified while the walk is in progress.
type CopyOptions struct {
	SourceDir string
	TargetDir string

	EncryptFiles bool
	DecryptFiles bool

	EncryptDirNames bool
	DecryptDirNames bool

	Password string

	// Exclude holds doublestar patterns matched against slash separated
	// paths relative to SourceDir.
	Exclude []string

	// ShortNameLength overrides DefaultShortNameLength when positive.
	ShortNameLength int
}

// NeedsPassword reports whether any transform flag is set.
func (o *CopyOptions) NeedsPassword() bool {
	return o.EncryptFiles || o.DecryptFiles || o.EncryptDirNames || o.DecryptDirNames
}

// TransformsDirNames reports whether directory names are rewritten.
func (o *CopyOptions) TransformsDirNames() bool {
	return o.EncryptDirNames || o.DecryptDirNames
}

// NameLength returns the effective short name length.
func (o *CopyOptions) NameLength() int {
	if o.ShortNameLength > 0 {
		return o.ShortNameLength
	}
	return DefaultShortNameLength
}

// Validate checks every exclusivity and presence rule. It touches nothing on
// disk.
func (o *CopyOptions) Validate() error {
	if o.SourceDir == "" {
		return &ValidationError{Field: "source", Message: "source directory is required"}
	}
	if o.TargetDir == "" {
		return &ValidationError{Field: "target", Message: "target directory is required"}
	}
	if !filepath.IsAbs(o.SourceDir) {
		return &ValidationError{Field: "source", Message: "source directory must be absolute"}
	}
	if !filepath.IsAbs(o.TargetDir) {
		return &ValidationError{Field: "target", Message: "target directory must be absolute"}
	}
	if o.EncryptFiles && o.DecryptFiles {
		return &ValidationError{Field: "files", Message: "cannot encrypt and decrypt files at the same time"}
	}
	if o.EncryptDirNames && o.DecryptDirNames {
		return &ValidationError{Field: "directory_names", Message: "cannot encrypt and decrypt directory names at the same time"}
	}
	if o.NeedsPassword() && o.Password == "" {
		return &ValidationError{Field: "password", Message: "a password is required when encrypting or decrypting"}
	}
	if o.ShortNameLength < 0 || (o.ShortNameLength > 0 && (o.ShortNameLength < 4 || o.ShortNameLength > MaxShortNameLength)) {
		return &ValidationError{Field: "short_name_length", Message: "must be between 4 and 43"}
	}

	src := filepath.Clean(o.SourceDir)
	dst := filepath.Clean(o.TargetDir)
	if src == dst {
		return &ValidationError{Field: "target", Message: "target directory must differ from source"}
	}
	if within(src, dst) {
		return &ValidationError{Field: "target", Message: "target directory cannot be inside the source tree"}
	}

	for _, pattern := range o.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return &ValidationError{Field: "exclude", Message: "invalid pattern " + pattern}
		}
	}

	return nil
}

// within reports whether dst lies below src. Both must be clean absolute
// paths.
func within(src, dst string) bool {
	rel, err := filepath.Rel(src, dst)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// NormalizePath cleans p and converts separators to forward slashes.
func NormalizePath(p string) string {
	return strings.ReplaceAll(filepath.Clean(p), "\\", "/")
}

// Excluded reports whether the relative path matches one of the exclude
// patterns.
func (o *CopyOptions) Excluded(rel string) bool {
	rel = NormalizePath(rel)
	for _, pattern := range o.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
