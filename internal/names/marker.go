// Package names decides what a file or directory is called on the target
// side of a copy.
package names

import "strings"

// Marker is prepended to the name of every encrypted file.
const Marker = "enc_"

// IsEncrypted reports whether name carries the marker.
func IsEncrypted(name string) bool {
	return strings.HasPrefix(name, Marker) && len(name) > len(Marker)
}

// Mark adds the marker unless it is already present.
func Mark(name string) string {
	if IsEncrypted(name) {
		return name
	}
	return Marker + name
}

// Unmark strips the marker if present.
func Unmark(name string) string {
	if !IsEncrypted(name) {
		return name
	}
	return name[len(Marker):]
}

// FileTargetName returns the leaf name a file should get after it has been
// encrypted, decrypted or copied unchanged.
func FileTargetName(name string, encrypt, decrypt bool) string {
	switch {
	case encrypt:
		return Mark(name)
	case decrypt:
		return Unmark(name)
	default:
		return name
	}
}
