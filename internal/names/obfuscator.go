package names

import (
	"strings"

	"github.com/TheMichaelB/vaultcopy/internal/crypto"
	"github.com/TheMichaelB/vaultcopy/internal/events"
	"github.com/TheMichaelB/vaultcopy/internal/models"
)

// Obfuscator maps source directory names to target directory names for one
// copy run.
type Obfuscator struct {
	encrypt  bool
	decrypt  bool
	password string
	length   int
	codec    *crypto.Codec
	mapping  *Mapping
	logger   *events.Logger
}

// NewObfuscator binds the directory name flags of opts to a mapping.
func NewObfuscator(opts *models.CopyOptions, codec *crypto.Codec, mapping *Mapping, logger *events.Logger) *Obfuscator {
	return &Obfuscator{
		encrypt:  opts.EncryptDirNames,
		decrypt:  opts.DecryptDirNames,
		password: opts.Password,
		length:   opts.NameLength(),
		codec:    codec,
		mapping:  mapping,
		logger:   logger.WithField("component", "names"),
	}
}

// Active reports whether directory names are rewritten at all.
func (o *Obfuscator) Active() bool {
	return o.encrypt || o.decrypt
}

// Mapping returns the sidecar mapping in use.
func (o *Obfuscator) Mapping() *Mapping {
	return o.mapping
}

// TargetDirName returns what the directory name found in srcParent is
// called on the target side. Encrypting yields the short HMAC name.
// Decrypting consults the sidecar in srcParent first, then tries the
// reversible name codec, and otherwise keeps the name.
func (o *Obfuscator) TargetDirName(srcParent, name string) (string, error) {
	switch {
	case o.encrypt:
		return crypto.ShortDirName(name, o.password, o.length), nil

	case o.decrypt:
		original, ok, err := o.mapping.Lookup(srcParent, name)
		if err != nil {
			return "", err
		}
		if ok && safeSegment(original) {
			return original, nil
		}
		if ok {
			o.logger.WithField("entry", original).Warn("Ignoring unsafe mapping entry")
		}

		if decoded, err := o.codec.DecryptName(name, o.password); err == nil && safeSegment(decoded) {
			return decoded, nil
		}

		o.logger.WithFields(map[string]interface{}{
			"parent": srcParent,
			"name":   name,
		}).Warn("No mapping for directory name, keeping it unchanged")
		return name, nil

	default:
		return name, nil
	}
}

// Record stores the original name for a directory that was just created
// under targetParent with the short name.
func (o *Obfuscator) Record(targetParent, short, original string) error {
	if !o.encrypt {
		return nil
	}
	return o.mapping.Append(targetParent, short, original)
}

// safeSegment rejects names that would escape or alias their parent.
func safeSegment(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}
