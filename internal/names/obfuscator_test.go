package names_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/vaultcopy/internal/crypto"
	"github.com/TheMichaelB/vaultcopy/internal/events"
	"github.com/TheMichaelB/vaultcopy/internal/models"
	"github.com/TheMichaelB/vaultcopy/internal/names"
)

func newObfuscator(t *testing.T, opts *models.CopyOptions, logs *bytes.Buffer) *names.Obfuscator {
	t.Helper()
	m, err := names.NewMapping("", 8)
	require.NoError(t, err)
	return names.NewObfuscator(opts, crypto.DefaultCodec(), m, events.NewTestLogger(events.DebugLevel, "json", logs))
}

func TestObfuscatorEncrypt(t *testing.T) {
	var logs bytes.Buffer
	o := newObfuscator(t, &models.CopyOptions{EncryptDirNames: true, Password: "pw"}, &logs)
	assert.True(t, o.Active())

	short, err := o.TargetDirName("/src", "Documents")
	require.NoError(t, err)
	assert.Equal(t, crypto.ShortDirName("Documents", "pw", 16), short)

	target := t.TempDir()
	require.NoError(t, o.Record(target, short, "Documents"))

	original, ok, err := o.Mapping().Lookup(target, short)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Documents", original)
}

func TestObfuscatorDecrypt(t *testing.T) {
	src := t.TempDir()
	short := crypto.ShortDirName("Documents", "pw", 16)
	require.NoError(t, os.WriteFile(filepath.Join(src, names.DefaultMappingFile), []byte(short+"=Documents\nevil=../escape\n"), 0644))

	var logs bytes.Buffer
	o := newObfuscator(t, &models.CopyOptions{DecryptDirNames: true, Password: "pw"}, &logs)

	t.Run("mapping hit", func(t *testing.T) {
		name, err := o.TargetDirName(src, short)
		require.NoError(t, err)
		assert.Equal(t, "Documents", name)
	})

	t.Run("codec fallback", func(t *testing.T) {
		encoded, err := crypto.EncryptNameDeterministic("Taxes", "pw")
		require.NoError(t, err)

		name, err := o.TargetDirName(src, encoded)
		require.NoError(t, err)
		assert.Equal(t, "Taxes", name)
	})

	t.Run("unknown name kept with warning", func(t *testing.T) {
		logs.Reset()
		name, err := o.TargetDirName(src, "plain")
		require.NoError(t, err)
		assert.Equal(t, "plain", name)
		assert.Contains(t, logs.String(), "keeping it unchanged")
	})

	t.Run("unsafe entry ignored", func(t *testing.T) {
		name, err := o.TargetDirName(src, "evil")
		require.NoError(t, err)
		assert.Equal(t, "evil", name)
	})
}

func TestObfuscatorInactive(t *testing.T) {
	var logs bytes.Buffer
	o := newObfuscator(t, &models.CopyOptions{}, &logs)
	assert.False(t, o.Active())

	name, err := o.TargetDirName("/src", "Documents")
	require.NoError(t, err)
	assert.Equal(t, "Documents", name)

	dir := t.TempDir()
	require.NoError(t, o.Record(dir, "x", "Documents"))
	assert.NoFileExists(t, filepath.Join(dir, names.DefaultMappingFile))
}
