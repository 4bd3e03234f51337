package names_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TheMichaelB/vaultcopy/internal/names"
)

func TestMarker(t *testing.T) {
	tests := []struct {
		name      string
		encrypted bool
		marked    string
		unmarked  string
	}{
		{"report.pdf", false, "enc_report.pdf", "report.pdf"},
		{"enc_report.pdf", true, "enc_report.pdf", "report.pdf"},
		{"enc_", false, "enc_enc_", "enc_"},
		{"encore.txt", false, "enc_encore.txt", "encore.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.encrypted, names.IsEncrypted(tt.name))
			assert.Equal(t, tt.marked, names.Mark(tt.name))
			assert.Equal(t, tt.unmarked, names.Unmark(tt.name))

			assert.Equal(t, names.Mark(tt.name), names.Mark(names.Mark(tt.name)))
			assert.Equal(t, names.Unmark(tt.name), names.Unmark(names.Unmark(tt.name)))
		})
	}
}

func TestFileTargetName(t *testing.T) {
	assert.Equal(t, "enc_a.txt", names.FileTargetName("a.txt", true, false))
	assert.Equal(t, "a.txt", names.FileTargetName("enc_a.txt", false, true))
	assert.Equal(t, "enc_a.txt", names.FileTargetName("enc_a.txt", false, false))
}
