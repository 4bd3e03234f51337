package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/vaultcopy/internal/models"
)

func TestParseResolution(t *testing.T) {
	for _, r := range []models.Resolution{models.ResolutionReplace, models.ResolutionSkip, models.ResolutionCancel} {
		got, err := models.ParseResolution(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}

	_, err := models.ParseResolution("rename")
	assert.Error(t, err)
}

func TestParseErrorDecision(t *testing.T) {
	for _, d := range []models.ErrorDecision{models.DecisionRetry, models.DecisionSkip, models.DecisionCancel} {
		got, err := models.ParseErrorDecision(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}

	got, err := models.ParseErrorDecision("RETRY")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionRetry, got)

	_, err = models.ParseErrorDecision("ignore")
	assert.Error(t, err)
}

func TestProgressPercent(t *testing.T) {
	p := models.Progress{}
	assert.Equal(t, float64(100), p.Percent())

	p.TotalBytes = 200
	p.BytesCopied = 50
	assert.Equal(t, float64(25), p.Percent())

	p.BytesCopied = 300
	assert.Equal(t, float64(100), p.Percent())
}

func TestRunRecord(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	opts := &models.CopyOptions{SourceDir: "/a", TargetDir: "/b", EncryptFiles: true, EncryptDirNames: true, Password: "secret"}

	rec := models.NewRunRecord("id-1", opts, start)
	assert.Equal(t, "encrypt+dirnames", rec.Mode())

	rec.Finish(models.Progress{FilesCopied: 3, BytesCopied: 42}, false, nil, start.Add(2*time.Second))
	assert.Equal(t, models.OutcomeCompleted, rec.Outcome)
	assert.Equal(t, 2*time.Second, rec.Duration())
	assert.Equal(t, 3, rec.FilesCopied)

	rec.Finish(models.Progress{}, true, nil, start)
	assert.Equal(t, models.OutcomeCancelled, rec.Outcome)

	rec.Finish(models.Progress{}, false, assert.AnError, start)
	assert.Equal(t, models.OutcomeFailed, rec.Outcome)
	assert.NotEmpty(t, rec.Error)

	plain := models.NewRunRecord("id-2", &models.CopyOptions{DecryptFiles: true}, start)
	assert.Equal(t, "decrypt", plain.Mode())
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"notes/folder/file.md", "notes/folder/file.md"},
		{"notes/../other/./file.md", "other/file.md"},
		{"file.md", "file.md"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, models.NormalizePath(tt.path))
	}
}
