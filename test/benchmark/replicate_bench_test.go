package benchmark

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/TheMichaelB/vaultcopy/internal/config"
	"github.com/TheMichaelB/vaultcopy/internal/models"
	"github.com/TheMichaelB/vaultcopy/internal/services/replicate"
	"github.com/TheMichaelB/vaultcopy/test/testutil"
)

// benchTree builds a tree of dirs*perDir files of fileSize bytes.
func benchTree(b *testing.B, dirs, perDir, fileSize int) string {
	root := b.TempDir()
	for d := 0; d < dirs; d++ {
		dir := filepath.Join(root, fmt.Sprintf("folder-%03d", d))
		if err := os.MkdirAll(dir, 0755); err != nil {
			b.Fatal(err)
		}
		for f := 0; f < perDir; f++ {
			data := testutil.RandomBytes(fileSize, uint64(d*perDir+f))
			if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("file-%03d.bin", f)), data, 0644); err != nil {
				b.Fatal(err)
			}
		}
	}
	return root
}

func BenchmarkEngineRun(b *testing.B) {
	scenarios := []struct {
		name    string
		encrypt bool
		dirs    bool
	}{
		{"plain", false, false},
		{"encrypt", true, false},
		{"encrypt_dirnames", true, true},
	}

	source := benchTree(b, 10, 20, 16*1024)
	engine := replicate.NewEngine(nil, replicate.EngineConfigFrom(config.DefaultConfig().Transfer), testutil.NewTestLogger())

	for _, sc := range scenarios {
		b.Run(sc.name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(10 * 20 * 16 * 1024)

			for i := 0; i < b.N; i++ {
				b.StopTimer()
				target := filepath.Join(b.TempDir(), "out")
				b.StartTimer()

				opts := &models.CopyOptions{
					SourceDir:       source,
					TargetDir:       target,
					EncryptFiles:    sc.encrypt,
					EncryptDirNames: sc.dirs,
				}
				if sc.encrypt || sc.dirs {
					opts.Password = testutil.TestPassword
				}

				result, err := engine.Run(context.Background(), opts, replicate.CallbackFuncs{})
				if err != nil {
					b.Fatal(err)
				}
				if result.Progress.FilesCopied != 200 {
					b.Fatalf("copied %d files, want 200", result.Progress.FilesCopied)
				}
			}
		})
	}
}
