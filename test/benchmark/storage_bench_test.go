package benchmark

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/TheMichaelB/vaultcopy/internal/crypto"
	"github.com/TheMichaelB/vaultcopy/internal/storage"
	"github.com/TheMichaelB/vaultcopy/test/testutil"
)

func newBenchStore(b *testing.B) *storage.LocalStore {
	store, err := storage.NewLocalStore(b.TempDir(), testutil.NewTestLogger())
	if err != nil {
		b.Fatal(err)
	}
	return store
}

func writeSource(b *testing.B, size int) string {
	path := filepath.Join(b.TempDir(), "source.dat")
	if err := os.WriteFile(path, testutil.RandomBytes(size, uint64(size)), 0644); err != nil {
		b.Fatal(err)
	}
	return path
}

func benchTransfer(b *testing.B, store *storage.LocalStore, mode storage.Mode) {
	ctx := context.Background()
	codec := crypto.DefaultCodec()

	for _, size := range benchSizes {
		b.Run(fmt.Sprintf("%dKB", size/1024), func(b *testing.B) {
			source := writeSource(b, size)

			b.ResetTimer()
			b.ReportAllocs()
			b.SetBytes(int64(size))

			for i := 0; i < b.N; i++ {
				staged, err := store.Transfer(ctx, storage.TransferRequest{
					Source:   source,
					Target:   fmt.Sprintf("bench/file_%d.dat", i),
					Size:     int64(size),
					Mode:     mode,
					Password: testutil.TestPassword,
					Codec:    codec,
				})
				if err != nil {
					b.Fatal(err)
				}
				store.Discard(staged)
			}
		})
	}
}

func BenchmarkTransferBuffered(b *testing.B) {
	store := newBenchStore(b)
	store.SetBulkThreshold(1 << 40)
	if err := store.EnsureDir("bench"); err != nil {
		b.Fatal(err)
	}
	benchTransfer(b, store, storage.ModePlain)
}

func BenchmarkTransferBulk(b *testing.B) {
	store := newBenchStore(b)
	store.SetBulkThreshold(0)
	if err := store.EnsureDir("bench"); err != nil {
		b.Fatal(err)
	}
	benchTransfer(b, store, storage.ModePlain)
}

func BenchmarkTransferEncrypt(b *testing.B) {
	store := newBenchStore(b)
	if err := store.EnsureDir("bench"); err != nil {
		b.Fatal(err)
	}
	benchTransfer(b, store, storage.ModeEncrypt)
}
