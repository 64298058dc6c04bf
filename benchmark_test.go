package secretfs

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"testing"

	"github.com/absfs/memfs"
)

// Benchmark AES-256-CBC streaming throughput
func BenchmarkCipher_Encrypt(b *testing.B) {
	sizes := []int{
		64,          // typical secret
		1024,        // 1 KB
		64 * 1024,   // 64 KB
		1024 * 1024, // 1 MB
	}

	for _, size := range sizes {
		b.Run(formatSize(size), func(b *testing.B) {
			c := benchmarkCipher(b)
			data := randomData(b, size)

			b.SetBytes(int64(size))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := c.Encrypt(io.Discard, bytes.NewReader(data)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkCipher_Decrypt(b *testing.B) {
	for _, size := range []int{64, 1024, 64 * 1024, 1024 * 1024} {
		b.Run(formatSize(size), func(b *testing.B) {
			c := benchmarkCipher(b)
			ct := c.EncryptBytes(randomData(b, size))

			b.SetBytes(int64(size))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := c.Decrypt(io.Discard, bytes.NewReader(ct)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// Benchmark path resolution, which runs on every repository call
func BenchmarkRepository_FilesystemPath(b *testing.B) {
	for _, depth := range []int{1, 4, 16} {
		b.Run(fmt.Sprintf("depth-%d", depth), func(b *testing.B) {
			repo := benchmarkRepository(b)
			loc := repo.Root()
			for i := 0; i < depth; i++ {
				n, _ := repo.TryParseName(fmt.Sprintf("segment-%d", i))
				loc = loc.Down(n)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := repo.FilesystemPath(loc); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkRepository_List(b *testing.B) {
	repo := benchmarkRepository(b)
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			loc, _ := repo.ParseLocation(fmt.Sprintf("folder-%d/entry-%d", i, j))
			if err := repo.Write(loc, "value"); err != nil {
				b.Fatal(err)
			}
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		n := 0
		for _, err := range repo.List(repo.Root(), ListOptions{Recursively: true}) {
			if err != nil {
				b.Fatal(err)
			}
			n++
		}
		if n != 100 {
			b.Fatalf("listed %d entries, want 100", n)
		}
	}
}

func benchmarkCipher(b *testing.B) *Cipher {
	b.Helper()
	key := randomData(b, KeySize)
	c, err := NewKeyCipher(key, nil)
	if err != nil {
		b.Fatalf("failed to create cipher: %v", err)
	}
	return c
}

func benchmarkRepository(b *testing.B) *Repository {
	b.Helper()
	base, err := memfs.NewFS()
	if err != nil {
		b.Fatalf("failed to create memfs: %v", err)
	}
	repo, err := New(base, "/", benchmarkCipher(b), nil)
	if err != nil {
		b.Fatalf("failed to create repository: %v", err)
	}
	return repo
}

func randomData(b *testing.B, size int) []byte {
	b.Helper()
	data := make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		b.Fatalf("failed to generate test data: %v", err)
	}
	return data
}

func formatSize(size int) string {
	switch {
	case size >= 1024*1024:
		return fmt.Sprintf("%dMB", size/(1024*1024))
	case size >= 1024:
		return fmt.Sprintf("%dKB", size/1024)
	default:
		return fmt.Sprintf("%dB", size)
	}
}
