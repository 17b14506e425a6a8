package checksum

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempFile(t *testing.T, contents []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.bin")
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestHashFile(t *testing.T) {
	path := writeTempFile(t, []byte("hello bitslides"))

	for _, algo := range []Algorithm{MD5, SHA256, CRC32, XXHash} {
		got, err := HashFile(path, algo)
		if err != nil {
			t.Fatalf("HashFile(%s) error = %v", algo, err)
		}
		if got == "" {
			t.Errorf("HashFile(%s) returned empty digest", algo)
		}

		// Hashing the same content twice must be deterministic.
		got2, err := HashFile(path, algo)
		if err != nil {
			t.Fatalf("HashFile(%s) second call error = %v", algo, err)
		}
		if got != got2 {
			t.Errorf("HashFile(%s) not deterministic: %s != %s", algo, got, got2)
		}
	}
}

func TestHashFileDiffersOnContent(t *testing.T) {
	a := writeTempFile(t, []byte("content-a"))
	b := writeTempFile(t, []byte("content-b"))

	ha, err := HashFile(a, SHA256)
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}
	hb, err := HashFile(b, SHA256)
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}
	if ha == hb {
		t.Errorf("expected different digests for different content, got %s for both", ha)
	}
}

func TestHashFileUnknownAlgorithm(t *testing.T) {
	path := writeTempFile(t, []byte("x"))
	if _, err := HashFile(path, Algorithm("bogus")); err == nil {
		t.Error("expected error for unknown algorithm, got nil")
	}
}

func TestHashFileMissingFile(t *testing.T) {
	if _, err := HashFile(filepath.Join(t.TempDir(), "missing"), MD5); err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

// TestHashFileMD5TenMiBZeroes pins the digest used by the S1 end-to-end
// scenario: 10 MiB of zero bytes hashes to a known MD5 value.
func TestHashFileMD5TenMiBZeroes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bigfile")
	if err := os.WriteFile(path, make([]byte, 10*1024*1024), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := HashFile(path, MD5)
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}
	want := "f1c9645dbc14efddc7d8a322685f26eb"
	if !strings.EqualFold(got, want) {
		t.Errorf("HashFile() = %s, want %s", got, want)
	}
}

func TestAlgorithmValid(t *testing.T) {
	for _, algo := range []Algorithm{MD5, SHA256, CRC32, XXHash} {
		if !algo.Valid() {
			t.Errorf("%s should be valid", algo)
		}
	}
	if Algorithm("bogus").Valid() {
		t.Error("bogus should not be valid")
	}
}
