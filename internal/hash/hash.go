package hash

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// Bytes computes the hex-encoded SHA-256 digest of a byte slice.
// The digest depends only on the content: byte-identical inputs produce
// the same digest regardless of filename, timestamp, or declared mime type.
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

// Reader computes the hex-encoded SHA-256 digest of everything readable
// from r. The only failure mode is an I/O error on the reader.
func Reader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash stream: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// File computes the hex-encoded SHA-256 digest of a file's content
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return Reader(f)
}
