// Package blob is the durable byte store behind the asset catalogue: a
// vault directory (local disk or a NAS mount) addressed by deterministic,
// namespaced object keys. An asset row is only ever created after its
// bytes are durably in the vault, so a failed Put leaves no partial state.
package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/franz/media-vault/internal/util"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Store writes and removes objects under a vault root directory
type Store struct {
	root  string
	retry *util.RetryConfig
}

// New creates a blob store rooted at dir, creating the directory if
// needed. A nil retry config disables retries (single attempt).
func New(dir string, retry *util.RetryConfig) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: vault directory is required", util.ErrInvalidConfig)
	}
	if retry == nil {
		retry = &util.RetryConfig{MaxAttempts: 1}
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault path: %w", err)
	}

	if err := util.RetryableMkdirAll(abs, 0755, retry); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}

	return &Store{root: abs, retry: retry}, nil
}

// Root returns the vault root directory
func (s *Store) Root() string {
	return s.root
}

// Key builds a deterministic namespaced object key:
// <subject>/<context>/<unix-ts>-<uuid8>-<sanitized-name>.
// Subject and context scope the layout; timestamp plus a short random
// token avoid collisions between same-named uploads.
func (s *Store) Key(subjectID, context, filename string) string {
	name := SanitizeFilename(filename)
	if name == "" {
		name = "upload"
	}
	token := uuid.NewString()[:8]
	return filepath.Join(
		SanitizeFilename(subjectID),
		SanitizeFilename(context),
		fmt.Sprintf("%d-%s-%s", time.Now().Unix(), token, name),
	)
}

// Put durably stores data under key and returns the object's URL.
// The write is atomic: bytes go to a .part temp file which is renamed
// into place, so a crashed or failed write never leaves a readable
// partial object.
func (s *Store) Put(ctx context.Context, key string, data []byte) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	dest := filepath.Join(s.root, key)
	if err := util.RetryableMkdirAll(filepath.Dir(dest), 0755, s.retry); err != nil {
		return "", fmt.Errorf("%w: failed to create object directory: %v", util.ErrUploadFailed, err)
	}

	tempPath := dest + ".part"
	f, err := util.RetryableCreate(tempPath, s.retry)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create temp object: %v", util.ErrUploadFailed, err)
	}

	_, writeErr := f.Write(data)
	if writeErr == nil {
		writeErr = f.Sync()
	}
	closeErr := f.Close()
	if writeErr == nil {
		writeErr = closeErr
	}

	if writeErr != nil {
		util.RetryableRemove(tempPath, s.retry) // Clean up on error
		return "", fmt.Errorf("%w: failed to write object: %v", util.ErrUploadFailed, writeErr)
	}

	if err := util.RetryableRename(tempPath, dest, s.retry); err != nil {
		util.RetryableRemove(tempPath, s.retry)
		return "", fmt.Errorf("%w: failed to finalize object: %v", util.ErrUploadFailed, err)
	}

	util.DebugLog("Stored object: %s (%d bytes)", key, len(data))
	return dest, nil
}

// Get reads an object's bytes back by URL
func (s *Store) Get(url string) ([]byte, error) {
	if !s.Owns(url) {
		return nil, fmt.Errorf("object outside vault: %w", util.ErrNotFound)
	}
	data, err := os.ReadFile(url)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("object %s: %w", url, util.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

// Remove deletes an object's bytes by URL. Removing an already-absent
// object is not an error.
func (s *Store) Remove(url string) error {
	if !s.Owns(url) {
		return fmt.Errorf("object outside vault: %w", util.ErrNotFound)
	}
	err := util.RetryableRemove(url, s.retry)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// Owns reports whether a URL points inside this vault
func (s *Store) Owns(url string) bool {
	rel, err := filepath.Rel(s.root, url)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// SanitizeFilename normalizes a filename for use in an object key:
// NFC unicode normalization, then everything outside [A-Za-z0-9._-]
// replaced with '_'. Leading dots are stripped so keys never produce
// hidden files.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = norm.NFC.String(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	return strings.TrimLeft(b.String(), ".")
}
