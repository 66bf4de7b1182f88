package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPutAndGet(t *testing.T) {
	s, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}

	data := []byte("object bytes")
	url, err := s.Put(context.Background(), "u1/raw/123-abcd-photo.jpg", data)
	if err != nil {
		t.Fatalf("failed to put object: %v", err)
	}

	got, err := s.Get(url)
	if err != nil {
		t.Fatalf("failed to get object: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("expected %q, got %q", data, got)
	}
}

func TestPutLeavesNoPartFile(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, nil)
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}

	url, err := s.Put(context.Background(), "u1/raw/obj.bin", []byte("x"))
	if err != nil {
		t.Fatalf("failed to put object: %v", err)
	}

	if _, err := os.Stat(url + ".part"); !os.IsNotExist(err) {
		t.Error("expected .part temp file to be gone after put")
	}
}

func TestRemove(t *testing.T) {
	s, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}

	url, err := s.Put(context.Background(), "u1/raw/gone.bin", []byte("x"))
	if err != nil {
		t.Fatalf("failed to put object: %v", err)
	}

	if err := s.Remove(url); err != nil {
		t.Fatalf("failed to remove object: %v", err)
	}

	if _, err := os.Stat(url); !os.IsNotExist(err) {
		t.Error("expected object file to be removed")
	}

	// Removing again is not an error
	if err := s.Remove(url); err != nil {
		t.Errorf("expected idempotent remove, got %v", err)
	}
}

func TestRemoveRejectsOutsideVault(t *testing.T) {
	s, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}

	outside := filepath.Join(t.TempDir(), "other.bin")
	if err := os.WriteFile(outside, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if err := s.Remove(outside); err == nil {
		t.Error("expected error removing a path outside the vault")
	}
	if _, err := os.Stat(outside); err != nil {
		t.Error("file outside vault must not be touched")
	}
}

func TestKeyNamespacing(t *testing.T) {
	s, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}

	key := s.Key("user-42", "post", "My Photo (1).JPG")

	if !strings.HasPrefix(key, filepath.Join("user-42", "post")+string(filepath.Separator)) {
		t.Errorf("expected subject/context prefix, got %s", key)
	}
	if strings.Contains(key, " ") || strings.Contains(key, "(") {
		t.Errorf("expected sanitized key, got %s", key)
	}

	// Two keys for the same name must not collide
	other := s.Key("user-42", "post", "My Photo (1).JPG")
	if key == other {
		t.Error("expected distinct keys for repeated uploads of the same name")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"photo.jpg", "photo.jpg"},
		{"My Photo (1).JPG", "My_Photo__1_.JPG"},
		{"../../etc/passwd", "passwd"},
		{".hidden", "hidden"},
		{"naïve.png", "na_ve.png"},
	}

	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
