package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dredge/internal/blob/core"
)

func TestSanitizeKeyErrors(t *testing.T) {
	for _, c := range []string{"", "  ", "../escape", "/abs", "a/../b", "x.txt.meta"} {
		if _, err := sanitizeKey(c); err == nil {
			t.Fatalf("expected error for key %q", c)
		}
	}
	if k, err := sanitizeKey("a//b.txt"); err != nil || k != "a/b.txt" {
		t.Fatalf("clean key got %q %v", k, err)
	}
}

func TestPutWritesSidecar(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	info, err := s.Put(ctx, "pairwise_tests/a_vs_b.txt", strings.NewReader("body"), core.PutOptions{ContentType: "text/plain", Metadata: map[string]string{"k": "v"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 4 || info.ContentType != "text/plain" || info.ETag == "" || info.Metadata["k"] != "v" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := os.Stat(filepath.Join(dir, "pairwise_tests", "a_vs_b.txt.meta")); err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}
	list, err := s.List(ctx, "")
	if err != nil || len(list) != 1 {
		t.Fatalf("sidecar listed: %v %+v", err, list)
	}
}

// Files copied into the root by hand have no sidecar and are still served.
func TestPlainFileWithoutSidecar(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "pairwise_tests"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "pairwise_tests", "b_vs_a.txt"), []byte("plain"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, _ := New(dir)
	info, rc, err := s.Get(context.Background(), "pairwise_tests/b_vs_a.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	if string(b) != "plain" || info.Size != 5 || info.ContentType != "" {
		t.Fatalf("unexpected %q %+v", b, info)
	}
}

func TestMissingAndDirectoryKeys(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(dir)
	ctx := context.Background()
	if _, err := s.Head(ctx, "nope.txt"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Head(ctx, "sub"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("directory should be not found, got %v", err)
	}
}

func TestCorruptSidecar(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "x.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "x.txt.meta"), []byte("{bad"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, _ := New(dir)
	if _, err := s.Head(context.Background(), "x.txt"); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := s.List(context.Background(), ""); err == nil {
		t.Fatalf("expected list decode error")
	}
}
