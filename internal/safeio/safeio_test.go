package safeio

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSafeFSJoinStaysUnderRoot(t *testing.T) {
	fs, err := NewSafeFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewSafeFS: %v", err)
	}
	p, err := fs.Join("org/example/lib/1.0/lib-1.0.jar")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !strings.HasPrefix(p, fs.Root()) {
		t.Fatalf("joined path %s escaped root %s", p, fs.Root())
	}
}

func TestSafeFSRejectsTraversal(t *testing.T) {
	fs, err := NewSafeFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewSafeFS: %v", err)
	}
	for _, rel := range []string{"../x", "a/../../x", "/etc/passwd", "", "."} {
		if _, err := fs.Join(rel); err == nil {
			t.Fatalf("expected %q to be rejected", rel)
		}
	}
}

func TestSafeFSCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "cache")
	fs, err := NewSafeFS(root)
	if err != nil {
		t.Fatalf("NewSafeFS: %v", err)
	}
	if info, err := os.Stat(fs.Root()); err != nil || !info.IsDir() {
		t.Fatalf("root not created: %v", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestWriteFileAtomicLeavesNoPartialFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.jar")

	if err := WriteFileAtomic(target, failingReader{}, 0o644); err == nil {
		t.Fatalf("expected write error")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty dir after failed write, got %d entries", len(entries))
	}

	if err := WriteFileAtomic(target, strings.NewReader("payload"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := os.ReadFile(target)
	if err != nil || string(raw) != "payload" {
		t.Fatalf("unexpected content %q err=%v", raw, err)
	}
}
