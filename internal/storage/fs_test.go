package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/wikisync/internal/apperr"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return s
}

func TestWriteAndRead(t *testing.T) {
	s := tempRoot(t)
	content := []byte("# Hello\nWorld\n")
	changed, err := s.Write("note.md", content)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !changed {
		t.Error("first write should report a change")
	}
	got, err := s.Read("note.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
	info, _ := os.Stat(filepath.Join(s.Root(), "note.md"))
	if info.Mode().Perm() != 0o644 {
		t.Errorf("perm = %v, want 0644", info.Mode().Perm())
	}
}

func TestWrite_UnchangedContentIsSkipped(t *testing.T) {
	s := tempRoot(t)
	_, _ = s.Write("same.md", []byte("x"))
	changed, err := s.Write("same.md", []byte("x"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if changed {
		t.Error("identical write should not report a change")
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempRoot(t)
	if _, err := s.Write("a/b/c.md", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !s.Exists("a/b/c.md") {
		t.Error("expected file to exist")
	}
}

func TestDelete(t *testing.T) {
	s := tempRoot(t)
	_, _ = s.Write("del.md", []byte("bye"))
	removed, err := s.Delete("del.md")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !removed {
		t.Error("expected removal")
	}
	if s.Exists("del.md") {
		t.Error("file still exists")
	}
}

func TestDelete_MissingIsNoop(t *testing.T) {
	s := tempRoot(t)
	removed, err := s.Delete("never-there.md")
	if err != nil {
		t.Fatalf("Delete of missing file: %v", err)
	}
	if removed {
		t.Error("nothing should have been removed")
	}
}

func TestCopy_PreservesModTimeAndSkipsIdentical(t *testing.T) {
	s := tempRoot(t)
	src := filepath.Join(t.TempDir(), "pic.png")
	if err := os.WriteFile(src, []byte("PNGDATA"), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(src, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	changed, err := s.Copy(src, "img/pic.png")
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if !changed {
		t.Error("first copy should report a change")
	}
	info, err := os.Stat(filepath.Join(s.Root(), "img", "pic.png"))
	if err != nil {
		t.Fatalf("stat copy: %v", err)
	}
	if !info.ModTime().Equal(mtime) {
		t.Errorf("mtime = %v, want %v", info.ModTime(), mtime)
	}

	changed, err = s.Copy(src, "img/pic.png")
	if err != nil {
		t.Fatalf("second Copy: %v", err)
	}
	if changed {
		t.Error("identical copy should be skipped")
	}
}

func TestCopy_MissingSource(t *testing.T) {
	s := tempRoot(t)
	_, err := s.Copy(filepath.Join(t.TempDir(), "gone.png"), "gone.png")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

func TestWalk_SkipsHiddenDirs(t *testing.T) {
	s := tempRoot(t)
	_, _ = s.Write("a.md", []byte("a"))
	_, _ = s.Write("sub/b.md", []byte("b"))
	_, _ = s.Write("static/pic.png", []byte("p"))
	_, _ = s.Write(".obsidian/workspace.md", []byte("w"))
	_, _ = s.Write(".trash/old.md", []byte("o"))

	var files []string
	err := s.Walk("", func(rel string, _ fs.DirEntry) error {
		files = append(files, rel)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	want := []string{"a.md", "static/pic.png", "sub/b.md"}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Errorf("Walk mismatch (-want +got):\n%s", diff)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempRoot(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); !errors.Is(err, apperr.ErrPathEscape) {
			t.Errorf("Read(%q) err = %v, want ErrPathEscape", p, err)
		}
		if _, err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
		if _, err := s.Delete(p); err == nil {
			t.Errorf("expected error for delete of %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempRoot(t)
	_, _ = s.Write("atomic.md", []byte("original content"))
	if _, err := s.Write("atomic.md", []byte("updated content")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.md")
	if string(got) != "updated content" {
		t.Errorf("expected updated content, got %q", got)
	}
	entries, _ := os.ReadDir(s.Root())
	if len(entries) != 1 {
		t.Errorf("leftover files in root: %v", entries)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp(t.TempDir(), "wikisync-test-*")
	_ = f.Close()
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
