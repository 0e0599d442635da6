package fsutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"govrag/src/fsutil"
)

func TestLocalFileStoreListFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.json", "notes.txt", "C.JSON"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.json"), 0o755); err != nil {
		t.Fatal(err)
	}

	fs := fsutil.NewLocalFileStore()
	files, err := fs.ListFiles(dir, ".json", ".yaml")
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	want := []string{"C.JSON", "a.json", "b.yaml"}
	if len(files) != len(want) {
		t.Fatalf("ListFiles() = %v, want %v", files, want)
	}
	for i, f := range files {
		if filepath.Base(f) != want[i] {
			t.Errorf("ListFiles()[%d] = %s, want %s", i, filepath.Base(f), want[i])
		}
	}

	isDir, err := fs.IsDir(dir)
	if err != nil || !isDir {
		t.Errorf("IsDir(dir) = %v, %v, want true", isDir, err)
	}
}
