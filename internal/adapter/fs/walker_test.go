package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestWalker_Walk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "paper.pdf"))
	writeFile(t, filepath.Join(root, "notes", "a.txt"))
	writeFile(t, filepath.Join(root, "notes", "image.png"))
	writeFile(t, filepath.Join(root, ".docqa", "cache.txt"))

	w := NewWalker([]string{"**/*.pdf", "**/*.txt"}, []string{"**/.docqa/**"})
	files, err := w.Walk(root)
	if err != nil {
		t.Fatal(err)
	}

	var rel []string
	for _, f := range files {
		r, _ := filepath.Rel(root, f.Path)
		rel = append(rel, filepath.ToSlash(r))
	}
	want := []string{"notes/a.txt", "paper.pdf"}
	if len(rel) != len(want) {
		t.Fatalf("expected %v, got %v", want, rel)
	}
	for i := range want {
		if rel[i] != want[i] {
			t.Errorf("file %d: expected %s, got %s", i, want[i], rel[i])
		}
	}
	if files[0].Size != 1 {
		t.Errorf("expected size 1, got %d", files[0].Size)
	}
}

func TestWalker_SingleFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "report.txt")
	writeFile(t, path)

	w := NewWalker([]string{"**/*.txt"}, nil)
	files, err := w.Walk(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Path != path {
		t.Errorf("expected the file itself, got %+v", files)
	}

	w = NewWalker([]string{"**/*.pdf"}, nil)
	files, _ = w.Walk(path)
	if len(files) != 0 {
		t.Errorf("expected no match, got %+v", files)
	}
}

func TestWalker_MissingRoot(t *testing.T) {
	w := NewWalker(nil, nil)
	if _, err := w.Walk(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing root")
	}
}
