package files

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func seedDocs(t *testing.T) *Discovery {
	t.Helper()
	root := t.TempDir()
	write := func(lang, name, content string) {
		dir := filepath.Join(root, lang)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write("hi", "beta.md", "# बीटा लेख\n\nकुछ पाठ।")
	write("hi", "alpha.md", "no heading here")
	write("eng", "guide.md", "# The Guide\n\nBody.")
	write("eng", "notes.txt", "not markdown")
	return NewDiscovery(root)
}

func TestListAll(t *testing.T) {
	d := seedDocs(t)
	langs, err := d.ListAll()
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(langs) != 2 {
		t.Fatalf("expected 2 languages, got %d", len(langs))
	}
	if langs[0].LanguageCode != "eng" || langs[0].Language != "English" {
		t.Fatalf("unexpected first language: %+v", langs[0])
	}
	if langs[1].LanguageCode != "hi" || langs[1].Language != "Hindi" {
		t.Fatalf("unexpected second language: %+v", langs[1])
	}
	if len(langs[0].Files) != 1 {
		t.Fatalf("non-markdown files must be skipped: %+v", langs[0].Files)
	}
}

func TestListLanguage(t *testing.T) {
	d := seedDocs(t)
	files, err := d.ListLanguage("hi")
	if err != nil {
		t.Fatalf("list language: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	if files[0].Filename != "alpha.md" || files[1].Filename != "beta.md" {
		t.Fatalf("expected sorted filenames, got %+v", files)
	}
	if files[1].Title != "बीटा लेख" {
		t.Fatalf("expected title peek, got %q", files[1].Title)
	}
	if files[0].Title != "" {
		t.Fatalf("file without heading must have empty title, got %q", files[0].Title)
	}
	if files[0].SizeBytes <= 0 {
		t.Fatalf("expected positive size, got %d", files[0].SizeBytes)
	}
}

func TestListLanguageMissingFolder(t *testing.T) {
	d := seedDocs(t)
	files, err := d.ListLanguage("ta")
	if err != nil {
		t.Fatalf("list language: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected empty list, got %d", len(files))
	}
}

func TestContent(t *testing.T) {
	d := seedDocs(t)
	content, err := d.Content("eng", "guide.md")
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	if content != "# The Guide\n\nBody." {
		t.Fatalf("unexpected content %q", content)
	}

	if _, err := d.Content("eng", "missing.md"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestContentRejectsTraversal(t *testing.T) {
	d := seedDocs(t)
	cases := [][2]string{
		{"..", "guide.md"},
		{"eng", "../hi/beta.md"},
		{"eng", "..\\secrets.md"},
		{"eng", "notes.txt"},
		{"", "guide.md"},
	}
	for _, c := range cases {
		if _, err := d.Content(c[0], c[1]); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("Content(%q, %q) = %v, want ErrInvalidName", c[0], c[1], err)
		}
	}
}

func TestWrite(t *testing.T) {
	d := seedDocs(t)
	path, err := d.Write("ta", "fresh.md", "# புதியது", false)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("written file missing: %v", err)
	}

	if _, err := d.Write("ta", "fresh.md", "changed", false); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := d.Write("ta", "fresh.md", "changed", true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	content, err := d.Content("ta", "fresh.md")
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	if content != "changed" {
		t.Fatalf("overwrite did not apply, got %q", content)
	}
}

func TestListAllMissingRoot(t *testing.T) {
	d := NewDiscovery(filepath.Join(t.TempDir(), "nope"))
	langs, err := d.ListAll()
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if langs != nil {
		t.Fatalf("expected nil, got %+v", langs)
	}
}
