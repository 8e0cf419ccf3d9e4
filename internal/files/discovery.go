package files

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned for unknown documents.
	ErrNotFound = errors.New("document not found")
	// ErrExists is returned when a write would clobber an existing file
	// without the overwrite flag.
	ErrExists = errors.New("document already exists")
	// ErrInvalidName rejects names that would escape the documents tree.
	ErrInvalidName = errors.New("invalid document name")
)

// languageNames maps documents-dir folder names to display names. Unknown
// folders fall back to a title-cased folder name.
var languageNames = map[string]string{
	"hi":  "Hindi",
	"eng": "English",
	"guj": "Gujarati",
	"bn":  "Bengali",
	"kn":  "Kannada",
	"ml":  "Malayalam",
	"mr":  "Marathi",
	"od":  "Odia",
	"pa":  "Punjabi",
	"ta":  "Tamil",
	"te":  "Telugu",
}

// FileInfo describes one discovered markdown document.
type FileInfo struct {
	Filename  string `json:"filename"`
	Language  string `json:"language"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Title     string `json:"title,omitempty"`
}

// LanguageFiles groups the documents of one language folder.
type LanguageFiles struct {
	Language     string     `json:"language"`
	LanguageCode string     `json:"language_code"`
	Files        []FileInfo `json:"files"`
}

// Discovery lists and reads markdown documents organized as one folder per
// language under the documents directory:
//
//	documents/
//	├── hi/article-1.md
//	└── eng/article-1.md
type Discovery struct {
	root string
}

func NewDiscovery(root string) *Discovery {
	return &Discovery{root: root}
}

// ListAll discovers every language folder that contains markdown files,
// sorted by folder name.
func (d *Discovery) ListAll() ([]LanguageFiles, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read documents dir: %w", err)
	}

	var result []LanguageFiles
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		lang := strings.ToLower(entry.Name())
		files, err := d.ListLanguage(lang)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			continue
		}
		result = append(result, LanguageFiles{
			Language:     displayName(lang),
			LanguageCode: lang,
			Files:        files,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].LanguageCode < result[j].LanguageCode })
	return result, nil
}

// ListLanguage discovers the markdown files of one language folder, sorted
// by filename. A missing folder yields an empty list, not an error.
func (d *Discovery) ListLanguage(language string) ([]FileInfo, error) {
	dir, err := d.langDir(language)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read language dir: %w", err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		files = append(files, FileInfo{
			Filename:  entry.Name(),
			Language:  strings.ToLower(language),
			Path:      path,
			SizeBytes: info.Size(),
			Title:     peekTitle(path),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })
	return files, nil
}

// Content reads one document. Both components are validated so a crafted
// name cannot reach outside the documents tree.
func (d *Discovery) Content(language, filename string) (string, error) {
	path, err := d.resolve(language, filename)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read document: %w", err)
	}
	return string(data), nil
}

// Write saves a document into its language folder, creating the folder as
// needed. Without overwrite an existing file is left untouched.
func (d *Discovery) Write(language, filename, content string, overwrite bool) (string, error) {
	path, err := d.resolve(language, filename)
	if err != nil {
		return "", err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", ErrExists
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create language dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	return path, nil
}

func (d *Discovery) langDir(language string) (string, error) {
	if !validComponent(language) {
		return "", ErrInvalidName
	}
	return filepath.Join(d.root, strings.ToLower(language)), nil
}

func (d *Discovery) resolve(language, filename string) (string, error) {
	dir, err := d.langDir(language)
	if err != nil {
		return "", err
	}
	if !validComponent(filename) || !strings.HasSuffix(filename, ".md") {
		return "", ErrInvalidName
	}
	return filepath.Join(dir, filename), nil
}

// validComponent rejects empty names and anything with path separators or
// parent references.
func validComponent(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return filepath.Base(name) == name
}

func displayName(lang string) string {
	if name, ok := languageNames[lang]; ok {
		return name
	}
	if lang == "" {
		return ""
	}
	return strings.ToUpper(lang[:1]) + lang[1:]
}

// peekTitle scans the head of a document for its first level-one heading.
// Reads at most a few KB; missing titles are fine.
func peekTitle(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	read := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
		read += len(line)
		if read > 2000 {
			break
		}
	}
	return ""
}
