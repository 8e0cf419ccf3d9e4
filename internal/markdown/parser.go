package markdown

import (
	"fmt"
	"os"
	"path/filepath"
)

// charsPerWord and wordsPerMinute feed the rough spoken-duration estimate.
// The figures are deliberately coarse; callers must not rely on precision.
const (
	charsPerWord   = 5
	wordsPerMinute = 150
)

// Parser assembles whole documents from chunker output.
type Parser struct {
	chunker *Chunker
}

func NewParser(maxChunkChars int, prosody ProsodyTable) *Parser {
	return &Parser{chunker: NewChunker(maxChunkChars, prosody)}
}

// Parse chunks markdown content and derives document-level metadata: the
// title (first level-1 heading, if any), total character count and an
// estimated spoken duration.
func (p *Parser) Parse(content, filename, language string) ParsedDocument {
	chunks := p.chunker.Chunk(content)

	var title string
	for _, c := range chunks {
		if c.Kind == KindHeading1 {
			title = c.Text
			break
		}
	}

	totalChars := 0
	for _, c := range chunks {
		totalChars += c.CharCount
	}

	estimated := float64(totalChars) / charsPerWord / wordsPerMinute * 60

	return ParsedDocument{
		Filename:                 filename,
		Language:                 language,
		Title:                    title,
		Chunks:                   chunks,
		TotalChunks:              len(chunks),
		TotalCharacters:          totalChars,
		EstimatedDurationSeconds: estimated,
	}
}

// ParseFile reads and parses a markdown file from disk.
func (p *Parser) ParseFile(path, language string) (ParsedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ParsedDocument{}, fmt.Errorf("read document: %w", err)
	}
	return p.Parse(string(data), filepath.Base(path), language), nil
}
