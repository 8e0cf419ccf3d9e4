package markdown

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	blockSplitPattern = regexp.MustCompile(`\n\s*\n`)
	h1Pattern         = regexp.MustCompile(`^#\s+(.+)`)
	h2Pattern         = regexp.MustCompile(`^##\s+(.+)`)
	h3Pattern         = regexp.MustCompile(`^###\s+(.+)`)
	bulletPattern     = regexp.MustCompile(`^[*+-]\s+(.+)`)
	numberedPattern   = regexp.MustCompile(`^\d+\.\s+(.+)`)
	quotePattern      = regexp.MustCompile(`^>\s+(.+)`)
)

// Chunker splits markdown into typed, size-bounded content chunks. Splitting
// prefers sentence boundaries and falls back to fixed-size rune slices when a
// single sentence exceeds the limit.
type Chunker struct {
	maxChunkChars int
	prosody       ProsodyTable
}

func NewChunker(maxChunkChars int, prosody ProsodyTable) *Chunker {
	if maxChunkChars <= 0 {
		maxChunkChars = 2000
	}
	if prosody == nil {
		prosody = DefaultProsody()
	}
	return &Chunker{maxChunkChars: maxChunkChars, prosody: prosody}
}

// Chunk parses document text into an ordered chunk sequence. Ids are dense
// and monotonic across the whole document, never reset per block.
func (c *Chunker) Chunk(content string) []ContentChunk {
	content = stripCodeBlocks(content)

	var chunks []ContentChunk
	for _, block := range blockSplitPattern.Split(content, -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		chunks = append(chunks, c.processBlock(block, len(chunks))...)
	}
	return chunks
}

// processBlock classifies one blank-line-delimited block. A heading consumes
// the whole block; list blocks yield one chunk per item line; quote blocks
// are joined into a single paragraph-like unit.
func (c *Chunker) processBlock(block string, startID int) []ContentChunk {
	headings := []struct {
		pattern *regexp.Regexp
		kind    ChunkKind
	}{
		{h3Pattern, KindHeading3},
		{h2Pattern, KindHeading2},
		{h1Pattern, KindHeading1},
	}
	for _, h := range headings {
		if m := h.pattern.FindStringSubmatch(block); m != nil {
			text := Normalize(m[1])
			if text == "" {
				return nil
			}
			return []ContentChunk{c.newChunk(startID, h.kind, text, block)}
		}
	}

	if c.isListBlock(block) {
		return c.listChunks(block, startID)
	}

	if quotePattern.MatchString(block) {
		var parts []string
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if m := quotePattern.FindStringSubmatch(line); m != nil {
				parts = append(parts, m[1])
			} else {
				parts = append(parts, line)
			}
		}
		return c.paragraphChunks(startID, Normalize(strings.Join(parts, " ")), block)
	}

	return c.paragraphChunks(startID, Normalize(block), block)
}

func (c *Chunker) isListBlock(block string) bool {
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if bulletPattern.MatchString(line) || numberedPattern.MatchString(line) {
			return true
		}
	}
	return false
}

func (c *Chunker) listChunks(block string, startID int) []ContentChunk {
	var chunks []ContentChunk
	id := startID
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var item string
		if m := bulletPattern.FindStringSubmatch(line); m != nil {
			item = m[1]
		} else if m := numberedPattern.FindStringSubmatch(line); m != nil {
			item = m[1]
		} else {
			continue
		}
		text := Normalize(item)
		if text == "" {
			continue
		}
		chunks = append(chunks, c.newChunk(id, KindBullet, text, line))
		id++
	}
	return chunks
}

// paragraphChunks emits one chunk when the text fits, otherwise packs
// sentences greedily up to the size limit. A single oversize sentence is
// hard-split into fixed-size rune slices; that fallback has no further
// semantic awareness.
func (c *Chunker) paragraphChunks(startID int, text, raw string) []ContentChunk {
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= c.maxChunkChars {
		return []ContentChunk{c.newChunk(startID, KindParagraph, text, raw)}
	}

	var chunks []ContentChunk
	id := startID
	flush := func(buf string) {
		buf = strings.TrimSpace(buf)
		if buf == "" {
			return
		}
		chunks = append(chunks, c.newChunk(id, KindParagraph, buf, buf))
		id++
	}

	var current string
	for _, sentence := range splitSentences(text) {
		if utf8.RuneCountInString(sentence) > c.maxChunkChars {
			flush(current)
			current = ""
			runes := []rune(sentence)
			for i := 0; i < len(runes); i += c.maxChunkChars {
				end := i + c.maxChunkChars
				if end > len(runes) {
					end = len(runes)
				}
				flush(string(runes[i:end]))
			}
			continue
		}
		candidate := strings.TrimSpace(current + " " + sentence)
		if utf8.RuneCountInString(candidate) > c.maxChunkChars {
			flush(current)
			current = sentence
		} else {
			current = candidate
		}
	}
	flush(current)
	return chunks
}

func (c *Chunker) newChunk(id int, kind ChunkKind, text, raw string) ContentChunk {
	p := c.prosody.lookup(kind)
	loudness := p.Loudness
	if !kind.IsHeading() {
		loudness = 1.0
	}
	return ContentChunk{
		ID:            id,
		Kind:          kind,
		Text:          text,
		RawText:       raw,
		CharCount:     utf8.RuneCountInString(text),
		PauseAfterMS:  p.PauseMS,
		LoudnessBoost: loudness,
	}
}

// splitSentences breaks text after sentence terminators (., !, ? and the
// Devanagari full stop) that are followed by whitespace. Terminators stay
// attached to their sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		if isSentenceTerminator(runes[i]) && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
			for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				i++
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func isSentenceTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '।'
}
