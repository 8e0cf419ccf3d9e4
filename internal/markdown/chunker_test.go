package markdown

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func newTestChunker(max int) *Chunker {
	return NewChunker(max, DefaultProsody())
}

func TestChunkHeadingAndParagraph(t *testing.T) {
	chunks := newTestChunker(1000).Chunk("# Title\n\nSome text. More text.")
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Kind != KindHeading1 || chunks[0].Text != "Title" {
		t.Fatalf("unexpected heading chunk: %+v", chunks[0])
	}
	if chunks[1].Kind != KindParagraph || chunks[1].Text != "Some text. More text." {
		t.Fatalf("unexpected paragraph chunk: %+v", chunks[1])
	}
}

func TestChunkIDsDenseAndOrdered(t *testing.T) {
	content := "# One\n\nPara one.\n\n## Two\n\n- a\n- b\n- c\n\n> quoted text here\n\nFinal para."
	chunks := newTestChunker(1000).Chunk(content)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, c := range chunks {
		if c.ID != i {
			t.Fatalf("chunk %d has id %d, want %d", i, c.ID, i)
		}
	}
}

func TestChunkHeadingLevels(t *testing.T) {
	chunks := newTestChunker(1000).Chunk("# A\n\n## B\n\n### C")
	kinds := []ChunkKind{KindHeading1, KindHeading2, KindHeading3}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, k := range kinds {
		if chunks[i].Kind != k {
			t.Fatalf("chunk %d kind %q, want %q", i, chunks[i].Kind, k)
		}
	}
	// pause and loudness scale down with heading level
	if !(chunks[0].PauseAfterMS > chunks[1].PauseAfterMS && chunks[1].PauseAfterMS > chunks[2].PauseAfterMS) {
		t.Fatalf("heading pauses not decreasing: %d %d %d", chunks[0].PauseAfterMS, chunks[1].PauseAfterMS, chunks[2].PauseAfterMS)
	}
	if !(chunks[0].LoudnessBoost > chunks[1].LoudnessBoost && chunks[1].LoudnessBoost > chunks[2].LoudnessBoost) {
		t.Fatal("heading loudness not decreasing")
	}
}

func TestOnlyHeadingsCarryLoudness(t *testing.T) {
	chunks := newTestChunker(1000).Chunk("# H\n\nplain paragraph\n\n- bullet item")
	for _, c := range chunks {
		if c.Kind.IsHeading() {
			if c.LoudnessBoost <= 1.0 {
				t.Fatalf("heading chunk without boost: %+v", c)
			}
		} else if c.LoudnessBoost != 1.0 {
			t.Fatalf("non-heading chunk with boost: %+v", c)
		}
	}
}

func TestChunkBulletsOnePerLine(t *testing.T) {
	chunks := newTestChunker(1000).Chunk("- first item\n- second item\n3. third item")
	if len(chunks) != 3 {
		t.Fatalf("expected 3 bullet chunks, got %d: %+v", len(chunks), chunks)
	}
	for _, c := range chunks {
		if c.Kind != KindBullet {
			t.Fatalf("expected bullet kind, got %+v", c)
		}
	}
	if chunks[2].Text != "third item" {
		t.Fatalf("numbered item text: %q", chunks[2].Text)
	}
}

func TestChunkBlockquoteJoined(t *testing.T) {
	chunks := newTestChunker(1000).Chunk("> first line\n> second line")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Kind != KindParagraph {
		t.Fatalf("expected paragraph kind, got %q", chunks[0].Kind)
	}
	if chunks[0].Text != "first line second line" {
		t.Fatalf("unexpected quote text: %q", chunks[0].Text)
	}
}

func TestChunkSentencePacking(t *testing.T) {
	sentence := strings.Repeat("word ", 30) + "end."
	content := strings.TrimSpace(strings.Repeat(sentence+" ", 20))
	chunks := newTestChunker(500).Chunk(content)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if c.Kind != KindParagraph {
			t.Fatalf("expected paragraph, got %q", c.Kind)
		}
		if c.CharCount > 500 {
			t.Fatalf("chunk exceeds limit: %d chars", c.CharCount)
		}
	}
}

func TestChunkHardSplitWithoutPunctuation(t *testing.T) {
	content := strings.Repeat("a", 5000)
	chunks := newTestChunker(2000).Chunk(content)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	sizes := []int{2000, 2000, 1000}
	for i, c := range chunks {
		if c.Kind != KindParagraph {
			t.Fatalf("chunk %d kind %q", i, c.Kind)
		}
		if c.CharCount != sizes[i] {
			t.Fatalf("chunk %d size %d, want %d", i, c.CharCount, sizes[i])
		}
	}
}

func TestChunkDevanagariSentences(t *testing.T) {
	content := "यह पहला वाक्य है। यह दूसरा वाक्य है। यह तीसरा वाक्य है।"
	chunks := newTestChunker(30).Chunk(content)
	if len(chunks) < 2 {
		t.Fatalf("expected purna viram splits, got %d chunks", len(chunks))
	}
	for _, c := range chunks {
		if c.CharCount != utf8.RuneCountInString(c.Text) {
			t.Fatalf("char count %d != rune count for %q", c.CharCount, c.Text)
		}
	}
}

func TestChunkEmptyBlocksSkipped(t *testing.T) {
	chunks := newTestChunker(1000).Chunk("\n\n   \n\npara\n\n\n\n")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestChunkEmptyAfterNormalizationProducesNothing(t *testing.T) {
	chunks := newTestChunker(1000).Chunk("---")
	if len(chunks) != 0 {
		t.Fatalf("expected 0 chunks, got %d: %+v", len(chunks), chunks)
	}
}

func TestChunkIdempotent(t *testing.T) {
	content := "# Title\n\nFirst para. Second sentence.\n\n- one\n- two\n\n> a quote"
	a := newTestChunker(1000).Chunk(content)
	b := newTestChunker(1000).Chunk(content)
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("One. Two! Three? Four। Five")
	want := []string{"One.", "Two!", "Three?", "Four।", "Five"}
	if len(got) != len(want) {
		t.Fatalf("got %d sentences %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sentence %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitSentencesNoBoundaryInsideWord(t *testing.T) {
	got := splitSentences("Version 1.5 is out. Done.")
	if len(got) != 2 {
		t.Fatalf("expected 2 sentences, got %v", got)
	}
	if got[0] != "Version 1.5 is out." {
		t.Fatalf("unexpected first sentence: %q", got[0])
	}
}
