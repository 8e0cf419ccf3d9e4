package markdown

// ChunkKind classifies a content chunk. The set is closed; prosody treatment
// is looked up per kind rather than branched at call sites.
type ChunkKind string

const (
	KindHeading1   ChunkKind = "h1"
	KindHeading2   ChunkKind = "h2"
	KindHeading3   ChunkKind = "h3"
	KindParagraph  ChunkKind = "paragraph"
	KindBullet     ChunkKind = "bullet"
	KindCode       ChunkKind = "code"
	KindBlockquote ChunkKind = "blockquote"
)

// IsHeading reports whether the kind is one of the heading levels.
func (k ChunkKind) IsHeading() bool {
	return k == KindHeading1 || k == KindHeading2 || k == KindHeading3
}

// ContentChunk is one unit of text assigned a single synthesis call.
// Immutable once produced; owned by its ParsedDocument.
type ContentChunk struct {
	ID            int       `json:"id"`
	Kind          ChunkKind `json:"type"`
	Text          string    `json:"text"`
	RawText       string    `json:"raw_text"`
	CharCount     int       `json:"char_count"`
	PauseAfterMS  int       `json:"pause_after_ms"`
	LoudnessBoost float64   `json:"loudness_boost"`
}

// ParsedDocument is the result of parsing one markdown document.
// Chunk ids are dense and ascending in reading order, starting at 0.
type ParsedDocument struct {
	Filename                 string         `json:"filename"`
	Language                 string         `json:"language"`
	Title                    string         `json:"title,omitempty"`
	Chunks                   []ContentChunk `json:"chunks"`
	TotalChunks              int            `json:"total_chunks"`
	TotalCharacters          int            `json:"total_characters"`
	EstimatedDurationSeconds float64        `json:"estimated_duration_seconds"`
}

// Chunk returns the chunk with the given id, or nil.
func (d *ParsedDocument) Chunk(id int) *ContentChunk {
	if id >= 0 && id < len(d.Chunks) && d.Chunks[id].ID == id {
		return &d.Chunks[id]
	}
	for i := range d.Chunks {
		if d.Chunks[i].ID == id {
			return &d.Chunks[i]
		}
	}
	return nil
}

// Prosody is the pause/loudness treatment applied after a chunk.
type Prosody struct {
	PauseMS  int
	Loudness float64
}

// ProsodyTable maps chunk kinds to their treatment.
type ProsodyTable map[ChunkKind]Prosody

// DefaultProsody mirrors the shipped configuration defaults.
func DefaultProsody() ProsodyTable {
	return ProsodyTable{
		KindHeading1:   {PauseMS: 800, Loudness: 1.3},
		KindHeading2:   {PauseMS: 600, Loudness: 1.2},
		KindHeading3:   {PauseMS: 400, Loudness: 1.1},
		KindParagraph:  {PauseMS: 300, Loudness: 1.0},
		KindBullet:     {PauseMS: 200, Loudness: 1.0},
		KindCode:       {PauseMS: 300, Loudness: 1.0},
		KindBlockquote: {PauseMS: 300, Loudness: 1.0},
	}
}

func (t ProsodyTable) lookup(kind ChunkKind) Prosody {
	if p, ok := t[kind]; ok {
		return p
	}
	return Prosody{PauseMS: 300, Loudness: 1.0}
}
