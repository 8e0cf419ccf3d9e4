package synth

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/vaanilabs/vaachak/internal/markdown"
)

// MockSynth produces silent PCM proportional to text length without any
// network or process I/O. Used in tests and for dry runs.
type MockSynth struct {
	SampleRate int
	// FailChunks marks chunk ids that should report a synthetic failure.
	FailChunks map[int]bool
}

func NewMockSynth(sampleRate int) *MockSynth {
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	return &MockSynth{SampleRate: sampleRate}
}

func (m *MockSynth) Synthesize(ctx context.Context, chunk markdown.ContentChunk, settings Settings) (Result, CallStat) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return failure(chunk.ID, err.Error()), stat(chunk.ID, chunk.CharCount, 0, 0, start, err.Error())
	}
	if m.FailChunks[chunk.ID] {
		const msg = "mock synthesis failure"
		return failure(chunk.ID, msg), stat(chunk.ID, chunk.CharCount, 0, 0, start, msg)
	}

	// 40ms of audio per character keeps durations text-proportional.
	samples := chunk.CharCount * m.SampleRate / 25
	if samples == 0 {
		samples = m.SampleRate / 25
	}
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], 0)
	}

	return Result{
			ChunkID:    chunk.ID,
			Success:    true,
			Audio:      pcm,
			DurationMS: estimateDurationMS(pcm),
		}, CallStat{
			ChunkID:        chunk.ID,
			CharactersSent: chunk.CharCount,
			BytesSent:      chunk.CharCount,
			BytesReceived:  len(pcm),
			DurationMS:     int(time.Since(start).Milliseconds()),
			Success:        true,
		}
}
