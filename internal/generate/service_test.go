package generate

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/vaanilabs/vaachak/internal/config"
	"github.com/vaanilabs/vaachak/internal/job"
	"github.com/vaanilabs/vaachak/internal/markdown"
	"github.com/vaanilabs/vaachak/internal/synth"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testService(t *testing.T, mock synth.Synthesizer) (*Service, *job.MemoryStore) {
	t.Helper()
	store := job.NewMemoryStore()
	cfg := config.SynthConfig{CallTimeoutMS: 1000, PacingDelayMS: 1}
	return NewService(cfg, store, mock, testLogger()), store
}

func testDocument(nChunks int) markdown.ParsedDocument {
	doc := markdown.ParsedDocument{Filename: "doc.md", Language: "hi"}
	for i := 0; i < nChunks; i++ {
		doc.Chunks = append(doc.Chunks, markdown.ContentChunk{
			ID: i, Kind: markdown.KindParagraph, Text: "some text", CharCount: 9,
			PauseAfterMS: 300, LoudnessBoost: 1.0,
		})
	}
	doc.TotalChunks = nChunks
	return doc
}

func collect(ch <-chan job.Snapshot) []job.Snapshot {
	var snaps []job.Snapshot
	for s := range ch {
		snaps = append(snaps, s)
	}
	return snaps
}

func TestGenerateEmitsInitialSnapshotFirst(t *testing.T) {
	svc, _ := testService(t, synth.NewMockSynth(48000))
	_, ch := svc.Generate(context.Background(), testDocument(2), synth.Settings{Pace: 1.0}, nil)
	snaps := collect(ch)
	if len(snaps) != 4 { // initial + 2 chunks + final
		t.Fatalf("expected 4 snapshots, got %d", len(snaps))
	}
	first := snaps[0]
	if first.CompletedChunks != 0 || first.Status != job.StatusProcessing || len(first.Results) != 0 {
		t.Fatalf("unexpected initial snapshot: %+v", first)
	}
}

func TestGenerateCompletesInOrder(t *testing.T) {
	svc, store := testService(t, synth.NewMockSynth(48000))
	jobID, ch := svc.Generate(context.Background(), testDocument(3), synth.Settings{Pace: 1.0}, nil)
	snaps := collect(ch)

	last := snaps[len(snaps)-1]
	if last.Status != job.StatusCompleted || last.CompletedChunks != 3 {
		t.Fatalf("unexpected final snapshot: %+v", last)
	}
	// completed_chunks is monotonically non-decreasing across emissions
	prev := -1
	for _, s := range snaps {
		if s.CompletedChunks < prev {
			t.Fatalf("completed_chunks regressed: %+v", snaps)
		}
		prev = s.CompletedChunks
	}
	// results appended in ascending chunk-id order
	for i, r := range last.Results {
		if r.ChunkID != i {
			t.Fatalf("result %d has chunk id %d", i, r.ChunkID)
		}
	}

	frags, err := store.Fragments(jobID)
	if err != nil {
		t.Fatalf("fragments: %v", err)
	}
	if len(frags) != 3 {
		t.Fatalf("expected 3 fragments, got %d", len(frags))
	}
}

func TestGenerateChunkSelection(t *testing.T) {
	svc, _ := testService(t, synth.NewMockSynth(48000))
	_, ch := svc.Generate(context.Background(), testDocument(5), synth.Settings{Pace: 1.0}, []int{1, 3})
	snaps := collect(ch)
	last := snaps[len(snaps)-1]
	if last.TotalChunks != 2 || last.CompletedChunks != 2 {
		t.Fatalf("unexpected totals: %+v", last)
	}
	if last.Results[0].ChunkID != 1 || last.Results[1].ChunkID != 3 {
		t.Fatalf("unexpected selection order: %+v", last.Results)
	}
}

func TestGenerateFailuresDoNotAbort(t *testing.T) {
	mock := synth.NewMockSynth(48000)
	mock.FailChunks = map[int]bool{0: true, 1: true, 2: true}
	svc, store := testService(t, mock)
	jobID, ch := svc.Generate(context.Background(), testDocument(3), synth.Settings{Pace: 1.0}, nil)
	snaps := collect(ch)

	last := snaps[len(snaps)-1]
	if last.Status != job.StatusCompleted {
		t.Fatalf("job must complete even with 100%% chunk failure: %+v", last)
	}
	for _, r := range last.Results {
		if r.Success || r.Error == "" {
			t.Fatalf("expected failed result with error: %+v", r)
		}
	}
	frags, _ := store.Fragments(jobID)
	if len(frags) != 0 {
		t.Fatalf("failed chunks must not cache fragments, got %d", len(frags))
	}
}

func TestGenerateFragmentsMatchSuccesses(t *testing.T) {
	mock := synth.NewMockSynth(48000)
	mock.FailChunks = map[int]bool{1: true}
	svc, store := testService(t, mock)
	jobID, ch := svc.Generate(context.Background(), testDocument(3), synth.Settings{Pace: 1.0}, nil)
	snaps := collect(ch)

	last := snaps[len(snaps)-1]
	succeeded := map[int]bool{}
	for _, r := range last.Results {
		if r.Success {
			succeeded[r.ChunkID] = true
		}
	}
	frags, _ := store.Fragments(jobID)
	if len(frags) != len(succeeded) {
		t.Fatalf("fragments (%d) not bijective with successes (%d)", len(frags), len(succeeded))
	}
	for _, f := range frags {
		if !succeeded[f.ChunkID] {
			t.Fatalf("fragment for unsuccessful chunk %d", f.ChunkID)
		}
	}
}

func TestGenerateCancellationStopsCalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc, _ := testService(t, synth.NewMockSynth(48000))
	_, ch := svc.Generate(ctx, testDocument(10), synth.Settings{Pace: 1.0}, nil)

	// read the initial snapshot, then walk away
	<-ch
	cancel()

	for range ch {
		// drain whatever was in flight; the channel must close promptly
	}
}

type recordingSink struct {
	mu       sync.Mutex
	progress int
	done     int
}

func (r *recordingSink) Progress(job.Snapshot) {
	r.mu.Lock()
	r.progress++
	r.mu.Unlock()
}

func (r *recordingSink) Done(job.Snapshot) {
	r.mu.Lock()
	r.done++
	r.mu.Unlock()
}

func TestGenerateNotifiesSink(t *testing.T) {
	sink := &recordingSink{}
	svc, _ := testService(t, synth.NewMockSynth(48000))
	svc.WithSink(sink)
	_, ch := svc.Generate(context.Background(), testDocument(2), synth.Settings{Pace: 1.0}, nil)
	collect(ch)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.done != 1 {
		t.Fatalf("expected 1 done notification, got %d", sink.done)
	}
	if sink.progress != 3 { // initial + 2 chunks
		t.Fatalf("expected 3 progress notifications, got %d", sink.progress)
	}
}

func TestGenerateFreshJobIDs(t *testing.T) {
	svc, _ := testService(t, synth.NewMockSynth(48000))
	id1, ch1 := svc.Generate(context.Background(), testDocument(1), synth.Settings{Pace: 1.0}, nil)
	collect(ch1)
	id2, ch2 := svc.Generate(context.Background(), testDocument(1), synth.Settings{Pace: 1.0}, nil)
	collect(ch2)
	if id1 == id2 {
		t.Fatal("each generation run must allocate a fresh job id")
	}
}
