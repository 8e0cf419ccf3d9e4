package generate

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vaanilabs/vaachak/internal/config"
	"github.com/vaanilabs/vaachak/internal/job"
	"github.com/vaanilabs/vaachak/internal/markdown"
	"github.com/vaanilabs/vaachak/internal/synth"
)

// ProgressSink receives job snapshots as they are produced, e.g. for
// mirroring onto a message bus. Implementations must not block.
type ProgressSink interface {
	Progress(snapshot job.Snapshot)
	Done(snapshot job.Snapshot)
}

// Recorder persists job lifecycle events for auditing.
type Recorder interface {
	Record(ctx context.Context, jobID, eventType string, payload any)
}

// Service is the generation orchestrator. It owns the per-job state
// machine: chunks are synthesized strictly sequentially within a job, with
// cooperative pacing between calls, while independent jobs interleave
// freely around the shared store.
type Service struct {
	store       job.Store
	synthesizer synth.Synthesizer
	sink        ProgressSink
	recorder    Recorder
	callTimeout time.Duration
	pacingDelay time.Duration
	logger      *slog.Logger
	metrics     *meters
}

func NewService(cfg config.SynthConfig, store job.Store, synthesizer synth.Synthesizer, log *slog.Logger) *Service {
	s := &Service{
		store:       store,
		synthesizer: synthesizer,
		callTimeout: time.Duration(cfg.CallTimeoutMS) * time.Millisecond,
		pacingDelay: time.Duration(cfg.PacingDelayMS) * time.Millisecond,
		logger:      log.With(slog.String("component", "generate-service")),
	}
	m, err := newMeters()
	if err != nil {
		s.logger.Warn("metrics disabled", slog.String("error", err.Error()))
	} else {
		s.metrics = m
	}
	return s
}

// WithSink attaches an optional progress sink.
func (s *Service) WithSink(sink ProgressSink) *Service {
	s.sink = sink
	return s
}

// WithRecorder attaches an optional audit recorder.
func (s *Service) WithRecorder(rec Recorder) *Service {
	s.recorder = rec
	return s
}

// Store exposes the job registry backing this service.
func (s *Service) Store() job.Store { return s.store }

// Generate starts a fresh job for the document and returns its id plus a
// snapshot stream. The first snapshot is emitted before any synthesis call;
// one follows each attempted chunk; the final one carries completed status.
// Cancelling ctx stops the loop at the next yield point without leaking the
// producer goroutine.
func (s *Service) Generate(ctx context.Context, doc markdown.ParsedDocument, settings synth.Settings, chunkIDs []int) (string, <-chan job.Snapshot) {
	jobID := uuid.NewString()
	chunks := selectChunks(doc.Chunks, chunkIDs)

	s.store.Create(jobID, doc, len(chunks))
	s.record(ctx, jobID, "job_started", map[string]any{
		"filename":     doc.Filename,
		"total_chunks": len(chunks),
	})
	s.logger.Info("generation started",
		slog.String("job_id", jobID),
		slog.String("filename", doc.Filename),
		slog.Int("chunks", len(chunks)))

	out := make(chan job.Snapshot)
	go s.run(ctx, jobID, chunks, settings, out)
	return jobID, out
}

func (s *Service) run(ctx context.Context, jobID string, chunks []markdown.ContentChunk, settings synth.Settings, out chan<- job.Snapshot) {
	defer close(out)

	if !s.emit(ctx, jobID, out, false) {
		return
	}

	for i, chunk := range chunks {
		if ctx.Err() != nil {
			s.logger.Warn("generation abandoned", slog.String("job_id", jobID), slog.Int("after_chunks", i))
			return
		}

		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		result, stat := s.synthesizer.Synthesize(callCtx, chunk, settings)
		cancel()

		s.observe(ctx, stat)

		res := job.ChunkResult{
			ChunkID:    chunk.ID,
			Success:    result.Success,
			DurationMS: result.DurationMS,
			Error:      result.Err,
		}
		if err := s.store.AppendResult(jobID, res, stat); err != nil {
			s.logger.Warn("job evicted mid-run", slog.String("job_id", jobID))
			return
		}
		if result.Success {
			_ = s.store.AddFragment(jobID, chunk.ID, result.Audio)
			s.logger.Debug("chunk completed",
				slog.String("job_id", jobID),
				slog.Int("chunk_id", chunk.ID),
				slog.Int("duration_ms", stat.DurationMS))
		} else {
			s.logger.Warn("chunk failed",
				slog.String("job_id", jobID),
				slog.Int("chunk_id", chunk.ID),
				slog.String("error", result.Err))
		}
		s.record(ctx, jobID, "chunk_completed", res)

		if !s.emit(ctx, jobID, out, false) {
			return
		}

		// Pacing between calls, not after the last; a cooperative yield
		// point rather than an unconditional sleep.
		if i < len(chunks)-1 && s.pacingDelay > 0 {
			select {
			case <-time.After(s.pacingDelay):
			case <-ctx.Done():
				return
			}
		}
	}

	if err := s.store.Complete(jobID); err != nil {
		return
	}
	s.record(ctx, jobID, "job_completed", nil)
	s.emit(ctx, jobID, out, true)

	if snap, err := s.store.Snapshot(jobID); err == nil {
		succeeded := 0
		for _, r := range snap.Results {
			if r.Success {
				succeeded++
			}
		}
		s.logger.Info("generation completed",
			slog.String("job_id", jobID),
			slog.Int("succeeded", succeeded),
			slog.Int("failed", len(snap.Results)-succeeded))
	}
}

// emit sends the current snapshot to the consumer and the optional sink.
// Returns false when the consumer has gone away.
func (s *Service) emit(ctx context.Context, jobID string, out chan<- job.Snapshot, final bool) bool {
	snap, err := s.store.Snapshot(jobID)
	if err != nil {
		return false
	}
	if s.sink != nil {
		if final {
			s.sink.Done(snap)
		} else {
			s.sink.Progress(snap)
		}
	}
	select {
	case out <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Service) observe(ctx context.Context, stat synth.CallStat) {
	if s.metrics == nil {
		return
	}
	s.metrics.calls.Add(ctx, 1)
	if !stat.Success {
		s.metrics.failures.Add(ctx, 1)
	}
	s.metrics.characters.Add(ctx, int64(stat.CharactersSent))
	s.metrics.bytesRecv.Add(ctx, int64(stat.BytesReceived))
	s.metrics.latency.Record(ctx, float64(stat.DurationMS))
}

func (s *Service) record(ctx context.Context, jobID, eventType string, payload any) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(ctx, jobID, eventType, payload)
}

// selectChunks keeps document order; a nil or empty id list selects all.
func selectChunks(chunks []markdown.ContentChunk, ids []int) []markdown.ContentChunk {
	if len(ids) == 0 {
		return chunks
	}
	wanted := make(map[int]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var selected []markdown.ContentChunk
	for _, c := range chunks {
		if wanted[c.ID] {
			selected = append(selected, c)
		}
	}
	return selected
}
