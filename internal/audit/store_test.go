package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/vaanilabs/vaachak/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	ctx := context.Background()
	cfg := config.AuditConfig{RetentionMode: "ephemeral"}
	s, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	// ephemeral stores swallow records silently
	s.Record(ctx, "job-1", "job_started", map[string]any{"filename": "doc.md"})
	events, err := s.JobEvents(ctx, "job-1", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("ephemeral store must not retain events, got %d", len(events))
	}
}

func TestRecordAndQuery(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.AuditConfig{Path: filepath.Join(tmp, "audit.db"), RetentionMode: "session"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open audit store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	jobID := "job-123"
	s.Record(context.Background(), jobID, "job_started", map[string]any{"filename": "doc.md", "total_chunks": 3})
	s.Record(context.Background(), jobID, "chunk_completed", map[string]any{"chunk_id": 0, "success": true})
	s.Record(context.Background(), jobID, "job_completed", nil)

	events, err := s.JobEvents(context.Background(), jobID, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Type != "job_started" || events[2].Type != "job_completed" {
		t.Fatalf("unexpected event order: %q, %q", events[0].Type, events[2].Type)
	}

	var payload map[string]any
	if err := json.Unmarshal(events[0].Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["filename"] != "doc.md" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if len(events[2].Payload) != 0 {
		t.Fatalf("nil payload must store empty, got %q", events[2].Payload)
	}
}

func TestJobEventsUnknownJob(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.AuditConfig{Path: filepath.Join(tmp, "audit.db"), RetentionMode: "session"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open audit store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	events, err := s.JobEvents(context.Background(), "missing", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}

func TestPruneByDaysAndJobs(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.AuditConfig{Path: filepath.Join(tmp, "audit.db"), RetentionMode: "persistent", RetentionDays: 1, MaxJobs: 1}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open audit store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	s.clock = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	s.Record(context.Background(), "old-job", "job_started", map[string]any{"filename": "a.md"})

	s.clock = func() time.Time { return time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC) }
	s.Record(context.Background(), "new-job", "job_started", map[string]any{"filename": "b.md"})
	if err := s.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	events, err := s.JobEvents(context.Background(), "old-job", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected old job pruned")
	}
	events, err = s.JobEvents(context.Background(), "new-job", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected new job retained, got %d events", len(events))
	}
}
