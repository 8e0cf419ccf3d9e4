package job

import (
	"errors"

	"github.com/vaanilabs/vaachak/internal/markdown"
	"github.com/vaanilabs/vaachak/internal/synth"
)

var (
	// ErrNotFound is returned for unknown job or chunk ids.
	ErrNotFound = errors.New("job not found")
	// ErrNoFragments is returned when a job has produced no audio at all.
	ErrNoFragments = errors.New("no audio fragments for job")
)

// Status is the job lifecycle state. A job always reaches completed once
// every selected chunk has been attempted; failed exists for API
// compatibility but is never set by the orchestrator.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ChunkResult records one attempted chunk, appended in processing order and
// never mutated afterwards. Audio lives in the fragment cache, not here.
type ChunkResult struct {
	ChunkID    int    `json:"chunk_id"`
	Success    bool   `json:"success"`
	DurationMS int    `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Snapshot is an immutable copy of job progress handed to consumers.
type Snapshot struct {
	JobID           string        `json:"job_id"`
	Filename        string        `json:"filename"`
	TotalChunks     int           `json:"total_chunks"`
	CompletedChunks int           `json:"completed_chunks"`
	Status          Status        `json:"status"`
	Results         []ChunkResult `json:"results"`
	OutputPath      string        `json:"output_path,omitempty"`
}

// Fragment is the decoded audio for one successfully synthesized chunk.
type Fragment struct {
	ChunkID int
	Audio   []byte
}

// Summary is the aggregated call-stat rollup for one job.
type Summary struct {
	JobID                 string           `json:"job_id"`
	Filename              string           `json:"filename"`
	TotalCalls            int              `json:"total_api_calls"`
	SuccessfulCalls       int              `json:"successful_calls"`
	FailedCalls           int              `json:"failed_calls"`
	TotalCharacters       int              `json:"total_characters"`
	TotalBytesSent        int              `json:"total_bytes_sent"`
	TotalBytesReceived    int              `json:"total_bytes_received"`
	TotalDurationMS       int              `json:"total_duration_ms"`
	AverageResponseTimeMS float64          `json:"average_response_time_ms"`
	Calls                 []synth.CallStat `json:"calls"`
}

// Store is the process-wide registry of generation jobs, their audio
// fragment cache and call-stat log. Entries never expire implicitly; Evict
// reclaims a job and its fragments together.
type Store interface {
	Create(jobID string, doc markdown.ParsedDocument, totalChunks int)
	AppendResult(jobID string, result ChunkResult, stat synth.CallStat) error
	AddFragment(jobID string, chunkID int, audio []byte) error
	Complete(jobID string) error
	SetOutputPath(jobID, path string) error

	Snapshot(jobID string) (Snapshot, error)
	Document(jobID string) (markdown.ParsedDocument, error)
	Fragments(jobID string) ([]Fragment, error)
	Fragment(jobID string, chunkID int) ([]byte, error)
	Summary(jobID string) (Summary, error)
	Evict(jobID string)
}
