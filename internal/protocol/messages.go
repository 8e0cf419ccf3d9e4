package protocol

import (
	"github.com/vaanilabs/vaachak/internal/job"
)

// JobProgress mirrors a generation job snapshot onto the bus so other
// processes (dashboards, edge players) can follow along without polling.
type JobProgress struct {
	JobID           string     `json:"job_id"`
	Filename        string     `json:"filename"`
	TotalChunks     int        `json:"total_chunks"`
	CompletedChunks int        `json:"completed_chunks"`
	Status          job.Status `json:"status"`
}

// ExportWritten announces a finished audio export.
type ExportWritten struct {
	JobID           string  `json:"job_id"`
	Path            string  `json:"output_path"`
	Format          string  `json:"format"`
	DurationSeconds float64 `json:"duration_seconds"`
}

const (
	SubjectJobProgress   = "tts.job.progress"
	SubjectJobDone       = "tts.job.done"
	SubjectExportWritten = "tts.export.written"
)

// FromSnapshot trims a snapshot down to the wire shape; per-chunk results
// stay off the bus.
func FromSnapshot(s job.Snapshot) JobProgress {
	return JobProgress{
		JobID:           s.JobID,
		Filename:        s.Filename,
		TotalChunks:     s.TotalChunks,
		CompletedChunks: s.CompletedChunks,
		Status:          s.Status,
	}
}
