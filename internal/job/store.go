package job

import (
	"math"
	"sync"

	"github.com/vaanilabs/vaachak/internal/markdown"
	"github.com/vaanilabs/vaachak/internal/synth"
)

type jobState struct {
	doc       markdown.ParsedDocument
	snapshot  Snapshot
	fragments []Fragment
	stats     []synth.CallStat
}

// MemoryStore keeps all job state in process memory. Each job is written
// only by its own orchestration flow, but the maps are shared across jobs,
// so every access goes through one coarse lock.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*jobState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*jobState)}
}

func (s *MemoryStore) Create(jobID string, doc markdown.ParsedDocument, totalChunks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobID] = &jobState{
		doc: doc,
		snapshot: Snapshot{
			JobID:       jobID,
			Filename:    doc.Filename,
			TotalChunks: totalChunks,
			Status:      StatusProcessing,
		},
	}
}

func (s *MemoryStore) AppendResult(jobID string, result ChunkResult, stat synth.CallStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	st.snapshot.Results = append(st.snapshot.Results, result)
	st.stats = append(st.stats, stat)
	st.snapshot.CompletedChunks++
	return nil
}

func (s *MemoryStore) AddFragment(jobID string, chunkID int, audio []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	st.fragments = append(st.fragments, Fragment{ChunkID: chunkID, Audio: audio})
	return nil
}

func (s *MemoryStore) Complete(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	st.snapshot.Status = StatusCompleted
	return nil
}

func (s *MemoryStore) SetOutputPath(jobID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	st.snapshot.OutputPath = path
	return nil
}

// Snapshot returns a deep copy so consumers never observe in-place mutation.
func (s *MemoryStore) Snapshot(jobID string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.jobs[jobID]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	snap := st.snapshot
	snap.Results = append([]ChunkResult(nil), st.snapshot.Results...)
	return snap, nil
}

func (s *MemoryStore) Document(jobID string) (markdown.ParsedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.jobs[jobID]
	if !ok {
		return markdown.ParsedDocument{}, ErrNotFound
	}
	return st.doc, nil
}

func (s *MemoryStore) Fragments(jobID string) ([]Fragment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]Fragment(nil), st.fragments...), nil
}

func (s *MemoryStore) Fragment(jobID string, chunkID int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	for _, f := range st.fragments {
		if f.ChunkID == chunkID {
			return f.Audio, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Summary(jobID string) (Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.jobs[jobID]
	if !ok {
		return Summary{}, ErrNotFound
	}

	sum := Summary{
		JobID:    jobID,
		Filename: st.snapshot.Filename,
		Calls:    append([]synth.CallStat(nil), st.stats...),
	}
	for _, cs := range st.stats {
		sum.TotalCalls++
		if cs.Success {
			sum.SuccessfulCalls++
		} else {
			sum.FailedCalls++
		}
		sum.TotalCharacters += cs.CharactersSent
		sum.TotalBytesSent += cs.BytesSent
		sum.TotalBytesReceived += cs.BytesReceived
		sum.TotalDurationMS += cs.DurationMS
	}
	if sum.TotalCalls > 0 {
		avg := float64(sum.TotalDurationMS) / float64(sum.TotalCalls)
		sum.AverageResponseTimeMS = math.Round(avg*100) / 100
	}
	return sum, nil
}

func (s *MemoryStore) Evict(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
}
