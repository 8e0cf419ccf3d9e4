package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vaanilabs/vaachak/internal/config"
	_ "modernc.org/sqlite"
)

// Event is one recorded entry on a job's timeline.
type Event struct {
	ID        int64
	JobID     string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Store keeps a SQLite-backed timeline of generation job events: started,
// per-chunk completion, terminal completion and export writes. Jobs and
// their audio stay in memory; only this audit trail persists.
type Store struct {
	db    *sql.DB
	cfg   config.AuditConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the audit store according to config. Retention mode
// "ephemeral" yields a no-op store with no database behind it.
func Open(ctx context.Context, cfg config.AuditConfig, log *slog.Logger) (*Store, error) {
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if err := s.vacuum(ctx); err != nil {
			log.Warn("audit store vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("audit store prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	ddl := `
CREATE TABLE IF NOT EXISTS jobs (
    job_id TEXT PRIMARY KEY,
    filename TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id TEXT NOT NULL,
    event_type TEXT,
    payload BLOB,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY(job_id) REFERENCES jobs(job_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_events_job_created ON events(job_id, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) vacuum(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends one event to a job's timeline, creating the job row on
// first sight. Payload is stored as JSON; a nil payload stores NULL.
// Satisfies the orchestrator's recorder hook; failures are logged, never
// surfaced, so auditing can never break a generation run.
func (s *Store) Record(ctx context.Context, jobID, eventType string, payload any) {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return
	}
	var blob []byte
	if payload != nil {
		var err error
		blob, err = json.Marshal(payload)
		if err != nil {
			s.log.Warn("audit payload marshal failed",
				slog.String("job_id", jobID),
				slog.String("event_type", eventType),
				slog.String("error", err.Error()))
			return
		}
	}
	now := s.clock().UTC()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs(job_id, filename, created_at) VALUES(?, ?, ?)
		 ON CONFLICT(job_id) DO NOTHING`,
		jobID, filenameFrom(payload), now); err != nil {
		s.log.Warn("audit job row insert failed", slog.String("job_id", jobID), slog.String("error", err.Error()))
		return
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO events(job_id, event_type, payload, created_at) VALUES(?, ?, ?, ?)`,
		jobID, eventType, blob, now); err != nil {
		s.log.Warn("audit event insert failed", slog.String("job_id", jobID), slog.String("error", err.Error()))
	}
}

// filenameFrom pulls the document filename out of a job_started payload so
// the jobs table stays queryable by source document.
func filenameFrom(payload any) string {
	if m, ok := payload.(map[string]any); ok {
		if name, ok := m["filename"].(string); ok {
			return name
		}
	}
	return ""
}

// JobEvents retrieves up to limit events for a job ordered ascending by time.
func (s *Store) JobEvents(ctx context.Context, jobID string, limit int) ([]Event, error) {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, event_type, payload, created_at
		 FROM events WHERE job_id = ? ORDER BY created_at ASC, id ASC LIMIT ?`, jobID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var created string
		if err := rows.Scan(&e.ID, &e.JobID, &e.Type, &e.Payload, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = ts
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune applies configured retention: events and jobs older than the
// retention window, then the oldest jobs beyond the max-jobs cap.
func (s *Store) Prune(ctx context.Context) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err = tx.ExecContext(ctx, `DELETE FROM events WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM jobs WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
	}
	if s.cfg.MaxJobs > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM jobs WHERE job_id IN (
			SELECT job_id FROM jobs ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxJobs)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}
