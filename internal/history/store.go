package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"pitch-shifter/internal/domain"
)

// Entry is one finished job as recorded in the export history.
type Entry struct {
	JobID      string           `json:"jobId"`
	InputPath  string           `json:"inputPath"`
	OutputPath string           `json:"outputPath"`
	Kind       domain.MediaKind `json:"kind"`
	Semitones  float64          `json:"semitones"`
	SampleRate int              `json:"sampleRate"`
	Status     domain.JobStatus `json:"status"`
	ErrorKind  domain.ErrorKind `json:"errorKind,omitempty"`
	FinishedAt time.Time        `json:"finishedAt"`
}

// Store persists finished jobs in a local SQLite database so past exports
// survive restarts.
type Store struct {
	db *sql.DB
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS exports (
	job_id      TEXT PRIMARY KEY,
	input_path  TEXT NOT NULL,
	output_path TEXT NOT NULL,
	kind        TEXT NOT NULL,
	semitones   REAL NOT NULL,
	sample_rate INTEGER NOT NULL,
	status      TEXT NOT NULL,
	error_kind  TEXT NOT NULL DEFAULT '',
	finished_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exports_finished_at ON exports(finished_at);
`

// Open creates or opens the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record upserts one finished job.
func (s *Store) Record(entry Entry) error {
	if entry.FinishedAt.IsZero() {
		entry.FinishedAt = time.Now().UTC()
	}

	query := `INSERT OR REPLACE INTO exports
		(job_id, input_path, output_path, kind, semitones, sample_rate, status, error_kind, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query,
		entry.JobID,
		entry.InputPath,
		entry.OutputPath,
		string(entry.Kind),
		entry.Semitones,
		entry.SampleRate,
		string(entry.Status),
		string(entry.ErrorKind),
		entry.FinishedAt.Unix(),
	)
	return err
}

// Recent returns the newest entries, most recent first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT job_id, input_path, output_path, kind, semitones, sample_rate, status, error_kind, finished_at
		FROM exports ORDER BY finished_at DESC, job_id DESC LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Entry
	for rows.Next() {
		var entry Entry
		var kind, status, errorKind string
		var finishedAt int64

		if err := rows.Scan(
			&entry.JobID,
			&entry.InputPath,
			&entry.OutputPath,
			&kind,
			&entry.Semitones,
			&entry.SampleRate,
			&status,
			&errorKind,
			&finishedAt,
		); err != nil {
			return nil, err
		}

		entry.Kind = domain.MediaKind(kind)
		entry.Status = domain.JobStatus(status)
		entry.ErrorKind = domain.ErrorKind(errorKind)
		entry.FinishedAt = time.Unix(finishedAt, 0).UTC()
		results = append(results, entry)
	}
	return results, rows.Err()
}

// Prune deletes everything but the newest keep entries.
func (s *Store) Prune(keep int) error {
	if keep <= 0 {
		return nil
	}

	query := `DELETE FROM exports WHERE job_id NOT IN (
		SELECT job_id FROM exports ORDER BY finished_at DESC, job_id DESC LIMIT ?
	)`
	_, err := s.db.Exec(query, keep)
	return err
}
