package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"transcoderctl/internal/api"
)

// Snapshot is the most recently fetched job page.
type Snapshot struct {
	Page      int
	PageSize  int
	FetchedAt time.Time
	Jobs      []api.Job
}

// SaveJobs replaces the cached job page.
func (s *Store) SaveJobs(ctx context.Context, page, pageSize int, jobs []api.Job) error {
	fetchedAt := formatTime(s.now())
	payloads := make([]string, len(jobs))
	for i, job := range jobs {
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("encode job %s: %w", job.JobID, err)
		}
		payloads[i] = string(data)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM job_snapshots"); err != nil {
			return fmt.Errorf("clear job snapshots: %w", err)
		}
		for i, job := range jobs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO job_snapshots (position, job_id, state, payload, page, page_size, fetched_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				i, job.JobID, job.State, payloads[i], page, pageSize, fetchedAt,
			); err != nil {
				return fmt.Errorf("insert job snapshot %s: %w", job.JobID, err)
			}
		}
		return nil
	})
}

// CachedJobs returns the last saved page. ok is false when nothing has been saved.
func (s *Store) CachedJobs(ctx context.Context) (snap Snapshot, ok bool, err error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT payload, page, page_size, fetched_at FROM job_snapshots ORDER BY position")
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("query job snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			payload   string
			fetchedAt string
			job       api.Job
		)
		if err := rows.Scan(&payload, &snap.Page, &snap.PageSize, &fetchedAt); err != nil {
			return Snapshot{}, false, fmt.Errorf("scan job snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			return Snapshot{}, false, fmt.Errorf("decode job snapshot: %w", err)
		}
		snap.FetchedAt = parseTime(fetchedAt)
		snap.Jobs = append(snap.Jobs, job)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, false, err
	}
	return snap, len(snap.Jobs) > 0, nil
}
