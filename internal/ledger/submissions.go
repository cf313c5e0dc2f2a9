package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Submission kinds.
const (
	KindJob      = "job"
	KindPlaylist = "playlist"
)

// Submission is one job or playlist sent from this machine.
type Submission struct {
	ID           int64     `json:"id"`
	Kind         string    `json:"kind"`
	Name         string    `json:"name"`
	InputS3Path  string    `json:"input_s3_path"`
	OutputS3Path string    `json:"output_s3_path,omitempty"`
	PresetID     string    `json:"preset_id,omitempty"`
	Pipeline     string    `json:"pipeline,omitempty"`
	JobIDs       []string  `json:"job_ids,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// RecordSubmission appends sub to the history and returns its row id.
// A zero SubmittedAt is stamped with the current time.
func (s *Store) RecordSubmission(ctx context.Context, sub Submission) (int64, error) {
	if sub.Kind != KindJob && sub.Kind != KindPlaylist {
		return 0, fmt.Errorf("unknown submission kind %q", sub.Kind)
	}
	if strings.TrimSpace(sub.Name) == "" {
		return 0, errors.New("submission name is required")
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = s.now()
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO submissions (kind, name, input_s3_path, output_s3_path, preset_id, pipeline, job_ids, submitted_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sub.Kind, sub.Name, sub.InputS3Path,
			nullableString(sub.OutputS3Path), nullableString(sub.PresetID), nullableString(sub.Pipeline),
			nullableString(strings.Join(sub.JobIDs, ",")), formatTime(sub.SubmittedAt),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("record submission: %w", err)
	}
	return id, nil
}

// Submissions lists history newest first. limit <= 0 returns everything.
func (s *Store) Submissions(ctx context.Context, limit int) ([]Submission, error) {
	ctx = ensureContext(ctx)
	query := `SELECT id, kind, name, input_s3_path, output_s3_path, preset_id, pipeline, job_ids, submitted_at
		FROM submissions ORDER BY submitted_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		var (
			sub                              Submission
			output, preset, pipeline, jobIDs sql.NullString
			submittedAt                      string
		)
		if err := rows.Scan(&sub.ID, &sub.Kind, &sub.Name, &sub.InputS3Path,
			&output, &preset, &pipeline, &jobIDs, &submittedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		sub.OutputS3Path = output.String
		sub.PresetID = preset.String
		sub.Pipeline = pipeline.String
		if jobIDs.Valid && jobIDs.String != "" {
			sub.JobIDs = strings.Split(jobIDs.String, ",")
		}
		sub.SubmittedAt = parseTime(submittedAt)
		out = append(out, sub)
	}
	return out, rows.Err()
}

func nullableString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
