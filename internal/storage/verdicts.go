package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/motorsense/internal/common"
	"github.com/Veraticus/motorsense/internal/model"
	"github.com/google/uuid"
)

// CreateRun stores a new run. An empty ID is filled with a fresh UUID and a
// zero StartedAt with the current time.
func (s *SQLiteStorage) CreateRun(ctx context.Context, run *model.Run) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(run); err != nil {
		return err
	}

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, command, model, window_length, stride, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Command, run.Model, run.WindowLength, run.Stride, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun loads one run by ID.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*model.Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var run model.Run
	var modelName sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, command, model, window_length, stride, started_at FROM runs WHERE id = ?`, id).
		Scan(&run.ID, &run.Command, &modelName, &run.WindowLength, &run.Stride, &run.StartedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	run.Model = modelName.String
	return &run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 means no limit.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, command, model, window_length, stride, started_at FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.Run
	for rows.Next() {
		var run model.Run
		var modelName sql.NullString
		if err := rows.Scan(&run.ID, &run.Command, &modelName, &run.WindowLength, &run.Stride, &run.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Model = modelName.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveVerdict stores one recording verdict under its run.
func (s *SQLiteStorage) SaveVerdict(ctx context.Context, v *model.StoredVerdict) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateVerdict(v); err != nil {
		return err
	}

	scores, err := json.Marshal(v.Verdict.WeightedScores)
	if err != nil {
		return fmt.Errorf("failed to encode scores: %w", err)
	}
	votes, err := json.Marshal(v.Verdict.Votes)
	if err != nil {
		return fmt.Errorf("failed to encode votes: %w", err)
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO verdicts (run_id, recording, expected_label, final_class, class_name, window_count, scores, votes, skipped_windows, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.RunID, v.Recording, v.ExpectedLabel, v.Verdict.FinalClass, v.Verdict.ClassName,
		v.Verdict.WindowCount, string(scores), string(votes), v.SkippedWindows, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save verdict: %w", err)
	}
	return nil
}

// ListVerdicts returns the verdicts of a run in insertion order.
func (s *SQLiteStorage) ListVerdicts(ctx context.Context, runID string) ([]model.StoredVerdict, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, recording, expected_label, final_class, class_name, window_count, scores, votes, skipped_windows, created_at
		 FROM verdicts WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list verdicts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var verdicts []model.StoredVerdict
	for rows.Next() {
		var v model.StoredVerdict
		var expected sql.NullString
		var scores, votes string
		if err := rows.Scan(&v.RunID, &v.Recording, &expected, &v.Verdict.FinalClass, &v.Verdict.ClassName,
			&v.Verdict.WindowCount, &scores, &votes, &v.SkippedWindows, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		v.ExpectedLabel = expected.String
		if err := json.Unmarshal([]byte(scores), &v.Verdict.WeightedScores); err != nil {
			return nil, fmt.Errorf("failed to decode scores for %q: %w", v.Recording, err)
		}
		if err := json.Unmarshal([]byte(votes), &v.Verdict.Votes); err != nil {
			return nil, fmt.Errorf("failed to decode votes for %q: %w", v.Recording, err)
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, rows.Err()
}
