package jobs

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrRunNotFound = errors.New("job run not found")

type PGRunStore struct {
	DB *pgxpool.Pool
}

func NewPGRunStore(db *pgxpool.Pool) *PGRunStore {
	return &PGRunStore{DB: db}
}

func (s *PGRunStore) Create(ctx context.Context, id, jobType, status string) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO job_runs (id, job_type, status)
    VALUES ($1,$2,$3)
  `, id, jobType, status)
	return err
}

func (s *PGRunStore) MarkRunning(ctx context.Context, id string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE job_runs SET status = $1, started_at = now() WHERE id = $2
  `, StatusRunning, id)
	return err
}

func (s *PGRunStore) Finish(ctx context.Context, id, status string, details json.RawMessage) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id = $3
  `, status, details, id)
	return err
}

const runColumns = `id::text, job_type, status, details_json, started_at, completed_at, created_at`

func (s *PGRunStore) Get(ctx context.Context, id string) (*Run, error) {
	row := s.DB.QueryRow(ctx, "SELECT "+runColumns+" FROM job_runs WHERE id = $1", id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *PGRunStore) Recent(ctx context.Context, jobType string, limit int) ([]Run, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+runColumns+" FROM job_runs WHERE job_type = $1 ORDER BY created_at DESC LIMIT $2", jobType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func scanRun(row pgx.Row) (Run, error) {
	var run Run
	var details []byte
	err := row.Scan(&run.ID, &run.JobType, &run.Status, &details, &run.StartedAt, &run.CompletedAt, &run.CreatedAt)
	if len(details) > 0 {
		run.Details = json.RawMessage(details)
	}
	return run, err
}
