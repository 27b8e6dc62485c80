package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const JobAggregation = "aggregation"

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var ErrQueueFull = errors.New("job queue full")

type Runner func(context.Context) (any, error)

type Run struct {
	ID          string          `json:"id"`
	JobType     string          `json:"jobType"`
	Status      string          `json:"status"`
	Details     json.RawMessage `json:"details,omitempty"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// RunStore records job lifecycle transitions in job_runs.
type RunStore interface {
	Create(ctx context.Context, id, jobType, status string) error
	MarkRunning(ctx context.Context, id string) error
	Finish(ctx context.Context, id, status string, details json.RawMessage) error
	Get(ctx context.Context, id string) (*Run, error)
	Recent(ctx context.Context, jobType string, limit int) ([]Run, error)
}

type Service struct {
	runs  RunStore
	queue chan job
}

type job struct {
	ID   string
	Type string
	Run  Runner
}

func New(runs RunStore) *Service {
	return &Service{
		runs:  runs,
		queue: make(chan job, 128),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
}

// Schedule enqueues run every interval until ctx is done. A zero interval
// disables the schedule.
func (s *Service) Schedule(ctx context.Context, jobType string, interval time.Duration, run Runner) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Enqueue(ctx, jobType, run); err != nil {
					slog.Warn("scheduled job not enqueued", "jobType", jobType, "err", err)
				}
			}
		}
	}()
}

// Enqueue records a queued run and hands it to the worker.
func (s *Service) Enqueue(ctx context.Context, jobType string, run Runner) (string, error) {
	id := uuid.NewString()
	if err := s.runs.Create(ctx, id, jobType, StatusQueued); err != nil {
		slog.Warn("job run insert failed", "jobType", jobType, "err", err)
	}
	select {
	case s.queue <- job{ID: id, Type: jobType, Run: run}:
		return id, nil
	default:
		slog.Warn("job queue full", "jobType", jobType)
		details, _ := json.Marshal(map[string]string{"error": ErrQueueFull.Error()})
		if err := s.runs.Finish(ctx, id, StatusFailed, details); err != nil {
			slog.Warn("job run update failed", "err", err)
		}
		return "", ErrQueueFull
	}
}

// RunNow runs in the caller's goroutine and records the run like a queued
// one. It returns the job id with the runner's result.
func (s *Service) RunNow(ctx context.Context, jobType string, run Runner) (string, any, error) {
	id := uuid.NewString()
	if err := s.runs.Create(ctx, id, jobType, StatusQueued); err != nil {
		slog.Warn("job run insert failed", "jobType", jobType, "err", err)
	}
	details, err := s.runJob(ctx, job{ID: id, Type: jobType, Run: run})
	return id, details, err
}

func (s *Service) Get(ctx context.Context, id string) (*Run, error) {
	return s.runs.Get(ctx, id)
}

func (s *Service) Recent(ctx context.Context, jobType string, limit int) ([]Run, error) {
	return s.runs.Recent(ctx, jobType, limit)
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "jobId", j.ID, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	if err := s.runs.MarkRunning(ctx, j.ID); err != nil {
		slog.Warn("job run update failed", "jobId", j.ID, "err", err)
	}

	details, err := j.Run(ctx)
	status := StatusCompleted
	payload := details
	if err != nil {
		status = StatusFailed
		payload = map[string]any{"error": err.Error(), "result": details}
	}
	detailsJSON, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	// the run's own context may already be cancelled; the record must still land
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if updErr := s.runs.Finish(finishCtx, j.ID, status, detailsJSON); updErr != nil {
		slog.Warn("job run update failed", "jobId", j.ID, "err", updErr)
	}
	return details, err
}
