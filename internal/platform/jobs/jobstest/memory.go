// Package jobstest provides an in-memory jobs.RunStore for tests.
package jobstest

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"cardadmin/internal/platform/jobs"
)

// Runs keeps job runs in a map keyed by id.
type Runs struct {
	mu   sync.Mutex
	runs map[string]*jobs.Run
}

func NewRuns() *Runs {
	return &Runs{runs: map[string]*jobs.Run{}}
}

func (m *Runs) Create(_ context.Context, id, jobType, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[id] = &jobs.Run{ID: id, JobType: jobType, Status: status, CreatedAt: time.Now()}
	return nil
}

func (m *Runs) MarkRunning(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.runs[id].Status = jobs.StatusRunning
	m.runs[id].StartedAt = &now
	return nil
}

func (m *Runs) Finish(_ context.Context, id, status string, details json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.runs[id].Status = status
	m.runs[id].Details = details
	m.runs[id].CompletedAt = &now
	return nil
}

func (m *Runs) Get(_ context.Context, id string) (*jobs.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, jobs.ErrRunNotFound
	}
	copied := *run
	return &copied, nil
}

func (m *Runs) Recent(_ context.Context, jobType string, limit int) ([]jobs.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []jobs.Run
	for _, run := range m.runs {
		if run.JobType == jobType {
			out = append(out, *run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ jobs.RunStore = (*Runs)(nil)
