package audit

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"
)

// Memory keeps events in process for tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Record(_ context.Context, entry Entry) error {
	var after json.RawMessage
	if entry.After != nil {
		payload, err := json.Marshal(entry.After)
		if err != nil {
			return err
		}
		after = payload
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Event{
		ID:         strconv.Itoa(len(m.events) + 1),
		ActorID:    entry.ActorID,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		RequestID:  entry.RequestID,
		IP:         entry.IP,
		CreatedAt:  time.Now().UTC(),
		After:      after,
	})
	return nil
}

func (m *Memory) Count(ctx context.Context, filter Filter) (int, error) {
	events, _ := m.List(ctx, filter, false, 0, 0)
	return len(events), nil
}

// List mirrors Service.List: newest first, limit 0 means no limit.
func (m *Memory) List(_ context.Context, filter Filter, includeDetails bool, limit, offset int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for i := len(m.events) - 1; i >= 0; i-- {
		evt := m.events[i]
		if (filter.Action != "" && evt.Action != filter.Action) ||
			(filter.EntityType != "" && evt.EntityType != filter.EntityType) ||
			(filter.ActorID != "" && evt.ActorID != filter.ActorID) {
			continue
		}
		if !includeDetails {
			evt.After = nil
		}
		out = append(out, evt)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
