package metrics

import (
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	aggregationRuns     uint64
	aggregationFailures uint64
	aggregatedEmployees uint64
	aggregatedCards     uint64
	lastAggregationUnix int64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

func (c *Collector) RecordAggregation(failed bool, employees, cards int) {
	atomic.AddUint64(&c.aggregationRuns, 1)
	if failed {
		atomic.AddUint64(&c.aggregationFailures, 1)
		return
	}
	atomic.AddUint64(&c.aggregatedEmployees, uint64(employees))
	atomic.AddUint64(&c.aggregatedCards, uint64(cards))
	atomic.StoreInt64(&c.lastAggregationUnix, time.Now().Unix())
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	out := map[string]any{
		"requestsTotal":            total,
		"errorsTotal":              errs,
		"rateLimitedTotal":         limited,
		"avgDurationMs":            avg,
		"totalDurationMs":          totalMs,
		"aggregationRunsTotal":     atomic.LoadUint64(&c.aggregationRuns),
		"aggregationFailuresTotal": atomic.LoadUint64(&c.aggregationFailures),
		"aggregatedEmployeesTotal": atomic.LoadUint64(&c.aggregatedEmployees),
		"aggregatedCardsTotal":     atomic.LoadUint64(&c.aggregatedCards),
	}
	if last := atomic.LoadInt64(&c.lastAggregationUnix); last > 0 {
		out["lastAggregationAt"] = time.Unix(last, 0).UTC().Format(time.RFC3339)
	}
	return out
}
