// Package status tracks pipeline counters and serves them over HTTP.
package status

import (
	"sync/atomic"
)

// Counters are the pipeline's monotonically increasing event counts. The
// zero value is ready to use and safe for concurrent increments.
type Counters struct {
	Ticks             atomic.Uint64
	RequestsPublished atomic.Uint64
	PublishFailures   atomic.Uint64
	FetchFailures     atomic.Uint64
	BatchesPublished  atomic.Uint64
	EmptyBatches      atomic.Uint64
	ReportsEmitted    atomic.Uint64
	RejectedBatches   atomic.Uint64
	DroppedRequests   atomic.Uint64
	StageRestarts     atomic.Uint64
}

// Snapshot is a point-in-time copy of Counters plus the scheduler state.
type Snapshot struct {
	State             string `json:"state"`
	Ticks             uint64 `json:"ticks"`
	RequestsPublished uint64 `json:"requests_published"`
	PublishFailures   uint64 `json:"publish_failures"`
	FetchFailures     uint64 `json:"fetch_failures"`
	BatchesPublished  uint64 `json:"batches_published"`
	EmptyBatches      uint64 `json:"empty_batches"`
	ReportsEmitted    uint64 `json:"reports_emitted"`
	RejectedBatches   uint64 `json:"rejected_batches"`
	DroppedRequests   uint64 `json:"dropped_requests"`
	StageRestarts     uint64 `json:"stage_restarts"`
}

// NewCounters returns zeroed counters.
func NewCounters() *Counters {
	return &Counters{}
}

// Snapshot copies every counter. The copy is not atomic across counters.
func (c *Counters) Snapshot(state string) Snapshot {
	return Snapshot{
		State:             state,
		Ticks:             c.Ticks.Load(),
		RequestsPublished: c.RequestsPublished.Load(),
		PublishFailures:   c.PublishFailures.Load(),
		FetchFailures:     c.FetchFailures.Load(),
		BatchesPublished:  c.BatchesPublished.Load(),
		EmptyBatches:      c.EmptyBatches.Load(),
		ReportsEmitted:    c.ReportsEmitted.Load(),
		RejectedBatches:   c.RejectedBatches.Load(),
		DroppedRequests:   c.DroppedRequests.Load(),
		StageRestarts:     c.StageRestarts.Load(),
	}
}
