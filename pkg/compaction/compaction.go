// Package compaction implements the dispatch core for external compactions.
//
// A loam tablet server proposes background compactions for the extents it
// hosts and parks them here as queued jobs. Remote compactor processes poll
// the server for work: each poll names a priority threshold, and the queue
// atomically hands out the single best eligible job or nothing at all. The
// coordinator periodically reads per-queue summaries to route idle
// compactors to the busiest servers first.
//
// All exported components are thread-safe internally. Submission,
// reservation, cancellation and summarization may run concurrently from
// different goroutines; races on a single job are decided by a
// compare-and-swap on its status, never by a queue-wide lock.
package compaction

import (
	"context"

	"github.com/rs/xid"
)

// Extent identifies a contiguous, independently managed range of stored
// data subject to background compaction.
type Extent string

// ServiceID identifies the compaction service a job was proposed by.
type ServiceID string

// QueueID identifies a logical execution queue.
type QueueID string

// ExternalID identifies one external compaction. Compactor workers mint a
// fresh ID before every reservation attempt.
type ExternalID string

// NewExternalID mints a globally unique external compaction ID.
func NewExternalID() ExternalID {
	return ExternalID("ECID:" + xid.New().String())
}

// Compactable is the extent-side collaborator that authorizes and tracks
// in-progress external compactions for its own data. The queue calls into
// it but does not own it; Reserve may block on extent-owned I/O.
type Compactable interface {
	// Extent returns the extent this compactable manages.
	Extent() Extent
	// IsActive reports whether the given external compaction is still
	// known to be in progress on this extent.
	IsActive(id ExternalID) bool
	// Reserve performs the extent-side reservation bookkeeping and returns
	// the external ID it registered. An error means the extent declined,
	// e.g. because it was closed concurrently.
	Reserve(ctx context.Context, service ServiceID, priority int64, workerID string, id ExternalID) (ExternalID, error)
}

// Reservation describes a job handed out to a compactor worker.
type Reservation struct {
	Queue      QueueID    `json:"queue_id"`
	Extent     Extent     `json:"extent"`
	Priority   int64      `json:"priority"`
	ExternalID ExternalID `json:"external_id"`
	Worker     string     `json:"worker_id"`
}

// Summary reports the best eligible priority of one queue to the
// coordinator. Priority 0 means no job is available.
type Summary struct {
	Queue    QueueID `json:"queue_id"`
	Priority int64   `json:"priority"`
}
