package compaction

import (
	"context"

	"github.com/zhangyunhao116/skipmap"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Registry maps logical execution queue IDs to their queues.
type Registry struct {
	log     *zap.Logger
	metrics *Metrics
	queues  *skipmap.FuncMap[QueueID, *Queue]
}

// NewRegistry creates an empty registry. metrics may be nil.
func NewRegistry(log *zap.Logger, metrics *Metrics) *Registry {
	return &Registry{
		log:     log,
		metrics: metrics,
		queues: skipmap.NewFunc[QueueID, *Queue](func(a, b QueueID) bool {
			return a < b
		}),
	}
}

// Get returns the queue with the given ID, creating it on first use.
func (r *Registry) Get(id QueueID) *Queue {
	q, _ := r.queues.LoadOrStoreLazy(id, func() *Queue {
		return NewQueue(id, r.log, r.metrics)
	})
	return q
}

// Lookup returns an existing queue without creating one.
func (r *Registry) Lookup(id QueueID) (*Queue, bool) {
	return r.queues.Load(id)
}

// Range calls f for every registered queue until f returns false.
func (r *Registry) Range(f func(q *Queue) bool) {
	r.queues.Range(func(_ QueueID, q *Queue) bool {
		return f(q)
	})
}

// Summaries collects the coordinator report across all queues.
func (r *Registry) Summaries() []Summary {
	summaries := make([]Summary, 0, r.queues.Len())
	r.Range(func(q *Queue) bool {
		summaries = append(summaries, q.Summarize())
		return true
	})
	return summaries
}

// CancelExtent cancels queued jobs for the extent across all queues,
// returning the total number of cancellations that took effect.
func (r *Registry) CancelExtent(extent Extent) int {
	var n int
	r.Range(func(q *Queue) bool {
		n += q.CancelExtent(extent)
		return true
	})
	return n
}

// ObserveQueued registers an observer reporting the per-queue count of
// genuinely queued jobs.
func (r *Registry) ObserveQueued(m metric.Meter) error {
	_, err := m.NewInt64UpDownSumObserver("compaction_jobs_queued",
		func(_ context.Context, res metric.Int64ObserverResult) {
			r.Range(func(q *Queue) bool {
				res.Observe(int64(q.QueuedCount()), queueLabel(q.ID()))
				return true
			})
		})
	return err
}
