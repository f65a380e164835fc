package compaction

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/zhangyunhao116/skipset"
	"go.uber.org/zap"
)

// cancelSweepEvery bounds how often canceled entries get swept out of the
// priority structure.
const cancelSweepEvery = 1024

// Queue owns the pending external compaction jobs of one logical execution
// queue. The priority structure may transiently hold entries that already
// left StatusQueued; such stale entries are filtered out opportunistically
// and must never be trusted for sizing. Accurate O(1) queued counts come
// from a separate membership set that is updated under the same status
// transition that removes a job from StatusQueued.
type Queue struct {
	id      QueueID
	log     *zap.Logger
	metrics *Metrics

	pending *skipset.FuncSet[*Job]
	seq     atomic.Uint64
	cancels atomic.Uint64

	mu     sync.Mutex
	queued map[*Job]struct{}
}

// NewQueue creates an empty queue. metrics may be nil.
func NewQueue(id QueueID, log *zap.Logger, metrics *Metrics) *Queue {
	q := &Queue{
		id:      id,
		log:     log,
		metrics: metrics,
		queued:  make(map[*Job]struct{}),
	}
	q.pending = skipset.NewFunc(func(a, b *Job) bool {
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		return a.seq < b.seq
	})
	return q
}

// ID returns the queue identity.
func (q *Queue) ID() QueueID { return q.id }

// Submit admits a new job proposed by the given compaction service.
func (q *Queue) Submit(service ServiceID, priority int64, compactable Compactable) *Job {
	j := &Job{
		queue:       q,
		compactable: compactable,
		service:     service,
		priority:    priority,
		seq:         q.seq.Add(1),
	}
	q.mu.Lock()
	q.queued[j] = struct{}{}
	q.mu.Unlock()
	q.pending.Add(j)
	q.metrics.submitted(q.id)
	q.log.Debug("Queued compaction job",
		zap.String("queue", string(q.id)),
		zap.String("extent", string(j.Extent())),
		zap.Int64("priority", priority))
	return j
}

// Reserve hands out the best queued job whose priority is at least
// minPriority, or nil when nothing eligible is available. Only the single
// best candidate is examined: a head job below the threshold is reinserted
// unchanged and the call returns nil without probing further down.
//
// Reservation bookkeeping is delegated to the owning extent and may block
// on extent-side I/O, so callers must treat Reserve as potentially slow.
func (q *Queue) Reserve(ctx context.Context, minPriority int64, workerID string, externalID ExternalID) *Reservation {
	for {
		j := q.pop()
		for j != nil && j.Status() != StatusQueued {
			// Stale entry, already consumed. Drop it and keep scanning.
			j = q.pop()
		}
		if j == nil {
			return nil
		}
		if j.priority < minPriority {
			q.pending.Add(j)
			return nil
		}
		if !j.status.CompareAndSwap(int32(StatusQueued), int32(StatusRunning)) {
			// Lost the race to a concurrent canceller. The contended entry
			// is consumed, so each retry shrinks the queue.
			continue
		}
		q.dropQueued(j)
		id, err := j.compactable.Reserve(ctx, j.service, j.priority, workerID, externalID)
		if err != nil {
			// The extent declined, e.g. it was closed concurrently.
			// Terminate the job so it cannot linger running without an
			// external compaction attached.
			j.status.Store(int32(StatusCanceled))
			q.log.Debug("Extent declined reservation",
				zap.String("queue", string(q.id)),
				zap.String("extent", string(j.Extent())),
				zap.Error(err))
			return nil
		}
		j.externalID.Store(&id)
		q.metrics.reserved(q.id)
		return &Reservation{
			Queue:      q.id,
			Extent:     j.Extent(),
			Priority:   j.priority,
			ExternalID: id,
			Worker:     workerID,
		}
	}
}

// Summarize reports the best eligible priority for the coordinator. It is
// read-only with respect to job state and never reserves; stale entries
// found at the head are pruned so the reported priority reflects a
// genuinely available job. An empty queue reports priority 0.
func (q *Queue) Summarize() Summary {
	for {
		head := q.peek()
		if head == nil {
			return Summary{Queue: q.id}
		}
		if head.Status() == StatusQueued {
			return Summary{Queue: q.id, Priority: head.priority}
		}
		q.sweep()
	}
}

// CancelExtent cancels every queued job targeting the given extent and
// returns how many cancellations took effect. Membership is snapshotted
// under a short lock and each cancellation then races individually; jobs
// that moved on in between are skipped. Canceling an extent with no
// matching queued jobs is a no-op.
func (q *Queue) CancelExtent(extent Extent) int {
	q.mu.Lock()
	snapshot := make([]*Job, 0, len(q.queued))
	for j := range q.queued {
		snapshot = append(snapshot, j)
	}
	q.mu.Unlock()
	var n int
	for _, j := range snapshot {
		if j.Extent() != extent {
			continue
		}
		if j.Cancel(StatusQueued) {
			n++
		}
	}
	if n > 0 {
		q.metrics.canceled(q.id, n)
		q.log.Info("Canceled queued compactions for extent",
			zap.String("queue", string(q.id)),
			zap.String("extent", string(extent)),
			zap.Int("count", n))
	}
	return n
}

// QueuedCount returns the number of jobs that are genuinely queued.
func (q *Queue) QueuedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queued)
}

// RunningCount always reports 0: running compactions are tracked by the
// extent side, not by the queue.
func (q *Queue) RunningCount() int { return 0 }

// pop removes and returns the highest-priority entry, or nil when the
// structure is empty. Concurrent callers never receive the same entry.
func (q *Queue) pop() *Job {
	for {
		head := q.peek()
		if head == nil {
			return nil
		}
		if q.pending.Remove(head) {
			return head
		}
		// Another caller took this head, read the new one.
	}
}

func (q *Queue) peek() *Job {
	var head *Job
	q.pending.Range(func(j *Job) bool {
		head = j
		return false
	})
	return head
}

// sweep drops entries that already left StatusQueued from the priority
// structure. It holds no lock needed by reservation.
func (q *Queue) sweep() {
	q.pending.Range(func(j *Job) bool {
		if j.Status() != StatusQueued {
			q.pending.Remove(j)
		}
		return true
	})
}

// dropQueued removes a job from the membership set. Called exactly once
// per job, by whichever goroutine won the transition out of StatusQueued.
func (q *Queue) dropQueued(j *Job) {
	q.mu.Lock()
	delete(q.queued, j)
	q.mu.Unlock()
}
