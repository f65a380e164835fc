package compaction

import (
	"sync/atomic"
)

// Status is the lifecycle state of a submitted compaction job.
type Status int32

const (
	// StatusQueued means the job is waiting to be handed to a worker.
	StatusQueued Status = iota
	// StatusRunning means the job was reserved by a compactor worker.
	StatusRunning
	// StatusComplete means the reserved external compaction is no longer
	// active on the owning extent.
	StatusComplete
	// StatusCanceled means the job was canceled before a worker took it.
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "QUEUED"
	case StatusRunning:
		return "RUNNING"
	case StatusComplete:
		return "COMPLETE"
	case StatusCanceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

// Job pairs the immutable description of one proposed compaction with its
// concurrency-safe lifecycle state. Jobs are created by Queue.Submit and
// leave StatusQueued exactly once, into StatusRunning or StatusCanceled.
type Job struct {
	queue       *Queue
	compactable Compactable
	service     ServiceID
	priority    int64
	seq         uint64 // submission order, breaks priority ties

	status     atomic.Int32
	externalID atomic.Pointer[ExternalID]
}

// Priority returns the job's urgency rank. Higher is serviced first.
func (j *Job) Priority() int64 { return j.priority }

// Service returns the compaction service that proposed the job.
func (j *Job) Service() ServiceID { return j.service }

// Extent returns the extent the job targets.
func (j *Job) Extent() Extent { return j.compactable.Extent() }

// ExternalID returns the assigned external compaction ID, or the empty
// string while the job has not been reserved.
func (j *Job) ExternalID() ExternalID {
	if id := j.externalID.Load(); id != nil {
		return *id
	}
	return ""
}

// Status returns the current lifecycle state. A running job is reported
// complete once its external compaction is no longer active on the owning
// extent. That check runs on every call, so repeated calls may observe
// different results as extent state changes.
func (j *Job) Status() Status {
	s := Status(j.status.Load())
	if s == StatusRunning {
		if id := j.externalID.Load(); id != nil && !j.compactable.IsActive(*id) {
			s = StatusComplete
		}
	}
	return s
}

// Cancel moves the job from expected to StatusCanceled if and only if the
// stored status still equals expected, and reports whether the cancellation
// took effect. Only cancellation from StatusQueued is meaningful: running
// jobs belong to the remote worker lifecycle and are left alone.
func (j *Job) Cancel(expected Status) bool {
	if expected != StatusQueued {
		return false
	}
	canceled := j.status.CompareAndSwap(int32(StatusQueued), int32(StatusCanceled))
	if canceled {
		j.queue.dropQueued(j)
		if j.queue.cancels.Add(1)%cancelSweepEvery == 0 {
			// Canceled low-priority entries can linger in the priority
			// structure for a long time. Sweep them out occasionally
			// instead of on every cancellation.
			j.queue.sweep()
		}
	}
	return canceled
}
