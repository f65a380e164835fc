package compaction

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// TestQueue_ConcurrentStress runs submission, reservation, extent
// cancellation and summarization against one queue at full speed and then
// checks the bookkeeping invariants: accurate queued count, no lost jobs,
// no double reservation.
func TestQueue_ConcurrentStress(t *testing.T) {
	const (
		submitters   = 4
		perSubmitter = 500
		reservers    = 4
		numExtents   = 8
	)
	q := NewQueue("meta.user", zaptest.NewLogger(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	compactables := make([]*fakeCompactable, numExtents)
	for i := range compactables {
		compactables[i] = newFakeCompactable(Extent(fmt.Sprintf("ext-%d", i)))
	}

	var jobsMu sync.Mutex
	var jobs []*Job
	var reservations atomic.Int64

	var submitWG sync.WaitGroup
	for i := 0; i < submitters; i++ {
		submitWG.Add(1)
		go func(seed int64) {
			defer submitWG.Done()
			rng := rand.New(rand.NewSource(seed))
			for n := 0; n < perSubmitter; n++ {
				c := compactables[rng.Intn(numExtents)]
				j := q.Submit(testService, int64(rng.Intn(100)), c)
				jobsMu.Lock()
				jobs = append(jobs, j)
				jobsMu.Unlock()
			}
		}(int64(i))
	}

	var wg sync.WaitGroup
	for i := 0; i < reservers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			worker := fmt.Sprintf("compactor-%d", seed)
			for ctx.Err() == nil {
				min := int64(rng.Intn(100))
				res := q.Reserve(ctx, min, worker, NewExternalID())
				if res == nil {
					continue
				}
				reservations.Add(1)
				if res.Priority < min {
					t.Errorf("reserved priority %d below threshold %d", res.Priority, min)
				}
			}
		}(int64(100 + i))
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		rng := rand.New(rand.NewSource(7))
		for ctx.Err() == nil {
			q.CancelExtent(compactables[rng.Intn(numExtents)].Extent())
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			s := q.Summarize()
			if s.Queue != "meta.user" {
				t.Errorf("summary for wrong queue: %q", s.Queue)
			}
		}
	}()

	submitWG.Wait()
	cancel()
	wg.Wait()

	// Drain what is left so every job reaches a decided state.
	drainCtx := context.Background()
	for {
		res := q.Reserve(drainCtx, 0, "drain", NewExternalID())
		if res == nil {
			break
		}
		reservations.Add(1)
	}

	var running, canceled int
	for _, j := range jobs {
		switch Status(j.status.Load()) {
		case StatusRunning:
			running++
		case StatusCanceled:
			canceled++
		default:
			t.Errorf("job left in status %s", j.Status())
		}
	}
	// Every submitted job ended in exactly one decided state.
	require.Len(t, jobs, submitters*perSubmitter)
	assert.Equal(t, len(jobs), running+canceled)
	// One reservation per job that went running, no double handouts.
	assert.Equal(t, int64(running), reservations.Load())
	var extentReserves int
	for _, c := range compactables {
		extentReserves += c.reserveCount()
	}
	assert.Equal(t, running, extentReserves)
	// The queued count tracks true status.
	assert.Equal(t, 0, q.QueuedCount())
}
