package compaction

import (
	"context"
	"errors"
	"sync"
)

// fakeCompactable tracks reservations for a single extent in memory.
type fakeCompactable struct {
	extent  Extent
	decline bool // refuse reservations, as if the extent closed

	mu       sync.Mutex
	reserves int
	active   map[ExternalID]bool
}

func newFakeCompactable(extent Extent) *fakeCompactable {
	return &fakeCompactable{
		extent: extent,
		active: make(map[ExternalID]bool),
	}
}

func (c *fakeCompactable) Extent() Extent { return c.extent }

func (c *fakeCompactable) IsActive(id ExternalID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active[id]
}

func (c *fakeCompactable) Reserve(
	_ context.Context,
	_ ServiceID,
	_ int64,
	_ string,
	id ExternalID,
) (ExternalID, error) {
	if c.decline {
		return "", errors.New("extent closed")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reserves++
	c.active[id] = true
	return id, nil
}

// finish marks an external compaction as no longer active.
func (c *fakeCompactable) finish(id ExternalID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[id] = false
}

func (c *fakeCompactable) reserveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reserves
}

// Assert fakeCompactable implements Compactable.
var _ Compactable = (*fakeCompactable)(nil)
