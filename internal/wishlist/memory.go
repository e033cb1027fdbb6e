package wishlist

import (
	"context"
	"sync"

	"github.com/vasiliy-maslov/storefront/internal/changefeed"
)

type MemoryRepository struct {
	mu  sync.RWMutex
	ids map[string][]string
	hub *changefeed.Hub
}

func NewMemoryRepository(hub *changefeed.Hub) *MemoryRepository {
	return &MemoryRepository{ids: make(map[string][]string), hub: hub}
}

func (r *MemoryRepository) List(_ context.Context, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneIDs(r.ids[userID]), nil
}

func (r *MemoryRepository) Add(_ context.Context, userID, productID string) error {
	r.mu.Lock()
	added := !contains(r.ids[userID], productID)
	if added {
		r.ids[userID] = append(r.ids[userID], productID)
	}
	r.mu.Unlock()

	if added {
		r.publish(changefeed.OpInsert, userID)
	}
	return nil
}

func (r *MemoryRepository) Remove(_ context.Context, userID, productID string) error {
	r.mu.Lock()
	removed := contains(r.ids[userID], productID)
	if removed {
		r.ids[userID] = without(r.ids[userID], productID)
	}
	r.mu.Unlock()

	if removed {
		r.publish(changefeed.OpDelete, userID)
	}
	return nil
}

func (r *MemoryRepository) Toggle(_ context.Context, userID, productID string) (bool, error) {
	r.mu.Lock()
	added := !contains(r.ids[userID], productID)
	if added {
		r.ids[userID] = append(r.ids[userID], productID)
	} else {
		r.ids[userID] = without(r.ids[userID], productID)
	}
	r.mu.Unlock()

	if added {
		r.publish(changefeed.OpInsert, userID)
	} else {
		r.publish(changefeed.OpDelete, userID)
	}
	return added, nil
}

func (r *MemoryRepository) DeleteAll(_ context.Context, userID string) error {
	r.mu.Lock()
	n := len(r.ids[userID])
	delete(r.ids, userID)
	r.mu.Unlock()

	if n > 0 {
		r.publish(changefeed.OpDelete, userID)
	}
	return nil
}

func (r *MemoryRepository) publish(op changefeed.Op, userID string) {
	if r.hub != nil {
		r.hub.Publish(changefeed.Event{Table: Table, Op: op, UserID: userID})
	}
}
