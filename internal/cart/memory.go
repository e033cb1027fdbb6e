package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/vasiliy-maslov/storefront/internal/catalog"
	"github.com/vasiliy-maslov/storefront/internal/changefeed"
)

// MemoryRepository is an in-process collection store. When a hub is given,
// every write is announced on it the way the database trigger does.
type MemoryRepository struct {
	mu       sync.RWMutex
	products map[string]catalog.Product
	lines    map[string][]Line
	hub      *changefeed.Hub
}

func NewMemoryRepository(hub *changefeed.Hub, products ...catalog.Product) *MemoryRepository {
	r := &MemoryRepository{
		products: make(map[string]catalog.Product),
		lines:    make(map[string][]Line),
		hub:      hub,
	}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

func (r *MemoryRepository) List(_ context.Context, userID string) ([]Line, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneLines(r.lines[userID]), nil
}

func (r *MemoryRepository) AddOrIncrement(_ context.Context, userID string, key Key, quantity int) error {
	r.mu.Lock()
	product, ok := r.products[key.ProductID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("repository: %w: %s", catalog.ErrProductNotFound, key.ProductID)
	}

	lines := r.lines[userID]
	op := changefeed.OpInsert
	if i := indexOf(lines, key); i >= 0 {
		lines[i].Quantity += quantity
		op = changefeed.OpUpdate
	} else {
		lines = append(lines, Line{Product: product, Quantity: quantity, SelectedSize: key.Size, SelectedColor: key.Color})
	}
	r.lines[userID] = lines
	r.mu.Unlock()

	r.publish(op, userID)
	return nil
}

func (r *MemoryRepository) SetQuantity(_ context.Context, userID string, key Key, quantity int) error {
	r.mu.Lock()
	lines := r.lines[userID]
	i := indexOf(lines, key)
	if i >= 0 {
		lines[i].Quantity = quantity
	}
	r.mu.Unlock()

	if i >= 0 {
		r.publish(changefeed.OpUpdate, userID)
	}
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, userID string, key Key) error {
	r.mu.Lock()
	lines := r.lines[userID]
	i := indexOf(lines, key)
	if i >= 0 {
		r.lines[userID] = append(lines[:i:i], lines[i+1:]...)
	}
	r.mu.Unlock()

	if i >= 0 {
		r.publish(changefeed.OpDelete, userID)
	}
	return nil
}

func (r *MemoryRepository) DeleteAll(_ context.Context, userID string) error {
	r.mu.Lock()
	n := len(r.lines[userID])
	delete(r.lines, userID)
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
