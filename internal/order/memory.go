package order

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid"
)

// MemoryRepository keeps orders in process, unique by payment intent id like the orders table.
type MemoryRepository struct {
	mu     sync.RWMutex
	orders []Order
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now}
}

func (r *MemoryRepository) Create(_ context.Context, order *Order) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.orders {
		if o.PaymentIntentID == order.PaymentIntentID {
			return false, nil
		}
	}

	if order.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return false, fmt.Errorf("repository: failed to generate order ID: %w", err)
		}
		order.ID = id
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = r.now().UTC()
	}

	stored := *order
	stored.Items = append([]Item(nil), order.Items...)
	r.orders = append(r.orders, stored)
	return true, nil
}

func (r *MemoryRepository) ListByUser(_ context.Context, userID string, limit int) ([]Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orders := make([]Order, 0)
	for _, o := range r.orders {
		if o.UserID == userID {
			orders = append(orders, o)
		}
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}
