package wishlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront/internal/devicestore"
)

// DraftWishlist is the guest wishlist, persisted as a JSON array of product ids.
type DraftWishlist struct {
	mu      sync.RWMutex
	storage devicestore.Storage
	ids     []string
}

func LoadDraftWishlist(ctx context.Context, storage devicestore.Storage) (*DraftWishlist, error) {
	w := &DraftWishlist{storage: storage}

	data, err := storage.Get(ctx, devicestore.WishlistKey)
	if errors.Is(err, devicestore.ErrNotFound) {
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("draft wishlist: failed to read snapshot: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		log.Warn().Err(err).Msg("draft wishlist: stored snapshot is corrupted, starting empty")
		return w, nil
	}
	w.ids = ids

	return w, nil
}

func (w *DraftWishlist) IDs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return cloneIDs(w.ids)
}

func (w *DraftWishlist) Loaded() bool {
	return true
}

func (w *DraftWishlist) Contains(productID string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return contains(w.ids, productID)
}

func (w *DraftWishlist) Add(ctx context.Context, productID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if contains(w.ids, productID) {
		return nil
	}
	return w.commit(ctx, append(cloneIDs(w.ids), productID))
}

func (w *DraftWishlist) Remove(ctx context.Context, productID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.commit(ctx, without(w.ids, productID))
}

func (w *DraftWishlist) Toggle(ctx context.Context, productID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if contains(w.ids, productID) {
		return w.commit(ctx, without(w.ids, productID))
	}
	return w.commit(ctx, append(cloneIDs(w.ids), productID))
}

func (w *DraftWishlist) Clear(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.commit(ctx, []string{})
}

func (w *DraftWishlist) commit(ctx context.Context, next []string) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("draft wishlist: failed to encode snapshot: %w", err)
	}
	if err := w.storage.Set(ctx, devicestore.WishlistKey, data); err != nil {
		return fmt.Errorf("draft wishlist: failed to persist snapshot: %w", err)
	}
	w.ids = next
	return nil
}
