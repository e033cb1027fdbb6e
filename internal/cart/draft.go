package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront/internal/catalog"
	"github.com/vasiliy-maslov/storefront/internal/devicestore"
)

// DraftCart is the guest cart. Every mutation is written through to device
// storage before it returns, so a reload reproduces the same lines.
type DraftCart struct {
	mu      sync.RWMutex
	storage devicestore.Storage
	lines   []Line
}

func LoadDraftCart(ctx context.Context, storage devicestore.Storage) (*DraftCart, error) {
	c := &DraftCart{storage: storage}

	data, err := storage.Get(ctx, devicestore.CartKey)
	if errors.Is(err, devicestore.ErrNotFound) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("draft cart: failed to read snapshot: %w", err)
	}

	var lines []Line
	if err := json.Unmarshal(data, &lines); err != nil {
		log.Warn().Err(err).Msg("draft cart: stored snapshot is corrupted, starting empty")
		return c, nil
	}
	c.lines = lines

	return c, nil
}

func (c *DraftCart) Lines() []Line {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneLines(c.lines)
}

// Loaded is always true: the snapshot is read in LoadDraftCart.
func (c *DraftCart) Loaded() bool {
	return true
}

func (c *DraftCart) Add(ctx context.Context, product catalog.Product, quantity int, size, color string) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key{ProductID: product.ID, Size: size, Color: color}
	next := cloneLines(c.lines)
	if i := indexOf(next, key); i >= 0 {
		next[i].Quantity += quantity
	} else {
		next = append(next, Line{Product: product, Quantity: quantity, SelectedSize: size, SelectedColor: color})
	}

	return c.commit(ctx, next)
}

func (c *DraftCart) Remove(ctx context.Context, key Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]Line, 0, len(c.lines))
	for _, l := range c.lines {
		if l.Key() != key {
			next = append(next, l)
		}
	}

	return c.commit(ctx, next)
}

func (c *DraftCart) UpdateQuantity(ctx context.Context, key Key, quantity int) error {
	if quantity < 1 {
		return c.Remove(ctx, key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := indexOf(c.lines, key)
	if i < 0 {
		return nil
	}
	next := cloneLines(c.lines)
	next[i].Quantity = quantity

	return c.commit(ctx, next)
}

func (c *DraftCart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.commit(ctx, []Line{})
}

// commit persists next and only then swaps it in; the caller holds c.mu.
func (c *DraftCart) commit(ctx context.Context, next []Line) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("draft cart: failed to encode snapshot: %w", err)
	}
	if err := c.storage.Set(ctx, devicestore.CartKey, data); err != nil {
		return fmt.Errorf("draft cart: failed to persist snapshot: %w", err)
	}
	c.lines = next
	return nil
}
