package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront/internal/catalog"
	"github.com/vasiliy-maslov/storefront/internal/changefeed"
)

var ErrNotMounted = errors.New("remote cart is not mounted")

// RemoteCart is the cart of one signed-in user. Writes go straight to the
// repository and never touch the cached lines: the cache is replaced only by
// a refetch, triggered by the change feed.
type RemoteCart struct {
	userID string
	repo   Repository
	feed   changefeed.Feed

	mu      sync.RWMutex
	lines   []Line
	loaded  bool
	lastErr error

	refreshMu sync.Mutex

	sub    *changefeed.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRemoteCart(userID string, repo Repository, feed changefeed.Feed) *RemoteCart {
	return &RemoteCart{userID: userID, repo: repo, feed: feed}
}

func (c *RemoteCart) UserID() string {
	return c.userID
}

// Mount subscribes to the user's cart rows, loads them and starts the refetch loop.
// The subscription is opened before the first fetch so no change falls in between.
func (c *RemoteCart) Mount(ctx context.Context) error {
	if c.sub != nil {
		return nil
	}

	sub, err := c.feed.Subscribe(ctx, Table, c.userID)
	if err != nil {
		return fmt.Errorf("remote cart: failed to subscribe: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.sub = sub
	c.cancel = cancel

	if err := c.Refresh(ctx); err != nil {
		log.Error().Err(err).Str("user_id", c.userID).Msg("remote cart: initial fetch failed")
	}

	c.wg.Add(1)
	go c.watch(runCtx, sub)

	return nil
}

// Unmount closes the subscription and waits for the refetch loop to exit.
func (c *RemoteCart) Unmount() {
	if c.sub == nil {
		return
	}
	_ = c.sub.Close()
	c.cancel()
	c.wg.Wait()
	c.sub = nil
	c.cancel = nil
}

func (c *RemoteCart) watch(ctx context.Context, sub *changefeed.Subscription) {
	defer c.wg.Done()

	for ev := range sub.Events() {
		log.Debug().Str("user_id", c.userID).Str("op", string(ev.Op)).Msg("remote cart: change received, refetching")
		if err := c.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Str("user_id", c.userID).Msg("remote cart: refetch failed")
		}
	}
}

// Refresh refetches the whole collection and replaces the cached lines.
// On failure the previous lines stay and Err reports the failure.
func (c *RemoteCart) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	lines, err := c.repo.List(ctx, c.userID)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.loaded = true
	c.lastErr = err
	if err != nil {
		return fmt.Errorf("remote cart: refetch: %w", err)
	}
	c.lines = lines
	return nil
}

func (c *RemoteCart) Lines() []Line {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneLines(c.lines)
}

func (c *RemoteCart) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Err returns the error of the last refetch, if it failed.
func (c *RemoteCart) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *RemoteCart) Add(ctx context.Context, product catalog.Product, quantity int, size, color string) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	key := Key{ProductID: product.ID, Size: size, Color: color}
	return c.repo.AddOrIncrement(ctx, c.userID, key, quantity)
}

func (c *RemoteCart) Remove(ctx context.Context, key Key) error {
	return c.repo.Delete(ctx, c.userID, key)
}

func (c *RemoteCart) UpdateQuantity(ctx context.Context, key Key, quantity int) error {
	if quantity < 1 {
		return c.Remove(ctx, key)
	}
	return c.repo.SetQuantity(ctx, c.userID, key, quantity)
}

func (c *RemoteCart) Clear(ctx context.Context) error {
	return c.repo.DeleteAll(ctx, c.userID)
}
