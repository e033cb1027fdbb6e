package wishlist

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront/internal/changefeed"
)

// RemoteWishlist mirrors one user's wishlist rows; like the remote cart it
// only changes its cached ids on refetch.
type RemoteWishlist struct {
	userID string
	repo   Repository
	feed   changefeed.Feed

	mu      sync.RWMutex
	ids     []string
	loaded  bool
	lastErr error

	refreshMu sync.Mutex

	sub    *changefeed.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRemoteWishlist(userID string, repo Repository, feed changefeed.Feed) *RemoteWishlist {
	return &RemoteWishlist{userID: userID, repo: repo, feed: feed}
}

func (w *RemoteWishlist) UserID() string {
	return w.userID
}

func (w *RemoteWishlist) Mount(ctx context.Context) error {
	if w.sub != nil {
		return nil
	}

	sub, err := w.feed.Subscribe(ctx, Table, w.userID)
	if err != nil {
		return fmt.Errorf("remote wishlist: failed to subscribe: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.sub = sub
	w.cancel = cancel

	if err := w.Refresh(ctx); err != nil {
		log.Error().Err(err).Str("user_id", w.userID).Msg("remote wishlist: initial fetch failed")
	}

	w.wg.Add(1)
	go w.watch(runCtx, sub)

	return nil
}

func (w *RemoteWishlist) Unmount() {
	if w.sub == nil {
		return
	}
	_ = w.sub.Close()
	w.cancel()
	w.wg.Wait()
	w.sub = nil
	w.cancel = nil
}

func (w *RemoteWishlist) watch(ctx context.Context, sub *changefeed.Subscription) {
	defer w.wg.Done()

	for range sub.Events() {
		if err := w.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Str("user_id", w.userID).Msg("remote wishlist: refetch failed")
		}
	}
}

func (w *RemoteWishlist) Refresh(ctx context.Context) error {
	w.refreshMu.Lock()
	defer w.refreshMu.Unlock()

	ids, err := w.repo.List(ctx, w.userID)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.loaded = true
	w.lastErr = err
	if err != nil {
		return fmt.Errorf("remote wishlist: refetch: %w", err)
	}
	w.ids = ids
	return nil
}

func (w *RemoteWishlist) IDs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return cloneIDs(w.ids)
}

func (w *RemoteWishlist) Loaded() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.loaded
}

func (w *RemoteWishlist) Err() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastErr
}

func (w *RemoteWishlist) Contains(productID string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return contains(w.ids, productID)
}

func (w *RemoteWishlist) Add(ctx context.Context, productID string) error {
	return w.repo.Add(ctx, w.userID, productID)
}

func (w *RemoteWishlist) Remove(ctx context.Context, productID string) error {
	return w.repo.Remove(ctx, w.userID, productID)
}

func (w *RemoteWishlist) Toggle(ctx context.Context, productID string) error {
	added, err := w.repo.Toggle(ctx, w.userID, productID)
	if err != nil {
		return err
	}
	log.Debug().Str("user_id", w.userID).Str("product_id", productID).Bool("added", added).Msg("remote wishlist: toggled")
	return nil
}

func (w *RemoteWishlist) Clear(ctx context.Context) error {
	return w.repo.DeleteAll(ctx, w.userID)
}
