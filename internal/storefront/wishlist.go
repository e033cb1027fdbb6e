package storefront

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront/internal/identity"
	"github.com/vasiliy-maslov/storefront/internal/wishlist"
)

// RemoteWishlist is implemented by *wishlist.RemoteWishlist.
type RemoteWishlist interface {
	wishlist.Store
	UserID() string
	Mount(ctx context.Context) error
	Unmount()
	Refresh(ctx context.Context) error
}

type WishlistFactory func(userID string) RemoteWishlist

type Wishlist struct {
	source identity.Source
	draft  wishlist.Store
	opts   Options
	now    func() time.Time

	mu        sync.Mutex
	remote    binding[RemoteWishlist]
	lastMerge *MergeReport
}

func NewWishlist(source identity.Source, draft wishlist.Store, newRemote WishlistFactory, opts Options) *Wishlist {
	return &Wishlist{
		source: source,
		draft:  draft,
		opts:   opts,
		now:    time.Now,
		remote: binding[RemoteWishlist]{newRemote: newRemote},
	}
}

func (w *Wishlist) route(ctx context.Context) (wishlist.Store, bool, error) {
	id, loading := w.source.Current()
	if loading {
		return nil, false, ErrIdentityLoading
	}
	return w.routeTo(ctx, id)
}

func (w *Wishlist) routeTo(ctx context.Context, id *identity.Identity) (wishlist.Store, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if id == nil {
		w.remote.release()
		return w.draft, false, nil
	}

	r, fresh := w.remote.bind(ctx, id.ID)
	if fresh && w.opts.MergeGuestOnLogin {
		w.mergeLocked(ctx, r)
	}
	return r, true, nil
}

func (w *Wishlist) mergeLocked(ctx context.Context, r RemoteWishlist) {
	ids := w.draft.IDs()
	if len(ids) == 0 {
		return
	}

	report := &MergeReport{UserID: r.UserID(), At: w.now()}
	for _, id := range ids {
		if err := r.Add(ctx, id); err != nil {
			log.Error().Err(err).Str("user_id", report.UserID).Str("product_id", id).
				Msg("storefront: failed to merge guest wishlist entry")
			report.Failed++
			continue
		}
		if err := w.draft.Remove(ctx, id); err != nil {
			log.Error().Err(err).Msg("storefront: failed to drop merged entry from guest wishlist")
		}
		report.Merged++
	}

	if err := r.Refresh(ctx); err != nil {
		log.Error().Err(err).Str("user_id", report.UserID).Msg("storefront: refetch after merge failed")
	}

	w.lastMerge = report
	log.Info().Str("user_id", report.UserID).Int("merged", report.Merged).Int("failed", report.Failed).
		Msg("storefront: guest wishlist merged")
}

func (w *Wishlist) LastMerge() *MergeReport {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastMerge == nil {
		return nil
	}
	r := *w.lastMerge
	return &r
}

func (w *Wishlist) Add(ctx context.Context, productID string) error {
	store, remote, err := w.route(ctx)
	if err != nil {
		return err
	}
	return w.settle(remote, "add", store.Add(ctx, productID))
}

func (w *Wishlist) Remove(ctx context.Context, productID string) error {
	store, remote, err := w.route(ctx)
	if err != nil {
		return err
	}
	return w.settle(remote, "remove", store.Remove(ctx, productID))
}

func (w *Wishlist) Toggle(ctx context.Context, productID string) error {
	store, remote, err := w.route(ctx)
	if err != nil {
		return err
	}
	return w.settle(remote, "toggle", store.Toggle(ctx, productID))
}

func (w *Wishlist) Clear(ctx context.Context) error {
	store, remote, err := w.route(ctx)
	if err != nil {
		return err
	}
	return w.settle(remote, "clear", store.Clear(ctx))
}

func (w *Wishlist) settle(remote bool, action string, err error) error {
	if err == nil || !remote {
		return err
	}
	log.Error().Err(err).Str("action", action).Msg("storefront: remote wishlist write failed")
	return nil
}

func (w *Wishlist) Contains(ctx context.Context, productID string) bool {
	store, _, err := w.route(ctx)
	if err != nil {
		return false
	}
	return store.Contains(productID)
}

func (w *Wishlist) IDs(ctx context.Context) []string {
	store, _, err := w.route(ctx)
	if err != nil {
		return []string{}
	}
	return store.IDs()
}

func (w *Wishlist) Loading(ctx context.Context) bool {
	store, _, err := w.route(ctx)
	if err != nil {
		return true
	}
	return !store.Loaded()
}

func (w *Wishlist) Watch(ctx context.Context, watcher Watcher) error {
	return follow(ctx, watcher, func(ctx context.Context, id *identity.Identity) {
		_, _, _ = w.routeTo(ctx, id)
	})
}

func (w *Wishlist) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.remote.release()
}
