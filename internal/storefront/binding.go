// Package storefront routes cart and wishlist operations to the guest draft
// or to the signed-in user's remote collection, deciding on every call.
package storefront

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront/internal/identity"
)

var ErrIdentityLoading = errors.New("storefront: identity is still loading")

// Watcher is implemented by identity.Holder.
type Watcher interface {
	Watch() (<-chan *identity.Identity, func())
}

// MergeReport describes the last guest draft merge into a remote collection.
type MergeReport struct {
	UserID string
	Merged int
	Failed int
	At     time.Time
}

type mountable interface {
	UserID() string
	Mount(ctx context.Context) error
	Unmount()
	Refresh(ctx context.Context) error
}

// binding keeps at most one mounted remote store, the one of the current identity.
type binding[R mountable] struct {
	newRemote func(userID string) R
	current   R
	bound     bool
	// mounted is false while the change feed subscription of current is missing.
	mounted bool
}

// bind returns the remote store of userID, mounting it when the identity changed.
// fresh reports that a new store was mounted by this call.
func (b *binding[R]) bind(ctx context.Context, userID string) (r R, fresh bool) {
	if b.bound && b.current.UserID() == userID {
		if !b.mounted {
			b.mount(ctx, false)
		}
		return b.current, false
	}
	b.release()

	b.current = b.newRemote(userID)
	b.bound = true
	b.mount(ctx, true)
	return b.current, true
}

// mount subscribes the current store; a failure is retried on the next bind.
func (b *binding[R]) mount(ctx context.Context, initial bool) {
	err := b.current.Mount(ctx)
	b.mounted = err == nil
	if err == nil {
		return
	}

	// без подписки данные всё равно читаем, просто без автообновления
	log.Error().Err(err).Str("user_id", b.current.UserID()).Msg("storefront: failed to mount remote store")
	if !initial {
		return
	}
	if err := b.current.Refresh(ctx); err != nil {
		log.Error().Err(err).Str("user_id", b.current.UserID()).Msg("storefront: initial fetch failed")
	}
}

// release unmounts the current remote store and waits for its refetch loop.
func (b *binding[R]) release() {
	if !b.bound {
		return
	}
	b.current.Unmount()

	var zero R
	b.current = zero
	b.bound = false
	b.mounted = false
}

// follow re-routes on every identity change until ctx is done.
func follow(ctx context.Context, w Watcher, apply func(context.Context, *identity.Identity)) error {
	changes, stop := w.Watch()
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id := <-changes:
			apply(ctx, id)
		}
	}
}
