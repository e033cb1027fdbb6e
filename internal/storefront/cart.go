package storefront

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/storefront/internal/cart"
	"github.com/vasiliy-maslov/storefront/internal/catalog"
	"github.com/vasiliy-maslov/storefront/internal/identity"
)

// RemoteCart is implemented by *cart.RemoteCart.
type RemoteCart interface {
	cart.Store
	UserID() string
	Mount(ctx context.Context) error
	Unmount()
	Refresh(ctx context.Context) error
}

type CartFactory func(userID string) RemoteCart

type Options struct {
	// MergeGuestOnLogin applies the guest draft to the remote collection
	// the first time a signed-in identity is routed to.
	MergeGuestOnLogin bool
}

type Cart struct {
	source identity.Source
	draft  cart.Store
	opts   Options
	now    func() time.Time

	mu        sync.Mutex
	remote    binding[RemoteCart]
	lastMerge *MergeReport
}

func NewCart(source identity.Source, draft cart.Store, newRemote CartFactory, opts Options) *Cart {
	return &Cart{
		source: source,
		draft:  draft,
		opts:   opts,
		now:    time.Now,
		remote: binding[RemoteCart]{newRemote: newRemote},
	}
}

// route picks the backing store for the current identity.
// remote is true when the store is a signed-in user's collection.
func (c *Cart) route(ctx context.Context) (store cart.Store, remote bool, err error) {
	id, loading := c.source.Current()
	if loading {
		return nil, false, ErrIdentityLoading
	}
	return c.routeTo(ctx, id)
}

func (c *Cart) routeTo(ctx context.Context, id *identity.Identity) (cart.Store, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id == nil {
		c.remote.release()
		return c.draft, false, nil
	}

	r, fresh := c.remote.bind(ctx, id.ID)
	if fresh && c.opts.MergeGuestOnLogin {
		c.mergeLocked(ctx, r)
	}
	return r, true, nil
}

func (c *Cart) mergeLocked(ctx context.Context, r RemoteCart) {
	lines := c.draft.Lines()
	if len(lines) == 0 {
		return
	}

	report := &MergeReport{UserID: r.UserID(), At: c.now()}
	for _, l := range lines {
		// Add on the remote store is an atomic insert-or-increment
		if err := r.Add(ctx, l.Product, l.Quantity, l.SelectedSize, l.SelectedColor); err != nil {
			log.Error().Err(err).Str("user_id", report.UserID).Str("product_id", l.Product.ID).
				Msg("storefront: failed to merge guest cart line")
			report.Failed++
			continue
		}
		// merged lines leave the draft so a later merge never applies them twice
		if err := c.draft.Remove(ctx, l.Key()); err != nil {
			log.Error().Err(err).Msg("storefront: failed to drop merged line from guest cart")
		}
		report.Merged++
	}

	if err := r.Refresh(ctx); err != nil {
		log.Error().Err(err).Str("user_id", report.UserID).Msg("storefront: refetch after merge failed")
	}

	c.lastMerge = report
	log.Info().Str("user_id", report.UserID).Int("merged", report.Merged).Int("failed", report.Failed).
		Msg("storefront: guest cart merged")
}

// LastMerge returns the report of the last guest cart merge, or nil.
func (c *Cart) LastMerge() *MergeReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastMerge == nil {
		return nil
	}
	r := *c.lastMerge
	return &r
}

func (c *Cart) AddToCart(ctx context.Context, product catalog.Product, quantity int, size, color string) error {
	store, remote, err := c.route(ctx)
	if err != nil {
		return err
	}
	return c.settle(remote, "add", store.Add(ctx, product, quantity, size, color))
}

func (c *Cart) RemoveFromCart(ctx context.Context, key cart.Key) error {
	store, remote, err := c.route(ctx)
	if err != nil {
		return err
	}
	return c.settle(remote, "remove", store.Remove(ctx, key))
}

// UpdateQuantity sets the line quantity; below 1 the line is removed.
func (c *Cart) UpdateQuantity(ctx context.Context, key cart.Key, quantity int) error {
	store, remote, err := c.route(ctx)
	if err != nil {
		return err
	}
	return c.settle(remote, "update quantity", store.UpdateQuantity(ctx, key, quantity))
}

func (c *Cart) ClearCart(ctx context.Context) error {
	store, remote, err := c.route(ctx)
	if err != nil {
		return err
	}
	return c.settle(remote, "clear", store.Clear(ctx))
}

// settle logs and swallows remote write failures; the cached lines stay
// as they were until the next refetch.
func (c *Cart) settle(remote bool, action string, err error) error {
	if err == nil || !remote || errors.Is(err, cart.ErrInvalidQuantity) {
		return err
	}
	log.Error().Err(err).Str("action", action).Msg("storefront: remote cart write failed")
	return nil
}

// Items returns the current lines; while the identity is loading the cart is empty.
func (c *Cart) Items(ctx context.Context) []cart.Line {
	store, _, err := c.route(ctx)
	if err != nil {
		return []cart.Line{}
	}
	return store.Lines()
}

func (c *Cart) Total(ctx context.Context) decimal.Decimal {
	return cart.Total(c.Items(ctx))
}

func (c *Cart) ItemCount(ctx context.Context) int {
	return cart.ItemCount(c.Items(ctx))
}

// Loading is true while the identity resolves or the remote cart has not completed its first fetch.
func (c *Cart) Loading(ctx context.Context) bool {
	store, _, err := c.route(ctx)
	if err != nil {
		return true
	}
	return !store.Loaded()
}

// Watch remounts promptly on login and logout until ctx is done.
func (c *Cart) Watch(ctx context.Context, w Watcher) error {
	return follow(ctx, w, func(ctx context.Context, id *identity.Identity) {
		_, _, _ = c.routeTo(ctx, id)
	})
}

// Close unmounts the remote cart, if any.
func (c *Cart) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remote.release()
}
