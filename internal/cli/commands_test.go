package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/storefront/internal/auth"
	"github.com/vasiliy-maslov/storefront/internal/cart"
	"github.com/vasiliy-maslov/storefront/internal/catalog"
	"github.com/vasiliy-maslov/storefront/internal/changefeed"
	"github.com/vasiliy-maslov/storefront/internal/config"
	"github.com/vasiliy-maslov/storefront/internal/devicestore"
	"github.com/vasiliy-maslov/storefront/internal/identity"
	"github.com/vasiliy-maslov/storefront/internal/order"
	"github.com/vasiliy-maslov/storefront/internal/payment"
	"github.com/vasiliy-maslov/storefront/internal/storefront"
	"github.com/vasiliy-maslov/storefront/internal/wishlist"
)

type fakeSession struct {
	mu        sync.Mutex
	current   *identity.Identity
	passwords map[string]string
	users     map[string]*identity.Identity
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		passwords: map[string]string{"alice@example.com": "secret1"},
		users: map[string]*identity.Identity{
			"alice@example.com": {ID: "u-alice", Email: "alice@example.com", Name: "Alice"},
		},
	}
}

func (s *fakeSession) Current() (*identity.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, false
}

func (s *fakeSession) Login(_ context.Context, email, password string) (*identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.passwords[email] != password {
		return nil, auth.ErrInvalidCredentials
	}
	s.current = s.users[email]
	return s.current, nil
}

func (s *fakeSession) Register(_ context.Context, name, email, password string) (*identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[email]; ok {
		return nil, auth.ErrEmailExists
	}
	id := &identity.Identity{ID: "u-" + name, Email: email, Name: name}
	s.users[email] = id
	s.passwords[email] = password
	s.current = id
	return id, nil
}

func (s *fakeSession) Logout(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	return nil
}

type fakeCatalog struct {
	products []catalog.Product
}

func (c fakeCatalog) ListProducts(_ context.Context, filter catalog.Filter) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, p := range c.products {
		if filter.Category != "" && !strings.EqualFold(p.Category, filter.Category) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (c fakeCatalog) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	for _, p := range c.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, catalog.ErrProductNotFound
}

func (c fakeCatalog) ListCategories(context.Context) ([]catalog.Category, error) {
	return []catalog.Category{{ID: "c-1", Name: "Shoes", Slug: "shoes", ProductCount: 1}}, nil
}

func (c fakeCatalog) InvalidateProduct(context.Context, string) error {
	return nil
}

// testShop is the state shared by consecutive commands, the way Postgres and
// device storage outlive one shop invocation.
type testShop struct {
	session   *fakeSession
	storage   *devicestore.MemoryStorage
	hub       *changefeed.Hub
	carts     *cart.MemoryRepository
	wishlists *wishlist.MemoryRepository
	orders    *order.MemoryRepository
	processor *payment.MemoryProcessor
	catalog   fakeCatalog
}

func newTestShop() *testShop {
	hub := changefeed.NewHub()
	products := []catalog.Product{trailRunner, crewTee}
	return &testShop{
		session:   newFakeSession(),
		storage:   devicestore.NewMemoryStorage(),
		hub:       hub,
		carts:     cart.NewMemoryRepository(hub, products...),
		wishlists: wishlist.NewMemoryRepository(hub),
		orders:    order.NewMemoryRepository(),
		processor: payment.NewMemoryProcessor(),
		catalog:   fakeCatalog{products: products},
	}
}

func (s *testShop) open(ctx context.Context, _ *config.Config) (*App, error) {
	draftCart, err := cart.LoadDraftCart(ctx, s.storage)
	if err != nil {
		return nil, err
	}
	draftWishlist, err := wishlist.LoadDraftWishlist(ctx, s.storage)
	if err != nil {
		return nil, err
	}

	opts := storefront.Options{MergeGuestOnLogin: true}
	local := localOrders{service: order.NewService(s.orders, s.processor, order.DefaultPricing())}

	app := &App{
		Session: s.session,
		Catalog: s.catalog,
		Cart: storefront.NewCart(s.session, draftCart, func(userID string) storefront.RemoteCart {
			return cart.NewRemoteCart(userID, s.carts, s.hub)
		}, opts),
		Wishlist: storefront.NewWishlist(s.session, draftWishlist, func(userID string) storefront.RemoteWishlist {
			return wishlist.NewRemoteWishlist(userID, s.wishlists, s.hub)
		}, opts),
		Orders:    s.orders,
		Intents:   local,
		Status:    local,
		Confirmer: payment.NewConfirmer(s.processor, ""),
		Feed:      s.hub,
	}
	app.OnClose(app.Cart.Close)
	app.OnClose(app.Wishlist.Close)
	return app, nil
}

func (s *testShop) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := s.execute(context.Background(), &out, args...)
	return out.String(), err
}

func (s *testShop) execute(ctx context.Context, out io.Writer, args ...string) error {
	cmd := NewRootCommandWith(&RootOptions{Open: s.open})
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// lockedBuffer is written by a running command and read by the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestShop_GuestCartSurvivesBetweenRuns(t *testing.T) {
	shop := newTestShop()

	_, err := shop.run(t, "cart", "add", "p-1", "--size", "42", "--color", "red")
	require.NoError(t, err)
	_, err = shop.run(t, "cart", "add", "p-2", "-q", "2")
	require.NoError(t, err)

	out, err := shop.run(t, "cart")
	require.NoError(t, err)
	assert.Contains(t, out, "Items: 3")
	assert.Contains(t, out, "Total: 3997.00")

	out, err = shop.run(t, "cart", "update", "p-2", "0")
	require.NoError(t, err)
	assert.NotContains(t, out, "p-2")
	assert.Contains(t, out, "Items: 1")
}

func TestShop_CartAddErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr error
		wantMsg string
	}{
		{name: "unknown product", args: []string{"cart", "add", "p-404"}, wantErr: catalog.ErrProductNotFound},
		{name: "size not offered", args: []string{"cart", "add", "p-1", "--size", "50"}, wantMsg: `size "50" is not available`},
		{name: "zero quantity", args: []string{"cart", "add", "p-1", "-q", "0"}, wantErr: cart.ErrInvalidQuantity},
		{name: "bad quantity argument", args: []string{"cart", "update", "p-1", "many"}, wantMsg: "invalid quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestShop().run(t, tt.args...)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestShop_LoginMergesGuestCart(t *testing.T) {
	shop := newTestShop()

	_, err := shop.run(t, "cart", "add", "p-1", "-q", "2")
	require.NoError(t, err)

	out, err := shop.run(t, "login", "--email", "alice@example.com", "--password", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Signed in as Alice <alice@example.com>\nMerged 1 guest cart items into your account.\n", out)

	lines, err := shop.carts.List(context.Background(), "u-alice")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)

	out, err = shop.run(t, "logout")
	require.NoError(t, err)
	assert.Equal(t, "Not signed in.\n", out)

	out, err = shop.run(t, "cart")
	require.NoError(t, err)
	assert.Equal(t, "Your cart is empty.\n", out, "merged lines left the device draft")
}

func TestShop_LoginWrongPassword(t *testing.T) {
	_, err := newTestShop().run(t, "login", "--email", "alice@example.com", "--password", "nope")
	assert.True(t, errors.Is(err, auth.ErrInvalidCredentials))
}

func TestShop_Wishlist(t *testing.T) {
	shop := newTestShop()

	_, err := shop.run(t, "wishlist", "toggle", "p-1")
	require.NoError(t, err)
	out, err := shop.run(t, "wishlist", "add", "p-gone")
	require.NoError(t, err)
	assert.Contains(t, out, "(unavailable)")

	out, err = shop.run(t, "wishlist", "toggle", "p-1")
	require.NoError(t, err)
	assert.NotContains(t, out, "Trail Runner")

	out, err = shop.run(t, "wishlist", "clear")
	require.NoError(t, err)
	assert.Equal(t, "Your wishlist is empty.\n", out)
}

func TestShop_CheckoutGuards(t *testing.T) {
	shop := newTestShop()

	out, err := shop.run(t, "checkout")
	require.NoError(t, err)
	assert.Equal(t, "Sign in to continue: /login?redirect=/checkout\n", out)

	_, err = shop.run(t, "login", "--email", "alice@example.com", "--password", "secret1")
	require.NoError(t, err)

	out, err = shop.run(t, "checkout")
	require.NoError(t, err)
	assert.Equal(t, "Your cart is empty: /cart\n", out)
}

func TestShop_CheckoutPaysAndRecordsOrder(t *testing.T) {
	shop := newTestShop()

	_, err := shop.run(t, "login", "--email", "alice@example.com", "--password", "secret1")
	require.NoError(t, err)
	_, err = shop.run(t, "cart", "add", "p-2")
	require.NoError(t, err)

	out, err := shop.run(t, "checkout", "--method", payment.MethodCardDeclined)
	require.ErrorIs(t, err, payment.ErrCardDeclined)
	assert.Contains(t, out, "Message:  Your card was declined.")

	out, err = shop.run(t, "checkout", "--city", "Pune", "--pincode", "411001")
	require.NoError(t, err)
	assert.Contains(t, out, "Order confirmed: /checkout/success?payment_intent=pi_")
	assert.Contains(t, out, "State:    SUCCEEDED")
	assert.Contains(t, out, "Amount:   598.00")

	lines, err := shop.carts.List(context.Background(), "u-alice")
	require.NoError(t, err)
	assert.Empty(t, lines, "cart is cleared after payment")

	orders, err := shop.orders.ListByUser(context.Background(), "u-alice", 5)
	require.NoError(t, err)
	require.NotEmpty(t, orders)
	intentID := orders[0].PaymentIntentID

	out, err = shop.run(t, "status", intentID)
	require.NoError(t, err)
	assert.Equal(t, "Payment "+intentID+": succeeded\nAmount: 598.00 INR\n", out)

	out, err = shop.run(t, "orders")
	require.NoError(t, err)
	assert.Contains(t, out, "598.00 INR")
}

func TestShop_OrdersRequireSignIn(t *testing.T) {
	_, err := newTestShop().run(t, "orders")
	assert.ErrorIs(t, err, errSignInRequired)
}

func TestShop_ProductsAndCategories(t *testing.T) {
	shop := newTestShop()

	out, err := shop.run(t, "products", "--category", "shoes")
	require.NoError(t, err)
	assert.Contains(t, out, "Trail Runner")
	assert.NotContains(t, out, "Cotton")
	assert.Contains(t, out, "1 products")

	out, err = shop.run(t, "categories")
	require.NoError(t, err)
	assert.Contains(t, out, "shoes")

	out, err = shop.run(t, "product", "p-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Price:    2999.00 (was 3999.00)")
}

func TestShop_WatchRefreshesOnChange(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		table string
		want  string
	}{
		{name: "products", args: []string{"products", "--watch"}, table: productsTable, want: "Trail Runner"},
		{name: "product", args: []string{"product", "p-1", "-w"}, table: productsTable, want: "Trail Runner (p-1)"},
		{name: "categories", args: []string{"categories", "--watch"}, table: categoriesTable, want: "shoes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shop := newTestShop()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			out := &lockedBuffer{}
			done := make(chan error, 1)
			go func() { done <- shop.execute(ctx, out, tt.args...) }()

			require.Eventually(t, func() bool { return shop.hub.Len() == 1 }, time.Second, 5*time.Millisecond)
			assert.Equal(t, 1, strings.Count(out.String(), tt.want))

			// other tables do not trigger a refresh
			shop.hub.Publish(changefeed.Event{Table: "orders", Op: changefeed.OpInsert})
			shop.hub.Publish(changefeed.Event{Table: tt.table, Op: changefeed.OpUpdate})
			require.Eventually(t, func() bool {
				return strings.Count(out.String(), tt.want) == 2
			}, time.Second, 5*time.Millisecond)

			cancel()
			require.NoError(t, <-done)
			assert.Equal(t, 0, shop.hub.Len())
		})
	}
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "shop", cmd.Use)

	commands := []string{"login", "register", "logout", "whoami", "products", "product", "categories",
		"cart", "wishlist", "checkout", "status", "orders"}
	for _, name := range commands {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	checkoutCmd, _, err := cmd.Find([]string{"checkout"})
	require.NoError(t, err)
	method := checkoutCmd.Flags().Lookup("method")
	require.NotNil(t, method)
	assert.Equal(t, payment.MethodCardVisa, method.DefValue)
}
