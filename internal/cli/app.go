package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/storefront/internal/auth"
	"github.com/vasiliy-maslov/storefront/internal/cart"
	"github.com/vasiliy-maslov/storefront/internal/catalog"
	"github.com/vasiliy-maslov/storefront/internal/changefeed"
	"github.com/vasiliy-maslov/storefront/internal/checkout"
	"github.com/vasiliy-maslov/storefront/internal/config"
	"github.com/vasiliy-maslov/storefront/internal/db"
	"github.com/vasiliy-maslov/storefront/internal/devicestore"
	"github.com/vasiliy-maslov/storefront/internal/identity"
	"github.com/vasiliy-maslov/storefront/internal/order"
	"github.com/vasiliy-maslov/storefront/internal/payment"
	"github.com/vasiliy-maslov/storefront/internal/storefront"
	"github.com/vasiliy-maslov/storefront/internal/wishlist"
)

// Session is implemented by *identity.Holder.
type Session interface {
	identity.Source
	Login(ctx context.Context, email, password string) (*identity.Identity, error)
	Register(ctx context.Context, name, email, password string) (*identity.Identity, error)
	Logout(ctx context.Context) error
}

type OrderLister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]order.Order, error)
}

type StatusFetcher interface {
	OrderStatus(ctx context.Context, paymentIntentID string) (*checkout.OrderStatus, error)
}

// App is everything a shop command can touch.
type App struct {
	Session   Session
	Catalog   catalog.Service
	Cart      *storefront.Cart
	Wishlist  *storefront.Wishlist
	Orders    OrderLister
	Intents   checkout.IntentCreator
	Status    StatusFetcher
	Confirmer checkout.Confirmer
	Feed      changefeed.Feed

	closers []func()
}

// OnClose registers cleanup run by Close in reverse order.
func (a *App) OnClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Open wires the shop against Postgres, device storage and the payment stack from cfg.
func Open(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &App{}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	var redisClient *redis.Client
	if cfg.Redis.Enabled || cfg.Device.Backend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.OnClose(func() { _ = redisClient.Close() })
	}

	storage, err := openDeviceStorage(cfg.Device, redisClient)
	if err != nil {
		return nil, err
	}
	if c, ok := storage.(interface{ Close() error }); ok {
		app.OnClose(func() { _ = c.Close() })
	}

	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	app.OnClose(pg.Close)

	feed, err := changefeed.NewPGFeed(cfg.Postgres.DSN())
	if err != nil {
		return nil, err
	}
	app.OnClose(func() { _ = feed.Close() })
	app.Feed = feed

	provider := auth.NewPasswordProvider(
		auth.NewRepository(pg.Pool),
		auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		storage,
	)
	holder := identity.NewHolder(provider)
	holder.Resolve(ctx)
	app.Session = holder

	draftCart, err := cart.LoadDraftCart(ctx, storage)
	if err != nil {
		return nil, err
	}
	draftWishlist, err := wishlist.LoadDraftWishlist(ctx, storage)
	if err != nil {
		return nil, err
	}

	opts := storefront.Options{MergeGuestOnLogin: cfg.Storefront.MergeGuestOnLogin}
	cartRepo := cart.NewRepository(pg.Pool)
	wishlistRepo := wishlist.NewRepository(pg.Pool)

	app.Cart = storefront.NewCart(holder, draftCart, func(userID string) storefront.RemoteCart {
		return cart.NewRemoteCart(userID, cartRepo, feed)
	}, opts)
	app.OnClose(app.Cart.Close)

	app.Wishlist = storefront.NewWishlist(holder, draftWishlist, func(userID string) storefront.RemoteWishlist {
		return wishlist.NewRemoteWishlist(userID, wishlistRepo, feed)
	}, opts)
	app.OnClose(app.Wishlist.Close)

	var cache catalog.Cache
	if cfg.Redis.Enabled {
		cache = catalog.NewRedisCache(redisClient)
	}
	app.Catalog = catalog.NewService(catalog.NewRepository(pg.SQLX()), cache)

	orders := order.NewRepository(pg.Pool)
	app.Orders = orders

	settings := payment.DefaultBreakerSettings()
	settings.Timeout = cfg.Payment.RequestTimeout
	returnURL := strings.TrimRight(cfg.API.BaseURL, "/") + "/checkout/success"

	switch cfg.Payment.Provider {
	case "memory":
		// без Stripe intent живёт только в этом процессе, поэтому заказ создаётся локально
		processor := payment.NewGuardedProcessor(payment.NewMemoryProcessor(), settings)
		pricing := order.NewPricing(cfg.Payment.Currency, cfg.Payment.FreeShippingThreshold,
			cfg.Payment.ShippingFee, cfg.Payment.IdempotencyWindow)
		local := localOrders{service: order.NewService(orders, processor, pricing)}
		app.Intents = local
		app.Status = local
		app.Confirmer = payment.NewConfirmer(processor, returnURL)
	default:
		client := checkout.NewClient(cfg.API.BaseURL, nil)
		processor := payment.NewGuardedProcessor(payment.NewStripeProcessor(cfg.Payment.SecretKey, nil), settings)
		app.Intents = client
		app.Status = client
		app.Confirmer = payment.NewConfirmer(processor, returnURL)
	}

	log.Debug().Str("device_backend", cfg.Device.Backend).Str("payment_provider", cfg.Payment.Provider).
		Msg("shop: app opened")

	return app, nil
}

func openDeviceStorage(cfg config.DeviceConfig, client *redis.Client) (devicestore.Storage, error) {
	switch cfg.Backend {
	case "bolt":
		return devicestore.OpenBolt(cfg.Path)
	case "redis":
		return devicestore.NewRedisStorage(client, cfg.DeviceID), nil
	case "memory":
		return devicestore.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("%w: unknown device backend %q", config.ErrInvalidConfig, cfg.Backend)
	}
}

// localOrders serves checkout from an in-process order service.
type localOrders struct {
	service order.Service
}

func (l localOrders) CreatePaymentIntent(ctx context.Context, req checkout.CreateIntentRequest) (*checkout.CreateIntentResponse, error) {
	result, err := l.service.CreatePaymentIntent(ctx, order.CreateIntentInput{
		Items:           req.Items,
		UserID:          req.UserID,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		return nil, err
	}
	return &checkout.CreateIntentResponse{
		ClientSecret:    result.ClientSecret,
		PaymentIntentID: result.PaymentIntentID,
		Amount:          result.Amount.InexactFloat64(),
	}, nil
}

func (l localOrders) OrderStatus(ctx context.Context, paymentIntentID string) (*checkout.OrderStatus, error) {
	status, err := l.service.GetPaymentStatus(ctx, paymentIntentID)
	if err != nil {
		return nil, err
	}
	return &checkout.OrderStatus{Amount: status.Amount, Status: status.Status, Currency: status.Currency}, nil
}
