package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/storefront/internal/cart"
	"github.com/vasiliy-maslov/storefront/internal/payment"
)

var (
	ErrNoItems         = errors.New("no items in cart")
	ErrUnauthenticated = errors.New("user not authenticated")
	ErrMissingIntentID = errors.New("payment intent id is required")

	ErrIntentChainExhausted = errors.New("too many finished payment intents for this cart")
)

var hundred = decimal.NewFromInt(100)

// maxIntentChain bounds how many finished intents one checkout walks past.
const maxIntentChain = 16

type Pricing struct {
	Currency              string
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
	IdempotencyWindow     time.Duration
}

func DefaultPricing() Pricing {
	return Pricing{
		Currency:              "inr",
		FreeShippingThreshold: decimal.NewFromInt(500),
		ShippingFee:           decimal.NewFromInt(99),
		IdempotencyWindow:     15 * time.Minute,
	}
}

// NewPricing builds pricing from configured major-unit amounts. Zero values keep the defaults.
func NewPricing(currency string, freeShippingThreshold, shippingFee float64, window time.Duration) Pricing {
	p := DefaultPricing()
	if currency != "" {
		p.Currency = currency
	}
	if freeShippingThreshold > 0 {
		p.FreeShippingThreshold = decimal.NewFromFloat(freeShippingThreshold)
	}
	if shippingFee > 0 {
		p.ShippingFee = decimal.NewFromFloat(shippingFee)
	}
	if window > 0 {
		p.IdempotencyWindow = window
	}
	return p
}

type Quote struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
	// Amount is Total in minor units.
	Amount int64
}

// Quote prices the cart: shipping is free strictly above the threshold.
func (p Pricing) Quote(lines []cart.Line) Quote {
	subtotal := cart.Total(lines)
	shipping := p.ShippingFee
	if subtotal.GreaterThan(p.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	total := subtotal.Add(shipping)

	return Quote{
		Subtotal: subtotal,
		Shipping: shipping,
		Total:    total,
		Amount:   toMinor(total),
	}
}

func toMinor(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

type CreateIntentInput struct {
	Items           []cart.Line
	UserID          string
	ShippingAddress *ShippingAddress
}

type PaymentIntentResult struct {
	ClientSecret    string
	PaymentIntentID string
	// Amount is the total in major units.
	Amount decimal.Decimal
}

type PaymentStatus struct {
	// Amount is in minor units, as the processor reports it.
	Amount   int64
	Status   string
	Currency string
}

type Service interface {
	CreatePaymentIntent(ctx context.Context, in CreateIntentInput) (*PaymentIntentResult, error)
	GetPaymentStatus(ctx context.Context, paymentIntentID string) (*PaymentStatus, error)
	ListUserOrders(ctx context.Context, userID string, limit int) ([]Order, error)
}

type service struct {
	orderRepo Repository
	processor payment.Processor
	pricing   Pricing
	now       func() time.Time
}

func NewService(orderRepo Repository, processor payment.Processor, pricing Pricing) Service {
	return &service{
		orderRepo: orderRepo,
		processor: processor,
		pricing:   pricing,
		now:       time.Now,
	}
}

func (s *service) CreatePaymentIntent(ctx context.Context, in CreateIntentInput) (*PaymentIntentResult, error) {
	if len(in.Items) == 0 {
		log.Warn().Msg("service: attempt to create payment intent with no items")
		return nil, ErrNoItems
	}
	if in.UserID == "" {
		return nil, ErrUnauthenticated
	}

	quote := s.pricing.Quote(in.Items)
	key := IdempotencyKey(in.UserID, in.Items, s.now(), s.pricing.IdempotencyWindow)

	intent, err := s.openIntent(ctx, in, quote, key)
	if err != nil {
		log.Error().Err(err).Str("user_id", in.UserID).Msg("service: failed to create payment intent")
		return nil, fmt.Errorf("service: failed to create payment intent: %w", err)
	}

	s.recordOrder(ctx, in, intent, quote)

	return &PaymentIntentResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		Amount:          quote.Total,
	}, nil
}

// openIntent returns an intent that can still be paid. A key that resolves to a
// finished intent (the same cart was already bought inside the window) is
// salted with that intent's id and tried again.
func (s *service) openIntent(ctx context.Context, in CreateIntentInput, quote Quote, key string) (*payment.Intent, error) {
	for range maxIntentChain {
		intent, err := s.processor.CreateIntent(ctx, payment.CreateParams{
			Amount:   quote.Amount,
			Currency: s.pricing.Currency,
			Metadata: map[string]string{
				"userId":    in.UserID,
				"itemCount": strconv.Itoa(len(in.Items)),
			},
			IdempotencyKey: key,
		})
		if err != nil {
			return nil, err
		}
		if !intent.Status.Finished() {
			return intent, nil
		}

		log.Info().Str("payment_intent_id", intent.ID).Str("status", string(intent.Status)).
			Msg("service: payment intent already finished, opening a new one")
		key = SaltKey(key, intent.ID)
	}
	return nil, ErrIntentChainExhausted
}

// recordOrder writes the pending order. It is best effort: the intent already
// exists, so a failed write is logged and the checkout goes on.
func (s *service) recordOrder(ctx context.Context, in CreateIntentInput, intent *payment.Intent, quote Quote) {
	items := make([]Item, 0, len(in.Items))
	for _, l := range in.Items {
		items = append(items, Item{
			ProductID:     l.Product.ID,
			ProductName:   l.Product.Name,
			ProductImage:  l.Product.Image,
			Price:         toMinor(decimal.NewFromFloat(l.Product.Price)),
			Quantity:      l.Quantity,
			SelectedSize:  l.SelectedSize,
			SelectedColor: l.SelectedColor,
		})
	}

	o := &Order{
		UserID:          in.UserID,
		PaymentIntentID: intent.ID,
		Amount:          quote.Amount,
		Currency:        s.pricing.Currency,
		Status:          StatusPending,
		ShippingAddress: in.ShippingAddress,
		Items:           items,
	}

	created, err := s.orderRepo.Create(ctx, o)
	if err != nil {
		log.Error().Err(err).Str("payment_intent_id", intent.ID).Str("user_id", in.UserID).
			Msg("service: failed to record order, continuing")
		return
	}
	if !created {
		log.Info().Str("payment_intent_id", intent.ID).Msg("service: order already recorded for payment intent")
		return
	}
	log.Info().Stringer("order_id", o.ID).Str("user_id", o.UserID).Int64("amount", o.Amount).
		Msg("service: order recorded")
}

func (s *service) GetPaymentStatus(ctx context.Context, paymentIntentID string) (*PaymentStatus, error) {
	if paymentIntentID == "" {
		return nil, ErrMissingIntentID
	}

	intent, err := s.processor.RetrieveIntent(ctx, paymentIntentID)
	if err != nil {
		log.Error().Err(err).Str("payment_intent_id", paymentIntentID).Msg("service: failed to fetch payment intent")
		return nil, fmt.Errorf("service: failed to fetch order status: %w", err)
	}

	return &PaymentStatus{
		Amount:   intent.Amount,
		Status:   string(intent.Status),
		Currency: intent.Currency,
	}, nil
}

func (s *service) ListUserOrders(ctx context.Context, userID string, limit int) ([]Order, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if limit <= 0 {
		limit = 5
	}

	orders, err := s.orderRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("service: failed to fetch user orders in repository")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}
	return orders, nil
}
