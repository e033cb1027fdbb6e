// Package checkout drives a single checkout attempt: payment intent creation,
// confirmation and the redirects around them.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront/internal/cart"
	"github.com/vasiliy-maslov/storefront/internal/identity"
	"github.com/vasiliy-maslov/storefront/internal/order"
	"github.com/vasiliy-maslov/storefront/internal/payment"
)

const (
	CheckoutPath      = "/checkout"
	CartPath          = "/cart"
	ProcessingMessage = "Payment processing. Please wait..."
)

var ErrPaymentNotCompleted = errors.New("payment was not completed")

// LoginPath is where an anonymous shopper is sent; redirect is where to come back.
func LoginPath(redirect string) string {
	return "/login?redirect=" + redirect
}

func ConfirmationPath(paymentIntentID string) string {
	return "/checkout/success?payment_intent=" + paymentIntentID
}

type CartView interface {
	Items(ctx context.Context) []cart.Line
	Loading(ctx context.Context) bool
	ClearCart(ctx context.Context) error
}

type IntentCreator interface {
	CreatePaymentIntent(ctx context.Context, req CreateIntentRequest) (*CreateIntentResponse, error)
}

// Confirmer is implemented by payment.Confirmer.
type Confirmer interface {
	ConfirmPayment(ctx context.Context, clientSecret, intentID, method string) (payment.Outcome, error)
}

type Navigator interface {
	SignIn(redirect string)
	Cart()
	Confirmation(paymentIntentID string)
}

type View struct {
	State        State
	Message      string
	ClientSecret string
	IntentID     string
	// Amount is the total in major units.
	Amount      float64
	RedirectURL string
	CanSubmit   bool
}

type Sequencer struct {
	identity  identity.Source
	cart      CartView
	intents   IntentCreator
	confirmer Confirmer
	nav       Navigator
	shipping  *order.ShippingAddress

	mu           sync.Mutex
	state        State
	message      string
	clientSecret string
	intentID     string
	amount       float64
	redirectURL  string
	// succeeded is set before the cart is cleared so the empty-cart guard never fires after a payment.
	succeeded bool
}

func NewSequencer(source identity.Source, cartView CartView, intents IntentCreator, confirmer Confirmer, nav Navigator) *Sequencer {
	return &Sequencer{
		identity:  source,
		cart:      cartView,
		intents:   intents,
		confirmer: confirmer,
		nav:       nav,
		state:     StateIdle,
	}
}

// SetShippingAddress attaches the address sent with the next intent creation.
func (s *Sequencer) SetShippingAddress(addr *order.ShippingAddress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shipping = addr
}

// Evaluate runs the checkout guards and creates the payment intent when the
// shopper is signed in with a non-empty cart.
func (s *Sequencer) Evaluate(ctx context.Context) error {
	id, loading := s.identity.Current()
	if loading {
		return nil
	}
	if id == nil {
		s.nav.SignIn(CheckoutPath)
		return nil
	}
	if s.cart.Loading(ctx) {
		return nil
	}

	s.mu.Lock()
	if s.succeeded {
		s.mu.Unlock()
		return nil
	}
	lines := s.cart.Items(ctx)
	if len(lines) == 0 {
		s.mu.Unlock()
		s.nav.Cart()
		return nil
	}
	if s.state != StateIdle || s.intentID != "" {
		s.mu.Unlock()
		return nil
	}
	s.transitionLocked(StateCreatingIntent)
	s.message = ""
	shipping := s.shipping
	s.mu.Unlock()

	resp, err := s.intents.CreatePaymentIntent(ctx, CreateIntentRequest{Items: lines, UserID: id.ID, ShippingAddress: shipping})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.message = messageFor(err)
		s.transitionLocked(StateFailed)
		log.Error().Err(err).Str("user_id", id.ID).Msg("checkout: failed to create payment intent")
		return fmt.Errorf("checkout: create payment intent: %w", err)
	}

	s.clientSecret = resp.ClientSecret
	s.intentID = resp.PaymentIntentID
	s.amount = resp.Amount
	s.transitionLocked(StateAwaitingPayment)
	return nil
}

// Submit confirms the payment with method. Redirect-based methods only redirect when required.
func (s *Sequencer) Submit(ctx context.Context, method string) error {
	s.mu.Lock()
	if s.state != StateAwaitingPayment || s.clientSecret == "" {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot submit in state %s", ErrInvalidTransition, state)
	}
	s.transitionLocked(StateConfirming)
	s.message = ""
	s.redirectURL = ""
	secret, intentID := s.clientSecret, s.intentID
	s.mu.Unlock()

	out, err := s.confirmer.ConfirmPayment(ctx, secret, intentID, method)
	if err == nil && out.Status == payment.StatusSucceeded {
		s.complete(ctx, intentID)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err != nil:
		s.message = messageFor(err)
	case out.Status == payment.StatusProcessing,
		out.Status == payment.StatusRequiresAction && out.RedirectURL != "":
		s.message = ProcessingMessage
		s.redirectURL = out.RedirectURL
		s.transitionLocked(StateAwaitingPayment)
		return nil
	default:
		s.message = fmt.Sprintf("Payment was not completed (status %s). Please try again.", out.Status)
		err = fmt.Errorf("%w: status %s", ErrPaymentNotCompleted, out.Status)
	}

	// форма оплаты остаётся с тем же client secret
	s.transitionLocked(StateFailed)
	s.transitionLocked(StateAwaitingPayment)
	log.Warn().Err(err).Str("payment_intent_id", intentID).Msg("checkout: payment confirmation failed")
	return err
}

func (s *Sequencer) complete(ctx context.Context, intentID string) {
	s.mu.Lock()
	s.succeeded = true
	s.mu.Unlock()

	if err := s.cart.ClearCart(ctx); err != nil {
		log.Error().Err(err).Str("payment_intent_id", intentID).Msg("checkout: failed to clear cart after payment")
	}

	s.mu.Lock()
	s.transitionLocked(StateSucceeded)
	s.mu.Unlock()

	log.Info().Str("payment_intent_id", intentID).Msg("checkout: payment succeeded")
	s.nav.Confirmation(intentID)
}

// Retry is the way out of a failed intent creation: back to Idle and evaluate again.
func (s *Sequencer) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateFailed {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot retry in state %s", ErrInvalidTransition, state)
	}
	s.transitionLocked(StateIdle)
	s.message = ""
	s.mu.Unlock()

	return s.Evaluate(ctx)
}

func (s *Sequencer) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	return View{
		State:        s.state,
		Message:      s.message,
		ClientSecret: s.clientSecret,
		IntentID:     s.intentID,
		Amount:       s.amount,
		RedirectURL:  s.redirectURL,
		CanSubmit:    s.state == StateAwaitingPayment && s.clientSecret != "",
	}
}

// transitionLocked moves to next; the caller holds s.mu. An illegal move is a bug and is only logged.
func (s *Sequencer) transitionLocked(next State) {
	if !canTransition(s.state, next) {
		log.Error().Stringer("current_state", s.state).Stringer("new_state", next).Msg("checkout: invalid state transition")
		return
	}
	log.Debug().Stringer("from", s.state).Stringer("to", next).Msg("checkout: state changed")
	s.state = next
}

func messageFor(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, payment.ErrCardDeclined):
		return "Your card was declined."
	default:
		return err.Error()
	}
}
