package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidClientSecret = errors.New("client secret does not belong to the payment intent")

// Outcome is what a confirmation attempt tells the checkout flow.
type Outcome struct {
	IntentID    string
	Status      Status
	RedirectURL string
}

// Confirmer confirms a payment intent on behalf of the shopper, the way the
// processor's client library does with the client secret.
type Confirmer struct {
	processor Processor
	returnURL string
}

// NewConfirmer uses returnURL for redirect-based methods; the processor sends the shopper back there.
func NewConfirmer(processor Processor, returnURL string) *Confirmer {
	return &Confirmer{processor: processor, returnURL: returnURL}
}

// ConfirmPayment redirects only when the method requires it: the returned
// outcome carries a RedirectURL only for requires_action.
func (c *Confirmer) ConfirmPayment(ctx context.Context, clientSecret, intentID, method string) (Outcome, error) {
	if !strings.HasPrefix(clientSecret, intentID+"_secret_") {
		return Outcome{}, ErrInvalidClientSecret
	}

	intent, err := c.processor.ConfirmIntent(ctx, intentID, ConfirmParams{PaymentMethod: method, ReturnURL: c.returnURL})
	if err != nil {
		return Outcome{}, fmt.Errorf("confirm payment: %w", err)
	}

	out := Outcome{IntentID: intent.ID, Status: intent.Status}
	if intent.Status == StatusRequiresAction {
		out.RedirectURL = intent.NextActionURL
	}
	return out, nil
}
