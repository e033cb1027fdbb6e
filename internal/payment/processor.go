// Package payment is the boundary to the payment processor.
package payment

import (
	"context"
	"errors"
)

type Status string

const (
	StatusRequiresPaymentMethod Status = "requires_payment_method"
	StatusRequiresConfirmation  Status = "requires_confirmation"
	StatusRequiresAction        Status = "requires_action"
	StatusProcessing            Status = "processing"
	StatusSucceeded             Status = "succeeded"
	StatusCanceled              Status = "canceled"
)

// Finished reports whether the intent can no longer be confirmed.
func (s Status) Finished() bool {
	return s == StatusSucceeded || s == StatusCanceled
}

var (
	ErrIntentNotFound = errors.New("payment intent not found")
	ErrCardDeclined   = errors.New("your card was declined")
)

// Intent is the processor's record of one checkout payment. Amount is in minor units.
type Intent struct {
	ID            string
	ClientSecret  string
	Amount        int64
	Currency      string
	Status        Status
	NextActionURL string
	Metadata      map[string]string
}

type CreateParams struct {
	Amount         int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

type ConfirmParams struct {
	// PaymentMethod is a processor payment method id, e.g. "pm_card_visa".
	PaymentMethod string
	ReturnURL     string
}

type Processor interface {
	CreateIntent(ctx context.Context, params CreateParams) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
	ConfirmIntent(ctx context.Context, id string, params ConfirmParams) (*Intent, error)
}
