package order

import (
	"time"

	"github.com/gofrs/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

func (s Status) String() string {
	return string(s)
}

// Item is the snapshot of one cart line at intent creation. Price is in minor units.
type Item struct {
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name"`
	ProductImage  string `json:"product_image"`
	Price         int64  `json:"price"`
	Quantity      int    `json:"quantity"`
	SelectedSize  string `json:"selected_size,omitempty"`
	SelectedColor string `json:"selected_color,omitempty"`
}

type ShippingAddress struct {
	FullName   string `json:"fullName,omitempty" validate:"omitempty,max=200"`
	Phone      string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Line1      string `json:"address,omitempty" validate:"omitempty,max=300"`
	City       string `json:"city,omitempty" validate:"omitempty,max=100"`
	State      string `json:"state,omitempty" validate:"omitempty,max=100"`
	PostalCode string `json:"pincode,omitempty" validate:"omitempty,max=20"`
	Country    string `json:"country,omitempty" validate:"omitempty,max=100"`
}

type Order struct {
	ID              uuid.UUID        `json:"id" db:"id"`
	UserID          string           `json:"user_id" db:"user_id"`
	PaymentIntentID string           `json:"payment_intent_id" db:"payment_intent_id"`
	Amount          int64            `json:"amount" db:"amount"`
	Currency        string           `json:"currency" db:"currency"`
	Status          Status           `json:"status" db:"status"`
	ShippingAddress *ShippingAddress `json:"shipping_address,omitempty" db:"shipping_address"`
	Items           []Item           `json:"items" db:"items"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
}

// ItemCount returns the number of units across all items.
func (o Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}
