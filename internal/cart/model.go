package cart

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/storefront/internal/catalog"
)

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

type Line struct {
	Product       catalog.Product `json:"product"`
	Quantity      int             `json:"quantity"`
	SelectedSize  string          `json:"selectedSize,omitempty"`
	SelectedColor string          `json:"selectedColor,omitempty"`
}

// Key identifies a cart line: the same product in another size or color is a different line.
type Key struct {
	ProductID string
	Size      string
	Color     string
}

func (l Line) Key() Key {
	return Key{ProductID: l.Product.ID, Size: l.SelectedSize, Color: l.SelectedColor}
}

// Subtotal returns price × quantity for the line.
func (l Line) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(l.Product.Price).Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func ItemCount(lines []Line) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

// Store is the contract shared by the guest draft cart and the remote cart.
type Store interface {
	Lines() []Line
	Loaded() bool
	Add(ctx context.Context, product catalog.Product, quantity int, size, color string) error
	Remove(ctx context.Context, key Key) error
	UpdateQuantity(ctx context.Context, key Key, quantity int) error
	Clear(ctx context.Context) error
}

func indexOf(lines []Line, key Key) int {
	for i, l := range lines {
		if l.Key() == key {
			return i
		}
	}
	return -1
}

func cloneLines(lines []Line) []Line {
	if lines == nil {
		return []Line{}
	}
	return append([]Line(nil), lines...)
}
