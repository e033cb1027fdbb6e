package order

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vasiliy-maslov/storefront/internal/cart"
)

// IdempotencyKey derives the processor idempotency key for a checkout attempt.
// The same user with the same cart content inside one window always gets the
// same key, so reloading the checkout reuses the payment intent.
func IdempotencyKey(userID string, lines []cart.Line, at time.Time, window time.Duration) string {
	if window <= 0 {
		window = 15 * time.Minute
	}
	bucket := at.UTC().UnixNano() / int64(window)

	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n%d", userID, contentHash(lines), bucket)
	return hex.EncodeToString(h.Sum(nil))
}

// SaltKey derives the next key in the chain once the intent behind key has finished.
func SaltKey(key, finishedIntentID string) string {
	sum := sha256.Sum256([]byte(key + "\n" + finishedIntentID))
	return hex.EncodeToString(sum[:])
}

// contentHash is independent of line order.
func contentHash(lines []cart.Line) string {
	rows := make([]string, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, fmt.Sprintf("%s|%s|%s|%d|%s",
			l.Product.ID, l.SelectedSize, l.SelectedColor, l.Quantity, l.Subtotal().StringFixed(2)))
	}
	sort.Strings(rows)

	sum := sha256.Sum256([]byte(strings.Join(rows, "\n")))
	return hex.EncodeToString(sum[:])
}
