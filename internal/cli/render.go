package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/storefront/internal/cart"
	"github.com/vasiliy-maslov/storefront/internal/catalog"
	"github.com/vasiliy-maslov/storefront/internal/checkout"
	"github.com/vasiliy-maslov/storefront/internal/identity"
	"github.com/vasiliy-maslov/storefront/internal/order"
	"github.com/vasiliy-maslov/storefront/internal/storefront"
)

const (
	productRow = "%-8s  %-24s  %-14s  %10s  %s\n"
	cartRow    = "%-8s  %-24s  %-6s  %-8s  %3s  %10s\n"
	orderRow   = "%-36s  %-10s  %5s  %14s  %s\n"
)

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func minorMoney(amount int64, currency string) string {
	return decimal.New(amount, -2).StringFixed(2) + " " + strings.ToUpper(currency)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func RenderIdentity(w io.Writer, id *identity.Identity) {
	if id == nil {
		fmt.Fprintln(w, "Not signed in.")
		return
	}
	fmt.Fprintf(w, "Signed in as %s <%s>\n", id.Name, id.Email)
}

func RenderMerge(w io.Writer, report *storefront.MergeReport, what string) {
	if report == nil || report.Merged+report.Failed == 0 {
		return
	}
	fmt.Fprintf(w, "Merged %d guest %s into your account", report.Merged, what)
	if report.Failed > 0 {
		fmt.Fprintf(w, " (%d failed, kept on this device)", report.Failed)
	}
	fmt.Fprintln(w, ".")
}

func stock(p catalog.Product) string {
	if p.InStock {
		return "in stock"
	}
	return "sold out"
}

func RenderProducts(w io.Writer, products []catalog.Product) {
	if len(products) == 0 {
		fmt.Fprintln(w, "No products found.")
		return
	}
	fmt.Fprintf(w, productRow, "ID", "NAME", "CATEGORY", "PRICE", "STOCK")
	for _, p := range products {
		price := money(p.Price)
		if p.HasDiscount() {
			price = "*" + price
		}
		fmt.Fprintf(w, productRow, p.ID, truncate(p.Name, 24), truncate(p.Category, 14), price, stock(p))
	}
	fmt.Fprintf(w, "\n%d products\n", len(products))
}

func RenderProduct(w io.Writer, p *catalog.Product) {
	fmt.Fprintf(w, "%s (%s)\n", p.Name, p.ID)
	if p.Brand != "" {
		fmt.Fprintf(w, "Brand:    %s\n", p.Brand)
	}
	fmt.Fprintf(w, "Category: %s\n", p.Category)
	if p.HasDiscount() {
		fmt.Fprintf(w, "Price:    %s (was %s)\n", money(p.Price), money(*p.OriginalPrice))
	} else {
		fmt.Fprintf(w, "Price:    %s\n", money(p.Price))
	}
	fmt.Fprintf(w, "Rating:   %.1f (%d reviews)\n", p.Rating, p.ReviewCount)
	fmt.Fprintf(w, "Stock:    %s\n", stock(*p))
	if len(p.Sizes) > 0 {
		fmt.Fprintf(w, "Sizes:    %s\n", strings.Join(p.Sizes, ", "))
	}
	if len(p.Colors) > 0 {
		fmt.Fprintf(w, "Colors:   %s\n", strings.Join(p.Colors, ", "))
	}
	if p.Description != "" {
		fmt.Fprintf(w, "\n%s\n", p.Description)
	}
}

func RenderCategories(w io.Writer, categories []catalog.Category) {
	if len(categories) == 0 {
		fmt.Fprintln(w, "No categories.")
		return
	}
	for _, c := range categories {
		fmt.Fprintf(w, "%-20s  %-20s  %d\n", c.Slug, c.Name, c.ProductCount)
	}
}

func RenderCart(w io.Writer, lines []cart.Line) {
	if len(lines) == 0 {
		fmt.Fprintln(w, "Your cart is empty.")
		return
	}
	fmt.Fprintf(w, cartRow, "ID", "NAME", "SIZE", "COLOR", "QTY", "SUBTOTAL")
	for _, l := range lines {
		fmt.Fprintf(w, cartRow, l.Product.ID, truncate(l.Product.Name, 24), l.SelectedSize, l.SelectedColor,
			fmt.Sprint(l.Quantity), l.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(w, "\nItems: %d\n", cart.ItemCount(lines))
	fmt.Fprintf(w, "Total: %s\n", cart.Total(lines).StringFixed(2))
}

func RenderWishlist(w io.Writer, products []catalog.Product) {
	if len(products) == 0 {
		fmt.Fprintln(w, "Your wishlist is empty.")
		return
	}
	for _, p := range products {
		fmt.Fprintf(w, "%-8s  %-24s  %10s\n", p.ID, truncate(p.Name, 24), money(p.Price))
	}
}

func RenderOrders(w io.Writer, orders []order.Order) {
	if len(orders) == 0 {
		fmt.Fprintln(w, "No orders yet.")
		return
	}
	fmt.Fprintf(w, orderRow, "ORDER", "DATE", "ITEMS", "TOTAL", "STATUS")
	for _, o := range orders {
		fmt.Fprintf(w, orderRow, o.ID.String(), o.CreatedAt.UTC().Format("2006-01-02"),
			fmt.Sprint(o.ItemCount()), minorMoney(o.Amount, o.Currency), o.Status)
	}
}

func RenderCheckout(w io.Writer, v checkout.View) {
	fmt.Fprintf(w, "State:    %s\n", v.State)
	if v.IntentID != "" {
		fmt.Fprintf(w, "Intent:   %s\n", v.IntentID)
		fmt.Fprintf(w, "Amount:   %s\n", money(v.Amount))
	}
	if v.Message != "" {
		fmt.Fprintf(w, "Message:  %s\n", v.Message)
	}
	if v.RedirectURL != "" {
		fmt.Fprintf(w, "Redirect: %s\n", v.RedirectURL)
	}
}

func RenderOrderStatus(w io.Writer, paymentIntentID string, s *checkout.OrderStatus) {
	fmt.Fprintf(w, "Payment %s: %s\n", paymentIntentID, s.Status)
	fmt.Fprintf(w, "Amount: %s\n", minorMoney(s.Amount, s.Currency))
}
