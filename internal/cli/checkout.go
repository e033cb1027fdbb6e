package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vasiliy-maslov/storefront/internal/checkout"
	"github.com/vasiliy-maslov/storefront/internal/order"
	"github.com/vasiliy-maslov/storefront/internal/payment"
)

const recentOrders = 5

// printNavigator shows where a browser would have been sent.
type printNavigator struct {
	w io.Writer
}

func (n printNavigator) SignIn(redirect string) {
	fmt.Fprintf(n.w, "Sign in to continue: %s\n", checkout.LoginPath(redirect))
}

func (n printNavigator) Cart() {
	fmt.Fprintf(n.w, "Your cart is empty: %s\n", checkout.CartPath)
}

func (n printNavigator) Confirmation(paymentIntentID string) {
	fmt.Fprintf(n.w, "Order confirmed: %s\n", checkout.ConfirmationPath(paymentIntentID))
}

func NewCheckoutCommand(opts *RootOptions) *cobra.Command {
	var (
		method  string
		address order.ShippingAddress
	)

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Create a payment for the cart and pay it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				out := cmd.OutOrStdout()
				seq := checkout.NewSequencer(app.Session, app.Cart, app.Intents, app.Confirmer, printNavigator{w: out})
				if address != (order.ShippingAddress{}) {
					addr := address
					seq.SetShippingAddress(&addr)
				}

				if err := seq.Evaluate(ctx); err != nil {
					RenderCheckout(out, seq.View())
					return err
				}
				if !seq.View().CanSubmit {
					return nil
				}

				err := seq.Submit(ctx, method)
				v := seq.View()
				RenderCheckout(out, v)
				if err == nil && v.State == checkout.StateAwaitingPayment {
					fmt.Fprintf(out, "Check later with: shop status %s\n", v.IntentID)
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&method, "method", payment.MethodCardVisa, "payment method")
	cmd.Flags().StringVar(&address.FullName, "full-name", "", "shipping: full name")
	cmd.Flags().StringVar(&address.Phone, "phone", "", "shipping: phone")
	cmd.Flags().StringVar(&address.Line1, "address", "", "shipping: street address")
	cmd.Flags().StringVar(&address.City, "city", "", "shipping: city")
	cmd.Flags().StringVar(&address.State, "state", "", "shipping: state")
	cmd.Flags().StringVar(&address.PostalCode, "pincode", "", "shipping: postal code")
	cmd.Flags().StringVar(&address.Country, "country", "", "shipping: country")

	return cmd
}

func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <payment-intent-id>",
		Short: "Show the payment status of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				status, err := app.Status.OrderStatus(ctx, args[0])
				if err != nil {
					return err
				}
				RenderOrderStatus(cmd.OutOrStdout(), args[0], status)
				return nil
			})
		},
	}
}

func NewOrdersCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "Show recent orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				id, _ := app.Session.Current()
				if id == nil {
					return errSignInRequired
				}
				orders, err := app.Orders.ListByUser(ctx, id.ID, recentOrders)
				if err != nil {
					return err
				}
				RenderOrders(cmd.OutOrStdout(), orders)
				return nil
			})
		},
	}
}
