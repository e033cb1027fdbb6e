package cli

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vasiliy-maslov/storefront/internal/cart"
)

func NewCartCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and edit the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				RenderCart(cmd.OutOrStdout(), app.Cart.Items(ctx))
				return nil
			})
		},
	}

	cmd.AddCommand(newCartAddCommand(opts))
	cmd.AddCommand(newCartRemoveCommand(opts))
	cmd.AddCommand(newCartUpdateCommand(opts))
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				if err := app.Cart.ClearCart(ctx); err != nil {
					return err
				}
				RenderCart(cmd.OutOrStdout(), app.Cart.Items(ctx))
				return nil
			})
		},
	})

	return cmd
}

type lineFlags struct {
	size  string
	color string
}

func (f *lineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.size, "size", "", "selected size")
	cmd.Flags().StringVar(&f.color, "color", "", "selected color")
}

func (f *lineFlags) key(productID string) cart.Key {
	return cart.Key{ProductID: productID, Size: f.size, Color: f.color}
}

func newCartAddCommand(opts *RootOptions) *cobra.Command {
	var (
		line     lineFlags
		quantity int
	)

	cmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product; an existing line grows by the quantity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				product, err := app.Catalog.GetProduct(ctx, args[0])
				if err != nil {
					return err
				}
				if line.size != "" && len(product.Sizes) > 0 && !slices.Contains(product.Sizes, line.size) {
					return fmt.Errorf("size %q is not available for %s", line.size, product.Name)
				}
				if line.color != "" && len(product.Colors) > 0 && !slices.Contains(product.Colors, line.color) {
					return fmt.Errorf("color %q is not available for %s", line.color, product.Name)
				}

				if err := app.Cart.AddToCart(ctx, *product, quantity, line.size, line.color); err != nil {
					return err
				}
				RenderCart(cmd.OutOrStdout(), app.Cart.Items(ctx))
				return nil
			})
		},
	}

	line.register(cmd)
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "quantity to add")

	return cmd
}

func newCartRemoveCommand(opts *RootOptions) *cobra.Command {
	var line lineFlags

	cmd := &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				if err := app.Cart.RemoveFromCart(ctx, line.key(args[0])); err != nil {
					return err
				}
				RenderCart(cmd.OutOrStdout(), app.Cart.Items(ctx))
				return nil
			})
		},
	}

	line.register(cmd)
	return cmd
}

func newCartUpdateCommand(opts *RootOptions) *cobra.Command {
	var line lineFlags

	cmd := &cobra.Command{
		Use:   "update <product-id> <quantity>",
		Short: "Set a line's quantity; 0 removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q: %w", args[1], err)
			}
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				if err := app.Cart.UpdateQuantity(ctx, line.key(args[0]), quantity); err != nil {
					return err
				}
				RenderCart(cmd.OutOrStdout(), app.Cart.Items(ctx))
				return nil
			})
		},
	}

	line.register(cmd)
	return cmd
}
