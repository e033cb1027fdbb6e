package cli

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vasiliy-maslov/storefront/internal/catalog"
)

func NewWishlistCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wishlist",
		Short: "Show and edit the wishlist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				return showWishlist(ctx, cmd, app)
			})
		},
	}

	edit := func(use, short string, apply func(ctx context.Context, app *App, productID string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <product-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.withApp(cmd, func(ctx context.Context, app *App) error {
					if err := apply(ctx, app, args[0]); err != nil {
						return err
					}
					return showWishlist(ctx, cmd, app)
				})
			},
		}
	}

	cmd.AddCommand(edit("add", "Add a product", func(ctx context.Context, app *App, id string) error {
		return app.Wishlist.Add(ctx, id)
	}))
	cmd.AddCommand(edit("remove", "Remove a product", func(ctx context.Context, app *App, id string) error {
		return app.Wishlist.Remove(ctx, id)
	}))
	cmd.AddCommand(edit("toggle", "Add the product if absent, remove it otherwise", func(ctx context.Context, app *App, id string) error {
		return app.Wishlist.Toggle(ctx, id)
	}))
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				if err := app.Wishlist.Clear(ctx); err != nil {
					return err
				}
				return showWishlist(ctx, cmd, app)
			})
		},
	})

	return cmd
}

// showWishlist resolves ids through the catalog; products that are gone are listed by id only.
func showWishlist(ctx context.Context, cmd *cobra.Command, app *App) error {
	ids := app.Wishlist.IDs(ctx)
	products := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		p, err := app.Catalog.GetProduct(ctx, id)
		switch {
		case err == nil:
			products = append(products, *p)
		case errors.Is(err, catalog.ErrProductNotFound):
			products = append(products, catalog.Product{ID: id, Name: "(unavailable)"})
		default:
			log.Warn().Err(err).Str("product_id", id).Msg("shop: failed to resolve wishlist product")
			products = append(products, catalog.Product{ID: id})
		}
	}
	RenderWishlist(cmd.OutOrStdout(), products)
	return nil
}
