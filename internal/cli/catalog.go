package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vasiliy-maslov/storefront/internal/catalog"
	"github.com/vasiliy-maslov/storefront/internal/changefeed"
)

const (
	productsTable   = "products"
	categoriesTable = "categories"
)

func NewProductsCommand(opts *RootOptions) *cobra.Command {
	var (
		filter catalog.Filter
		watch  bool
	)

	cmd := &cobra.Command{
		Use:   "products",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				out := cmd.OutOrStdout()
				show := func(ctx context.Context) error {
					return listProducts(ctx, out, app.Catalog, filter)
				}
				if err := show(ctx); err != nil {
					return err
				}
				if !watch {
					return nil
				}
				return watchTable(ctx, out, app.Feed, productsTable, show)
			})
		},
	}

	cmd.Flags().StringVar(&filter.Category, "category", "", "category slug")
	cmd.Flags().StringVar(&filter.Tag, "tag", "", "product tag")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "maximum number of products")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep listing as the catalog changes")

	return cmd
}

func listProducts(ctx context.Context, w io.Writer, svc catalog.Service, filter catalog.Filter) error {
	products, err := svc.ListProducts(ctx, filter)
	if err != nil {
		return err
	}
	RenderProducts(w, products)
	return nil
}

// watchTable calls show again on every change of table until ctx is cancelled.
// A failed refresh is logged and the previous output stays on screen.
func watchTable(ctx context.Context, w io.Writer, feed changefeed.Feed, table string, show func(context.Context) error) error {
	sub, err := feed.Subscribe(ctx, table, "")
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", table, err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return sub.Close()
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-sub.Events():
				if !ok {
					return nil
				}
				log.Debug().Str("table", table).Str("op", string(ev.Op)).Msg("shop: table changed")
				fmt.Fprintln(w)
				if err := show(ctx); err != nil {
					log.Error().Err(err).Str("table", table).Msg("shop: failed to refresh")
				}
			}
		}
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, changefeed.ErrHubClosed) {
		return nil
	}
	return err
}

func NewProductCommand(opts *RootOptions) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "product <id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				out := cmd.OutOrStdout()
				p, err := app.Catalog.GetProduct(ctx, id)
				if err != nil {
					return err
				}
				RenderProduct(out, p)
				if !watch {
					return nil
				}

				return watchTable(ctx, out, app.Feed, productsTable, func(ctx context.Context) error {
					if err := app.Catalog.InvalidateProduct(ctx, id); err != nil {
						log.Warn().Err(err).Str("product_id", id).Msg("shop: failed to drop cached product")
					}
					p, err := app.Catalog.GetProduct(ctx, id)
					if errors.Is(err, catalog.ErrProductNotFound) {
						fmt.Fprintln(out, "Product is no longer available.")
						return nil
					}
					if err != nil {
						return err
					}
					RenderProduct(out, p)
					return nil
				})
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep showing the product as it changes")

	return cmd
}

func NewCategoriesCommand(opts *RootOptions) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				out := cmd.OutOrStdout()
				show := func(ctx context.Context) error {
					categories, err := app.Catalog.ListCategories(ctx)
					if err != nil {
						return err
					}
					RenderCategories(out, categories)
					return nil
				}
				if err := show(ctx); err != nil {
					return err
				}
				if !watch {
					return nil
				}
				return watchTable(ctx, out, app.Feed, categoriesTable, show)
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep listing as categories change")

	return cmd
}
