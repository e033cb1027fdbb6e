// Package cli implements the shop command line storefront.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vasiliy-maslov/storefront/internal/config"
	"github.com/vasiliy-maslov/storefront/internal/logger"
)

// RootOptions holds global flags and the app factory shared by all commands.
type RootOptions struct {
	Verbose bool

	// Open builds the app for a command; replaced in tests.
	Open func(ctx context.Context, cfg *config.Config) (*App, error)

	cfg *config.Config
}

// NewRootCommand creates the root command for the shop CLI.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(&RootOptions{Open: Open})
}

func NewRootCommandWith(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "shop",
		Short:         "shop - storefront in your terminal",
		Long:          "Browse the catalog, keep a cart and a wishlist, sign in and pay for orders.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			level := "warn"
			if opts.Verbose {
				level = "debug"
			}
			logger.SetupWriter(cmd.ErrOrStderr(), "shop", level, true)

			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewProductsCommand(opts))
	cmd.AddCommand(NewProductCommand(opts))
	cmd.AddCommand(NewCategoriesCommand(opts))
	cmd.AddCommand(NewCartCommand(opts))
	cmd.AddCommand(NewWishlistCommand(opts))
	cmd.AddCommand(NewCheckoutCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewOrdersCommand(opts))

	return cmd
}

// withApp opens the app for one command and closes it afterwards.
func (o *RootOptions) withApp(cmd *cobra.Command, run func(ctx context.Context, app *App) error) error {
	cfg := o.cfg
	if cfg == nil {
		cfg = config.Default()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := o.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	return run(ctx, app)
}
