package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

func NewLoginCommand(opts *RootOptions) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and merge this device's cart and wishlist into the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				id, err := app.Session.Login(ctx, email, password)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				RenderIdentity(out, id)
				syncCollections(ctx, app)
				RenderMerge(out, app.Cart.LastMerge(), "cart items")
				RenderMerge(out, app.Wishlist.LastMerge(), "wishlist items")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func NewRegisterCommand(opts *RootOptions) *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				id, err := app.Session.Register(ctx, name, email, password)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				RenderIdentity(out, id)
				syncCollections(ctx, app)
				RenderMerge(out, app.Cart.LastMerge(), "cart items")
				RenderMerge(out, app.Wishlist.LastMerge(), "wishlist items")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password, at least 6 characters")

	return cmd
}

func NewLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out; the cart and wishlist switch back to this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				err := app.Session.Logout(ctx)
				RenderIdentity(cmd.OutOrStdout(), nil)
				return err
			})
		},
	}
}

func NewWhoamiCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				id, _ := app.Session.Current()
				RenderIdentity(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
}

// syncCollections routes both collections once so a fresh sign-in mounts them and merges the draft.
func syncCollections(ctx context.Context, app *App) {
	_ = app.Cart.Items(ctx)
	_ = app.Wishlist.IDs(ctx)
}

var errSignInRequired = errors.New("sign in first: shop login --email <email> --password <password>")
