package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/cartstore"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/domain"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// cartCmd drives a local cart replica the way a storefront client does: every
// change is saved on disk first and mirrored to the Cart API when a token is
// configured.
func cartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Work with the local cart replica",
	}
	cmd.PersistentFlags().Bool("offline", false, "Do not contact the Cart API")

	add := &cobra.Command{
		Use:   "add [product-id] [quantity]",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(2),
		RunE: withCart(func(ctx context.Context, cmd *cobra.Command, s *cartstore.Store, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity: %w", err)
			}
			item := domain.CartItem{ProductID: args[0], Quantity: qty}
			item.Name, _ = cmd.Flags().GetString("name")
			item.StockAtAddTime, _ = cmd.Flags().GetInt("stock")
			if price, _ := cmd.Flags().GetString("price"); price != "" {
				if item.UnitPrice, err = decimal.NewFromString(price); err != nil {
					return fmt.Errorf("price: %w", err)
				}
			}
			return s.AddItem(ctx, item)
		}),
	}
	add.Flags().String("name", "", "Product name shown in listings")
	add.Flags().String("price", "", "Unit price")
	add.Flags().Int("stock", 0, "Stock seen when adding, 0 for unknown")

	update := &cobra.Command{
		Use:   "update [product-id] [quantity]",
		Short: "Set a line's quantity, 0 removes it",
		Args:  cobra.ExactArgs(2),
		RunE: withCart(func(ctx context.Context, _ *cobra.Command, s *cartstore.Store, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity: %w", err)
			}
			return s.UpdateQuantity(ctx, args[0], qty)
		}),
	}

	remove := &cobra.Command{
		Use:   "remove [product-id]",
		Short: "Remove a line",
		Args:  cobra.ExactArgs(1),
		RunE: withCart(func(ctx context.Context, _ *cobra.Command, s *cartstore.Store, args []string) error {
			return s.RemoveItem(ctx, args[0])
		}),
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: withCart(func(ctx context.Context, _ *cobra.Command, s *cartstore.Store, _ []string) error {
			return s.ClearCart(ctx)
		}),
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print the cart",
		Args:  cobra.NoArgs,
		RunE: withCart(func(context.Context, *cobra.Command, *cartstore.Store, []string) error {
			return nil
		}),
	}

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Merge the server cart into the local one",
		Args:  cobra.NoArgs,
		RunE: withCart(func(ctx context.Context, _ *cobra.Command, s *cartstore.Store, _ []string) error {
			return s.SyncWithServer(ctx)
		}),
	}
	syncCmd.Flags().Bool("push", false, "Upload the merged cart afterwards")

	cmd.AddCommand(add, update, remove, clearCmd, list, syncCmd)
	return cmd
}

type cartAction func(ctx context.Context, cmd *cobra.Command, s *cartstore.Store, args []string) error

// withCart opens the configured backend, runs fn and prints the resulting cart.
func withCart(fn cartAction) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var backend cartstore.Backend
		switch cfg.CartClient.Backend {
		case "sqlite":
			b, err := cartstore.NewSQLiteBackend(cfg.CartClient.Path)
			if err != nil {
				return err
			}
			defer b.Close()
			backend = b
		default:
			backend = cartstore.NewFileBackend(cfg.CartClient.Path)
		}

		opts := []cartstore.Option{cartstore.WithLogger(logger.New(cfg.LogLevel, "text"))}
		offline, _ := cmd.Flags().GetBool("offline")
		if !offline && cfg.CartClient.Token != "" {
			opts = append(opts, cartstore.WithRemote(cartstore.NewHTTPRemote(cfg.CartClient.APIURL, cfg.CartClient.Token)))
		}
		if push, _ := cmd.Flags().GetBool("push"); push {
			opts = append(opts, cartstore.WithPushOnSync())
		}

		store, err := cartstore.New(ctx, backend, opts...)
		if err != nil {
			return err
		}
		if err := fn(ctx, cmd, store, args); err != nil {
			return err
		}
		printCart(cmd.OutOrStdout(), store)
		return nil
	}
}

func printCart(w io.Writer, s *cartstore.Store) {
	items := s.Items()
	if len(items) == 0 {
		fmt.Fprintln(w, "cart is empty")
		return
	}
	for _, it := range items {
		name := it.Name
		if name == "" {
			name = it.ProductID
		}
		fmt.Fprintf(w, "%-36s  %3d x %8s\n", name, it.Quantity, it.UnitPrice.StringFixed(2))
	}
	fmt.Fprintf(w, "%d items, total %s\n", s.TotalItems(), s.TotalPrice().StringFixed(2))
}
