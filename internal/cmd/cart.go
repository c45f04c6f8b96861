package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"storefront-engine/internal/cart"
	"storefront-engine/internal/server"
)

var (
	removeQuantity int
	exportOutput   string
)

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Operate on the persisted cart",
}

var cartShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the cart summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngines(cmd.Context(), func(e *server.Engines) error {
			return printJSON(cmd.OutOrStdout(), e.Cart.GetCartSummary(cmd.Context()))
		})
	},
}

var cartAddCmd = &cobra.Command{
	Use:   "add <productId> [quantity]",
	Short: "Add a product to the cart",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		quantity := 1
		if len(args) == 2 {
			n, err := parseQuantity(args[1])
			if err != nil {
				return err
			}
			quantity = n
		}
		return withEngines(cmd.Context(), func(e *server.Engines) error {
			_, err := e.Cart.AddItem(cmd.Context(), args[0], quantity)
			return cartResult(cmd, e, err)
		})
	},
}

var cartUpdateCmd = &cobra.Command{
	Use:   "update <productId> <quantity>",
	Short: "Set the quantity of a cart line; 0 removes it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		quantity, err := parseQuantity(args[1])
		if err != nil {
			return err
		}
		return withEngines(cmd.Context(), func(e *server.Engines) error {
			return cartResult(cmd, e, e.Cart.UpdateItemQuantity(cmd.Context(), args[0], quantity))
		})
	},
}

var cartRemoveCmd = &cobra.Command{
	Use:   "remove <productId>",
	Short: "Remove a cart line, or some of its quantity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var quantity *int
		if cmd.Flags().Changed("quantity") {
			quantity = &removeQuantity
		}
		return withEngines(cmd.Context(), func(e *server.Engines) error {
			removed, err := e.Cart.RemoveItem(cmd.Context(), args[0], quantity)
			if err == nil && !removed {
				return fmt.Errorf("product %s is not in the cart", args[0])
			}
			return cartResult(cmd, e, err)
		})
	},
}

var cartClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the cart",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngines(cmd.Context(), func(e *server.Engines) error {
			return cartResult(cmd, e, e.Cart.ClearCart(cmd.Context()))
		})
	},
}

var cartValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Reconcile the cart with the current catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngines(cmd.Context(), func(e *server.Engines) error {
			report, err := e.Cart.Validate(cmd.Context())
			if err != nil && !cart.IsPersistenceError(err) {
				return err
			}
			warnPersistence(err)
			return printJSON(cmd.OutOrStdout(), report)
		})
	},
}

var cartExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the cart in its interchange format",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngines(cmd.Context(), func(e *server.Engines) error {
			out := cmd.OutOrStdout()
			if exportOutput != "" && exportOutput != "-" {
				f, err := os.Create(exportOutput)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", exportOutput, err)
				}
				defer f.Close()
				out = f
			}
			return printJSON(out, e.Cart.ExportCart())
		})
	},
}

var cartImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Replace the cart with an exported cart",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		return withEngines(cmd.Context(), func(e *server.Engines) error {
			return cartResult(cmd, e, e.Cart.ImportCart(cmd.Context(), data))
		})
	},
}

func init() {
	rootCmd.AddCommand(cartCmd)
	cartCmd.AddCommand(cartShowCmd, cartAddCmd, cartUpdateCmd, cartRemoveCmd,
		cartClearCmd, cartValidateCmd, cartExportCmd, cartImportCmd)

	cartRemoveCmd.Flags().IntVar(&removeQuantity, "quantity", 0, "quantity to remove; the whole line when omitted")
	cartExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file, stdout when empty")
}

// cartResult prints the summary after a mutation. A persistence failure keeps
// the in-memory change and is reported as a warning.
func cartResult(cmd *cobra.Command, e *server.Engines, err error) error {
	if err != nil && !cart.IsPersistenceError(err) {
		return err
	}
	warnPersistence(err)
	return printJSON(cmd.OutOrStdout(), e.Cart.GetCartSummary(cmd.Context()))
}

func warnPersistence(err error) {
	if err != nil {
		slog.Warn("Cart change was not saved", "error", err)
	}
}

func parseQuantity(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q: %w", raw, err)
	}
	return n, nil
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}
