package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"storefront-engine/internal/models"
	"storefront-engine/internal/server"
)

var searchFlags struct {
	categories []string
	minPrice   float64
	maxPrice   float64
	rating     float64
	inStock    bool
	isNew      bool
	onSale     bool
	sortBy     string
	sortOrder  string
	page       int
	perPage    int
}

var searchCmd = &cobra.Command{
	Use:   "search [terms...]",
	Short: "Search, filter and sort the catalog",
	Example: `  storefront search wireless headphones
  storefront search --category audio --in-stock --sort price --order asc`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params := models.QueryParams{
			Query:      strings.Join(args, " "),
			Categories: searchFlags.categories,
			InStock:    searchFlags.inStock,
			IsNew:      searchFlags.isNew,
			OnSale:     searchFlags.onSale,
			SortBy:     searchFlags.sortBy,
			SortOrder:  searchFlags.sortOrder,
			Page:       searchFlags.page,
			PerPage:    searchFlags.perPage,
		}
		if cmd.Flags().Changed("min-price") {
			params.PriceMin = &searchFlags.minPrice
		}
		if cmd.Flags().Changed("max-price") {
			params.PriceMax = &searchFlags.maxPrice
		}
		if cmd.Flags().Changed("rating") {
			params.Rating = &searchFlags.rating
		}

		return withEngines(cmd.Context(), func(e *server.Engines) error {
			result, err := e.Catalog.AdvancedSearch(cmd.Context(), params.WithDefaults())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		})
	},
}

var productCmd = &cobra.Command{
	Use:   "product <id>",
	Short: "Show one product",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngines(cmd.Context(), func(e *server.Engines) error {
			product, found, err := e.Catalog.GetProductByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("product not found: %s", args[0])
			}
			return printJSON(cmd.OutOrStdout(), product)
		})
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect or refresh the cached catalog",
}

var catalogStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the cached catalog state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngines(cmd.Context(), func(e *server.Engines) error {
			return printJSON(cmd.OutOrStdout(), e.Catalog.Status())
		})
	},
}

var catalogRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refetch the catalog feed, ignoring the cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngines(cmd.Context(), func(e *server.Engines) error {
			if _, err := e.Catalog.Refresh(cmd.Context()); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), e.Catalog.Status())
		})
	},
}

func init() {
	rootCmd.AddCommand(searchCmd, productCmd, catalogCmd)
	catalogCmd.AddCommand(catalogStatusCmd, catalogRefreshCmd)

	flags := searchCmd.Flags()
	flags.StringSliceVar(&searchFlags.categories, "category", nil, "category filter, repeatable or comma separated")
	flags.Float64Var(&searchFlags.minPrice, "min-price", 0, "minimum price")
	flags.Float64Var(&searchFlags.maxPrice, "max-price", 0, "maximum price")
	flags.Float64Var(&searchFlags.rating, "rating", 0, "minimum rating")
	flags.BoolVar(&searchFlags.inStock, "in-stock", false, "only products in stock")
	flags.BoolVar(&searchFlags.isNew, "new", false, "only new products")
	flags.BoolVar(&searchFlags.onSale, "sale", false, "only products on sale")
	flags.StringVar(&searchFlags.sortBy, "sort", models.SortByPopularity, "sort key: name, price, rating, popularity")
	flags.StringVar(&searchFlags.sortOrder, "order", models.SortOrderDesc, "sort order: asc or desc")
	flags.IntVar(&searchFlags.page, "page", 1, "page number")
	flags.IntVar(&searchFlags.perPage, "per-page", models.DefaultPerPage, "results per page")
}
