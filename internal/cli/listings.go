package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"sellerdesk/internal/domain/filter"
	"sellerdesk/internal/infrastructure/http/v1/dto"
)

// scopeFlags are the --search and --filter flags shared by every command
// that looks at a filtered listing view.
type scopeFlags struct {
	search string
	filter string
}

func (f *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.search, "search", "", "Free-text search")
	cmd.Flags().StringVar(&f.filter, "filter", "",
		`Filter rows as JSON, e.g. '[{"field":"status","operator":"eq","value":"active"}]'`)
}

func (f *scopeFlags) changed(cmd *cobra.Command) bool {
	return cmd.Flags().Changed("search") || cmd.Flags().Changed("filter")
}

func (f *scopeFlags) scope() (filter.Scope, error) {
	scope := filter.Scope{Search: f.search}
	if f.filter != "" {
		if err := json.Unmarshal([]byte(f.filter), &scope.Items); err != nil {
			return filter.Scope{}, fmt.Errorf("--filter must be a JSON array of filter rows: %w", err)
		}
	}
	scope = scope.Normalize()
	if err := scope.Validate(); err != nil {
		return filter.Scope{}, err
	}
	return scope, nil
}

// query encodes the scope the way the list endpoints expect it.
func (f *scopeFlags) query(q url.Values) {
	if f.search != "" {
		q.Set("search", f.search)
	}
	if f.filter != "" {
		q.Set("filter", f.filter)
	}
}

var (
	listScope  scopeFlags
	listLimit  int
	listOffset int
	listOrder  string
)

var listingsCmd = &cobra.Command{
	Use:     "listings",
	Short:   "Query listings",
	GroupID: "catalog",
}

var listingsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List listings matching a filter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := listScope.scope(); err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}

		q := url.Values{}
		listScope.query(q)
		if listLimit > 0 {
			q.Set("limit", strconv.Itoa(listLimit))
		}
		if listOffset > 0 {
			q.Set("offset", strconv.Itoa(listOffset))
		}
		if listOrder != "" {
			q.Set("orderBy", listOrder)
		}

		var page dto.ListResponse[dto.ListingResponse]
		if err := client.get(cmd.Context(), "/api/v1/listings", q, &page); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, page)
		}
		if len(page.Items) == 0 {
			printEmptyState(out, "No listings match.")
			return nil
		}

		table := make([][]string, 0, len(page.Items))
		for _, l := range page.Items {
			table = append(table, []string{
				l.ID, l.Marketplace, l.SKU, l.Title, string(l.Status),
				l.Price.StringFixed(2) + " " + l.Currency,
				strconv.FormatInt(l.Stock, 10), string(l.SyncStatus),
			})
		}
		printTable(out, []string{"ID", "MARKET", "SKU", "TITLE", "STATUS", "PRICE", "STOCK", "SYNC"}, table)
		fmt.Fprintf(out, "\n  %s of %d\n", pluralize(int64(len(page.Items)), "listing", "listings"), page.TotalCount)
		return nil
	},
}

func init() {
	listScope.register(listingsLsCmd)
	listingsLsCmd.Flags().IntVar(&listLimit, "limit", 0, "Page size (server default when 0)")
	listingsLsCmd.Flags().IntVar(&listOffset, "offset", 0, "Rows to skip")
	listingsLsCmd.Flags().StringVar(&listOrder, "order-by", "", "Sort column, prefix with - for descending")

	listingsCmd.AddCommand(listingsLsCmd)
}
