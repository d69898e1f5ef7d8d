package cli

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sellerdesk/internal/core/id"
	"sellerdesk/internal/domain/filter"
	"sellerdesk/internal/domain/listing"
	"sellerdesk/internal/domain/selection"
	"sellerdesk/internal/infrastructure/http/v1/dto"
)

var selectionCmd = &cobra.Command{
	Use:     "selection",
	Aliases: []string{"sel"},
	Short:   "Inspect and edit the bulk selection of a view",
	GroupID: "selection",
}

var (
	showScope scopeFlags
	showTotal int64
)

var selectionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current selection",
	Long: `Show the current selection of --view.

Pass --search/--filter with the filter you are looking at to learn whether an
"all matching" selection was captured under a different filter.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := showScope.scope(); err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}

		q := url.Values{}
		if showScope.changed(cmd) {
			showScope.query(q)
		}
		if cmd.Flags().Changed("total") {
			q.Set("total", strconv.FormatInt(showTotal, 10))
		}

		var resp dto.SelectionResponse
		if err := client.get(cmd.Context(), selectionPath(""), q, &resp); err != nil {
			return err
		}
		return renderSelection(cmd.OutOrStdout(), resp)
	},
}

var selectAllScope scopeFlags

var selectionSelectAllCmd = &cobra.Command{
	Use:   "select-all",
	Short: "Select every listing matching a filter",
	Long: `Select every listing matching --search/--filter, including listings on pages
that were never loaded. Previous exclusions are dropped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := selectAllScope.scope()
		if err != nil {
			return err
		}
		client, err := newClient()
		if err != nil {
			return err
		}

		var resp dto.SelectionResponse
		if err := client.post(cmd.Context(), selectionPath("/select-all"), dto.SelectAllRequest{Filter: scope}, "", &resp); err != nil {
			return err
		}
		return renderSelection(cmd.OutOrStdout(), resp)
	},
}

var toggleOff bool

var selectionToggleCmd = &cobra.Command{
	Use:   "toggle <listing-id>...",
	Short: "Select or deselect listings",
	Long: `Mark listings as selected, or deselected with --off.

In an "all matching" selection a deselected listing becomes an exception.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmds := make([]listing.SelectionCommand, 0, len(args))
		for _, arg := range args {
			listingID, err := id.Parse(arg)
			if err != nil {
				return fmt.Errorf("invalid listing id %q: %w", arg, err)
			}
			cmds = append(cmds, selection.ToggleCommand[id.ID, filter.Scope](listingID, !toggleOff))
		}
		client, err := newClient()
		if err != nil {
			return err
		}

		var resp dto.SelectionResponse
		if len(cmds) == 1 {
			body := dto.ToggleRequest{ID: cmds[0].ID, Selected: cmds[0].Selected}
			err = client.post(cmd.Context(), selectionPath("/toggle"), body, "", &resp)
		} else {
			err = client.post(cmd.Context(), selectionPath("/commands"), dto.CommandsRequest{Commands: cmds}, "", &resp)
		}
		if err != nil {
			return err
		}
		return renderSelection(cmd.OutOrStdout(), resp)
	},
}

var selectionResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the selection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		var resp dto.SelectionResponse
		if err := client.post(cmd.Context(), selectionPath("/reset"), nil, "", &resp); err != nil {
			return err
		}
		return renderSelection(cmd.OutOrStdout(), resp)
	},
}

func renderSelection(w io.Writer, resp dto.SelectionResponse) error {
	if jsonOutput {
		return outputJSON(w, resp)
	}

	printSection(w, fmt.Sprintf("Selection %q (v%d)", resp.View, resp.Version))
	printLabelValue(w, "Mode", modeLabel(resp.Mode))
	switch resp.Mode {
	case selection.ModeManual:
		printLabelValue(w, "Selected", pluralize(resp.SelectedCount, "listing", "listings"))
	case selection.ModeAllFiltered:
		if resp.Total != nil {
			printLabelValue(w, "Selected", fmt.Sprintf("%s of %d",
				pluralize(resp.SelectedCount, "listing", "listings"), *resp.Total))
		} else {
			printLabelValue(w, "Selected", "unknown (no total)")
		}
		if scope, ok := resp.State.Scope(); ok {
			printLabelValue(w, "Filter", describeScope(scope))
		}
		if n := resp.State.ExcludedIDs.Len(); n > 0 {
			printLabelValue(w, "Excluded", pluralize(int64(n), "listing", "listings"))
		}
	default:
		printEmptyState(w, "Nothing selected.")
	}
	if resp.Stale {
		printWarning(w, "the selection was made under a different filter")
	}
	return nil
}

func describeScope(s filter.Scope) string {
	if s.IsEmpty() {
		return "everything"
	}
	var parts []string
	if s.Search != "" {
		parts = append(parts, fmt.Sprintf("search %q", s.Search))
	}
	for _, item := range s.Items {
		parts = append(parts, fmt.Sprintf("%s %s %v", item.Field, item.Operator, item.Value))
	}
	return strings.Join(parts, ", ")
}

func init() {
	showScope.register(selectionShowCmd)
	selectionShowCmd.Flags().Int64Var(&showTotal, "total", 0, "Known number of listings matching the captured filter")

	selectAllScope.register(selectionSelectAllCmd)
	selectionToggleCmd.Flags().BoolVar(&toggleOff, "off", false, "Deselect instead of select")

	selectionCmd.AddCommand(selectionShowCmd, selectionSelectAllCmd, selectionToggleCmd, selectionResetCmd)
}
