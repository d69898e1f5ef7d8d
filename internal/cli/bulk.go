package cli

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sellerdesk/internal/domain/bulk"
	"sellerdesk/internal/domain/listing"
	"sellerdesk/internal/infrastructure/http/v1/dto"
)

var bulkCmd = &cobra.Command{
	Use:     "bulk",
	Short:   "Run bulk actions over the selection",
	GroupID: "selection",
}

var (
	bulkStatus         string
	bulkKeep           bool
	bulkIdempotencyKey string
)

var bulkRunCmd = &cobra.Command{
	Use:   "run <set-status|reprocess|export>",
	Short: "Run an action over the current selection",
	Long: `Run an action over the current selection of --view.

Manual selections send their listing ids; "all matching" selections send the
captured filter and the exceptions, and the server resolves the listings.
The selection is cleared afterwards unless --keep is given.

Retrying with the same --idempotency-key returns the first result instead of
running the action again.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"set-status", "reprocess", "export"},
	RunE: func(cmd *cobra.Command, args []string) error {
		action := bulk.Action(strings.ReplaceAll(args[0], "-", "_"))
		if !action.IsValid() {
			return fmt.Errorf("unknown action %q", args[0])
		}
		req := dto.BulkRequest{KeepSelection: bulkKeep}
		if action == bulk.ActionSetStatus {
			req.Status = listing.Status(bulkStatus)
			if !req.Status.IsValid() {
				return fmt.Errorf("set-status needs a valid --status, got %q", bulkStatus)
			}
		}

		client, err := newClient()
		if err != nil {
			return err
		}
		path := selectionPath("/bulk/" + url.PathEscape(args[0]))

		var res bulk.Result
		if err := client.post(cmd.Context(), path, req, bulkIdempotencyKey, &res); err != nil {
			return err
		}
		return renderResult(cmd.OutOrStdout(), res)
	},
}

var bulkGetCmd = &cobra.Command{
	Use:   "get <operation-number>",
	Short: "Show a journaled bulk operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		var entry bulk.Entry
		if err := client.get(cmd.Context(), "/api/v1/bulk-operations/"+url.PathEscape(args[0]), nil, &entry); err != nil {
			return err
		}
		return renderEntry(cmd.OutOrStdout(), entry)
	},
}

func renderResult(w io.Writer, res bulk.Result) error {
	if jsonOutput {
		return outputJSON(w, res)
	}
	printSuccess(w, fmt.Sprintf("%s %s finished", res.Number, res.Action))
	printLabelValue(w, "Mode", modeLabel(res.Mode))
	printLabelValue(w, "Matched", strconv.FormatInt(res.Matched, 10))
	printLabelValue(w, "Affected", strconv.FormatInt(res.Affected, 10))
	if res.Skipped > 0 {
		printLabelValue(w, "Skipped", strconv.FormatInt(res.Skipped, 10))
	}
	if res.DownloadURL != "" {
		printLabelValue(w, "Download", res.DownloadURL)
	} else if res.ExportKey != "" {
		printLabelValue(w, "Export", res.ExportKey)
	}
	printLabelValue(w, "Took", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond).String())
	return nil
}

func renderEntry(w io.Writer, e bulk.Entry) error {
	if jsonOutput {
		return outputJSON(w, e)
	}
	printSection(w, fmt.Sprintf("Operation %s", e.Number))
	printLabelValue(w, "Action", string(e.Action))
	printLabelValue(w, "Mode", modeLabel(e.Mode))
	printLabelValue(w, "User", e.UserID)
	printLabelValue(w, "At", e.CreatedAt.Format(time.RFC3339))
	if e.Scope != nil {
		printLabelValue(w, "Filter", describeScope(*e.Scope))
	}
	if len(e.IDs) > 0 {
		printLabelValue(w, "Listings", pluralize(int64(len(e.IDs)), "id", "ids"))
	}
	if len(e.ExcludedIDs) > 0 {
		printLabelValue(w, "Excluded", pluralize(int64(len(e.ExcludedIDs)), "id", "ids"))
	}
	printLabelValue(w, "Matched", strconv.FormatInt(e.Matched, 10))
	printLabelValue(w, "Affected", strconv.FormatInt(e.Affected, 10))
	if e.ExportKey != "" {
		printLabelValue(w, "Export", e.ExportKey)
	}
	return nil
}

func init() {
	bulkRunCmd.Flags().StringVar(&bulkStatus, "status", "", "Target status for set-status")
	bulkRunCmd.Flags().BoolVar(&bulkKeep, "keep", false, "Keep the selection after the action")
	bulkRunCmd.Flags().StringVar(&bulkIdempotencyKey, "idempotency-key", "", "Key that makes retries safe (random when empty)")

	bulkCmd.AddCommand(bulkRunCmd, bulkGetCmd)
}
