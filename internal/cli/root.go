// Package cli implements sellerctl: token issuing, listing queries, selection
// editing and bulk actions against a running sellerdesk API.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultAPIURL = "http://localhost:8080"

var (
	// Global flags
	jsonOutput bool
	apiURL     string
	apiToken   string
	viewName   string
)

// rootCmd is the root command for sellerctl.
var rootCmd = &cobra.Command{
	Use:     "sellerctl",
	Version: "dev",
	Short:   "Marketplace seller back-office tool",
	Long: `sellerctl talks to the sellerdesk API.

It builds bulk selections over listings (by hand or "all matching the filter"),
runs bulk actions on them and inspects the resulting operations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

func SetVersion(v string) {
	if v == "" {
		return
	}
	rootCmd.Version = v
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	flags.StringVar(&apiURL, "api", envOr("SELLERDESK_API", defaultAPIURL), "API base URL (env SELLERDESK_API)")
	flags.StringVar(&apiToken, "token", os.Getenv("SELLERDESK_TOKEN"), "Access token (env SELLERDESK_TOKEN)")
	flags.StringVar(&viewName, "view", "listings", "Selection view name")

	rootCmd.AddGroup(&cobra.Group{ID: "catalog", Title: "Catalog:"})
	rootCmd.AddGroup(&cobra.Group{ID: "selection", Title: "Selection & Bulk:"})
	rootCmd.AddGroup(&cobra.Group{ID: "tooling", Title: "CLI & Tooling:"})

	rootCmd.AddCommand(listingsCmd, selectionCmd, bulkCmd, tokenCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:     "version",
		Short:   "Print the sellerctl version",
		Args:    cobra.NoArgs,
		GroupID: "tooling",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), rootCmd.Version)
		},
	})
}
