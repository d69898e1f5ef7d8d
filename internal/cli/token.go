package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sellerdesk/internal/config"
	"sellerdesk/internal/domain/auth"
)

var (
	tokenUser  string
	tokenSell  string
	tokenEmail string
	tokenPerms []string
	tokenAdmin bool
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:     "token",
	Short:   "Issue an access token signed with JWT_SECRET",
	GroupID: "tooling",
	Long: `Issue an access token for a back-office user.

The signing key and issuer come from the same environment (or .env file) the
API server reads. Without --perm the token carries every listing and bulk
permission.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadJWT()
		if err != nil {
			return err
		}
		if tokenTTL > 0 {
			cfg.AccessTTL = tokenTTL
		}

		perms := tokenPerms
		if len(perms) == 0 {
			perms = []string{
				auth.PermListingsRead,
				auth.PermListingsWrite,
				auth.PermBulkExecute,
				auth.PermBulkExport,
			}
		}

		token, expiresAt, err := auth.NewJWTService(cfg).Issue(auth.Identity{
			UserID:      tokenUser,
			SellerID:    tokenSell,
			Email:       tokenEmail,
			Permissions: perms,
			IsAdmin:     tokenAdmin,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return outputJSON(out, map[string]any{
				"token":     token,
				"expiresAt": expiresAt,
			})
		}
		fmt.Fprintln(out, token)
		return nil
	},
}

func init() {
	f := tokenCmd.Flags()
	f.StringVar(&tokenUser, "user", "", "User ID (required)")
	f.StringVar(&tokenSell, "seller", "", "Seller ID (required)")
	f.StringVar(&tokenEmail, "email", "", "Email claim")
	f.StringSliceVar(&tokenPerms, "perm", nil, "Permission to grant (repeatable)")
	f.BoolVar(&tokenAdmin, "admin", false, "Grant admin rights")
	f.DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default JWT_ACCESS_TTL)")
	_ = tokenCmd.MarkFlagRequired("user")
	_ = tokenCmd.MarkFlagRequired("seller")
}
