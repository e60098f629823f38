package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/prepsphere/server/internal/auth"
	"github.com/spf13/cobra"
)

type tokenOptions struct {
	userID int64
	role   string
	email  string
	secret string
	issuer string
	expiry time.Duration
}

// newTokenCmd mints a bearer token for local testing and scripts. The secret
// and issuer default to JWT_SECRET and JWT_ISSUER so the token validates
// against a server started from the same environment.
func newTokenCmd() *cobra.Command {
	var opts tokenOptions
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate a signed API token",
		Long: `Generate an HS256 bearer token for a portal user.

Examples:
  server token --user-id 1 --role admin
  server token --user-id 42 --role tpo --expiry 2h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := generateToken(opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "prepsphere"
	}
	cmd.Flags().Int64Var(&opts.userID, "user-id", 0, "portal user id (required)")
	cmd.Flags().StringVar(&opts.role, "role", string(auth.RoleStudent), "role claim (student, tpo, admin)")
	cmd.Flags().StringVar(&opts.email, "email", "", "optional email claim")
	cmd.Flags().StringVar(&opts.secret, "secret", os.Getenv("JWT_SECRET"), "signing secret (default: JWT_SECRET)")
	cmd.Flags().StringVar(&opts.issuer, "issuer", issuer, "issuer claim (default: JWT_ISSUER or prepsphere)")
	cmd.Flags().DurationVar(&opts.expiry, "expiry", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func generateToken(opts tokenOptions) (string, error) {
	if opts.secret == "" {
		return "", fmt.Errorf("no signing secret: set JWT_SECRET or pass --secret")
	}
	if opts.userID <= 0 {
		return "", fmt.Errorf("--user-id must be positive")
	}
	role, ok := auth.ParseRole(opts.role)
	if !ok {
		return "", fmt.Errorf("unknown role %q", opts.role)
	}
	if opts.expiry <= 0 {
		return "", fmt.Errorf("--expiry must be positive")
	}
	manager := auth.NewJWTManager(opts.secret, opts.expiry, opts.issuer)
	return manager.Generate(opts.userID, role, opts.email)
}
