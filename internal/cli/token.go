package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"termbase/api/internal/auth"
	"termbase/api/internal/rbac"
)

type TokenOptions struct {
	*RootOptions
	Org  string
	Sub  string
	Name string
	Role string
	TTL  time.Duration
}

// NewTokenCommand mints a bearer token signed with TERMBASE_JWT_SECRET.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for local use",
		Example: `  termbasectl token --org org_123 --sub alice --role editor
  curl -H "Authorization: Bearer $(termbasectl token --org org_123 --sub alice)" localhost:8787/api/projects`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(opts.Org) == "" || strings.TrimSpace(opts.Sub) == "" {
				return NewExitError(ExitCommandError, "--org and --sub are required")
			}
			role := rbac.Normalize(opts.Role)
			if string(role) != opts.Role {
				return NewExitError(ExitCommandError, fmt.Sprintf("unknown role %q", opts.Role))
			}
			claims := auth.NewClaims(opts.Sub, opts.Name, opts.Org, string(role), opts.TTL)
			token, err := auth.IssueToken([]byte(opts.Config.JWTSecret), claims)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Org, "org", "", "organization id the token is scoped to")
	cmd.Flags().StringVar(&opts.Sub, "sub", "", "subject (user id)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name (defaults to --sub)")
	cmd.Flags().StringVar(&opts.Role, "role", string(rbac.RoleViewer), "viewer|editor|admin")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", rootOpts.Config.AccessTTL, "token lifetime")

	return cmd
}
