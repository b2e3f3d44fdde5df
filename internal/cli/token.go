package cli

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"clevertap-sync/internal/auth"
	"clevertap-sync/internal/config"
	"clevertap-sync/internal/rbac"
)

// NewTokenCommand issues an access token for the HTTP API. The secret and
// claims settings must match the server's JWT_* environment.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:           "token",
		Short:         "Issue an API access token",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if !rbac.Known(role) {
				return NewExitError(ExitCommandError, "unknown role "+role)
			}
			mgr, err := auth.NewManager(config.AuthConfig{
				JWTSecret:      os.Getenv("JWT_SECRET"),
				JWTIssuer:      os.Getenv("JWT_ISSUER"),
				JWTAudience:    os.Getenv("JWT_AUDIENCE"),
				AccessTokenTTL: ttl,
			})
			if err != nil {
				return WrapExitError(ExitCommandError, "auth", err)
			}
			if subject == "" {
				return WrapExitError(ExitCommandError, "token", errors.New("--subject is required"))
			}
			tok, err := mgr.IssueAccess(time.Now(), subject, role)
			if err != nil {
				return WrapExitError(ExitCommandError, "issue token", err)
			}
			if f.json() {
				return f.writeJSON(map[string]string{"access_token": tok, "subject": subject, "role": role})
			}
			f.printf("%s\n", tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "service identity the token is issued to")
	cmd.Flags().StringVar(&role, "role", rbac.RoleIntegrator, "role claim (admin|integrator|auditor|super_admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", 15*time.Minute, "token lifetime")
	return cmd
}
