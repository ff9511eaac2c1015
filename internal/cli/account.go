package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chefriend/chefriend-cli/internal/api"
	"github.com/chefriend/chefriend-cli/internal/auth"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the access token issued by the web login",
		Args:  cobra.NoArgs,
		RunE:  withApp(runLogin),
	}
	cmd.Flags().String("token", "", "Access token (required)")
	cmd.Flags().String("refresh", "", "Refresh token, used to renew the access token")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func runLogin(ctx context.Context, a *app, _ []string) error {
	flags := a.cmd.Flags()
	token, _ := flags.GetString("token")
	refresh, _ := flags.GetString("refresh")

	if err := a.tokens.Set(ctx, auth.Credentials{AccessToken: token, RefreshToken: refresh}); err != nil {
		return err
	}
	if claims, err := auth.ParseClaims(token); err == nil && !claims.ExpiresAt.IsZero() {
		a.logger.Info("access token", "subject", claims.Subject, "expires_at", claims.ExpiresAt)
	}

	a.client.ClearCache()
	u, err := a.client.CurrentUser(ctx)
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		_ = a.tokens.Clear(ctx)
		return fmt.Errorf("login rejected: %w", err)
	case err != nil:
		a.warn("Signed in, but the account could not be verified: %v", err)
		return nil
	}
	if err := a.tokens.SetUser(ctx, toAuthUser(u)); err != nil {
		return err
	}
	a.info("Signed in as %s", displayName(u.Name, u.Email))
	return nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored tokens",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			if err := a.tokens.Clear(ctx); err != nil {
				return err
			}
			a.info("Signed out")
			return nil
		}),
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			if err := a.requireSignIn(); err != nil {
				return err
			}
			u, err := a.client.CurrentUser(ctx)
			if err != nil {
				return err
			}
			if err := a.tokens.SetUser(ctx, toAuthUser(u)); err != nil {
				a.logger.Warn("cache user", "error", err)
			}
			if a.reporter.Format() == "json" {
				return writeJSON(a, u)
			}
			fmt.Fprintf(a.out, "%s <%s> (%s, id %d)\n", displayName(u.Name, u.Email), u.Email, u.Role, u.ID)
			return nil
		}),
	}
}

func toAuthUser(u *api.User) auth.User {
	return auth.User{ID: u.ID, Email: u.Email, Nickname: u.Name, Role: u.Role}
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	return email
}

// writeJSON prints v as indented JSON for the lookups that have no report
// view of their own.
func writeJSON(a *app, v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
