package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/kbupload/internal/buildinfo"
	"github.com/dmitrijs2005/kbupload/internal/client/auth"
)

// login asks for a bearer token, checks its claims and stores it in the
// keyring.
func (a *App) login(ctx context.Context) error {
	token, err := GetSecret(a.in, "Paste API token", a.out)
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}

	claims, err := auth.Inspect(token)
	if err != nil {
		return fmt.Errorf("token rejected: %w", err)
	}

	if err := a.tokens.Set(strings.TrimPrefix(token, "Bearer ")); err != nil {
		return err
	}

	a.log.Info(ctx, "token stored", "user_id", claims.UserID)
	fmt.Fprintf(a.out, "Logged in as %s (role %s)\n", claims.UserID, claims.Role)
	if orgs := claims.Orgs(); len(orgs) > 0 {
		fmt.Fprintf(a.out, "Organisations: %s (primary %s)\n", strings.Join(orgs, ", "), claims.PrimaryOrg)
	}
	if claims.ExpiresAt != nil {
		fmt.Fprintf(a.out, "Token expires %s\n", claims.ExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}

func (a *App) logout() error {
	if err := a.tokens.Delete(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) version() error {
	buildinfo.PrintBuildData(a.out)
	return nil
}
