// Package auth inspects the bearer token sent to the document service and
// keeps it in the OS keyring between runs. It performs no sign-in flow.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/kbupload/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims mirrors what the document service puts in its tokens.
type Claims struct {
	jwt.RegisteredClaims
	UserID     string `json:"userId"`
	Role       string `json:"role"`
	OrgTags    string `json:"orgTags"`
	PrimaryOrg string `json:"primaryOrg"`
}

// Orgs splits the comma-separated orgTags claim.
func (c *Claims) Orgs() []string {
	var out []string
	for _, tag := range strings.Split(c.OrgTags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

var now = time.Now

// Inspect decodes a token without verifying its signature; only the server
// can do that. It fails early for malformed or expired tokens so no chunk is
// sent with credentials that will be rejected anyway.
func Inspect(token string) (*Claims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, common.ErrNoToken
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	if exp := claims.ExpiresAt; exp != nil && !exp.After(now()) {
		return claims, fmt.Errorf("%w: expired at %s", common.ErrTokenExpired, exp.Format(time.RFC3339))
	}

	return claims, nil
}
