package service

import (
	"context"
	"slices"

	"github.com/aussiebroadwan/autopay/internal/auth/domain"
)

// Authorities granted by the default resolver.
const (
	AuthorityUser  = "ROLE_USER"
	AuthorityAdmin = "ROLE_ADMIN"
)

// AuthorityResolver decides the authorities claim of an access token.
type AuthorityResolver interface {
	Authorities(ctx context.Context, account domain.Account) []string
}

// StaticAuthorities grants Default to everyone and adds ROLE_ADMIN for the
// listed admin emails.
type StaticAuthorities struct {
	Default     []string
	AdminEmails []string
}

func (s StaticAuthorities) Authorities(_ context.Context, account domain.Account) []string {
	out := slices.Clone(s.Default)
	if len(out) == 0 {
		out = []string{AuthorityUser}
	}
	if slices.Contains(s.AdminEmails, account.Email) && !slices.Contains(out, AuthorityAdmin) {
		out = append(out, AuthorityAdmin)
	}
	return out
}
