package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/autopay/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestValidateIssuer(t *testing.T) {
	c := &jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "cc-autopay-system",
		},
	}

	t.Run("matching issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer("cc-autopay-system"))
	})

	t.Run("empty expected issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer(""))
	})

	t.Run("mismatched issuer", func(t *testing.T) {
		require.ErrorIs(t, c.ValidateIssuer("someone-else"), jwtx.ErrIssuer)
	})
}

func TestValidateAudience(t *testing.T) {
	c := &jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience: []string{"cc-autopay-client"},
		},
	}

	require.NoError(t, c.ValidateAudience("cc-autopay-client"))
	require.NoError(t, c.ValidateAudience(""))
	require.ErrorIs(t, c.ValidateAudience("admin-portal"), jwtx.ErrAudience)
}

func TestValidateExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("not expired", func(t *testing.T) {
		c := &jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute))}}
		require.NoError(t, c.ValidateExpiry(now))
	})

	t.Run("expired at boundary", func(t *testing.T) {
		c := &jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now)}}
		require.ErrorIs(t, c.ValidateExpiry(now), jwtx.ErrExpired)
	})

	t.Run("missing exp", func(t *testing.T) {
		c := &jwtx.Claims{}
		require.ErrorIs(t, c.ValidateExpiry(now), jwtx.ErrInvalidClaim)
	})
}

func TestClaimsValidate(t *testing.T) {
	require.NoError(t, jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "acct"},
		TokenType:        jwtx.TokenTypeAccess,
	}.Validate())

	require.ErrorIs(t, jwtx.Claims{TokenType: jwtx.TokenTypeAccess}.Validate(), jwtx.ErrInvalidClaim)
	require.ErrorIs(t, jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "acct"},
		TokenType:        "ADMIN",
	}.Validate(), jwtx.ErrInvalidClaim)
}

func TestHasAuthority(t *testing.T) {
	c := &jwtx.Claims{Authorities: []string{"ROLE_USER", "ROLE_ADMIN"}}
	require.True(t, c.HasAuthority("ROLE_ADMIN"))
	require.False(t, c.HasAuthority("ROLE_ROOT"))
}
