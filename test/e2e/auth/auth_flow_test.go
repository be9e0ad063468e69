package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/autopay/pkg/authsdk"
)

// TestRegisterRequiresVerification verifies an unverified account cannot log
// in and a duplicate email is refused.
func TestRegisterRequiresVerification(t *testing.T) {
	env := setupAuthService(t)
	ctx := t.Context()
	email := uniqueEmail("pending")

	_, err := env.Client.Register(ctx, authsdk.RegisterRequest{
		Email:     email,
		Password:  testPassword,
		FirstName: "Pending",
		LastName:  "User",
	})
	require.NoError(t, err)

	_, err = env.Client.Login(ctx, authsdk.LoginRequest{Email: email, Password: testPassword})
	requireAPIError(t, err, authsdk.ErrAccountNotVerified)

	_, err = env.Client.Register(ctx, authsdk.RegisterRequest{
		Email:     email,
		Password:  testPassword,
		FirstName: "Again",
		LastName:  "User",
	})
	requireAPIError(t, err, authsdk.ErrAccountExists)

	env.markVerified(t, email)
	env.login(t, email)
}

// TestRegisterRejectsWeakPassword verifies the password policy is enforced
// before anything is stored.
func TestRegisterRejectsWeakPassword(t *testing.T) {
	env := setupAuthService(t)

	_, err := env.Client.Register(t.Context(), authsdk.RegisterRequest{
		Email:     uniqueEmail("weak"),
		Password:  "short",
		FirstName: "Weak",
		LastName:  "User",
	})
	requireAPIError(t, err, authsdk.ErrWeakPassword)
}

// TestLoginAndRefreshRotation verifies a refresh token works exactly once.
func TestLoginAndRefreshRotation(t *testing.T) {
	env := setupAuthService(t)
	ctx := t.Context()
	email := uniqueEmail("rotate")
	env.registerVerified(t, email)

	tokens, err := env.Client.Login(ctx, authsdk.LoginRequest{Email: email, Password: testPassword, DeviceInfo: "e2e"})
	require.NoError(t, err)
	require.Equal(t, "Bearer", tokens.TokenType)
	require.Positive(t, tokens.ExpiresIn)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)

	rotated, err := env.Client.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)

	// The consumed token is dead, and replaying it does not kill the new one
	_, err = env.Client.Refresh(ctx, tokens.RefreshToken)
	requireAPIError(t, err, authsdk.ErrInvalidRefreshToken)

	_, err = env.Client.Refresh(ctx, rotated.RefreshToken)
	require.NoError(t, err)
}

// TestLogoutAndLogoutAll verifies single and bulk session revocation.
func TestLogoutAndLogoutAll(t *testing.T) {
	env := setupAuthService(t)
	ctx := t.Context()
	email := uniqueEmail("logout")
	env.registerVerified(t, email)

	first := env.login(t, email)
	second := env.login(t, email)
	third := env.login(t, email)

	active, err := first.ActiveSessions(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), active)

	thirdRefresh := third.RefreshToken()
	require.NoError(t, third.Logout(ctx))
	_, err = env.Client.Refresh(ctx, thirdRefresh)
	requireAPIError(t, err, authsdk.ErrInvalidRefreshToken)

	revoked, err := first.LogoutAll(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), revoked)

	_, err = env.Client.Refresh(ctx, second.RefreshToken())
	requireAPIError(t, err, authsdk.ErrInvalidRefreshToken)

	// Access tokens stay valid until they expire
	active, err = first.ActiveSessions(ctx)
	require.NoError(t, err)
	require.Zero(t, active)
}

// TestChangePasswordRevokesSessions verifies the old password and all
// refresh tokens stop working after a change.
func TestChangePasswordRevokesSessions(t *testing.T) {
	env := setupAuthService(t)
	ctx := t.Context()
	email := uniqueEmail("change")
	env.registerVerified(t, email)

	session := env.login(t, email)
	oldRefresh := session.RefreshToken()

	err := session.ChangePassword(ctx, "not-the-password", "An0ther-Long-Pass!")
	requireAPIError(t, err, authsdk.ErrInvalidCredentials)

	require.NoError(t, session.ChangePassword(ctx, testPassword, "An0ther-Long-Pass!"))

	_, err = env.Client.Refresh(ctx, oldRefresh)
	requireAPIError(t, err, authsdk.ErrInvalidRefreshToken)

	_, err = env.Client.Login(ctx, authsdk.LoginRequest{Email: email, Password: testPassword})
	requireAPIError(t, err, authsdk.ErrInvalidCredentials)

	_, err = env.Client.AuthenticateWithPassword(ctx, email, "An0ther-Long-Pass!")
	require.NoError(t, err)
}
