/*
Package authsdk is the Go client for the AutoPay authentication service and
the home of its wire error codes.

Use an SDKClient for the public endpoints and to start a Session:

	client := authsdk.NewSDKClient("https://auth.example.com")

	session, err := client.AuthenticateWithPassword(ctx, email, password)
	var mfa *authsdk.MFARequiredError
	if errors.As(err, &mfa) {
		session, err = client.CompleteMFA(ctx, mfa, totpCode)
	}

A Session refreshes its access token before expiry. Refresh tokens rotate on
every use and a presented token can never be used twice:

	n, err := session.ActiveSessions(ctx)
	err = session.Logout(ctx)

Failures are *APIError values and can be matched with errors.Is against the
exported sentinels:

	if errors.Is(err, authsdk.ErrAccountLocked) { ... }

The server side uses the same values to write responses (APIError.WriteError),
so client and server never disagree on codes.
*/
package authsdk
