package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/autopay/internal/auth/domain"
	"github.com/aussiebroadwan/autopay/internal/auth/store"
	"github.com/aussiebroadwan/autopay/pkg/cryptox"
	"github.com/aussiebroadwan/autopay/pkg/jwtx"
	"github.com/aussiebroadwan/autopay/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTP parameters. Codes from the previous and next step are accepted.
const (
	totpPeriod = 30
	totpSkew   = 1
	totpDigits = otp.DigitsSix
)

var totpOpts = totp.ValidateOpts{
	Period:    totpPeriod,
	Skew:      totpSkew,
	Digits:    totpDigits,
	Algorithm: otp.AlgorithmSHA1,
}

// MFAService handles TOTP enrollment and verification. A pending enrollment
// is never stored: the candidate secret travels in a signed MFA_ENROLLMENT
// token until a valid code confirms it.
type MFAService struct {
	Store  store.Store
	Tokens *jwtx.Issuer
	Audit  AuditSink
	Config Config
}

// BeginEnrollment generates a candidate secret for account.
func (s *MFAService) BeginEnrollment(ctx context.Context, account domain.Account) (domain.MFAEnrollment, error) {
	if account.MFAEnabled {
		return domain.MFAEnrollment{}, ErrMFAAlreadyEnabled
	}
	if !account.HasPassword() {
		return domain.MFAEnrollment{}, ErrMFARequiresPassword
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Config.mfaIssuer(),
		AccountName: account.Email,
		Period:      totpPeriod,
		Digits:      totpDigits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("%w: generate TOTP key: %w", ErrInternal, err)
	}

	token, exp, err := s.Tokens.IssueChallengeToken(
		account.ID, jwtx.TokenTypeMFAEnrollment, jwtx.DefaultEnrollmentTTL,
		jwtx.ChallengeData{MFASecret: key.Secret()},
	)
	if err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("%w: sign enrollment token: %w", ErrInternal, err)
	}

	slogx.FromContext(ctx).Info("TOTP enrollment started", slog.String("account_id", account.ID))
	return domain.MFAEnrollment{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		EnrollmentToken: token,
		ExpiresAt:       exp,
	}, nil
}

// ConfirmEnrollment enables MFA once code verifies against the candidate
// secret carried by enrollmentToken.
func (s *MFAService) ConfirmEnrollment(
	ctx context.Context,
	account domain.Account,
	enrollmentToken, code string,
) (domain.Account, error) {
	claims, err := s.Tokens.VerifyType(enrollmentToken, jwtx.TokenTypeMFAEnrollment)
	if err != nil {
		return domain.Account{}, tokenError(err)
	}
	if claims.Subject != account.ID || claims.MFASecret == "" {
		return domain.Account{}, ErrTokenMalformed
	}
	if account.MFAEnabled {
		return domain.Account{}, ErrMFAAlreadyEnabled
	}
	if !account.HasPassword() {
		return domain.Account{}, ErrMFARequiresPassword
	}
	if !s.VerifyCode(claims.MFASecret, code) {
		return domain.Account{}, ErrInvalidMFACode
	}

	sctx, cancel := s.Config.storage(ctx)
	defer cancel()

	now := s.Config.now()
	saved, err := updateAccount(sctx, s.Store.Accounts(), account.ID, func(a *domain.Account) error {
		if a.MFAEnabled {
			return ErrMFAAlreadyEnabled
		}
		if !a.HasPassword() {
			return ErrMFARequiresPassword
		}
		a.MFAEnabled = true
		a.MFASecret = claims.MFASecret
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}

	sinkOrNop(s.Audit).Record(ctx, event(ctx, domain.AuditMFAEnabled, account.ID, domain.ClientMeta{}, "totp"))
	return saved, nil
}

// VerifyCode checks a six digit code against secret at the current time.
func (s *MFAService) VerifyCode(secret, code string) bool {
	return verifyTOTP(secret, code, s.Config.now())
}

func verifyTOTP(secret, code string, at time.Time) bool {
	code = strings.ReplaceAll(strings.TrimSpace(code), " ", "")
	if secret == "" || len(code) != totpDigits.Length() {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at, totpOpts)
	return err == nil && ok
}

// Disable turns MFA off after the password has been proven again.
func (s *MFAService) Disable(ctx context.Context, account domain.Account, password string) error {
	if !account.MFAEnabled {
		return ErrMFANotEnabled
	}
	if !account.HasPassword() {
		cryptox.VerifyDummy(password)
		return ErrInvalidCredentials
	}
	if err := cryptox.VerifyPassword(password, account.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}

	sctx, cancel := s.Config.storage(ctx)
	defer cancel()

	now := s.Config.now()
	if _, err := updateAccount(sctx, s.Store.Accounts(), account.ID, func(a *domain.Account) error {
		if !a.MFAEnabled {
			return errNoChange
		}
		a.MFAEnabled = false
		a.MFASecret = ""
		a.UpdatedAt = now
		return nil
	}); err != nil {
		return err
	}

	sinkOrNop(s.Audit).Record(ctx, event(ctx, domain.AuditMFADisabled, account.ID, domain.ClientMeta{}, "totp"))
	return nil
}
