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
	"github.com/aussiebroadwan/autopay/pkg/idx"
	"github.com/aussiebroadwan/autopay/pkg/jwtx"
	"github.com/aussiebroadwan/autopay/pkg/slogx"
)

// AuthService ties the credential gate, MFA, the token issuer and the
// session ledger into the user facing flows.
type AuthService struct {
	Store       store.Store
	Tokens      *jwtx.Issuer
	Gate        *CredentialGate
	Ledger      *SessionLedger
	MFA         *MFAService
	Identity    *IdentityLinker
	Audit       AuditSink
	Notifier    Notifier
	Authorities AuthorityResolver
	Config      Config
}

// Deps are the collaborators of New. Audit, Notifier and Authorities are
// optional.
type Deps struct {
	Store       store.Store
	Tokens      *jwtx.Issuer
	Audit       AuditSink
	Notifier    Notifier
	Authorities AuthorityResolver
}

// New wires an AuthService and its components around one Config.
func New(deps Deps, cfg Config) *AuthService {
	audit := sinkOrNop(deps.Audit)
	notifier := deps.Notifier
	if notifier == nil {
		notifier = LogNotifier{}
	}
	authorities := deps.Authorities
	if authorities == nil {
		authorities = StaticAuthorities{}
	}

	return &AuthService{
		Store:       deps.Store,
		Tokens:      deps.Tokens,
		Gate:        &CredentialGate{Store: deps.Store, Audit: audit, Config: cfg},
		Ledger:      &SessionLedger{Store: deps.Store, Audit: audit, Config: cfg},
		MFA:         &MFAService{Store: deps.Store, Tokens: deps.Tokens, Audit: audit, Config: cfg},
		Identity:    &IdentityLinker{Store: deps.Store, Audit: audit, Config: cfg},
		Audit:       audit,
		Notifier:    notifier,
		Authorities: authorities,
		Config:      cfg,
	}
}

// RegisterInput is the payload of Register.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Login authenticates with email and password. Accounts with MFA get a
// challenge instead of tokens.
func (s *AuthService) Login(ctx context.Context, email, password string, meta domain.ClientMeta) (domain.LoginResult, error) {
	acct, err := s.Gate.Authenticate(ctx, email, password, meta)
	if err != nil {
		return domain.LoginResult{}, err
	}

	if acct.MFAEnabled {
		token, exp, err := s.Tokens.IssueChallengeToken(
			acct.ID, jwtx.TokenTypeMFARequired, jwtx.DefaultMFAChallengeTTL,
			jwtx.ChallengeData{LoginFingerprint: loginFingerprint(acct)},
		)
		if err != nil {
			return domain.LoginResult{}, fmt.Errorf("%w: sign challenge: %w", ErrInternal, err)
		}
		s.Audit.Record(ctx, event(ctx, domain.AuditMFAChallenged, acct.ID, meta, ""))
		return domain.LoginResult{Challenge: &domain.MFAChallenge{ChallengeToken: token, ExpiresAt: exp}}, nil
	}

	pair, err := s.issueTokens(ctx, acct, meta)
	if err != nil {
		return domain.LoginResult{}, err
	}
	return domain.LoginResult{Tokens: &pair}, nil
}

// CompleteMFA finishes a login with the TOTP code for challengeToken. A
// wrong code counts toward the same lockout as a wrong password. A challenge
// can be retried after wrong codes but is spent by the first success.
func (s *AuthService) CompleteMFA(ctx context.Context, challengeToken, code string, meta domain.ClientMeta) (domain.TokenPair, error) {
	claims, err := s.Tokens.VerifyType(challengeToken, jwtx.TokenTypeMFARequired)
	if err != nil {
		return domain.TokenPair{}, tokenError(err)
	}

	acct, err := s.account(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return domain.TokenPair{}, ErrInvalidCredentials
		}
		return domain.TokenPair{}, err
	}

	if !cryptox.FingerprintsEqual(claims.LoginFingerprint, loginFingerprint(acct)) {
		slogx.FromContext(ctx).Warn("spent MFA challenge presented", slog.String("account_id", acct.ID))
		return domain.TokenPair{}, ErrTokenRevoked
	}

	now := s.Config.now()
	switch {
	case acct.IsLocked(now):
		s.Audit.Record(ctx, event(ctx, domain.AuditLoginBlockedLocked, acct.ID, meta, "mfa"))
		return domain.TokenPair{}, ErrAccountLocked
	case !acct.IsActive():
		return domain.TokenPair{}, ErrAccountDisabled
	case !acct.MFAEnabled:
		return domain.TokenPair{}, ErrMFANotEnabled
	}

	if !s.MFA.VerifyCode(acct.MFASecret, code) {
		if err := s.Gate.RecordFailure(ctx, acct.ID, domain.AuditMFAFailure, meta); err != nil {
			return domain.TokenPair{}, err
		}
		return domain.TokenPair{}, ErrInvalidMFACode
	}

	if err := s.Gate.RecordSuccess(ctx, &acct, domain.AuditLoginSuccess, meta); err != nil {
		return domain.TokenPair{}, err
	}
	return s.issueTokens(ctx, acct, meta)
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// consumed whether or not the caller ever receives the new one.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta domain.ClientMeta) (domain.TokenPair, error) {
	raw, sess, acct, err := s.Ledger.Exchange(ctx, refreshToken, meta)
	if err != nil {
		return domain.TokenPair{}, err
	}

	access, exp, err := s.Tokens.IssueAccessToken(acct.ID, s.Authorities.Authorities(ctx, acct))
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("%w: sign access token: %w", ErrInternal, err)
	}
	return domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  exp,
		RefreshToken:     raw,
		RefreshExpiresAt: sess.ExpiresAt,
		AccountID:        acct.ID,
	}, nil
}

// Logout revokes one refresh token. It is idempotent.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.Ledger.Revoke(ctx, refreshToken, domain.RevokeReasonLogout)
}

// LogoutAll revokes every session of the account.
func (s *AuthService) LogoutAll(ctx context.Context, accountID string, meta domain.ClientMeta) (int64, error) {
	n, err := s.Ledger.RevokeAll(ctx, accountID, domain.RevokeReasonLogoutAll)
	if err != nil {
		return 0, err
	}
	s.Audit.Record(ctx, event(ctx, domain.AuditLogoutAll, accountID, meta, fmt.Sprintf("revoked=%d", n)))
	return n, nil
}

// ActiveSessions counts the live sessions of the account.
func (s *AuthService) ActiveSessions(ctx context.Context, accountID string) (int64, error) {
	return s.Ledger.ActiveSessions(ctx, accountID)
}

// Account loads an account by id.
func (s *AuthService) Account(ctx context.Context, accountID string) (domain.Account, error) {
	return s.account(ctx, accountID)
}

// Register creates an unverified local account and sends the verification
// email.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta domain.ClientMeta) (domain.Account, error) {
	l := slogx.FromContext(ctx)

	email, err := ValidateEmail(in.Email)
	if err != nil {
		return domain.Account{}, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return domain.Account{}, err
	}

	sctx, cancel := s.Config.storage(ctx)
	defer cancel()

	existing, err := s.Store.Accounts().GetAccountByEmail(sctx, email)
	switch {
	case err == nil:
		return domain.Account{}, &AccountExistsError{Provider: existing.Provider}
	case !errors.Is(err, store.ErrNotFound):
		return domain.Account{}, unavailable(err)
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.Account{}, fmt.Errorf("%w: hash password: %w", ErrInternal, err)
	}
	id, err := idx.NewAccountID()
	if err != nil {
		return domain.Account{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	now := s.Config.now()
	acct := domain.Account{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Status:       domain.AccountStatusActive,
		Provider:     domain.ProviderLocal,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Accounts().CreateAccount(sctx, acct); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Account{}, &AccountExistsError{Provider: domain.ProviderLocal}
		}
		return domain.Account{}, unavailable(err)
	}

	l.Info("account registered", slog.String("account_id", acct.ID))
	s.Audit.Record(ctx, event(ctx, domain.AuditAccountRegistered, acct.ID, meta, ""))
	s.sendVerification(ctx, acct)
	return acct, nil
}

// VerifyEmail marks the account of token as verified. Verifying twice is
// not an error.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	claims, err := s.Tokens.VerifyType(token, jwtx.TokenTypeEmailVerification)
	if err != nil {
		return tokenError(err)
	}

	sctx, cancel := s.Config.storage(ctx)
	defer cancel()

	now := s.Config.now()
	changed := false
	if _, err := updateAccount(sctx, s.Store.Accounts(), claims.Subject, func(a *domain.Account) error {
		if a.EmailVerified {
			return errNoChange
		}
		a.EmailVerified = true
		a.EmailVerifiedAt = &now
		a.UpdatedAt = now
		changed = true
		return nil
	}); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrTokenMalformed
		}
		return err
	}

	if changed {
		s.Audit.Record(ctx, event(ctx, domain.AuditEmailVerified, claims.Subject, domain.ClientMeta{}, ""))
	}
	return nil
}

// ResendVerification sends a fresh verification email. Unknown and already
// verified addresses are ignored so the response reveals nothing.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	acct, err := s.accountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		return err
	}
	if !acct.EmailVerified && acct.IsActive() {
		s.sendVerification(ctx, acct)
	}
	return nil
}

// ForgotPassword emails a reset token bound to the current password hash.
// Unknown addresses are ignored.
func (s *AuthService) ForgotPassword(ctx context.Context, email string, meta domain.ClientMeta) error {
	acct, err := s.accountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil
		}
		return err
	}
	if !acct.HasPassword() || !acct.IsActive() {
		return nil
	}

	token, _, err := s.Tokens.IssueChallengeToken(
		acct.ID, jwtx.TokenTypePasswordReset, jwtx.DefaultPasswordResetTTL,
		jwtx.ChallengeData{PasswordFingerprint: cryptox.ShortFingerprint(acct.PasswordHash)},
	)
	if err != nil {
		return fmt.Errorf("%w: sign reset token: %w", ErrInternal, err)
	}

	s.Audit.Record(ctx, event(ctx, domain.AuditPasswordResetIssued, acct.ID, meta, ""))
	if err := s.Notifier.SendPasswordResetEmail(ctx, acct.Email, token); err != nil {
		slogx.FromContext(ctx).Error("failed to send password reset email", slog.Any("error", err))
	}
	return nil
}

// ResetPassword sets a new password with a reset token. The token stops
// working once the password it was bound to has changed, the lockout is
// cleared and every session is revoked.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string, meta domain.ClientMeta) error {
	claims, err := s.Tokens.VerifyType(token, jwtx.TokenTypePasswordReset)
	if err != nil {
		return tokenError(err)
	}
	if claims.PasswordFingerprint == "" {
		return ErrTokenMalformed
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%w: hash password: %w", ErrInternal, err)
	}

	sctx, cancel := s.Config.storage(ctx)
	defer cancel()

	now := s.Config.now()
	if _, err := updateAccount(sctx, s.Store.Accounts(), claims.Subject, func(a *domain.Account) error {
		if !cryptox.FingerprintsEqual(claims.PasswordFingerprint, cryptox.ShortFingerprint(a.PasswordHash)) {
			return ErrTokenRevoked
		}
		a.PasswordHash = hash
		a.UpdatedAt = now
		return nil
	}); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrTokenMalformed
		}
		return err
	}

	if err := s.Store.Accounts().ClearLockout(sctx, claims.Subject, now); err != nil {
		return unavailable(err)
	}
	if _, err := s.Ledger.RevokeAll(ctx, claims.Subject, domain.RevokeReasonPasswordReset); err != nil {
		return err
	}

	s.Audit.Record(ctx, event(ctx, domain.AuditPasswordReset, claims.Subject, meta, ""))
	return nil
}

// ChangePassword replaces the password after re-proving the old one and
// revokes every session.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string, meta domain.ClientMeta) error {
	acct, err := s.account(ctx, accountID)
	if err != nil {
		return err
	}
	if !acct.HasPassword() {
		cryptox.VerifyDummy(oldPassword)
		return ErrInvalidCredentials
	}
	if err := cryptox.VerifyPassword(oldPassword, acct.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	if oldPassword == newPassword {
		return fmt.Errorf("%w: must differ from the current password", ErrWeakPassword)
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%w: hash password: %w", ErrInternal, err)
	}

	sctx, cancel := s.Config.storage(ctx)
	defer cancel()

	now := s.Config.now()
	if _, err := updateAccount(sctx, s.Store.Accounts(), accountID, func(a *domain.Account) error {
		if a.PasswordHash != acct.PasswordHash {
			return ErrInvalidCredentials
		}
		a.PasswordHash = hash
		a.UpdatedAt = now
		return nil
	}); err != nil {
		return err
	}

	if _, err := s.Ledger.RevokeAll(ctx, accountID, domain.RevokeReasonPasswordChange); err != nil {
		return err
	}
	s.Audit.Record(ctx, event(ctx, domain.AuditPasswordChanged, accountID, meta, ""))
	return nil
}

// OAuthLogin signs in with an identity asserted by a trusted gateway.
func (s *AuthService) OAuthLogin(
	ctx context.Context,
	provider string,
	attributes map[string]any,
	meta domain.ClientMeta,
) (domain.TokenPair, error) {
	p, err := domain.ParseProvider(provider)
	if err != nil {
		return domain.TokenPair{}, err
	}
	ident, err := p.MapAttributes(attributes)
	if err != nil {
		return domain.TokenPair{}, err
	}

	acct, err := s.Identity.ResolveOrCreate(ctx, ident)
	if err != nil {
		return domain.TokenPair{}, err
	}

	now := s.Config.now()
	switch {
	case acct.IsLocked(now):
		return domain.TokenPair{}, ErrAccountLocked
	case !acct.IsActive():
		s.Audit.Record(ctx, event(ctx, domain.AuditLoginDisabled, acct.ID, meta, string(acct.Status)))
		return domain.TokenPair{}, ErrAccountDisabled
	}

	if err := s.Gate.RecordSuccess(ctx, &acct, domain.AuditIdentityLogin, meta); err != nil {
		return domain.TokenPair{}, err
	}
	return s.issueTokens(ctx, acct, meta)
}

// ListAuditEvents returns recent audit events, newest first. An empty
// accountID lists every account.
func (s *AuthService) ListAuditEvents(ctx context.Context, accountID string, limit int) ([]domain.AuditEvent, error) {
	sctx, cancel := s.Config.storage(ctx)
	defer cancel()

	events, err := s.Store.AuditEvents().ListAuditEvents(sctx, accountID, limit)
	if err != nil {
		return nil, unavailable(err)
	}
	return events, nil
}

func (s *AuthService) issueTokens(ctx context.Context, acct domain.Account, meta domain.ClientMeta) (domain.TokenPair, error) {
	access, exp, err := s.Tokens.IssueAccessToken(acct.ID, s.Authorities.Authorities(ctx, acct))
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("%w: sign access token: %w", ErrInternal, err)
	}

	refresh, sess, err := s.Ledger.Rotate(ctx, acct, "", meta)
	if err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  exp,
		RefreshToken:     refresh,
		RefreshExpiresAt: sess.ExpiresAt,
		AccountID:        acct.ID,
	}, nil
}

func (s *AuthService) sendVerification(ctx context.Context, acct domain.Account) {
	l := slogx.FromContext(ctx)

	token, _, err := s.Tokens.IssueChallengeToken(
		acct.ID, jwtx.TokenTypeEmailVerification, jwtx.DefaultEmailVerificationTTL, jwtx.ChallengeData{},
	)
	if err != nil {
		l.Error("failed to sign verification token", slog.Any("error", err))
		return
	}
	if err := s.Notifier.SendVerificationEmail(ctx, acct.Email, token); err != nil {
		l.Error("failed to send verification email", slog.Any("error", err))
	}
}

func (s *AuthService) account(ctx context.Context, id string) (domain.Account, error) {
	sctx, cancel := s.Config.storage(ctx)
	defer cancel()

	acct, err := loadAccount(sctx, s.Store.Accounts(), id)
	if err != nil {
		return domain.Account{}, unavailable(err)
	}
	return acct, nil
}

func (s *AuthService) accountByEmail(ctx context.Context, email string) (domain.Account, error) {
	sctx, cancel := s.Config.storage(ctx)
	defer cancel()

	acct, err := s.Store.Accounts().GetAccountByEmail(sctx, NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return domain.Account{}, unavailable(err)
	}
	return acct, nil
}

// loginFingerprint changes with every successful login of the account.
func loginFingerprint(acct domain.Account) string {
	var last string
	if acct.LastLoginAt != nil {
		last = acct.LastLoginAt.UTC().Format(time.RFC3339Nano)
	}
	return cryptox.ShortFingerprint(acct.ID + "|" + last)
}
