package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/autopay/internal/auth/domain"
	"github.com/aussiebroadwan/autopay/internal/auth/store"
	"github.com/aussiebroadwan/autopay/pkg/idx"
	"github.com/aussiebroadwan/autopay/pkg/slogx"
)

// IdentityLinker maps an external provider principal onto a local account.
type IdentityLinker struct {
	Store  store.Store
	Audit  AuditSink
	Config Config
}

// ResolveOrCreate returns the account linked to (provider, subject), or
// creates one. An email that already belongs to another sign-in method is
// never linked implicitly: the caller gets an *AccountExistsError and the
// existing account is left untouched.
func (l *IdentityLinker) ResolveOrCreate(ctx context.Context, id domain.ExternalIdentity) (domain.Account, error) {
	log := slogx.FromContext(ctx)
	audit := sinkOrNop(l.Audit)

	if id.Subject == "" || id.Email == "" {
		return domain.Account{}, ErrMissingIdentityAttribute
	}
	id.Email = NormalizeEmail(id.Email)

	sctx, cancel := l.Config.storage(ctx)
	defer cancel()

	acct, err := l.lookup(sctx, id)
	var exists *AccountExistsError
	switch {
	case err == nil:
		return acct, nil
	case errors.As(err, &exists):
		audit.Record(ctx, event(ctx, domain.AuditIdentityConflict, "", domain.ClientMeta{}, string(id.Provider)))
		return domain.Account{}, err
	case !errors.Is(err, store.ErrNotFound):
		return domain.Account{}, unavailable(err)
	}

	accountID, err := idx.NewAccountID()
	if err != nil {
		return domain.Account{}, err
	}
	now := l.Config.now()
	first, last := id.SplitName()
	acct = domain.Account{
		ID:              accountID,
		Email:           id.Email,
		FirstName:       first,
		LastName:        last,
		AvatarURL:       id.AvatarURL,
		Status:          domain.AccountStatusActive,
		EmailVerified:   true,
		EmailVerifiedAt: &now,
		Provider:        id.Provider,
		ProviderSubject: id.Subject,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := l.Store.Accounts().CreateAccount(sctx, acct); err != nil {
		if !errors.Is(err, store.ErrAlreadyExists) {
			return domain.Account{}, unavailable(err)
		}
		// Lost a race with a concurrent first login or registration.
		acct, err = l.lookup(sctx, id)
		if err != nil {
			return domain.Account{}, unavailable(err)
		}
		return acct, nil
	}

	log.Info("account created from external identity",
		slog.String("account_id", acct.ID),
		slog.String("provider", string(id.Provider)),
	)
	audit.Record(ctx, event(ctx, domain.AuditIdentityLinked, acct.ID, domain.ClientMeta{}, string(id.Provider)))
	return acct, nil
}

// lookup resolves by (provider, subject) and then by email. It returns
// store.ErrNotFound when neither matches.
func (l *IdentityLinker) lookup(ctx context.Context, id domain.ExternalIdentity) (domain.Account, error) {
	acct, err := l.Store.Accounts().GetAccountByProvider(ctx, id.Provider, id.Subject)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, err
	}

	existing, err := l.Store.Accounts().GetAccountByEmail(ctx, id.Email)
	if err == nil {
		return domain.Account{}, &AccountExistsError{Provider: existing.Provider}
	}
	return domain.Account{}, err
}
