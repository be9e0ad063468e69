package service

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/autopay/internal/auth/domain"
	"github.com/aussiebroadwan/autopay/internal/auth/store"
)

// maxSaveAttempts bounds the reload-and-retry loop of updateAccount.
const maxSaveAttempts = 3

// errNoChange lets a mutate function end updateAccount without a write.
var errNoChange = errors.New("no change")

// updateAccount loads the account, applies mutate and saves it with the
// optimistic version check, retrying on a concurrent write. mutate sees a
// fresh copy on every attempt and may return errNoChange to skip the save.
func updateAccount(
	ctx context.Context,
	accounts store.Accounts,
	id string,
	mutate func(a *domain.Account) error,
) (domain.Account, error) {
	var lastErr error
	for range maxSaveAttempts {
		acct, err := accounts.GetAccountByID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.Account{}, ErrAccountNotFound
			}
			return domain.Account{}, unavailable(err)
		}

		if err := mutate(&acct); err != nil {
			if errors.Is(err, errNoChange) {
				return acct, nil
			}
			return domain.Account{}, err
		}

		saved, err := accounts.SaveAccount(ctx, acct)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return domain.Account{}, unavailable(err)
		}
		lastErr = err
	}
	return domain.Account{}, unavailable(lastErr)
}
