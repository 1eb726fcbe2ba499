package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/shop-treasury/internal/domain"
	"github.com/ayo6706/shop-treasury/internal/ledger"
	"go.uber.org/zap"
)

// SystemAccount is the intermediary account resolved once at startup.
type SystemAccount struct {
	ID          ledger.AccountID
	DisplayName string
}

// Bootstrap looks up the SYSTEM account owned by the reserved system
// identifier, or creates it with overdraft enabled. Calling it again against
// the same ledger returns the same account.
func Bootstrap(ctx context.Context, client ledger.Client, displayName string) (SystemAccount, error) {
	if client == nil {
		return SystemAccount{}, ErrLedgerAbsent
	}
	if displayName == "" {
		displayName = domain.DefaultSystemAccountName
	}

	existing, err := client.GetAccountsByTypeAndOwner(ctx, domain.AccountTypeSystem, domain.SystemIdentifier)
	if err != nil {
		return SystemAccount{}, fmt.Errorf("%w: lookup system account: %w", ErrLedgerUnavailable, err)
	}
	if len(existing) > 0 {
		acc := existing[0]
		zap.L().Info("system account found", zap.Uint32("account_id", acc.ID))
		return SystemAccount{ID: acc.ID, DisplayName: acc.DisplayName}, nil
	}

	acc, err := client.CreateAccount(ctx, domain.AccountTypeSystem, domain.SystemIdentifier, displayName)
	if err != nil {
		return SystemAccount{}, fmt.Errorf("%w: create system account: %w", ErrLedgerUnavailable, err)
	}
	if acc == nil {
		return SystemAccount{}, fmt.Errorf("%w: create system account returned no account", ErrLedgerUnavailable)
	}
	acc.AllowOverdraft = true
	if err := client.UpdateAccount(ctx, *acc); err != nil {
		return SystemAccount{}, fmt.Errorf("%w: enable system overdraft: %w", ErrLedgerUnavailable, err)
	}

	zap.L().Info("system account created", zap.Uint32("account_id", acc.ID))
	return SystemAccount{ID: acc.ID, DisplayName: acc.DisplayName}, nil
}
