package service

import (
	"context"
	"testing"

	"github.com/ayo6706/shop-treasury/internal/domain"
	"github.com/ayo6706/shop-treasury/internal/ledger"
	"github.com/ayo6706/shop-treasury/internal/ledger/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := memory.New()

	first, err := Bootstrap(ctx, l, "")
	require.NoError(t, err)
	second, err := Bootstrap(ctx, l, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.DefaultSystemAccountName, first.DisplayName)

	accounts, err := l.GetAccountsByTypeAndOwner(ctx, domain.AccountTypeSystem, domain.SystemIdentifier)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.True(t, accounts[0].AllowOverdraft)
}

func TestBootstrapWithoutLedger(t *testing.T) {
	_, err := Bootstrap(context.Background(), nil, "")
	require.ErrorIs(t, err, ErrLedgerAbsent)
}

type unreachableLedger struct {
	ledger.Client
}

func (unreachableLedger) GetAccountsByTypeAndOwner(context.Context, string, uuid.UUID) ([]ledger.Account, error) {
	return nil, errLedgerDown
}

func TestBootstrapFailsClosed(t *testing.T) {
	_, err := Bootstrap(context.Background(), unreachableLedger{}, "")
	require.ErrorIs(t, err, ErrLedgerUnavailable)
	require.ErrorIs(t, err, errLedgerDown)
}

// silentLedger answers every call without error and without data.
type silentLedger struct {
	ledger.Client
}

func (silentLedger) GetAccountsByTypeAndOwner(context.Context, string, uuid.UUID) ([]ledger.Account, error) {
	return nil, nil
}

func (silentLedger) CreateAccount(context.Context, string, uuid.UUID, string) (*ledger.Account, error) {
	return nil, nil
}

func (silentLedger) ResolveOrCreatePersonal(context.Context, uuid.UUID) (*ledger.Account, error) {
	return nil, nil
}

func TestBootstrapFailsClosedOnEmptyCreate(t *testing.T) {
	require.NotPanics(t, func() {
		_, err := Bootstrap(context.Background(), silentLedger{}, "")
		require.ErrorIs(t, err, ErrLedgerUnavailable)
	})
}

func TestResolveFailsOnEmptyPersonalAccount(t *testing.T) {
	r := NewResolver(silentLedger{}, SystemAccount{ID: 1})
	_, err := r.Resolve(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrLedgerUnavailable)
}
