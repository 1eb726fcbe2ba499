package memory

import (
	"context"
	"testing"

	"github.com/ayo6706/shop-treasury/internal/domain"
	"github.com/ayo6706/shop-treasury/internal/idempotency"
	"github.com/ayo6706/shop-treasury/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOrCreatePersonalIsIdempotent(t *testing.T) {
	l := New()
	ctx := context.Background()
	owner := uuid.New()

	first, err := l.ResolveOrCreatePersonal(ctx, owner)
	require.NoError(t, err)
	second, err := l.ResolveOrCreatePersonal(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.AccountTypePersonal, first.Type)

	ok, err := l.HasAccountByOwner(ctx, owner)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTransferAppliesKeyOnce(t *testing.T) {
	l := New()
	ctx := context.Background()
	a, _ := l.ResolveOrCreatePersonal(ctx, uuid.New())
	b, _ := l.ResolveOrCreatePersonal(ctx, uuid.New())
	require.NoError(t, l.Credit(a.ID, decimal.NewFromInt(10)))

	req := ledger.TransferRequest{
		From:           a.ID,
		To:             b.ID,
		Amount:         decimal.NewFromInt(4),
		IdempotencyKey: idempotency.NewBuilder().Build("test", uuid.New(), decimal.NewFromInt(4)),
	}
	first, err := l.Transfer(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := l.Transfer(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.TransferID, second.TransferID)

	balA, _ := l.GetBalanceByAccountID(ctx, a.ID)
	balB, _ := l.GetBalanceByAccountID(ctx, b.ID)
	assert.True(t, balA.Equal(decimal.NewFromInt(6)))
	assert.True(t, balB.Equal(decimal.NewFromInt(4)))
	assert.Len(t, l.History(), 1)
}

func TestTransferRejectsOverdraftUnlessAllowed(t *testing.T) {
	l := New()
	ctx := context.Background()
	keys := idempotency.NewBuilder()
	sys, err := l.CreateAccount(ctx, domain.AccountTypeSystem, domain.SystemIdentifier, "sys")
	require.NoError(t, err)
	user, _ := l.ResolveOrCreatePersonal(ctx, uuid.New())

	_, err = l.Transfer(ctx, ledger.TransferRequest{From: user.ID, To: sys.ID, Amount: decimal.NewFromInt(1), IdempotencyKey: keys.Build("t", user.Owner, decimal.NewFromInt(1))})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	sys.AllowOverdraft = true
	require.NoError(t, l.UpdateAccount(ctx, *sys))
	_, err = l.Transfer(ctx, ledger.TransferRequest{From: sys.ID, To: user.ID, Amount: decimal.NewFromInt(3), IdempotencyKey: keys.Build("t", user.Owner, decimal.NewFromInt(3))})
	require.NoError(t, err)

	net, err := l.LedgerNet(ctx)
	require.NoError(t, err)
	assert.True(t, net.IsZero())
}

func TestTransferValidation(t *testing.T) {
	l := New()
	ctx := context.Background()
	a, _ := l.ResolveOrCreatePersonal(ctx, uuid.New())

	_, err := l.Transfer(ctx, ledger.TransferRequest{From: a.ID, To: a.ID, Amount: decimal.NewFromInt(1), IdempotencyKey: idempotency.NewBuilder().Build("t", uuid.New(), decimal.Zero)})
	require.ErrorIs(t, err, ledger.ErrSameAccount)

	_, err = l.Transfer(ctx, ledger.TransferRequest{From: a.ID, To: 99, Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, ledger.ErrMissingKey)
}

func TestMembership(t *testing.T) {
	l := New()
	ctx := context.Background()
	owner, member := uuid.New(), uuid.New()
	biz, err := l.CreateAccount(ctx, domain.AccountTypeBusiness, owner, "Acme")
	require.NoError(t, err)
	require.NoError(t, l.AddMember(biz.ID, member))

	ok, _ := l.IsOwnerForAccountID(ctx, owner, biz.ID)
	assert.True(t, ok)
	ok, _ = l.IsAccountMember(ctx, member, biz.ID)
	assert.True(t, ok)
	ok, _ = l.IsAccountMember(ctx, owner, biz.ID)
	assert.False(t, ok)
}
