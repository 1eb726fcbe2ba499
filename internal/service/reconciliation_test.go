package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciliationRun(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	reconcileSvc := NewReconciliationService(env.ledger, env.ledger, env.system)

	sender, _ := env.personal(t, 0)
	receiver, _ := env.personal(t, 0)
	require.NoError(t, env.transfers.Deposit(ctx, sender, decimal.NewFromInt(100), "seed"))
	_, err := env.transfers.PeerTransfer(ctx, PeerTransfer{
		Sender:         sender,
		Receiver:       receiver,
		AmountSent:     decimal.NewFromInt(10),
		AmountReceived: decimal.NewFromInt(8),
	})
	require.NoError(t, err)

	require.NoError(t, reconcileSvc.Run(ctx))
	report, err := reconcileSvc.Check(ctx)
	require.NoError(t, err)
	assert.True(t, report.Balanced())
	assert.True(t, report.SystemBalance.Equal(decimal.NewFromInt(-98)))

	_, id := env.personal(t, 0)
	require.NoError(t, env.ledger.Credit(id, decimal.NewFromInt(5)))

	require.NoError(t, reconcileSvc.Run(ctx))
	report, err = reconcileSvc.Check(ctx)
	require.NoError(t, err)
	assert.False(t, report.Balanced())
	assert.True(t, report.Net.Equal(decimal.NewFromInt(5)))
}

func TestReconciliationSurfacesLedgerErrors(t *testing.T) {
	env := setupEnv(t)
	env.ledger.failReads = errLedgerDown

	err := NewReconciliationService(env.ledger, env.ledger, env.system).Run(context.Background())
	require.ErrorIs(t, err, errLedgerDown)
}
