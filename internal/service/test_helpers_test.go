package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ayo6706/shop-treasury/internal/ledger"
	"github.com/ayo6706/shop-treasury/internal/ledger/memory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var errLedgerDown = errors.New("ledger down")

// recordingLedger wraps the memory ledger, records every transfer attempt
// and can fail selected calls.
type recordingLedger struct {
	*memory.Ledger

	mu           sync.Mutex
	calls        []ledger.TransferRequest
	failTransfer func(call int, req ledger.TransferRequest) error
	failReads    error
	balanceCalls int
}

func newRecordingLedger() *recordingLedger {
	return &recordingLedger{Ledger: memory.New()}
}

func (r *recordingLedger) Transfer(ctx context.Context, req ledger.TransferRequest) (*ledger.TransferReceipt, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req)
	n := len(r.calls)
	fail := r.failTransfer
	r.mu.Unlock()

	if fail != nil {
		if err := fail(n, req); err != nil {
			return nil, err
		}
	}
	return r.Ledger.Transfer(ctx, req)
}

func (r *recordingLedger) GetBalanceByAccountID(ctx context.Context, id ledger.AccountID) (decimal.Decimal, error) {
	r.mu.Lock()
	r.balanceCalls++
	r.mu.Unlock()
	if r.failReads != nil {
		return decimal.Zero, r.failReads
	}
	return r.Ledger.GetBalanceByAccountID(ctx, id)
}

func (r *recordingLedger) GetBalanceByOwner(ctx context.Context, owner uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	r.balanceCalls++
	r.mu.Unlock()
	if r.failReads != nil {
		return decimal.Zero, r.failReads
	}
	return r.Ledger.GetBalanceByOwner(ctx, owner)
}

func (r *recordingLedger) HasFunds(ctx context.Context, id ledger.AccountID, amount decimal.Decimal) (bool, error) {
	if r.failReads != nil {
		return false, r.failReads
	}
	return r.Ledger.HasFunds(ctx, id, amount)
}

func (r *recordingLedger) transfers() []ledger.TransferRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.TransferRequest, len(r.calls))
	copy(out, r.calls)
	return out
}

// failFrom fails every transfer from the n-th call on.
func failFrom(n int) func(int, ledger.TransferRequest) error {
	return func(call int, _ ledger.TransferRequest) error {
		if call >= n {
			return errLedgerDown
		}
		return nil
	}
}

type testEnv struct {
	ledger    *recordingLedger
	system    SystemAccount
	transfers *TransferOrchestrator
	facade    *EconomyFacade
}

func setupEnv(t *testing.T, opts ...OrchestratorOption) *testEnv {
	t.Helper()

	l := newRecordingLedger()
	system, err := Bootstrap(context.Background(), l, "")
	require.NoError(t, err)

	transfers := NewTransferOrchestrator(l, system, opts...)
	return &testEnv{
		ledger:    l,
		system:    system,
		transfers: transfers,
		facade:    NewEconomyFacade(l, transfers),
	}
}

// personal creates a funded personal account and returns its owner.
func (e *testEnv) personal(t *testing.T, balance int64) (uuid.UUID, ledger.AccountID) {
	t.Helper()
	owner := uuid.New()
	acc, err := e.ledger.ResolveOrCreatePersonal(context.Background(), owner)
	require.NoError(t, err)
	if balance != 0 {
		require.NoError(t, e.ledger.Credit(acc.ID, decimal.NewFromInt(balance)))
	}
	return owner, acc.ID
}

func (e *testEnv) balance(t *testing.T, id ledger.AccountID) decimal.Decimal {
	t.Helper()
	bal, err := e.ledger.Ledger.GetBalanceByAccountID(context.Background(), id)
	require.NoError(t, err)
	return bal
}
