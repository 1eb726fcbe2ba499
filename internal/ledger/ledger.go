// Package ledger defines the contract this service needs from the external
// ledger of record. Implementations live in ledger/memory and repository.
package ledger

import (
	"context"
	"errors"

	"github.com/ayo6706/shop-treasury/internal/idempotency"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrSameAccount       = errors.New("cannot transfer to the same account")
	ErrMissingKey        = errors.New("idempotency key is required")
)

// AccountID is the ledger's 32-bit account identifier.
type AccountID = uint32

// Account is the part of a ledger account this service reads.
type Account struct {
	ID             AccountID
	Type           string
	Owner          uuid.UUID
	DisplayName    string
	AllowOverdraft bool
}

// TransferRequest moves Amount from one account to another. One request is
// one ledger-side effect: the ledger applies a given IdempotencyKey once.
type TransferRequest struct {
	From           AccountID
	To             AccountID
	Amount         decimal.Decimal
	Memo           string
	Initiator      uuid.UUID
	Source         string
	IdempotencyKey idempotency.Key
}

// Validate checks the request fields every ledger enforces.
func (r TransferRequest) Validate() error {
	if r.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if r.From == r.To {
		return ErrSameAccount
	}
	if r.IdempotencyKey.IsZero() {
		return ErrMissingKey
	}
	return nil
}

// TransferReceipt describes an applied transfer. Duplicate is set when the
// key had already been applied and nothing new happened.
type TransferReceipt struct {
	TransferID uuid.UUID
	Duplicate  bool
}

// Client is the remote ledger. Every call blocks until the ledger answers;
// timeouts and retries are the implementation's concern.
type Client interface {
	ResolveOrCreatePersonal(ctx context.Context, owner uuid.UUID) (*Account, error)
	GetAccountByID(ctx context.Context, id AccountID) (*Account, error)
	GetAccountsByTypeAndOwner(ctx context.Context, accountType string, owner uuid.UUID) ([]Account, error)
	CreateAccount(ctx context.Context, accountType string, owner uuid.UUID, displayName string) (*Account, error)
	UpdateAccount(ctx context.Context, account Account) error

	GetBalanceByAccountID(ctx context.Context, id AccountID) (decimal.Decimal, error)
	GetBalanceByOwner(ctx context.Context, owner uuid.UUID) (decimal.Decimal, error)
	HasFunds(ctx context.Context, id AccountID, amount decimal.Decimal) (bool, error)
	HasAccountByAccountID(ctx context.Context, id AccountID) (bool, error)
	HasAccountByOwner(ctx context.Context, owner uuid.UUID) (bool, error)
	FormatAmount(ctx context.Context, amount decimal.Decimal) (string, error)

	Transfer(ctx context.Context, req TransferRequest) (*TransferReceipt, error)

	IsAccountMember(ctx context.Context, member uuid.UUID, id AccountID) (bool, error)
	IsOwnerForAccountID(ctx context.Context, owner uuid.UUID, id AccountID) (bool, error)
}

// Auditor exposes the ledger-wide integrity figure used by reconciliation.
// In a closed ledger every transfer conserves value, so the net of all
// balances stays zero.
type Auditor interface {
	LedgerNet(ctx context.Context) (decimal.Decimal, error)
}

// Pinger is implemented by ledgers that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
