package service

import (
	"errors"

	"github.com/ayo6706/shop-treasury/internal/domain"
)

var (
	// ErrLedgerUnavailable wraps ledger calls that failed to complete.
	ErrLedgerUnavailable = errors.New("ledger unavailable")
	// ErrTransferRejected wraps a leg the ledger answered but refused, such
	// as insufficient funds or an unknown account.
	ErrTransferRejected = errors.New("transfer rejected by ledger")
	// ErrLedgerAbsent means no ledger client was supplied at bootstrap.
	ErrLedgerAbsent = errors.New("ledger service not registered")
	// ErrInvalidAmount rejects negative amounts before any ledger call.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrRollbackFailed means a compensating transfer failed and funds are
	// stranded in the system account until reconciled by hand.
	ErrRollbackFailed = errors.New("rollback failed")
	// ErrInvalidIdentifierFormat is re-exported for callers of this package.
	ErrInvalidIdentifierFormat = domain.ErrInvalidIdentifierFormat
)
