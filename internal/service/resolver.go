package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/shop-treasury/internal/domain"
	"github.com/ayo6706/shop-treasury/internal/ledger"
	"github.com/google/uuid"
)

// Resolver maps participant identifiers onto ledger account ids.
type Resolver struct {
	ledger ledger.Client
	system ledger.AccountID
}

func NewResolver(client ledger.Client, system SystemAccount) *Resolver {
	return &Resolver{ledger: client, system: system.ID}
}

// Resolve decodes business identifiers locally and asks the ledger for
// personal ones, creating the personal account if it does not exist yet.
func (r *Resolver) Resolve(ctx context.Context, id uuid.UUID) (ledger.AccountID, error) {
	p, err := domain.ParseParticipant(id)
	if err != nil {
		return 0, err
	}
	switch p.Kind {
	case domain.KindBusiness:
		return p.AccountID, nil
	case domain.KindSystem:
		return r.system, nil
	}

	acc, err := r.ledger.ResolveOrCreatePersonal(ctx, p.Owner)
	if err != nil {
		return 0, fmt.Errorf("%w: resolve personal account %s: %w", ErrLedgerUnavailable, id, err)
	}
	if acc == nil {
		return 0, fmt.Errorf("%w: resolve personal account %s returned no account", ErrLedgerUnavailable, id)
	}
	return acc.ID, nil
}
