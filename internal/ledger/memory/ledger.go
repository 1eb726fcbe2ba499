// Package memory is an in-process ledger used for local development and
// tests. It honours the same contract as the postgres repository: per-key
// deduplication, overdraft policy and one serialised mutation at a time.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ayo6706/shop-treasury/internal/domain"
	"github.com/ayo6706/shop-treasury/internal/idempotency"
	"github.com/ayo6706/shop-treasury/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type account struct {
	ledger.Account
	balance decimal.Decimal
	members map[uuid.UUID]struct{}
}

// Transfer is an applied transfer as recorded by the ledger.
type Transfer struct {
	ID      uuid.UUID
	Request ledger.TransferRequest
	At      time.Time
}

// Ledger keeps accounts and applied transfers in memory.
type Ledger struct {
	mu        sync.RWMutex
	nextID    ledger.AccountID
	accounts  map[ledger.AccountID]*account
	personal  map[uuid.UUID]ledger.AccountID
	processed map[idempotency.Key]uuid.UUID
	history   []Transfer
	audit     []ledger.AuditEntry
	format    domain.CurrencyFormat
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithCurrencyFormat sets how FormatAmount renders amounts.
func WithCurrencyFormat(f domain.CurrencyFormat) Option {
	return func(l *Ledger) {
		l.format = f
	}
}

// New returns an empty ledger. Account ids start at 1.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		nextID:    1,
		accounts:  make(map[ledger.AccountID]*account),
		personal:  make(map[uuid.UUID]ledger.AccountID),
		processed: make(map[idempotency.Key]uuid.UUID),
		format:    domain.DefaultCurrencyFormat,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) ResolveOrCreatePersonal(ctx context.Context, owner uuid.UUID) (*ledger.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id, ok := l.personal[owner]; ok {
		acc := l.accounts[id].Account
		return &acc, nil
	}
	acc := l.createLocked(domain.AccountTypePersonal, owner, "")
	l.personal[owner] = acc.ID
	out := acc.Account
	return &out, nil
}

func (l *Ledger) GetAccountByID(ctx context.Context, id ledger.AccountID) (*ledger.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[id]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	out := acc.Account
	return &out, nil
}

func (l *Ledger) GetAccountsByTypeAndOwner(ctx context.Context, accountType string, owner uuid.UUID) ([]ledger.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []ledger.Account
	for _, acc := range l.accounts {
		if acc.Type == accountType && acc.Owner == owner {
			out = append(out, acc.Account)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l *Ledger) CreateAccount(ctx context.Context, accountType string, owner uuid.UUID, displayName string) (*ledger.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.createLocked(accountType, owner, displayName)
	if accountType == domain.AccountTypePersonal {
		if _, ok := l.personal[owner]; !ok {
			l.personal[owner] = acc.ID
		}
	}
	out := acc.Account
	return &out, nil
}

func (l *Ledger) UpdateAccount(ctx context.Context, in ledger.Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[in.ID]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	acc.DisplayName = in.DisplayName
	acc.AllowOverdraft = in.AllowOverdraft
	return nil
}

// AddMember grants member access to a business account.
func (l *Ledger) AddMember(id ledger.AccountID, member uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[id]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	acc.members[member] = struct{}{}
	return nil
}

// Credit sets up a balance out of band, bypassing the transfer path.
func (l *Ledger) Credit(id ledger.AccountID, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[id]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	acc.balance = acc.balance.Add(amount)
	return nil
}

func (l *Ledger) GetBalanceByAccountID(ctx context.Context, id ledger.AccountID) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[id]
	if !ok {
		return decimal.Zero, ledger.ErrAccountNotFound
	}
	return acc.balance, nil
}

func (l *Ledger) GetBalanceByOwner(ctx context.Context, owner uuid.UUID) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.personal[owner]
	if !ok {
		return decimal.Zero, ledger.ErrAccountNotFound
	}
	return l.accounts[id].balance, nil
}

func (l *Ledger) HasFunds(ctx context.Context, id ledger.AccountID, amount decimal.Decimal) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[id]
	if !ok {
		return false, ledger.ErrAccountNotFound
	}
	return acc.AllowOverdraft || acc.balance.GreaterThanOrEqual(amount), nil
}

func (l *Ledger) HasAccountByAccountID(ctx context.Context, id ledger.AccountID) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.accounts[id]
	return ok, nil
}

func (l *Ledger) HasAccountByOwner(ctx context.Context, owner uuid.UUID) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.personal[owner]
	return ok, nil
}

func (l *Ledger) FormatAmount(ctx context.Context, amount decimal.Decimal) (string, error) {
	return l.format.Format(amount), nil
}

func (l *Ledger) Transfer(ctx context.Context, req ledger.TransferRequest) (*ledger.TransferReceipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if id, ok := l.processed[req.IdempotencyKey]; ok {
		return &ledger.TransferReceipt{TransferID: id, Duplicate: true}, nil
	}

	from, ok := l.accounts[req.From]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	to, ok := l.accounts[req.To]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	if !from.AllowOverdraft && from.balance.LessThan(req.Amount) {
		return nil, ledger.ErrInsufficientFunds
	}

	from.balance = from.balance.Sub(req.Amount)
	to.balance = to.balance.Add(req.Amount)

	id := uuid.New()
	l.processed[req.IdempotencyKey] = id
	l.history = append(l.history, Transfer{ID: id, Request: req, At: time.Now().UTC()})
	return &ledger.TransferReceipt{TransferID: id}, nil
}

func (l *Ledger) IsAccountMember(ctx context.Context, member uuid.UUID, id ledger.AccountID) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[id]
	if !ok {
		return false, nil
	}
	_, isMember := acc.members[member]
	return isMember, nil
}

func (l *Ledger) IsOwnerForAccountID(ctx context.Context, owner uuid.UUID, id ledger.AccountID) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[id]
	if !ok {
		return false, nil
	}
	return acc.Owner == owner, nil
}

// LedgerNet sums every balance. Amounts seeded with Credit have no
// counter-entry and show up in the net.
func (l *Ledger) LedgerNet(ctx context.Context) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	net := decimal.Zero
	for _, acc := range l.accounts {
		net = net.Add(acc.balance)
	}
	return net, nil
}

func (l *Ledger) Ping(ctx context.Context) error {
	return ctx.Err()
}

// History returns the applied transfers in order.
func (l *Ledger) History() []Transfer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Transfer, len(l.history))
	copy(out, l.history)
	return out
}

func (l *Ledger) InsertAuditLog(ctx context.Context, entry ledger.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	l.audit = append(l.audit, entry)
	return nil
}

// AuditTrail returns the audit entries for entityID in insertion order.
func (l *Ledger) AuditTrail(entityID uuid.UUID) []ledger.AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []ledger.AuditEntry
	for _, e := range l.audit {
		if e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out
}

func (l *Ledger) createLocked(accountType string, owner uuid.UUID, displayName string) *account {
	acc := &account{
		Account: ledger.Account{
			ID:          l.nextID,
			Type:        accountType,
			Owner:       owner,
			DisplayName: displayName,
		},
		balance: decimal.Zero,
		members: make(map[uuid.UUID]struct{}),
	}
	l.accounts[acc.ID] = acc
	l.nextID++
	return acc
}

var (
	_ ledger.Client   = (*Ledger)(nil)
	_ ledger.Auditor  = (*Ledger)(nil)
	_ ledger.Pinger   = (*Ledger)(nil)
	_ ledger.AuditLog = (*Ledger)(nil)
)
