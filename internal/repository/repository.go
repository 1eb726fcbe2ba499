package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/shop-treasury/internal/domain"
	"github.com/ayo6706/shop-treasury/internal/idempotency"
	"github.com/ayo6706/shop-treasury/internal/ledger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

// Repository is the postgres-backed ledger of record.
type Repository struct {
	db     *pgxpool.Pool
	store  *Store
	keys   *idempotency.Store
	format domain.CurrencyFormat
}

// NewRepository wires the ledger to a pool. keys may be nil.
func NewRepository(db *pgxpool.Pool, keys *idempotency.Store, format domain.CurrencyFormat) *Repository {
	return &Repository{
		db:     db,
		store:  NewStore(db),
		keys:   keys,
		format: format,
	}
}

const accountColumns = `id, account_type, owner_id, display_name, allow_overdraft`

func scanAccount(row pgx.Row) (*ledger.Account, error) {
	var (
		acc ledger.Account
		id  int64
	)
	if err := row.Scan(&id, &acc.Type, &acc.Owner, &acc.DisplayName, &acc.AllowOverdraft); err != nil {
		return nil, err
	}
	acc.ID = ledger.AccountID(id)
	return &acc, nil
}

func (r *Repository) ResolveOrCreatePersonal(ctx context.Context, owner uuid.UUID) (*ledger.Account, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO ledger_accounts (account_type, owner_id)
		VALUES ($1, $2)
		ON CONFLICT (owner_id) WHERE account_type = 'PERSONAL' DO NOTHING`,
		domain.AccountTypePersonal, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to create personal account: %w", err)
	}

	acc, err := scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM ledger_accounts WHERE owner_id = $1 AND account_type = $2`,
		owner, domain.AccountTypePersonal))
	if err != nil {
		return nil, fmt.Errorf("failed to load personal account: %w", err)
	}
	return acc, nil
}

func (r *Repository) GetAccountByID(ctx context.Context, id ledger.AccountID) (*ledger.Account, error) {
	acc, err := scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM ledger_accounts WHERE id = $1`, int64(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

func (r *Repository) GetAccountsByTypeAndOwner(ctx context.Context, accountType string, owner uuid.UUID) ([]ledger.Account, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+accountColumns+` FROM ledger_accounts WHERE account_type = $1 AND owner_id = $2 ORDER BY id`,
		accountType, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

func (r *Repository) CreateAccount(ctx context.Context, accountType string, owner uuid.UUID, displayName string) (*ledger.Account, error) {
	acc, err := scanAccount(r.db.QueryRow(ctx, `
		INSERT INTO ledger_accounts (account_type, owner_id, display_name)
		VALUES ($1, $2, $3)
		RETURNING `+accountColumns,
		accountType, owner, displayName))
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return acc, nil
}

func (r *Repository) UpdateAccount(ctx context.Context, account ledger.Account) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE ledger_accounts
		SET display_name = $1, allow_overdraft = $2, updated_at = NOW()
		WHERE id = $3`,
		account.DisplayName, account.AllowOverdraft, int64(account.ID))
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

// AddMember grants member access to the account.
func (r *Repository) AddMember(ctx context.Context, id ledger.AccountID, member uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO ledger_account_members (account_id, member_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, int64(id), member)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func (r *Repository) GetBalanceByAccountID(ctx context.Context, id ledger.AccountID) (decimal.Decimal, error) {
	var micros int64
	err := r.db.QueryRow(ctx, `SELECT balance_micros FROM ledger_accounts WHERE id = $1`, int64(id)).Scan(&micros)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ledger.ErrAccountNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return domain.FromMicros(micros), nil
}

func (r *Repository) GetBalanceByOwner(ctx context.Context, owner uuid.UUID) (decimal.Decimal, error) {
	var micros int64
	err := r.db.QueryRow(ctx,
		`SELECT balance_micros FROM ledger_accounts WHERE owner_id = $1 AND account_type = $2`,
		owner, domain.AccountTypePersonal).Scan(&micros)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ledger.ErrAccountNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return domain.FromMicros(micros), nil
}

func (r *Repository) HasFunds(ctx context.Context, id ledger.AccountID, amount decimal.Decimal) (bool, error) {
	want, err := domain.ToMicros(amount)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ledger.ErrInvalidAmount, err)
	}
	var (
		balance   int64
		overdraft bool
	)
	err = r.db.QueryRow(ctx, `SELECT balance_micros, allow_overdraft FROM ledger_accounts WHERE id = $1`, int64(id)).Scan(&balance, &overdraft)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ledger.ErrAccountNotFound
		}
		return false, fmt.Errorf("failed to check funds: %w", err)
	}
	return overdraft || balance >= want, nil
}

func (r *Repository) HasAccountByAccountID(ctx context.Context, id ledger.AccountID) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_accounts WHERE id = $1)`, int64(id)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check account: %w", err)
	}
	return exists, nil
}

func (r *Repository) HasAccountByOwner(ctx context.Context, owner uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ledger_accounts WHERE owner_id = $1 AND account_type = $2)`,
		owner, domain.AccountTypePersonal).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account: %w", err)
	}
	return exists, nil
}

func (r *Repository) FormatAmount(ctx context.Context, amount decimal.Decimal) (string, error) {
	return r.format.Format(amount), nil
}

// Transfer applies one leg. A key that was already applied returns the
// original transfer id with Duplicate set and changes nothing.
func (r *Repository) Transfer(ctx context.Context, req ledger.TransferRequest) (*ledger.TransferReceipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	amount, err := domain.ToMicros(req.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrInvalidAmount, err)
	}

	if rec, err := r.keys.Lookup(ctx, req.IdempotencyKey); err == nil {
		return &ledger.TransferReceipt{TransferID: rec.TransferID, Duplicate: true}, nil
	}

	transferID := uuid.New()
	duplicate := false
	err = r.store.RunInTx(ctx, func(tx pgx.Tx) error {
		var existing uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM ledger_transfers WHERE idempotency_key = $1`, req.IdempotencyKey.Bytes()).Scan(&existing)
		if err == nil {
			transferID, duplicate = existing, true
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to check idempotency: %w", err)
		}

		// Lock both accounts in id order to prevent deadlocks.
		first, second := req.From, req.To
		if first > second {
			first, second = second, first
		}
		for _, id := range []ledger.AccountID{first, second} {
			var locked int64
			if err := tx.QueryRow(ctx, `SELECT id FROM ledger_accounts WHERE id = $1 FOR UPDATE`, int64(id)).Scan(&locked); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ledger.ErrAccountNotFound
				}
				return fmt.Errorf("failed to lock account %d: %w", id, err)
			}
		}

		var (
			balance   int64
			overdraft bool
		)
		if err := tx.QueryRow(ctx, `SELECT balance_micros, allow_overdraft FROM ledger_accounts WHERE id = $1`, int64(req.From)).Scan(&balance, &overdraft); err != nil {
			return fmt.Errorf("failed to fetch sender account: %w", err)
		}
		if !overdraft && balance < amount {
			return ledger.ErrInsufficientFunds
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO ledger_transfers (id, idempotency_key, from_account_id, to_account_id, amount_micros, memo, initiator_id, source, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
			transferID, req.IdempotencyKey.Bytes(), int64(req.From), int64(req.To), amount, req.Memo, req.Initiator, req.Source)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE ledger_accounts SET balance_micros = balance_micros - $1, updated_at = NOW() WHERE id = $2`, amount, int64(req.From)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE ledger_accounts SET balance_micros = balance_micros + $1, updated_at = NOW() WHERE id = $2`, amount, int64(req.To)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// A concurrent delivery of the same key won the insert.
			var existing uuid.UUID
			lookupErr := r.db.QueryRow(ctx, `SELECT id FROM ledger_transfers WHERE idempotency_key = $1`, req.IdempotencyKey.Bytes()).Scan(&existing)
			if lookupErr == nil {
				return &ledger.TransferReceipt{TransferID: existing, Duplicate: true}, nil
			}
		}
		return nil, err
	}

	r.keys.Remember(ctx, idempotency.Record{Key: req.IdempotencyKey, TransferID: transferID, AppliedAt: time.Now().UTC()})
	return &ledger.TransferReceipt{TransferID: transferID, Duplicate: duplicate}, nil
}

func (r *Repository) IsAccountMember(ctx context.Context, member uuid.UUID, id ledger.AccountID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ledger_account_members WHERE account_id = $1 AND member_id = $2)`,
		int64(id), member).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}

func (r *Repository) IsOwnerForAccountID(ctx context.Context, owner uuid.UUID, id ledger.AccountID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ledger_accounts WHERE id = $1 AND owner_id = $2)`,
		int64(id), owner).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check ownership: %w", err)
	}
	return exists, nil
}

// LedgerNet returns the sum of all balances.
func (r *Repository) LedgerNet(ctx context.Context) (decimal.Decimal, error) {
	var net int64
	if err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(balance_micros), 0)::BIGINT FROM ledger_accounts`).Scan(&net); err != nil {
		return decimal.Zero, fmt.Errorf("run ledger net query: %w", err)
	}
	return domain.FromMicros(net), nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// InsertAuditLog appends an immutable audit record.
func (r *Repository) InsertAuditLog(ctx context.Context, entry ledger.AuditEntry) error {
	var actor pgtype.UUID
	if entry.ActorID != nil {
		actor = pgtype.UUID{Bytes: *entry.ActorID, Valid: true}
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO audit_log (entity_type, entity_id, actor_id, action, prev_state, next_state, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.EntityType, entry.EntityID, actor, entry.Action,
		textParam(entry.PrevState), textParam(entry.NextState), entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// AuditTrail returns the audit entries for entityID in insertion order.
func (r *Repository) AuditTrail(ctx context.Context, entityID uuid.UUID) ([]ledger.AuditEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT entity_type, entity_id, actor_id, action, prev_state, next_state, metadata, created_at
		FROM audit_log
		WHERE entity_id = $1
		ORDER BY id`, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []ledger.AuditEntry
	for rows.Next() {
		var (
			e          ledger.AuditEntry
			actor      pgtype.UUID
			prev, next pgtype.Text
		)
		if err := rows.Scan(&e.EntityType, &e.EntityID, &actor, &e.Action, &prev, &next, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if actor.Valid {
			id := uuid.UUID(actor.Bytes)
			e.ActorID = &id
		}
		e.PrevState, e.NextState = prev.String, next.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func textParam(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

var (
	_ ledger.Client   = (*Repository)(nil)
	_ ledger.Auditor  = (*Repository)(nil)
	_ ledger.Pinger   = (*Repository)(nil)
	_ ledger.AuditLog = (*Repository)(nil)
)
