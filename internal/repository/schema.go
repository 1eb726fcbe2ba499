package repository

import (
	"context"
	"fmt"
)

// schema is applied by Migrate. Account ids are kept inside the uint32
// range the business identifier encoding can carry.
const schema = `
CREATE TABLE IF NOT EXISTS ledger_accounts (
	id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY CHECK (id BETWEEN 0 AND 4294967295),
	account_type TEXT NOT NULL,
	owner_id UUID NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	allow_overdraft BOOLEAN NOT NULL DEFAULT FALSE,
	balance_micros BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS ledger_accounts_personal_owner
	ON ledger_accounts (owner_id) WHERE account_type = 'PERSONAL';

CREATE INDEX IF NOT EXISTS ledger_accounts_type_owner
	ON ledger_accounts (account_type, owner_id);

CREATE TABLE IF NOT EXISTS ledger_account_members (
	account_id BIGINT NOT NULL REFERENCES ledger_accounts (id) ON DELETE CASCADE,
	member_id UUID NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (account_id, member_id)
);

CREATE TABLE IF NOT EXISTS ledger_transfers (
	id UUID PRIMARY KEY,
	idempotency_key BYTEA NOT NULL UNIQUE,
	from_account_id BIGINT NOT NULL REFERENCES ledger_accounts (id),
	to_account_id BIGINT NOT NULL REFERENCES ledger_accounts (id),
	amount_micros BIGINT NOT NULL CHECK (amount_micros >= 0),
	memo TEXT NOT NULL DEFAULT '',
	initiator_id UUID NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS audit_log (
	id BIGSERIAL PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_id UUID NOT NULL,
	actor_id UUID,
	action TEXT NOT NULL,
	prev_state TEXT,
	next_state TEXT,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS audit_log_entity ON audit_log (entity_type, entity_id);
`

// Migrate creates the ledger tables when they do not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply ledger schema: %w", err)
	}
	return nil
}
