package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one immutable audit trail record.
type AuditEntry struct {
	EntityType string
	EntityID   uuid.UUID
	ActorID    *uuid.UUID
	Action     string
	PrevState  string
	NextState  string
	Metadata   []byte
	CreatedAt  time.Time
}

// AuditLog is implemented by ledgers that keep an audit trail.
type AuditLog interface {
	InsertAuditLog(ctx context.Context, entry AuditEntry) error
}
