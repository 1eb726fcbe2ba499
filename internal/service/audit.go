package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/shop-treasury/internal/ledger"
	"github.com/google/uuid"
)

const (
	auditEntityPeerTransfer = "peer_transfer"
	auditActionTransition   = "transition"
)

// AuditService writes immutable audit trail entries.
type AuditService struct {
	log ledger.AuditLog
}

func NewAuditService(log ledger.AuditLog) *AuditService {
	return &AuditService{log: log}
}

// Write stores a single immutable audit record.
func (s *AuditService) Write(ctx context.Context, entityType string, entityID uuid.UUID, actorID *uuid.UUID, action, prevState, nextState string, metadata []byte) error {
	if err := s.log.InsertAuditLog(ctx, ledger.AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Action:     action,
		PrevState:  prevState,
		NextState:  nextState,
		Metadata:   metadata,
	}); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
