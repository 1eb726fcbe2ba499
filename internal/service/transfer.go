package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayo6706/shop-treasury/internal/domain"
	"github.com/ayo6706/shop-treasury/internal/idempotency"
	"github.com/ayo6706/shop-treasury/internal/ledger"
	"github.com/ayo6706/shop-treasury/internal/observability"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransferOrchestrator moves funds through the system account. The ledger
// only offers single-leg atomic transfers, so a peer transfer is a debit
// followed by a credit, with one compensating credit if the second fails.
type TransferOrchestrator struct {
	ledger   ledger.Client
	system   SystemAccount
	resolver *Resolver
	keys     *idempotency.Builder
	audit    *AuditService
	logger   *zap.Logger
}

// OrchestratorOption configures a TransferOrchestrator.
type OrchestratorOption func(*TransferOrchestrator)

// WithLogger overrides the global zap logger.
func WithLogger(logger *zap.Logger) OrchestratorOption {
	return func(o *TransferOrchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAudit records every peer transfer state change.
func WithAudit(audit *AuditService) OrchestratorOption {
	return func(o *TransferOrchestrator) {
		o.audit = audit
	}
}

// WithKeyBuilder overrides the idempotency key builder.
func WithKeyBuilder(keys *idempotency.Builder) OrchestratorOption {
	return func(o *TransferOrchestrator) {
		if keys != nil {
			o.keys = keys
		}
	}
}

func NewTransferOrchestrator(client ledger.Client, system SystemAccount, opts ...OrchestratorOption) *TransferOrchestrator {
	o := &TransferOrchestrator{
		ledger:   client,
		system:   system,
		resolver: NewResolver(client, system),
		keys:     idempotency.NewBuilder(),
		logger:   zap.L(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// System returns the intermediary account the orchestrator stages through.
func (o *TransferOrchestrator) System() SystemAccount {
	return o.system
}

// Resolver exposes the identifier resolver bound to the same ledger.
func (o *TransferOrchestrator) Resolver() *Resolver {
	return o.resolver
}

// Deposit credits target from the system account.
func (o *TransferOrchestrator) Deposit(ctx context.Context, target uuid.UUID, amount decimal.Decimal, memo string) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	targetID, err := o.resolver.Resolve(ctx, target)
	if err != nil {
		return err
	}
	return o.leg(ctx, "deposit", ledger.TransferRequest{
		From:           o.system.ID,
		To:             targetID,
		Amount:         amount,
		Memo:           memo,
		Initiator:      domain.SystemIdentifier,
		Source:         domain.TransferSource,
		IdempotencyKey: o.keys.Build(domain.KeyTagAdd, target, amount),
	})
}

// Withdraw debits target into the system account. Personal owners authorise
// their own withdrawal; business accounts are debited on the system's behalf.
func (o *TransferOrchestrator) Withdraw(ctx context.Context, target uuid.UUID, amount decimal.Decimal, memo string) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	targetID, err := o.resolver.Resolve(ctx, target)
	if err != nil {
		return err
	}
	return o.leg(ctx, "withdraw", ledger.TransferRequest{
		From:           targetID,
		To:             o.system.ID,
		Amount:         amount,
		Memo:           memo,
		Initiator:      initiatorFor(target),
		Source:         domain.TransferSource,
		IdempotencyKey: o.keys.Build(domain.KeyTagSub, target, amount),
	})
}

// PeerTransfer describes a trade between two parties. AmountSent and
// AmountReceived may differ.
type PeerTransfer struct {
	Sender         uuid.UUID
	Receiver       uuid.UUID
	AmountSent     decimal.Decimal
	AmountReceived decimal.Decimal
	Memo           string
	SenderExempt   bool
	ReceiverExempt bool
}

// PeerOutcome reports where the saga stopped and which ledger calls it made.
type PeerOutcome struct {
	ID          uuid.UUID
	State       PeerState
	Trail       []PeerState
	LegsIssued  int
	Compensated bool
	TransferIDs []uuid.UUID
}

// Succeeded reports whether both non-exempt legs were applied.
func (p PeerOutcome) Succeeded() bool {
	return p.State == StateReceiverCredited
}

// PeerTransfer debits the sender, then credits the receiver. The credit is
// never attempted before the debit is confirmed. If the credit fails after
// a real debit, the debit is returned to the sender exactly once; a failed
// compensation is reported as ErrRollbackFailed and is not retried.
func (o *TransferOrchestrator) PeerTransfer(ctx context.Context, req PeerTransfer) (PeerOutcome, error) {
	saga := newPeerSaga()
	outcome := func() PeerOutcome {
		return PeerOutcome{ID: saga.id, State: saga.state, Trail: append([]PeerState(nil), saga.trail...)}
	}
	var (
		issued      int
		transferIDs []uuid.UUID
	)
	finish := func(compensated bool, err error) (PeerOutcome, error) {
		out := outcome()
		out.LegsIssued = issued
		out.Compensated = compensated
		out.TransferIDs = transferIDs
		observability.IncrementPeerTransfer(string(out.State))
		return out, err
	}

	if err := validateAmount(req.AmountSent); err != nil {
		o.step(ctx, saga, req, StateAborted)
		return finish(false, err)
	}
	if err := validateAmount(req.AmountReceived); err != nil {
		o.step(ctx, saga, req, StateAborted)
		return finish(false, err)
	}

	var senderID ledger.AccountID
	if !req.SenderExempt {
		id, err := o.resolver.Resolve(ctx, req.Sender)
		if err != nil {
			o.logger.Warn("could not resolve sender",
				zap.String("sender", req.Sender.String()),
				zap.String("amount", req.AmountSent.String()),
				zap.Error(err))
			o.step(ctx, saga, req, StateAborted)
			return finish(false, err)
		}
		senderID = id

		issued++
		receipt, err := o.transfer(ctx, "peer_debit", ledger.TransferRequest{
			From:           senderID,
			To:             o.system.ID,
			Amount:         req.AmountSent,
			Memo:           req.Memo,
			Initiator:      initiatorFor(req.Sender),
			Source:         domain.TransferSource,
			IdempotencyKey: o.keys.Build(domain.KeyTagTransferSub, req.Sender, req.AmountSent),
		})
		if err != nil {
			o.logger.Warn("could not debit sender",
				zap.String("sender", req.Sender.String()),
				zap.String("amount", req.AmountSent.String()),
				zap.Error(err))
			o.step(ctx, saga, req, StateAborted)
			return finish(false, err)
		}
		transferIDs = append(transferIDs, receipt.TransferID)
	}
	o.step(ctx, saga, req, StateSenderDebited)

	if !req.ReceiverExempt {
		creditErr := func() error {
			receiverID, err := o.resolver.Resolve(ctx, req.Receiver)
			if err != nil {
				return err
			}
			issued++
			receipt, err := o.transfer(ctx, "peer_credit", ledger.TransferRequest{
				From:           o.system.ID,
				To:             receiverID,
				Amount:         req.AmountReceived,
				Memo:           req.Memo,
				Initiator:      domain.SystemIdentifier,
				Source:         domain.TransferSource,
				IdempotencyKey: o.keys.Build(domain.KeyTagTransferAdd, req.Receiver, req.AmountReceived),
			})
			if err != nil {
				return err
			}
			transferIDs = append(transferIDs, receipt.TransferID)
			return nil
		}()
		if creditErr != nil {
			o.logger.Warn("could not credit receiver",
				zap.String("receiver", req.Receiver.String()),
				zap.String("amount", req.AmountReceived.String()),
				zap.Error(creditErr))

			if req.SenderExempt {
				o.step(ctx, saga, req, StateAborted)
				return finish(false, creditErr)
			}

			o.step(ctx, saga, req, StateRollingBack)
			issued++
			rollbackErr := o.compensate(ctx, req.Sender, senderID, req.AmountSent)
			if rollbackErr != nil {
				o.step(ctx, saga, req, StateRollbackFailed)
				return finish(true, errors.Join(creditErr, rollbackErr))
			}
			o.step(ctx, saga, req, StateRolledBack)
			return finish(true, creditErr)
		}
	}

	o.step(ctx, saga, req, StateReceiverCredited)
	return finish(false, nil)
}

// step advances the saga and appends the change to the audit trail. Audit
// failures are logged and never change the outcome.
func (o *TransferOrchestrator) step(ctx context.Context, saga *peerSaga, req PeerTransfer, next PeerState) {
	prev := saga.transition(next)
	if o.audit == nil {
		return
	}

	actor := initiatorFor(req.Sender)
	metadata, err := json.Marshal(map[string]string{
		"sender":          req.Sender.String(),
		"receiver":        req.Receiver.String(),
		"amount_sent":     req.AmountSent.String(),
		"amount_received": req.AmountReceived.String(),
	})
	if err != nil {
		o.logger.Warn("could not encode audit metadata", zap.Error(err))
		return
	}
	if err := o.audit.Write(ctx, auditEntityPeerTransfer, saga.id, &actor, auditActionTransition, string(prev), string(next), metadata); err != nil {
		o.logger.Warn("could not write audit log",
			zap.String("saga_id", saga.id.String()),
			zap.String("next_state", string(next)),
			zap.Error(err))
	}
}

// compensate returns amount from the system account to the sender. It is
// issued once, under a fresh key, and never retried.
func (o *TransferOrchestrator) compensate(ctx context.Context, sender uuid.UUID, senderID ledger.AccountID, amount decimal.Decimal) error {
	_, err := o.transfer(ctx, "rollback", ledger.TransferRequest{
		From:           o.system.ID,
		To:             senderID,
		Amount:         amount,
		Memo:           domain.MemoRollback,
		Initiator:      domain.SystemIdentifier,
		Source:         domain.TransferSource,
		IdempotencyKey: o.keys.Build(domain.KeyTagRollback, sender, amount),
	})
	if err != nil {
		observability.IncrementRollbackFailure()
		o.logger.Error("CRITICAL: failed to roll back sender debit; funds stranded in system account",
			zap.Bool("critical", true),
			zap.String("sender", sender.String()),
			zap.Uint32("sender_account_id", senderID),
			zap.Uint32("system_account_id", o.system.ID),
			zap.String("amount", amount.String()),
			zap.Error(err))
		return fmt.Errorf("%w: return %s to %s: %w", ErrRollbackFailed, amount.String(), sender, err)
	}
	o.logger.Info("rolled back sender debit",
		zap.String("sender", sender.String()),
		zap.String("amount", amount.String()))
	return nil
}

func (o *TransferOrchestrator) leg(ctx context.Context, kind string, req ledger.TransferRequest) error {
	_, err := o.transfer(ctx, kind, req)
	return err
}

func (o *TransferOrchestrator) transfer(ctx context.Context, kind string, req ledger.TransferRequest) (*ledger.TransferReceipt, error) {
	receipt, err := o.ledger.Transfer(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount):
			observability.IncrementTransferLeg(kind, "rejected")
			return nil, fmt.Errorf("%w: %s leg %d -> %d: %w", ErrInvalidAmount, kind, req.From, req.To, err)
		case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrAccountNotFound):
			observability.IncrementTransferLeg(kind, "rejected")
			return nil, fmt.Errorf("%w: %s leg %d -> %d: %w", ErrTransferRejected, kind, req.From, req.To, err)
		}
		observability.IncrementTransferLeg(kind, "failed")
		return nil, fmt.Errorf("%w: %s leg %d -> %d: %w", ErrLedgerUnavailable, kind, req.From, req.To, err)
	}
	if receipt == nil {
		receipt = &ledger.TransferReceipt{}
	}
	result := "applied"
	if receipt.Duplicate {
		result = "duplicate"
	}
	observability.IncrementTransferLeg(kind, result)
	return receipt, nil
}
