package service

import (
	"context"
	"errors"

	"github.com/ayo6706/shop-treasury/internal/domain"
	"github.com/ayo6706/shop-treasury/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Result tells the bus whether an operation was completed here.
// NotHandled lets a fallback adapter try the same operation; Failed means
// it must not.
type Result int

const (
	NotHandled Result = iota
	Handled
	Failed
)

func (r Result) String() string {
	switch r {
	case Handled:
		return "handled"
	case Failed:
		return "failed"
	default:
		return "not_handled"
	}
}

// ShopAccount is the bus-facing view of a business account.
type ShopAccount struct {
	Name       string
	ShortName  string
	Identifier uuid.UUID
}

// EconomyFacade answers economy requests from the bus. Every operation is
// skipped when a previous adapter already handled it, and ledger failures
// leave the request unhandled instead of surfacing.
type EconomyFacade struct {
	ledger      ledger.Client
	transfers   *TransferOrchestrator
	stripColors bool
	logger      *zap.Logger
}

// FacadeOption configures an EconomyFacade.
type FacadeOption func(*EconomyFacade)

// WithColorStripping removes colour codes from formatted amounts.
func WithColorStripping(strip bool) FacadeOption {
	return func(f *EconomyFacade) {
		f.stripColors = strip
	}
}

// WithFacadeLogger overrides the global zap logger.
func WithFacadeLogger(logger *zap.Logger) FacadeOption {
	return func(f *EconomyFacade) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func NewEconomyFacade(client ledger.Client, transfers *TransferOrchestrator, opts ...FacadeOption) *EconomyFacade {
	f := &EconomyFacade{
		ledger:    client,
		transfers: transfers,
		logger:    zap.L(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// BalanceRequest carries a zero Amount while the balance is still unknown.
type BalanceRequest struct {
	Account uuid.UUID
	Amount  decimal.Decimal
	Handled bool
}

type BalanceResponse struct {
	Amount decimal.Decimal
	Result Result
}

// Balance fills in the account balance. A non-zero Amount is left as is and
// the ledger is not called.
func (f *EconomyFacade) Balance(ctx context.Context, req BalanceRequest) BalanceResponse {
	resp := BalanceResponse{Amount: req.Amount}
	if req.Handled || !req.Amount.IsZero() {
		return resp
	}

	balance, err := f.balance(ctx, req.Account)
	if err != nil {
		f.logger.Warn("could not get balance", zap.String("account", req.Account.String()), zap.Error(err))
		return resp
	}
	resp.Amount = balance
	resp.Result = Handled
	return resp
}

func (f *EconomyFacade) balance(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	p, err := domain.ParseParticipant(id)
	if err != nil {
		return decimal.Zero, err
	}
	switch p.Kind {
	case domain.KindBusiness:
		return f.ledger.GetBalanceByAccountID(ctx, p.AccountID)
	case domain.KindSystem:
		return f.ledger.GetBalanceByAccountID(ctx, f.transfers.System().ID)
	}
	return f.ledger.GetBalanceByOwner(ctx, p.Owner)
}

type FundsRequest struct {
	Account   uuid.UUID
	Amount    decimal.Decimal
	HasEnough bool
	Handled   bool
}

type FundsResponse struct {
	HasEnough bool
	Result    Result
}

// CheckFunds asks the ledger whether the account can cover Amount.
func (f *EconomyFacade) CheckFunds(ctx context.Context, req FundsRequest) FundsResponse {
	resp := FundsResponse{HasEnough: req.HasEnough}
	if req.Handled || req.HasEnough {
		return resp
	}

	enough, err := func() (bool, error) {
		id, err := f.transfers.Resolver().Resolve(ctx, req.Account)
		if err != nil {
			return false, err
		}
		return f.ledger.HasFunds(ctx, id, req.Amount)
	}()
	if err != nil {
		f.logger.Warn("could not check funds",
			zap.String("account", req.Account.String()),
			zap.String("amount", req.Amount.String()),
			zap.Error(err))
		return resp
	}
	resp.HasEnough = enough
	resp.Result = Handled
	return resp
}

type AccountCheckRequest struct {
	Account    uuid.UUID
	HasAccount bool
	Handled    bool
}

type AccountCheckResponse struct {
	HasAccount bool
	Result     Result
}

// CheckAccount reports whether the ledger knows the account. Personal
// accounts are not created by this check.
func (f *EconomyFacade) CheckAccount(ctx context.Context, req AccountCheckRequest) AccountCheckResponse {
	resp := AccountCheckResponse{HasAccount: req.HasAccount}
	if req.Handled || req.HasAccount {
		return resp
	}

	exists, err := func() (bool, error) {
		p, err := domain.ParseParticipant(req.Account)
		if err != nil {
			return false, err
		}
		switch p.Kind {
		case domain.KindBusiness:
			return f.ledger.HasAccountByAccountID(ctx, p.AccountID)
		case domain.KindSystem:
			return f.ledger.HasAccountByAccountID(ctx, f.transfers.System().ID)
		}
		return f.ledger.HasAccountByOwner(ctx, p.Owner)
	}()
	if err != nil {
		f.logger.Warn("could not check account", zap.String("account", req.Account.String()), zap.Error(err))
		return resp
	}
	resp.HasAccount = exists
	resp.Result = Handled
	return resp
}

type FormatRequest struct {
	Amount    decimal.Decimal
	Formatted string
	Handled   bool
}

type FormatResponse struct {
	Formatted string
	Result    Result
}

// FormatAmount renders Amount in the ledger's currency format.
func (f *EconomyFacade) FormatAmount(ctx context.Context, req FormatRequest) FormatResponse {
	resp := FormatResponse{Formatted: req.Formatted}
	if req.Handled || req.Formatted != "" {
		return resp
	}

	formatted, err := f.ledger.FormatAmount(ctx, req.Amount)
	if err != nil {
		f.logger.Warn("could not format amount", zap.String("amount", req.Amount.String()), zap.Error(err))
		return resp
	}
	if f.stripColors {
		formatted = domain.StripColor(formatted)
	}
	resp.Formatted = formatted
	resp.Result = Handled
	return resp
}

// AmountRequest moves Amount between Target and the system account.
type AmountRequest struct {
	Target  uuid.UUID
	Amount  decimal.Decimal
	Handled bool
}

type AmountResponse struct {
	Result Result
}

// Add deposits Amount into Target.
func (f *EconomyFacade) Add(ctx context.Context, req AmountRequest) AmountResponse {
	if req.Handled {
		return AmountResponse{}
	}
	err := f.transfers.Deposit(ctx, req.Target, req.Amount, domain.MemoDeposit)
	if err != nil {
		f.logger.Warn("could not add funds",
			zap.String("target", req.Target.String()),
			zap.String("amount", req.Amount.String()),
			zap.Error(err))
	}
	return AmountResponse{Result: resultOf(err)}
}

// Subtract withdraws Amount from Target.
func (f *EconomyFacade) Subtract(ctx context.Context, req AmountRequest) AmountResponse {
	if req.Handled {
		return AmountResponse{}
	}
	err := f.transfers.Withdraw(ctx, req.Target, req.Amount, domain.MemoWithdrawal)
	if err != nil {
		f.logger.Warn("could not subtract funds",
			zap.String("target", req.Target.String()),
			zap.String("amount", req.Amount.String()),
			zap.Error(err))
	}
	return AmountResponse{Result: resultOf(err)}
}

// TradeTransferRequest pays for a shop trade. Exempt parties are
// administrative shops whose leg is skipped.
type TradeTransferRequest struct {
	Sender         uuid.UUID
	Receiver       uuid.UUID
	AmountSent     decimal.Decimal
	AmountReceived decimal.Decimal
	SenderExempt   bool
	ReceiverExempt bool
	Trade          *Trade
	Handled        bool
}

type TradeTransferResponse struct {
	Memo    string
	Outcome PeerOutcome
	Result  Result
}

// Transfer runs the peer transfer for a trade. Requests without a trade, or
// whose trade was cancelled, are left alone.
func (f *EconomyFacade) Transfer(ctx context.Context, req TradeTransferRequest) TradeTransferResponse {
	if req.Handled || req.Trade == nil || req.Trade.Cancelled {
		return TradeTransferResponse{}
	}

	memo := FormatTradeMemo(*req.Trade)
	outcome, err := f.transfers.PeerTransfer(ctx, PeerTransfer{
		Sender:         req.Sender,
		Receiver:       req.Receiver,
		AmountSent:     req.AmountSent,
		AmountReceived: req.AmountReceived,
		Memo:           memo,
		SenderExempt:   req.SenderExempt,
		ReceiverExempt: req.ReceiverExempt,
	})
	return TradeTransferResponse{Memo: memo, Outcome: outcome, Result: resultOf(err)}
}

type HoldRequest struct {
	Account *uuid.UUID
	Handled bool
}

type HoldResponse struct {
	CanHold bool
	Result  Result
}

// CheckHold always allows. Limits are enforced by the ledger itself.
func (f *EconomyFacade) CheckHold(_ context.Context, req HoldRequest) HoldResponse {
	if req.Handled || req.Account == nil {
		return HoldResponse{}
	}
	return HoldResponse{CanHold: true, Result: Handled}
}

type AccountQueryRequest struct {
	Name    string
	Account *ShopAccount
}

type AccountQueryResponse struct {
	Account *ShopAccount
	Result  Result
}

// QueryAccount looks up a business account by its "B:<base36>" sign name.
// Names that do not decode or match no account produce nothing.
func (f *EconomyFacade) QueryAccount(ctx context.Context, req AccountQueryRequest) AccountQueryResponse {
	resp := AccountQueryResponse{Account: req.Account}
	if req.Account != nil || !domain.IsBusinessName(req.Name) {
		return resp
	}

	id, err := domain.ParseBusinessName(req.Name)
	if err != nil {
		return resp
	}
	acc, err := f.ledger.GetAccountByID(ctx, id)
	if err != nil {
		if !errors.Is(err, ledger.ErrAccountNotFound) {
			f.logger.Warn("could not resolve business account", zap.String("name", req.Name), zap.Error(err))
		}
		return resp
	}
	if acc == nil {
		return resp
	}

	resp.Account = &ShopAccount{
		Name:       acc.DisplayName,
		ShortName:  domain.BusinessShortName(id),
		Identifier: domain.EncodeBusiness(id),
	}
	resp.Result = Handled
	return resp
}

type AccessRequest struct {
	Player    uuid.UUID
	Account   *ShopAccount
	CanAccess bool
}

type AccessResponse struct {
	CanAccess bool
	Result    Result
}

// CheckAccess grants access to a business account when the player is one of
// its members or its owner. A denial leaves the request for other adapters.
func (f *EconomyFacade) CheckAccess(ctx context.Context, req AccessRequest) AccessResponse {
	resp := AccessResponse{CanAccess: req.CanAccess}
	if req.CanAccess || req.Account == nil || req.Account.ShortName == "" {
		return resp
	}
	if !domain.IsBusinessName(req.Account.ShortName) || !domain.IsBusiness(req.Account.Identifier) {
		return resp
	}

	id := domain.DecodeBusiness(req.Account.Identifier)
	allowed, err := func() (bool, error) {
		member, err := f.ledger.IsAccountMember(ctx, req.Player, id)
		if err != nil || member {
			return member, err
		}
		return f.ledger.IsOwnerForAccountID(ctx, req.Player, id)
	}()
	if err != nil {
		f.logger.Warn("could not check access",
			zap.String("player", req.Player.String()),
			zap.String("account", req.Account.ShortName),
			zap.Error(err))
		return resp
	}
	if allowed {
		resp.CanAccess = true
		resp.Result = Handled
	}
	return resp
}

// resultOf maps a money-movement error onto the bus result. Invalid amounts
// and failed rollbacks are Failed so no fallback repeats the operation.
func resultOf(err error) Result {
	switch {
	case err == nil:
		return Handled
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrRollbackFailed):
		return Failed
	default:
		return NotHandled
	}
}
