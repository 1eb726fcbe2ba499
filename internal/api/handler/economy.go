package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ayo6706/shop-treasury/internal/api/middleware"
	"github.com/ayo6706/shop-treasury/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EconomyHandler exposes the economy facade to bus adapters over HTTP.
// A nil facade means the system account could not be bootstrapped and
// every request is answered as not handled.
type EconomyHandler struct {
	facade *service.EconomyFacade
}

func NewEconomyHandler(facade *service.EconomyFacade) *EconomyHandler {
	return &EconomyHandler{facade: facade}
}

// RequireFacade short-circuits economy routes while the feature is disabled.
func (h *EconomyHandler) RequireFacade(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.facade == nil {
			w.Header().Set(middleware.ResultHeader, service.NotHandled.String())
			RespondError(w, r, http.StatusServiceUnavailable, "economy/disabled", "ledger is unavailable, economy operations are disabled")
			return
		}
		next.ServeHTTP(w, r)
	})
}

var errInvalidDirection = errors.New("trade direction must be buy or sell")

// requireIDs rejects missing participant identifiers. A zero uuid would
// otherwise resolve to an ownerless personal account.
func requireIDs(fields ...namedID) error {
	for _, f := range fields {
		if f.id == uuid.Nil {
			return fmt.Errorf("%s is required", f.name)
		}
	}
	return nil
}

type namedID struct {
	name string
	id   uuid.UUID
}

type resultBody struct {
	Result string `json:"result"`
}

type balanceRequest struct {
	Account uuid.UUID       `json:"account"`
	Amount  decimal.Decimal `json:"amount"`
	Handled bool            `json:"handled"`
}

type balanceResponse struct {
	Amount decimal.Decimal `json:"amount"`
	Result string          `json:"result"`
}

func (h *EconomyHandler) Balance(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	if err := requireIDs(namedID{"account", req.Account}); err != nil {
		badRequest(w, r, err)
		return
	}
	resp := h.facade.Balance(r.Context(), service.BalanceRequest{Account: req.Account, Amount: req.Amount, Handled: req.Handled})
	respondResult(w, r, resp.Result, balanceResponse{Amount: resp.Amount, Result: resp.Result.String()})
}

type fundsRequest struct {
	Account   uuid.UUID       `json:"account"`
	Amount    decimal.Decimal `json:"amount"`
	HasEnough bool            `json:"has_enough"`
	Handled   bool            `json:"handled"`
}

type fundsResponse struct {
	HasEnough bool   `json:"has_enough"`
	Result    string `json:"result"`
}

func (h *EconomyHandler) CheckFunds(w http.ResponseWriter, r *http.Request) {
	var req fundsRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	if err := requireIDs(namedID{"account", req.Account}); err != nil {
		badRequest(w, r, err)
		return
	}
	resp := h.facade.CheckFunds(r.Context(), service.FundsRequest{
		Account:   req.Account,
		Amount:    req.Amount,
		HasEnough: req.HasEnough,
		Handled:   req.Handled,
	})
	respondResult(w, r, resp.Result, fundsResponse{HasEnough: resp.HasEnough, Result: resp.Result.String()})
}

type accountCheckRequest struct {
	Account    uuid.UUID `json:"account"`
	HasAccount bool      `json:"has_account"`
	Handled    bool      `json:"handled"`
}

type accountCheckResponse struct {
	HasAccount bool   `json:"has_account"`
	Result     string `json:"result"`
}

func (h *EconomyHandler) CheckAccount(w http.ResponseWriter, r *http.Request) {
	var req accountCheckRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	if err := requireIDs(namedID{"account", req.Account}); err != nil {
		badRequest(w, r, err)
		return
	}
	resp := h.facade.CheckAccount(r.Context(), service.AccountCheckRequest{
		Account:    req.Account,
		HasAccount: req.HasAccount,
		Handled:    req.Handled,
	})
	respondResult(w, r, resp.Result, accountCheckResponse{HasAccount: resp.HasAccount, Result: resp.Result.String()})
}

type formatRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Formatted string          `json:"formatted"`
	Handled   bool            `json:"handled"`
}

type formatResponse struct {
	Formatted string `json:"formatted"`
	Result    string `json:"result"`
}

func (h *EconomyHandler) FormatAmount(w http.ResponseWriter, r *http.Request) {
	var req formatRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	resp := h.facade.FormatAmount(r.Context(), service.FormatRequest{Amount: req.Amount, Formatted: req.Formatted, Handled: req.Handled})
	respondResult(w, r, resp.Result, formatResponse{Formatted: resp.Formatted, Result: resp.Result.String()})
}

type amountRequest struct {
	Target  uuid.UUID       `json:"target"`
	Amount  decimal.Decimal `json:"amount"`
	Handled bool            `json:"handled"`
}

func (h *EconomyHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	if err := requireIDs(namedID{"target", req.Target}); err != nil {
		badRequest(w, r, err)
		return
	}
	resp := h.facade.Add(r.Context(), service.AmountRequest{Target: req.Target, Amount: req.Amount, Handled: req.Handled})
	respondResult(w, r, resp.Result, resultBody{Result: resp.Result.String()})
}

func (h *EconomyHandler) Subtract(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	if err := requireIDs(namedID{"target", req.Target}); err != nil {
		badRequest(w, r, err)
		return
	}
	resp := h.facade.Subtract(r.Context(), service.AmountRequest{Target: req.Target, Amount: req.Amount, Handled: req.Handled})
	respondResult(w, r, resp.Result, resultBody{Result: resp.Result.String()})
}

type tradeBody struct {
	Client    string `json:"client"`
	Owner     string `json:"owner"`
	Item      string `json:"item"`
	Stacks    []int  `json:"stacks"`
	Direction string `json:"direction"`
	Cancelled bool   `json:"cancelled"`
}

type transferRequest struct {
	Sender         uuid.UUID       `json:"sender"`
	Receiver       uuid.UUID       `json:"receiver"`
	AmountSent     decimal.Decimal `json:"amount_sent"`
	AmountReceived decimal.Decimal `json:"amount_received"`
	SenderExempt   bool            `json:"sender_exempt"`
	ReceiverExempt bool            `json:"receiver_exempt"`
	Trade          *tradeBody      `json:"trade"`
	Handled        bool            `json:"handled"`
}

type transferResponse struct {
	Memo   string     `json:"memo,omitempty"`
	SagaID *uuid.UUID `json:"saga_id,omitempty"`
	State  string     `json:"state,omitempty"`
	Result string     `json:"result"`
}

func (h *EconomyHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	if err := requireIDs(namedID{"sender", req.Sender}, namedID{"receiver", req.Receiver}); err != nil {
		badRequest(w, r, err)
		return
	}

	var trade *service.Trade
	if req.Trade != nil {
		direction := service.DirectionBuy
		switch strings.ToLower(req.Trade.Direction) {
		case "", "buy":
		case "sell":
			direction = service.DirectionSell
		default:
			badRequest(w, r, errInvalidDirection)
			return
		}
		trade = &service.Trade{
			Client:    req.Trade.Client,
			Owner:     req.Trade.Owner,
			Item:      req.Trade.Item,
			Quantity:  service.TotalQuantity(req.Trade.Stacks...),
			Direction: direction,
			Cancelled: req.Trade.Cancelled,
		}
	}

	resp := h.facade.Transfer(r.Context(), service.TradeTransferRequest{
		Sender:         req.Sender,
		Receiver:       req.Receiver,
		AmountSent:     req.AmountSent,
		AmountReceived: req.AmountReceived,
		SenderExempt:   req.SenderExempt,
		ReceiverExempt: req.ReceiverExempt,
		Trade:          trade,
		Handled:        req.Handled,
	})
	body := transferResponse{Memo: resp.Memo, Result: resp.Result.String()}
	if resp.Outcome.State != "" {
		id := resp.Outcome.ID
		body.SagaID = &id
		body.State = string(resp.Outcome.State)
	}
	respondResult(w, r, resp.Result, body)
}

type holdRequest struct {
	Account *uuid.UUID `json:"account"`
	Handled bool       `json:"handled"`
}

type holdResponse struct {
	CanHold bool   `json:"can_hold"`
	Result  string `json:"result"`
}

func (h *EconomyHandler) CheckHold(w http.ResponseWriter, r *http.Request) {
	var req holdRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	if req.Account != nil {
		if err := requireIDs(namedID{"account", *req.Account}); err != nil {
			badRequest(w, r, err)
			return
		}
	}
	resp := h.facade.CheckHold(r.Context(), service.HoldRequest{Account: req.Account, Handled: req.Handled})
	respondResult(w, r, resp.Result, holdResponse{CanHold: resp.CanHold, Result: resp.Result.String()})
}

type shopAccountBody struct {
	Name       string    `json:"name"`
	ShortName  string    `json:"short_name"`
	Identifier uuid.UUID `json:"identifier"`
}

func (b *shopAccountBody) toService() *service.ShopAccount {
	if b == nil {
		return nil
	}
	return &service.ShopAccount{Name: b.Name, ShortName: b.ShortName, Identifier: b.Identifier}
}

func fromService(a *service.ShopAccount) *shopAccountBody {
	if a == nil {
		return nil
	}
	return &shopAccountBody{Name: a.Name, ShortName: a.ShortName, Identifier: a.Identifier}
}

type accountQueryRequest struct {
	Name    string           `json:"name"`
	Account *shopAccountBody `json:"account"`
}

type accountQueryResponse struct {
	Account *shopAccountBody `json:"account"`
	Result  string           `json:"result"`
}

func (h *EconomyHandler) QueryAccount(w http.ResponseWriter, r *http.Request) {
	var req accountQueryRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	resp := h.facade.QueryAccount(r.Context(), service.AccountQueryRequest{Name: req.Name, Account: req.Account.toService()})
	respondResult(w, r, resp.Result, accountQueryResponse{Account: fromService(resp.Account), Result: resp.Result.String()})
}

type accessRequest struct {
	Player    uuid.UUID        `json:"player"`
	Account   *shopAccountBody `json:"account"`
	CanAccess bool             `json:"can_access"`
}

type accessResponse struct {
	CanAccess bool   `json:"can_access"`
	Result    string `json:"result"`
}

func (h *EconomyHandler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}
	if err := requireIDs(namedID{"player", req.Player}); err != nil {
		badRequest(w, r, err)
		return
	}
	resp := h.facade.CheckAccess(r.Context(), service.AccessRequest{
		Player:    req.Player,
		Account:   req.Account.toService(),
		CanAccess: req.CanAccess,
	})
	respondResult(w, r, resp.Result, accessResponse{CanAccess: resp.CanAccess, Result: resp.Result.String()})
}
