package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/ayo6706/shop-treasury/internal/api"
	"github.com/ayo6706/shop-treasury/internal/api/middleware"
	"github.com/ayo6706/shop-treasury/internal/config"
	"github.com/ayo6706/shop-treasury/internal/domain"
	"github.com/ayo6706/shop-treasury/internal/ledger/memory"
	"github.com/ayo6706/shop-treasury/internal/observability"
	"github.com/ayo6706/shop-treasury/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testJWTSecret   = "test-secret-0123456789-test-secret"
	testJWTIssuer   = "shop-treasury-test"
	testJWTAudience = "treasury-api-test"
)

func TestMain(m *testing.M) {
	zap.ReplaceGlobals(zap.NewNop())
	observability.Init()
	middleware.SetJWTSecret(testJWTSecret)
	middleware.SetJWTValidation(testJWTIssuer, testJWTAudience)
	os.Exit(m.Run())
}

type testAPI struct {
	ledger  *memory.Ledger
	handler http.Handler
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	l := memory.New()
	system, err := service.Bootstrap(context.Background(), l, "")
	require.NoError(t, err)

	transfers := service.NewTransferOrchestrator(l, system, service.WithAudit(service.NewAuditService(l)))
	facade := service.NewEconomyFacade(l, transfers, service.WithColorStripping(true))
	return &testAPI{ledger: l, handler: newRouter(facade, l).Routes()}
}

func newRouter(facade *service.EconomyFacade, l *memory.Ledger) *api.Router {
	cfg := &config.Config{
		HTTPPort:     "0",
		JWTSecret:    testJWTSecret,
		JWTIssuer:    testJWTIssuer,
		JWTAudience:  testJWTAudience,
		RateLimitRPS: 1000,
	}
	return api.NewRouter(cfg, zap.NewNop(), facade, l, nil)
}

func generateTestToken(t *testing.T, scopes ...string) string {
	t.Helper()
	now := time.Now()
	token, err := middleware.IssueToken(middleware.Claims{
		ClientID: "shop-adapter",
		Scopes:   scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	require.NoError(t, err)
	return token
}

func (a *testAPI) post(t *testing.T, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return servePost(a.handler, path, token, body)
}

func servePost(h http.Handler, path, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func (a *testAPI) personal(t *testing.T, balance int64) (uuid.UUID, uint32) {
	t.Helper()
	owner := uuid.New()
	acc, err := a.ledger.ResolveOrCreatePersonal(context.Background(), owner)
	require.NoError(t, err)
	if balance != 0 {
		require.NoError(t, a.ledger.Credit(acc.ID, decimal.NewFromInt(balance)))
	}
	return owner, acc.ID
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRFC7807ProblemDetails(t *testing.T) {
	a := setupAPI(t)

	w := a.post(t, "/v1/economy/balance", "", map[string]any{"account": uuid.New()})

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")

	body := decodeBody(t, w)
	assert.NotEmpty(t, body["type"])
	assert.Equal(t, float64(http.StatusUnauthorized), body["status"])
	assert.NotEmpty(t, body["title"])
	assert.NotEmpty(t, body["detail"])
	assert.Equal(t, "/v1/economy/balance", body["instance"])
	assert.NotEmpty(t, body["request_id"])
}

func TestScopes(t *testing.T) {
	a := setupAPI(t)
	target, _ := a.personal(t, 0)
	payload := map[string]any{"target": target, "amount": "5"}

	cases := []struct {
		name   string
		scopes []string
		path   string
		status int
	}{
		{name: "read token cannot add", scopes: []string{middleware.ScopeRead}, path: "/v1/economy/add", status: http.StatusForbidden},
		{name: "write token can add", scopes: []string{middleware.ScopeWrite}, path: "/v1/economy/add", status: http.StatusOK},
		{name: "write token cannot read", scopes: []string{middleware.ScopeWrite}, path: "/v1/economy/format", status: http.StatusForbidden},
		{name: "no scopes", scopes: nil, path: "/v1/economy/hold", status: http.StatusForbidden},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			w := a.post(t, tc.path, generateTestToken(t, tc.scopes...), payload)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	a := setupAPI(t)
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		ClientID:         "shop-adapter",
		Scopes:           []string{middleware.ScopeRead},
		RegisteredClaims: jwt.RegisteredClaims{Issuer: testJWTIssuer, Audience: jwt.ClaimStrings{testJWTAudience}},
	})
	token, err := forged.SignedString([]byte("another-secret-another-secret-xx"))
	require.NoError(t, err)

	w := a.post(t, "/v1/economy/format", token, map[string]any{"amount": "1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAddThenBalance(t *testing.T) {
	a := setupAPI(t)
	owner, _ := a.personal(t, 0)
	token := generateTestToken(t, middleware.ScopeRead, middleware.ScopeWrite)

	w := a.post(t, "/v1/economy/add", token, map[string]any{"target": owner, "amount": "50"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "handled", w.Header().Get(middleware.ResultHeader))
	assert.Equal(t, "handled", decodeBody(t, w)["result"])

	w = a.post(t, "/v1/economy/balance", token, map[string]any{"account": owner})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "50", body["amount"])
	assert.Equal(t, "handled", body["result"])

	w = a.post(t, "/v1/economy/funds", token, map[string]any{"account": owner, "amount": "60"})
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, false, body["has_enough"])
	assert.Equal(t, "handled", body["result"])
}

func TestSubtractInvalidAmountFails(t *testing.T) {
	a := setupAPI(t)
	owner, id := a.personal(t, 10)
	token := generateTestToken(t, middleware.ScopeWrite)

	w := a.post(t, "/v1/economy/subtract", token, map[string]any{"target": owner, "amount": "-3"})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "failed", w.Header().Get(middleware.ResultHeader))
	assert.Equal(t, "failed", decodeBody(t, w)["result"])

	bal, err := a.ledger.GetBalanceByAccountID(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(bal))
}

func TestTransferPaysForTrade(t *testing.T) {
	a := setupAPI(t)
	buyer, buyerID := a.personal(t, 100)
	seller, sellerID := a.personal(t, 0)
	token := generateTestToken(t, middleware.ScopeWrite)

	w := a.post(t, "/v1/economy/transfer", token, map[string]any{
		"sender":          buyer,
		"receiver":        seller,
		"amount_sent":     "30",
		"amount_received": "30",
		"trade": map[string]any{
			"client":    "Alex",
			"owner":     "Sam",
			"item":      "Diamond",
			"stacks":    []int{2, 1},
			"direction": "buy",
		},
	})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "handled", body["result"])
	assert.Equal(t, "Alex bought x3 Diamond from Sam", body["memo"])
	assert.Equal(t, string(service.StateReceiverCredited), body["state"])

	sagaID, err := uuid.Parse(body["saga_id"].(string))
	require.NoError(t, err)
	assert.Len(t, a.ledger.AuditTrail(sagaID), 2)

	ctx := context.Background()
	bal, err := a.ledger.GetBalanceByAccountID(ctx, buyerID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(70).Equal(bal))
	bal, err = a.ledger.GetBalanceByAccountID(ctx, sellerID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(30).Equal(bal))
}

func TestTransferWithoutTradeIsNotHandled(t *testing.T) {
	a := setupAPI(t)
	buyer, _ := a.personal(t, 100)
	seller, _ := a.personal(t, 0)

	w := a.post(t, "/v1/economy/transfer", generateTestToken(t, middleware.ScopeWrite), map[string]any{
		"sender":          buyer,
		"receiver":        seller,
		"amount_sent":     "30",
		"amount_received": "30",
	})

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "not_handled", body["result"])
	assert.Nil(t, body["state"])
}

func TestMalformedRequests(t *testing.T) {
	a := setupAPI(t)
	token := generateTestToken(t, middleware.ScopeRead, middleware.ScopeWrite)

	cases := []struct {
		name string
		path string
		body string
	}{
		{name: "not json", path: "/v1/economy/balance", body: "{"},
		{name: "bad uuid", path: "/v1/economy/balance", body: `{"account":"nope"}`},
		{name: "bad amount", path: "/v1/economy/add", body: `{"target":"` + uuid.NewString() + `","amount":"ten"}`},
		{name: "unknown field", path: "/v1/economy/format", body: `{"amount":"1","colour":"red"}`},
		{name: "bad direction", path: "/v1/economy/transfer", body: `{"sender":"` + uuid.NewString() + `","receiver":"` + uuid.NewString() + `","trade":{"direction":"swap"}}`},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			w := servePost(a.handler, tc.path, token, []byte(tc.body))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "not_handled", w.Header().Get(middleware.ResultHeader))
		})
	}
}

func TestMissingParticipantRejected(t *testing.T) {
	a := setupAPI(t)
	token := generateTestToken(t, middleware.ScopeRead, middleware.ScopeWrite)
	someone := uuid.NewString()

	cases := []struct {
		name string
		path string
		body string
	}{
		{name: "add without target", path: "/v1/economy/add", body: `{"amount":"25"}`},
		{name: "subtract nil target", path: "/v1/economy/subtract", body: `{"target":"00000000-0000-0000-0000-000000000000","amount":"1"}`},
		{name: "balance without account", path: "/v1/economy/balance", body: `{}`},
		{name: "funds without account", path: "/v1/economy/funds", body: `{"amount":"1"}`},
		{name: "account check without account", path: "/v1/economy/account-check", body: `{}`},
		{name: "transfer without sender", path: "/v1/economy/transfer", body: `{"receiver":"` + someone + `","amount_sent":"1","amount_received":"1","trade":{"item":"Dirt"}}`},
		{name: "transfer without receiver", path: "/v1/economy/transfer", body: `{"sender":"` + someone + `","amount_sent":"1","amount_received":"1","trade":{"item":"Dirt"}}`},
		{name: "hold nil account", path: "/v1/economy/hold", body: `{"account":"00000000-0000-0000-0000-000000000000"}`},
		{name: "access without player", path: "/v1/accounts/access", body: `{"account":{"short_name":"B:2"}}`},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			w := servePost(a.handler, tc.path, token, []byte(tc.body))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "not_handled", w.Header().Get(middleware.ResultHeader))
		})
	}

	exists, err := a.ledger.HasAccountByOwner(context.Background(), uuid.Nil)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, a.ledger.History())
}

func TestAccountQueryAndAccess(t *testing.T) {
	a := setupAPI(t)
	ctx := context.Background()
	owner := uuid.New()
	business, err := a.ledger.CreateAccount(ctx, domain.AccountTypeBusiness, owner, "Acme Trading")
	require.NoError(t, err)
	token := generateTestToken(t, middleware.ScopeRead)

	w := a.post(t, "/v1/accounts/query", token, map[string]any{"name": domain.BusinessShortName(business.ID)})
	require.Equal(t, http.StatusOK, w.Code)
	var query struct {
		Account struct {
			Name       string    `json:"name"`
			ShortName  string    `json:"short_name"`
			Identifier uuid.UUID `json:"identifier"`
		} `json:"account"`
		Result string `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &query))
	assert.Equal(t, "handled", query.Result)
	assert.Equal(t, "Acme Trading", query.Account.Name)
	assert.Equal(t, domain.EncodeBusiness(business.ID), query.Account.Identifier)

	account := map[string]any{"name": query.Account.Name, "short_name": query.Account.ShortName, "identifier": query.Account.Identifier}

	w = a.post(t, "/v1/accounts/access", token, map[string]any{"player": owner, "account": account})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["can_access"])
	assert.Equal(t, "handled", body["result"])

	w = a.post(t, "/v1/accounts/access", token, map[string]any{"player": uuid.New(), "account": account})
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, false, body["can_access"])
	assert.Equal(t, "not_handled", body["result"])
}

func TestEconomyDisabledWithoutSystemAccount(t *testing.T) {
	h := newRouter(nil, memory.New()).Routes()
	body, err := json.Marshal(map[string]any{"amount": "1"})
	require.NoError(t, err)

	w := servePost(h, "/v1/economy/format", generateTestToken(t, middleware.ScopeRead), body)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not_handled", w.Header().Get(middleware.ResultHeader))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	assert.Equal(t, http.StatusServiceUnavailable, rw.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	a := setupAPI(t)

	cases := []struct {
		name string
		path string
	}{
		{name: "live", path: "/health/live"},
		{name: "ready", path: "/health/ready"},
		{name: "metrics", path: "/metrics"},
		{name: "openapi", path: "/openapi.yaml"},
		{name: "swagger", path: "/swagger/index.html"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			w := httptest.NewRecorder()
			a.handler.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestTraceIDEchoed(t *testing.T) {
	a := setupAPI(t)
	req := httptest.NewRequest("GET", "/health/live", nil)
	req.Header.Set(middleware.TraceHeader, "trace-123")
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	assert.Equal(t, "trace-123", w.Header().Get(middleware.TraceHeader))
}
