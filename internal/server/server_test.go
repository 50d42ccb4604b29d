package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"forge-market-go/internal/api"
	"forge-market-go/internal/config"
	"forge-market-go/internal/database"
	"forge-market-go/internal/models"
	"forge-market-go/internal/store"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken  = "listener-secret"
	pointsMint = "PointsMint"
)

func sig(label string) string {
	sum := sha512.Sum512([]byte(label))
	return base58.Encode(sum[:])
}

func addr(label string) string {
	sum := sha256.Sum256([]byte(label))
	return base58.Encode(sum[:])
}

func newTestServer(t *testing.T) (*Server, *api.LedgerService) {
	t.Helper()
	cfg := &models.Config{
		Database: models.DatabaseConfig{
			Path:         filepath.Join(t.TempDir(), "ledger.db"),
			MaxOpenConns: 8,
			MaxIdleConns: 4,
			PingTimeout:  5 * time.Second,
			BusyTimeout:  10 * time.Second,
		},
		Withdrawal: models.WithdrawalConfig{BalanceCeiling: 1000, ClaimTimeout: time.Minute},
		Presale:    models.PresaleConfig{IntentTTL: time.Minute},
		Server:     models.ServerConfig{ListenerToken: testToken, GinMode: gin.TestMode},
	}

	db, err := database.NewService(context.Background(), cfg.Database)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	routes := config.TokenRoutes{
		pointsMint: {Mint: pointsMint, Symbol: "PTS", Asset: models.AssetPoints, Scale: decimal.NewFromInt(1)},
	}
	ledger := api.NewLedgerService(db, routes, cfg)
	return NewServer(ledger, cfg.Server), ledger
}

func seedUser(t *testing.T, ledger *api.LedgerService, userId string) {
	t.Helper()
	_, err := ledger.Store().CreateUser(context.Background(), userId, addr(userId))
	require.NoError(t, err)
}

type call struct {
	method string
	path   string
	body   any
	user   string
	token  string
}

func do(t *testing.T, srv *Server, c call) *httptest.ResponseRecorder {
	t.Helper()
	var payload bytes.Buffer
	if c.body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(c.body))
	}

	req := httptest.NewRequest(c.method, c.path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.Header.Set(userHeader, c.user)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func depositBody(signature, userId string, amount int64) models.DepositEvent {
	return models.DepositEvent{
		Signature:    signature,
		Sender:       addr("sender"),
		TokenAddress: pointsMint,
		Amount:       decimal.NewFromInt(amount),
		UserId:       userId,
		ObservedAt:   time.Now(),
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, call{method: http.MethodGet, path: "/health"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "UP")

	rec = do(t, srv, call{method: http.MethodGet, path: "/metrics"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "forge_http_requests_total")
}

func TestAuthentication(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, call{method: http.MethodGet, path: "/v1/balance"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, call{method: http.MethodPost, path: "/internal/deposits", body: depositBody(sig("a"), "u", 1)})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, call{method: http.MethodPost, path: "/internal/deposits", body: depositBody(sig("a"), "u", 1), token: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWorkerRoutesDisabledWithoutToken(t *testing.T) {
	_, ledger := newTestServer(t)
	srv := NewServer(ledger, models.ServerConfig{GinMode: gin.TestMode})

	rec := do(t, srv, call{method: http.MethodPost, path: "/internal/deposits", body: depositBody(sig("a"), "u", 1), token: ""})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDepositThenBalance(t *testing.T) {
	srv, ledger := newTestServer(t)
	seedUser(t, ledger, "alice")

	event := depositBody(sig("alice-1"), "alice", 75)
	for i := 0; i < 2; i++ {
		rec := do(t, srv, call{method: http.MethodPost, path: "/internal/deposits", body: event, token: testToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		outcome := decode[models.DepositOutcome](t, rec)
		assert.Equal(t, models.StatusSucceeded, outcome.Status)
		assert.Equal(t, i == 1, outcome.Replayed)
	}

	rec := do(t, srv, call{method: http.MethodGet, path: "/v1/balance", user: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	balance := decode[models.Balance](t, rec)
	assert.Equal(t, int64(75), balance.Points)

	rec = do(t, srv, call{method: http.MethodGet, path: "/v1/balance/history?limit=x", user: "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, call{method: http.MethodGet, path: "/v1/balance", user: "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, call{method: http.MethodGet, path: "/internal/deposits/" + sig("alice-1"), token: testToken})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWithdrawalRoutes(t *testing.T) {
	srv, ledger := newTestServer(t)
	seedUser(t, ledger, "bob")

	rec := do(t, srv, call{method: http.MethodPost, path: "/internal/deposits", body: depositBody(sig("bob-1"), "bob", 40), token: testToken})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, call{method: http.MethodPost, path: "/v1/withdrawals", body: gin.H{"destination": "not-base58-0OIl"}, user: "bob"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, call{method: http.MethodPost, path: "/v1/withdrawals", body: gin.H{"destination": addr("bob-out")}, user: "bob"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	request := decode[models.WithdrawalRequest](t, rec)
	assert.Equal(t, int64(40), request.Amount)

	rec = do(t, srv, call{method: http.MethodPost, path: "/v1/withdrawals", body: gin.H{"destination": addr("bob-out")}, user: "bob"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	base := "/internal/withdrawals/" + request.Id
	rec = do(t, srv, call{method: http.MethodPost, path: base + "/claim", token: testToken})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, srv, call{method: http.MethodPost, path: base + "/claim", token: testToken})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, call{method: http.MethodPost, path: base + "/safety", token: testToken})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.PayoutCheck](t, rec).Safe)

	rec = do(t, srv, call{method: http.MethodPost, path: base + "/reference", body: gin.H{"reference": "act-1"}, token: testToken})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, call{method: http.MethodPost, path: base + "/complete", body: gin.H{"signature": sig("bob-out")}, token: testToken})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, srv, call{method: http.MethodGet, path: "/v1/balance", user: "bob"})
	assert.Equal(t, int64(0), decode[models.Balance](t, rec).Points)

	rec = do(t, srv, call{method: http.MethodPost, path: base + "/fail", body: gin.H{"reason": "late"}, token: testToken})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, call{method: http.MethodGet, path: "/v1/withdrawals", user: "bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[struct {
		Withdrawals []models.WithdrawalRequest `json:"withdrawals"`
	}](t, rec)
	require.Len(t, listed.Withdrawals, 1)
	assert.True(t, listed.Withdrawals[0].Processed)
}

func TestOrderRoutes(t *testing.T) {
	srv, ledger := newTestServer(t)
	ctx := context.Background()
	seedUser(t, ledger, "seller")
	seedUser(t, ledger, "buyer")

	project, err := ledger.Store().CreateProject(ctx, "forge")
	require.NoError(t, err)
	list, err := ledger.Store().CreateAllowlist(ctx, project.Id, "genesis")
	require.NoError(t, err)
	holder := "seller"
	_, err = ledger.Store().CreateAllowlistEntry(ctx, list.Id, &holder, "og", nil)
	require.NoError(t, err)

	rec := do(t, srv, call{method: http.MethodPost, path: "/internal/deposits", body: depositBody(sig("buyer-1"), "buyer", 500), token: testToken})
	require.Equal(t, http.StatusOK, rec.Code)

	sell := gin.H{"trade_type": models.TradeSell, "project_id": project.Id, "role_id": "og", "points_cost": 200}
	rec = do(t, srv, call{method: http.MethodPost, path: "/v1/orders", body: sell, user: "buyer"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, call{method: http.MethodPost, path: "/v1/orders", body: sell, user: "seller"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, srv, call{method: http.MethodGet, path: "/v1/projects/" + project.Id + "/book?role_id=og", user: "buyer"})
	require.Equal(t, http.StatusOK, rec.Code)
	top := decode[struct {
		Floor *models.OrderBookSide `json:"floor"`
		Bid   *models.OrderBookSide `json:"best_bid"`
	}](t, rec)
	require.NotNil(t, top.Floor)
	assert.Equal(t, int64(200), top.Floor.PointsCost)
	assert.Nil(t, top.Bid)

	buy := gin.H{"trade_type": models.TradeBuy, "project_id": project.Id, "role_id": "og", "points_cost": 250}
	rec = do(t, srv, call{method: http.MethodPost, path: "/v1/orders", body: buy, user: "buyer"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	placed := decode[struct {
		Settlement models.Settlement `json:"settlement"`
	}](t, rec)
	assert.True(t, placed.Settlement.Matched)
	assert.Equal(t, int64(200), placed.Settlement.Price)

	rec = do(t, srv, call{method: http.MethodGet, path: "/v1/balance", user: "seller"})
	assert.Equal(t, int64(200), decode[models.Balance](t, rec).Points)

	rec = do(t, srv, call{method: http.MethodGet, path: "/v1/projects/" + project.Id + "/activity", user: "buyer"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), models.ActionSale)

	rec = do(t, srv, call{method: http.MethodGet, path: "/v1/projects/missing/book", user: "buyer"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPresaleRoutes(t *testing.T) {
	srv, ledger := newTestServer(t)
	ctx := context.Background()
	seedUser(t, ledger, "carol")
	seedUser(t, ledger, "dan")

	presale, err := ledger.Store().CreatePresale(ctx, store.CreatePresaleParams{
		Name:             "genesis",
		Supply:           3,
		MaxSupplyPerUser: 2,
		PricePerEntry:    decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	path := "/v1/presales/" + presale.Id + "/intents"
	rec := do(t, srv, call{method: http.MethodPost, path: path, body: gin.H{"wallet_address": addr("carol"), "entry_amount": 3}, user: "carol"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, call{method: http.MethodPost, path: path, body: gin.H{"wallet_address": addr("carol"), "entry_amount": 2}, user: "carol"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	intent := decode[models.PresaleEntryIntent](t, rec)

	rec = do(t, srv, call{method: http.MethodGet, path: "/v1/presales/" + presale.Id, user: "carol"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[models.PresaleAvailability](t, rec).Remaining)

	rec = do(t, srv, call{method: http.MethodGet, path: "/v1/intents/" + intent.Id, user: "dan"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, call{method: http.MethodPost, path: "/v1/intents/" + intent.Id + "/cancel", user: "dan"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, srv, call{method: http.MethodPost, path: "/v1/intents/" + intent.Id + "/confirm", body: gin.H{"signature": sig("unpaid")}, user: "carol"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, call{method: http.MethodPost, path: "/v1/intents/" + intent.Id + "/cancel", user: "carol"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.IntentCancelled, decode[models.PresaleEntryIntent](t, rec).Status)

	rec = do(t, srv, call{method: http.MethodPost, path: "/v1/presales/missing/intents", body: gin.H{"wallet_address": addr("carol"), "entry_amount": 1}, user: "carol"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfirmConflictHidesBoundIntent(t *testing.T) {
	srv, ledger := newTestServer(t)
	ctx := context.Background()
	seedUser(t, ledger, "carol")

	presale, err := ledger.Store().CreatePresale(ctx, store.CreatePresaleParams{
		Name:             "genesis",
		Supply:           5,
		MaxSupplyPerUser: 5,
		PricePerEntry:    decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	payment := sig("carol-presale-payment")
	_, _, err = ledger.Store().ReserveDeposit(ctx, store.ReserveDepositParams{
		Signature:    payment,
		Sender:       addr("carol"),
		TokenAddress: "PresaleMint",
		Amount:       decimal.NewFromInt(10),
		UserId:       "carol",
		Asset:        models.AssetPresale,
	})
	require.NoError(t, err)
	_, _, err = ledger.Store().ApplyDeposit(ctx, payment)
	require.NoError(t, err)

	path := "/v1/presales/" + presale.Id + "/intents"
	intentBody := gin.H{"wallet_address": addr("carol"), "entry_amount": 1}

	rec := do(t, srv, call{method: http.MethodPost, path: path, body: intentBody, user: "carol"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[models.PresaleEntryIntent](t, rec)

	rec = do(t, srv, call{method: http.MethodPost, path: "/v1/intents/" + first.Id + "/confirm", body: gin.H{"signature": payment}, user: "carol"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, srv, call{method: http.MethodPost, path: path, body: intentBody, user: "carol"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	second := decode[models.PresaleEntryIntent](t, rec)

	rec = do(t, srv, call{method: http.MethodPost, path: "/v1/intents/" + second.Id + "/confirm", body: gin.H{"signature": payment}, user: "carol"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NotContains(t, rec.Body.String(), first.Id)
	assert.Equal(t, store.ErrSignatureConflict.Error(), decode[gin.H](t, rec)["error"])
}

func TestPublicMessage(t *testing.T) {
	wrapped := fmt.Errorf("%w: payment already confirms intent intent-123", store.ErrSignatureConflict)
	assert.Equal(t, store.ErrSignatureConflict.Error(), publicMessage(statusFor(wrapped), wrapped))

	missing := fmt.Errorf("%w: withdrawal wd-9", store.ErrNotFound)
	assert.Equal(t, "not found", publicMessage(statusFor(missing), missing))

	invalid := fmt.Errorf("%w: points cost must be positive", store.ErrInvalidInput)
	assert.Equal(t, invalid.Error(), publicMessage(statusFor(invalid), invalid))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{store.ErrInvalidInput, http.StatusBadRequest},
		{store.ErrForbidden, http.StatusForbidden},
		{store.ErrNotHolder, http.StatusForbidden},
		{store.ErrUserNotFound, http.StatusNotFound},
		{store.ErrSupplyExceeded, http.StatusConflict},
		{store.ErrWithdrawalOutstanding, http.StatusConflict},
		{store.ErrNotClaimed, http.StatusConflict},
		{store.ErrReconciliationMismatch, http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
