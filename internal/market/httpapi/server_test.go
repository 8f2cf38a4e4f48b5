package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/bet-market-engine/internal/engine"
	"github.com/radieske/bet-market-engine/internal/ledger"
	"github.com/radieske/bet-market-engine/internal/market"
	"github.com/radieske/bet-market-engine/internal/market/dto"
)

func newTestServer(t *testing.T) (http.Handler, ledger.Store) {
	t.Helper()
	store := ledger.NewMemory()
	eng := engine.New(store, zap.NewNop())
	return New(eng, nil, zap.NewNop()).Router(), store
}

func seedEvent(t *testing.T, store ledger.Store, ev *market.Event) {
	t.Helper()
	err := store.RunTransaction(context.Background(), func(tx ledger.Tx) error {
		return tx.CreateEvent(context.Background(), ev)
	})
	require.NoError(t, err)
}

func testEvent(id string) *market.Event {
	return &market.Event{
		ID:          id,
		Sport:       "basketball",
		Kind:        market.KindTwoWay,
		HomeTeam:    "Lakers",
		AwayTeam:    "Celtics",
		ScheduledAt: time.Now(),
		Status:      market.EventScheduled,
		HomeOdds:    60,
		AwayOdds:    40,
		PriorHome:   60,
		PriorAway:   40,
		Alpha:       0.5,
	}
}

func doReq(t *testing.T, h http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set(userHeader, user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAPI_WalletFlow(t *testing.T) {
	h, _ := newTestServer(t)

	rec := doReq(t, h, http.MethodGet, "/v1/wallet", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	w := decode[dto.WalletResponse](t, rec)
	assert.Equal(t, "u1", w.UserID)
	assert.Zero(t, w.Wallet)

	rec = doReq(t, h, http.MethodPost, "/v1/wallet/deposit", "u1", dto.DepositRequest{Amount: 500})
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[dto.DepositResponse](t, rec)
	assert.InDelta(t, 500, d.Wallet, 1e-9)
}

func TestAPI_PlaceAndGetTrade(t *testing.T) {
	h, store := newTestServer(t)
	seedEvent(t, store, testEvent("ev1"))

	rec := doReq(t, h, http.MethodPost, "/v1/wallet/deposit", "u1", dto.DepositRequest{Amount: 500})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doReq(t, h, http.MethodPost, "/v1/trades", "u1", dto.PlaceTradeRequest{
		EventID: "ev1",
		Outcome: "home",
		Amount:  100,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	tr := decode[dto.TradeResponse](t, rec)
	assert.Equal(t, "pending", tr.Status)
	assert.InDelta(t, 60, tr.OddsAtPlacement, 1e-9)
	assert.InDelta(t, 100*100.0/60, tr.ExpectedPayout, 1e-9)

	rec = doReq(t, h, http.MethodGet, "/v1/trades/"+tr.ID, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[dto.TradeResponse](t, rec)
	assert.Equal(t, tr.ID, got.ID)
}

func TestAPI_SellAndBuy(t *testing.T) {
	h, store := newTestServer(t)
	seedEvent(t, store, testEvent("ev1"))

	doReq(t, h, http.MethodPost, "/v1/wallet/deposit", "seller", dto.DepositRequest{Amount: 100})
	doReq(t, h, http.MethodPost, "/v1/wallet/deposit", "buyer", dto.DepositRequest{Amount: 100})

	rec := doReq(t, h, http.MethodPost, "/v1/trades", "seller", dto.PlaceTradeRequest{
		EventID: "ev1", Outcome: "home", Amount: 40,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	tr := decode[dto.TradeResponse](t, rec)

	rec = doReq(t, h, http.MethodPost, "/v1/trades/"+tr.ID+"/sell", "seller", dto.SellTradeRequest{Price: 60})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doReq(t, h, http.MethodPost, "/v1/trades/"+tr.ID+"/buy", "buyer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bought := decode[dto.TradeResponse](t, rec)
	assert.Equal(t, "buyer", bought.UserID)
	assert.Equal(t, "seller", bought.SoldBy)

	rec = doReq(t, h, http.MethodGet, "/v1/wallet", "buyer", nil)
	w := decode[dto.WalletResponse](t, rec)
	assert.InDelta(t, 40, w.Wallet, 1e-9)
}

func TestAPI_EventsAndOdds(t *testing.T) {
	h, store := newTestServer(t)
	seedEvent(t, store, testEvent("ev1"))

	rec := doReq(t, h, http.MethodGet, "/v1/events", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	evs := decode[[]dto.EventResponse](t, rec)
	require.Len(t, evs, 1)
	assert.Equal(t, "ev1", evs[0].ID)

	rec = doReq(t, h, http.MethodGet, "/v1/events/ev1/odds", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	odds := decode[dto.OddsResponse](t, rec)
	assert.InDelta(t, 60, odds.Home, 1e-9)
	assert.InDelta(t, 40, odds.Away, 1e-9)
}

func TestAPI_ErrorMapping(t *testing.T) {
	h, store := newTestServer(t)
	seedEvent(t, store, testEvent("ev1"))
	doReq(t, h, http.MethodPost, "/v1/wallet/deposit", "u1", dto.DepositRequest{Amount: 10})

	cases := []struct {
		name   string
		method string
		path   string
		user   string
		body   any
		status int
		code   string
	}{
		{"aposta sem identidade", http.MethodPost, "/v1/trades", "",
			dto.PlaceTradeRequest{EventID: "ev1", Outcome: "home", Amount: 5},
			http.StatusUnauthorized, "unauthenticated"},
		{"valor inválido", http.MethodPost, "/v1/trades", "u1",
			dto.PlaceTradeRequest{EventID: "ev1", Outcome: "home", Amount: -5},
			http.StatusBadRequest, "invalid_argument"},
		{"evento inexistente", http.MethodPost, "/v1/trades", "u1",
			dto.PlaceTradeRequest{EventID: "nope", Outcome: "home", Amount: 5},
			http.StatusNotFound, "not_found"},
		{"saldo insuficiente", http.MethodPost, "/v1/trades", "u1",
			dto.PlaceTradeRequest{EventID: "ev1", Outcome: "home", Amount: 999},
			http.StatusConflict, "failed_precondition"},
		{"trade inexistente", http.MethodGet, "/v1/trades/nope", "u1", nil,
			http.StatusNotFound, "not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doReq(t, h, tc.method, tc.path, tc.user, tc.body)
			require.Equal(t, tc.status, rec.Code)
			e := decode[dto.ErrorResponse](t, rec)
			assert.Equal(t, tc.code, e.Code)
		})
	}
}

func TestAPI_InvalidJSONBody(t *testing.T) {
	h, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/trades", bytes.NewBufferString("{nope"))
	req.Header.Set(userHeader, "u1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
