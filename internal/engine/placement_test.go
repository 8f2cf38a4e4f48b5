package engine

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/bet-market-engine/internal/market"
)

func TestPlaceBet_DebitsWalletAndMovesOdds(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	seedUser(t, store, "u1", 1000)
	seedEvent(t, store, twoWayEvent("ev1", 60, 40))

	tr, err := e.PlaceBet(ctx, "u1", "ev1", market.OutcomeHome, 100, 0)
	require.NoError(t, err)

	assert.Equal(t, market.TradePending, tr.Status)
	assert.InDelta(t, 60, tr.OddsAtPlacement, 1e-9)
	assert.InDelta(t, 100*100.0/60, tr.ExpectedPayout, 1e-9)
	assert.InDelta(t, 100, tr.StakeValue, 1e-9)

	u, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.InDelta(t, 900, u.Wallet, 1e-9)
	assert.Contains(t, u.TradeIDs, tr.ID)

	ev, err := store.GetEvent(ctx, "ev1")
	require.NoError(t, err)
	assert.InDelta(t, 100, ev.PoolHome, 1e-9)
	assert.Zero(t, ev.PoolAway)
	// movimento limitado pelo passo de suavização
	assert.InDelta(t, 60.1, ev.HomeOdds, 1e-9)
	assert.InDelta(t, 40.1, ev.AwayOdds, 1e-9)
	assert.Contains(t, ev.TradeIDs, tr.ID)
}

func TestPlaceBet_OddsHintLocked(t *testing.T) {
	e, store := newTestEngine()
	seedUser(t, store, "u1", 1000)
	seedEvent(t, store, twoWayEvent("ev1", 60, 40))

	tr, err := e.PlaceBet(context.Background(), "u1", "ev1", market.OutcomeHome, 100, 55)
	require.NoError(t, err)
	assert.InDelta(t, 55, tr.OddsAtPlacement, 1e-9)
	assert.InDelta(t, 100*100.0/55, tr.ExpectedPayout, 1e-9)
}

func TestPlaceBet_InsufficientFundsIsAllOrNothing(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	seedUser(t, store, "u1", 50)
	seedEvent(t, store, twoWayEvent("ev1", 60, 40))

	_, err := e.PlaceBet(ctx, "u1", "ev1", market.OutcomeHome, 100, 0)
	require.Equal(t, market.CodeFailedPrecondition, market.Code(err))

	u, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.InDelta(t, 50, u.Wallet, 1e-9)
	assert.Empty(t, u.TradeIDs)

	ev, err := store.GetEvent(ctx, "ev1")
	require.NoError(t, err)
	assert.Zero(t, ev.PoolHome)
	assert.InDelta(t, 60, ev.HomeOdds, 1e-9)
	assert.Empty(t, ev.TradeIDs)
}

func TestPlaceBet_Validation(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	seedUser(t, store, "u1", 1000)
	seedEvent(t, store, twoWayEvent("ev1", 60, 40))

	cases := []struct {
		name    string
		userID  string
		eventID string
		outcome market.Outcome
		amount  float64
		hint    float64
		want    market.ErrCode
	}{
		{"sem usuário", "", "ev1", market.OutcomeHome, 10, 0, market.CodeUnauthenticated},
		{"sem evento", "u1", "", market.OutcomeHome, 10, 0, market.CodeInvalidArgument},
		{"valor zero", "u1", "ev1", market.OutcomeHome, 0, 0, market.CodeInvalidArgument},
		{"valor negativo", "u1", "ev1", market.OutcomeHome, -5, 0, market.CodeInvalidArgument},
		{"valor NaN", "u1", "ev1", market.OutcomeHome, math.NaN(), 0, market.CodeInvalidArgument},
		{"resultado desconhecido", "u1", "ev1", market.Outcome("banana"), 10, 0, market.CodeInvalidArgument},
		{"empate em two_way", "u1", "ev1", market.OutcomeDraw, 10, 0, market.CodeInvalidArgument},
		{"odds negativa", "u1", "ev1", market.OutcomeHome, 10, -1, market.CodeInvalidArgument},
		{"evento inexistente", "u1", "nope", market.OutcomeHome, 10, 0, market.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.PlaceBet(ctx, tc.userID, tc.eventID, tc.outcome, tc.amount, tc.hint)
			assert.Equal(t, tc.want, market.Code(err))
		})
	}
}

func TestPlaceBet_RepricesPendingSiblings(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	seedUser(t, store, "u1", 1000)
	seedUser(t, store, "u2", 1000)
	seedEvent(t, store, twoWayEvent("ev1", 60, 40))

	first, err := e.PlaceBet(ctx, "u1", "ev1", market.OutcomeHome, 100, 0)
	require.NoError(t, err)
	require.InDelta(t, 60, first.OddsAtPlacement, 1e-9)

	// segunda aposta move a odd do mandante de 60.1 para 60.2
	_, err = e.PlaceBet(ctx, "u2", "ev1", market.OutcomeAway, 100, 0)
	require.NoError(t, err)

	ev, err := store.GetEvent(ctx, "ev1")
	require.NoError(t, err)
	require.InDelta(t, 60.2, ev.HomeOdds, 1e-9)

	got, err := store.GetTrade(ctx, first.ID)
	require.NoError(t, err)
	assert.InDelta(t, 100*60.2/60, got.StakeValue, 1e-9)
	// odds e payout travados na colocação não mudam
	assert.InDelta(t, 60, got.OddsAtPlacement, 1e-9)
	assert.InDelta(t, first.ExpectedPayout, got.ExpectedPayout, 1e-9)
}

func TestPlaceBet_ConcurrentConservesWallet(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	seedUser(t, store, "u1", 1000)
	seedEvent(t, store, twoWayEvent("ev1", 60, 40))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.PlaceBet(ctx, "u1", "ev1", market.OutcomeHome, 10, 0)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	u, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.InDelta(t, 900, u.Wallet, 1e-9)
	assert.Len(t, u.TradeIDs, 10)

	ev, err := store.GetEvent(ctx, "ev1")
	require.NoError(t, err)
	assert.InDelta(t, 100, ev.PoolHome, 1e-9)
	assert.Len(t, ev.TradeIDs, 10)
}
