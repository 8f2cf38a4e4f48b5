package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/bet-market-engine/internal/engine"
	"github.com/radieske/bet-market-engine/internal/ledger"
	"github.com/radieske/bet-market-engine/internal/market"
	"github.com/radieske/bet-market-engine/internal/prior"
	"github.com/radieske/bet-market-engine/pkg/contracts/events"
)

func newTestProcessor(src prior.Source) (*Processor, *engine.Engine, *ledger.Memory) {
	store := ledger.NewMemory()
	eng := engine.New(store, zap.NewNop())
	p := NewProcessor(store, eng, src, 0.5, zap.NewNop())
	return p, eng, store
}

func update(id, kind, status string) events.EventUpdate {
	return events.EventUpdate{
		EventID:     id,
		Sport:       "basketball",
		Kind:        kind,
		HomeTeam:    "Lakers",
		AwayTeam:    "Celtics",
		Status:      status,
		ScheduledAt: time.Now(),
		UpdatedAt:   time.Now(),
		Source:      "feed-simulator",
	}
}

func TestProcess_CreatesEventWithPrior(t *testing.T) {
	src := prior.NewStatic()
	src.Put("ev1", prior.Estimate{Home: 65, Away: 35})
	p, _, store := newTestProcessor(src)
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, update("ev1", "two_way", "scheduled")))

	ev, err := store.GetEvent(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, market.KindTwoWay, ev.Kind)
	assert.InDelta(t, 65, ev.HomeOdds, 1e-9)
	assert.InDelta(t, 35, ev.AwayOdds, 1e-9)
	assert.InDelta(t, 65, ev.PriorHome, 1e-9)
	assert.InDelta(t, 0.5, ev.Alpha, 1e-9)
}

func TestProcess_DefaultsWhenNoPrior(t *testing.T) {
	p, _, store := newTestProcessor(prior.None{})
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, update("ev1", "three_way", "scheduled")))

	ev, err := store.GetEvent(ctx, "ev1")
	require.NoError(t, err)
	assert.InDelta(t, 50, ev.HomeOdds, 1e-9)
	assert.InDelta(t, 50, ev.AwayOdds, 1e-9)
	assert.InDelta(t, 20, ev.DrawOdds, 1e-9)
	// prior ausente fica zerado no evento; defaults entram só na odd
	assert.Zero(t, ev.PriorHome)
}

// Atualização de evento existente só toca campos de fixture; pools e odds
// são estado do engine.
func TestProcess_UpdatesFixtureOnly(t *testing.T) {
	p, eng, store := newTestProcessor(prior.None{})
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, update("ev1", "two_way", "scheduled")))

	_, err := eng.Deposit(ctx, "u1", 100)
	require.NoError(t, err)
	_, err = eng.PlaceBet(ctx, "u1", "ev1", market.OutcomeHome, 50, 0)
	require.NoError(t, err)

	before, err := store.GetEvent(ctx, "ev1")
	require.NoError(t, err)

	upd := update("ev1", "two_way", "in_progress")
	upd.HomeScore = 1
	require.NoError(t, p.Process(ctx, upd))

	after, err := store.GetEvent(ctx, "ev1")
	require.NoError(t, err)
	assert.Equal(t, market.EventInProgress, after.Status)
	assert.Equal(t, 1, after.HomeScore)
	assert.InDelta(t, before.PoolHome, after.PoolHome, 1e-9)
	assert.InDelta(t, before.HomeOdds, after.HomeOdds, 1e-9)
	assert.Equal(t, before.TradeIDs, after.TradeIDs)
}

func TestProcess_FinalTriggersSettlement(t *testing.T) {
	p, eng, store := newTestProcessor(prior.None{})
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, update("ev1", "two_way", "scheduled")))

	_, err := eng.Deposit(ctx, "u1", 100)
	require.NoError(t, err)
	tr, err := eng.PlaceBet(ctx, "u1", "ev1", market.OutcomeHome, 50, 0)
	require.NoError(t, err)

	var settledCount int
	p.OnSettled = func() { settledCount++ }

	upd := update("ev1", "two_way", "final")
	upd.HomeScore = 2
	upd.AwayScore = 1
	require.NoError(t, p.Process(ctx, upd))
	assert.Equal(t, 1, settledCount)

	got, err := store.GetTrade(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, market.TradeWon, got.Status)

	u, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.InDelta(t, 50+tr.ExpectedPayout, u.Wallet, 1e-9)

	// reprocessar a mesma mensagem não liquida de novo nem duplica crédito
	require.NoError(t, p.Process(ctx, upd))
	u, err = store.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.InDelta(t, 50+tr.ExpectedPayout, u.Wallet, 1e-9)
}

// countingSource registra quantas vezes o estimador foi consultado.
type countingSource struct{ calls int }

func (c *countingSource) Estimate(context.Context, string) (prior.Estimate, bool) {
	c.calls++
	return prior.Estimate{Home: 60, Away: 40}, true
}

// O estimador é consultado uma vez por evento, na primeira aparição;
// atualizações seguintes do mesmo evento não geram novas consultas.
func TestProcess_PriorQueriedOnlyOnFirstSighting(t *testing.T) {
	src := &countingSource{}
	p, _, store := newTestProcessor(src)
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, update("ev1", "two_way", "scheduled")))
	assert.Equal(t, 1, src.calls)

	upd := update("ev1", "two_way", "in_progress")
	upd.HomeScore = 1
	require.NoError(t, p.Process(ctx, upd))
	upd.Status = "final"
	require.NoError(t, p.Process(ctx, upd))
	assert.Equal(t, 1, src.calls)

	// evento novo consulta de novo
	require.NoError(t, p.Process(ctx, update("ev2", "two_way", "scheduled")))
	assert.Equal(t, 2, src.calls)

	ev, err := store.GetEvent(ctx, "ev1")
	require.NoError(t, err)
	assert.InDelta(t, 60, ev.PriorHome, 1e-9)
}

func TestProcess_Validation(t *testing.T) {
	p, _, _ := newTestProcessor(prior.None{})
	ctx := context.Background()

	assert.Error(t, p.Process(ctx, update("", "two_way", "scheduled")))
	assert.Error(t, p.Process(ctx, update("ev1", "five_way", "scheduled")))
	assert.Error(t, p.Process(ctx, update("ev1", "two_way", "paused")))
}
