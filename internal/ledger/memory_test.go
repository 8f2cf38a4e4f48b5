package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/bet-market-engine/internal/market"
)

func TestMemory_TransactionIsAllOrNothing(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.RunTransaction(ctx, func(tx Tx) error {
		return tx.CreateUser(ctx, &market.User{ID: "u1", Wallet: 100, CreatedAt: time.Now()})
	}))

	boom := errors.New("boom")
	err := m.RunTransaction(ctx, func(tx Tx) error {
		if err := tx.IncrementWallet(ctx, "u1", -60); err != nil {
			return err
		}
		if err := tx.AddOwnedTrade(ctx, "u1", "t1"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	u, err := m.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.InDelta(t, 100, u.Wallet, 1e-9)
	assert.Empty(t, u.TradeIDs)
}

func TestMemory_ReadYourWrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.RunTransaction(ctx, func(tx Tx) error {
		if err := tx.CreateUser(ctx, &market.User{ID: "u1"}); err != nil {
			return err
		}
		if err := tx.IncrementWallet(ctx, "u1", 40); err != nil {
			return err
		}
		u, err := tx.GetUser(ctx, "u1")
		if err != nil {
			return err
		}
		assert.InDelta(t, 40, u.Wallet, 1e-9)
		return nil
	})
	require.NoError(t, err)

	// fora da transação a escrita commitada aparece
	u, err := m.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.InDelta(t, 40, u.Wallet, 1e-9)
}

func TestMemory_OwnedTradeSetSemantics(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.RunTransaction(ctx, func(tx Tx) error {
		if err := tx.CreateUser(ctx, &market.User{ID: "u1"}); err != nil {
			return err
		}
		// união é idempotente
		if err := tx.AddOwnedTrade(ctx, "u1", "t1"); err != nil {
			return err
		}
		return tx.AddOwnedTrade(ctx, "u1", "t1")
	}))

	u, err := m.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, u.TradeIDs)

	require.NoError(t, m.RunTransaction(ctx, func(tx Tx) error {
		return tx.RemoveOwnedTrade(ctx, "u1", "t1")
	}))
	u, err = m.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, u.TradeIDs)
}

func TestMemory_ResolveAndUnapplied(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.RunTransaction(ctx, func(tx Tx) error {
		if err := tx.CreateUser(ctx, &market.User{ID: "u1"}); err != nil {
			return err
		}
		for _, id := range []string{"t1", "t2"} {
			if err := tx.CreateTrade(ctx, &market.Trade{
				ID: id, UserID: "u1", EventID: "ev1",
				Amount: 10, Status: market.TradePending,
				CreatedAt: time.Now(),
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, m.ResolveTrades(ctx, []TradeResolution{
		{TradeID: "t1", Status: market.TradeWon},
		{TradeID: "t2", Status: market.TradeLost},
	}))

	unapplied, err := m.UnappliedResolutions(ctx)
	require.NoError(t, err)
	require.Len(t, unapplied, 2)

	// só transiciona pendentes: repetir a resolução não regride o status
	require.NoError(t, m.ResolveTrades(ctx, []TradeResolution{
		{TradeID: "t1", Status: market.TradeLost},
	}))
	tr, err := m.GetTrade(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, market.TradeWon, tr.Status)

	delta := UserDelta{
		UserID: "u1",
		Credits: []TradeCredit{
			{TradeID: "t1", Wallet: 25, Pnl: 15},
			{TradeID: "t2", Pnl: -10},
		},
	}
	n, err := m.ApplyUserDelta(ctx, delta)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	unapplied, err = m.UnappliedResolutions(ctx)
	require.NoError(t, err)
	assert.Empty(t, unapplied)

	u, err := m.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.InDelta(t, 25, u.Wallet, 1e-9)
	assert.InDelta(t, 5, u.Pnl, 1e-9)

	// reaplicar o mesmo delta não reivindica nada nem duplica crédito
	n, err = m.ApplyUserDelta(ctx, delta)
	require.NoError(t, err)
	assert.Zero(t, n)

	u, err = m.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.InDelta(t, 25, u.Wallet, 1e-9)
	assert.InDelta(t, 5, u.Pnl, 1e-9)
}
