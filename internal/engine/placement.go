package engine

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/radieske/bet-market-engine/internal/ledger"
	"github.com/radieske/bet-market-engine/internal/market"
	"github.com/radieske/bet-market-engine/internal/market/odds"
)

// PlaceBet coloca uma aposta numa transação só: debita a carteira, cria a
// trade com as odds travadas, atualiza pool e odds do evento, grava o
// histórico e reavalia o stake_value das trades pendentes afetadas.
// oddsHint > 0 trava a odd informada pelo cliente em vez da corrente.
func (e *Engine) PlaceBet(ctx context.Context, userID, eventID string, outcome market.Outcome, amount, oddsHint float64) (*market.Trade, error) {
	if userID == "" {
		return nil, market.Errorf(market.CodeUnauthenticated, "missing user id")
	}
	if eventID == "" {
		return nil, market.Errorf(market.CodeInvalidArgument, "missing event id")
	}
	if !validAmount(amount) {
		return nil, market.Errorf(market.CodeInvalidArgument, "bet amount must be a positive number")
	}
	switch outcome {
	case market.OutcomeHome, market.OutcomeAway, market.OutcomeDraw:
	default:
		return nil, market.Errorf(market.CodeInvalidArgument, "unknown outcome %q", outcome)
	}
	if oddsHint != 0 && (math.IsNaN(oddsHint) || math.IsInf(oddsHint, 0) || oddsHint < 0) {
		return nil, market.Errorf(market.CodeInvalidArgument, "odds must be a positive number")
	}

	var (
		trade   *market.Trade
		updated *market.Event
	)
	err := e.store.RunTransaction(ctx, func(tx ledger.Tx) error {
		u, err := e.getOrCreateUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if amount > u.Wallet {
			return market.Errorf(market.CodeFailedPrecondition,
				"insufficient funds: wallet %.2f, bet %.2f", u.Wallet, amount)
		}

		ev, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if !ev.ValidOutcome(outcome) {
			return market.Errorf(market.CodeInvalidArgument,
				"outcome %q not offered for %s events", outcome, ev.Kind)
		}

		oddsAt := ev.OddsFor(outcome)
		if oddsHint > 0 {
			oddsAt = oddsHint
		}
		if oddsAt <= 0 {
			return market.Errorf(market.CodeFailedPrecondition,
				"event %s has no odds for %s yet", eventID, outcome)
		}

		now := e.now()
		trade = &market.Trade{
			ID:              e.newID(),
			UserID:          userID,
			EventID:         eventID,
			Amount:          amount,
			Outcome:         outcome,
			OddsAtPlacement: oddsAt,
			ExpectedPayout:  amount * 100 / oddsAt,
			StakeValue:      amount,
			Status:          market.TradePending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.CreateTrade(ctx, trade); err != nil {
			return err
		}
		if err := tx.IncrementWallet(ctx, userID, -amount); err != nil {
			return err
		}
		if err := tx.AddOwnedTrade(ctx, userID, trade.ID); err != nil {
			return err
		}

		switch outcome {
		case market.OutcomeHome:
			ev.PoolHome += amount
		case market.OutcomeAway:
			ev.PoolAway += amount
		case market.OutcomeDraw:
			ev.PoolDraw += amount
		}

		prev := odds.Line{Home: ev.HomeOdds, Away: ev.AwayOdds, Draw: ev.DrawOdds}
		line := odds.Compute(odds.Input{
			ThreeWay: ev.ThreeWay(),
			Pools:    odds.Pools{Home: ev.PoolHome, Away: ev.PoolAway, Draw: ev.PoolDraw},
			Prior:    odds.Line{Home: ev.PriorHome, Away: ev.PriorAway, Draw: ev.PriorDraw},
			Previous: prev,
			Alpha:    ev.Alpha,
		})
		ev.HomeOdds, ev.AwayOdds, ev.DrawOdds = line.Home, line.Away, line.Draw
		ev.TradeIDs = append(ev.TradeIDs, trade.ID)
		ev.UpdatedAt = now
		if err := tx.UpdateEvent(ctx, ev); err != nil {
			return err
		}
		if err := tx.AppendOddsHistory(ctx, ledger.OddsRecord{
			EventID: ev.ID,
			Home:    line.Home,
			Away:    line.Away,
			Draw:    line.Draw,
			Source:  "bet",
			At:      now,
		}); err != nil {
			return err
		}

		// trades pendentes cujo resultado mudou de odd têm o stake_value
		// reavaliado proporcionalmente à odd travada na colocação
		siblings, err := tx.PendingTradesByEvent(ctx, eventID)
		if err != nil {
			return err
		}
		for _, s := range siblings {
			if s.ID == trade.ID || s.OddsAtPlacement <= 0 {
				continue
			}
			newOdd := lineFor(line, s.Outcome)
			if newOdd == lineFor(prev, s.Outcome) {
				continue
			}
			s.StakeValue = s.Amount * newOdd / s.OddsAtPlacement
			s.UpdatedAt = now
			if err := tx.UpdateTrade(ctx, s); err != nil {
				return err
			}
		}

		updated = ev
		return nil
	})
	if err != nil {
		return nil, fromStore(err, "event not found")
	}

	if e.OnOddsUpdated != nil {
		e.OnOddsUpdated(updated)
	}
	e.log.Info("aposta colocada",
		zap.String("trade_id", trade.ID),
		zap.String("user_id", userID),
		zap.String("event_id", eventID),
		zap.String("outcome", string(outcome)),
		zap.Float64("amount", amount),
		zap.Float64("odds", trade.OddsAtPlacement))
	return trade, nil
}

func lineFor(l odds.Line, o market.Outcome) float64 {
	switch o {
	case market.OutcomeHome:
		return l.Home
	case market.OutcomeAway:
		return l.Away
	case market.OutcomeDraw:
		return l.Draw
	}
	return 0
}
