package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/radieske/bet-market-engine/internal/ledger"
	"github.com/radieske/bet-market-engine/internal/market"
)

// SettleEvent liquida todas as trades pendentes de um evento encerrado.
// Fase um grava os desfechos em lote; fase dois aplica os incrementos de
// carteira/P&L por usuário e vira o marcador de crédito na mesma unidade
// atômica. Se a fase dois falhar no meio, a varredura de reconciliação
// completa os créditos depois. Reexecutar num evento já liquidado é no-op.
func (e *Engine) SettleEvent(ctx context.Context, eventID string) error {
	ev, err := e.store.GetEvent(ctx, eventID)
	if err != nil {
		return fromStore(err, "event not found")
	}
	if !ev.Terminal() {
		return market.Errorf(market.CodeFailedPrecondition, "event %s is not final", eventID)
	}
	winner := winningOutcome(ev)

	pending, err := e.store.PendingTradesByEvent(ctx, eventID)
	if err != nil {
		return fromStore(err, "")
	}
	if len(pending) == 0 {
		return nil
	}

	resolutions := make([]ledger.TradeResolution, 0, len(pending))
	deltas := make(map[string]*ledger.UserDelta)
	settled := make([]SettledTrade, 0, len(pending))

	for _, t := range pending {
		st := SettledTrade{
			TradeID: t.ID,
			UserID:  t.UserID,
			EventID: eventID,
			Status:  market.TradeLost,
			Pnl:     -t.Amount,
		}
		if winner != "" && t.Outcome == winner {
			st.Status = market.TradeWon
			st.Payout = t.ExpectedPayout
			st.Pnl = t.ExpectedPayout - t.Amount
		}
		resolutions = append(resolutions, ledger.TradeResolution{TradeID: t.ID, Status: st.Status})
		settled = append(settled, st)

		d := deltas[t.UserID]
		if d == nil {
			d = &ledger.UserDelta{UserID: t.UserID}
			deltas[t.UserID] = d
		}
		d.Credits = append(d.Credits, ledger.TradeCredit{
			TradeID: t.ID,
			Wallet:  st.Payout,
			Pnl:     st.Pnl,
		})
	}

	if err := e.store.ResolveTrades(ctx, resolutions); err != nil {
		return fromStore(err, "")
	}

	var errs error
	for _, userID := range sortedKeys(deltas) {
		if _, err := e.store.ApplyUserDelta(ctx, *deltas[userID]); err != nil {
			// o marcador credit_applied segue falso; a reconciliação completa
			e.log.Error("crédito de liquidação falhou",
				zap.String("event_id", eventID),
				zap.String("user_id", userID),
				zap.Error(err))
			errs = errors.Join(errs, err)
		}
	}

	if e.OnTradeSettled != nil {
		for _, st := range settled {
			e.OnTradeSettled(st)
		}
	}

	e.log.Info("evento liquidado",
		zap.String("event_id", eventID),
		zap.String("winner", string(winner)),
		zap.Int("trades", len(pending)))

	if errs != nil {
		return market.WrapErr(market.CodeInternal, errs, "settlement credits partially applied")
	}
	return nil
}

// winningOutcome deriva o vencedor: campo explícito do feed quando presente,
// senão comparação de placar. Empate vence "draw" em eventos three_way;
// em two_way ninguém vence e todas as trades perdem.
func winningOutcome(ev *market.Event) market.Outcome {
	if ev.Result != "" {
		return market.Outcome(ev.Result)
	}
	switch {
	case ev.HomeScore > ev.AwayScore:
		return market.OutcomeHome
	case ev.AwayScore > ev.HomeScore:
		return market.OutcomeAway
	case ev.ThreeWay():
		return market.OutcomeDraw
	}
	return ""
}
