package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/radieske/bet-market-engine/internal/ledger"
	"github.com/radieske/bet-market-engine/internal/market"
)

// Reconcile varre trades resolvidas cujo crédito nunca foi aplicado (processo
// caiu entre as duas fases da liquidação) e reexecuta a fase dois para elas.
// Retorna quantas trades foram creditadas.
func (e *Engine) Reconcile(ctx context.Context) (int, error) {
	trades, err := e.store.UnappliedResolutions(ctx)
	if err != nil {
		return 0, fromStore(err, "")
	}
	if len(trades) == 0 {
		return 0, nil
	}

	deltas := make(map[string]*ledger.UserDelta)
	for _, t := range trades {
		d := deltas[t.UserID]
		if d == nil {
			d = &ledger.UserDelta{UserID: t.UserID}
			deltas[t.UserID] = d
		}
		credit := ledger.TradeCredit{TradeID: t.ID, Pnl: -t.Amount}
		if t.Status == market.TradeWon {
			credit.Wallet = t.ExpectedPayout
			credit.Pnl = t.ExpectedPayout - t.Amount
		}
		d.Credits = append(d.Credits, credit)
	}

	applied := 0
	var errs error
	for _, userID := range sortedKeys(deltas) {
		// trades que a liquidação creditou no meio do caminho não contam
		n, err := e.store.ApplyUserDelta(ctx, *deltas[userID])
		if err != nil {
			e.log.Error("reconciliação falhou para o usuário",
				zap.String("user_id", userID),
				zap.Error(err))
			errs = errors.Join(errs, err)
			continue
		}
		applied += n
	}

	if applied > 0 {
		e.log.Info("reconciliação aplicou créditos pendentes", zap.Int("trades", applied))
	}
	if errs != nil {
		return applied, market.WrapErr(market.CodeInternal, errs, "reconcile partially applied")
	}
	return applied, nil
}
