package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/radieske/bet-market-engine/internal/ledger"
	"github.com/radieske/bet-market-engine/internal/market"
)

// ListForSale coloca uma trade pendente do chamador à venda pelo preço dado.
func (e *Engine) ListForSale(ctx context.Context, userID, tradeID string, price float64) (*market.Trade, error) {
	if userID == "" {
		return nil, market.Errorf(market.CodeUnauthenticated, "missing user id")
	}
	if tradeID == "" {
		return nil, market.Errorf(market.CodeInvalidArgument, "missing trade id")
	}
	if !validAmount(price) {
		return nil, market.Errorf(market.CodeInvalidArgument, "sale price must be a positive number")
	}

	var out *market.Trade
	err := e.store.RunTransaction(ctx, func(tx ledger.Tx) error {
		t, err := tx.GetTrade(ctx, tradeID)
		if err != nil {
			return err
		}
		if t.UserID != userID {
			return market.Errorf(market.CodeFailedPrecondition, "trade %s is not owned by the caller", tradeID)
		}
		if t.Status != market.TradePending {
			return market.Errorf(market.CodeFailedPrecondition, "trade %s is already settled", tradeID)
		}
		if t.ForSale {
			return market.Errorf(market.CodeFailedPrecondition, "trade %s is already listed", tradeID)
		}
		t.ForSale = true
		t.SalePrice = price
		t.UpdatedAt = e.now()
		out = t
		return tx.UpdateTrade(ctx, t)
	})
	if err != nil {
		return nil, fromStore(err, "trade not found")
	}

	e.log.Info("trade listada à venda",
		zap.String("trade_id", tradeID),
		zap.String("user_id", userID),
		zap.Float64("price", price))
	return out, nil
}

// Buy transfere uma trade listada para o comprador: débito do preço, crédito
// ao vendedor e troca de posse numa transação só. O vendedor fica registrado
// em SoldBy e a trade segue pendente, agora em nome do comprador.
func (e *Engine) Buy(ctx context.Context, buyerID, tradeID string) (*market.Trade, error) {
	if buyerID == "" {
		return nil, market.Errorf(market.CodeUnauthenticated, "missing user id")
	}
	if tradeID == "" {
		return nil, market.Errorf(market.CodeInvalidArgument, "missing trade id")
	}

	var out *market.Trade
	err := e.store.RunTransaction(ctx, func(tx ledger.Tx) error {
		t, err := tx.GetTrade(ctx, tradeID)
		if err != nil {
			return err
		}
		if !t.ForSale || t.Status != market.TradePending {
			return market.Errorf(market.CodeFailedPrecondition, "trade %s is not for sale", tradeID)
		}
		if t.UserID == buyerID {
			return market.Errorf(market.CodeFailedPrecondition, "cannot buy your own trade")
		}

		buyer, err := e.getOrCreateUser(ctx, tx, buyerID)
		if err != nil {
			return err
		}
		if t.SalePrice > buyer.Wallet {
			return market.Errorf(market.CodeFailedPrecondition,
				"insufficient funds: wallet %.2f, price %.2f", buyer.Wallet, t.SalePrice)
		}

		sellerID := t.UserID
		if err := tx.IncrementWallet(ctx, buyerID, -t.SalePrice); err != nil {
			return err
		}
		if err := tx.IncrementWallet(ctx, sellerID, t.SalePrice); err != nil {
			return err
		}
		if err := tx.RemoveOwnedTrade(ctx, sellerID, tradeID); err != nil {
			return err
		}
		if err := tx.AddOwnedTrade(ctx, buyerID, tradeID); err != nil {
			return err
		}

		t.UserID = buyerID
		t.SoldBy = sellerID
		t.ForSale = false
		t.UpdatedAt = e.now()
		out = t
		return tx.UpdateTrade(ctx, t)
	})
	if err != nil {
		return nil, fromStore(err, "trade not found")
	}

	e.log.Info("trade transferida",
		zap.String("trade_id", tradeID),
		zap.String("buyer_id", buyerID),
		zap.String("seller_id", out.SoldBy),
		zap.Float64("price", out.SalePrice))
	return out, nil
}
