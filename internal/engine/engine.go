// Package engine implementa as operações do mercado: colocação de apostas,
// liquidação em duas fases, marketplace secundário e reconciliação de
// créditos. Toda mutação de estado passa por uma transação do ledger.
package engine

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/bet-market-engine/internal/ledger"
	"github.com/radieske/bet-market-engine/internal/market"
)

type Engine struct {
	store ledger.Store
	log   *zap.Logger

	now   func() time.Time
	newID func() string

	// Callbacks opcionais, disparados fora da transação (broadcast, métricas).
	OnOddsUpdated  func(ev *market.Event)
	OnTradeSettled func(st SettledTrade)
}

// SettledTrade descreve o desfecho de uma trade após a liquidação.
type SettledTrade struct {
	TradeID string
	UserID  string
	EventID string
	Status  market.TradeStatus
	Payout  float64
	Pnl     float64
}

func New(store ledger.Store, log *zap.Logger) *Engine {
	return &Engine{
		store: store,
		log:   log,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// GetWallet retorna o usuário, criando-o com saldo zero no primeiro acesso.
func (e *Engine) GetWallet(ctx context.Context, userID string) (*market.User, error) {
	if userID == "" {
		return nil, market.Errorf(market.CodeUnauthenticated, "missing user id")
	}
	var out *market.User
	err := e.store.RunTransaction(ctx, func(tx ledger.Tx) error {
		u, err := e.getOrCreateUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, fromStore(err, "user not found")
	}
	return out, nil
}

// Deposit credita moeda virtual na carteira e retorna o saldo resultante.
func (e *Engine) Deposit(ctx context.Context, userID string, amount float64) (float64, error) {
	if userID == "" {
		return 0, market.Errorf(market.CodeUnauthenticated, "missing user id")
	}
	if !validAmount(amount) {
		return 0, market.Errorf(market.CodeInvalidArgument, "deposit amount must be a positive number")
	}
	var balance float64
	err := e.store.RunTransaction(ctx, func(tx ledger.Tx) error {
		u, err := e.getOrCreateUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := tx.IncrementWallet(ctx, userID, amount); err != nil {
			return err
		}
		balance = u.Wallet + amount
		return nil
	})
	if err != nil {
		return 0, fromStore(err, "user not found")
	}
	e.log.Info("depósito aplicado",
		zap.String("user_id", userID),
		zap.Float64("amount", amount))
	return balance, nil
}

func (e *Engine) GetTrade(ctx context.Context, tradeID string) (*market.Trade, error) {
	t, err := e.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, fromStore(err, "trade not found")
	}
	return t, nil
}

func (e *Engine) GetEvent(ctx context.Context, eventID string) (*market.Event, error) {
	ev, err := e.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fromStore(err, "event not found")
	}
	return ev, nil
}

func (e *Engine) ListEvents(ctx context.Context) ([]*market.Event, error) {
	evs, err := e.store.ListEvents(ctx)
	if err != nil {
		return nil, fromStore(err, "")
	}
	return evs, nil
}

func (e *Engine) getOrCreateUser(ctx context.Context, tx ledger.Tx, id string) (*market.User, error) {
	u, err := tx.GetUser(ctx, id)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, err
	}
	u = &market.User{ID: id, CreatedAt: e.now()}
	if err := tx.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// fromStore converte erros do ledger para o vocabulário do engine; erros já
// tipados passam intactos.
func fromStore(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	var me *market.Error
	if errors.As(err, &me) {
		return err
	}
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		if notFoundMsg == "" {
			notFoundMsg = "not found"
		}
		return market.Errorf(market.CodeNotFound, "%s", notFoundMsg)
	case errors.Is(err, ledger.ErrConflict):
		return market.WrapErr(market.CodeAborted, err, "concurrent update, retry the request")
	}
	return market.WrapErr(market.CodeInternal, err, "storage failure")
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func sortedKeys(m map[string]*ledger.UserDelta) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
