package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/radieske/bet-market-engine/internal/market"
)

// Memory implementa Store em memória: um mutex único serializa as
// transações (writer único, sem conflito a repetir) e as escritas de uma
// transação ficam em staging até o commit, tudo-ou-nada como no banco.
// Usado nos testes do engine e em execução local sem Postgres.
type Memory struct {
	mu      sync.Mutex
	users   map[string]*market.User
	events  map[string]*market.Event
	trades  map[string]*market.Trade
	history []OddsRecord
}

func NewMemory() *Memory {
	return &Memory{
		users:  make(map[string]*market.User),
		events: make(map[string]*market.Event),
		trades: make(map[string]*market.Trade),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) RunTransaction(_ context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		store:  m,
		users:  make(map[string]*market.User),
		events: make(map[string]*market.Event),
		trades: make(map[string]*market.Trade),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *Memory) GetUser(_ context.Context, id string) (*market.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (m *Memory) GetEvent(_ context.Context, id string) (*market.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyEvent(e), nil
}

func (m *Memory) GetTrade(_ context.Context, id string) (*market.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTrade(t), nil
}

func (m *Memory) ListEvents(_ context.Context) ([]*market.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*market.Event, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, copyEvent(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) PendingTradesByEvent(_ context.Context, eventID string) ([]*market.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingLocked(eventID), nil
}

func (m *Memory) pendingLocked(eventID string) []*market.Trade {
	var out []*market.Trade
	for _, t := range m.trades {
		if t.EventID == eventID && t.Status == market.TradePending {
			out = append(out, copyTrade(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *Memory) ResolveTrades(_ context.Context, rs []TradeResolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rs {
		t, ok := m.trades[r.TradeID]
		if !ok || t.Status != market.TradePending {
			continue
		}
		t.Status = r.Status
		t.CreditApplied = false
	}
	return nil
}

func (m *Memory) ApplyUserDelta(_ context.Context, d UserDelta) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[d.UserID]
	if !ok {
		return 0, ErrNotFound
	}
	// só credita trades cujo marcador ainda não foi reivindicado
	claimed := 0
	for _, c := range d.Credits {
		t, ok := m.trades[c.TradeID]
		if !ok || t.CreditApplied {
			continue
		}
		t.CreditApplied = true
		u.Wallet += c.Wallet
		u.Pnl += c.Pnl
		claimed++
	}
	return claimed, nil
}

func (m *Memory) UnappliedResolutions(_ context.Context) ([]*market.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*market.Trade
	for _, t := range m.trades {
		if (t.Status == market.TradeWon || t.Status == market.TradeLost) && !t.CreditApplied {
			out = append(out, copyTrade(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// memTx acumula escritas em staging; leituras enxergam as próprias
// escritas (read-your-writes) por cima do estado commitado.
type memTx struct {
	store  *Memory
	users  map[string]*market.User
	events map[string]*market.Event
	trades map[string]*market.Trade
	hist   []OddsRecord
}

func (tx *memTx) commit() {
	for id, u := range tx.users {
		tx.store.users[id] = u
	}
	for id, e := range tx.events {
		tx.store.events[id] = e
	}
	for id, t := range tx.trades {
		tx.store.trades[id] = t
	}
	tx.store.history = append(tx.store.history, tx.hist...)
}

func (tx *memTx) GetUser(_ context.Context, id string) (*market.User, error) {
	if u, ok := tx.users[id]; ok {
		return copyUser(u), nil
	}
	if u, ok := tx.store.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, ErrNotFound
}

func (tx *memTx) GetEvent(_ context.Context, id string) (*market.Event, error) {
	if e, ok := tx.events[id]; ok {
		return copyEvent(e), nil
	}
	if e, ok := tx.store.events[id]; ok {
		return copyEvent(e), nil
	}
	return nil, ErrNotFound
}

func (tx *memTx) GetTrade(_ context.Context, id string) (*market.Trade, error) {
	if t, ok := tx.trades[id]; ok {
		return copyTrade(t), nil
	}
	if t, ok := tx.store.trades[id]; ok {
		return copyTrade(t), nil
	}
	return nil, ErrNotFound
}

func (tx *memTx) PendingTradesByEvent(_ context.Context, eventID string) ([]*market.Trade, error) {
	seen := make(map[string]bool, len(tx.trades))
	var out []*market.Trade
	for id, t := range tx.trades {
		seen[id] = true
		if t.EventID == eventID && t.Status == market.TradePending {
			out = append(out, copyTrade(t))
		}
	}
	for id, t := range tx.store.trades {
		if seen[id] {
			continue
		}
		if t.EventID == eventID && t.Status == market.TradePending {
			out = append(out, copyTrade(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (tx *memTx) CreateUser(_ context.Context, u *market.User) error {
	tx.users[u.ID] = copyUser(u)
	return nil
}

func (tx *memTx) CreateEvent(_ context.Context, e *market.Event) error {
	tx.events[e.ID] = copyEvent(e)
	return nil
}

func (tx *memTx) CreateTrade(_ context.Context, t *market.Trade) error {
	tx.trades[t.ID] = copyTrade(t)
	return nil
}

func (tx *memTx) UpdateEvent(ctx context.Context, e *market.Event) error {
	if _, err := tx.GetEvent(ctx, e.ID); err != nil {
		return err
	}
	tx.events[e.ID] = copyEvent(e)
	return nil
}

func (tx *memTx) UpdateTrade(ctx context.Context, t *market.Trade) error {
	if _, err := tx.GetTrade(ctx, t.ID); err != nil {
		return err
	}
	tx.trades[t.ID] = copyTrade(t)
	return nil
}

func (tx *memTx) AppendOddsHistory(_ context.Context, rec OddsRecord) error {
	tx.hist = append(tx.hist, rec)
	return nil
}

func (tx *memTx) IncrementWallet(ctx context.Context, userID string, delta float64) error {
	u, err := tx.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	u.Wallet += delta
	tx.users[userID] = u
	return nil
}

func (tx *memTx) AddOwnedTrade(ctx context.Context, userID, tradeID string) error {
	u, err := tx.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, id := range u.TradeIDs {
		if id == tradeID {
			return nil
		}
	}
	u.TradeIDs = append(u.TradeIDs, tradeID)
	tx.users[userID] = u
	return nil
}

func (tx *memTx) RemoveOwnedTrade(ctx context.Context, userID, tradeID string) error {
	u, err := tx.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	out := u.TradeIDs[:0]
	for _, id := range u.TradeIDs {
		if id != tradeID {
			out = append(out, id)
		}
	}
	u.TradeIDs = out
	tx.users[userID] = u
	return nil
}

// ---- cópias defensivas ----

func copyUser(u *market.User) *market.User {
	c := *u
	c.TradeIDs = append([]string(nil), u.TradeIDs...)
	return &c
}

func copyEvent(e *market.Event) *market.Event {
	c := *e
	c.TradeIDs = append([]string(nil), e.TradeIDs...)
	return &c
}

func copyTrade(t *market.Trade) *market.Trade {
	c := *t
	return &c
}
