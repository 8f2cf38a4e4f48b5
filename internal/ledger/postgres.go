package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/radieske/bet-market-engine/internal/market"
)

const (
	// orçamento de retry de RunTransaction antes de desistir com ErrConflict
	maxTxAttempts = 5

	eventCols = `id, sport, kind, home_team, away_team, scheduled_at, status,
		home_score, away_score, result, home_odds, away_odds, draw_odds,
		prior_home, prior_away, prior_draw, pool_home, pool_away, pool_draw,
		alpha, trade_ids, updated_at`

	tradeCols = `id, user_id, event_id, amount, outcome, odds_at_placement,
		expected_payout, stake_value, status, for_sale, sale_price, sold_by,
		credit_applied, created_at, updated_at`

	userCols = `id, wallet, pnl, trade_ids, created_at`
)

// Postgres implementa Store sobre um banco Postgres: linhas travadas com
// FOR UPDATE dentro da transação e retry em falha de serialização fazem o
// papel da concorrência otimista de um document store.
type Postgres struct{ db *sql.DB }

// NewPostgres aplica o schema (idempotente) e retorna o store.
func NewPostgres(db *sql.DB) (*Postgres, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error { return p.db.Close() }

// querier é satisfeito por *sql.DB e *sql.Tx; permite compartilhar scans.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// RunTransaction executa fn numa transação serializável, reexecutando em
// conflito de escrita (SQLSTATE 40001/40P01) até maxTxAttempts.
func (p *Postgres) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(25*(attempt)) * time.Millisecond):
			}
		}

		err := p.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", ErrConflict, lastErr)
}

func (p *Postgres) runOnce(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// isRetryable reconhece falha de serialização e deadlock do Postgres.
func isRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

// ---- leituras fora de transação ----

func (p *Postgres) GetUser(ctx context.Context, id string) (*market.User, error) {
	return getUser(ctx, p.db, id, "")
}

func (p *Postgres) GetEvent(ctx context.Context, id string) (*market.Event, error) {
	return getEvent(ctx, p.db, id, "")
}

func (p *Postgres) GetTrade(ctx context.Context, id string) (*market.Trade, error) {
	return getTrade(ctx, p.db, id, "")
}

func (p *Postgres) ListEvents(ctx context.Context) ([]*market.Event, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+eventCols+` FROM events ORDER BY scheduled_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*market.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) PendingTradesByEvent(ctx context.Context, eventID string) ([]*market.Trade, error) {
	return pendingTradesByEvent(ctx, p.db, eventID, "")
}

// ResolveTrades grava os desfechos da fase um da liquidação num lote só.
// O filtro status='pending' torna a reexecução inofensiva.
func (p *Postgres) ResolveTrades(ctx context.Context, rs []TradeResolution) error {
	if len(rs) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range rs {
		if _, err := tx.ExecContext(ctx, `
			UPDATE trades SET status=$1, credit_applied=FALSE, updated_at=NOW()
			WHERE id=$2 AND status='pending'`, r.Status, r.TradeID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ApplyUserDelta reivindica o marcador credit_applied das trades do delta
// e credita carteira/P&L só pelas reivindicadas, na mesma transação. Uma
// trade já creditada (liquidação e reconciliação competindo) é ignorada.
func (p *Postgres) ApplyUserDelta(ctx context.Context, d UserDelta) (int, error) {
	if len(d.Credits) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(d.Credits))
	byID := make(map[string]TradeCredit, len(d.Credits))
	for _, c := range d.Credits {
		ids = append(ids, c.TradeID)
		byID[c.TradeID] = c
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		UPDATE trades SET credit_applied=TRUE, updated_at=NOW()
		WHERE id = ANY($1) AND credit_applied = FALSE
		RETURNING id`, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	var wallet, pnl float64
	claimed := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		c := byID[id]
		wallet += c.Wallet
		pnl += c.Pnl
		claimed++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if claimed == 0 {
		return 0, tx.Commit()
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET wallet = wallet + $1, pnl = pnl + $2 WHERE id=$3`,
		wallet, pnl, d.UserID)
	if err := checkAffected(res, err); err != nil {
		return 0, err
	}
	return claimed, tx.Commit()
}

func (p *Postgres) UnappliedResolutions(ctx context.Context) ([]*market.Trade, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+tradeCols+` FROM trades
		WHERE status IN ('won','lost') AND credit_applied = FALSE
		ORDER BY updated_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*market.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ---- transação ----

type pgTx struct{ tx *sql.Tx }

func (t *pgTx) GetUser(ctx context.Context, id string) (*market.User, error) {
	return getUser(ctx, t.tx, id, " FOR UPDATE")
}

func (t *pgTx) GetEvent(ctx context.Context, id string) (*market.Event, error) {
	return getEvent(ctx, t.tx, id, " FOR UPDATE")
}

func (t *pgTx) GetTrade(ctx context.Context, id string) (*market.Trade, error) {
	return getTrade(ctx, t.tx, id, " FOR UPDATE")
}

func (t *pgTx) PendingTradesByEvent(ctx context.Context, eventID string) ([]*market.Trade, error) {
	return pendingTradesByEvent(ctx, t.tx, eventID, " FOR UPDATE")
}

func (t *pgTx) CreateUser(ctx context.Context, u *market.User) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO users (id, wallet, pnl, trade_ids, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		u.ID, u.Wallet, u.Pnl, pq.Array(u.TradeIDs), u.CreatedAt)
	return err
}

func (t *pgTx) CreateEvent(ctx context.Context, e *market.Event) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO events (`+eventCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		e.ID, e.Sport, e.Kind, e.HomeTeam, e.AwayTeam, e.ScheduledAt, e.Status,
		e.HomeScore, e.AwayScore, e.Result, e.HomeOdds, e.AwayOdds, e.DrawOdds,
		e.PriorHome, e.PriorAway, e.PriorDraw, e.PoolHome, e.PoolAway, e.PoolDraw,
		e.Alpha, pq.Array(e.TradeIDs), e.UpdatedAt)
	return err
}

func (t *pgTx) CreateTrade(ctx context.Context, tr *market.Trade) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO trades (`+tradeCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		tr.ID, tr.UserID, tr.EventID, tr.Amount, tr.Outcome, tr.OddsAtPlacement,
		tr.ExpectedPayout, tr.StakeValue, tr.Status, tr.ForSale, tr.SalePrice,
		tr.SoldBy, tr.CreditApplied, tr.CreatedAt, tr.UpdatedAt)
	return err
}

func (t *pgTx) UpdateEvent(ctx context.Context, e *market.Event) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE events SET
			sport=$2, kind=$3, home_team=$4, away_team=$5, scheduled_at=$6,
			status=$7, home_score=$8, away_score=$9, result=$10,
			home_odds=$11, away_odds=$12, draw_odds=$13,
			prior_home=$14, prior_away=$15, prior_draw=$16,
			pool_home=$17, pool_away=$18, pool_draw=$19,
			alpha=$20, trade_ids=$21, updated_at=NOW()
		WHERE id=$1`,
		e.ID, e.Sport, e.Kind, e.HomeTeam, e.AwayTeam, e.ScheduledAt,
		e.Status, e.HomeScore, e.AwayScore, e.Result,
		e.HomeOdds, e.AwayOdds, e.DrawOdds,
		e.PriorHome, e.PriorAway, e.PriorDraw,
		e.PoolHome, e.PoolAway, e.PoolDraw,
		e.Alpha, pq.Array(e.TradeIDs))
	return checkAffected(res, err)
}

func (t *pgTx) UpdateTrade(ctx context.Context, tr *market.Trade) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE trades SET
			user_id=$2, amount=$3, outcome=$4, odds_at_placement=$5,
			expected_payout=$6, stake_value=$7, status=$8, for_sale=$9,
			sale_price=$10, sold_by=$11, credit_applied=$12, updated_at=NOW()
		WHERE id=$1`,
		tr.ID, tr.UserID, tr.Amount, tr.Outcome, tr.OddsAtPlacement,
		tr.ExpectedPayout, tr.StakeValue, tr.Status, tr.ForSale,
		tr.SalePrice, tr.SoldBy, tr.CreditApplied)
	return checkAffected(res, err)
}

func (t *pgTx) AppendOddsHistory(ctx context.Context, rec OddsRecord) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO odds_history (event_id, home_odds, away_odds, draw_odds, source, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		rec.EventID, rec.Home, rec.Away, rec.Draw, rec.Source, rec.At)
	return err
}

func (t *pgTx) IncrementWallet(ctx context.Context, userID string, delta float64) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE users SET wallet = wallet + $1 WHERE id=$2`, delta, userID)
	return checkAffected(res, err)
}

func (t *pgTx) AddOwnedTrade(ctx context.Context, userID, tradeID string) error {
	// união de conjunto: não duplica se já presente
	_, err := t.tx.ExecContext(ctx, `
		UPDATE users SET trade_ids = array_append(trade_ids, $2)
		WHERE id=$1 AND NOT ($2 = ANY(trade_ids))`, userID, tradeID)
	return err
}

func (t *pgTx) RemoveOwnedTrade(ctx context.Context, userID, tradeID string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE users SET trade_ids = array_remove(trade_ids, $2)
		WHERE id=$1`, userID, tradeID)
	return err
}

// ---- scans compartilhados ----

func checkAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface{ Scan(dest ...any) error }

func getUser(ctx context.Context, q querier, id, lock string) (*market.User, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id=$1`+lock, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func getEvent(ctx context.Context, q querier, id, lock string) (*market.Event, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+eventCols+` FROM events WHERE id=$1`+lock, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func getTrade(ctx context.Context, q querier, id, lock string) (*market.Trade, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+tradeCols+` FROM trades WHERE id=$1`+lock, id)
	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func pendingTradesByEvent(ctx context.Context, q querier, eventID, lock string) ([]*market.Trade, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+tradeCols+` FROM trades
		WHERE event_id=$1 AND status='pending'
		ORDER BY created_at, id`+lock, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*market.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanUser(r rowScanner) (*market.User, error) {
	var u market.User
	var ids pq.StringArray
	if err := r.Scan(&u.ID, &u.Wallet, &u.Pnl, &ids, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.TradeIDs = ids
	return &u, nil
}

func scanEvent(r rowScanner) (*market.Event, error) {
	var e market.Event
	var ids pq.StringArray
	if err := r.Scan(
		&e.ID, &e.Sport, &e.Kind, &e.HomeTeam, &e.AwayTeam, &e.ScheduledAt, &e.Status,
		&e.HomeScore, &e.AwayScore, &e.Result, &e.HomeOdds, &e.AwayOdds, &e.DrawOdds,
		&e.PriorHome, &e.PriorAway, &e.PriorDraw, &e.PoolHome, &e.PoolAway, &e.PoolDraw,
		&e.Alpha, &ids, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.TradeIDs = ids
	return &e, nil
}

func scanTrade(r rowScanner) (*market.Trade, error) {
	var t market.Trade
	if err := r.Scan(
		&t.ID, &t.UserID, &t.EventID, &t.Amount, &t.Outcome, &t.OddsAtPlacement,
		&t.ExpectedPayout, &t.StakeValue, &t.Status, &t.ForSale, &t.SalePrice,
		&t.SoldBy, &t.CreditApplied, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}
