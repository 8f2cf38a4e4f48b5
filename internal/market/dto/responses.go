package dto

import (
	"time"

	"github.com/radieske/bet-market-engine/internal/market"
)

type TradeResponse struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	EventID         string    `json:"event_id"`
	Amount          float64   `json:"amount"`
	Outcome         string    `json:"outcome"`
	OddsAtPlacement float64   `json:"odds_at_placement"`
	ExpectedPayout  float64   `json:"expected_payout"`
	StakeValue      float64   `json:"stake_value"`
	Status          string    `json:"status"`
	ForSale         bool      `json:"for_sale"`
	SalePrice       float64   `json:"sale_price,omitempty"`
	SoldBy          string    `json:"sold_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func NewTradeResponse(t *market.Trade) TradeResponse {
	return TradeResponse{
		ID:              t.ID,
		UserID:          t.UserID,
		EventID:         t.EventID,
		Amount:          t.Amount,
		Outcome:         string(t.Outcome),
		OddsAtPlacement: t.OddsAtPlacement,
		ExpectedPayout:  t.ExpectedPayout,
		StakeValue:      t.StakeValue,
		Status:          string(t.Status),
		ForSale:         t.ForSale,
		SalePrice:       t.SalePrice,
		SoldBy:          t.SoldBy,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

type WalletResponse struct {
	UserID   string   `json:"user_id"`
	Wallet   float64  `json:"wallet"`
	Pnl      float64  `json:"pnl"`
	TradeIDs []string `json:"trade_ids"`
}

type DepositResponse struct {
	UserID string  `json:"user_id"`
	Wallet float64 `json:"wallet"`
}

type EventResponse struct {
	ID          string    `json:"id"`
	Sport       string    `json:"sport"`
	Kind        string    `json:"kind"`
	HomeTeam    string    `json:"home_team"`
	AwayTeam    string    `json:"away_team"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status"`
	HomeScore   int       `json:"home_score"`
	AwayScore   int       `json:"away_score"`
	HomeOdds    float64   `json:"home_odds"`
	AwayOdds    float64   `json:"away_odds"`
	DrawOdds    float64   `json:"draw_odds,omitempty"`
	PoolHome    float64   `json:"pool_home"`
	PoolAway    float64   `json:"pool_away"`
	PoolDraw    float64   `json:"pool_draw,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewEventResponse(e *market.Event) EventResponse {
	return EventResponse{
		ID:          e.ID,
		Sport:       e.Sport,
		Kind:        string(e.Kind),
		HomeTeam:    e.HomeTeam,
		AwayTeam:    e.AwayTeam,
		ScheduledAt: e.ScheduledAt,
		Status:      string(e.Status),
		HomeScore:   e.HomeScore,
		AwayScore:   e.AwayScore,
		HomeOdds:    e.HomeOdds,
		AwayOdds:    e.AwayOdds,
		DrawOdds:    e.DrawOdds,
		PoolHome:    e.PoolHome,
		PoolAway:    e.PoolAway,
		PoolDraw:    e.PoolDraw,
		UpdatedAt:   e.UpdatedAt,
	}
}

type OddsResponse struct {
	EventID   string    `json:"event_id"`
	Home      float64   `json:"home"`
	Away      float64   `json:"away"`
	Draw      float64   `json:"draw,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}
