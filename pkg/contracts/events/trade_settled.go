package events

import "time"

// Evento emitido pelo settlement-worker após resolver uma aposta.
type TradeSettled struct {
	TradeID string    `json:"trade_id"`
	UserID  string    `json:"user_id"`
	EventID string    `json:"event_id"`
	Status  string    `json:"status"` // "won" | "lost"
	Payout  float64   `json:"payout"`
	Pnl     float64   `json:"pnl"`
	Ts      time.Time `json:"ts"`
}
