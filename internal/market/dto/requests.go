// Package dto define os contratos JSON da API pública do market-service.
package dto

// PlaceTradeRequest coloca uma aposta. Odds é opcional: quando > 0, trava
// a odd informada em vez da corrente do evento.
type PlaceTradeRequest struct {
	EventID string  `json:"event_id"`
	Outcome string  `json:"outcome"` // "home" | "away" | "draw"
	Amount  float64 `json:"amount"`
	Odds    float64 `json:"odds,omitempty"`
}

type SellTradeRequest struct {
	Price float64 `json:"price"`
}

type DepositRequest struct {
	Amount float64 `json:"amount"`
}
