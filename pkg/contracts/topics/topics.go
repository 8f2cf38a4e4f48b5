package topics

const (
	// Feed de eventos esportivos (agenda, placar, status)
	EventUpdates = "event_updates"

	// Liquidação
	TradeSettled = "trade_settled"

	// DLQs
	EventUpdatesDLQ = "event_updates_dlq"
)
