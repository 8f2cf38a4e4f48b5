package events

import "time"

// Evento publicado no tópico "event_updates" pelo feed-ingest-service.
// Carrega apenas dados de fixture (agenda/placar/status); o estado de
// mercado (pools, odds) pertence ao engine e nunca trafega por aqui.
type EventUpdate struct {
	EventID     string    `json:"event_id"`
	Sport       string    `json:"sport"`
	Kind        string    `json:"kind"` // "two_way" | "three_way"
	HomeTeam    string    `json:"home_team"`
	AwayTeam    string    `json:"away_team"`
	Status      string    `json:"status"` // "scheduled" | "in_progress" | "final"
	HomeScore   int       `json:"home_score"`
	AwayScore   int       `json:"away_score"`
	Result      string    `json:"result,omitempty"` // resultado explícito do feed: "home" | "away" | "draw"
	ScheduledAt time.Time `json:"scheduled_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Source      string    `json:"source"`  // "feed-simulator"
	Version     int       `json:"version"` // incrementado a cada atualização
}
