package market

import "time"

// Outcome é um dos resultados mutuamente exclusivos de um evento.
type Outcome string

const (
	OutcomeHome Outcome = "home"
	OutcomeAway Outcome = "away"
	OutcomeDraw Outcome = "draw"
)

// SportKind distingue esportes de dois resultados (ex: basquete) dos de três
// (ex: futebol, onde existe empate).
type SportKind string

const (
	KindTwoWay   SportKind = "two_way"
	KindThreeWay SportKind = "three_way"
)

type EventStatus string

const (
	EventScheduled  EventStatus = "scheduled"
	EventInProgress EventStatus = "in_progress"
	EventFinal      EventStatus = "final"
)

type TradeStatus string

const (
	TradePending TradeStatus = "pending"
	TradeWon     TradeStatus = "won"
	TradeLost    TradeStatus = "lost"
)

// Event é o documento de mercado de uma partida: fixture (agenda/placar/status)
// mais o estado de mercado (odds correntes, prior em cache, pools por resultado).
// Invariante: PoolHome/PoolAway/PoolDraw são mantidos incrementalmente a cada
// aposta, nunca recalculados a partir das trades.
type Event struct {
	ID          string
	Sport       string
	Kind        SportKind
	HomeTeam    string
	AwayTeam    string
	ScheduledAt time.Time
	Status      EventStatus
	HomeScore   int
	AwayScore   int
	Result      string // resultado explícito do feed ("home"/"away"/"draw"); vazio se ausente

	HomeOdds float64
	AwayOdds float64
	DrawOdds float64 // só significativo em eventos three_way

	// Prior externo em cache (percentuais); zero = ausente, engine usa default
	PriorHome float64
	PriorAway float64
	PriorDraw float64

	PoolHome float64
	PoolAway float64
	PoolDraw float64

	Alpha float64 // peso do prior na mistura, fixado na criação

	TradeIDs  []string
	UpdatedAt time.Time
}

func (e *Event) ThreeWay() bool { return e.Kind == KindThreeWay }

func (e *Event) Terminal() bool { return e.Status == EventFinal }

// ValidOutcome verifica se o resultado pode ser apostado neste evento
// (empate só existe em eventos three_way).
func (e *Event) ValidOutcome(o Outcome) bool {
	switch o {
	case OutcomeHome, OutcomeAway:
		return true
	case OutcomeDraw:
		return e.ThreeWay()
	}
	return false
}

// OddsFor retorna a odd corrente do resultado dado.
func (e *Event) OddsFor(o Outcome) float64 {
	switch o {
	case OutcomeHome:
		return e.HomeOdds
	case OutcomeAway:
		return e.AwayOdds
	case OutcomeDraw:
		return e.DrawOdds
	}
	return 0
}

// Trade é uma aposta. Odds são travadas no momento da colocação;
// StakeValue é a reavaliação corrente usada pelo marketplace.
// Won/Lost são terminais e imutáveis.
type Trade struct {
	ID              string
	UserID          string
	EventID         string
	Amount          float64
	Outcome         Outcome
	OddsAtPlacement float64
	ExpectedPayout  float64 // Amount * 100/OddsAtPlacement
	StakeValue      float64
	Status          TradeStatus

	ForSale   bool
	SalePrice float64
	SoldBy    string // registro histórico do vendedor após transferência

	// CreditApplied marca que o crédito de carteira/P&L da liquidação já foi
	// aplicado ao dono; permite a varredura de reconciliação entre as duas fases.
	CreditApplied bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// User carrega carteira, P&L acumulado e as trades possuídas.
// Criado no primeiro acesso com saldo zero.
type User struct {
	ID        string
	Wallet    float64
	Pnl       float64
	TradeIDs  []string
	CreatedAt time.Time
}
