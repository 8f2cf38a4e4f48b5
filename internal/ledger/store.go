// Package ledger define o colaborador transacional do engine: leitura e
// escrita por chave, incrementos atômicos, união/remoção em conjuntos e
// transações com retry em conflito de escrita.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/radieske/bet-market-engine/internal/market"
)

var (
	ErrNotFound = errors.New("ledger: not found")

	// ErrConflict indica que a transação não commitou dentro do orçamento
	// de retries; o chamador pode repetir a operação inteira.
	ErrConflict = errors.New("ledger: write conflict")
)

// OddsRecord é uma entrada append-only do histórico de odds de um evento.
type OddsRecord struct {
	EventID string
	Home    float64
	Away    float64
	Draw    float64
	Source  string // proveniência: "bet" | "ingest"
	At      time.Time
}

// TradeResolution marca o desfecho de uma trade na fase um da liquidação.
type TradeResolution struct {
	TradeID string
	Status  market.TradeStatus // won | lost
}

// TradeCredit é o efeito de carteira/P&L de uma única trade resolvida.
type TradeCredit struct {
	TradeID string
	Wallet  float64
	Pnl     float64
}

// UserDelta agrupa os créditos de um usuário na fase dois da liquidação.
// O store só aplica o crédito das trades que conseguir reivindicar (virar
// credit_applied de falso para verdadeiro); trades já creditadas são
// ignoradas, o que torna a aplicação idempotente por trade mesmo com a
// liquidação e a varredura de reconciliação competindo.
type UserDelta struct {
	UserID  string
	Credits []TradeCredit
}

// Tx expõe as operações disponíveis dentro de uma transação. Leituras de
// entidade travam a linha (read-then-write isolado); escritas só ficam
// visíveis fora da transação após o commit.
type Tx interface {
	GetUser(ctx context.Context, id string) (*market.User, error)
	GetEvent(ctx context.Context, id string) (*market.Event, error)
	GetTrade(ctx context.Context, id string) (*market.Trade, error)
	PendingTradesByEvent(ctx context.Context, eventID string) ([]*market.Trade, error)

	CreateUser(ctx context.Context, u *market.User) error
	CreateEvent(ctx context.Context, e *market.Event) error
	CreateTrade(ctx context.Context, t *market.Trade) error
	UpdateEvent(ctx context.Context, e *market.Event) error
	UpdateTrade(ctx context.Context, t *market.Trade) error

	AppendOddsHistory(ctx context.Context, rec OddsRecord) error

	// IncrementWallet soma delta ao saldo sem ler o valor anterior.
	IncrementWallet(ctx context.Context, userID string, delta float64) error

	// União/remoção no conjunto de trades possuídas (sem duplicatas).
	AddOwnedTrade(ctx context.Context, userID, tradeID string) error
	RemoveOwnedTrade(ctx context.Context, userID, tradeID string) error
}

// Store é o contrato do armazenamento. RunTransaction reexecuta fn em
// conflito de escrita concorrente até um orçamento fixo; dentro de fn vale
// read-your-writes e tudo-ou-nada.
type Store interface {
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error

	GetUser(ctx context.Context, id string) (*market.User, error)
	GetEvent(ctx context.Context, id string) (*market.Event, error)
	GetTrade(ctx context.Context, id string) (*market.Trade, error)
	ListEvents(ctx context.Context) ([]*market.Event, error)
	PendingTradesByEvent(ctx context.Context, eventID string) ([]*market.Trade, error)

	// ResolveTrades grava em lote os desfechos da fase um da liquidação,
	// com credit_applied=false. Só transiciona trades ainda pendentes.
	ResolveTrades(ctx context.Context, rs []TradeResolution) error

	// ApplyUserDelta reivindica o marcador credit_applied das trades do
	// delta e aplica, numa unidade só, os incrementos de carteira/P&L das
	// que foram reivindicadas. Retorna quantas trades foram creditadas.
	ApplyUserDelta(ctx context.Context, d UserDelta) (int, error)

	// UnappliedResolutions lista trades resolvidas cujo crédito ainda não
	// foi aplicado, insumo da varredura de reconciliação.
	UnappliedResolutions(ctx context.Context) ([]*market.Trade, error)

	Close() error
}
