// Package prior fornece a estimativa externa de probabilidade usada como
// âncora na mistura de odds de eventos recém-ingeridos.
package prior

import (
	"context"
	"sync"
)

// Estimate em pontos percentuais (0..100); campo zero = ausente, o engine
// aplica os defaults (50 por lado, 20 para empate).
type Estimate struct {
	Home float64
	Away float64
	Draw float64
}

// Source é consultado uma única vez por evento, na primeira aparição no
// feed. ok=false quando o estimador não tem opinião.
type Source interface {
	Estimate(ctx context.Context, eventID string) (Estimate, bool)
}

// Static serve estimativas de uma tabela em memória. Cobre o ambiente local
// e os testes; o estimador real entraria como outra implementação de Source.
type Static struct {
	mu      sync.RWMutex
	byEvent map[string]Estimate
}

func NewStatic() *Static {
	return &Static{byEvent: make(map[string]Estimate)}
}

func (s *Static) Put(eventID string, est Estimate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byEvent[eventID] = est
}

func (s *Static) Estimate(_ context.Context, eventID string) (Estimate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	est, ok := s.byEvent[eventID]
	return est, ok
}

// None nunca tem estimativa; todos os eventos abrem nos defaults.
type None struct{}

func (None) Estimate(context.Context, string) (Estimate, bool) {
	return Estimate{}, false
}
