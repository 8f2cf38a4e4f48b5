package feed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/bet-market-engine/pkg/contracts/events"
)

// Simulator gera partidas sintéticas e anda cada uma por
// scheduled -> in_progress -> final, emitindo um EventUpdate por tick.
// Quando todas terminam, um ciclo novo de partidas começa.
type Simulator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	fixtures []*fixture
	next     int
}

type fixture struct {
	upd       events.EventUpdate
	ticksLeft int // ticks de jogo até o apito final
}

var matchups = []struct {
	sport, kind, home, away string
}{
	{"basketball", "two_way", "Lakers", "Celtics"},
	{"basketball", "two_way", "Warriors", "Bulls"},
	{"soccer", "three_way", "Flamengo", "Palmeiras"},
	{"soccer", "three_way", "Santos", "Grêmio"},
	{"mma", "two_way", "Silva", "Jones"},
}

func NewSimulator(rng *rand.Rand) *Simulator {
	s := &Simulator{rng: rng}
	s.resetLocked()
	return s
}

// Snapshot devolve o estado corrente de todas as partidas do ciclo.
func (s *Simulator) Snapshot() []events.EventUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.EventUpdate, 0, len(s.fixtures))
	for _, f := range s.fixtures {
		out = append(out, f.upd)
	}
	return out
}

// Run emite o estado inicial e depois uma atualização por tick até o
// contexto encerrar.
func (s *Simulator) Run(ctx context.Context, tick time.Duration, emit func(events.EventUpdate)) error {
	for _, upd := range s.Snapshot() {
		emit(upd)
	}

	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if upd, ok := s.Step(); ok {
				emit(upd)
			}
		}
	}
}

// Step avança a próxima partida não encerrada (round-robin) e devolve a
// atualização resultante. Com todas encerradas, reinicia o ciclo e devolve
// ok=false.
func (s *Simulator) Step() (events.EventUpdate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for range s.fixtures {
		f := s.fixtures[s.next%len(s.fixtures)]
		s.next++
		if f.upd.Status == "final" {
			continue
		}
		s.advance(f)
		return f.upd, true
	}

	s.resetLocked()
	return events.EventUpdate{}, false
}

func (s *Simulator) advance(f *fixture) {
	switch f.upd.Status {
	case "scheduled":
		f.upd.Status = "in_progress"
	case "in_progress":
		// o placar anda de forma aleatória; empate é possível
		switch s.rng.Intn(3) {
		case 0:
			f.upd.HomeScore++
		case 1:
			f.upd.AwayScore++
		}
		f.ticksLeft--
		if f.ticksLeft <= 0 {
			f.upd.Status = "final"
		}
	}
	f.upd.Version++
	f.upd.UpdatedAt = time.Now()
}

func (s *Simulator) resetLocked() {
	now := time.Now()
	s.fixtures = s.fixtures[:0]
	for i, m := range matchups {
		s.fixtures = append(s.fixtures, &fixture{
			upd: events.EventUpdate{
				EventID:     uuid.NewString(),
				Sport:       m.sport,
				Kind:        m.kind,
				HomeTeam:    m.home,
				AwayTeam:    m.away,
				Status:      "scheduled",
				ScheduledAt: now.Add(time.Duration(i+1) * time.Minute),
				UpdatedAt:   now,
				Source:      "feed-simulator",
			},
			ticksLeft: 6 + s.rng.Intn(6),
		})
	}
	s.next = 0
}
