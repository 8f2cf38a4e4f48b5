// Package ingest consome atualizações de fixture do Kafka e as aplica ao
// ledger: cria o evento na primeira aparição (prior + odds de abertura) e
// dispara a liquidação quando o evento encerra. Mensagens que falham vão
// para a DLQ com o payload original.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	segkafka "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/bet-market-engine/internal/engine"
	"github.com/radieske/bet-market-engine/internal/ledger"
	"github.com/radieske/bet-market-engine/internal/market"
	"github.com/radieske/bet-market-engine/internal/market/odds"
	"github.com/radieske/bet-market-engine/internal/prior"
	skafka "github.com/radieske/bet-market-engine/internal/shared/kafka"
	"github.com/radieske/bet-market-engine/pkg/contracts/events"
)

type Processor struct {
	store ledger.Store
	eng   *engine.Engine
	prior prior.Source
	alpha float64
	log   *zap.Logger
	now   func() time.Time

	// Contadores injetados pelo main (no-op quando nil).
	OnUpserted func()
	OnSettled  func()
	OnDLQ      func()
}

func NewProcessor(store ledger.Store, eng *engine.Engine, src prior.Source, alpha float64, log *zap.Logger) *Processor {
	return &Processor{
		store: store,
		eng:   eng,
		prior: src,
		alpha: alpha,
		log:   log,
		now:   time.Now,
	}
}

// Run consome o tópico até o contexto encerrar.
func (p *Processor) Run(ctx context.Context, r *segkafka.Reader, dlq *skafka.Writer) error {
	for {
		key, value, err := skafka.ReadNext(ctx, r)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var upd events.EventUpdate
		if err := json.Unmarshal(value, &upd); err != nil {
			p.toDLQ(ctx, dlq, key, value, err)
			continue
		}
		if err := p.Process(ctx, upd); err != nil {
			p.toDLQ(ctx, dlq, key, value, err)
		}
	}
}

// Process aplica uma atualização de fixture. Só campos de fixture são
// escritos em eventos existentes; pools e odds pertencem ao engine.
func (p *Processor) Process(ctx context.Context, upd events.EventUpdate) error {
	if err := validate(upd); err != nil {
		return err
	}

	// o estimador só é consultado na primeira aparição do evento;
	// a transação reconfere a existência e cobre a corrida de criação
	var (
		est      prior.Estimate
		hasPrior bool
	)
	if _, err := p.store.GetEvent(ctx, upd.EventID); err != nil {
		if !errors.Is(err, ledger.ErrNotFound) {
			return err
		}
		est, hasPrior = p.prior.Estimate(ctx, upd.EventID)
	}

	var becameFinal bool
	err := p.store.RunTransaction(ctx, func(tx ledger.Tx) error {
		ev, err := tx.GetEvent(ctx, upd.EventID)
		if errors.Is(err, ledger.ErrNotFound) {
			return p.createEvent(ctx, tx, upd, est, hasPrior)
		}
		if err != nil {
			return err
		}

		wasTerminal := ev.Terminal()
		ev.Status = market.EventStatus(upd.Status)
		ev.HomeScore = upd.HomeScore
		ev.AwayScore = upd.AwayScore
		ev.Result = upd.Result
		ev.HomeTeam = upd.HomeTeam
		ev.AwayTeam = upd.AwayTeam
		ev.ScheduledAt = upd.ScheduledAt
		ev.UpdatedAt = p.now()
		if err := tx.UpdateEvent(ctx, ev); err != nil {
			return err
		}
		becameFinal = !wasTerminal && ev.Terminal()
		return nil
	})
	if err != nil {
		return err
	}
	if p.OnUpserted != nil {
		p.OnUpserted()
	}

	if becameFinal {
		if err := p.eng.SettleEvent(ctx, upd.EventID); err != nil {
			return fmt.Errorf("settle event %s: %w", upd.EventID, err)
		}
		if p.OnSettled != nil {
			p.OnSettled()
		}
	}
	return nil
}

func (p *Processor) createEvent(ctx context.Context, tx ledger.Tx, upd events.EventUpdate, est prior.Estimate, hasPrior bool) error {
	threeWay := upd.Kind == string(market.KindThreeWay)

	var pr odds.Line
	if hasPrior {
		pr = odds.Line{Home: est.Home, Away: est.Away, Draw: est.Draw}
	}
	line := odds.Initial(pr, threeWay)

	now := p.now()
	ev := &market.Event{
		ID:          upd.EventID,
		Sport:       upd.Sport,
		Kind:        market.SportKind(upd.Kind),
		HomeTeam:    upd.HomeTeam,
		AwayTeam:    upd.AwayTeam,
		ScheduledAt: upd.ScheduledAt,
		Status:      market.EventStatus(upd.Status),
		HomeScore:   upd.HomeScore,
		AwayScore:   upd.AwayScore,
		Result:      upd.Result,

		HomeOdds: line.Home,
		AwayOdds: line.Away,
		DrawOdds: line.Draw,

		PriorHome: pr.Home,
		PriorAway: pr.Away,
		PriorDraw: pr.Draw,

		Alpha:     p.alpha,
		UpdatedAt: now,
	}
	if err := tx.CreateEvent(ctx, ev); err != nil {
		return err
	}
	return tx.AppendOddsHistory(ctx, ledger.OddsRecord{
		EventID: ev.ID,
		Home:    line.Home,
		Away:    line.Away,
		Draw:    line.Draw,
		Source:  "ingest",
		At:      now,
	})
}

func (p *Processor) toDLQ(ctx context.Context, dlq *skafka.Writer, key, value []byte, cause error) {
	p.log.Error("mensagem do feed rejeitada",
		zap.ByteString("key", key),
		zap.Error(cause))
	if p.OnDLQ != nil {
		p.OnDLQ()
	}
	if dlq == nil {
		return
	}
	if err := skafka.WriteJSON(ctx, dlq, string(key), value); err != nil {
		p.log.Error("falha ao publicar na DLQ", zap.Error(err))
	}
}

func validate(upd events.EventUpdate) error {
	if upd.EventID == "" {
		return fmt.Errorf("event update sem event_id")
	}
	switch market.SportKind(upd.Kind) {
	case market.KindTwoWay, market.KindThreeWay:
	default:
		return fmt.Errorf("kind desconhecido %q", upd.Kind)
	}
	switch market.EventStatus(upd.Status) {
	case market.EventScheduled, market.EventInProgress, market.EventFinal:
	default:
		return fmt.Errorf("status desconhecido %q", upd.Status)
	}
	return nil
}
