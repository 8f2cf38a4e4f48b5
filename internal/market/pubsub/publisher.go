// Package pubsub transmite movimentos de odds via Redis pub/sub para
// consumidores interessados (dashboards, feeds ao vivo). Best-effort:
// falha de broadcast é logada e descartada.
package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// OddsMove é a mensagem publicada a cada recálculo de odds.
type OddsMove struct {
	EventID string    `json:"event_id"`
	Home    float64   `json:"home"`
	Away    float64   `json:"away"`
	Draw    float64   `json:"draw,omitempty"`
	At      time.Time `json:"at"`
}

type Publisher struct {
	rdb     *redis.Client
	channel string
	log     *zap.Logger
}

func NewPublisher(rdb *redis.Client, channel string, log *zap.Logger) *Publisher {
	return &Publisher{rdb: rdb, channel: channel, log: log}
}

func (p *Publisher) PublishOddsMove(ctx context.Context, move OddsMove) {
	raw, err := json.Marshal(move)
	if err != nil {
		return
	}
	if err := p.rdb.Publish(ctx, p.channel, raw).Err(); err != nil {
		p.log.Warn("broadcast de odds falhou",
			zap.String("event_id", move.EventID),
			zap.Error(err))
	}
}

// Subscribe entrega movimentos publicados no canal até o contexto encerrar.
func (p *Publisher) Subscribe(ctx context.Context, fn func(OddsMove)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var move OddsMove
			if err := json.Unmarshal([]byte(msg.Payload), &move); err != nil {
				p.log.Warn("movimento de odds ilegível no canal", zap.Error(err))
				continue
			}
			fn(move)
		}
	}
}
