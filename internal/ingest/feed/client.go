// Package feed liga o simulador de partidas ao pipeline: um cliente
// WebSocket que republica cada atualização no Kafka, e o próprio simulador.
package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	skafka "github.com/radieske/bet-market-engine/internal/shared/kafka"
	"github.com/radieske/bet-market-engine/pkg/contracts/events"
)

const reconnectWait = 5 * time.Second

// Ingestor mantém a conexão WebSocket com o feed e publica cada mensagem
// válida no tópico de atualizações, chaveada pelo event_id.
type Ingestor struct {
	url    string
	writer *skafka.Writer
	log    *zap.Logger

	OnMessage func()
	OnError   func()
}

func NewIngestor(url string, w *skafka.Writer, log *zap.Logger) *Ingestor {
	return &Ingestor{url: url, writer: w, log: log}
}

// Run reconecta em loop até o contexto encerrar.
func (i *Ingestor) Run(ctx context.Context) error {
	for {
		if err := i.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			i.log.Warn("conexão com o feed caiu", zap.Error(err))
			if i.OnError != nil {
				i.OnError()
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectWait):
		}
	}
}

func (i *Ingestor) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, i.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	i.log.Info("conectado ao feed", zap.String("url", i.url))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close() // destrava o ReadMessage
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var upd events.EventUpdate
		if err := json.Unmarshal(raw, &upd); err != nil || upd.EventID == "" {
			i.log.Warn("mensagem do feed ilegível, descartada", zap.Error(err))
			continue
		}

		if err := skafka.WriteJSON(ctx, i.writer, upd.EventID, raw); err != nil {
			return err
		}
		if i.OnMessage != nil {
			i.OnMessage()
		}
	}
}
