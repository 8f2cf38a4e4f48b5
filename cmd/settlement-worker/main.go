package main

import (
	"context"
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/bet-market-engine/internal/engine"
	"github.com/radieske/bet-market-engine/internal/ingest"
	"github.com/radieske/bet-market-engine/internal/ledger"
	"github.com/radieske/bet-market-engine/internal/prior"
	"github.com/radieske/bet-market-engine/internal/shared/config"
	"github.com/radieske/bet-market-engine/internal/shared/db"
	"github.com/radieske/bet-market-engine/internal/shared/logger"
	"github.com/radieske/bet-market-engine/internal/shared/metrics"
	skafka "github.com/radieske/bet-market-engine/internal/shared/kafka"
	"github.com/radieske/bet-market-engine/pkg/contracts/events"
)

func main() {
	cfg := config.LoadFor("settlement-worker")

	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	database, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres indisponível", zap.Error(err))
	}
	store, err := ledger.NewPostgres(database)
	if err != nil {
		log.Fatal("falha ao aplicar o schema", zap.Error(err))
	}
	defer store.Close()

	eventsUpserted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worker_events_upserted_total",
		Help: "Atualizações de fixture aplicadas ao ledger.",
	})
	eventsSettled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worker_events_settled_total",
		Help: "Eventos liquidados após chegarem ao estado final.",
	})
	tradesSettled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worker_trades_settled_total",
		Help: "Trades resolvidas pela liquidação.",
	})
	dlqMessages := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worker_dlq_messages_total",
		Help: "Mensagens do feed rejeitadas para a DLQ.",
	})
	reconciled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worker_reconciled_trades_total",
		Help: "Trades creditadas pela varredura de reconciliação.",
	})
	prometheus.MustRegister(eventsUpserted, eventsSettled, tradesSettled, dlqMessages, reconciled)

	reader := skafka.NewReader(cfg.KafkaBrokers, cfg.TopicEventUpdates, cfg.ServiceName)
	defer reader.Close()
	dlq := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicEventUpdatesDLQ)
	defer dlq.Close()
	settledWriter := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicTradeSettled)
	defer settledWriter.Close()

	eng := engine.New(store, log)
	eng.OnTradeSettled = func(st engine.SettledTrade) {
		tradesSettled.Inc()
		payload, err := json.Marshal(events.TradeSettled{
			TradeID: st.TradeID,
			UserID:  st.UserID,
			EventID: st.EventID,
			Status:  string(st.Status),
			Payout:  st.Payout,
			Pnl:     st.Pnl,
			Ts:      time.Now(),
		})
		if err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := skafka.WriteJSON(ctx, settledWriter, st.TradeID, payload); err != nil {
			log.Error("falha ao publicar trade_settled",
				zap.String("trade_id", st.TradeID), zap.Error(err))
		}
	}

	// o estimador externo de priors entra aqui como outra implementação de Source
	proc := ingest.NewProcessor(store, eng, prior.None{}, cfg.DefaultAlpha, log)
	proc.OnUpserted = eventsUpserted.Inc
	proc.OnSettled = eventsSettled.Inc
	proc.OnDLQ = dlqMessages.Inc

	metricsSrv := metrics.StartMetricsServer(cfg.ServiceName, cfg.MetricsPort, func(ctx context.Context) error {
		return database.PingContext(ctx)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		t := time.NewTicker(cfg.ReconcileInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := eng.Reconcile(ctx)
				if err != nil {
					log.Error("varredura de reconciliação falhou", zap.Error(err))
				}
				if n > 0 {
					reconciled.Add(float64(n))
				}
			}
		}
	}()

	log.Info("settlement-worker consumindo",
		zap.String("topic", cfg.TopicEventUpdates),
		zap.Duration("reconcile_interval", cfg.ReconcileInterval))

	if err := proc.Run(ctx, reader, dlq); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer encerrou com erro", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("settlement-worker encerrado")
}
