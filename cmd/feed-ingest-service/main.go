package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/bet-market-engine/internal/ingest/feed"
	"github.com/radieske/bet-market-engine/internal/shared/config"
	"github.com/radieske/bet-market-engine/internal/shared/logger"
	"github.com/radieske/bet-market-engine/internal/shared/metrics"
	skafka "github.com/radieske/bet-market-engine/internal/shared/kafka"
)

func main() {
	cfg := config.LoadFor("feed-ingest-service")

	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	messages := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_feed_messages_total",
		Help: "Mensagens do feed republicadas no Kafka.",
	})
	feedErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_feed_errors_total",
		Help: "Quedas de conexão com o feed.",
	})
	prometheus.MustRegister(messages, feedErrors)

	writer := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicEventUpdates)
	defer writer.Close()

	ing := feed.NewIngestor(cfg.FeedWSURL, writer, log)
	ing.OnMessage = messages.Inc
	ing.OnError = feedErrors.Inc

	metricsSrv := metrics.StartMetricsServer(cfg.ServiceName, cfg.MetricsPort, func(context.Context) error {
		return nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("feed-ingest-service no ar",
		zap.String("feed", cfg.FeedWSURL),
		zap.String("topic", cfg.TopicEventUpdates))

	if err := ing.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("ingestor encerrou com erro", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("feed-ingest-service encerrado")
}
