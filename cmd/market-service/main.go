package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/bet-market-engine/internal/engine"
	"github.com/radieske/bet-market-engine/internal/ledger"
	"github.com/radieske/bet-market-engine/internal/market"
	oddscache "github.com/radieske/bet-market-engine/internal/market/cache"
	"github.com/radieske/bet-market-engine/internal/market/httpapi"
	"github.com/radieske/bet-market-engine/internal/market/pubsub"
	"github.com/radieske/bet-market-engine/internal/shared/cache"
	"github.com/radieske/bet-market-engine/internal/shared/config"
	"github.com/radieske/bet-market-engine/internal/shared/db"
	"github.com/radieske/bet-market-engine/internal/shared/logger"
	"github.com/radieske/bet-market-engine/internal/shared/metrics"
)

func main() {
	cfg := config.LoadFor("market-service")

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

	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis indisponível", zap.Error(err))
	}
	defer rdb.Close()

	tradesPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "market_trades_placed_total",
		Help: "Apostas colocadas com sucesso.",
	})
	tradesSold := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "market_trades_sold_total",
		Help: "Trades transferidas no marketplace.",
	})
	oddsMoves := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "market_odds_moves_total",
		Help: "Recálculos de odds disparados por apostas.",
	})
	prometheus.MustRegister(tradesPlaced, tradesSold, oddsMoves)

	eng := engine.New(store, log)
	oc := oddscache.NewOddsCache(rdb, log)
	pub := pubsub.NewPublisher(rdb, cfg.RedisPubSubChannel, log)

	eng.OnOddsUpdated = func(ev *market.Event) {
		oddsMoves.Inc()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		oc.Set(ctx, oddscache.OddsSnapshot{
			EventID: ev.ID,
			Home:    ev.HomeOdds,
			Away:    ev.AwayOdds,
			Draw:    ev.DrawOdds,
			At:      ev.UpdatedAt,
		})
		pub.PublishOddsMove(ctx, pubsub.OddsMove{
			EventID: ev.ID,
			Home:    ev.HomeOdds,
			Away:    ev.AwayOdds,
			Draw:    ev.DrawOdds,
			At:      ev.UpdatedAt,
		})
	}

	api := httpapi.New(eng, oc, log)
	api.OnTradePlaced = tradesPlaced.Inc
	api.OnTradeSold = tradesSold.Inc

	metricsSrv := metrics.StartMetricsServer(cfg.ServiceName, cfg.MetricsPort, func(ctx context.Context) error {
		return database.PingContext(ctx)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("servidor http caiu", zap.Error(err))
		}
	}()
	log.Info("market-service no ar",
		zap.String("http_port", cfg.HTTPPort),
		zap.String("metrics_port", cfg.MetricsPort))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("encerrando")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	_ = metricsSrv.Shutdown(ctx)
}
