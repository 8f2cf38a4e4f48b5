package main

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/bet-market-engine/internal/ingest/feed"
	"github.com/radieske/bet-market-engine/internal/shared/config"
	"github.com/radieske/bet-market-engine/internal/shared/logger"
	"github.com/radieske/bet-market-engine/internal/shared/metrics"
	"github.com/radieske/bet-market-engine/pkg/contracts/events"
)

// hub mantém as conexões WebSocket ativas e replica cada atualização.
type hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	log   *zap.Logger
}

func newHub(log *zap.Logger) *hub {
	return &hub{conns: make(map[*websocket.Conn]struct{}), log: log}
}

func (h *hub) add(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
	_ = c.Close()
}

func (h *hub) broadcast(raw []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		if err := c.WriteMessage(websocket.TextMessage, raw); err != nil {
			delete(h.conns, c)
			_ = c.Close()
		}
	}
}

func (h *hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func main() {
	cfg := config.LoadFor("feed-simulator")

	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ticks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_ticks_total",
		Help: "Atualizações de partida emitidas.",
	})
	clients := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "feed_connected_clients",
		Help: "Clientes WebSocket conectados.",
	})
	prometheus.MustRegister(ticks, clients)

	h := newHub(log)
	sim := feed.NewSimulator(rand.New(rand.NewSource(time.Now().UnixNano())))

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("upgrade websocket falhou", zap.Error(err))
			return
		}
		h.add(conn)
		clients.Set(float64(h.size()))
		log.Info("cliente conectado", zap.String("remote", conn.RemoteAddr().String()))

		// estado corrente do ciclo pra quem acabou de chegar
		for _, upd := range sim.Snapshot() {
			raw, err := json.Marshal(upd)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				break
			}
		}

		// só lemos pra detectar o fechamento
		go func() {
			defer func() {
				h.remove(conn)
				clients.Set(float64(h.size()))
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	metricsSrv := metrics.StartMetricsServer(cfg.ServiceName, cfg.MetricsPort, func(context.Context) error {
		return nil
	})

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("servidor do feed caiu", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("feed-simulator no ar",
		zap.String("http_port", cfg.HTTPPort),
		zap.Duration("tick", cfg.FeedTickInterval))

	err = sim.Run(ctx, cfg.FeedTickInterval, func(upd events.EventUpdate) {
		raw, err := json.Marshal(upd)
		if err != nil {
			return
		}
		h.broadcast(raw)
		ticks.Inc()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("simulador encerrou com erro", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("feed-simulator encerrado")
}
