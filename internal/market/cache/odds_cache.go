// Package cache guarda snapshots de odds no Redis para servir leituras
// quentes sem bater no banco. Falha de cache nunca derruba a requisição.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix  = "odds:"
	defaultTTL = 30 * time.Second
)

// OddsSnapshot é a visão cacheada da linha corrente de um evento.
type OddsSnapshot struct {
	EventID string    `json:"event_id"`
	Home    float64   `json:"home"`
	Away    float64   `json:"away"`
	Draw    float64   `json:"draw,omitempty"`
	At      time.Time `json:"at"`
}

type OddsCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

func NewOddsCache(rdb *redis.Client, log *zap.Logger) *OddsCache {
	return &OddsCache{rdb: rdb, ttl: defaultTTL, log: log}
}

// Get devolve o snapshot cacheado, ou ok=false em miss/erro.
func (c *OddsCache) Get(ctx context.Context, eventID string) (OddsSnapshot, bool) {
	raw, err := c.rdb.Get(ctx, keyPrefix+eventID).Bytes()
	if err == redis.Nil {
		return OddsSnapshot{}, false
	}
	if err != nil {
		c.log.Warn("cache de odds indisponível", zap.Error(err))
		return OddsSnapshot{}, false
	}
	var snap OddsSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		c.log.Warn("snapshot de odds corrompido no cache", zap.String("event_id", eventID), zap.Error(err))
		return OddsSnapshot{}, false
	}
	return snap, true
}

func (c *OddsCache) Set(ctx context.Context, snap OddsSnapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+snap.EventID, raw, c.ttl).Err(); err != nil {
		c.log.Warn("falha ao gravar snapshot de odds", zap.String("event_id", snap.EventID), zap.Error(err))
	}
}

func (c *OddsCache) Invalidate(ctx context.Context, eventID string) {
	if err := c.rdb.Del(ctx, keyPrefix+eventID).Err(); err != nil {
		c.log.Warn("falha ao invalidar snapshot de odds", zap.String("event_id", eventID), zap.Error(err))
	}
}
