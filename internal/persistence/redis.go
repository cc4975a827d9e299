package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/heartlog/rehab-api/internal/config"
)

// ErrRedisNotConfigured is returned by Ping on a nil store.
var ErrRedisNotConfigured = errors.New("redis client not configured")

// Redis holds the shared client used by rate limiting and webhook dedupe.
type Redis struct {
	Client *redis.Client
}

// NewRedis builds the client and checks reachability within cfg.PingTimeout().
// go-redis redials on demand, so an unreachable server is logged and startup continues.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	r := &Redis{Client: client}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout())
	defer cancel()
	if err := r.Ping(pingCtx); err != nil {
		logger.Warn("redis unavailable at startup; rate limiting and dedupe degrade until it returns",
			zap.String("addr", cfg.Addr), zap.Error(err))
	} else {
		logger.Info("connected to redis", zap.String("addr", cfg.Addr))
	}
	return r
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return ErrRedisNotConfigured
	}
	return r.Client.Ping(ctx).Err()
}
