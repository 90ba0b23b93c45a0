package dedupe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "textrelay:inbound:"

// Guard filters provider redeliveries of the same inbound message. It is a
// best-effort filter, not a durable record.
type Guard interface {
	// Claim reports whether key is seen for the first time. An empty key is
	// always first.
	Claim(ctx context.Context, key string) (bool, error)
}

type redisGuard struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisGuard(client *redis.Client, ttl time.Duration, logger *slog.Logger) Guard {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &redisGuard{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (g *redisGuard) Claim(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return true, nil
	}

	first, err := g.client.SetNX(ctx, keyPrefix+key, time.Now().Unix(), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claiming inbound message: %w", err)
	}
	if !first {
		g.logger.InfoContext(ctx, "inbound message already claimed", "message_sid", key)
	}
	return first, nil
}

type noopGuard struct{}

// NewNoopGuard returns a Guard that treats every message as new.
func NewNoopGuard() Guard {
	return noopGuard{}
}

func (noopGuard) Claim(context.Context, string) (bool, error) {
	return true, nil
}
