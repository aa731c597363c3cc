package db

import (
	"context"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/config"

	"github.com/redis/go-redis/v9"
)

// NewRedis connects to REDIS_URL. It returns nil when Redis is not configured.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.GetRedisURL() == "" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
