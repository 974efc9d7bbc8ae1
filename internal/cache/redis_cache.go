package cache

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const keyWebhookEvent = "dedup:webhook:%s"

type RedisEventDeduper struct {
	client *redis.Client
}

func NewRedisEventDeduper(addr string, password string, db int) *RedisEventDeduper {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisEventDeduper{client: client}
}

func (d *RedisEventDeduper) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

func (d *RedisEventDeduper) Close() error {
	return d.client.Close()
}

func (d *RedisEventDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, fmt.Sprintf(keyWebhookEvent, eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisEventDeduper) Mark(ctx context.Context, eventID string, ttl time.Duration) error {
	return d.client.Set(ctx, fmt.Sprintf(keyWebhookEvent, eventID), time.Now().UTC().Format(time.RFC3339), ttl).Err()
}
