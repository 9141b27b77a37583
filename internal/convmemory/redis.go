package convmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"docchat/internal/config"
	"docchat/internal/models"
)

const keyPrefix = "docchat:session:"

// RedisHistory keeps each session's turns in a redis list. RPUSH serializes
// concurrent appends for the same key; sessions with no new turns expire
// after the configured TTL.
type RedisHistory struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisHistory(cfg *config.RedisConfig) *RedisHistory {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisHistory{
		client: client,
		ttl:    time.Duration(cfg.SessionTTL) * time.Second,
	}
}

func sessionKey(key string) string {
	return keyPrefix + key
}

func (h *RedisHistory) Append(ctx context.Context, session string, turn models.Turn) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	key := sessionKey(session)
	pipe := h.client.Pipeline()
	pipe.RPush(ctx, key, data)
	if h.ttl > 0 {
		pipe.Expire(ctx, key, h.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append turn for session %s: %w", session, err)
	}
	return nil
}

func (h *RedisHistory) Turns(ctx context.Context, session string) ([]models.Turn, error) {
	items, err := h.client.LRange(ctx, sessionKey(session), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history for session %s: %w", session, err)
	}

	turns := make([]models.Turn, 0, len(items))
	for _, item := range items {
		var turn models.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("decode turn for session %s: %w", session, err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Close releases the redis connection.
func (h *RedisHistory) Close() error {
	return h.client.Close()
}
