package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"car-advisor/internal/config"
	"car-advisor/internal/logging"
)

// RedisClient wraps the Redis client with per-user search history management
type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
	size   int
	logger logging.Logger
}

// SearchHistoryEntry records one pipeline run. Only the query and the outcome summary
// are kept, never scraped listing data.
type SearchHistoryEntry struct {
	ID             string    `json:"id"`
	Query          string    `json:"query"`
	Pipeline       string    `json:"pipeline"`
	Platforms      []string  `json:"platforms,omitempty"`
	ResultCount    int       `json:"result_count"`
	SummaryMessage string    `json:"summary_message,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewRedisClient creates a new Redis client instance
func NewRedisClient(cfg *config.Config) *RedisClient {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		opts = &redis.Options{
			Addr: "localhost:6379",
		}
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}

	opts.DialTimeout = cfg.Redis.Timeout
	opts.ReadTimeout = cfg.Redis.Timeout
	opts.WriteTimeout = cfg.Redis.Timeout

	return NewRedisClientFrom(redis.NewClient(opts), cfg.Redis.HistoryTTL, cfg.Redis.HistorySize)
}

// NewRedisClientFrom wraps an existing client
func NewRedisClientFrom(client *redis.Client, ttl time.Duration, size int) *RedisClient {
	if size <= 0 {
		size = 20
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisClient{
		client: client,
		ttl:    ttl,
		size:   size,
		logger: logging.GetGlobalLogger(),
	}
}

// Ping tests the Redis connection
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// RecordSearch prepends an entry to the user's history, trimming it to the configured size
func (r *RedisClient) RecordSearch(ctx context.Context, userID string, entry SearchHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = GenerateRequestID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal search history entry: %w", err)
	}

	key := r.historyKey(userID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, entryJSON)
		pipe.LTrim(ctx, key, 0, int64(r.size-1))
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save search history entry", map[string]interface{}{
			"user_id":  userID,
			"entry_id": entry.ID,
			"error":    err.Error(),
		})
		return fmt.Errorf("failed to save search history entry: %w", err)
	}

	return nil
}

// SearchHistory returns the user's history, newest first. Unknown users get an empty list.
func (r *RedisClient) SearchHistory(ctx context.Context, userID string) ([]SearchHistoryEntry, error) {
	raw, err := r.client.LRange(ctx, r.historyKey(userID), 0, int64(r.size-1)).Result()
	if err != nil {
		if err == redis.Nil {
			return []SearchHistoryEntry{}, nil
		}
		return nil, fmt.Errorf("failed to get search history: %w", err)
	}

	entries := make([]SearchHistoryEntry, 0, len(raw))
	for _, item := range raw {
		var entry SearchHistoryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			r.logger.Warn("Skipping unreadable search history entry", map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			})
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// ClearSearchHistory deletes the user's history
func (r *RedisClient) ClearSearchHistory(ctx context.Context, userID string) error {
	return r.client.Del(ctx, r.historyKey(userID)).Err()
}

// historyKey generates the Redis key for a user's search history
func (r *RedisClient) historyKey(userID string) string {
	return fmt.Sprintf("history:user:%s", userID)
}

// IsHealthy checks if Redis is connected and healthy
func (r *RedisClient) IsHealthy(ctx context.Context) error {
	return r.Ping(ctx)
}
