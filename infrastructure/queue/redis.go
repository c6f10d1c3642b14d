package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"segment-selector/domain/selection"
	"segment-selector/infrastructure/config"
)

// Message is the JSON document pushed for every submission
type Message struct {
	selection.Submission
	SubmittedAt time.Time `json:"submitted_at"`
}

// listPusher is the part of the redis client the consumer needs
type listPusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RedisConsumer implements selection.Consumer by appending submissions
// to a Redis list that downstream workers pop from
type RedisConsumer struct {
	client listPusher
	key    string
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisConsumer wraps an existing client
func NewRedisConsumer(client listPusher, key string, logger *zap.Logger) *RedisConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisConsumer{
		client: client,
		key:    key,
		logger: logger,
		now:    time.Now,
	}
}

// Connect opens a client from config and checks the connection
func Connect(ctx context.Context, cfg config.QueueConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
	}

	return client, nil
}

// Submit implements selection.Consumer
func (c *RedisConsumer) Submit(ctx context.Context, sub selection.Submission) error {
	payload, err := json.Marshal(Message{Submission: sub, SubmittedAt: c.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode submission: %w", err)
	}

	length, err := c.client.RPush(ctx, c.key, payload).Result()
	if err != nil {
		return fmt.Errorf("failed to queue submission: %w", err)
	}

	c.logger.Info("selection queued",
		zap.String("key", c.key),
		zap.String("source", sub.Source),
		zap.Float64("start", sub.Start),
		zap.Float64("end", sub.End),
		zap.Int64("queue_length", length),
	)
	return nil
}

var _ selection.Consumer = (*RedisConsumer)(nil)
