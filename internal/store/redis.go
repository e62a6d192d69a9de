package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// MaxLen caps each collection stream (approximate trimming). Zero means unbounded.
	MaxLen int64
}

// Redis appends each record as an entry of the stream <prefix><collection>.
// Record ids are the stream entry ids.
type Redis struct {
	client *redis.Client
	prefix string
	maxLen int64
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis addr cannot be empty")
	}
	if opts.DB < 0 {
		return nil, fmt.Errorf("redis db must be non-negative")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Redis{client: client, prefix: opts.KeyPrefix, maxLen: opts.MaxLen}, nil
}

func (r *Redis) streamKey(collection string) string {
	return r.prefix + collection
}

func (r *Redis) Append(ctx context.Context, collection string, record map[string]any) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", err
	}

	body, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode %s record: %w", collection, err)
	}

	args := &redis.XAddArgs{
		Stream: r.streamKey(collection),
		Values: map[string]any{"body": string(body)},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	id, err := r.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("append %s record: %w", collection, err)
	}
	return id, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
