package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/jonathan/storybook/internal/types"
)

const bookPrefix = "book:"

// RedisStore keeps books as JSON strings in Redis
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration // zero keeps books forever
}

// NewRedisStore connects to redisURL
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func bookKey(id string) string {
	return bookPrefix + id
}

// Save stores the book under book:<id>
func (s *RedisStore) Save(ctx context.Context, book *types.Book) error {
	data, err := sonic.Marshal(book)
	if err != nil {
		return fmt.Errorf("failed to marshal book: %w", err)
	}

	if err := s.client.Set(ctx, bookKey(book.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save book %s: %w", book.ID, err)
	}
	return nil
}

// Load retrieves a book by id
func (s *RedisStore) Load(ctx context.Context, id string) (*types.Book, error) {
	data, err := s.client.Get(ctx, bookKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load book %s: %w", id, err)
	}

	var book types.Book
	if err := sonic.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("failed to parse book %s: %w", id, err)
	}
	return &book, nil
}

// Close closes the client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
