// Package rediskv is a storage.Backend on redis.
package rediskv

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultOpTimeout = 2 * time.Second

type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key, e.g. "landform:".
	Prefix string
}

type Store struct {
	client    *redis.Client
	prefix    string
	opTimeout time.Duration
}

func New(opts Options) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &Store{client: client, prefix: opts.Prefix, opTimeout: defaultOpTimeout}
}

// NewWithClient wraps an existing client; Close closes it.
func NewWithClient(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix, opTimeout: defaultOpTimeout}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Get(key string) (string, bool, error) {
	ctx, cancel := s.opContext()
	defer cancel()
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set stores without expiry; snapshot age is enforced by the gateway.
func (s *Store) Set(key, value string) error {
	ctx, cancel := s.opContext()
	defer cancel()
	return s.client.Set(ctx, s.prefix+key, value, 0).Err()
}

func (s *Store) Delete(key string) error {
	ctx, cancel := s.opContext()
	defer cancel()
	return s.client.Del(ctx, s.prefix+key).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.opTimeout)
}
