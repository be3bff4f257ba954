package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultConnTimeout = 5 * time.Second
	defaultPoolSize    = 10
	defaultMaxRetries  = 3
	defaultPrefix      = "shop"
)

var errStoreNotInitialized = errors.New("redis store is not initialized")

// Store держит клиента Redis и префикс ключей.
type Store struct {
	client goredis.UniversalClient
	prefix string
}

// Open подключается к Redis и проверяет доступность сервера.
func Open(ctx context.Context, addr, prefix string) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		PoolSize:    defaultPoolSize,
		MaxRetries:  defaultMaxRetries,
		DialTimeout: defaultConnTimeout,
	})

	store := NewStore(client, prefix)
	if err := store.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return store, nil
}

// NewStore оборачивает уже созданного клиента (кластер, sentinel или одиночный узел).
// Ключи одного типа сущности используют общий hash tag, поэтому скрипты работают и в кластере.
func NewStore(client goredis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Client возвращает клиента Redis.
func (s *Store) Client() goredis.UniversalClient {
	return s.client
}

// Ping проверяет доступность сервера.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return errStoreNotInitialized
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.client.Ping(pingCtx).Err()
}

func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
