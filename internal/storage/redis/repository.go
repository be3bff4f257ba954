// Package redis реализует репозитории поверх Redis: записи хранятся в hash
// {<prefix>:<kind>s} (поле: ID, значение: JSON), последовательность ID хранится в ключе
// {<prefix>:<kind>s}:seq. Hash tag держит оба ключа в одном слоте кластера.
// ID записи определяется полем hash.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/shopstore/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	// JSON хранит время в RFC 3339 с наносекундами.
	timestampPrecision = time.Nanosecond
)

// saveNewScript выдаёт следующий ID и записывает запись, пропуская ID, уже занятые
// явно сохранёнными записями.
var saveNewScript = goredis.NewScript(`
local id = redis.call('INCR', KEYS[2])
while redis.call('HSETNX', KEYS[1], string.format('%d', id), ARGV[1]) == 0 do
  id = redis.call('INCR', KEYS[2])
end
return id
`)

// saveExplicitScript записывает запись и поднимает последовательность до её ID одной атомарной операцией.
var saveExplicitScript = goredis.NewScript(`
local id = tonumber(ARGV[1])
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
local seq = tonumber(redis.call('GET', KEYS[2]) or '0')
if id > seq then
  redis.call('SET', KEYS[2], ARGV[1])
end
return id
`)

type repository[T domain.Entity[T]] struct {
	kind    domain.Kind
	client  goredis.UniversalClient
	hashKey string
	seqKey  string
}

func newRepository[T domain.Entity[T]](store *Store, kind domain.Kind) *repository[T] {
	hashKey := "{" + store.prefix + ":" + kind.Plural() + "}"
	return &repository[T]{
		kind:    kind,
		client:  store.client,
		hashKey: hashKey,
		seqKey:  hashKey + ":seq",
	}
}

// NewOrderRepository создаёт Redis-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return newRepository[domain.Order](store, domain.KindOrder)
}

// NewProductRepository создаёт Redis-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return newRepository[domain.Product](store, domain.KindProduct)
}

func (r *repository[T]) Save(ctx context.Context, entity T) (T, error) {
	var zero T
	id := entity.EntityID()
	if id < 0 {
		return zero, r.fail("save", id, domain.ErrInvalidID)
	}

	entity = entity.WithStoredTimes(timestampPrecision)

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	payload, err := json.Marshal(entity)
	if err != nil {
		return zero, r.fail("save", id, fmt.Errorf("marshal %s: %w", r.kind, err))
	}

	if id == 0 {
		next, err := saveNewScript.Run(ctx, r.client, []string{r.hashKey, r.seqKey}, payload).Int64()
		if err != nil {
			return zero, r.fail("save", 0, fmt.Errorf("insert %s: %w", r.hashKey, err))
		}
		return entity.WithEntityID(next), nil
	}

	if err := saveExplicitScript.Run(ctx, r.client, []string{r.hashKey, r.seqKey}, field(id), payload).Err(); err != nil {
		return zero, r.fail("save", id, fmt.Errorf("upsert %s: %w", r.hashKey, err))
	}
	return entity, nil
}

func (r *repository[T]) FindByID(ctx context.Context, id int64) (T, bool, error) {
	var zero T

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := r.client.HGet(ctx, r.hashKey, field(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return zero, false, nil
		}
		return zero, false, r.fail("find_by_id", id, fmt.Errorf("hget %s: %w", r.hashKey, err))
	}

	entity, err := r.decode(id, raw)
	if err != nil {
		return zero, false, r.fail("find_by_id", id, err)
	}
	return entity, true, nil
}

func (r *repository[T]) FindAll(ctx context.Context) ([]T, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	records, err := r.client.HGetAll(ctx, r.hashKey).Result()
	if err != nil {
		return nil, r.fail("find_all", 0, fmt.Errorf("hgetall %s: %w", r.hashKey, err))
	}

	result := make([]T, 0, len(records))
	for key, raw := range records {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, r.fail("find_all", 0, fmt.Errorf("parse %s field %q: %w", r.hashKey, key, err))
		}
		entity, err := r.decode(id, []byte(raw))
		if err != nil {
			return nil, r.fail("find_all", id, err)
		}
		result = append(result, entity)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EntityID() < result[j].EntityID()
	})
	return result, nil
}

func (r *repository[T]) DeleteByID(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := r.client.HDel(ctx, r.hashKey, field(id)).Err(); err != nil {
		return r.fail("delete_by_id", id, fmt.Errorf("hdel %s: %w", r.hashKey, err))
	}
	return nil
}

func (r *repository[T]) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	count, err := r.client.HLen(ctx, r.hashKey).Result()
	if err != nil {
		return 0, r.fail("count", 0, fmt.Errorf("hlen %s: %w", r.hashKey, err))
	}
	return count, nil
}

func (r *repository[T]) ExistsByID(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	exists, err := r.client.HExists(ctx, r.hashKey, field(id)).Result()
	if err != nil {
		return false, r.fail("exists_by_id", id, fmt.Errorf("hexists %s: %w", r.hashKey, err))
	}
	return exists, nil
}

func (r *repository[T]) decode(id int64, raw []byte) (T, error) {
	var entity T
	if err := json.Unmarshal(raw, &entity); err != nil {
		return entity, fmt.Errorf("unmarshal %s: %w", r.kind, err)
	}
	return entity.WithEntityID(id), nil
}

func (r *repository[T]) fail(op string, id int64, err error) error {
	return domain.NewPersistenceError(op, r.kind, id, err)
}

func field(id int64) string {
	return strconv.FormatInt(id, 10)
}

var (
	_ domain.OrderRepository   = (*repository[domain.Order])(nil)
	_ domain.ProductRepository = (*repository[domain.Product])(nil)
)
