package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shopstore/internal/domain"
	"github.com/vladislavdragonenkov/shopstore/internal/storage/storagetest"
)

// openMiniredisStore поднимает in-process Redis на время теста.
func openMiniredisStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	store, err := Open(ctx, srv.Addr(), "shop")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, srv
}

// openRedisStoreForIntegrationTest подключается к Redis из SHOP_REDIS_TEST_ADDR с уникальным
// префиксом ключей и чистит их после теста.
func openRedisStoreForIntegrationTest(t *testing.T) *Store {
	t.Helper()

	addr := strings.TrimSpace(os.Getenv("SHOP_REDIS_TEST_ADDR"))
	if addr == "" {
		t.Skip("SHOP_REDIS_TEST_ADDR is not set")
	}
	prefix := fmt.Sprintf("shop-test-%d", time.Now().UnixNano())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	store, err := Open(ctx, addr, prefix)
	cancel()
	if err != nil {
		t.Skipf("redis is not available for integration tests: %s: %v", addr, err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		keys, err := store.Client().Keys(ctx, "{"+prefix+":*").Result()
		if err == nil && len(keys) > 0 {
			_ = store.Client().Del(ctx, keys...).Err()
		}
		_ = store.Close()
	})
	return store
}

func TestOrderRepository_RedisContract(t *testing.T) {
	storagetest.RunOrders(t, func(t *testing.T) domain.OrderRepository {
		store, _ := openMiniredisStore(t)
		return NewOrderRepository(store)
	})
}

func TestProductRepository_RedisContract(t *testing.T) {
	storagetest.RunProducts(t, func(t *testing.T) domain.ProductRepository {
		store, _ := openMiniredisStore(t)
		return NewProductRepository(store)
	})
}

func TestOrderRepository_RedisServerContract(t *testing.T) {
	openRedisStoreForIntegrationTest(t)

	storagetest.RunOrders(t, func(t *testing.T) domain.OrderRepository {
		return NewOrderRepository(openRedisStoreForIntegrationTest(t))
	})
}

func TestRepository_RedisKeysShareHashSlot(t *testing.T) {
	store := NewStore(nil, "")
	orders := newRepository[domain.Order](store, domain.KindOrder)
	products := newRepository[domain.Product](NewStore(nil, "catalog"), domain.KindProduct)

	require.Equal(t, "{shop:orders}", orders.hashKey)
	require.Equal(t, "{shop:orders}:seq", orders.seqKey)
	require.Equal(t, "{catalog:products}", products.hashKey)
	require.Equal(t, "{catalog:products}:seq", products.seqKey)
}

func TestRepository_RedisNewIDSkipsOccupiedField(t *testing.T) {
	store, srv := openMiniredisStore(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	// Запись под ID 1 появилась, а последовательность ещё не сдвинута.
	srv.HSet("{shop:orders}", "1", `{"id":1,"customer_id":"explicit"}`)

	generated, err := repo.Save(ctx, domain.Order{CustomerID: "generated"})
	require.NoError(t, err)
	require.EqualValues(t, 2, generated.ID)

	explicit, ok, err := repo.FindByID(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "explicit", explicit.CustomerID)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

// beforeScriptHook выполняет fn один раз перед первым вызовом Lua-скрипта.
type beforeScriptHook struct {
	once sync.Once
	fn   func()
}

func (h *beforeScriptHook) DialHook(next goredis.DialHook) goredis.DialHook { return next }

func (h *beforeScriptHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return next
}

func (h *beforeScriptHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		switch cmd.Name() {
		case "evalsha", "eval":
			h.once.Do(h.fn)
		}
		return next(ctx, cmd)
	}
}

func TestRepository_RedisConcurrentExplicitSaveIsNotOverwritten(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	explicitClient := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = explicitClient.Close() })
	explicitRepo := NewOrderRepository(NewStore(explicitClient, "shop"))

	var explicitErr error
	hook := &beforeScriptHook{fn: func() {
		_, explicitErr = explicitRepo.Save(ctx, domain.Order{ID: 1, CustomerID: "explicit"})
	}}
	generatingClient := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	generatingClient.AddHook(hook)
	t.Cleanup(func() { _ = generatingClient.Close() })
	generatingRepo := NewOrderRepository(NewStore(generatingClient, "shop"))

	generated, err := generatingRepo.Save(ctx, domain.Order{CustomerID: "generated"})
	require.NoError(t, err)
	require.NoError(t, explicitErr)
	require.Greater(t, generated.ID, int64(1))

	explicit, ok, err := explicitRepo.FindByID(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "explicit", explicit.CustomerID)

	stored, ok, err := explicitRepo.FindByID(ctx, generated.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, generated, stored)

	count, err := explicitRepo.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestRepository_RedisFindAllTakesIDFromField(t *testing.T) {
	store, srv := openMiniredisStore(t)
	repo := NewProductRepository(store)

	srv.HSet("{shop:products}", "7", `{"id":0,"sku":"A"}`)
	srv.HSet("{shop:products}", "3", `{"id":0,"sku":"B"}`)

	all, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.EqualValues(t, 3, all[0].ID)
	require.Equal(t, "B", all[0].SKU)
	require.EqualValues(t, 7, all[1].ID)
}

func TestRepository_RedisCorruptedRecordIsPersistenceError(t *testing.T) {
	store, srv := openMiniredisStore(t)
	repo := NewProductRepository(store)

	srv.HSet("{shop:products}", "1", "not-json")

	_, _, err := repo.FindByID(context.Background(), 1)
	require.ErrorIs(t, err, domain.ErrPersistence)

	_, err = repo.FindAll(context.Background())
	require.ErrorIs(t, err, domain.ErrPersistence)
}

func TestRepository_RedisRejectsNegativeIDWithoutRoundTrip(t *testing.T) {
	repo := NewProductRepository(NewStore(nil, "shop"))

	_, err := repo.Save(context.Background(), domain.Product{ID: -3})
	require.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestRepository_RedisServerDownIsPersistenceError(t *testing.T) {
	store, srv := openMiniredisStore(t)
	repo := NewOrderRepository(store)
	srv.Close()

	_, err := repo.Save(context.Background(), domain.Order{})
	require.ErrorIs(t, err, domain.ErrPersistence)

	_, err = repo.Count(context.Background())
	require.ErrorIs(t, err, domain.ErrPersistence)
}
