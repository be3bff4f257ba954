package mongodb

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shopstore/internal/domain"
	"github.com/vladislavdragonenkov/shopstore/internal/storage/storagetest"
)

const defaultLocalIntegrationURI = "mongodb://localhost:27017"

var (
	integrationOnce sync.Once
	integrationURI  string
	integrationErr  error
)

// integrationServerURI один раз на пакет проверяет, доступен ли сервер.
func integrationServerURI(t *testing.T) string {
	t.Helper()

	integrationOnce.Do(func() {
		integrationURI = strings.TrimSpace(os.Getenv("SHOP_MONGO_TEST_URI"))
		if integrationURI == "" {
			integrationURI = defaultLocalIntegrationURI
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		store, err := Open(ctx, integrationURI, "shop_test_ping")
		if err != nil {
			integrationErr = err
			return
		}
		_ = store.Close(context.Background())
	})

	if integrationErr != nil {
		t.Skipf("mongodb is not available for integration tests: %s: %v", integrationURI, integrationErr)
	}
	return integrationURI
}

// openMongoStoreForIntegrationTest открывает отдельную базу на каждый вызов и удаляет её в конце теста.
func openMongoStoreForIntegrationTest(t *testing.T) *Store {
	t.Helper()

	uri := integrationServerURI(t)
	database := fmt.Sprintf("shop_test_%d", time.Now().UnixNano())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	store, err := Open(ctx, uri, database)
	cancel()
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = store.Database().Drop(ctx)
		_ = store.Close(ctx)
	})
	return store
}

func TestOrderRepository_MongoContract(t *testing.T) {
	storagetest.RunOrders(t, func(t *testing.T) domain.OrderRepository {
		return NewOrderRepository(openMongoStoreForIntegrationTest(t))
	})
}

func TestProductRepository_MongoContract(t *testing.T) {
	storagetest.RunProducts(t, func(t *testing.T) domain.ProductRepository {
		return NewProductRepository(openMongoStoreForIntegrationTest(t))
	})
}

func TestRepository_MongoSeparateCounters(t *testing.T) {
	store := openMongoStoreForIntegrationTest(t)
	orders := NewOrderRepository(store)
	products := NewProductRepository(store)
	ctx := context.Background()

	_, err := orders.Save(ctx, domain.Order{ID: 50})
	require.NoError(t, err)

	product, err := products.Save(ctx, domain.Product{Name: "A"})
	require.NoError(t, err)
	require.EqualValues(t, 1, product.ID)

	order, err := orders.Save(ctx, domain.Order{})
	require.NoError(t, err)
	require.EqualValues(t, 51, order.ID)
}

func TestRepository_MongoNewIDSkipsOccupiedDocument(t *testing.T) {
	store := openMongoStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	// Документ с _id 1 записан, а счётчик ещё не сдвинут.
	_, err := store.Database().Collection("orders").InsertOne(ctx, domain.Order{ID: 1, CustomerID: "explicit"})
	require.NoError(t, err)

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

func TestRepository_MongoTruncatesToMilliseconds(t *testing.T) {
	repo := NewProductRepository(openMongoStoreForIntegrationTest(t))
	at := time.Date(2024, time.May, 10, 15, 4, 5, 123456789, time.FixedZone("UTC+3", 3*60*60))

	saved, err := repo.Save(context.Background(), domain.Product{SKU: "A", CreatedAt: at, UpdatedAt: at})
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.May, 10, 12, 4, 5, 123000000, time.UTC), saved.CreatedAt)

	found, ok, err := repo.FindByID(context.Background(), saved.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, saved, found)
}

func TestStore_NilGuards(t *testing.T) {
	var store *Store

	require.Error(t, store.Ping(context.Background()))
	require.NoError(t, store.Close(context.Background()))
}

func TestOpen_RequiresDatabase(t *testing.T) {
	_, err := Open(context.Background(), defaultLocalIntegrationURI, "")
	require.Error(t, err)
}
