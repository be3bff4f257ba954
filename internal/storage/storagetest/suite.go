// Package storagetest содержит общий набор проверок контракта domain.Repository,
// который прогоняется для каждого backend'а хранилища.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shopstore/internal/domain"
)

// Fixture описывает, как создавать репозиторий и тестовые записи.
type Fixture[T domain.Entity[T]] struct {
	// New возвращает пустой репозиторий с последовательностью ID, начинающейся с 1.
	New func(t *testing.T) domain.Repository[T]
	// Sample строит n-ю тестовую запись без ID.
	Sample func(n int) T
	// Mutate меняет атрибуты записи, сохраняя ID.
	Mutate func(T) T
	// Stamp проставляет записи метки времени.
	Stamp func(T, time.Time) T
}

// Run прогоняет проверки контракта Repository.
func Run[T domain.Entity[T]](t *testing.T, f Fixture[T]) {
	t.Helper()

	t.Run("SaveAssignsIDAndFindReturnsEqual", func(t *testing.T) {
		repo := f.New(t)
		ctx := context.Background()

		saved, err := repo.Save(ctx, f.Sample(1))
		require.NoError(t, err)
		require.Positive(t, saved.EntityID())

		found, ok, err := repo.FindByID(ctx, saved.EntityID())
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, saved, found)
	})

	t.Run("SaveReturnsWhatFindReads", func(t *testing.T) {
		repo := f.New(t)
		ctx := context.Background()

		// Наносекунды, монотонные часы и не-UTC пояс должны пережить запись без расхождений.
		now := time.Now().In(time.FixedZone("UTC+3", 3*60*60))

		saved, err := repo.Save(ctx, f.Stamp(f.Sample(1), now))
		require.NoError(t, err)

		found, ok, err := repo.FindByID(ctx, saved.EntityID())
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, saved, found)

		updated, err := repo.Save(ctx, f.Stamp(f.Mutate(saved), now.Add(1234567*time.Nanosecond)))
		require.NoError(t, err)

		found, ok, err = repo.FindByID(ctx, saved.EntityID())
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, updated, found)

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		require.Equal(t, []T{updated}, all)
	})

	t.Run("MissingIDIsAbsentNotError", func(t *testing.T) {
		repo := f.New(t)
		ctx := context.Background()

		for _, id := range []int64{1, 42, 0, -1} {
			_, ok, err := repo.FindByID(ctx, id)
			require.NoError(t, err)
			require.False(t, ok, "id=%d", id)

			exists, err := repo.ExistsByID(ctx, id)
			require.NoError(t, err)
			require.False(t, exists, "id=%d", id)
		}
	})

	t.Run("SaveWithSameIDOverwrites", func(t *testing.T) {
		repo := f.New(t)
		ctx := context.Background()

		first, err := repo.Save(ctx, f.Sample(1))
		require.NoError(t, err)

		changed := f.Mutate(first)
		second, err := repo.Save(ctx, changed)
		require.NoError(t, err)
		require.Equal(t, first.EntityID(), second.EntityID())

		found, ok, err := repo.FindByID(ctx, first.EntityID())
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, changed, found)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 1, count)
	})

	t.Run("SaveWithExplicitIDInsertsWhenAbsent", func(t *testing.T) {
		repo := f.New(t)
		ctx := context.Background()

		explicit := f.Sample(1).WithEntityID(10)
		saved, err := repo.Save(ctx, explicit)
		require.NoError(t, err)
		require.EqualValues(t, 10, saved.EntityID())

		exists, err := repo.ExistsByID(ctx, 10)
		require.NoError(t, err)
		require.True(t, exists)

		// Новый ID не должен совпасть с явно сохранённым.
		next, err := repo.Save(ctx, f.Sample(2))
		require.NoError(t, err)
		require.Greater(t, next.EntityID(), int64(10))

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 2, count)
	})

	t.Run("SaveRejectsNegativeID", func(t *testing.T) {
		repo := f.New(t)

		_, err := repo.Save(context.Background(), f.Sample(1).WithEntityID(-5))
		require.ErrorIs(t, err, domain.ErrPersistence)
		require.ErrorIs(t, err, domain.ErrInvalidID)
	})

	t.Run("CountTracksDistinctIDs", func(t *testing.T) {
		repo := f.New(t)
		ctx := context.Background()

		ids := make([]int64, 0, 5)
		for i := 1; i <= 5; i++ {
			saved, err := repo.Save(ctx, f.Sample(i))
			require.NoError(t, err)
			ids = append(ids, saved.EntityID())
		}
		_, err := repo.Save(ctx, f.Mutate(f.Sample(1).WithEntityID(ids[0])))
		require.NoError(t, err)

		require.NoError(t, repo.DeleteByID(ctx, ids[1]))
		require.NoError(t, repo.DeleteByID(ctx, ids[3]))

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 3, count)

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)

		got := make([]int64, 0, len(all))
		for _, e := range all {
			got = append(got, e.EntityID())
		}
		require.ElementsMatch(t, []int64{ids[0], ids[2], ids[4]}, got)
	})

	t.Run("DeleteMissingIsNoop", func(t *testing.T) {
		repo := f.New(t)
		ctx := context.Background()

		saved, err := repo.Save(ctx, f.Sample(1))
		require.NoError(t, err)

		require.NoError(t, repo.DeleteByID(ctx, saved.EntityID()+100))

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 1, count)

		found, ok, err := repo.FindByID(ctx, saved.EntityID())
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, saved, found)
	})

	t.Run("FindAllRereadsState", func(t *testing.T) {
		repo := f.New(t)
		ctx := context.Background()

		all, err := repo.FindAll(ctx)
		require.NoError(t, err)
		require.Empty(t, all)

		_, err = repo.Save(ctx, f.Sample(1))
		require.NoError(t, err)

		all, err = repo.FindAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
	})

	t.Run("CanceledContextFails", func(t *testing.T) {
		repo := f.New(t)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := repo.Count(ctx)
		require.ErrorIs(t, err, domain.ErrPersistence)
	})
}

// RunOrders прогоняет общий контракт и сценарий для заказов.
func RunOrders(t *testing.T, newRepo func(t *testing.T) domain.OrderRepository) {
	t.Helper()

	Run(t, Fixture[domain.Order]{
		New:    func(t *testing.T) domain.Repository[domain.Order] { return newRepo(t) },
		Sample: SampleOrder,
		Mutate: func(o domain.Order) domain.Order { o.AmountMinor += 1000; o.Status = "paid"; return o },
		Stamp:  func(o domain.Order, at time.Time) domain.Order { o.CreatedAt, o.UpdatedAt = at, at; return o },
	})

	t.Run("OrderUpsertScenario", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Save(ctx, domain.Order{AmountMinor: 10})
		require.NoError(t, err)
		require.EqualValues(t, 1, created.ID)

		_, err = repo.Save(ctx, domain.Order{ID: 1, AmountMinor: 20})
		require.NoError(t, err)

		found, ok, err := repo.FindByID(ctx, 1)
		require.NoError(t, err)
		require.True(t, ok)
		require.EqualValues(t, 1, found.ID)
		require.EqualValues(t, 20, found.AmountMinor)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 1, count)
	})
}

// RunProducts прогоняет общий контракт и сценарий для товаров.
func RunProducts(t *testing.T, newRepo func(t *testing.T) domain.ProductRepository) {
	t.Helper()

	Run(t, Fixture[domain.Product]{
		New:    func(t *testing.T) domain.Repository[domain.Product] { return newRepo(t) },
		Sample: SampleProduct,
		Mutate: func(p domain.Product) domain.Product { p.Name += " v2"; p.PriceMinor *= 2; return p },
		Stamp:  func(p domain.Product, at time.Time) domain.Product { p.CreatedAt, p.UpdatedAt = at, at; return p },
	})

	t.Run("ProductDeleteScenario", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		a, err := repo.Save(ctx, domain.Product{Name: "A"})
		require.NoError(t, err)
		require.EqualValues(t, 1, a.ID)
		_, err = repo.Save(ctx, domain.Product{Name: "B"})
		require.NoError(t, err)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 2, count)

		require.NoError(t, repo.DeleteByID(ctx, 1))

		count, err = repo.Count(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 1, count)

		_, ok, err := repo.FindByID(ctx, 1)
		require.NoError(t, err)
		require.False(t, ok)
	})
}

var baseTime = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

// SampleOrder строит тестовый заказ без ID.
func SampleOrder(n int) domain.Order {
	at := baseTime.Add(time.Duration(n) * time.Minute)
	return domain.Order{
		CustomerID:  "customer-1",
		Status:      "pending",
		Currency:    "USD",
		AmountMinor: int64(n) * 100,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

// SampleProduct строит тестовый товар без ID.
func SampleProduct(n int) domain.Product {
	at := baseTime.Add(time.Duration(n) * time.Minute)
	return domain.Product{
		SKU:         "SKU-" + string(rune('A'+n%26)),
		Name:        "Product " + string(rune('A'+n%26)),
		Description: "test product",
		Currency:    "USD",
		PriceMinor:  int64(n) * 250,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}
