package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/shopstore/internal/domain"
)

// repositoryInMemory простая in-memory реализация domain.Repository.
type repositoryInMemory[T domain.Entity[T]] struct {
	kind domain.Kind

	mu     sync.RWMutex
	items  map[int64]T
	lastID int64
}

func newRepository[T domain.Entity[T]](kind domain.Kind) *repositoryInMemory[T] {
	return &repositoryInMemory[T]{
		kind:  kind,
		items: make(map[int64]T),
	}
}

// NewOrderRepository возвращает in-memory репозиторий заказов для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return newRepository[domain.Order](domain.KindOrder)
}

// NewProductRepository возвращает in-memory репозиторий товаров.
func NewProductRepository() domain.ProductRepository {
	return newRepository[domain.Product](domain.KindProduct)
}

// Save назначает ID новой записи либо перезаписывает существующую.
func (r *repositoryInMemory[T]) Save(ctx context.Context, entity T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, domain.NewPersistenceError("save", r.kind, entity.EntityID(), err)
	}

	id := entity.EntityID()
	if id < 0 {
		return zero, domain.NewPersistenceError("save", r.kind, id, domain.ErrInvalidID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id == 0 {
		r.lastID++
		id = r.lastID
		entity = entity.WithEntityID(id)
	} else if id > r.lastID {
		// Явно заданный ID сдвигает последовательность, чтобы новые ID с ним не пересекались.
		r.lastID = id
	}

	r.items[id] = entity
	return entity, nil
}

// FindByID возвращает запись, если она есть.
func (r *repositoryInMemory[T]) FindByID(ctx context.Context, id int64) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, domain.NewPersistenceError("find_by_id", r.kind, id, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entity, ok := r.items[id]
	return entity, ok, nil
}

// FindAll возвращает снимок всех записей по возрастанию ID.
func (r *repositoryInMemory[T]) FindAll(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewPersistenceError("find_all", r.kind, 0, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]T, 0, len(r.items))
	for _, entity := range r.items {
		result = append(result, entity)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EntityID() < result[j].EntityID()
	})

	return result, nil
}

func (r *repositoryInMemory[T]) DeleteByID(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return domain.NewPersistenceError("delete_by_id", r.kind, id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, id)
	return nil
}

func (r *repositoryInMemory[T]) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, domain.NewPersistenceError("count", r.kind, 0, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.items)), nil
}

func (r *repositoryInMemory[T]) ExistsByID(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, domain.NewPersistenceError("exists_by_id", r.kind, id, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.items[id]
	return ok, nil
}

var (
	_ domain.OrderRepository   = (*repositoryInMemory[domain.Order])(nil)
	_ domain.ProductRepository = (*repositoryInMemory[domain.Product])(nil)
)
