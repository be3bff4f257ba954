package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vladislavdragonenkov/shopstore/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	// BSON datetime хранит миллисекунды.
	timestampPrecision = time.Millisecond

	// maxInsertAttempts ограничивает повторы вставки, когда выданный счётчиком ID
	// уже занят записью, сохранённой с явным ID.
	maxInsertAttempts = 5
)

type counter struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

// repository обобщённый репозиторий поверх одной коллекции.
// Документы хранятся с _id = ID сущности; поля берутся из bson-тегов сущности.
type repository[T domain.Entity[T]] struct {
	kind     domain.Kind
	coll     *mongo.Collection
	counters *mongo.Collection
}

func newRepository[T domain.Entity[T]](store *Store, kind domain.Kind) *repository[T] {
	db := store.Database()
	return &repository[T]{
		kind:     kind,
		coll:     db.Collection(kind.Plural()),
		counters: db.Collection(countersCollection),
	}
}

// NewOrderRepository создаёт MongoDB-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return newRepository[domain.Order](store, domain.KindOrder)
}

// NewProductRepository создаёт MongoDB-реализацию ProductRepository.
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

	if id == 0 {
		inserted, err := r.insert(ctx, entity)
		if err != nil {
			return zero, r.fail("save", 0, err)
		}
		return inserted, nil
	}

	if err := r.advanceCounter(ctx, id); err != nil {
		return zero, r.fail("save", id, err)
	}
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"_id": id}, entity, options.Replace().SetUpsert(true)); err != nil {
		return zero, r.fail("save", id, fmt.Errorf("replace %s: %w", r.kind, err))
	}
	return entity, nil
}

// insert вставляет запись под следующим ID счётчика. Если ID уже занят явно сохранённой
// записью, берётся следующий.
func (r *repository[T]) insert(ctx context.Context, entity T) (T, error) {
	var err error
	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		var next int64
		next, err = r.nextID(ctx)
		if err != nil {
			return entity, err
		}

		candidate := entity.WithEntityID(next)
		if _, err = r.coll.InsertOne(ctx, candidate); err == nil {
			return candidate, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			break
		}
	}
	return entity, fmt.Errorf("insert %s: %w", r.kind, err)
}

// nextID атомарно увеличивает счётчик коллекции.
func (r *repository[T]) nextID(ctx context.Context) (int64, error) {
	var c counter
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": r.kind.Plural()},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("increment %s counter: %w", r.kind, err)
	}
	return c.Seq, nil
}

// advanceCounter поднимает счётчик до явно заданного ID, чтобы новые ID с ним не пересекались.
func (r *repository[T]) advanceCounter(ctx context.Context, id int64) error {
	_, err := r.counters.UpdateOne(ctx,
		bson.M{"_id": r.kind.Plural()},
		bson.M{"$max": bson.M{"seq": id}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("advance %s counter: %w", r.kind, err)
	}
	return nil
}

func (r *repository[T]) FindByID(ctx context.Context, id int64) (T, bool, error) {
	var entity T

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&entity)
	if err != nil {
		var zero T
		if errors.Is(err, mongo.ErrNoDocuments) {
			return zero, false, nil
		}
		return zero, false, r.fail("find_by_id", id, fmt.Errorf("find %s: %w", r.kind, err))
	}
	return entity.WithStoredTimes(timestampPrecision), true, nil
}

func (r *repository[T]) FindAll(ctx context.Context) ([]T, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, r.fail("find_all", 0, fmt.Errorf("list %s: %w", r.kind, err))
	}
	defer func() {
		_ = cursor.Close(context.Background())
	}()

	result := make([]T, 0)
	if err := cursor.All(ctx, &result); err != nil {
		return nil, r.fail("find_all", 0, fmt.Errorf("decode %s: %w", r.kind, err))
	}
	for i := range result {
		result[i] = result[i].WithStoredTimes(timestampPrecision)
	}
	return result, nil
}

func (r *repository[T]) DeleteByID(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return r.fail("delete_by_id", id, fmt.Errorf("delete %s: %w", r.kind, err))
	}
	return nil
}

func (r *repository[T]) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	count, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, r.fail("count", 0, fmt.Errorf("count %s: %w", r.kind, err))
	}
	return count, nil
}

func (r *repository[T]) ExistsByID(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	count, err := r.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, r.fail("exists_by_id", id, fmt.Errorf("check %s exists: %w", r.kind, err))
	}
	return count > 0, nil
}

func (r *repository[T]) fail(op string, id int64, err error) error {
	return domain.NewPersistenceError(op, r.kind, id, err)
}

var (
	_ domain.OrderRepository   = (*repository[domain.Order])(nil)
	_ domain.ProductRepository = (*repository[domain.Product])(nil)
)
