package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/shopstore/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	// timestamptz хранит микросекунды.
	timestampPrecision = time.Microsecond

	// maxInsertAttempts ограничивает повторы вставки, когда выданный последовательностью ID
	// уже занят записью, сохранённой с явным ID.
	maxInsertAttempts = 5

	uniqueViolationCode = "23505"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// table описывает отображение сущности на таблицу: все колонки, кроме id.
type table[T domain.Entity[T]] struct {
	kind    domain.Kind
	name    string
	columns []string
	values  func(T) []any
	scan    func(rowScanner) (T, error)
}

// repository обобщённая реализация domain.Repository поверх одной таблицы.
type repository[T domain.Entity[T]] struct {
	db    *sql.DB
	table table[T]

	selectCols string
	insertSQL  string
	upsertSQL  string
	seqSQL     string
}

func newRepository[T domain.Entity[T]](store *Store, t table[T]) *repository[T] {
	cols := strings.Join(t.columns, ", ")

	insertPlaceholders := make([]string, len(t.columns))
	for i := range t.columns {
		insertPlaceholders[i] = fmt.Sprintf("$%d", i+1)
	}

	upsertPlaceholders := make([]string, len(t.columns)+1)
	for i := range upsertPlaceholders {
		upsertPlaceholders[i] = fmt.Sprintf("$%d", i+1)
	}
	updates := make([]string, len(t.columns))
	for i, c := range t.columns {
		updates[i] = fmt.Sprintf("%s = EXCLUDED.%s", c, c)
	}

	seq := t.name + "_id_seq"

	return &repository[T]{
		db:         store.DB(),
		table:      t,
		selectCols: "id, " + cols,
		insertSQL: fmt.Sprintf(
			`INSERT INTO %s (%s) VALUES (%s) RETURNING id`,
			t.name, cols, strings.Join(insertPlaceholders, ","),
		),
		upsertSQL: fmt.Sprintf(
			`INSERT INTO %s (id, %s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s`,
			t.name, cols, strings.Join(upsertPlaceholders, ","), strings.Join(updates, ", "),
		),
		// Явно заданный ID сдвигает последовательность, чтобы BIGSERIAL не выдал его повторно.
		seqSQL: fmt.Sprintf(
			`SELECT setval('%s', $1) FROM %s WHERE last_value < $1 OR (last_value = $1 AND NOT is_called)`,
			seq, seq,
		),
	}
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return newRepository(store, ordersTable)
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return newRepository(store, productsTable)
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
		newID, err := r.insert(ctx, entity)
		if err != nil {
			return zero, r.fail("save", 0, err)
		}
		return entity.WithEntityID(newID), nil
	}

	if err := r.upsert(ctx, entity); err != nil {
		return zero, r.fail("save", id, err)
	}
	return entity, nil
}

// insert вставляет запись с ID из последовательности. Если ID уже занят явно сохранённой
// записью, вставка повторяется со следующим значением последовательности.
func (r *repository[T]) insert(ctx context.Context, entity T) (int64, error) {
	var err error
	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		var newID int64
		err = r.db.QueryRowContext(ctx, r.insertSQL, r.table.values(entity)...).Scan(&newID)
		if err == nil {
			return newID, nil
		}
		if !isUniqueViolation(err) {
			break
		}
	}
	return 0, fmt.Errorf("insert %s: %w", r.table.name, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func (r *repository[T]) upsert(ctx context.Context, entity T) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	args := append([]any{entity.EntityID()}, r.table.values(entity)...)
	if _, err = tx.ExecContext(ctx, r.upsertSQL, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", r.table.name, err)
	}

	rows, err := tx.QueryContext(ctx, r.seqSQL, entity.EntityID())
	if err != nil {
		return fmt.Errorf("advance %s sequence: %w", r.table.name, err)
	}
	if err = rows.Close(); err != nil {
		return fmt.Errorf("advance %s sequence: %w", r.table.name, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert %s: %w", r.table.name, err)
	}
	return nil
}

func (r *repository[T]) FindByID(ctx context.Context, id int64) (T, bool, error) {
	var zero T

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, r.selectCols, r.table.name), id)
	entity, err := r.table.scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, false, nil
		}
		return zero, false, r.fail("find_by_id", id, fmt.Errorf("select %s: %w", r.table.name, err))
	}
	return entity.WithStoredTimes(timestampPrecision), true, nil
}

func (r *repository[T]) FindAll(ctx context.Context) ([]T, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s ORDER BY id ASC`, r.selectCols, r.table.name))
	if err != nil {
		return nil, r.fail("find_all", 0, fmt.Errorf("list %s: %w", r.table.name, err))
	}
	defer rows.Close()

	result := make([]T, 0)
	for rows.Next() {
		entity, err := r.table.scan(rows)
		if err != nil {
			return nil, r.fail("find_all", 0, fmt.Errorf("scan %s row: %w", r.table.name, err))
		}
		result = append(result, entity.WithStoredTimes(timestampPrecision))
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("find_all", 0, fmt.Errorf("iterate %s rows: %w", r.table.name, err))
	}

	return result, nil
}

func (r *repository[T]) DeleteByID(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table.name), id); err != nil {
		return r.fail("delete_by_id", id, fmt.Errorf("delete %s: %w", r.table.name, err))
	}
	return nil
}

func (r *repository[T]) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var count int64
	if err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table.name)).Scan(&count); err != nil {
		return 0, r.fail("count", 0, fmt.Errorf("count %s: %w", r.table.name, err))
	}
	return count, nil
}

func (r *repository[T]) ExistsByID(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var exists bool
	if err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, r.table.name), id).Scan(&exists); err != nil {
		return false, r.fail("exists_by_id", id, fmt.Errorf("check %s exists: %w", r.table.name, err))
	}
	return exists, nil
}

func (r *repository[T]) fail(op string, id int64, err error) error {
	return domain.NewPersistenceError(op, r.table.kind, id, err)
}

var (
	_ domain.OrderRepository   = (*repository[domain.Order])(nil)
	_ domain.ProductRepository = (*repository[domain.Product])(nil)
)
