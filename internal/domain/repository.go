package domain

import (
	"context"
	"time"
)

// Kind задаёт тип сущности: используется для имён таблиц, коллекций, метрик и топиков.
type Kind string

const (
	KindOrder   Kind = "order"
	KindProduct Kind = "product"
)

// Plural возвращает имя коллекции для типа сущности (orders, products).
func (k Kind) Plural() string {
	return string(k) + "s"
}

// Entity описывает запись с числовым идентификатором.
// Нулевой ID означает, что запись ещё не сохранялась.
type Entity[T any] interface {
	// EntityID возвращает идентификатор записи.
	EntityID() int64
	// WithEntityID возвращает копию записи с указанным идентификатором.
	WithEntityID(id int64) T
	// WithStoredTimes возвращает копию записи с метками времени в UTC,
	// округлёнными вниз до точности хранилища.
	WithStoredTimes(precision time.Duration) T
}

// StoredTime приводит метку времени к виду, в котором её возвращает хранилище:
// UTC, без показаний монотонных часов, с точностью precision.
func StoredTime(t time.Time, precision time.Duration) time.Time {
	return t.UTC().Truncate(precision)
}

// Repository описывает базовые CRUD-операции над сущностями одного типа.
type Repository[T Entity[T]] interface {
	// Save вставляет запись (назначая новый ID, если он не задан) или перезаписывает
	// существующую запись с тем же ID. Возвращает сохранённую запись.
	Save(ctx context.Context, entity T) (T, error)
	// FindByID возвращает запись и true, либо нулевое значение и false, если записи нет.
	FindByID(ctx context.Context, id int64) (T, bool, error)
	// FindAll возвращает все записи; каждый вызов перечитывает текущее состояние хранилища.
	FindAll(ctx context.Context) ([]T, error)
	// DeleteByID удаляет запись; отсутствие записи ошибкой не является.
	DeleteByID(ctx context.Context, id int64) error
	// Count возвращает количество сохранённых записей.
	Count(ctx context.Context) (int64, error)
	// ExistsByID проверяет наличие записи.
	ExistsByID(ctx context.Context, id int64) (bool, error)
}

// OrderRepository хранилище заказов.
type OrderRepository interface {
	Repository[Order]
}

// ProductRepository хранилище товаров.
type ProductRepository interface {
	Repository[Product]
}
