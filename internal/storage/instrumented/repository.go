// Package instrumented оборачивает domain.Repository логированием, метриками Prometheus
// и трейсингом OpenTelemetry, не меняя результатов и ошибок вызовов.
package instrumented

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/shopstore/internal/domain"
	"github.com/vladislavdragonenkov/shopstore/internal/metrics"
)

const tracerName = "github.com/vladislavdragonenkov/shopstore/internal/storage/instrumented"

// Options задаёт зависимости декоратора; nil-поля заменяются значениями по умолчанию.
type Options struct {
	Logger  *log.Entry
	Metrics *metrics.RepositoryMetrics
	Tracer  trace.Tracer
}

type repository[T domain.Entity[T]] struct {
	next     domain.Repository[T]
	kind     domain.Kind
	spanName string
	logger   *log.Entry
	metrics  *metrics.RepositoryMetrics
	tracer   trace.Tracer
}

func wrap[T domain.Entity[T]](next domain.Repository[T], kind domain.Kind, opts Options) *repository[T] {
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "repository")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRepositoryMetrics()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	name := string(kind)
	return &repository[T]{
		next:     next,
		kind:     kind,
		spanName: strings.ToUpper(name[:1]) + name[1:] + "Repository",
		logger:   opts.Logger.WithField("entity", name),
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
	}
}

// WrapOrders добавляет инструментирование к репозиторию заказов.
func WrapOrders(next domain.OrderRepository, opts Options) domain.OrderRepository {
	return wrap[domain.Order](next, domain.KindOrder, opts)
}

// WrapProducts добавляет инструментирование к репозиторию товаров.
func WrapProducts(next domain.ProductRepository, opts Options) domain.ProductRepository {
	return wrap[domain.Product](next, domain.KindProduct, opts)
}

// begin открывает span и возвращает функцию завершения, фиксирующую метрики и ошибку.
func (r *repository[T]) begin(ctx context.Context, op string, id int64) (context.Context, func(error)) {
	attrs := []attribute.KeyValue{attribute.String("entity.kind", string(r.kind))}
	if id != 0 {
		attrs = append(attrs, attribute.Int64("entity.id", id))
	}
	ctx, span := r.tracer.Start(ctx, r.spanName+"."+op, trace.WithAttributes(attrs...))
	start := time.Now()

	return ctx, func(err error) {
		elapsed := time.Since(start)
		r.metrics.RecordOperation(string(r.kind), op, elapsed, err)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.logger.WithError(err).WithFields(log.Fields{
				"op":          op,
				"id":          id,
				"duration_ms": elapsed.Milliseconds(),
			}).Error("repository operation failed")
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

func (r *repository[T]) Save(ctx context.Context, entity T) (T, error) {
	ctx, done := r.begin(ctx, "save", entity.EntityID())
	saved, err := r.next.Save(ctx, entity)
	if err == nil {
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int64("entity.saved_id", saved.EntityID()))
		r.logger.WithField("id", saved.EntityID()).Debug("entity saved")
	}
	done(err)
	return saved, err
}

func (r *repository[T]) FindByID(ctx context.Context, id int64) (T, bool, error) {
	ctx, done := r.begin(ctx, "find_by_id", id)
	entity, ok, err := r.next.FindByID(ctx, id)
	if err == nil {
		trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("entity.found", ok))
	}
	done(err)
	return entity, ok, err
}

func (r *repository[T]) FindAll(ctx context.Context) ([]T, error) {
	ctx, done := r.begin(ctx, "find_all", 0)
	all, err := r.next.FindAll(ctx)
	if err == nil {
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("entity.count", len(all)))
	}
	done(err)
	return all, err
}

func (r *repository[T]) DeleteByID(ctx context.Context, id int64) error {
	ctx, done := r.begin(ctx, "delete_by_id", id)
	err := r.next.DeleteByID(ctx, id)
	if err == nil {
		r.logger.WithField("id", id).Debug("entity deleted")
	}
	done(err)
	return err
}

func (r *repository[T]) Count(ctx context.Context) (int64, error) {
	ctx, done := r.begin(ctx, "count", 0)
	count, err := r.next.Count(ctx)
	if err == nil {
		r.metrics.SetRecords(string(r.kind), count)
	}
	done(err)
	return count, err
}

func (r *repository[T]) ExistsByID(ctx context.Context, id int64) (bool, error) {
	ctx, done := r.begin(ctx, "exists_by_id", id)
	exists, err := r.next.ExistsByID(ctx, id)
	done(err)
	return exists, err
}
