package kafka

import (
	"context"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopstore/internal/domain"
	"github.com/vladislavdragonenkov/shopstore/internal/metrics"
)

// EventPublisher отправляет событие в topic. Реализуется Producer.
type EventPublisher interface {
	PublishEvent(topic string, key string, event any) error
}

// PublishingRepository публикует события после успешных изменений в хранилище.
// Ошибки публикации логируются и не влияют на результат операции.
type PublishingRepository[T domain.Entity[T]] struct {
	domain.Repository[T]
	kind      domain.Kind
	topic     string
	publisher EventPublisher
	metrics   *metrics.RepositoryMetrics
	logger    *log.Entry
}

func newPublishingRepository[T domain.Entity[T]](next domain.Repository[T], kind domain.Kind, publisher EventPublisher, m *metrics.RepositoryMetrics, logger *log.Entry) *PublishingRepository[T] {
	if m == nil {
		m = metrics.NewRepositoryMetrics()
	}
	if logger == nil {
		logger = log.WithField("component", "entity-events")
	}
	return &PublishingRepository[T]{
		Repository: next,
		kind:       kind,
		topic:      TopicFor(kind),
		publisher:  publisher,
		metrics:    m,
		logger:     logger.WithField("entity", string(kind)),
	}
}

// WrapOrders публикует изменения заказов в TopicOrderEvents.
func WrapOrders(next domain.OrderRepository, publisher EventPublisher, m *metrics.RepositoryMetrics, logger *log.Entry) domain.OrderRepository {
	return newPublishingRepository[domain.Order](next, domain.KindOrder, publisher, m, logger)
}

// WrapProducts публикует изменения товаров в TopicProductEvents.
func WrapProducts(next domain.ProductRepository, publisher EventPublisher, m *metrics.RepositoryMetrics, logger *log.Entry) domain.ProductRepository {
	return newPublishingRepository[domain.Product](next, domain.KindProduct, publisher, m, logger)
}

func (r *PublishingRepository[T]) Save(ctx context.Context, entity T) (T, error) {
	saved, err := r.Repository.Save(ctx, entity)
	if err != nil {
		return saved, err
	}
	r.publish(ActionSaved, saved.EntityID(), saved)
	return saved, nil
}

func (r *PublishingRepository[T]) DeleteByID(ctx context.Context, id int64) error {
	existed, err := r.Repository.ExistsByID(ctx, id)
	if err != nil {
		r.logger.WithError(err).WithField("id", id).Warn("cannot check entity before delete, event skipped")
		existed = false
	}

	if err := r.Repository.DeleteByID(ctx, id); err != nil {
		return err
	}
	if existed {
		r.publish(ActionDeleted, id, nil)
	}
	return nil
}

func (r *PublishingRepository[T]) publish(action string, id int64, payload any) {
	event := NewEntityEvent(r.kind, action, id, payload)
	err := r.publisher.PublishEvent(r.topic, strconv.FormatInt(id, 10), event)
	r.metrics.RecordEventPublished(string(r.kind), string(event.EventType), err)
	if err != nil {
		r.logger.WithError(err).WithFields(log.Fields{
			"id":         id,
			"event_type": event.EventType,
			"event_id":   event.EventID,
		}).Warn("failed to publish entity event")
	}
}
