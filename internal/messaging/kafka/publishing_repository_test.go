package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shopstore/internal/domain"
	"github.com/vladislavdragonenkov/shopstore/internal/metrics"
	"github.com/vladislavdragonenkov/shopstore/internal/storage/memory"
	"github.com/vladislavdragonenkov/shopstore/internal/storage/storagetest"
)

type published struct {
	topic string
	key   string
	event *EntityEvent
}

// recordingPublisher запоминает события и может возвращать ошибку.
type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) PublishEvent(topic string, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{topic: topic, key: key, event: event.(*EntityEvent)})
	return nil
}

func (p *recordingPublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

func newTestMetrics() *metrics.RepositoryMetrics {
	return metrics.NewRepositoryMetricsWithRegisterer(prometheus.NewRegistry())
}

func TestPublishingRepository_Contract(t *testing.T) {
	storagetest.RunOrders(t, func(*testing.T) domain.OrderRepository {
		return WrapOrders(memory.NewOrderRepository(), &recordingPublisher{}, newTestMetrics(), nil)
	})
	storagetest.RunProducts(t, func(*testing.T) domain.ProductRepository {
		return WrapProducts(memory.NewProductRepository(), &recordingPublisher{}, newTestMetrics(), nil)
	})
}

func TestPublishingRepository_PublishesSavedAndDeleted(t *testing.T) {
	publisher := &recordingPublisher{}
	repo := WrapProducts(memory.NewProductRepository(), publisher, newTestMetrics(), nil)
	ctx := context.Background()

	saved, err := repo.Save(ctx, domain.Product{SKU: "A", PriceMinor: 500})
	require.NoError(t, err)
	require.NoError(t, repo.DeleteByID(ctx, saved.ID))

	events := publisher.all()
	require.Len(t, events, 2)

	require.Equal(t, TopicProductEvents, events[0].topic)
	require.Equal(t, "1", events[0].key)
	require.Equal(t, EventType("product.saved"), events[0].event.EventType)
	require.Equal(t, saved, events[0].event.Payload)

	require.Equal(t, EventType("product.deleted"), events[1].event.EventType)
	require.EqualValues(t, saved.ID, events[1].event.EntityID)
	require.Nil(t, events[1].event.Payload)
}

func TestPublishingRepository_DeleteOfMissingPublishesNothing(t *testing.T) {
	publisher := &recordingPublisher{}
	repo := WrapOrders(memory.NewOrderRepository(), publisher, newTestMetrics(), nil)

	require.NoError(t, repo.DeleteByID(context.Background(), 42))
	require.Empty(t, publisher.all())
}

func TestPublishingRepository_PublishFailureKeepsResult(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("broker down")}
	m := newTestMetrics()
	repo := WrapOrders(memory.NewOrderRepository(), publisher, m, nil)
	ctx := context.Background()

	saved, err := repo.Save(ctx, domain.Order{AmountMinor: 10})
	require.NoError(t, err)
	require.EqualValues(t, 1, saved.ID)

	found, ok, err := repo.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 10, found.AmountMinor)

	reg := prometheus.NewRegistry()
	m = metrics.NewRepositoryMetricsWithRegisterer(reg)
	repo = WrapOrders(memory.NewOrderRepository(), publisher, m, nil)
	_, err = repo.Save(ctx, domain.Order{})
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "shop_entity_events_published_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestPublishingRepository_StoreErrorSkipsEvent(t *testing.T) {
	publisher := &recordingPublisher{}
	repo := WrapOrders(memory.NewOrderRepository(), publisher, newTestMetrics(), nil)

	_, err := repo.Save(context.Background(), domain.Order{ID: -1})
	require.ErrorIs(t, err, domain.ErrPersistence)
	require.Empty(t, publisher.all())
}
