package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopstore/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/shopstore/internal/health"
	"github.com/vladislavdragonenkov/shopstore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shopstore/internal/metrics"
	"github.com/vladislavdragonenkov/shopstore/internal/retry"
	"github.com/vladislavdragonenkov/shopstore/internal/storage/instrumented"
	"github.com/vladislavdragonenkov/shopstore/internal/storage/memory"
	"github.com/vladislavdragonenkov/shopstore/internal/storage/mongodb"
	"github.com/vladislavdragonenkov/shopstore/internal/storage/postgres"
	"github.com/vladislavdragonenkov/shopstore/internal/storage/redis"
)

const (
	storageOpenTimeout   = 10 * time.Second
	kafkaBreakerFailures = 5
	kafkaBreakerReset    = 30 * time.Second
)

// connect открывает хранилище, делая до cfg.ConnectAttempts попыток.
func connect[S any](ctx context.Context, cfg Config, logger *log.Entry, name string, open func(ctx context.Context) (S, error)) (S, error) {
	var store S
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.ConnectAttempts

	err := retry.Do(ctx, retryCfg, logger, "open "+name, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, storageOpenTimeout)
		defer cancel()

		opened, err := open(attemptCtx)
		if err != nil {
			return err
		}
		store = opened
		return nil
	})
	return store, err
}

// runtimeDependencies содержит репозитории и ресурсы, которые нужно закрыть при остановке.
type runtimeDependencies struct {
	orders         domain.OrderRepository
	products       domain.ProductRepository
	storageChecker healthcheck.Checker
	closeFn        func() error
}

// Repositories пара репозиториев одного хранилища.
type Repositories struct {
	Orders   domain.OrderRepository
	Products domain.ProductRepository
	// Ping проверяет доступность хранилища.
	Ping func(ctx context.Context) error
	// Close освобождает соединения хранилища.
	Close func() error
}

// OpenRepositories открывает хранилище, выбранное в cfg.StorageDriver, без декораторов.
func OpenRepositories(ctx context.Context, cfg Config, logger *log.Entry) (*Repositories, error) {
	if logger == nil {
		logger = log.WithField("component", "storage")
	}

	switch cfg.StorageDriver {
	case StorageDriverMemory:
		return &Repositories{
			Orders:   memory.NewOrderRepository(),
			Products: memory.NewProductRepository(),
			Ping:     func(context.Context) error { return nil },
			Close:    func() error { return nil },
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("%s is required for postgres storage driver", EnvPostgresDSN)
		}
		store, err := connect(ctx, cfg, logger, StorageDriverPostgres, func(ctx context.Context) (*postgres.Store, error) {
			return postgres.Open(ctx, cfg.PostgresDSN)
		})
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			migrateCtx, cancel := context.WithTimeout(ctx, storageOpenTimeout)
			defer cancel()
			if err := store.EnsureSchema(migrateCtx); err != nil {
				_ = store.Close()
				return nil, err
			}
			logger.Info("postgres schema is up to date")
		}
		return &Repositories{
			Orders:   postgres.NewOrderRepository(store),
			Products: postgres.NewProductRepository(store),
			Ping:     store.Ping,
			Close:    store.Close,
		}, nil

	case StorageDriverMongoDB:
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("%s is required for mongodb storage driver", EnvMongoURI)
		}
		store, err := connect(ctx, cfg, logger, StorageDriverMongoDB, func(ctx context.Context) (*mongodb.Store, error) {
			return mongodb.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
		})
		if err != nil {
			return nil, err
		}
		return &Repositories{
			Orders:   mongodb.NewOrderRepository(store),
			Products: mongodb.NewProductRepository(store),
			Ping:     store.Ping,
			Close: func() error {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return store.Close(ctx)
			},
		}, nil

	case StorageDriverRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("%s is required for redis storage driver", EnvRedisAddr)
		}
		store, err := connect(ctx, cfg, logger, StorageDriverRedis, func(ctx context.Context) (*redis.Store, error) {
			return redis.Open(ctx, cfg.RedisAddr, cfg.RedisPrefix)
		})
		if err != nil {
			return nil, err
		}
		return &Repositories{
			Orders:   redis.NewOrderRepository(store),
			Products: redis.NewProductRepository(store),
			Ping:     store.Ping,
			Close:    store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// OpenServiceRepositories открывает хранилище и оборачивает репозитории инструментированием
// (логи, метрики, трассировка) и, если заданы брокеры Kafka, публикацией событий.
// Close закрывает Kafka producer и хранилище.
func OpenServiceRepositories(ctx context.Context, cfg Config, logger *log.Entry) (*Repositories, error) {
	if logger == nil {
		logger = log.WithField("component", "storage")
	}

	repos, err := OpenRepositories(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	repoMetrics := metrics.NewRepositoryMetrics()
	opts := instrumented.Options{
		Logger:  logger.WithField("layer", "repository"),
		Metrics: repoMetrics,
	}

	decorated := &Repositories{
		Orders:   instrumented.WrapOrders(repos.Orders, opts),
		Products: instrumented.WrapProducts(repos.Products, opts),
		Ping:     repos.Ping,
		Close:    repos.Close,
	}

	if producer := initKafkaProducer(cfg.Brokers(), logger); producer != nil {
		eventsLogger := logger.WithField("layer", "events")
		publisher := kafka.NewBreakerPublisher(producer, kafka.NewCircuitBreaker(kafkaBreakerFailures, kafkaBreakerReset, eventsLogger))
		decorated.Orders = kafka.WrapOrders(decorated.Orders, publisher, repoMetrics, eventsLogger)
		decorated.Products = kafka.WrapProducts(decorated.Products, publisher, repoMetrics, eventsLogger)
		decorated.Close = func() error {
			closeKafkaProducer(producer, logger)
			return repos.Close()
		}
	}
	return decorated, nil
}

// initRuntimeDependencies собирает репозитории сервиса и проверку готовности хранилища.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	repos, err := OpenServiceRepositories(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &runtimeDependencies{
		orders:         repos.Orders,
		products:       repos.Products,
		storageChecker: healthcheck.NewStoreChecker(cfg.StorageDriver, repos.Ping, cfg.HealthTimeout),
		closeFn:        repos.Close,
	}, nil
}

// initKafkaProducer создаёт producer, если брокеры заданы.
// Ошибка подключения не останавливает сервис: события просто не публикуются.
func initKafkaProducer(brokers []string, logger *log.Entry) *kafka.Producer {
	if len(brokers) == 0 {
		return nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer
}

// closeKafkaProducer закрывает Kafka producer если он не nil.
func closeKafkaProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
