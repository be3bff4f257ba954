package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
	StorageDriverMongoDB  = "mongodb"
	StorageDriverRedis    = "redis"
)

// Переменные окружения конфигурации.
const (
	EnvGRPCAddr            = "SHOP_GRPC_ADDR"
	EnvMetricsAddr         = "SHOP_METRICS_ADDR"
	EnvStorageDriver       = "SHOP_STORAGE_DRIVER"
	EnvPostgresDSN         = "SHOP_POSTGRES_DSN"
	EnvPostgresAutoMigrate = "SHOP_POSTGRES_AUTO_MIGRATE"
	EnvMongoURI            = "SHOP_MONGO_URI"
	EnvMongoDatabase       = "SHOP_MONGO_DATABASE"
	EnvRedisAddr           = "SHOP_REDIS_ADDR"
	EnvRedisPrefix         = "SHOP_REDIS_PREFIX"
	EnvKafkaBrokers        = "KAFKA_BROKERS"
	EnvLogLevel            = "SHOP_LOG_LEVEL"
	EnvHealthTimeout       = "SHOP_HEALTH_TIMEOUT"
	EnvConnectAttempts     = "SHOP_STORAGE_CONNECT_ATTEMPTS"
)

// Config описывает настройки запуска приложения.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	MongoURI            string
	MongoDatabase       string
	RedisAddr           string
	RedisPrefix         string
	// ConnectAttempts число попыток подключения к хранилищу при старте.
	ConnectAttempts int

	// KafkaBrokers список брокеров через запятую; пусто - события не публикуются.
	KafkaBrokers string

	LogLevel      string
	HealthTimeout time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска на памяти.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		MongoDatabase:       "shop",
		RedisPrefix:         "shop",
		ConnectAttempts:     3,
		LogLevel:            "info",
		HealthTimeout:       2 * time.Second,
	}
}

// EnvLookup совпадает по сигнатуре с os.LookupEnv.
type EnvLookup func(key string) (string, bool)

// ConfigFromOSEnv читает конфигурацию из окружения процесса.
func ConfigFromOSEnv() (Config, []error) {
	return ConfigFromEnv(os.LookupEnv)
}

// ConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Нераспознанные значения оставляют значение по умолчанию и возвращаются как предупреждения.
func ConfigFromEnv(lookup EnvLookup) (Config, []error) {
	cfg := DefaultConfig()
	var warnings []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str(EnvGRPCAddr, &cfg.GRPCAddr)
	str(EnvMetricsAddr, &cfg.MetricsAddr)
	str(EnvStorageDriver, &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	str(EnvPostgresDSN, &cfg.PostgresDSN)
	str(EnvMongoURI, &cfg.MongoURI)
	str(EnvMongoDatabase, &cfg.MongoDatabase)
	str(EnvRedisAddr, &cfg.RedisAddr)
	str(EnvRedisPrefix, &cfg.RedisPrefix)
	str(EnvKafkaBrokers, &cfg.KafkaBrokers)
	str(EnvLogLevel, &cfg.LogLevel)

	if v, ok := lookup(EnvPostgresAutoMigrate); ok && strings.TrimSpace(v) != "" {
		parsed, err := parseBool(v)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%s: %w", EnvPostgresAutoMigrate, err))
		} else {
			cfg.PostgresAutoMigrate = parsed
		}
	}

	if v, ok := lookup(EnvHealthTimeout); ok && strings.TrimSpace(v) != "" {
		parsed, err := parseDuration(v, func(d time.Duration) bool { return d > 0 }, "must be > 0")
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%s: %w", EnvHealthTimeout, err))
		} else {
			cfg.HealthTimeout = parsed
		}
	}

	if v, ok := lookup(EnvConnectAttempts); ok && strings.TrimSpace(v) != "" {
		parsed, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0")
		if err != nil {
			warnings = append(warnings, fmt.Errorf("%s: %w", EnvConnectAttempts, err))
		} else {
			cfg.ConnectAttempts = parsed
		}
	}

	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		warnings = append(warnings, fmt.Errorf("%s: %w", EnvLogLevel, err))
		cfg.LogLevel = DefaultConfig().LogLevel
	}

	return cfg, warnings
}

// Validate проверяет согласованность настроек выбранного драйвера.
func (c Config) Validate() error {
	if c.GRPCAddr == "" {
		return fmt.Errorf("grpc address is empty")
	}
	if c.MetricsAddr == "" {
		return fmt.Errorf("metrics address is empty")
	}

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%s is required for %s storage driver", EnvPostgresDSN, c.StorageDriver)
		}
	case StorageDriverMongoDB:
		if c.MongoURI == "" {
			return fmt.Errorf("%s is required for %s storage driver", EnvMongoURI, c.StorageDriver)
		}
		if c.MongoDatabase == "" {
			return fmt.Errorf("%s is required for %s storage driver", EnvMongoDatabase, c.StorageDriver)
		}
	case StorageDriverRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%s is required for %s storage driver", EnvRedisAddr, c.StorageDriver)
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}

	if c.LogLevel != "" {
		if _, err := log.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
	}
	return nil
}

// Brokers разбирает KafkaBrokers, отбрасывая пустые элементы.
func (c Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q: %w", raw, err)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("invalid int value %d: %s", value, rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q: %w", raw, err)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("invalid duration value %s: %s", value, rule)
	}
	return value, nil
}
