package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopstore/internal/app"
	"github.com/vladislavdragonenkov/shopstore/internal/domain"
)

const (
	entityOrders   = "orders"
	entityProducts = "products"
	entityAll      = "all"
)

type config struct {
	total       int
	concurrency int
	timeout     time.Duration
	entities    string
	currency    string
	amountMinor int64
	tag         string
	keep        bool
	outputPath  string
}

func parseConfig(args []string) (config, error) {
	var cfg config

	fs := flag.NewFlagSet("storecheck", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.IntVar(&cfg.total, "total", 200, "scenarios per entity kind")
	fs.IntVar(&cfg.concurrency, "concurrency", 8, "number of concurrent workers")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-operation timeout")
	fs.StringVar(&cfg.entities, "entities", entityAll, "entity kinds to check: orders | products | all")
	fs.StringVar(&cfg.currency, "currency", "USD", "currency for generated records")
	fs.Int64Var(&cfg.amountMinor, "amount-minor", 1000, "amount in minor units for generated records")
	fs.StringVar(&cfg.tag, "tag", "storecheck", "prefix for generated customer ids and SKUs")
	fs.BoolVar(&cfg.keep, "keep", false, "keep generated records instead of deleting them")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	cfg.entities = strings.ToLower(strings.TrimSpace(cfg.entities))
	switch cfg.entities {
	case entityOrders, entityProducts, entityAll:
	default:
		return cfg, fmt.Errorf("unsupported entities: %s", cfg.entities)
	}

	if cfg.total <= 0 {
		return cfg, errors.New("total must be > 0")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if cfg.amountMinor <= 0 {
		return cfg, errors.New("amount-minor must be > 0")
	}
	if strings.TrimSpace(cfg.currency) == "" {
		return cfg, errors.New("currency is required")
	}
	if strings.TrimSpace(cfg.tag) == "" {
		return cfg, errors.New("tag is required")
	}
	return cfg, nil
}

// check прогоняет сценарии на репозиториях и возвращает отчёт.
func check(ctx context.Context, cfg config, driver string, orders domain.OrderRepository, products domain.ProductRepository) report {
	startedAt := time.Now()
	col := newCollector()

	jobs := make(chan func(), cfg.concurrency*2)
	var wg sync.WaitGroup
	for i := 0; i < cfg.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				job()
			}
		}()
	}

	checkOrders := cfg.entities == entityOrders || cfg.entities == entityAll
	checkProducts := cfg.entities == entityProducts || cfg.entities == entityAll
	orderTg := orderTarget(orders, cfg)
	productTg := productTarget(products, cfg)

dispatch:
	for i := 0; i < cfg.total; i++ {
		index := i
		if checkOrders {
			select {
			case <-ctx.Done():
				break dispatch
			case jobs <- func() { _ = runScenario(ctx, orderTg, cfg, index, col) }:
			}
		}
		if checkProducts {
			select {
			case <-ctx.Done():
				break dispatch
			case jobs <- func() { _ = runScenario(ctx, productTg, cfg, index, col) }:
			}
		}
	}
	close(jobs)
	wg.Wait()

	result := col.buildReport(driver, startedAt, time.Since(startedAt))
	result.FinalCounts = make(map[string]int64)
	countCtx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()
	if checkOrders {
		if n, err := orders.Count(countCtx); err == nil {
			result.FinalCounts[string(domain.KindOrder)] = n
		}
	}
	if checkProducts {
		if n, err := products.Count(countCtx); err == nil {
			result.FinalCounts[string(domain.KindProduct)] = n
		}
	}
	return result
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	logger := log.WithField("component", "storecheck")

	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	appCfg, warnings := app.ConfigFromOSEnv()
	for _, warning := range warnings {
		logger.WithError(warning).Warn("ignoring invalid environment value")
	}
	if err := appCfg.Validate(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, cfg, appCfg, logger, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run открывает хранилище сервиса, прогоняет сценарии и возвращает код завершения.
func run(ctx context.Context, cfg config, appCfg app.Config, logger *log.Entry, stdout, stderr io.Writer) int {
	repos, err := app.OpenServiceRepositories(ctx, appCfg, logger)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "open storage: %v\n", err)
		return 1
	}
	defer func() {
		if err := repos.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	result := check(ctx, cfg, appCfg.StorageDriver, repos.Orders, repos.Products)
	printReport(stdout, result)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(stderr, "failed to write report: %v\n", err)
			return 1
		}
	}

	if result.FailedScenarios > 0 {
		return 1
	}
	return 0
}
