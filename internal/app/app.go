package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/vladislavdragonenkov/shopstore/internal/health"
	"github.com/vladislavdragonenkov/shopstore/internal/version"
)

// Имена сервисов в grpc.health.v1.
const (
	HealthServiceOrders   = "shop.Orders"
	HealthServiceProducts = "shop.Products"
)

var healthServices = []string{"", HealthServiceOrders, HealthServiceProducts}

const healthPollInterval = 5 * time.Second

func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	if err := cfg.Validate(); err != nil {
		return err
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()
	logger.WithField("storage_driver", cfg.StorageDriver).Info("репозитории инициализированы")

	if orders, products, err := refreshRecordCounts(ctx, deps, cfg.HealthTimeout); err != nil {
		logger.WithError(err).Warn("failed to count stored records")
	} else {
		logger.WithFields(log.Fields{"orders": orders, "products": products}).Info("записи в хранилище")
	}

	grpcMetrics := promgrpc.NewServerMetrics()
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	// Register reflection service for grpcurl
	reflection.Register(grpcServer)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	syncServingStatus(healthServer, healthHandler)
	go watchStorageHealth(watchCtx, healthServer, healthHandler, healthPollInterval)
	go watchRecordCounts(watchCtx, deps, healthPollInterval, cfg.HealthTimeout, logger)

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownHTTP(metricsSrv, logger)
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gRPC сервер слушает %s", lis.Addr())
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем gRPC сервер")
		stopWatch()
		healthServer.Shutdown()
		stoppedCh := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stoppedCh)
		}()
		select {
		case <-stoppedCh:
		case <-time.After(5 * time.Second):
			logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
			grpcServer.Stop()
		}
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// syncServingStatus переводит gRPC health-сервисы в SERVING или NOT_SERVING по готовности хранилища.
func syncServingStatus(server *health.Server, checks *healthcheck.Handler) {
	status := healthpb.HealthCheckResponse_SERVING
	if !checks.Ready() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	for _, service := range healthServices {
		server.SetServingStatus(service, status)
	}
}

func watchStorageHealth(ctx context.Context, server *health.Server, checks *healthcheck.Handler, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			syncServingStatus(server, checks)
		}
	}
}

// refreshRecordCounts считает записи через репозитории сервиса; инструментированный слой
// при этом обновляет gauge shop_repository_records.
func refreshRecordCounts(ctx context.Context, deps *runtimeDependencies, timeout time.Duration) (int64, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	orders, err := deps.orders.Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	products, err := deps.products.Count(ctx)
	if err != nil {
		return 0, 0, err
	}
	return orders, products, nil
}

func watchRecordCounts(ctx context.Context, deps *runtimeDependencies, interval, timeout time.Duration, logger *log.Entry) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := refreshRecordCounts(ctx, deps, timeout); err != nil && ctx.Err() == nil {
				logger.WithError(err).Debug("failed to refresh record counts")
			}
		}
	}
}

// startMetricsServer запускает HTTP-обработчики /metrics и health checks.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
