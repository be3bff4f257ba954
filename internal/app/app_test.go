package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthcheck "github.com/vladislavdragonenkov/shopstore/internal/health"
)

func servingStatus(t *testing.T, server *health.Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := server.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestSyncServingStatus(t *testing.T) {
	var pingErr error
	checks := healthcheck.NewHandler("test")
	checks.RegisterChecker("storage", healthcheck.NewStoreChecker("memory", func(context.Context) error {
		return pingErr
	}, time.Second))

	server := health.NewServer()

	syncServingStatus(server, checks)
	for _, service := range healthServices {
		require.Equal(t, healthpb.HealthCheckResponse_SERVING, servingStatus(t, server, service))
	}

	pingErr = errors.New("connection reset")
	syncServingStatus(server, checks)
	for _, service := range healthServices {
		require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, servingStatus(t, server, service))
	}
}

func TestWatchStorageHealth_StopsOnCancel(t *testing.T) {
	checks := healthcheck.NewHandler("test")
	server := health.NewServer()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		watchStorageHealth(ctx, server, checks, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		resp, err := server.Check(context.Background(), &healthpb.HealthCheckRequest{Service: HealthServiceOrders})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}
