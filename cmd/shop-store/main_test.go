package main

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shopstore/internal/app"
)

func mapLookup(values map[string]string) app.EnvLookup {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestReadConfig_Defaults(t *testing.T) {
	cfg := readConfig(mapLookup(nil))
	require.Equal(t, app.DefaultConfig(), cfg)
	require.Equal(t, log.InfoLevel, log.GetLevel())
}

func TestReadConfig_AppliesLogLevel(t *testing.T) {
	t.Cleanup(func() { log.SetLevel(log.InfoLevel) })

	cfg := readConfig(mapLookup(map[string]string{
		app.EnvLogLevel:      "debug",
		app.EnvStorageDriver: "redis",
		app.EnvRedisAddr:     "localhost:6379",
	}))

	require.Equal(t, app.StorageDriverRedis, cfg.StorageDriver)
	require.Equal(t, log.DebugLevel, log.GetLevel())
}

func TestSetupLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	setupLogger("verbose")
	require.Equal(t, log.InfoLevel, log.GetLevel())
}
