package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStore_OpenPingAndClose(t *testing.T) {
	store, srv := openMiniredisStore(t)

	require.NotNil(t, store.Client())
	require.NoError(t, store.Ping(context.Background()))
	require.Equal(t, "shop", store.prefix)

	srv.Close()
	require.Error(t, store.Ping(context.Background()))
}

func TestStore_DefaultPrefix(t *testing.T) {
	require.Equal(t, defaultPrefix, NewStore(nil, "").prefix)
}

func TestStore_OpenUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := Open(ctx, "127.0.0.1:1", "shop")
	require.ErrorContains(t, err, "ping redis")
}

func TestStore_NilGuards(t *testing.T) {
	var store *Store

	require.ErrorIs(t, store.Ping(context.Background()), errStoreNotInitialized)
	require.NoError(t, store.Close())
}
