package database

import (
	"context"
	"testing"

	"facturacion-service/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRedisDB(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("facturacion:catalogo:productos", "{}"))
	ctx := context.Background()

	rdb, err := NewRedisDB(ctx, config.RedisConfig{URL: "redis://" + mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	defer rdb.Close()

	assert.NoError(t, rdb.Ping(ctx))
	n, err := rdb.DBSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNewRedisDBURLInvalida(t *testing.T) {
	_, err := NewRedisDB(context.Background(), config.RedisConfig{URL: "http://no-es-redis"}, zap.NewNop())
	assert.Error(t, err)
}
