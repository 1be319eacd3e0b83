package services

import (
	"context"
	"testing"
	"time"

	"facturacion-service/internal/cache"
	"facturacion-service/internal/config"
	"facturacion-service/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecordRequestAgrupaPorEndpoint(t *testing.T) {
	svc := NewMonitoringService(zap.NewNop(), &config.Config{}, nil, nil, nil)
	ahora := time.Now()

	svc.RecordRequest(models.RequestData{Endpoint: "/facturas/:id", Method: "GET", Duration: 20 * time.Millisecond, StatusCode: 200, Timestamp: ahora})
	svc.RecordRequest(models.RequestData{Endpoint: "/facturas/:id", Method: "GET", Duration: 40 * time.Millisecond, StatusCode: 404, Timestamp: ahora})
	svc.RecordRequest(models.RequestData{Endpoint: "/facturas/nueva", Method: "POST", Duration: 1500 * time.Millisecond, StatusCode: 303, Timestamp: ahora})

	m := svc.GetMetrics(context.Background())

	assert.Equal(t, 3, m.Requests.TotalRequests)
	assert.Equal(t, 2, m.Requests.Endpoints)
	assert.Equal(t, 2, m.Requests.ByEndpoint["GET /facturas/:id"].Count)
	assert.Equal(t, 30.0, m.Requests.ByEndpoint["GET /facturas/:id"].AvgTimeMs)
	assert.Len(t, m.Requests.SlowRequests, 1)
	assert.Len(t, m.Requests.Errors, 1)
	assert.Equal(t, int64(1500), m.Performance.MaxResponseTimeMs)
	assert.Equal(t, int64(20), m.Performance.MinResponseTimeMs)
	assert.InDelta(t, 520.0, m.Performance.AvgResponseTimeMs, 0.001)
	require.NotEmpty(t, m.Requests.TopEndpoints)
	assert.Equal(t, "GET /facturas/:id", m.Requests.TopEndpoints[0].Endpoint)
}

func TestMetricasSinBaseNiRedis(t *testing.T) {
	svc := NewMonitoringService(zap.NewNop(), &config.Config{}, nil, nil, nil)
	m := svc.GetMetrics(context.Background())

	assert.Equal(t, "offline", m.Database.Status)
	assert.Equal(t, "disabled", m.Redis.Status)
	assert.False(t, m.Redis.Connected)
	assert.Equal(t, "offline", m.Cache.Status)
	assert.NotEmpty(t, m.System.GoVersion)
}

func TestMetricasDelEditor(t *testing.T) {
	svc := NewMonitoringService(zap.NewNop(), &config.Config{}, nil, nil, nil)

	svc.RecordEditorSesion(1)
	svc.RecordEditorSesion(1)
	svc.RecordEditorSesion(-1)
	svc.RecordEditorAccion("agregar", false)
	svc.RecordEditorAccion("agregar", false)
	svc.RecordEditorAccion("enviar", true)

	e := svc.GetEditorStats()
	assert.Equal(t, 1, e.SesionesActivas)
	assert.Equal(t, int64(2), e.SesionesTotales)
	assert.Equal(t, int64(2), e.Acciones["agregar"])
	assert.Equal(t, int64(1), e.EnviosBloqueados)
}

func TestMetricasDeCacheYRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cc := cache.NewCatalogCache(client, 4, time.Minute, zap.NewNop())
	t.Cleanup(cc.Close)
	ctx := context.Background()
	require.NoError(t, cc.Set(ctx, cache.CatalogoKey, &models.CatalogoSnapshot{}))
	_, err := cc.Get(ctx, cache.CatalogoKey)
	require.NoError(t, err)

	svc := NewMonitoringService(zap.NewNop(), &config.Config{}, client, nil, cc)
	m := svc.GetMetrics(ctx)

	assert.Equal(t, "online", m.Cache.Status)
	assert.True(t, m.Cache.L2Enabled)
	assert.Equal(t, int64(1), m.Cache.TotalHits)
	assert.Equal(t, 1.0, m.Cache.HitRate)
	assert.True(t, m.Redis.Connected)
	assert.Equal(t, 1, m.Redis.Keys)
}

func TestUsedMemory(t *testing.T) {
	bytes, mb := usedMemory("# Memory\r\nused_memory:2097152\r\nused_memory_human:2.00M\r\n")
	assert.Equal(t, "2097152", bytes)
	assert.Equal(t, "2.00 MB", mb)

	bytes, mb = usedMemory("")
	assert.Empty(t, bytes)
	assert.Empty(t, mb)
}
