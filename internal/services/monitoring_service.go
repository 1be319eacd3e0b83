package services

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"facturacion-service/internal/cache"
	"facturacion-service/internal/config"
	"facturacion-service/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	maxSlowRequests   = 100
	maxRequestErrors  = 100
	slowRequestMillis = 1000
)

type MonitoringService interface {
	GetMetrics(ctx context.Context) *models.MonitoringResponse
	RecordRequest(data models.RequestData)
	RecordEditorSesion(delta int)
	RecordEditorAccion(accion string, bloqueado bool)
	GetCacheStats() models.CacheMetrics
	GetDatabaseStats(ctx context.Context) models.DatabaseMetrics
	GetSystemStats() models.SystemMetrics
	GetRedisStats(ctx context.Context) models.RedisMetrics
	GetEditorStats() models.EditorMetrics
}

type monitoringService struct {
	logger       *zap.Logger
	config       *config.Config
	redisClient  *redis.Client
	dbPool       *sql.DB
	catalogCache *cache.CatalogCache

	// Métricas de requests
	requestsMutex sync.RWMutex
	requests      map[string]*models.EndpointMetrics
	slowRequests  []models.SlowRequest
	errors        []models.RequestError
	totalRequests int64
	maxDuration   int64
	minDuration   int64

	// Editor en vivo
	editorMutex      sync.Mutex
	sesionesActivas  int
	sesionesTotales  int64
	acciones         map[string]int64
	enviosBloqueados int64

	startTime time.Time
}

// NewMonitoringService crea el servicio. redisClient y dbPool pueden ser nil;
// en ese caso se reportan como offline.
func NewMonitoringService(
	logger *zap.Logger,
	config *config.Config,
	redisClient *redis.Client,
	dbPool *sql.DB,
	catalogCache *cache.CatalogCache,
) MonitoringService {
	return &monitoringService{
		logger:       logger,
		config:       config,
		redisClient:  redisClient,
		dbPool:       dbPool,
		catalogCache: catalogCache,
		requests:     make(map[string]*models.EndpointMetrics),
		acciones:     make(map[string]int64),
		startTime:    time.Now(),
	}
}

func (s *monitoringService) RecordRequest(data models.RequestData) {
	s.requestsMutex.Lock()
	defer s.requestsMutex.Unlock()

	endpointKey := fmt.Sprintf("%s %s", data.Method, data.Endpoint)

	metrics, exists := s.requests[endpointKey]
	if !exists {
		metrics = &models.EndpointMetrics{}
		s.requests[endpointKey] = metrics
	}

	metrics.Count++
	durationMs := data.Duration.Milliseconds()
	metrics.TotalTimeMs += durationMs
	metrics.AvgTimeMs = float64(metrics.TotalTimeMs) / float64(metrics.Count)

	s.totalRequests++
	if durationMs > s.maxDuration {
		s.maxDuration = durationMs
	}
	if s.totalRequests == 1 || durationMs < s.minDuration {
		s.minDuration = durationMs
	}

	if durationMs > slowRequestMillis {
		s.slowRequests = append(s.slowRequests, models.SlowRequest{
			Endpoint:   endpointKey,
			DurationMs: durationMs,
			Timestamp:  data.Timestamp,
		})
		if len(s.slowRequests) > maxSlowRequests {
			s.slowRequests = s.slowRequests[1:]
		}
	}

	if data.Error != nil || data.StatusCode >= 400 {
		s.errors = append(s.errors, models.RequestError{
			Endpoint:   endpointKey,
			StatusCode: data.StatusCode,
			Timestamp:  data.Timestamp,
		})
		if len(s.errors) > maxRequestErrors {
			s.errors = s.errors[1:]
		}
	}
}

// RecordEditorSesion suma (delta > 0) o resta sesiones abiertas del editor.
func (s *monitoringService) RecordEditorSesion(delta int) {
	s.editorMutex.Lock()
	defer s.editorMutex.Unlock()

	s.sesionesActivas += delta
	if s.sesionesActivas < 0 {
		s.sesionesActivas = 0
	}
	if delta > 0 {
		s.sesionesTotales += int64(delta)
	}
}

func (s *monitoringService) RecordEditorAccion(accion string, bloqueado bool) {
	s.editorMutex.Lock()
	defer s.editorMutex.Unlock()

	s.acciones[accion]++
	if bloqueado {
		s.enviosBloqueados++
	}
}

func (s *monitoringService) GetEditorStats() models.EditorMetrics {
	s.editorMutex.Lock()
	defer s.editorMutex.Unlock()

	acciones := make(map[string]int64, len(s.acciones))
	for k, v := range s.acciones {
		acciones[k] = v
	}
	return models.EditorMetrics{
		SesionesActivas:  s.sesionesActivas,
		SesionesTotales:  s.sesionesTotales,
		Acciones:         acciones,
		EnviosBloqueados: s.enviosBloqueados,
	}
}

func (s *monitoringService) GetMetrics(ctx context.Context) *models.MonitoringResponse {
	s.requestsMutex.RLock()
	requestMetrics := s.calculateRequestMetrics()
	performanceMetrics := s.calculatePerformanceMetrics()
	s.requestsMutex.RUnlock()

	return &models.MonitoringResponse{
		Requests:    requestMetrics,
		Performance: performanceMetrics,
		Cache:       s.GetCacheStats(),
		Database:    s.GetDatabaseStats(ctx),
		System:      s.GetSystemStats(),
		Redis:       s.GetRedisStats(ctx),
		Editor:      s.GetEditorStats(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

func (s *monitoringService) calculateRequestMetrics() models.RequestMetrics {
	type endpoint struct {
		key     string
		metrics *models.EndpointMetrics
	}
	endpoints := make([]endpoint, 0, len(s.requests))
	for key, metrics := range s.requests {
		endpoints = append(endpoints, endpoint{key, metrics})
	}

	// Ordenar por count descendente, desempate por nombre
	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].metrics.Count != endpoints[j].metrics.Count {
			return endpoints[i].metrics.Count > endpoints[j].metrics.Count
		}
		return endpoints[i].key < endpoints[j].key
	})

	var topEndpoints []models.TopEndpoint
	for i, e := range endpoints {
		if i >= 10 {
			break
		}
		topEndpoints = append(topEndpoints, models.TopEndpoint{
			Endpoint:  e.key,
			Count:     e.metrics.Count,
			AvgTimeMs: e.metrics.AvgTimeMs,
		})
	}

	byEndpoint := make(map[string]models.EndpointMetrics, len(s.requests))
	for key, metrics := range s.requests {
		byEndpoint[key] = *metrics
	}

	return models.RequestMetrics{
		TotalRequests: int(s.totalRequests),
		Endpoints:     len(s.requests),
		ByEndpoint:    byEndpoint,
		TopEndpoints:  topEndpoints,
		SlowRequests:  append([]models.SlowRequest(nil), s.slowRequests...),
		Errors:        append([]models.RequestError(nil), s.errors...),
	}
}

func (s *monitoringService) calculatePerformanceMetrics() models.PerformanceMetrics {
	var totalTime int64
	for _, metrics := range s.requests {
		totalTime += metrics.TotalTimeMs
	}

	var avgTime float64
	if s.totalRequests > 0 {
		avgTime = float64(totalTime) / float64(s.totalRequests)
	}

	return models.PerformanceMetrics{
		AvgResponseTimeMs: avgTime,
		MaxResponseTimeMs: s.maxDuration,
		MinResponseTimeMs: s.minDuration,
	}
}

func (s *monitoringService) GetCacheStats() models.CacheMetrics {
	if s.catalogCache == nil {
		return models.CacheMetrics{Status: "offline"}
	}

	cacheStats := s.catalogCache.GetStats()
	return models.CacheMetrics{
		Status:        "online",
		L2Enabled:     cacheStats.L2Enabled,
		TotalKeys:     cacheStats.TotalKeys,
		HitRate:       cacheStats.HitRate(),
		TotalHits:     cacheStats.Hits,
		TotalMisses:   cacheStats.Misses,
		TotalRequests: cacheStats.TotalRequests,
	}
}

func (s *monitoringService) GetDatabaseStats(ctx context.Context) models.DatabaseMetrics {
	if s.dbPool == nil {
		return models.DatabaseMetrics{Status: "offline"}
	}

	status := "online"
	if err := s.dbPool.PingContext(ctx); err != nil {
		s.logger.Warn("PostgreSQL no responde", zap.Error(err))
		status = "offline"
	}

	stats := s.dbPool.Stats()
	return models.DatabaseMetrics{
		Status:          status,
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		WaitCount:       stats.WaitCount,
	}
}

func (s *monitoringService) GetSystemStats() models.SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	environment := "production"
	if s.config != nil && s.config.Server.GinMode == "debug" {
		environment = "development"
	}

	return models.SystemMetrics{
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		HeapAllocMB:   float64(m.HeapAlloc) / 1024 / 1024,
		SysMB:         float64(m.Sys) / 1024 / 1024,
		GoVersion:     runtime.Version(),
		Platform:      runtime.GOOS,
		Environment:   environment,
	}
}

func (s *monitoringService) GetRedisStats(ctx context.Context) models.RedisMetrics {
	if s.redisClient == nil {
		return models.RedisMetrics{Status: "disabled"}
	}

	connected := s.redisClient.Ping(ctx).Err() == nil

	var keys int
	var memory, memoryMB string
	if connected {
		if n, err := s.redisClient.DBSize(ctx).Result(); err == nil {
			keys = int(n)
		}
		if info, err := s.redisClient.Info(ctx, "memory").Result(); err == nil {
			memory, memoryMB = usedMemory(info)
		}
	}

	status := "offline"
	if connected {
		status = "online"
	}

	return models.RedisMetrics{
		Status:       status,
		Connected:    connected,
		Keys:         keys,
		UsedMemory:   memory,
		UsedMemoryMB: memoryMB,
	}
}

// usedMemory extrae used_memory de la salida de INFO memory.
func usedMemory(info string) (string, string) {
	for _, line := range strings.Split(info, "\n") {
		valor, ok := strings.CutPrefix(strings.TrimSpace(line), "used_memory:")
		if !ok {
			continue
		}
		bytes, err := strconv.ParseInt(valor, 10, 64)
		if err != nil {
			return valor, ""
		}
		return valor, fmt.Sprintf("%.2f MB", float64(bytes)/1024/1024)
	}
	return "", ""
}
