package models

import "time"

// MonitoringResponse es lo que devuelve /api/v1/monitoring/metrics
type MonitoringResponse struct {
	Requests    RequestMetrics     `json:"requests"`
	Performance PerformanceMetrics `json:"performance"`
	Cache       CacheMetrics       `json:"cache"`
	Database    DatabaseMetrics    `json:"database"`
	System      SystemMetrics      `json:"system"`
	Redis       RedisMetrics       `json:"redis"`
	Editor      EditorMetrics      `json:"editor"`
	Timestamp   string             `json:"timestamp"`
}

// RequestMetrics agrupa los requests por "METODO /ruta".
type RequestMetrics struct {
	TotalRequests int                        `json:"total_requests"`
	Endpoints     int                        `json:"endpoints"`
	ByEndpoint    map[string]EndpointMetrics `json:"by_endpoint"`
	TopEndpoints  []TopEndpoint              `json:"top_endpoints"`
	// SlowRequests y Errors guardan los últimos 100 de cada uno.
	SlowRequests []SlowRequest  `json:"slow_requests"`
	Errors       []RequestError `json:"errors"`
}

type EndpointMetrics struct {
	Count       int     `json:"count"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	TotalTimeMs int64   `json:"total_time_ms"`
}

type SlowRequest struct {
	Endpoint   string    `json:"endpoint"`
	DurationMs int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

type RequestError struct {
	Endpoint   string    `json:"endpoint"`
	StatusCode int       `json:"status_code"`
	Timestamp  time.Time `json:"timestamp"`
}

type TopEndpoint struct {
	Endpoint  string  `json:"endpoint"`
	Count     int     `json:"count"`
	AvgTimeMs float64 `json:"avg_time_ms"`
}

// PerformanceMetrics tiempos de respuesta por request, en milisegundos
type PerformanceMetrics struct {
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
	MaxResponseTimeMs int64   `json:"max_response_time_ms"`
	MinResponseTimeMs int64   `json:"min_response_time_ms"`
}

// CacheMetrics métricas del caché de catálogo
type CacheMetrics struct {
	Status        string  `json:"status"`
	L2Enabled     bool    `json:"l2_enabled"`
	TotalKeys     int     `json:"total_keys"`
	HitRate       float64 `json:"hit_rate"`
	TotalHits     int64   `json:"total_hits"`
	TotalMisses   int64   `json:"total_misses"`
	TotalRequests int64   `json:"total_requests"`
}

// DatabaseMetrics estado del pool de PostgreSQL
type DatabaseMetrics struct {
	Status          string `json:"status"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
	WaitCount       int64  `json:"wait_count"`
}

type SystemMetrics struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	Goroutines    int     `json:"goroutines"`
	HeapAllocMB   float64 `json:"heap_alloc_mb"`
	SysMB         float64 `json:"sys_mb"`
	GoVersion     string  `json:"go_version"`
	Platform      string  `json:"platform"`
	Environment   string  `json:"environment"`
}

// RedisMetrics estado del L2. Status "disabled" cuando no hay Redis
// configurado.
type RedisMetrics struct {
	Status       string `json:"status"`
	Connected    bool   `json:"connected"`
	Keys         int    `json:"keys"`
	UsedMemory   string `json:"used_memory"`
	UsedMemoryMB string `json:"used_memory_mb"`
}

// EditorMetrics sesiones del editor de facturas en vivo
type EditorMetrics struct {
	SesionesActivas  int              `json:"sesiones_activas"`
	SesionesTotales  int64            `json:"sesiones_totales"`
	Acciones         map[string]int64 `json:"acciones"`
	EnviosBloqueados int64            `json:"envios_bloqueados"`
}

// RequestData datos de un request individual
type RequestData struct {
	Endpoint   string
	Method     string
	Duration   time.Duration
	StatusCode int
	Timestamp  time.Time
	Error      error
}
