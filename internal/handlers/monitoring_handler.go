package handlers

import (
	"net/http"
	"time"

	"facturacion-service/internal/models"
	"facturacion-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const metricsInterval = 10 * time.Second

type MonitoringHandler struct {
	monitoringService services.MonitoringService
	logger            *zap.Logger
}

func NewMonitoringHandler(monitoringService services.MonitoringService, logger *zap.Logger) *MonitoringHandler {
	return &MonitoringHandler{
		monitoringService: monitoringService,
		logger:            logger,
	}
}

// GetMetrics maneja la petición HTTP para obtener métricas
func (h *MonitoringHandler) GetMetrics(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "get_metrics"))

	ctx := c.Request.Context()
	metrics := h.monitoringService.GetMetrics(ctx)

	logger.Info("Métricas obtenidas",
		zap.Int("total_requests", metrics.Requests.TotalRequests),
		zap.Int("endpoints", metrics.Requests.Endpoints),
		zap.Float64("avg_response_time_ms", metrics.Performance.AvgResponseTimeMs))

	c.JSON(http.StatusOK, metrics)
}

// upgrader compartido por los websockets de métricas y del editor
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketMetrics empuja las métricas completas cada metricsInterval.
func (h *MonitoringHandler) WebSocketMetrics(c *gin.Context) {
	logger := h.logger.With(zap.String("handler", "websocket_metrics"))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("No se pudo abrir el websocket de métricas", zap.Error(err))
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics := h.monitoringService.GetMetrics(c.Request.Context())
			if err := conn.WriteJSON(metrics); err != nil {
				logger.Debug("Cliente de métricas desconectado", zap.Error(err))
				return
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}

// RecordRequestMiddleware registra cada request salvo los de monitoreo y health.
func (h *MonitoringHandler) RecordRequestMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if sinMonitoreo[path] {
			return
		}

		// Agrupar por ruta registrada (/facturas/:id) y no por URL concreta
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = path
		}

		var reqErr error
		if last := c.Errors.Last(); last != nil {
			reqErr = last.Err
		}

		h.monitoringService.RecordRequest(models.RequestData{
			Endpoint:   endpoint,
			Method:     c.Request.Method,
			Duration:   time.Since(start),
			StatusCode: c.Writer.Status(),
			Timestamp:  time.Now(),
			Error:      reqErr,
		})
	}
}

var sinMonitoreo = map[string]bool{
	"/api/v1/monitoring/metrics":         true,
	"/api/v1/monitoring/metrics/summary": true,
	"/api/v1/monitoring/ws":              true,
	"/health/monitoring":                 true,
	"/health":                            true,
}

// HealthCheck versión liviana del health basada en las métricas; Redis
// deshabilitado no degrada el estado.
func (h *MonitoringHandler) HealthCheck(c *gin.Context) {
	ctx := c.Request.Context()

	servicios := gin.H{"database": "online", "redis": "online"}
	status := "healthy"

	switch redis := h.monitoringService.GetRedisStats(ctx); {
	case redis.Status == "disabled":
		servicios["redis"] = "disabled"
	case !redis.Connected:
		servicios["redis"] = "offline"
		status = "degraded"
	}

	if h.monitoringService.GetDatabaseStats(ctx).Status != "online" {
		servicios["database"] = "offline"
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  servicios,
	})
}

func (h *MonitoringHandler) GetMetricsSummary(c *gin.Context) {
	metrics := h.monitoringService.GetMetrics(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"requests": gin.H{
			"total":         metrics.Requests.TotalRequests,
			"endpoints":     metrics.Requests.Endpoints,
			"errors":        len(metrics.Requests.Errors),
			"slow_requests": len(metrics.Requests.SlowRequests),
		},
		"performance": metrics.Performance,
		"cache": gin.H{
			"status":     metrics.Cache.Status,
			"hit_rate":   metrics.Cache.HitRate,
			"total_keys": metrics.Cache.TotalKeys,
		},
		"database": gin.H{
			"status":           metrics.Database.Status,
			"open_connections": metrics.Database.OpenConnections,
			"in_use":           metrics.Database.InUse,
		},
		"redis": gin.H{
			"status":         metrics.Redis.Status,
			"keys":           metrics.Redis.Keys,
			"used_memory_mb": metrics.Redis.UsedMemoryMB,
		},
		"editor": gin.H{
			"sesiones_activas":  metrics.Editor.SesionesActivas,
			"envios_bloqueados": metrics.Editor.EnviosBloqueados,
		},
		"uptime_seconds": metrics.System.UptimeSeconds,
		"timestamp":      metrics.Timestamp,
	})
}
