package middleware

import (
	"context"
	"net/http"
	"time"

	"facturacion-service/internal/database"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type HealthChecker struct {
	postgresDB *database.PostgresDB
	redisDB    *database.RedisDB
	logger     *zap.Logger
}

// NewHealthChecker crea el checker. redisDB puede ser nil cuando el caché
// corre sólo en memoria.
func NewHealthChecker(postgresDB *database.PostgresDB, redisDB *database.RedisDB, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		postgresDB: postgresDB,
		redisDB:    redisDB,
		logger:     logger,
	}
}

func (h *HealthChecker) HealthCheck(c *gin.Context) {
	status := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"services":  make(map[string]interface{}),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	// Verificar PostgreSQL
	postgresStatus := "healthy"
	if err := h.postgresDB.Ping(ctx); err != nil {
		postgresStatus = "unhealthy"
		status["status"] = "unhealthy"
		h.logger.Error("PostgreSQL health check failed", zap.Error(err))
	}

	// Obtener estadísticas de PostgreSQL
	postgresStats := h.postgresDB.GetStats()
	status["services"].(map[string]interface{})["postgresql"] = gin.H{
		"status": postgresStatus,
		"stats": gin.H{
			"max_open_connections": postgresStats.MaxOpenConnections,
			"open_connections":     postgresStats.OpenConnections,
			"in_use":               postgresStats.InUse,
			"idle":                 postgresStats.Idle,
		},
	}

	// Verificar Redis
	if h.redisDB == nil {
		status["services"].(map[string]interface{})["redis"] = gin.H{"status": "disabled"}
	} else {
		redisStatus := "healthy"
		if err := h.redisDB.Ping(ctx); err != nil {
			redisStatus = "unhealthy"
			status["status"] = "unhealthy"
			h.logger.Error("Redis health check failed", zap.Error(err))
		}

		redisInfo := gin.H{"status": redisStatus}
		if keys, err := h.redisDB.DBSize(ctx); err != nil {
			h.logger.Error("Failed to get Redis stats", zap.Error(err))
			redisInfo["stats"] = "unavailable"
		} else {
			redisInfo["stats"] = gin.H{"keys": keys}
		}
		status["services"].(map[string]interface{})["redis"] = redisInfo
	}

	// Determinar código de respuesta HTTP
	httpStatus := http.StatusOK
	if status["status"] == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, status)
}
