package handlers

import (
	"net/http"
	"time"

	"facturacion-service/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CatalogHandler expone el catálogo de precios y clientes que usa el editor
type CatalogHandler struct {
	catalogo services.CatalogService
	logger   *zap.Logger
}

func NewCatalogHandler(catalogo services.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogo: catalogo,
		logger:   logger,
	}
}

// GetCatalogo devuelve precios por producto y opciones del selector
func (h *CatalogHandler) GetCatalogo(c *gin.Context) {
	start := time.Now()
	logger := h.logger.With(zap.String("handler", "get_catalogo"))

	cat, err := h.catalogo.Catalogo(c.Request.Context())
	if err != nil {
		logger.Error("Error obteniendo catálogo", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Error obteniendo catálogo de productos",
			"error":   err.Error(),
		})
		return
	}

	logger.Debug("Catálogo servido",
		zap.Int("productos", len(cat.Productos)),
		zap.Duration("latency", time.Since(start)))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"precios":  cat.Precios,
			"opciones": cat.Opciones,
			"leido_en": cat.LeidoEn.Format(time.RFC3339),
		},
	})
}

func (h *CatalogHandler) GetClientes(c *gin.Context) {
	clientes, err := h.catalogo.Clientes(c.Request.Context())
	if err != nil {
		h.logger.Error("Error listando clientes", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Error listando clientes",
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    clientes,
	})
}

// InvalidarCatalogo descarta el catálogo cacheado. Se llama cuando otro
// sistema modifica precios o stock.
func (h *CatalogHandler) InvalidarCatalogo(c *gin.Context) {
	if err := h.catalogo.Invalidar(c.Request.Context()); err != nil {
		h.logger.Error("Error invalidando catálogo", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Error invalidando caché",
			"error":   err.Error(),
		})
		return
	}

	h.logger.Info("Catálogo invalidado", zap.String("client_ip", c.ClientIP()))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Caché de catálogo invalidado",
	})
}
