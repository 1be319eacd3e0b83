package routes

import (
	"net/http"

	"facturacion-service/internal/handlers"
	"facturacion-service/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers agrupa los handlers que se montan en el router
type Handlers struct {
	Factura    *handlers.FacturaHandler
	Catalogo   *handlers.CatalogHandler
	Editor     *handlers.EditorHandler
	Monitoring *handlers.MonitoringHandler
	Health     *middleware.HealthChecker
}

// SetupRoutes configura todas las rutas de la aplicación
func SetupRoutes(router *gin.Engine, h Handlers) {
	// Páginas del editor
	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/facturas")
	})
	facturas := router.Group("/facturas")
	{
		facturas.GET("", h.Factura.ListarFacturas)
		facturas.GET("/nueva", h.Factura.NuevaFactura)
		facturas.POST("/nueva", h.Factura.CrearFactura)
		facturas.POST("/nueva/items", h.Factura.AccionItems)
		facturas.GET("/:id", h.Factura.VerFactura)
		facturas.POST("/:id/eliminar", h.Factura.EliminarFactura)
	}
	router.GET("/reportes", h.Factura.Reporte)

	// API v1 group
	v1 := router.Group("/api/v1", handlers.APIMiddleware())
	{
		apiFacturas := v1.Group("/facturas")
		{
			apiFacturas.GET("", h.Factura.ListarFacturas)
			apiFacturas.POST("", h.Factura.CrearFactura)
			apiFacturas.GET("/:id", h.Factura.VerFactura)
			apiFacturas.DELETE("/:id", h.Factura.EliminarFactura)
			apiFacturas.POST("/items", h.Factura.AccionItems)
			apiFacturas.GET("/editor/ws", h.Editor.WebSocketEditor)
		}

		v1.GET("/reportes", h.Factura.Reporte)
		v1.GET("/catalogo", h.Catalogo.GetCatalogo)
		v1.POST("/catalogo/invalidar", h.Catalogo.InvalidarCatalogo)
		v1.GET("/clientes", h.Catalogo.GetClientes)

		// Monitoring routes
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/metrics", h.Monitoring.GetMetrics)
			monitoring.GET("/metrics/summary", h.Monitoring.GetMetricsSummary)
			monitoring.GET("/ws", h.Monitoring.WebSocketMetrics)
		}
	}

	// Health check en raíz
	if h.Health != nil {
		router.GET("/health", h.Health.HealthCheck)
	}
	router.GET("/health/monitoring", h.Monitoring.HealthCheck)
}
