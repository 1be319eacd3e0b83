package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Factura representa la tabla facturas
type Factura struct {
	ID        int              `json:"id" db:"id"`
	IDCliente int              `json:"id_cliente" db:"id_cliente"`
	Fecha     time.Time        `json:"fecha" db:"fecha"`
	Total     decimal.Decimal  `json:"total" db:"total"`
	Detalles  []DetalleFactura `json:"detalles"`
}

// DetalleFactura representa la tabla detalle_factura
type DetalleFactura struct {
	ID             int             `json:"id" db:"id"`
	IDFactura      int             `json:"id_factura" db:"id_factura"`
	IDProducto     int             `json:"id_producto" db:"id_producto"`
	Cantidad       int             `json:"cantidad" db:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario" db:"precio_unitario"`
	Subtotal       decimal.Decimal `json:"subtotal" db:"subtotal"`
}

// FacturaWithDetails incluye los nombres para mostrar
type FacturaWithDetails struct {
	ID            int                   `json:"id"`
	IDCliente     int                   `json:"id_cliente"`
	NombreCliente string                `json:"nombre_cliente,omitempty"`
	Fecha         time.Time             `json:"fecha"`
	Total         decimal.Decimal       `json:"total"`
	Detalles      []DetalleWithProducto `json:"detalles"`
}

// DetalleWithProducto incluye la descripción del producto
type DetalleWithProducto struct {
	DetalleFactura
	DescripcionProducto string `json:"descripcion_producto,omitempty"`
}

// FacturaResumen es una fila del listado de facturas
type FacturaResumen struct {
	ID            int             `json:"id"`
	IDCliente     int             `json:"id_cliente"`
	NombreCliente string          `json:"nombre_cliente"`
	Fecha         time.Time       `json:"fecha"`
	Total         decimal.Decimal `json:"total"`
	CantidadItems int             `json:"cantidad_items"`
}

// FacturaFilter filtros para el listado de facturas
type FacturaFilter struct {
	IDCliente  *int       `json:"id_cliente,omitempty"`
	FechaDesde *time.Time `json:"fecha_desde,omitempty"`
	FechaHasta *time.Time `json:"fecha_hasta,omitempty"`
	Limit      int        `json:"limit,omitempty"`
	Offset     int        `json:"offset,omitempty"`
}

// VentasCliente es el acumulado de un cliente dentro de un reporte
type VentasCliente struct {
	IDCliente     int             `json:"cliente_id"`
	NombreCliente string          `json:"cliente_nombre"`
	MontoTotal    decimal.Decimal `json:"monto_total"`
	Cantidad      int             `json:"cantidad"`
}

// ReporteVentas facturas de un rango de fechas con el desglose por cliente
type ReporteVentas struct {
	Desde       time.Time        `json:"fecha_desde"`
	Hasta       time.Time        `json:"fecha_hasta"`
	IDCliente   *int             `json:"cliente_id,omitempty"`
	Facturas    []FacturaResumen `json:"facturas"`
	VentasTotal decimal.Decimal  `json:"ventas_total"`
	PorCliente  []VentasCliente  `json:"por_cliente"`
}
