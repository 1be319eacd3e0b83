package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ===== REQUEST DTOs =====

// FacturaRequest DTO para crear una factura. Llega desde el formulario ya
// normalizado por el editor o como JSON.
type FacturaRequest struct {
	IDCliente int           `json:"id_cliente" validate:"required,gt=0"`
	Fecha     *time.Time    `json:"fecha,omitempty"`
	Items     []ItemRequest `json:"items" validate:"required,min=1"`
}

// ItemRequest representa una línea de la factura
type ItemRequest struct {
	Fila           int             `json:"fila"`
	IDProducto     int             `json:"id_producto" validate:"required,gt=0"`
	Cantidad       int             `json:"cantidad" validate:"required,gt=0"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
}

// ===== RESPONSE DTOs =====

// ItemError error de validación de una línea
type ItemError struct {
	Fila  int    `json:"fila"`
	Campo string `json:"campo"`
	Error string `json:"error"`
}

// FacturaResponse respuesta para alta y consulta de facturas
type FacturaResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    *FacturaWithDetails `json:"data,omitempty"`
	Errores []ItemError         `json:"errores,omitempty"`
}

// FacturasResponse respuesta para el listado de facturas
type FacturasResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		TotalFacturas int              `json:"total_facturas"`
		TotalVendido  decimal.Decimal  `json:"total_vendido"`
		Facturas      []FacturaResumen `json:"facturas"`
		Timestamp     string           `json:"timestamp"`
	} `json:"data"`
}

// ReporteResponse respuesta del reporte de ventas
type ReporteResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    *ReporteVentas `json:"data,omitempty"`
}
