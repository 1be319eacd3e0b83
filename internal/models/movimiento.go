package models

import (
	"time"
)

const (
	MovimientoSalida  = "salida"
	MovimientoEntrada = "entrada"
)

// Movimiento representa la tabla movimientos_stock. Cada detalle de factura
// genera una salida; anular una factura genera la entrada inversa.
type Movimiento struct {
	ID               int       `json:"id" db:"id"`
	IDProducto       int       `json:"id_producto" db:"id_producto"`
	IDFactura        *int      `json:"id_factura,omitempty" db:"id_factura"`
	TipoMovimiento   string    `json:"tipo_movimiento" db:"tipo_movimiento"`
	Cantidad         int       `json:"cantidad" db:"cantidad"`
	CantidadAnterior int       `json:"cantidad_anterior" db:"cantidad_anterior"`
	CantidadNueva    int       `json:"cantidad_nueva" db:"cantidad_nueva"`
	Motivo           string    `json:"motivo" db:"motivo"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}
