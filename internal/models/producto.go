package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Producto representa la tabla productos
type Producto struct {
	ID          int             `json:"id" db:"id"`
	Descripcion string          `json:"descripcion" db:"descripcion"`
	Precio      decimal.Decimal `json:"precio" db:"precio"`
	Stock       int             `json:"stock" db:"stock"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// Cliente representa la tabla clientes
type Cliente struct {
	ID        int       `json:"id" db:"id"`
	Nombre    string    `json:"nombre" db:"nombre"`
	Email     *string   `json:"email,omitempty" db:"email"`
	Telefono  *string   `json:"telefono,omitempty" db:"telefono"`
	Direccion *string   `json:"direccion,omitempty" db:"direccion"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CatalogoSnapshot es la foto del catálogo que se cachea: productos
// ordenados por descripción con su precio y stock al momento de leerlos.
type CatalogoSnapshot struct {
	Productos []Producto `json:"productos"`
	LeidoEn   time.Time  `json:"leido_en"`
}
