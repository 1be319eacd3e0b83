package editor

import "github.com/shopspring/decimal"

// Fila es una línea de la factura. Los valores se guardan tal como llegan
// del formulario; los números se interpretan recién al calcular.
type Fila struct {
	Index          int
	ProductoID     string
	Cantidad       string
	PrecioUnitario string
	Subtotal       string

	// Estado de presentación derivado del producto elegido.
	StockLabel  string
	MaxCantidad *int
	ShowAdd     bool
	ShowRemove  bool
}

// Nombre devuelve el name (y id) del campo para la posición actual de la fila.
func (f Fila) Nombre(c Campo) string {
	return FieldName(f.Index, c)
}

// Valor devuelve el valor crudo del campo.
func (f Fila) Valor(c Campo) string {
	switch c {
	case CampoProducto:
		return f.ProductoID
	case CampoCantidad:
		return f.Cantidad
	case CampoPrecio:
		return f.PrecioUnitario
	case CampoSubtotal:
		return f.Subtotal
	}
	return ""
}

func (f *Fila) set(c Campo, v string) {
	switch c {
	case CampoProducto:
		f.ProductoID = v
	case CampoCantidad:
		f.Cantidad = v
	case CampoPrecio:
		f.PrecioUnitario = v
	case CampoSubtotal:
		f.Subtotal = v
	}
}

// TieneProducto indica si la fila tiene un producto real elegido (ni vacío
// ni el placeholder "0").
func (f Fila) TieneProducto() bool {
	return productoSeleccionado(f.ProductoID)
}

// CantidadValor es la cantidad tal como la interpreta el cálculo de
// subtotales (0 si no es numérica).
func (f Fila) CantidadValor() int {
	return cantidadDe(f.Cantidad)
}

func (f Fila) PrecioValor() decimal.Decimal {
	return precioDe(f.PrecioUnitario)
}

func productoSeleccionado(id string) bool {
	return id != "" && id != "0"
}

// limpiar deja la fila como recién clonada del template.
func (f *Fila) limpiar() {
	f.ProductoID = ""
	f.Cantidad = ""
	f.PrecioUnitario = ""
	f.Subtotal = ""
	f.StockLabel = ""
	f.MaxCantidad = nil
	f.ShowAdd = false
}
