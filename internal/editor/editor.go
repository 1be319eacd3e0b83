package editor

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrFilaInexistente = errors.New("fila inexistente")
	ErrUltimaFila      = errors.New("la factura debe tener al menos una fila")
)

// AvisoSinItems es el mensaje que bloquea el envío cuando no queda ninguna
// fila válida.
const AvisoSinItems = "Agregá al menos un item con producto y cantidad válida."

// Editor mantiene la lista ordenada de filas de una factura en edición.
// No es seguro para uso concurrente: cada formulario o sesión tiene el suyo.
type Editor struct {
	filas     []*Fila
	siguiente int
	precios   PriceCatalog
	opciones  Opciones
	logger    *zap.Logger
}

// New arma un editor a partir de las filas del formulario, tal como
// llegaron. Si no llega ninguna fila se agrega una en blanco para que
// siempre haya un template. El estado de carga de página (Restore) lo
// aplica quien va a renderizar; el envío normaliza las filas crudas.
func New(filas []Fila, precios PriceCatalog, opciones Opciones, logger *zap.Logger) *Editor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if precios == nil {
		precios = PriceCatalog{}
	}
	e := &Editor{
		filas:    make([]*Fila, 0, len(filas)),
		precios:  precios,
		opciones: opciones,
		logger:   logger,
	}
	for i := range filas {
		f := filas[i]
		e.filas = append(e.filas, &f)
	}
	if len(e.filas) == 0 {
		logger.Debug("Formulario sin filas, se agrega una en blanco")
		e.filas = append(e.filas, &Fila{})
	}

	e.Renumber()
	e.Recompute()
	return e
}

func (e *Editor) Precios() PriceCatalog { return e.precios }
func (e *Editor) Opciones() Opciones    { return e.opciones }

// Len devuelve la cantidad de filas actuales.
func (e *Editor) Len() int { return len(e.filas) }

// SiguienteIndice es el índice que recibiría una fila nueva.
func (e *Editor) SiguienteIndice() int { return e.siguiente }

// Filas devuelve una copia de las filas en orden de documento.
func (e *Editor) Filas() []Fila {
	out := make([]Fila, len(e.filas))
	for i, f := range e.filas {
		out[i] = *f
	}
	return out
}

func (e *Editor) fila(i int) (*Fila, error) {
	if i < 0 || i >= len(e.filas) {
		e.logger.Debug("Fila fuera de rango", zap.Int("fila", i), zap.Int("filas", len(e.filas)))
		return nil, fmt.Errorf("%w: %d", ErrFilaInexistente, i)
	}
	return e.filas[i], nil
}

// AddAfter clona la primera fila, la limpia y la inserta debajo de la fila
// i. Devuelve la posición de la fila nueva; false si no había template o la
// fila de referencia no existe.
func (e *Editor) AddAfter(i int) (int, bool) {
	if len(e.filas) == 0 {
		e.logger.Warn("No se encontró una fila template para clonar")
		return 0, false
	}
	if i < 0 || i >= len(e.filas) {
		e.logger.Warn("Fila de referencia inexistente", zap.Int("fila", i))
		return 0, false
	}

	nueva := *e.filas[0]
	nueva.limpiar()
	nueva.Index = e.siguiente

	pos := i + 1
	e.filas = append(e.filas, nil)
	copy(e.filas[pos+1:], e.filas[pos:])
	e.filas[pos] = &nueva
	e.siguiente++

	e.Renumber()
	e.Recompute()
	return pos, true
}

// Remove quita la fila i. Nunca deja la factura sin filas.
func (e *Editor) Remove(i int) error {
	if _, err := e.fila(i); err != nil {
		return err
	}
	if len(e.filas) == 1 {
		return ErrUltimaFila
	}
	e.filas = append(e.filas[:i], e.filas[i+1:]...)
	e.Renumber()
	e.Recompute()
	return nil
}

// Renumber reescribe los índices para que coincidan con la posición de
// cada fila (0..N-1) y actualiza la visibilidad de "eliminar".
func (e *Editor) Renumber() {
	for idx, f := range e.filas {
		f.Index = idx
	}
	e.siguiente = len(e.filas)
	mostrar := len(e.filas) > 1
	for _, f := range e.filas {
		f.ShowRemove = mostrar
	}
}

// ChangeQuantity guarda la cantidad tipeada y la acota a [1, stock].
func (e *Editor) ChangeQuantity(i int, valor string) error {
	f, err := e.fila(i)
	if err != nil {
		return err
	}
	f.Cantidad = valor
	qty := cantidadDe(valor)
	if stock := e.stockDe(f.ProductoID); stock != nil && *stock >= 0 && qty > *stock {
		f.Cantidad = strconv.Itoa(*stock)
	} else if qty < 1 {
		f.Cantidad = "1"
	}
	e.Recompute()
	return nil
}

// ChangePrice guarda el precio tipeado sin acotarlo.
func (e *Editor) ChangePrice(i int, valor string) error {
	f, err := e.fila(i)
	if err != nil {
		return err
	}
	f.PrecioUnitario = valor
	e.Recompute()
	return nil
}

// SelectProduct aplica la elección de un producto: precio, cantidad por
// defecto, stock disponible y tope de cantidad.
func (e *Editor) SelectProduct(i int, productoID string) error {
	f, err := e.fila(i)
	if err != nil {
		return err
	}
	f.ProductoID = productoID
	f.PrecioUnitario = e.resolverPrecio(productoID).StringFixed(2)

	if qty, ok := parseEntero(f.Cantidad); !ok || qty <= 0 {
		f.Cantidad = "1"
	}
	e.aplicarStock(f)
	f.ShowAdd = f.TieneProducto()

	e.Recompute()
	return nil
}

// Restore reconstruye el estado derivado de filas que ya vienen con
// producto, por ejemplo al re-renderizar tras un error de validación. Con
// stock conocido la cantidad queda en [1, stock]; sin stock no se toca.
func (e *Editor) Restore() {
	for _, f := range e.filas {
		if !f.TieneProducto() {
			f.StockLabel = ""
			f.MaxCantidad = nil
			f.ShowAdd = false
			continue
		}
		qty := cantidadDe(f.Cantidad)
		e.aplicarStock(f)
		if f.MaxCantidad != nil && qty < 1 {
			f.Cantidad = "1"
		}
		f.ShowAdd = true
	}
}

// CompletarProductos aplica la elección de producto a las filas que tienen
// producto pero no un precio positivo, que es lo que llega cuando el
// formulario se recalcula sin script. Devuelve cuántas filas completó.
func (e *Editor) CompletarProductos() int {
	n := 0
	for i, f := range e.filas {
		if !f.TieneProducto() {
			continue
		}
		if p, ok := parseDecimal(f.PrecioUnitario); ok && p.IsPositive() {
			continue
		}
		if err := e.SelectProduct(i, f.ProductoID); err == nil {
			n++
		}
	}
	return n
}

func (e *Editor) aplicarStock(f *Fila) {
	stock := e.stockDe(f.ProductoID)
	if stock == nil {
		f.StockLabel = ""
		f.MaxCantidad = nil
		return
	}
	f.StockLabel = fmt.Sprintf("Stock disponible: %d", *stock)
	max := *stock
	f.MaxCantidad = &max
	if cantidadDe(f.Cantidad) > max {
		f.Cantidad = strconv.Itoa(max)
	}
}

func (e *Editor) stockDe(productoID string) *int {
	op, ok := e.opciones.Buscar(productoID)
	if !ok || op.Stock == nil {
		return nil
	}
	s := *op.Stock
	return &s
}

// resolverPrecio: primero el precio de la opción, después el catálogo,
// si no 0.
func (e *Editor) resolverPrecio(productoID string) decimal.Decimal {
	if op, ok := e.opciones.Buscar(productoID); ok {
		if p, ok := parseDecimal(op.Precio); ok && !p.IsZero() {
			return p
		}
	}
	if p, ok := e.precios.Precio(productoID); ok {
		return p
	}
	return decimal.Zero
}

// Recompute reescribe el subtotal de cada fila.
func (e *Editor) Recompute() {
	for _, f := range e.filas {
		f.Subtotal = subtotal(f).StringFixed(2)
	}
}

// Total suma los subtotales de las filas con producto y cantidad > 0. Se
// calcula siempre a partir de las filas.
func (e *Editor) Total() decimal.Decimal {
	total := decimal.Zero
	for _, f := range e.filas {
		if f.TieneProducto() && cantidadDe(f.Cantidad) > 0 {
			total = total.Add(subtotal(f))
		}
	}
	return total
}

func subtotal(f *Fila) decimal.Decimal {
	return decimal.NewFromInt(int64(cantidadDe(f.Cantidad))).Mul(precioDe(f.PrecioUnitario))
}

// ResultadoEnvio describe el resultado de PrepareSubmit.
type ResultadoEnvio struct {
	Permitido  bool
	Aviso      string
	Eliminadas int
}

// PrepareSubmit normaliza el formulario antes de enviarlo: completa precios
// faltantes desde el catálogo, descarta filas sin producto o sin cantidad y
// renumera. Si no queda ninguna fila válida el envío se bloquea y se deja
// una fila en blanco para seguir editando.
func (e *Editor) PrepareSubmit() ResultadoEnvio {
	validas := make([]*Fila, 0, len(e.filas))
	eliminadas := 0
	for _, f := range e.filas {
		if f.ProductoID != "" {
			if p, ok := parseDecimal(f.PrecioUnitario); !ok || !p.IsPositive() {
				if c, ok := e.precios.Precio(f.ProductoID); ok && c.IsPositive() {
					f.PrecioUnitario = c.StringFixed(2)
				}
			}
		}
		if !f.TieneProducto() || cantidadDe(f.Cantidad) <= 0 {
			eliminadas++
			continue
		}
		validas = append(validas, f)
	}
	e.filas = validas

	res := ResultadoEnvio{Permitido: len(validas) > 0, Eliminadas: eliminadas}
	if !res.Permitido {
		res.Aviso = AvisoSinItems
		e.filas = append(e.filas, &Fila{})
	}
	e.Renumber()
	e.Recompute()

	e.logger.Debug("Formulario normalizado para envío",
		zap.Int("filas_validas", len(validas)),
		zap.Int("filas_eliminadas", eliminadas),
		zap.Bool("permitido", res.Permitido))
	return res
}
