package editor

import (
	"net/url"
	"sort"
)

// DecodeFilas reconstruye las filas a partir de los campos items-<n>-<campo>
// del formulario. Las filas quedan ordenadas por n; los huecos se ignoran y
// se corrigen al renumerar.
func DecodeFilas(values url.Values) []Fila {
	porIndice := map[int]*Fila{}
	for name, vs := range values {
		idx, campo, ok := ParseFieldName(name)
		if !ok || len(vs) == 0 {
			continue
		}
		f, ok := porIndice[idx]
		if !ok {
			f = &Fila{Index: idx}
			porIndice[idx] = f
		}
		f.set(campo, vs[0])
	}

	indices := make([]int, 0, len(porIndice))
	for idx := range porIndice {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	filas := make([]Fila, 0, len(indices))
	for _, idx := range indices {
		filas = append(filas, *porIndice[idx])
	}
	return filas
}

// EncodeFilas es la proyección inversa: un campo por celda, con el índice
// actual de cada fila.
func EncodeFilas(filas []Fila) url.Values {
	values := url.Values{}
	for _, f := range filas {
		for _, c := range Campos {
			values.Set(f.Nombre(c), f.Valor(c))
		}
	}
	return values
}

// Values devuelve los campos tal como se enviarían en el formulario.
func (e *Editor) Values() url.Values {
	return EncodeFilas(e.Filas())
}

// EstadoFila es la proyección de una fila para clientes JSON.
type EstadoFila struct {
	Index          int    `json:"index"`
	ProductoID     string `json:"producto_id"`
	Cantidad       string `json:"cantidad"`
	PrecioUnitario string `json:"precio_unitario"`
	Subtotal       string `json:"subtotal"`
	StockLabel     string `json:"stock_label,omitempty"`
	MaxCantidad    *int   `json:"max_cantidad,omitempty"`
	ShowAdd        bool   `json:"show_add"`
	ShowRemove     bool   `json:"show_remove"`
}

// Estado es el snapshot completo del editor.
type Estado struct {
	Filas           []EstadoFila `json:"filas"`
	Total           string       `json:"total"`
	SiguienteIndice int          `json:"siguiente_indice"`
}

func (e *Editor) Snapshot() Estado {
	filas := make([]EstadoFila, len(e.filas))
	for i, f := range e.filas {
		filas[i] = EstadoFila{
			Index:          f.Index,
			ProductoID:     f.ProductoID,
			Cantidad:       f.Cantidad,
			PrecioUnitario: f.PrecioUnitario,
			Subtotal:       f.Subtotal,
			StockLabel:     f.StockLabel,
			MaxCantidad:    f.MaxCantidad,
			ShowAdd:        f.ShowAdd,
			ShowRemove:     f.ShowRemove,
		}
	}
	return Estado{
		Filas:           filas,
		Total:           e.Total().StringFixed(2),
		SiguienteIndice: e.siguiente,
	}
}
