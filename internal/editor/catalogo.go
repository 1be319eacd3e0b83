package editor

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceCatalog mapea id de producto -> precio unitario. Se carga una vez por
// página y no se modifica.
type PriceCatalog map[string]decimal.Decimal

// Precio devuelve el precio del catálogo para el producto, si existe.
func (c PriceCatalog) Precio(productoID string) (decimal.Decimal, bool) {
	p, ok := c[productoID]
	return p, ok
}

// MarshalJSON serializa los precios como números con dos decimales, que es
// lo que espera el script embebido en la página.
func (c PriceCatalog) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.Number, len(c))
	for id, p := range c {
		out[id] = json.Number(p.StringFixed(2))
	}
	return json.Marshal(out)
}

// ParsePriceCatalog decodifica el JSON {"<id>": <precio>} embebido en la
// página. Acepta precios numéricos o string. Un JSON inválido degrada a un
// catálogo vacío.
func ParsePriceCatalog(data []byte, logger *zap.Logger) PriceCatalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	catalogo := PriceCatalog{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return catalogo
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		logger.Warn("No se pudo parsear el catálogo de precios", zap.Error(err))
		return catalogo
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		logger.Warn("Datos sobrantes después del catálogo de precios", zap.Error(err))
		return catalogo
	}

	for id, v := range raw {
		var s string
		switch val := v.(type) {
		case json.Number:
			s = val.String()
		case string:
			s = val
		default:
			logger.Debug("Precio ignorado en catálogo", zap.String("producto_id", id), zap.Any("valor", v))
			continue
		}
		p, err := decimal.NewFromString(s)
		if err != nil {
			logger.Debug("Precio inválido en catálogo", zap.String("producto_id", id), zap.String("valor", s))
			continue
		}
		catalogo[id] = p
	}
	return catalogo
}

// Opcion es un producto seleccionable con su metadata (data-stock,
// data-precio). Stock nil significa que la opción no informa stock.
type Opcion struct {
	ID          string `json:"id"`
	Descripcion string `json:"descripcion"`
	Precio      string `json:"precio,omitempty"`
	Stock       *int   `json:"stock,omitempty"`
}

// Opciones es la lista ordenada de productos del selector.
type Opciones struct {
	lista []Opcion
	porID map[string]int
}

func NewOpciones(ops ...Opcion) Opciones {
	o := Opciones{
		lista: make([]Opcion, 0, len(ops)),
		porID: make(map[string]int, len(ops)),
	}
	for _, op := range ops {
		if i, ok := o.porID[op.ID]; ok {
			o.lista[i] = op
			continue
		}
		o.porID[op.ID] = len(o.lista)
		o.lista = append(o.lista, op)
	}
	return o
}

func (o Opciones) Lista() []Opcion {
	return o.lista
}

func (o Opciones) Buscar(id string) (Opcion, bool) {
	i, ok := o.porID[id]
	if !ok {
		return Opcion{}, false
	}
	return o.lista[i], true
}

func (o Opciones) MarshalJSON() ([]byte, error) {
	if o.lista == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(o.lista)
}

func (o *Opciones) UnmarshalJSON(data []byte) error {
	var ops []Opcion
	if err := json.Unmarshal(data, &ops); err != nil {
		return err
	}
	*o = NewOpciones(ops...)
	return nil
}

// Ordenadas devuelve las opciones por descripción, para listados.
func (o Opciones) Ordenadas() []Opcion {
	out := append([]Opcion(nil), o.lista...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Descripcion < out[j].Descripcion
	})
	return out
}
