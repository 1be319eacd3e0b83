package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Formatter agrupa los formatos de presentación de la aplicación.
type Formatter interface {
	Moneda(d decimal.Decimal) string
	Numero(d decimal.Decimal) string
	Fecha(t time.Time) string
	Stock(stock int) string
}

type formatterES struct{}

// NewFormatter devuelve el formatter es-ES usado en las vistas.
func NewFormatter() Formatter {
	return formatterES{}
}

// Moneda: "$" y dos decimales, sin separador de miles.
func (formatterES) Moneda(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// Numero usa punto para miles y coma decimal, hasta tres decimales. Los
// números de cuatro cifras no se agrupan (1234 -> "1234", 12345 -> "12.345").
func (formatterES) Numero(d decimal.Decimal) string {
	s := d.Round(3).String()
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	entero, fraccion, _ := strings.Cut(s, ".")
	fraccion = strings.TrimRight(fraccion, "0")

	if len(entero) > 4 {
		var b strings.Builder
		primer := len(entero) % 3
		if primer > 0 {
			b.WriteString(entero[:primer])
		}
		for i := primer; i < len(entero); i += 3 {
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(entero[i : i+3])
		}
		entero = b.String()
	}

	out := entero
	if fraccion != "" {
		out += "," + fraccion
	}
	if neg && out != "0" {
		out = "-" + out
	}
	return out
}

func (formatterES) Fecha(t time.Time) string {
	return t.Format("02/01/2006")
}

func (formatterES) Stock(stock int) string {
	return fmt.Sprintf("Stock disponible: %d", stock)
}
