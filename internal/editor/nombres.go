package editor

import (
	"fmt"
	"regexp"
	"strconv"
)

// Campo identifica cada input de una fila de factura.
type Campo string

const (
	CampoProducto Campo = "producto_id"
	CampoCantidad Campo = "cantidad"
	CampoPrecio   Campo = "precio_unitario"
	CampoSubtotal Campo = "subtotal"
)

// Campos en el orden en que se renderizan dentro de una fila.
var Campos = []Campo{CampoProducto, CampoCantidad, CampoPrecio, CampoSubtotal}

var nombreCampoRe = regexp.MustCompile(`^items-(\d+)-(producto_id|cantidad|precio_unitario|subtotal)$`)

// FieldName arma el name/id de un campo: items-<index>-<campo>.
// El mismo string se usa para el atributo for del label.
func FieldName(index int, campo Campo) string {
	return fmt.Sprintf("items-%d-%s", index, campo)
}

// ParseFieldName es la inversa de FieldName. Devuelve false para cualquier
// nombre que no pertenezca a una fila.
func ParseFieldName(name string) (int, Campo, bool) {
	m := nombreCampoRe.FindStringSubmatch(name)
	if m == nil {
		return 0, "", false
	}
	index, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return index, Campo(m[2]), true
}

// ParseCampo valida un nombre de campo suelto (sin prefijo de fila).
func ParseCampo(s string) (Campo, bool) {
	for _, c := range Campos {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

var tokenFilaRe = regexp.MustCompile(`items-\d+`)

// ReindexName reescribe el primer token items-<n> del nombre con el índice
// dado. Los nombres sin token se devuelven sin cambios.
func ReindexName(name string, index int) string {
	loc := tokenFilaRe.FindStringIndex(name)
	if loc == nil {
		return name
	}
	return name[:loc[0]] + "items-" + strconv.Itoa(index) + name[loc[1]:]
}
