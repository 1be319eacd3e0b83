package view

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"facturacion-service/internal/editor"
	"facturacion-service/internal/models"
	"facturacion-service/internal/ui"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Nombres de las plantillas, tal como las registra gin.
const (
	NuevaFactura = "factura_nueva.html"
	Items        = "factura_items.html"
	Listado      = "facturas_lista.html"
	Detalle      = "factura_ver.html"
	Reportes     = "reportes.html"
)

// ItemsData alimenta el fragmento de filas del editor.
type ItemsData struct {
	Filas    []editor.EstadoFila
	Opciones []editor.Opcion
	Total    decimal.Decimal
	// Errores del servidor por índice de fila.
	Errores map[int]string
	Aviso   string
}

// NuevaFacturaData es la página completa de alta.
type NuevaFacturaData struct {
	ItemsData
	Clientes       []models.Cliente
	ClienteID      int
	Fecha          string
	Precios        editor.PriceCatalog
	Notificaciones []ui.Notificacion
}

type ListadoData struct {
	Facturas       []models.FacturaResumen
	Total          decimal.Decimal
	Notificaciones []ui.Notificacion
}

type DetalleData struct {
	Factura        *models.FacturaWithDetails
	Notificaciones []ui.Notificacion
}

// ReporteData es la página de reportes; Reporte es nil hasta que se
// consultan fechas válidas.
type ReporteData struct {
	Desde          string
	Hasta          string
	ClienteID      int
	Clientes       []models.Cliente
	Reporte        *models.ReporteVentas
	Notificaciones []ui.Notificacion
}

// NewItemsData proyecta el editor para el fragmento de filas.
func NewItemsData(ed *editor.Editor, errores []models.ItemError) ItemsData {
	data := ItemsData{
		Filas:    ed.Snapshot().Filas,
		Opciones: ed.Opciones().Lista(),
		Total:    ed.Total(),
	}
	if len(errores) > 0 {
		data.Errores = make(map[int]string, len(errores))
		for _, e := range errores {
			if _, ok := data.Errores[e.Fila]; !ok {
				data.Errores[e.Fila] = e.Error
			}
		}
	}
	return data
}

// Funcs arma el FuncMap de las vistas sobre el Formatter dado.
func Funcs(f ui.Formatter) template.FuncMap {
	return template.FuncMap{
		"moneda": f.Moneda,
		"numero": f.Numero,
		"fecha":  f.Fecha,
		"stock":  f.Stock,
		"campo": func(index int, c string) string {
			return editor.FieldName(index, editor.Campo(c))
		},
		"deref": func(p *int) int {
			if p == nil {
				return 0
			}
			return *p
		},
		"json": func(v any) (template.JS, error) {
			b, err := json.Marshal(v)
			if err != nil {
				return "", err
			}
			return template.JS(b), nil
		},
		"anio": func() int { return time.Now().Year() },
	}
}

// Parse compila todas las plantillas embebidas.
func Parse(f ui.Formatter) (*template.Template, error) {
	tmpl, err := template.New("").Funcs(Funcs(f)).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

// Render ejecuta una plantilla fuera de gin (websocket y tests).
func Render(w io.Writer, tmpl *template.Template, name string, data any) error {
	return tmpl.ExecuteTemplate(w, name, data)
}
