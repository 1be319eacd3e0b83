package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"facturacion-service/internal/config"
	"facturacion-service/internal/editor"
	"facturacion-service/internal/models"
	"facturacion-service/internal/services"
	"facturacion-service/internal/ui"
	"facturacion-service/internal/view"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCatalogo struct {
	cat        *services.Catalogo
	clientes   []models.Cliente
	invalidado int
}

func (f *fakeCatalogo) Catalogo(ctx context.Context) (*services.Catalogo, error) {
	return f.cat, nil
}

func (f *fakeCatalogo) Clientes(ctx context.Context) ([]models.Cliente, error) {
	return f.clientes, nil
}

func (f *fakeCatalogo) Invalidar(ctx context.Context) error {
	f.invalidado++
	return nil
}

type fakeFacturas struct {
	req        *models.FacturaRequest
	crearErr   error
	obtenerErr error
	anularErr  error
	anuladas   []int
	filtro     models.FacturaFilter
	reportes   []models.FacturaFilter
}

func (f *fakeFacturas) Crear(ctx context.Context, req *models.FacturaRequest) (*models.FacturaWithDetails, error) {
	f.req = req
	if f.crearErr != nil {
		return nil, f.crearErr
	}
	return &models.FacturaWithDetails{ID: 1, IDCliente: req.IDCliente, Total: decimal.RequireFromString("10")}, nil
}

func (f *fakeFacturas) Obtener(ctx context.Context, id int) (*models.FacturaWithDetails, error) {
	if f.obtenerErr != nil {
		return nil, f.obtenerErr
	}
	return &models.FacturaWithDetails{ID: id, NombreCliente: "Ana", Total: decimal.RequireFromString("10")}, nil
}

func (f *fakeFacturas) Listar(ctx context.Context, filter models.FacturaFilter) ([]models.FacturaResumen, error) {
	f.filtro = filter
	return []models.FacturaResumen{
		{ID: 1, NombreCliente: "Ana", Total: decimal.RequireFromString("10")},
		{ID: 2, NombreCliente: "Ana", Total: decimal.RequireFromString("2.5")},
	}, nil
}

func (f *fakeFacturas) Reporte(ctx context.Context, filter models.FacturaFilter) (*models.ReporteVentas, error) {
	f.reportes = append(f.reportes, filter)
	if filter.FechaDesde == nil || filter.FechaHasta == nil {
		return nil, &services.ValidacionError{Mensaje: services.MsgFechasRequeridas}
	}
	return &models.ReporteVentas{
		Desde:       *filter.FechaDesde,
		Hasta:       *filter.FechaHasta,
		IDCliente:   filter.IDCliente,
		VentasTotal: decimal.RequireFromString("12.5"),
		PorCliente: []models.VentasCliente{
			{IDCliente: 7, NombreCliente: "Ana", MontoTotal: decimal.RequireFromString("12.5"), Cantidad: 2},
		},
	}, nil
}

func (f *fakeFacturas) Anular(ctx context.Context, id int) error {
	if f.anularErr != nil {
		return f.anularErr
	}
	f.anuladas = append(f.anuladas, id)
	return nil
}

type entorno struct {
	router     *gin.Engine
	facturas   *fakeFacturas
	catalogo   *fakeCatalogo
	monitoring services.MonitoringService
	editor     *EditorHandler
}

func newEntorno(t *testing.T, maxSesiones int) *entorno {
	t.Helper()
	gin.SetMode(gin.TestMode)

	catalogo := &fakeCatalogo{
		cat: services.NewCatalogo(&models.CatalogoSnapshot{Productos: []models.Producto{
			{ID: 1, Descripcion: "Tornillo", Precio: decimal.RequireFromString("5"), Stock: 5},
			{ID: 2, Descripcion: "Tuerca", Precio: decimal.RequireFromString("2.25"), Stock: 10},
		}}),
		clientes: []models.Cliente{{ID: 7, Nombre: "Ana"}},
	}
	facturas := &fakeFacturas{}
	monitoring := services.NewMonitoringService(zap.NewNop(), &config.Config{}, nil, nil, nil)

	tmpl, err := view.Parse(ui.NewFormatter())
	require.NoError(t, err)

	fh := NewFacturaHandler(facturas, catalogo, monitoring, 20, zap.NewNop())
	ch := NewCatalogHandler(catalogo, zap.NewNop())
	eh := NewEditorHandler(catalogo, monitoring, time.Second, maxSesiones, zap.NewNop())
	mh := NewMonitoringHandler(monitoring, zap.NewNop())

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	r.Use(mh.RecordRequestMiddleware())
	r.GET("/facturas", fh.ListarFacturas)
	r.GET("/facturas/nueva", fh.NuevaFactura)
	r.POST("/facturas/nueva", fh.CrearFactura)
	r.POST("/facturas/nueva/items", fh.AccionItems)
	r.GET("/facturas/:id", fh.VerFactura)
	r.POST("/facturas/:id/eliminar", fh.EliminarFactura)
	r.GET("/reportes", fh.Reporte)

	api := r.Group("/api/v1", APIMiddleware())
	api.GET("/facturas", fh.ListarFacturas)
	api.POST("/facturas", fh.CrearFactura)
	api.GET("/facturas/:id", fh.VerFactura)
	api.DELETE("/facturas/:id", fh.EliminarFactura)
	api.GET("/reportes", fh.Reporte)
	api.GET("/facturas/editor/ws", eh.WebSocketEditor)
	api.GET("/catalogo", ch.GetCatalogo)
	api.POST("/catalogo/invalidar", ch.InvalidarCatalogo)
	api.GET("/clientes", ch.GetClientes)
	api.GET("/monitoring/metrics", mh.GetMetrics)
	api.GET("/monitoring/metrics/summary", mh.GetMetricsSummary)
	r.GET("/health/monitoring", mh.HealthCheck)

	return &entorno{router: r, facturas: facturas, catalogo: catalogo, monitoring: monitoring, editor: eh}
}

func (e *entorno) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestNuevaFacturaRenderizaEditor(t *testing.T) {
	e := newEntorno(t, 0)

	w := e.do(httptest.NewRequest(http.MethodGet, "/facturas/nueva", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `id="precios-data"`)
	assert.Contains(t, body, `{"1":5.00,"2":2.25}`)
	assert.Contains(t, body, `name="items-0-producto_id"`)
	assert.NotContains(t, body, `name="items-1-producto_id"`)
	assert.Contains(t, body, "Ana")
}

func TestAccionItemsAgregarDevuelveEstadoJSON(t *testing.T) {
	e := newEntorno(t, 0)
	form := url.Values{
		"items-0-producto_id": {"1"},
		"items-0-cantidad":    {"2"},
		"accion":              {"agregar"},
		"fila":                {"0"},
	}
	req := postForm("/facturas/nueva/items", form)
	req.Header.Set("Accept", "application/json")

	w := e.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool          `json:"success"`
		Estado  editor.Estado `json:"estado"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Estado.Filas, 2)
	assert.Equal(t, 0, resp.Estado.Filas[0].Index)
	assert.Equal(t, 1, resp.Estado.Filas[1].Index)
	assert.Equal(t, "", resp.Estado.Filas[1].ProductoID)
	assert.False(t, resp.Estado.Filas[1].ShowAdd)
	assert.True(t, resp.Estado.Filas[1].ShowRemove)
	assert.Equal(t, int64(1), e.monitoring.GetEditorStats().Acciones["agregar"])
}

func TestAccionItemsProductoDevuelveFragmento(t *testing.T) {
	e := newEntorno(t, 0)
	form := url.Values{
		"items-0-producto_id": {"0"},
		"accion":              {"producto"},
		"fila":                {"0"},
		"valor":               {"1"},
	}
	req := postForm("/facturas/nueva/items", form)
	req.Header.Set("HX-Request", "true")

	w := e.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(strings.TrimSpace(body), `<div id="factura-items">`))
	assert.Contains(t, body, `name="items-0-precio_unitario" id="items-0-precio_unitario" value="5.00"`)
	assert.Contains(t, body, "Stock disponible: 5")
	assert.Contains(t, body, "$5.00")
	assert.NotContains(t, body, `id="precios-data"`)
}

func TestAccionItemsBotonQuitarSinJS(t *testing.T) {
	e := newEntorno(t, 0)
	form := url.Values{
		"cliente_id":          {"7"},
		"items-0-producto_id": {"1"},
		"items-0-cantidad":    {"1"},
		"items-1-producto_id": {"2"},
		"items-1-cantidad":    {"1"},
		"accion":              {"quitar:0"},
	}

	w := e.do(postForm("/facturas/nueva/items", form))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `id="precios-data"`)
	assert.Contains(t, body, `<option value="7" selected>Ana</option>`)
	assert.NotContains(t, body, `name="items-1-producto_id"`)
	assert.Contains(t, body, "$2.25")
}

func TestAccionItemsNoQuitaLaUltimaFila(t *testing.T) {
	e := newEntorno(t, 0)
	form := url.Values{"items-0-producto_id": {"1"}, "items-0-cantidad": {"1"}, "accion": {"quitar"}, "fila": {"0"}}
	req := postForm("/facturas/nueva/items", form)
	req.Header.Set("Accept", "application/json")

	w := e.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "La factura debe tener al menos un ítem")
	assert.Contains(t, w.Body.String(), `"producto_id":"1"`)
}

func TestAccionItemsDesconocida(t *testing.T) {
	e := newEntorno(t, 0)
	form := url.Values{"cliente_id": {"7"}, "items-0-producto_id": {"1"}, "items-0-cantidad": {"2"}, "accion": {"duplicar"}}

	w := e.do(postForm("/facturas/nueva/items", form))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Acción inválida")
	assert.Contains(t, body, `id="factura-form"`)
	assert.Contains(t, body, `<option value="7" selected>Ana</option>`)
	assert.Contains(t, body, `name="items-0-cantidad" id="items-0-cantidad" value="2"`)

	req := postForm("/facturas/nueva/items", form)
	req.Header.Set("HX-Request", "true")
	w = e.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(w.Body.String()), `<div id="factura-items">`))
	assert.Contains(t, w.Body.String(), "Acción inválida")

	req = postForm("/facturas/nueva/items", form)
	req.Header.Set("Accept", "application/json")
	w = e.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestAccionItemsRecalcularCompletaPrecio(t *testing.T) {
	e := newEntorno(t, 0)
	form := url.Values{
		"cliente_id":          {"7"},
		"items-0-producto_id": {"2"},
		"accion":              {""},
	}

	w := e.do(postForm("/facturas/nueva/items", form))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `name="items-0-precio_unitario" id="items-0-precio_unitario" value="2.25"`)
	assert.Contains(t, body, `name="items-0-cantidad" id="items-0-cantidad" value="1"`)
	assert.Contains(t, body, `<span id="total-factura">$2.25</span>`)
	assert.Contains(t, body, "Stock disponible: 10")
}

func TestAccionItemsRecalcularRespetaPrecioTipeado(t *testing.T) {
	e := newEntorno(t, 0)
	form := url.Values{
		"items-0-producto_id":     {"2"},
		"items-0-cantidad":        {"2"},
		"items-0-precio_unitario": {"3.00"},
		"accion":                  {""},
	}
	req := postForm("/facturas/nueva/items", form)
	req.Header.Set("HX-Request", "true")

	w := e.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="3.00"`)
	assert.Contains(t, w.Body.String(), "$6.00")
}

func TestAccionDelFormulario(t *testing.T) {
	nombre, fila := accionDelFormulario("quitar:3", "")
	assert.Equal(t, "quitar", nombre)
	assert.Equal(t, 3, fila)

	nombre, fila = accionDelFormulario("cantidad", "2")
	assert.Equal(t, "cantidad", nombre)
	assert.Equal(t, 2, fila)

	nombre, fila = accionDelFormulario("", "x")
	assert.Equal(t, "", nombre)
	assert.Equal(t, 0, fila)
}

func TestCrearFacturaNormalizaFilas(t *testing.T) {
	e := newEntorno(t, 0)
	form := url.Values{
		"cliente_id":          {"7"},
		"fecha":               {"2024-03-01"},
		"items-0-producto_id": {"1"},
		"items-0-cantidad":    {"2"},
		"items-1-producto_id": {""},
		"items-1-cantidad":    {"3"},
		"items-2-producto_id": {"2"},
		"items-2-cantidad":    {"0"},
	}

	w := e.do(postForm("/facturas/nueva", form))

	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/facturas/1?creada=1", w.Header().Get("Location"))

	req := e.facturas.req
	require.NotNil(t, req)
	assert.Equal(t, 7, req.IDCliente)
	require.NotNil(t, req.Fecha)
	assert.Equal(t, "2024-03-01", req.Fecha.Format("2006-01-02"))
	require.Len(t, req.Items, 1)
	assert.Equal(t, 0, req.Items[0].Fila)
	assert.Equal(t, 1, req.Items[0].IDProducto)
	assert.Equal(t, 2, req.Items[0].Cantidad)
	assert.Equal(t, "5.00", req.Items[0].PrecioUnitario.StringFixed(2))
}

func TestCrearFacturaJSONNumeraFilasPorPosicion(t *testing.T) {
	e := newEntorno(t, 0)
	body := `{"id_cliente":7,"items":[` +
		`{"fila":5,"id_producto":1,"cantidad":1,"precio_unitario":"5"},` +
		`{"fila":0,"id_producto":2,"cantidad":1,"precio_unitario":"2.25"},` +
		`{"fila":9,"id_producto":2,"cantidad":2,"precio_unitario":"2.25"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/facturas", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := e.do(req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, e.facturas.req)
	require.Len(t, e.facturas.req.Items, 3)
	for i, it := range e.facturas.req.Items {
		assert.Equal(t, i, it.Fila)
	}
}

func TestCrearFacturaBloqueadaSinItemsValidos(t *testing.T) {
	e := newEntorno(t, 0)
	form := url.Values{
		"cliente_id":          {"7"},
		"items-0-producto_id": {""},
		"items-0-cantidad":    {"2"},
	}

	w := e.do(postForm("/facturas/nueva", form))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), editor.AvisoSinItems)
	assert.Contains(t, w.Body.String(), `name="items-0-producto_id"`)
	assert.Nil(t, e.facturas.req)
	assert.Equal(t, int64(1), e.monitoring.GetEditorStats().EnviosBloqueados)
}

func TestCrearFacturaMuestraErroresPorFila(t *testing.T) {
	e := newEntorno(t, 0)
	e.facturas.crearErr = &services.ValidacionError{
		Mensaje: services.MsgCorregirItems,
		Items:   []models.ItemError{{Fila: 0, Campo: "cantidad", Error: services.MsgCantidadSuperaStock}},
	}
	form := url.Values{
		"cliente_id":          {"7"},
		"items-0-producto_id": {"1"},
		"items-0-cantidad":    {"4"},
	}

	w := e.do(postForm("/facturas/nueva", form))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, services.MsgCorregirItems)
	assert.Contains(t, body, services.MsgCantidadSuperaStock)
	assert.Contains(t, body, `value="4"`)
}

func TestCrearFacturaJSON(t *testing.T) {
	e := newEntorno(t, 0)
	body := `{"id_cliente":7,"items":[{"id_producto":1,"cantidad":2,"precio_unitario":"5"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/facturas", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := e.do(req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/facturas/1", w.Header().Get("Location"))
	var resp models.FacturaResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, services.MsgFacturaCreada, resp.Message)
	assert.Equal(t, 1, resp.Data.ID)
}

func TestCrearFacturaJSONInvalida(t *testing.T) {
	e := newEntorno(t, 0)
	e.facturas.crearErr = &services.ValidacionError{Mensaje: services.MsgClienteRequerido}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/facturas", strings.NewReader(`{"items":[]}`))
	req.Header.Set("Content-Type", "application/json")

	w := e.do(req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), services.MsgClienteRequerido)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/facturas", strings.NewReader(`{`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, e.do(req).Code)
}

func TestVerFactura(t *testing.T) {
	e := newEntorno(t, 0)

	w := e.do(httptest.NewRequest(http.MethodGet, "/facturas/4?creada=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Factura #4")
	assert.Contains(t, w.Body.String(), services.MsgFacturaCreada)

	e.facturas.obtenerErr = services.ErrFacturaInexistente
	w = e.do(httptest.NewRequest(http.MethodGet, "/api/v1/facturas/9", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)

	w = e.do(httptest.NewRequest(http.MethodGet, "/api/v1/facturas/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListarFacturas(t *testing.T) {
	e := newEntorno(t, 0)

	w := e.do(httptest.NewRequest(http.MethodGet, "/api/v1/facturas?cliente_id=7&desde=2024-01-01&page=2", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.FacturasResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.TotalFacturas)
	assert.Equal(t, "12.50", resp.Data.TotalVendido.StringFixed(2))
	require.NotNil(t, e.facturas.filtro.IDCliente)
	assert.Equal(t, 7, *e.facturas.filtro.IDCliente)
	assert.Equal(t, 20, e.facturas.filtro.Limit)
	assert.Equal(t, 20, e.facturas.filtro.Offset)

	w = e.do(httptest.NewRequest(http.MethodGet, "/facturas", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "$12.50")

	w = e.do(httptest.NewRequest(http.MethodGet, "/api/v1/facturas?desde=2024-02-01&hasta=2024-01-01", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(httptest.NewRequest(http.MethodGet, "/api/v1/facturas?page=0", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportePorCliente(t *testing.T) {
	e := newEntorno(t, 0)

	w := e.do(httptest.NewRequest(http.MethodGet, "/reportes", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `id="reporte-form"`)
	assert.Contains(t, w.Body.String(), `<option value="0">Todos</option>`)
	assert.NotContains(t, w.Body.String(), `id="por-cliente"`)
	assert.Empty(t, e.facturas.reportes)

	w = e.do(httptest.NewRequest(http.MethodGet, "/reportes?desde=2024-03-01&hasta=2024-03-31&cliente_id=0", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `id="por-cliente"`)
	assert.Contains(t, w.Body.String(), `<th class="text-end" id="ventas-total">$12.50</th>`)
	require.Len(t, e.facturas.reportes, 1)
	assert.Nil(t, e.facturas.reportes[0].IDCliente)
	assert.Equal(t, "2024-03-31", e.facturas.reportes[0].FechaHasta.Format("2006-01-02"))

	w = e.do(httptest.NewRequest(http.MethodGet, "/api/v1/reportes?desde=2024-03-01&hasta=2024-03-31&cliente_id=7", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.ReporteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Data)
	require.Len(t, resp.Data.PorCliente, 1)
	assert.Equal(t, "Ana", resp.Data.PorCliente[0].NombreCliente)
	require.NotNil(t, e.facturas.reportes[1].IDCliente)
	assert.Equal(t, 7, *e.facturas.reportes[1].IDCliente)
}

func TestReporteRangoInvalido(t *testing.T) {
	e := newEntorno(t, 0)

	w := e.do(httptest.NewRequest(http.MethodGet, "/reportes?desde=2024-03-10&hasta=2024-03-01", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), services.MsgRangoFechas)
	assert.Contains(t, w.Body.String(), `value="2024-03-10"`)
	assert.Empty(t, e.facturas.reportes)

	w = e.do(httptest.NewRequest(http.MethodGet, "/api/v1/reportes", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), services.MsgFechasRequeridas)
}

func TestEliminarFactura(t *testing.T) {
	e := newEntorno(t, 0)

	w := e.do(postForm("/facturas/3/eliminar", url.Values{}))
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/facturas?eliminada=1", w.Header().Get("Location"))

	w = e.do(httptest.NewRequest(http.MethodDelete, "/api/v1/facturas/5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), services.MsgFacturaEliminada)
	assert.Equal(t, []int{3, 5}, e.facturas.anuladas)

	e.facturas.anularErr = services.ErrFacturaInexistente
	w = e.do(httptest.NewRequest(http.MethodDelete, "/api/v1/facturas/6", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	e.facturas.anularErr = errors.New("sin conexión")
	w = e.do(httptest.NewRequest(http.MethodDelete, "/api/v1/facturas/6", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), services.MsgErrorEliminar)
}

func TestCatalogoAPI(t *testing.T) {
	e := newEntorno(t, 0)

	w := e.do(httptest.NewRequest(http.MethodGet, "/api/v1/catalogo", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"precios":{"1":5.00,"2":2.25}`)
	assert.Contains(t, w.Body.String(), `"descripcion":"Tornillo ($5.00)"`)

	w = e.do(httptest.NewRequest(http.MethodPost, "/api/v1/catalogo/invalidar", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, e.catalogo.invalidado)

	w = e.do(httptest.NewRequest(http.MethodGet, "/api/v1/clientes", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"nombre":"Ana"`)
}

func TestMonitoringRegistraRutaYHealth(t *testing.T) {
	e := newEntorno(t, 0)

	e.do(httptest.NewRequest(http.MethodGet, "/facturas/1", nil))
	e.do(httptest.NewRequest(http.MethodGet, "/facturas/2", nil))

	m := e.monitoring.GetMetrics(context.Background())
	assert.Equal(t, 2, m.Requests.ByEndpoint["GET /facturas/:id"].Count)

	w := e.do(httptest.NewRequest(http.MethodGet, "/health/monitoring", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health["status"])
	servicios := health["services"].(map[string]interface{})
	assert.Equal(t, "disabled", servicios["redis"])
	assert.Equal(t, "offline", servicios["database"])

	w = e.do(httptest.NewRequest(http.MethodGet, "/api/v1/monitoring/metrics/summary", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var summary struct {
		Requests struct {
			Total     int `json:"total"`
			Endpoints int `json:"endpoints"`
		} `json:"requests"`
		Performance models.PerformanceMetrics `json:"performance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.Requests.Total)
	assert.Equal(t, 1, summary.Requests.Endpoints)
}
