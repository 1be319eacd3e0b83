package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"facturacion-service/internal/editor"
	"facturacion-service/internal/models"
	"facturacion-service/internal/services"
	"facturacion-service/internal/ui"
	"facturacion-service/internal/view"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const formatoFecha = "2006-01-02"

// ctxAPI marca los requests del grupo /api/v1, que siempre responden JSON.
const ctxAPI = "api"

// FacturaHandler maneja el alta, consulta y baja de facturas
type FacturaHandler struct {
	facturas     services.FacturaService
	catalogo     services.CatalogService
	monitoring   services.MonitoringService
	itemsPerPage int
	logger       *zap.Logger
}

func NewFacturaHandler(
	facturas services.FacturaService,
	catalogo services.CatalogService,
	monitoring services.MonitoringService,
	itemsPerPage int,
	logger *zap.Logger,
) *FacturaHandler {
	if itemsPerPage <= 0 {
		itemsPerPage = 20
	}
	return &FacturaHandler{
		facturas:     facturas,
		catalogo:     catalogo,
		monitoring:   monitoring,
		itemsPerPage: itemsPerPage,
		logger:       logger,
	}
}

func (h *FacturaHandler) logInfo(msg string, fields ...zap.Field) {
	h.logger.Info("ℹ️ "+msg, fields...)
}

func (h *FacturaHandler) logError(msg string, fields ...zap.Field) {
	h.logger.Error("❌ "+msg, fields...)
}

func (h *FacturaHandler) logSuccess(msg string, fields ...zap.Field) {
	h.logger.Info("✅ "+msg, fields...)
}

// APIMiddleware fuerza respuestas JSON en el grupo de la API.
func APIMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ctxAPI, true)
		c.Next()
	}
}

func wantsJSON(c *gin.Context) bool {
	if c.GetBool(ctxAPI) {
		return true
	}
	if strings.HasPrefix(c.ContentType(), gin.MIMEJSON) {
		return true
	}
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}

// esFragmento indica si el cliente pidió sólo el fragmento de filas.
func esFragmento(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true" || c.GetHeader("X-Requested-With") == "XMLHttpRequest"
}

// NuevaFactura muestra el formulario de alta con una fila vacía
func (h *FacturaHandler) NuevaFactura(c *gin.Context) {
	cat, ok := h.cargarCatalogo(c)
	if !ok {
		return
	}
	ed := editor.New(nil, cat.Precios, cat.Opciones, h.logger)
	h.renderFormulario(c, http.StatusOK, cat, ed, formularioCabecera{Fecha: time.Now().Format(formatoFecha)}, ui.NewFlash(ui.AutoOcultar), nil, "")
}

// AccionItems aplica una acción del editor sobre las filas enviadas y
// devuelve el estado nuevo: JSON, el fragmento de filas o la página entera.
func (h *FacturaHandler) AccionItems(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Formulario inválido",
			"error":   err.Error(),
		})
		return
	}
	cat, ok := h.cargarCatalogo(c)
	if !ok {
		return
	}

	form := c.Request.PostForm
	ed := editor.New(editor.DecodeFilas(form), cat.Precios, cat.Opciones, h.logger)
	ed.Restore()
	ed.Recompute()
	flash := ui.NewFlash(ui.AutoOcultar)
	cab := cabeceraDe(form.Get("cliente_id"), form.Get("fecha"))

	nombre, fila := accionDelFormulario(form.Get("accion"), form.Get("fila"))
	aviso := ""
	if nombre == "" {
		// recalcular sin script: las filas con producto nuevo no traen precio
		if n := ed.CompletarProductos(); n > 0 {
			h.logger.Debug("Precios completados desde el catálogo", zap.Int("filas", n))
		}
	} else {
		accion, err := editor.ParseAccion(nombre, fila, form.Get("valor"))
		if err != nil {
			if wantsJSON(c) {
				c.JSON(http.StatusBadRequest, gin.H{
					"success": false,
					"message": "Acción inválida",
					"error":   err.Error(),
				})
				return
			}
			if esFragmento(c) {
				data := view.NewItemsData(ed, nil)
				data.Aviso = "Acción inválida"
				c.HTML(http.StatusBadRequest, view.Items, data)
				return
			}
			flash.Show(ui.Peligro, "Acción inválida")
			h.renderFormulario(c, http.StatusBadRequest, cat, ed, cab, flash, nil, "")
			return
		}

		res, err := ed.Dispatch(accion)
		switch {
		case errors.Is(err, editor.ErrUltimaFila):
			flash.Show(ui.Advertencia, "La factura debe tener al menos un ítem")
		case errors.Is(err, editor.ErrFilaInexistente):
			h.logger.Debug("Acción sobre fila inexistente", zap.String("accion", nombre), zap.Int("fila", fila))
		case err != nil:
			h.logError("Error aplicando acción del editor", zap.Error(err))
		}
		bloqueado := res != nil && !res.Permitido
		if bloqueado {
			aviso = res.Aviso
		}
		h.monitoring.RecordEditorAccion(nombre, bloqueado)
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{
			"success":        true,
			"estado":         ed.Snapshot(),
			"aviso":          aviso,
			"notificaciones": flash.Pendientes(),
		})
		return
	}
	if esFragmento(c) {
		data := view.NewItemsData(ed, nil)
		data.Aviso = aviso
		c.HTML(http.StatusOK, view.Items, data)
		return
	}
	h.renderFormulario(c, http.StatusOK, cat, ed, cab, flash, nil, aviso)
}

// accionDelFormulario acepta accion=agregar&fila=2 o accion=agregar:2, que
// es lo que mandan los botones de cada fila.
func accionDelFormulario(accion, fila string) (string, int) {
	nombre, idx, found := strings.Cut(accion, ":")
	if !found {
		idx = fila
	}
	n, err := strconv.Atoi(strings.TrimSpace(idx))
	if err != nil {
		n = 0
	}
	return strings.TrimSpace(nombre), n
}

// CrearFactura procesa el envío del formulario o un JSON de factura
func (h *FacturaHandler) CrearFactura(c *gin.Context) {
	if c.GetBool(ctxAPI) || strings.HasPrefix(c.ContentType(), gin.MIMEJSON) {
		h.crearDesdeJSON(c)
		return
	}

	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusBadRequest, "Formulario inválido")
		return
	}
	cat, ok := h.cargarCatalogo(c)
	if !ok {
		return
	}

	form := c.Request.PostForm
	cab := cabeceraDe(form.Get("cliente_id"), form.Get("fecha"))
	ed := editor.New(editor.DecodeFilas(form), cat.Precios, cat.Opciones, h.logger)
	flash := ui.NewFlash(ui.AutoOcultar)

	res := ed.PrepareSubmit()
	h.monitoring.RecordEditorAccion(editor.AccionEnviar, !res.Permitido)
	if !res.Permitido {
		flash.Show(ui.Advertencia, res.Aviso)
		h.renderFormulario(c, http.StatusUnprocessableEntity, cat, ed, cab, flash, nil, res.Aviso)
		return
	}

	req := solicitudDesdeEditor(cab, ed)
	factura, err := h.facturas.Crear(c.Request.Context(), req)
	if err != nil {
		var verr *services.ValidacionError
		if errors.As(err, &verr) {
			flash.Show(ui.Peligro, verr.Mensaje)
			h.renderFormulario(c, http.StatusUnprocessableEntity, cat, ed, cab, flash, verr.Items, "")
			return
		}
		h.logError("Error al guardar la factura", zap.Error(err))
		flash.Show(ui.Peligro, "Error al guardar la factura: "+err.Error())
		h.renderFormulario(c, http.StatusInternalServerError, cat, ed, cab, flash, nil, "")
		return
	}

	h.logSuccess("Factura creada desde formulario",
		zap.Int("id", factura.ID),
		zap.Int("items", len(factura.Detalles)),
		zap.Int("filas_descartadas", res.Eliminadas))
	c.Redirect(http.StatusSeeOther, "/facturas/"+strconv.Itoa(factura.ID)+"?creada=1")
}

func (h *FacturaHandler) crearDesdeJSON(c *gin.Context) {
	var req models.FacturaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logError("Error binding JSON", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Error en el formato de datos",
			"error":   err.Error(),
		})
		return
	}
	// los errores por ítem se reportan por posición en el arreglo
	for i := range req.Items {
		req.Items[i].Fila = i
	}

	factura, err := h.facturas.Crear(c.Request.Context(), &req)
	if err != nil {
		var verr *services.ValidacionError
		if errors.As(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, models.FacturaResponse{
				Success: false,
				Message: verr.Mensaje,
				Errores: verr.Items,
			})
			return
		}
		h.logError("Error al guardar la factura", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Error al guardar la factura",
			"error":   err.Error(),
		})
		return
	}

	h.logSuccess("Factura creada", zap.Int("id", factura.ID))
	c.Header("Location", "/facturas/"+strconv.Itoa(factura.ID))
	c.JSON(http.StatusCreated, models.FacturaResponse{
		Success: true,
		Message: services.MsgFacturaCreada,
		Data:    factura,
	})
}

// VerFactura muestra una factura con sus detalles
func (h *FacturaHandler) VerFactura(c *gin.Context) {
	id, ok := idDeRuta(c)
	if !ok {
		return
	}

	factura, err := h.facturas.Obtener(c.Request.Context(), id)
	if errors.Is(err, services.ErrFacturaInexistente) {
		h.noEncontrada(c)
		return
	}
	if err != nil {
		h.logError("Error obteniendo factura", zap.Int("id", id), zap.Error(err))
		h.errorInterno(c, "Error obteniendo factura", err)
		return
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, models.FacturaResponse{Success: true, Message: "Factura obtenida", Data: factura})
		return
	}
	flash := ui.NewFlash(ui.AutoOcultar)
	if c.Query("creada") != "" {
		flash.Show(ui.Exito, services.MsgFacturaCreada)
	}
	c.HTML(http.StatusOK, view.Detalle, view.DetalleData{Factura: factura, Notificaciones: flash.Pendientes()})
}

// ListarFacturas lista las facturas con filtros opcionales
// (cliente_id, desde, hasta, page).
func (h *FacturaHandler) ListarFacturas(c *gin.Context) {
	filter, err := h.filtroDeQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Filtros inválidos",
			"error":   err.Error(),
		})
		return
	}

	facturas, err := h.facturas.Listar(c.Request.Context(), filter)
	if err != nil {
		h.logError("Error listando facturas", zap.Error(err))
		h.errorInterno(c, "Error listando facturas", err)
		return
	}

	total := decimal.Zero
	for _, f := range facturas {
		total = total.Add(f.Total)
	}

	if wantsJSON(c) {
		var resp models.FacturasResponse
		resp.Success = true
		resp.Message = "Facturas obtenidas"
		resp.Data.TotalFacturas = len(facturas)
		resp.Data.TotalVendido = total
		resp.Data.Facturas = facturas
		resp.Data.Timestamp = time.Now().UTC().Format(time.RFC3339)
		c.JSON(http.StatusOK, resp)
		return
	}

	flash := ui.NewFlash(ui.AutoOcultar)
	if c.Query("eliminada") != "" {
		flash.Show(ui.Exito, services.MsgFacturaEliminada)
	}
	c.HTML(http.StatusOK, view.Listado, view.ListadoData{Facturas: facturas, Total: total, Notificaciones: flash.Pendientes()})
}

func (h *FacturaHandler) filtroDeQuery(c *gin.Context) (models.FacturaFilter, error) {
	filter := models.FacturaFilter{Limit: h.itemsPerPage}

	if v := c.Query("cliente_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return filter, errors.New("cliente_id debe ser numérico")
		}
		filter.IDCliente = &id
	}
	if v := c.Query("desde"); v != "" {
		t, err := time.Parse(formatoFecha, v)
		if err != nil {
			return filter, errors.New("desde debe tener formato AAAA-MM-DD")
		}
		filter.FechaDesde = &t
	}
	if v := c.Query("hasta"); v != "" {
		t, err := time.Parse(formatoFecha, v)
		if err != nil {
			return filter, errors.New("hasta debe tener formato AAAA-MM-DD")
		}
		filter.FechaHasta = &t
	}
	if filter.FechaDesde != nil && filter.FechaHasta != nil && filter.FechaDesde.After(*filter.FechaHasta) {
		return filter, errors.New(services.MsgRangoFechas)
	}
	if v := c.Query("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return filter, errors.New("page debe ser un número mayor a 0")
		}
		filter.Offset = (page - 1) * h.itemsPerPage
	}
	return filter, nil
}

// Reporte muestra las ventas de un rango de fechas con el desglose por
// cliente. Sin fechas la página sólo muestra el formulario; cliente_id=0 es
// "todos".
func (h *FacturaHandler) Reporte(c *gin.Context) {
	data := view.ReporteData{
		Desde:     c.Query("desde"),
		Hasta:     c.Query("hasta"),
		ClienteID: cabeceraDe(c.Query("cliente_id"), "").ClienteID,
	}
	flash := ui.NewFlash(ui.AutoOcultar)

	filter, err := h.filtroDeQuery(c)
	if err == nil && filter.IDCliente != nil && *filter.IDCliente == 0 {
		filter.IDCliente = nil
	}

	var reporte *models.ReporteVentas
	if err == nil && (wantsJSON(c) || filter.FechaDesde != nil || filter.FechaHasta != nil) {
		reporte, err = h.facturas.Reporte(c.Request.Context(), filter)
		var verr *services.ValidacionError
		if err != nil && !errors.As(err, &verr) {
			h.logError("Error generando reporte", zap.Error(err))
			h.errorInterno(c, "Error generando reporte", err)
			return
		}
	}

	if wantsJSON(c) {
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "Filtros inválidos",
				"error":   err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, models.ReporteResponse{Success: true, Message: "Reporte generado", Data: reporte})
		return
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusBadRequest
		flash.Show(ui.Peligro, err.Error())
	}
	clientes, cerr := h.catalogo.Clientes(c.Request.Context())
	if cerr != nil {
		h.logError("Error listando clientes", zap.Error(cerr))
		flash.Show(ui.Peligro, "No se pudieron cargar los clientes")
	}
	data.Clientes = clientes
	data.Reporte = reporte
	data.Notificaciones = flash.Pendientes()
	c.HTML(status, view.Reportes, data)
}

// EliminarFactura anula la factura y repone el stock
func (h *FacturaHandler) EliminarFactura(c *gin.Context) {
	id, ok := idDeRuta(c)
	if !ok {
		return
	}

	err := h.facturas.Anular(c.Request.Context(), id)
	if errors.Is(err, services.ErrFacturaInexistente) {
		h.noEncontrada(c)
		return
	}
	if err != nil {
		h.logError("Error al eliminar factura", zap.Int("id", id), zap.Error(err))
		h.errorInterno(c, services.MsgErrorEliminar, err)
		return
	}

	h.logInfo("Factura eliminada", zap.Int("id", id))
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": services.MsgFacturaEliminada,
		})
		return
	}
	c.Redirect(http.StatusSeeOther, "/facturas?eliminada=1")
}

type formularioCabecera struct {
	ClienteID int
	Fecha     string
}

func cabeceraDe(clienteID, fecha string) formularioCabecera {
	id, err := strconv.Atoi(strings.TrimSpace(clienteID))
	if err != nil {
		id = 0
	}
	return formularioCabecera{ClienteID: id, Fecha: strings.TrimSpace(fecha)}
}

// solicitudDesdeEditor arma la factura a partir de las filas ya normalizadas.
func solicitudDesdeEditor(cab formularioCabecera, ed *editor.Editor) *models.FacturaRequest {
	req := &models.FacturaRequest{IDCliente: cab.ClienteID}
	if t, err := time.ParseInLocation(formatoFecha, cab.Fecha, time.Local); err == nil {
		// la hora es la del momento de la carga
		ahora := time.Now()
		fecha := time.Date(t.Year(), t.Month(), t.Day(), ahora.Hour(), ahora.Minute(), ahora.Second(), 0, time.Local)
		req.Fecha = &fecha
	}
	for _, f := range ed.Filas() {
		id, err := strconv.Atoi(strings.TrimSpace(f.ProductoID))
		if err != nil {
			id = 0
		}
		req.Items = append(req.Items, models.ItemRequest{
			Fila:           f.Index,
			IDProducto:     id,
			Cantidad:       f.CantidadValor(),
			PrecioUnitario: f.PrecioValor(),
		})
	}
	return req
}

func (h *FacturaHandler) renderFormulario(
	c *gin.Context,
	status int,
	cat *services.Catalogo,
	ed *editor.Editor,
	cab formularioCabecera,
	notifier ui.Notifier,
	errores []models.ItemError,
	aviso string,
) {
	clientes, err := h.catalogo.Clientes(c.Request.Context())
	if err != nil {
		h.logError("Error listando clientes", zap.Error(err))
		notifier.Show(ui.Peligro, "No se pudieron cargar los clientes")
	}

	ed.Restore()
	ed.Recompute()
	items := view.NewItemsData(ed, errores)
	items.Aviso = aviso
	c.HTML(status, view.NuevaFactura, view.NuevaFacturaData{
		ItemsData:      items,
		Clientes:       clientes,
		ClienteID:      cab.ClienteID,
		Fecha:          cab.Fecha,
		Precios:        cat.Precios,
		Notificaciones: notifier.Pendientes(),
	})
}

func (h *FacturaHandler) cargarCatalogo(c *gin.Context) (*services.Catalogo, bool) {
	cat, err := h.catalogo.Catalogo(c.Request.Context())
	if err != nil {
		h.logError("Error cargando catálogo", zap.Error(err))
		h.errorInterno(c, "Error cargando catálogo de productos", err)
		return nil, false
	}
	return cat, true
}

func idDeRuta(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "ID de factura inválido",
		})
		return 0, false
	}
	return id, true
}

func (h *FacturaHandler) noEncontrada(c *gin.Context) {
	if wantsJSON(c) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Factura no encontrada",
		})
		return
	}
	c.String(http.StatusNotFound, "Factura no encontrada")
}

func (h *FacturaHandler) errorInterno(c *gin.Context, msg string, err error) {
	if wantsJSON(c) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": msg,
			"error":   err.Error(),
		})
		return
	}
	c.String(http.StatusInternalServerError, msg)
}
