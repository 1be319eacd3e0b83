package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"facturacion-service/internal/editor"
	"facturacion-service/internal/services"
	"facturacion-service/internal/ui"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// accionOcultar oculta una notificación; no modifica las filas.
const accionOcultar = "ocultar"

// MensajeAccion es lo que manda el navegador por cada evento del editor.
type MensajeAccion struct {
	Accion string `json:"accion"`
	Fila   int    `json:"fila"`
	Valor  string `json:"valor,omitempty"`
}

// MensajeEstado es la respuesta a cada acción: el estado completo del editor.
type MensajeEstado struct {
	Sesion         string            `json:"sesion"`
	Estado         editor.Estado     `json:"estado"`
	Permitido      *bool             `json:"permitido,omitempty"`
	Aviso          string            `json:"aviso,omitempty"`
	Error          string            `json:"error,omitempty"`
	Notificaciones []ui.Notificacion `json:"notificaciones"`
}

// EditorHandler mantiene un editor de factura por conexión websocket
type EditorHandler struct {
	catalogo     services.CatalogService
	monitoring   services.MonitoringService
	pingInterval time.Duration
	maxSesiones  int64
	activas      atomic.Int64
	logger       *zap.Logger
}

func NewEditorHandler(
	catalogo services.CatalogService,
	monitoring services.MonitoringService,
	pingInterval time.Duration,
	maxSesiones int,
	logger *zap.Logger,
) *EditorHandler {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &EditorHandler{
		catalogo:     catalogo,
		monitoring:   monitoring,
		pingInterval: pingInterval,
		maxSesiones:  int64(maxSesiones),
		logger:       logger,
	}
}

// SesionesActivas devuelve cuántos editores hay conectados.
func (h *EditorHandler) SesionesActivas() int {
	return int(h.activas.Load())
}

// WebSocketEditor abre una sesión de edición en vivo
func (h *EditorHandler) WebSocketEditor(c *gin.Context) {
	sesionID := uuid.NewString()
	logger := h.logger.With(zap.String("handler", "websocket_editor"), zap.String("sesion", sesionID))

	if n := h.activas.Add(1); h.maxSesiones > 0 && n > h.maxSesiones {
		h.activas.Add(-1)
		logger.Warn("Límite de sesiones de editor alcanzado", zap.Int64("max", h.maxSesiones))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": "Demasiadas sesiones de edición abiertas",
		})
		return
	}
	defer h.activas.Add(-1)

	cat, err := h.catalogo.Catalogo(c.Request.Context())
	if err != nil {
		logger.Error("Error cargando catálogo", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Error cargando catálogo de productos",
			"error":   err.Error(),
		})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("Error actualizando a WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	h.monitoring.RecordEditorSesion(1)
	defer h.monitoring.RecordEditorSesion(-1)
	logger.Info("Sesión de editor abierta")

	s := &sesionEditor{
		id:         sesionID,
		editor:     editor.New(nil, cat.Precios, cat.Opciones, logger),
		flash:      ui.NewFlash(0),
		monitoring: h.monitoring,
		logger:     logger,
	}

	// ping/pong: sin pong en dos intervalos se corta la lectura
	espera := 2 * h.pingInterval
	conn.SetReadDeadline(time.Now().Add(espera))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(espera))
	})

	done := make(chan struct{})
	defer close(done)
	go h.ping(conn, done, logger)

	if err := conn.WriteJSON(s.estado()); err != nil {
		logger.Error("Error enviando estado inicial", zap.Error(err))
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Conexión de editor cerrada inesperadamente", zap.Error(err))
			} else {
				logger.Info("Sesión de editor cerrada")
			}
			return
		}

		var (
			msg  MensajeAccion
			resp MensajeEstado
		)
		if err := json.Unmarshal(data, &msg); err != nil {
			resp = s.estado()
			resp.Error = "Mensaje inválido"
		} else {
			resp = s.aplicar(msg)
		}

		if err := conn.WriteJSON(resp); err != nil {
			logger.Error("Error enviando estado por WebSocket", zap.Error(err))
			return
		}
	}
}

func (h *EditorHandler) ping(conn *websocket.Conn, done <-chan struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logger.Debug("Ping fallido", zap.Error(err))
				return
			}
		case <-done:
			return
		}
	}
}

// sesionEditor es el estado de una conexión. Sólo la usa la goroutine que
// lee del websocket.
type sesionEditor struct {
	id         string
	editor     *editor.Editor
	flash      *ui.Flash
	monitoring services.MonitoringService
	logger     *zap.Logger
}

func (s *sesionEditor) estado() MensajeEstado {
	return MensajeEstado{
		Sesion:         s.id,
		Estado:         s.editor.Snapshot(),
		Notificaciones: s.flash.Pendientes(),
	}
}

func (s *sesionEditor) aplicar(msg MensajeAccion) MensajeEstado {
	if msg.Accion == accionOcultar {
		s.flash.Hide(msg.Valor)
		return s.estado()
	}

	accion, err := editor.ParseAccion(msg.Accion, msg.Fila, msg.Valor)
	if err != nil {
		resp := s.estado()
		resp.Error = err.Error()
		return resp
	}

	res, err := s.editor.Dispatch(accion)
	bloqueado := res != nil && !res.Permitido
	s.monitoring.RecordEditorAccion(msg.Accion, bloqueado)

	switch {
	case errors.Is(err, editor.ErrUltimaFila):
		s.flash.Show(ui.Advertencia, "La factura debe tener al menos un ítem")
	case err != nil:
		s.logger.Debug("Acción rechazada", zap.String("accion", msg.Accion), zap.Error(err))
	}
	if bloqueado {
		s.flash.Show(ui.Advertencia, res.Aviso)
	}

	resp := s.estado()
	if err != nil && !errors.Is(err, editor.ErrUltimaFila) {
		resp.Error = err.Error()
	}
	if res != nil {
		permitido := res.Permitido
		resp.Permitido = &permitido
		resp.Aviso = res.Aviso
	}
	return resp
}
