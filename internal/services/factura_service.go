package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"facturacion-service/internal/models"
	"facturacion-service/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Mensajes que ve el usuario
const (
	MsgFacturaCreada       = "Factura creada exitosamente"
	MsgFacturaEliminada    = "Factura eliminada correctamente"
	MsgErrorEliminar       = "Error al eliminar la factura"
	MsgCorregirItems       = "Corrige los errores en los ítems de la factura."
	MsgClienteRequerido    = "Seleccione un cliente"
	MsgProductoInvalido    = "Producto inválido o inexistente"
	MsgCantidadInvalida    = "Cantidad debe ser mayor a 0"
	MsgCantidadSuperaStock = "Cantidad supera el stock disponible"
	MsgRangoFechas         = "La fecha de inicio no puede ser posterior a la fecha final"
	MsgFechasRequeridas    = "Indique la fecha de inicio y la fecha final"
	ClienteNoEncontrado    = "Cliente no encontrado"
)

var (
	ErrValidacion         = errors.New("factura inválida")
	ErrFacturaInexistente = errors.New("factura no encontrada")
)

// ValidacionError agrupa los errores de cabecera y de cada ítem.
type ValidacionError struct {
	Mensaje string
	Items   []models.ItemError
}

func (e *ValidacionError) Error() string {
	if len(e.Items) == 0 {
		return e.Mensaje
	}
	partes := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		partes = append(partes, fmt.Sprintf("fila %d %s: %s", it.Fila, it.Campo, it.Error))
	}
	return e.Mensaje + " " + strings.Join(partes, "; ")
}

func (e *ValidacionError) Unwrap() error { return ErrValidacion }

type FacturaService interface {
	Crear(ctx context.Context, req *models.FacturaRequest) (*models.FacturaWithDetails, error)
	Obtener(ctx context.Context, id int) (*models.FacturaWithDetails, error)
	Listar(ctx context.Context, filter models.FacturaFilter) ([]models.FacturaResumen, error)
	Anular(ctx context.Context, id int) error
	Reporte(ctx context.Context, filter models.FacturaFilter) (*models.ReporteVentas, error)
}

type facturaService struct {
	repo        repository.FacturaRepository
	productRepo repository.ProductRepository
	clienteRepo repository.ClienteRepository
	catalogo    CatalogService
	validate    *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

func NewFacturaService(
	repo repository.FacturaRepository,
	productRepo repository.ProductRepository,
	clienteRepo repository.ClienteRepository,
	catalogo CatalogService,
	logger *zap.Logger,
) FacturaService {
	return &facturaService{
		repo:        repo,
		productRepo: productRepo,
		clienteRepo: clienteRepo,
		catalogo:    catalogo,
		validate:    validator.New(),
		logger:      logger,
		now:         time.Now,
	}
}

// Crear valida la factura contra productos y stock actuales y la registra.
func (s *facturaService) Crear(ctx context.Context, req *models.FacturaRequest) (*models.FacturaWithDetails, error) {
	logger := s.logger.With(
		zap.Int("id_cliente", req.IDCliente),
		zap.Int("items", len(req.Items)),
	)

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Field() == "IDCliente" {
					return nil, &ValidacionError{Mensaje: MsgClienteRequerido}
				}
			}
			return nil, &ValidacionError{Mensaje: MsgCorregirItems}
		}
		return nil, fmt.Errorf("validar factura: %w", err)
	}

	cliente, err := s.clienteRepo.GetCliente(ctx, req.IDCliente)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &ValidacionError{Mensaje: MsgClienteRequerido}
	}
	if err != nil {
		return nil, fmt.Errorf("buscar cliente: %w", err)
	}

	ids := make([]int, 0, len(req.Items))
	for _, it := range req.Items {
		ids = append(ids, it.IDProducto)
	}
	productos, err := s.productRepo.GetProductosByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("buscar productos: %w", err)
	}

	factura, detalles, itemErrs := s.armarFactura(req, productos)
	if len(itemErrs) > 0 {
		logger.Info("Factura rechazada por errores en ítems", zap.Int("errores", len(itemErrs)))
		return nil, &ValidacionError{Mensaje: MsgCorregirItems, Items: itemErrs}
	}

	if err := s.repo.CreateFactura(ctx, factura); err != nil {
		var stockErr *repository.StockError
		if errors.As(err, &stockErr) {
			// el stock cambió entre la validación y la transacción
			return nil, &ValidacionError{
				Mensaje: fmt.Sprintf("Stock insuficiente para el producto: %s", productos[stockErr.IDProducto].Descripcion),
				Items:   []models.ItemError{{Fila: filaDeProducto(req, stockErr.IDProducto), Campo: "cantidad", Error: MsgCantidadSuperaStock}},
			}
		}
		logger.Error("Error guardando factura", zap.Error(err))
		return nil, fmt.Errorf("guardar factura: %w", err)
	}

	if err := s.catalogo.Invalidar(ctx); err != nil {
		logger.Warn("No se pudo invalidar el catálogo", zap.Error(err))
	}

	for i := range detalles {
		detalles[i].DetalleFactura = factura.Detalles[i]
	}

	logger.Info("Factura creada",
		zap.Int("id", factura.ID),
		zap.String("total", factura.Total.StringFixed(2)))

	return &models.FacturaWithDetails{
		ID:            factura.ID,
		IDCliente:     factura.IDCliente,
		NombreCliente: cliente.Nombre,
		Fecha:         factura.Fecha,
		Total:         factura.Total,
		Detalles:      detalles,
	}, nil
}

// armarFactura valida cada ítem y calcula subtotales y total. El stock se
// descuenta a medida que se recorren los ítems, así dos filas del mismo
// producto no pueden superar juntas el disponible.
func (s *facturaService) armarFactura(req *models.FacturaRequest, productos map[int]models.Producto) (*models.Factura, []models.DetalleWithProducto, []models.ItemError) {
	fecha := s.now()
	if req.Fecha != nil {
		fecha = *req.Fecha
	}
	factura := &models.Factura{IDCliente: req.IDCliente, Fecha: fecha, Total: decimal.Zero}

	var (
		detalles []models.DetalleWithProducto
		errs     []models.ItemError
	)
	restante := make(map[int]int, len(productos))
	for id, p := range productos {
		restante[id] = p.Stock
	}

	for _, it := range req.Items {
		p, ok := productos[it.IDProducto]
		if !ok {
			errs = append(errs, models.ItemError{Fila: it.Fila, Campo: "producto_id", Error: MsgProductoInvalido})
			continue
		}
		if err := s.validate.Struct(it); err != nil {
			errs = append(errs, itemErrorDe(it.Fila, err))
			continue
		}
		if restante[it.IDProducto] < it.Cantidad {
			errs = append(errs, models.ItemError{Fila: it.Fila, Campo: "cantidad", Error: MsgCantidadSuperaStock})
			continue
		}
		restante[it.IDProducto] -= it.Cantidad

		precio := it.PrecioUnitario
		if !precio.IsPositive() {
			precio = p.Precio
		}
		precio = precio.Round(2)
		subtotal := precio.Mul(decimal.NewFromInt(int64(it.Cantidad))).Round(2)

		d := models.DetalleFactura{
			IDProducto:     p.ID,
			Cantidad:       it.Cantidad,
			PrecioUnitario: precio,
			Subtotal:       subtotal,
		}
		factura.Detalles = append(factura.Detalles, d)
		factura.Total = factura.Total.Add(subtotal)
		detalles = append(detalles, models.DetalleWithProducto{DetalleFactura: d, DescripcionProducto: p.Descripcion})
	}

	if len(errs) == 0 && len(factura.Detalles) == 0 {
		errs = append(errs, models.ItemError{Fila: 0, Campo: "producto_id", Error: MsgProductoInvalido})
	}
	return factura, detalles, errs
}

func itemErrorDe(fila int, err error) models.ItemError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "IDProducto" {
		return models.ItemError{Fila: fila, Campo: "producto_id", Error: MsgProductoInvalido}
	}
	return models.ItemError{Fila: fila, Campo: "cantidad", Error: MsgCantidadInvalida}
}

func filaDeProducto(req *models.FacturaRequest, idProducto int) int {
	for _, it := range req.Items {
		if it.IDProducto == idProducto {
			return it.Fila
		}
	}
	return 0
}

func (s *facturaService) Obtener(ctx context.Context, id int) (*models.FacturaWithDetails, error) {
	f, err := s.repo.GetFactura(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrFacturaInexistente
	}
	if err != nil {
		return nil, fmt.Errorf("obtener factura %d: %w", id, err)
	}
	return f, nil
}

func (s *facturaService) Listar(ctx context.Context, filter models.FacturaFilter) ([]models.FacturaResumen, error) {
	facturas, err := s.repo.ListFacturas(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listar facturas: %w", err)
	}
	return facturas, nil
}

// Anular borra la factura y repone el stock vendido.
func (s *facturaService) Anular(ctx context.Context, id int) error {
	if err := s.repo.DeleteFactura(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrFacturaInexistente
		}
		s.logger.Error("Error al eliminar factura", zap.Int("id", id), zap.Error(err))
		return fmt.Errorf("anular factura %d: %w", id, err)
	}

	if err := s.catalogo.Invalidar(ctx); err != nil {
		s.logger.Warn("No se pudo invalidar el catálogo", zap.Error(err))
	}
	return nil
}

// Reporte junta las facturas del rango (ambos días inclusive), opcionalmente
// de un solo cliente, y las acumula por cliente. Las facturas quedan en orden
// de fecha ascendente y el desglose ordenado por nombre.
func (s *facturaService) Reporte(ctx context.Context, filter models.FacturaFilter) (*models.ReporteVentas, error) {
	if filter.FechaDesde == nil || filter.FechaHasta == nil {
		return nil, &ValidacionError{Mensaje: MsgFechasRequeridas}
	}
	if filter.FechaDesde.After(*filter.FechaHasta) {
		return nil, &ValidacionError{Mensaje: MsgRangoFechas}
	}
	filter.Limit, filter.Offset = 0, 0

	facturas, err := s.repo.ListFacturas(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("reporte de ventas: %w", err)
	}
	sort.SliceStable(facturas, func(i, j int) bool {
		if !facturas[i].Fecha.Equal(facturas[j].Fecha) {
			return facturas[i].Fecha.Before(facturas[j].Fecha)
		}
		return facturas[i].ID < facturas[j].ID
	})

	reporte := &models.ReporteVentas{
		Desde:       *filter.FechaDesde,
		Hasta:       *filter.FechaHasta,
		IDCliente:   filter.IDCliente,
		Facturas:    facturas,
		VentasTotal: decimal.Zero,
	}
	porCliente := map[int]*models.VentasCliente{}
	for _, f := range facturas {
		reporte.VentasTotal = reporte.VentasTotal.Add(f.Total)
		v, ok := porCliente[f.IDCliente]
		if !ok {
			nombre := f.NombreCliente
			if nombre == "" {
				nombre = ClienteNoEncontrado
			}
			v = &models.VentasCliente{IDCliente: f.IDCliente, NombreCliente: nombre, MontoTotal: decimal.Zero}
			porCliente[f.IDCliente] = v
		}
		v.MontoTotal = v.MontoTotal.Add(f.Total)
		v.Cantidad++
	}

	reporte.PorCliente = make([]models.VentasCliente, 0, len(porCliente))
	for _, v := range porCliente {
		reporte.PorCliente = append(reporte.PorCliente, *v)
	}
	sort.Slice(reporte.PorCliente, func(i, j int) bool {
		a, b := reporte.PorCliente[i], reporte.PorCliente[j]
		if a.NombreCliente != b.NombreCliente {
			return a.NombreCliente < b.NombreCliente
		}
		return a.IDCliente < b.IDCliente
	})

	s.logger.Debug("Reporte de ventas generado",
		zap.Int("facturas", len(facturas)),
		zap.Int("clientes", len(reporte.PorCliente)),
		zap.String("total", reporte.VentasTotal.StringFixed(2)))
	return reporte, nil
}
