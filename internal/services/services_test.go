package services

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"facturacion-service/internal/cache"
	"facturacion-service/internal/models"
	"facturacion-service/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProductRepo struct {
	productos map[int]models.Producto
	listCalls int
}

func (f *fakeProductRepo) ListProductos(ctx context.Context) ([]models.Producto, error) {
	f.listCalls++
	out := make([]models.Producto, 0, len(f.productos))
	for _, p := range f.productos {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeProductRepo) GetProductosByIDs(ctx context.Context, ids []int) (map[int]models.Producto, error) {
	out := map[int]models.Producto{}
	for _, id := range ids {
		if p, ok := f.productos[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeClienteRepo struct {
	clientes map[int]models.Cliente
}

func (f *fakeClienteRepo) ListClientes(ctx context.Context) ([]models.Cliente, error) {
	out := make([]models.Cliente, 0, len(f.clientes))
	for _, c := range f.clientes {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeClienteRepo) GetCliente(ctx context.Context, id int) (*models.Cliente, error) {
	c, ok := f.clientes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

type fakeFacturaRepo struct {
	creadas   []*models.Factura
	createErr error
	deleteErr error
	getErr    error
	borradas  []int
	filtro    models.FacturaFilter
	resumenes []models.FacturaResumen
	listErr   error
}

func (f *fakeFacturaRepo) CreateFactura(ctx context.Context, factura *models.Factura) error {
	if f.createErr != nil {
		return f.createErr
	}
	factura.ID = len(f.creadas) + 1
	for i := range factura.Detalles {
		factura.Detalles[i].ID = i + 1
		factura.Detalles[i].IDFactura = factura.ID
	}
	f.creadas = append(f.creadas, factura)
	return nil
}

func (f *fakeFacturaRepo) GetFactura(ctx context.Context, id int) (*models.FacturaWithDetails, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &models.FacturaWithDetails{ID: id}, nil
}

func (f *fakeFacturaRepo) ListFacturas(ctx context.Context, filter models.FacturaFilter) ([]models.FacturaResumen, error) {
	f.filtro = filter
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.resumenes != nil {
		return f.resumenes, nil
	}
	return []models.FacturaResumen{{ID: 1}}, nil
}

func (f *fakeFacturaRepo) DeleteFactura(ctx context.Context, id int) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.borradas = append(f.borradas, id)
	return nil
}

type fixture struct {
	productos *fakeProductRepo
	facturas  *fakeFacturaRepo
	catalogo  CatalogService
	service   *facturaService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	productos := &fakeProductRepo{productos: map[int]models.Producto{
		1: {ID: 1, Descripcion: "Tornillo", Precio: decimal.RequireFromString("5"), Stock: 5},
		2: {ID: 2, Descripcion: "Tuerca", Precio: decimal.RequireFromString("2.25"), Stock: 10},
	}}
	clientes := &fakeClienteRepo{clientes: map[int]models.Cliente{7: {ID: 7, Nombre: "Ana"}}}
	facturas := &fakeFacturaRepo{}

	cc := cache.NewCatalogCache(nil, 4, time.Minute, zap.NewNop())
	t.Cleanup(cc.Close)

	catalogo := NewCatalogService(productos, clientes, cc, zap.NewNop())
	svc := NewFacturaService(facturas, productos, clientes, catalogo, zap.NewNop()).(*facturaService)
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	return &fixture{productos: productos, facturas: facturas, catalogo: catalogo, service: svc}
}

func TestCatalogoSeCacheaHastaInvalidar(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	cat, err := fx.catalogo.Catalogo(ctx)
	require.NoError(t, err)
	_, err = fx.catalogo.Catalogo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fx.productos.listCalls)

	assert.True(t, cat.Precios["1"].Equal(decimal.RequireFromString("5")))
	op, ok := cat.Opciones.Buscar("2")
	require.True(t, ok)
	assert.Equal(t, "Tuerca ($2.25)", op.Descripcion)
	assert.Equal(t, "2.25", op.Precio)
	require.NotNil(t, op.Stock)
	assert.Equal(t, 10, *op.Stock)

	p, ok := cat.Producto(1)
	require.True(t, ok)
	assert.Equal(t, "Tornillo", p.Descripcion)

	require.NoError(t, fx.catalogo.Invalidar(ctx))
	_, err = fx.catalogo.Catalogo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fx.productos.listCalls)
}

func TestCrearFacturaCalculaTotalesEInvalidaCatalogo(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.catalogo.Catalogo(ctx)
	require.NoError(t, err)

	factura, err := fx.service.Crear(ctx, &models.FacturaRequest{
		IDCliente: 7,
		Items: []models.ItemRequest{
			{Fila: 0, IDProducto: 1, Cantidad: 2},
			{Fila: 1, IDProducto: 2, Cantidad: 3, PrecioUnitario: decimal.RequireFromString("3.5")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, factura.ID)
	assert.Equal(t, "Ana", factura.NombreCliente)
	assert.Equal(t, "20.50", factura.Total.StringFixed(2))
	require.Len(t, factura.Detalles, 2)
	assert.Equal(t, "Tornillo", factura.Detalles[0].DescripcionProducto)
	assert.Equal(t, "5.00", factura.Detalles[0].PrecioUnitario.StringFixed(2))
	assert.Equal(t, "10.50", factura.Detalles[1].Subtotal.StringFixed(2))
	assert.Equal(t, 1, factura.Detalles[1].IDFactura)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), factura.Fecha)

	_, err = fx.catalogo.Catalogo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fx.productos.listCalls, "el alta descarta el catálogo cacheado")
}

func TestCrearFacturaStockSeSumaEntreFilas(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.service.Crear(context.Background(), &models.FacturaRequest{
		IDCliente: 7,
		Items: []models.ItemRequest{
			{Fila: 0, IDProducto: 1, Cantidad: 3},
			{Fila: 1, IDProducto: 1, Cantidad: 3},
		},
	})

	var verr *ValidacionError
	require.True(t, errors.As(err, &verr))
	assert.ErrorIs(t, err, ErrValidacion)
	assert.Equal(t, MsgCorregirItems, verr.Mensaje)
	assert.Equal(t, []models.ItemError{{Fila: 1, Campo: "cantidad", Error: MsgCantidadSuperaStock}}, verr.Items)
	assert.Empty(t, fx.facturas.creadas)
}

func TestCrearFacturaErroresPorItem(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.service.Crear(context.Background(), &models.FacturaRequest{
		IDCliente: 7,
		Items: []models.ItemRequest{
			{Fila: 0, IDProducto: 99, Cantidad: 1},
			{Fila: 1, IDProducto: 1, Cantidad: 0},
			{Fila: 2, IDProducto: 2, Cantidad: 1},
		},
	})

	var verr *ValidacionError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []models.ItemError{
		{Fila: 0, Campo: "producto_id", Error: MsgProductoInvalido},
		{Fila: 1, Campo: "cantidad", Error: MsgCantidadInvalida},
	}, verr.Items)
}

func TestCrearFacturaClienteRequerido(t *testing.T) {
	fx := newFixture(t)
	items := []models.ItemRequest{{IDProducto: 1, Cantidad: 1}}

	for _, id := range []int{0, 42} {
		_, err := fx.service.Crear(context.Background(), &models.FacturaRequest{IDCliente: id, Items: items})
		var verr *ValidacionError
		require.True(t, errors.As(err, &verr), "cliente %d", id)
		assert.Equal(t, MsgClienteRequerido, verr.Mensaje)
	}
}

func TestCrearFacturaSinItems(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.service.Crear(context.Background(), &models.FacturaRequest{IDCliente: 7})
	var verr *ValidacionError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, MsgCorregirItems, verr.Mensaje)
}

func TestCrearFacturaStockCambioEnLaTransaccion(t *testing.T) {
	fx := newFixture(t)
	fx.facturas.createErr = &repository.StockError{IDProducto: 2, Disponible: 0, Solicitado: 1}

	_, err := fx.service.Crear(context.Background(), &models.FacturaRequest{
		IDCliente: 7,
		Items: []models.ItemRequest{
			{Fila: 0, IDProducto: 1, Cantidad: 1},
			{Fila: 1, IDProducto: 2, Cantidad: 1},
		},
	})

	var verr *ValidacionError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Stock insuficiente para el producto: Tuerca", verr.Mensaje)
	assert.Equal(t, []models.ItemError{{Fila: 1, Campo: "cantidad", Error: MsgCantidadSuperaStock}}, verr.Items)
}

func TestCrearFacturaErrorDeBase(t *testing.T) {
	fx := newFixture(t)
	fx.facturas.createErr = errors.New("conexión perdida")

	_, err := fx.service.Crear(context.Background(), &models.FacturaRequest{
		IDCliente: 7,
		Items:     []models.ItemRequest{{IDProducto: 1, Cantidad: 1}},
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidacion)
}

func TestObtenerYAnularInexistente(t *testing.T) {
	fx := newFixture(t)
	fx.facturas.getErr = repository.ErrNotFound
	fx.facturas.deleteErr = repository.ErrNotFound

	_, err := fx.service.Obtener(context.Background(), 3)
	assert.ErrorIs(t, err, ErrFacturaInexistente)
	assert.ErrorIs(t, fx.service.Anular(context.Background(), 3), ErrFacturaInexistente)
}

func TestAnularInvalidaCatalogo(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.catalogo.Catalogo(ctx)
	require.NoError(t, err)

	require.NoError(t, fx.service.Anular(ctx, 3))
	assert.Equal(t, []int{3}, fx.facturas.borradas)

	_, err = fx.catalogo.Catalogo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fx.productos.listCalls)
}

func TestListarPasaElFiltro(t *testing.T) {
	fx := newFixture(t)
	cliente := 7

	facturas, err := fx.service.Listar(context.Background(), models.FacturaFilter{IDCliente: &cliente, Limit: 20})
	require.NoError(t, err)
	assert.Len(t, facturas, 1)
	assert.Equal(t, 20, fx.facturas.filtro.Limit)
	assert.Equal(t, 7, *fx.facturas.filtro.IDCliente)
}

func dia(d int) time.Time { return time.Date(2024, 3, d, 10, 0, 0, 0, time.UTC) }

func TestReporteAgrupaPorCliente(t *testing.T) {
	fx := newFixture(t)
	fx.facturas.resumenes = []models.FacturaResumen{
		{ID: 3, IDCliente: 8, NombreCliente: "Bruno", Fecha: dia(5), Total: decimal.RequireFromString("4.50")},
		{ID: 1, IDCliente: 7, NombreCliente: "Ana", Fecha: dia(2), Total: decimal.RequireFromString("10")},
		{ID: 2, IDCliente: 7, NombreCliente: "Ana", Fecha: dia(3), Total: decimal.RequireFromString("2.25")},
		{ID: 4, IDCliente: 99, Fecha: dia(1), Total: decimal.RequireFromString("1")},
	}
	desde, hasta := dia(1), dia(31)

	r, err := fx.service.Reporte(context.Background(), models.FacturaFilter{FechaDesde: &desde, FechaHasta: &hasta, Limit: 20, Offset: 40})
	require.NoError(t, err)

	assert.Equal(t, 0, fx.facturas.filtro.Limit)
	assert.Equal(t, 0, fx.facturas.filtro.Offset)
	assert.Equal(t, "17.75", r.VentasTotal.StringFixed(2))

	ids := make([]int, 0, len(r.Facturas))
	for _, f := range r.Facturas {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []int{4, 1, 2, 3}, ids)

	require.Len(t, r.PorCliente, 3)
	assert.Equal(t, "Ana", r.PorCliente[0].NombreCliente)
	assert.Equal(t, 2, r.PorCliente[0].Cantidad)
	assert.Equal(t, "12.25", r.PorCliente[0].MontoTotal.StringFixed(2))
	assert.Equal(t, "Bruno", r.PorCliente[1].NombreCliente)
	assert.Equal(t, ClienteNoEncontrado, r.PorCliente[2].NombreCliente)
	assert.Equal(t, 99, r.PorCliente[2].IDCliente)
}

func TestReporteValidaElRango(t *testing.T) {
	fx := newFixture(t)
	desde, hasta := dia(10), dia(1)

	_, err := fx.service.Reporte(context.Background(), models.FacturaFilter{FechaDesde: &desde, FechaHasta: &hasta})
	var verr *ValidacionError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, MsgRangoFechas, verr.Mensaje)

	_, err = fx.service.Reporte(context.Background(), models.FacturaFilter{FechaDesde: &desde})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, MsgFechasRequeridas, verr.Mensaje)

	mismoDia := dia(10)
	fx.facturas.resumenes = []models.FacturaResumen{}
	r, err := fx.service.Reporte(context.Background(), models.FacturaFilter{FechaDesde: &desde, FechaHasta: &mismoDia})
	require.NoError(t, err)
	assert.Empty(t, r.PorCliente)
	assert.True(t, r.VentasTotal.IsZero())

	fx.facturas.listErr = errors.New("sin conexión")
	_, err = fx.service.Reporte(context.Background(), models.FacturaFilter{FechaDesde: &desde, FechaHasta: &mismoDia})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidacion)
}
