package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"facturacion-service/internal/cache"
	"facturacion-service/internal/editor"
	"facturacion-service/internal/models"
	"facturacion-service/internal/repository"

	"go.uber.org/zap"
)

// Catalogo es lo que necesita el editor de facturas: los productos, el
// mapa de precios embebido en la página y las opciones del selector.
type Catalogo struct {
	Productos []models.Producto
	Precios   editor.PriceCatalog
	Opciones  editor.Opciones
	LeidoEn   time.Time
}

// Producto busca un producto del catálogo por id.
func (c *Catalogo) Producto(id int) (models.Producto, bool) {
	for _, p := range c.Productos {
		if p.ID == id {
			return p, true
		}
	}
	return models.Producto{}, false
}

type CatalogService interface {
	Catalogo(ctx context.Context) (*Catalogo, error)
	Clientes(ctx context.Context) ([]models.Cliente, error)
	Invalidar(ctx context.Context) error
}

type catalogService struct {
	productRepo repository.ProductRepository
	clienteRepo repository.ClienteRepository
	cache       *cache.CatalogCache
	logger      *zap.Logger
}

func NewCatalogService(
	productRepo repository.ProductRepository,
	clienteRepo repository.ClienteRepository,
	catalogCache *cache.CatalogCache,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		productRepo: productRepo,
		clienteRepo: clienteRepo,
		cache:       catalogCache,
		logger:      logger,
	}
}

// Catalogo devuelve el catálogo desde caché o, si no está, desde la base.
func (s *catalogService) Catalogo(ctx context.Context) (*Catalogo, error) {
	snap, err := s.cache.Get(ctx, cache.CatalogoKey)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("Error leyendo catálogo de caché", zap.Error(err))
		}

		productos, err := s.productRepo.ListProductos(ctx)
		if err != nil {
			return nil, fmt.Errorf("listar productos: %w", err)
		}
		snap = &models.CatalogoSnapshot{Productos: productos, LeidoEn: time.Now().UTC()}

		if err := s.cache.Set(ctx, cache.CatalogoKey, snap); err != nil {
			s.logger.Warn("No se pudo cachear el catálogo", zap.Error(err))
		}
	}

	return NewCatalogo(snap), nil
}

// NewCatalogo arma precios y opciones a partir de la foto de productos.
func NewCatalogo(snap *models.CatalogoSnapshot) *Catalogo {
	precios := make(editor.PriceCatalog, len(snap.Productos))
	opciones := make([]editor.Opcion, 0, len(snap.Productos))
	for _, p := range snap.Productos {
		id := strconv.Itoa(p.ID)
		stock := p.Stock
		precios[id] = p.Precio
		opciones = append(opciones, editor.Opcion{
			ID:          id,
			Descripcion: fmt.Sprintf("%s ($%s)", p.Descripcion, p.Precio.StringFixed(2)),
			Precio:      p.Precio.StringFixed(2),
			Stock:       &stock,
		})
	}

	return &Catalogo{
		Productos: snap.Productos,
		Precios:   precios,
		Opciones:  editor.NewOpciones(opciones...),
		LeidoEn:   snap.LeidoEn,
	}
}

func (s *catalogService) Clientes(ctx context.Context) ([]models.Cliente, error) {
	clientes, err := s.clienteRepo.ListClientes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listar clientes: %w", err)
	}
	return clientes, nil
}

// Invalidar descarta el catálogo cacheado; se llama cuando cambia el stock.
func (s *catalogService) Invalidar(ctx context.Context) error {
	return s.cache.Invalidate(ctx, cache.CatalogoKey)
}
