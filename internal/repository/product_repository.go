package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"facturacion-service/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("registro no encontrado")

// rowScanner cubre *sql.Row y *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// ProductRepository interface para operaciones de productos
type ProductRepository interface {
	ListProductos(ctx context.Context) ([]models.Producto, error)
	GetProductosByIDs(ctx context.Context, ids []int) (map[int]models.Producto, error)
}

// productRepository implementación del repository
type productRepository struct {
	db     *sql.DB
	stmts  map[string]*sql.Stmt
	logger *zap.Logger
}

// NewProductRepository crea una nueva instancia del repository
func NewProductRepository(db *sql.DB, logger *zap.Logger) (ProductRepository, error) {
	repo := &productRepository{
		db:     db,
		stmts:  make(map[string]*sql.Stmt),
		logger: logger,
	}

	if err := repo.prepareStatements(); err != nil {
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return repo, nil
}

// prepareStatements prepara todas las queries SQL
func (r *productRepository) prepareStatements() error {
	statements := map[string]string{
		"list_productos": `
			SELECT id, descripcion, precio, COALESCE(stock, 0), created_at, updated_at
			FROM productos
			ORDER BY descripcion
		`,
		"get_productos_by_ids": `
			SELECT id, descripcion, precio, COALESCE(stock, 0), created_at, updated_at
			FROM productos
			WHERE id = ANY($1)
		`,
	}

	for name, query := range statements {
		stmt, err := r.db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		r.stmts[name] = stmt
	}

	return nil
}

// ListProductos devuelve todos los productos ordenados por descripción
func (r *productRepository) ListProductos(ctx context.Context) ([]models.Producto, error) {
	start := time.Now()

	rows, err := r.stmts["list_productos"].QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query productos: %w", err)
	}
	defer rows.Close()

	productos := []models.Producto{}
	for rows.Next() {
		p, err := scanProducto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan producto: %w", err)
		}
		productos = append(productos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate productos: %w", err)
	}

	r.logger.Debug("Productos listados",
		zap.Int("total", len(productos)),
		zap.Duration("latency", time.Since(start)))

	return productos, nil
}

// GetProductosByIDs busca varios productos de una sola vez; los ids
// inexistentes simplemente no aparecen en el mapa.
func (r *productRepository) GetProductosByIDs(ctx context.Context, ids []int) (map[int]models.Producto, error) {
	out := make(map[int]models.Producto, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	ids64 := make([]int64, len(ids))
	for i, id := range ids {
		ids64[i] = int64(id)
	}

	rows, err := r.stmts["get_productos_by_ids"].QueryContext(ctx, pq.Array(ids64))
	if err != nil {
		return nil, fmt.Errorf("failed to query productos by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProducto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan producto: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate productos: %w", err)
	}

	return out, nil
}

func scanProducto(row rowScanner) (models.Producto, error) {
	var p models.Producto
	err := row.Scan(&p.ID, &p.Descripcion, &p.Precio, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
