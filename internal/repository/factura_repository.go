package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"facturacion-service/internal/models"

	"go.uber.org/zap"
)

// ErrStockInsuficiente se devuelve cuando descontar un detalle dejaría el
// stock del producto en negativo.
var ErrStockInsuficiente = errors.New("stock insuficiente")

// FacturaRepository define la interfaz para operaciones de facturas
type FacturaRepository interface {
	CreateFactura(ctx context.Context, factura *models.Factura) error
	GetFactura(ctx context.Context, id int) (*models.FacturaWithDetails, error)
	ListFacturas(ctx context.Context, filter models.FacturaFilter) ([]models.FacturaResumen, error)
	DeleteFactura(ctx context.Context, id int) error
}

// StockError identifica el producto que no alcanzó.
type StockError struct {
	IDProducto int
	Disponible int
	Solicitado int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("stock insuficiente para el producto %d: disponible %d, solicitado %d",
		e.IDProducto, e.Disponible, e.Solicitado)
}

func (e *StockError) Unwrap() error { return ErrStockInsuficiente }

const (
	queryInsertFactura = `
		INSERT INTO facturas (id_cliente, fecha, total)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	queryDescontarStock = `
		UPDATE productos
		SET stock = stock - $1, updated_at = NOW()
		WHERE id = $2 AND stock >= $1
		RETURNING stock
	`
	queryStockActual = `
		SELECT COALESCE(stock, 0) FROM productos WHERE id = $1
	`
	queryInsertDetalle = `
		INSERT INTO detalle_factura (id_factura, id_producto, cantidad, precio_unitario, subtotal)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	queryInsertMovimiento = `
		INSERT INTO movimientos_stock
		(id_producto, id_factura, tipo_movimiento, cantidad, cantidad_anterior, cantidad_nueva, motivo)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	queryReponerStock = `
		UPDATE productos
		SET stock = COALESCE(stock, 0) + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING stock
	`
	queryDetallesParaAnular = `
		SELECT id_producto, cantidad FROM detalle_factura WHERE id_factura = $1
	`
	queryDeleteDetalles = `DELETE FROM detalle_factura WHERE id_factura = $1`
	queryDeleteFactura  = `DELETE FROM facturas WHERE id = $1`
)

// facturaRepository implementa FacturaRepository
type facturaRepository struct {
	db     *sql.DB
	stmts  map[string]*sql.Stmt
	logger *zap.Logger
}

// NewFacturaRepository crea una nueva instancia del repository
func NewFacturaRepository(db *sql.DB, logger *zap.Logger) (FacturaRepository, error) {
	repo := &facturaRepository{
		db:     db,
		stmts:  make(map[string]*sql.Stmt),
		logger: logger,
	}

	if err := repo.prepareStatements(); err != nil {
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return repo, nil
}

// prepareStatements prepara las consultas de lectura; las escrituras corren
// dentro de una transacción.
func (r *facturaRepository) prepareStatements() error {
	statements := map[string]string{
		"get_factura": `
			SELECT f.id, f.id_cliente, COALESCE(c.nombre, ''), f.fecha, f.total
			FROM facturas f
			LEFT JOIN clientes c ON c.id = f.id_cliente
			WHERE f.id = $1
		`,
		"get_detalles": `
			SELECT d.id, d.id_factura, d.id_producto, d.cantidad, d.precio_unitario,
				   d.subtotal, COALESCE(p.descripcion, '')
			FROM detalle_factura d
			LEFT JOIN productos p ON p.id = d.id_producto
			WHERE d.id_factura = $1
			ORDER BY d.id
		`,
	}

	for name, query := range statements {
		stmt, err := r.db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare %s: %w", name, err)
		}
		r.stmts[name] = stmt
	}

	return nil
}

// CreateFactura inserta la factura y sus detalles, descuenta stock y
// registra una salida por detalle, todo en una transacción.
func (r *facturaRepository) CreateFactura(ctx context.Context, factura *models.Factura) error {
	start := time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx, queryInsertFactura,
		factura.IDCliente, factura.Fecha, factura.Total,
	).Scan(&factura.ID); err != nil {
		return fmt.Errorf("failed to insert factura: %w", err)
	}

	for i := range factura.Detalles {
		d := &factura.Detalles[i]
		d.IDFactura = factura.ID

		var stockNuevo int
		err := tx.QueryRowContext(ctx, queryDescontarStock, d.Cantidad, d.IDProducto).Scan(&stockNuevo)
		if errors.Is(err, sql.ErrNoRows) {
			var disponible int
			if err := tx.QueryRowContext(ctx, queryStockActual, d.IDProducto).Scan(&disponible); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("producto %d: %w", d.IDProducto, ErrNotFound)
				}
				return fmt.Errorf("failed to read stock: %w", err)
			}
			return &StockError{IDProducto: d.IDProducto, Disponible: disponible, Solicitado: d.Cantidad}
		}
		if err != nil {
			return fmt.Errorf("failed to update stock for producto %d: %w", d.IDProducto, err)
		}

		if err := tx.QueryRowContext(ctx, queryInsertDetalle,
			d.IDFactura, d.IDProducto, d.Cantidad, d.PrecioUnitario, d.Subtotal,
		).Scan(&d.ID); err != nil {
			return fmt.Errorf("failed to insert detalle: %w", err)
		}

		mov := models.Movimiento{
			IDProducto:       d.IDProducto,
			IDFactura:        &factura.ID,
			TipoMovimiento:   models.MovimientoSalida,
			Cantidad:         d.Cantidad,
			CantidadAnterior: stockNuevo + d.Cantidad,
			CantidadNueva:    stockNuevo,
			Motivo:           fmt.Sprintf("Factura #%d", factura.ID),
		}
		if err := insertMovimiento(ctx, tx, &mov); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit factura: %w", err)
	}

	r.logger.Info("Factura registrada",
		zap.Int("id", factura.ID),
		zap.Int("id_cliente", factura.IDCliente),
		zap.Int("detalles", len(factura.Detalles)),
		zap.String("total", factura.Total.StringFixed(2)),
		zap.Duration("latency", time.Since(start)))

	return nil
}

func insertMovimiento(ctx context.Context, tx *sql.Tx, mov *models.Movimiento) error {
	err := tx.QueryRowContext(ctx, queryInsertMovimiento,
		mov.IDProducto, mov.IDFactura, mov.TipoMovimiento, mov.Cantidad,
		mov.CantidadAnterior, mov.CantidadNueva, mov.Motivo,
	).Scan(&mov.ID, &mov.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create movimiento: %w", err)
	}
	return nil
}

// GetFactura obtiene la factura con sus detalles
func (r *facturaRepository) GetFactura(ctx context.Context, id int) (*models.FacturaWithDetails, error) {
	var f models.FacturaWithDetails
	err := r.stmts["get_factura"].QueryRowContext(ctx, id).Scan(
		&f.ID, &f.IDCliente, &f.NombreCliente, &f.Fecha, &f.Total,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get factura: %w", err)
	}

	rows, err := r.stmts["get_detalles"].QueryContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get detalles: %w", err)
	}
	defer rows.Close()

	f.Detalles = []models.DetalleWithProducto{}
	for rows.Next() {
		var d models.DetalleWithProducto
		if err := rows.Scan(
			&d.ID, &d.IDFactura, &d.IDProducto, &d.Cantidad, &d.PrecioUnitario,
			&d.Subtotal, &d.DescripcionProducto,
		); err != nil {
			return nil, fmt.Errorf("failed to scan detalle: %w", err)
		}
		f.Detalles = append(f.Detalles, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate detalles: %w", err)
	}

	return &f, nil
}

// ListFacturas lista facturas aplicando los filtros presentes
func (r *facturaRepository) ListFacturas(ctx context.Context, filter models.FacturaFilter) ([]models.FacturaResumen, error) {
	query, args := buildListFacturasQuery(filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list facturas: %w", err)
	}
	defer rows.Close()

	facturas := []models.FacturaResumen{}
	for rows.Next() {
		var f models.FacturaResumen
		if err := rows.Scan(&f.ID, &f.IDCliente, &f.NombreCliente, &f.Fecha, &f.Total, &f.CantidadItems); err != nil {
			return nil, fmt.Errorf("failed to scan factura: %w", err)
		}
		facturas = append(facturas, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate facturas: %w", err)
	}

	return facturas, nil
}

func buildListFacturasQuery(filter models.FacturaFilter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if filter.IDCliente != nil {
		add("f.id_cliente = $%d", *filter.IDCliente)
	}
	if filter.FechaDesde != nil {
		add("f.fecha::date >= $%d", *filter.FechaDesde)
	}
	if filter.FechaHasta != nil {
		add("f.fecha::date <= $%d", *filter.FechaHasta)
	}

	var b strings.Builder
	b.WriteString(`
		SELECT f.id, f.id_cliente, COALESCE(c.nombre, ''), f.fecha, f.total, COUNT(d.id)
		FROM facturas f
		LEFT JOIN clientes c ON c.id = f.id_cliente
		LEFT JOIN detalle_factura d ON d.id_factura = f.id`)
	if len(where) > 0 {
		b.WriteString("\n\t\tWHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(`
		GROUP BY f.id, f.id_cliente, c.nombre, f.fecha, f.total
		ORDER BY f.fecha DESC, f.id DESC`)

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, "\n\t\tLIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&b, "\n\t\tOFFSET $%d", len(args))
	}

	return b.String(), args
}

// DeleteFactura anula la factura: repone el stock de cada detalle con un
// movimiento de entrada y borra detalles y cabecera.
func (r *facturaRepository) DeleteFactura(ctx context.Context, id int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, queryDetallesParaAnular, id)
	if err != nil {
		return fmt.Errorf("failed to read detalles: %w", err)
	}
	type linea struct{ producto, cantidad int }
	var lineas []linea
	for rows.Next() {
		var l linea
		if err := rows.Scan(&l.producto, &l.cantidad); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan detalle: %w", err)
		}
		lineas = append(lineas, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate detalles: %w", err)
	}

	for _, l := range lineas {
		var stockNuevo int
		err := tx.QueryRowContext(ctx, queryReponerStock, l.cantidad, l.producto).Scan(&stockNuevo)
		if errors.Is(err, sql.ErrNoRows) {
			// el producto ya no existe; no hay stock que reponer
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to restore stock for producto %d: %w", l.producto, err)
		}
		mov := models.Movimiento{
			IDProducto:       l.producto,
			TipoMovimiento:   models.MovimientoEntrada,
			Cantidad:         l.cantidad,
			CantidadAnterior: stockNuevo - l.cantidad,
			CantidadNueva:    stockNuevo,
			Motivo:           fmt.Sprintf("Anulación factura #%d", id),
		}
		if err := insertMovimiento(ctx, tx, &mov); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, queryDeleteDetalles, id); err != nil {
		return fmt.Errorf("failed to delete detalles: %w", err)
	}
	result, err := tx.ExecContext(ctx, queryDeleteFactura, id)
	if err != nil {
		return fmt.Errorf("failed to delete factura: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	r.logger.Info("Factura anulada", zap.Int("id", id), zap.Int("detalles", len(lineas)))
	return nil
}
