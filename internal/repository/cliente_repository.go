package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"facturacion-service/internal/models"
)

// ClienteRepository operaciones de lectura de clientes
type ClienteRepository interface {
	ListClientes(ctx context.Context) ([]models.Cliente, error)
	GetCliente(ctx context.Context, id int) (*models.Cliente, error)
}

type clienteRepository struct {
	db    *sql.DB
	stmts map[string]*sql.Stmt
}

func NewClienteRepository(db *sql.DB) (ClienteRepository, error) {
	repo := &clienteRepository{
		db:    db,
		stmts: make(map[string]*sql.Stmt),
	}

	statements := map[string]string{
		"list_clientes": `
			SELECT id, nombre, email, telefono, direccion, created_at
			FROM clientes
			ORDER BY nombre
		`,
		"get_cliente": `
			SELECT id, nombre, email, telefono, direccion, created_at
			FROM clientes
			WHERE id = $1
		`,
	}
	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare %s: %w", name, err)
		}
		repo.stmts[name] = stmt
	}

	return repo, nil
}

func (r *clienteRepository) ListClientes(ctx context.Context) ([]models.Cliente, error) {
	rows, err := r.stmts["list_clientes"].QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query clientes: %w", err)
	}
	defer rows.Close()

	clientes := []models.Cliente{}
	for rows.Next() {
		c, err := scanCliente(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cliente: %w", err)
		}
		clientes = append(clientes, c)
	}
	return clientes, rows.Err()
}

func (r *clienteRepository) GetCliente(ctx context.Context, id int) (*models.Cliente, error) {
	c, err := scanCliente(r.stmts["get_cliente"].QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cliente %d: %w", id, err)
	}
	return &c, nil
}

func scanCliente(row rowScanner) (models.Cliente, error) {
	var c models.Cliente
	err := row.Scan(&c.ID, &c.Nombre, &c.Email, &c.Telefono, &c.Direccion, &c.CreatedAt)
	return c, err
}
