package storage

import (
	"context"
	"database/sql"
)

const createClient = `-- name: CreateClient :one
INSERT INTO clients (name, address, postal_code, country, email, vat_number, siret, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`

type CreateClientParams struct {
	Name       string
	Address    string
	PostalCode string
	Country    string
	Email      string
	VatNumber  sql.NullString
	Siret      sql.NullString
	CreatedAt  string
}

func (q *Queries) CreateClient(ctx context.Context, arg CreateClientParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createClient,
		arg.Name,
		arg.Address,
		arg.PostalCode,
		arg.Country,
		arg.Email,
		arg.VatNumber,
		arg.Siret,
		arg.CreatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const updateClient = `-- name: UpdateClient :execrows
UPDATE clients
SET name = ?, address = ?, postal_code = ?, country = ?, email = ?, vat_number = ?, siret = ?
WHERE id = ?
`

type UpdateClientParams struct {
	Name       string
	Address    string
	PostalCode string
	Country    string
	Email      string
	VatNumber  sql.NullString
	Siret      sql.NullString
	ID         int64
}

func (q *Queries) UpdateClient(ctx context.Context, arg UpdateClientParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateClient,
		arg.Name,
		arg.Address,
		arg.PostalCode,
		arg.Country,
		arg.Email,
		arg.VatNumber,
		arg.Siret,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getClient = `-- name: GetClient :one
SELECT id, name, address, postal_code, country, email, vat_number, siret, created_at
FROM clients
WHERE id = ?
`

func (q *Queries) GetClient(ctx context.Context, id int64) (Client, error) {
	row := q.db.QueryRowContext(ctx, getClient, id)
	var i Client
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Address,
		&i.PostalCode,
		&i.Country,
		&i.Email,
		&i.VatNumber,
		&i.Siret,
		&i.CreatedAt,
	)
	return i, err
}

const listClients = `-- name: ListClients :many
SELECT id, name, address, postal_code, country, email, vat_number, siret, created_at
FROM clients
ORDER BY name, id
`

func (q *Queries) ListClients(ctx context.Context) ([]Client, error) {
	rows, err := q.db.QueryContext(ctx, listClients)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Client
	for rows.Next() {
		var i Client
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Address,
			&i.PostalCode,
			&i.Country,
			&i.Email,
			&i.VatNumber,
			&i.Siret,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
