package storage

import "context"

const countZeroDeclarations = `-- name: CountZeroDeclarations :one
SELECT COUNT(*)
FROM zero_declarations
WHERE kind = ? AND period_start = ? AND period_end = ?
`

type ZeroDeclarationKey struct {
	Kind        string
	PeriodStart string
	PeriodEnd   string
}

func (q *Queries) CountZeroDeclarations(ctx context.Context, arg ZeroDeclarationKey) (int64, error) {
	row := q.db.QueryRowContext(ctx, countZeroDeclarations, arg.Kind, arg.PeriodStart, arg.PeriodEnd)
	var n int64
	err := row.Scan(&n)
	return n, err
}

const insertZeroDeclaration = `-- name: InsertZeroDeclaration :execrows
INSERT INTO zero_declarations (kind, period_start, period_end, declared_at, comment)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (kind, period_start, period_end) DO NOTHING
`

type InsertZeroDeclarationParams struct {
	Kind        string
	PeriodStart string
	PeriodEnd   string
	DeclaredAt  string
	Comment     string
}

func (q *Queries) InsertZeroDeclaration(ctx context.Context, arg InsertZeroDeclarationParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertZeroDeclaration,
		arg.Kind,
		arg.PeriodStart,
		arg.PeriodEnd,
		arg.DeclaredAt,
		arg.Comment,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listZeroDeclarations = `-- name: ListZeroDeclarations :many
SELECT id, kind, period_start, period_end, declared_at, comment
FROM zero_declarations
WHERE kind = ? AND period_start >= ? AND period_start <= ?
ORDER BY period_start
`

type ListZeroDeclarationsParams struct {
	Kind     string
	FromDate string
	ToDate   string
}

func (q *Queries) ListZeroDeclarations(ctx context.Context, arg ListZeroDeclarationsParams) ([]ZeroDeclaration, error) {
	rows, err := q.db.QueryContext(ctx, listZeroDeclarations, arg.Kind, arg.FromDate, arg.ToDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ZeroDeclaration
	for rows.Next() {
		var i ZeroDeclaration
		if err := rows.Scan(
			&i.ID,
			&i.Kind,
			&i.PeriodStart,
			&i.PeriodEnd,
			&i.DeclaredAt,
			&i.Comment,
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
