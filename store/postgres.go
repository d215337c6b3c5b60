package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool used by Postgres. Tests substitute a
// fake.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres stores each collection as one JSONB row of the collections table
// created by db.Migrate.
type Postgres struct {
	q Querier
}

func NewPostgres(q Querier) *Postgres {
	return &Postgres{q: q}
}

func (p *Postgres) Load(ctx context.Context, c Collection) ([]byte, error) {
	var body string
	err := p.q.QueryRow(ctx, `SELECT body::text FROM collections WHERE name = $1`, string(c)).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrap("load", c, err)
	}
	return []byte(body), nil
}

func (p *Postgres) Save(ctx context.Context, c Collection, data []byte) error {
	_, err := p.q.Exec(ctx, `
        INSERT INTO collections (name, body, updated_at)
        VALUES ($1, $2::jsonb, now())
        ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = now()
    `, string(c), string(data))
	return wrap("save", c, err)
}

func (p *Postgres) Remove(ctx context.Context, c Collection) error {
	_, err := p.q.Exec(ctx, `DELETE FROM collections WHERE name = $1`, string(c))
	return wrap("remove", c, err)
}
