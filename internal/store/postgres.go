package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres implements Store on a PostgreSQL database via pgx.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS service_transitions(
			id BIGSERIAL PRIMARY KEY,
			service TEXT NOT NULL,
			from_status TEXT NOT NULL,
			to_status TEXT NOT NULL,
			at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_service_transitions_service ON service_transitions(service);`,
	}
	for _, q := range stmts {
		if _, err := p.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) RecordTransition(ctx context.Context, t Transition) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO service_transitions(service, from_status, to_status, at) VALUES($1, $2, $3, $4)`,
		t.Service, t.From, t.To, t.At.UTC())
	return err
}

func (p *Postgres) Recent(ctx context.Context, service string, limit int) ([]Transition, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT service, from_status, to_status, at FROM service_transitions
		 WHERE service = $1 ORDER BY id DESC LIMIT $2`, service, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Transition
	for rows.Next() {
		var t Transition
		if err := rows.Scan(&t.Service, &t.From, &t.To, &t.At); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error { return p.db.Close() }
