// Package postgres implements db.Store on PostgreSQL using pgx.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/poroburu/ic-cosmos/db"
	"github.com/poroburu/ic-cosmos/provider"
)

const schema = `
CREATE TABLE IF NOT EXISTS providers (
	position   INTEGER PRIMARY KEY,
	id         TEXT    NOT NULL UNIQUE,
	url        TEXT    NOT NULL,
	headers    JSONB,
	auth       JSONB,
	owner      TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS grants (
	principal  TEXT NOT NULL,
	capability TEXT NOT NULL,
	PRIMARY KEY (principal, capability)
);
`

const (
	selectProviders = `SELECT id, url, headers, auth, owner FROM providers ORDER BY position`
	selectGrants    = `SELECT principal, capability FROM grants ORDER BY principal, capability`
	insertProvider  = `INSERT INTO providers (position, id, url, headers, auth, owner) VALUES ($1, $2, $3, $4, $5, $6)`
	insertGrant     = `INSERT INTO grants (principal, capability) VALUES ($1, $2)`
)

// The store struct satisfies the db.Store interface defined in the db package.
type store struct {
	pool *pgxpool.Pool
}

var _ db.Store = &store{}

/* ---------- Postgres Connection Funcs ---------- */

/*
NewStore
- Creates a pool of connections to a PostgreSQL database using the provided connection string.
- Creates the providers and grants tables when missing.
- Returns the store along with a cleanup function closing the pool.
*/
func NewStore(ctx context.Context, connectionString string) (*store, func() error, error) {
	config, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool.NewWithConfig: %v", err)
	}

	cleanup := func() error {
		pool.Close()
		return nil
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &store{pool: pool}, cleanup, nil
}

// Ping ensures the database connection is healthy
func (s *store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

/* ---------- Registry State Funcs ---------- */

func (s *store) LoadRegistryState(ctx context.Context) (provider.State, error) {
	var state provider.State

	rows, err := s.pool.Query(ctx, selectProviders)
	if err != nil {
		return state, fmt.Errorf("failed to select providers: %w", err)
	}
	state.Providers, err = pgx.CollectRows(rows, scanProvider)
	if err != nil {
		return state, fmt.Errorf("failed to read providers: %w", err)
	}

	rows, err = s.pool.Query(ctx, selectGrants)
	if err != nil {
		return state, fmt.Errorf("failed to select grants: %w", err)
	}
	state.Grants, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (provider.Grant, error) {
		var g provider.Grant
		err := row.Scan(&g.Principal, &g.Capability)
		return g, err
	})
	if err != nil {
		return state, fmt.Errorf("failed to read grants: %w", err)
	}

	return state, nil
}

// SaveRegistryState replaces both tables within a single transaction.
func (s *store) SaveRegistryState(ctx context.Context, state provider.State) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM providers`); err != nil {
			return fmt.Errorf("failed to clear providers: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM grants`); err != nil {
			return fmt.Errorf("failed to clear grants: %w", err)
		}

		batch := &pgx.Batch{}
		for i, p := range state.Providers {
			headers, err := marshalNullable(p.Headers, len(p.Headers) == 0)
			if err != nil {
				return err
			}
			auth, err := marshalNullable(p.Auth, p.Auth == nil)
			if err != nil {
				return err
			}
			batch.Queue(insertProvider, i, string(p.ID), p.URL, headers, auth, string(p.Owner))
		}
		for _, g := range state.Grants {
			batch.Queue(insertGrant, string(g.Principal), string(g.Capability))
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert registry state: %w", err)
		}
		return nil
	})
}

func scanProvider(row pgx.CollectableRow) (provider.Provider, error) {
	var (
		p             provider.Provider
		headers, auth []byte
	)
	if err := row.Scan(&p.ID, &p.URL, &headers, &auth, &p.Owner); err != nil {
		return p, err
	}
	if headers != nil {
		if err := json.Unmarshal(headers, &p.Headers); err != nil {
			return p, fmt.Errorf("provider %s headers: %w", p.ID, err)
		}
	}
	if auth != nil {
		p.Auth = &provider.Auth{}
		if err := json.Unmarshal(auth, p.Auth); err != nil {
			return p, fmt.Errorf("provider %s auth: %w", p.ID, err)
		}
	}
	p.Trust = provider.TrustUserRegistered
	return p, nil
}

func marshalNullable(v any, isNull bool) ([]byte, error) {
	if isNull {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode column: %w", err)
	}
	return b, nil
}
