// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package connstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wsbridge/wsbridge/bridge/interop"
)

const schema = `
CREATE TABLE IF NOT EXISTS wsbridge_connections (
	connection_id TEXT PRIMARY KEY,
	scope JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres is a Store backed by a Postgres table, for deployments where
// invocations land on separate processes and an in-memory store cannot
// correlate them.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens a connection pool for the given DSN.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connstore: open pool: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// EnsureSchema creates the connection table if it does not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close releases the connection pool.
func (s *Postgres) Close() {
	s.pool.Close()
}

// PutScope stores the scope for the connection identifier, replacing any
// previous value.
func (s *Postgres) PutScope(ctx context.Context, connectionID string, scope interop.RequestScope) error {
	payload, err := json.Marshal(scope)
	if err != nil {
		return fmt.Errorf("connstore: marshal scope: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO wsbridge_connections (connection_id, scope) VALUES ($1, $2)
		 ON CONFLICT (connection_id) DO UPDATE SET scope = EXCLUDED.scope`,
		connectionID, payload)
	return err
}

// GetScope returns the stored scope or ErrNotFound.
func (s *Postgres) GetScope(ctx context.Context, connectionID string) (interop.RequestScope, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT scope FROM wsbridge_connections WHERE connection_id = $1`,
		connectionID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return interop.RequestScope{}, ErrNotFound
	}
	if err != nil {
		return interop.RequestScope{}, err
	}
	var scope interop.RequestScope
	if err := json.Unmarshal(payload, &scope); err != nil {
		return interop.RequestScope{}, fmt.Errorf("connstore: unmarshal scope: %w", err)
	}
	return scope, nil
}

// Delete removes the scope for the connection identifier.
func (s *Postgres) Delete(ctx context.Context, connectionID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM wsbridge_connections WHERE connection_id = $1`, connectionID)
	return err
}
