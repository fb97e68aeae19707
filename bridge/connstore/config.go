// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package connstore

import (
	"context"

	"github.com/caarlos0/env/v11"
)

// Config selects the store backing a deployment, parsed from the
// environment.
type Config struct {
	// PostgresDSN selects the Postgres store when non-empty; otherwise the
	// process falls back to the in-memory store, which only correlates
	// invocations landing on the same process.
	PostgresDSN string `env:"WSBRIDGE_POSTGRES_DSN"`
}

// LoadConfig parses the store configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	err := env.Parse(&cfg)
	return cfg, err
}

// Open returns the store the configuration selects. Postgres stores get
// their schema created on open.
func (cfg Config) Open(ctx context.Context) (Store, error) {
	if cfg.PostgresDSN == "" {
		return NewInMemory(), nil
	}
	store, err := NewPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
