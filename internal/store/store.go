// Package store persists datasets in PostgreSQL or SQLite. Both backends
// list history newest first with ties broken by descending id, and
// serialize WithTx so that concurrent ingests apply retention one at a time.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/chemflux/internal/core"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store is a DatasetStore that owns its connection and schema.
type Store interface {
	core.DatasetStore
	Migrate(ctx context.Context) error
	MigrationVersion(ctx context.Context) (int64, error)
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver string

	// PostgreSQL
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// SQLite
	SQLitePath string
}

// Open connects to the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverPostgres:
		return OpenPostgres(ctx, opts)
	case DriverSQLite, "":
		return OpenSQLite(ctx, opts.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown database driver %q", opts.Driver)
	}
}

func encodeSummary(s *core.Summary) (string, error) {
	if s == nil {
		return "", errors.New("encode summary: nil summary")
	}
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}
	return string(b), nil
}

func decodeSummary(id int64, data []byte) (core.Summary, error) {
	var s core.Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return core.Summary{}, fmt.Errorf("decode summary of dataset %d: %w", id, err)
	}
	return s, nil
}

// historyOrder is the ORDER BY shared by both backends.
const historyOrder = "ORDER BY created_at DESC, id DESC"
