package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JonMunkholm/chemflux/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// historyLockKey is the advisory lock that serializes ingest transactions
// across every process sharing the database.
const historyLockKey int64 = 0x6368656d666c7578 // "chemflux"

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Postgres stores datasets in PostgreSQL through a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
	q    DBTX
	inTx bool
}

var _ Store = (*Postgres)(nil)

// OpenPostgres parses opts.URL, applies the pool limits and pings.
func OpenPostgres(ctx context.Context, opts Options) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(opts.URL); err == nil {
		slog.Info("connected to database", "driver", DriverPostgres, "name", strings.TrimPrefix(u.Path, "/"))
	}
	return NewPostgres(pool), nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, q: pool}
}

// Pool returns the underlying pool.
func (p *Postgres) Pool() *pgxpool.Pool { return p.pool }

// Migrate applies the embedded PostgreSQL migrations.
func (p *Postgres) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(p.pool)
	defer db.Close()
	return migrateUp(ctx, db, "postgres", "migrations/postgres")
}

// MigrationVersion reports the applied schema version.
func (p *Postgres) MigrationVersion(ctx context.Context) (int64, error) {
	db := stdlib.OpenDBFromPool(p.pool)
	defer db.Close()
	return migrationVersion(ctx, db, "postgres")
}

// Close closes the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) Create(ctx context.Context, d core.NewDataset) (*core.Dataset, error) {
	summary, err := encodeSummary(d.Summary)
	if err != nil {
		return nil, err
	}

	out := &core.Dataset{Name: d.Name, RawKey: d.RawKey, Summary: *d.Summary}
	err = p.q.QueryRow(ctx,
		`INSERT INTO datasets (name, raw_key, summary) VALUES ($1, $2, $3) RETURNING id, created_at`,
		d.Name, d.RawKey, summary,
	).Scan(&out.ID, &out.UploadedAt)
	if err != nil {
		return nil, fmt.Errorf("insert dataset: %w", err)
	}
	out.UploadedAt = out.UploadedAt.UTC()
	return out, nil
}

func (p *Postgres) ListOrderedDesc(ctx context.Context, limit int) ([]core.Dataset, error) {
	query := `SELECT id, name, raw_key, summary, created_at FROM datasets ` + historyOrder
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := p.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	out := []core.Dataset{}
	for rows.Next() {
		d, err := scanPostgresDataset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	return out, nil
}

func (p *Postgres) Get(ctx context.Context, id int64) (*core.Dataset, error) {
	row := p.q.QueryRow(ctx,
		`SELECT id, name, raw_key, summary, created_at FROM datasets WHERE id = $1`, id)
	d, err := scanPostgresDataset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("dataset %d: %w", id, core.ErrNotFound)
	}
	return d, err
}

func (p *Postgres) Delete(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := p.q.Exec(ctx, `DELETE FROM datasets WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete datasets: %w", err)
	}
	return tag.RowsAffected(), nil
}

// WithTx runs fn in a transaction holding a transaction-scoped advisory
// lock, so concurrent callers in any process run one after another.
func (p *Postgres) WithTx(ctx context.Context, fn func(tx core.DatasetStore) error) error {
	if p.inTx {
		return fn(p)
	}
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, historyLockKey); err != nil {
			return fmt.Errorf("acquire history lock: %w", err)
		}
		return fn(&Postgres{pool: p.pool, q: tx, inTx: true})
	})
}

func scanPostgresDataset(r pgx.Row) (*core.Dataset, error) {
	var (
		d       core.Dataset
		summary []byte
	)
	if err := r.Scan(&d.ID, &d.Name, &d.RawKey, &summary, &d.UploadedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan dataset: %w", err)
	}
	s, err := decodeSummary(d.ID, summary)
	if err != nil {
		return nil, err
	}
	d.Summary = s
	d.UploadedAt = d.UploadedAt.UTC()
	return &d, nil
}
