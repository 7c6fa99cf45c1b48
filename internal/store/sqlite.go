package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/chemflux/internal/core"
	_ "modernc.org/sqlite"
)

// sqlQuerier is satisfied by *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLite stores datasets in a single SQLite file (or ":memory:").
type SQLite struct {
	db   *sql.DB
	q    sqlQuerier
	txMu *sync.Mutex
	inTx bool

	// Now stamps new datasets. Defaults to time.Now.
	Now func() time.Time
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens path and pings it. The pool is limited to one
// connection, which also keeps a ":memory:" database alive.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		path = ":memory:"
	}
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	return NewSQLite(db), nil
}

// NewSQLite wraps an open database handle.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, q: db, txMu: &sync.Mutex{}, Now: time.Now}
}

// Migrate applies the embedded SQLite migrations.
func (s *SQLite) Migrate(ctx context.Context) error {
	return migrateUp(ctx, s.db, "sqlite3", "migrations/sqlite")
}

// MigrationVersion reports the applied schema version.
func (s *SQLite) MigrationVersion(ctx context.Context) (int64, error) {
	return migrationVersion(ctx, s.db, "sqlite3")
}

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Create(ctx context.Context, d core.NewDataset) (*core.Dataset, error) {
	summary, err := encodeSummary(d.Summary)
	if err != nil {
		return nil, err
	}
	created := s.Now().UTC()

	res, err := s.q.ExecContext(ctx,
		`INSERT INTO datasets (name, raw_key, summary, created_at) VALUES (?, ?, ?, ?)`,
		d.Name, d.RawKey, summary, created.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("insert dataset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert dataset: %w", err)
	}

	return &core.Dataset{
		ID:         id,
		Name:       d.Name,
		UploadedAt: time.Unix(0, created.UnixNano()).UTC(),
		RawKey:     d.RawKey,
		Summary:    *d.Summary,
	}, nil
}

func (s *SQLite) ListOrderedDesc(ctx context.Context, limit int) ([]core.Dataset, error) {
	query := `SELECT id, name, raw_key, summary, created_at FROM datasets ` + historyOrder
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	out := []core.Dataset{}
	for rows.Next() {
		d, err := scanSQLiteDataset(rows)
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

func (s *SQLite) Get(ctx context.Context, id int64) (*core.Dataset, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, name, raw_key, summary, created_at FROM datasets WHERE id = ?`, id)
	d, err := scanSQLiteDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset %d: %w", id, core.ErrNotFound)
	}
	return d, err
}

func (s *SQLite) Delete(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	res, err := s.q.ExecContext(ctx, `DELETE FROM datasets WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete datasets: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete datasets: %w", err)
	}
	return n, nil
}

// WithTx runs fn in a transaction. Calls are serialized by a mutex shared
// with every store derived from the same handle.
func (s *SQLite) WithTx(ctx context.Context, fn func(tx core.DatasetStore) error) error {
	if s.inTx {
		return fn(s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	txStore := &SQLite{db: s.db, q: tx, txMu: s.txMu, inTx: true, Now: s.Now}

	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteDataset(r rowScanner) (*core.Dataset, error) {
	var (
		d       core.Dataset
		summary []byte
		created int64
	)
	if err := r.Scan(&d.ID, &d.Name, &d.RawKey, &summary, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan dataset: %w", err)
	}
	s, err := decodeSummary(d.ID, summary)
	if err != nil {
		return nil, err
	}
	d.Summary = s
	d.UploadedAt = time.Unix(0, created).UTC()
	return &d, nil
}
