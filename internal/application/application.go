// Package application turns a validated Config into a running dataset
// service: the dataset store, the raw file store, the ingest service and the
// report renderer. The HTTP server and the CLI both start here.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/chemflux/internal/blob"
	"github.com/JonMunkholm/chemflux/internal/config"
	"github.com/JonMunkholm/chemflux/internal/core"
	"github.com/JonMunkholm/chemflux/internal/report"
	"github.com/JonMunkholm/chemflux/internal/store"
)

// App holds the wired components. Close releases the store.
type App struct {
	Config   *config.Config
	Store    store.Store
	Blobs    core.BlobStore
	Service  *core.Service
	Renderer *report.Renderer
}

// Open connects every component described by cfg. Migrations run when
// cfg.Database.AutoMigrate is set.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := store.Open(ctx, StoreOptions(cfg))
	if err != nil {
		return nil, err
	}

	app, err := wire(ctx, cfg, st)
	if err != nil {
		return nil, errors.Join(err, st.Close())
	}
	return app, nil
}

func wire(ctx context.Context, cfg *config.Config, st store.Store) (*App, error) {
	if cfg.Database.AutoMigrate {
		if err := st.Migrate(ctx); err != nil {
			return nil, err
		}
		version, err := st.MigrationVersion(ctx)
		if err != nil {
			return nil, err
		}
		slog.Info("database schema ready", "driver", cfg.Database.Driver, "version", version)
	}

	blobs, err := blob.Open(BlobOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("open raw file storage: %w", err)
	}

	svc, err := core.NewService(st, blobs, ServiceOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}

	renderer, err := report.NewRenderer(report.DefaultLayout(), cfg.Report.Title)
	if err != nil {
		return nil, fmt.Errorf("create report renderer: %w", err)
	}

	return &App{
		Config:   cfg,
		Store:    st,
		Blobs:    blobs,
		Service:  svc,
		Renderer: renderer,
	}, nil
}

// Close releases the dataset store.
func (a *App) Close() error {
	return a.Store.Close()
}

// StoreOptions maps the database section.
func StoreOptions(cfg *config.Config) store.Options {
	return store.Options{
		Driver:          cfg.Database.Driver,
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		SQLitePath:      cfg.Database.SQLitePath,
	}
}

// BlobOptions maps the storage section.
func BlobOptions(cfg *config.Config) blob.Options {
	return blob.Options{
		Backend: cfg.Storage.Backend,
		Dir:     cfg.Storage.Dir,
		S3: blob.S3Options{
			Bucket:         cfg.Storage.S3Bucket,
			Region:         cfg.Storage.S3Region,
			Endpoint:       cfg.Storage.S3Endpoint,
			Prefix:         cfg.Storage.S3Prefix,
			ForcePathStyle: cfg.Storage.S3ForcePathStyle,
		},
	}
}

// ServiceOptions maps the upload, retention and summary sections.
func ServiceOptions(cfg *config.Config) core.ServiceOptions {
	return core.ServiceOptions{
		Summary:         cfg.SummaryOptions(),
		RetentionWindow: cfg.Retention.Window,
		MaxConcurrent:   cfg.Upload.MaxConcurrent,
		MaxWait:         cfg.Upload.MaxWaitTime,
		IngestTimeout:   cfg.Upload.Timeout,
	}
}
