package core

import (
	"context"
	"io"
	"time"
)

// Dataset is a stored upload: its display name, when it arrived, where the
// raw bytes live and the Summary derived from them. ID is assigned by the
// store and increases monotonically.
type Dataset struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	UploadedAt time.Time `json:"uploaded_at"`
	RawKey     string    `json:"-"`
	Summary    Summary   `json:"summary"`
}

// NewDataset is the input to DatasetStore.Create.
type NewDataset struct {
	Name    string
	RawKey  string
	Summary *Summary
}

// DatasetStore persists datasets. Implementations order listings by upload
// time descending, ties by ID descending.
type DatasetStore interface {
	// Create inserts a dataset and returns it with ID and UploadedAt set.
	Create(ctx context.Context, d NewDataset) (*Dataset, error)

	// ListOrderedDesc returns up to limit datasets newest first.
	// A limit of zero or less returns every dataset.
	ListOrderedDesc(ctx context.Context, limit int) ([]Dataset, error)

	// Get returns one dataset or ErrNotFound.
	Get(ctx context.Context, id int64) (*Dataset, error)

	// Delete removes the given datasets and reports how many existed.
	Delete(ctx context.Context, ids []int64) (int64, error)

	// WithTx runs fn inside a write transaction that is serialized against
	// every other WithTx call. fn's store sees its own writes.
	WithTx(ctx context.Context, fn func(tx DatasetStore) error) error
}

// BlobStore holds the raw bytes of accepted uploads.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// IngestResult is what an accepted upload produced.
type IngestResult struct {
	Dataset *Dataset
	Evicted []int64
}
