package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultIngestTimeout bounds one ingest from parse to commit.
const DefaultIngestTimeout = 2 * time.Minute

// ServiceOptions configures a Service. Zero values take defaults.
type ServiceOptions struct {
	Summary         SummaryOptions
	RetentionWindow int
	MaxConcurrent   int
	MaxWait         time.Duration
	IngestTimeout   time.Duration
}

// Service runs the ingest pipeline: parse, summarize, store, then apply
// retention in the same transaction. It also serves reads of what is kept.
type Service struct {
	store   DatasetStore
	blobs   BlobStore
	builder *SummaryBuilder
	policy  *RetentionPolicy
	limiter *IngestLimiter
	timeout time.Duration
	now     func() time.Time
}

// NewService wires a Service over a dataset store and a raw file store.
func NewService(store DatasetStore, blobs BlobStore, opts ServiceOptions) (*Service, error) {
	if store == nil {
		return nil, errors.New("dataset store is required")
	}
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if opts.RetentionWindow == 0 {
		opts.RetentionWindow = DefaultRetentionWindow
	}
	policy, err := NewRetentionPolicy(opts.RetentionWindow)
	if err != nil {
		return nil, err
	}
	if opts.IngestTimeout <= 0 {
		opts.IngestTimeout = DefaultIngestTimeout
	}

	return &Service{
		store:   store,
		blobs:   blobs,
		builder: NewSummaryBuilder(opts.Summary),
		policy:  policy,
		limiter: NewIngestLimiter(opts.MaxConcurrent, opts.MaxWait),
		timeout: opts.IngestTimeout,
		now:     time.Now,
	}, nil
}

// Limiter exposes the ingest limiter for status reporting and shutdown.
func (s *Service) Limiter() *IngestLimiter { return s.limiter }

// Window returns the retention window K.
func (s *Service) Window() int { return s.policy.Window() }

// Ingest accepts one upload. On success the new dataset is committed and
// datasets outside the retention window are gone. On failure nothing is
// persisted. name may be empty, in which case a timestamped name is used.
func (s *Service) Ingest(ctx context.Context, name string, data []byte) (*IngestResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()

	table, err := ParseTable(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	summary, err := s.builder.Build(table)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = "dataset_" + s.now().UTC().Format(time.RFC3339)
	}

	key := BlobKey(name)
	if err := s.blobs.Put(ctx, key, data); err != nil {
		return nil, &StorageError{Op: "store", Key: key, Err: err}
	}

	var (
		created *Dataset
		evicted []Dataset
	)
	err = s.store.WithTx(ctx, func(tx DatasetStore) error {
		var err error
		created, err = tx.Create(ctx, NewDataset{Name: name, RawKey: key, Summary: summary})
		if err != nil {
			return fmt.Errorf("create dataset: %w", err)
		}
		evicted, err = s.applyRetention(ctx, tx)
		return err
	})
	if err != nil {
		if derr := s.blobs.Delete(context.WithoutCancel(ctx), key); derr != nil {
			slog.Warn("remove orphaned raw file", "key", key, "error", derr)
		}
		return nil, err
	}

	s.deleteRaw(ctx, evicted)

	result := &IngestResult{Dataset: created, Evicted: datasetIDs(evicted)}
	slog.Info("dataset ingested",
		"dataset_id", created.ID,
		"name", created.Name,
		"rows", summary.TotalCount,
		"columns", len(summary.Columns),
		"evicted", len(result.Evicted),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// EnforceRetention applies the policy to the current history without
// creating anything and returns the evicted identities.
func (s *Service) EnforceRetention(ctx context.Context) ([]int64, error) {
	var evicted []Dataset
	err := s.store.WithTx(ctx, func(tx DatasetStore) error {
		var err error
		evicted, err = s.applyRetention(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.deleteRaw(ctx, evicted)
	return datasetIDs(evicted), nil
}

// applyRetention must run inside WithTx after any new record is visible.
func (s *Service) applyRetention(ctx context.Context, tx DatasetStore) ([]Dataset, error) {
	history, err := tx.ListOrderedDesc(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	entries := make([]HistoryEntry, len(history))
	byID := make(map[int64]Dataset, len(history))
	for i, d := range history {
		entries[i] = HistoryEntry{ID: d.ID, CreatedAt: d.UploadedAt}
		byID[d.ID] = d
	}

	decision := s.policy.Decide(OrderHistory(entries))
	if len(decision.Evict) == 0 {
		return nil, nil
	}
	if _, err := tx.Delete(ctx, decision.Evict); err != nil {
		return nil, fmt.Errorf("evict datasets: %w", err)
	}

	evicted := make([]Dataset, 0, len(decision.Evict))
	for _, id := range decision.Evict {
		evicted = append(evicted, byID[id])
	}
	return evicted, nil
}

// deleteRaw removes the raw files of evicted datasets. Failures are logged
// and never fail the caller.
func (s *Service) deleteRaw(ctx context.Context, evicted []Dataset) {
	ctx = context.WithoutCancel(ctx)
	for _, d := range evicted {
		if d.RawKey == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, d.RawKey); err != nil {
			slog.Warn("delete evicted raw file",
				"dataset_id", d.ID,
				"key", d.RawKey,
				"error", err,
			)
			continue
		}
		slog.Debug("evicted dataset", "dataset_id", d.ID, "key", d.RawKey)
	}
}

// List returns the retained datasets newest first.
func (s *Service) List(ctx context.Context) ([]Dataset, error) {
	return s.store.ListOrderedDesc(ctx, s.policy.Window())
}

// Get returns one dataset or ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*Dataset, error) {
	return s.store.Get(ctx, id)
}

// OpenRaw returns a dataset together with its raw upload bytes. The caller
// closes the reader.
func (s *Service) OpenRaw(ctx context.Context, id int64) (*Dataset, io.ReadCloser, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if d.RawKey == "" {
		return nil, nil, ErrNotFound
	}
	rc, err := s.blobs.Open(ctx, d.RawKey)
	if err != nil {
		return nil, nil, &StorageError{Op: "open", Key: d.RawKey, Err: err}
	}
	return d, rc, nil
}

// BlobKey returns a unique storage key for an upload named name.
func BlobKey(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == 0:
			return -1
		case r < 0x20 || r == 0x7f:
			return '_'
		}
		return r
	}, base)
	if base == "" || base == "." || base == ".." {
		base = "upload.csv"
	}
	return "uploads/" + uuid.NewString() + "_" + base
}

func datasetIDs(ds []Dataset) []int64 {
	ids := make([]int64, len(ds))
	for i, d := range ds {
		ids[i] = d.ID
	}
	return ids
}
