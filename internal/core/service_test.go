package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

// memStore is an in-memory DatasetStore. WithTx works on a copy and
// publishes it only when fn succeeds.
type memStore struct {
	txMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	rows    []Dataset
	now     func() time.Time
	failOn  string
	creates int
}

func newMemStore() *memStore {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	return &memStore{
		now: func() time.Time {
			n++
			return t0.Add(time.Duration(n) * time.Minute)
		},
	}
}

func (m *memStore) Create(_ context.Context, d NewDataset) (*Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "create" {
		return nil, errors.New("insert failed")
	}
	m.nextID++
	m.creates++
	rec := Dataset{ID: m.nextID, Name: d.Name, RawKey: d.RawKey, UploadedAt: m.now(), Summary: *d.Summary}
	m.rows = append(m.rows, rec)
	return &rec, nil
}

func (m *memStore) ListOrderedDesc(_ context.Context, limit int) ([]Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.rows)
	slices.SortFunc(out, func(a, b Dataset) int {
		if c := b.UploadedAt.Compare(a.UploadedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) Get(_ context.Context, id int64) (*Dataset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.rows {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) Delete(_ context.Context, ids []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "delete" {
		return 0, errors.New("delete failed")
	}
	before := len(m.rows)
	m.rows = slices.DeleteFunc(m.rows, func(d Dataset) bool { return slices.Contains(ids, d.ID) })
	return int64(before - len(m.rows)), nil
}

func (m *memStore) WithTx(ctx context.Context, fn func(tx DatasetStore) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := slices.Clone(m.rows)
	nextID := m.nextID
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.rows = snapshot
		m.nextID = nextID
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) ids() []int64 {
	list, _ := m.ListOrderedDesc(context.Background(), 0)
	return datasetIDs(list)
}

// memBlobs is an in-memory BlobStore.
type memBlobs struct {
	mu      sync.Mutex
	data    map[string][]byte
	failPut bool
	failDel bool
}

func newMemBlobs() *memBlobs { return &memBlobs{data: make(map[string][]byte)} }

func (b *memBlobs) Put(_ context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failPut {
		return &fs.PathError{Op: "open", Path: "/data/" + key, Err: fs.ErrPermission}
	}
	b.data[key] = bytes.Clone(data)
	return nil
}

func (b *memBlobs) Open(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(d)), nil
}

func (b *memBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failDel {
		return errors.New("permission denied")
	}
	delete(b.data, key)
	return nil
}

func (b *memBlobs) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

func newTestService(t *testing.T, store DatasetStore, blobs BlobStore) *Service {
	t.Helper()
	svc, err := NewService(store, blobs, ServiceOptions{})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

const sampleCSV = "Type,Pressure\nPump,10\nPump,20\nValve,5\n"

func TestServiceIngest(t *testing.T) {
	store, blobs := newMemStore(), newMemBlobs()
	svc := newTestService(t, store, blobs)

	res, err := svc.Ingest(context.Background(), "plant.csv", []byte(sampleCSV))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.Dataset.ID != 1 || res.Dataset.Name != "plant.csv" {
		t.Errorf("dataset = %+v", res.Dataset)
	}
	if res.Dataset.Summary.TotalCount != 3 {
		t.Errorf("TotalCount = %d, want 3", res.Dataset.Summary.TotalCount)
	}
	if len(res.Evicted) != 0 {
		t.Errorf("Evicted = %v, want none", res.Evicted)
	}
	if !strings.HasPrefix(res.Dataset.RawKey, "uploads/") || !strings.HasSuffix(res.Dataset.RawKey, "_plant.csv") {
		t.Errorf("RawKey = %q", res.Dataset.RawKey)
	}

	_, rc, err := svc.OpenRaw(context.Background(), res.Dataset.ID)
	if err != nil {
		t.Fatalf("OpenRaw() error = %v", err)
	}
	defer rc.Close()
	raw, _ := io.ReadAll(rc)
	if string(raw) != sampleCSV {
		t.Errorf("raw bytes = %q", raw)
	}
}

func TestServiceIngestDefaultName(t *testing.T) {
	svc := newTestService(t, newMemStore(), newMemBlobs())
	svc.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }

	res, err := svc.Ingest(context.Background(), "  ", []byte(sampleCSV))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if want := "dataset_2024-05-06T07:08:09Z"; res.Dataset.Name != want {
		t.Errorf("Name = %q, want %q", res.Dataset.Name, want)
	}
}

func TestServiceIngestRetention(t *testing.T) {
	store, blobs := newMemStore(), newMemBlobs()
	svc := newTestService(t, store, blobs)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		res, err := svc.Ingest(ctx, fmt.Sprintf("f%d.csv", i), []byte(sampleCSV))
		if err != nil {
			t.Fatalf("Ingest(%d) error = %v", i, err)
		}
		if len(res.Evicted) != 0 {
			t.Fatalf("Ingest(%d) evicted %v", i, res.Evicted)
		}
	}

	res, err := svc.Ingest(ctx, "f6.csv", []byte(sampleCSV))
	if err != nil {
		t.Fatalf("Ingest(6) error = %v", err)
	}
	if !reflect.DeepEqual(res.Evicted, []int64{1}) {
		t.Errorf("Evicted = %v, want [1]", res.Evicted)
	}
	if got := store.ids(); !reflect.DeepEqual(got, []int64{6, 5, 4, 3, 2}) {
		t.Errorf("history = %v, want [6 5 4 3 2]", got)
	}
	if blobs.len() != 5 {
		t.Errorf("raw files = %d, want 5", blobs.len())
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 5 || list[0].ID != 6 {
		t.Errorf("List() = %d records, first %d", len(list), list[0].ID)
	}

	if _, err := svc.Get(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(evicted) error = %v, want ErrNotFound", err)
	}
}

func TestServiceIngestFailuresPersistNothing(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		setup   func(*memStore, *memBlobs)
		wantErr error
	}{
		{name: "malformed", data: "a,b\n\"x,1\n", wantErr: ErrMalformedInput},
		{name: "no columns", data: "", wantErr: ErrEmptyTable},
		{name: "blob put fails", data: sampleCSV, setup: func(_ *memStore, b *memBlobs) { b.failPut = true }},
		{name: "create fails", data: sampleCSV, setup: func(s *memStore, _ *memBlobs) { s.failOn = "create" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, blobs := newMemStore(), newMemBlobs()
			if tt.setup != nil {
				tt.setup(store, blobs)
			}
			svc := newTestService(t, store, blobs)

			_, err := svc.Ingest(context.Background(), "x.csv", []byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if n := len(store.ids()); n != 0 {
				t.Errorf("stored %d records, want 0", n)
			}
			if blobs.len() != 0 {
				t.Errorf("left %d raw files, want 0", blobs.len())
			}
		})
	}
}

func TestServiceIngestStorageErrorIgnoresUploadName(t *testing.T) {
	blobs := newMemBlobs()
	blobs.failPut = true
	svc := newTestService(t, newMemStore(), blobs)

	_, err := svc.Ingest(context.Background(), "timeout.csv", []byte(sampleCSV))
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StorageError", err)
	}
	if !strings.HasSuffix(se.Key, "_timeout.csv") {
		t.Errorf("key = %q, want upload name suffix", se.Key)
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Errorf("error = %v, want to wrap fs.ErrPermission", err)
	}
	if code := MapError(err).Code; code != "ERR000" {
		t.Errorf("MapError code = %q, want ERR000", code)
	}
}

func TestServiceEvictionRollsBackCreate(t *testing.T) {
	store, blobs := newMemStore(), newMemBlobs()
	svc := newTestService(t, store, blobs)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := svc.Ingest(ctx, "f.csv", []byte(sampleCSV)); err != nil {
			t.Fatal(err)
		}
	}

	store.failOn = "delete"
	if _, err := svc.Ingest(ctx, "f6.csv", []byte(sampleCSV)); err == nil {
		t.Fatal("expected error when eviction fails")
	}
	if got := store.ids(); !reflect.DeepEqual(got, []int64{5, 4, 3, 2, 1}) {
		t.Errorf("history = %v, want unchanged [5 4 3 2 1]", got)
	}
	if blobs.len() != 5 {
		t.Errorf("raw files = %d, want 5", blobs.len())
	}
}

func TestServiceBlobDeleteFailureDoesNotFailIngest(t *testing.T) {
	store, blobs := newMemStore(), newMemBlobs()
	svc := newTestService(t, store, blobs)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := svc.Ingest(ctx, "f.csv", []byte(sampleCSV)); err != nil {
			t.Fatal(err)
		}
	}

	blobs.failDel = true
	res, err := svc.Ingest(ctx, "f6.csv", []byte(sampleCSV))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if !reflect.DeepEqual(res.Evicted, []int64{1}) {
		t.Errorf("Evicted = %v, want [1]", res.Evicted)
	}
}

func TestServiceConcurrentIngestKeepsWindow(t *testing.T) {
	store, blobs := newMemStore(), newMemBlobs()
	svc, err := NewService(store, blobs, ServiceOptions{RetentionWindow: 3, MaxConcurrent: 4, MaxWait: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Ingest(context.Background(), fmt.Sprintf("f%d.csv", i), []byte(sampleCSV)); err != nil {
				t.Errorf("Ingest(%d) error = %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if got := store.ids(); !reflect.DeepEqual(got, []int64{20, 19, 18}) {
		t.Errorf("history = %v, want [20 19 18]", got)
	}
	if blobs.len() != 3 {
		t.Errorf("raw files = %d, want 3", blobs.len())
	}
}

func TestServiceEnforceRetention(t *testing.T) {
	store, blobs := newMemStore(), newMemBlobs()
	ctx := context.Background()

	wide, err := NewService(store, blobs, ServiceOptions{RetentionWindow: 10})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 6; i++ {
		if _, err := wide.Ingest(ctx, "f.csv", []byte(sampleCSV)); err != nil {
			t.Fatal(err)
		}
	}

	narrow := newTestService(t, store, blobs)
	evicted, err := narrow.EnforceRetention(ctx)
	if err != nil {
		t.Fatalf("EnforceRetention() error = %v", err)
	}
	if !reflect.DeepEqual(evicted, []int64{1}) {
		t.Errorf("evicted = %v, want [1]", evicted)
	}

	evicted, err = narrow.EnforceRetention(ctx)
	if err != nil || len(evicted) != 0 {
		t.Errorf("second EnforceRetention() = %v, %v, want no-op", evicted, err)
	}
}

func TestServiceStartRetentionSweeperStops(t *testing.T) {
	svc := newTestService(t, newMemStore(), newMemBlobs())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		svc.StartRetentionSweeper(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestNewServiceValidation(t *testing.T) {
	if _, err := NewService(nil, newMemBlobs(), ServiceOptions{}); err == nil {
		t.Error("nil store should be rejected")
	}
	if _, err := NewService(newMemStore(), nil, ServiceOptions{}); err == nil {
		t.Error("nil blob store should be rejected")
	}
	if _, err := NewService(newMemStore(), newMemBlobs(), ServiceOptions{RetentionWindow: -1}); err == nil {
		t.Error("negative window should be rejected")
	}
}

func TestBlobKey(t *testing.T) {
	tests := []struct {
		name       string
		wantSuffix string
	}{
		{"data.csv", "_data.csv"},
		{"../../etc/passwd", "_passwd"},
		{`C:\Users\me\plant.csv`, "_plant.csv"},
		{"", "_upload.csv"},
		{"..", "_upload.csv"},
		{"tab\there.csv", "_tab_here.csv"},
	}
	for _, tt := range tests {
		got := BlobKey(tt.name)
		if !strings.HasPrefix(got, "uploads/") || !strings.HasSuffix(got, tt.wantSuffix) {
			t.Errorf("BlobKey(%q) = %q, want uploads/<uuid>%s", tt.name, got, tt.wantSuffix)
		}
		if strings.Count(got, "/") != 1 {
			t.Errorf("BlobKey(%q) = %q has nested path", tt.name, got)
		}
	}
	if BlobKey("a.csv") == BlobKey("a.csv") {
		t.Error("BlobKey should be unique per call")
	}
}
