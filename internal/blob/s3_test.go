package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/JonMunkholm/chemflux/internal/core"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is a path-style S3 endpoint that understands PUT, GET and DELETE
// of single objects.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		f.objects[key] = body
		f.types[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
				`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Write(body)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeS3Store(t *testing.T, prefix string) (*S3, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: make(map[string][]byte), types: make(map[string]string)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewS3(S3Options{
		Bucket:         "chemflux",
		Region:         "us-east-1",
		Endpoint:       srv.URL,
		Prefix:         prefix,
		ForcePathStyle: true,
		Credentials:    credentials.NewStaticCredentials("test", "test", ""),
	})
	require.NoError(t, err)
	return s, fake
}

func TestS3_PutOpenDelete(t *testing.T) {
	s, fake := newFakeS3Store(t, "raw/")
	ctx := context.Background()
	key := "uploads/0b3c_plant.csv"

	require.NoError(t, s.Put(ctx, key, []byte("a,b\n1,2\n")))

	fake.mu.Lock()
	stored, ok := fake.objects["chemflux/raw/uploads/0b3c_plant.csv"]
	contentType := fake.types["chemflux/raw/uploads/0b3c_plant.csv"]
	fake.mu.Unlock()
	require.True(t, ok, "object stored under bucket and prefix")
	assert.Equal(t, "a,b\n1,2\n", string(stored))
	assert.Equal(t, "text/csv", contentType)

	rc, err := s.Open(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Open(ctx, key)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestS3_NoPrefix(t *testing.T) {
	s, fake := newFakeS3Store(t, "")
	require.NoError(t, s.Put(context.Background(), "k.csv", []byte("x")))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	_, ok := fake.objects["chemflux/k.csv"]
	assert.True(t, ok)
}

func TestS3_RejectsEscapingKeys(t *testing.T) {
	s, _ := newFakeS3Store(t, "")
	assert.Error(t, s.Put(context.Background(), "../x", []byte("x")))
}
