// internal/storage/archive/s3_test.go
package archive

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Storage_ImplementsStorage(t *testing.T) {
	var _ Storage = (*S3Storage)(nil)
}

func TestS3Config_Key(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		want   string
	}{
		{"", "file.txt", "file.txt"},
		{"archive", "file.txt", "archive/file.txt"},
		{"archive/", "file.txt", "archive/file.txt"},
		{"archive", "/watchlists/a.json", "archive/watchlists/a.json"},
	}

	for _, tt := range tests {
		s := &S3Storage{prefix: strings.TrimSuffix(tt.prefix, "/")}
		got := s.key(tt.path)
		if got != tt.want {
			t.Errorf("key(%q) with prefix %q = %q, want %q", tt.path, tt.prefix, got, tt.want)
		}
	}
}

func TestNewS3_RequiresBucket(t *testing.T) {
	_, err := NewS3(S3Config{})
	assert.Error(t, err)
}

// fakeS3 serves the handful of path-style object calls S3Storage makes.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
}

type listResult struct {
	XMLName     xml.Name `xml:"ListBucketResult"`
	Name        string   `xml:"Name"`
	IsTruncated bool     `xml:"IsTruncated"`
	Contents    []struct {
		Key string `xml:"Key"`
	} `xml:"Contents"`
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rest := strings.TrimPrefix(r.URL.Path, "/"+f.bucket)
	key := strings.TrimPrefix(rest, "/")

	switch {
	case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		prefix := r.URL.Query().Get("prefix")
		res := listResult{Name: f.bucket}
		var keys []string
		for k := range f.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			res.Contents = append(res.Contents, struct {
				Key string `xml:"Key"`
			}{Key: k})
		}
		w.Header().Set("Content-Type", "application/xml")
		xml.NewEncoder(w).Encode(res)
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet, r.Method == http.MethodHead:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				io.WriteString(w, `<Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			}
			return
		}
		if r.Method == http.MethodGet {
			w.Write(data)
		}
	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeS3Storage(t *testing.T) (*S3Storage, *fakeS3) {
	t.Helper()
	fake := &fakeS3{bucket: "dash", objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewS3(S3Config{
		Bucket:     "dash",
		Endpoint:   srv.URL,
		Region:     "us-east-1",
		AccessKey:  "test",
		SecretKey:  "test",
		Prefix:     "exports",
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	return s, fake
}

func TestS3Storage_WriteReadList(t *testing.T) {
	s, fake := newFakeS3Storage(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "watchlists/kp_1/a.json", []byte(`{"a":1}`)))
	require.NoError(t, s.Write(ctx, "watchlists/kp_1/b.json", []byte(`{"b":2}`)))
	assert.Contains(t, fake.objects, "exports/watchlists/kp_1/a.json")

	got, err := s.Read(ctx, "watchlists/kp_1/a.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	paths, err := s.List(ctx, "watchlists/kp_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"watchlists/kp_1/a.json", "watchlists/kp_1/b.json"}, paths)
}

func TestS3Storage_Missing(t *testing.T) {
	s, _ := newFakeS3Storage(t)
	ctx := context.Background()

	exists, err := s.Exists(ctx, "nope.json")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.Read(ctx, "nope.json")
	if !errors.Is(err, ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestS3Storage_Delete(t *testing.T) {
	s, _ := newFakeS3Storage(t)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "x.json", []byte("{}")))
	exists, err := s.Exists(ctx, "x.json")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.Delete(ctx, "x.json"))
	exists, _ = s.Exists(ctx, "x.json")
	assert.False(t, exists)
}
