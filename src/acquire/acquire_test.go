package acquire

import (
	"context"
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/mosaicnetworks/chainboot/src/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileAcquire(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.zip")

	if _, err := NewFile(path).Acquire(context.Background()); !common.Is(err, common.IOError) {
		t.Fatalf("expected IOError for missing file, got %v", err)
	}

	require.NoError(t, ioutil.WriteFile(path, []byte("PK"), 0644))

	got, err := NewFile(path).Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestCloudAcquire(t *testing.T) {
	payload := strings.Repeat("snapshot", 10000)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "bootstrap.zip")

	var statuses []string
	last := -1
	c := NewCloud(srv.URL, path, NewHTTPDownloader(0), nil,
		func(status string, progress int) {
			statuses = append(statuses, status)
			if progress < last {
				t.Fatalf("progress went backwards: %d after %d", progress, last)
			}
			last = progress
		},
		common.NewTestEntry(t, "acquire"))

	got, err := c.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.Equal(t, payload, string(mustRead(t, path)))
	assert.Equal(t, 100, last)
	assert.NotEmpty(t, statuses)

	if _, err := os.Stat(c.TmpPath()); !os.IsNotExist(err) {
		t.Fatalf("temporary file should not exist after success")
	}
}

func TestCloudAcquireUnknownLength(t *testing.T) {
	payload := strings.Repeat("chunk", 4096)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 4; i++ {
			w.Write([]byte(payload))
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "bootstrap.zip")

	last := -1
	c := NewCloud(srv.URL, path, NewHTTPDownloader(0), nil,
		func(status string, progress int) {
			last = progress
		},
		common.NewTestEntry(t, "acquire"))

	_, err := c.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4*len(payload), len(mustRead(t, path)))
	assert.Equal(t, 100, last)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("no space left on device")
}

func TestDownloadWriteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("snapshot"))
	}))
	defer srv.Close()

	err := NewHTTPDownloader(0).Download(context.Background(), srv.URL, failingWriter{}, nil)
	if !common.Is(err, common.IOError) {
		t.Fatalf("expected IOError, got %v", err)
	}
	assert.False(t, common.Is(err, common.TransportError))
}

func TestCloudAcquireHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "bootstrap.zip")
	c := NewCloud(srv.URL, path, NewHTTPDownloader(0), nil, nil, common.NewTestEntry(t, "acquire"))

	_, err := c.Acquire(context.Background())
	if !common.Is(err, common.TransportError) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	assert.Contains(t, err.Error(), "404")

	for _, p := range []string{path, c.TmpPath()} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("%s should not exist", p)
		}
	}
}

func TestCloudAcquireCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "bootstrap.zip")
	c := NewCloud(srv.URL, path, NewHTTPDownloader(0),
		func() bool { return true },
		nil,
		common.NewTestEntry(t, "acquire"))

	_, err := c.Acquire(context.Background())
	if !common.Is(err, common.CancelledError) {
		t.Fatalf("expected CancelledError, got %v", err)
	}

	for _, p := range []string{path, c.TmpPath()} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("%s should not exist", p)
		}
	}
}

func TestCloudAcquireEmptyURL(t *testing.T) {
	c := NewCloud("", filepath.Join(t.TempDir(), "bootstrap.zip"), NewHTTPDownloader(0), nil, nil, nil)

	if _, err := c.Acquire(context.Background()); !common.Is(err, common.ConfigurationError) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestHTTPDownloaderRedirects(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/final":
			w.Write([]byte("ok"))
		case "/loop":
			http.Redirect(w, r, srv.URL+"/loop", http.StatusFound)
		default:
			http.Redirect(w, r, srv.URL+"/final", http.StatusFound)
		}
	}))
	defer srv.Close()

	d := NewHTTPDownloader(0)

	var sb strings.Builder
	require.NoError(t, d.Download(context.Background(), srv.URL+"/start", &sb, nil))
	assert.Equal(t, "ok", sb.String())

	if err := d.Download(context.Background(), srv.URL+"/loop", &sb, nil); err == nil {
		t.Fatalf("expected redirect loop to fail")
	}
}

func mustRead(t *testing.T, path string) []byte {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	return b
}
