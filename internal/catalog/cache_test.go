package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/driverfleet/driverfleet/internal/pkg/errdefs"
	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
	"github.com/driverfleet/driverfleet/pkg/log"
)

const remoteDoc = `{"drivers":[{"name":"Remote GPU","version":"1.2","hardwareIds":["PCI\\VEN_10DE"],"url":"/gpu/setup.exe"}]}`

type catalogServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newCatalogServer(t *testing.T, status int, body string) *catalogServer {
	t.Helper()
	s := &catalogServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		if r.URL.Path != "/drivers.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestCache(baseURL string) (*Cache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(Config{BaseURL: baseURL, TTL: 5 * time.Minute, Timeout: time.Second})
	c.now = clock.Now
	return c, clock
}

func TestGet_Remote(t *testing.T) {
	srv := newCatalogServer(t, http.StatusOK, remoteDoc)
	c, _ := newTestCache(srv.URL + "/")

	snap := c.Get(context.Background(), false)
	require.NotNil(t, snap)
	assert.Equal(t, v1.SnapshotSourceRemote, snap.Source)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "Remote GPU", snap.Entries[0].Name)
	assert.Equal(t, srv.URL, snap.BaseURL)
	assert.NoError(t, c.LastError())
}

func TestGet_WithinTTLDoesNotRefetch(t *testing.T) {
	srv := newCatalogServer(t, http.StatusOK, remoteDoc)
	c, clock := newTestCache(srv.URL)

	first := c.Get(context.Background(), false)
	clock.Advance(4 * time.Minute)
	second := c.Get(context.Background(), false)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, srv.hits.Load())
}

func TestGet_RefreshAfterTTL(t *testing.T) {
	srv := newCatalogServer(t, http.StatusOK, remoteDoc)
	c, clock := newTestCache(srv.URL)

	first := c.Get(context.Background(), false)
	clock.Advance(5*time.Minute + time.Second)
	second := c.Get(context.Background(), false)

	assert.NotSame(t, first, second)
	assert.EqualValues(t, 2, srv.hits.Load())
}

func TestGet_Force(t *testing.T) {
	srv := newCatalogServer(t, http.StatusOK, remoteDoc)
	c, _ := newTestCache(srv.URL)

	c.Get(context.Background(), false)
	c.Get(context.Background(), true)

	assert.EqualValues(t, 2, srv.hits.Load())
}

func TestGet_FallsBackToBaseline(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind error
	}{
		{"server error", http.StatusInternalServerError, "boom", errdefs.ErrTransport},
		{"not found", http.StatusNotFound, "", errdefs.ErrTransport},
		{"malformed document", http.StatusOK, `{"drivers": [`, errdefs.ErrCatalogParse},
		{"empty driver list", http.StatusOK, `{"drivers": []}`, errdefs.ErrCatalogParse},
		{"missing drivers key", http.StatusOK, `{}`, errdefs.ErrCatalogParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newCatalogServer(t, tt.status, tt.body)
			c, _ := newTestCache(srv.URL)

			snap := c.Get(context.Background(), false)
			require.NotNil(t, snap)
			assert.Equal(t, v1.SnapshotSourceBaseline, snap.Source)
			assertBaseline(t, snap)
			assert.True(t, errors.Is(c.LastError(), tt.wantKind), "got %v", c.LastError())
		})
	}
}

func TestGet_UnreachableServer(t *testing.T) {
	srv := newCatalogServer(t, http.StatusOK, remoteDoc)
	url := srv.URL
	srv.Close()

	c, _ := newTestCache(url)
	snap := c.Get(context.Background(), false)

	assert.Equal(t, v1.SnapshotSourceBaseline, snap.Source)
	assertBaseline(t, snap)
	assert.ErrorIs(t, c.LastError(), errdefs.ErrTransport)
}

func TestGet_BaselineHeldForTTL(t *testing.T) {
	srv := newCatalogServer(t, http.StatusInternalServerError, "")
	c, clock := newTestCache(srv.URL)

	c.Get(context.Background(), false)
	clock.Advance(time.Minute)
	snap := c.Get(context.Background(), false)

	assert.Equal(t, v1.SnapshotSourceBaseline, snap.Source)
	assert.EqualValues(t, 1, srv.hits.Load())
}

func TestGet_RecoversFromBaseline(t *testing.T) {
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(remoteDoc))
	}))
	defer srv.Close()

	c, _ := newTestCache(srv.URL)
	assert.Equal(t, v1.SnapshotSourceBaseline, c.Get(context.Background(), false).Source)

	healthy.Store(true)
	snap := c.Get(context.Background(), true)
	assert.Equal(t, v1.SnapshotSourceRemote, snap.Source)
	assert.NoError(t, c.LastError())
}

func TestGet_ConcurrentCallersFetchOnce(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(remoteDoc))
	}))
	defer srv.Close()

	c, _ := newTestCache(srv.URL)

	const callers = 8
	var wg sync.WaitGroup
	snaps := make([]*v1.CatalogSnapshot, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snaps[i] = c.Get(context.Background(), false)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, hits.Load())
	for _, s := range snaps {
		assert.Same(t, snaps[0], s)
	}
}

func TestPeek(t *testing.T) {
	srv := newCatalogServer(t, http.StatusOK, remoteDoc)
	c, _ := newTestCache(srv.URL)

	assert.Nil(t, c.Peek())
	snap := c.Get(context.Background(), false)
	assert.Same(t, snap, c.Peek())
}

func TestCache_Package(t *testing.T) {
	c := New(Config{BaseURL: "http://repo.local:5000/"})
	pkg := c.Package(v1.CatalogEntry{Name: "GPU", Version: "1.0", URL: "nvidia/driver.exe", SHA256: "ab"})

	assert.Equal(t, "http://repo.local:5000/nvidia/driver.exe", pkg.DownloadURL)
	assert.Equal(t, "driver.exe", pkg.FileName)
	assert.Equal(t, "ab", pkg.SHA256)
}

func assertBaseline(t *testing.T, snap *v1.CatalogSnapshot) {
	t.Helper()
	names := make([]string, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{BaselineGraphics, BaselineAudio, BaselineNetwork}, names)
}

func TestGet_LogsUnderCatalogName(t *testing.T) {
	srv := newCatalogServer(t, http.StatusInternalServerError, "")
	core, logs := observer.New(zapcore.InfoLevel)
	c := New(Config{BaseURL: srv.URL, Logger: log.NewFromCore(core)})

	c.Get(context.Background(), false)

	entries := logs.FilterMessage("Catalog unavailable, using baseline").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "catalog", entries[0].LoggerName)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
}
