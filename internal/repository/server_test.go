package repository

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
)

type fakePresigner struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (f *fakePresigner) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return "https://s3.example.com/drivers/" + key + "?X-Amz-Signature=abc", nil
}

func (f *fakePresigner) CheckBucket(context.Context) error { return nil }

func noRedirect(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

func newTestRepo(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = filepath.Join(t.TempDir(), "Drivers")
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func TestNewServerSeedsCatalog(t *testing.T) {
	s, srv := newTestRepo(t, Config{})

	_, err := os.Stat(filepath.Join(s.Root(), CatalogFile))
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + PathCatalog)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var doc v1.CatalogDocument
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, DefaultCatalog(), doc)
}

func TestNewServerKeepsExistingCatalog(t *testing.T) {
	dir := t.TempDir()
	existing := []byte(`{"drivers":[{"name":"Custom","version":"1.0","url":"/custom.msi"}]}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, CatalogFile), existing, 0o644))

	_, srv := newTestRepo(t, Config{Dir: dir})

	resp, err := http.Get(srv.URL + PathCatalog)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, string(existing), string(body))
}

func TestCatalogMissingAfterStart(t *testing.T) {
	s, srv := newTestRepo(t, Config{})
	require.NoError(t, os.Remove(filepath.Join(s.Root(), CatalogFile)))

	resp, err := http.Get(srv.URL + PathCatalog)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndIndex(t *testing.T) {
	_, srv := newTestRepo(t, Config{})

	resp, err := http.Get(srv.URL + PathHealth)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"status":"OK","service":"driver-repository"}`, string(body))

	resp2, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestServesPackageFiles(t *testing.T) {
	s, srv := newTestRepo(t, Config{})
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "nvidia"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "nvidia", "driver.exe"), []byte("MZ-payload"), 0o644))

	resp, err := http.Get(srv.URL + "/nvidia/driver.exe")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "MZ-payload", string(body))
}

func TestMissingPackage(t *testing.T) {
	t.Run("no presigner", func(t *testing.T) {
		_, srv := newTestRepo(t, Config{})
		resp, err := http.Get(srv.URL + "/realtek/audio.exe")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("redirects to object storage", func(t *testing.T) {
		p := &fakePresigner{}
		_, srv := newTestRepo(t, Config{Presigner: p})

		client := &http.Client{CheckRedirect: noRedirect}
		resp, err := client.Get(srv.URL + "/realtek/audio.exe")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
		assert.Equal(t, "https://s3.example.com/drivers/realtek/audio.exe?X-Amz-Signature=abc", resp.Header.Get("Location"))
		p.mu.Lock()
		defer p.mu.Unlock()
		assert.Equal(t, []string{"realtek/audio.exe"}, p.keys)
	})

	t.Run("presign failure", func(t *testing.T) {
		_, srv := newTestRepo(t, Config{Presigner: &fakePresigner{err: errors.New("access denied")}})
		resp, err := http.Get(srv.URL + "/intel/network.msi")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})
}

func TestInspectCatalog(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"drivers":[{"name":"a"},{"name":"b"}]}`), 0o644))
	n, err := inspectCatalog(good)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"drivers":`), 0o644))
	_, err = inspectCatalog(bad)
	assert.Error(t, err)
}

func TestStartStopsOnCancel(t *testing.T) {
	s, err := NewServer(Config{Dir: t.TempDir(), Addr: "127.0.0.1:0", Watch: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	// exercise the watcher
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), CatalogFile), []byte(`{"drivers":[]}`), 0o644))
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("repository did not stop")
	}
}
