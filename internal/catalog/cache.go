// Package catalog holds the driver catalog fetched from the repository server.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/driverfleet/driverfleet/internal/pkg/errdefs"
	"github.com/driverfleet/driverfleet/internal/pkg/metrics"
	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
	"github.com/driverfleet/driverfleet/pkg/log"
)

const (
	DefaultTTL     = 5 * time.Minute
	DefaultTimeout = 30 * time.Second

	documentPath = "/drivers.json"
	snapshotKey  = "snapshot"
)

// Config configures a Cache.
type Config struct {
	BaseURL string
	TTL     time.Duration
	Timeout time.Duration

	// Client overrides the HTTP client built from Timeout.
	Client *http.Client

	// Logger is the parent of the cache logger. Nil means the global logger.
	Logger log.Logger
}

// Cache holds one catalog snapshot and refreshes it when it is older than the TTL.
//
// Get never fails: when the remote document cannot be used the built-in baseline is held instead.
type Cache struct {
	baseURL string
	ttl     time.Duration
	client  *http.Client
	store   *gocache.Cache
	logger  log.Logger

	// mu serializes refresh-and-swap.
	mu sync.Mutex

	errMu   sync.RWMutex
	lastErr error

	now func() time.Time
}

// New creates a Cache. Zero TTL and Timeout mean the defaults.
func New(cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Std()
	}

	return &Cache{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		ttl:     cfg.TTL,
		client:  client,
		store:   gocache.New(cfg.TTL, 0),
		logger:  cfg.Logger.WithName("catalog"),
		now:     time.Now,
	}
}

// BaseURL returns the catalog base address.
func (c *Cache) BaseURL() string {
	return c.baseURL
}

// Get returns the current snapshot, refreshing it first when force is set,
// when nothing is held yet or when the held one is older than the TTL.
func (c *Cache) Get(ctx context.Context, force bool) *v1.CatalogSnapshot {
	if !force {
		if snap, ok := c.fresh(); ok {
			return snap
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have refreshed while we waited.
	if !force {
		if snap, ok := c.fresh(); ok {
			return snap
		}
	}

	snap := c.refresh(ctx)
	c.store.Set(snapshotKey, snap, gocache.DefaultExpiration)
	return snap
}

// Peek returns the held snapshot without refreshing it. It may be nil or stale.
func (c *Cache) Peek() *v1.CatalogSnapshot {
	v, ok := c.store.Get(snapshotKey)
	if !ok {
		return nil
	}
	return v.(*v1.CatalogSnapshot)
}

// LastError returns the error of the most recent refresh, nil if it succeeded.
func (c *Cache) LastError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.lastErr
}

// Package builds the install request for entry against this catalog's base address.
func (c *Cache) Package(entry v1.CatalogEntry) v1.ResolvedPackage {
	return ResolvePackage(c.baseURL, entry)
}

func (c *Cache) fresh() (*v1.CatalogSnapshot, bool) {
	snap := c.Peek()
	if snap == nil {
		return nil, false
	}
	if c.now().Sub(snap.FetchedAt) > c.ttl {
		return nil, false
	}
	return snap, true
}

func (c *Cache) refresh(ctx context.Context) *v1.CatalogSnapshot {
	entries, err := c.fetch(ctx)

	c.errMu.Lock()
	c.lastErr = err
	c.errMu.Unlock()

	snap := &v1.CatalogSnapshot{
		Entries:   entries,
		FetchedAt: c.now(),
		Source:    v1.SnapshotSourceRemote,
		BaseURL:   c.baseURL,
	}
	if err != nil {
		c.logger.Error(err, "Catalog unavailable, using baseline", "url", c.baseURL+documentPath)
		snap.Entries = Baseline()
		snap.Source = v1.SnapshotSourceBaseline
	} else {
		c.logger.Info("Catalog refreshed", "url", c.baseURL+documentPath, "entries", len(entries))
	}

	metrics.CatalogRefreshTotal.WithLabelValues(string(snap.Source)).Inc()
	return snap
}

func (c *Cache) fetch(ctx context.Context) ([]v1.CatalogEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+documentPath, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build catalog request: %v", errdefs.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch catalog: %v", errdefs.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: catalog server returned status: %s", errdefs.ErrTransport, resp.Status)
	}

	var doc v1.CatalogDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode catalog: %v", errdefs.ErrCatalogParse, err)
	}
	if len(doc.Drivers) == 0 {
		return nil, fmt.Errorf("%w: catalog has no drivers", errdefs.ErrCatalogParse)
	}

	return doc.Drivers, nil
}
