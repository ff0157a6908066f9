// Package repository serves the catalog document and the driver packages it points to.
package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/driverfleet/driverfleet/pkg/log"
)

const (
	DefaultDir           = "Drivers"
	DefaultAddr          = "localhost:5000"
	DefaultPresignExpiry = 15 * time.Minute

	PathHealth  = "/health"
	PathCatalog = "/" + CatalogFile
)

const shutdownTimeout = 5 * time.Second

// Config wires a Server.
type Config struct {
	Dir  string
	Addr string

	// Presigner is optional. When set, package paths missing on disk redirect to object storage.
	Presigner     Presigner
	PresignExpiry time.Duration

	// Watch enables logging of catalog document changes.
	Watch bool
}

// Server is the catalog repository.
type Server struct {
	cfg    Config
	root   string
	server *http.Server
}

// NewServer prepares the repository directory, seeding a default catalog document if needed.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = DefaultPresignExpiry
	}

	root, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve repository dir: %w", err)
	}
	if _, err := ensureLayout(root); err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, root: root}
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Root returns the absolute repository directory.
func (s *Server) Root() string {
	return s.root
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(PathHealth, s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc(PathCatalog, s.handleCatalog).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.PathPrefix("/").Handler(http.HandlerFunc(s.handlePackage)).Methods(http.MethodGet, http.MethodHead)
	return r
}

// Start serves until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	log.Info("Starting driver repository", "addr", s.server.Addr, "dir", s.root)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	})
	if s.cfg.Watch {
		g.Go(func() error {
			return s.watch(ctx)
		})
	}
	return g.Wait()
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "Driver repository is running")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"status":"OK","service":"driver-repository"}`)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	p := filepath.Join(s.root, CatalogFile)
	if _, err := os.Stat(p); err != nil {
		log.Warn("Catalog document requested but missing", "path", p)
		http.Error(w, "drivers.json not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	http.ServeFile(w, r, p)
}

func (s *Server) handlePackage(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if key == "" {
		http.NotFound(w, r)
		return
	}

	local := filepath.Join(s.root, filepath.FromSlash(key))
	info, err := os.Stat(local)
	switch {
	case err == nil && !info.IsDir():
		log.Debug("Serving package", "path", key, "size", info.Size())
		http.ServeFile(w, r, local)
		return
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if s.cfg.Presigner == nil {
		http.NotFound(w, r)
		return
	}

	u, err := s.cfg.Presigner.PresignedURL(r.Context(), key, s.cfg.PresignExpiry)
	if err != nil {
		log.Error(err, "Failed to presign package", "key", key)
		http.Error(w, "package unavailable", http.StatusBadGateway)
		return
	}
	log.Debug("Redirecting package to object storage", "key", key)
	http.Redirect(w, r, u, http.StatusTemporaryRedirect)
}
