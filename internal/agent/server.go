// Package agent is the node side of driverfleet: it answers discovery pings, reports the
// local device inventory and runs install requests through the deploy pipeline.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/driverfleet/driverfleet/internal/discovery"
	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
	"github.com/driverfleet/driverfleet/pkg/log"
)

const (
	PathHealth     = "/api/health"
	PathDevices    = "/api/devices"
	PathInstall    = "/api/drivers/install"
	PathSystemInfo = "/api/system/info"
	PathMetrics    = "/metrics"
)

const (
	defaultReadHeaderTimeout = 10 * time.Second
	shutdownTimeout          = 5 * time.Second
)

// Installer runs one package install. *deploy.Pipeline implements it.
type Installer interface {
	Install(ctx context.Context, pkg v1.ResolvedPackage) v1.InstallOutcome
	TempRoot() string
	Purge() error
}

// Config wires a Server.
type Config struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	Version           string
	Identity          Identity
	Enumerator        Enumerator
	Installer         Installer
}

// Server is the agent HTTP surface.
type Server struct {
	cfg    Config
	server *http.Server

	// installs are serialized; Windows installers refuse to run concurrently.
	installMu sync.Mutex
}

func NewServer(cfg Config) *Server {
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	s := &Server{cfg: cfg}
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	return s
}

// Handler returns the router with every agent endpoint.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(logRequests)

	r.HandleFunc(discovery.PingPath, s.handlePing).Methods(http.MethodGet)
	r.HandleFunc(PathHealth, s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc(PathDevices, s.handleDevices).Methods(http.MethodGet)
	r.HandleFunc(PathInstall, s.handleInstall).Methods(http.MethodPost)
	r.HandleFunc(PathSystemInfo, s.handleSystemInfo).Methods(http.MethodGet)
	r.Handle(PathMetrics, promhttp.Handler())
	return r
}

// Start serves until ctx is canceled, then shuts down and purges leftover install files.
func (s *Server) Start(ctx context.Context) error {
	log.Info("Starting agent HTTP server", "addr", s.server.Addr, "node", s.cfg.Identity.Name)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.server.Shutdown(shutdownCtx)

	if perr := s.cfg.Installer.Purge(); perr != nil {
		log.Warn("Failed to purge install temp root", "dir", s.cfg.Installer.TempRoot(), "error", perr)
	}
	return err
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Identity.MachineInfo())
}

type healthResponse struct {
	Status      string    `json:"status"`
	MachineName string    `json:"machineName"`
	OS          string    `json:"os"`
	Timestamp   time.Time `json:"timestamp"`
	Version     string    `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	osName := s.cfg.Identity.OSVersion
	if osName == "" {
		osName = runtime.GOOS
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "healthy",
		MachineName: s.cfg.Identity.Name,
		OS:          osName,
		Timestamp:   time.Now().UTC(),
		Version:     s.cfg.Version,
	})
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.cfg.Enumerator.Devices(r.Context())
	if err != nil {
		log.Error(err, "Device enumeration failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	var pkg v1.ResolvedPackage
	if err := json.NewDecoder(r.Body).Decode(&pkg); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode install request: %w", err))
		return
	}
	if pkg.Name == "" || pkg.DownloadURL == "" {
		writeError(w, http.StatusBadRequest, errors.New("name and downloadUrl are required"))
		return
	}

	s.installMu.Lock()
	defer s.installMu.Unlock()

	// The console may hang up on its own timeout; an install already started runs to cleanup.
	out := s.cfg.Installer.Install(context.WithoutCancel(r.Context()), pkg)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSystemInfo(w http.ResponseWriter, _ *http.Request) {
	info, err := ReadSystemInfo(s.cfg.Installer.TempRoot())
	if err != nil {
		log.Warn("Failed to read disk usage", "error", err)
	}
	writeJSON(w, http.StatusOK, info)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("Failed to write response", "error", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug("Handled request", "method", r.Method, "path", r.URL.Path, "status", rec.status,
			"remote", r.RemoteAddr, "duration", time.Since(start))
	})
}
