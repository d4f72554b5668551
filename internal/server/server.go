// Package server is the local HTTP surface a long-running hassctl command
// exposes next to its websocket session: health and prometheus metrics.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/danmuck/hassctl/internal/auth"
	"github.com/danmuck/hassctl/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// Status reports the session the server sits beside.
type Status struct {
	ConnID        string `json:"conn_id,omitempty"`
	ServerVersion string `json:"server_version,omitempty"`
	Connected     bool   `json:"connected"`
}

// Options configures a Monitor. Guard, when set, protects /metrics with a
// bearer token; /healthz stays open.
type Options struct {
	Name    string
	Version string
	Status  func() Status
	Guard   auth.Validator
}

// Monitor owns a gin engine serving /healthz and /metrics.
type Monitor struct {
	opts     Options
	router   *gin.Engine
	appeared time.Time
}

func NewMonitor(opts Options) *Monitor {
	if opts.Name == "" {
		opts.Name = "hassctl"
	}
	if opts.Status == nil {
		opts.Status = func() Status { return Status{} }
	}
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), observability.Instrument(log.Logger))

	m := &Monitor{opts: opts, router: router, appeared: time.Now()}
	m.registerRoutes()
	return m
}

func (m *Monitor) HTTPRouter() *gin.Engine {
	return m.router
}

// Serve runs the HTTP server on ln until ctx ends.
func (m *Monitor) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: m.router, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("server.Monitor listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe binds addr and serves until ctx ends.
func (m *Monitor) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return m.Serve(ctx, ln)
}
