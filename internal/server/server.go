// Package server runs the gateway's HTTP listeners.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	httpmw "github.com/mihaimyh/lemongate/middleware/http"
	"github.com/mihaimyh/lemongate/pkg/api"
)

const shutdownTimeout = 10 * time.Second

// Server is one HTTP listener with graceful shutdown.
type Server struct {
	name    string
	addr    string
	handler http.Handler
	logger  zerolog.Logger

	server *http.Server
	ready  chan net.Addr
}

// New returns a server that serves handler on addr once started.
func New(name, addr string, handler http.Handler, logger zerolog.Logger) *Server {
	return &Server{
		name:    name,
		addr:    addr,
		handler: handler,
		logger:  logger.With().Str("server", name).Logger(),
		ready:   make(chan net.Addr, 1),
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully (blocking).
// It returns ctx.Err() after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("%s server listen: %w", s.name, err)
	}
	s.ready <- ln.Addr()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("server starting")

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s server shutdown failed: %w", s.name, err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("%s server error: %w", s.name, err)
	}
}

// Ready yields the bound address once the listener is open.
func (s *Server) Ready() <-chan net.Addr {
	return s.ready
}

// RouterOption adjusts Router.
type RouterOption func(*routerOptions)

type routerOptions struct {
	trustProxy bool
}

// WithTrustedProxy takes the client address from X-Real-IP / X-Forwarded-For.
// Only use it when a proxy in front of the server sets those headers;
// otherwise clients choose their own address for logging and rate limiting.
func WithTrustedProxy(trust bool) RouterOption {
	return func(o *routerOptions) { o.trustProxy = trust }
}

// Router mounts webhook at path for every method, plus /healthz.
func Router(path string, webhook http.Handler, logger zerolog.Logger, opts ...RouterOption) *chi.Mux {
	var o routerOptions
	for _, opt := range opts {
		opt(&o)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if o.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(httpmw.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Handle, not Post: the webhook handler answers other methods with a JSON 405.
	r.Handle(path, webhook)

	return r
}

// EmailParam reads the {email} segment of the user API routes. chi matches
// on the escaped path, so the segment is unescaped here; a malformed escape
// yields "" and the request is rejected.
func EmailParam(r *http.Request) string {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		return ""
	}
	return email
}

// MountUserAPI adds the token-protected user routes:
//
//	GET  /v1/users/{email}
//	POST /v1/users/{email}/sync
//
// h must be built with GetEmail set to EmailParam.
func MountUserAPI(r chi.Router, token string, h *api.Handler) {
	r.Route("/v1/users/{email}", func(r chi.Router) {
		r.Use(httpmw.BearerAuth(token))
		r.HandleFunc("/", h.GetUser)
		r.HandleFunc("/sync", h.SyncUser)
	})
}

// MetricsHandler serves the registry in the Prometheus exposition format.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	mux := chi.NewRouter()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return mux
}
