// Package api exposes the gateway over HTTP: the nonce coordination endpoints
// external services drive, the swap/approve/wrap endpoints trading clients
// call, and the health and metrics surface operators watch.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dexgate-hq/dexgate/pkg/config"
	"github.com/dexgate-hq/dexgate/pkg/executor"
	"github.com/dexgate-hq/dexgate/pkg/logger"
)

// Server is the gateway HTTP server.
type Server struct {
	cfg    *config.Config
	exec   *executor.Executor
	logger logger.Logger
	http   *http.Server
}

// NewServer wires the routes and returns a server ready to Start.
func NewServer(cfg *config.Config, exec *executor.Executor, log logger.Logger) *Server {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	s := &Server{cfg: cfg, exec: exec, logger: log}

	router := mux.NewRouter()

	// Nonce coordination, driven by cooperating external services.
	router.HandleFunc("/chains/{family}/nonce/acquire", s.handleNonceAcquire).Methods(http.MethodPost)
	router.HandleFunc("/chains/{family}/nonce/release", s.handleNonceRelease).Methods(http.MethodPost)
	router.HandleFunc("/chains/{family}/nonce/invalidate", s.handleNonceInvalidate).Methods(http.MethodPost)
	router.HandleFunc("/chains/{family}/nonce/status", s.handleNonceStatus).Methods(http.MethodGet)

	// Wallet operations outside the swap pipeline.
	router.HandleFunc("/chains/{family}/approve", s.handleApprove).Methods(http.MethodPost)
	router.HandleFunc("/chains/{family}/wrap", s.handleWrap).Methods(http.MethodPost)
	router.HandleFunc("/chains/{family}/poll", s.handlePoll).Methods(http.MethodGet)

	// Swap lifecycle.
	router.HandleFunc("/connectors/{dex}/{poolType}/quote-swap", s.handleQuoteSwap).Methods(http.MethodGet)
	router.HandleFunc("/connectors/{dex}/{poolType}/execute-swap", s.handleExecuteSwap).Methods(http.MethodPost)
	router.HandleFunc("/connectors/{dex}/execute-quote", s.handleExecuteQuote).Methods(http.MethodPost)

	// Operational surface.
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/circuit/reset", s.handleCircuitReset).Methods(http.MethodPost)
	router.Handle("/metrics", s.metricsAuthMiddleware(promhttp.Handler())).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // execute-swap holds the connection through confirmation
		IdleTimeout:  90 * time.Second,
	}
	return s
}

// Start serves until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.logger.Info("Gateway listening on port %s", s.cfg.Port)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// metricsAuthMiddleware requires a bearer token matching METRICS_API_KEY. An
// empty configured key disables the check.
func (s *Server) metricsAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.MetricsAPIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}
		if parts[1] != s.cfg.MetricsAPIKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
