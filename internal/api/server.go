// Package api exposes the admin HTTP surface: manual sync triggers, sync
// status, and portfolio recomputes. It is an operator tool, not a public
// API.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/stomatrade/chain-sync/internal/logging"
	"github.com/stomatrade/chain-sync/internal/models"
	"github.com/stomatrade/chain-sync/internal/storage"
)

// SyncService is the sync engine surface the handlers call
type SyncService interface {
	Sync(ctx context.Context, fromBlock, toBlock, batchSize uint64) (*models.SyncResult, error)
	SyncSinceCursor(ctx context.Context) (*models.SyncResult, error)
	Status(ctx context.Context) (*models.SyncStatusView, error)
}

// PortfolioService is the aggregator surface the handlers call
type PortfolioService interface {
	Recompute(ctx context.Context, userID string) (*models.PortfolioSnapshot, error)
	RecomputeAll(ctx context.Context) (int, error)
	Snapshot(ctx context.Context, userID string) (*models.PortfolioSnapshot, error)
}

// Server is the admin HTTP server
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	sync       SyncService
	portfolio  PortfolioService
	cache      *storage.RedisCache
	logger     *logging.Logger
	config     *ServerConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	StatusCacheTTL  time.Duration
}

// NewServer creates the admin API server. cache may be nil; status
// responses are then always computed fresh.
func NewServer(config *ServerConfig, syncService SyncService, portfolioService PortfolioService, cache *storage.RedisCache, logger *logging.Logger) *Server {
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 15 * time.Second
	}
	if config.WriteTimeout == 0 {
		// Manual syncs over large ranges run inside the request
		config.WriteTimeout = 10 * time.Minute
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = 60 * time.Second
	}
	if config.StatusCacheTTL == 0 {
		config.StatusCacheTTL = 5 * time.Second
	}

	s := &Server{
		router:    mux.NewRouter(),
		sync:      syncService,
		portfolio: portfolioService,
		cache:     cache,
		logger:    logger.WithField("component", "api"),
		config:    config,
	}

	s.setupRouter()

	return s
}

func (s *Server) setupRouter() {
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	admin := s.router.PathPrefix("/admin").Subrouter()

	admin.HandleFunc("/sync", s.handleSync).Methods("POST")
	admin.HandleFunc("/sync/latest", s.handleSyncLatest).Methods("POST")
	admin.HandleFunc("/sync/status", s.handleSyncStatus).Methods("GET")

	admin.HandleFunc("/portfolio/recompute", s.handlePortfolioRecompute).Methods("POST")
	admin.HandleFunc("/portfolio/{userId}", s.handleGetPortfolio).Methods("GET")
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "chain-sync",
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting admin API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down admin API server")
	return s.httpServer.Shutdown(ctx)
}

// Router returns the underlying router, used by tests
func (s *Server) Router() http.Handler {
	return s.router
}
