// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/nav-tracker/internal/logging"
	"github.com/nav-tracker/internal/models"
	"github.com/nav-tracker/internal/service"
)

// Service interfaces for dependency injection and testing

// TrackerServiceInterface defines the interface for tracker operations
type TrackerServiceInterface interface {
	AddETF(ctx context.Context, ticker string) (*models.ETF, error)
	RemoveETF(ctx context.Context, ticker string) error
	ListETFs(ctx context.Context) ([]*models.ETF, error)
	RefreshETF(ctx context.Context, ticker string) (*service.RefreshResult, error)
	RefreshAll(ctx context.Context) (*service.RefreshAllResult, error)
}

// ScorecardServiceInterface defines the interface for scorecard operations
type ScorecardServiceInterface interface {
	Scorecard(ctx context.Context) (*service.Scorecard, error)
	Detail(ctx context.Context, ticker string) (*service.ETFDetail, error)
	History(ctx context.Context, ticker string) (*service.MetricsHistory, error)
	ExportCSV(ctx context.Context, w io.Writer) error
}

// SettingsServiceInterface defines the interface for threshold settings
type SettingsServiceInterface interface {
	Get(ctx context.Context) (*models.ThresholdSettings, error)
	Update(ctx context.Context, warningCutoff, sellCutoff float64) (*models.ThresholdSettings, error)
}

// Server represents the HTTP API server.
type Server struct {
	router           *mux.Router
	httpServer       *http.Server
	trackerService   TrackerServiceInterface
	scorecardService ScorecardServiceInterface
	settingsService  SettingsServiceInterface
	config           *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	trackerService TrackerServiceInterface,
	scorecardService ScorecardServiceInterface,
	settingsService SettingsServiceInterface,
) *Server {
	s := &Server{
		router:           mux.NewRouter(),
		trackerService:   trackerService,
		scorecardService: scorecardService,
		settingsService:  settingsService,
		config:           config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	// Middleware order matters
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// ETF endpoints
	api.HandleFunc("/etfs", s.handleAddETF).Methods("POST")
	api.HandleFunc("/etfs", s.handleListETFs).Methods("GET")
	api.HandleFunc("/etfs/{ticker}", s.handleETFDetail).Methods("GET")
	api.HandleFunc("/etfs/{ticker}", s.handleRemoveETF).Methods("DELETE")
	api.HandleFunc("/etfs/{ticker}/refresh", s.handleRefreshETF).Methods("POST")
	api.HandleFunc("/etfs/{ticker}/metrics", s.handleMetricsHistory).Methods("GET")

	// Universe-wide endpoints
	api.HandleFunc("/refresh", s.handleRefreshAll).Methods("POST")
	api.HandleFunc("/scorecard", s.handleScorecard).Methods("GET")
	api.HandleFunc("/export", s.handleExport).Methods("GET")

	// Settings endpoints
	api.HandleFunc("/settings", s.handleGetSettings).Methods("GET")
	api.HandleFunc("/settings", s.handleUpdateSettings).Methods("PUT")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "nav-tracker",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.Global().WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Global().Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
