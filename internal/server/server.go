package server

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"estoque-vendas/internal/config"
	custommiddleware "estoque-vendas/internal/middleware"
	"estoque-vendas/internal/repository"
	"estoque-vendas/internal/service"
	"estoque-vendas/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// HealthChecker reports the status of the backing database
type HealthChecker interface {
	Health(ctx context.Context) map[string]string
}

// Options carries the dependencies the server is assembled from
type Options struct {
	Store repository.Store
	// Health is nil when running on the in-memory store
	Health HealthChecker
	// RateLimit wraps every API route; nil disables rate limiting
	RateLimit func(http.Handler) http.Handler
	// OnClose releases resources owned by the caller, such as the database pool
	OnClose func() error
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	opts   Options
}

var routeMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
}

func NewServer(cfg *config.Config, logger *zap.Logger, opts Options) *Server {
	server := &Server{
		config: cfg,
		logger: logger,
		opts:   opts,
	}

	server.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      server.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}

func (s *Server) routes() http.Handler {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.ErrorHandlingMiddleware(s.logger))
	router.Use(custommiddleware.LoggingMiddleware(s.logger))
	router.Use(custommiddleware.CORSMiddleware(s.config.Server.AllowedOrigins, s.config.Server.Env == "development"))
	if s.config.Server.RequestTimeout > 0 {
		router.Use(middleware.Timeout(s.config.Server.RequestTimeout))
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithError(w, http.StatusNotFound, "Rota não encontrada")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		allowed := allowedMethods(router, r.URL.Path)
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		custommiddleware.RespondWithError(w, http.StatusMethodNotAllowed, fmt.Sprintf("Método %s não permitido", r.Method))
	})

	router.Get("/health", s.health)

	// Initialize services
	ledger := service.NewStockLedger(s.logger)
	saleService := service.NewSaleService(s.opts.Store, ledger, s.logger)
	comandaService := service.NewComandaService(s.opts.Store, saleService, s.logger)

	// Register routes
	router.Group(func(r chi.Router) {
		if s.opts.RateLimit != nil {
			r.Use(s.opts.RateLimit)
		}
		transport.NewSaleHandler(saleService, s.logger).RegisterRoutes(r)
		transport.NewComandaHandler(comandaService, s.logger).RegisterRoutes(r)
	})

	return router
}

// allowedMethods lists the methods registered for path, for the Allow header
func allowedMethods(routes chi.Routes, path string) []string {
	var allowed []string
	for _, method := range routeMethods {
		if routes.Match(chi.NewRouteContext(), method, path) {
			allowed = append(allowed, method)
		}
	}
	if len(allowed) > 0 {
		allowed = append(allowed, http.MethodOptions)
	}
	sort.Strings(allowed)
	return allowed
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}

	if s.opts.Health == nil {
		response["database"] = map[string]string{"status": "up", "driver": config.DriverMemory}
		custommiddleware.RespondWithJSON(w, http.StatusOK, response)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	dbHealth := s.opts.Health.Health(ctx)
	response["database"] = dbHealth
	if dbHealth["status"] != "up" {
		response["status"] = "degraded"
		custommiddleware.RespondWithJSON(w, http.StatusServiceUnavailable, response)
		return
	}
	custommiddleware.RespondWithJSON(w, http.StatusOK, response)
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.opts.OnClose != nil {
		if err := s.opts.OnClose(); err != nil {
			s.logger.Error("Failed to close server resources", zap.Error(err))
		}
	}

	_ = s.logger.Sync()
	return nil
}
