package rest

import (
	"net/http"

	"contentforge/application/services"
	"contentforge/infrastructure/config"
	"contentforge/interfaces/http/rest/handlers"
	"contentforge/interfaces/http/rest/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Router creates and configures the HTTP router
type Router struct {
	service *services.ContentService
	cfg     *config.Config
	logger  *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(service *services.ContentService, cfg *config.Config, logger *zap.Logger) *Router {
	return &Router{
		service: service,
		cfg:     cfg,
		logger:  logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)

	router.Route("/api/v1", func(r chi.Router) {
		contentHandler := handlers.NewContentHandler(rt.service, rt.logger)

		r.Route("/workspaces/{organizationID}/{projectID}", func(r chi.Router) {
			r.Post("/nodes", contentHandler.CreateNode)
			r.Get("/nodes", contentHandler.GetNode)
			r.Get("/nodes/children", contentHandler.ListNodeChildren)
			r.Get("/nodes/content", contentHandler.GetNodeContent)
			r.Post("/plan", contentHandler.Plan)
			r.Post("/write", contentHandler.Write)
			r.Post("/generate", contentHandler.Generate)
		})

		r.Get("/instances/{instanceID}", contentHandler.GetInstance)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
