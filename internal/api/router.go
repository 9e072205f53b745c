package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/sumandas0/notionmbse/internal/api/handlers"
	"github.com/sumandas0/notionmbse/internal/api/middleware"
	"github.com/sumandas0/notionmbse/internal/cache"
	"github.com/sumandas0/notionmbse/internal/controller"
	"github.com/sumandas0/notionmbse/internal/health"
	"github.com/sumandas0/notionmbse/internal/models"
	"github.com/sumandas0/notionmbse/internal/observability"
	"github.com/sumandas0/notionmbse/internal/schema"
	"github.com/sumandas0/notionmbse/internal/security"
)

// Dependencies are the collaborators the router serves. Everything except
// Elements may be left nil.
type Dependencies struct {
	Elements      controller.Controller[*models.Element]
	Mapper        *schema.Mapper
	Cache         *cache.Manager
	Sanitizer     *security.InputSanitizer
	HealthChecker *health.HealthChecker
	Metrics       *observability.MetricsManager
	Tracing       *observability.TracingManager
	Logger        zerolog.Logger
}

type Options struct {
	RequestTimeout    time.Duration
	RequestsPerMinute int
	AllowedOrigins    []string
}

func DefaultOptions() Options {
	return Options{
		RequestTimeout:    60 * time.Second,
		RequestsPerMinute: 100,
		AllowedOrigins:    []string{"https://*", "http://*"},
	}
}

type Router struct {
	deps            Dependencies
	opts            Options
	elementHandler  *handlers.ElementHandler
	pageTypeHandler *handlers.PageTypeHandler
}

func NewRouter(deps Dependencies, opts Options) *Router {
	mapper := deps.Mapper
	if mapper == nil {
		mapper = schema.NewMapper(schema.WithLogger(deps.Logger))
	}
	return &Router{
		deps:            deps,
		opts:            opts,
		elementHandler:  handlers.NewElementHandler(deps.Elements, deps.Sanitizer),
		pageTypeHandler: handlers.NewPageTypeHandler(mapper, deps.Cache),
	}
}

// SetupRoutes configures all routes and middleware
func (r *Router) SetupRoutes() http.Handler {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.Logger(r.deps.Logger))
	router.Use(middleware.ErrorHandler(r.deps.Logger))
	if r.deps.Tracing != nil {
		router.Use(r.deps.Tracing.TraceMiddleware())
	}
	if r.deps.Metrics != nil {
		router.Use(r.deps.Metrics.MetricsMiddleware(routePattern))
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   r.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Trace-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if r.opts.RequestTimeout > 0 {
		router.Use(chiMiddleware.Timeout(r.opts.RequestTimeout))
	}
	if r.opts.RequestsPerMinute > 0 {
		router.Use(middleware.NewRateLimiter(r.opts.RequestsPerMinute, time.Minute).Middleware())
	}

	router.Get("/health", r.healthCheck)
	if r.deps.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", r.deps.Metrics.Handler())
	}

	router.Route("/api/v1", func(apiRouter chi.Router) {
		apiRouter.Route("/elements", func(elementRouter chi.Router) {
			elementRouter.Post("/", r.elementHandler.CreateElement)
			elementRouter.Get("/", r.elementHandler.ListElements)

			elementRouter.Route("/{elementID}", func(idRouter chi.Router) {
				idRouter.Get("/", r.elementHandler.GetElement)
				idRouter.Put("/", r.elementHandler.UpdateElement)
				idRouter.Delete("/", r.elementHandler.DeleteElement)
			})
		})

		apiRouter.Route("/page-types", func(ptRouter chi.Router) {
			ptRouter.Get("/", r.pageTypeHandler.ListModels)
			ptRouter.Get("/{model}", r.pageTypeHandler.GetPageType)
		})
	})

	return router
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.deps.HealthChecker == nil {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":    health.StatusHealthy,
			"timestamp": time.Now().UTC(),
		})
		return
	}

	systemHealth := r.deps.HealthChecker.Check(req.Context())
	statusCode := http.StatusOK
	if systemHealth.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(systemHealth)
}
