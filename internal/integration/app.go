package integration

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sumandas0/notionmbse/config"
	"github.com/sumandas0/notionmbse/internal/api"
	"github.com/sumandas0/notionmbse/internal/cache"
	"github.com/sumandas0/notionmbse/internal/controller"
	"github.com/sumandas0/notionmbse/internal/health"
	"github.com/sumandas0/notionmbse/internal/models"
	"github.com/sumandas0/notionmbse/internal/notion"
	"github.com/sumandas0/notionmbse/internal/resilience"
	"github.com/sumandas0/notionmbse/internal/schema"
	"github.com/sumandas0/notionmbse/internal/security"
	"github.com/sumandas0/notionmbse/internal/store"
	"github.com/sumandas0/notionmbse/internal/store/memory"
	"github.com/sumandas0/notionmbse/internal/store/postgres"
	"github.com/sumandas0/notionmbse/internal/store/sqlite"
	"github.com/sumandas0/notionmbse/pkg/utils"
)

// App holds every component built from one configuration. Stores and the
// workspace client are opened on first use.
type App struct {
	cfg    *config.Config
	obs    *ObservabilityManager
	logger zerolog.Logger

	cache    *cache.Manager
	mapper   *schema.Mapper
	breakers *resilience.CircuitBreakerManager

	mu          sync.Mutex
	notionAPI   notion.API
	sqliteStore *sqlite.Store
	pgStore     *postgres.PostgresStore
	collections map[string]store.Collection
}

type Option func(*App)

// WithNotionAPI replaces the workspace client built from the notion config.
func WithNotionAPI(client notion.API) Option {
	return func(a *App) {
		a.notionAPI = client
	}
}

func NewApp(cfg *config.Config, obs *ObservabilityManager, opts ...Option) *App {
	logger := obs.Logger()
	metrics := obs.GetMetrics()

	a := &App{
		cfg:         cfg,
		obs:         obs,
		logger:      logger,
		cache:       cache.NewManager(cfg.Cache.TTL, cache.WithMetrics(metrics)),
		mapper:      schema.NewMapper(schema.WithLogger(logger), schema.WithMetrics(metrics)),
		breakers:    resilience.NewCircuitBreakerManager(cfg.Notion.CircuitBreaker, logger, notion.IsClientError),
		collections: make(map[string]store.Collection),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *App) Config() *config.Config {
	return a.cfg
}

func (a *App) Logger() zerolog.Logger {
	return a.logger
}

func (a *App) Cache() *cache.Manager {
	return a.cache
}

func (a *App) Mapper() *schema.Mapper {
	return a.mapper
}

// StartBackground runs cache cleanup and periodic health checks until ctx
// is done.
func (a *App) StartBackground(ctx context.Context, checker *health.HealthChecker) {
	a.cache.StartCleanupRoutine(ctx, a.cfg.Cache.CleanupInterval)
	if checker != nil {
		checker.StartPeriodicChecks(ctx, 30*time.Second)
	}
}

func (a *App) controllerOptions() []controller.Option {
	return []controller.Option{
		controller.WithLogger(a.logger),
		controller.WithMetrics(a.obs.GetMetrics()),
		controller.WithTracer(a.obs.GetTracing()),
		controller.WithPageTypeCache(a.cache),
		controller.WithMapper(a.mapper),
	}
}

// CollectionName is the collection a model is stored in. Elements use the
// configured collection; every other model gets its own snake case plural.
func (a *App) CollectionName(model string) string {
	if model == models.ElementModel.Name() {
		return a.cfg.Backend.Collection
	}
	return snakeCase(model) + "s"
}

func snakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Collection opens the named collection on the configured backend.
func (a *App) Collection(ctx context.Context, name string) (store.Collection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if coll, ok := a.collections[name]; ok {
		return coll, nil
	}

	var (
		coll   store.Collection
		system string
	)
	switch a.cfg.Backend.Type {
	case config.BackendMemory:
		coll, system = memory.NewCollection(name), "memory"
	case config.BackendSQLite:
		if a.sqliteStore == nil {
			s, err := sqlite.Open(ctx, a.cfg.SQLite.Path)
			if err != nil {
				return nil, utils.NewBackendError("failed to open sqlite store", err)
			}
			a.sqliteStore = s
			a.logger.Info().Str("path", a.cfg.SQLite.Path).Msg("SQLite store opened")
		}
		coll, system = a.sqliteStore.Collection(name), "sqlite"
	case config.BackendPostgres:
		if a.pgStore == nil {
			s, err := postgres.NewPostgresStore(ctx, a.cfg.GetDatabaseURL(), postgres.PoolOptions{
				MaxConns: a.cfg.Database.MaxConns,
				MinConns: a.cfg.Database.MinConns,
			})
			if err != nil {
				return nil, utils.NewBackendError("failed to connect to postgres", err)
			}
			a.pgStore = s
			a.logger.Info().Str("host", a.cfg.Database.Host).Msg("PostgreSQL store connected")
		}
		coll, system = a.pgStore.Collection(name), "postgresql"
	default:
		return nil, utils.NewConfigurationError(fmt.Sprintf("unsupported backend type: %s", a.cfg.Backend.Type))
	}

	coll = store.NewTracedCollection(coll, a.obs.GetTracing(), system)
	a.collections[name] = coll
	return coll, nil
}

// NotionAPI returns the workspace client, building it on first use.
func (a *App) NotionAPI() (notion.API, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.notionAPI != nil {
		return a.notionAPI, nil
	}

	nc := a.cfg.Notion
	opts := []notion.ClientOption{
		notion.WithTimeout(nc.Timeout),
		notion.WithRateLimit(nc.RateLimit, nc.Burst),
		notion.WithCircuitBreaker(a.breakers),
		notion.WithLogger(a.logger),
		notion.WithMetrics(a.obs.GetMetrics()),
		notion.WithTracer(a.obs.GetTracing()),
	}
	if nc.Version != "" {
		opts = append(opts, notion.WithVersion(nc.Version))
	}
	if nc.BaseURL != "" {
		u, err := url.Parse(nc.BaseURL)
		if err != nil {
			return nil, utils.NewConfigurationError(fmt.Sprintf("invalid notion base url %q", nc.BaseURL))
		}
		opts = append(opts, notion.WithBaseURL(u))
	}

	client, err := notion.NewClient(nc.Token, opts...)
	if err != nil {
		return nil, err
	}
	a.notionAPI = client
	return client, nil
}

// DatabaseID picks override when set, otherwise the configured database.
func (a *App) DatabaseID(override string) (string, error) {
	id := override
	if id == "" {
		id = a.cfg.Notion.DatabaseID
	}
	if id == "" {
		return "", utils.NewConfigurationError("notion database id is not set")
	}
	return id, nil
}

// Migrate brings the configured backend schema up to date and returns the
// migrations that ran.
func (a *App) Migrate(ctx context.Context) ([]string, error) {
	switch a.cfg.Backend.Type {
	case config.BackendMemory:
		return nil, nil
	case config.BackendSQLite:
		// Open runs the embedded goose migrations.
		if _, err := a.Collection(ctx, a.cfg.Backend.Collection); err != nil {
			return nil, err
		}
		return nil, nil
	case config.BackendPostgres:
		if _, err := a.Collection(ctx, a.cfg.Backend.Collection); err != nil {
			return nil, err
		}
		return postgres.NewMigrator(a.pgStore.GetPool(), a.logger).Run(ctx)
	default:
		return nil, utils.NewConfigurationError(fmt.Sprintf("unsupported backend type: %s", a.cfg.Backend.Type))
	}
}

// HealthChecker registers the element collection, the workspace database
// when one is configured, and the page-type cache.
func (a *App) HealthChecker(ctx context.Context) (*health.HealthChecker, error) {
	checker := health.NewHealthChecker(5 * time.Second)

	coll, err := a.Collection(ctx, a.cfg.Backend.Collection)
	if err != nil {
		return nil, err
	}
	checker.RegisterComponent("collection", health.CollectionHealthCheck(coll))

	if a.cfg.Notion.DatabaseID != "" {
		client, err := a.NotionAPI()
		if err != nil {
			a.logger.Warn().Err(err).Msg("Workspace health check disabled")
		} else {
			checker.RegisterComponent("workspace", health.WorkspaceHealthCheck(client, a.cfg.Notion.DatabaseID))
		}
	}
	checker.RegisterComponent("cache", health.CacheHealthCheck(a.cache))
	return checker, nil
}

// Router serves elements from the collection backend.
func (a *App) Router(ctx context.Context, checker *health.HealthChecker) (*api.Router, error) {
	elements, err := CollectionControllerFor(ctx, a, models.ElementModel)
	if err != nil {
		return nil, err
	}

	opts := api.DefaultOptions()
	opts.RequestsPerMinute = a.cfg.Server.RequestsPerMinute
	if len(a.cfg.Server.AllowedOrigins) > 0 {
		opts.AllowedOrigins = a.cfg.Server.AllowedOrigins
	}
	if a.cfg.Server.WriteTimeout > 0 {
		opts.RequestTimeout = a.cfg.Server.WriteTimeout
	}

	return api.NewRouter(api.Dependencies{
		Elements:      elements,
		Mapper:        a.mapper,
		Cache:         a.cache,
		Sanitizer:     security.NewInputSanitizer(a.cfg.Server.Sanitizer),
		HealthChecker: checker,
		Metrics:       a.obs.GetMetrics(),
		Tracing:       a.obs.GetTracing(),
		Logger:        a.logger,
	}, opts), nil
}

func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for name, coll := range a.collections {
		if err := coll.Close(); err != nil {
			errs = append(errs, fmt.Errorf("collection %s close failed: %w", name, err))
		}
	}
	if a.sqliteStore != nil {
		if err := a.sqliteStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sqlite store close failed: %w", err))
		}
	}
	if a.pgStore != nil {
		if err := a.pgStore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres store close failed: %w", err))
		}
	}
	a.cache.Clear()
	return errors.Join(errs...)
}

// CollectionControllerFor binds model to its collection.
func CollectionControllerFor[T models.Record](ctx context.Context, a *App, model *models.Model[T]) (*controller.CollectionController[T], error) {
	coll, err := a.Collection(ctx, a.CollectionName(model.Name()))
	if err != nil {
		return nil, err
	}
	return controller.NewCollectionController(model, coll, a.controllerOptions()...), nil
}

// NotionControllerFor binds model to a workspace database.
func NotionControllerFor[T models.Record](a *App, model *models.Model[T], databaseID string) (*controller.NotionController[T], error) {
	client, err := a.NotionAPI()
	if err != nil {
		return nil, err
	}
	id, err := a.DatabaseID(databaseID)
	if err != nil {
		return nil, err
	}
	return controller.NewNotionController(model, client, id, a.controllerOptions()...)
}
