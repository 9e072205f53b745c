// Package controller persists model records through interchangeable
// backends: a document collection or a workspace database.
package controller

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sumandas0/notionmbse/internal/cache"
	"github.com/sumandas0/notionmbse/internal/models"
	"github.com/sumandas0/notionmbse/internal/observability"
	"github.com/sumandas0/notionmbse/internal/schema"
	"github.com/sumandas0/notionmbse/pkg/utils"
)

const (
	BackendCollection = "collection"
	BackendNotion     = "notion"
)

// Query is a field to value mapping. How it is matched is up to the
// backend.
type Query = map[string]any

// Controller is the operation set every backend provides. Lookups that
// match nothing report found == false with a nil error.
type Controller[T models.Record] interface {
	Model() *models.Model[T]
	Backend() string

	// Create accepts a field map or a T and returns the persisted record,
	// including any fields the backend assigned.
	Create(ctx context.Context, item any) (T, error)
	Read(ctx context.Context, id models.ObjectID) (T, bool, error)
	Get(ctx context.Context, query Query) (T, bool, error)
	// ReadAll returns every match. A limit <= 0 means no limit.
	ReadAll(ctx context.Context, query Query, limit int) ([]T, error)
	// Update reports whether the stored record changed. A record that does
	// not exist is not an error.
	Update(ctx context.Context, item T) (bool, error)
	UpdateMany(ctx context.Context, query Query, update map[string]any) (bool, error)
	// Delete removes the record keyed by a T's id or the first record
	// matching a Query.
	Delete(ctx context.Context, target any) (bool, error)
	DeleteAll(ctx context.Context) (bool, error)
	All(ctx context.Context) iter.Seq2[T, error]
	// Refresh copies the stored fields onto item in place.
	Refresh(ctx context.Context, item T) (bool, error)
	Count(ctx context.Context) (int64, error)
	String() string
}

// Recorder receives one observation per controller operation.
type Recorder interface {
	RecordControllerOperation(operation, model, backend, status string, duration time.Duration)
}

type options struct {
	logger  zerolog.Logger
	metrics Recorder
	tracer  *observability.TracingManager
	cache   *cache.Manager
	mapper  *schema.Mapper
}

type Option func(*options)

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithMetrics(metrics Recorder) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

func WithTracer(tracer *observability.TracingManager) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithPageTypeCache shares synthesized page types between controllers.
func WithPageTypeCache(c *cache.Manager) Option {
	return func(o *options) {
		o.cache = c
	}
}

func WithMapper(m *schema.Mapper) Option {
	return func(o *options) {
		o.mapper = m
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type observer struct {
	backend string
	model   string
	logger  zerolog.Logger
	metrics Recorder
	tracer  *observability.TracingManager
}

func newObserver(backend, model string, o options) observer {
	return observer{
		backend: backend,
		model:   model,
		logger:  o.logger.With().Str("backend", backend).Str("model", model).Logger(),
		metrics: o.metrics,
		tracer:  o.tracer,
	}
}

func (o observer) observe(ctx context.Context, operation string, fn func(context.Context) error) error {
	start := time.Now()

	var span trace.Span
	if o.tracer != nil {
		ctx, span = o.tracer.StartControllerOperation(ctx, operation, o.model, o.backend)
		defer span.End()
	}

	err := fn(ctx)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		if span != nil {
			o.tracer.SetSpanError(span, err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	if o.metrics != nil {
		o.metrics.RecordControllerOperation(operation, o.model, o.backend, status, duration)
	}

	event := o.logger.Debug()
	if err != nil {
		event = event.Err(err)
	}
	event.Str("operation", operation).Dur("duration", duration).Msg("Controller operation")
	return err
}

// backendError wraps a native failure. Errors already classified pass
// through unchanged.
func backendError(msg string, err error) error {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return utils.NewBackendError(msg, err)
}

// pageTypeFor maps the model once, through the shared cache when one is
// configured.
func pageTypeFor[T models.Record](model *models.Model[T], o options) (*schema.PageType, error) {
	mapper := o.mapper
	if mapper == nil {
		mapper = schema.NewMapper(schema.WithLogger(o.logger))
	}
	build := func() (*schema.PageType, error) {
		return schema.MapModel(mapper, model)
	}
	if o.cache == nil {
		return build()
	}
	return o.cache.GetPageType(model.Name(), build)
}
