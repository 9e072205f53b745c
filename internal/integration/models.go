package integration

import (
	"context"
	"fmt"

	"github.com/sumandas0/notionmbse/internal/controller"
	"github.com/sumandas0/notionmbse/internal/models"
	"github.com/sumandas0/notionmbse/internal/schema"
	"github.com/sumandas0/notionmbse/pkg/utils"
)

const (
	TargetCollection = "collection"
	TargetNotion     = "notion"
)

// Target names the backend a model operation runs against. DatabaseID
// overrides the configured workspace database.
type Target struct {
	Backend    string
	DatabaseID string
}

// ModelOps runs the model-independent commands against one registered
// model.
type ModelOps interface {
	Name() string
	PageType(a *App) (*schema.PageType, error)
	SyncSchema(ctx context.Context, a *App, databaseID string, opts controller.SyncOptions) (*controller.SyncResult, error)
	Import(ctx context.Context, a *App, target Target, records []map[string]any) (int, error)
	Export(ctx context.Context, a *App, source Target) ([]map[string]any, error)
}

type modelOps[T models.Record] struct {
	model *models.Model[T]
}

var registeredOps = []ModelOps{
	modelOps[*models.Element]{models.ElementModel},
	modelOps[*models.Requirement]{models.RequirementModel},
	modelOps[*models.Relationship]{models.RelationshipModel},
	modelOps[*models.Document]{models.DocumentModel},
	modelOps[*models.DocumentSection]{models.DocumentSectionModel},
}

// OpsFor finds the operations of a registered model by any spelling
// models.Lookup accepts.
func OpsFor(name string) (ModelOps, error) {
	d, ok := models.Lookup(name)
	if !ok {
		return nil, utils.NewAppError(utils.CodeNotFound, fmt.Sprintf("unknown model %q", name), nil)
	}
	for _, ops := range registeredOps {
		if ops.Name() == d.Name() {
			return ops, nil
		}
	}
	return nil, utils.NewAppError(utils.CodeNotFound, fmt.Sprintf("unknown model %q", name), nil)
}

func (o modelOps[T]) Name() string {
	return o.model.Name()
}

func (o modelOps[T]) PageType(a *App) (*schema.PageType, error) {
	return a.Cache().GetPageType(o.model.Name(), func() (*schema.PageType, error) {
		return schema.MapModel(a.Mapper(), o.model)
	})
}

func (o modelOps[T]) SyncSchema(ctx context.Context, a *App, databaseID string, opts controller.SyncOptions) (*controller.SyncResult, error) {
	c, err := NotionControllerFor(a, o.model, databaseID)
	if err != nil {
		return nil, err
	}
	return c.SyncSchema(ctx, opts)
}

func (o modelOps[T]) open(ctx context.Context, a *App, target Target) (controller.Controller[T], error) {
	switch target.Backend {
	case TargetCollection, "":
		return CollectionControllerFor(ctx, a, o.model)
	case TargetNotion:
		c, err := NotionControllerFor(a, o.model, target.DatabaseID)
		if err != nil {
			return nil, err
		}
		// bind renamed columns without creating any
		if _, err := c.SyncSchema(ctx, controller.SyncOptions{}); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, utils.NewValidationError(fmt.Sprintf("unknown target %q", target.Backend), nil)
	}
}

// Import creates every record and returns how many were stored. It stops
// at the first failure.
func (o modelOps[T]) Import(ctx context.Context, a *App, target Target, records []map[string]any) (int, error) {
	c, err := o.open(ctx, a, target)
	if err != nil {
		return 0, err
	}
	for i, rec := range records {
		if _, err := c.Create(ctx, rec); err != nil {
			return i, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return len(records), nil
}

func (o modelOps[T]) Export(ctx context.Context, a *App, source Target) ([]map[string]any, error) {
	c, err := o.open(ctx, a, source)
	if err != nil {
		return nil, err
	}
	out := []map[string]any{}
	for item, err := range c.All(ctx) {
		if err != nil {
			return nil, err
		}
		fields, err := o.model.Dump(item)
		if err != nil {
			return nil, err
		}
		out = append(out, fields)
	}
	return out, nil
}
