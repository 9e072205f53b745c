package controller

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/sumandas0/notionmbse/internal/notion"
	"github.com/sumandas0/notionmbse/internal/schema"
	"github.com/sumandas0/notionmbse/pkg/utils"
)

type SyncOptions struct {
	// CreateMissing adds a column for every field that matches none.
	CreateMissing bool
	// Threshold is the similarity an existing column name must exceed to
	// be reused. Zero means schema.DefaultMatchThreshold.
	Threshold int
}

// SyncResult describes how the model's fields landed on the database.
type SyncResult struct {
	// Columns maps every bound field to its column.
	Columns map[string]string `json:"columns"`
	// Renamed lists fields bound to a similarly named existing column.
	Renamed map[string]string `json:"renamed,omitempty"`
	Created []string          `json:"created,omitempty"`
	Missing []string          `json:"missing,omitempty"`
}

// SyncSchema binds the page type to the database columns. Fields whose
// column name exists are bound as is. The rest are fuzzy matched against
// the unclaimed columns and, when CreateMissing is set, created.
func (c *NotionController[T]) SyncSchema(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	var result *SyncResult
	err := c.obs.observe(ctx, "sync_schema", func(ctx context.Context) error {
		var err error
		result, err = c.syncSchema(ctx, opts)
		return err
	})
	return result, err
}

func (c *NotionController[T]) syncSchema(ctx context.Context, opts SyncOptions) (*SyncResult, error) {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = schema.DefaultMatchThreshold
	}

	db, err := c.api.RetrieveDatabase(ctx, c.databaseID)
	if err != nil {
		return nil, backendError(fmt.Sprintf("failed to retrieve database %s", c.databaseID), err)
	}

	result := &SyncResult{Columns: make(map[string]string), Renamed: make(map[string]string)}
	title := c.base.Title()
	if name, ok := db.TitleProperty(); ok {
		result.Columns[title.Field] = name
	}

	claimed := make(map[string]bool)
	for _, column := range result.Columns {
		claimed[column] = true
	}

	var unbound []schema.PropertyDescriptor
	for _, d := range c.base.Properties() {
		if d.Field == title.Field {
			continue
		}
		if _, ok := db.Properties[d.Name]; ok {
			result.Columns[d.Field] = d.Name
			claimed[d.Name] = true
			continue
		}
		unbound = append(unbound, d)
	}

	var free []string
	for _, name := range slices.Sorted(maps.Keys(db.Properties)) {
		if !claimed[name] && db.Properties[name].Type != notion.TypeTitle {
			free = append(free, name)
		}
	}
	wanted := make([]string, 0, len(unbound))
	for _, d := range unbound {
		wanted = append(wanted, d.Name)
	}
	similar := schema.PropertyMap(wanted, free, threshold)

	additions := make(map[string]*notion.DatabaseProperty)
	for _, d := range unbound {
		if column, ok := similar[d.Name]; ok {
			result.Columns[d.Field] = column
			result.Renamed[d.Field] = column
			continue
		}
		if !opts.CreateMissing {
			result.Missing = append(result.Missing, d.Field)
			continue
		}
		additions[d.Name] = d.Definition()
		result.Columns[d.Field] = d.Name
		result.Created = append(result.Created, d.Field)
	}

	if len(additions) > 0 {
		if db, err = c.api.UpdateDatabase(ctx, c.databaseID, notion.UpdateDatabaseRequest{Properties: additions}); err != nil {
			return nil, backendError(fmt.Sprintf("failed to add columns to database %s", c.databaseID), err)
		}
	}

	c.install(db, result.Columns)
	c.obs.logger.Info().
		Int("columns", len(result.Columns)).
		Strs("created", result.Created).
		Strs("missing", result.Missing).
		Msg("Synchronized database columns")
	return result, nil
}

// AddColumn adds a column of kind to the database.
func (c *NotionController[T]) AddColumn(ctx context.Context, name string, kind schema.PropertyKind) error {
	return c.obs.observe(ctx, "add_column", func(ctx context.Context) error {
		if !kind.IsValid() || kind == schema.KindTitle {
			return utils.NewValidationError(fmt.Sprintf("cannot add a %q column", kind), nil)
		}
		req := notion.UpdateDatabaseRequest{Properties: map[string]*notion.DatabaseProperty{
			name: {Name: name, Type: string(kind)},
		}}
		db, err := c.api.UpdateDatabase(ctx, c.databaseID, req)
		if err != nil {
			return backendError(fmt.Sprintf("failed to add column %s", name), err)
		}
		c.install(db, nil)
		return nil
	})
}

// RemoveColumn deletes a column and its values from every page.
func (c *NotionController[T]) RemoveColumn(ctx context.Context, name string) error {
	return c.obs.observe(ctx, "remove_column", func(ctx context.Context) error {
		req := notion.UpdateDatabaseRequest{Properties: map[string]*notion.DatabaseProperty{name: nil}}
		db, err := c.api.UpdateDatabase(ctx, c.databaseID, req)
		if err != nil {
			return backendError(fmt.Sprintf("failed to remove column %s", name), err)
		}
		c.install(db, nil)
		return nil
	})
}

// CheckExists reports whether a live page carries title in its title
// column.
func (c *NotionController[T]) CheckExists(ctx context.Context, title string) (bool, error) {
	var exists bool
	err := c.obs.observe(ctx, "check_exists", func(ctx context.Context) error {
		l, err := c.currentLayout(ctx)
		if err != nil {
			return err
		}
		pages, err := c.query(ctx, l, Query{l.pageType.Title().Field: title}, 1)
		exists = len(pages) > 0
		return err
	})
	return exists, err
}
