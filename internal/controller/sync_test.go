package controller_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumandas0/notionmbse/internal/controller"
	"github.com/sumandas0/notionmbse/internal/models"
	"github.com/sumandas0/notionmbse/internal/notion"
	"github.com/sumandas0/notionmbse/internal/notion/notiontest"
	"github.com/sumandas0/notionmbse/internal/schema"
	"github.com/sumandas0/notionmbse/pkg/utils"
)

func unsynced(t *testing.T, columns map[string]notion.DatabaseProperty) (*notiontest.Server, string, *controller.NotionController[*models.Element]) {
	t.Helper()
	srv := notiontest.NewServer(t)
	dbID := srv.AddDatabase("Elements", columns)
	c, err := controller.NewNotionController(models.ElementModel, srv.Client(t), dbID)
	require.NoError(t, err)
	return srv, dbID, c
}

func TestSyncSchemaCreatesColumns(t *testing.T) {
	ctx := context.Background()
	srv, dbID, c := unsynced(t, nil)

	result, err := c.SyncSchema(ctx, controller.SyncOptions{CreateMissing: true})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"description", "status", "sub_type", "tags", "type", "version"}, result.Created)
	assert.Empty(t, result.Missing)
	assert.Empty(t, result.Renamed)
	assert.Equal(t, "Name", result.Columns["name"])
	assert.Equal(t, "Sub-Type", result.Columns["sub_type"])

	db, ok := srv.Database(dbID)
	require.True(t, ok)
	assert.Equal(t, notion.TypeSelect, db.Properties["Status"].Type)
	assert.Equal(t, notion.TypeMultiSelect, db.Properties["Tags"].Type)
	assert.Equal(t, notion.TypeRichText, db.Properties["Description"].Type)
	assert.NotContains(t, db.Properties, "Documentation")

	again, err := c.SyncSchema(ctx, controller.SyncOptions{CreateMissing: true})
	require.NoError(t, err)
	assert.Empty(t, again.Created, "second sync binds existing columns")
}

func TestSyncSchemaReportsMissing(t *testing.T) {
	_, _, c := unsynced(t, nil)

	result, err := c.SyncSchema(context.Background(), controller.SyncOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Created)
	assert.ElementsMatch(t, []string{"description", "status", "sub_type", "tags", "type", "version"}, result.Missing)
}

func TestSyncSchemaReusesSimilarColumns(t *testing.T) {
	ctx := context.Background()
	srv, dbID, c := unsynced(t, map[string]notion.DatabaseProperty{
		"Title":        {Type: notion.TypeTitle},
		"Descriptions": {Type: notion.TypeRichText},
		"Sub Type":     {Type: notion.TypeSelect},
		"Tag":          {Type: notion.TypeMultiSelect},
	})

	result, err := c.SyncSchema(ctx, controller.SyncOptions{CreateMissing: true})
	require.NoError(t, err)

	assert.Equal(t, "Title", result.Columns["name"])
	assert.Equal(t, map[string]string{"description": "Descriptions", "sub_type": "Sub Type"}, result.Renamed)
	assert.Contains(t, result.Created, "tags")

	e := models.NewElement("Pump")
	e.Description = "centrifugal"
	e.SubType = "Rotary"
	created, err := c.Create(ctx, e)
	require.NoError(t, err)

	pageID, _ := c.Index().PageID(created.ID)
	page, ok := srv.Page(pageID)
	require.True(t, ok)
	assert.Equal(t, "Pump", notion.PlainText(page.Properties["Title"].Title))
	assert.Equal(t, "centrifugal", notion.PlainText(page.Properties["Descriptions"].RichText))
	assert.Equal(t, "Rotary", page.Properties["Sub Type"].Select.Name)

	db, _ := srv.Database(dbID)
	assert.Contains(t, db.Properties, "Tags")
	assert.Contains(t, db.Properties, "Tag")
	assert.Equal(t, "centrifugal", created.Description)
}

func TestSyncSchemaThreshold(t *testing.T) {
	_, _, c := unsynced(t, map[string]notion.DatabaseProperty{
		"Descriptions": {Type: notion.TypeRichText},
	})

	result, err := c.SyncSchema(context.Background(), controller.SyncOptions{Threshold: 95})
	require.NoError(t, err)
	assert.Empty(t, result.Renamed)
	assert.Contains(t, result.Missing, "description")
}

func TestAddAndRemoveColumn(t *testing.T) {
	ctx := context.Background()
	srv, dbID, c := unsynced(t, nil)

	require.NoError(t, c.AddColumn(ctx, "Priority", schema.KindNumber))
	db, _ := srv.Database(dbID)
	assert.Equal(t, notion.TypeNumber, db.Properties["Priority"].Type)

	err := c.AddColumn(ctx, "Other", schema.KindTitle)
	assert.True(t, utils.IsValidation(err))
	err = c.AddColumn(ctx, "Other", schema.PropertyKind("formula"))
	assert.True(t, utils.IsValidation(err))

	require.NoError(t, c.RemoveColumn(ctx, "Priority"))
	db, _ = srv.Database(dbID)
	assert.NotContains(t, db.Properties, "Priority")

	err = c.RemoveColumn(ctx, "Priority")
	require.Error(t, err)
	assert.True(t, utils.IsBackend(err))
}

func TestCheckExists(t *testing.T) {
	ctx := context.Background()
	f := newNotionFixture(t, nil)
	f.create(t, models.NewElement("Pump"))

	exists, err := f.c.CheckExists(ctx, "Pump")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = f.c.CheckExists(ctx, "Valve")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPageTypeBindsColumnNames(t *testing.T) {
	_, _, c := unsynced(t, map[string]notion.DatabaseProperty{
		"Title": {Type: notion.TypeTitle},
	})

	pt, err := c.PageType(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "NotionElement", pt.Name())
	assert.Equal(t, "Title", pt.Title().Name)
}
