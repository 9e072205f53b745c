package controller_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumandas0/notionmbse/internal/controller"
	"github.com/sumandas0/notionmbse/internal/models"
	"github.com/sumandas0/notionmbse/internal/notion"
	"github.com/sumandas0/notionmbse/internal/notion/notiontest"
	"github.com/sumandas0/notionmbse/pkg/utils"
)

type notionFixture struct {
	srv  *notiontest.Server
	dbID string
	c    *controller.NotionController[*models.Element]
}

func newNotionFixture(t *testing.T, columns map[string]notion.DatabaseProperty, opts ...controller.Option) *notionFixture {
	t.Helper()

	srv := notiontest.NewServer(t)
	dbID := srv.AddDatabase("Elements", columns)
	c, err := controller.NewNotionController(models.ElementModel, srv.Client(t), dbID, opts...)
	require.NoError(t, err)

	_, err = c.SyncSchema(context.Background(), controller.SyncOptions{CreateMissing: true})
	require.NoError(t, err)
	return &notionFixture{srv: srv, dbID: dbID, c: c}
}

func (f *notionFixture) create(t *testing.T, e *models.Element) *models.Element {
	t.Helper()
	created, err := f.c.Create(context.Background(), e)
	require.NoError(t, err)
	return created
}

func element(name, status string, tags ...string) *models.Element {
	e := models.NewElement(name)
	e.Status = status
	if tags != nil {
		e.Tags = tags
	}
	return e
}

func TestNewNotionControllerRejectsMalformedID(t *testing.T) {
	srv := notiontest.NewServer(t)
	_, err := controller.NewNotionController(models.ElementModel, srv.Client(t), "not-a-database")
	require.Error(t, err)
	assert.True(t, utils.IsInvalidIdentifier(err))
}

func TestNotionCreateAndRead(t *testing.T) {
	ctx := context.Background()
	f := newNotionFixture(t, nil)

	e := element("Pump", "Draft", "fluid", "rotating")
	e.Description = "centrifugal"
	e.Documentation = "line one\nline two"

	created := f.create(t, e)

	pageID, ok := f.c.Index().PageID(created.ID)
	require.True(t, ok)
	derived, err := controller.RecordID(pageID)
	require.NoError(t, err)
	assert.Equal(t, derived, created.ID)
	assert.NotEqual(t, e.ID, created.ID, "record id comes from the page")

	assert.Equal(t, "Pump", created.Name)
	assert.Equal(t, "centrifugal", created.Description)
	assert.Equal(t, []string{"fluid", "rotating"}, created.Tags)
	assert.Equal(t, "line one\nline two", created.Documentation)
	assert.Equal(t, f.srv.User().ID, created.CreatedBy)
	assert.Nil(t, created.ModifiedAt)

	page, ok := f.srv.Page(pageID)
	require.True(t, ok)
	assert.Equal(t, "Draft", page.Properties["Status"].Select.Name)

	got, found, err := f.c.Read(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, dump(t, created), dump(t, got))

	_, found, err = f.c.Read(ctx, models.NewObjectID())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNotionCreateRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	f := newNotionFixture(t, nil)

	_, err := f.c.Create(ctx, map[string]any{"tags": "not a list of tags", "id": 7})
	assert.True(t, utils.IsValidation(err))

	_, err = f.c.Create(ctx, 3.14)
	assert.True(t, utils.IsValidation(err))
	assert.Zero(t, f.srv.LivePages(f.dbID))
}

func TestNotionCreateBackendFailure(t *testing.T) {
	f := newNotionFixture(t, nil)

	f.srv.FailNext(http.StatusInternalServerError, notion.CodeInternalError)
	_, err := f.c.Create(context.Background(), element("Pump", ""))
	require.Error(t, err)
	assert.True(t, utils.IsBackend(err))
	assert.Zero(t, f.srv.LivePages(f.dbID))
}

func TestNotionCreateSkipsEmptyValuesWithoutColumns(t *testing.T) {
	ctx := context.Background()
	srv := notiontest.NewServer(t)
	dbID := srv.AddDatabase("Elements", nil)
	c, err := controller.NewNotionController(models.ElementModel, srv.Client(t), dbID)
	require.NoError(t, err)

	created, err := c.Create(ctx, models.NewElement("Pump"))
	require.NoError(t, err)
	assert.Equal(t, "Pump", created.Name)
	assert.Equal(t, 1, srv.LivePages(dbID))

	e := models.NewElement("Valve")
	e.Description = "needs a column"
	_, err = c.Create(ctx, e)
	require.Error(t, err)
	assert.True(t, utils.IsBackend(err))
	assert.Equal(t, 1, srv.LivePages(dbID))
}

func TestNotionGet(t *testing.T) {
	ctx := context.Background()
	f := newNotionFixture(t, nil)

	pump := f.create(t, element("Pump", "Draft"))
	f.create(t, element("Valve", "Approved"))
	pageID, _ := f.c.Index().PageID(pump.ID)

	t.Run("by title", func(t *testing.T) {
		got, found, err := f.c.Get(ctx, controller.Query{"name": "Pump"})
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, pump.ID, got.ID)
	})

	t.Run("by several fields", func(t *testing.T) {
		got, found, err := f.c.Get(ctx, controller.Query{"name": "Valve", "status": "Approved"})
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "Valve", got.Name)

		_, found, err = f.c.Get(ctx, controller.Query{"name": "Valve", "status": "Draft"})
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("by page id", func(t *testing.T) {
		got, found, err := f.c.Get(ctx, controller.Query{controller.QueryPageID: pageID})
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, pump.ID, got.ID)

		_, found, err = f.c.Get(ctx, controller.Query{controller.QueryPageID: pageID, "status": "Approved"})
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("by record id", func(t *testing.T) {
		got, found, err := f.c.Get(ctx, controller.Query{controller.QueryID: pump.ID.Hex()})
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "Pump", got.Name)
	})

	t.Run("native filter", func(t *testing.T) {
		filter := map[string]any{"property": "Name", "title": map[string]any{"contains": "alv"}}
		got, found, err := f.c.Get(ctx, controller.Query{controller.QueryFilter: filter})
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "Valve", got.Name)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, _, err := f.c.Get(ctx, controller.Query{"colour": "red"})
		require.Error(t, err)
		assert.True(t, utils.IsValidation(err))
	})
}

func TestNotionReadAll(t *testing.T) {
	ctx := context.Background()
	f := newNotionFixture(t, nil)

	f.create(t, element("a", "Draft", "fluid"))
	f.create(t, element("b", "Draft", "fluid", "electric"))
	f.create(t, element("c", "", "electric"))

	fluid, err := f.c.ReadAll(ctx, controller.Query{"tags": []string{"fluid"}}, 0)
	require.NoError(t, err)
	assert.Len(t, fluid, 2)

	both, err := f.c.ReadAll(ctx, controller.Query{"tags": []string{"fluid", "electric"}}, 0)
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "b", both[0].Name)

	unset, err := f.c.ReadAll(ctx, controller.Query{"status": nil}, 0)
	require.NoError(t, err)
	require.Len(t, unset, 1)
	assert.Equal(t, "c", unset[0].Name)

	limited, err := f.c.ReadAll(ctx, controller.Query{}, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "a", limited[0].Name)
	assert.Equal(t, "b", limited[1].Name)

	var names []string
	for e, err := range f.c.All(ctx) {
		require.NoError(t, err)
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)

	n, err := f.c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestNotionUpdate(t *testing.T) {
	ctx := context.Background()
	f := newNotionFixture(t, nil)

	e := element("Pump", "Draft")
	e.Description = "centrifugal"
	e.Documentation = "first draft"
	created := f.create(t, e)

	modified, err := f.c.Update(ctx, created)
	require.NoError(t, err)
	assert.False(t, modified, "unchanged record")

	created.Version = "2"
	created.Tags = []string{"fluid"}
	modified, err = f.c.Update(ctx, created)
	require.NoError(t, err)
	assert.True(t, modified)

	got, _, err := f.c.Read(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "2", got.Version)
	assert.Equal(t, []string{"fluid"}, got.Tags)
	require.NotNil(t, got.ModifiedAt)
	assert.True(t, got.ModifiedAt.After(got.CreatedAt.Time))
	assert.Equal(t, f.srv.User().ID, got.ModifiedBy)

	t.Run("clears emptied fields", func(t *testing.T) {
		got.Description = ""
		got.Documentation = ""
		modified, err := f.c.Update(ctx, got)
		require.NoError(t, err)
		assert.True(t, modified)

		cleared, _, err := f.c.Read(ctx, got.ID)
		require.NoError(t, err)
		assert.Empty(t, cleared.Description)
		assert.Empty(t, cleared.Documentation)
		assert.Equal(t, "Pump", cleared.Name)
	})

	t.Run("body only", func(t *testing.T) {
		got.Documentation = "rewritten\nbody"
		modified, err := f.c.Update(ctx, got)
		require.NoError(t, err)
		assert.True(t, modified)

		fresh, _, err := f.c.Read(ctx, got.ID)
		require.NoError(t, err)
		assert.Equal(t, "rewritten\nbody", fresh.Documentation)
	})

	t.Run("missing record", func(t *testing.T) {
		modified, err := f.c.Update(ctx, models.NewElement("ghost"))
		require.NoError(t, err)
		assert.False(t, modified)
	})
}

func TestNotionUpdateMany(t *testing.T) {
	ctx := context.Background()
	f := newNotionFixture(t, nil)

	f.create(t, element("a", "Draft"))
	f.create(t, element("b", "Draft"))
	f.create(t, element("c", "Approved"))

	modified, err := f.c.UpdateMany(ctx, controller.Query{"status": "Draft"}, map[string]any{"status": "Review", "version": "1"})
	require.NoError(t, err)
	assert.True(t, modified)

	review, err := f.c.ReadAll(ctx, controller.Query{"status": "Review"}, 0)
	require.NoError(t, err)
	require.Len(t, review, 2)
	for _, e := range review {
		assert.Equal(t, "1", e.Version)
	}

	modified, err = f.c.UpdateMany(ctx, controller.Query{"status": "Review"}, map[string]any{"version": "1"})
	require.NoError(t, err)
	assert.False(t, modified)

	modified, err = f.c.UpdateMany(ctx, controller.Query{"name": "c"}, map[string]any{"documentation": "notes"})
	require.NoError(t, err)
	assert.True(t, modified)
	c, found, err := f.c.Get(ctx, controller.Query{"name": "c"})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "notes", c.Documentation)

	_, err = f.c.UpdateMany(ctx, controller.Query{}, map[string]any{"colour": "red"})
	assert.True(t, utils.IsValidation(err))
}

func TestNotionDelete(t *testing.T) {
	ctx := context.Background()
	f := newNotionFixture(t, nil)

	a := f.create(t, element("a", ""))
	b := f.create(t, element("b", "Obsolete"))
	c := f.create(t, element("c", ""))

	deleted, err := f.c.Delete(ctx, a)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = f.c.Delete(ctx, a)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = f.c.Delete(ctx, controller.Query{"status": "Obsolete"})
	require.NoError(t, err)
	assert.True(t, deleted)
	_, found, err := f.c.Read(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, found)

	deleted, err = f.c.Delete(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Zero(t, f.srv.LivePages(f.dbID))

	_, err = f.c.Delete(ctx, "c")
	assert.True(t, utils.IsValidation(err))
}

func TestNotionDeleteAll(t *testing.T) {
	ctx := context.Background()
	f := newNotionFixture(t, nil)

	f.create(t, element("a", ""))
	f.create(t, element("b", ""))

	deleted, err := f.c.DeleteAll(ctx)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Zero(t, f.srv.LivePages(f.dbID))

	deleted, err = f.c.DeleteAll(ctx)
	require.NoError(t, err)
	assert.False(t, deleted)

	n, err := f.c.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNotionRefresh(t *testing.T) {
	ctx := context.Background()
	f := newNotionFixture(t, nil)

	created := f.create(t, element("Pump", "Draft"))
	stale := created.Clone()

	created.Status = "Approved"
	_, err := f.c.Update(ctx, created)
	require.NoError(t, err)

	found, err := f.c.Refresh(ctx, stale)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Approved", stale.Status)
	assert.NotNil(t, stale.ModifiedAt)
}

func TestNotionPagesSurviveRestart(t *testing.T) {
	ctx := context.Background()
	f := newNotionFixture(t, nil)
	created := f.create(t, element("Pump", ""))

	other, err := controller.NewNotionController(models.ElementModel, f.srv.Client(t), f.dbID)
	require.NoError(t, err)

	got, found, err := other.Read(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Pump", got.Name)
	assert.Equal(t, 1, other.Index().Len())
}

func TestNotionStatusColumn(t *testing.T) {
	ctx := context.Background()
	f := newNotionFixture(t, map[string]notion.DatabaseProperty{
		"Status": {Type: notion.TypeStatus},
	})

	created := f.create(t, element("Pump", "In progress"))
	pageID, _ := f.c.Index().PageID(created.ID)
	page, _ := f.srv.Page(pageID)
	require.NotNil(t, page.Properties["Status"].Status)
	assert.Equal(t, "In progress", page.Properties["Status"].Status.Name)

	got, found, err := f.c.Get(ctx, controller.Query{"status": "In progress"})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "In progress", got.Status)
}

func TestNotionControllerMetrics(t *testing.T) {
	rec := &operationRecorder{}
	f := newNotionFixture(t, nil, controller.WithMetrics(rec))

	f.create(t, element("Pump", ""))
	assert.Equal(t, 1, rec.count("notion/Element/sync_schema/success"))
	assert.Equal(t, 1, rec.count("notion/Element/create/success"))
	assert.Contains(t, f.c.String(), "NotionController(db_id="+f.c.DatabaseID())
}
