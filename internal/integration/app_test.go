package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumandas0/notionmbse/config"
	"github.com/sumandas0/notionmbse/internal/controller"
	"github.com/sumandas0/notionmbse/internal/notion/notiontest"
	"github.com/sumandas0/notionmbse/internal/observability"
	"github.com/sumandas0/notionmbse/pkg/utils"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Logging = observability.LoggingConfig{Level: observability.LogLevelError, Format: observability.LogFormatJSON, Output: "stderr"}
	cfg.Metrics.Enabled = false
	cfg.Notion.Token = ""
	cfg.Notion.DatabaseID = ""
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	obs, err := NewObservabilityManager(cfg.Tracing, cfg.Logging, cfg.Metrics, BuildInfo{Version: "test"})
	require.NoError(t, err)
	a := NewApp(cfg, obs, opts...)
	t.Cleanup(func() {
		_ = a.Close()
		_ = obs.Shutdown(context.Background())
	})
	return a
}

func TestOpsFor(t *testing.T) {
	ops, err := OpsFor("document-section")
	require.NoError(t, err)
	assert.Equal(t, "DocumentSection", ops.Name())

	_, err = OpsFor("widget")
	assert.True(t, utils.IsNotFound(err))
}

func TestCollectionName(t *testing.T) {
	a := newTestApp(t, testConfig(t))
	assert.Equal(t, "elements", a.CollectionName("Element"))
	assert.Equal(t, "requirements", a.CollectionName("Requirement"))
	assert.Equal(t, "document_sections", a.CollectionName("DocumentSection"))
}

func TestImportExportCollection(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testConfig(t))
	ops, err := OpsFor("element")
	require.NoError(t, err)

	n, err := ops.Import(ctx, a, Target{Backend: TargetCollection}, []map[string]any{
		{"name": "Pump", "tags": []any{"fluid"}},
		{"name": "Valve"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	out, err := ops.Export(ctx, a, Target{Backend: TargetCollection})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Pump", out[0]["name"])

	n, err = ops.Import(ctx, a, Target{Backend: TargetCollection}, []map[string]any{{"name": "ok"}, {"tags": 3}})
	assert.Error(t, err)
	assert.Equal(t, 1, n)

	_, err = ops.Export(ctx, a, Target{Backend: "ftp"})
	assert.True(t, utils.IsValidation(err))
}

func TestNotionWorkflow(t *testing.T) {
	ctx := context.Background()
	srv := notiontest.NewServer(t)
	dbID := srv.AddDatabase("Elements", nil)

	cfg := testConfig(t)
	cfg.Notion.DatabaseID = dbID
	a := newTestApp(t, cfg, WithNotionAPI(srv.Client(t)))

	ops, err := OpsFor("Element")
	require.NoError(t, err)

	result, err := ops.SyncSchema(ctx, a, "", controller.SyncOptions{CreateMissing: true})
	require.NoError(t, err)
	assert.Contains(t, result.Created, "status")
	assert.Equal(t, "Name", result.Columns["name"])

	n, err := ops.Import(ctx, a, Target{Backend: TargetNotion}, []map[string]any{
		{"name": "Pump", "status": "Draft"},
		{"name": "Valve", "documentation": "Controls flow."},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, srv.LivePages(dbID))

	out, err := ops.Export(ctx, a, Target{Backend: TargetNotion})
	require.NoError(t, err)
	require.Len(t, out, 2)
	names := []any{out[0]["name"], out[1]["name"]}
	assert.ElementsMatch(t, []any{"Pump", "Valve"}, names)

	pt, err := ops.PageType(a)
	require.NoError(t, err)
	assert.Equal(t, "NotionElement", pt.Name())
}

func TestNotionRequiresConfiguration(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	_, err := a.NotionAPI()
	assert.True(t, utils.IsConfiguration(err))

	_, err = a.DatabaseID("")
	assert.True(t, utils.IsConfiguration(err))

	id, err := a.DatabaseID("override")
	require.NoError(t, err)
	assert.Equal(t, "override", id)
}

func TestMigrateSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Backend.Type = config.BackendSQLite
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "mbse.db")
	a := newTestApp(t, cfg)

	_, err := a.Migrate(ctx)
	require.NoError(t, err)

	ops, err := OpsFor("requirement")
	require.NoError(t, err)
	_, err = ops.Import(ctx, a, Target{}, []map[string]any{{"name": "Shall pump"}})
	require.NoError(t, err)
	out, err := ops.Export(ctx, a, Target{})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestAppRouterServesHealth(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, testConfig(t))
	checker, err := a.HealthChecker(ctx)
	require.NoError(t, err)
	router, err := a.Router(ctx, checker)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.SetupRoutes().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
