package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumandas0/notionmbse/internal/notion/notiontest"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: dev")
}

func TestSchemaCommand(t *testing.T) {
	t.Setenv("MBSE_LOGGING_LEVEL", "error")

	out, err := run(t, "schema", "element", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "name: NotionElement")
	assert.Contains(t, out, "Sub-Type")

	_, err = run(t, "schema", "widget")
	assert.Error(t, err)
}

func TestImportExportCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MBSE_LOGGING_LEVEL", "error")
	t.Setenv("MBSE_BACKEND_TYPE", "sqlite")
	t.Setenv("MBSE_SQLITE_PATH", filepath.Join(dir, "mbse.db"))

	input := filepath.Join(dir, "elements.yaml")
	require.NoError(t, os.WriteFile(input, []byte("- name: Pump\n  tags: [fluid]\n- name: Valve\n"), 0o600))

	_, err := run(t, "import", "element", input)
	require.NoError(t, err)

	output := filepath.Join(dir, "out.json")
	_, err = run(t, "export", "element", "--output", output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "Pump"`)
	assert.Contains(t, string(data), `"name": "Valve"`)
}

func TestMigrateCommand(t *testing.T) {
	t.Setenv("MBSE_LOGGING_LEVEL", "error")
	t.Setenv("MBSE_BACKEND_TYPE", "sqlite")
	t.Setenv("MBSE_SQLITE_PATH", filepath.Join(t.TempDir(), "mbse.db"))

	_, err := run(t, "migrate")
	require.NoError(t, err)
}

func TestNotionCommands(t *testing.T) {
	srv := notiontest.NewServer(t)
	dbID := srv.AddDatabase("Elements", nil)

	dir := t.TempDir()
	t.Setenv("MBSE_LOGGING_LEVEL", "error")
	t.Setenv("MBSE_NOTION_TOKEN", notiontest.Token)
	t.Setenv("MBSE_NOTION_BASE_URL", srv.URL+"/v1")
	t.Setenv("MBSE_NOTION_DATABASE_ID", dbID)
	t.Setenv("MBSE_NOTION_RATE_LIMIT", "100")

	out, err := run(t, "sync-schema", "element", "--create-missing")
	require.NoError(t, err)
	assert.Contains(t, out, `"created"`)
	db, ok := srv.Database(dbID)
	require.True(t, ok)
	assert.Contains(t, db.Properties, "Status")

	input := filepath.Join(dir, "elements.json")
	require.NoError(t, os.WriteFile(input, []byte(`[{"name":"Pump","status":"Draft"}]`), 0o600))
	_, err = run(t, "import", "element", input, "--target", "notion")
	require.NoError(t, err)
	assert.Equal(t, 1, srv.LivePages(dbID))

	out, err = run(t, "export", "element", "--source", "notion", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "name: Pump")
	assert.Contains(t, out, "status: Draft")
}

func TestReadRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"Pump"}]`), 0o600))

	records, err := readRecords(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Pump", records[0]["name"])

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: not a list"), 0o600))
	_, err = readRecords(bad)
	assert.Error(t, err)
}

func TestEncodeRejectsUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, encode(&buf, "toml", map[string]any{}))
}
