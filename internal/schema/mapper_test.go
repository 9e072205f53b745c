package schema

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumandas0/notionmbse/internal/models"
	"github.com/sumandas0/notionmbse/pkg/utils"
)

func testSchema() map[string]any {
	return map[string]any{
		"type":  "object",
		"title": "TestSchema",
		"properties": map[string]any{
			"name":      map[string]any{"type": "string", "title": "Name"},
			"age":       map[string]any{"type": "number", "title": "Age"},
			"is_active": map[string]any{"type": "boolean", "title": "Is Active"},
			"tags":      map[string]any{"type": "array", "title": "Tags"},
		},
	}
}

func TestMapSchemaRejectsInvalidStructure(t *testing.T) {
	tests := []struct {
		name        string
		schema      map[string]any
		requirement string
	}{
		{"not an object", map[string]any{"type": "array", "title": "X", "properties": map[string]any{"a": map[string]any{}}}, RequirementObject},
		{"missing type", map[string]any{"title": "X"}, RequirementObject},
		{"no title", map[string]any{"type": "object"}, RequirementTitle},
		{"no properties", map[string]any{"type": "object", "title": "X"}, RequirementProperties},
		{"empty properties", map[string]any{"type": "object", "title": "X", "properties": map[string]any{}}, RequirementNonEmptyProperties},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pt, err := MapSchema(tt.schema)
			require.Error(t, err)
			assert.Nil(t, pt)
			assert.True(t, utils.IsSchema(err))

			var appErr *utils.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.requirement, appErr.Details["requirement"])
		})
	}
}

func TestMapSchemaEndToEnd(t *testing.T) {
	pt, err := MapSchema(testSchema())
	require.NoError(t, err)

	assert.Equal(t, "NotionTestSchema", pt.Name())

	expected := map[string]PropertyKind{
		"name":      KindTitle,
		"age":       KindNumber,
		"is_active": KindCheckbox,
		"tags":      KindMultiSelect,
	}
	require.Len(t, pt.Properties(), len(expected))
	for field, kind := range expected {
		d, ok := pt.Get(field)
		require.True(t, ok, field)
		assert.Equal(t, kind, d.Kind, field)
	}

	age, _ := pt.Get("age")
	assert.Equal(t, "Age", age.Name)
	assert.Equal(t, "name", pt.Title().Field)
}

func TestSpecialFieldsTakePrecedence(t *testing.T) {
	schema := map[string]any{
		"type":  "object",
		"title": "Part",
		"properties": map[string]any{
			"status":   map[string]any{"type": "string", "title": "Status"},
			"sub_type": map[string]any{"type": "string", "title": "Sub Type"},
			"website":  map[string]any{"type": "string", "title": "Site"},
			"tags":     map[string]any{"type": "string", "title": "Labels"},
		},
	}

	pt, err := MapSchema(schema)
	require.NoError(t, err)

	status, _ := pt.Get("status")
	assert.Equal(t, KindSelect, status.Kind)

	subType, _ := pt.Get("sub_type")
	assert.Equal(t, KindSelect, subType.Kind)
	assert.Equal(t, "Sub-Type", subType.Name)

	website, _ := pt.Get("website")
	assert.Equal(t, KindURL, website.Kind)
	assert.Equal(t, "Website", website.Name)

	tags, _ := pt.Get("tags")
	assert.Equal(t, KindMultiSelect, tags.Kind)
	assert.Equal(t, "Tags", tags.Name)
}

func TestSpecialFieldsMatchExactName(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"title":      "Part",
		"properties": map[string]any{"Status": map[string]any{"type": "string", "title": "Status"}},
	}

	pt, err := MapSchema(schema)
	require.NoError(t, err)
	d, _ := pt.Get("Status")
	assert.Equal(t, KindRichText, d.Kind)
}

func TestSkipFieldsAreOmitted(t *testing.T) {
	schema := map[string]any{
		"type":  "object",
		"title": "Part",
		"properties": map[string]any{
			"id":          map[string]any{"type": "string", "format": "ObjectId"},
			"created_at":  map[string]any{"type": "string", "format": "date-time"},
			"ref_ids":     map[string]any{"type": "array"},
			"Modified_By": map[string]any{"type": "string"},
			"mass":        map[string]any{"type": "number", "title": "Mass"},
		},
	}

	pt, err := MapSchema(schema)
	require.NoError(t, err)

	for _, field := range []string{"id", "created_at", "ref_ids", "Modified_By"} {
		_, ok := pt.Get(field)
		assert.False(t, ok, field)
	}
	_, ok := pt.Get("mass")
	assert.True(t, ok)
}

func TestTypeResolution(t *testing.T) {
	tests := []struct {
		name     string
		field    map[string]any
		kind     PropertyKind
		nullable bool
	}{
		{"string", map[string]any{"type": "string"}, KindRichText, false},
		{"integer", map[string]any{"type": "integer"}, KindNumber, false},
		{"date-time format", map[string]any{"type": "string", "format": "date-time"}, KindDate, false},
		{"object id format", map[string]any{"type": "string", "format": "ObjectId"}, KindRichText, false},
		{"unknown falls back", map[string]any{"type": "object"}, KindRichText, false},
		{"missing type", map[string]any{}, KindRichText, false},
		{"nullable number", map[string]any{"anyOf": []any{map[string]any{"type": "number"}, map[string]any{"type": "null"}}}, KindNumber, true},
		{"nullable date", map[string]any{"anyOf": []any{map[string]any{"type": "string", "format": "date-time"}, map[string]any{"type": "null"}}}, KindDate, true},
		{"ambiguous union", map[string]any{"anyOf": []any{map[string]any{"type": "number"}, map[string]any{"type": "boolean"}}}, KindRichText, false},
		{"type list", map[string]any{"type": []any{"boolean", "null"}}, KindCheckbox, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pt, err := MapSchema(map[string]any{
				"type":       "object",
				"title":      "T",
				"properties": map[string]any{"value": tt.field},
			})
			require.NoError(t, err)

			d, ok := pt.Get("value")
			require.True(t, ok)
			assert.Equal(t, tt.kind, d.Kind)
			assert.Equal(t, tt.nullable, d.Nullable)
			assert.Equal(t, "Value", d.Name)
		})
	}
}

func TestBaseTitleIsAlwaysPresent(t *testing.T) {
	pt, err := MapSchema(map[string]any{
		"type":       "object",
		"title":      "Link",
		"properties": map[string]any{"weight": map[string]any{"type": "number"}},
	})
	require.NoError(t, err)

	title := pt.Title()
	assert.Equal(t, "name", title.Field)
	assert.Equal(t, "Name", title.Name)
	assert.Equal(t, KindTitle, title.Kind)
}

func TestColumnCollisionsAreRejected(t *testing.T) {
	tests := map[string]map[string]any{
		"field titled like the base title": {
			"Name": map[string]any{"type": "string", "title": "Name"},
		},
		"two fields with one title": {
			"mass":   map[string]any{"type": "number", "title": "Mass"},
			"weight": map[string]any{"type": "number", "title": "Mass"},
		},
	}
	for name, props := range tests {
		t.Run(name, func(t *testing.T) {
			pt, err := MapSchema(map[string]any{"type": "object", "title": "Part", "properties": props})
			require.Error(t, err)
			assert.Nil(t, pt)
			assert.True(t, utils.IsSchema(err))
			assert.Contains(t, err.Error(), "both map to column")
		})
	}
}

func TestMapElementModel(t *testing.T) {
	pt, err := MapModel(NewMapper(), models.ElementModel)
	require.NoError(t, err)

	assert.Equal(t, "NotionElement", pt.Name())

	fields := map[string]PropertyKind{}
	for _, d := range pt.Properties() {
		fields[d.Field] = d.Kind
	}
	assert.Equal(t, map[string]PropertyKind{
		"name":        KindTitle,
		"description": KindRichText,
		"version":     KindRichText,
		"tags":        KindMultiSelect,
		"type":        KindSelect,
		"sub_type":    KindSelect,
		"status":      KindSelect,
	}, fields)
}

func TestMapRelationshipModel(t *testing.T) {
	pt, err := MapModel(NewMapper(), models.RelationshipModel)
	require.NoError(t, err)

	target, ok := pt.Get("target_element_id")
	require.True(t, ok)
	assert.Equal(t, KindRichText, target.Kind)
	assert.True(t, target.Nullable)

	typ, _ := pt.Get("type")
	assert.Equal(t, KindSelect, typ.Kind)
}

type recorder struct {
	mapped []string
	errors []string
}

func (r *recorder) RecordPageTypeMapped(name string) { r.mapped = append(r.mapped, name) }
func (r *recorder) RecordSchemaError(req string)    { r.errors = append(r.errors, req) }

func TestMapperReportsOutcomes(t *testing.T) {
	var buf bytes.Buffer
	rec := &recorder{}
	m := NewMapper(WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)), WithMetrics(rec))

	_, err := m.Map(map[string]any{
		"type":  "object",
		"title": "Part",
		"properties": map[string]any{
			"id":   map[string]any{"type": "string"},
			"name": map[string]any{"type": "string"},
		},
	})
	require.NoError(t, err)

	_, err = m.Map(map[string]any{"type": "object"})
	require.Error(t, err)

	assert.Equal(t, []string{"NotionPart"}, rec.mapped)
	assert.Equal(t, []string{RequirementTitle}, rec.errors)
	assert.Contains(t, buf.String(), "Skipping field")
}
