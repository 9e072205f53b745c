package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumandas0/notionmbse/pkg/utils"
)

func TestModelDecode(t *testing.T) {
	id := NewObjectID()

	tests := []struct {
		name      string
		fields    map[string]any
		wantError bool
		check     func(t *testing.T, e *Element)
	}{
		{
			name:   "defaults fill missing fields",
			fields: map[string]any{"name": "valve"},
			check: func(t *testing.T, e *Element) {
				assert.Equal(t, "valve", e.Name)
				assert.False(t, e.ID.IsZero())
				assert.False(t, e.CreatedAt.IsZero())
			},
		},
		{
			name:   "explicit id and epoch timestamp",
			fields: map[string]any{"id": id.Hex(), "created_at": 1700000000.5, "tags": []any{"a"}},
			check: func(t *testing.T, e *Element) {
				assert.Equal(t, id, e.ID)
				assert.Equal(t, int64(1700000000500000), e.CreatedAt.UnixMicro())
				assert.Equal(t, []string{"a"}, e.Tags)
			},
		},
		{
			name:      "malformed id",
			fields:    map[string]any{"id": "not-an-id"},
			wantError: true,
		},
		{
			name:      "wrong field type",
			fields:    map[string]any{"tags": "single"},
			wantError: true,
		},
		{
			name:      "name too long",
			fields:    map[string]any{"name": string(make([]byte, 2001))},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ElementModel.Decode(tt.fields)
			if tt.wantError {
				require.Error(t, err)
				assert.True(t, utils.IsValidation(err))
				return
			}
			require.NoError(t, err)
			tt.check(t, e)
		})
	}
}

func TestRelationshipValidation(t *testing.T) {
	_, err := RelationshipModel.Decode(map[string]any{"type": "Association"})
	require.Error(t, err, "source_element_id is required")
	assert.True(t, utils.IsValidation(err))

	_, err = RelationshipModel.Decode(map[string]any{
		"type":              "Friendship",
		"source_element_id": NewObjectID().Hex(),
	})
	require.Error(t, err)
	assert.True(t, utils.IsValidation(err))

	r, err := RelationshipModel.Decode(map[string]any{
		"type":              "Composition",
		"source_element_id": NewObjectID().Hex(),
	})
	require.NoError(t, err)
	assert.Equal(t, RelationshipComposition, r.Type)
	assert.Nil(t, r.TargetElementID)
}

func TestModelCoerce(t *testing.T) {
	e := NewElement("motor")

	got, err := ElementModel.Coerce(e)
	require.NoError(t, err)
	assert.Same(t, e, got)

	got, err = ElementModel.Coerce(map[string]any{"name": "motor"})
	require.NoError(t, err)
	assert.Equal(t, "motor", got.Name)

	_, err = ElementModel.Coerce("motor")
	require.Error(t, err)
	assert.True(t, utils.IsValidation(err))

	_, err = ElementModel.Coerce((*Element)(nil))
	require.Error(t, err)
}

func TestModelCopy(t *testing.T) {
	src := NewDocument("Brief", DocumentRequirements)
	src.Summary = "top level"
	dst := NewDocument("", "")

	DocumentModel.Copy(dst, src)
	assert.Equal(t, src, dst)
}

func TestModelSchema(t *testing.T) {
	schema := ElementModel.Schema()

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, "Element", schema["title"])

	props := schema["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string", "format": "ObjectId", "title": "Id"}, props["id"])
	assert.Equal(t, map[string]any{"type": "string", "format": "date-time", "title": "Created At"}, props["created_at"])
	assert.Equal(t, "Sub Type", props["sub_type"].(map[string]any)["title"])

	modified := props["modified_at"].(map[string]any)
	anyOf := modified["anyOf"].([]any)
	require.Len(t, anyOf, 2)
	assert.Equal(t, map[string]any{"type": "null"}, anyOf[1])

	assert.Equal(t, []string{"id", "created_at"}, schema["required"])
}

func TestModelSchemaShadowedType(t *testing.T) {
	schema := RelationshipModel.Schema()
	props := schema["properties"].(map[string]any)

	typ := props["type"].(map[string]any)
	assert.Len(t, typ["enum"], 6)

	order := schema["x-order"].([]string)
	assert.Equal(t, "id", order[0])
	assert.Equal(t, "target_element_id", order[len(order)-1])
	assert.Equal(t, len(props), len(order))
}

func TestNormalizeQuery(t *testing.T) {
	id := NewObjectID()
	q, err := NormalizeQuery(map[string]any{"id": id, "count": 3})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": id.Hex(), "count": float64(3)}, q)

	q, err = NormalizeQuery(nil)
	require.NoError(t, err)
	assert.Empty(t, q)
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"Element", "element", "document_section", "Document-Section"} {
		d, ok := Lookup(name)
		require.True(t, ok, name)
		assert.NotEmpty(t, d.Schema()["properties"])
	}

	d, _ := Lookup("document_section")
	assert.Equal(t, "DocumentSection", d.Name())

	_, ok := Lookup("widget")
	assert.False(t, ok)
	assert.Len(t, Registered(), 5)
}
