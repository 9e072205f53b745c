package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumandas0/notionmbse/internal/notion"
	"github.com/sumandas0/notionmbse/pkg/utils"
)

func partType(t *testing.T) *PageType {
	t.Helper()
	pt, err := MapSchema(map[string]any{
		"type":  "object",
		"title": "Part",
		"properties": map[string]any{
			"name":        map[string]any{"type": "string", "title": "Name"},
			"description": map[string]any{"type": "string", "title": "Description"},
			"status":      map[string]any{"type": "string"},
			"tags":        map[string]any{"type": "array"},
			"mass":        map[string]any{"type": "number", "title": "Mass"},
			"flight":      map[string]any{"type": "boolean", "title": "Flight"},
			"due":         map[string]any{"anyOf": []any{map[string]any{"type": "string", "format": "date-time"}, map[string]any{"type": "null"}}, "title": "Due"},
			"owner":       map[string]any{"anyOf": []any{map[string]any{"type": "string"}, map[string]any{"type": "null"}}, "title": "Owner"},
			"link":        map[string]any{"type": "string"},
		},
	})
	require.NoError(t, err)
	return pt
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	pt := partType(t)

	fields := map[string]any{
		"name":        "Pump",
		"description": "Moves fluid",
		"status":      "Draft",
		"tags":        []any{"fluid", "core"},
		"mass":        12.5,
		"flight":      true,
		"due":         "2024-05-17T08:30:15Z",
		"owner":       nil,
		"link":        "https://example.com/pump",
		"id":          "ignored",
	}

	props, err := pt.Encode(fields)
	require.NoError(t, err)
	assert.NotContains(t, props, "ID")
	assert.Equal(t, notion.TypeTitle, props["Name"].Type)
	assert.Equal(t, "Draft", props["Status"].Select.Name)
	assert.Equal(t, "https://example.com/pump", *props["URL"].URL)
	require.NotNil(t, props["Due"].Date)
	assert.Equal(t, "2024-05-17T08:30:15Z", props["Due"].Date.Start)

	decoded := pt.Decode(props)
	assert.Equal(t, "Pump", decoded["name"])
	assert.Equal(t, "Moves fluid", decoded["description"])
	assert.Equal(t, "Draft", decoded["status"])
	assert.Equal(t, []string{"fluid", "core"}, decoded["tags"])
	assert.Equal(t, 12.5, decoded["mass"])
	assert.Equal(t, true, decoded["flight"])
	assert.Equal(t, "2024-05-17T08:30:15Z", decoded["due"])
	assert.Nil(t, decoded["owner"])
	assert.Equal(t, "https://example.com/pump", decoded["link"])
}

func TestEncodeEmptyValues(t *testing.T) {
	pt := partType(t)

	props, err := pt.Encode(map[string]any{"status": "", "mass": nil, "description": nil, "tags": nil})
	require.NoError(t, err)
	assert.Nil(t, props["Status"].Select)
	assert.Nil(t, props["Mass"].Number)
	assert.Empty(t, props["Description"].RichText)
	assert.NotNil(t, props["Tags"].MultiSelect)

	decoded := pt.Decode(props)
	assert.Equal(t, "", decoded["status"])
	assert.Nil(t, decoded["mass"])
}

func TestEncodeRejectsMismatchedValues(t *testing.T) {
	pt := partType(t)

	_, err := pt.Encode(map[string]any{"mass": "heavy"})
	require.Error(t, err)
	assert.True(t, utils.IsValidation(err))

	_, err = pt.Encode(map[string]any{"flight": "yes"})
	assert.True(t, utils.IsValidation(err))
}

func TestRichTextIsChunked(t *testing.T) {
	pt := partType(t)
	long := strings.Repeat("a", 2*MaxRichTextLength+500)

	props, err := pt.Encode(map[string]any{"description": long})
	require.NoError(t, err)

	runs := props["Description"].RichText
	require.Len(t, runs, 3)
	assert.Len(t, runs[0].Text.Content, MaxRichTextLength)
	assert.Len(t, runs[2].Text.Content, 500)
	assert.Equal(t, long, pt.Decode(props)["description"])
}

func TestDecodeAcceptsStatusColumns(t *testing.T) {
	pt := partType(t)
	props := notion.Properties{
		"Status": {Type: notion.TypeStatus, Status: &notion.SelectOption{Name: "Done"}},
	}
	assert.Equal(t, "Done", pt.Decode(props)["status"])
}

func TestWithColumnNames(t *testing.T) {
	pt := partType(t)
	renamed := pt.WithColumnNames(map[string]string{"name": "Title", "mass": "Mass (kg)"})

	d, _ := renamed.Get("mass")
	assert.Equal(t, "Mass (kg)", d.Name)
	original, _ := pt.Get("mass")
	assert.Equal(t, "Mass", original.Name)

	props, err := renamed.Encode(map[string]any{"name": "Pump", "mass": 3.0})
	require.NoError(t, err)
	assert.Contains(t, props, "Title")
	assert.Contains(t, props, "Mass (kg)")

	field, ok := renamed.Field("Mass (kg)")
	require.True(t, ok)
	assert.Equal(t, "mass", field.Field)
}

func TestColumnsDefinitions(t *testing.T) {
	pt := partType(t)
	cols := pt.Columns()

	require.Contains(t, cols, "Name")
	assert.Equal(t, notion.TypeTitle, cols["Name"].Type)
	assert.Equal(t, notion.TypeSelect, cols["Status"].Type)
	assert.Equal(t, notion.TypeURL, cols["URL"].Type)
	assert.Len(t, cols, len(pt.Properties()))
}

func TestPageAccessors(t *testing.T) {
	pt := partType(t)
	page := pt.NewPage("abc", map[string]any{"name": "Pump", "unknown": 1})

	assert.Equal(t, "NotionPart(abc - Pump)", page.String())
	_, ok := page.Get("unknown")
	assert.False(t, ok)

	require.NoError(t, page.Set("mass", 2.0))
	assert.True(t, utils.IsValidation(page.Set("unknown", 1)))

	props, err := page.Properties()
	require.NoError(t, err)
	assert.Equal(t, 2.0, *props["Mass"].Number)

	back := pt.FromNotion(&notion.Page{ID: "abc", Properties: props})
	assert.Equal(t, "Pump", back.Values["name"])
}

func TestPageTypeString(t *testing.T) {
	pt, err := MapSchema(testSchema())
	require.NoError(t, err)
	assert.Equal(t,
		`NotionTestSchema{age: number("Age"), is_active: checkbox("Is Active"), name: title("Name"), tags: multi_select("Tags")}`,
		pt.String())
}
