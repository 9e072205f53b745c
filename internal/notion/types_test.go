package notion

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertyValueMarshalAlwaysCarriesPayload(t *testing.T) {
	tests := []struct {
		name string
		in   PropertyValue
		want string
	}{
		{"empty title", PropertyValue{Type: TypeTitle}, `{"title":[],"type":"title"}`},
		{"cleared select", PropertyValue{Type: TypeSelect}, `{"select":null,"type":"select"}`},
		{"checkbox", PropertyValue{Type: TypeCheckbox, Checkbox: true}, `{"checkbox":true,"type":"checkbox"}`},
		{"multi select", PropertyValue{Type: TypeMultiSelect, MultiSelect: []SelectOption{{Name: "a"}}}, `{"multi_select":[{"name":"a"}],"type":"multi_select"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.in)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestPropertyValueMarshalRequiresType(t *testing.T) {
	_, err := json.Marshal(PropertyValue{})
	assert.Error(t, err)
}

func TestPropertyValueUnmarshal(t *testing.T) {
	raw := `{
		"Name": {"id": "title", "type": "title", "title": [{"type": "text", "text": {"content": "Pump"}, "plain_text": "Pump"}]},
		"Status": {"id": "s1", "type": "status", "status": {"name": "Done"}},
		"Score": {"id": "n1", "type": "number", "number": null},
		"Rollup": {"id": "r1", "type": "rollup", "rollup": {"type": "number", "number": 3}}
	}`

	var props Properties
	require.NoError(t, json.Unmarshal([]byte(raw), &props))

	assert.Equal(t, "Pump", PlainText(props["Name"].Title))
	require.NotNil(t, props["Status"].Status)
	assert.Equal(t, "Done", props["Status"].Status.Name)
	assert.Nil(t, props["Score"].Number)
	assert.Equal(t, "rollup", props["Rollup"].Type)
}

func TestDatabasePropertyMarshal(t *testing.T) {
	data, err := json.Marshal(DatabaseProperty{Name: "Priority", Type: TypeRichText})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Priority","type":"rich_text","rich_text":{}}`, string(data))

	data, err = json.Marshal(DatabaseProperty{Name: "Renamed"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Renamed"}`, string(data))

	req := UpdateDatabaseRequest{Properties: map[string]*DatabaseProperty{"Old": nil}}
	data, err = json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"properties":{"Old":null}}`, string(data))
}

func TestDatabasePropertyUnmarshalKeepsConfig(t *testing.T) {
	var dp DatabaseProperty
	require.NoError(t, json.Unmarshal([]byte(`{"id":"x","name":"Kind","type":"select","select":{"options":[{"name":"A"}]}}`), &dp))
	assert.Equal(t, "Kind", dp.Name)
	assert.Equal(t, TypeSelect, dp.Type)
	assert.Contains(t, dp.Config, "options")
}

func TestDatabaseTitleProperty(t *testing.T) {
	db := Database{Properties: map[string]DatabaseProperty{
		"Title":  {Type: TypeTitle},
		"Status": {Type: TypeSelect},
	}}
	name, ok := db.TitleProperty()
	assert.True(t, ok)
	assert.Equal(t, "Title", name)
}

func TestBlockRoundTrip(t *testing.T) {
	block := ParagraphBlock("hello")
	data, err := json.Marshal(block)
	require.NoError(t, err)

	var decoded Block
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "paragraph", decoded.Type)
	assert.Contains(t, string(decoded.Content["paragraph"]), "hello")
	assert.Equal(t, "hello", decoded.PlainText())

	divider := Block{Type: "divider"}
	assert.Empty(t, divider.PlainText())
}

func TestIDs(t *testing.T) {
	id, err := NormalizeID("1429989FE8AC4EFFBC8F57F56486DB54")
	require.NoError(t, err)
	assert.Equal(t, "1429989f-e8ac-4eff-bc8f-57f56486db54", id)

	id, err = ExtractIDFromURL("https://www.notion.so/acme/Requirements-1429989fe8ac4effbc8f57f56486db54?v=123")
	require.NoError(t, err)
	assert.Equal(t, "1429989f-e8ac-4eff-bc8f-57f56486db54", id)

	_, err = ExtractIDFromURL("https://www.notion.so/acme/nothing-here")
	assert.Error(t, err)

	assert.True(t, SameID("1429989fe8ac4effbc8f57f56486db54", "1429989F-E8AC-4EFF-BC8F-57F56486DB54"))
}
