package schema

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/sumandas0/notionmbse/internal/notion"
	"github.com/sumandas0/notionmbse/pkg/utils"
)

// baseTitle is the title column every page type carries.
var baseTitle = PropertyDescriptor{Field: "name", Name: "Name", Kind: KindTitle}

// PageType is a synthesized record type: the schema title plus one
// descriptor per mapped field. It is immutable once built.
type PageType struct {
	title string
	props map[string]PropertyDescriptor
}

func newPageType(title string) *PageType {
	return &PageType{title: title, props: make(map[string]PropertyDescriptor)}
}

func (pt *PageType) add(d PropertyDescriptor) {
	pt.props[d.Field] = d
}

func (pt *PageType) ensureTitle() {
	for _, d := range pt.props {
		if d.Kind == KindTitle {
			return
		}
	}
	pt.props[baseTitle.Field] = baseTitle
}

// checkColumns rejects two fields bound to one column, including a field
// whose title collides with the base title column.
func (pt *PageType) checkColumns() error {
	owners := make(map[string]string, len(pt.props))
	for _, d := range pt.Properties() {
		if other, ok := owners[d.Name]; ok {
			return utils.NewSchemaError(RequirementUniqueColumns,
				fmt.Sprintf("fields %s and %s both map to column %q", other, d.Field, d.Name))
		}
		owners[d.Name] = d.Field
	}
	return nil
}

// Name is "Notion" followed by the schema title.
func (pt *PageType) Name() string {
	return "Notion" + pt.title
}

func (pt *PageType) SchemaTitle() string {
	return pt.title
}

func (pt *PageType) Get(field string) (PropertyDescriptor, bool) {
	d, ok := pt.props[field]
	return d, ok
}

// Properties lists the descriptors ordered by field name.
func (pt *PageType) Properties() []PropertyDescriptor {
	out := slices.Collect(maps.Values(pt.props))
	slices.SortFunc(out, func(a, b PropertyDescriptor) int { return strings.Compare(a.Field, b.Field) })
	return out
}

// Title returns the descriptor stored in the title column.
func (pt *PageType) Title() PropertyDescriptor {
	for _, d := range pt.Properties() {
		if d.Kind == KindTitle {
			return d
		}
	}
	return baseTitle
}

// Columns returns the column definitions keyed by column name.
func (pt *PageType) Columns() map[string]*notion.DatabaseProperty {
	cols := make(map[string]*notion.DatabaseProperty, len(pt.props))
	for _, d := range pt.props {
		cols[d.Name] = d.Definition()
	}
	return cols
}

// Field returns the field stored in column name.
func (pt *PageType) Field(column string) (PropertyDescriptor, bool) {
	for _, d := range pt.props {
		if d.Name == column {
			return d, true
		}
	}
	return PropertyDescriptor{}, false
}

// WithColumnNames returns a copy whose descriptors store fields under the
// given column names. Fields absent from names keep their column.
func (pt *PageType) WithColumnNames(names map[string]string) *PageType {
	out := newPageType(pt.title)
	for field, d := range pt.props {
		if name, ok := names[field]; ok && name != "" {
			d.Name = name
		}
		out.props[field] = d
	}
	return out
}

// Encode renders the mapped fields of a field map as page properties.
// Fields the type does not know are ignored.
func (pt *PageType) Encode(fields map[string]any) (notion.Properties, error) {
	props := make(notion.Properties, len(fields))
	for field, value := range fields {
		d, ok := pt.props[field]
		if !ok {
			continue
		}
		pv, err := encodeValue(d, value)
		if err != nil {
			return nil, utils.NewValidationError(fmt.Sprintf("cannot encode %s.%s", pt.Name(), field), err).
				WithDetail("field", field)
		}
		props[d.Name] = pv
	}
	return props, nil
}

// Decode reads every mapped column present in props back into a field map.
func (pt *PageType) Decode(props notion.Properties) map[string]any {
	fields := make(map[string]any, len(pt.props))
	for field, d := range pt.props {
		pv, ok := props[d.Name]
		if !ok {
			continue
		}
		fields[field] = decodeValue(d, pv)
	}
	return fields
}

func (pt *PageType) NewPage(id string, values map[string]any) *Page {
	page := &Page{Type: pt, ID: id, Values: make(map[string]any, len(values))}
	for field, v := range values {
		if _, ok := pt.props[field]; ok {
			page.Values[field] = v
		}
	}
	return page
}

// FromNotion wraps a retrieved page.
func (pt *PageType) FromNotion(p *notion.Page) *Page {
	return &Page{Type: pt, ID: p.ID, Values: pt.Decode(p.Properties)}
}

func (pt *PageType) String() string {
	parts := make([]string, 0, len(pt.props))
	for _, d := range pt.Properties() {
		parts = append(parts, d.Field+": "+d.String())
	}
	return pt.Name() + "{" + strings.Join(parts, ", ") + "}"
}
