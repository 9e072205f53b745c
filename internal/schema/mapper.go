package schema

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sumandas0/notionmbse/internal/models"
	"github.com/sumandas0/notionmbse/pkg/utils"
)

// Structural requirements reported in SchemaError details.
const (
	RequirementObject             = "object"
	RequirementTitle              = "title"
	RequirementProperties         = "properties"
	RequirementNonEmptyProperties = "non_empty_properties"
	RequirementUniqueColumns      = "unique_columns"
)

// Resolved primitive types. Formats refine "string".
const (
	typeString   = "string"
	typeArray    = "array"
	typeNumber   = "number"
	typeInteger  = "integer"
	typeBoolean  = "boolean"
	typeNull     = "null"
	typeDateTime = "date-time"
	typeObjectID = "ObjectId"
)

var typeTable = map[string]PropertyKind{
	typeString:   KindRichText,
	typeArray:    KindMultiSelect,
	typeNumber:   KindNumber,
	typeBoolean:  KindCheckbox,
	typeDateTime: KindDate,
	typeObjectID: KindRichText,
}

type special struct {
	name string
	kind PropertyKind
}

// specialFields match on the exact field name and override the type table.
var specialFields = map[string]special{
	"name":     {"Name", KindTitle},
	"status":   {"Status", KindSelect},
	"link":     {"URL", KindURL},
	"website":  {"Website", KindURL},
	"email":    {"Email", KindURL},
	"phone":    {"Phone", KindURL},
	"tags":     {"Tags", KindMultiSelect},
	"type":     {"Type", KindSelect},
	"sub_type": {"Sub-Type", KindSelect},
}

// skipFields are compared against the lowercased field name. They are
// managed by the backend or carried by page metadata.
var skipFields = map[string]struct{}{
	"id":            {},
	"created_at":    {},
	"modified_at":   {},
	"created_by":    {},
	"modified_by":   {},
	"documentation": {},
	"ref_ids":       {},
}

// SchemaRecorder observes mapper outcomes.
type SchemaRecorder interface {
	RecordPageTypeMapped(typeName string)
	RecordSchemaError(requirement string)
}

type Mapper struct {
	logger  zerolog.Logger
	metrics SchemaRecorder
}

type MapperOption func(*Mapper)

func WithLogger(logger zerolog.Logger) MapperOption {
	return func(m *Mapper) {
		m.logger = logger
	}
}

func WithMetrics(metrics SchemaRecorder) MapperOption {
	return func(m *Mapper) {
		m.metrics = metrics
	}
}

func NewMapper(opts ...MapperOption) *Mapper {
	m := &Mapper{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var defaultMapper = NewMapper()

// MapSchema maps a JSON-Schema object description with a silent mapper.
func MapSchema(schema map[string]any) (*PageType, error) {
	return defaultMapper.Map(schema)
}

// Map synthesizes the page type for schema. The structure is validated
// before any field is looked at.
func (m *Mapper) Map(schema map[string]any) (*PageType, error) {
	props, title, err := m.validate(schema)
	if err != nil {
		return nil, err
	}

	pt := newPageType(title)
	for field, raw := range props {
		fieldSchema, _ := raw.(map[string]any)
		resolved := resolveType(fieldSchema)

		if _, skip := skipFields[strings.ToLower(field)]; skip {
			m.logger.Debug().Str("schema", title).Str("field", field).Msg("Skipping field")
			continue
		}

		desc := PropertyDescriptor{Field: field, Nullable: isNullable(fieldSchema)}
		if sp, ok := specialFields[field]; ok {
			desc.Name = sp.name
			desc.Kind = sp.kind
			m.logger.Debug().Str("schema", title).Str("field", field).Str("kind", string(sp.kind)).Msg("Adding special field")
		} else {
			desc.Name = fieldTitle(field, fieldSchema)
			kind, known := typeTable[resolved]
			if !known {
				kind = KindRichText
				m.logger.Debug().Str("schema", title).Str("field", field).Str("type", resolved).Msg("Adding basic text field")
			}
			desc.Kind = kind
		}
		pt.add(desc)
	}
	pt.ensureTitle()
	if err := pt.checkColumns(); err != nil {
		if m.metrics != nil {
			m.metrics.RecordSchemaError(RequirementUniqueColumns)
		}
		return nil, err
	}

	if m.metrics != nil {
		m.metrics.RecordPageTypeMapped(pt.Name())
	}
	return pt, nil
}

func (m *Mapper) validate(schema map[string]any) (map[string]any, string, error) {
	fail := func(requirement, msg string) (map[string]any, string, error) {
		if m.metrics != nil {
			m.metrics.RecordSchemaError(requirement)
		}
		return nil, "", utils.NewSchemaError(requirement, msg)
	}

	if kind, _ := schema["type"].(string); kind != "object" {
		return fail(RequirementObject, "schema must be an object")
	}
	rawTitle, ok := schema["title"]
	if !ok {
		return fail(RequirementTitle, "schema must have a title")
	}
	title, ok := rawTitle.(string)
	if !ok || title == "" {
		return fail(RequirementTitle, "schema title must be a non-empty string")
	}
	rawProps, ok := schema["properties"]
	if !ok {
		return fail(RequirementProperties, "schema must have properties")
	}
	props, ok := rawProps.(map[string]any)
	if !ok || len(props) == 0 {
		return fail(RequirementNonEmptyProperties, "schema must have at least one property")
	}
	return props, title, nil
}

// resolveType returns the primitive type of a field schema. A union with
// exactly one non-null member resolves to it; any other union is "string".
func resolveType(fieldSchema map[string]any) string {
	if members, ok := fieldSchema["anyOf"].([]any); ok {
		return resolveUnion(members)
	}
	if list, ok := fieldSchema["type"].([]any); ok {
		members := make([]any, len(list))
		for i, t := range list {
			members[i] = map[string]any{"type": t, "format": fieldSchema["format"]}
		}
		return resolveUnion(members)
	}
	return memberType(fieldSchema)
}

func resolveUnion(members []any) string {
	var nonNull []string
	for _, raw := range members {
		member, _ := raw.(map[string]any)
		if t := memberType(member); t != typeNull {
			nonNull = append(nonNull, t)
		}
	}
	if len(nonNull) == 1 {
		return nonNull[0]
	}
	return typeString
}

func memberType(member map[string]any) string {
	t, _ := member["type"].(string)
	switch t {
	case typeString:
		switch format, _ := member["format"].(string); format {
		case typeDateTime:
			return typeDateTime
		case typeObjectID:
			return typeObjectID
		}
	case typeInteger:
		return typeNumber
	}
	return t
}

func isNullable(fieldSchema map[string]any) bool {
	if members, ok := fieldSchema["anyOf"].([]any); ok {
		for _, raw := range members {
			if member, _ := raw.(map[string]any); member["type"] == typeNull {
				return true
			}
		}
	}
	if list, ok := fieldSchema["type"].([]any); ok {
		for _, t := range list {
			if t == typeNull {
				return true
			}
		}
	}
	return false
}

func fieldTitle(field string, fieldSchema map[string]any) string {
	if title, ok := fieldSchema["title"].(string); ok && title != "" {
		return title
	}
	return models.TitleCase(field)
}

// MapModel maps the reflected schema of a registered model.
func MapModel[T models.Record](m *Mapper, model *models.Model[T]) (*PageType, error) {
	pt, err := m.Map(model.Schema())
	if err != nil {
		return nil, fmt.Errorf("failed to map model %s: %w", model.Name(), err)
	}
	return pt, nil
}
