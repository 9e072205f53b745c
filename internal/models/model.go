package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/sumandas0/notionmbse/pkg/utils"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("enum", func(fl validator.FieldLevel) bool {
			if e, ok := fl.Field().Interface().(interface{ IsValid() bool }); ok {
				return e.IsValid()
			}
			return true
		})
	})
	return validate
}

// Model describes a record type: how to build a defaulted instance, how to
// move it through the canonical field map and how to validate it.
type Model[T Record] struct {
	name  string
	newFn func() T
}

// NewModel panics when T is not a pointer to a struct.
func NewModel[T Record](name string, newFn func() T) *Model[T] {
	sample := newFn()
	rt := reflect.TypeOf(sample)
	if rt == nil || rt.Kind() != reflect.Pointer || rt.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("models: %s must be a pointer to a struct", name))
	}
	return &Model[T]{name: name, newFn: newFn}
}

var (
	ElementModel         = NewModel("Element", func() *Element { return NewElement("") })
	RequirementModel     = NewModel("Requirement", func() *Requirement { return NewRequirement("") })
	RelationshipModel    = NewModel("Relationship", func() *Relationship { return NewRelationship("", NilObjectID, nil) })
	DocumentModel        = NewModel("Document", func() *Document { return NewDocument("", "") })
	DocumentSectionModel = NewModel("DocumentSection", func() *DocumentSection { return NewDocumentSection("", "") })
)

// Descriptor is the type independent view of a Model.
type Descriptor interface {
	Name() string
	Schema() map[string]any
}

var registered = []Descriptor{ElementModel, RequirementModel, RelationshipModel, DocumentModel, DocumentSectionModel}

// Registered lists the built in models.
func Registered() []Descriptor {
	return append([]Descriptor(nil), registered...)
}

// Lookup finds a built in model by name, ignoring case, underscores and
// dashes, so "document_section" finds DocumentSection.
func Lookup(name string) (Descriptor, bool) {
	key := modelKey(name)
	for _, d := range registered {
		if modelKey(d.Name()) == key {
			return d, true
		}
	}
	return nil, false
}

func modelKey(name string) string {
	return strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(name))
}

func (m *Model[T]) Name() string {
	return m.name
}

// New returns an instance with defaults applied: fresh id, creation time
// and empty lists.
func (m *Model[T]) New() T {
	return m.newFn()
}

func (m *Model[T]) Validate(item T) error {
	if err := validatorInstance().Struct(item); err != nil {
		return utils.NewValidationError(fmt.Sprintf("invalid %s", m.name), err)
	}
	return nil
}

// Decode builds a validated instance from a field map. Fields absent from
// the map keep their defaults.
func (m *Model[T]) Decode(fields map[string]any) (T, error) {
	item := m.newFn()
	var zero T

	data, err := json.Marshal(fields)
	if err != nil {
		return zero, utils.NewValidationError(fmt.Sprintf("cannot encode %s fields", m.name), err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(item); err != nil {
		return zero, utils.NewValidationError(fmt.Sprintf("cannot build %s", m.name), err)
	}
	if err := m.Validate(item); err != nil {
		return zero, err
	}
	return item, nil
}

// Coerce accepts a field map or an instance of T.
func (m *Model[T]) Coerce(v any) (T, error) {
	var zero T
	switch item := v.(type) {
	case T:
		if reflect.ValueOf(item).IsNil() {
			return zero, utils.NewValidationError(fmt.Sprintf("nil %s", m.name), nil)
		}
		if err := m.Validate(item); err != nil {
			return zero, err
		}
		return item, nil
	case map[string]any:
		return m.Decode(item)
	default:
		return zero, utils.NewValidationError(fmt.Sprintf("cannot coerce %T into %s", v, m.name), nil)
	}
}

// Dump renders the canonical field map used for backend writes.
func (m *Model[T]) Dump(item T) (map[string]any, error) {
	return Dump(item)
}

func Dump(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, utils.NewValidationError("cannot encode record", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, utils.NewValidationError("record is not an object", err)
	}
	return fields, nil
}

// transientHolder is implemented by records that carry state outside the
// canonical field map, such as the loaded sections of a Document.
type transientHolder interface {
	transient() any
	restoreTransient(state any)
}

// Copy overwrites every field of dst with the value from src. State that
// never passes through the field map is handed over from the replaced
// value when src does not carry its own.
func (m *Model[T]) Copy(dst, src T) {
	var state any
	holder, ok := any(dst).(transientHolder)
	if ok {
		state = holder.transient()
	}
	reflect.ValueOf(dst).Elem().Set(reflect.ValueOf(src).Elem())
	if ok {
		holder.restoreTransient(state)
	}
}

func (m *Model[T]) Schema() map[string]any {
	return JSONSchema(m.newFn(), m.name)
}

// NormalizeQuery renders query values in their stored form, so identifiers
// and timestamps compare equal to what Dump wrote.
func NormalizeQuery(query map[string]any) (map[string]any, error) {
	if len(query) == 0 {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(query)
	if err != nil {
		return nil, utils.NewValidationError("cannot encode query", err)
	}
	var normalized map[string]any
	if err := json.Unmarshal(data, &normalized); err != nil {
		return nil, utils.NewValidationError("cannot decode query", err)
	}
	return normalized, nil
}
