package schema

import (
	"fmt"

	"github.com/sumandas0/notionmbse/internal/notion"
)

// PropertyKind is the workspace column kind a field is stored as.
type PropertyKind string

const (
	KindTitle       PropertyKind = notion.TypeTitle
	KindRichText    PropertyKind = notion.TypeRichText
	KindSelect      PropertyKind = notion.TypeSelect
	KindMultiSelect PropertyKind = notion.TypeMultiSelect
	KindNumber      PropertyKind = notion.TypeNumber
	KindCheckbox    PropertyKind = notion.TypeCheckbox
	KindDate        PropertyKind = notion.TypeDate
	KindURL         PropertyKind = notion.TypeURL
	KindRelation    PropertyKind = notion.TypeRelation
)

func (k PropertyKind) Values() []string {
	return []string{
		string(KindTitle), string(KindRichText), string(KindSelect), string(KindMultiSelect),
		string(KindNumber), string(KindCheckbox), string(KindDate), string(KindURL), string(KindRelation),
	}
}

func (k PropertyKind) IsValid() bool {
	switch k {
	case KindTitle, KindRichText, KindSelect, KindMultiSelect, KindNumber,
		KindCheckbox, KindDate, KindURL, KindRelation:
		return true
	}
	return false
}

// PropertyDescriptor binds a model field to a workspace column.
type PropertyDescriptor struct {
	Field    string       `json:"field"`
	Name     string       `json:"name"`
	Kind     PropertyKind `json:"kind"`
	Nullable bool         `json:"nullable,omitempty"`
}

// Definition is the column definition used when adding the column.
func (d PropertyDescriptor) Definition() *notion.DatabaseProperty {
	return &notion.DatabaseProperty{Name: d.Name, Type: string(d.Kind)}
}

func (d PropertyDescriptor) String() string {
	return fmt.Sprintf("%s(%q)", d.Kind, d.Name)
}
