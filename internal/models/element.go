package models

import (
	"fmt"
	"slices"
)

// Record is anything stored under an ObjectID.
type Record interface {
	GetID() ObjectID
}

// Element is the base record shared by every model in the engineering
// data set.
type Element struct {
	ID            ObjectID   `json:"id" validate:"required"`
	Name          string     `json:"name" validate:"max=2000"`
	Description   string     `json:"description"`
	Version       string     `json:"version"`
	Tags          []string   `json:"tags"`
	Type          string     `json:"type"`
	SubType       string     `json:"sub_type"`
	CreatedBy     string     `json:"created_by"`
	CreatedAt     Timestamp  `json:"created_at" validate:"required"`
	ModifiedBy    string     `json:"modified_by"`
	ModifiedAt    *Timestamp `json:"modified_at"`
	Status        string     `json:"status"`
	Documentation string     `json:"documentation"`
	RefIDs        []string   `json:"ref_ids"`
}

// NewElement returns a fresh element named name with a new identifier.
func NewElement(name string) *Element {
	return &Element{
		ID:        NewObjectID(),
		Name:      name,
		Tags:      []string{},
		CreatedAt: Now(),
		RefIDs:    []string{},
	}
}

func (e *Element) GetID() ObjectID {
	return e.ID
}

// SetWithElement copies every field of src onto e.
func (e *Element) SetWithElement(src *Element) {
	*e = *src.Clone()
}

// Clone returns a deep copy of e.
func (e *Element) Clone() *Element {
	c := *e
	c.Tags = slices.Clone(e.Tags)
	c.RefIDs = slices.Clone(e.RefIDs)
	if e.ModifiedAt != nil {
		m := *e.ModifiedAt
		c.ModifiedAt = &m
	}
	return &c
}

// Touch records a modification by actor.
func (e *Element) Touch(actor string) {
	now := Now()
	e.ModifiedAt = &now
	if actor != "" {
		e.ModifiedBy = actor
	}
}

func (e *Element) String() string {
	return fmt.Sprintf("Element(%s - %s)", e.ID, e.Name)
}

// ModelElementType classifies elements in the system model.
type ModelElementType string

const (
	ModelElementRequirement     ModelElementType = "Requirement"
	ModelElementSystemComponent ModelElementType = "SystemComponent"
	ModelElementSystemBuild     ModelElementType = "SystemBuild"
	ModelElementBehavior        ModelElementType = "Behavior"
)

// Values lists the accepted element types.
func (t ModelElementType) Values() []string {
	return []string{
		string(ModelElementRequirement),
		string(ModelElementSystemComponent),
		string(ModelElementSystemBuild),
		string(ModelElementBehavior),
	}
}

func (t ModelElementType) IsValid() bool {
	return slices.Contains(t.Values(), string(t))
}

// Requirement is an element with a priority and a verification
// method.
type Requirement struct {
	Element
	Priority           string `json:"priority"`
	VerificationMethod string `json:"verification_method"`
}

// NewRequirement returns a requirement element named name.
func NewRequirement(name string) *Requirement {
	r := &Requirement{Element: *NewElement(name)}
	r.Type = string(ModelElementRequirement)
	return r
}

func (r *Requirement) String() string {
	return fmt.Sprintf("Requirement(%s - %s)", r.ID, r.Name)
}
