package models

import (
	"fmt"
	"slices"
)

type RelationshipType string

const (
	RelationshipAssociation RelationshipType = "Association"
	RelationshipDependency  RelationshipType = "Dependency"
	RelationshipAggregation RelationshipType = "Aggregation"
	RelationshipComposition RelationshipType = "Composition"
	RelationshipInheritance RelationshipType = "Inheritance"
	RelationshipRealization RelationshipType = "Realization"
)

func (t RelationshipType) Values() []string {
	return []string{
		string(RelationshipAssociation),
		string(RelationshipDependency),
		string(RelationshipAggregation),
		string(RelationshipComposition),
		string(RelationshipInheritance),
		string(RelationshipRealization),
	}
}

func (t RelationshipType) IsValid() bool {
	return slices.Contains(t.Values(), string(t))
}

// Relationship links a source element to an optional target. It only holds
// references; removing it never touches the linked elements.
type Relationship struct {
	Element
	// Type shadows Element.Type in JSON.
	Type            RelationshipType `json:"type" validate:"omitempty,enum"`
	SourceElementID ObjectID         `json:"source_element_id" validate:"required"`
	TargetElementID *ObjectID        `json:"target_element_id"`
}

func NewRelationship(relType RelationshipType, source ObjectID, target *ObjectID) *Relationship {
	return &Relationship{
		Element:         *NewElement(""),
		Type:            relType,
		SourceElementID: source,
		TargetElementID: target,
	}
}

func (r *Relationship) IsDirected() bool {
	return r.TargetElementID != nil
}

func (r *Relationship) String() string {
	target := "none"
	if r.TargetElementID != nil {
		target = r.TargetElementID.Hex()
	}
	return fmt.Sprintf("Relationship(%s %s -> %s)", r.Type, r.SourceElementID, target)
}
