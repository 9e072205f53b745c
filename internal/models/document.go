package models

import (
	"fmt"
	"slices"
)

type DocumentType string

const (
	DocumentGeneral         DocumentType = "General"
	DocumentRequirements    DocumentType = "Requirements"
	DocumentDesign          DocumentType = "Design"
	DocumentImplementation  DocumentType = "Implementation"
	DocumentTest            DocumentType = "Test"
	DocumentDeployment      DocumentType = "Deployment"
	DocumentOperation       DocumentType = "Operation"
	DocumentMaintenance     DocumentType = "Maintenance"
	DocumentSupport         DocumentType = "Support"
	DocumentTraining        DocumentType = "Training"
	DocumentUserManual      DocumentType = "User Manual"
	DocumentTechnicalManual DocumentType = "Technical Manual"
)

var documentTypes = []string{
	string(DocumentGeneral), string(DocumentRequirements), string(DocumentDesign),
	string(DocumentImplementation), string(DocumentTest), string(DocumentDeployment),
	string(DocumentOperation), string(DocumentMaintenance), string(DocumentSupport),
	string(DocumentTraining), string(DocumentUserManual), string(DocumentTechnicalManual),
}

func (t DocumentType) Values() []string { return slices.Clone(documentTypes) }
func (t DocumentType) IsValid() bool    { return slices.Contains(documentTypes, string(t)) }

type DocumentSectionType string

const (
	SectionOverview          DocumentSectionType = "Overview"
	SectionIntroduction      DocumentSectionType = "Introduction"
	SectionBackground        DocumentSectionType = "Background"
	SectionScope             DocumentSectionType = "Scope"
	SectionObjectives        DocumentSectionType = "Objectives"
	SectionRequirements      DocumentSectionType = "Requirements"
	SectionDesignOverview    DocumentSectionType = "Design Overview"
	SectionArchitecture      DocumentSectionType = "Architecture"
	SectionComponents        DocumentSectionType = "Components"
	SectionInterfaces        DocumentSectionType = "Interfaces"
	SectionData              DocumentSectionType = "Data"
	SectionAlgorithms        DocumentSectionType = "Algorithms"
	SectionTestPlan          DocumentSectionType = "Test Plan"
	SectionTestCases         DocumentSectionType = "Test Cases"
	SectionTestResults       DocumentSectionType = "Test Results"
	SectionDeploymentPlan    DocumentSectionType = "Deployment Plan"
	SectionDeploymentResults DocumentSectionType = "Deployment Results"
	SectionOperationPlan     DocumentSectionType = "Operation Plan"
	SectionOperationResults  DocumentSectionType = "Operation Results"
	SectionMaintenancePlan   DocumentSectionType = "Maintenance Plan"
	SectionMaintenanceResult DocumentSectionType = "Maintenance Results"
	SectionSupportPlan       DocumentSectionType = "Support Plan"
)

var sectionTypes = []string{
	string(SectionOverview), string(SectionIntroduction), string(SectionBackground),
	string(SectionScope), string(SectionObjectives), string(SectionRequirements),
	string(SectionDesignOverview), string(SectionArchitecture), string(SectionComponents),
	string(SectionInterfaces), string(SectionData), string(SectionAlgorithms),
	string(SectionTestPlan), string(SectionTestCases), string(SectionTestResults),
	string(SectionDeploymentPlan), string(SectionDeploymentResults), string(SectionOperationPlan),
	string(SectionOperationResults), string(SectionMaintenancePlan), string(SectionMaintenanceResult),
	string(SectionSupportPlan),
}

func (t DocumentSectionType) Values() []string { return slices.Clone(sectionTypes) }
func (t DocumentSectionType) IsValid() bool    { return slices.Contains(sectionTypes, string(t)) }

type DocumentSectionFormatType string

const (
	FormatSlide        DocumentSectionFormatType = "Slide"
	FormatPage         DocumentSectionFormatType = "Page"
	FormatChapter      DocumentSectionFormatType = "Chapter"
	FormatSection      DocumentSectionFormatType = "Section"
	FormatSubsection   DocumentSectionFormatType = "Subsection"
	FormatParagraph    DocumentSectionFormatType = "Paragraph"
	FormatBullet       DocumentSectionFormatType = "Bullet"
	FormatNumbered     DocumentSectionFormatType = "Numbered"
	FormatTable        DocumentSectionFormatType = "Table"
	FormatFigure       DocumentSectionFormatType = "Figure"
	FormatEquation     DocumentSectionFormatType = "Equation"
	FormatCode         DocumentSectionFormatType = "Code"
	FormatList         DocumentSectionFormatType = "List"
	FormatReference    DocumentSectionFormatType = "Reference"
	FormatFootnote     DocumentSectionFormatType = "Footnote"
	FormatEndnote      DocumentSectionFormatType = "Endnote"
	FormatGlossary     DocumentSectionFormatType = "Glossary"
	FormatIndex        DocumentSectionFormatType = "Index"
	FormatAppendix     DocumentSectionFormatType = "Appendix"
	FormatAnnex        DocumentSectionFormatType = "Annex"
	FormatAbbreviation DocumentSectionFormatType = "Abbreviation"
	FormatAcronym      DocumentSectionFormatType = "Acronym"
	FormatSymbol       DocumentSectionFormatType = "Symbol"
	FormatKeyword      DocumentSectionFormatType = "Keyword"
	FormatSummary      DocumentSectionFormatType = "Summary"
)

var formatTypes = []string{
	string(FormatSlide), string(FormatPage), string(FormatChapter), string(FormatSection),
	string(FormatSubsection), string(FormatParagraph), string(FormatBullet), string(FormatNumbered),
	string(FormatTable), string(FormatFigure), string(FormatEquation), string(FormatCode),
	string(FormatList), string(FormatReference), string(FormatFootnote), string(FormatEndnote),
	string(FormatGlossary), string(FormatIndex), string(FormatAppendix), string(FormatAnnex),
	string(FormatAbbreviation), string(FormatAcronym), string(FormatSymbol), string(FormatKeyword),
	string(FormatSummary),
}

func (t DocumentSectionFormatType) Values() []string { return slices.Clone(formatTypes) }
func (t DocumentSectionFormatType) IsValid() bool    { return slices.Contains(formatTypes, string(t)) }

type DocumentSection struct {
	Element
	Type                DocumentSectionType       `json:"type" validate:"omitempty,enum"`
	FormatType          DocumentSectionFormatType `json:"format_type" validate:"omitempty,enum"`
	SectionLevel        int                       `json:"section_level" validate:"gte=0"`
	SectionNumber       string                    `json:"section_number"`
	Document            string                    `json:"document"`
	Page                int                       `json:"page" validate:"gte=0"`
	ParentSectionNumber string                    `json:"parent_section_number"`
	Author              string                    `json:"author"`
	Content             string                    `json:"content"`
	SectionLength       int                       `json:"section_length" validate:"gte=0"`
	References          []string                  `json:"references"`
	Summary             string                    `json:"summary"`
	Keywords            []string                  `json:"keywords"`
	RelatedSections     []string                  `json:"related_sections"`
}

func NewDocumentSection(name string, sectionType DocumentSectionType) *DocumentSection {
	return &DocumentSection{
		Element:         *NewElement(name),
		Type:            sectionType,
		References:      []string{},
		Keywords:        []string{},
		RelatedSections: []string{},
	}
}

func (s *DocumentSection) String() string {
	return fmt.Sprintf("DocumentSection(%s - %s)", s.ID, s.Name)
}

// Document owns an ordered list of sections. SectionIDs always mirrors
// Sections when they are changed through AddSection and RemoveSection.
type Document struct {
	Element
	Type       DocumentType       `json:"type" validate:"omitempty,enum"`
	SectionIDs []string           `json:"section_ids"`
	Summary    string             `json:"summary"`
	Keywords   []string           `json:"keywords"`
	References []string           `json:"references"`
	Sections   []*DocumentSection `json:"-"`
}

func NewDocument(name string, docType DocumentType) *Document {
	return &Document{
		Element:    *NewElement(name),
		Type:       docType,
		SectionIDs: []string{},
		Keywords:   []string{},
		References: []string{},
	}
}

func (d *Document) AddSection(section *DocumentSection) {
	if section.Document == "" {
		section.Document = d.ID.Hex()
	}
	d.Sections = append(d.Sections, section)
	d.SectionIDs = append(d.SectionIDs, section.ID.Hex())
}

// RemoveSection drops the section and its id entry together. An id whose
// section was never loaded is still removed.
func (d *Document) RemoveSection(id ObjectID) bool {
	removed := false
	if idx := slices.IndexFunc(d.Sections, func(s *DocumentSection) bool { return s.ID == id }); idx >= 0 {
		d.Sections = slices.Delete(d.Sections, idx, idx+1)
		removed = true
	}
	if pos := slices.Index(d.SectionIDs, id.Hex()); pos >= 0 {
		d.SectionIDs = slices.Delete(d.SectionIDs, pos, pos+1)
		removed = true
	}
	return removed
}

func (d *Document) transient() any {
	return slices.Clone(d.Sections)
}

// restoreTransient relinks previously loaded sections in SectionIDs order,
// dropping those no longer listed.
func (d *Document) restoreTransient(state any) {
	previous, _ := state.([]*DocumentSection)
	if len(d.Sections) > 0 || len(previous) == 0 {
		return
	}
	byID := make(map[string]*DocumentSection, len(previous))
	for _, s := range previous {
		byID[s.ID.Hex()] = s
	}
	sections := make([]*DocumentSection, 0, len(d.SectionIDs))
	for _, id := range d.SectionIDs {
		if s, ok := byID[id]; ok {
			sections = append(sections, s)
		}
	}
	d.Sections = sections
}

func (d *Document) Section(id ObjectID) (*DocumentSection, bool) {
	for _, s := range d.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

func (d *Document) String() string {
	return fmt.Sprintf("Document(%s - %s)", d.ID, d.Name)
}
