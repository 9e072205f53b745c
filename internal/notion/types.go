package notion

import (
	"encoding/json"
	"fmt"
	"time"
)

// Property kinds as named by the workspace API.
const (
	TypeTitle       = "title"
	TypeRichText    = "rich_text"
	TypeSelect      = "select"
	TypeStatus      = "status"
	TypeMultiSelect = "multi_select"
	TypeNumber      = "number"
	TypeCheckbox    = "checkbox"
	TypeDate        = "date"
	TypeURL         = "url"
	TypeEmail       = "email"
	TypePhoneNumber = "phone_number"
	TypeRelation    = "relation"
	TypeCreatedTime = "created_time"
	TypeCreatedBy   = "created_by"
)

type Text struct {
	Content string `json:"content"`
	Link    *Link  `json:"link,omitempty"`
}

type Link struct {
	URL string `json:"url"`
}

type RichText struct {
	Type      string `json:"type,omitempty"`
	Text      *Text  `json:"text,omitempty"`
	PlainText string `json:"plain_text,omitempty"`
	Href      string `json:"href,omitempty"`
}

// NewText builds a single text rich text run.
func NewText(content string) RichText {
	return RichText{Type: "text", Text: &Text{Content: content}, PlainText: content}
}

// PlainText joins the plain text of every run.
func PlainText(runs []RichText) string {
	var out string
	for _, r := range runs {
		switch {
		case r.PlainText != "":
			out += r.PlainText
		case r.Text != nil:
			out += r.Text.Content
		}
	}
	return out
}

type SelectOption struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type DateValue struct {
	Start string  `json:"start"`
	End   *string `json:"end,omitempty"`
}

type Relation struct {
	ID string `json:"id"`
}

type User struct {
	Object string `json:"object,omitempty"`
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
}

type Parent struct {
	Type       string `json:"type"`
	DatabaseID string `json:"database_id,omitempty"`
	PageID     string `json:"page_id,omitempty"`
}

// DatabaseParent returns the parent reference for pages of a database.
func DatabaseParent(databaseID string) Parent {
	return Parent{Type: "database_id", DatabaseID: databaseID}
}

// PropertyValue is one page property. Only the member named by Type is
// meaningful.
type PropertyValue struct {
	ID          string
	Type        string
	Title       []RichText
	RichText    []RichText
	Select      *SelectOption
	Status      *SelectOption
	MultiSelect []SelectOption
	Number      *float64
	Checkbox    bool
	Date        *DateValue
	URL         *string
	Email       *string
	PhoneNumber *string
	Relation    []Relation
	CreatedTime *time.Time
	CreatedBy   *User
}

func (pv PropertyValue) payload() any {
	switch pv.Type {
	case TypeTitle:
		return nonNil(pv.Title)
	case TypeRichText:
		return nonNil(pv.RichText)
	case TypeSelect:
		return pv.Select
	case TypeStatus:
		return pv.Status
	case TypeMultiSelect:
		return nonNil(pv.MultiSelect)
	case TypeNumber:
		return pv.Number
	case TypeCheckbox:
		return pv.Checkbox
	case TypeDate:
		return pv.Date
	case TypeURL:
		return pv.URL
	case TypeEmail:
		return pv.Email
	case TypePhoneNumber:
		return pv.PhoneNumber
	case TypeRelation:
		return nonNil(pv.Relation)
	case TypeCreatedTime:
		return pv.CreatedTime
	case TypeCreatedBy:
		return pv.CreatedBy
	}
	return nil
}

// IsEmpty reports whether the value carries nothing, as a cleared column
// reads back.
func (pv PropertyValue) IsEmpty() bool {
	switch pv.Type {
	case TypeTitle:
		return len(pv.Title) == 0
	case TypeRichText:
		return len(pv.RichText) == 0
	case TypeSelect:
		return pv.Select == nil
	case TypeStatus:
		return pv.Status == nil
	case TypeMultiSelect:
		return len(pv.MultiSelect) == 0
	case TypeNumber:
		return pv.Number == nil
	case TypeCheckbox:
		return !pv.Checkbox
	case TypeDate:
		return pv.Date == nil
	case TypeURL:
		return pv.URL == nil
	case TypeEmail:
		return pv.Email == nil
	case TypePhoneNumber:
		return pv.PhoneNumber == nil
	case TypeRelation:
		return len(pv.Relation) == 0
	}
	return false
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (pv PropertyValue) MarshalJSON() ([]byte, error) {
	if pv.Type == "" {
		return nil, fmt.Errorf("property value has no type")
	}
	out := map[string]any{"type": pv.Type, pv.Type: pv.payload()}
	if pv.ID != "" {
		out["id"] = pv.ID
	}
	return json.Marshal(out)
}

func (pv *PropertyValue) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*pv = PropertyValue{}
	if id, ok := raw["id"]; ok {
		if err := json.Unmarshal(id, &pv.ID); err != nil {
			return err
		}
	}
	if t, ok := raw["type"]; ok {
		if err := json.Unmarshal(t, &pv.Type); err != nil {
			return err
		}
	}

	body, ok := raw[pv.Type]
	if !ok || string(body) == "null" {
		return nil
	}

	var target any
	switch pv.Type {
	case TypeTitle:
		target = &pv.Title
	case TypeRichText:
		target = &pv.RichText
	case TypeSelect:
		target = &pv.Select
	case TypeStatus:
		target = &pv.Status
	case TypeMultiSelect:
		target = &pv.MultiSelect
	case TypeNumber:
		target = &pv.Number
	case TypeCheckbox:
		target = &pv.Checkbox
	case TypeDate:
		target = &pv.Date
	case TypeURL:
		target = &pv.URL
	case TypeEmail:
		target = &pv.Email
	case TypePhoneNumber:
		target = &pv.PhoneNumber
	case TypeRelation:
		target = &pv.Relation
	case TypeCreatedTime:
		target = &pv.CreatedTime
	case TypeCreatedBy:
		target = &pv.CreatedBy
	default:
		// kinds this package does not model keep only their type
		return nil
	}
	return json.Unmarshal(body, target)
}

type Properties map[string]PropertyValue

type Page struct {
	Object         string     `json:"object,omitempty"`
	ID             string     `json:"id"`
	CreatedTime    time.Time  `json:"created_time"`
	LastEditedTime time.Time  `json:"last_edited_time"`
	CreatedBy      *User      `json:"created_by,omitempty"`
	LastEditedBy   *User      `json:"last_edited_by,omitempty"`
	Archived       bool       `json:"archived"`
	InTrash        bool       `json:"in_trash"`
	Parent         Parent     `json:"parent"`
	URL            string     `json:"url,omitempty"`
	Properties     Properties `json:"properties"`
}

// DatabaseProperty is one column definition. Config holds the kind
// specific options and is sent as an empty object when nil.
type DatabaseProperty struct {
	ID     string
	Name   string
	Type   string
	Config map[string]any
}

func (dp DatabaseProperty) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	if dp.Type != "" {
		config := dp.Config
		if config == nil {
			config = map[string]any{}
		}
		out[dp.Type] = config
	}
	if dp.Name != "" {
		out["name"] = dp.Name
	}
	if dp.ID != "" {
		out["id"] = dp.ID
	}
	if dp.Type != "" {
		out["type"] = dp.Type
	}
	return json.Marshal(out)
}

func (dp *DatabaseProperty) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*dp = DatabaseProperty{}
	for key, target := range map[string]*string{"id": &dp.ID, "name": &dp.Name, "type": &dp.Type} {
		if v, ok := raw[key]; ok {
			if err := json.Unmarshal(v, target); err != nil {
				return err
			}
		}
	}
	if body, ok := raw[dp.Type]; ok && string(body) != "null" {
		var config map[string]any
		if err := json.Unmarshal(body, &config); err == nil {
			dp.Config = config
		}
	}
	return nil
}

type Database struct {
	Object     string                      `json:"object,omitempty"`
	ID         string                      `json:"id"`
	Title      []RichText                  `json:"title"`
	Properties map[string]DatabaseProperty `json:"properties"`
	URL        string                      `json:"url,omitempty"`
}

// TitleProperty returns the name of the database's title column.
func (d *Database) TitleProperty() (string, bool) {
	for name, prop := range d.Properties {
		if prop.Type == TypeTitle {
			return name, true
		}
	}
	return "", false
}

// UpdateDatabaseRequest changes columns. A nil entry removes the column;
// a non nil entry adds, renames or retypes it.
type UpdateDatabaseRequest struct {
	Title      []RichText                   `json:"title,omitempty"`
	Properties map[string]*DatabaseProperty `json:"properties,omitempty"`
}

type CreatePageRequest struct {
	Parent     Parent     `json:"parent"`
	Properties Properties `json:"properties"`
	Children   []Block    `json:"children,omitempty"`
}

type UpdatePageRequest struct {
	Properties Properties `json:"properties,omitempty"`
	Archived   *bool      `json:"archived,omitempty"`
}

type Sort struct {
	Property  string `json:"property,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Direction string `json:"direction"`
}

type QueryRequest struct {
	Filter      map[string]any `json:"filter,omitempty"`
	Sorts       []Sort         `json:"sorts,omitempty"`
	StartCursor string         `json:"start_cursor,omitempty"`
	PageSize    int            `json:"page_size,omitempty"`
}

type QueryResponse struct {
	Object     string  `json:"object,omitempty"`
	Results    []Page  `json:"results"`
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}

// Block keeps the kind specific content raw; page bodies are passed
// through untouched.
type Block struct {
	Object      string                     `json:"object,omitempty"`
	ID          string                     `json:"id,omitempty"`
	Type        string                     `json:"type"`
	HasChildren bool                       `json:"has_children,omitempty"`
	Archived    bool                       `json:"archived,omitempty"`
	Content     map[string]json.RawMessage `json:"-"`
}

func (b Block) MarshalJSON() ([]byte, error) {
	out := map[string]any{"type": b.Type}
	if b.Object != "" {
		out["object"] = b.Object
	}
	if b.ID != "" {
		out["id"] = b.ID
	}
	if body, ok := b.Content[b.Type]; ok {
		out[b.Type] = body
	} else {
		out[b.Type] = map[string]any{}
	}
	return json.Marshal(out)
}

func (b *Block) UnmarshalJSON(data []byte) error {
	type plain Block
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = Block(p)
	if body, ok := raw[b.Type]; ok {
		b.Content = map[string]json.RawMessage{b.Type: body}
	}
	return nil
}

// MaxTextLength is the longest content one rich text run may carry.
const MaxTextLength = 2000

// TextRuns splits text into runs of at most MaxTextLength characters.
func TextRuns(text string) []RichText {
	runes := []rune(text)
	runs := make([]RichText, 0, len(runes)/MaxTextLength+1)
	for start := 0; start < len(runes); start += MaxTextLength {
		end := min(start+MaxTextLength, len(runes))
		runs = append(runs, NewText(string(runes[start:end])))
	}
	return runs
}

// ParagraphBlock builds a paragraph holding text.
func ParagraphBlock(text string) Block {
	body, _ := json.Marshal(map[string]any{"rich_text": TextRuns(text)})
	return Block{Object: "block", Type: "paragraph", Content: map[string]json.RawMessage{"paragraph": body}}
}

// PlainText returns the text of a block that carries rich text, such as a
// paragraph or heading, and "" for any other block.
func (b Block) PlainText() string {
	body, ok := b.Content[b.Type]
	if !ok {
		return ""
	}
	var content struct {
		RichText []RichText `json:"rich_text"`
	}
	if err := json.Unmarshal(body, &content); err != nil {
		return ""
	}
	return PlainText(content.RichText)
}

type BlockList struct {
	Object     string  `json:"object,omitempty"`
	Results    []Block `json:"results"`
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}

type AppendBlockChildrenRequest struct {
	Children []Block `json:"children"`
}
