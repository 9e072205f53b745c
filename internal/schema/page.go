package schema

import (
	"fmt"

	"github.com/sumandas0/notionmbse/internal/notion"
	"github.com/sumandas0/notionmbse/pkg/utils"
)

// Page is one record of a PageType.
type Page struct {
	Type   *PageType
	ID     string
	Values map[string]any
}

func (p *Page) Get(field string) (any, bool) {
	v, ok := p.Values[field]
	return v, ok
}

// Set assigns a mapped field. Unknown fields are rejected.
func (p *Page) Set(field string, value any) error {
	if _, ok := p.Type.Get(field); !ok {
		return utils.NewValidationError(fmt.Sprintf("%s has no field %s", p.Type.Name(), field), nil)
	}
	if p.Values == nil {
		p.Values = make(map[string]any)
	}
	p.Values[field] = value
	return nil
}

func (p *Page) Properties() (notion.Properties, error) {
	return p.Type.Encode(p.Values)
}

func (p *Page) String() string {
	title := p.Values[p.Type.Title().Field]
	if title == nil {
		title = ""
	}
	return fmt.Sprintf("%s(%s - %v)", p.Type.Name(), p.ID, title)
}
