package notiontest

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sumandas0/notionmbse/internal/notion"
)

// matchFilter evaluates the subset of the query filter language the
// controllers emit: and/or compounds and equals, does_not_equal, contains
// and is_empty conditions on a single property.
func matchFilter(db *notion.Database, page *notion.Page, filter map[string]any) (bool, error) {
	if clauses, ok := filter["and"].([]any); ok {
		for _, c := range clauses {
			sub, ok := c.(map[string]any)
			if !ok {
				return false, fmt.Errorf("filter.and should be a list of filters")
			}
			matched, err := matchFilter(db, page, sub)
			if err != nil || !matched {
				return false, err
			}
		}
		return true, nil
	}
	if clauses, ok := filter["or"].([]any); ok {
		for _, c := range clauses {
			sub, ok := c.(map[string]any)
			if !ok {
				return false, fmt.Errorf("filter.or should be a list of filters")
			}
			matched, err := matchFilter(db, page, sub)
			if err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}
		return false, nil
	}

	key, _ := filter["property"].(string)
	name, col, ok := resolveColumn(db, key)
	if !ok {
		return false, fmt.Errorf("could not find property with name or id: %s", key)
	}

	kind := col.Type
	cond, ok := filter[kind].(map[string]any)
	if !ok {
		return false, fmt.Errorf("filter for property %s should carry a %s condition", name, kind)
	}

	value := page.Properties[name]
	switch {
	case cond["is_empty"] == true:
		return isEmpty(value), nil
	case cond["is_not_empty"] == true:
		return !isEmpty(value), nil
	}
	if want, ok := cond["equals"]; ok {
		return equals(value, want), nil
	}
	if want, ok := cond["does_not_equal"]; ok {
		return !equals(value, want), nil
	}
	if want, ok := cond["contains"]; ok {
		return contains(value, want), nil
	}
	return false, fmt.Errorf("unsupported condition for property %s", name)
}

func scalar(pv notion.PropertyValue) any {
	switch pv.Type {
	case notion.TypeTitle:
		return notion.PlainText(pv.Title)
	case notion.TypeRichText:
		return notion.PlainText(pv.RichText)
	case notion.TypeSelect:
		if pv.Select != nil {
			return pv.Select.Name
		}
	case notion.TypeStatus:
		if pv.Status != nil {
			return pv.Status.Name
		}
	case notion.TypeNumber:
		if pv.Number != nil {
			return *pv.Number
		}
	case notion.TypeCheckbox:
		return pv.Checkbox
	case notion.TypeURL:
		if pv.URL != nil {
			return *pv.URL
		}
	case notion.TypeDate:
		if pv.Date != nil {
			return pv.Date.Start
		}
	}
	return nil
}

func isEmpty(pv notion.PropertyValue) bool {
	switch pv.Type {
	case notion.TypeMultiSelect:
		return len(pv.MultiSelect) == 0
	case notion.TypeRelation:
		return len(pv.Relation) == 0
	case notion.TypeCheckbox:
		return false
	}
	v := scalar(pv)
	return v == nil || v == ""
}

func equals(pv notion.PropertyValue, want any) bool {
	got := scalar(pv)
	if n, ok := want.(float64); ok {
		f, isNum := got.(float64)
		return isNum && f == n
	}
	return got == want
}

func contains(pv notion.PropertyValue, want any) bool {
	switch pv.Type {
	case notion.TypeMultiSelect:
		return slices.ContainsFunc(pv.MultiSelect, func(o notion.SelectOption) bool { return o.Name == want })
	case notion.TypeRelation:
		return slices.ContainsFunc(pv.Relation, func(r notion.Relation) bool { return r.ID == want })
	}
	s, ok := scalar(pv).(string)
	w, isStr := want.(string)
	return ok && isStr && strings.Contains(strings.ToLower(s), strings.ToLower(w))
}
