package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/sumandas0/notionmbse/internal/models"
	"github.com/sumandas0/notionmbse/internal/notion"
)

// MaxRichTextLength is the longest content a single rich text run accepts.
const MaxRichTextLength = notion.MaxTextLength

func encodeValue(d PropertyDescriptor, value any) (notion.PropertyValue, error) {
	pv := notion.PropertyValue{Type: string(d.Kind)}

	switch d.Kind {
	case KindTitle:
		text, err := textOf(value)
		if err != nil {
			return pv, err
		}
		pv.Title = richText(text)

	case KindRichText:
		text, err := textOf(value)
		if err != nil {
			return pv, err
		}
		pv.RichText = richText(text)

	case KindSelect:
		text, err := textOf(value)
		if err != nil {
			return pv, err
		}
		if text != "" {
			pv.Select = &notion.SelectOption{Name: text}
		}

	case KindMultiSelect:
		items, err := listOf(value)
		if err != nil {
			return pv, err
		}
		pv.MultiSelect = make([]notion.SelectOption, 0, len(items))
		for _, item := range items {
			if item != "" {
				pv.MultiSelect = append(pv.MultiSelect, notion.SelectOption{Name: item})
			}
		}

	case KindNumber:
		n, ok, err := numberOf(value)
		if err != nil {
			return pv, err
		}
		if ok {
			pv.Number = &n
		}

	case KindCheckbox:
		switch v := value.(type) {
		case nil:
		case bool:
			pv.Checkbox = v
		default:
			return pv, fmt.Errorf("expected a boolean, got %T", value)
		}

	case KindDate:
		start, err := dateOf(value)
		if err != nil {
			return pv, err
		}
		if start != "" {
			pv.Date = &notion.DateValue{Start: start}
		}

	case KindURL:
		text, err := textOf(value)
		if err != nil {
			return pv, err
		}
		if text != "" {
			pv.URL = &text
		}

	case KindRelation:
		ids, err := listOf(value)
		if err != nil {
			return pv, err
		}
		pv.Relation = make([]notion.Relation, 0, len(ids))
		for _, id := range ids {
			pv.Relation = append(pv.Relation, notion.Relation{ID: id})
		}

	default:
		return pv, fmt.Errorf("unsupported property kind %q", d.Kind)
	}
	return pv, nil
}

// decodeValue dispatches on the value's own type so that columns changed
// server side, such as select to status, still decode.
func decodeValue(d PropertyDescriptor, pv notion.PropertyValue) any {
	var out any
	switch pv.Type {
	case notion.TypeTitle:
		out = notion.PlainText(pv.Title)
	case notion.TypeRichText:
		out = notion.PlainText(pv.RichText)
	case notion.TypeSelect:
		if pv.Select != nil {
			out = pv.Select.Name
		}
	case notion.TypeStatus:
		if pv.Status != nil {
			out = pv.Status.Name
		}
	case notion.TypeMultiSelect:
		names := make([]string, 0, len(pv.MultiSelect))
		for _, o := range pv.MultiSelect {
			names = append(names, o.Name)
		}
		return names
	case notion.TypeNumber:
		if pv.Number != nil {
			out = *pv.Number
		}
	case notion.TypeCheckbox:
		return pv.Checkbox
	case notion.TypeDate:
		if pv.Date != nil {
			out = pv.Date.Start
		}
	case notion.TypeURL:
		out = derefString(pv.URL)
	case notion.TypeEmail:
		out = derefString(pv.Email)
	case notion.TypePhoneNumber:
		out = derefString(pv.PhoneNumber)
	case notion.TypeRelation:
		ids := make([]string, 0, len(pv.Relation))
		for _, r := range pv.Relation {
			ids = append(ids, r.ID)
		}
		return ids
	}

	if s, ok := out.(string); ok && s == "" && d.Nullable {
		return nil
	}
	if out == nil && !d.Nullable {
		switch d.Kind {
		case KindTitle, KindRichText, KindSelect, KindURL:
			return ""
		}
	}
	return out
}

func derefString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func richText(text string) []notion.RichText {
	return notion.TextRuns(text)
}

func textOf(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int, int32, int64:
		return fmt.Sprint(v), nil
	case []any, map[string]any, []string:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("cannot render %T as text", value)
	}
}

func listOf(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			text, err := textOf(item)
			if err != nil {
				return nil, err
			}
			out = append(out, text)
		}
		return out, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return []string{v}, nil
	default:
		return nil, fmt.Errorf("expected a list, got %T", value)
	}
}

func numberOf(value any) (float64, bool, error) {
	switch v := value.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return v, true, nil
	case float32:
		return float64(v), true, nil
	case int:
		return float64(v), true, nil
	case int32:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	case json.Number:
		f, err := v.Float64()
		return f, err == nil, err
	default:
		return 0, false, fmt.Errorf("expected a number, got %T", value)
	}
}

func dateOf(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		if v == "" {
			return "", nil
		}
		ts, err := models.ParseTimestamp(v)
		if err != nil {
			return "", err
		}
		return ts.Format(time.RFC3339Nano), nil
	case float64:
		return models.TimestampFromEpoch(v).Format(time.RFC3339Nano), nil
	case models.Timestamp:
		return v.Format(time.RFC3339Nano), nil
	case *models.Timestamp:
		if v == nil {
			return "", nil
		}
		return v.Format(time.RFC3339Nano), nil
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano), nil
	default:
		return "", fmt.Errorf("expected a date, got %T", value)
	}
}
