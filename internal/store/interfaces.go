package store

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"maps"
)

// Document is a stored record in its canonical field map form.
type Document = map[string]any

// Filter is a field to value mapping ANDed implicitly. Values are compared
// by exact equality; a nil value matches a field that is missing or null.
type Filter = map[string]any

// Collection is the narrow document-collection port the collection
// controller depends on.
type Collection interface {
	Name() string

	InsertOne(ctx context.Context, doc Document) (InsertResult, error)
	// FindOne returns nil and no error when nothing matches.
	FindOne(ctx context.Context, filter Filter) (Document, error)
	// Find yields matches in insertion order. A limit <= 0 means no limit.
	Find(ctx context.Context, filter Filter, limit int) iter.Seq2[Document, error]
	UpdateOne(ctx context.Context, filter Filter, set Document) (UpdateResult, error)
	UpdateMany(ctx context.Context, filter Filter, set Document) (UpdateResult, error)
	DeleteOne(ctx context.Context, filter Filter) (DeleteResult, error)
	DeleteMany(ctx context.Context, filter Filter) (DeleteResult, error)
	Count(ctx context.Context, filter Filter) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

type InsertResult struct {
	Acknowledged bool
	InsertedID   any
}

// UpdateResult counts matched documents and those whose stored form changed.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

type DeleteResult struct {
	DeletedCount int64
}

// ApplySet returns doc with every key of set overwritten.
func ApplySet(doc Document, set Document) Document {
	merged := maps.Clone(doc)
	if merged == nil {
		merged = make(Document, len(set))
	}
	maps.Copy(merged, set)
	return merged
}

// SplitFilter separates null-matching keys from value-matching ones.
func SplitFilter(filter Filter) (values Filter, nulls []string) {
	values = make(Filter, len(filter))
	for k, v := range filter {
		if v == nil {
			nulls = append(nulls, k)
			continue
		}
		values[k] = v
	}
	return values, nulls
}

// NormalizeFilter renders filter values in their JSON decoded form.
func NormalizeFilter(filter Filter) (Filter, error) {
	if len(filter) == 0 {
		return Filter{}, nil
	}
	data, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter: %w", err)
	}
	var normalized Filter
	if err := json.Unmarshal(data, &normalized); err != nil {
		return nil, fmt.Errorf("failed to decode filter: %w", err)
	}
	return normalized, nil
}
