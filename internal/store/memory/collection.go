package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"reflect"
	"slices"
	"sync"

	"github.com/sumandas0/notionmbse/internal/store"
)

// Collection keeps documents in insertion order in process memory.
// Documents are stored in their JSON-decoded form so comparisons behave the
// same as in the SQL backed collections.
type Collection struct {
	mu     sync.RWMutex
	name   string
	docs   []store.Document
	closed bool
}

func NewCollection(name string) *Collection {
	return &Collection{name: name}
}

func (c *Collection) Name() string {
	return c.name
}

func normalize(v any) (store.Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var doc store.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if doc == nil {
		doc = store.Document{}
	}
	return doc, nil
}

func matches(doc store.Document, filter store.Filter) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if want == nil {
			if ok && got != nil {
				return false
			}
			continue
		}
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func (c *Collection) checkOpen() error {
	if c.closed {
		return fmt.Errorf("collection %s is closed", c.name)
	}
	return nil
}

func (c *Collection) InsertOne(ctx context.Context, doc store.Document) (store.InsertResult, error) {
	normalized, err := normalize(doc)
	if err != nil {
		return store.InsertResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpen(); err != nil {
		return store.InsertResult{}, err
	}
	c.docs = append(c.docs, normalized)
	return store.InsertResult{Acknowledged: true, InsertedID: normalized["id"]}, nil
}

func (c *Collection) FindOne(ctx context.Context, filter store.Filter) (store.Document, error) {
	for doc, err := range c.Find(ctx, filter, 1) {
		return doc, err
	}
	return nil, nil
}

func (c *Collection) Find(ctx context.Context, filter store.Filter, limit int) iter.Seq2[store.Document, error] {
	return func(yield func(store.Document, error) bool) {
		q, err := normalize(filter)
		if err != nil {
			yield(nil, err)
			return
		}

		c.mu.RLock()
		if err := c.checkOpen(); err != nil {
			c.mu.RUnlock()
			yield(nil, err)
			return
		}
		var found []store.Document
		for _, doc := range c.docs {
			if matches(doc, q) {
				found = append(found, cloneDoc(doc))
				if limit > 0 && len(found) == limit {
					break
				}
			}
		}
		c.mu.RUnlock()

		for _, doc := range found {
			if !yield(doc, nil) {
				return
			}
		}
	}
}

func cloneDoc(doc store.Document) store.Document {
	// round trip to avoid sharing nested slices with callers
	clone, _ := normalize(doc)
	return clone
}

func (c *Collection) update(filter store.Filter, set store.Document, one bool) (store.UpdateResult, error) {
	q, err := normalize(filter)
	if err != nil {
		return store.UpdateResult{}, err
	}
	s, err := normalize(set)
	if err != nil {
		return store.UpdateResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpen(); err != nil {
		return store.UpdateResult{}, err
	}

	var result store.UpdateResult
	for i, doc := range c.docs {
		if !matches(doc, q) {
			continue
		}
		result.MatchedCount++
		merged := store.ApplySet(doc, s)
		if !reflect.DeepEqual(doc, merged) {
			c.docs[i] = merged
			result.ModifiedCount++
		}
		if one {
			break
		}
	}
	return result, nil
}

func (c *Collection) UpdateOne(ctx context.Context, filter store.Filter, set store.Document) (store.UpdateResult, error) {
	return c.update(filter, set, true)
}

func (c *Collection) UpdateMany(ctx context.Context, filter store.Filter, set store.Document) (store.UpdateResult, error) {
	return c.update(filter, set, false)
}

func (c *Collection) delete(filter store.Filter, one bool) (store.DeleteResult, error) {
	q, err := normalize(filter)
	if err != nil {
		return store.DeleteResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpen(); err != nil {
		return store.DeleteResult{}, err
	}

	var deleted int64
	c.docs = slices.DeleteFunc(c.docs, func(doc store.Document) bool {
		if one && deleted > 0 {
			return false
		}
		if matches(doc, q) {
			deleted++
			return true
		}
		return false
	})
	return store.DeleteResult{DeletedCount: deleted}, nil
}

func (c *Collection) DeleteOne(ctx context.Context, filter store.Filter) (store.DeleteResult, error) {
	return c.delete(filter, true)
}

func (c *Collection) DeleteMany(ctx context.Context, filter store.Filter) (store.DeleteResult, error) {
	return c.delete(filter, false)
}

func (c *Collection) Count(ctx context.Context, filter store.Filter) (int64, error) {
	q, err := normalize(filter)
	if err != nil {
		return 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	var n int64
	for _, doc := range c.docs {
		if matches(doc, q) {
			n++
		}
	}
	return n, nil
}

func (c *Collection) Ping(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.checkOpen()
}

func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
