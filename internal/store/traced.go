package store

import (
	"context"
	"iter"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sumandas0/notionmbse/internal/observability"
)

// TracedCollection records a span for every call on the wrapped collection.
type TracedCollection struct {
	Collection
	tracer *observability.TracingManager
	system string
}

var _ Collection = (*TracedCollection)(nil)

// NewTracedCollection wraps coll. system names the backing database, e.g.
// "sqlite" or "postgresql". A nil tracer returns coll unchanged.
func NewTracedCollection(coll Collection, tracer *observability.TracingManager, system string) Collection {
	if tracer == nil {
		return coll
	}
	return &TracedCollection{Collection: coll, tracer: tracer, system: system}
}

func (c *TracedCollection) start(ctx context.Context, operation string) (context.Context, trace.Span) {
	return c.tracer.StartStoreOperation(ctx, operation, c.Name(), c.system)
}

func (c *TracedCollection) end(span trace.Span, err error) {
	c.tracer.SetSpanError(span, err)
	span.End()
}

func (c *TracedCollection) InsertOne(ctx context.Context, doc Document) (InsertResult, error) {
	ctx, span := c.start(ctx, "insert_one")
	res, err := c.Collection.InsertOne(ctx, doc)
	c.end(span, err)
	return res, err
}

func (c *TracedCollection) FindOne(ctx context.Context, filter Filter) (Document, error) {
	ctx, span := c.start(ctx, "find_one")
	doc, err := c.Collection.FindOne(ctx, filter)
	span.SetAttributes(attribute.Bool("db.found", doc != nil))
	c.end(span, err)
	return doc, err
}

// Find keeps its span open until the caller stops iterating.
func (c *TracedCollection) Find(ctx context.Context, filter Filter, limit int) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		ctx, span := c.start(ctx, "find")
		var (
			n      int64
			failed error
		)
		defer func() {
			span.SetAttributes(attribute.Int64("db.documents", n))
			c.end(span, failed)
		}()
		for doc, err := range c.Collection.Find(ctx, filter, limit) {
			if err != nil {
				failed = err
			} else {
				n++
			}
			if !yield(doc, err) {
				return
			}
		}
	}
}

func (c *TracedCollection) UpdateOne(ctx context.Context, filter Filter, set Document) (UpdateResult, error) {
	ctx, span := c.start(ctx, "update_one")
	res, err := c.Collection.UpdateOne(ctx, filter, set)
	span.SetAttributes(attribute.Int64("db.modified", res.ModifiedCount))
	c.end(span, err)
	return res, err
}

func (c *TracedCollection) UpdateMany(ctx context.Context, filter Filter, set Document) (UpdateResult, error) {
	ctx, span := c.start(ctx, "update_many")
	res, err := c.Collection.UpdateMany(ctx, filter, set)
	span.SetAttributes(attribute.Int64("db.modified", res.ModifiedCount))
	c.end(span, err)
	return res, err
}

func (c *TracedCollection) DeleteOne(ctx context.Context, filter Filter) (DeleteResult, error) {
	ctx, span := c.start(ctx, "delete_one")
	res, err := c.Collection.DeleteOne(ctx, filter)
	c.end(span, err)
	return res, err
}

func (c *TracedCollection) DeleteMany(ctx context.Context, filter Filter) (DeleteResult, error) {
	ctx, span := c.start(ctx, "delete_many")
	res, err := c.Collection.DeleteMany(ctx, filter)
	c.end(span, err)
	return res, err
}

func (c *TracedCollection) Count(ctx context.Context, filter Filter) (int64, error) {
	ctx, span := c.start(ctx, "count")
	n, err := c.Collection.Count(ctx, filter)
	c.end(span, err)
	return n, err
}
