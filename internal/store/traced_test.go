package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumandas0/notionmbse/internal/observability"
	"github.com/sumandas0/notionmbse/internal/store"
	"github.com/sumandas0/notionmbse/internal/store/memory"
	"github.com/sumandas0/notionmbse/internal/store/storetest"
)

func TestTracedCollection(t *testing.T) {
	tracer, err := observability.NewTracingManager(observability.TracingConfig{Enabled: false})
	require.NoError(t, err)

	storetest.RunCollectionSuite(t, func(t *testing.T) store.Collection {
		return store.NewTracedCollection(memory.NewCollection("elements"), tracer, "memory")
	})
}

func TestTracedCollectionWithoutTracer(t *testing.T) {
	coll := memory.NewCollection("elements")
	assert.Same(t, coll, store.NewTracedCollection(coll, nil, "memory"))
}

func TestTracedFindStopsEarly(t *testing.T) {
	ctx := context.Background()
	tracer, err := observability.NewTracingManager(observability.TracingConfig{Enabled: false})
	require.NoError(t, err)
	coll := store.NewTracedCollection(memory.NewCollection("elements"), tracer, "memory")

	for _, id := range []string{"a", "b", "c"} {
		_, err := coll.InsertOne(ctx, store.Document{"id": id})
		require.NoError(t, err)
	}

	var seen []any
	for doc, err := range coll.Find(ctx, nil, 0) {
		require.NoError(t, err)
		seen = append(seen, doc["id"])
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []any{"a", "b"}, seen)
}
