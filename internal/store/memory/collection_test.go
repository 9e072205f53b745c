package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumandas0/notionmbse/internal/store"
	"github.com/sumandas0/notionmbse/internal/store/storetest"
)

func TestCollection(t *testing.T) {
	storetest.RunCollectionSuite(t, func(t *testing.T) store.Collection {
		return NewCollection("elements")
	})
}

func TestCollectionReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewCollection("elements")

	_, err := c.InsertOne(ctx, store.Document{"id": "a", "tags": []string{"x"}})
	require.NoError(t, err)

	doc, err := c.FindOne(ctx, store.Filter{"id": "a"})
	require.NoError(t, err)
	doc["tags"].([]any)[0] = "mutated"

	again, err := c.FindOne(ctx, store.Filter{"id": "a"})
	require.NoError(t, err)
	assert.Equal(t, []any{"x"}, again["tags"])
}

func TestClosedCollection(t *testing.T) {
	ctx := context.Background()
	c := NewCollection("elements")
	require.NoError(t, c.Close())

	_, err := c.InsertOne(ctx, store.Document{"id": "a"})
	assert.Error(t, err)
	assert.Error(t, c.Ping(ctx))

	_, err = c.FindOne(ctx, store.Filter{})
	assert.Error(t, err)
}
