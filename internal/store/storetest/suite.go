// Package storetest holds the behaviour every store.Collection must share.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumandas0/notionmbse/internal/models"
	"github.com/sumandas0/notionmbse/internal/store"
)

// RunCollectionSuite exercises a collection produced fresh by factory for
// every subtest.
func RunCollectionSuite(t *testing.T, factory func(t *testing.T) store.Collection) {
	ctx := context.Background()

	seed := func(t *testing.T, c store.Collection) {
		docs := []store.Document{
			{"id": "a", "name": "pump", "status": "Draft", "tags": []any{"fluid"}, "level": 1},
			{"id": "b", "name": "valve", "status": "Draft", "tags": []any{"fluid", "control"}, "level": 2},
			{"id": "c", "name": "motor", "status": "Approved", "tags": []any{}, "owner": nil},
		}
		for _, d := range docs {
			res, err := c.InsertOne(ctx, d)
			require.NoError(t, err)
			require.True(t, res.Acknowledged)
		}
	}

	t.Run("find one by field", func(t *testing.T) {
		c := factory(t)
		seed(t, c)

		doc, err := c.FindOne(ctx, store.Filter{"id": "b"})
		require.NoError(t, err)
		require.NotNil(t, doc)
		assert.Equal(t, "valve", doc["name"])
		assert.Equal(t, []any{"fluid", "control"}, doc["tags"])
		assert.Equal(t, float64(2), doc["level"])
	})

	t.Run("find one without match", func(t *testing.T) {
		c := factory(t)
		seed(t, c)

		doc, err := c.FindOne(ctx, store.Filter{"id": "zzz"})
		require.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("find with conjunction and limit", func(t *testing.T) {
		c := factory(t)
		seed(t, c)

		var names []string
		for doc, err := range c.Find(ctx, store.Filter{"status": "Draft"}, 0) {
			require.NoError(t, err)
			names = append(names, doc["name"].(string))
		}
		assert.Equal(t, []string{"pump", "valve"}, names)

		names = nil
		for doc, err := range c.Find(ctx, store.Filter{"status": "Draft"}, 1) {
			require.NoError(t, err)
			names = append(names, doc["name"].(string))
		}
		assert.Equal(t, []string{"pump"}, names)

		names = nil
		for doc, err := range c.Find(ctx, store.Filter{"status": "Draft", "level": 2}, 0) {
			require.NoError(t, err)
			names = append(names, doc["name"].(string))
		}
		assert.Equal(t, []string{"valve"}, names)
	})

	t.Run("exact equality on lists", func(t *testing.T) {
		c := factory(t)
		seed(t, c)

		n, err := c.Count(ctx, store.Filter{"tags": []any{"fluid"}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("nil matches missing and null", func(t *testing.T) {
		c := factory(t)
		seed(t, c)

		n, err := c.Count(ctx, store.Filter{"owner": nil})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("early stop", func(t *testing.T) {
		c := factory(t)
		seed(t, c)

		seen := 0
		for _, err := range c.Find(ctx, store.Filter{}, 0) {
			require.NoError(t, err)
			seen++
			break
		}
		assert.Equal(t, 1, seen)
	})

	t.Run("update one reports modification", func(t *testing.T) {
		c := factory(t)
		seed(t, c)

		res, err := c.UpdateOne(ctx, store.Filter{"id": "a"}, store.Document{"status": "Approved"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.MatchedCount)
		assert.Equal(t, int64(1), res.ModifiedCount)

		doc, err := c.FindOne(ctx, store.Filter{"id": "a"})
		require.NoError(t, err)
		assert.Equal(t, "Approved", doc["status"])
		assert.Equal(t, "pump", doc["name"])

		res, err = c.UpdateOne(ctx, store.Filter{"id": "a"}, store.Document{"status": "Approved"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.MatchedCount)
		assert.Equal(t, int64(0), res.ModifiedCount)

		res, err = c.UpdateOne(ctx, store.Filter{"id": "missing"}, store.Document{"status": "Approved"})
		require.NoError(t, err)
		assert.Equal(t, int64(0), res.MatchedCount)
		assert.Equal(t, int64(0), res.ModifiedCount)
	})

	t.Run("update sets null and new fields", func(t *testing.T) {
		c := factory(t)
		seed(t, c)

		res, err := c.UpdateOne(ctx, store.Filter{"id": "b"}, store.Document{"status": nil, "rank": 7.5})
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.ModifiedCount)

		doc, err := c.FindOne(ctx, store.Filter{"id": "b"})
		require.NoError(t, err)
		assert.Contains(t, doc, "status")
		assert.Nil(t, doc["status"])
		assert.Equal(t, 7.5, doc["rank"])
	})

	t.Run("update clears fields to empty", func(t *testing.T) {
		c := factory(t)

		e := models.NewElement("pump")
		e.Description = "old"
		e.Status = "Draft"
		doc, err := models.ElementModel.Dump(e)
		require.NoError(t, err)
		_, err = c.InsertOne(ctx, doc)
		require.NoError(t, err)

		e.Description = ""
		e.Status = ""
		doc, err = models.ElementModel.Dump(e)
		require.NoError(t, err)
		res, err := c.UpdateOne(ctx, store.Filter{"id": e.ID.Hex()}, doc)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.ModifiedCount)

		stored, err := c.FindOne(ctx, store.Filter{"id": e.ID.Hex()})
		require.NoError(t, err)
		require.NotNil(t, stored)
		got, err := models.ElementModel.Decode(stored)
		require.NoError(t, err)
		assert.Empty(t, got.Description)
		assert.Empty(t, got.Status)
		assert.Equal(t, "pump", got.Name)
	})

	t.Run("update many", func(t *testing.T) {
		c := factory(t)
		seed(t, c)

		res, err := c.UpdateMany(ctx, store.Filter{"status": "Draft"}, store.Document{"status": "Review"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.MatchedCount)
		assert.Equal(t, int64(2), res.ModifiedCount)

		n, err := c.Count(ctx, store.Filter{"status": "Review"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("delete one and many", func(t *testing.T) {
		c := factory(t)
		seed(t, c)

		res, err := c.DeleteOne(ctx, store.Filter{"status": "Draft"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.DeletedCount)

		doc, err := c.FindOne(ctx, store.Filter{"id": "a"})
		require.NoError(t, err)
		assert.Nil(t, doc)

		res, err = c.DeleteOne(ctx, store.Filter{"id": "a"})
		require.NoError(t, err)
		assert.Equal(t, int64(0), res.DeletedCount)

		res, err = c.DeleteMany(ctx, store.Filter{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.DeletedCount)

		n, err := c.Count(ctx, store.Filter{})
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("ping", func(t *testing.T) {
		c := factory(t)
		assert.NoError(t, c.Ping(ctx))
		assert.NotEmpty(t, c.Name())
	})
}
