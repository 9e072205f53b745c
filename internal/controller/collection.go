package controller

import (
	"context"
	"fmt"
	"iter"

	"github.com/sumandas0/notionmbse/internal/models"
	"github.com/sumandas0/notionmbse/internal/store"
	"github.com/sumandas0/notionmbse/pkg/utils"
)

// CollectionController stores records as documents of a store.Collection.
// Queries are passed to the collection as exact-match filters.
type CollectionController[T models.Record] struct {
	model *models.Model[T]
	coll  store.Collection
	obs   observer
}

var _ Controller[*models.Element] = (*CollectionController[*models.Element])(nil)

func NewCollectionController[T models.Record](model *models.Model[T], coll store.Collection, opts ...Option) *CollectionController[T] {
	o := buildOptions(opts)
	return &CollectionController[T]{
		model: model,
		coll:  coll,
		obs:   newObserver(BackendCollection, model.Name(), o),
	}
}

func (c *CollectionController[T]) Model() *models.Model[T] {
	return c.model
}

func (c *CollectionController[T]) Backend() string {
	return BackendCollection
}

func (c *CollectionController[T]) Collection() store.Collection {
	return c.coll
}

func (c *CollectionController[T]) Create(ctx context.Context, item any) (T, error) {
	var created T
	err := c.obs.observe(ctx, "create", func(ctx context.Context) error {
		record, err := c.model.Coerce(item)
		if err != nil {
			return err
		}
		doc, err := c.model.Dump(record)
		if err != nil {
			return err
		}

		res, err := c.coll.InsertOne(ctx, doc)
		if err != nil {
			return backendError(fmt.Sprintf("failed to insert %s", c.model.Name()), err)
		}
		if !res.Acknowledged {
			return utils.NewBackendError(fmt.Sprintf("insert of %s %s was not acknowledged", c.model.Name(), record.GetID()), nil)
		}
		created = record
		return nil
	})
	return created, err
}

func (c *CollectionController[T]) Read(ctx context.Context, id models.ObjectID) (T, bool, error) {
	return c.Get(ctx, Query{"id": id})
}

func (c *CollectionController[T]) Get(ctx context.Context, query Query) (T, bool, error) {
	var (
		item  T
		found bool
	)
	err := c.obs.observe(ctx, "get", func(ctx context.Context) error {
		filter, err := models.NormalizeQuery(query)
		if err != nil {
			return err
		}
		doc, err := c.coll.FindOne(ctx, filter)
		if err != nil {
			return backendError(fmt.Sprintf("failed to find %s", c.model.Name()), err)
		}
		if doc == nil {
			return nil
		}
		if item, err = c.model.Decode(doc); err != nil {
			return err
		}
		found = true
		return nil
	})
	return item, found, err
}

func (c *CollectionController[T]) ReadAll(ctx context.Context, query Query, limit int) ([]T, error) {
	var items []T
	err := c.obs.observe(ctx, "read_all", func(ctx context.Context) error {
		filter, err := models.NormalizeQuery(query)
		if err != nil {
			return err
		}
		for item, err := range c.find(ctx, filter, limit) {
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

func (c *CollectionController[T]) find(ctx context.Context, filter store.Filter, limit int) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		for doc, err := range c.coll.Find(ctx, filter, limit) {
			if err != nil {
				yield(zero, backendError(fmt.Sprintf("failed to list %s", c.model.Name()), err))
				return
			}
			item, err := c.model.Decode(doc)
			if !yield(item, err) || err != nil {
				return
			}
		}
	}
}

func (c *CollectionController[T]) Update(ctx context.Context, item T) (bool, error) {
	var modified bool
	err := c.obs.observe(ctx, "update", func(ctx context.Context) error {
		if err := c.model.Validate(item); err != nil {
			return err
		}
		doc, err := c.model.Dump(item)
		if err != nil {
			return err
		}
		res, err := c.coll.UpdateOne(ctx, store.Filter{"id": item.GetID().Hex()}, doc)
		if err != nil {
			return backendError(fmt.Sprintf("failed to update %s %s", c.model.Name(), item.GetID()), err)
		}
		modified = res.ModifiedCount > 0
		return nil
	})
	return modified, err
}

func (c *CollectionController[T]) UpdateMany(ctx context.Context, query Query, update map[string]any) (bool, error) {
	var modified bool
	err := c.obs.observe(ctx, "update_many", func(ctx context.Context) error {
		filter, err := models.NormalizeQuery(query)
		if err != nil {
			return err
		}
		set, err := models.NormalizeQuery(update)
		if err != nil {
			return err
		}
		res, err := c.coll.UpdateMany(ctx, filter, set)
		if err != nil {
			return backendError(fmt.Sprintf("failed to update %s records", c.model.Name()), err)
		}
		modified = res.ModifiedCount > 0
		return nil
	})
	return modified, err
}

func (c *CollectionController[T]) Delete(ctx context.Context, target any) (bool, error) {
	var deleted bool
	err := c.obs.observe(ctx, "delete", func(ctx context.Context) error {
		filter, err := c.deleteFilter(target)
		if err != nil {
			return err
		}
		res, err := c.coll.DeleteOne(ctx, filter)
		if err != nil {
			return backendError(fmt.Sprintf("failed to delete %s", c.model.Name()), err)
		}
		deleted = res.DeletedCount > 0
		return nil
	})
	return deleted, err
}

func (c *CollectionController[T]) deleteFilter(target any) (store.Filter, error) {
	switch t := target.(type) {
	case T:
		return store.Filter{"id": t.GetID().Hex()}, nil
	case models.ObjectID:
		return store.Filter{"id": t.Hex()}, nil
	case map[string]any:
		return models.NormalizeQuery(t)
	default:
		return nil, utils.NewValidationError(fmt.Sprintf("cannot delete %s by %T", c.model.Name(), target), nil)
	}
}

func (c *CollectionController[T]) DeleteAll(ctx context.Context) (bool, error) {
	var deleted bool
	err := c.obs.observe(ctx, "delete_all", func(ctx context.Context) error {
		res, err := c.coll.DeleteMany(ctx, store.Filter{})
		if err != nil {
			return backendError(fmt.Sprintf("failed to delete %s records", c.model.Name()), err)
		}
		deleted = res.DeletedCount > 0
		return nil
	})
	return deleted, err
}

// All streams every stored record in insertion order.
func (c *CollectionController[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return c.find(ctx, store.Filter{}, 0)
}

func (c *CollectionController[T]) Refresh(ctx context.Context, item T) (bool, error) {
	fresh, found, err := c.Read(ctx, item.GetID())
	if err != nil || !found {
		return false, err
	}
	c.model.Copy(item, fresh)
	return true, nil
}

func (c *CollectionController[T]) Count(ctx context.Context) (int64, error) {
	var n int64
	err := c.obs.observe(ctx, "count", func(ctx context.Context) error {
		var err error
		if n, err = c.coll.Count(ctx, store.Filter{}); err != nil {
			return backendError(fmt.Sprintf("failed to count %s records", c.model.Name()), err)
		}
		return nil
	})
	return n, err
}

func (c *CollectionController[T]) String() string {
	return fmt.Sprintf("CollectionController(collection=%s, model=%s)", c.coll.Name(), c.model.Name())
}
