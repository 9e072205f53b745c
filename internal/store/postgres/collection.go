package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"slices"

	"github.com/Masterminds/squirrel"

	"github.com/sumandas0/notionmbse/internal/store"
)

const documentsTable = "documents"

// Collection is one named collection of a PostgresStore. Filters compile to
// jsonb equality on top level keys.
type Collection struct {
	store *PostgresStore
	name  string
}

var _ store.Collection = (*Collection)(nil)

func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) where(filter store.Filter) (squirrel.And, error) {
	normalized, err := store.NormalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	values, nulls := store.SplitFilter(normalized)

	cond := squirrel.And{squirrel.Eq{"collection": c.name}}
	slices.Sort(nulls)
	for _, field := range nulls {
		cond = append(cond, squirrel.Expr("(body -> ?::text IS NULL OR body -> ?::text = 'null'::jsonb)", field, field))
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, field := range keys {
		data, err := json.Marshal(values[field])
		if err != nil {
			return nil, fmt.Errorf("failed to encode filter value for %s: %w", field, err)
		}
		cond = append(cond, squirrel.Expr("body -> ?::text = ?::text::jsonb", field, string(data)))
	}
	return cond, nil
}

func (c *Collection) InsertOne(ctx context.Context, doc store.Document) (store.InsertResult, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return store.InsertResult{}, fmt.Errorf("failed to marshal document: %w", err)
	}

	query, args, err := c.store.sq.Insert(documentsTable).
		Columns("collection", "body").
		Values(c.name, squirrel.Expr("?::text::jsonb", string(data))).
		Suffix("RETURNING seq").
		ToSql()
	if err != nil {
		return store.InsertResult{}, fmt.Errorf("failed to build insert: %w", err)
	}

	var seq int64
	if err := c.store.pool.QueryRow(ctx, query, args...).Scan(&seq); err != nil {
		return store.InsertResult{}, fmt.Errorf("failed to insert document: %w", err)
	}
	return store.InsertResult{Acknowledged: seq > 0, InsertedID: doc["id"]}, nil
}

func (c *Collection) FindOne(ctx context.Context, filter store.Filter) (store.Document, error) {
	for doc, err := range c.Find(ctx, filter, 1) {
		return doc, err
	}
	return nil, nil
}

func (c *Collection) Find(ctx context.Context, filter store.Filter, limit int) iter.Seq2[store.Document, error] {
	return func(yield func(store.Document, error) bool) {
		cond, err := c.where(filter)
		if err != nil {
			yield(nil, err)
			return
		}

		sel := c.store.sq.Select("body::text").From(documentsTable).Where(cond).OrderBy("seq")
		if limit > 0 {
			sel = sel.Limit(uint64(limit))
		}
		query, args, err := sel.ToSql()
		if err != nil {
			yield(nil, fmt.Errorf("failed to build select: %w", err))
			return
		}

		rows, err := c.store.pool.Query(ctx, query, args...)
		if err != nil {
			yield(nil, fmt.Errorf("failed to query documents: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var body string
			if err := rows.Scan(&body); err != nil {
				yield(nil, fmt.Errorf("failed to scan document: %w", err))
				return
			}
			var doc store.Document
			if err := json.Unmarshal([]byte(body), &doc); err != nil {
				yield(nil, fmt.Errorf("failed to unmarshal document: %w", err))
				return
			}
			if !yield(doc, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("failed to iterate documents: %w", err))
		}
	}
}

func (c *Collection) update(ctx context.Context, filter store.Filter, set store.Document, one bool) (store.UpdateResult, error) {
	cond, err := c.where(filter)
	if err != nil {
		return store.UpdateResult{}, err
	}
	condSQL, condArgs, err := cond.ToSql()
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("failed to build filter: %w", err)
	}
	data, err := json.Marshal(set)
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("failed to marshal update: %w", err)
	}

	limit := ""
	if one {
		limit = " LIMIT 1"
	}
	raw := fmt.Sprintf(`
		WITH target AS (
			SELECT seq FROM %[1]s WHERE %[2]s ORDER BY seq%[3]s FOR UPDATE
		), changed AS (
			UPDATE %[1]s d SET body = d.body || ?::text::jsonb
			FROM target t
			WHERE d.seq = t.seq AND (d.body || ?::text::jsonb) IS DISTINCT FROM d.body
			RETURNING d.seq
		)
		SELECT (SELECT count(*) FROM target), (SELECT count(*) FROM changed)
	`, documentsTable, condSQL, limit)

	query, err := squirrel.Dollar.ReplacePlaceholders(raw)
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("failed to build update: %w", err)
	}
	args := append(condArgs, string(data), string(data))

	var result store.UpdateResult
	if err := c.store.pool.QueryRow(ctx, query, args...).Scan(&result.MatchedCount, &result.ModifiedCount); err != nil {
		return store.UpdateResult{}, fmt.Errorf("failed to update documents: %w", err)
	}
	return result, nil
}

func (c *Collection) UpdateOne(ctx context.Context, filter store.Filter, set store.Document) (store.UpdateResult, error) {
	return c.update(ctx, filter, set, true)
}

func (c *Collection) UpdateMany(ctx context.Context, filter store.Filter, set store.Document) (store.UpdateResult, error) {
	return c.update(ctx, filter, set, false)
}

func (c *Collection) delete(ctx context.Context, filter store.Filter, one bool) (store.DeleteResult, error) {
	cond, err := c.where(filter)
	if err != nil {
		return store.DeleteResult{}, err
	}

	del := c.store.sq.Delete(documentsTable)
	if one {
		subSQL, subArgs, err := squirrel.Select("seq").From(documentsTable).Where(cond).OrderBy("seq").Limit(1).ToSql()
		if err != nil {
			return store.DeleteResult{}, fmt.Errorf("failed to build select: %w", err)
		}
		del = del.Where(squirrel.Expr("seq = ("+subSQL+")", subArgs...))
	} else {
		del = del.Where(cond)
	}

	query, args, err := del.ToSql()
	if err != nil {
		return store.DeleteResult{}, fmt.Errorf("failed to build delete: %w", err)
	}
	tag, err := c.store.pool.Exec(ctx, query, args...)
	if err != nil {
		return store.DeleteResult{}, fmt.Errorf("failed to delete documents: %w", err)
	}
	return store.DeleteResult{DeletedCount: tag.RowsAffected()}, nil
}

func (c *Collection) DeleteOne(ctx context.Context, filter store.Filter) (store.DeleteResult, error) {
	return c.delete(ctx, filter, true)
}

func (c *Collection) DeleteMany(ctx context.Context, filter store.Filter) (store.DeleteResult, error) {
	return c.delete(ctx, filter, false)
}

func (c *Collection) Count(ctx context.Context, filter store.Filter) (int64, error) {
	cond, err := c.where(filter)
	if err != nil {
		return 0, err
	}
	query, args, err := c.store.sq.Select("COUNT(*)").From(documentsTable).Where(cond).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count: %w", err)
	}

	var n int64
	if err := c.store.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

func (c *Collection) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// Close is a no-op; the PostgresStore owns the pool.
func (c *Collection) Close() error {
	return nil
}
