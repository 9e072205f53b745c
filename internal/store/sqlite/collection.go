package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/sumandas0/notionmbse/internal/store"
)

const documentsTable = "documents"

// Collection is one named collection inside a Store.
type Collection struct {
	store *Store
	name  string
}

var _ store.Collection = (*Collection)(nil)

func (c *Collection) Name() string {
	return c.name
}

func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}

// where renders a filter as json_extract equality conditions.
func (c *Collection) where(filter store.Filter) (squirrel.And, error) {
	normalized, err := store.NormalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	values, nulls := store.SplitFilter(normalized)

	cond := squirrel.And{squirrel.Eq{"collection": c.name}}
	slices.Sort(nulls)
	for _, field := range nulls {
		cond = append(cond, squirrel.Expr("json_extract(body, ?) IS NULL", jsonPath(field)))
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, field := range keys {
		switch v := values[field].(type) {
		case map[string]any, []any:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("failed to encode filter value for %s: %w", field, err)
			}
			cond = append(cond, squirrel.Expr("json_extract(body, ?) = json(?)", jsonPath(field), string(data)))
		case bool:
			b := 0
			if v {
				b = 1
			}
			cond = append(cond, squirrel.Expr("json_extract(body, ?) = ?", jsonPath(field), b))
		default:
			cond = append(cond, squirrel.Expr("json_extract(body, ?) = ?", jsonPath(field), v))
		}
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
		Values(c.name, squirrel.Expr("json(?)", string(data))).
		ToSql()
	if err != nil {
		return store.InsertResult{}, fmt.Errorf("failed to build insert: %w", err)
	}

	res, err := c.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return store.InsertResult{}, fmt.Errorf("failed to insert document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.InsertResult{}, fmt.Errorf("failed to read insert result: %w", err)
	}
	return store.InsertResult{Acknowledged: n == 1, InsertedID: doc["id"]}, nil
}

func (c *Collection) FindOne(ctx context.Context, filter store.Filter) (store.Document, error) {
	for doc, err := range c.Find(ctx, filter, 1) {
		return doc, err
	}
	return nil, nil
}

// Find reads every match before yielding so callers may write to the
// collection while iterating over the single connection.
func (c *Collection) Find(ctx context.Context, filter store.Filter, limit int) iter.Seq2[store.Document, error] {
	return func(yield func(store.Document, error) bool) {
		docs, err := c.find(ctx, filter, limit)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, doc := range docs {
			if !yield(doc, nil) {
				return
			}
		}
	}
}

func (c *Collection) find(ctx context.Context, filter store.Filter, limit int) ([]store.Document, error) {
	cond, err := c.where(filter)
	if err != nil {
		return nil, err
	}

	sel := c.store.sq.Select("body").From(documentsTable).Where(cond).OrderBy("seq")
	if limit > 0 {
		sel = sel.Limit(uint64(limit))
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := c.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		var doc store.Document
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

// jsonSet renders json_set(body, path, json(value), ...) for every key of set.
func jsonSet(set store.Document) (string, []any, error) {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var sb strings.Builder
	sb.WriteString("json_set(body")
	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		data, err := json.Marshal(set[k])
		if err != nil {
			return "", nil, fmt.Errorf("failed to encode value for %s: %w", k, err)
		}
		sb.WriteString(", ?, json(?)")
		args = append(args, jsonPath(k), string(data))
	}
	sb.WriteString(")")
	return sb.String(), args, nil
}

func (c *Collection) update(ctx context.Context, filter store.Filter, set store.Document, one bool) (store.UpdateResult, error) {
	cond, err := c.where(filter)
	if err != nil {
		return store.UpdateResult{}, err
	}
	setSQL, setArgs, err := jsonSet(set)
	if err != nil {
		return store.UpdateResult{}, err
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	seqs, err := c.matchingSeqs(ctx, tx, cond, one)
	if err != nil {
		return store.UpdateResult{}, err
	}
	result := store.UpdateResult{MatchedCount: int64(len(seqs))}
	if len(seqs) == 0 || len(set) == 0 {
		return result, tx.Commit()
	}

	query, args, err := c.store.sq.Update(documentsTable).
		Set("body", squirrel.Expr(setSQL, setArgs...)).
		Where(squirrel.Eq{"seq": seqs}).
		Where(squirrel.Expr(setSQL+" IS NOT body", setArgs...)).
		ToSql()
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("failed to build update: %w", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return store.UpdateResult{}, fmt.Errorf("failed to update documents: %w", err)
	}
	if result.ModifiedCount, err = res.RowsAffected(); err != nil {
		return store.UpdateResult{}, fmt.Errorf("failed to read update result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return store.UpdateResult{}, fmt.Errorf("failed to commit update: %w", err)
	}
	return result, nil
}

func (c *Collection) matchingSeqs(ctx context.Context, tx *sql.Tx, cond squirrel.And, one bool) ([]int64, error) {
	sel := c.store.sq.Select("seq").From(documentsTable).Where(cond).OrderBy("seq")
	if one {
		sel = sel.Limit(1)
	}
	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select: %w", err)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var seqs []int64
	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, fmt.Errorf("failed to scan seq: %w", err)
		}
		seqs = append(seqs, seq)
	}
	return seqs, rows.Err()
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
		first := c.store.sq.Select("seq").From(documentsTable).Where(cond).OrderBy("seq").Limit(1)
		subSQL, subArgs, err := first.ToSql()
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
	res, err := c.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return store.DeleteResult{}, fmt.Errorf("failed to delete documents: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.DeleteResult{}, fmt.Errorf("failed to read delete result: %w", err)
	}
	return store.DeleteResult{DeletedCount: n}, nil
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
	if err := c.store.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

func (c *Collection) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// Close is a no-op; the Store owns the connection.
func (c *Collection) Close() error {
	return nil
}
