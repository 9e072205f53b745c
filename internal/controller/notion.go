package controller

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/sumandas0/notionmbse/internal/models"
	"github.com/sumandas0/notionmbse/internal/notion"
	"github.com/sumandas0/notionmbse/internal/schema"
	"github.com/sumandas0/notionmbse/pkg/utils"
)

const (
	// QueryPageID looks a record up by workspace page id.
	QueryPageID = "page_id"
	// QueryID looks a record up by record id through the page index.
	QueryID = "id"
	// QueryFilter carries a workspace filter object passed through as is.
	QueryFilter = "filter"

	bodyField = "documentation"
)

// NotionController stores records as pages of one workspace database.
// Record ids are derived from page ids, so a created record comes back
// with the id of its page. The database must already carry a column for
// every mapped field; see SyncSchema.
type NotionController[T models.Record] struct {
	model      *models.Model[T]
	api        notion.API
	databaseID string
	base       *schema.PageType
	index      *PageIndex
	withBody   bool
	obs        observer

	mu     sync.RWMutex
	names  map[string]string
	layout *layout
}

var _ Controller[*models.Element] = (*NotionController[*models.Element])(nil)

// layout is the page type bound to the remote column names together with
// the remote column kinds.
type layout struct {
	pageType *schema.PageType
	remote   map[string]string
}

func NewNotionController[T models.Record](model *models.Model[T], api notion.API, databaseID string, opts ...Option) (*NotionController[T], error) {
	id, err := notion.NormalizeID(databaseID)
	if err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	base, err := pageTypeFor(model, o)
	if err != nil {
		return nil, err
	}

	props, _ := model.Schema()["properties"].(map[string]any)
	_, withBody := props[bodyField]

	return &NotionController[T]{
		model:      model,
		api:        api,
		databaseID: id,
		base:       base,
		index:      NewPageIndex(),
		withBody:   withBody,
		obs:        newObserver(BackendNotion, model.Name(), o),
		names:      make(map[string]string),
	}, nil
}

func (c *NotionController[T]) Model() *models.Model[T] {
	return c.model
}

func (c *NotionController[T]) Backend() string {
	return BackendNotion
}

func (c *NotionController[T]) DatabaseID() string {
	return c.databaseID
}

func (c *NotionController[T]) Index() *PageIndex {
	return c.index
}

// PageType returns the page type bound to the database's column names.
func (c *NotionController[T]) PageType(ctx context.Context) (*schema.PageType, error) {
	l, err := c.currentLayout(ctx)
	if err != nil {
		return nil, err
	}
	return l.pageType, nil
}

func (c *NotionController[T]) currentLayout(ctx context.Context) (*layout, error) {
	c.mu.RLock()
	l := c.layout
	c.mu.RUnlock()
	if l != nil {
		return l, nil
	}
	return c.reload(ctx)
}

func (c *NotionController[T]) reload(ctx context.Context) (*layout, error) {
	db, err := c.api.RetrieveDatabase(ctx, c.databaseID)
	if err != nil {
		return nil, backendError(fmt.Sprintf("failed to retrieve database %s", c.databaseID), err)
	}
	return c.install(db, nil), nil
}

// install binds the base page type to db. The title field always maps to
// the database's title column.
func (c *NotionController[T]) install(db *notion.Database, names map[string]string) *layout {
	remote := make(map[string]string, len(db.Properties))
	for name, col := range db.Properties {
		remote[name] = col.Type
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if names != nil {
		c.names = maps.Clone(names)
	}
	bound := maps.Clone(c.names)
	if title, ok := db.TitleProperty(); ok {
		bound[c.base.Title().Field] = title
	}
	c.layout = &layout{pageType: c.base.WithColumnNames(bound), remote: remote}
	return c.layout
}

func (l *layout) encode(fields map[string]any) (notion.Properties, error) {
	props, err := l.pageType.Encode(fields)
	if err != nil {
		return nil, err
	}
	for name, pv := range props {
		// empty values need no column; the database may not have one yet
		if _, ok := l.remote[name]; !ok && pv.IsEmpty() {
			delete(props, name)
			continue
		}
		if pv.Type == notion.TypeSelect && l.remote[name] == notion.TypeStatus {
			pv.Type = notion.TypeStatus
			pv.Status, pv.Select = pv.Select, nil
			props[name] = pv
		}
	}
	return props, nil
}

// normalized renders value the way it reads back from a column of d.
func (l *layout) normalized(d schema.PropertyDescriptor, value any) (any, error) {
	props, err := l.pageType.Encode(map[string]any{d.Field: value})
	if err != nil {
		return nil, err
	}
	return l.pageType.Decode(props)[d.Field], nil
}

// changes returns the properties of next whose decoded value differs from
// current.
func (l *layout) changes(current, next notion.Properties) notion.Properties {
	have := l.pageType.Decode(current)
	want := l.pageType.Decode(next)

	out := make(notion.Properties)
	for field, value := range want {
		old, ok := have[field]
		if ok && reflect.DeepEqual(old, value) {
			continue
		}
		d, _ := l.pageType.Get(field)
		out[d.Name] = next[d.Name]
	}
	return out
}

// filter translates field keys into workspace property conditions.
func (l *layout) filter(query Query) (map[string]any, error) {
	keys := slices.Sorted(maps.Keys(query))
	clauses := make([]any, 0, len(keys))

	for _, key := range keys {
		value := query[key]
		if key == QueryFilter {
			native, ok := value.(map[string]any)
			if !ok {
				return nil, utils.NewValidationError(fmt.Sprintf("filter must be an object, got %T", value), nil)
			}
			clauses = append(clauses, native)
			continue
		}

		d, ok := l.pageType.Get(key)
		if !ok {
			return nil, utils.NewValidationError(fmt.Sprintf("%s has no column for %s", l.pageType.Name(), key), nil).
				WithDetail("field", key)
		}
		cond, err := l.condition(d, value)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, cond...)
	}

	switch len(clauses) {
	case 0:
		return nil, nil
	case 1:
		return clauses[0].(map[string]any), nil
	default:
		return map[string]any{"and": clauses}, nil
	}
}

func (l *layout) condition(d schema.PropertyDescriptor, value any) ([]any, error) {
	kind := l.remote[d.Name]
	if kind == "" {
		kind = string(d.Kind)
	}
	normalized, err := l.normalized(d, value)
	if err != nil {
		return nil, utils.NewValidationError(fmt.Sprintf("invalid value for %s", d.Field), err)
	}

	clause := func(cond map[string]any) map[string]any {
		return map[string]any{"property": d.Name, kind: cond}
	}

	switch v := normalized.(type) {
	case nil:
		return []any{clause(map[string]any{"is_empty": true})}, nil
	case []string:
		if len(v) == 0 {
			return []any{clause(map[string]any{"is_empty": true})}, nil
		}
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, clause(map[string]any{"contains": item}))
		}
		return out, nil
	case string:
		if v == "" {
			return []any{clause(map[string]any{"is_empty": true})}, nil
		}
	}
	return []any{clause(map[string]any{"equals": normalized})}, nil
}

// matches checks the remaining query keys against a page already fetched
// by id.
func (l *layout) matches(page *notion.Page, rest Query) (bool, error) {
	fields := l.pageType.Decode(page.Properties)
	for key, value := range rest {
		d, ok := l.pageType.Get(key)
		if !ok {
			return false, utils.NewValidationError(fmt.Sprintf("%s has no column for %s", l.pageType.Name(), key), nil).
				WithDetail("field", key)
		}
		want, err := l.normalized(d, value)
		if err != nil {
			return false, utils.NewValidationError(fmt.Sprintf("invalid value for %s", key), err)
		}
		if !reflect.DeepEqual(fields[key], want) {
			return false, nil
		}
	}
	return true, nil
}

func (c *NotionController[T]) hydrate(ctx context.Context, l *layout, page *notion.Page, body *string) (T, error) {
	var zero T

	fields := l.pageType.Decode(page.Properties)
	id, err := c.index.Ensure(page.ID)
	if err != nil {
		return zero, backendError(fmt.Sprintf("page %s has a malformed id", page.ID), err)
	}
	fields["id"] = id
	fields["created_at"] = models.NewTimestamp(page.CreatedTime)
	if page.CreatedBy != nil {
		fields["created_by"] = page.CreatedBy.ID
	}
	if !page.LastEditedTime.Equal(page.CreatedTime) {
		fields["modified_at"] = models.NewTimestamp(page.LastEditedTime)
		if page.LastEditedBy != nil {
			fields["modified_by"] = page.LastEditedBy.ID
		}
	}

	if c.withBody {
		if body == nil {
			text, err := c.readBody(ctx, page.ID)
			if err != nil {
				return zero, err
			}
			body = &text
		}
		fields[bodyField] = *body
	}

	return c.model.Decode(fields)
}

func (c *NotionController[T]) Create(ctx context.Context, item any) (T, error) {
	var created T
	err := c.obs.observe(ctx, "create", func(ctx context.Context) error {
		record, err := c.model.Coerce(item)
		if err != nil {
			return err
		}
		fields, err := c.model.Dump(record)
		if err != nil {
			return err
		}
		l, err := c.currentLayout(ctx)
		if err != nil {
			return err
		}
		props, err := l.encode(fields)
		if err != nil {
			return err
		}

		req := notion.CreatePageRequest{Parent: notion.DatabaseParent(c.databaseID), Properties: props}
		var body string
		if c.withBody {
			body, _ = fields[bodyField].(string)
			req.Children = bodyBlocks(body)
		}

		page, err := c.api.CreatePage(ctx, req)
		if err != nil {
			return backendError(fmt.Sprintf("failed to create %s page", c.model.Name()), err)
		}
		c.index.Store(*page)

		created, err = c.hydrate(ctx, l, page, &body)
		return err
	})
	return created, err
}

func (c *NotionController[T]) Read(ctx context.Context, id models.ObjectID) (T, bool, error) {
	var (
		item  T
		found bool
	)
	err := c.obs.observe(ctx, "read", func(ctx context.Context) error {
		var err error
		item, found, err = c.read(ctx, id)
		return err
	})
	return item, found, err
}

func (c *NotionController[T]) read(ctx context.Context, id models.ObjectID) (T, bool, error) {
	var zero T
	page, err := c.pageByRecord(ctx, id)
	if err != nil || page == nil {
		return zero, false, err
	}
	l, err := c.currentLayout(ctx)
	if err != nil {
		return zero, false, err
	}
	item, err := c.hydrate(ctx, l, page, nil)
	if err != nil {
		return zero, false, err
	}
	return item, true, nil
}

// lookup resolves a record id to its page id, refetching the page list
// once when the index does not know the id.
func (c *NotionController[T]) lookup(ctx context.Context, id models.ObjectID) (string, bool, error) {
	if pageID, ok := c.index.PageID(id); ok {
		return pageID, true, nil
	}
	if _, err := c.Pages(ctx, true); err != nil {
		return "", false, err
	}
	pageID, ok := c.index.PageID(id)
	return pageID, ok, nil
}

func (c *NotionController[T]) pageByRecord(ctx context.Context, id models.ObjectID) (*notion.Page, error) {
	pageID, ok, err := c.lookup(ctx, id)
	if err != nil || !ok {
		return nil, err
	}
	return c.livePage(ctx, pageID)
}

// livePage retrieves a page, treating archived and missing pages as absent.
func (c *NotionController[T]) livePage(ctx context.Context, pageID string) (*notion.Page, error) {
	page, err := c.api.RetrievePage(ctx, pageID)
	if notion.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, backendError(fmt.Sprintf("failed to retrieve page %s", pageID), err)
	}
	if page.Archived || page.InTrash || !notion.SameID(page.Parent.DatabaseID, c.databaseID) {
		return nil, nil
	}
	return page, nil
}

func (c *NotionController[T]) Get(ctx context.Context, query Query) (T, bool, error) {
	var (
		item  T
		found bool
	)
	err := c.obs.observe(ctx, "get", func(ctx context.Context) error {
		items, err := c.readAll(ctx, query, 1)
		if err != nil || len(items) == 0 {
			return err
		}
		item, found = items[0], true
		return nil
	})
	return item, found, err
}

func (c *NotionController[T]) ReadAll(ctx context.Context, query Query, limit int) ([]T, error) {
	var items []T
	err := c.obs.observe(ctx, "read_all", func(ctx context.Context) error {
		var err error
		items, err = c.readAll(ctx, query, limit)
		return err
	})
	return items, err
}

func (c *NotionController[T]) readAll(ctx context.Context, query Query, limit int) ([]T, error) {
	l, err := c.currentLayout(ctx)
	if err != nil {
		return nil, err
	}
	pages, err := c.matching(ctx, l, query, limit)
	if err != nil {
		return nil, err
	}

	items := make([]T, 0, len(pages))
	for i := range pages {
		item, err := c.hydrate(ctx, l, &pages[i], nil)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// matching returns the live pages selected by query. Page and record id
// keys fetch one page directly; other keys become a database filter.
func (c *NotionController[T]) matching(ctx context.Context, l *layout, query Query, limit int) ([]notion.Page, error) {
	rest := maps.Clone(query)
	delete(rest, QueryPageID)
	delete(rest, QueryID)

	var (
		page *notion.Page
		err  error
	)
	switch {
	case query[QueryPageID] != nil:
		raw, ok := query[QueryPageID].(string)
		if !ok {
			return nil, utils.NewValidationError(fmt.Sprintf("page_id must be a string, got %T", query[QueryPageID]), nil)
		}
		pageID, err := notion.NormalizeID(raw)
		if err != nil {
			return nil, err
		}
		if page, err = c.livePage(ctx, pageID); err != nil {
			return nil, err
		}
	case query[QueryID] != nil:
		id, err := models.ObjectIDFrom(query[QueryID])
		if err != nil {
			return nil, err
		}
		if page, err = c.pageByRecord(ctx, id); err != nil {
			return nil, err
		}
	default:
		return c.query(ctx, l, query, limit)
	}

	if page == nil {
		return nil, nil
	}
	ok, err := l.matches(page, rest)
	if err != nil || !ok {
		return nil, err
	}
	return []notion.Page{*page}, nil
}

func (c *NotionController[T]) query(ctx context.Context, l *layout, query Query, limit int) ([]notion.Page, error) {
	filter, err := l.filter(query)
	if err != nil {
		return nil, err
	}

	req := notion.QueryRequest{Filter: filter}
	if limit > 0 && limit < 100 {
		req.PageSize = limit
	}

	var pages []notion.Page
	for page, err := range notion.QueryAll(ctx, c.api, c.databaseID, req) {
		if err != nil {
			return nil, backendError(fmt.Sprintf("failed to query database %s", c.databaseID), err)
		}
		pages = append(pages, page)
		if limit > 0 && len(pages) >= limit {
			break
		}
	}
	return pages, nil
}

// Pages returns the database's live pages. The list fetched last is
// reused unless force is set or nothing has been fetched yet.
func (c *NotionController[T]) Pages(ctx context.Context, force bool) ([]notion.Page, error) {
	if !force {
		if pages, ok := c.index.Cached(); ok {
			return pages, nil
		}
	}

	var pages []notion.Page
	for page, err := range notion.QueryAll(ctx, c.api, c.databaseID, notion.QueryRequest{}) {
		if err != nil {
			return nil, backendError(fmt.Sprintf("failed to list pages of database %s", c.databaseID), err)
		}
		pages = append(pages, page)
	}
	if err := c.index.Replace(pages); err != nil {
		return nil, backendError(fmt.Sprintf("database %s returned a malformed page id", c.databaseID), err)
	}
	return pages, nil
}

func (c *NotionController[T]) Update(ctx context.Context, item T) (bool, error) {
	var modified bool
	err := c.obs.observe(ctx, "update", func(ctx context.Context) error {
		if err := c.model.Validate(item); err != nil {
			return err
		}
		page, err := c.pageByRecord(ctx, item.GetID())
		if err != nil || page == nil {
			return err
		}
		fields, err := c.model.Dump(item)
		if err != nil {
			return err
		}
		l, err := c.currentLayout(ctx)
		if err != nil {
			return err
		}
		// omitted fields are cleared where the database has their column
		for _, d := range l.pageType.Properties() {
			if _, ok := fields[d.Field]; !ok && l.remote[d.Name] != "" {
				fields[d.Field] = nil
			}
		}
		if _, ok := fields[bodyField]; !ok && c.withBody {
			fields[bodyField] = ""
		}
		modified, err = c.push(ctx, l, page, fields)
		return err
	})
	return modified, err
}

func (c *NotionController[T]) UpdateMany(ctx context.Context, query Query, update map[string]any) (bool, error) {
	var modified bool
	err := c.obs.observe(ctx, "update_many", func(ctx context.Context) error {
		l, err := c.currentLayout(ctx)
		if err != nil {
			return err
		}
		for field := range update {
			if _, ok := l.pageType.Get(field); !ok && !(c.withBody && field == bodyField) {
				return utils.NewValidationError(fmt.Sprintf("%s has no column for %s", l.pageType.Name(), field), nil).
					WithDetail("field", field)
			}
		}
		set, err := models.NormalizeQuery(update)
		if err != nil {
			return err
		}

		pages, err := c.matching(ctx, l, query, 0)
		if err != nil {
			return err
		}
		for i := range pages {
			changed, err := c.push(ctx, l, &pages[i], set)
			if err != nil {
				return err
			}
			modified = modified || changed
		}
		return nil
	})
	return modified, err
}

// push sends the properties and body of fields that differ from page.
func (c *NotionController[T]) push(ctx context.Context, l *layout, page *notion.Page, fields map[string]any) (bool, error) {
	next, err := l.encode(fields)
	if err != nil {
		return false, err
	}
	changed := l.changes(page.Properties, next)

	bodyChanged := false
	var body string
	if v, ok := fields[bodyField]; ok && c.withBody {
		body, _ = v.(string)
		current, err := c.readBody(ctx, page.ID)
		if err != nil {
			return false, err
		}
		bodyChanged = current != body
	}

	if len(changed) == 0 && !bodyChanged {
		return false, nil
	}
	if len(changed) > 0 {
		updated, err := c.api.UpdatePage(ctx, page.ID, notion.UpdatePageRequest{Properties: changed})
		if err != nil {
			return false, backendError(fmt.Sprintf("failed to update page %s", page.ID), err)
		}
		c.index.Store(*updated)
	}
	if bodyChanged {
		if err := c.replaceBody(ctx, page.ID, body); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (c *NotionController[T]) Delete(ctx context.Context, target any) (bool, error) {
	var deleted bool
	err := c.obs.observe(ctx, "delete", func(ctx context.Context) error {
		page, err := c.deleteTarget(ctx, target)
		if err != nil || page == nil {
			return err
		}
		deleted, err = c.remove(ctx, page.ID)
		return err
	})
	return deleted, err
}

func (c *NotionController[T]) deleteTarget(ctx context.Context, target any) (*notion.Page, error) {
	switch t := target.(type) {
	case T:
		return c.pageByRecord(ctx, t.GetID())
	case models.ObjectID:
		return c.pageByRecord(ctx, t)
	case map[string]any:
		l, err := c.currentLayout(ctx)
		if err != nil {
			return nil, err
		}
		pages, err := c.matching(ctx, l, t, 1)
		if err != nil || len(pages) == 0 {
			return nil, err
		}
		return &pages[0], nil
	default:
		return nil, utils.NewValidationError(fmt.Sprintf("cannot delete %s by %T", c.model.Name(), target), nil)
	}
}

func (c *NotionController[T]) remove(ctx context.Context, pageID string) (bool, error) {
	err := c.api.DeleteBlock(ctx, pageID)
	if notion.IsNotFound(err) {
		c.index.Forget(pageID)
		return false, nil
	}
	if err != nil {
		return false, backendError(fmt.Sprintf("failed to delete page %s", pageID), err)
	}
	c.index.Forget(pageID)
	return true, nil
}

func (c *NotionController[T]) DeleteAll(ctx context.Context) (bool, error) {
	var deleted bool
	err := c.obs.observe(ctx, "delete_all", func(ctx context.Context) error {
		pages, err := c.Pages(ctx, true)
		if err != nil {
			return err
		}
		for _, page := range pages {
			ok, err := c.remove(ctx, page.ID)
			if err != nil {
				return err
			}
			deleted = deleted || ok
		}
		return nil
	})
	return deleted, err
}

// All streams every live page of the database as a record, following the
// query cursor page by page.
func (c *NotionController[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		l, err := c.currentLayout(ctx)
		if err != nil {
			yield(zero, err)
			return
		}
		for page, err := range notion.QueryAll(ctx, c.api, c.databaseID, notion.QueryRequest{}) {
			if err != nil {
				yield(zero, backendError(fmt.Sprintf("failed to query database %s", c.databaseID), err))
				return
			}
			item, err := c.hydrate(ctx, l, &page, nil)
			if !yield(item, err) || err != nil {
				return
			}
		}
	}
}

func (c *NotionController[T]) Refresh(ctx context.Context, item T) (bool, error) {
	fresh, found, err := c.Read(ctx, item.GetID())
	if err != nil || !found {
		return false, err
	}
	c.model.Copy(item, fresh)
	return true, nil
}

func (c *NotionController[T]) Count(ctx context.Context) (int64, error) {
	var n int64
	err := c.obs.observe(ctx, "count", func(ctx context.Context) error {
		pages, err := c.Pages(ctx, true)
		n = int64(len(pages))
		return err
	})
	return n, err
}

func (c *NotionController[T]) String() string {
	return fmt.Sprintf("NotionController(db_id=%s, model=%s)", c.databaseID, c.model.Name())
}

// bodyBlocks renders text as one paragraph per line.
func bodyBlocks(text string) []notion.Block {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	blocks := make([]notion.Block, 0, len(lines))
	for _, line := range lines {
		blocks = append(blocks, notion.ParagraphBlock(line))
	}
	return blocks
}

func (c *NotionController[T]) paragraphs(ctx context.Context, pageID string) ([]notion.Block, error) {
	var (
		blocks []notion.Block
		cursor string
	)
	for {
		list, err := c.api.ListBlockChildren(ctx, pageID, cursor, 100)
		if err != nil {
			return nil, backendError(fmt.Sprintf("failed to list blocks of page %s", pageID), err)
		}
		for _, b := range list.Results {
			if b.Type == "paragraph" {
				blocks = append(blocks, b)
			}
		}
		if !list.HasMore || list.NextCursor == nil || *list.NextCursor == "" {
			return blocks, nil
		}
		cursor = *list.NextCursor
	}
}

func (c *NotionController[T]) readBody(ctx context.Context, pageID string) (string, error) {
	blocks, err := c.paragraphs(ctx, pageID)
	if err != nil {
		return "", err
	}
	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		lines = append(lines, b.PlainText())
	}
	return strings.Join(lines, "\n"), nil
}

// replaceBody swaps the page's paragraphs for text. Other blocks are kept.
func (c *NotionController[T]) replaceBody(ctx context.Context, pageID, text string) error {
	blocks, err := c.paragraphs(ctx, pageID)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		if err := c.api.DeleteBlock(ctx, b.ID); err != nil && !notion.IsNotFound(err) {
			return backendError(fmt.Sprintf("failed to delete block %s", b.ID), err)
		}
	}
	if children := bodyBlocks(text); len(children) > 0 {
		if _, err := c.api.AppendBlockChildren(ctx, pageID, children); err != nil {
			return backendError(fmt.Sprintf("failed to write body of page %s", pageID), err)
		}
	}
	return nil
}
