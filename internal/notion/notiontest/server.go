// Package notiontest serves an in-memory imitation of the workspace API for
// tests. It covers the page, database and block endpoints the notion client
// calls and answers with the same JSON shapes and error bodies.
package notiontest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sumandas0/notionmbse/internal/notion"
)

const Token = "secret_test_token"

type failure struct {
	status int
	code   string
}

type Server struct {
	*httptest.Server

	mu        sync.Mutex
	databases map[string]*notion.Database
	pages     map[string]*notion.Page
	order     []string
	blocks    map[string][]notion.Block
	columnSeq int
	now       func() time.Time
	user      notion.User
	failures  []failure
	requests  int
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		databases: make(map[string]*notion.Database),
		pages:     make(map[string]*notion.Page),
		blocks:    make(map[string][]notion.Block),
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		user:      notion.User{Object: "user", ID: uuid.NewString()},
	}

	r := chi.NewRouter()
	r.Use(s.authenticate)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/pages/{id}", s.retrievePage)
		r.Post("/pages", s.createPage)
		r.Patch("/pages/{id}", s.updatePage)
		r.Get("/databases/{id}", s.retrieveDatabase)
		r.Patch("/databases/{id}", s.updateDatabase)
		r.Post("/databases/{id}/query", s.queryDatabase)
		r.Get("/blocks/{id}/children", s.listChildren)
		r.Patch("/blocks/{id}/children", s.appendChildren)
		r.Delete("/blocks/{id}", s.deleteBlock)
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Client returns a notion client pointed at the server with client side
// rate limiting disabled.
func (s *Server) Client(t testing.TB, opts ...notion.ClientOption) *notion.Client {
	t.Helper()

	base, err := notion.ParseBaseURL(s.URL + "/v1")
	if err != nil {
		t.Fatalf("parse base url: %v", err)
	}
	all := append([]notion.ClientOption{notion.WithBaseURL(base), notion.WithRateLimit(0, 0)}, opts...)
	client, err := notion.NewClient(Token, all...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

// SetClock replaces the source of created and edited times.
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// User is the integration user the server attributes edits to.
func (s *Server) User() notion.User {
	return s.user
}

// FailNext makes the next request fail with the given status and code.
func (s *Server) FailNext(status int, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{status: status, code: code})
}

// Requests counts every request that reached the server.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// AddDatabase registers a database and returns its id. A "Name" title
// column is added when columns has none.
func (s *Server) AddDatabase(title string, columns map[string]notion.DatabaseProperty) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	db := &notion.Database{
		Object:     "database",
		ID:         uuid.NewString(),
		Title:      []notion.RichText{notion.NewText(title)},
		Properties: make(map[string]notion.DatabaseProperty, len(columns)+1),
	}
	hasTitle := false
	for name, col := range columns {
		col.Name = name
		if col.Type == notion.TypeTitle {
			hasTitle = true
			col.ID = "title"
		} else {
			col.ID = s.nextColumnID()
		}
		db.Properties[name] = col
	}
	if !hasTitle {
		db.Properties["Name"] = notion.DatabaseProperty{ID: "title", Name: "Name", Type: notion.TypeTitle}
	}
	db.URL = "https://www.notion.so/" + strings.ReplaceAll(db.ID, "-", "")
	s.databases[db.ID] = db
	return db.ID
}

// Database returns a copy of a registered database.
func (s *Server) Database(id string) (notion.Database, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, ok := s.databases[normalize(id)]
	if !ok {
		return notion.Database{}, false
	}
	return copyDatabase(db), true
}

// Page returns a copy of a page, archived or not.
func (s *Server) Page(id string) (notion.Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[normalize(id)]
	if !ok {
		return notion.Page{}, false
	}
	return copyPage(page), true
}

// LivePages counts the pages of a database that are not archived.
func (s *Server) LivePages(databaseID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range s.order {
		p := s.pages[id]
		if !p.Archived && p.Parent.DatabaseID == normalize(databaseID) {
			n++
		}
	}
	return n
}

func (s *Server) nextColumnID() string {
	s.columnSeq++
	return fmt.Sprintf("c%04d", s.columnSeq)
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		var injected *failure
		if len(s.failures) > 0 {
			injected = &s.failures[0]
			s.failures = s.failures[1:]
		}
		s.mu.Unlock()

		if injected != nil {
			writeError(w, injected.status, injected.code, "injected failure")
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+Token {
			writeError(w, http.StatusUnauthorized, notion.CodeUnauthorized, "API token is invalid.")
			return
		}
		if r.Header.Get("Notion-Version") == "" {
			writeError(w, http.StatusBadRequest, "missing_version", "Notion-Version header failed validation.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) retrievePage(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, ok := s.pages[normalize(chi.URLParam(r, "id"))]
	if !ok {
		notFound(w, chi.URLParam(r, "id"))
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) createPage(w http.ResponseWriter, r *http.Request) {
	var req notion.CreatePageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, notion.CodeValidationError, "body failed validation: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, ok := s.databases[normalize(req.Parent.DatabaseID)]
	if !ok {
		notFound(w, req.Parent.DatabaseID)
		return
	}

	props := make(notion.Properties, len(db.Properties))
	for name, col := range db.Properties {
		props[name] = notion.PropertyValue{ID: col.ID, Type: col.Type}
	}
	for key, value := range req.Properties {
		name, col, ok := resolveColumn(db, key)
		if !ok {
			writeError(w, http.StatusBadRequest, notion.CodeValidationError, key+" is not a property that exists.")
			return
		}
		if value.Type != col.Type {
			writeError(w, http.StatusBadRequest, notion.CodeValidationError, fmt.Sprintf("%s is expected to be %s.", name, col.Type))
			return
		}
		value.ID = col.ID
		props[name] = fillPlainText(value)
	}

	now := s.now()
	page := &notion.Page{
		Object:         "page",
		ID:             uuid.NewString(),
		CreatedTime:    now,
		LastEditedTime: now,
		CreatedBy:      &s.user,
		LastEditedBy:   &s.user,
		Parent:         notion.DatabaseParent(db.ID),
		Properties:     props,
	}
	page.URL = "https://www.notion.so/" + strings.ReplaceAll(page.ID, "-", "")
	s.pages[page.ID] = page
	s.order = append(s.order, page.ID)
	s.blocks[page.ID] = stampBlocks(req.Children)

	writeJSON(w, http.StatusOK, page)
}

func (s *Server) updatePage(w http.ResponseWriter, r *http.Request) {
	var req notion.UpdatePageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, notion.CodeValidationError, "body failed validation: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	page, ok := s.pages[normalize(chi.URLParam(r, "id"))]
	if !ok {
		notFound(w, chi.URLParam(r, "id"))
		return
	}
	if page.Archived && len(req.Properties) > 0 && (req.Archived == nil || *req.Archived) {
		writeError(w, http.StatusBadRequest, notion.CodeValidationError, "Can't edit block that is archived. You must unarchive the block before editing.")
		return
	}

	db := s.databases[page.Parent.DatabaseID]
	for key, value := range req.Properties {
		name, col, ok := resolveColumn(db, key)
		if !ok {
			writeError(w, http.StatusBadRequest, notion.CodeValidationError, key+" is not a property that exists.")
			return
		}
		if value.Type != col.Type {
			writeError(w, http.StatusBadRequest, notion.CodeValidationError, fmt.Sprintf("%s is expected to be %s.", name, col.Type))
			return
		}
		value.ID = col.ID
		page.Properties[name] = fillPlainText(value)
	}
	if req.Archived != nil {
		page.Archived = *req.Archived
		page.InTrash = *req.Archived
	}
	s.touch(page)

	writeJSON(w, http.StatusOK, page)
}

func (s *Server) touch(page *notion.Page) {
	edited := s.now()
	if !edited.After(page.LastEditedTime) {
		edited = page.LastEditedTime.Add(time.Second)
	}
	page.LastEditedTime = edited
	page.LastEditedBy = &s.user
}

func (s *Server) retrieveDatabase(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, ok := s.databases[normalize(chi.URLParam(r, "id"))]
	if !ok {
		notFound(w, chi.URLParam(r, "id"))
		return
	}
	writeJSON(w, http.StatusOK, db)
}

func (s *Server) updateDatabase(w http.ResponseWriter, r *http.Request) {
	var req notion.UpdateDatabaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, notion.CodeValidationError, "body failed validation: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, ok := s.databases[normalize(chi.URLParam(r, "id"))]
	if !ok {
		notFound(w, chi.URLParam(r, "id"))
		return
	}

	if len(req.Title) > 0 {
		db.Title = req.Title
	}

	keys := make([]string, 0, len(req.Properties))
	for k := range req.Properties {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		change := req.Properties[key]
		name, col, exists := resolveColumn(db, key)

		switch {
		case change == nil:
			if !exists {
				writeError(w, http.StatusBadRequest, notion.CodeValidationError, key+" is not a property that exists.")
				return
			}
			if col.Type == notion.TypeTitle {
				writeError(w, http.StatusBadRequest, notion.CodeValidationError, "Cannot delete the title property.")
				return
			}
			delete(db.Properties, name)
			s.eachPage(db.ID, func(p *notion.Page) { delete(p.Properties, name) })

		case exists:
			target := name
			if change.Name != "" && change.Name != name {
				target = change.Name
				delete(db.Properties, name)
				s.eachPage(db.ID, func(p *notion.Page) {
					p.Properties[target] = p.Properties[name]
					delete(p.Properties, name)
				})
			}
			if change.Type != "" && change.Type != col.Type {
				if col.Type == notion.TypeTitle {
					writeError(w, http.StatusBadRequest, notion.CodeValidationError, "Cannot change the type of the title property.")
					return
				}
				col.Type = change.Type
				col.Config = change.Config
				s.eachPage(db.ID, func(p *notion.Page) {
					p.Properties[target] = notion.PropertyValue{ID: col.ID, Type: col.Type}
				})
			}
			col.Name = target
			db.Properties[target] = col

		default:
			if change.Type == "" {
				writeError(w, http.StatusBadRequest, notion.CodeValidationError, key+" is not a property that exists.")
				return
			}
			if change.Type == notion.TypeTitle {
				writeError(w, http.StatusBadRequest, notion.CodeValidationError, "A database can only have one title property.")
				return
			}
			target := key
			if change.Name != "" {
				target = change.Name
			}
			added := notion.DatabaseProperty{ID: s.nextColumnID(), Name: target, Type: change.Type, Config: change.Config}
			db.Properties[target] = added
			s.eachPage(db.ID, func(p *notion.Page) {
				p.Properties[target] = notion.PropertyValue{ID: added.ID, Type: added.Type}
			})
		}
	}

	writeJSON(w, http.StatusOK, db)
}

func (s *Server) eachPage(databaseID string, fn func(*notion.Page)) {
	for _, id := range s.order {
		if p := s.pages[id]; p.Parent.DatabaseID == databaseID {
			fn(p)
		}
	}
}

func (s *Server) queryDatabase(w http.ResponseWriter, r *http.Request) {
	var req notion.QueryRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, notion.CodeValidationError, "body failed validation: "+err.Error())
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, ok := s.databases[normalize(chi.URLParam(r, "id"))]
	if !ok {
		notFound(w, chi.URLParam(r, "id"))
		return
	}

	var matched []*notion.Page
	for _, id := range s.order {
		p := s.pages[id]
		if p.Archived || p.Parent.DatabaseID != db.ID {
			continue
		}
		if req.Filter != nil {
			ok, err := matchFilter(db, p, req.Filter)
			if err != nil {
				writeError(w, http.StatusBadRequest, notion.CodeValidationError, err.Error())
				return
			}
			if !ok {
				continue
			}
		}
		matched = append(matched, p)
	}

	start := 0
	if req.StartCursor != "" {
		start = -1
		for i, p := range matched {
			if p.ID == req.StartCursor {
				start = i
				break
			}
		}
		if start < 0 {
			writeError(w, http.StatusBadRequest, notion.CodeValidationError, "start_cursor provided is invalid: "+req.StartCursor)
			return
		}
	}

	size := req.PageSize
	if size <= 0 || size > 100 {
		size = 100
	}
	end := min(start+size, len(matched))

	resp := notion.QueryResponse{Object: "list", Results: make([]notion.Page, 0, end-start)}
	for _, p := range matched[start:end] {
		resp.Results = append(resp.Results, *p)
	}
	if end < len(matched) {
		next := matched[end].ID
		resp.NextCursor = &next
		resp.HasMore = true
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listChildren(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := normalize(chi.URLParam(r, "id"))
	if _, ok := s.pages[id]; !ok {
		notFound(w, chi.URLParam(r, "id"))
		return
	}

	blocks := s.blocks[id]
	start := 0
	if cursor := r.URL.Query().Get("start_cursor"); cursor != "" {
		if n, err := strconv.Atoi(cursor); err == nil && n >= 0 && n <= len(blocks) {
			start = n
		}
	}
	size := 100
	if n, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && n > 0 && n < size {
		size = n
	}
	end := min(start+size, len(blocks))

	list := notion.BlockList{Object: "list", Results: append([]notion.Block{}, blocks[start:end]...)}
	if end < len(blocks) {
		next := strconv.Itoa(end)
		list.NextCursor = &next
		list.HasMore = true
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) appendChildren(w http.ResponseWriter, r *http.Request) {
	var req notion.AppendBlockChildrenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, notion.CodeValidationError, "body failed validation: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := normalize(chi.URLParam(r, "id"))
	if _, ok := s.pages[id]; !ok {
		notFound(w, chi.URLParam(r, "id"))
		return
	}
	added := stampBlocks(req.Children)
	s.blocks[id] = append(s.blocks[id], added...)
	writeJSON(w, http.StatusOK, notion.BlockList{Object: "list", Results: added})
}

func stampBlocks(blocks []notion.Block) []notion.Block {
	out := make([]notion.Block, len(blocks))
	for i, b := range blocks {
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		b.Object = "block"
		out[i] = b
	}
	return out
}

func (s *Server) deleteBlock(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := normalize(chi.URLParam(r, "id"))
	page, ok := s.pages[id]
	if !ok {
		for parent, blocks := range s.blocks {
			idx := slices.IndexFunc(blocks, func(b notion.Block) bool { return b.ID == id })
			if idx < 0 {
				continue
			}
			removed := blocks[idx]
			removed.Archived = true
			s.blocks[parent] = slices.Delete(blocks, idx, idx+1)
			writeJSON(w, http.StatusOK, removed)
			return
		}
		notFound(w, chi.URLParam(r, "id"))
		return
	}
	page.Archived = true
	page.InTrash = true
	s.touch(page)

	writeJSON(w, http.StatusOK, notion.Block{Object: "block", ID: page.ID, Type: "child_page", Archived: true})
}

func resolveColumn(db *notion.Database, key string) (string, notion.DatabaseProperty, bool) {
	if col, ok := db.Properties[key]; ok {
		return key, col, true
	}
	for name, col := range db.Properties {
		if col.ID == key {
			return name, col, true
		}
	}
	return "", notion.DatabaseProperty{}, false
}

func fillPlainText(pv notion.PropertyValue) notion.PropertyValue {
	fill := func(runs []notion.RichText) []notion.RichText {
		out := make([]notion.RichText, len(runs))
		for i, run := range runs {
			if run.Type == "" {
				run.Type = "text"
			}
			if run.PlainText == "" && run.Text != nil {
				run.PlainText = run.Text.Content
			}
			out[i] = run
		}
		return out
	}
	pv.Title = fill(pv.Title)
	pv.RichText = fill(pv.RichText)
	return pv
}

func normalize(id string) string {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return id
}

func copyPage(p *notion.Page) notion.Page {
	out := *p
	out.Properties = make(notion.Properties, len(p.Properties))
	for k, v := range p.Properties {
		out.Properties[k] = v
	}
	return out
}

func copyDatabase(db *notion.Database) notion.Database {
	out := *db
	out.Properties = make(map[string]notion.DatabaseProperty, len(db.Properties))
	for k, v := range db.Properties {
		out.Properties[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, notion.APIError{Object: "error", Status: status, Code: code, Message: message})
}

func notFound(w http.ResponseWriter, id string) {
	writeError(w, http.StatusNotFound, notion.CodeObjectNotFound,
		fmt.Sprintf("Could not find object with ID: %s. Make sure the relevant pages and databases are shared with your integration.", id))
}
