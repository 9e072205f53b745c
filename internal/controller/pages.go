package controller

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/sumandas0/notionmbse/internal/models"
	"github.com/sumandas0/notionmbse/internal/notion"
)

// PageIndex pairs record ids with workspace page ids and keeps the ordered
// list of pages last fetched from the database. The list is only replaced
// when a caller forces a refetch.
type PageIndex struct {
	mu       sync.RWMutex
	byRecord map[models.ObjectID]string
	byPage   map[string]models.ObjectID
	pages    []notion.Page
	loaded   bool
}

func NewPageIndex() *PageIndex {
	return &PageIndex{
		byRecord: make(map[models.ObjectID]string),
		byPage:   make(map[string]models.ObjectID),
	}
}

// RecordID derives the record id for a page id.
func RecordID(pageID string) (models.ObjectID, error) {
	u, err := uuid.Parse(pageID)
	if err != nil {
		return models.NilObjectID, err
	}
	return models.ObjectIDFromUUID(u), nil
}

func (x *PageIndex) Register(id models.ObjectID, pageID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.register(id, pageID)
}

func (x *PageIndex) register(id models.ObjectID, pageID string) {
	if old, ok := x.byRecord[id]; ok && old != pageID {
		delete(x.byPage, old)
	}
	x.byRecord[id] = pageID
	x.byPage[pageID] = id
}

// Ensure returns the record id registered for pageID, deriving and
// registering one first when the page is new to the index.
func (x *PageIndex) Ensure(pageID string) (models.ObjectID, error) {
	x.mu.RLock()
	id, ok := x.byPage[pageID]
	x.mu.RUnlock()
	if ok {
		return id, nil
	}

	id, err := RecordID(pageID)
	if err != nil {
		return models.NilObjectID, err
	}
	x.Register(id, pageID)
	return id, nil
}

func (x *PageIndex) PageID(id models.ObjectID) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	pageID, ok := x.byRecord[id]
	return pageID, ok
}

func (x *PageIndex) RecordID(pageID string) (models.ObjectID, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	id, ok := x.byPage[pageID]
	return id, ok
}

// Store records a created or updated page in the cached list.
func (x *PageIndex) Store(page notion.Page) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.loaded {
		return
	}
	if i := x.position(page.ID); i >= 0 {
		x.pages[i] = page
		return
	}
	x.pages = append(x.pages, page)
}

// Forget drops a deleted page from the index and the cached list.
func (x *PageIndex) Forget(pageID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if id, ok := x.byPage[pageID]; ok {
		delete(x.byRecord, id)
		delete(x.byPage, pageID)
	}
	if i := x.position(pageID); i >= 0 {
		x.pages = slices.Delete(x.pages, i, i+1)
	}
}

func (x *PageIndex) position(pageID string) int {
	return slices.IndexFunc(x.pages, func(p notion.Page) bool { return p.ID == pageID })
}

// Cached returns the cached page list and whether it has been loaded.
func (x *PageIndex) Cached() ([]notion.Page, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return slices.Clone(x.pages), x.loaded
}

// Replace installs a freshly fetched page list and registers every page.
func (x *PageIndex) Replace(pages []notion.Page) error {
	ids := make([]models.ObjectID, len(pages))
	for i, p := range pages {
		if id, ok := x.RecordID(p.ID); ok {
			ids[i] = id
			continue
		}
		id, err := RecordID(p.ID)
		if err != nil {
			return err
		}
		ids[i] = id
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for i, p := range pages {
		x.register(ids[i], p.ID)
	}
	x.pages = slices.Clone(pages)
	x.loaded = true
	return nil
}

func (x *PageIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.pages)
}
