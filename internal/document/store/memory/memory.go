// Package memory is an in-process document store for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"docdesk/internal/document/models"
	"docdesk/internal/validity"
	"docdesk/pkg/domain"
	"docdesk/pkg/platform/sentinel"
)

// Error Contract:
//   - ErrNotFound when the document does not exist
//   - ErrAlreadyUsed when Create is called with an existing id
//
// Stored documents are copied on the way in and out so callers never share
// mutable state with the store.
type InMemoryStore struct {
	mu        sync.RWMutex
	documents map[domain.DocumentID]models.Document
}

func New() *InMemoryStore {
	return &InMemoryStore{documents: make(map[domain.DocumentID]models.Document)}
}

func (s *InMemoryStore) Create(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; ok {
		return fmt.Errorf("document %s: %w", doc.ID, sentinel.ErrAlreadyUsed)
	}
	s.documents[doc.ID] = clone(doc)
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; !ok {
		return fmt.Errorf("document %s: %w", doc.ID, sentinel.ErrNotFound)
	}
	s.documents[doc.ID] = clone(doc)
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id domain.DocumentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return fmt.Errorf("document %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.documents, id)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.DocumentID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, sentinel.ErrNotFound)
	}
	out := clone(&doc)
	return &out, nil
}

// List returns matching documents ordered by PostedOn descending, then id.
func (s *InMemoryStore) List(_ context.Context, q models.Query) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		if !matches(&doc, q) {
			continue
		}
		c := clone(&doc)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PostedOn.Equal(out[j].PostedOn) {
			return out[i].PostedOn.After(out[j].PostedOn)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func matches(doc *models.Document, q models.Query) bool {
	if q.Category != "" && doc.Category != q.Category {
		return false
	}
	if q.Country != "" && doc.Location.Country != q.Country {
		return false
	}
	if q.City != "" && doc.Location.City != q.City {
		return false
	}
	if !q.OwnerID.IsNil() && doc.OwnerID != q.OwnerID {
		return false
	}
	if q.ActiveOn != nil && doc.State(q.ActiveOn.Time()) != validity.StateActive {
		return false
	}
	return true
}

func clone(doc *models.Document) models.Document {
	c := *doc
	if doc.Validity.Fixed != nil {
		f := *doc.Validity.Fixed
		c.Validity.Fixed = &f
	}
	if doc.Validity.Ranged != nil {
		r := *doc.Validity.Ranged
		c.Validity.Ranged = &r
	}
	return c
}
