// Package memory is an in-process application store for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"docdesk/internal/application/models"
	"docdesk/pkg/domain"
	"docdesk/pkg/platform/sentinel"
)

// Error Contract:
//   - ErrNotFound when the application does not exist
//   - ErrAlreadyUsed when Create is called with an existing id
//   - ErrConflict when Save observes a status other than the expected prior one
type InMemoryStore struct {
	mu           sync.RWMutex
	applications map[domain.ApplicationID]models.Application
}

func New() *InMemoryStore {
	return &InMemoryStore{applications: make(map[domain.ApplicationID]models.Application)}
}

func (s *InMemoryStore) Create(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.applications[app.ID]; ok {
		return fmt.Errorf("application %s: %w", app.ID, sentinel.ErrAlreadyUsed)
	}
	s.applications[app.ID] = *app
	return nil
}

// Save replaces the stored application if its status is still expectedPrior.
// Identity of the applicant, reviewer and document is never overwritten.
func (s *InMemoryStore) Save(_ context.Context, app *models.Application, expectedPrior models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.applications[app.ID]
	if !ok {
		return fmt.Errorf("application %s: %w", app.ID, sentinel.ErrNotFound)
	}
	if current.Status != expectedPrior {
		return fmt.Errorf("application %s is %s: %w", app.ID, current.Status, sentinel.ErrConflict)
	}
	next := *app
	next.DocumentID = current.DocumentID
	next.ApplicantID = current.ApplicantID
	next.ReviewerID = current.ReviewerID
	next.CreatedAt = current.CreatedAt
	s.applications[app.ID] = next
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id domain.ApplicationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.applications[id]; !ok {
		return fmt.Errorf("application %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.applications, id)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.ApplicationID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.applications[id]
	if !ok {
		return nil, fmt.Errorf("application %s: %w", id, sentinel.ErrNotFound)
	}
	return &app, nil
}

// List returns matching applications ordered by CreatedAt descending, then id.
func (s *InMemoryStore) List(_ context.Context, q models.Query) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Application, 0)
	for _, app := range s.applications {
		if !matches(&app, q) {
			continue
		}
		c := app
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func matches(app *models.Application, q models.Query) bool {
	if !q.ApplicantID.IsNil() && app.ApplicantID != q.ApplicantID {
		return false
	}
	if !q.ReviewerID.IsNil() && app.ReviewerID != q.ReviewerID {
		return false
	}
	if !q.DocumentID.IsNil() && app.DocumentID != q.DocumentID {
		return false
	}
	if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, app.Status) {
		return false
	}
	return true
}
