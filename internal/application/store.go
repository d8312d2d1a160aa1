package application

import (
	"context"
	"sort"
	"sync"
)

// Store persists applications. GetByID returns (nil, nil) when the application is absent;
// Update, UpdateStatus and Delete report whether a row was affected.
type Store interface {
	Create(ctx context.Context, app *Application) (int64, error)
	GetByID(ctx context.Context, id int64) (*Application, error)
	Update(ctx context.Context, app *Application) (bool, error)
	UpdateStatus(ctx context.Context, id int64, status Status) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context, filter Filter) (int, error)
	List(ctx context.Context, filter Filter) ([]*Application, error)
}

// MemStore is an in-process Store used for local runs and tests.
type MemStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]*Application
}

func NewMemStore() *MemStore {
	return &MemStore{rows: make(map[int64]*Application)}
}

func (s *MemStore) Create(_ context.Context, app *Application) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	row := app.Clone()
	row.ID = s.nextID
	s.rows[row.ID] = row
	return row.ID, nil
}

func (s *MemStore) GetByID(_ context.Context, id int64) (*Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows[id].Clone(), nil
}

func (s *MemStore) Update(_ context.Context, app *Application) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.rows[app.ID]
	if !ok {
		return false, nil
	}
	row := app.Clone()
	row.CreatedAt = current.CreatedAt
	row.CreatorID = current.CreatorID
	row.Type = current.Type
	s.rows[app.ID] = row
	return true, nil
}

func (s *MemStore) UpdateStatus(_ context.Context, id int64, status Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return false, nil
	}
	row.Status = status
	return true, nil
}

func (s *MemStore) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[id]; !ok {
		return false, nil
	}
	delete(s.rows, id)
	return true, nil
}

func (s *MemStore) Count(ctx context.Context, filter Filter) (int, error) {
	apps, err := s.List(ctx, filter)
	return len(apps), err
}

func (s *MemStore) List(_ context.Context, filter Filter) ([]*Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Application, 0)
	for _, row := range s.rows {
		if filter.Matches(row) {
			out = append(out, row.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
