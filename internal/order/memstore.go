package order

import (
	"context"
	"sync"
	"sync/atomic"

	apperrors "fleet-workflow/internal/common/errors"
)

// MemStore is an in-process Store. Ids are unique per store: adding an order whose
// pre-assigned id is taken fails with a ConflictError, the same way the primary key does
// in PostgreSQL.
type MemStore[O Order] struct {
	name  string
	clone func(O) O
	apps  ApplicationReader

	mu     sync.RWMutex
	nextID int64
	rows   map[int64]O

	commits atomic.Int64
}

func NewMemStore[O Order](family Family[O], apps ApplicationReader) *MemStore[O] {
	return &MemStore[O]{
		name:  family.Name,
		clone: family.Clone,
		apps:  apps,
		rows:  make(map[int64]O),
	}
}

func (s *MemStore[O]) Add(_ context.Context, o O) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := o.OrderID()
	if id == 0 {
		for {
			s.nextID++
			if _, taken := s.rows[s.nextID]; !taken {
				break
			}
		}
		id = s.nextID
	} else if _, taken := s.rows[id]; taken {
		return 0, apperrors.NewConflictError(s.name+" order", id)
	}

	row := s.clone(o)
	row.SetOrderID(id)
	row.SetApplication(nil)
	s.rows[id] = row
	return id, nil
}

func (s *MemStore[O]) GetByID(ctx context.Context, id int64, withApplication bool) (O, bool, error) {
	o, found, _ := s.FindExisting(ctx, id)
	if !found || !withApplication || o.ApplicationID() == 0 {
		return o, found, nil
	}

	app, err := s.apps.GetByID(ctx, o.ApplicationID())
	if err != nil {
		var zero O
		return zero, false, err
	}
	o.SetApplication(app)
	return o, true, nil
}

func (s *MemStore[O]) FindExisting(_ context.Context, id int64) (O, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[id]
	if !ok {
		var zero O
		return zero, false, nil
	}
	return s.clone(row), true, nil
}

func (s *MemStore[O]) Remove(_ context.Context, o O) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[o.OrderID()]; !ok {
		return apperrors.NewNotFoundError(s.name+" order", o.OrderID())
	}
	delete(s.rows, o.OrderID())
	return nil
}

func (s *MemStore[O]) Update(_ context.Context, o O) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.rows[o.OrderID()]
	if !ok {
		return false, nil
	}
	row := s.clone(o)
	row.SetApplicationID(current.ApplicationID())
	row.SetApplication(nil)
	s.rows[o.OrderID()] = row
	return true, nil
}

// Commit is a flush point; writes are already visible. It counts calls for tests.
func (s *MemStore[O]) Commit(context.Context) error {
	s.commits.Add(1)
	return nil
}

// Commits reports how many times Commit was called.
func (s *MemStore[O]) Commits() int64 {
	return s.commits.Load()
}

// Len reports the number of stored orders.
func (s *MemStore[O]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
