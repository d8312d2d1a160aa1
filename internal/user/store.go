package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"

	"fleet-workflow/internal/common/database"
	apperrors "fleet-workflow/internal/common/errors"
	"fleet-workflow/internal/permission"
)

// MemStore is an in-process Store with a unique login index.
type MemStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]*User
}

func NewMemStore() *MemStore {
	return &MemStore{rows: make(map[int64]*User)}
}

func (s *MemStore) Create(_ context.Context, u *User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.rows {
		if strings.EqualFold(row.Login, u.Login) {
			return 0, apperrors.NewConflictError("user", row.ID)
		}
	}
	s.nextID++
	row := u.Clone()
	row.ID = s.nextID
	s.rows[row.ID] = row
	return row.ID, nil
}

func (s *MemStore) GetByID(_ context.Context, id int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows[id].Clone(), nil
}

func (s *MemStore) GetByLogin(_ context.Context, login string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.rows {
		if strings.EqualFold(row.Login, login) {
			return row.Clone(), nil
		}
	}
	return nil, nil
}

func (s *MemStore) Update(_ context.Context, u *User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[u.ID]; !ok {
		return false, nil
	}
	s.rows[u.ID] = u.Clone()
	return true, nil
}

const userColumns = `id, login, password_hash, first_name, last_name, role, access_right`

// PostgresStore is the Store backed by the users table. Rights are stored as the
// capability mask.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, u *User) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (login, password_hash, first_name, last_name, role, access_right)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		u.Login, u.PasswordHash, u.FirstName, u.LastName, string(u.Role), permission.Encode(u.Rights),
	).Scan(&id)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return 0, apperrors.NewConflictError("user", 0)
		}
		return 0, apperrors.NewStorageError("user.create", err)
	}
	return id, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.getOne(ctx, "user.get", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *PostgresStore) GetByLogin(ctx context.Context, login string) (*User, error) {
	return s.getOne(ctx, "user.get_by_login", `SELECT `+userColumns+` FROM users WHERE lower(login) = lower($1)`, login)
}

func (s *PostgresStore) getOne(ctx context.Context, op, query string, arg interface{}) (*User, error) {
	var (
		u    User
		role string
		mask int64
	)
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Login, &u.PasswordHash, &u.FirstName, &u.LastName, &role, &mask)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError(op, err)
	}
	u.Role = permission.Role(role)
	u.Rights = permission.Decode(mask)
	return &u, nil
}

func (s *PostgresStore) Update(ctx context.Context, u *User) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $1, first_name = $2, last_name = $3, role = $4, access_right = $5
		WHERE id = $6`,
		u.PasswordHash, u.FirstName, u.LastName, string(u.Role), permission.Encode(u.Rights), u.ID,
	)
	if err != nil {
		return false, apperrors.NewStorageError("user.update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewStorageError("user.update", err)
	}
	return n > 0, nil
}
