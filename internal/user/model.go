// Package user holds the user records referenced by the workflow: who may act, with which
// role and rights, and who is told about what.
package user

import (
	"context"

	"fleet-workflow/internal/permission"
)

type User struct {
	ID           int64           `json:"id"`
	Login        string          `json:"login"`
	PasswordHash string          `json:"-"`
	FirstName    string          `json:"firstName"`
	LastName     string          `json:"lastName"`
	Role         permission.Role `json:"role"`
	Rights       permission.Set  `json:"-"`
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// Actor returns the permission view of u.
func (u *User) Actor() permission.Actor {
	return permission.Actor{UserID: u.ID, Role: u.Role, Rights: u.Rights}
}

// Directory looks users up by id. GetByID returns (nil, nil) when the user is absent.
type Directory interface {
	GetByID(ctx context.Context, id int64) (*User, error)
}

// Store persists users. Lookups return (nil, nil) when absent; Update reports whether a
// row was affected.
type Store interface {
	Directory
	Create(ctx context.Context, u *User) (int64, error)
	GetByLogin(ctx context.Context, login string) (*User, error)
	Update(ctx context.Context, u *User) (bool, error)
}
