// Package application holds the generic approval record owned by every order and the
// workflow that validates and mutates it.
package application

import "time"

// Status is the approval state of an application.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransition reports whether moving from one status to another is legal.
// Pending may become Approved or Rejected; terminal states never change.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	return from == StatusPending && to.Terminal()
}

// Type discriminates which order family owns an application.
type Type string

const (
	TypePurchase    Type = "purchase"
	TypeWithdrawal  Type = "withdrawal"
	TypeJobOrder    Type = "job_order"
	TypeMaintenance Type = "maintenance"
	TypeMission     Type = "mission"
)

// Application is the approval record owned 1:1 by an order.
type Application struct {
	ID          int64     `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	Description string    `json:"description"`
	CreatorID   int64     `json:"creatorId"`
	Status      Status    `json:"status"`
	Type        Type      `json:"type"`
}

// Clone returns a copy safe to mutate.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// Filter narrows count and list queries. Zero fields do not filter.
type Filter struct {
	Status    Status
	Type      Type
	CreatorID int64
}

// Matches reports whether app satisfies the filter.
func (f Filter) Matches(app *Application) bool {
	if f.Status != "" && app.Status != f.Status {
		return false
	}
	if f.Type != "" && app.Type != f.Type {
		return false
	}
	if f.CreatorID != 0 && app.CreatorID != f.CreatorID {
		return false
	}
	return true
}
