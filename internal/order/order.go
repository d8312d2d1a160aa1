// Package order keeps an order and its owning application consistent across create, update
// and delete without a transaction spanning both stores. One Coordinator serves every order
// family; the family-specific parts are supplied through Family.
package order

import (
	"context"

	"fleet-workflow/internal/application"
	"fleet-workflow/internal/permission"
)

// Order is implemented by every order family, normally by embedding Base.
type Order interface {
	OrderID() int64
	SetOrderID(id int64)
	ApplicationID() int64
	SetApplicationID(id int64)
	Application() *application.Application
	SetApplication(app *application.Application)
}

// Base carries the identity and application linkage shared by all families.
// AppID is written only by the Coordinator.
type Base struct {
	ID    int64                    `json:"id"`
	AppID int64                    `json:"applicationId"`
	App   *application.Application `json:"application,omitempty"`
}

func (b *Base) OrderID() int64 { return b.ID }
func (b *Base) SetOrderID(id int64) { b.ID = id }
func (b *Base) ApplicationID() int64 { return b.AppID }
func (b *Base) SetApplicationID(id int64) { b.AppID = id }
func (b *Base) Application() *application.Application { return b.App }
func (b *Base) SetApplication(app *application.Application) { b.App = app }

// Store persists one order family. GetByID and FindExisting report absence through the bool.
// Commit is the flush point called after every logical step of a coordinator operation.
type Store[O Order] interface {
	Add(ctx context.Context, o O) (int64, error)
	GetByID(ctx context.Context, id int64, withApplication bool) (O, bool, error)
	FindExisting(ctx context.Context, id int64) (O, bool, error)
	Remove(ctx context.Context, o O) error
	Update(ctx context.Context, o O) (bool, error)
	Commit(ctx context.Context) error
}

// ApplicationReader resolves the application linked to an order. It returns (nil, nil)
// when the application is absent; application.Store satisfies it.
type ApplicationReader interface {
	GetByID(ctx context.Context, id int64) (*application.Application, error)
}

// Applications is the part of application.Workflow the coordinator drives.
type Applications interface {
	Create(ctx context.Context, app *application.Application) (int64, error)
	Update(ctx context.Context, app *application.Application) error
	Delete(ctx context.Context, id int64) error
	Decide(ctx context.Context, actor permission.Actor, id int64, status application.Status, required ...permission.Capability) error
}

// Notifier informs a user about an order. Implemented by notification.Router.
type Notifier interface {
	Notify(ctx context.Context, userID, orderID int64) error
}

// Family is the per-family configuration of the coordinator.
type Family[O Order] struct {
	Name    string
	AppType application.Type

	// ManageCaps gate create, update and delete.
	ManageCaps []permission.Capability
	// ApproveCaps gate decisions and any change to the application status or approval flags.
	ApproveCaps []permission.Capability

	// New returns an empty order, used by stores and decoders.
	New func() O
	// Clone returns a deep copy of o.
	Clone func(o O) O
	// ApplyUpdate copies the mutable payload fields of src onto dst. Identity and
	// application linkage are never touched.
	ApplyUpdate func(dst, src O)
	// FlagCaps returns the extra capabilities needed for the approval flags that differ
	// between existing and incoming. Nil when no flag changes.
	FlagCaps func(existing, incoming O) []permission.Capability
	// Validate checks the family payload before anything is written. Optional.
	Validate func(o O) error
}
