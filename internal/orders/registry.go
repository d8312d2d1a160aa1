package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"fleet-workflow/internal/application"
	apperrors "fleet-workflow/internal/common/errors"
	"fleet-workflow/internal/common/logger"
	"fleet-workflow/internal/order"
	"fleet-workflow/internal/permission"
)

// Result summarises the outcome of an order operation for callers that work on JSON
// payloads, such as the job workers.
type Result struct {
	Family        string             `json:"family"`
	OrderID       int64              `json:"orderId"`
	ApplicationID int64              `json:"applicationId,omitempty"`
	Status        application.Status `json:"status,omitempty"`
}

// Handler runs coordinator operations for one family on JSON-encoded orders.
type Handler interface {
	Create(ctx context.Context, actor permission.Actor, payload json.RawMessage) (*Result, error)
	Update(ctx context.Context, actor permission.Actor, payload json.RawMessage) (*Result, error)
	Delete(ctx context.Context, actor permission.Actor, id int64) (*Result, error)
	Decide(ctx context.Context, actor permission.Actor, id int64, status application.Status) (*Result, error)
	Get(ctx context.Context, id int64) (interface{}, error)
}

// Deps are the collaborators shared by every family's coordinator.
type Deps struct {
	// DB selects PostgreSQL stores; nil selects in-memory stores.
	DB           *sql.DB
	Applications order.ApplicationReader
	Workflow     order.Applications
	Notifier     order.Notifier
	Logger       logger.Logger
	Options      order.Options
}

// Registry maps a family name to its handler.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry(d Deps) *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	register(r, d, PurchaseFamily(), PurchaseTable())
	register(r, d, WithdrawalFamily(), WithdrawalTable())
	register(r, d, JobOrderFamily(), JobOrderTable())
	register(r, d, MaintenanceFamily(), MaintenanceTable())
	register(r, d, MissionFamily(), MissionTable())
	return r
}

func register[O order.Order](r *Registry, d Deps, family order.Family[O], table order.Table[O]) {
	var store order.Store[O]
	if d.DB != nil {
		store = order.NewSQLStore(d.DB, family, table, d.Applications)
	} else {
		store = order.NewMemStore(family, d.Applications)
	}
	r.handlers[family.Name] = &binding[O]{
		coord: order.NewCoordinator(family, store, d.Workflow, d.Notifier, d.Logger, d.Options),
	}
}

// Lookup returns the handler for family.
func (r *Registry) Lookup(family string) (Handler, error) {
	h, ok := r.handlers[family]
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown order family %q", family))
	}
	return h, nil
}

// Families lists the registered family names in order.
func (r *Registry) Families() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type binding[O order.Order] struct {
	coord *order.Coordinator[O]
}

func (b *binding[O]) decode(payload json.RawMessage) (O, error) {
	o := b.coord.Family().New()
	if err := json.Unmarshal(payload, o); err != nil {
		var zero O
		return zero, apperrors.NewValidationError(fmt.Sprintf("invalid %s order: %v", b.coord.Family().Name, err))
	}
	return o, nil
}

func (b *binding[O]) result(o O) *Result {
	res := &Result{
		Family:        b.coord.Family().Name,
		OrderID:       o.OrderID(),
		ApplicationID: o.ApplicationID(),
	}
	if app := o.Application(); app != nil {
		res.Status = app.Status
	}
	return res
}

func (b *binding[O]) Create(ctx context.Context, actor permission.Actor, payload json.RawMessage) (*Result, error) {
	o, err := b.decode(payload)
	if err != nil {
		return nil, err
	}
	if _, err := b.coord.Create(ctx, actor, o); err != nil {
		return nil, err
	}
	res := b.result(o)
	res.Status = application.StatusPending
	return res, nil
}

func (b *binding[O]) Update(ctx context.Context, actor permission.Actor, payload json.RawMessage) (*Result, error) {
	o, err := b.decode(payload)
	if err != nil {
		return nil, err
	}
	if err := b.coord.Update(ctx, actor, o); err != nil {
		return nil, err
	}
	return b.reload(ctx, o.OrderID())
}

func (b *binding[O]) Delete(ctx context.Context, actor permission.Actor, id int64) (*Result, error) {
	if err := b.coord.Delete(ctx, actor, id); err != nil {
		return nil, err
	}
	return &Result{Family: b.coord.Family().Name, OrderID: id}, nil
}

func (b *binding[O]) Decide(ctx context.Context, actor permission.Actor, id int64, status application.Status) (*Result, error) {
	if err := b.coord.Decide(ctx, actor, id, status); err != nil {
		return nil, err
	}
	return b.reload(ctx, id)
}

func (b *binding[O]) Get(ctx context.Context, id int64) (interface{}, error) {
	return b.coord.Get(ctx, id)
}

func (b *binding[O]) reload(ctx context.Context, id int64) (*Result, error) {
	o, err := b.coord.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return b.result(o), nil
}
