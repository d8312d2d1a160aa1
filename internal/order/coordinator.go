package order

import (
	"context"
	"fmt"
	"reflect"

	"fleet-workflow/internal/application"
	apperrors "fleet-workflow/internal/common/errors"
	"fleet-workflow/internal/common/logger"
	"fleet-workflow/internal/common/metrics"
	"fleet-workflow/internal/permission"
)

// Options tune coordinator behaviour that is not family specific.
type Options struct {
	// CompensateOnConflict deletes the application created by a Create whose order could
	// not be persisted. When false the application is left without an owning order.
	CompensateOnConflict bool
}

// Coordinator runs the create, update and delete sequences of one order family. Each
// sequence is a chain of blocking store calls; there is no lock and no transaction
// spanning the application and the order.
type Coordinator[O Order] struct {
	family   Family[O]
	store    Store[O]
	apps     Applications
	notifier Notifier
	logger   logger.Logger
	opts     Options
}

func NewCoordinator[O Order](family Family[O], store Store[O], apps Applications, notifier Notifier, log logger.Logger, opts Options) *Coordinator[O] {
	return &Coordinator[O]{
		family:   family,
		store:    store,
		apps:     apps,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"family": family.Name}),
		opts:     opts,
	}
}

// Family returns the configuration the coordinator was built with.
func (c *Coordinator[O]) Family() Family[O] {
	return c.family
}

// Create persists the embedded application as Pending, links it into the order and persists
// the order. The order's creator is notified on success.
func (c *Coordinator[O]) Create(ctx context.Context, actor permission.Actor, o O) (id int64, err error) {
	defer c.observe("create", &err)

	if !actor.Can(c.family.ManageCaps...) {
		return 0, c.denied(actor, "create", c.family.ManageCaps)
	}
	if isNil(o) {
		return 0, apperrors.NewValidationError(c.family.Name + " order is required")
	}
	if o.Application() == nil {
		return 0, apperrors.NewValidationError(c.family.Name + " order must carry an application")
	}
	if c.family.Validate != nil {
		if err := c.family.Validate(o); err != nil {
			return 0, err
		}
	}

	app := o.Application().Clone()
	app.Status = application.StatusPending
	app.Type = c.family.AppType
	if app.CreatorID == 0 {
		app.CreatorID = actor.UserID
	}

	appID, err := c.apps.Create(ctx, app)
	if err != nil {
		return 0, err
	}
	o.SetApplicationID(appID)

	if preassigned := o.OrderID(); preassigned != 0 {
		_, found, err := c.store.FindExisting(ctx, preassigned)
		if err != nil {
			c.orphan(ctx, appID, err)
			return 0, err
		}
		if found {
			conflict := apperrors.NewConflictError(c.family.Name+" order", preassigned)
			c.orphan(ctx, appID, conflict)
			return 0, conflict
		}
	}

	o.SetApplication(nil)

	id, err = c.store.Add(ctx, o)
	if err != nil {
		c.orphan(ctx, appID, err)
		return 0, err
	}
	o.SetOrderID(id)

	if err := c.store.Commit(ctx); err != nil {
		c.orphan(ctx, appID, err)
		return 0, err
	}

	c.logger.Info("order created", map[string]interface{}{
		"orderId":       id,
		"applicationId": appID,
		"creatorId":     app.CreatorID,
	})

	c.notify(ctx, app.CreatorID, id)
	return id, nil
}

// Update copies the mutable fields of o onto the stored order and, when both carry an
// application, updates the linked application. Approval changes need ApproveCaps on top of
// ManageCaps and are checked before anything is written.
func (c *Coordinator[O]) Update(ctx context.Context, actor permission.Actor, o O) (err error) {
	defer c.observe("update", &err)

	if !actor.Can(c.family.ManageCaps...) {
		return c.denied(actor, "update", c.family.ManageCaps)
	}
	if isNil(o) {
		return apperrors.NewValidationError(c.family.Name + " order is required")
	}
	if o.OrderID() <= 0 {
		return apperrors.NewValidationError(fmt.Sprintf("%s order id must be positive, got %d", c.family.Name, o.OrderID()))
	}
	if c.family.Validate != nil {
		if err := c.family.Validate(o); err != nil {
			return err
		}
	}

	existing, found, err := c.store.GetByID(ctx, o.OrderID(), true)
	if err != nil {
		return err
	}
	if !found {
		return apperrors.NewNotFoundError(c.family.Name+" order", o.OrderID())
	}

	incomingApp, existingApp := o.Application(), existing.Application()

	var flagCaps []permission.Capability
	if c.family.FlagCaps != nil {
		flagCaps = c.family.FlagCaps(existing, o)
	}
	statusChange := incomingApp != nil && existingApp != nil &&
		incomingApp.Status != "" && incomingApp.Status != existingApp.Status

	if len(flagCaps) > 0 || statusChange {
		required := append(append([]permission.Capability{}, c.family.ApproveCaps...), flagCaps...)
		if !actor.Can(required...) {
			return c.denied(actor, "approve", required)
		}
		if statusChange && existingApp.CreatorID == actor.UserID && !actor.Rights.IsAll() {
			return apperrors.NewAuthorizationError(fmt.Sprintf("user %d may not decide their own application %d", actor.UserID, existingApp.ID))
		}
	}

	c.family.ApplyUpdate(existing, o)

	if incomingApp != nil && existingApp != nil {
		upd := incomingApp.Clone()
		upd.ID = existing.ApplicationID()
		upd.Type = c.family.AppType
		if upd.Description == "" {
			upd.Description = existingApp.Description
		}
		if upd.CreatedAt.IsZero() {
			upd.CreatedAt = existingApp.CreatedAt
		}
		if upd.CreatorID == 0 {
			upd.CreatorID = existingApp.CreatorID
		}
		if err := c.apps.Update(ctx, upd); err != nil {
			return err
		}
	}

	existing.SetApplication(nil)
	ok, err := c.store.Update(ctx, existing)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewNotFoundError(c.family.Name+" order", o.OrderID())
	}
	if err := c.store.Commit(ctx); err != nil {
		return err
	}

	c.logger.Debug("order updated", map[string]interface{}{"orderId": o.OrderID(), "actorId": actor.UserID})
	return nil
}

// Delete removes the order, then its application. A failure between the two leaves an
// application without an order, never an order without an application.
func (c *Coordinator[O]) Delete(ctx context.Context, actor permission.Actor, id int64) (err error) {
	defer c.observe("delete", &err)

	if !actor.Can(c.family.ManageCaps...) {
		return c.denied(actor, "delete", c.family.ManageCaps)
	}
	if id <= 0 {
		return apperrors.NewValidationError(fmt.Sprintf("%s order id must be positive, got %d", c.family.Name, id))
	}

	existing, found, err := c.store.GetByID(ctx, id, true)
	if err != nil {
		return err
	}
	if !found {
		return apperrors.NewNotFoundError(c.family.Name+" order", id)
	}

	if err := c.store.Remove(ctx, existing); err != nil {
		return err
	}
	if err := c.store.Commit(ctx); err != nil {
		return err
	}

	if appID := existing.ApplicationID(); appID != 0 {
		if err := c.apps.Delete(ctx, appID); err != nil {
			return err
		}
	}
	if err := c.store.Commit(ctx); err != nil {
		return err
	}

	c.logger.Info("order deleted", map[string]interface{}{
		"orderId":       id,
		"applicationId": existing.ApplicationID(),
		"actorId":       actor.UserID,
	})
	return nil
}

// Decide approves or rejects the order's application and notifies its creator.
func (c *Coordinator[O]) Decide(ctx context.Context, actor permission.Actor, id int64, status application.Status) (err error) {
	defer c.observe("decide", &err)

	if id <= 0 {
		return apperrors.NewValidationError(fmt.Sprintf("%s order id must be positive, got %d", c.family.Name, id))
	}

	existing, found, err := c.store.GetByID(ctx, id, true)
	if err != nil {
		return err
	}
	if !found {
		return apperrors.NewNotFoundError(c.family.Name+" order", id)
	}
	if existing.ApplicationID() == 0 {
		return apperrors.NewValidationError(fmt.Sprintf("%s order %d has no application", c.family.Name, id))
	}

	if err := c.apps.Decide(ctx, actor, existing.ApplicationID(), status, c.family.ApproveCaps...); err != nil {
		return err
	}

	if app := existing.Application(); app != nil {
		c.notify(ctx, app.CreatorID, id)
	}
	return nil
}

// Get loads an order with its application.
func (c *Coordinator[O]) Get(ctx context.Context, id int64) (O, error) {
	var zero O
	if id <= 0 {
		return zero, apperrors.NewValidationError(fmt.Sprintf("%s order id must be positive, got %d", c.family.Name, id))
	}
	o, found, err := c.store.GetByID(ctx, id, true)
	if err != nil {
		return zero, err
	}
	if !found {
		return zero, apperrors.NewNotFoundError(c.family.Name+" order", id)
	}
	return o, nil
}

func (c *Coordinator[O]) orphan(ctx context.Context, appID int64, cause error) {
	metrics.OrphanedApplications.WithLabelValues(c.family.Name).Inc()

	fields := map[string]interface{}{"applicationId": appID, "cause": cause.Error()}
	if !c.opts.CompensateOnConflict {
		c.logger.Warn("application left without order", fields)
		return
	}
	if err := c.apps.Delete(ctx, appID); err != nil {
		fields["error"] = err.Error()
		c.logger.Error("compensating application delete failed", fields)
		return
	}
	metrics.CompensatedApplications.WithLabelValues(c.family.Name).Inc()
	c.logger.Info("orphaned application removed", fields)
}

func (c *Coordinator[O]) notify(ctx context.Context, userID, orderID int64) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(ctx, userID, orderID); err != nil {
		c.logger.Warn("notification failed", map[string]interface{}{
			"userId":  userID,
			"orderId": orderID,
			"error":   err.Error(),
		})
	}
}

func (c *Coordinator[O]) denied(actor permission.Actor, op string, caps []permission.Capability) error {
	return apperrors.NewAuthorizationError(fmt.Sprintf("user %d may not %s %s orders: missing %v",
		actor.UserID, op, c.family.Name, permission.Missing(actor.Rights, caps...)))
}

func (c *Coordinator[O]) observe(op string, err *error) {
	outcome := "ok"
	if *err != nil {
		outcome = string(apperrors.CodeOf(*err))
	}
	metrics.OrderOperations.WithLabelValues(c.family.Name, op, outcome).Inc()
}

func isNil[O Order](o O) bool {
	v := reflect.ValueOf(o)
	return !v.IsValid() || (v.Kind() == reflect.Ptr && v.IsNil())
}
