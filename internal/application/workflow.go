package application

import (
	"context"
	"fmt"
	"strings"

	apperrors "fleet-workflow/internal/common/errors"
	"fleet-workflow/internal/common/logger"
	"fleet-workflow/internal/permission"
)

// Workflow validates and persists applications and enforces the approval state machine.
// Notification is the caller's concern.
type Workflow struct {
	store  Store
	logger logger.Logger
}

func NewWorkflow(store Store, log logger.Logger) *Workflow {
	return &Workflow{
		store:  store,
		logger: log.WithFields(map[string]interface{}{"component": "application-workflow"}),
	}
}

// Create persists a new application and returns the identifier assigned by storage.
func (w *Workflow) Create(ctx context.Context, app *Application) (int64, error) {
	if app == nil {
		return 0, apperrors.NewValidationError("application is required")
	}
	if app.ID != 0 {
		return 0, apperrors.NewValidationError(fmt.Sprintf("new application must not carry an id, got %d", app.ID))
	}
	if err := validateFields(app); err != nil {
		return 0, err
	}
	if app.Status == "" {
		app.Status = StatusPending
	}
	if !app.Status.Valid() {
		return 0, apperrors.NewValidationError(fmt.Sprintf("unknown status %q", app.Status))
	}

	id, err := w.store.Create(ctx, app)
	if err != nil {
		return 0, err
	}

	w.logger.Debug("application created", map[string]interface{}{
		"applicationId": id,
		"creatorId":     app.CreatorID,
		"type":          string(app.Type),
	})
	return id, nil
}

// Update persists description and status changes. Creation time, creator and type are
// always taken from the stored application, whatever the caller supplied.
func (w *Workflow) Update(ctx context.Context, app *Application) error {
	if app == nil {
		return apperrors.NewValidationError("application is required")
	}
	if app.ID <= 0 {
		return apperrors.NewValidationError(fmt.Sprintf("application id must be positive, got %d", app.ID))
	}
	if err := validateFields(app); err != nil {
		return err
	}

	existing, err := w.store.GetByID(ctx, app.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperrors.NewNotFoundError("application", app.ID)
	}

	if app.Status == "" {
		app.Status = existing.Status
	}
	if !app.Status.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown status %q", app.Status))
	}
	if !CanTransition(existing.Status, app.Status) {
		return apperrors.NewValidationError(fmt.Sprintf("illegal transition %s -> %s", existing.Status, app.Status))
	}

	app.CreatedAt = existing.CreatedAt
	app.CreatorID = existing.CreatorID
	app.Type = existing.Type

	ok, err := w.store.Update(ctx, app)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewNotFoundError("application", app.ID)
	}
	return nil
}

// GetByID loads an application.
func (w *Workflow) GetByID(ctx context.Context, id int64) (*Application, error) {
	if id <= 0 {
		return nil, apperrors.NewValidationError(fmt.Sprintf("application id must be positive, got %d", id))
	}
	app, err := w.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, apperrors.NewNotFoundError("application", id)
	}
	return app, nil
}

// Delete removes an application. Deleting an absent id is an error, not a no-op.
func (w *Workflow) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperrors.NewValidationError(fmt.Sprintf("application id must be positive, got %d", id))
	}
	ok, err := w.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewNotFoundError("application", id)
	}
	return nil
}

// UpdateStatus moves an application along the state machine without an authorization check.
// Callers facing users go through Decide.
func (w *Workflow) UpdateStatus(ctx context.Context, id int64, status Status) error {
	if id <= 0 {
		return apperrors.NewValidationError(fmt.Sprintf("application id must be positive, got %d", id))
	}
	if !status.Valid() {
		return apperrors.NewValidationError(fmt.Sprintf("unknown status %q", status))
	}

	existing, err := w.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(existing.Status, status) {
		return apperrors.NewValidationError(fmt.Sprintf("illegal transition %s -> %s", existing.Status, status))
	}

	ok, err := w.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewNotFoundError("application", id)
	}
	return nil
}

// Decide is the gated external trigger of the state machine. The actor must hold every
// required capability (ApproveApplications when none are given) and may not decide an
// application they created unless they hold All.
func (w *Workflow) Decide(ctx context.Context, actor permission.Actor, id int64, status Status, required ...permission.Capability) error {
	if len(required) == 0 {
		required = []permission.Capability{permission.ApproveApplications}
	}
	if !actor.Can(required...) {
		return apperrors.NewAuthorizationError(fmt.Sprintf("user %d lacks %v", actor.UserID, permission.Missing(actor.Rights, required...)))
	}
	if !status.Terminal() {
		return apperrors.NewValidationError(fmt.Sprintf("decision must be approved or rejected, got %q", status))
	}

	existing, err := w.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.CreatorID == actor.UserID && !actor.Rights.IsAll() {
		return apperrors.NewAuthorizationError(fmt.Sprintf("user %d may not decide their own application %d", actor.UserID, id))
	}

	if err := w.UpdateStatus(ctx, id, status); err != nil {
		return err
	}

	w.logger.Info("application decided", map[string]interface{}{
		"applicationId": id,
		"status":        string(status),
		"actorId":       actor.UserID,
	})
	return nil
}

// Count returns the number of applications matching filter.
func (w *Workflow) Count(ctx context.Context, filter Filter) (int, error) {
	if filter.CreatorID < 0 {
		return 0, apperrors.NewValidationError("creator id must be positive")
	}
	return w.store.Count(ctx, filter)
}

// List returns the applications matching filter ordered by id.
func (w *Workflow) List(ctx context.Context, filter Filter) ([]*Application, error) {
	if filter.CreatorID < 0 {
		return nil, apperrors.NewValidationError("creator id must be positive")
	}
	return w.store.List(ctx, filter)
}

func validateFields(app *Application) error {
	if app.CreatedAt.IsZero() {
		return apperrors.NewValidationError("creation timestamp is required")
	}
	if strings.TrimSpace(app.Description) == "" {
		return apperrors.NewValidationError("description is required")
	}
	if app.CreatorID <= 0 {
		return apperrors.NewValidationError(fmt.Sprintf("creator id must be positive, got %d", app.CreatorID))
	}
	return nil
}
