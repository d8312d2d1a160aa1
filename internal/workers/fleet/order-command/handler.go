// Package ordercommand serves the Zeebe job types that create, update, delete, decide and
// load fleet orders.
package ordercommand

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fleet-workflow/internal/application"
	apperrors "fleet-workflow/internal/common/errors"
	"fleet-workflow/internal/common/logger"
	"fleet-workflow/internal/common/metrics"
	"fleet-workflow/internal/common/observability"
	"fleet-workflow/internal/common/validation"
	"fleet-workflow/internal/order"
	"fleet-workflow/internal/orders"
	"fleet-workflow/internal/permission"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// Actors resolves the permission view of the user a job runs for.
type Actors interface {
	Actor(ctx context.Context, id int64) (permission.Actor, error)
}

// Families resolves an order family by name.
type Families interface {
	Lookup(family string) (orders.Handler, error)
}

type Handler struct {
	taskType string
	action   Action
	config   *Config
	actors   Actors
	families Families
	schemas  *validation.SchemaSet
	obs      *observability.Observability
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
}

type HandlerOptions struct {
	TaskType      string
	Config        *Config
	Actors        Actors
	Families      Families
	Schemas       *validation.SchemaSet
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	action, ok := TaskTypes[opts.TaskType]
	if !ok {
		return nil, fmt.Errorf("unknown task type %q", opts.TaskType)
	}
	if opts.Actors == nil || opts.Families == nil {
		return nil, fmt.Errorf("%s: actors and families are required", opts.TaskType)
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", opts.TaskType, err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"taskType": opts.TaskType})

	return &Handler{
		taskType: opts.TaskType,
		action:   action,
		config:   cfg,
		actors:   opts.Actors,
		families: opts.Families,
		schemas:  opts.Schemas,
		obs:      opts.Observability,
		errors:   apperrors.NewErrorHandler(log),
		logger:   log,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(h.taskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(h.taskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.fail(ctx, client, job, "", err, start)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, input.Family, err, start)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(h.taskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(h.taskType).Observe(time.Since(start).Seconds())
	h.obs.RecordCommand(ctx, input.Family, string(h.action), "completed", time.Since(start))
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, apperrors.NewInputParsingError(err)
	}

	if h.schemas != nil {
		result, err := h.schemas.Validate(h.taskType, variables)
		if err != nil {
			return nil, apperrors.NewInputParsingError(err)
		}
		if !result.Valid {
			return nil, apperrors.NewValidationError(fmt.Sprintf("input validation errors: %v", result.GetErrorMessages()))
		}
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, apperrors.NewInputParsingError(err)
	}
	return &input, nil
}

// Execute runs the handler's action for the actor named in input.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	actor, err := h.actors.Actor(ctx, input.ActorID)
	if err != nil {
		return nil, err
	}
	family, err := h.families.Lookup(input.Family)
	if err != nil {
		return nil, err
	}

	var res *orders.Result
	switch h.action {
	case ActionCreate:
		res, err = family.Create(ctx, actor, input.Order)
	case ActionUpdate:
		res, err = family.Update(ctx, actor, input.Order)
	case ActionDelete:
		res, err = family.Delete(ctx, actor, input.OrderID)
	case ActionDecide:
		res, err = family.Decide(ctx, actor, input.OrderID, input.Status)
	case ActionGet:
		return h.get(ctx, actor, family, input)
	}
	if err != nil {
		return nil, err
	}

	h.logger.Info("order command applied", map[string]interface{}{
		"family":        res.Family,
		"orderId":       res.OrderID,
		"applicationId": res.ApplicationID,
		"actorId":       actor.UserID,
	})
	return &Output{
		Family:        res.Family,
		OrderID:       res.OrderID,
		ApplicationID: res.ApplicationID,
		Status:        res.Status,
	}, nil
}

// get returns the order to holders of ReadAll and to the creator of its application. Other
// actors get the same AuthorizationError whether or not the order exists.
func (h *Handler) get(ctx context.Context, actor permission.Actor, family orders.Handler, input *Input) (*Output, error) {
	denied := apperrors.NewAuthorizationError(fmt.Sprintf("user %d may not read %s order %d", actor.UserID, input.Family, input.OrderID))
	readAll := actor.Can(permission.ReadAll)

	loaded, err := family.Get(ctx, input.OrderID)
	if err != nil {
		if !readAll && apperrors.IsNotFound(err) {
			return nil, denied
		}
		return nil, err
	}

	out := &Output{Family: input.Family, OrderID: input.OrderID, Order: loaded}
	var app *application.Application
	if o, ok := loaded.(order.Order); ok {
		app = o.Application()
		out.ApplicationID = o.ApplicationID()
	}
	if app != nil {
		out.Status = app.Status
	}

	if !readAll && (app == nil || app.CreatorID != actor.UserID) {
		return nil, denied
	}
	return out, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err,
		})
		return
	}
	h.logger.Info("job completed successfully", map[string]interface{}{"jobKey": job.GetKey()})
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, family string, err error, start time.Time) {
	code := string(apperrors.CodeOf(err))
	metrics.WorkerJobsFailed.WithLabelValues(h.taskType, code).Inc()
	h.obs.RecordCommand(ctx, family, string(h.action), code, time.Since(start))
	h.errors.HandleJobError(ctx, client, job, err)
}
