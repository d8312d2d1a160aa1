package ordercommand

import (
	"encoding/json"

	"fleet-workflow/internal/application"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionDecide Action = "decide"
	ActionGet    Action = "get"
)

const (
	TaskCreate = "fleet-order-create"
	TaskUpdate = "fleet-order-update"
	TaskDelete = "fleet-order-delete"
	TaskDecide = "fleet-order-decide"
	TaskGet    = "fleet-order-get"
)

// TaskTypes maps every served task type to the action it runs.
var TaskTypes = map[string]Action{
	TaskCreate: ActionCreate,
	TaskUpdate: ActionUpdate,
	TaskDelete: ActionDelete,
	TaskDecide: ActionDecide,
	TaskGet:    ActionGet,
}

type Input struct {
	ActorID int64              `json:"actorId"`
	Family  string             `json:"family"`
	OrderID int64              `json:"orderId,omitempty"`
	Status  application.Status `json:"status,omitempty"`
	Order   json.RawMessage    `json:"order,omitempty"`
}

type Output struct {
	Family        string             `json:"family"`
	OrderID       int64              `json:"orderId"`
	ApplicationID int64              `json:"applicationId,omitempty"`
	Status        application.Status `json:"status,omitempty"`
	Order         interface{}        `json:"order,omitempty"`
}
