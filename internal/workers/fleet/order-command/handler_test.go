package ordercommand

import (
	"context"
	"encoding/json"
	"testing"

	"fleet-workflow/internal/application"
	apperrors "fleet-workflow/internal/common/errors"
	"fleet-workflow/internal/common/logger"
	"fleet-workflow/internal/common/validation"
	"fleet-workflow/internal/notification"
	"fleet-workflow/internal/orders"
	"fleet-workflow/internal/permission"
	"fleet-workflow/internal/user"
	"fleet-workflow/pkg/registry"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Job Helper
// ==========================

func createMockJob(key int64, taskType string, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               taskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "fleet-order-approval",
		ElementId:          "Activity_OrderCommand",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            1,
		Variables:          string(variablesJSON),
	}}
}

// ==========================
// Test Helpers
// ==========================

type fixture struct {
	users    *user.MemStore
	apps     *application.MemStore
	families *orders.Registry
	schemas  *validation.SchemaSet
	ids      map[permission.Role]int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewTestLogger(t)

	users := user.NewMemStore()
	ids := make(map[permission.Role]int64)
	for _, role := range []permission.Role{
		permission.RoleAdministrator,
		permission.RoleGeneralSupervisor,
		permission.RoleHospitalManager,
		permission.RoleDriver,
		permission.RoleMechanic,
	} {
		id, err := users.Create(context.Background(), &user.User{
			Login:  string(role),
			Role:   role,
			Rights: permission.DeriveDefaultAccessRight(role),
		})
		require.NoError(t, err)
		ids[role] = id
	}

	apps := application.NewMemStore()
	families := orders.NewRegistry(orders.Deps{
		Applications: apps,
		Workflow:     application.NewWorkflow(apps, log),
		Notifier:     notification.NewRouter(users, notification.NewLogTransport(log), log),
		Logger:       log,
	})

	reg, err := registry.LoadRegistry("../../../../configs/activity-registry.json")
	require.NoError(t, err)
	schemas, err := validation.NewSchemaSet(reg)
	require.NoError(t, err)

	return &fixture{users: users, apps: apps, families: families, schemas: schemas, ids: ids}
}

func (f *fixture) handler(t *testing.T, taskType string) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		TaskType: taskType,
		Actors:   user.NewService(f.users, nil, nil, logger.NewTestLogger(t)),
		Families: f.families,
		Schemas:  f.schemas,
		Logger:   logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

const missionOrder = `{"application":{"createdAt":"2024-06-01T08:00:00Z","description":"Transfer to regional hospital"},"vehicleId":12,"driverId":4,"destination":"Regional Hospital","departure":"2024-06-02T06:30:00Z"}`

func (f *fixture) createMission(t *testing.T) *Output {
	t.Helper()
	out, err := f.handler(t, TaskCreate).Execute(context.Background(), &Input{
		ActorID: f.ids[permission.RoleDriver],
		Family:  "mission",
		Order:   json.RawMessage(missionOrder),
	})
	require.NoError(t, err)
	return out
}

// ==========================
// Handler Creation Tests
// ==========================

func TestNewHandler(t *testing.T) {
	f := newFixture(t)
	actors := user.NewService(f.users, nil, nil, logger.NewNoOpLogger())

	tests := []struct {
		name    string
		opts    HandlerOptions
		wantErr string
	}{
		{name: "valid", opts: HandlerOptions{TaskType: TaskCreate, Actors: actors, Families: f.families}},
		{name: "unknown task type", opts: HandlerOptions{TaskType: "fleet-order-archive", Actors: actors, Families: f.families}, wantErr: "unknown task type"},
		{name: "missing actors", opts: HandlerOptions{TaskType: TaskDelete, Families: f.families}, wantErr: "actors and families are required"},
		{name: "bad timeout", opts: HandlerOptions{TaskType: TaskGet, Actors: actors, Families: f.families, Config: &Config{}}, wantErr: "timeout must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHandler(tt.opts)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				assert.Nil(t, h)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, TaskTypes[tt.opts.TaskType], h.action)
		})
	}
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	f := newFixture(t)

	var order map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(missionOrder), &order))

	tests := []struct {
		name     string
		taskType string
		vars     map[string]interface{}
		check    func(error) bool
	}{
		{
			name:     "valid create",
			taskType: TaskCreate,
			vars:     map[string]interface{}{"actorId": 4, "family": "mission", "order": order},
		},
		{
			name:     "missing family",
			taskType: TaskCreate,
			vars:     map[string]interface{}{"actorId": 4, "order": order},
			check:    apperrors.IsValidation,
		},
		{
			name:     "unknown family",
			taskType: TaskDelete,
			vars:     map[string]interface{}{"actorId": 4, "family": "helicopter", "orderId": 1},
			check:    apperrors.IsValidation,
		},
		{
			name:     "decide back to pending",
			taskType: TaskDecide,
			vars:     map[string]interface{}{"actorId": 3, "family": "mission", "orderId": 1, "status": "pending"},
			check:    apperrors.IsValidation,
		},
		{
			name:     "non positive actor",
			taskType: TaskGet,
			vars:     map[string]interface{}{"actorId": 0, "family": "mission", "orderId": 1},
			check:    apperrors.IsValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := f.handler(t, tt.taskType).parseInput(createMockJob(1, tt.taskType, tt.vars))
			if tt.check != nil {
				assert.True(t, tt.check(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "mission", input.Family)
			assert.Equal(t, int64(4), input.ActorID)
			assert.NotEmpty(t, input.Order)
		})
	}
}

func TestHandler_ParseInput_MalformedVariables(t *testing.T) {
	f := newFixture(t)
	job := entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 9, Type: TaskCreate, Variables: "{not json"}}

	_, err := f.handler(t, TaskCreate).parseInput(job)
	assert.Equal(t, apperrors.ErrCodeInputParsingFailed, apperrors.CodeOf(err))
}

// ==========================
// Execute Tests
// ==========================

func TestHandler_Execute_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.createMission(t)
	assert.Equal(t, "mission", created.Family)
	assert.Equal(t, int64(1), created.OrderID)
	assert.Equal(t, int64(1), created.ApplicationID)
	assert.Equal(t, application.StatusPending, created.Status)

	app, err := f.apps.GetByID(ctx, created.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, f.ids[permission.RoleDriver], app.CreatorID)

	decided, err := f.handler(t, TaskDecide).Execute(ctx, &Input{
		ActorID: f.ids[permission.RoleHospitalManager],
		Family:  "mission",
		OrderID: created.OrderID,
		Status:  application.StatusApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, application.StatusApproved, decided.Status)

	loaded, err := f.handler(t, TaskGet).Execute(ctx, &Input{
		ActorID: f.ids[permission.RoleDriver],
		Family:  "mission",
		OrderID: created.OrderID,
	})
	require.NoError(t, err)
	assert.Equal(t, application.StatusApproved, loaded.Status)
	assert.IsType(t, &orders.Mission{}, loaded.Order)

	deleted, err := f.handler(t, TaskDelete).Execute(ctx, &Input{
		ActorID: f.ids[permission.RoleDriver],
		Family:  "mission",
		OrderID: created.OrderID,
	})
	require.NoError(t, err)
	assert.Equal(t, created.OrderID, deleted.OrderID)

	gone, err := f.apps.GetByID(ctx, created.ApplicationID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestHandler_Execute_CreatorMayNotDecide(t *testing.T) {
	f := newFixture(t)
	created := f.createMission(t)

	_, err := f.handler(t, TaskDecide).Execute(context.Background(), &Input{
		ActorID: f.ids[permission.RoleDriver],
		Family:  "mission",
		OrderID: created.OrderID,
		Status:  application.StatusApproved,
	})
	assert.True(t, apperrors.IsUnauthorized(err))
}

func TestHandler_Execute_GetRequiresReadAllOrCreator(t *testing.T) {
	f := newFixture(t)
	created := f.createMission(t)
	h := f.handler(t, TaskGet)

	_, err := h.Execute(context.Background(), &Input{ActorID: f.ids[permission.RoleMechanic], Family: "mission", OrderID: created.OrderID})
	assert.True(t, apperrors.IsUnauthorized(err))

	out, err := h.Execute(context.Background(), &Input{ActorID: f.ids[permission.RoleGeneralSupervisor], Family: "mission", OrderID: created.OrderID})
	require.NoError(t, err)
	assert.Equal(t, created.ApplicationID, out.ApplicationID)
}

func TestHandler_Execute_GetHidesExistenceFromOtherUsers(t *testing.T) {
	f := newFixture(t)
	created := f.createMission(t)
	h := f.handler(t, TaskGet)
	ctx := context.Background()

	_, existing := h.Execute(ctx, &Input{ActorID: f.ids[permission.RoleMechanic], Family: "mission", OrderID: created.OrderID})
	_, missing := h.Execute(ctx, &Input{ActorID: f.ids[permission.RoleMechanic], Family: "mission", OrderID: 999})
	assert.True(t, apperrors.IsUnauthorized(existing), "got %v", existing)
	assert.True(t, apperrors.IsUnauthorized(missing), "got %v", missing)

	_, err := h.Execute(ctx, &Input{ActorID: f.ids[permission.RoleGeneralSupervisor], Family: "mission", OrderID: 999})
	assert.True(t, apperrors.IsNotFound(err), "got %v", err)
}

func TestHandler_Execute_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		taskType string
		input    *Input
		check    func(error) bool
	}{
		{name: "unknown actor", taskType: TaskCreate, input: &Input{ActorID: 404, Family: "mission", Order: json.RawMessage(missionOrder)}, check: apperrors.IsNotFound},
		{name: "unknown family", taskType: TaskCreate, input: &Input{ActorID: 4, Family: "helicopter", Order: json.RawMessage(missionOrder)}, check: apperrors.IsValidation},
		{name: "mechanic cannot file missions", taskType: TaskCreate, input: &Input{ActorID: 5, Family: "mission", Order: json.RawMessage(missionOrder)}, check: apperrors.IsUnauthorized},
		{name: "update missing order", taskType: TaskUpdate, input: &Input{ActorID: 4, Family: "mission", Order: json.RawMessage(`{"id":77,"vehicleId":1,"driverId":4,"destination":"x","departure":"2024-06-02T06:30:00Z"}`)}, check: apperrors.IsNotFound},
		{name: "delete missing order", taskType: TaskDelete, input: &Input{ActorID: 4, Family: "mission", OrderID: 77}, check: apperrors.IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.handler(t, tt.taskType).Execute(context.Background(), tt.input)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
	count, err := f.apps.Count(context.Background(), application.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
