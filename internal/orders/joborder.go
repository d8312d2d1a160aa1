package orders

import (
	"fleet-workflow/internal/application"
	"fleet-workflow/internal/order"
	"fleet-workflow/internal/permission"
)

// JobOrder assigns a repair task on a vehicle to a mechanic.
type JobOrder struct {
	order.Base
	VehicleID            int64  `json:"vehicleId"`
	MechanicID           int64  `json:"mechanicId,omitempty"`
	Task                 string `json:"task"`
	ApprovedBySupervisor bool   `json:"approvedBySupervisor"`
}

func JobOrderFamily() order.Family[*JobOrder] {
	return order.Family[*JobOrder]{
		Name:        string(application.TypeJobOrder),
		AppType:     application.TypeJobOrder,
		ManageCaps:  []permission.Capability{permission.ManipulateJobOrders},
		ApproveCaps: []permission.Capability{permission.ApproveApplications},
		New:         func() *JobOrder { return &JobOrder{} },
		Clone: func(o *JobOrder) *JobOrder {
			c := *o
			c.App = o.App.Clone()
			return &c
		},
		ApplyUpdate: func(dst, src *JobOrder) {
			dst.VehicleID = src.VehicleID
			dst.MechanicID = src.MechanicID
			dst.Task = src.Task
			dst.ApprovedBySupervisor = src.ApprovedBySupervisor
		},
		FlagCaps: func(existing, incoming *JobOrder) []permission.Capability {
			return flagged(nil, existing.ApprovedBySupervisor != incoming.ApprovedBySupervisor, permission.ApproveAsSupervisor)
		},
		Validate: func(o *JobOrder) error {
			return firstError(
				positive("vehicleId", o.VehicleID),
				nonNegative("mechanicId", o.MechanicID),
				required("task", o.Task),
			)
		},
	}
}

func JobOrderTable() order.Table[*JobOrder] {
	return order.Table[*JobOrder]{
		Name:    "job_orders",
		Columns: []string{"vehicle_id", "mechanic_id", "task", "approved_by_supervisor"},
		Values: func(o *JobOrder) []interface{} {
			return []interface{}{o.VehicleID, o.MechanicID, o.Task, o.ApprovedBySupervisor}
		},
		Fields: func(o *JobOrder) []interface{} {
			return []interface{}{&o.VehicleID, &o.MechanicID, &o.Task, &o.ApprovedBySupervisor}
		},
	}
}
