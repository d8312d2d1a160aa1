package orders

import (
	"time"

	"fleet-workflow/internal/application"
	"fleet-workflow/internal/order"
	"fleet-workflow/internal/permission"
)

// Maintenance schedules preventive or corrective work on a vehicle. It needs both the
// supervisor and the manager flag.
type Maintenance struct {
	order.Base
	VehicleID            int64     `json:"vehicleId"`
	Kind                 string    `json:"kind"`
	ScheduledFor         time.Time `json:"scheduledFor"`
	ApprovedBySupervisor bool      `json:"approvedBySupervisor"`
	ApprovedByManager    bool      `json:"approvedByManager"`
}

func MaintenanceFamily() order.Family[*Maintenance] {
	return order.Family[*Maintenance]{
		Name:        string(application.TypeMaintenance),
		AppType:     application.TypeMaintenance,
		ManageCaps:  []permission.Capability{permission.ManipulateMaintenance},
		ApproveCaps: []permission.Capability{permission.ApproveApplications},
		New:         func() *Maintenance { return &Maintenance{} },
		Clone: func(o *Maintenance) *Maintenance {
			c := *o
			c.App = o.App.Clone()
			return &c
		},
		ApplyUpdate: func(dst, src *Maintenance) {
			dst.VehicleID = src.VehicleID
			dst.Kind = src.Kind
			dst.ScheduledFor = src.ScheduledFor
			dst.ApprovedBySupervisor = src.ApprovedBySupervisor
			dst.ApprovedByManager = src.ApprovedByManager
		},
		FlagCaps: func(existing, incoming *Maintenance) []permission.Capability {
			caps := flagged(nil, existing.ApprovedBySupervisor != incoming.ApprovedBySupervisor, permission.ApproveAsSupervisor)
			return flagged(caps, existing.ApprovedByManager != incoming.ApprovedByManager, permission.ApproveAsManager)
		},
		Validate: func(o *Maintenance) error {
			return firstError(
				positive("vehicleId", o.VehicleID),
				required("kind", o.Kind),
				notZeroTime("scheduledFor", o.ScheduledFor),
			)
		},
	}
}

func MaintenanceTable() order.Table[*Maintenance] {
	return order.Table[*Maintenance]{
		Name:    "maintenance_orders",
		Columns: []string{"vehicle_id", "kind", "scheduled_for", "approved_by_supervisor", "approved_by_manager"},
		Values: func(o *Maintenance) []interface{} {
			return []interface{}{o.VehicleID, o.Kind, o.ScheduledFor.UTC(), o.ApprovedBySupervisor, o.ApprovedByManager}
		},
		Fields: func(o *Maintenance) []interface{} {
			return []interface{}{&o.VehicleID, &o.Kind, &o.ScheduledFor, &o.ApprovedBySupervisor, &o.ApprovedByManager}
		},
	}
}
