package orders

import (
	"time"

	"fleet-workflow/internal/application"
	"fleet-workflow/internal/order"
	"fleet-workflow/internal/permission"
)

// Mission sends a vehicle and its driver to a destination.
type Mission struct {
	order.Base
	VehicleID            int64     `json:"vehicleId"`
	DriverID             int64     `json:"driverId"`
	Destination          string    `json:"destination"`
	Departure            time.Time `json:"departure"`
	ApprovedBySupervisor bool      `json:"approvedBySupervisor"`
}

func MissionFamily() order.Family[*Mission] {
	return order.Family[*Mission]{
		Name:        string(application.TypeMission),
		AppType:     application.TypeMission,
		ManageCaps:  []permission.Capability{permission.ManipulateMissions},
		ApproveCaps: []permission.Capability{permission.ApproveApplications},
		New:         func() *Mission { return &Mission{} },
		Clone: func(o *Mission) *Mission {
			c := *o
			c.App = o.App.Clone()
			return &c
		},
		ApplyUpdate: func(dst, src *Mission) {
			dst.VehicleID = src.VehicleID
			dst.DriverID = src.DriverID
			dst.Destination = src.Destination
			dst.Departure = src.Departure
			dst.ApprovedBySupervisor = src.ApprovedBySupervisor
		},
		FlagCaps: func(existing, incoming *Mission) []permission.Capability {
			return flagged(nil, existing.ApprovedBySupervisor != incoming.ApprovedBySupervisor, permission.ApproveAsSupervisor)
		},
		Validate: func(o *Mission) error {
			return firstError(
				positive("vehicleId", o.VehicleID),
				positive("driverId", o.DriverID),
				required("destination", o.Destination),
				notZeroTime("departure", o.Departure),
			)
		},
	}
}

func MissionTable() order.Table[*Mission] {
	return order.Table[*Mission]{
		Name:    "missions",
		Columns: []string{"vehicle_id", "driver_id", "destination", "departure", "approved_by_supervisor"},
		Values: func(o *Mission) []interface{} {
			return []interface{}{o.VehicleID, o.DriverID, o.Destination, o.Departure.UTC(), o.ApprovedBySupervisor}
		},
		Fields: func(o *Mission) []interface{} {
			return []interface{}{&o.VehicleID, &o.DriverID, &o.Destination, &o.Departure, &o.ApprovedBySupervisor}
		},
	}
}
