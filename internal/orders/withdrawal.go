package orders

import (
	"fleet-workflow/internal/application"
	"fleet-workflow/internal/order"
	"fleet-workflow/internal/permission"
)

// Withdrawal takes consumables or spare parts out of the warehouse, optionally for a vehicle.
type Withdrawal struct {
	order.Base
	Item                 string `json:"item"`
	Quantity             int    `json:"quantity"`
	VehicleID            int64  `json:"vehicleId,omitempty"`
	ApprovedBySupervisor bool   `json:"approvedBySupervisor"`
}

func WithdrawalFamily() order.Family[*Withdrawal] {
	return order.Family[*Withdrawal]{
		Name:        string(application.TypeWithdrawal),
		AppType:     application.TypeWithdrawal,
		ManageCaps:  []permission.Capability{permission.ManipulateWithdrawals},
		ApproveCaps: []permission.Capability{permission.ApproveApplications},
		New:         func() *Withdrawal { return &Withdrawal{} },
		Clone: func(o *Withdrawal) *Withdrawal {
			c := *o
			c.App = o.App.Clone()
			return &c
		},
		ApplyUpdate: func(dst, src *Withdrawal) {
			dst.Item = src.Item
			dst.Quantity = src.Quantity
			dst.VehicleID = src.VehicleID
			dst.ApprovedBySupervisor = src.ApprovedBySupervisor
		},
		FlagCaps: func(existing, incoming *Withdrawal) []permission.Capability {
			return flagged(nil, existing.ApprovedBySupervisor != incoming.ApprovedBySupervisor, permission.ApproveAsSupervisor)
		},
		Validate: func(o *Withdrawal) error {
			return firstError(
				required("item", o.Item),
				positive("quantity", int64(o.Quantity)),
				nonNegative("vehicleId", o.VehicleID),
			)
		},
	}
}

func WithdrawalTable() order.Table[*Withdrawal] {
	return order.Table[*Withdrawal]{
		Name:    "withdrawal_orders",
		Columns: []string{"item", "quantity", "vehicle_id", "approved_by_supervisor"},
		Values: func(o *Withdrawal) []interface{} {
			return []interface{}{o.Item, o.Quantity, o.VehicleID, o.ApprovedBySupervisor}
		},
		Fields: func(o *Withdrawal) []interface{} {
			return []interface{}{&o.Item, &o.Quantity, &o.VehicleID, &o.ApprovedBySupervisor}
		},
	}
}
