// Package orders defines the five order families of the transport department and binds
// each to an order.Coordinator.
package orders

import (
	"fleet-workflow/internal/application"
	"fleet-workflow/internal/order"
	"fleet-workflow/internal/permission"
)

// Purchase is a request to buy consumables or spare parts.
type Purchase struct {
	order.Base
	Item              string `json:"item"`
	Quantity          int    `json:"quantity"`
	UnitPrice         int64  `json:"unitPrice"` // minor currency units
	Supplier          string `json:"supplier"`
	ApprovedByManager bool   `json:"approvedByManager"`
}

func PurchaseFamily() order.Family[*Purchase] {
	return order.Family[*Purchase]{
		Name:        string(application.TypePurchase),
		AppType:     application.TypePurchase,
		ManageCaps:  []permission.Capability{permission.ManipulatePurchases},
		ApproveCaps: []permission.Capability{permission.ApproveApplications},
		New:         func() *Purchase { return &Purchase{} },
		Clone: func(o *Purchase) *Purchase {
			c := *o
			c.App = o.App.Clone()
			return &c
		},
		ApplyUpdate: func(dst, src *Purchase) {
			dst.Item = src.Item
			dst.Quantity = src.Quantity
			dst.UnitPrice = src.UnitPrice
			dst.Supplier = src.Supplier
			dst.ApprovedByManager = src.ApprovedByManager
		},
		FlagCaps: func(existing, incoming *Purchase) []permission.Capability {
			return flagged(nil, existing.ApprovedByManager != incoming.ApprovedByManager, permission.ApproveAsManager)
		},
		Validate: func(o *Purchase) error {
			return firstError(
				required("item", o.Item),
				positive("quantity", int64(o.Quantity)),
				nonNegative("unitPrice", o.UnitPrice),
			)
		},
	}
}

func PurchaseTable() order.Table[*Purchase] {
	return order.Table[*Purchase]{
		Name:    "purchase_orders",
		Columns: []string{"item", "quantity", "unit_price", "supplier", "approved_by_manager"},
		Values: func(o *Purchase) []interface{} {
			return []interface{}{o.Item, o.Quantity, o.UnitPrice, o.Supplier, o.ApprovedByManager}
		},
		Fields: func(o *Purchase) []interface{} {
			return []interface{}{&o.Item, &o.Quantity, &o.UnitPrice, &o.Supplier, &o.ApprovedByManager}
		},
	}
}
