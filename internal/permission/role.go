package permission

import (
	"fmt"
	"strings"
)

// Role is one of the fixed operational roles of the transport department.
type Role string

const (
	RoleAdministrator       Role = "administrator"
	RoleGeneralSupervisor   Role = "general_supervisor"
	RoleHospitalManager     Role = "hospital_manager"
	RoleTransportSupervisor Role = "transport_supervisor"
	RoleWarehouseKeeper     Role = "warehouse_keeper"
	RoleMechanic            Role = "mechanic"
	RoleDriver              Role = "driver"
	RoleEmployee            Role = "employee"
)

// Roles lists every known role.
var Roles = []Role{
	RoleAdministrator,
	RoleGeneralSupervisor,
	RoleHospitalManager,
	RoleTransportSupervisor,
	RoleWarehouseKeeper,
	RoleMechanic,
	RoleDriver,
	RoleEmployee,
}

var defaultRights = map[Role]Set{
	RoleAdministrator: NewSet(All),
	RoleGeneralSupervisor: NewSet(
		ReadAll,
		ApproveApplications,
		ApproveAsSupervisor,
		ManipulatePurchases,
		ManipulateWithdrawals,
		ManipulateJobOrders,
		ManipulateMaintenance,
		ManipulateMissions,
	),
	RoleHospitalManager: NewSet(
		ReadAll,
		ApproveApplications,
		ApproveAsManager,
	),
	RoleTransportSupervisor: NewSet(
		ReadAll,
		ManipulateMissions,
		ManipulateJobOrders,
		ManipulateMaintenance,
	),
	RoleWarehouseKeeper: NewSet(
		ManipulatePurchases,
		ManipulateWithdrawals,
	),
	RoleMechanic: NewSet(
		ManipulateMaintenance,
		ManipulateWithdrawals,
	),
	RoleDriver: NewSet(
		ManipulateMissions,
	),
	RoleEmployee: NewSet(
		ManipulateJobOrders,
	),
}

// DeriveDefaultAccessRight returns the capability set a role is granted by default.
// Unmapped roles get None.
func DeriveDefaultAccessRight(role Role) Set {
	if s, ok := defaultRights[role]; ok {
		return s
	}
	return None
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := defaultRights[r]
	return ok
}

// ParseRole resolves a role name.
func ParseRole(name string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(name)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", name)
	}
	return r, nil
}

// Actor is the authenticated caller of a workflow operation with its computed rights.
type Actor struct {
	UserID int64
	Role   Role
	Rights Set
}

// Can is shorthand for HasAll on the actor's rights.
func (a Actor) Can(caps ...Capability) bool {
	return HasAll(a.Rights, caps...)
}
