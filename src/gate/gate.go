package gate

import "pups/src/types"

// Principal is the authenticated caller, established by the auth
// middleware and passed explicitly into every privileged operation.
type Principal struct {
	UserID uint
	Role   types.Role
}

type Action string

const (
	ActionCancelReservation Action = "reservation:cancel"
	ActionViewReservation   Action = "reservation:view"
	ActionMarkSold          Action = "listing:mark_sold"
	ActionManageCatalog     Action = "listing:manage"
	ActionRunSweep          Action = "sweep:run"
)

// Resource identifies what the action targets. OwnerID is the user the
// targeted reservation belongs to, zero when ownership does not apply.
type Resource struct {
	OwnerID uint
}

// Gate is the capability check the reservation core consults before any
// privileged mutation. How identity is established is the caller's
// problem; the core only sees the boolean.
type Gate interface {
	Authorize(p Principal, action Action, res Resource) bool
}

// RoleGate is the default Gate: admins may do everything, customers may
// only cancel and view their own reservations.
type RoleGate struct{}

func NewRoleGate() RoleGate {
	return RoleGate{}
}

func (RoleGate) Authorize(p Principal, action Action, res Resource) bool {
	if p.Role == types.ROLE_ADMIN {
		return true
	}
	switch action {
	case ActionCancelReservation, ActionViewReservation:
		return p.UserID != 0 && p.UserID == res.OwnerID
	}
	return false
}
