// Package authz implements the Authorization Evaluator (C8): a single
// (principal, operation, target) -> allow/deny contract every handler calls
// exactly once, replacing the host codebase's per-route ad-hoc role checks
// (spec §9).
package authz

import (
	"delixmi-order-core/internal/auth"
	"delixmi-order-core/internal/domain"
)

// Operation tags the action being attempted. Handlers pass one of these
// constants; C8 never infers intent from a route path.
type Operation string

const (
	OpCartRead      Operation = "cart:read"
	OpCartMutate    Operation = "cart:mutate"
	OpOrderPlace    Operation = "order:place"
	OpOrderRead     Operation = "order:read"
	OpOrderCancel   Operation = "order:cancel"
	OpOrderTransition Operation = "order:transition"
	OpOrderClaim    Operation = "order:claim"
	OpOrderComplete Operation = "order:complete"
	OpDriverProfile Operation = "driver:profile"
	OpAddressManage Operation = "address:manage"
)

// Target describes the entity an operation is attempted against. Zero
// values mean "not applicable to this operation" (e.g. BranchID is unset
// for a cart operation).
type Target struct {
	RestaurantID     int64
	BranchID         int64
	OwnerUserID      int64 // cart.user_id / order.customer_id for self-scoped checks
	OrderFromStatus  domain.OrderStatus
	OrderToStatus    domain.OrderStatus
	AssignedDriverID int64
}

// transitionRoles mirrors spec §4.5's transition table: which roles may
// trigger each (from, to) pair, independent of the "system" trigger which
// the Payment Coordinator and Dispatch Engine invoke directly rather than
// through a principal-gated HTTP call.
var transitionRoles = map[domain.OrderStatus]map[domain.OrderStatus][]domain.Role{
	domain.OrderStatusPending: {
		domain.OrderStatusConfirmed: {domain.RoleOwner, domain.RoleBranchManager},
		domain.OrderStatusCancelled: {domain.RoleCustomer},
	},
	domain.OrderStatusConfirmed: {
		domain.OrderStatusPreparing: {domain.RoleKitchenStaff, domain.RoleOwner, domain.RoleBranchManager},
		domain.OrderStatusCancelled: {domain.RoleOwner, domain.RoleBranchManager},
	},
	domain.OrderStatusPreparing: {
		domain.OrderStatusReadyForPickup: {domain.RoleKitchenStaff, domain.RoleOwner, domain.RoleBranchManager},
		domain.OrderStatusCancelled:      {domain.RoleOwner, domain.RoleBranchManager},
	},
	domain.OrderStatusDelivered: {
		domain.OrderStatusRefunded: {domain.RoleSuperAdmin},
	},
}

// Evaluate is the single C8 contract. It returns true when the operation is
// permitted and false otherwise; callers map false to
// apperr.InsufficientPermissions.
func Evaluate(principal *auth.Claims, op Operation, target Target) bool {
	if principal == nil {
		return false
	}
	if principal.HasRole(domain.RoleSuperAdmin) {
		return true
	}

	switch op {
	case OpCartRead, OpCartMutate, OpOrderPlace, OpAddressManage:
		return principal.HasRole(domain.RoleCustomer) && principal.UserID == target.OwnerUserID

	case OpOrderRead:
		if principal.HasRole(domain.RoleCustomer) && principal.UserID == target.OwnerUserID {
			return true
		}
		return restaurantScoped(principal, target, domain.RoleOwner, domain.RoleBranchManager, domain.RoleOrderManager, domain.RoleKitchenStaff)

	case OpOrderCancel:
		if principal.HasRole(domain.RoleCustomer) && principal.UserID == target.OwnerUserID {
			return target.OrderFromStatus == domain.OrderStatusPending
		}
		return restaurantScoped(principal, target, domain.RoleOwner, domain.RoleBranchManager)

	case OpOrderTransition:
		allowedRoles := transitionRoles[target.OrderFromStatus][target.OrderToStatus]
		if len(allowedRoles) == 0 {
			return false
		}
		for _, role := range allowedRoles {
			if role == domain.RoleSuperAdmin {
				continue // already short-circuited above
			}
			if restaurantScoped(principal, target, role) {
				return true
			}
		}
		return false

	case OpOrderClaim, OpOrderComplete:
		return principal.HasRole(domain.RoleDriverPlatform) || principal.HasRole(domain.RoleDriverRestaurant)

	case OpDriverProfile:
		return principal.HasRole(domain.RoleDriverPlatform) || principal.HasRole(domain.RoleDriverRestaurant)
	}

	return false
}

// restaurantScoped reports whether principal holds any of roles bound to
// target.RestaurantID, with BranchID either unbound (restaurant-wide) or
// matching target.BranchID — the scope rule spec §4.8 assigns to
// branch_manager/order_manager/kitchen_staff.
func restaurantScoped(principal *auth.Claims, target Target, roles ...domain.Role) bool {
	for _, role := range roles {
		for _, binding := range principal.BindingsFor(role) {
			if binding.RestaurantID == nil || *binding.RestaurantID != target.RestaurantID {
				continue
			}
			if binding.BranchID == nil || *binding.BranchID == target.BranchID {
				return true
			}
		}
	}
	return false
}

// EligibleCourier reports whether principal (assumed to already hold a
// driver role) is bound to the given restaurant for driver_restaurant
// scope; platform drivers have no restaurant binding requirement here —
// their eligibility is geospatial and checked by internal/dispatch, not C8.
func EligibleCourier(principal *auth.Claims, restaurantID int64) bool {
	if principal.HasRole(domain.RoleDriverPlatform) {
		return true
	}
	for _, binding := range principal.BindingsFor(domain.RoleDriverRestaurant) {
		if binding.RestaurantID != nil && *binding.RestaurantID == restaurantID {
			return true
		}
	}
	return false
}
