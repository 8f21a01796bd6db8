// Package domain contains the core business entities for the order-lifecycle
// core. These models are database-agnostic plain structs; persistence lives
// in the sibling cart/order/payment/dispatch packages.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RestaurantStatus is the lifecycle state of a Restaurant.
type RestaurantStatus string

const (
	RestaurantActive    RestaurantStatus = "active"
	RestaurantInactive  RestaurantStatus = "inactive"
	RestaurantSuspended RestaurantStatus = "suspended"
)

// Restaurant is the top-level merchant entity. CommissionRate is a percent
// in [0,100], snapshotted into every Order placed against one of its
// branches so a later rate change never rewrites historical payouts.
type Restaurant struct {
	ID             int64
	Name           string
	CommissionRate decimal.Decimal
	Status         RestaurantStatus
}

// BranchStatus is the lifecycle state of a Branch.
type BranchStatus string

const (
	BranchActive   BranchStatus = "active"
	BranchInactive BranchStatus = "inactive"
)

// Branch is a physical outlet of a Restaurant.
type Branch struct {
	ID                   int64
	RestaurantID         int64
	Name                 string
	Latitude             float64
	Longitude            float64
	UsesPlatformDrivers  bool
	DeliveryFeeBase      decimal.Decimal
	EstimatedDeliveryMin int
	EstimatedDeliveryMax int
	DeliveryRadiusKm     decimal.Decimal
	Status               BranchStatus
}

// BranchSchedule is one of exactly 7 weekly records for a Branch, keyed by
// DayOfWeek in [0,6]. A record representing "24h open" stores OpeningTime=0
// and ClosingTime=86399 (23:59:59) with IsClosed=false.
type BranchSchedule struct {
	BranchID    int64
	DayOfWeek   int
	OpeningTime time.Duration // offset from midnight, compared against the current UTC time of day
	ClosingTime time.Duration
	IsClosed    bool
}

// Product belongs to exactly one Restaurant and one subcategory.
type Product struct {
	ID           int64
	RestaurantID int64
	SubcategoryID int64
	Name         string
	Price        decimal.Decimal
	IsAvailable  bool
}

// ModifierGroup belongs to one Restaurant; MinSelection <= MaxSelection.
type ModifierGroup struct {
	ID            int64
	RestaurantID  int64
	Name          string
	MinSelection  int
	MaxSelection  int
}

// ModifierOption is a priced choice within a ModifierGroup. DeletedAt is
// non-nil for soft-deleted options; rows are never hard-deleted once an
// OrderItemModifier references them (spec §9 open question #2).
type ModifierOption struct {
	ID              int64
	ModifierGroupID int64
	Name            string
	PriceDelta      decimal.Decimal
	DeletedAt       *time.Time
}

func (o ModifierOption) IsDeleted() bool { return o.DeletedAt != nil }

// ProductModifierGroup is the many-to-many join between Product and
// ModifierGroup.
type ProductModifierGroup struct {
	ProductID       int64
	ModifierGroupID int64
}

// Cart is one per (user, restaurant); enforced by a unique constraint.
type Cart struct {
	ID           int64
	UserID       int64
	RestaurantID int64
	Items        []CartItem
}

// CartItem is a line in a Cart. PriceAtAdd is computed once, at add time,
// per spec §3's invariant price_at_add = product.price + sum(option deltas).
type CartItem struct {
	ID         int64
	CartID     int64
	ProductID  int64
	Quantity   int
	PriceAtAdd decimal.Decimal
	Modifiers  []CartItemModifier
}

// CartItemModifier points at one selected ModifierOption for a CartItem.
type CartItemModifier struct {
	ID               int64
	CartItemID       int64
	ModifierOptionID int64
}

// Address belongs to one User.
type Address struct {
	ID        int64
	UserID    int64
	Latitude  float64
	Longitude float64
	Line1     string
	Line2     string
	City      string
}

// PaymentMethod is the customer-chosen settlement path for an Order.
type PaymentMethod string

const (
	PaymentMethodMercadoPago PaymentMethod = "mercadopago"
	PaymentMethodCash        PaymentMethod = "cash"
)

// PaymentStatus mirrors the Payment row's settlement state onto the Order.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// OrderStatus is the Order State Machine's state (spec §4.5).
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusConfirmed       OrderStatus = "confirmed"
	OrderStatusPreparing       OrderStatus = "preparing"
	OrderStatusReadyForPickup  OrderStatus = "ready_for_pickup"
	OrderStatusOutForDelivery  OrderStatus = "out_for_delivery"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRefunded        OrderStatus = "refunded"
)

// Order is immutable once settled except for Status, PaymentStatus,
// DeliveryDriverID, and OrderDeliveredAt.
type Order struct {
	ID                     int64
	CustomerID             int64
	BranchID               int64
	RestaurantID           int64
	AddressID              int64
	Subtotal               decimal.Decimal
	DeliveryFee            decimal.Decimal
	ServiceFee             decimal.Decimal
	Total                  decimal.Decimal
	CommissionRateSnapshot decimal.Decimal
	PlatformFee            decimal.Decimal
	RestaurantPayout       decimal.Decimal
	PaymentMethod          PaymentMethod
	PaymentStatus          PaymentStatus
	Status                 OrderStatus
	DeliveryDriverID       *int64
	SpecialInstructions    string
	ExternalReference      uuid.UUID
	OrderPlacedAt          time.Time
	OrderDeliveredAt       *time.Time
	Items                  []OrderItem
}

// OrderItem belongs to an Order; PricePerUnit is the final unit price
// including modifiers, frozen at assembly time.
type OrderItem struct {
	ID           int64
	OrderID      int64
	ProductID    int64
	ProductName  string
	Quantity     int
	PricePerUnit decimal.Decimal
	Modifiers    []OrderItemModifier
}

// OrderItemModifier is copied from CartItemModifier at assembly time.
type OrderItemModifier struct {
	ID                int64
	OrderItemID       int64
	ModifierOptionID  int64
	OptionName        string
	PriceDelta        decimal.Decimal
}

// Payment belongs to an Order 1:1, created alongside it at assembly time.
type Payment struct {
	ID                int64
	OrderID           int64
	Amount            decimal.Decimal
	Provider          PaymentMethod
	ProviderPaymentID *string
	Status            PaymentStatus
}

// Role is a named permission bundle; RoleAssignment scopes it to a
// restaurant and/or branch.
type Role string

const (
	RoleSuperAdmin       Role = "super_admin"
	RoleOwner            Role = "owner"
	RoleBranchManager    Role = "branch_manager"
	RoleOrderManager     Role = "order_manager"
	RoleKitchenStaff     Role = "kitchen_staff"
	RoleDriverPlatform   Role = "driver_platform"
	RoleDriverRestaurant Role = "driver_restaurant"
	RoleCustomer         Role = "customer"
)

// RoleAssignment binds a Role to a User, optionally scoped to a restaurant
// and/or branch. A nil RestaurantID means the binding is not tied to any
// restaurant (as for super_admin, customer or driver_platform); a nil
// BranchID on a restaurant-bound binding means restaurant-wide scope.
type RoleAssignment struct {
	ID           int64
	UserID       int64
	Role         Role
	RestaurantID *int64
	BranchID     *int64
}

// User is a platform account; RoleAssignments express everything it may do.
type User struct {
	ID       int64
	Name     string
	Email    string
	IsActive bool
}

// DriverStatus tracks a courier's current availability.
type DriverStatus string

const (
	DriverOnline      DriverStatus = "online"
	DriverOffline     DriverStatus = "offline"
	DriverBusy        DriverStatus = "busy"
	DriverUnavailable DriverStatus = "unavailable"
)

// KYCStatus tracks a courier's background-check state.
type KYCStatus string

const (
	KYCPending  KYCStatus = "pending"
	KYCApproved KYCStatus = "approved"
	KYCRejected KYCStatus = "rejected"
)

// DriverProfile is 1:1 with a User bound to a driver role.
type DriverProfile struct {
	UserID      int64
	VehicleType string
	LicensePlate string
	Status      DriverStatus
	Latitude    float64
	Longitude   float64
	LastSeenAt  time.Time
	KYCStatus   KYCStatus
}
