// Package dispatch implements the Dispatch/Claim Engine (C6): on-demand
// eligibility computation, first-claim-wins atomic claiming, and the
// delivered-by-driver completion check.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"delixmi-order-core/internal/domain"
)

var ErrNotFound = errors.New("dispatch: not found")

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// OrderSnapshot is the order state Announce needs to build the
// AVAILABLE_ORDER payload: pickup point, drop point, totals.
type OrderSnapshot struct {
	Order         domain.Order
	Branch        domain.Branch
	DropLatitude  float64
	DropLongitude float64
}

func (r *Repository) LoadOrderSnapshot(ctx context.Context, orderID int64) (OrderSnapshot, error) {
	var snap OrderSnapshot
	err := r.db.QueryRow(ctx, `
		select o.id, o.customer_id, o.branch_id, o.restaurant_id, o.address_id,
		       o.subtotal, o.delivery_fee, o.service_fee, o.total,
		       o.payment_method, o.payment_status, o.status, o.delivery_driver_id,
		       o.external_reference, o.order_placed_at,
		       b.id, b.restaurant_id, b.latitude, b.longitude, b.uses_platform_drivers, b.status,
		       a.latitude, a.longitude
		from orders o
		join branches b on b.id = o.branch_id
		join addresses a on a.id = o.address_id
		where o.id = $1
	`, orderID).Scan(
		&snap.Order.ID, &snap.Order.CustomerID, &snap.Order.BranchID, &snap.Order.RestaurantID, &snap.Order.AddressID,
		&snap.Order.Subtotal, &snap.Order.DeliveryFee, &snap.Order.ServiceFee, &snap.Order.Total,
		&snap.Order.PaymentMethod, &snap.Order.PaymentStatus, &snap.Order.Status, &snap.Order.DeliveryDriverID,
		&snap.Order.ExternalReference, &snap.Order.OrderPlacedAt,
		&snap.Branch.ID, &snap.Branch.RestaurantID, &snap.Branch.Latitude, &snap.Branch.Longitude, &snap.Branch.UsesPlatformDrivers, &snap.Branch.Status,
		&snap.DropLatitude, &snap.DropLongitude,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OrderSnapshot{}, ErrNotFound
		}
		return OrderSnapshot{}, fmt.Errorf("dispatch: load order snapshot: %w", err)
	}
	return snap, nil
}

// EligibleDriver is one member of E(order) per spec §4.6.
type EligibleDriver struct {
	UserID    int64
	Latitude  float64
	Longitude float64
}

// PlatformDriversOnline returns every online driver_platform-role user,
// regardless of distance — the caller filters by Haversine radius, since
// that filter is pure in-process logic, not something worth pushing into
// SQL for a set this small.
func (r *Repository) PlatformDriversOnline(ctx context.Context) ([]EligibleDriver, error) {
	rows, err := r.db.Query(ctx, `
		select dp.user_id, dp.latitude, dp.longitude
		from driver_profiles dp
		join role_assignments ra on ra.user_id = dp.user_id and ra.role = $1
		where dp.status = $2
	`, domain.RoleDriverPlatform, domain.DriverOnline)
	if err != nil {
		return nil, fmt.Errorf("dispatch: load platform drivers: %w", err)
	}
	defer rows.Close()

	var out []EligibleDriver
	for rows.Next() {
		var d EligibleDriver
		if err := rows.Scan(&d.UserID, &d.Latitude, &d.Longitude); err != nil {
			return nil, fmt.Errorf("dispatch: scan platform driver: %w", err)
		}
		out = append(out, d)
	}
	return out, nil
}

// RestaurantDriversOnline returns every online driver_restaurant-role user
// bound to restaurantID.
func (r *Repository) RestaurantDriversOnline(ctx context.Context, restaurantID int64) ([]EligibleDriver, error) {
	rows, err := r.db.Query(ctx, `
		select dp.user_id, dp.latitude, dp.longitude
		from driver_profiles dp
		join role_assignments ra on ra.user_id = dp.user_id and ra.role = $1
		where dp.status = $2 and ra.restaurant_id = $3
	`, domain.RoleDriverRestaurant, domain.DriverOnline, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("dispatch: load restaurant drivers: %w", err)
	}
	defer rows.Close()

	var out []EligibleDriver
	for rows.Next() {
		var d EligibleDriver
		if err := rows.Scan(&d.UserID, &d.Latitude, &d.Longitude); err != nil {
			return nil, fmt.Errorf("dispatch: scan restaurant driver: %w", err)
		}
		out = append(out, d)
	}
	return out, nil
}

// ListReadyForPickup returns every unclaimed ready_for_pickup order,
// restricted to restaurantID when non-nil — used by the driver-facing pull
// endpoint (GET /driver/orders/available), which needs the same snapshot
// shape Announce already builds from LoadOrderSnapshot.
func (r *Repository) ListReadyForPickup(ctx context.Context, restaurantID *int64) ([]OrderSnapshot, error) {
	query := `
		select o.id, o.customer_id, o.branch_id, o.restaurant_id, o.address_id,
		       o.subtotal, o.delivery_fee, o.service_fee, o.total,
		       o.payment_method, o.payment_status, o.status, o.delivery_driver_id,
		       o.external_reference, o.order_placed_at,
		       b.id, b.restaurant_id, b.latitude, b.longitude, b.uses_platform_drivers, b.status,
		       a.latitude, a.longitude
		from orders o
		join branches b on b.id = o.branch_id
		join addresses a on a.id = o.address_id
		where o.status = $1 and o.delivery_driver_id is null
	`
	args := []any{domain.OrderStatusReadyForPickup}
	if restaurantID != nil {
		query += " and o.restaurant_id = $2"
		args = append(args, *restaurantID)
	}
	query += " order by o.order_placed_at asc"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dispatch: list ready for pickup: %w", err)
	}
	defer rows.Close()

	var out []OrderSnapshot
	for rows.Next() {
		var snap OrderSnapshot
		if err := rows.Scan(
			&snap.Order.ID, &snap.Order.CustomerID, &snap.Order.BranchID, &snap.Order.RestaurantID, &snap.Order.AddressID,
			&snap.Order.Subtotal, &snap.Order.DeliveryFee, &snap.Order.ServiceFee, &snap.Order.Total,
			&snap.Order.PaymentMethod, &snap.Order.PaymentStatus, &snap.Order.Status, &snap.Order.DeliveryDriverID,
			&snap.Order.ExternalReference, &snap.Order.OrderPlacedAt,
			&snap.Branch.ID, &snap.Branch.RestaurantID, &snap.Branch.Latitude, &snap.Branch.Longitude, &snap.Branch.UsesPlatformDrivers, &snap.Branch.Status,
			&snap.DropLatitude, &snap.DropLongitude,
		); err != nil {
			return nil, fmt.Errorf("dispatch: scan ready for pickup: %w", err)
		}
		out = append(out, snap)
	}
	return out, nil
}

// DriverLocation loads a single driver's last-known coordinates, used to
// test platform-radius eligibility for the pull listing endpoint.
func (r *Repository) DriverLocation(ctx context.Context, driverID int64) (lat, lon float64, err error) {
	err = r.db.QueryRow(ctx, `select latitude, longitude from driver_profiles where user_id=$1`, driverID).Scan(&lat, &lon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrNotFound
		}
		return 0, 0, fmt.Errorf("dispatch: load driver location: %w", err)
	}
	return lat, lon, nil
}

// ErrAlreadyTaken / ErrNotAssigned signal the conditional-update outcomes
// the caller maps to apperr.OrderAlreadyTaken / apperr.NotAssigned.
var (
	ErrAlreadyTaken = errors.New("dispatch: order already taken")
	ErrNotAssigned  = errors.New("dispatch: driver not assigned")
)

// Claim implements the first-claim-wins atomic update of spec §4.6: set
// delivery_driver_id + status=out_for_delivery WHERE status=ready_for_pickup
// AND delivery_driver_id IS NULL. Eligibility is verified by the caller
// before this call (restaurant-bound or Haversine-bound), not encoded in
// SQL — the eligible set per order is small and already materialized.
func (r *Repository) Claim(ctx context.Context, orderID, driverID int64) error {
	tag, err := r.db.Exec(ctx, `
		update orders
		set delivery_driver_id = $2, status = $3
		where id = $1 and status = $4 and delivery_driver_id is null
	`, orderID, driverID, domain.OrderStatusOutForDelivery, domain.OrderStatusReadyForPickup)
	if err != nil {
		return fmt.Errorf("dispatch: claim: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrAlreadyTaken
	}
	return nil
}

// Complete implements mark_delivered's conditional update WHERE
// delivery_driver_id=driver.id AND status=out_for_delivery.
func (r *Repository) Complete(ctx context.Context, orderID, driverID int64) error {
	tag, err := r.db.Exec(ctx, `
		update orders set status = $4, order_delivered_at = now()
		where id = $1 and delivery_driver_id = $2 and status = $3
	`, orderID, driverID, domain.OrderStatusOutForDelivery, domain.OrderStatusDelivered)
	if err != nil {
		return fmt.Errorf("dispatch: complete: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrNotAssigned
	}
	return nil
}

// SetCashDeliveredIfNeeded mirrors order.Repository.SetCashDelivered; kept
// here too so dispatch doesn't need to import the order package for the one
// side-effect spec §4.5 assigns to the delivered transition's cash leg.
func (r *Repository) SetCashDeliveredIfNeeded(ctx context.Context, orderID int64, method domain.PaymentMethod) error {
	if method != domain.PaymentMethodCash {
		return nil
	}
	if _, err := r.db.Exec(ctx, `update payments set status=$2 where order_id=$1`, orderID, domain.PaymentStatusCompleted); err != nil {
		return fmt.Errorf("dispatch: set cash payment completed: %w", err)
	}
	if _, err := r.db.Exec(ctx, `update orders set payment_status=$2 where id=$1`, orderID, domain.PaymentStatusCompleted); err != nil {
		return fmt.Errorf("dispatch: set cash order payment status: %w", err)
	}
	return nil
}

func (r *Repository) SetDriverStatus(ctx context.Context, driverID int64, status domain.DriverStatus) error {
	_, err := r.db.Exec(ctx, `update driver_profiles set status=$2 where user_id=$1`, driverID, status)
	if err != nil {
		return fmt.Errorf("dispatch: set driver status: %w", err)
	}
	return nil
}

func (r *Repository) UpdateDriverLocation(ctx context.Context, driverID int64, lat, lon float64) error {
	_, err := r.db.Exec(ctx, `
		update driver_profiles set latitude=$2, longitude=$3, last_seen_at=now() where user_id=$1
	`, driverID, lat, lon)
	if err != nil {
		return fmt.Errorf("dispatch: update driver location: %w", err)
	}
	return nil
}
