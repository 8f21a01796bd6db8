// Package order implements the Order Assembler (C3) and Order State Machine
// (C5): atomic cart-to-order conversion and the conditional-update
// transition function that drives Order.status.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"delixmi-order-core/internal/domain"
)

var ErrNotFound = errors.New("order: not found")

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("order: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// BranchSnapshot is the branch state the Assembler needs.
type BranchSnapshot struct {
	Branch         domain.Branch
	Restaurant     domain.Restaurant
	Schedule       []domain.BranchSchedule
}

func (r *Repository) LoadBranchForCart(ctx context.Context, tx pgx.Tx, restaurantID int64) (BranchSnapshot, error) {
	var snap BranchSnapshot
	err := tx.QueryRow(ctx, `
		select b.id, b.restaurant_id, b.latitude, b.longitude, b.uses_platform_drivers,
		       b.delivery_fee_base, b.estimated_delivery_min, b.estimated_delivery_max,
		       b.delivery_radius_km, b.status,
		       r.id, r.name, r.commission_rate, r.status
		from branches b
		join restaurants r on r.id = b.restaurant_id
		where b.restaurant_id = $1
		order by b.id
		limit 1
	`, restaurantID).Scan(
		&snap.Branch.ID, &snap.Branch.RestaurantID, &snap.Branch.Latitude, &snap.Branch.Longitude, &snap.Branch.UsesPlatformDrivers,
		&snap.Branch.DeliveryFeeBase, &snap.Branch.EstimatedDeliveryMin, &snap.Branch.EstimatedDeliveryMax,
		&snap.Branch.DeliveryRadiusKm, &snap.Branch.Status,
		&snap.Restaurant.ID, &snap.Restaurant.Name, &snap.Restaurant.CommissionRate, &snap.Restaurant.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BranchSnapshot{}, ErrNotFound
		}
		return BranchSnapshot{}, fmt.Errorf("order: load branch: %w", err)
	}

	rows, err := tx.Query(ctx, `
		select branch_id, day_of_week, opening_time, closing_time, is_closed
		from branch_schedules where branch_id = $1
	`, snap.Branch.ID)
	if err != nil {
		return BranchSnapshot{}, fmt.Errorf("order: load branch schedule: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s domain.BranchSchedule
		if err := rows.Scan(&s.BranchID, &s.DayOfWeek, &s.OpeningTime, &s.ClosingTime, &s.IsClosed); err != nil {
			return BranchSnapshot{}, fmt.Errorf("order: scan branch schedule: %w", err)
		}
		snap.Schedule = append(snap.Schedule, s)
	}
	return snap, nil
}

// CurrentProductPrice re-reads live price/availability/modifier-option
// deltas for a cart item's product, used by the Assembler's re-validation
// step (spec §4.3 step 3).
type CurrentProductPrice struct {
	IsAvailable  bool
	RestaurantID int64
	ProductName  string
	UnitPrice    decimal.Decimal
	OptionNames  map[int64]string
	OptionDeltas map[int64]decimal.Decimal
}

func (r *Repository) LoadCurrentPricing(ctx context.Context, tx pgx.Tx, productID int64, optionIDs []int64) (CurrentProductPrice, error) {
	var out CurrentProductPrice
	out.OptionNames = map[int64]string{}
	out.OptionDeltas = map[int64]decimal.Decimal{}

	err := tx.QueryRow(ctx, `select is_available, restaurant_id, name, price from products where id=$1`, productID).
		Scan(&out.IsAvailable, &out.RestaurantID, &out.ProductName, &out.UnitPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CurrentProductPrice{}, ErrNotFound
		}
		return CurrentProductPrice{}, fmt.Errorf("order: load current product: %w", err)
	}

	if len(optionIDs) == 0 {
		return out, nil
	}
	rows, err := tx.Query(ctx, `select id, name, price_delta from modifier_options where id = any($1)`, optionIDs)
	if err != nil {
		return CurrentProductPrice{}, fmt.Errorf("order: load current options: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var name string
		var delta decimal.Decimal
		if err := rows.Scan(&id, &name, &delta); err != nil {
			return CurrentProductPrice{}, fmt.Errorf("order: scan current option: %w", err)
		}
		out.OptionNames[id] = name
		out.OptionDeltas[id] = delta
	}
	return out, nil
}

// InsertOrder creates the Order row and returns its assigned ID.
func (r *Repository) InsertOrder(ctx context.Context, tx pgx.Tx, o *domain.Order) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		insert into orders (
			customer_id, branch_id, restaurant_id, address_id,
			subtotal, delivery_fee, service_fee, total,
			commission_rate_snapshot, platform_fee, restaurant_payout,
			payment_method, payment_status, status, special_instructions,
			external_reference, order_placed_at
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		returning id
	`,
		o.CustomerID, o.BranchID, o.RestaurantID, o.AddressID,
		o.Subtotal, o.DeliveryFee, o.ServiceFee, o.Total,
		o.CommissionRateSnapshot, o.PlatformFee, o.RestaurantPayout,
		o.PaymentMethod, o.PaymentStatus, o.Status, o.SpecialInstructions,
		o.ExternalReference, o.OrderPlacedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("order: insert order: %w", err)
	}
	return id, nil
}

func (r *Repository) InsertOrderItem(ctx context.Context, tx pgx.Tx, orderID int64, item domain.OrderItem) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		insert into order_items (order_id, product_id, product_name, quantity, price_per_unit)
		values ($1,$2,$3,$4,$5) returning id
	`, orderID, item.ProductID, item.ProductName, item.Quantity, item.PricePerUnit).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("order: insert order item: %w", err)
	}
	for _, mod := range item.Modifiers {
		if _, err := tx.Exec(ctx, `
			insert into order_item_modifiers (order_item_id, modifier_option_id, option_name, price_delta)
			values ($1,$2,$3,$4)
		`, id, mod.ModifierOptionID, mod.OptionName, mod.PriceDelta); err != nil {
			return 0, fmt.Errorf("order: insert order item modifier: %w", err)
		}
	}
	return id, nil
}

// cashPseudoID generates the "cash_{order_id}_{monotonic}" pseudo provider
// id spec §4.3 step 8 specifies for the cash path.
func cashPseudoID(orderID int64) string {
	return fmt.Sprintf("cash_%d_%d", orderID, time.Now().UnixNano())
}

func (r *Repository) InsertPayment(ctx context.Context, tx pgx.Tx, orderID int64, amount decimal.Decimal, method domain.PaymentMethod) (int64, error) {
	var providerPaymentID *string
	if method == domain.PaymentMethodCash {
		id := cashPseudoID(orderID)
		providerPaymentID = &id
	}
	var id int64
	err := tx.QueryRow(ctx, `
		insert into payments (order_id, amount, provider, provider_payment_id, status)
		values ($1,$2,$3,$4,$5) returning id
	`, orderID, amount, method, providerPaymentID, domain.PaymentStatusPending).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("order: insert payment: %w", err)
	}
	return id, nil
}

// LoadAddress loads a delivery address, used by the checkout handler to
// both geocode the destination and verify ownership before PlaceOrder runs.
func (r *Repository) LoadAddress(ctx context.Context, addressID int64) (domain.Address, error) {
	var a domain.Address
	err := r.db.QueryRow(ctx, `
		select id, user_id, latitude, longitude, line1, line2, city
		from addresses where id = $1
	`, addressID).Scan(&a.ID, &a.UserID, &a.Latitude, &a.Longitude, &a.Line1, &a.Line2, &a.City)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Address{}, ErrNotFound
		}
		return domain.Address{}, fmt.Errorf("order: load address: %w", err)
	}
	return a, nil
}

// GetByID loads an order (without items) by id.
func (r *Repository) GetByID(ctx context.Context, orderID int64) (domain.Order, error) {
	var o domain.Order
	var driverID *int64
	var deliveredAt *time.Time
	err := r.db.QueryRow(ctx, `
		select id, customer_id, branch_id, restaurant_id, address_id,
		       subtotal, delivery_fee, service_fee, total,
		       commission_rate_snapshot, platform_fee, restaurant_payout,
		       payment_method, payment_status, status, delivery_driver_id,
		       external_reference, order_placed_at, order_delivered_at
		from orders where id = $1
	`, orderID).Scan(
		&o.ID, &o.CustomerID, &o.BranchID, &o.RestaurantID, &o.AddressID,
		&o.Subtotal, &o.DeliveryFee, &o.ServiceFee, &o.Total,
		&o.CommissionRateSnapshot, &o.PlatformFee, &o.RestaurantPayout,
		&o.PaymentMethod, &o.PaymentStatus, &o.Status, &driverID,
		&o.ExternalReference, &o.OrderPlacedAt, &deliveredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("order: get by id: %w", err)
	}
	o.DeliveryDriverID = driverID
	o.OrderDeliveredAt = deliveredAt
	return o, nil
}

// TransitionStatus implements the conditional-update pattern spec §4.5
// mandates: "UPDATE WHERE id=? AND status=<expected from>". Returns
// ErrStale when no row matched (another actor/event beat this caller).
var ErrStale = errors.New("order: stale state")

func (r *Repository) TransitionStatus(ctx context.Context, orderID int64, from, to domain.OrderStatus) error {
	tag, err := r.db.Exec(ctx, `
		update orders set status = $3 where id = $1 and status = $2
	`, orderID, from, to)
	if err != nil {
		return fmt.Errorf("order: transition status: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrStale
	}
	return nil
}

// MarkDeliveredByDriver sets order_delivered_at alongside the out_for_delivery ->
// delivered transition, conditioned on the assigned driver matching.
func (r *Repository) MarkDeliveredByDriver(ctx context.Context, orderID, driverID int64) error {
	tag, err := r.db.Exec(ctx, `
		update orders set status = $4, order_delivered_at = now()
		where id = $1 and delivery_driver_id = $2 and status = $3
	`, orderID, driverID, domain.OrderStatusOutForDelivery, domain.OrderStatusDelivered)
	if err != nil {
		return fmt.Errorf("order: mark delivered: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrStale
	}
	return nil
}

// SetPaymentStatusOnApproval implements the approved-webhook leg of C4: set
// payment+order payment_status=completed, transitioning pending->confirmed
// when the order is still pending. Idempotent: once the order's
// payment_status is completed, a replay is a no-op success that reports
// changed=false (spec §4.4's webhook-idempotence law).
func (r *Repository) SetPaymentStatusOnApproval(ctx context.Context, orderID int64) (changed bool, err error) {
	err = r.WithTx(ctx, func(tx pgx.Tx) error {
		var currentStatus domain.OrderStatus
		var currentPaymentStatus domain.PaymentStatus
		if err := tx.QueryRow(ctx, `select status, payment_status from orders where id=$1 for update`, orderID).
			Scan(&currentStatus, &currentPaymentStatus); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("order: lock order: %w", err)
		}
		if currentPaymentStatus == domain.PaymentStatusCompleted {
			changed = false
			return nil
		}
		if _, err := tx.Exec(ctx, `update payments set status=$2 where order_id=$1`, orderID, domain.PaymentStatusCompleted); err != nil {
			return fmt.Errorf("order: update payment: %w", err)
		}
		if currentStatus == domain.OrderStatusPending {
			tag, err := tx.Exec(ctx, `
				update orders set payment_status=$2, status=$3 where id=$1 and status=$4
			`, orderID, domain.PaymentStatusCompleted, domain.OrderStatusConfirmed, domain.OrderStatusPending)
			if err != nil {
				return fmt.Errorf("order: update order on approval: %w", err)
			}
			changed = tag.RowsAffected() == 1
			return nil
		}
		if _, err := tx.Exec(ctx, `update orders set payment_status=$2 where id=$1`, orderID, domain.PaymentStatusCompleted); err != nil {
			return fmt.Errorf("order: update order payment status: %w", err)
		}
		changed = true
		return nil
	})
	return changed, err
}

// SetPaymentStatusOnRejection implements the rejected-webhook leg of C4.
func (r *Repository) SetPaymentStatusOnRejection(ctx context.Context, orderID int64) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `update payments set status=$2 where order_id=$1`, orderID, domain.PaymentStatusFailed); err != nil {
			return fmt.Errorf("order: reject payment: %w", err)
		}
		tag, err := tx.Exec(ctx, `
			update orders set payment_status=$2, status=$3 where id=$1 and status=$4
		`, orderID, domain.PaymentStatusFailed, domain.OrderStatusCancelled, domain.OrderStatusPending)
		if err != nil {
			return fmt.Errorf("order: reject order: %w", err)
		}
		_ = tag
		return nil
	})
}

// SetCashDelivered completes the cash-payment path alongside a delivered
// transition (spec §4.5: "On entering delivered for cash orders, also set
// payment.status=completed").
func (r *Repository) SetCashDelivered(ctx context.Context, orderID int64) error {
	_, err := r.db.Exec(ctx, `update payments set status=$2 where order_id=$1`, orderID, domain.PaymentStatusCompleted)
	if err != nil {
		return fmt.Errorf("order: set cash delivered payment: %w", err)
	}
	_, err = r.db.Exec(ctx, `update orders set payment_status=$2 where id=$1`, orderID, domain.PaymentStatusCompleted)
	if err != nil {
		return fmt.Errorf("order: set cash delivered order: %w", err)
	}
	return nil
}

func (r *Repository) SetPaymentFailed(ctx context.Context, orderID int64) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `update payments set status=$2 where order_id=$1`, orderID, domain.PaymentStatusFailed); err != nil {
			return fmt.Errorf("order: set payment failed: %w", err)
		}
		if _, err := tx.Exec(ctx, `update orders set payment_status=$2 where id=$1`, orderID, domain.PaymentStatusFailed); err != nil {
			return fmt.Errorf("order: set order payment failed: %w", err)
		}
		return nil
	})
}

func (r *Repository) SetPreferenceID(ctx context.Context, orderID int64, intentID string) error {
	_, err := r.db.Exec(ctx, `update payments set provider_payment_id=$2 where order_id=$1`, orderID, intentID)
	if err != nil {
		return fmt.Errorf("order: set preference id: %w", err)
	}
	return nil
}

func (r *Repository) FindOrderIDByExternalReference(ctx context.Context, ref uuid.UUID) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `select id from orders where external_reference=$1`, ref).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("order: find by external reference: %w", err)
	}
	return id, nil
}
