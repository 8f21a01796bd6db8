package dispatch

import (
	"context"
	"fmt"

	"delixmi-order-core/internal/apperr"
	"delixmi-order-core/internal/domain"
)

const platformRadiusKm = 10

// EventPublisher is the C7 fan-out contract the engine uses to push
// AVAILABLE_ORDER / AVAILABLE_ORDER_WITHDRAWN / ORDER_CLAIMED.
type EventPublisher interface {
	PublishRestaurantEvent(restaurantID int64, eventType string, data any)
	PublishUserEvent(userID int64, eventType string, data any)
}

type Engine struct {
	repo   *Repository
	events EventPublisher
}

func NewEngine(repo *Repository, events EventPublisher) *Engine {
	return &Engine{repo: repo, events: events}
}

// Eligible computes E(order) per spec §4.6: platform drivers within
// platform_radius_km when the branch uses platform drivers, else
// restaurant-bound online drivers (no distance requirement).
func (e *Engine) Eligible(ctx context.Context, snap OrderSnapshot) ([]EligibleDriver, error) {
	if snap.Branch.UsesPlatformDrivers {
		candidates, err := e.repo.PlatformDriversOnline(ctx)
		if err != nil {
			return nil, err
		}
		eligible := make([]EligibleDriver, 0, len(candidates))
		for _, d := range candidates {
			if haversineKm(snap.Branch.Latitude, snap.Branch.Longitude, d.Latitude, d.Longitude) <= platformRadiusKm {
				eligible = append(eligible, d)
			}
		}
		return eligible, nil
	}
	return e.repo.RestaurantDriversOnline(ctx, snap.Order.RestaurantID)
}

// Announce implements the push half of C6: load the order, compute E(order),
// and fan out AVAILABLE_ORDER to every eligible driver's user room.
func (e *Engine) Announce(ctx context.Context, orderID int64) error {
	snap, err := e.repo.LoadOrderSnapshot(ctx, orderID)
	if err != nil {
		return fmt.Errorf("dispatch: announce: %w", err)
	}
	eligible, err := e.Eligible(ctx, snap)
	if err != nil {
		return fmt.Errorf("dispatch: announce eligibility: %w", err)
	}

	payload := availableOrderPayload(snap)
	if e.events != nil {
		for _, d := range eligible {
			e.events.PublishUserEvent(d.UserID, "AVAILABLE_ORDER", payload)
		}
	}
	return nil
}

func availableOrderPayload(snap OrderSnapshot) map[string]any {
	return map[string]any{
		"orderId": snap.Order.ID,
		"pickup": map[string]float64{
			"latitude":  snap.Branch.Latitude,
			"longitude": snap.Branch.Longitude,
		},
		"drop": map[string]float64{
			"latitude":  snap.DropLatitude,
			"longitude": snap.DropLongitude,
		},
		"subtotal":    snap.Order.Subtotal,
		"deliveryFee": snap.Order.DeliveryFee,
		"total":       snap.Order.Total,
	}
}

// AvailableForDriver implements the GET /driver/orders/available pull
// query: every ready_for_pickup order the driver currently belongs to
// E(order) for. restaurantScope, when non-nil, restricts the base set to
// one restaurant (driver_restaurant bindings are always restaurant-scoped;
// a platform driver passes nil and is filtered purely by radius below).
func (e *Engine) AvailableForDriver(ctx context.Context, driverID int64, restaurantScope *int64) ([]OrderSnapshot, error) {
	candidates, err := e.repo.ListReadyForPickup(ctx, restaurantScope)
	if err != nil {
		return nil, fmt.Errorf("dispatch: available for driver: %w", err)
	}

	var driverLat, driverLon float64
	var haveLocation bool
	for _, snap := range candidates {
		if snap.Branch.UsesPlatformDrivers && !haveLocation {
			driverLat, driverLon, err = e.repo.DriverLocation(ctx, driverID)
			if err != nil {
				return nil, fmt.Errorf("dispatch: load driver location: %w", err)
			}
			haveLocation = true
		}
	}

	out := make([]OrderSnapshot, 0, len(candidates))
	for _, snap := range candidates {
		if !snap.Branch.UsesPlatformDrivers {
			out = append(out, snap)
			continue
		}
		if haversineKm(snap.Branch.Latitude, snap.Branch.Longitude, driverLat, driverLon) <= platformRadiusKm {
			out = append(out, snap)
		}
	}
	return out, nil
}

// Claim implements the pull half of C6: the driver must belong to E(order)
// evaluated at claim time, then the atomic conditional update decides
// first-claim-wins.
func (e *Engine) Claim(ctx context.Context, orderID, driverID int64) (domain.Order, error) {
	snap, err := e.repo.LoadOrderSnapshot(ctx, orderID)
	if err != nil {
		if err == ErrNotFound {
			return domain.Order{}, apperr.NotFound(apperr.CodeOrderNotFound, "order not found")
		}
		return domain.Order{}, apperr.Internal(err.Error())
	}
	if snap.Order.Status != domain.OrderStatusReadyForPickup {
		return domain.Order{}, apperr.IllegalTransition(string(snap.Order.Status), string(domain.OrderStatusOutForDelivery))
	}

	eligible, err := e.Eligible(ctx, snap)
	if err != nil {
		return domain.Order{}, apperr.Internal(err.Error())
	}
	var inSet bool
	for _, d := range eligible {
		if d.UserID == driverID {
			inSet = true
			break
		}
	}
	if !inSet {
		return domain.Order{}, apperr.Forbidden("driver is not eligible for this order")
	}

	if err := e.repo.Claim(ctx, orderID, driverID); err != nil {
		if err == ErrAlreadyTaken {
			return domain.Order{}, apperr.OrderAlreadyTaken()
		}
		return domain.Order{}, apperr.Internal(err.Error())
	}

	updated, err := e.repo.LoadOrderSnapshot(ctx, orderID)
	if err != nil {
		return domain.Order{}, apperr.Internal(err.Error())
	}

	if e.events != nil {
		e.events.PublishRestaurantEvent(snap.Order.RestaurantID, "ORDER_CLAIMED", updated.Order)
		for _, d := range eligible {
			if d.UserID != driverID {
				e.events.PublishUserEvent(d.UserID, "AVAILABLE_ORDER_WITHDRAWN", map[string]any{"orderId": orderID})
			}
		}
	}

	return updated.Order, nil
}

// Complete implements mark_delivered: conditional update on
// (delivery_driver_id, status=out_for_delivery), completing the cash-payout
// side effect spec §4.5 assigns to the delivered transition.
func (e *Engine) Complete(ctx context.Context, orderID, driverID int64) (domain.Order, error) {
	snap, err := e.repo.LoadOrderSnapshot(ctx, orderID)
	if err != nil {
		if err == ErrNotFound {
			return domain.Order{}, apperr.NotFound(apperr.CodeOrderNotFound, "order not found")
		}
		return domain.Order{}, apperr.Internal(err.Error())
	}

	if err := e.repo.Complete(ctx, orderID, driverID); err != nil {
		if err == ErrNotAssigned {
			return domain.Order{}, apperr.NotAssigned()
		}
		return domain.Order{}, apperr.Internal(err.Error())
	}

	if err := e.repo.SetCashDeliveredIfNeeded(ctx, orderID, snap.Order.PaymentMethod); err != nil {
		return domain.Order{}, apperr.Internal(err.Error())
	}

	updated, err := e.repo.LoadOrderSnapshot(ctx, orderID)
	if err != nil {
		return domain.Order{}, apperr.Internal(err.Error())
	}

	if e.events != nil {
		e.events.PublishRestaurantEvent(updated.Order.RestaurantID, "ORDER_STATUS_CHANGED", updated.Order)
	}

	return updated.Order, nil
}

func (e *Engine) SetStatus(ctx context.Context, driverID int64, status domain.DriverStatus) error {
	return e.repo.SetDriverStatus(ctx, driverID, status)
}

func (e *Engine) UpdateLocation(ctx context.Context, driverID int64, lat, lon float64) error {
	return e.repo.UpdateDriverLocation(ctx, driverID, lat, lon)
}
