package order

import (
	"context"

	"go.uber.org/zap"

	"delixmi-order-core/internal/apperr"
	"delixmi-order-core/internal/domain"
)

// legalTransitions is the full (from, to) adjacency from spec §4.5's table,
// independent of which role may trigger it — that's internal/authz's job.
// Any pair absent here is always ILLEGAL_TRANSITION regardless of actor.
var legalTransitions = map[domain.OrderStatus]map[domain.OrderStatus]bool{
	domain.OrderStatusPending: {
		domain.OrderStatusConfirmed: true,
		domain.OrderStatusCancelled: true,
	},
	domain.OrderStatusConfirmed: {
		domain.OrderStatusPreparing: true,
		domain.OrderStatusCancelled: true,
	},
	domain.OrderStatusPreparing: {
		domain.OrderStatusReadyForPickup: true,
		domain.OrderStatusCancelled:      true,
	},
	domain.OrderStatusReadyForPickup: {
		domain.OrderStatusOutForDelivery: true, // only via dispatch.Claim, not this generic Transition
	},
	domain.OrderStatusOutForDelivery: {
		domain.OrderStatusDelivered: true, // only via dispatch.Complete
	},
	domain.OrderStatusDelivered: {
		domain.OrderStatusRefunded: true,
	},
}

// Dispatcher is the C6 entry point the state machine invokes once an order
// enters ready_for_pickup, per spec §2/§4.5's "invoke dispatch asynchronously
// (after commit)". Kept as an interface so order never imports dispatch
// directly; satisfied by internal/dispatch.Engine.
type Dispatcher interface {
	Announce(ctx context.Context, orderID int64) error
}

// StateMachine drives Order.status via the conditional-update pattern.
type StateMachine struct {
	repo     *Repository
	events   EventPublisher
	dispatch Dispatcher
	logger   *zap.Logger
}

func NewStateMachine(repo *Repository, events EventPublisher, dispatch Dispatcher, logger *zap.Logger) *StateMachine {
	return &StateMachine{repo: repo, events: events, dispatch: dispatch, logger: logger}
}

// Transition implements the generic (non-dispatch, non-payment) leg of
// spec §4.5: manual staff-triggered transitions
// (confirm/prepare/ready/cancel/refund). Claim and mark_delivered are
// handled by internal/dispatch because they carry extra predicates
// (delivery_driver_id) beyond a plain status match.
func (sm *StateMachine) Transition(ctx context.Context, orderID int64, from, to domain.OrderStatus) (domain.Order, error) {
	if to == domain.OrderStatusOutForDelivery || to == domain.OrderStatusDelivered {
		// These transitions are exclusively driven by internal/dispatch's
		// conditional updates, which carry the delivery_driver_id predicate
		// spec §4.6 requires; reaching them through the generic path would
		// bypass that predicate.
		return domain.Order{}, apperr.IllegalTransition(string(from), string(to))
	}
	if !legalTransitions[from][to] {
		return domain.Order{}, apperr.IllegalTransition(string(from), string(to))
	}

	if err := sm.repo.TransitionStatus(ctx, orderID, from, to); err != nil {
		if err == ErrStale {
			return domain.Order{}, apperr.StaleState()
		}
		return domain.Order{}, apperr.Internal(err.Error())
	}

	updated, err := sm.repo.GetByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, apperr.Internal(err.Error())
	}

	if sm.events != nil {
		sm.events.PublishRestaurantEvent(updated.RestaurantID, "ORDER_STATUS_CHANGED", updated)
		if to == domain.OrderStatusCancelled {
			sm.events.PublishRestaurantEvent(updated.RestaurantID, "ORDER_CANCELLED", updated)
		}
	}

	if to == domain.OrderStatusReadyForPickup && sm.dispatch != nil {
		go func() {
			if err := sm.dispatch.Announce(context.Background(), orderID); err != nil && sm.logger != nil {
				sm.logger.Error("dispatch: announce failed after ready_for_pickup commit", zap.Error(err), zap.Int64("order_id", orderID))
			}
		}()
	}

	return updated, nil
}

// CancelByCustomer implements the customer-initiated pending->cancelled leg
// of the table, kept separate because its precondition (actor must equal
// the order's own customer) is checked by the caller via internal/authz
// rather than a restaurant scope binding.
func (sm *StateMachine) CancelByCustomer(ctx context.Context, orderID int64) (domain.Order, error) {
	return sm.Transition(ctx, orderID, domain.OrderStatusPending, domain.OrderStatusCancelled)
}
