package order

import (
	"context"
	"testing"

	"delixmi-order-core/internal/apperr"
	"delixmi-order-core/internal/domain"
)

// TestLegalTransitionsMatchesSpecTable exercises scenario 6 from spec §8:
// owner attempts pending -> delivered, which must never be legal.
func TestLegalTransitionsMatchesSpecTable(t *testing.T) {
	illegalPairs := []struct{ from, to domain.OrderStatus }{
		{domain.OrderStatusPending, domain.OrderStatusDelivered},
		{domain.OrderStatusPending, domain.OrderStatusPreparing},
		{domain.OrderStatusPending, domain.OrderStatusReadyForPickup},
		{domain.OrderStatusDelivered, domain.OrderStatusPending},
		{domain.OrderStatusCancelled, domain.OrderStatusConfirmed},
	}
	for _, pair := range illegalPairs {
		if legalTransitions[pair.from][pair.to] {
			t.Fatalf("expected %s -> %s to be illegal", pair.from, pair.to)
		}
	}

	legalPairs := []struct{ from, to domain.OrderStatus }{
		{domain.OrderStatusPending, domain.OrderStatusConfirmed},
		{domain.OrderStatusPending, domain.OrderStatusCancelled},
		{domain.OrderStatusConfirmed, domain.OrderStatusPreparing},
		{domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
		{domain.OrderStatusPreparing, domain.OrderStatusReadyForPickup},
		{domain.OrderStatusDelivered, domain.OrderStatusRefunded},
	}
	for _, pair := range legalPairs {
		if !legalTransitions[pair.from][pair.to] {
			t.Fatalf("expected %s -> %s to be legal", pair.from, pair.to)
		}
	}
}

func TestReadyForPickupAndDeliveredAreDispatchOnly(t *testing.T) {
	// ready_for_pickup -> out_for_delivery and out_for_delivery -> delivered
	// exist in the adjacency table (they are real edges) but Transition
	// refuses to drive them directly; only internal/dispatch may.
	if !legalTransitions[domain.OrderStatusReadyForPickup][domain.OrderStatusOutForDelivery] {
		t.Fatalf("expected ready_for_pickup -> out_for_delivery to be a known edge")
	}
	if !legalTransitions[domain.OrderStatusOutForDelivery][domain.OrderStatusDelivered] {
		t.Fatalf("expected out_for_delivery -> delivered to be a known edge")
	}

	sm := &StateMachine{}
	dispatchOnly := []struct{ from, to domain.OrderStatus }{
		{domain.OrderStatusReadyForPickup, domain.OrderStatusOutForDelivery},
		{domain.OrderStatusOutForDelivery, domain.OrderStatusDelivered},
	}
	for _, pair := range dispatchOnly {
		_, err := sm.Transition(context.Background(), 1, pair.from, pair.to)
		appErr, ok := err.(*apperr.Error)
		if !ok || appErr.Code != apperr.CodeIllegalTransition {
			t.Fatalf("expected Transition to refuse %s -> %s with ILLEGAL_TRANSITION, got %v", pair.from, pair.to, err)
		}
	}
}
