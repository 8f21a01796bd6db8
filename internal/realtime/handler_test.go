package realtime

import (
	"testing"

	"delixmi-order-core/internal/auth"
	"delixmi-order-core/internal/domain"
)

func int64Ptr(v int64) *int64 { return &v }

func TestRoomsForOwnerJoinsRestaurantRoom(t *testing.T) {
	claims := &auth.Claims{
		UserID:   7,
		IsActive: true,
		Bindings: []auth.RoleBinding{{Role: domain.RoleOwner, RestaurantID: int64Ptr(42)}},
	}
	rooms := roomsFor(claims)
	if len(rooms) != 1 || rooms[0] != "restaurant_42" {
		t.Fatalf("expected [restaurant_42], got %v", rooms)
	}
}

func TestRoomsForDriverJoinsOwnUserRoom(t *testing.T) {
	claims := &auth.Claims{
		UserID:   9,
		IsActive: true,
		Bindings: []auth.RoleBinding{{Role: domain.RoleDriverPlatform}},
	}
	rooms := roomsFor(claims)
	if len(rooms) != 1 || rooms[0] != "user_9" {
		t.Fatalf("expected [user_9], got %v", rooms)
	}
}

func TestRoomsForUnboundPrincipalFallsBackToOwnUserRoom(t *testing.T) {
	claims := &auth.Claims{UserID: 3, IsActive: true}
	rooms := roomsFor(claims)
	if len(rooms) != 1 || rooms[0] != "user_3" {
		t.Fatalf("expected [user_3], got %v", rooms)
	}
}
