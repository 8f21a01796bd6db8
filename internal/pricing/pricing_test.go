package pricing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

// TestPriceCart_HappyPathCardOrder covers scenario 1 from spec §8: one item
// priced 150.00 + extra-cheese 15.00, qty 1, distance 2km.
func TestPriceCart_HappyPathCardOrder(t *testing.T) {
	items := []PriceCartItem{
		{
			ProductPrice:         decimal.NewFromFloat(150.00),
			Quantity:             1,
			SelectedOptionDeltas: []decimal.Decimal{decimal.NewFromFloat(15.00)},
		},
	}
	provider := func(ctx context.Context, origin, destination Point) (DistanceResult, error) {
		return DistanceResult{DistanceKm: decimal.NewFromInt(2), DurationMin: 10}, nil
	}

	result, err := PriceCart(context.Background(), items, Point{}, Point{}, provider)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertDecimal(t, "subtotal", result.Subtotal, "165.00")
	assertDecimal(t, "deliveryFee", result.DeliveryFee, "25.00")
	assertDecimal(t, "serviceFee", result.ServiceFee, "8.25")
	assertDecimal(t, "total", result.Total, "198.25")
}

func TestRestaurantPayout(t *testing.T) {
	subtotal := decimal.NewFromFloat(165.00)
	rate := decimal.NewFromFloat(12.50)
	payout := RestaurantPayout(subtotal, rate)
	assertDecimal(t, "payout", payout, "144.38")
}

func TestPriceCart_NegativeLineRejected(t *testing.T) {
	items := []PriceCartItem{
		{
			ProductPrice:         decimal.NewFromFloat(10.00),
			Quantity:             1,
			SelectedOptionDeltas: []decimal.Decimal{decimal.NewFromFloat(-50.00)},
		},
	}
	_, err := PriceCart(context.Background(), items, Point{}, Point{}, nil)
	if err != ErrNegativePrice {
		t.Fatalf("expected ErrNegativePrice, got %v", err)
	}
}

func TestPriceCart_DistanceProviderFailureFallsBackToDefault(t *testing.T) {
	items := []PriceCartItem{
		{ProductPrice: decimal.NewFromFloat(100.00), Quantity: 1},
	}
	provider := func(ctx context.Context, origin, destination Point) (DistanceResult, error) {
		return DistanceResult{}, context.DeadlineExceeded
	}
	result, err := PriceCart(context.Background(), items, Point{}, Point{}, provider)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsDefaultDistance {
		t.Fatalf("expected fallback distance to be flagged as default")
	}
	assertDecimal(t, "distanceKm", result.DistanceKm, "5")
}

func assertDecimal(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	wantDec, err := decimal.NewFromString(want)
	if err != nil {
		t.Fatalf("bad want literal %q: %v", want, err)
	}
	if !got.Equal(wantDec) {
		t.Fatalf("%s: got %s, want %s", label, got.String(), want)
	}
}
