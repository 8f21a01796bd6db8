// Package pricing implements the Pricing Engine (C1): a pure function with
// no I/O of its own beyond the distance_provider callback it is handed.
package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"delixmi-order-core/internal/domain"
	"delixmi-order-core/internal/money"
)

// Design-time constants from spec §4.1.
var (
	baseFee  = decimal.NewFromInt(15)
	perKmRate = decimal.NewFromInt(5)
	minFee   = decimal.NewFromInt(20)
	serviceFeeRate = decimal.NewFromFloat(0.05)

	defaultDistanceKm = decimal.NewFromInt(5)
	defaultDurationMin = 15
)

var (
	ErrInvalidItem   = errors.New("pricing: item has no matching product")
	ErrNegativePrice = errors.New("pricing: computed line price is negative")
)

// Point is a geographic coordinate.
type Point struct {
	Latitude  float64
	Longitude float64
}

// DistanceResult is what a distance_provider returns.
type DistanceResult struct {
	DistanceKm  decimal.Decimal
	DurationMin int
}

// DistanceProvider resolves an origin-destination distance/duration. The
// routing provider is an external collaborator (spec §1); this is the
// interface the core consumes.
type DistanceProvider func(ctx context.Context, origin, destination Point) (DistanceResult, error)

// PriceCartItem is one cart line handed into PriceCart.
type PriceCartItem struct {
	ProductPrice       decimal.Decimal
	Quantity           int
	SelectedOptionDeltas []decimal.Decimal
}

// Pricing is the full computed breakdown for a checkout.
type Pricing struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	ServiceFee  decimal.Decimal
	Total       decimal.Decimal
	DistanceKm  decimal.Decimal
	DurationMin int
	IsDefaultDistance bool
}

// PriceCart implements spec §4.1's price_cart algorithm.
func PriceCart(ctx context.Context, items []PriceCartItem, origin, destination Point, distanceProvider DistanceProvider) (Pricing, error) {
	subtotal := decimal.Zero
	for _, item := range items {
		if item.Quantity <= 0 {
			return Pricing{}, ErrInvalidItem
		}
		lineUnit := item.ProductPrice
		for _, delta := range item.SelectedOptionDeltas {
			lineUnit = lineUnit.Add(delta)
		}
		if lineUnit.IsNegative() {
			return Pricing{}, ErrNegativePrice
		}
		lineTotal := lineUnit.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(lineTotal)
	}
	subtotal = money.Round2(subtotal)

	distanceKm := defaultDistanceKm
	durationMin := defaultDurationMin
	isDefault := false
	if distanceProvider != nil {
		result, err := distanceProvider(ctx, origin, destination)
		if err != nil {
			distanceKm = defaultDistanceKm
			durationMin = defaultDurationMin
			isDefault = true
		} else {
			distanceKm = result.DistanceKm
			durationMin = result.DurationMin
		}
	} else {
		isDefault = true
	}

	deliveryFee := baseFee.Add(perKmRate.Mul(distanceKm))
	if deliveryFee.LessThan(minFee) {
		deliveryFee = minFee
	}
	deliveryFee = money.Round2(deliveryFee)

	serviceFee := money.Round2(subtotal.Mul(serviceFeeRate))

	total := money.Round2(subtotal.Add(deliveryFee).Add(serviceFee))

	return Pricing{
		Subtotal:          subtotal,
		DeliveryFee:       deliveryFee,
		ServiceFee:        serviceFee,
		Total:             total,
		DistanceKm:        distanceKm,
		DurationMin:       durationMin,
		IsDefaultDistance: isDefault,
	}, nil
}

// EstimateDeliveryWindow implements spec §4.1's estimate_delivery_window.
func EstimateDeliveryWindow(travelMin, itemCount int) (minMinutes, maxMinutes int) {
	const prepBase = 20
	prepAdj := (itemCount - 3) * 2
	if prepAdj < 0 {
		prepAdj = 0
	}
	travel := travelMin
	if travel == 0 {
		travel = 15
	}
	minTotal := prepBase + prepAdj + travel
	return minTotal, minTotal + 10
}

// IsWithinSchedule reports whether nowOfDay (an offset from midnight; the
// Assembler passes the current UTC time of day, since branches carry no
// timezone) falls inside the schedule window, using half-open interval
// semantics per spec §9's resolution of the 24h-boundary open question.
func IsWithinSchedule(schedule domain.BranchSchedule, nowOfDay time.Duration) bool {
	if schedule.IsClosed {
		return false
	}
	opening := schedule.OpeningTime
	closing := schedule.ClosingTime
	if opening == 0 && closing == 23*time.Hour+59*time.Minute+59*time.Second {
		return true
	}
	return nowOfDay >= opening && nowOfDay < closing
}

// RestaurantPayout computes the commission-snapshotted payout per spec
// §4.3 step 5: round2(subtotal - subtotal * commission_rate/100).
func RestaurantPayout(subtotal, commissionRatePercent decimal.Decimal) decimal.Decimal {
	commission := subtotal.Mul(commissionRatePercent).Div(decimal.NewFromInt(100))
	return money.Round2(subtotal.Sub(commission))
}
