package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"delixmi-order-core/internal/apperr"
	"delixmi-order-core/internal/cart"
	"delixmi-order-core/internal/domain"
	"delixmi-order-core/internal/money"
	"delixmi-order-core/internal/pricing"
)

// priceDriftTolerance mirrors spec §4.3 step 3's "±0.01" rejection band.
var priceDriftTolerance = decimal.NewFromFloat(0.01)

// EventPublisher is the after-commit hook the Assembler and State Machine
// call into. It is satisfied by internal/realtime.Bus; kept as an interface
// here so order never imports realtime directly (spec §9: "webhook
// side-effects after commit... never inside the transaction").
type EventPublisher interface {
	PublishRestaurantEvent(restaurantID int64, eventType string, data any)
	PublishUserEvent(userID int64, eventType string, data any)
}

// PaymentPreferenceCreator is the Payment Coordinator entry point the
// Assembler invokes, post-commit, for card orders (spec §4.3 step 10).
type PaymentPreferenceCreator interface {
	CreatePreference(ctx context.Context, orderID int64) error
}

type Assembler struct {
	repo       *Repository
	cartRepo   *cart.Repository
	events     EventPublisher
	payments   PaymentPreferenceCreator
	distance   pricing.DistanceProvider
}

func NewAssembler(repo *Repository, cartRepo *cart.Repository, events EventPublisher, payments PaymentPreferenceCreator, distance pricing.DistanceProvider) *Assembler {
	return &Assembler{repo: repo, cartRepo: cartRepo, events: events, payments: payments, distance: distance}
}

// PlaceOrder implements spec §4.3's place_order algorithm end to end.
func (a *Assembler) PlaceOrder(ctx context.Context, userID, cartID, addressID int64, paymentMethod domain.PaymentMethod, specialInstructions string, destination pricing.Point) (domain.Order, error) {
	c, err := a.cartRepo.GetCart(ctx, cartID)
	if err != nil {
		if err == cart.ErrNotFound {
			return domain.Order{}, apperr.NotFound(apperr.CodeOrderNotFound, "cart not found")
		}
		return domain.Order{}, apperr.Internal(err.Error())
	}
	if c.UserID != userID {
		return domain.Order{}, apperr.Forbidden("cart does not belong to this principal")
	}
	// Step 1: empty cart check.
	if len(c.Items) == 0 {
		return domain.Order{}, apperr.EmptyCart()
	}

	var placed domain.Order
	var cardOrder bool

	err = a.repo.WithTx(ctx, func(tx pgx.Tx) error {
		// Step 2: branch + schedule validation.
		branchSnap, err := a.repo.LoadBranchForCart(ctx, tx, c.RestaurantID)
		if err != nil {
			return apperr.NotFound(apperr.CodeBranchNotFound, "branch not found")
		}
		if branchSnap.Branch.Status != domain.BranchActive {
			return apperr.BranchClosed()
		}
		now := time.Now().UTC()
		dayOfWeek := int(now.Weekday())
		nowOfDay := time.Duration(now.Hour())*time.Hour + time.Duration(now.Minute())*time.Minute + time.Duration(now.Second())*time.Second
		var todaySchedule *domain.BranchSchedule
		for i := range branchSnap.Schedule {
			if branchSnap.Schedule[i].DayOfWeek == dayOfWeek {
				todaySchedule = &branchSnap.Schedule[i]
				break
			}
		}
		if todaySchedule == nil || !pricing.IsWithinSchedule(*todaySchedule, nowOfDay) {
			return apperr.BranchClosed()
		}

		// Step 3: re-validate every item; recompute price; fail on drift.
		priceItems := make([]pricing.PriceCartItem, 0, len(c.Items))
		builtItems := make([]domain.OrderItem, 0, len(c.Items))
		for _, item := range c.Items {
			optionIDs := make([]int64, 0, len(item.Modifiers))
			for _, m := range item.Modifiers {
				optionIDs = append(optionIDs, m.ModifierOptionID)
			}
			current, err := a.repo.LoadCurrentPricing(ctx, tx, item.ProductID, optionIDs)
			if err != nil {
				return apperr.NotFound(apperr.CodeProductNotFound, "product no longer exists")
			}
			if !current.IsAvailable || current.RestaurantID != c.RestaurantID {
				return apperr.ProductUnavailable("a product in the cart is no longer available")
			}

			recomputedUnit := current.UnitPrice
			deltas := make([]decimal.Decimal, 0, len(optionIDs))
			itemModifiers := make([]domain.OrderItemModifier, 0, len(optionIDs))
			for _, optionID := range optionIDs {
				delta := current.OptionDeltas[optionID]
				deltas = append(deltas, delta)
				recomputedUnit = recomputedUnit.Add(delta)
				itemModifiers = append(itemModifiers, domain.OrderItemModifier{
					ModifierOptionID: optionID,
					OptionName:       current.OptionNames[optionID],
					PriceDelta:       delta,
				})
			}
			recomputedUnit = money.Round2(recomputedUnit)

			if recomputedUnit.Sub(item.PriceAtAdd).Abs().GreaterThan(priceDriftTolerance) {
				return apperr.PriceDrift(recomputedUnit.StringFixed(2))
			}

			priceItems = append(priceItems, pricing.PriceCartItem{
				ProductPrice:         current.UnitPrice,
				Quantity:             item.Quantity,
				SelectedOptionDeltas: deltas,
			})
			builtItems = append(builtItems, domain.OrderItem{
				ProductID:    item.ProductID,
				ProductName:  current.ProductName,
				Quantity:     item.Quantity,
				PricePerUnit: recomputedUnit,
				Modifiers:    itemModifiers,
			})
		}

		// Step 4: price via C1.
		origin := pricing.Point{Latitude: branchSnap.Branch.Latitude, Longitude: branchSnap.Branch.Longitude}
		priced, err := pricing.PriceCart(ctx, priceItems, origin, destination, a.distance)
		if err != nil {
			return apperr.Internal(err.Error())
		}

		// Step 5: commission snapshot + payout.
		payout := pricing.RestaurantPayout(priced.Subtotal, branchSnap.Restaurant.CommissionRate)

		// Step 6: insert Order.
		order := domain.Order{
			CustomerID:             userID,
			BranchID:               branchSnap.Branch.ID,
			RestaurantID:           c.RestaurantID,
			AddressID:              addressID,
			Subtotal:               priced.Subtotal,
			DeliveryFee:            priced.DeliveryFee,
			ServiceFee:             priced.ServiceFee,
			Total:                  priced.Total,
			CommissionRateSnapshot: branchSnap.Restaurant.CommissionRate,
			PlatformFee:            priced.ServiceFee,
			RestaurantPayout:       payout,
			PaymentMethod:          paymentMethod,
			PaymentStatus:          domain.PaymentStatusPending,
			Status:                 domain.OrderStatusPending,
			SpecialInstructions:    specialInstructions,
			ExternalReference:      uuid.New(),
			OrderPlacedAt:          now,
		}
		orderID, err := a.repo.InsertOrder(ctx, tx, &order)
		if err != nil {
			return apperr.Internal(err.Error())
		}
		order.ID = orderID

		// Step 7: insert OrderItems + OrderItemModifiers.
		for i := range builtItems {
			builtItems[i].OrderID = orderID
			itemID, err := a.repo.InsertOrderItem(ctx, tx, orderID, builtItems[i])
			if err != nil {
				return apperr.Internal(err.Error())
			}
			builtItems[i].ID = itemID
		}
		order.Items = builtItems

		// Step 8: insert Payment row.
		if _, err := a.repo.InsertPayment(ctx, tx, orderID, order.Total, paymentMethod); err != nil {
			return apperr.Internal(err.Error())
		}

		// Step 9: clear the cart in this same transaction.
		if err := a.cartRepo.ClearRestaurant(ctx, tx, userID, c.RestaurantID); err != nil {
			return apperr.Internal(err.Error())
		}

		placed = order
		cardOrder = paymentMethod == domain.PaymentMethodMercadoPago
		return nil
	})
	if err != nil {
		if appErr, ok := err.(*apperr.Error); ok {
			return domain.Order{}, appErr
		}
		return domain.Order{}, apperr.Internal(err.Error())
	}

	// Step 10: after commit, never inside — emit ORDER_PLACED, then request
	// a payment preference for card orders.
	if a.events != nil {
		a.events.PublishRestaurantEvent(placed.RestaurantID, "ORDER_PLACED", placed)
	}
	if cardOrder && a.payments != nil {
		if err := a.payments.CreatePreference(ctx, placed.ID); err != nil {
			// CreatePreference already marks payment/order failed and emits
			// PAYMENT_FAILED on its own failure path; the customer may retry.
		}
	}

	return placed, nil
}
