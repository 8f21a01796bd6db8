package handlers

import (
	"time"

	"delixmi-order-core/internal/cart"
	"delixmi-order-core/internal/domain"
)

// The domain package intentionally carries no json tags (it is persistence
// and transport agnostic); these view types are the one place that shape
// matches spec §6's wire format.

type cartItemView struct {
	ID         int64              `json:"id"`
	ProductID  int64              `json:"productId"`
	Quantity   int                `json:"quantity"`
	PriceAtAdd string             `json:"priceAtAdd"`
	Modifiers  []cartModifierView `json:"modifiers"`
}

type cartModifierView struct {
	ModifierOptionID int64 `json:"modifierOptionId"`
}

type cartSummaryView struct {
	RestaurantID int64          `json:"restaurantId"`
	ItemCount    int            `json:"itemCount"`
	Subtotal     string         `json:"subtotal"`
	Items        []cartItemView `json:"items"`
}

func renderCartItem(item domain.CartItem) cartItemView {
	modifiers := make([]cartModifierView, 0, len(item.Modifiers))
	for _, m := range item.Modifiers {
		modifiers = append(modifiers, cartModifierView{ModifierOptionID: m.ModifierOptionID})
	}
	return cartItemView{
		ID:         item.ID,
		ProductID:  item.ProductID,
		Quantity:   item.Quantity,
		PriceAtAdd: item.PriceAtAdd.StringFixed(2),
		Modifiers:  modifiers,
	}
}

func renderCartSummary(s cart.CartSummary) cartSummaryView {
	items := make([]cartItemView, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, renderCartItem(item))
	}
	return cartSummaryView{
		RestaurantID: s.RestaurantID,
		ItemCount:    s.ItemCount,
		Subtotal:     s.Subtotal.StringFixed(2),
		Items:        items,
	}
}

type orderItemView struct {
	ID           int64  `json:"id"`
	ProductID    int64  `json:"productId"`
	ProductName  string `json:"productName"`
	Quantity     int    `json:"quantity"`
	PricePerUnit string `json:"pricePerUnit"`
}

type orderView struct {
	ID                  int64           `json:"id"`
	CustomerID          int64           `json:"customerId"`
	RestaurantID        int64           `json:"restaurantId"`
	BranchID            int64           `json:"branchId"`
	AddressID           int64           `json:"addressId"`
	Subtotal            string          `json:"subtotal"`
	DeliveryFee         string          `json:"deliveryFee"`
	ServiceFee          string          `json:"serviceFee"`
	Total               string          `json:"total"`
	PaymentMethod       string          `json:"paymentMethod"`
	PaymentStatus       string          `json:"paymentStatus"`
	Status              string          `json:"status"`
	DeliveryDriverID    *int64          `json:"deliveryDriverId,omitempty"`
	SpecialInstructions string          `json:"specialInstructions,omitempty"`
	ExternalReference   string          `json:"externalReference"`
	OrderPlacedAt        time.Time      `json:"orderPlacedAt"`
	OrderDeliveredAt     *time.Time     `json:"orderDeliveredAt,omitempty"`
	Items                []orderItemView `json:"items,omitempty"`
}

func renderOrder(o domain.Order) orderView {
	items := make([]orderItemView, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemView{
			ID:           item.ID,
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			Quantity:     item.Quantity,
			PricePerUnit: item.PricePerUnit.StringFixed(2),
		})
	}
	return orderView{
		ID:                  o.ID,
		CustomerID:          o.CustomerID,
		RestaurantID:        o.RestaurantID,
		BranchID:            o.BranchID,
		AddressID:           o.AddressID,
		Subtotal:            o.Subtotal.StringFixed(2),
		DeliveryFee:         o.DeliveryFee.StringFixed(2),
		ServiceFee:          o.ServiceFee.StringFixed(2),
		Total:               o.Total.StringFixed(2),
		PaymentMethod:       string(o.PaymentMethod),
		PaymentStatus:       string(o.PaymentStatus),
		Status:              string(o.Status),
		DeliveryDriverID:    o.DeliveryDriverID,
		SpecialInstructions: o.SpecialInstructions,
		ExternalReference:   o.ExternalReference.String(),
		OrderPlacedAt:       o.OrderPlacedAt,
		OrderDeliveredAt:    o.OrderDeliveredAt,
		Items:               items,
	}
}

type availableOrderView struct {
	OrderID      int64  `json:"orderId"`
	RestaurantID int64  `json:"restaurantId"`
	Subtotal     string `json:"subtotal"`
	DeliveryFee  string `json:"deliveryFee"`
	Total        string `json:"total"`
}
