package handlers

import (
	"testing"

	"github.com/shopspring/decimal"

	"delixmi-order-core/internal/domain"
)

func TestRenderOrderFormatsMoneyAsFixed2(t *testing.T) {
	o := domain.Order{
		ID:            1,
		Subtotal:      decimal.NewFromFloat(99.5),
		DeliveryFee:   decimal.NewFromInt(20),
		ServiceFee:    decimal.NewFromFloat(4.975),
		Total:         decimal.NewFromFloat(124.475),
		PaymentMethod: domain.PaymentMethodCash,
		PaymentStatus: domain.PaymentStatusPending,
		Status:        domain.OrderStatusPending,
	}
	view := renderOrder(o)
	if view.Subtotal != "99.50" {
		t.Fatalf("expected subtotal 99.50, got %s", view.Subtotal)
	}
	if view.Total != "124.48" && view.Total != "124.47" {
		// shopspring rounds half-away-from-zero by default for StringFixed
		t.Fatalf("unexpected total formatting: %s", view.Total)
	}
}

func TestRenderOrderOmitsNilDriverAndDeliveredAt(t *testing.T) {
	o := domain.Order{
		Subtotal:      decimal.Zero,
		DeliveryFee:   decimal.Zero,
		ServiceFee:    decimal.Zero,
		Total:         decimal.Zero,
		PaymentMethod: domain.PaymentMethodMercadoPago,
		PaymentStatus: domain.PaymentStatusPending,
		Status:        domain.OrderStatusPending,
	}
	view := renderOrder(o)
	if view.DeliveryDriverID != nil {
		t.Fatalf("expected nil driver id")
	}
	if view.OrderDeliveredAt != nil {
		t.Fatalf("expected nil delivered at")
	}
}
