package handlers

import (
	"errors"
	"io"
	"net/http"

	"delixmi-order-core/internal/apperr"
	"delixmi-order-core/internal/authz"
	"delixmi-order-core/internal/cart"
	"delixmi-order-core/internal/domain"
	"delixmi-order-core/internal/payment"
	"delixmi-order-core/internal/pricing"
	"delixmi-order-core/pkg/response"
)

// CheckoutCreatePreference implements POST /checkout/create-preference:
// resolves the caller's cart for the given restaurant, runs it through the
// Order Assembler, and responds with the new order's id and total. For card
// orders the Assembler requests a payment preference after commit, but the
// gateway's redirect URL is not included in this response.
func (h *Handler) CheckoutCreatePreference(w http.ResponseWriter, r *http.Request) {
	claims, ok := principal(w, r)
	if !ok {
		return
	}
	if !authz.Evaluate(claims, authz.OpOrderPlace, authz.Target{OwnerUserID: claims.UserID}) {
		forbidden(w)
		return
	}

	var body struct {
		AddressID           int64  `json:"addressId"`
		UseCart             bool   `json:"useCart"`
		RestaurantID        int64  `json:"restaurantId"`
		PaymentMethod       string `json:"paymentMethod"`
		SpecialInstructions string `json:"specialInstructions"`
	}
	if err := decodeJSON(r, &body); err != nil {
		response.Error(w, apperr.ValidationError("invalid request body"))
		return
	}
	if !body.UseCart {
		response.Error(w, apperr.ValidationError("useCart must be true; ad-hoc checkout is not supported"))
		return
	}

	method := domain.PaymentMethod(body.PaymentMethod)
	if method != domain.PaymentMethodMercadoPago && method != domain.PaymentMethodCash {
		response.Error(w, apperr.ValidationError("paymentMethod must be mercadopago or cash"))
		return
	}

	cartID, err := h.CartRepo.FindCartID(r.Context(), claims.UserID, body.RestaurantID)
	if err != nil {
		if err == cart.ErrNotFound {
			response.Error(w, apperr.EmptyCart())
			return
		}
		writeAppError(w, err)
		return
	}

	address, err := h.loadAddressForOwnership(r, claims.UserID, body.AddressID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	destination := pricing.Point{Latitude: address.Latitude, Longitude: address.Longitude}
	placed, err := h.Assembler.PlaceOrder(r.Context(), claims.UserID, cartID, body.AddressID, method, body.SpecialInstructions, destination)
	if err != nil {
		writeAppError(w, err)
		return
	}

	payload := map[string]any{
		"orderId": placed.ID,
		"total":   placed.Total.StringFixed(2),
	}
	response.Created(w, payload)
}

// loadAddressForOwnership loads the delivery address and enforces it
// belongs to the caller; this is the only address-ownership check, since
// PlaceOrder takes the address id without re-checking it.
func (h *Handler) loadAddressForOwnership(r *http.Request, userID, addressID int64) (domain.Address, error) {
	address, err := h.Orders.LoadAddress(r.Context(), addressID)
	if err != nil {
		return domain.Address{}, err
	}
	if address.UserID != userID {
		return domain.Address{}, apperr.Forbidden("address does not belong to this principal")
	}
	return address, nil
}

// WebhookMercadoPago implements POST /webhooks/mercadopago: the raw body is
// handed to the Payment Coordinator unparsed so HMAC verification runs over
// the exact bytes the provider signed.
func (h *Handler) WebhookMercadoPago(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.Error(w, apperr.ValidationError("could not read request body"))
		return
	}
	signature := r.Header.Get("X-Signature")

	if err := h.Payments.HandleWebhook(r.Context(), body, signature); err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			response.ErrorEnvelope(w, string(apperr.CodeInvalidToken), http.StatusUnauthorized, "webhook signature is invalid", nil)
			return
		}
		writeAppError(w, err)
		return
	}
	response.Success(w, map[string]any{"received": true})
}
