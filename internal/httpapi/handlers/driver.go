package handlers

import (
	"net/http"

	"delixmi-order-core/internal/apperr"
	"delixmi-order-core/internal/authz"
	"delixmi-order-core/internal/domain"
	"delixmi-order-core/pkg/response"
)

// DriverOrdersAvailable implements GET /driver/orders/available.
func (h *Handler) DriverOrdersAvailable(w http.ResponseWriter, r *http.Request) {
	claims, ok := principal(w, r)
	if !ok {
		return
	}
	if !authz.Evaluate(claims, authz.OpOrderClaim, authz.Target{}) {
		forbidden(w)
		return
	}

	var scope *int64
	for _, b := range claims.Bindings {
		if b.Role == domain.RoleDriverRestaurant && b.RestaurantID != nil {
			id := *b.RestaurantID
			scope = &id
			break
		}
	}

	snapshots, err := h.Dispatch.AvailableForDriver(r.Context(), claims.UserID, scope)
	if err != nil {
		writeAppError(w, err)
		return
	}

	views := make([]availableOrderView, 0, len(snapshots))
	for _, s := range snapshots {
		views = append(views, availableOrderView{
			OrderID:      s.Order.ID,
			RestaurantID: s.Order.RestaurantID,
			Subtotal:     s.Order.Subtotal.StringFixed(2),
			DeliveryFee:  s.Order.DeliveryFee.StringFixed(2),
			Total:        s.Order.Total.StringFixed(2),
		})
	}
	response.Success(w, views)
}

// DriverOrderAccept implements PATCH /driver/orders/:orderId/accept.
func (h *Handler) DriverOrderAccept(w http.ResponseWriter, r *http.Request) {
	claims, ok := principal(w, r)
	if !ok {
		return
	}
	if !authz.Evaluate(claims, authz.OpOrderClaim, authz.Target{}) {
		forbidden(w)
		return
	}

	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, apperr.ValidationError("orderId is required"))
		return
	}

	updated, err := h.Dispatch.Claim(r.Context(), orderID, claims.UserID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	response.Success(w, renderOrder(updated))
}

// DriverOrderComplete implements PATCH /driver/orders/:orderId/complete.
func (h *Handler) DriverOrderComplete(w http.ResponseWriter, r *http.Request) {
	claims, ok := principal(w, r)
	if !ok {
		return
	}
	if !authz.Evaluate(claims, authz.OpOrderComplete, authz.Target{}) {
		forbidden(w)
		return
	}

	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, apperr.ValidationError("orderId is required"))
		return
	}

	updated, err := h.Dispatch.Complete(r.Context(), orderID, claims.UserID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	response.Success(w, renderOrder(updated))
}

// DriverStatusUpdate implements PATCH /driver/status.
func (h *Handler) DriverStatusUpdate(w http.ResponseWriter, r *http.Request) {
	claims, ok := principal(w, r)
	if !ok {
		return
	}
	if !authz.Evaluate(claims, authz.OpDriverProfile, authz.Target{}) {
		forbidden(w)
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		response.Error(w, apperr.ValidationError("invalid request body"))
		return
	}
	status := domain.DriverStatus(body.Status)
	switch status {
	case domain.DriverOnline, domain.DriverOffline, domain.DriverBusy, domain.DriverUnavailable:
	default:
		response.Error(w, apperr.ValidationError("status must be one of online, offline, busy, unavailable"))
		return
	}

	if err := h.Dispatch.SetStatus(r.Context(), claims.UserID, status); err != nil {
		writeAppError(w, err)
		return
	}
	response.Success(w, map[string]any{"status": string(status)})
}

// DriverLocationUpdate implements PATCH /driver/location.
func (h *Handler) DriverLocationUpdate(w http.ResponseWriter, r *http.Request) {
	claims, ok := principal(w, r)
	if !ok {
		return
	}
	if !authz.Evaluate(claims, authz.OpDriverProfile, authz.Target{}) {
		forbidden(w)
		return
	}

	var body struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := decodeJSON(r, &body); err != nil {
		response.Error(w, apperr.ValidationError("invalid request body"))
		return
	}

	if err := h.Dispatch.UpdateLocation(r.Context(), claims.UserID, body.Latitude, body.Longitude); err != nil {
		writeAppError(w, err)
		return
	}
	response.Success(w, map[string]any{"updated": true})
}
