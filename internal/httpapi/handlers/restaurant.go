package handlers

import (
	"net/http"

	"delixmi-order-core/internal/apperr"
	"delixmi-order-core/internal/authz"
	"delixmi-order-core/internal/domain"
	"delixmi-order-core/pkg/response"
)

// OrderDetail implements GET /orders/:orderId, readable by the owning
// customer or by restaurant staff scoped to the order's restaurant.
func (h *Handler) OrderDetail(w http.ResponseWriter, r *http.Request) {
	claims, ok := principal(w, r)
	if !ok {
		return
	}

	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, apperr.ValidationError("orderId is required"))
		return
	}

	ord, err := h.Orders.GetByID(r.Context(), orderID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	target := authz.Target{RestaurantID: ord.RestaurantID, BranchID: ord.BranchID, OwnerUserID: ord.CustomerID}
	if !authz.Evaluate(claims, authz.OpOrderRead, target) {
		forbidden(w)
		return
	}
	response.Success(w, renderOrder(ord))
}

// OrderCancel implements the customer-initiated leg of the state table:
// pending -> cancelled, triggered by the order's own customer.
func (h *Handler) OrderCancel(w http.ResponseWriter, r *http.Request) {
	claims, ok := principal(w, r)
	if !ok {
		return
	}

	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, apperr.ValidationError("orderId is required"))
		return
	}

	ord, err := h.Orders.GetByID(r.Context(), orderID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	target := authz.Target{
		RestaurantID:    ord.RestaurantID,
		BranchID:        ord.BranchID,
		OwnerUserID:     ord.CustomerID,
		OrderFromStatus: ord.Status,
	}
	if !authz.Evaluate(claims, authz.OpOrderCancel, target) {
		forbidden(w)
		return
	}

	updated, err := h.StateMachine.CancelByCustomer(r.Context(), orderID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	response.Success(w, renderOrder(updated))
}

// RestaurantOrderStatus implements PATCH /restaurant/orders/:orderId/status:
// the owner/branch-manager/kitchen-staff leg of the state table.
func (h *Handler) RestaurantOrderStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := principal(w, r)
	if !ok {
		return
	}

	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, apperr.ValidationError("orderId is required"))
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		response.Error(w, apperr.ValidationError("invalid request body"))
		return
	}
	to := domain.OrderStatus(body.Status)

	ord, err := h.Orders.GetByID(r.Context(), orderID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	target := authz.Target{
		RestaurantID:    ord.RestaurantID,
		BranchID:        ord.BranchID,
		OwnerUserID:     ord.CustomerID,
		OrderFromStatus: ord.Status,
		OrderToStatus:   to,
	}
	if !authz.Evaluate(claims, authz.OpOrderTransition, target) {
		forbidden(w)
		return
	}

	updated, err := h.StateMachine.Transition(r.Context(), orderID, ord.Status, to)
	if err != nil {
		writeAppError(w, err)
		return
	}
	response.Success(w, renderOrder(updated))
}
