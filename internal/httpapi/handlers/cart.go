package handlers

import (
	"fmt"
	"net/http"

	"delixmi-order-core/internal/apperr"
	"delixmi-order-core/internal/authz"
	"delixmi-order-core/pkg/response"
)

// CartAdd implements POST /cart/add.
func (h *Handler) CartAdd(w http.ResponseWriter, r *http.Request) {
	claims, ok := principal(w, r)
	if !ok {
		return
	}
	if !authz.Evaluate(claims, authz.OpCartMutate, authz.Target{OwnerUserID: claims.UserID}) {
		forbidden(w)
		return
	}

	var body struct {
		ProductID         int64   `json:"productId"`
		Quantity          int     `json:"quantity"`
		ModifierOptionIDs []int64 `json:"modifierOptionIds"`
	}
	if err := decodeJSON(r, &body); err != nil {
		response.Error(w, apperr.ValidationError("invalid request body"))
		return
	}

	item, err := h.Cart.Add(r.Context(), claims.UserID, body.ProductID, body.Quantity, body.ModifierOptionIDs)
	if err != nil {
		writeAppError(w, err)
		return
	}
	response.Created(w, renderCartItem(item))
}

// CartUpdate implements PUT /cart/update/:itemId.
func (h *Handler) CartUpdate(w http.ResponseWriter, r *http.Request) {
	claims, ok := principal(w, r)
	if !ok {
		return
	}
	if !authz.Evaluate(claims, authz.OpCartMutate, authz.Target{OwnerUserID: claims.UserID}) {
		forbidden(w)
		return
	}

	itemID, err := readPathInt64(r, "itemId")
	if err != nil {
		response.Error(w, apperr.ValidationError("itemId is required"))
		return
	}

	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeJSON(r, &body); err != nil {
		response.Error(w, apperr.ValidationError("invalid request body"))
		return
	}

	if err := h.Cart.UpdateQuantity(r.Context(), claims.UserID, itemID, body.Quantity); err != nil {
		writeAppError(w, err)
		return
	}
	response.Success(w, map[string]any{"itemId": itemID, "quantity": body.Quantity})
}

// CartRemove implements DELETE /cart/remove/:itemId.
func (h *Handler) CartRemove(w http.ResponseWriter, r *http.Request) {
	claims, ok := principal(w, r)
	if !ok {
		return
	}
	if !authz.Evaluate(claims, authz.OpCartMutate, authz.Target{OwnerUserID: claims.UserID}) {
		forbidden(w)
		return
	}

	itemID, err := readPathInt64(r, "itemId")
	if err != nil {
		response.Error(w, apperr.ValidationError("itemId is required"))
		return
	}
	if err := h.Cart.Remove(r.Context(), claims.UserID, itemID); err != nil {
		writeAppError(w, err)
		return
	}
	response.Success(w, map[string]any{"removed": itemID})
}

// CartClear implements DELETE /cart/clear, with an optional ?restaurantId=.
func (h *Handler) CartClear(w http.ResponseWriter, r *http.Request) {
	claims, ok := principal(w, r)
	if !ok {
		return
	}
	if !authz.Evaluate(claims, authz.OpCartMutate, authz.Target{OwnerUserID: claims.UserID}) {
		forbidden(w)
		return
	}

	var restaurantID *int64
	if raw := r.URL.Query().Get("restaurantId"); raw != "" {
		var id int64
		if _, err := fmt.Sscan(raw, &id); err != nil {
			response.Error(w, apperr.ValidationError("restaurantId must be numeric"))
			return
		}
		restaurantID = &id
	}

	if err := h.Cart.Clear(r.Context(), claims.UserID, restaurantID); err != nil {
		writeAppError(w, err)
		return
	}
	response.Success(w, map[string]any{"cleared": true})
}

// CartList implements GET /cart.
func (h *Handler) CartList(w http.ResponseWriter, r *http.Request) {
	claims, ok := principal(w, r)
	if !ok {
		return
	}
	if !authz.Evaluate(claims, authz.OpCartRead, authz.Target{OwnerUserID: claims.UserID}) {
		forbidden(w)
		return
	}

	summaries, err := h.Cart.List(r.Context(), claims.UserID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	views := make([]cartSummaryView, 0, len(summaries))
	for _, s := range summaries {
		views = append(views, renderCartSummary(s))
	}
	response.Success(w, views)
}
