// Package apperr defines the structured error catalog shared by every
// component. Every error that can reach a client carries a stable code and
// an HTTP status; internal failures are never exposed with their detail.
package apperr

import "net/http"

// Code is a stable machine-readable error identifier.
type Code string

const (
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeMissingToken    Code = "MISSING_TOKEN"
	CodeInvalidToken    Code = "INVALID_TOKEN"
	CodeTokenExpired    Code = "TOKEN_EXPIRED"
	CodeAccountInactive Code = "ACCOUNT_INACTIVE"

	CodeInsufficientPermissions Code = "INSUFFICIENT_PERMISSIONS"
	CodeForbidden               Code = "FORBIDDEN"

	CodeProductNotFound Code = "PRODUCT_NOT_FOUND"
	CodeOrderNotFound   Code = "ORDER_NOT_FOUND"
	CodeBranchNotFound  Code = "BRANCH_NOT_FOUND"
	CodeCartItemNotFound Code = "CART_ITEM_NOT_FOUND"

	CodeEmptyCart          Code = "EMPTY_CART"
	CodeBranchClosed       Code = "BRANCH_CLOSED"
	CodeProductUnavailable Code = "PRODUCT_UNAVAILABLE"
	CodePriceDrift         Code = "PRICE_DRIFT"
	CodeIllegalTransition  Code = "ILLEGAL_TRANSITION"
	CodeStaleState         Code = "STALE_STATE"

	CodeOrderAlreadyTaken Code = "ORDER_ALREADY_TAKEN"
	CodeNotAssigned       Code = "NOT_ASSIGNED"

	CodePaymentGatewayError  Code = "PAYMENT_GATEWAY_ERROR"
	CodeRoutingProviderError Code = "ROUTING_PROVIDER_ERROR"

	CodeInternalError Code = "INTERNAL_ERROR"
)

// Error is the structured error returned by every component. It implements
// the error interface so it can flow through normal Go error handling, and
// carries enough shape for the transport layer to render spec §6's envelope
// without re-deriving an HTTP status from a string code.
type Error struct {
	Code       Code
	Message    string
	StatusCode int
	Details    map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code Code, status int, message string) *Error {
	return &Error{Code: code, Message: message, StatusCode: status}
}

func ValidationError(message string) *Error {
	return newError(CodeValidationError, http.StatusBadRequest, message)
}

func MissingToken() *Error {
	return newError(CodeMissingToken, http.StatusUnauthorized, "authorization token is required")
}

func InvalidToken() *Error {
	return newError(CodeInvalidToken, http.StatusUnauthorized, "authorization token is invalid")
}

func TokenExpired() *Error {
	return newError(CodeTokenExpired, http.StatusUnauthorized, "authorization token has expired")
}

func AccountInactive() *Error {
	return newError(CodeAccountInactive, http.StatusUnauthorized, "account is not active")
}

func InsufficientPermissions() *Error {
	return newError(CodeInsufficientPermissions, http.StatusForbidden, "principal lacks required permission")
}

func Forbidden(message string) *Error {
	if message == "" {
		message = "operation is not permitted for this principal"
	}
	return newError(CodeForbidden, http.StatusForbidden, message)
}

func NotFound(code Code, message string) *Error {
	return newError(code, http.StatusNotFound, message)
}

func EmptyCart() *Error {
	return newError(CodeEmptyCart, http.StatusConflict, "cart has no items")
}

func BranchClosed() *Error {
	return newError(CodeBranchClosed, http.StatusConflict, "branch is closed")
}

func ProductUnavailable(message string) *Error {
	return newError(CodeProductUnavailable, http.StatusConflict, message)
}

// PriceDrift carries the freshly computed price so the client can retry
// with the customer's informed consent, per spec §4.3 step 3.
func PriceDrift(currentPrice string) *Error {
	e := newError(CodePriceDrift, http.StatusConflict, "item price has changed since it was added to the cart")
	e.Details = map[string]any{"currentPrice": currentPrice}
	return e
}

func IllegalTransition(from, to string) *Error {
	e := newError(CodeIllegalTransition, http.StatusConflict, "transition "+from+" -> "+to+" is not allowed")
	e.Details = map[string]any{"from": from, "to": to}
	return e
}

func StaleState() *Error {
	return newError(CodeStaleState, http.StatusConflict, "order state changed concurrently; reload and retry")
}

func OrderAlreadyTaken() *Error {
	return newError(CodeOrderAlreadyTaken, http.StatusConflict, "order was already claimed by another courier")
}

func NotAssigned() *Error {
	return newError(CodeNotAssigned, http.StatusConflict, "driver is not the order's assigned courier")
}

func PaymentGatewayError(message string) *Error {
	return newError(CodePaymentGatewayError, http.StatusBadGateway, message)
}

func RoutingProviderError(message string) *Error {
	return newError(CodeRoutingProviderError, http.StatusBadGateway, message)
}

func Internal(message string) *Error {
	if message == "" {
		message = "internal error"
	}
	return newError(CodeInternalError, http.StatusInternalServerError, "internal error")
}

// As extracts an *Error from err, wrapping unknown errors as CodeInternalError
// so the transport layer never has to special-case a bare error value.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return Internal(err.Error())
}
