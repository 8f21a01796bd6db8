package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"delixmi-order-core/internal/apperr"
	"delixmi-order-core/internal/auth"
	"delixmi-order-core/internal/middleware"
	"delixmi-order-core/pkg/response"
)

var errMissingParam = errors.New("missing param")

func readPathString(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func readPathInt64(r *http.Request, key string) (int64, error) {
	value := readPathString(r, key)
	if value == "" {
		return 0, errMissingParam
	}
	var out int64
	_, err := fmt.Sscan(value, &out)
	return out, err
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

// principal fetches the authenticated claims middleware.Auth injected, or
// writes an INTERNAL_ERROR and returns false if a handler was mounted
// without the auth middleware by mistake.
func principal(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		response.Error(w, apperr.Internal("authentication context missing"))
		return nil, false
	}
	return claims, true
}

func writeAppError(w http.ResponseWriter, err error) {
	response.Error(w, apperr.As(err))
}

func forbidden(w http.ResponseWriter) {
	response.Error(w, apperr.InsufficientPermissions())
}
