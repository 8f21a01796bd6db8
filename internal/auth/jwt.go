// Package auth parses the bearer token issued by the external authentication
// service (out of scope per spec §1) into a Claims value carrying the
// principal's role bindings that internal/authz evaluates against.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"delixmi-order-core/internal/domain"
)

var (
	ErrTokenRequired = errors.New("token required")
	ErrTokenExpired  = errors.New("token expired")
)

// RoleBinding mirrors domain.RoleAssignment inside the token payload.
type RoleBinding struct {
	Role         domain.Role `json:"role"`
	RestaurantID *int64      `json:"restaurantId,omitempty"`
	BranchID     *int64      `json:"branchId,omitempty"`
}

// Claims is the decoded JWT payload: a principal identity plus every role
// binding the authentication service granted it.
type Claims struct {
	UserID   int64         `json:"userId"`
	Name     string        `json:"name"`
	IsActive bool          `json:"isActive"`
	Bindings []RoleBinding `json:"bindings"`
	jwt.RegisteredClaims
}

// HasRole reports whether the principal holds the given role in any binding,
// regardless of restaurant/branch scope; BindingsFor exposes the scopes.
func (c *Claims) HasRole(role domain.Role) bool {
	for _, b := range c.Bindings {
		if b.Role == role {
			return true
		}
	}
	return false
}

// BindingsFor returns every binding matching role, for scope checks that
// need the restaurant/branch IDs themselves (C8 consumes this).
func (c *Claims) BindingsFor(role domain.Role) []RoleBinding {
	var out []RoleBinding
	for _, b := range c.Bindings {
		if b.Role == role {
			out = append(out, b)
		}
	}
	return out
}

// ParseBearerToken extracts the raw token from an "Authorization: Bearer
// <token>" header value.
func ParseBearerToken(authHeader string) string {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// VerifyAccessToken parses and validates tokenString, restricted to HS256 to
// avoid algorithm-confusion attacks against the shared secret.
func VerifyAccessToken(tokenString string, secret string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenRequired
	}

	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}
