// Package routing implements the external distance/duration lookup the
// Pricing Engine (C1) consumes through pricing.DistanceProvider, grounded
// in the same HTTP-client-behind-an-interface shape internal/payment uses
// for the payment gateway.
package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"delixmi-order-core/internal/apperr"
	"delixmi-order-core/internal/pricing"
)

// HTTPProvider calls an external routing service for straight-line
// distance and estimated travel time between two points.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

type routeRequestBody struct {
	Origin      pricing.Point `json:"origin"`
	Destination pricing.Point `json:"destination"`
}

type routeResponseBody struct {
	DistanceKm  string `json:"distanceKm"`
	DurationMin int    `json:"durationMin"`
}

// Distance implements pricing.DistanceProvider. On any transport or
// decode failure it returns apperr.RoutingProviderError; PriceCart treats
// any provider error as a cue to price with its default 5 km distance and
// flags the result with IsDefaultDistance.
func (p *HTTPProvider) Distance(ctx context.Context, origin, destination pricing.Point) (pricing.DistanceResult, error) {
	body, err := json.Marshal(routeRequestBody{Origin: origin, Destination: destination})
	if err != nil {
		return pricing.DistanceResult{}, apperr.RoutingProviderError("could not encode route request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/route", bytes.NewReader(body))
	if err != nil {
		return pricing.DistanceResult{}, apperr.RoutingProviderError("could not build route request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return pricing.DistanceResult{}, apperr.RoutingProviderError(fmt.Sprintf("routing provider unreachable: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return pricing.DistanceResult{}, apperr.RoutingProviderError(fmt.Sprintf("routing provider returned status %d", resp.StatusCode))
	}

	var decoded routeResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return pricing.DistanceResult{}, apperr.RoutingProviderError("could not decode route response")
	}
	distanceKm, err := decimal.NewFromString(decoded.DistanceKm)
	if err != nil {
		return pricing.DistanceResult{}, apperr.RoutingProviderError("routing provider returned a malformed distance")
	}

	return pricing.DistanceResult{DistanceKm: distanceKm, DurationMin: decoded.DurationMin}, nil
}
