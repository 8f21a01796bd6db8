// Package payment implements the Payment Coordinator (C4): creating payment
// intents with the card gateway and consuming its webhook callbacks
// idempotently to advance Order.payment_status.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PreferenceRequest is everything the gateway needs to create a payment
// intent for one order (spec §4.4's create_preference).
type PreferenceRequest struct {
	OrderID            int64
	Amount             decimal.Decimal
	ExternalReference  uuid.UUID
	NotificationURL    string
}

// PreferenceResponse is the {intent_id, redirect_url} pair spec §4.4 names.
type PreferenceResponse struct {
	IntentID    string
	RedirectURL string
}

// Gateway abstracts the card payment provider so Coordinator stays testable
// without a live network dependency.
type Gateway interface {
	CreatePreference(ctx context.Context, req PreferenceRequest) (PreferenceResponse, error)
}

// HTTPGateway talks to a MercadoPago-compatible preference API over plain
// net/http, the way the host's external integrations are built: a bounded
// client timeout, an API-key bearer header, and a thin JSON envelope.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type preferenceRequestBody struct {
	ExternalReference string  `json:"external_reference"`
	NotificationURL    string  `json:"notification_url"`
	Items              []item  `json:"items"`
}

type item struct {
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type preferenceResponseBody struct {
	ID          string `json:"id"`
	InitPoint   string `json:"init_point"`
}

func (g *HTTPGateway) CreatePreference(ctx context.Context, req PreferenceRequest) (PreferenceResponse, error) {
	body := preferenceRequestBody{
		ExternalReference: req.ExternalReference.String(),
		NotificationURL:    req.NotificationURL,
		Items: []item{{
			Title:     fmt.Sprintf("order #%d", req.OrderID),
			Quantity:  1,
			UnitPrice: req.Amount.StringFixed(2),
		}},
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return PreferenceResponse{}, fmt.Errorf("payment: encode preference request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/checkout/preferences", bytes.NewReader(encoded))
	if err != nil {
		return PreferenceResponse{}, fmt.Errorf("payment: build preference request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return PreferenceResponse{}, fmt.Errorf("payment: preference request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return PreferenceResponse{}, fmt.Errorf("payment: gateway responded %d", resp.StatusCode)
	}

	var parsed preferenceResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return PreferenceResponse{}, fmt.Errorf("payment: decode preference response: %w", err)
	}

	return PreferenceResponse{IntentID: parsed.ID, RedirectURL: parsed.InitPoint}, nil
}
