package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"delixmi-order-core/internal/apperr"
	"delixmi-order-core/internal/order"
)

// ErrInvalidSignature is returned when a webhook's signature does not match
// the configured secret; the caller should ack with 401 so the gateway does
// not endlessly retry a forged or misconfigured delivery.
var ErrInvalidSignature = errors.New("payment: invalid webhook signature")

// EventPublisher is the subset of order.EventPublisher the Coordinator uses
// to emit PAYMENT_FAILED after a failed create_preference call, and
// PAYMENT_RECEIVED / ORDER_CANCELLED after webhook outcomes.
type EventPublisher interface {
	PublishRestaurantEvent(restaurantID int64, eventType string, data any)
}

// Coordinator implements C4: create_preference and handle_webhook.
type Coordinator struct {
	orders          *order.Repository
	gateway         Gateway
	log             *WebhookLog
	events          EventPublisher
	webhookSecret   string
	callbackBaseURL string
	logger          *zap.Logger
}

func NewCoordinator(orders *order.Repository, gateway Gateway, log *WebhookLog, events EventPublisher, webhookSecret, callbackBaseURL string, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		orders:          orders,
		gateway:         gateway,
		log:             log,
		events:          events,
		webhookSecret:   webhookSecret,
		callbackBaseURL: callbackBaseURL,
		logger:          logger,
	}
}

// CreatePreference implements order.PaymentPreferenceCreator: spec §4.4's
// card-path entry point, invoked after PlaceOrder's commit.
func (c *Coordinator) CreatePreference(ctx context.Context, orderID int64) error {
	ord, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("payment: load order: %w", err)
	}

	resp, err := c.gateway.CreatePreference(ctx, PreferenceRequest{
		OrderID:           orderID,
		Amount:            ord.Total,
		ExternalReference: ord.ExternalReference,
		NotificationURL:   c.callbackBaseURL + "/webhooks/mercadopago",
	})
	if err != nil {
		if failErr := c.orders.SetPaymentFailed(ctx, orderID); failErr != nil {
			c.logger.Error("payment: mark failed after gateway error", zap.Error(failErr), zap.Int64("order_id", orderID))
		}
		if c.events != nil {
			c.events.PublishRestaurantEvent(ord.RestaurantID, "PAYMENT_FAILED", ord)
		}
		return fmt.Errorf("payment: create preference: %w", err)
	}

	if err := c.orders.SetPreferenceID(ctx, orderID, resp.IntentID); err != nil {
		return fmt.Errorf("payment: persist preference id: %w", err)
	}
	return nil
}

// WebhookEvent is the provider-agnostic shape the Coordinator needs out of
// a raw webhook body: which order it refers to, and what happened to the
// payment. HandleWebhook decodes the raw request body into this after the
// body's signature has been verified.
type WebhookEvent struct {
	ExternalReference string `json:"external_reference"`
	ProviderPaymentID string `json:"data_id"`
	Status            string `json:"status"` // "approved" | "rejected" | "pending"
}

// VerifySignature checks the provider's HMAC-SHA256 signature over the raw
// request body, the way the host's payment_usecase.go verifies Razorpay
// webhooks: HMAC_SHA256(body, webhook_secret), constant-time compare.
func (c *Coordinator) VerifySignature(payload []byte, signature string) bool {
	expected := hmacHex(payload, c.webhookSecret)
	return hmac.Equal([]byte(signature), []byte(expected))
}

func hmacHex(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// HandleWebhook implements spec §4.4's handle_webhook, dispatching
// approved/rejected/pending. The order is resolved by external_reference
// only (the payload's provider payment id is decoded but not used for
// lookup); an approved replay is a no-op because SetPaymentStatusOnApproval
// checks the order's persisted payment_status.
func (c *Coordinator) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	signatureValid := c.VerifySignature(payload, signature)
	if !signatureValid {
		_ = c.log.Record(ctx, "mercadopago", "signature_rejected", payload, false, nil, "invalid signature")
		return ErrInvalidSignature
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		_ = c.log.Record(ctx, "mercadopago", "parse_error", payload, true, nil, err.Error())
		return fmt.Errorf("payment: decode webhook: %w", err)
	}

	extRef, err := parseExternalReference(event.ExternalReference)
	if err != nil {
		_ = c.log.Record(ctx, "mercadopago", event.Status, payload, true, nil, "unparseable external_reference")
		return fmt.Errorf("payment: %w", err)
	}

	orderID, err := c.orders.FindOrderIDByExternalReference(ctx, extRef)
	if err != nil {
		_ = c.log.Record(ctx, "mercadopago", event.Status, payload, true, nil, "order not found")
		// Unknown order: ack without error so the provider stops retrying a
		// delivery that can never resolve.
		return nil
	}

	switch event.Status {
	case "approved":
		changed, err := c.orders.SetPaymentStatusOnApproval(ctx, orderID)
		if err != nil {
			_ = c.log.Record(ctx, "mercadopago", event.Status, payload, true, &orderID, err.Error())
			return fmt.Errorf("payment: approve: %w", err)
		}
		if changed && c.events != nil {
			if ord, loadErr := c.orders.GetByID(ctx, orderID); loadErr == nil {
				c.events.PublishRestaurantEvent(ord.RestaurantID, "PAYMENT_RECEIVED", ord)
			} else {
				c.logger.Error("payment: load order after approval", zap.Error(loadErr), zap.Int64("order_id", orderID))
			}
		}
	case "rejected":
		if err := c.orders.SetPaymentStatusOnRejection(ctx, orderID); err != nil {
			_ = c.log.Record(ctx, "mercadopago", event.Status, payload, true, &orderID, err.Error())
			return fmt.Errorf("payment: reject: %w", err)
		}
		if c.events != nil {
			if ord, loadErr := c.orders.GetByID(ctx, orderID); loadErr == nil {
				c.events.PublishRestaurantEvent(ord.RestaurantID, "ORDER_CANCELLED", ord)
			} else {
				c.logger.Error("payment: load order after rejection", zap.Error(loadErr), zap.Int64("order_id", orderID))
			}
		}
	case "pending":
		// No state change; the delivery is logged and acked.
	default:
		_ = c.log.Record(ctx, "mercadopago", event.Status, payload, true, &orderID, "unrecognized status")
		return nil
	}

	return c.log.Record(ctx, "mercadopago", event.Status, payload, true, &orderID, "")
}

func parseExternalReference(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, apperr.ValidationError("external_reference is not a valid uuid")
	}
	return id, nil
}
