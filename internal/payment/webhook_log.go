package payment

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WebhookLog persists every inbound webhook delivery attempt for audit,
// grounded in the host's LogWebhook idiom (payment_webhook_log table). It is
// write-only: HandleWebhook's replay handling reads order state, not this log.
type WebhookLog struct {
	db *pgxpool.Pool
}

func NewWebhookLog(db *pgxpool.Pool) *WebhookLog {
	return &WebhookLog{db: db}
}

// Record writes one delivery attempt. orderID is nil when the order could
// not be resolved from the payload.
func (l *WebhookLog) Record(ctx context.Context, provider, eventType string, payload []byte, signatureValid bool, orderID *int64, note string) error {
	_, err := l.db.Exec(ctx, `
		insert into payment_webhook_log (provider, event_type, payload, signature_valid, order_id, note, received_at)
		values ($1,$2,$3,$4,$5,$6, now())
	`, provider, eventType, payload, signatureValid, orderID, note)
	if err != nil {
		return fmt.Errorf("payment: record webhook log: %w", err)
	}
	return nil
}
