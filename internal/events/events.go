// Package events publishes POS bill lifecycle notifications for downstream
// consumers (receipts, reconciliation, reporting).
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"cartify/backend/internal/domain"
)

const (
	TypePosBillCreated           = "pos_bill.created"
	TypePosBillPaid              = "pos_bill.paid"
	TypePosBillCancelled         = "pos_bill.cancelled"
	TypePosBillFailed            = "pos_bill.failed"
	TypePosBillPaymentAfterClose = "pos_bill.payment_after_close"
)

const producerName = "cartify-backend"

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type PosBillPayload struct {
	PosBillID   int64                `json:"pos_bill_id"`
	BillID      string               `json:"bill_id"`
	CompanyID   int64                `json:"company_id"`
	Status      domain.PosBillStatus `json:"status"`
	TotalAmount string               `json:"total_amount"`
	Source      domain.PosBillSource `json:"source"`
	Trigger     string               `json:"trigger,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, _ Envelope) error {
	return nil
}

// ForPosBill wraps a bill snapshot in a versioned envelope keyed by billId.
func ForPosBill(eventType string, bill domain.PosBill, trigger string, at time.Time) (Envelope, error) {
	payload, err := json.Marshal(PosBillPayload{
		PosBillID:   bill.ID,
		BillID:      bill.BillID,
		CompanyID:   bill.CompanyID,
		Status:      bill.Status,
		TotalAmount: bill.TotalAmount.StringFixed(2),
		Source:      bill.Source,
		Trigger:     trigger,
	})
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    at.UTC(),
		Producer:      producerName,
		CorrelationID: bill.BillID,
		Payload:       payload,
	}, nil
}

// TypeForStatus names the event emitted when a bill enters status.
func TypeForStatus(status domain.PosBillStatus) string {
	switch status {
	case domain.PosBillPaid:
		return TypePosBillPaid
	case domain.PosBillCancelled:
		return TypePosBillCancelled
	case domain.PosBillFailed:
		return TypePosBillFailed
	default:
		return TypePosBillCreated
	}
}
