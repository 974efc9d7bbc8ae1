// Package payment adapts the external card processor.
package payment

import (
	"context"
	"errors"

	"cartify/backend/internal/domain"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrNotConfigured    = errors.New("payment gateway not configured")
)

type IntentRequest struct {
	AmountMinor    int64
	Currency       string
	CorrelationID  string
	PosBillID      int64
	Description    string
	IdempotencyKey string
}

type Intent struct {
	ID           string
	ClientSecret string
}

type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (Intent, error)
	CancelPaymentIntent(ctx context.Context, intentID string) error
	// ParseEvent verifies the signature header over payload before decoding.
	ParseEvent(payload []byte, signature string) (domain.PaymentEvent, error)
}

// Disabled is used when no processor credentials are configured.
type Disabled struct{}

func (Disabled) CreatePaymentIntent(_ context.Context, _ IntentRequest) (Intent, error) {
	return Intent{}, ErrNotConfigured
}

func (Disabled) CancelPaymentIntent(_ context.Context, _ string) error {
	return nil
}

func (Disabled) ParseEvent(_ []byte, _ string) (domain.PaymentEvent, error) {
	return domain.PaymentEvent{}, ErrNotConfigured
}
