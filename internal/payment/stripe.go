package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"cartify/backend/internal/domain"
)

const (
	metaBillID    = "billId"
	metaPosBillID = "posBillId"
)

var eventKinds = map[string]domain.PaymentEventKind{
	"payment_intent.succeeded":      domain.PaymentSucceeded,
	"payment_intent.payment_failed": domain.PaymentFailed,
	"payment_intent.canceled":       domain.PaymentCanceled,
}

type StripeGateway struct {
	api           *client.API
	webhookSecret string
	tolerance     time.Duration
}

func NewStripeGateway(secretKey string, webhookSecret string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{
		api:           api,
		webhookSecret: webhookSecret,
		tolerance:     webhook.DefaultTolerance,
	}
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if req.AmountMinor < 1 {
		return Intent{}, fmt.Errorf("payment amount must be positive, got %d", req.AmountMinor)
	}

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.AmountMinor),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String(req.Description),
	}
	params.Context = ctx
	params.AddMetadata(metaBillID, req.CorrelationID)
	params.AddMetadata(metaPosBillID, strconv.FormatInt(req.PosBillID, 10))
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("stripe create payment intent: %w", err)
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (g *StripeGateway) CancelPaymentIntent(ctx context.Context, intentID string) error {
	if intentID == "" {
		return nil
	}
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := g.api.PaymentIntents.Cancel(intentID, params); err != nil {
		return fmt.Errorf("stripe cancel payment intent %s: %w", intentID, err)
	}
	return nil
}

func (g *StripeGateway) ParseEvent(payload []byte, signature string) (domain.PaymentEvent, error) {
	if g.webhookSecret == "" {
		return domain.PaymentEvent{}, ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                g.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := domain.PaymentEvent{
		ID:      event.ID,
		RawType: string(event.Type),
		Kind:    domain.PaymentUnknown,
	}
	kind, known := eventKinds[string(event.Type)]
	if !known {
		return out, nil
	}
	out.Kind = kind

	if event.Data == nil {
		return out, nil
	}
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("decode payment intent: %w", err)
	}
	out.IntentID = intent.ID
	out.CorrelationID = strings.TrimSpace(intent.Metadata[metaBillID])
	if raw := strings.TrimSpace(intent.Metadata[metaPosBillID]); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			out.PosBillID = id
		}
	}
	return out, nil
}
