package payment

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v76/webhook"

	"cartify/backend/internal/domain"
)

const testWebhookSecret = "whsec_test_secret"

func signPayload(secret string, payload []byte, at time.Time) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	}).Header
}

func eventPayload(eventType string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_test_1",
		"object": "event",
		"type": %q,
		"data": {"object": {"id": "pi_123", "object": "payment_intent", "metadata": {"billId": "BILL123456", "posBillId": "7"}}}
	}`, eventType))
}

func TestParseEventMapsSucceeded(t *testing.T) {
	gw := NewStripeGateway("sk_test_unused", testWebhookSecret)
	payload := eventPayload("payment_intent.succeeded")

	ev, err := gw.ParseEvent(payload, signPayload(testWebhookSecret, payload, time.Now()))
	if err != nil {
		t.Fatalf("parse event: %v", err)
	}
	if ev.Kind != domain.PaymentSucceeded {
		t.Fatalf("expected payment_succeeded, got %s", ev.Kind)
	}
	if ev.ID != "evt_test_1" || ev.IntentID != "pi_123" {
		t.Fatalf("unexpected ids: %+v", ev)
	}
	if ev.CorrelationID != "BILL123456" || ev.PosBillID != 7 {
		t.Fatalf("expected correlation from metadata, got %+v", ev)
	}
}

func TestParseEventUnknownTypeIsAccepted(t *testing.T) {
	gw := NewStripeGateway("sk_test_unused", testWebhookSecret)
	payload := eventPayload("charge.refunded")

	ev, err := gw.ParseEvent(payload, signPayload(testWebhookSecret, payload, time.Now()))
	if err != nil {
		t.Fatalf("parse event: %v", err)
	}
	if ev.Kind != domain.PaymentUnknown || ev.RawType != "charge.refunded" {
		t.Fatalf("expected unknown kind, got %+v", ev)
	}
}

func TestParseEventRejectsBadSignature(t *testing.T) {
	gw := NewStripeGateway("sk_test_unused", testWebhookSecret)
	payload := eventPayload("payment_intent.succeeded")

	cases := map[string]string{
		"wrong secret": signPayload("whsec_other", payload, time.Now()),
		"stale":        signPayload(testWebhookSecret, payload, time.Now().Add(-time.Hour)),
		"missing":      "",
	}
	for name, header := range cases {
		if _, err := gw.ParseEvent(payload, header); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("%s: expected ErrInvalidSignature, got %v", name, err)
		}
	}
}

func TestParseEventRequiresWebhookSecret(t *testing.T) {
	gw := NewStripeGateway("sk_test_unused", "")
	if _, err := gw.ParseEvent([]byte(`{}`), "t=1,v1=00"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
