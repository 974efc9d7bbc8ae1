package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cartify/backend/internal/domain"
)

func TestForPosBillBuildsVersionedEnvelope(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	bill := domain.PosBill{
		ID:          4,
		BillID:      "BILL123456",
		CompanyID:   2,
		Status:      domain.PosBillPaid,
		TotalAmount: decimal.RequireFromString("20"),
		Source:      domain.SourceOnline,
	}

	env, err := ForPosBill(TypeForStatus(bill.Status), bill, "webhook", at)
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if env.EventType != TypePosBillPaid || env.EventVersion != 1 || env.CorrelationID != "BILL123456" {
		t.Fatalf("unexpected envelope header: %+v", env)
	}
	if env.EventID == "" || !env.OccurredAt.Equal(at) {
		t.Fatalf("expected event id and timestamp, got %+v", env)
	}

	var payload PosBillPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.TotalAmount != "20.00" || payload.Trigger != "webhook" || payload.PosBillID != 4 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestTypeForStatus(t *testing.T) {
	cases := map[domain.PosBillStatus]string{
		domain.PosBillPending:   TypePosBillCreated,
		domain.PosBillPaid:      TypePosBillPaid,
		domain.PosBillCancelled: TypePosBillCancelled,
		domain.PosBillFailed:    TypePosBillFailed,
	}
	for status, want := range cases {
		if got := TypeForStatus(status); got != want {
			t.Fatalf("TypeForStatus(%s) = %s, want %s", status, got, want)
		}
	}
}
