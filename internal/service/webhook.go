package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cartify/backend/internal/domain"
	"cartify/backend/internal/events"
	"cartify/backend/internal/store"
)

var eventTargets = map[domain.PaymentEventKind]domain.PosBillStatus{
	domain.PaymentSucceeded: domain.PosBillPaid,
	domain.PaymentFailed:    domain.PosBillFailed,
	domain.PaymentCanceled:  domain.PosBillCancelled,
}

// HandlePaymentEvent applies a verified gateway event. Redelivered events and
// events for bills that are already closed change nothing. An error means
// the event was not processed and the gateway should deliver it again.
func (s *Service) HandlePaymentEvent(ctx context.Context, ev domain.PaymentEvent) (domain.WebhookResult, error) {
	if ev.ID != "" {
		seen, err := s.deduper.Seen(ctx, ev.ID)
		if err != nil {
			log.Printf("[webhook] WARN: dedup lookup for %s failed: %v", ev.ID, err)
		} else if seen {
			log.Printf("[webhook] event %s already processed", ev.ID)
			return domain.WebhookResult{Received: true, Message: "duplicate event"}, nil
		}
	}

	target, known := eventTargets[ev.Kind]
	if !known {
		log.Printf("[webhook] ignoring event %s of type %s", ev.ID, ev.RawType)
		s.markProcessed(ctx, ev.ID)
		return domain.WebhookResult{Received: true, Message: "event ignored"}, nil
	}

	bill, err := s.correlate(ctx, ev)
	if err != nil {
		return domain.WebhookResult{}, err
	}

	trigger := "webhook:" + string(ev.Kind)
	updated, applied, err := s.transition(ctx, bill.ID, target, trigger)
	if err != nil {
		return domain.WebhookResult{}, fmt.Errorf("apply %s to pos bill %d: %w", ev.Kind, bill.ID, err)
	}

	result := domain.WebhookResult{Received: true, Applied: applied, Status: updated.Status}
	if !applied {
		log.Printf("[webhook] event %s left pos bill %d unchanged: already %s", ev.ID, updated.ID, updated.Status)
		result.Message = "pos bill already " + string(updated.Status)
		// A bill paid by an earlier success of the gateway is a replay; one
		// closed any other way means the customer was charged on top.
		if ev.Kind == domain.PaymentSucceeded && updated.ClosedBy != trigger {
			log.Printf("[webhook] WARN: payment captured for pos bill %d (intent %s) already %s by %s, needs reconciliation", updated.ID, ev.IntentID, updated.Status, updated.ClosedBy)
			s.publish(ctx, events.TypePosBillPaymentAfterClose, *updated, trigger)
		}
	}

	s.markProcessed(ctx, ev.ID)
	return result, nil
}

// correlate finds the POS bill an event is about. The posBillId metadata is
// preferred; a bare billId resolves to its newest POS bill.
func (s *Service) correlate(ctx context.Context, ev domain.PaymentEvent) (*domain.PosBill, error) {
	if ev.PosBillID > 0 {
		bill, err := s.repo.GetPosBill(ctx, ev.PosBillID)
		switch {
		case err == nil && (ev.CorrelationID == "" || bill.BillID == ev.CorrelationID):
			return bill, nil
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}

	if ev.CorrelationID == "" {
		if ev.PosBillID > 0 {
			return nil, fmt.Errorf("%w: pos bill %d", store.ErrNotFound, ev.PosBillID)
		}
		return nil, ErrMissingCorrelationID
	}

	bills, err := s.repo.FindPosBillsByBillID(ctx, ev.CorrelationID)
	if err != nil {
		return nil, err
	}
	if len(bills) == 0 {
		return nil, fmt.Errorf("%w: pos bill for %s", store.ErrNotFound, ev.CorrelationID)
	}
	return &bills[0], nil
}

func (s *Service) markProcessed(ctx context.Context, eventID string) {
	if eventID == "" {
		return
	}
	if err := s.deduper.Mark(ctx, eventID, webhookDedupTTL); err != nil {
		log.Printf("[webhook] WARN: failed to remember event %s: %v", eventID, err)
	}
}
