package service

import (
	"context"
	"errors"
	"log"

	"cartify/backend/internal/domain"
	"cartify/backend/internal/store"
)

// ExpirePosBill cancels a bill that is still pending. It is called by the
// bill's one-shot timer; a bill settled in the meantime is left alone.
func (s *Service) ExpirePosBill(ctx context.Context, id int64) (bool, error) {
	return s.expire(ctx, id, "timer")
}

// ExpireStalePosBills cancels every pending bill whose deadline has passed,
// in batches, and reports how many it closed. Deadlines are stored with the
// bill, so this also catches bills whose timers died with a previous process.
func (s *Service) ExpireStalePosBills(ctx context.Context) (int, error) {
	cancelled := 0
	for {
		listCtx, cancel := context.WithTimeout(ctx, expireStepTimeout)
		due, err := s.repo.ListExpiredPosBills(listCtx, s.now(), sweepBatch)
		cancel()
		if err != nil {
			return cancelled, err
		}

		var batchErr error
		for _, bill := range due {
			applied, err := s.expire(ctx, bill.ID, "sweep")
			if err != nil {
				log.Printf("[expiry] WARN: sweep could not cancel pos bill %d: %v", bill.ID, err)
				batchErr = errors.Join(batchErr, err)
				continue
			}
			if applied {
				cancelled++
			}
		}
		if batchErr != nil || len(due) < sweepBatch {
			return cancelled, batchErr
		}
		if err := ctx.Err(); err != nil {
			return cancelled, err
		}
	}
}

// expire gives each bill its own deadline so a long backlog cannot starve
// the bills at the end of a sweep.
func (s *Service) expire(ctx context.Context, id int64, trigger string) (bool, error) {
	stepCtx, cancel := context.WithTimeout(ctx, expireStepTimeout)
	defer cancel()

	bill, applied, err := s.transition(stepCtx, id, domain.PosBillCancelled, trigger)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if applied {
		s.cancelIntent(ctx, bill)
	}
	return applied, nil
}

// cancelIntent voids the open gateway intent of a bill that was just closed,
// so the customer can no longer pay it. The bill is already committed, so
// the call outlives a cancelled caller context and failures are only logged.
func (s *Service) cancelIntent(ctx context.Context, bill *domain.PosBill) {
	if bill.PaymentIntentID == "" {
		return
	}
	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), intentCancelTimeout)
	defer cancel()

	if err := s.gateway.CancelPaymentIntent(cancelCtx, bill.PaymentIntentID); err != nil {
		log.Printf("[service] WARN: failed to cancel intent %s of %s pos bill %d: %v", bill.PaymentIntentID, bill.Status, bill.ID, err)
	}
}
