package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"cartify/backend/internal/domain"
	"cartify/backend/internal/events"
	"cartify/backend/internal/payment"
	"cartify/backend/internal/store"
)

// CreatePosBill opens a pending POS bill for a billing group at the counter.
// A billId that already has a POS bill in any state is refused.
func (s *Service) CreatePosBill(ctx context.Context, billID string) (domain.PosBill, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return domain.PosBill{}, err
	}
	billID, err = normalizeBillID(billID)
	if err != nil {
		return domain.PosBill{}, err
	}

	existing, err := s.repo.FindPosBillsByBillID(ctx, billID)
	if err != nil {
		return domain.PosBill{}, err
	}
	if len(existing) > 0 {
		return domain.PosBill{}, fmt.Errorf("%w: pos bill for %s", store.ErrDuplicate, billID)
	}

	lines, err := s.billingLines(ctx, billID)
	if err != nil {
		return domain.PosBill{}, err
	}
	if !ownsAll(lines, actor.UserID) {
		return domain.PosBill{}, fmt.Errorf("%w: bill %s has products of another admin", ErrForbidden, billID)
	}

	_, total, _ := summarize(lines)
	return s.openPosBill(ctx, billID, lines, total, domain.SourceAdmin)
}

// StartOnlinePayment opens a pending POS bill and a matching payment intent
// at the gateway. The client completes the payment with the returned secret
// and the outcome arrives through the webhook.
func (s *Service) StartOnlinePayment(ctx context.Context, billID string) (domain.OnlinePaymentResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.OnlinePaymentResponse{}, err
	}
	billID, err = normalizeBillID(billID)
	if err != nil {
		return domain.OnlinePaymentResponse{}, err
	}

	lines, err := s.billingLines(ctx, billID)
	if err != nil {
		return domain.OnlinePaymentResponse{}, err
	}
	if err := s.authorizeBillAccess(ctx, actor, lines); err != nil {
		return domain.OnlinePaymentResponse{}, err
	}

	views, total, _ := summarize(lines)
	bill, err := s.openPosBill(ctx, billID, lines, total, domain.SourceOnline)
	if err != nil {
		return domain.OnlinePaymentResponse{}, err
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, payment.IntentRequest{
		AmountMinor:    total.Shift(2).Round(0).IntPart(),
		Currency:       s.currency,
		CorrelationID:  billID,
		PosBillID:      bill.ID,
		Description:    "Payment for Bill ID " + billID,
		IdempotencyKey: fmt.Sprintf("pos-bill-%d", bill.ID),
	})
	if err != nil {
		if _, _, terr := s.transition(ctx, bill.ID, domain.PosBillFailed, "gateway_error"); terr != nil {
			log.Printf("[service] WARN: could not fail pos bill %d after gateway error: %v", bill.ID, terr)
		}
		return domain.OnlinePaymentResponse{}, fmt.Errorf("create payment intent for %s: %w", billID, err)
	}

	if err := s.repo.AttachPaymentIntent(ctx, bill.ID, intent.ID); err != nil {
		log.Printf("[service] WARN: failed to attach intent %s to pos bill %d: %v", intent.ID, bill.ID, err)
	} else {
		bill.PaymentIntentID = intent.ID
	}

	return domain.OnlinePaymentResponse{
		ClientSecret:   intent.ClientSecret,
		BillingDetails: views,
		TotalAmount:    money(total),
		PosBill:        bill,
	}, nil
}

func (s *Service) openPosBill(ctx context.Context, billID string, lines []domain.BillingLineDetail, total decimal.Decimal, source domain.PosBillSource) (domain.PosBill, error) {
	company, err := s.repo.GetCompanyByUserID(ctx, lines[0].OwnerUserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.PosBill{}, fmt.Errorf("%w: company owning bill %s", store.ErrNotFound, billID)
		}
		return domain.PosBill{}, err
	}

	now := s.now()
	created, err := s.repo.CreatePosBill(ctx, domain.PosBill{
		BillID:      billID,
		CompanyID:   company.ID,
		Status:      domain.PosBillPending,
		TotalAmount: total,
		Source:      source,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.billTTL),
	})
	if err != nil {
		return domain.PosBill{}, err
	}

	s.scheduler.ScheduleExpiry(created.ID, created.ExpiresAt)
	s.logAudit(ctx, "pos_bill_create", "pos_bill", idString(created.ID), fmt.Sprintf("billId=%s,source=%s,total=%s", billID, source, money(total)))
	s.publish(ctx, events.TypePosBillCreated, *created, string(source))
	log.Printf("[service] pos bill %d opened for %s (%s), expires %s", created.ID, billID, source, created.ExpiresAt.Format("15:04:05"))
	return *created, nil
}

// SetPosBillAsPaid settles a pending bill at the counter and deducts its
// stock. Settling an already paid bill succeeds without a second deduction.
func (s *Service) SetPosBillAsPaid(ctx context.Context, posBillID int64) (domain.SettlementResponse, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return domain.SettlementResponse{}, err
	}
	if posBillID < 1 {
		return domain.SettlementResponse{}, fmt.Errorf("%w: id must be positive", store.ErrInvalidInput)
	}

	bill, err := s.repo.GetPosBill(ctx, posBillID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.SettlementResponse{}, fmt.Errorf("%w: pos bill %d", store.ErrNotFound, posBillID)
		}
		return domain.SettlementResponse{}, err
	}
	lines, err := s.repo.ListBillingLines(ctx, bill.BillID)
	if err != nil {
		return domain.SettlementResponse{}, err
	}
	if !ownsAll(lines, actor.UserID) {
		return domain.SettlementResponse{}, fmt.Errorf("%w: pos bill %d has products of another admin", ErrForbidden, posBillID)
	}

	settled, applied, err := s.transition(ctx, bill.ID, domain.PosBillPaid, "admin")
	if err != nil {
		return domain.SettlementResponse{}, err
	}
	if !applied && settled.Status != domain.PosBillPaid {
		return domain.SettlementResponse{}, fmt.Errorf("%w: pos bill %d is %s", ErrPosBillClosed, posBillID, settled.Status)
	}
	if applied {
		s.cancelIntent(ctx, settled)
	}
	return domain.SettlementResponse{PosBill: *settled, Applied: applied}, nil
}

// transition is the only path that moves a POS bill out of pending. It is a
// conditional write: when another caller closed the bill first, applied is
// false and the returned bill carries the state that won.
func (s *Service) transition(ctx context.Context, id int64, to domain.PosBillStatus, trigger string) (*domain.PosBill, bool, error) {
	if !domain.CanTransition(domain.PosBillPending, to) {
		return nil, false, fmt.Errorf("%w: cannot move a pos bill to %s", store.ErrInvalidInput, to)
	}

	var (
		bill    *domain.PosBill
		applied bool
		err     error
	)
	at := s.now()
	if to == domain.PosBillPaid {
		bill, applied, err = s.repo.SettlePosBill(ctx, id, at, trigger)
	} else {
		bill, applied, err = s.repo.TransitionPosBill(ctx, id, domain.PosBillPending, to, at, trigger)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, fmt.Errorf("%w: pos bill %d", store.ErrNotFound, id)
		}
		return nil, false, err
	}
	if !applied {
		return bill, false, nil
	}

	s.scheduler.Cancel(bill.ID)
	s.logAudit(ctx, "pos_bill_"+string(bill.Status), "pos_bill", idString(bill.ID), fmt.Sprintf("billId=%s,trigger=%s", bill.BillID, trigger))
	s.publish(ctx, events.TypeForStatus(bill.Status), *bill, trigger)
	log.Printf("[service] pos bill %d (%s) -> %s by %s", bill.ID, bill.BillID, bill.Status, trigger)
	return bill, true, nil
}

// ListPendingPosBills pages through the pending bills of the calling admin's
// company. search matches the customer name.
func (s *Service) ListPendingPosBills(ctx context.Context, page int, limit int, search string) (domain.PendingPosBillsResponse, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return domain.PendingPosBillsResponse{}, err
	}
	company, err := s.repo.GetCompanyByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.PendingPosBillsResponse{}, fmt.Errorf("%w: company profile", store.ErrNotFound)
		}
		return domain.PendingPosBillsResponse{}, err
	}

	page, limit, offset := pageWindow(page, limit)
	rows, total, err := s.repo.ListPosBills(ctx, store.PosBillFilter{
		CompanyID:    company.ID,
		Status:       domain.PosBillPending,
		CustomerName: strings.TrimSpace(search),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		return domain.PendingPosBillsResponse{}, err
	}

	return domain.PendingPosBillsResponse{
		PendingBills: summaries(rows),
		CurrentPage:  page,
		TotalPages:   totalPages(total, limit),
		TotalRecords: total,
	}, nil
}

// PaymentHistory lists paid bills: a customer sees their own, an admin sees
// the company's.
func (s *Service) PaymentHistory(ctx context.Context, query domain.PaymentHistoryQuery) (domain.PaymentHistoryResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.PaymentHistoryResponse{}, err
	}
	if query.StartRange != nil && query.EndRange != nil && query.EndRange.Before(*query.StartRange) {
		return domain.PaymentHistoryResponse{}, fmt.Errorf("%w: endRange is before startRange", store.ErrInvalidInput)
	}

	page, limit, offset := pageWindow(query.Page, query.Limit)
	filter := store.PosBillFilter{
		Status: domain.PosBillPaid,
		BillID: strings.TrimSpace(query.BillID),
		From:   query.StartRange,
		To:     query.EndRange,
		Limit:  limit,
		Offset: offset,
	}

	switch actor.Role {
	case domain.RoleCustomer:
		customer, err := s.repo.GetCustomerByUserID(ctx, actor.UserID)
		if err != nil {
			return domain.PaymentHistoryResponse{}, err
		}
		filter.CustomerID = customer.ID
	case domain.RoleAdmin:
		company, err := s.repo.GetCompanyByUserID(ctx, actor.UserID)
		if err != nil {
			return domain.PaymentHistoryResponse{}, err
		}
		filter.CompanyID = company.ID
	default:
		return domain.PaymentHistoryResponse{}, ErrForbidden
	}

	rows, total, err := s.repo.ListPosBills(ctx, filter)
	if err != nil {
		return domain.PaymentHistoryResponse{}, err
	}

	return domain.PaymentHistoryResponse{
		PosBills:     summaries(rows),
		CurrentPage:  page,
		TotalPages:   totalPages(total, limit),
		TotalRecords: total,
	}, nil
}

func summaries(rows []domain.PosBillDetail) []domain.PosBillSummary {
	out := make([]domain.PosBillSummary, 0, len(rows))
	for _, row := range rows {
		views, total, weight := summarize(row.Lines)
		out = append(out, domain.PosBillSummary{
			ID:           row.ID,
			BillID:       row.BillID,
			Status:       row.Status,
			CustomerName: row.CustomerName,
			ProductData:  views,
			TotalBilling: money(total),
			TotalWeight:  money(weight),
			CreatedAt:    row.CreatedAt,
			ExpiresAt:    row.ExpiresAt,
		})
	}
	return out
}
