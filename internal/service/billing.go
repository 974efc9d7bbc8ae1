package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"cartify/backend/internal/billid"
	"cartify/backend/internal/domain"
	"cartify/backend/internal/store"
)

// CreateBilling turns the caller's cart into one group of billing lines under
// a freshly issued billId. Stock is checked but not reserved.
func (s *Service) CreateBilling(ctx context.Context, req domain.CreateBillingRequest) (domain.BillingResponse, error) {
	actor, err := requireRole(ctx, domain.RoleCustomer)
	if err != nil {
		return domain.BillingResponse{}, err
	}
	if len(req.ProductData) == 0 {
		return domain.BillingResponse{}, fmt.Errorf("%w: productData must contain at least one product", store.ErrInvalidInput)
	}
	for i, line := range req.ProductData {
		if line.ProductID < 1 || line.Quantity < 1 {
			return domain.BillingResponse{}, fmt.Errorf("%w: productData[%d] needs a productId and a positive quantity", store.ErrInvalidInput, i)
		}
	}

	customer, err := s.repo.GetCustomerByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.BillingResponse{}, fmt.Errorf("%w: customer profile", store.ErrNotFound)
		}
		return domain.BillingResponse{}, err
	}

	billID, err := s.ids.Generate(ctx)
	if err != nil {
		return domain.BillingResponse{}, fmt.Errorf("issue bill id: %w", err)
	}

	lines, err := s.repo.CreateBilling(ctx, billID, customer.ID, req.ProductData, s.now())
	if err != nil {
		return domain.BillingResponse{}, err
	}

	views, total, weight := summarize(lines)
	log.Printf("[service] billing %s created for customer %d: %d line(s), total %s", billID, customer.ID, len(lines), money(total))

	return domain.BillingResponse{
		BillID:       billID,
		ProductData:  views,
		CustomerName: customer.Name,
		TotalBilling: money(total),
		TotalWeight:  money(weight),
	}, nil
}

// GetBillDocument gathers what the printable bill shows. The customer who
// placed the order and the admin owning its products may read it.
func (s *Service) GetBillDocument(ctx context.Context, billID string) (domain.BillDocument, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.BillDocument{}, err
	}
	billID, err = normalizeBillID(billID)
	if err != nil {
		return domain.BillDocument{}, err
	}

	lines, err := s.billingLines(ctx, billID)
	if err != nil {
		return domain.BillDocument{}, err
	}
	if err := s.authorizeBillAccess(ctx, actor, lines); err != nil {
		return domain.BillDocument{}, err
	}

	customer, err := s.repo.GetCustomer(ctx, lines[0].CustomerID)
	if err != nil {
		return domain.BillDocument{}, err
	}

	status := "unbilled"
	bills, err := s.repo.FindPosBillsByBillID(ctx, billID)
	if err != nil {
		return domain.BillDocument{}, err
	}
	if len(bills) > 0 {
		status = string(bills[0].Status)
	}

	views, total, weight := summarize(lines)
	return domain.BillDocument{
		BillID:        billID,
		CustomerName:  customer.Name,
		Lines:         views,
		TotalBilling:  money(total),
		TotalWeight:   money(weight),
		PosBillStatus: status,
		CreatedAt:     lines[0].CreatedAt,
	}, nil
}

func normalizeBillID(raw string) (string, error) {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if !billid.Valid(id) {
		return "", fmt.Errorf("%w: billId must look like %s######", store.ErrInvalidInput, billid.Prefix)
	}
	return id, nil
}

func (s *Service) billingLines(ctx context.Context, billID string) ([]domain.BillingLineDetail, error) {
	lines, err := s.repo.ListBillingLines(ctx, billID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: billing %s", store.ErrNotFound, billID)
	}
	return lines, nil
}

// authorizeBillAccess admits the customer the lines were billed to, and an
// admin who owns every product on them.
func (s *Service) authorizeBillAccess(ctx context.Context, actor domain.Actor, lines []domain.BillingLineDetail) error {
	switch actor.Role {
	case domain.RoleCustomer:
		customer, err := s.repo.GetCustomerByUserID(ctx, actor.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: no customer profile", ErrForbidden)
			}
			return err
		}
		if lines[0].CustomerID != customer.ID {
			return fmt.Errorf("%w: bill %s belongs to another customer", ErrForbidden, lines[0].BillID)
		}
		return nil
	case domain.RoleAdmin:
		if !ownsAll(lines, actor.UserID) {
			return fmt.Errorf("%w: bill %s has products of another admin", ErrForbidden, lines[0].BillID)
		}
		return nil
	default:
		return ErrForbidden
	}
}
