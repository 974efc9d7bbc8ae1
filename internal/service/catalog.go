package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cartify/backend/internal/domain"
	"cartify/backend/internal/store"
)

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" || req.Code == "" {
		return domain.Product{}, fmt.Errorf("%w: productName and productCode are required", store.ErrInvalidInput)
	}
	if !req.Price.IsPositive() {
		return domain.Product{}, fmt.Errorf("%w: productPrice must be positive", store.ErrInvalidInput)
	}
	if req.Stock < 0 || req.Weight.IsNegative() {
		return domain.Product{}, fmt.Errorf("%w: stock and weight cannot be negative", store.ErrInvalidInput)
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
		Price:       req.Price.Round(2),
		Stock:       req.Stock,
		Weight:      req.Weight,
		OwnerUserID: actor.UserID,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", idString(created.ID), fmt.Sprintf("code=%s,price=%s,stock=%d", created.Code, money(created.Price), created.Stock))
	return *created, nil
}

func (s *Service) ListProducts(ctx context.Context, page int, limit int, search string) (domain.ProductListResponse, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.ProductListResponse{}, err
	}

	page, limit, offset := pageWindow(page, limit)
	products, total, err := s.repo.ListProducts(ctx, store.ProductFilter{
		Search: strings.TrimSpace(search),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return domain.ProductListResponse{}, err
	}
	if products == nil {
		products = []domain.Product{}
	}

	return domain.ProductListResponse{
		Products:     products,
		CurrentPage:  page,
		TotalPages:   totalPages(total, limit),
		TotalRecords: total,
	}, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.Product{}, err
	}
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Product{}, fmt.Errorf("%w: product %d", store.ErrNotFound, id)
		}
		return domain.Product{}, err
	}
	if product.Status != domain.ProductActive {
		return domain.Product{}, fmt.Errorf("%w: product %d", store.ErrNotFound, id)
	}
	return *product, nil
}

// RemoveProduct soft-deletes a product of the calling admin. Existing billing
// lines keep pointing at it.
func (s *Service) RemoveProduct(ctx context.Context, id int64) error {
	actor, err := requireRole(ctx, domain.RoleAdmin)
	if err != nil {
		return err
	}
	if id < 1 {
		return fmt.Errorf("%w: productId must be positive", store.ErrInvalidInput)
	}

	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: product %d", store.ErrNotFound, id)
		}
		return err
	}
	if product.Status != domain.ProductActive {
		return fmt.Errorf("%w: product %d", store.ErrNotFound, id)
	}
	if product.OwnerUserID != actor.UserID {
		return fmt.Errorf("%w: product %d belongs to another admin", ErrForbidden, id)
	}

	if err := s.repo.RemoveProduct(ctx, id, actor.UserID, s.now()); err != nil {
		return err
	}
	s.logAudit(ctx, "product_remove", "product", idString(id), "code="+product.Code)
	return nil
}
