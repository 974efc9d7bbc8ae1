package store

import (
	"context"
	"errors"
	"time"

	"cartify/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDuplicate         = errors.New("already exists")
)

type ProductFilter struct {
	Search string
	Limit  int
	Offset int
}

// PosBillFilter narrows ListPosBills. Zero values mean "any".
type PosBillFilter struct {
	CompanyID    int64
	CustomerID   int64
	Status       domain.PosBillStatus
	CustomerName string
	BillID       string
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

type Repository interface {
	CreateCustomerAccount(ctx context.Context, user domain.UserAccount, customer domain.Customer) (*domain.Customer, error)
	CreateAdminAccount(ctx context.Context, user domain.UserAccount, company domain.Company) (*domain.Company, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	GetCustomerByUserID(ctx context.Context, userID int64) (*domain.Customer, error)
	GetCompanyByUserID(ctx context.Context, userID int64) (*domain.Company, error)

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)
	RemoveProduct(ctx context.Context, id int64, ownerUserID int64, at time.Time) error

	// ClaimBillID records id as issued. It reports false when the id was
	// already claimed.
	ClaimBillID(ctx context.Context, id string) (bool, error)
	// CreateBilling validates every cart line against the catalog and inserts
	// all of them under billID, or none.
	CreateBilling(ctx context.Context, billID string, customerID int64, cart []domain.CartLine, at time.Time) ([]domain.BillingLineDetail, error)
	ListBillingLines(ctx context.Context, billID string) ([]domain.BillingLineDetail, error)

	// CreatePosBill fails with ErrDuplicate while a pending or paid bill
	// exists for the same billId.
	CreatePosBill(ctx context.Context, bill domain.PosBill) (*domain.PosBill, error)
	AttachPaymentIntent(ctx context.Context, id int64, intentID string) error
	GetPosBill(ctx context.Context, id int64) (*domain.PosBill, error)
	// FindPosBillsByBillID returns every POS bill of billID, newest first.
	FindPosBillsByBillID(ctx context.Context, billID string) ([]domain.PosBill, error)
	// TransitionPosBill moves the bill from -> to only if it is still in
	// from, recording when and by what it was closed. applied is false when
	// another writer got there first.
	TransitionPosBill(ctx context.Context, id int64, from domain.PosBillStatus, to domain.PosBillStatus, at time.Time, by string) (bill *domain.PosBill, applied bool, err error)
	// SettlePosBill flips a pending bill to paid and deducts the stock of
	// every line in the same transaction. ErrInsufficientStock rolls both
	// back.
	SettlePosBill(ctx context.Context, id int64, at time.Time, by string) (bill *domain.PosBill, applied bool, err error)
	// ListExpiredPosBills returns up to limit pending bills whose deadline is
	// at or before now, oldest deadline first.
	ListExpiredPosBills(ctx context.Context, now time.Time, limit int) ([]domain.PosBill, error)
	ListPosBills(ctx context.Context, filter PosBillFilter) ([]domain.PosBillDetail, int, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
}
