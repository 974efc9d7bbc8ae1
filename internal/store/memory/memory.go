package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"cartify/backend/internal/domain"
	"cartify/backend/internal/store"
)

// Store is a Repository held in process memory. Every method runs under one
// mutex, so multi-row operations are atomic the same way a database
// transaction is.
type Store struct {
	mu        sync.RWMutex
	seq       map[string]int64
	users     map[int64]domain.UserAccount
	customers map[int64]domain.Customer
	companies map[int64]domain.Company
	products  map[int64]domain.Product
	billIDs   map[string]struct{}
	billing   []domain.BillingLine
	posBills  map[int64]domain.PosBill
	auditLogs []domain.AuditLog
}

func New() *Store {
	return &Store{
		seq:       make(map[string]int64),
		users:     make(map[int64]domain.UserAccount),
		customers: make(map[int64]domain.Customer),
		companies: make(map[int64]domain.Company),
		products:  make(map[int64]domain.Product),
		billIDs:   make(map[string]struct{}),
		posBills:  make(map[int64]domain.PosBill),
	}
}

// NewSeeded returns a store with one admin (and company), one customer and a
// small catalog owned by the admin, for dev mode and tests.
//
// Seed passwords come from SEED_ADMIN_PASSWORD and SEED_CUSTOMER_PASSWORD.
// When unset, dev defaults are used and a warning is logged.
func NewSeeded() *Store {
	s := New()
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin12345")
	customerPwd := envOr("SEED_CUSTOMER_PASSWORD", "customer123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CUSTOMER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CUSTOMER_PASSWORD to override.")
	}

	ctx := context.Background()
	company, err := s.CreateAdminAccount(ctx, domain.UserAccount{
		Email:    "admin@cartify.local",
		Password: mustHash(adminPwd),
		Role:     domain.RoleAdmin,
	}, domain.Company{Name: "Cartify Store"})
	if err != nil {
		log.Fatalf("[memory-store] seed admin: %v", err)
	}
	if _, err := s.CreateCustomerAccount(ctx, domain.UserAccount{
		Email:    "customer@cartify.local",
		Password: mustHash(customerPwd),
		Role:     domain.RoleCustomer,
	}, domain.Customer{Name: "Ayesha Khan", PhoneNo: "03001234567", Address: "12 Canal Road"}); err != nil {
		log.Fatalf("[memory-store] seed customer: %v", err)
	}

	for _, p := range []domain.Product{
		{Name: "Basmati Rice 5kg", Code: "RICE-5", Price: decimal.RequireFromString("10.00"), Stock: 5, Weight: decimal.RequireFromString("5")},
		{Name: "Olive Oil 1L", Code: "OIL-1", Price: decimal.RequireFromString("12.50"), Stock: 20, Weight: decimal.RequireFromString("1")},
		{Name: "Green Tea 100 bags", Code: "TEA-100", Price: decimal.RequireFromString("4.75"), Stock: 40, Weight: decimal.RequireFromString("0.25")},
		{Name: "Wheat Flour 10kg", Code: "FLOUR-10", Price: decimal.RequireFromString("8.20"), Stock: 15, Weight: decimal.RequireFromString("10")},
	} {
		p.OwnerUserID = company.UserID
		if _, err := s.CreateProduct(ctx, p); err != nil {
			log.Fatalf("[memory-store] seed product %s: %v", p.Code, err)
		}
	}
	return s
}

func mustHash(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("[memory-store] failed to hash seed password: %v", err)
	}
	return string(hash)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) next(kind string) int64 {
	s.seq[kind]++
	return s.seq[kind]
}

func (s *Store) emailTaken(email string) bool {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (s *Store) CreateCustomerAccount(_ context.Context, user domain.UserAccount, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Email == "" || customer.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if s.emailTaken(user.Email) {
		return nil, fmt.Errorf("%w: email %s", store.ErrDuplicate, user.Email)
	}

	user.ID = s.next("user")
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = user

	customer.ID = s.next("customer")
	customer.UserID = user.ID
	s.customers[customer.ID] = customer
	return &customer, nil
}

func (s *Store) CreateAdminAccount(_ context.Context, user domain.UserAccount, company domain.Company) (*domain.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.Email == "" || company.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if s.emailTaken(user.Email) {
		return nil, fmt.Errorf("%w: email %s", store.ErrDuplicate, user.Email)
	}
	for _, c := range s.companies {
		if strings.EqualFold(c.Name, company.Name) {
			return nil, fmt.Errorf("%w: company %s", store.ErrDuplicate, company.Name)
		}
	}

	user.ID = s.next("user")
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = user

	company.ID = s.next("company")
	company.UserID = user.ID
	s.companies[company.ID] = company
	return &company, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			user := u
			return &user, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetCustomer(_ context.Context, id int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) GetCustomerByUserID(_ context.Context, userID int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.customers {
		if c.UserID == userID {
			customer := c
			return &customer, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetCompanyByUserID(_ context.Context, userID int64) (*domain.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.companies {
		if c.UserID == userID {
			company := c
			return &company, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Code == "" || !product.Price.IsPositive() || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}
	for _, p := range s.products {
		if p.Status == domain.ProductActive && strings.EqualFold(p.Code, product.Code) {
			return nil, fmt.Errorf("%w: product code %s", store.ErrDuplicate, product.Code)
		}
	}

	now := time.Now().UTC()
	product.ID = s.next("product")
	product.Status = domain.ProductActive
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListProducts(_ context.Context, filter store.ProductFilter) ([]domain.Product, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.Status != domain.ProductActive {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		matched = append(matched, p)
	}
	slices.SortFunc(matched, func(a, b domain.Product) int {
		return int(a.ID - b.ID)
	})
	return page(matched, filter.Offset, filter.Limit), len(matched), nil
}

func (s *Store) RemoveProduct(_ context.Context, id int64, ownerUserID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok || p.OwnerUserID != ownerUserID || p.Status == domain.ProductRemoved {
		return store.ErrNotFound
	}
	p.Status = domain.ProductRemoved
	p.UpdatedAt = at
	s.products[id] = p
	return nil
}

func (s *Store) ClaimBillID(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.billIDs[id]; taken {
		return false, nil
	}
	s.billIDs[id] = struct{}{}
	return true, nil
}

func (s *Store) CreateBilling(_ context.Context, billID string, customerID int64, cart []domain.CartLine, at time.Time) ([]domain.BillingLineDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if billID == "" || len(cart) == 0 {
		return nil, store.ErrInvalidInput
	}
	if _, ok := s.customers[customerID]; !ok {
		return nil, fmt.Errorf("%w: customer %d", store.ErrNotFound, customerID)
	}

	// Validate the whole cart before staging anything.
	requested := make(map[int64]int, len(cart))
	for _, line := range cart {
		if line.Quantity < 1 {
			return nil, store.ErrInvalidInput
		}
		p, ok := s.products[line.ProductID]
		if !ok || p.Status != domain.ProductActive {
			return nil, fmt.Errorf("%w: product %d", store.ErrNotFound, line.ProductID)
		}
		requested[line.ProductID] += line.Quantity
		if requested[line.ProductID] > p.Stock {
			return nil, fmt.Errorf("%w: %s has %d left", store.ErrInsufficientStock, p.Name, p.Stock)
		}
	}

	details := make([]domain.BillingLineDetail, 0, len(cart))
	for _, line := range cart {
		p := s.products[line.ProductID]
		row := domain.BillingLine{
			ID:         s.next("billing"),
			BillID:     billID,
			ProductID:  p.ID,
			CustomerID: customerID,
			Quantity:   line.Quantity,
			TotalPrice: p.Price.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2),
			Status:     "pending",
			CreatedAt:  at,
		}
		s.billing = append(s.billing, row)
		details = append(details, s.detail(row))
	}
	return details, nil
}

func (s *Store) detail(line domain.BillingLine) domain.BillingLineDetail {
	p := s.products[line.ProductID]
	return domain.BillingLineDetail{
		BillingLine: line,
		ProductName: p.Name,
		UnitPrice:   p.Price,
		UnitWeight:  p.Weight,
		OwnerUserID: p.OwnerUserID,
	}
}

func (s *Store) ListBillingLines(_ context.Context, billID string) ([]domain.BillingLineDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.linesOf(billID), nil
}

func (s *Store) linesOf(billID string) []domain.BillingLineDetail {
	lines := make([]domain.BillingLineDetail, 0, 4)
	for _, line := range s.billing {
		if line.BillID == billID {
			lines = append(lines, s.detail(line))
		}
	}
	return lines
}

func (s *Store) CreatePosBill(_ context.Context, bill domain.PosBill) (*domain.PosBill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if bill.BillID == "" || bill.Status != domain.PosBillPending {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.posBills {
		if existing.BillID == bill.BillID && existing.Status.Live() {
			return nil, fmt.Errorf("%w: pos bill for %s", store.ErrDuplicate, bill.BillID)
		}
	}

	bill.ID = s.next("pos_bill")
	s.posBills[bill.ID] = bill
	return &bill, nil
}

func (s *Store) AttachPaymentIntent(_ context.Context, id int64, intentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bill, ok := s.posBills[id]
	if !ok {
		return store.ErrNotFound
	}
	bill.PaymentIntentID = intentID
	s.posBills[id] = bill
	return nil
}

func (s *Store) GetPosBill(_ context.Context, id int64) (*domain.PosBill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bill, ok := s.posBills[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &bill, nil
}

func (s *Store) FindPosBillsByBillID(_ context.Context, billID string) ([]domain.PosBill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bills := make([]domain.PosBill, 0, 1)
	for _, bill := range s.posBills {
		if bill.BillID == billID {
			bills = append(bills, bill)
		}
	}
	slices.SortFunc(bills, newestFirst)
	return bills, nil
}

func (s *Store) TransitionPosBill(_ context.Context, id int64, from domain.PosBillStatus, to domain.PosBillStatus, at time.Time, by string) (*domain.PosBill, bool, error) {
	if !domain.CanTransition(from, to) || to == domain.PosBillPaid {
		return nil, false, fmt.Errorf("%w: transition %s -> %s", store.ErrInvalidInput, from, to)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bill, ok := s.posBills[id]
	if !ok {
		return nil, false, store.ErrNotFound
	}
	if bill.Status != from {
		return &bill, false, nil
	}
	bill.Status = to
	bill.ClosedAt = &at
	bill.ClosedBy = by
	s.posBills[id] = bill
	return &bill, true, nil
}

func (s *Store) SettlePosBill(_ context.Context, id int64, at time.Time, by string) (*domain.PosBill, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bill, ok := s.posBills[id]
	if !ok {
		return nil, false, store.ErrNotFound
	}
	if bill.Status != domain.PosBillPending {
		return &bill, false, nil
	}

	deduct := make(map[int64]int)
	for _, line := range s.billing {
		if line.BillID == bill.BillID {
			deduct[line.ProductID] += line.Quantity
		}
	}
	for productID, qty := range deduct {
		p, ok := s.products[productID]
		if !ok {
			return nil, false, fmt.Errorf("%w: product %d", store.ErrNotFound, productID)
		}
		if p.Stock < qty {
			return nil, false, fmt.Errorf("%w: %s has %d left, bill needs %d", store.ErrInsufficientStock, p.Name, p.Stock, qty)
		}
	}
	for productID, qty := range deduct {
		p := s.products[productID]
		p.Stock -= qty
		p.UpdatedAt = at
		s.products[productID] = p
	}

	bill.Status = domain.PosBillPaid
	bill.ClosedAt = &at
	bill.ClosedBy = by
	s.posBills[id] = bill
	return &bill, true, nil
}

func (s *Store) ListExpiredPosBills(_ context.Context, now time.Time, limit int) ([]domain.PosBill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expired := make([]domain.PosBill, 0, 8)
	for _, bill := range s.posBills {
		if bill.Status == domain.PosBillPending && !bill.ExpiresAt.After(now) {
			expired = append(expired, bill)
		}
	}
	slices.SortFunc(expired, func(a, b domain.PosBill) int {
		if c := a.ExpiresAt.Compare(b.ExpiresAt); c != 0 {
			return c
		}
		return int(a.ID - b.ID)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

func (s *Store) ListPosBills(_ context.Context, filter store.PosBillFilter) ([]domain.PosBillDetail, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name := strings.ToLower(strings.TrimSpace(filter.CustomerName))
	billID := strings.ToUpper(strings.TrimSpace(filter.BillID))

	matched := make([]domain.PosBillDetail, 0, len(s.posBills))
	for _, bill := range s.posBills {
		if filter.CompanyID != 0 && bill.CompanyID != filter.CompanyID {
			continue
		}
		if filter.Status != "" && bill.Status != filter.Status {
			continue
		}
		if billID != "" && !strings.Contains(bill.BillID, billID) {
			continue
		}
		if filter.From != nil && bill.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && bill.CreatedAt.After(*filter.To) {
			continue
		}

		lines := s.linesOf(bill.BillID)
		detail := domain.PosBillDetail{PosBill: bill, Lines: lines}
		if len(lines) > 0 {
			customer := s.customers[lines[0].CustomerID]
			detail.CustomerID = customer.ID
			detail.CustomerName = customer.Name
		}
		if filter.CustomerID != 0 && detail.CustomerID != filter.CustomerID {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(detail.CustomerName), name) {
			continue
		}
		matched = append(matched, detail)
	}
	slices.SortFunc(matched, func(a, b domain.PosBillDetail) int {
		return newestFirst(a.PosBill, b.PosBill)
	})
	return page(matched, filter.Offset, filter.Limit), len(matched), nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = s.next("audit")
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

// AuditLogs returns a copy of every audit entry, oldest first.
func (s *Store) AuditLogs() []domain.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.auditLogs)
}

func newestFirst(a, b domain.PosBill) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return int(b.ID - a.ID)
}

func page[T any](items []T, offset int, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
