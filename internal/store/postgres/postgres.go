package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"cartify/backend/internal/domain"
	"cartify/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) CreateCustomerAccount(ctx context.Context, user domain.UserAccount, customer domain.Customer) (*domain.Customer, error) {
	if user.Email == "" || customer.Name == "" {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	userID, err := insertUser(ctx, tx, user)
	if err != nil {
		return nil, err
	}
	customer.UserID = userID
	err = tx.QueryRowContext(ctx, `
		INSERT INTO customers (user_id, name, cnic, phone_no, address)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id
	`, customer.UserID, customer.Name, customer.CNIC, customer.PhoneNo, customer.Address).Scan(&customer.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (s *Store) CreateAdminAccount(ctx context.Context, user domain.UserAccount, company domain.Company) (*domain.Company, error) {
	if user.Email == "" || company.Name == "" {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	userID, err := insertUser(ctx, tx, user)
	if err != nil {
		return nil, err
	}
	company.UserID = userID
	err = tx.QueryRowContext(ctx, `
		INSERT INTO companies (user_id, name)
		VALUES ($1,$2)
		RETURNING id
	`, company.UserID, company.Name).Scan(&company.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: company %s", store.ErrDuplicate, company.Name)
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &company, nil
}

func insertUser(ctx context.Context, tx *sql.Tx, user domain.UserAccount) (int64, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO users (email, password, role, created_at)
		VALUES ($1,$2,$3,$4)
		RETURNING id
	`, user.Email, user.Password, user.Role, user.CreatedAt).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: email %s", store.ErrDuplicate, user.Email)
		}
		return 0, err
	}
	return id, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password, role, created_at
		FROM users
		WHERE lower(email) = lower($1)
	`, email).Scan(&user.ID, &user.Email, &user.Password, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*domain.Customer, error) {
	return s.getCustomer(ctx, "id", id)
}

func (s *Store) GetCustomerByUserID(ctx context.Context, userID int64) (*domain.Customer, error) {
	return s.getCustomer(ctx, "user_id", userID)
}

func (s *Store) getCustomer(ctx context.Context, column string, value int64) (*domain.Customer, error) {
	var c domain.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, cnic, phone_no, address
		FROM customers
		WHERE `+column+` = $1
	`, value).Scan(&c.ID, &c.UserID, &c.Name, &c.CNIC, &c.PhoneNo, &c.Address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) GetCompanyByUserID(ctx context.Context, userID int64) (*domain.Company, error) {
	var c domain.Company
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name
		FROM companies
		WHERE user_id = $1
	`, userID).Scan(&c.ID, &c.UserID, &c.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

const productColumns = `id, name, code, description, price, stock, weight, owner_user_id, status, created_at, updated_at`

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Code, &p.Description, &p.Price, &p.Stock, &p.Weight, &p.OwnerUserID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Code == "" || !product.Price.IsPositive() || product.Stock < 0 {
		return nil, store.ErrInvalidInput
	}

	now := time.Now().UTC()
	product.Status = domain.ProductActive
	product.CreatedAt = now
	product.UpdatedAt = now
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (name, code, description, price, stock, weight, owner_user_id, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
		RETURNING id
	`, product.Name, product.Code, product.Description, product.Price, product.Stock, product.Weight, product.OwnerUserID, product.Status, now).Scan(&product.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: product code %s", store.ErrDuplicate, product.Code)
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context, filter store.ProductFilter) ([]domain.Product, int, error) {
	search := "%" + escapeLike(strings.TrimSpace(filter.Search)) + "%"

	var total int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM products
		WHERE status = 'active' AND name ILIKE $1
	`, search).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE status = 'active' AND name ILIKE $1
		ORDER BY id
		LIMIT $2 OFFSET $3
	`, search, limitOrAll(filter.Limit), max(filter.Offset, 0))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 16)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (s *Store) RemoveProduct(ctx context.Context, id int64, ownerUserID int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET status = $3, updated_at = $4
		WHERE id = $1 AND owner_user_id = $2 AND status = $5
	`, id, ownerUserID, domain.ProductRemoved, at, domain.ProductActive)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ClaimBillID(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO bill_ids (bill_id, claimed_at)
		VALUES ($1, now())
		ON CONFLICT (bill_id) DO NOTHING
	`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *Store) CreateBilling(ctx context.Context, billID string, customerID int64, cart []domain.CartLine, at time.Time) ([]domain.BillingLineDetail, error) {
	if billID == "" || len(cart) == 0 {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM customers WHERE id = $1)`, customerID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: customer %d", store.ErrNotFound, customerID)
	}

	// Validate the whole cart before inserting anything.
	products := make(map[int64]domain.Product, len(cart))
	requested := make(map[int64]int, len(cart))
	for _, line := range cart {
		if line.Quantity < 1 {
			return nil, store.ErrInvalidInput
		}
		p, ok := products[line.ProductID]
		if !ok {
			p, err = scanProduct(tx.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, line.ProductID))
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil, fmt.Errorf("%w: product %d", store.ErrNotFound, line.ProductID)
				}
				return nil, err
			}
			products[p.ID] = p
		}
		if p.Status != domain.ProductActive {
			return nil, fmt.Errorf("%w: product %d", store.ErrNotFound, line.ProductID)
		}
		requested[p.ID] += line.Quantity
		if requested[p.ID] > p.Stock {
			return nil, fmt.Errorf("%w: %s has %d left", store.ErrInsufficientStock, p.Name, p.Stock)
		}
	}

	details := make([]domain.BillingLineDetail, 0, len(cart))
	for _, line := range cart {
		p := products[line.ProductID]
		row := domain.BillingLine{
			BillID:     billID,
			ProductID:  p.ID,
			CustomerID: customerID,
			Quantity:   line.Quantity,
			TotalPrice: p.Price.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2),
			Status:     "pending",
			CreatedAt:  at,
		}
		err := tx.QueryRowContext(ctx, `
			INSERT INTO billing_lines (bill_id, product_id, customer_id, quantity, total_price, status, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING id
		`, row.BillID, row.ProductID, row.CustomerID, row.Quantity, row.TotalPrice, row.Status, row.CreatedAt).Scan(&row.ID)
		if err != nil {
			return nil, err
		}
		details = append(details, domain.BillingLineDetail{
			BillingLine: row,
			ProductName: p.Name,
			UnitPrice:   p.Price,
			UnitWeight:  p.Weight,
			OwnerUserID: p.OwnerUserID,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return details, nil
}

func (s *Store) ListBillingLines(ctx context.Context, billID string) ([]domain.BillingLineDetail, error) {
	byBill, err := s.billingLinesFor(ctx, []string{billID})
	if err != nil {
		return nil, err
	}
	lines := byBill[billID]
	if lines == nil {
		lines = []domain.BillingLineDetail{}
	}
	return lines, nil
}

func (s *Store) billingLinesFor(ctx context.Context, billIDs []string) (map[string][]domain.BillingLineDetail, error) {
	result := make(map[string][]domain.BillingLineDetail, len(billIDs))
	if len(billIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT bl.id, bl.bill_id, bl.product_id, bl.customer_id, bl.quantity, bl.total_price, bl.status, bl.created_at,
			p.name, p.price, p.weight, p.owner_user_id
		FROM billing_lines bl
		JOIN products p ON p.id = bl.product_id
		WHERE bl.bill_id = ANY($1)
		ORDER BY bl.id
	`, billIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var d domain.BillingLineDetail
		if err := rows.Scan(
			&d.ID, &d.BillID, &d.ProductID, &d.CustomerID, &d.Quantity, &d.TotalPrice, &d.Status, &d.CreatedAt,
			&d.ProductName, &d.UnitPrice, &d.UnitWeight, &d.OwnerUserID,
		); err != nil {
			return nil, err
		}
		result[d.BillID] = append(result[d.BillID], d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

const posBillColumns = `id, bill_id, company_id, status, total_amount, source, payment_intent_id, expires_at, created_at, closed_at, closed_by`

func scanPosBill(row rowScanner) (domain.PosBill, error) {
	var (
		bill     domain.PosBill
		closedAt sql.NullTime
	)
	err := row.Scan(&bill.ID, &bill.BillID, &bill.CompanyID, &bill.Status, &bill.TotalAmount, &bill.Source,
		&bill.PaymentIntentID, &bill.ExpiresAt, &bill.CreatedAt, &closedAt, &bill.ClosedBy)
	if err != nil {
		return bill, err
	}
	if closedAt.Valid {
		t := closedAt.Time
		bill.ClosedAt = &t
	}
	return bill, nil
}

func (s *Store) CreatePosBill(ctx context.Context, bill domain.PosBill) (*domain.PosBill, error) {
	if bill.BillID == "" || bill.Status != domain.PosBillPending {
		return nil, store.ErrInvalidInput
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO pos_bills (bill_id, company_id, status, total_amount, source, payment_intent_id, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, bill.BillID, bill.CompanyID, bill.Status, bill.TotalAmount, bill.Source, bill.PaymentIntentID, bill.ExpiresAt, bill.CreatedAt).Scan(&bill.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: pos bill for %s", store.ErrDuplicate, bill.BillID)
		}
		return nil, err
	}
	return &bill, nil
}

func (s *Store) AttachPaymentIntent(ctx context.Context, id int64, intentID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE pos_bills SET payment_intent_id = $2 WHERE id = $1`, id, intentID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetPosBill(ctx context.Context, id int64) (*domain.PosBill, error) {
	bill, err := scanPosBill(s.db.QueryRowContext(ctx, `SELECT `+posBillColumns+` FROM pos_bills WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &bill, nil
}

func (s *Store) FindPosBillsByBillID(ctx context.Context, billID string) ([]domain.PosBill, error) {
	return s.queryPosBills(ctx, `
		SELECT `+posBillColumns+`
		FROM pos_bills
		WHERE bill_id = $1
		ORDER BY created_at DESC, id DESC
	`, billID)
}

func (s *Store) queryPosBills(ctx context.Context, query string, args ...any) ([]domain.PosBill, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bills := make([]domain.PosBill, 0, 4)
	for rows.Next() {
		bill, err := scanPosBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bills, nil
}

// TransitionPosBill relies on the status predicate of the UPDATE: of two
// racing writers only one sees its row come back.
func (s *Store) TransitionPosBill(ctx context.Context, id int64, from domain.PosBillStatus, to domain.PosBillStatus, at time.Time, by string) (*domain.PosBill, bool, error) {
	if !domain.CanTransition(from, to) || to == domain.PosBillPaid {
		return nil, false, fmt.Errorf("%w: transition %s -> %s", store.ErrInvalidInput, from, to)
	}

	bill, err := scanPosBill(s.db.QueryRowContext(ctx, `
		UPDATE pos_bills
		SET status = $3, closed_at = $4, closed_by = $5
		WHERE id = $1 AND status = $2
		RETURNING `+posBillColumns, id, from, to, at, by))
	if err == nil {
		return &bill, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	current, err := s.GetPosBill(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (s *Store) SettlePosBill(ctx context.Context, id int64, at time.Time, by string) (*domain.PosBill, bool, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	bill, err := scanPosBill(tx.QueryRowContext(ctx, `
		UPDATE pos_bills
		SET status = $2, closed_at = $3, closed_by = $5
		WHERE id = $1 AND status = $4
		RETURNING `+posBillColumns, id, domain.PosBillPaid, at, domain.PosBillPending, by))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, false, err
		}
		_ = tx.Rollback()
		current, err := s.GetPosBill(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return current, false, nil
	}

	// Ascending product order keeps concurrent settlements from deadlocking.
	rows, err := tx.QueryContext(ctx, `
		SELECT product_id, SUM(quantity)
		FROM billing_lines
		WHERE bill_id = $1
		GROUP BY product_id
		ORDER BY product_id
	`, bill.BillID)
	if err != nil {
		return nil, false, err
	}
	type deduction struct {
		productID int64
		qty       int
	}
	deductions := make([]deduction, 0, 4)
	for rows.Next() {
		var d deduction
		if err := rows.Scan(&d.productID, &d.qty); err != nil {
			_ = rows.Close()
			return nil, false, err
		}
		deductions = append(deductions, d)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, false, err
	}
	_ = rows.Close()

	for _, d := range deductions {
		res, err := tx.ExecContext(ctx, `
			UPDATE products
			SET stock = stock - $2, updated_at = $3
			WHERE id = $1 AND stock >= $2
		`, d.productID, d.qty, at)
		if err != nil {
			return nil, false, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, false, err
		}
		if affected == 0 {
			return nil, false, shortfall(ctx, tx, d.productID, d.qty)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return &bill, true, nil
}

func shortfall(ctx context.Context, tx *sql.Tx, productID int64, needed int) error {
	var (
		name  string
		stock int
	)
	err := tx.QueryRowContext(ctx, `SELECT name, stock FROM products WHERE id = $1`, productID).Scan(&name, &stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: product %d", store.ErrNotFound, productID)
		}
		return err
	}
	return fmt.Errorf("%w: %s has %d left, bill needs %d", store.ErrInsufficientStock, name, stock, needed)
}

func (s *Store) ListExpiredPosBills(ctx context.Context, now time.Time, limit int) ([]domain.PosBill, error) {
	return s.queryPosBills(ctx, `
		SELECT `+posBillColumns+`
		FROM pos_bills
		WHERE status = $1 AND expires_at <= $2
		ORDER BY expires_at, id
		LIMIT $3
	`, domain.PosBillPending, now, limitOrAll(limit))
}

func (s *Store) ListPosBills(ctx context.Context, filter store.PosBillFilter) ([]domain.PosBillDetail, int, error) {
	where := make([]string, 0, 8)
	args := make([]any, 0, 10)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.CompanyID != 0 {
		add("pb.company_id = $%d", filter.CompanyID)
	}
	if filter.Status != "" {
		add("pb.status = $%d", filter.Status)
	}
	if billID := strings.ToUpper(strings.TrimSpace(filter.BillID)); billID != "" {
		add("pb.bill_id LIKE $%d", "%"+escapeLike(billID)+"%")
	}
	if filter.From != nil {
		add("pb.created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("pb.created_at <= $%d", *filter.To)
	}
	if filter.CustomerID != 0 {
		add("c.id = $%d", filter.CustomerID)
	}
	if name := strings.TrimSpace(filter.CustomerName); name != "" {
		add("c.name ILIKE $%d", "%"+escapeLike(name)+"%")
	}
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}

	// The customer of a billing group is the customer of any of its lines.
	from := `
		FROM pos_bills pb
		LEFT JOIN LATERAL (
			SELECT customer_id FROM billing_lines WHERE bill_id = pb.bill_id ORDER BY id LIMIT 1
		) bl ON true
		LEFT JOIN customers c ON c.id = bl.customer_id
	`

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) `+from+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pageArgs := append(args, limitOrAll(filter.Limit), max(filter.Offset, 0))
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT pb.id, pb.bill_id, pb.company_id, pb.status, pb.total_amount, pb.source, pb.payment_intent_id,
			pb.expires_at, pb.created_at, pb.closed_at, pb.closed_by, COALESCE(c.id, 0), COALESCE(c.name, '')
		%s %s
		ORDER BY pb.created_at DESC, pb.id DESC
		LIMIT $%d OFFSET $%d
	`, from, whereSQL, len(args)+1, len(args)+2), pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	details := make([]domain.PosBillDetail, 0, 16)
	billIDs := make([]string, 0, 16)
	for rows.Next() {
		var (
			d        domain.PosBillDetail
			closedAt sql.NullTime
		)
		if err := rows.Scan(&d.ID, &d.BillID, &d.CompanyID, &d.Status, &d.TotalAmount, &d.Source, &d.PaymentIntentID,
			&d.ExpiresAt, &d.CreatedAt, &closedAt, &d.ClosedBy, &d.CustomerID, &d.CustomerName); err != nil {
			return nil, 0, err
		}
		if closedAt.Valid {
			t := closedAt.Time
			d.ClosedAt = &t
		}
		details = append(details, d)
		billIDs = append(billIDs, d.BillID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	_ = rows.Close()

	lines, err := s.billingLinesFor(ctx, billIDs)
	if err != nil {
		return nil, 0, err
	}
	for i := range details {
		details[i].Lines = lines[details[i].BillID]
	}
	return details, total, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (actor_email, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ActorEmail, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func limitOrAll(limit int) int {
	if limit < 1 {
		return math.MaxInt32
	}
	return limit
}

func escapeLike(val string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(val)
}
