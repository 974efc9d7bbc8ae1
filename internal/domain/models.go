package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

type ProductStatus string

const (
	ProductActive  ProductStatus = "active"
	ProductRemoved ProductStatus = "removed"
)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"productName"`
	Code        string          `json:"productCode"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"productPrice"`
	Stock       int             `json:"stock"`
	Weight      decimal.Decimal `json:"weight"`
	OwnerUserID int64           `json:"userId"`
	Status      ProductStatus   `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type ProductCreateRequest struct {
	Name        string          `json:"productName" validate:"required,max=120"`
	Code        string          `json:"productCode" validate:"required,max=64"`
	Description string          `json:"description" validate:"max=1000"`
	Price       decimal.Decimal `json:"productPrice"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Weight      decimal.Decimal `json:"weight"`
}

type ProductListResponse struct {
	Products     []Product `json:"products"`
	CurrentPage  int       `json:"currentPage"`
	TotalPages   int       `json:"totalPages"`
	TotalRecords int       `json:"totalRecords"`
}

type CartLine struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type CreateBillingRequest struct {
	ProductData []CartLine `json:"productData" validate:"required,min=1,dive"`
}

// BillingLine is one persisted cart line. Lines sharing a BillID were created
// together and never change afterwards.
type BillingLine struct {
	ID         int64           `json:"id"`
	BillID     string          `json:"billId"`
	ProductID  int64           `json:"productId"`
	CustomerID int64           `json:"customerId"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// BillingLineDetail joins a billing line with the product fields needed to
// price, weigh and authorize it.
type BillingLineDetail struct {
	BillingLine
	ProductName string          `json:"productName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	UnitWeight  decimal.Decimal `json:"unitWeight"`
	OwnerUserID int64           `json:"ownerUserId"`
}

type BillingLineView struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
	Total    string `json:"total"`
	Weight   string `json:"weight"`
}

type BillingResponse struct {
	BillID       string            `json:"billId"`
	ProductData  []BillingLineView `json:"productData"`
	CustomerName string            `json:"customerName"`
	TotalBilling string            `json:"totalBilling"`
	TotalWeight  string            `json:"totalWeight"`
}

type PosBillSource string

const (
	SourceAdmin  PosBillSource = "admin"
	SourceOnline PosBillSource = "online"
)

// PosBill is the authoritative settlement record for a billing group.
type PosBill struct {
	ID              int64           `json:"id"`
	BillID          string          `json:"billId"`
	CompanyID       int64           `json:"companyId"`
	Status          PosBillStatus   `json:"status"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Source          PosBillSource   `json:"source"`
	PaymentIntentID string          `json:"paymentIntentId,omitempty"`
	ExpiresAt       time.Time       `json:"expiresAt"`
	CreatedAt       time.Time       `json:"createdAt"`
	ClosedAt        *time.Time      `json:"closedAt,omitempty"`
	// ClosedBy is the trigger that closed the bill, e.g. admin or
	// webhook:payment_succeeded.
	ClosedBy        string          `json:"closedBy,omitempty"`
}

type PosBillDetail struct {
	PosBill
	CustomerID   int64               `json:"customerId"`
	CustomerName string              `json:"customerName"`
	Lines        []BillingLineDetail `json:"-"`
}

type PosBillSummary struct {
	ID           int64             `json:"id"`
	BillID       string            `json:"billId"`
	Status       PosBillStatus     `json:"status"`
	CustomerName string            `json:"customerName"`
	ProductData  []BillingLineView `json:"productData"`
	TotalBilling string            `json:"totalBilling"`
	TotalWeight  string            `json:"totalWeight"`
	CreatedAt    time.Time         `json:"createdAt"`
	ExpiresAt    time.Time         `json:"expiresAt"`
}

type PendingPosBillsResponse struct {
	PendingBills []PosBillSummary `json:"pendingBills"`
	CurrentPage  int              `json:"currentPage"`
	TotalPages   int              `json:"totalPages"`
	TotalRecords int              `json:"totalRecords"`
}

type PaymentHistoryQuery struct {
	Page       int
	Limit      int
	BillID     string
	StartRange *time.Time
	EndRange   *time.Time
}

type PaymentHistoryResponse struct {
	PosBills     []PosBillSummary `json:"posBills"`
	CurrentPage  int              `json:"currentPage"`
	TotalPages   int              `json:"totalPages"`
	TotalRecords int              `json:"totalRecords"`
}

type SettlementResponse struct {
	PosBill PosBill `json:"posBill"`
	Applied bool    `json:"applied"`
}

type OnlinePaymentResponse struct {
	ClientSecret   string            `json:"clientSecret"`
	BillingDetails []BillingLineView `json:"billingDetails"`
	TotalAmount    string            `json:"totalAmount"`
	PosBill        PosBill           `json:"posBill"`
}

// BillDocument is everything the printable bill shows.
type BillDocument struct {
	BillID        string
	CustomerName  string
	Lines         []BillingLineView
	TotalBilling  string
	TotalWeight   string
	PosBillStatus string
	CreatedAt     time.Time
}

type PaymentEventKind string

const (
	PaymentSucceeded PaymentEventKind = "payment_succeeded"
	PaymentFailed    PaymentEventKind = "payment_failed"
	PaymentCanceled  PaymentEventKind = "payment_canceled"
	PaymentUnknown   PaymentEventKind = "unknown"
)

// PaymentEvent is a verified gateway notification.
type PaymentEvent struct {
	ID            string
	Kind          PaymentEventKind
	RawType       string
	CorrelationID string
	PosBillID     int64
	IntentID      string
}

type WebhookResult struct {
	Received bool          `json:"received"`
	Applied  bool          `json:"applied"`
	Status   PosBillStatus `json:"status,omitempty"`
	Message  string        `json:"message,omitempty"`
}

type Customer struct {
	ID      int64  `json:"id"`
	UserID  int64  `json:"userId"`
	Name    string `json:"name"`
	CNIC    string `json:"cnic"`
	PhoneNo string `json:"phoneNo"`
	Address string `json:"address"`
}

type Company struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
}

type UserAccount struct {
	ID        int64
	Email     string
	Password  string
	Role      string
	CreatedAt time.Time
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expiresAt"`
}

type SignupRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	CNIC     string `json:"cnic" validate:"max=32"`
	PhoneNo  string `json:"phoneNo" validate:"max=32"`
	Address  string `json:"address" validate:"max=255"`
}

type AddAdminRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	CompanyName string `json:"companyName" validate:"required,max=120"`
}

type AccountResponse struct {
	UserID    int64  `json:"userId"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	ProfileID int64  `json:"profileId"`
}

type Actor struct {
	UserID int64
	Email  string
	Role   string
}

type AuditLog struct {
	ID         int64     `json:"id"`
	ActorEmail string    `json:"actorEmail"`
	ActorRole  string    `json:"actorRole"`
	Action     string    `json:"action"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"createdAt"`
}
