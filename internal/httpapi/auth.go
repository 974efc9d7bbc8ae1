package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"cartify/backend/internal/domain"
	"cartify/backend/internal/store"
)

var errInvalidCredentials = errors.New("invalid credentials")

// AccountStore is the slice of the repository the auth manager needs.
type AccountStore interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	CreateCustomerAccount(ctx context.Context, user domain.UserAccount, customer domain.Customer) (*domain.Customer, error)
	CreateAdminAccount(ctx context.Context, user domain.UserAccount, company domain.Company) (*domain.Company, error)
}

type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	accounts AccountStore
}

type accessClaims struct {
	jwtlib.RegisteredClaims
	Role  string `json:"role"`
	Email string `json:"email"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, accounts AccountStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		accounts: accounts,
	}
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	email := normalizeEmail(req.Email)
	user, err := a.accounts.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResponse{}, errInvalidCredentials
		}
		return domain.LoginResponse{}, err
	}
	if !verifyPassword(user.Password, req.Password) {
		return domain.LoginResponse{}, errInvalidCredentials
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(*user, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        user.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

// RegisterCustomer creates the user and its customer profile together.
func (a *AuthManager) RegisterCustomer(ctx context.Context, req domain.SignupRequest) (domain.AccountResponse, error) {
	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.AccountResponse{}, err
	}
	email := normalizeEmail(req.Email)

	customer, err := a.accounts.CreateCustomerAccount(ctx, domain.UserAccount{
		Email:     email,
		Password:  hash,
		Role:      domain.RoleCustomer,
		CreatedAt: time.Now().UTC(),
	}, domain.Customer{
		Name:    strings.TrimSpace(req.Name),
		CNIC:    strings.TrimSpace(req.CNIC),
		PhoneNo: strings.TrimSpace(req.PhoneNo),
		Address: strings.TrimSpace(req.Address),
	})
	if err != nil {
		return domain.AccountResponse{}, err
	}

	return domain.AccountResponse{
		UserID:    customer.UserID,
		Email:     email,
		Role:      domain.RoleCustomer,
		ProfileID: customer.ID,
	}, nil
}

// RegisterAdmin creates an admin user together with the company it runs.
func (a *AuthManager) RegisterAdmin(ctx context.Context, req domain.AddAdminRequest) (domain.AccountResponse, error) {
	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.AccountResponse{}, err
	}
	email := normalizeEmail(req.Email)

	company, err := a.accounts.CreateAdminAccount(ctx, domain.UserAccount{
		Email:     email,
		Password:  hash,
		Role:      domain.RoleAdmin,
		CreatedAt: time.Now().UTC(),
	}, domain.Company{Name: strings.TrimSpace(req.CompanyName)})
	if err != nil {
		return domain.AccountResponse{}, err
	}

	return domain.AccountResponse{
		UserID:    company.UserID,
		Email:     email,
		Role:      domain.RoleAdmin,
		ProfileID: company.ID,
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &accessClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || userID < 1 {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{UserID: userID, Email: claims.Email, Role: claims.Role}, nil
}

func (a *AuthManager) sign(user domain.UserAccount, expiresAt time.Time) (string, error) {
	claims := accessClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "cartify",
		},
		Role:  user.Role,
		Email: user.Email,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: password must be at most 72 bytes", store.ErrInvalidInput)
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
