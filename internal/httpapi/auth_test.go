package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"cartify/backend/internal/domain"
	"cartify/backend/internal/store"
	"cartify/backend/internal/store/memory"
)

func TestParseTokenRoundTrip(t *testing.T) {
	auth := NewAuthManager(testAuthSecret, time.Hour, memory.NewSeeded())

	resp, err := auth.Login(context.Background(), domain.LoginRequest{Email: "  ADMIN@cartify.local ", Password: "admin12345"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %q", resp.Role)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.UserID != 1 || actor.Role != domain.RoleAdmin || actor.Email != "admin@cartify.local" {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestParseTokenRejectsTamperedAndForeignTokens(t *testing.T) {
	repo := memory.NewSeeded()
	auth := NewAuthManager(testAuthSecret, time.Hour, repo)
	other := NewAuthManager("another-secret-key-that-is-long-enough", time.Hour, repo)

	resp, err := auth.Login(context.Background(), domain.LoginRequest{Email: "customer@cartify.local", Password: "customer123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	parts := strings.Split(resp.AccessToken, ".")
	if len(parts) != 3 {
		t.Fatalf("expected a three part token")
	}
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	for name, token := range map[string]string{
		"tampered": tampered,
		"garbage":  "not-a-token",
		"empty":    "",
	} {
		if _, err := auth.ParseToken(token); err == nil {
			t.Fatalf("%s: expected token to be rejected", name)
		}
	}
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestExpiredTokenIsRejected(t *testing.T) {
	auth := NewAuthManager(testAuthSecret, time.Hour, memory.NewSeeded())

	token, err := auth.sign(domain.UserAccount{ID: 1, Email: "admin@cartify.local", Role: domain.RoleAdmin}, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestRegisterCustomerThenLogin(t *testing.T) {
	repo := memory.NewSeeded()
	auth := NewAuthManager(testAuthSecret, time.Hour, repo)
	ctx := context.Background()

	account, err := auth.RegisterCustomer(ctx, domain.SignupRequest{
		Name:     "Bilal Ahmed",
		Email:    "Bilal@Example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if account.Email != "bilal@example.com" || account.Role != domain.RoleCustomer || account.ProfileID == 0 {
		t.Fatalf("unexpected account %+v", account)
	}

	stored, err := repo.GetUserByEmail(ctx, "bilal@example.com")
	if err != nil {
		t.Fatalf("lookup user: %v", err)
	}
	if !isPasswordHash(stored.Password) {
		t.Fatalf("expected a bcrypt hash to be stored")
	}

	if _, err := auth.Login(ctx, domain.LoginRequest{Email: "bilal@example.com", Password: "correct-horse"}); err != nil {
		t.Fatalf("login after register: %v", err)
	}
	if _, err := auth.Login(ctx, domain.LoginRequest{Email: "bilal@example.com", Password: "wrong-horse"}); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := auth.Login(ctx, domain.LoginRequest{Email: "nobody@example.com", Password: "whatever"}); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}

	_, err = auth.RegisterCustomer(ctx, domain.SignupRequest{Name: "Again", Email: "bilal@example.com", Password: "correct-horse"})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}
}

func TestSignupAndAddAdminOverHTTP(t *testing.T) {
	api, _ := newTestAPI(t, nil)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/user/signup", "", domain.SignupRequest{
		Name: "Sara Malik", Email: "sara@example.com", Password: "sara-pass-1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodPost, "/user/signup", "", domain.SignupRequest{
		Name: "Sara Malik", Email: "sara@example.com", Password: "sara-pass-1",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate signup, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, "/user/signup", "", map[string]string{"email": "bad", "password": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid signup, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/user/addAdmin", "", domain.AddAdminRequest{
		Email: "owner@shop.example", Password: "owner-pass-1", CompanyName: "Corner Shop",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	token := login(t, handler, "owner@shop.example", "owner-pass-1")

	rec = doJSON(t, handler, http.MethodGet, "/company/getPosBills", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected new admin to list pos bills, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOverlongPasswordIsRejected(t *testing.T) {
	api, _ := newTestAPI(t, nil)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/user/signup", "", domain.SignupRequest{
		Name: "Long Pass", Email: "long@example.com", Password: strings.Repeat("a", 73),
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a 73 character password, got %d: %s", rec.Code, rec.Body.String())
	}

	// 40 runes fit the length rule but take 80 bytes, past what bcrypt hashes.
	wide := strings.Repeat("é", 40)
	rec = doJSON(t, handler, http.MethodPost, "/user/addAdmin", "", domain.AddAdminRequest{
		Email: "wide@shop.example", Password: wide, CompanyName: "Wide Shop",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an 80 byte password, got %d: %s", rec.Code, rec.Body.String())
	}

	auth := NewAuthManager(testAuthSecret, time.Hour, memory.NewSeeded())
	_, err := auth.RegisterCustomer(context.Background(), domain.SignupRequest{Name: "Wide", Email: "wide@example.com", Password: wide})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
