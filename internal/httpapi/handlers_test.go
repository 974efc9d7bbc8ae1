package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cartify/backend/internal/domain"
	"cartify/backend/internal/payment"
	"cartify/backend/internal/service"
	"cartify/backend/internal/store/memory"
)

const testAuthSecret = "test-secret-key-that-is-long-enough"

// newTestAPI builds a full API over a seeded in-memory store so handler
// tests exercise the complete request path.
func newTestAPI(t *testing.T, gateway payment.Gateway) (*API, *memory.Store) {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, service.Options{Gateway: gateway})
	auth := NewAuthManager(testAuthSecret, time.Hour, repo)
	return New(svc, auth, gateway, "*"), repo
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func login(t *testing.T, handler http.Handler, email string, password string) string {
	t.Helper()

	rec := doJSON(t, handler, http.MethodPost, "/user/login", "", domain.LoginRequest{Email: email, Password: password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s failed, status %d: %s", email, rec.Code, rec.Body.String())
	}
	var payload struct {
		Data domain.LoginResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if strings.TrimSpace(payload.Data.AccessToken) == "" {
		t.Fatalf("expected access token in login response")
	}
	return payload.Data.AccessToken
}

func loginAsAdmin(t *testing.T, handler http.Handler) string {
	return login(t, handler, "admin@cartify.local", "admin12345")
}

func loginAsCustomer(t *testing.T, handler http.Handler) string {
	return login(t, handler, "customer@cartify.local", "customer123")
}

func createBilling(t *testing.T, handler http.Handler, token string, cart ...domain.CartLine) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/billing/createBilling", token, domain.CreateBillingRequest{ProductData: cart})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create billing: status %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	billID, _ := body["billId"].(string)
	if billID == "" {
		t.Fatalf("expected billId in %v", body)
	}
	return billID
}

func createPosBill(t *testing.T, handler http.Handler, token string, billID string) int64 {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/billing/createPosBills?billId="+billID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("create pos bill: status %d: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		PosBill domain.PosBill `json:"posBill"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode pos bill: %v", err)
	}
	return payload.PosBill.ID
}

func TestHandleHealth(t *testing.T) {
	api, _ := newTestAPI(t, payment.Disabled{})

	rec := doJSON(t, api.Handler(), http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["success"] != true {
		t.Fatalf("expected success:true, got %v", body)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	api, _ := newTestAPI(t, payment.Disabled{})

	rec := doJSON(t, api.Handler(), http.MethodPost, "/user/login", "", domain.LoginRequest{Email: "admin@cartify.local", Password: "nope-nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != false || body["message"] != "invalid credentials" {
		t.Fatalf("unexpected error body %v", body)
	}
}

func TestBillingToPaidOverHTTP(t *testing.T) {
	api, repo := newTestAPI(t, payment.Disabled{})
	handler := api.Handler()
	customer := loginAsCustomer(t, handler)
	admin := loginAsAdmin(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/billing/createBilling", customer, domain.CreateBillingRequest{
		ProductData: []domain.CartLine{{ProductID: 1, Quantity: 2}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["totalBilling"] != "20.00" || body["customerName"] != "Ayesha Khan" {
		t.Fatalf("unexpected billing body %v", body)
	}
	billID := body["billId"].(string)

	posBillID := createPosBill(t, handler, admin, billID)

	rec = doJSON(t, handler, http.MethodPost, "/billing/createPosBills?billId="+billID, admin, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a second pos bill, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/company/updatePosBill?id=%d", posBillID), admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var settled struct {
		Data domain.SettlementResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&settled); err != nil {
		t.Fatalf("decode settlement: %v", err)
	}
	if !settled.Data.Applied || settled.Data.PosBill.Status != domain.PosBillPaid {
		t.Fatalf("unexpected settlement %+v", settled.Data)
	}

	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/company/updatePosBill?id=%d", posBillID), admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected repeated settlement to succeed, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["message"] != "pos bill was already paid" {
		t.Fatalf("unexpected repeat body %v", body)
	}

	product, _ := repo.GetProduct(context.Background(), 1)
	if product.Stock != 3 {
		t.Fatalf("expected stock 3, got %d", product.Stock)
	}

	rec = doJSON(t, handler, http.MethodGet, "/customer/paymentHistory?startRange=2000-01-01", customer, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("payment history: status %d", rec.Code)
	}
	var history struct {
		Data domain.PaymentHistoryResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if history.Data.TotalRecords != 1 || history.Data.PosBills[0].BillID != billID {
		t.Fatalf("unexpected history %+v", history.Data)
	}
}

func TestCreateBillingErrors(t *testing.T) {
	api, _ := newTestAPI(t, payment.Disabled{})
	handler := api.Handler()
	customer := loginAsCustomer(t, handler)
	admin := loginAsAdmin(t, handler)

	tests := []struct {
		name   string
		token  string
		body   any
		status int
	}{
		{"empty cart", customer, domain.CreateBillingRequest{}, http.StatusBadRequest},
		{"zero quantity", customer, domain.CreateBillingRequest{ProductData: []domain.CartLine{{ProductID: 1}}}, http.StatusBadRequest},
		{"unknown field", customer, map[string]any{"productData": []any{}, "discount": 5}, http.StatusBadRequest},
		{"unknown product", customer, domain.CreateBillingRequest{ProductData: []domain.CartLine{{ProductID: 99, Quantity: 1}}}, http.StatusNotFound},
		{"insufficient stock", customer, domain.CreateBillingRequest{ProductData: []domain.CartLine{{ProductID: 1, Quantity: 6}}}, http.StatusBadRequest},
		{"admin role", admin, domain.CreateBillingRequest{ProductData: []domain.CartLine{{ProductID: 1, Quantity: 1}}}, http.StatusForbidden},
		{"no token", "", domain.CreateBillingRequest{ProductData: []domain.CartLine{{ProductID: 1, Quantity: 1}}}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/billing/createBilling", tt.token, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			body := decodeBody(t, rec)
			if body["success"] != false || body["message"] == "" {
				t.Fatalf("expected error shape, got %v", body)
			}
		})
	}
}

func TestGetBillingStreamsPDF(t *testing.T) {
	api, _ := newTestAPI(t, payment.Disabled{})
	handler := api.Handler()
	customer := loginAsCustomer(t, handler)
	billID := createBilling(t, handler, customer, domain.CartLine{ProductID: 2, Quantity: 2})

	rec := doJSON(t, handler, http.MethodGet, "/billing/getBilling?billId="+billID, customer, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("expected application/pdf, got %q", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected a PDF document")
	}

	rec = doJSON(t, handler, http.MethodGet, "/billing/getBilling?billId=BILL000000", customer, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown bill, got %d", rec.Code)
	}
}

func TestUpdatePosBillErrors(t *testing.T) {
	api, _ := newTestAPI(t, payment.Disabled{})
	handler := api.Handler()
	admin := loginAsAdmin(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/company/updatePosBill?id=abc", admin, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, "/company/updatePosBill?id=404", admin, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown bill, got %d", rec.Code)
	}
}

func TestOnlinePaymentWithoutGatewayIsUnavailable(t *testing.T) {
	api, repo := newTestAPI(t, payment.Disabled{})
	handler := api.Handler()
	customer := loginAsCustomer(t, handler)
	billID := createBilling(t, handler, customer, domain.CartLine{ProductID: 2, Quantity: 1})

	rec := doJSON(t, handler, http.MethodPost, "/company/onlinePayment?id="+billID, customer, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}

	bills, _ := repo.FindPosBillsByBillID(context.Background(), billID)
	if len(bills) != 1 || bills[0].Status != domain.PosBillFailed {
		t.Fatalf("expected the attempt to be recorded as failed, got %+v", bills)
	}
}

func TestProductEndpoints(t *testing.T) {
	api, _ := newTestAPI(t, payment.Disabled{})
	handler := api.Handler()
	admin := loginAsAdmin(t, handler)
	customer := loginAsCustomer(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/product/addProduct", admin, map[string]any{
		"productName":  "Chickpeas 1kg",
		"productCode":  "CHK-1",
		"productPrice": "3.10",
		"stock":        30,
		"weight":       "1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Data domain.Product `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode product: %v", err)
	}

	rec = doJSON(t, handler, http.MethodPost, "/product/addProduct", customer, map[string]any{"productName": "x", "productCode": "y"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/product/getProducts?search=chick", customer, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list struct {
		Data domain.ProductListResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Data.TotalRecords != 1 {
		t.Fatalf("expected one match, got %+v", list.Data)
	}

	rec = doJSON(t, handler, http.MethodDelete, fmt.Sprintf("/product/deleteProduct/%d", created.Data.ID), admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/product/getProduct/%d", created.Data.ID), customer, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected removed product to be gone, got %d", rec.Code)
	}
}
