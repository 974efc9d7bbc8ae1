package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cartify/backend/internal/domain"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"at":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, errInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": resp})
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	account, err := a.auth.RegisterCustomer(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "message": "customer created", "data": account})
}

func (a *API) handleAddAdmin(w http.ResponseWriter, r *http.Request) {
	var req domain.AddAdminRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	account, err := a.auth.RegisterAdmin(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "message": "admin created", "data": account})
}

func (a *API) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": product})
}

func (a *API) handleGetProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := parsePositiveInt(q.Get("page"), 1, 0)
	limit := parsePositiveInt(q.Get("limit"), defaultPageSize, maxPageSize)

	resp, err := a.service.ListProducts(r.Context(), page, limit, q.Get("search"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": resp})
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "productId"), "productId")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	product, err := a.service.GetProduct(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": product})
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "productId"), "productId")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := a.service.RemoveProduct(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "product removed"})
}

func (a *API) handleCreateBilling(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateBillingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	resp, err := a.service.CreateBilling(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":      true,
		"billId":       resp.BillID,
		"productData":  resp.ProductData,
		"customerName": resp.CustomerName,
		"totalBilling": resp.TotalBilling,
		"totalWeight":  resp.TotalWeight,
	})
}

func (a *API) handleGetBilling(w http.ResponseWriter, r *http.Request) {
	doc, err := a.service.GetBillDocument(r.Context(), r.URL.Query().Get("billId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := renderBillPDF(&buf, doc); err != nil {
		writeServiceError(w, fmt.Errorf("render bill %s: %w", doc.BillID, err))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.BillID+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (a *API) handleCreatePosBill(w http.ResponseWriter, r *http.Request) {
	bill, err := a.service.CreatePosBill(r.Context(), r.URL.Query().Get("billId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "posBill": bill})
}

func (a *API) handleGetPosBills(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := parsePositiveInt(q.Get("page"), 1, 0)
	limit := parsePositiveInt(q.Get("limit"), defaultPageSize, maxPageSize)

	resp, err := a.service.ListPendingPosBills(r.Context(), page, limit, q.Get("search"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": resp})
}

func (a *API) handleUpdatePosBill(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.URL.Query().Get("id"), "id")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp, err := a.service.SetPosBillAsPaid(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	message := "pos bill marked as paid"
	if !resp.Applied {
		message = "pos bill was already paid"
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": message, "data": resp})
}

func (a *API) handleOnlinePayment(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.StartOnlinePayment(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"clientSecret":   resp.ClientSecret,
		"billingDetails": resp.BillingDetails,
		"totalAmount":    resp.TotalAmount,
		"posBill":        resp.PosBill,
	})
}

// handleWebhook only trusts payloads whose signature verifies. Errors on
// recognized events answer non-2xx so the gateway delivers them again.
func (a *API) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read webhook body: %w", err))
		return
	}

	ev, err := a.gateway.ParseEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Printf("[webhook] rejected delivery from %s: %v", clientKey(r), err)
		writeServiceError(w, err)
		return
	}

	result, err := a.service.HandlePaymentEvent(r.Context(), ev)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": result})
}

func (a *API) handlePaymentHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseDate(q.Get("startRange"), "startRange", false)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	end, err := parseDate(q.Get("endRange"), "endRange", true)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp, err := a.service.PaymentHistory(r.Context(), domain.PaymentHistoryQuery{
		Page:       parsePositiveInt(q.Get("page"), 1, 0),
		Limit:      parsePositiveInt(q.Get("limit"), defaultPageSize, maxPageSize),
		BillID:     q.Get("billId"),
		StartRange: start,
		EndRange:   end,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": resp})
}
