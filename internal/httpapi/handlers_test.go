package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cafepos/backend/internal/cache"
	"cafepos/backend/internal/domain"
	"cafepos/backend/internal/report"
	"cafepos/backend/internal/service"
	"cafepos/backend/internal/store"
	"cafepos/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	reports := report.NewEngine(cache.NoopDashboardCache{}, time.Second, 8)
	svc := service.New(repo, reports)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.AccessToken == "" {
		t.Fatalf("expected access_token in response")
	}
	if body.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %q", body.Role)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "admin", "admin123")

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["products"] == nil {
		t.Fatalf("expected products key in response, got %v", body)
	}
}

func TestHandleSales_RecordAndFetch(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "cashier", "cashier123")
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.RecordSaleRequest{
		PaymentMethod: "gcash",
		Items: []domain.CartLine{
			{ProductID: "prod-americano-m", Qty: 2},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/sales", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.RecordSaleResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalCents != 18000 {
		t.Fatalf("expected total 18000, got %d", resp.TotalCents)
	}
	if resp.PaymentMethod != domain.PaymentDigital {
		t.Fatalf("expected normalized payment method, got %q", resp.PaymentMethod)
	}

	fetchReq := httptest.NewRequest(http.MethodGet, "/api/sales/"+resp.SaleID, nil)
	fetchReq.Header.Set("Authorization", "Bearer "+token)
	fetchRec := httptest.NewRecorder()

	handler.ServeHTTP(fetchRec, fetchReq)

	if fetchRec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching sale, got %d (body: %s)", fetchRec.Code, fetchRec.Body.String())
	}
}

func TestHandleSales_InsufficientStockConflict(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "cashier", "cashier123")
	csrf := fetchCSRFToken(t, api)

	// 10000 americanos need far more beans than the seed stock holds.
	payload, _ := json.Marshal(domain.RecordSaleRequest{
		Items: []domain.CartLine{
			{ProductID: "prod-americano-m", Qty: 10000},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/sales", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleSales_EmptyCartBadRequest(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "cashier", "cashier123")
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.RecordSaleRequest{})
	req := httptest.NewRequest(http.MethodPost, "/api/sales", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleReports_CashierForbidden(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "cashier", "cashier123")

	req := httptest.NewRequest(http.MethodGet, "/api/reports/summary?range=today", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleReports_SummaryForAdmin(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "admin", "admin123")

	req := httptest.NewRequest(http.MethodGet, "/api/reports/summary?range=all", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var summary domain.ReportSummary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Label != "All Time" {
		t.Fatalf("expected All Time label, got %q", summary.Label)
	}
}

func TestHandleProducts_CreateForbiddenForCashier(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "cashier", "cashier123")
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.ProductCreateRequest{Name: "Flat White", PriceCents: 10000})
	req := httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleSalesExport_AdminOnly(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	adminToken := loginAs(t, api, "admin", "admin123")
	req := httptest.NewRequest(http.MethodGet, "/api/sales/export?range=all", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("unexpected content type %q", got)
	}

	cashierToken := loginAs(t, api, "cashier", "cashier123")
	req = httptest.NewRequest(http.MethodGet, "/api/sales/export?range=all", nil)
	req.Header.Set("Authorization", "Bearer "+cashierToken)
	rec = httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier export, got %d", rec.Code)
	}
}

func TestHandleUsers_CreateAndList(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "admin", "admin123")
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.UserCreateRequest{
		Username: "barista1",
		Password: "secret99",
		Role:     "cashier",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	listReq.Header.Set("Authorization", "Bearer "+token)
	listRec := httptest.NewRecorder()

	handler.ServeHTTP(listRec, listReq)

	if listRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", listRec.Code)
	}

	var body struct {
		Users []domain.User `json:"users"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&body); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	found := false
	for _, user := range body.Users {
		if user.Username == "barista1" && user.Role == domain.RoleCashier {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected barista1 in user list, got %+v", body.Users)
	}

	// The new account must be able to log in right away.
	loginAs(t, api, "barista1", "secret99")
}

func TestHandleUnknownPreset_BadRequest(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "cashier", "cashier123")

	req := httptest.NewRequest(http.MethodGet, "/api/sales?range=fortnight", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown preset, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

// failingRepo delegates to the embedded repository but refuses to persist
// sales, standing in for a database that drops the connection mid-request.
type failingRepo struct {
	store.Repository
}

func (failingRepo) CreateSale(ctx context.Context, sale domain.Sale, demand []domain.IngredientDemand) (*domain.Sale, error) {
	return nil, errors.New("connection refused")
}

func TestHandleSales_StorageFailureReturnsGeneric500(t *testing.T) {
	repo := memory.NewSeeded()
	reports := report.NewEngine(cache.NoopDashboardCache{}, time.Second, 8)
	svc := service.New(failingRepo{Repository: repo}, reports)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)
	api := New(svc, auth, "*")
	handler := api.Handler()

	token := loginAs(t, api, "cashier", "cashier123")
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.RecordSaleRequest{
		Items: []domain.CartLine{{ProductID: "prod-americano-m", Qty: 1}},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/sales", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "internal server error" {
		t.Fatalf("expected generic error body, got %q", body["error"])
	}
}
