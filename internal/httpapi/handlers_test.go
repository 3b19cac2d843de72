package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"saldokonter/backend/internal/domain"
	"saldokonter/backend/internal/realtime"
	"saldokonter/backend/internal/service"
	"saldokonter/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path. It seeds
// admin/admin123 and the PASAR worker rina/rina123.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, service.Options{})
	auth := NewAuthManager("test-secret-key", time.Hour, repo)
	ctx := context.Background()
	if err := auth.EnsureAdmin(ctx, "admin", "admin123"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if _, err := auth.CreateWorker(ctx, domain.WorkerCreateRequest{Username: "rina", Password: "rina123", Lokasi: domain.LokasiPasar}); err != nil {
		t.Fatalf("create worker: %v", err)
	}

	return New(svc, auth, realtime.NewHub(), "*", time.UTC)
}

func login(t *testing.T, handler http.Handler, username string, password string) string {
	t.Helper()
	rec := do(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: username, Password: password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d (body: %s)", username, rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp.AccessToken
}

func do(t *testing.T, handler http.Handler, method string, path string, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func int64Ptr(v int64) *int64 { return &v }

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

func TestHandleLogin_WorkerGetsLokasi(t *testing.T) {
	api := newTestAPI(t)
	rec := do(t, api.Handler(), http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "Rina", Password: "rina123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.AccessToken == "" || resp.Role != domain.RoleWorker || resp.Lokasi != domain.LokasiPasar {
		t.Fatalf("unexpected login response: %#v", resp)
	}
}

func TestHandleLogin_WrongPassword(t *testing.T) {
	api := newTestAPI(t)
	rec := do(t, api.Handler(), http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "rina", Password: "nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestShiftLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "rina", "rina123")

	rec := do(t, handler, http.MethodPost, "/api/v1/shifts/open", token, domain.ShiftOpenRequest{
		KasAwal:            100000,
		InitialAppBalances: map[string]int64{"DANA": 500000},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = do(t, handler, http.MethodPost, "/api/v1/shifts/active/transactions", token, domain.TransactionInput{
		Type:                domain.CashIn,
		Amount:              50000,
		Description:         "TF DANA 0812",
		SaldoKeluarAplikasi: int64Ptr(50000),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add transaction: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var active domain.ShiftResponse
	if err := json.NewDecoder(rec.Body).Decode(&active); err != nil {
		t.Fatalf("decode shift: %v", err)
	}
	if active.Shift.Lokasi != domain.LokasiPasar || active.Shift.AppBalances["DANA"] != 450000 {
		t.Fatalf("unexpected active shift: lokasi=%s dana=%d", active.Shift.Lokasi, active.Shift.AppBalances["DANA"])
	}

	rec = do(t, handler, http.MethodPost, "/api/v1/shifts/close", token, domain.ShiftCloseRequest{
		PhysicalCash: domain.PhysicalCashDetails{LargeBills: 150000},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("close: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var closed domain.ShiftCloseResponse
	if err := json.NewDecoder(rec.Body).Decode(&closed); err != nil {
		t.Fatalf("decode close: %v", err)
	}
	if closed.Archive.ID != active.Shift.ID || closed.Archive.KasAkhir != 150000 {
		t.Fatalf("unexpected archive: %#v", closed.Archive)
	}

	rec = do(t, handler, http.MethodGet, "/api/v1/shifts/active", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after close, got %d", rec.Code)
	}

	rec = do(t, handler, http.MethodGet, "/api/v1/shifts/archive/"+closed.Archive.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("worker should read own archive, got %d", rec.Code)
	}
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "rina", "rina123")

	rec := do(t, handler, http.MethodPost, "/api/v1/shifts/active/transactions", token, domain.TransactionInput{
		Type: domain.CashIn, Amount: 1000, Description: "TF DANA",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("no open shift: expected 404, got %d", rec.Code)
	}

	open := domain.ShiftOpenRequest{KasAwal: 50000}
	if rec := do(t, handler, http.MethodPost, "/api/v1/shifts/open", token, open); rec.Code != http.StatusCreated {
		t.Fatalf("open: expected 201, got %d", rec.Code)
	}
	if rec := do(t, handler, http.MethodPost, "/api/v1/shifts/open", token, open); rec.Code != http.StatusConflict {
		t.Fatalf("second open: expected 409, got %d", rec.Code)
	}

	rec = do(t, handler, http.MethodPost, "/api/v1/shifts/active/transactions", token, domain.TransactionInput{
		Type: domain.CashIn, Amount: 1000,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing description: expected 400, got %d", rec.Code)
	}

	rec = do(t, handler, http.MethodPost, "/api/v1/shifts/active/sales", token, domain.SaleRequest{
		Kind: domain.KindAccessory, ItemID: "acc-kabel-c", Qty: 21,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("overselling: expected 409, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestWorkerCannotReachAdminRoutes(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := login(t, handler, "rina", "rina123")

	for _, path := range []string{
		"/api/v1/admin/shifts/open",
		"/api/v1/admin/fee-rules",
		"/api/v1/admin/workers",
		"/api/v1/admin/reports/summary",
	} {
		if rec := do(t, handler, http.MethodGet, path, token, nil); rec.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403, got %d", path, rec.Code)
		}
	}
}

func TestStockRequestFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	workerToken := login(t, handler, "rina", "rina123")
	adminToken := login(t, handler, "admin", "admin123")

	rec := do(t, handler, http.MethodPost, "/api/v1/stock-requests", workerToken, domain.StockRequestCreate{
		Type: domain.RequestStock, AccessoryID: "acc-kabel-c", Qty: 2, Note: "habis",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create request: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Request domain.StockRequest `json:"request"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode request: %v", err)
	}

	rec = do(t, handler, http.MethodPost, "/api/v1/admin/stock-requests/"+created.Request.ID+"/approve", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = do(t, handler, http.MethodGet, "/api/v1/catalog", workerToken, nil)
	var view domain.CatalogView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode catalog: %v", err)
	}
	if view.Stock["acc-kabel-c"] != 22 {
		t.Fatalf("expected 22 cables at PASAR after approval, got %d", view.Stock["acc-kabel-c"])
	}

	rec = do(t, handler, http.MethodPost, "/api/v1/admin/stock-requests/"+created.Request.ID+"/approve", adminToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("second approve: expected 400, got %d", rec.Code)
	}
}

func TestSummaryReportCSV(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	adminToken := login(t, handler, "admin", "admin123")

	rec := do(t, handler, http.MethodGet, "/api/v1/admin/reports/summary?format=csv&from=2026-01-01&to=2026-12-31", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("expected csv content type, got %q", rec.Header().Get("Content-Type"))
	}

	rec = do(t, handler, http.MethodGet, "/api/v1/admin/reports/summary?from=01-01-2026", adminToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date: expected 400, got %d", rec.Code)
	}
}

func TestFeeRuleAdminOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	adminToken := login(t, handler, "admin", "admin123")

	rec := do(t, handler, http.MethodPost, "/api/v1/admin/fee-rules", adminToken, domain.FeeRuleRequest{MinAmount: 1000001, MaxAmount: 2000000, Fee: 15000})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create rule: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		FeeRule domain.FeeRule `json:"fee_rule"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode rule: %v", err)
	}

	rec = do(t, handler, http.MethodPost, "/api/v1/admin/fee-rules", adminToken, domain.FeeRuleRequest{MinAmount: 500, MaxAmount: 100, Fee: 1})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted bracket: expected 400, got %d", rec.Code)
	}

	rec = do(t, handler, http.MethodDelete, "/api/v1/admin/fee-rules/"+created.FeeRule.ID, adminToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete rule: expected 204, got %d", rec.Code)
	}
}

func TestAdminWalletCorrectionOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	worker := login(t, handler, "rina", "rina123")
	admin := login(t, handler, "admin", "admin123")

	rec := do(t, handler, http.MethodPost, "/api/v1/shifts/open", worker, domain.ShiftOpenRequest{
		KasAwal:            100000,
		InitialAppBalances: map[string]int64{"DANA": 500000},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var opened domain.ShiftResponse
	if err := json.NewDecoder(rec.Body).Decode(&opened); err != nil {
		t.Fatalf("decode shift: %v", err)
	}

	path := "/api/v1/admin/shifts/open/" + opened.Shift.ID + "/balances"
	req := domain.WalletAdjustRequest{WalletKey: "DANA", Delta: -20000, Note: "salah input"}

	if rec := do(t, handler, http.MethodPost, path, worker, req); rec.Code != http.StatusForbidden {
		t.Fatalf("worker: expected 403, got %d", rec.Code)
	}
	if rec := do(t, handler, http.MethodPost, "/api/v1/admin/shifts/open/shift-missing/balances", admin, req); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown shift: expected 404, got %d", rec.Code)
	}

	rec = do(t, handler, http.MethodPost, path, admin, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("correction: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var corrected domain.ShiftResponse
	if err := json.NewDecoder(rec.Body).Decode(&corrected); err != nil {
		t.Fatalf("decode shift: %v", err)
	}
	if corrected.Shift.AppBalances["DANA"] != 480000 {
		t.Fatalf("expected DANA 480000, got %d", corrected.Shift.AppBalances["DANA"])
	}
}
