package httpapi

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"saldokonter/backend/internal/domain"
	"saldokonter/backend/internal/metrics"
	"saldokonter/backend/internal/realtime"
	"saldokonter/backend/internal/report"
	"saldokonter/backend/internal/service"
	"saldokonter/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	hub           *realtime.Hub
	allowedOrigin string
	loc           *time.Location
	loginLimiter  *attemptLimiter
}

// New wires the HTTP surface. loc is the shop timezone used to read
// YYYY-MM-DD date filters.
func New(svc *service.Service, auth *AuthManager, hub *realtime.Hub, allowedOrigin string, loc *time.Location) *API {
	if loc == nil {
		loc = time.UTC
	}
	return &API{
		service:       svc,
		auth:          auth,
		hub:           hub,
		allowedOrigin: allowedOrigin,
		loc:           loc,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	if a.hub != nil {
		mux.Handle("/ws/", realtime.NewRouter(a.hub, a.auth, a.allowedOrigin))
	}

	worker := []string{domain.RoleWorker, domain.RoleAdmin}
	mux.HandleFunc("/api/v1/shifts/open", a.requireAuth(a.handleShiftOpen, worker...))
	mux.HandleFunc("/api/v1/shifts/active", a.requireAuth(a.handleShiftActive, worker...))
	mux.HandleFunc("/api/v1/shifts/close", a.requireAuth(a.handleShiftClose, worker...))
	mux.HandleFunc("/api/v1/shifts/active/transactions", a.requireAuth(a.handleTransactions, worker...))
	mux.HandleFunc("/api/v1/shifts/active/transactions/{id}", a.requireAuth(a.handleTransactionActions, worker...))
	mux.HandleFunc("/api/v1/shifts/active/sales", a.requireAuth(a.handleSales, worker...))
	mux.HandleFunc("/api/v1/shifts/active/balances", a.requireAuth(a.handleBalances, worker...))
	mux.HandleFunc("/api/v1/shifts/archive", a.requireAuth(a.handleArchives, worker...))
	mux.HandleFunc("/api/v1/shifts/archive/{id}", a.requireAuth(a.handleArchive, worker...))
	mux.HandleFunc("/api/v1/fees/quote", a.requireAuth(a.handleFeeQuote, worker...))
	mux.HandleFunc("/api/v1/catalog", a.requireAuth(a.handleCatalog, worker...))
	mux.HandleFunc("/api/v1/stock-requests", a.requireAuth(a.handleStockRequests, worker...))

	mux.HandleFunc("/api/v1/admin/shifts/open", a.requireAuth(a.handleOpenShifts, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/admin/shifts/open/{id}", a.requireAuth(a.handleOpenShiftActions, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/admin/shifts/open/{id}/balances", a.requireAuth(a.handleOpenShiftBalances, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/admin/shifts/archive", a.requireAuth(a.handleArchives, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/admin/shifts/archive/{id}", a.requireAuth(a.handleArchive, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/admin/shifts/archive/{id}/export", a.requireAuth(a.handleArchiveExport, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/admin/shifts/archive/{id}/deposit", a.requireAuth(a.handleArchiveDeposit, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/admin/fee-rules", a.requireAuth(a.handleFeeRules, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/admin/fee-rules/{id}", a.requireAuth(a.handleFeeRuleActions, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/admin/catalog", a.requireAuth(a.handleAdminCatalog, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/admin/catalog/{id}", a.requireAuth(a.handleAdminCatalogActions, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/admin/stock/adjust", a.requireAuth(a.handleStockAdjust, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/admin/stock/transfer", a.requireAuth(a.handleStockTransfer, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/admin/stock/logs", a.requireAuth(a.handleStockLogs, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/admin/stock-requests/{id}/{action}", a.requireAuth(a.handleStockRequestDecision, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/admin/workers", a.requireAuth(a.handleWorkers, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/admin/workers/{username}", a.requireAuth(a.handleWorkerActions, domain.RoleAdmin))
	mux.HandleFunc("/api/v1/admin/reports/summary", a.requireAuth(a.handleSummaryReport, domain.RoleAdmin))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrInactiveAccount) {
			status = http.StatusUnauthorized
		}
		writeError(w, status, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleShiftOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ShiftOpenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	shift, err := a.service.OpenShift(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, domain.ShiftResponse{Shift: shift})
}

func (a *API) handleShiftActive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	shift, err := a.service.GetActiveShift(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.ShiftResponse{Shift: shift})
}

func (a *API) handleShiftClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.ShiftCloseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.CloseShift(r.Context(), req)
	if errors.Is(err, service.ErrCloseIncomplete) {
		// The archive exists; the client must know it so the shift is not
		// closed a second time.
		log.Printf("[httpapi] ERROR: close shift: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"archive": resp.Archive,
			"error":   service.ErrCloseIncomplete.Error(),
		})
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var input domain.TransactionInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	shift, err := a.service.AddTransaction(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, domain.ShiftResponse{Shift: shift})
}

func (a *API) handleTransactionActions(w http.ResponseWriter, r *http.Request) {
	txID := strings.TrimSpace(r.PathValue("id"))
	if txID == "" {
		writeError(w, http.StatusBadRequest, errors.New("transaction id required"))
		return
	}

	var (
		shift domain.Shift
		err   error
	)
	switch r.Method {
	case http.MethodPatch:
		var patch domain.TransactionPatch
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		shift, err = a.service.UpdateTransaction(r.Context(), txID, patch)
	case http.MethodDelete:
		shift, err = a.service.DeleteTransaction(r.Context(), txID)
	default:
		writeMethodNotAllowed(w)
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.ShiftResponse{Shift: shift})
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.SaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	shift, err := a.service.SellItem(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, domain.ShiftResponse{Shift: shift})
}

func (a *API) handleBalances(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		shift, err := a.service.GetActiveShift(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		logs, err := a.service.ListBalanceLogs(r.Context(), shift.ID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"balances": shift.AppBalances,
			"logs":     logs,
		})
	case http.MethodPost:
		var req domain.WalletAdjustRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		shift, err := a.service.AdjustWalletBalance(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, domain.ShiftResponse{Shift: shift})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleFeeQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.FeeQuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	quote, err := a.service.QuoteFee(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (a *API) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	view, err := a.service.ListCatalog(r.Context(), r.URL.Query().Get("lokasi"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleStockRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		status := domain.StockRequestStatus(strings.ToUpper(strings.TrimSpace(query.Get("status"))))
		requests, err := a.service.ListStockRequests(r.Context(), query.Get("lokasi"), status)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
	case http.MethodPost:
		var req domain.StockRequestCreate
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		request, err := a.service.CreateStockRequest(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"request": request})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleOpenShifts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	shifts, err := a.service.ListOpenShifts(r.Context(), r.URL.Query().Get("lokasi"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shifts": shifts})
}

func (a *API) handleOpenShiftActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.OpeningCashRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	shift, err := a.service.UpdateOpeningCash(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.ShiftResponse{Shift: shift})
}

func (a *API) handleOpenShiftBalances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.WalletAdjustRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	shift, err := a.service.AdjustShiftWallet(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.ShiftResponse{Shift: shift})
}

func (a *API) handleArchives(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	filter, err := service.ParseArchiveFilter(
		query.Get("lokasi"),
		query.Get("username"),
		query.Get("from"),
		query.Get("to"),
		parsePositiveLimit(query.Get("limit"), 50, 500),
		a.loc,
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	archives, err := a.service.ListArchivedShifts(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": archives})
}

func (a *API) handleArchive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	archive, err := a.service.GetArchivedShift(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"archive": archive})
}

func (a *API) handleArchiveExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	id := r.PathValue("id")
	format := service.ExportFormat(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))))
	if format == "" {
		format = service.ExportText
	}
	archive, err := a.service.GetArchivedShift(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := a.service.ExportShift(r.Context(), id, format, &buf); err != nil {
		writeServiceError(w, err)
		return
	}

	contentType := "text/plain; charset=utf-8"
	if format == service.ExportHTML {
		contentType = "text/html; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", service.ReportFilename(archive, format)))
	_, _ = w.Write(buf.Bytes())
}

func (a *API) handleArchiveDeposit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.DepositRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	archive, err := a.service.RecordDeposit(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"archive": archive})
}

func (a *API) handleFeeRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rules, err := a.service.ListFeeRules(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"fee_rules": rules})
	case http.MethodPost:
		var req domain.FeeRuleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		rule, err := a.service.CreateFeeRule(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"fee_rule": rule})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleFeeRuleActions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodPatch:
		var req domain.FeeRuleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		rule, err := a.service.UpdateFeeRule(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"fee_rule": rule})
	case http.MethodDelete:
		if err := a.service.DeleteFeeRule(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleAdminCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.CatalogItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	item, err := a.service.CreateCatalogItem(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": item})
}

func (a *API) handleAdminCatalogActions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodPatch:
		var req domain.CatalogItemUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		item, err := a.service.UpdateCatalogItem(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"item": item})
	case http.MethodDelete:
		if err := a.service.DeleteCatalogItem(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleStockAdjust(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.StockAdjustRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	qty, err := a.service.AdjustStock(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"item_id": req.ItemID,
		"lokasi":  domain.NormalizeLokasi(req.Lokasi),
		"qty":     qty,
	})
}

func (a *API) handleStockTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.StockTransferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := a.service.TransferStock(r.Context(), req); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleStockLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	logs, err := a.service.ListStockLogs(r.Context(), query.Get("lokasi"), parsePositiveLimit(query.Get("limit"), 100, 1000))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (a *API) handleStockRequestDecision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	id := r.PathValue("id")
	var (
		request domain.StockRequest
		err     error
	)
	switch r.PathValue("action") {
	case "approve":
		request, err = a.service.ApproveStockRequest(r.Context(), id)
	case "reject":
		request, err = a.service.RejectStockRequest(r.Context(), id)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown stock request action"))
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": request})
}

func (a *API) handleWorkers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		workers, err := a.auth.ListWorkers(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"workers": workers})
	case http.MethodPost:
		var req domain.WorkerCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		worker, err := a.auth.CreateWorker(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"worker": worker})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleWorkerActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.WorkerUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	worker, err := a.auth.UpdateWorker(r.Context(), r.PathValue("username"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"worker": worker})
}

func (a *API) handleSummaryReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	filter, err := service.ParseArchiveFilter(query.Get("lokasi"), query.Get("username"), query.Get("from"), query.Get("to"), 0, a.loc)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	summary, err := a.service.SummaryReport(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	switch strings.ToLower(strings.TrimSpace(query.Get("format"))) {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename=\"saldo-summary.csv\"")
		_, _ = w.Write([]byte(report.SummaryCSV(summary)))
	default:
		writeJSON(w, http.StatusOK, summary)
	}
}

// statusRecorder keeps the response code for request metrics. It must stay
// hijackable for the websocket upgrade.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(startedAt)
		metrics.ObserveRequest(r.Method, r.Pattern, rec.status, elapsed)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, elapsed)
	})
}

// writeServiceError maps service and store errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, store.ErrInvalidTransaction):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, store.ErrNotFound), errors.Is(err, service.ErrNoOpenShift):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrConflict), errors.Is(err, service.ErrShiftAlreadyOpen), errors.Is(err, store.ErrInsufficientStock):
		status = http.StatusConflict
	}
	writeError(w, status, err)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies are generic; the cause is only logged.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
