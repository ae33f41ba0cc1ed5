package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"simplepos/internal/adjustment"
	"simplepos/internal/domain"
	"simplepos/internal/ledger"
	"simplepos/internal/service"
	"simplepos/internal/stockstatus"
	"simplepos/internal/store"
	"simplepos/internal/submitqueue"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	validate      *validator.Validate
	submissions   store.Repository
	log           zerolog.Logger
}

type Option func(*API)

// WithSubmissionStore exposes recorded intake submissions when forms are
// kept locally instead of being posted.
func WithSubmissionStore(repo store.Repository) Option {
	return func(a *API) {
		a.submissions = repo
	}
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, log zerolog.Logger, opts ...Option) *API {
	a := &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		validate:      validator.New(),
		log:           log.With().Str("component", "httpapi").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
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
	l.entries[key] = append(kept, now)
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
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/logout", a.requireAuth(a.handleLogout))

	mux.HandleFunc("/api/v1/catalog", a.requireAuth(a.handleCatalog))
	mux.HandleFunc("/api/v1/catalog/reload", a.requireAuth(a.handleCatalogReload))
	mux.HandleFunc("/api/v1/pricing/price", a.requireAuth(a.handlePrice))
	mux.HandleFunc("/api/v1/pricing/total", a.requireAuth(a.handleTotal))

	mux.HandleFunc("/api/v1/sales", a.requireAuth(a.handleSales))
	mux.HandleFunc("/api/v1/sales/", a.requireAuth(a.handleSaleActions))
	mux.HandleFunc("/api/v1/sales/clear", a.requireAuth(a.handleSalesClear))
	mux.HandleFunc("/api/v1/sales/submit", a.requireAuth(a.handleSalesSubmit))

	mux.HandleFunc("/api/v1/stock/levels", a.requireAuth(a.handleStockLevels))

	mux.HandleFunc("/api/v1/adjustments", a.requireAuth(a.handleAdjustments))
	mux.HandleFunc("/api/v1/adjustments/", a.requireAuth(a.handleAdjustmentActions))
	mux.HandleFunc("/api/v1/adjustments/suggestions", a.requireAuth(a.handleAdjustmentSuggestions))
	mux.HandleFunc("/api/v1/adjustments/clear", a.requireAuth(a.handleAdjustmentsClear))
	mux.HandleFunc("/api/v1/adjustments/submit", a.requireAuth(a.handleAdjustmentsSubmit))

	mux.HandleFunc("/api/v1/intake/submissions", a.requireAuth(a.handleSubmissions))
	mux.HandleFunc("/api/v1/intake/submissions/", a.requireAuth(a.handleSubmission))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
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

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
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
	if !a.decodeAndValidate(w, r, &req) {
		return
	}

	storeCtx, err := a.auth.Authenticate(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	username := strings.TrimSpace(req.Username)
	expiresAt := time.Now().UTC().Add(a.auth.TokenTTL())
	sess, loaded := a.service.OpenSession(r.Context(), storeCtx, username, expiresAt)

	token, err := a.auth.Sign(username, storeCtx.ID, sess.ID, expiresAt)
	if err != nil {
		a.service.Sessions().Delete(sess.ID)
		a.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domain.LoginResponse{
		AccessToken:    token,
		StoreID:        storeCtx.ID,
		StoreName:      storeCtx.DisplayName(),
		ExpiresAt:      expiresAt.Format(time.RFC3339),
		CatalogSize:    loaded.Count,
		CatalogWarning: loaded.Warning,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if err := a.service.CloseSession(r.Context()); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), service.DefaultSearchLimit, 500)
	resp, err := a.service.SearchCatalog(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCatalogReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	resp, err := a.service.ReloadCatalog(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handlePrice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	resp, err := a.service.Price(r.Context(), q.Get("item"), q.Get("unit"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleTotal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.TotalRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, a.service.Total(req))
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		resp, err := a.service.ListSales(r.Context())
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodPost:
		var req domain.SaleRequest
		if !a.decodeAndValidate(w, r, &req) {
			return
		}
		line, err := a.service.AddSale(r.Context(), req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, line)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	index, err := pathIndex(r.URL.Path, "/api/v1/sales/")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.RemoveSale(r.Context(), index)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSalesClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.ConfirmRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	resp, err := a.service.ClearSales(r.Context(), req.Confirm)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSalesSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	resp, err := a.service.SubmitSales(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type stockLevelsResponse struct {
	stockstatus.Report
	Warning string `json:"warning,omitempty"`
}

func (a *API) handleStockLevels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	reload, _ := strconv.ParseBool(strings.TrimSpace(q.Get("reload")))
	report, warning, err := a.service.StockLevels(r.Context(), q.Get("q"), reload)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	switch strings.ToLower(strings.TrimSpace(q.Get("format"))) {
	case "", "json":
		writeJSON(w, http.StatusOK, stockLevelsResponse{Report: report, Warning: warning})
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="stock-levels.csv"`)
		w.WriteHeader(http.StatusOK)
		if err := stockstatus.WriteCSV(w, report); err != nil {
			a.log.Error().Err(err).Msg("write stock csv")
		}
	case "xlsx":
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="stock-levels.xlsx"`)
		w.WriteHeader(http.StatusOK)
		if err := stockstatus.WriteXLSX(w, report); err != nil {
			a.log.Error().Err(err).Msg("write stock xlsx")
		}
	default:
		writeError(w, http.StatusBadRequest, errors.New("format must be json, csv or xlsx"))
	}
}

func (a *API) handleAdjustments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		resp, err := a.service.ListAdjustments(r.Context())
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodPost:
		var req domain.AdjustmentAddRequest
		if !a.decodeAndValidate(w, r, &req) {
			return
		}
		resp, err := a.service.AddAdjustment(r.Context(), req.Name)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleAdjustmentActions(w http.ResponseWriter, r *http.Request) {
	index, err := pathIndex(r.URL.Path, "/api/v1/adjustments/")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req domain.AdjustmentEditRequest
		if !a.decodeAndValidate(w, r, &req) {
			return
		}
		resp, err := a.service.EditAdjustment(r.Context(), index, req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodDelete:
		resp, err := a.service.RemoveAdjustment(r.Context(), index)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleAdjustmentSuggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	resp, err := a.service.SuggestAdjustments(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleAdjustmentsClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var req domain.ConfirmRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}
	resp, err := a.service.ClearAdjustments(r.Context(), req.Confirm)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleAdjustmentsSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	resp, err := a.service.SubmitAdjustments(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if a.submissions == nil {
		writeError(w, http.StatusNotFound, errors.New("submissions are posted to the intake forms and not recorded"))
		return
	}
	q := r.URL.Query()
	subs, err := a.submissions.ListSubmissions(r.Context(), strings.TrimSpace(q.Get("form")), parsePositiveLimit(q.Get("limit"), 50, 500))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": subs})
}

func (a *API) handleSubmission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if a.submissions == nil {
		writeError(w, http.StatusNotFound, errors.New("submissions are posted to the intake forms and not recorded"))
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/intake/submissions/"), "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("submission id required"))
		return
	}
	sub, err := a.submissions.GetSubmission(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
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
		a.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(startedAt)).
			Msg("request")
	})
}

// decodeAndValidate writes a 400 and returns false when the body is not
// valid JSON for dest or fails its validate tags. An empty body decodes to
// the zero value.
func (a *API) decodeAndValidate(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := decodeJSON(r, dest); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	if err := a.validate.Struct(dest); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			err = fmt.Errorf("%s is %s", strings.ToLower(verrs[0].Field()), describeTag(verrs[0]))
		}
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return "not one of " + fe.Param()
	default:
		return "invalid"
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func pathIndex(path string, prefix string) (int, error) {
	tail := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if tail == "" {
		return 0, errors.New("index required")
	}
	index, err := strconv.Atoi(tail)
	if err != nil || index < 0 {
		return 0, fmt.Errorf("invalid index %q", tail)
	}
	return index, nil
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

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrIndexOutOfRange),
		errors.Is(err, adjustment.ErrIndexOutOfRange),
		errors.Is(err, adjustment.ErrProductNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, adjustment.ErrDuplicate),
		errors.Is(err, submitqueue.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, service.ErrItemRequired),
		errors.Is(err, service.ErrInvalidUnit),
		errors.Is(err, adjustment.ErrNameRequired),
		errors.Is(err, adjustment.ErrUnknownField),
		errors.Is(err, adjustment.ErrInvalidUnit),
		errors.Is(err, adjustment.ErrInvalidType):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrConfirmationRequired),
		errors.Is(err, adjustment.ErrConfirmationRequired),
		errors.Is(err, adjustment.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, adjustment.ErrEmpty),
		errors.Is(err, service.ErrNothingToSubmit):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		a.log.Error().Err(err).Int("status", status).Msg("internal error")
	}
	writeError(w, status, err)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; 4xx messages are meant for the cashier.
	msg := err.Error()
	if status >= 500 {
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
