package httphandler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/selectorpass/internal/adapter/driven/htmldoc"
	"github.com/ericfisherdev/selectorpass/internal/application"
	"github.com/ericfisherdev/selectorpass/internal/domain/model"
	"github.com/ericfisherdev/selectorpass/internal/domain/port/driven"
)

// maxProbeBody caps the HTML document accepted by the probe endpoint.
const maxProbeBody = 4 << 20

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	store      *application.CredentialStore
	dispatcher *application.FillDispatcher
	tabs       driven.TabResolver
	logger     *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	store *application.CredentialStore,
	dispatcher *application.FillDispatcher,
	tabs driven.TabResolver,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		store:      store,
		dispatcher: dispatcher,
		tabs:       tabs,
		logger:     logger,
	}
}

// NewServeMux creates an http.Handler with the API routes registered and
// wrapped with ApplyMiddleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return ApplyMiddleware(mux, logger)
}

// ApplyMiddleware wraps next with recovery, cross-origin protection, no-store
// and request logging.
func ApplyMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, next)
	wrapped = crossOriginMiddleware(logger, wrapped)
	wrapped = noStoreMiddleware(wrapped)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// RegisterRoutes adds the API routes to mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/health", h.Health)

	mux.HandleFunc("GET /api/v1/domains", h.ListDomains)
	mux.HandleFunc("GET /api/v1/domains/{domain}", h.GetDomain)
	mux.HandleFunc("PUT /api/v1/domains/{domain}", h.UpsertDomain)
	mux.HandleFunc("POST /api/v1/domains/{domain}/rename", h.RenameDomain)
	mux.HandleFunc("DELETE /api/v1/domains/{domain}", h.DeleteDomain)
	mux.HandleFunc("POST /api/v1/domains/{domain}/probe", h.ProbeSelectors)

	mux.HandleFunc("POST /api/v1/domains/{domain}/credentials", h.AddCredential)
	mux.HandleFunc("POST /api/v1/domains/{domain}/credentials/reorder", h.ReorderCredential)
	mux.HandleFunc("PUT /api/v1/domains/{domain}/credentials/{index}", h.EditCredential)
	mux.HandleFunc("DELETE /api/v1/domains/{domain}/credentials/{index}", h.DeleteCredential)

	mux.HandleFunc("POST /api/v1/fill", h.Fill)

	mux.HandleFunc("GET /api/v1/tabs", h.ListTabs)
	mux.HandleFunc("POST /api/v1/tabs/{id}/activate", h.ActivateTab)
	mux.HandleFunc("GET /api/v1/current-domain", h.CurrentDomain)
}

// ListDomains returns every configured domain sorted by name.
func (h *Handler) ListDomains(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListDomains(r.Context())
	if err != nil {
		h.writeServiceError(w, "list domains", err)
		return
	}

	resp := make([]DomainResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toDomainResponse(e.Domain, e.Config))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetDomain returns a single domain's configuration.
func (h *Handler) GetDomain(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")

	cfg, err := h.store.GetDomain(r.Context(), domain)
	if err != nil {
		h.writeServiceError(w, "get domain", err)
		return
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, "domain not found")
		return
	}

	writeJSON(w, http.StatusOK, toDomainResponse(domain, *cfg))
}

// UpsertDomain creates a domain or replaces its selectors, keeping its credentials.
func (h *Handler) UpsertDomain(w http.ResponseWriter, r *http.Request) {
	var req DomainRequest
	if !decodeBody(w, r, &req) {
		return
	}

	entry, err := h.store.UpsertDomain(r.Context(), r.PathValue("domain"),
		req.UsernameSelector, req.PasswordSelector, req.autoSort())
	if err != nil {
		h.writeServiceError(w, "save domain", err)
		return
	}

	writeJSON(w, http.StatusOK, toDomainResponse(entry.Domain, entry.Config))
}

// RenameDomain moves a domain's configuration and credentials to a new name.
func (h *Handler) RenameDomain(w http.ResponseWriter, r *http.Request) {
	var req RenameDomainRequest
	if !decodeBody(w, r, &req) {
		return
	}

	entry, err := h.store.RenameDomain(r.Context(), r.PathValue("domain"), req.NewDomain,
		req.UsernameSelector, req.PasswordSelector, req.autoSort())
	if err != nil {
		h.writeServiceError(w, "rename domain", err)
		return
	}

	writeJSON(w, http.StatusOK, toDomainResponse(entry.Domain, entry.Config))
}

// DeleteDomain removes a domain and its credentials. The caller must pass
// confirm=true.
func (h *Handler) DeleteDomain(w http.ResponseWriter, r *http.Request) {
	if confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm")); !confirmed {
		writeError(w, http.StatusBadRequest, "deleting a domain removes all of its credentials; repeat with confirm=true")
		return
	}

	if err := h.store.DeleteDomain(r.Context(), r.PathValue("domain")); err != nil {
		h.writeServiceError(w, "delete domain", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddCredential appends a credential to a domain.
func (h *Handler) AddCredential(w http.ResponseWriter, r *http.Request) {
	var req CredentialRequest
	if !decodeBody(w, r, &req) {
		return
	}

	domain := strings.TrimSpace(r.PathValue("domain"))
	cfg, err := h.store.AddCredential(r.Context(), domain, req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, "add credential", err)
		return
	}

	writeJSON(w, http.StatusCreated, toDomainResponse(domain, cfg))
}

// EditCredential replaces the credential at an index.
func (h *Handler) EditCredential(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	var req CredentialRequest
	if !decodeBody(w, r, &req) {
		return
	}

	domain := strings.TrimSpace(r.PathValue("domain"))
	cfg, err := h.store.EditCredential(r.Context(), domain, index, req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, "edit credential", err)
		return
	}

	writeJSON(w, http.StatusOK, toDomainResponse(domain, cfg))
}

// DeleteCredential removes the credential at an index.
func (h *Handler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}

	domain := strings.TrimSpace(r.PathValue("domain"))
	cfg, err := h.store.DeleteCredential(r.Context(), domain, index)
	if err != nil {
		h.writeServiceError(w, "delete credential", err)
		return
	}

	writeJSON(w, http.StatusOK, toDomainResponse(domain, cfg))
}

// ReorderCredential moves a credential from one position to another.
func (h *Handler) ReorderCredential(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	domain := strings.TrimSpace(r.PathValue("domain"))
	cfg, err := h.store.ReorderCredential(r.Context(), domain, req.From, req.To)
	if err != nil {
		h.writeServiceError(w, "reorder credentials", err)
		return
	}

	writeJSON(w, http.StatusOK, toDomainResponse(domain, cfg))
}

// ProbeSelectors reports which of a domain's configured fields exist in the
// HTML document sent as the request body. The document is not modified.
func (h *Handler) ProbeSelectors(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")

	cfg, err := h.store.GetDomain(r.Context(), domain)
	if err != nil {
		h.writeServiceError(w, "probe selectors", err)
		return
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, "domain not found")
		return
	}

	doc, err := htmldoc.Parse(io.LimitReader(r.Body, maxProbeBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid HTML document")
		return
	}

	res, err := application.ProbeSelectors(r.Context(), doc, cfg.UsernameSelector, cfg.PasswordSelector)
	if err != nil {
		h.logger.Warn("selector probe failed", "domain", domain, "error", err)
		writeError(w, http.StatusUnprocessableEntity, "configured selectors could not be evaluated")
		return
	}

	writeJSON(w, http.StatusOK, ProbeResponse{
		UsernameFound: res.UsernameFound,
		PasswordFound: res.PasswordFound,
		Fillable:      res.Fillable(),
	})
}

// Fill sends a saved credential to the active tab. An empty domain means the
// active tab's domain.
func (h *Handler) Fill(w http.ResponseWriter, r *http.Request) {
	var req FillRequest
	if !decodeBody(w, r, &req) {
		return
	}

	outcome, err := h.dispatcher.FillByIndex(r.Context(), req.Domain, req.Index)
	if err != nil {
		h.writeServiceError(w, "fill", err)
		return
	}

	writeJSON(w, http.StatusOK, FillResponse{Outcome: string(outcome)})
}

// ListTabs returns the browser's open tabs, marking the active one.
func (h *Handler) ListTabs(w http.ResponseWriter, r *http.Request) {
	tabs, err := h.tabs.ListTabs(r.Context())
	if err != nil {
		h.logger.Error("failed to list tabs", "error", err)
		writeError(w, http.StatusBadGateway, "browser unavailable")
		return
	}

	var activeID string
	if active, err := h.tabs.ActiveTab(r.Context()); err == nil && active != nil {
		activeID = active.ID
	}

	resp := make([]TabResponse, 0, len(tabs))
	for _, t := range tabs {
		resp = append(resp, TabResponse{ID: t.ID, URL: t.URL, Title: t.Title, Active: t.ID == activeID})
	}

	writeJSON(w, http.StatusOK, resp)
}

// ActivateTab makes a tab the target of subsequent fills.
func (h *Handler) ActivateTab(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.tabs.ActivateTab(r.Context(), id); err != nil {
		if errors.Is(err, model.ErrNoActiveTab) {
			writeError(w, http.StatusNotFound, "tab not found")
			return
		}
		h.logger.Error("failed to activate tab", "tab", id, "error", err)
		writeError(w, http.StatusBadGateway, "browser unavailable")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CurrentDomain returns the active tab's domain and whether it is configured.
func (h *Handler) CurrentDomain(w http.ResponseWriter, r *http.Request) {
	domain, err := h.dispatcher.CurrentDomain(r.Context())
	if err != nil {
		writeError(w, http.StatusNotFound, "no active tab with a domain")
		return
	}

	cfg, err := h.store.GetDomain(r.Context(), domain)
	if err != nil {
		h.writeServiceError(w, "current domain", err)
		return
	}

	writeJSON(w, http.StatusOK, CurrentDomainResponse{Domain: domain, Configured: cfg != nil})
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeServiceError maps application errors to HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidDomain),
		errors.Is(err, model.ErrInvalidSelector),
		errors.Is(err, model.ErrInvalidCredential),
		errors.Is(err, model.ErrIndexOutOfRange):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrDuplicateDomain):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrUnknownDomain):
		writeError(w, http.StatusNotFound, "domain not found")
	case errors.Is(err, model.ErrPersistence):
		h.logger.Error("storage failure", "op", op, "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable, please try again")
	case errors.Is(err, model.ErrNoActiveTab),
		errors.Is(err, model.ErrDomainMismatch),
		errors.Is(err, model.ErrMessaging),
		errors.Is(err, model.ErrFillRejected):
		h.logger.Warn("fill failed", "op", op, "error", err)
		writeError(w, http.StatusBadGateway, FillFailedMessage)
	default:
		h.logger.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeBody decodes the JSON request body into v. It writes a 415 unless the
// body is declared as application/json and a 400 when decoding fails.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		writeError(w, http.StatusUnsupportedMediaType, "request body must be application/json")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func pathIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid credential index")
		return 0, false
	}
	return index, true
}
