// Package web implements the HTML GUI driving adapter using templ components.
package web

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/ericfisherdev/selectorpass/internal/adapter/driving/web/templates"
	vm "github.com/ericfisherdev/selectorpass/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/selectorpass/internal/application"
	"github.com/ericfisherdev/selectorpass/internal/domain/model"
)

// Notice texts shown by the GUI.
const (
	msgFillAllFields      = "Please fill all fields"
	msgInvalidDomain      = "Please enter a valid domain name"
	msgDomainExists       = "Domain already exists"
	msgDomainNotFound     = "Domain not found"
	msgCredentialRequired = "Username and password are required"
	msgCredentialTooLong  = "Username and password must be less than 100 characters"
	msgSaveDomainFailed   = "Error saving domain. Please try again."
	msgAddCredFailed      = "Error adding credential. Please try again."
	msgSaveChangesFailed  = "Error saving changes. Please try again."
	msgDeleteDomainFailed = "Error deleting domain. Please try again."
	msgDeleteCredFailed   = "Error deleting credential. Please try again."
	msgFillFailed         = "Failed to fill form. Please refresh the page and try again."
	msgCredentialMissing  = "Saved credential not found. Please reopen the popup and try again."
	msgStorageUnavailable = "Saved domains could not be loaded. Please try again."
)

// successNotices maps the msg query parameter set by redirects to its text.
var successNotices = map[string]string{
	"domain-saved":       "Domain saved",
	"domain-deleted":     "Domain deleted",
	"credential-saved":   "Credential saved",
	"credential-deleted": "Credential deleted",
	"filled":             "Credentials filled",
}

// Handler is the web GUI driving adapter that serves HTML via templ components.
type Handler struct {
	store      *application.CredentialStore
	viewState  *application.ViewStateStore
	dispatcher *application.FillDispatcher
	logger     *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	store *application.CredentialStore,
	viewState *application.ViewStateStore,
	dispatcher *application.FillDispatcher,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		store:      store,
		viewState:  viewState,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Popup renders the credential picker for the active tab.
func (h *Handler) Popup(w http.ResponseWriter, r *http.Request) {
	p := h.popupModel(r.Context(), csrfToken(w, r))
	p.Notice = successNotice(r)
	h.render(w, r, http.StatusOK, "SelectorPass", templates.Popup(p))
}

// PopupFill fills the chosen credential into the active tab.
func (h *Handler) PopupFill(w http.ResponseWriter, r *http.Request) {
	if !h.checkCSRF(w, r) {
		return
	}

	index, err := strconv.Atoi(r.PostFormValue("index"))
	if err != nil {
		h.renderPopupError(w, r, http.StatusBadRequest, msgFillFailed)
		return
	}

	outcome, err := h.dispatcher.FillByIndex(r.Context(), r.PostFormValue("domain"), index)
	if err != nil {
		h.logger.Warn("popup fill failed", "error", err)
		h.renderPopupError(w, r, statusFor(err), msgFillFailed)
		return
	}

	if outcome != model.FillCompleted {
		h.renderPopupError(w, r, http.StatusConflict, msgCredentialMissing)
		return
	}
	http.Redirect(w, r, "/?msg=filled", http.StatusSeeOther)
}

// Options renders the domain management page. A domain prefill expands the
// add form for this response only; the saved view state is left alone.
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	state := vm.ParseEditState(r.URL.Query())
	h.renderOptions(w, r, http.StatusOK, optionsPage{state: state, notice: successNotice(r)})
}

// CreateDomain adds a new domain from the add form.
func (h *Handler) CreateDomain(w http.ResponseWriter, r *http.Request) {
	if !h.checkCSRF(w, r) {
		return
	}
	form := domainForm(r)
	page := optionsPage{addForm: &form}

	if !form.Complete() {
		page.notice = errorNotice(msgFillAllFields)
		h.renderOptions(w, r, http.StatusBadRequest, page)
		return
	}

	existing, err := h.store.GetDomain(r.Context(), form.Domain)
	if err == nil && existing != nil {
		page.notice = errorNotice(msgDomainExists)
		h.renderOptions(w, r, http.StatusConflict, page)
		return
	}

	_, err = h.store.UpsertDomain(r.Context(), form.Domain, form.UsernameSelector, form.PasswordSelector, form.AutoSortRecent)
	if err != nil {
		page.notice = errorNotice(domainErrorMessage(err, form))
		h.renderOptions(w, r, statusFor(err), page)
		return
	}

	http.Redirect(w, r, vm.OptionsURL("msg", "domain-saved"), http.StatusSeeOther)
}

// UpdateDomain saves the edit form, renaming the domain if its name changed.
func (h *Handler) UpdateDomain(w http.ResponseWriter, r *http.Request) {
	if !h.checkCSRF(w, r) {
		return
	}
	oldDomain := r.PathValue("domain")
	form := domainForm(r)
	page := optionsPage{state: vm.EditState{EditDomain: oldDomain}, editForm: &form}

	if !form.Complete() {
		page.notice = errorNotice(msgFillAllFields)
		h.renderOptions(w, r, http.StatusBadRequest, page)
		return
	}

	_, err := h.store.RenameDomain(r.Context(), oldDomain, form.Domain,
		form.UsernameSelector, form.PasswordSelector, form.AutoSortRecent)
	if err != nil {
		page.notice = errorNotice(domainErrorMessage(err, form))
		h.renderOptions(w, r, statusFor(err), page)
		return
	}

	http.Redirect(w, r, vm.OptionsURL("msg", "domain-saved"), http.StatusSeeOther)
}

// DeleteDomain removes a domain once the deletion has been confirmed.
func (h *Handler) DeleteDomain(w http.ResponseWriter, r *http.Request) {
	if !h.checkCSRF(w, r) {
		return
	}
	domain := r.PathValue("domain")

	if r.PostFormValue("confirm") != "true" {
		http.Redirect(w, r, vm.OptionsURL("delete", domain), http.StatusSeeOther)
		return
	}

	if err := h.store.DeleteDomain(r.Context(), domain); err != nil {
		msg := msgDeleteDomainFailed
		if errors.Is(err, model.ErrUnknownDomain) {
			msg = msgDomainNotFound
		}
		h.renderOptions(w, r, statusFor(err), optionsPage{notice: errorNotice(msg)})
		return
	}

	http.Redirect(w, r, vm.OptionsURL("msg", "domain-deleted"), http.StatusSeeOther)
}

// AddCredential appends a credential to a domain.
func (h *Handler) AddCredential(w http.ResponseWriter, r *http.Request) {
	if !h.checkCSRF(w, r) {
		return
	}
	domain := r.PathValue("domain")

	_, err := h.store.AddCredential(r.Context(), domain, r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		page := optionsPage{focus: domain, notice: errorNotice(credentialErrorMessage(err, msgAddCredFailed))}
		h.renderOptions(w, r, statusFor(err), page)
		return
	}

	http.Redirect(w, r, vm.OptionsURL("msg", "credential-saved"), http.StatusSeeOther)
}

// EditCredential replaces a credential in place.
func (h *Handler) EditCredential(w http.ResponseWriter, r *http.Request) {
	if !h.checkCSRF(w, r) {
		return
	}
	domain := r.PathValue("domain")
	index, ok := h.pathIndex(w, r, domain)
	if !ok {
		return
	}

	_, err := h.store.EditCredential(r.Context(), domain, index, r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		page := optionsPage{
			state:  vm.EditState{EditCredential: &vm.CredentialRef{Domain: domain, Index: index}},
			notice: errorNotice(credentialErrorMessage(err, msgSaveChangesFailed)),
		}
		h.renderOptions(w, r, statusFor(err), page)
		return
	}

	http.Redirect(w, r, vm.OptionsURL("msg", "credential-saved"), http.StatusSeeOther)
}

// DeleteCredential removes a credential.
func (h *Handler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	if !h.checkCSRF(w, r) {
		return
	}
	domain := r.PathValue("domain")
	index, ok := h.pathIndex(w, r, domain)
	if !ok {
		return
	}

	if _, err := h.store.DeleteCredential(r.Context(), domain, index); err != nil {
		h.renderOptions(w, r, statusFor(err), optionsPage{focus: domain, notice: errorNotice(msgDeleteCredFailed)})
		return
	}

	http.Redirect(w, r, vm.OptionsURL("msg", "credential-deleted"), http.StatusSeeOther)
}

// ReorderCredential moves a credential one place up or down.
func (h *Handler) ReorderCredential(w http.ResponseWriter, r *http.Request) {
	if !h.checkCSRF(w, r) {
		return
	}
	domain := r.PathValue("domain")

	from, errFrom := strconv.Atoi(r.PostFormValue("from"))
	to, errTo := strconv.Atoi(r.PostFormValue("to"))
	if errFrom != nil || errTo != nil {
		h.renderOptions(w, r, http.StatusBadRequest, optionsPage{focus: domain, notice: errorNotice(msgSaveChangesFailed)})
		return
	}

	if _, err := h.store.ReorderCredential(r.Context(), domain, from, to); err != nil {
		h.renderOptions(w, r, statusFor(err), optionsPage{focus: domain, notice: errorNotice(msgSaveChangesFailed)})
		return
	}

	http.Redirect(w, r, vm.OptionsURL(), http.StatusSeeOther)
}

// ToggleAddDomain opens or closes the add-domain form.
func (h *Handler) ToggleAddDomain(w http.ResponseWriter, r *http.Request) {
	if !h.checkCSRF(w, r) {
		return
	}
	expanded := r.PostFormValue("expanded") == "true"
	if err := h.viewState.SetAddDomainExpanded(r.Context(), expanded); err != nil {
		h.logger.Warn("failed to save view state", "error", err)
	}
	http.Redirect(w, r, vm.OptionsURL(), http.StatusSeeOther)
}

// ToggleDomain expands or collapses a domain's section.
func (h *Handler) ToggleDomain(w http.ResponseWriter, r *http.Request) {
	if !h.checkCSRF(w, r) {
		return
	}
	if _, err := h.viewState.ToggleDomain(r.Context(), r.PathValue("domain")); err != nil {
		h.logger.Warn("failed to save view state", "error", err)
	}
	http.Redirect(w, r, vm.OptionsURL(), http.StatusSeeOther)
}

// Help renders the usage guide.
func (h *Handler) Help(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "SelectorPass Help", templates.Help(helpHTML()))
}

func (h *Handler) popupModel(ctx context.Context, token string) vm.PopupViewModel {
	p := vm.PopupViewModel{ConfigureURL: vm.OptionsURL(), CSRFToken: token}

	domain, err := h.dispatcher.CurrentDomain(ctx)
	if err != nil {
		h.logger.Debug("no active tab for popup", "error", err)
		return p
	}
	p.HasTab = true
	p.Domain = domain

	cfg, err := h.store.GetDomain(ctx, domain)
	if err != nil {
		p.Notice = errorNotice(msgStorageUnavailable)
		return p
	}
	if cfg == nil {
		p.ConfigureURL = vm.OptionsURL("domain", domain)
		return p
	}

	p.Configured = true
	p.Credentials = toCredentialItems(domain, cfg.Credentials, vm.EditState{})
	return p
}

func (h *Handler) renderPopupError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	p := h.popupModel(r.Context(), csrfToken(w, r))
	p.Notice = errorNotice(msg)
	h.render(w, r, status, "SelectorPass", templates.Popup(p))
}

// optionsPage describes one rendering of the options page.
type optionsPage struct {
	state  vm.EditState
	notice *vm.Notice
	// addForm and editForm carry submitted values back into a form after a
	// failed save.
	addForm  *vm.DomainForm
	editForm *vm.DomainForm
	// focus names a domain to show expanded regardless of saved view state.
	focus string
}

func (h *Handler) renderOptions(w http.ResponseWriter, r *http.Request, status int, page optionsPage) {
	o, err := h.optionsModel(r.Context(), page, csrfToken(w, r))
	if err != nil {
		h.logger.Error("failed to list domains", "error", err)
		if status < http.StatusBadRequest {
			status = http.StatusServiceUnavailable
		}
		if o.Notice == nil {
			o.Notice = errorNotice(msgStorageUnavailable)
		}
	}
	h.render(w, r, status, "SelectorPass Options", templates.Options(o))
}

func (h *Handler) optionsModel(ctx context.Context, page optionsPage, token string) (vm.OptionsViewModel, error) {
	view := h.viewState.Load(ctx)
	state := page.state

	o := vm.OptionsViewModel{
		AddDomainExpanded: view.AddDomainExpanded || state.Prefill != "" || page.addForm != nil,
		AddForm:           vm.DomainForm{Domain: state.Prefill, AutoSortRecent: true},
		Notice:            page.notice,
		CSRFToken:         token,
	}
	if page.addForm != nil {
		o.AddForm = *page.addForm
	}

	entries, err := h.store.ListDomains(ctx)
	if err != nil {
		return o, err
	}

	for _, e := range entries {
		item := vm.DomainItem{
			Key:         e.Domain,
			Form:        toDomainForm(e.Domain, e.Config),
			Editing:     state.EditDomain == e.Domain,
			Deleting:    state.DeleteDomain == e.Domain,
			Credentials: toCredentialItems(e.Domain, e.Config.Credentials, state),
		}
		if item.Editing && page.editForm != nil {
			item.Form = *page.editForm
		}
		item.Expanded = slices.Contains(view.ExpandedDomains, e.Domain) ||
			page.focus == e.Domain ||
			item.Editing ||
			item.Deleting ||
			refersTo(state.EditCredential, e.Domain) ||
			refersTo(state.DeleteCredential, e.Domain)
		o.Domains = append(o.Domains, item)
	}
	return o, nil
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, title string, body templ.Component) {
	var buf bytes.Buffer
	if err := templates.Layout(title, body).Render(r.Context(), &buf); err != nil {
		h.logger.Error("failed to render page", "title", title, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Debug("failed to write page", "error", err)
	}
}

func (h *Handler) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	if validateCSRF(r) {
		return true
	}
	h.logger.Warn("rejected form without valid csrf token", "path", r.URL.Path)
	http.Error(w, "invalid or missing CSRF token", http.StatusForbidden)
	return false
}

func (h *Handler) pathIndex(w http.ResponseWriter, r *http.Request, domain string) (int, bool) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		h.renderOptions(w, r, http.StatusBadRequest, optionsPage{focus: domain, notice: errorNotice(msgSaveChangesFailed)})
		return 0, false
	}
	return index, true
}

func domainForm(r *http.Request) vm.DomainForm {
	return vm.DomainForm{
		Domain:           strings.TrimSpace(r.PostFormValue("domain")),
		UsernameSelector: strings.TrimSpace(r.PostFormValue("username_selector")),
		PasswordSelector: strings.TrimSpace(r.PostFormValue("password_selector")),
		AutoSortRecent:   r.PostFormValue("auto_sort_recent") == "true",
	}
}

func refersTo(ref *vm.CredentialRef, domain string) bool {
	return ref != nil && ref.Domain == domain
}

func successNotice(r *http.Request) *vm.Notice {
	text, ok := successNotices[r.URL.Query().Get("msg")]
	if !ok {
		return nil
	}
	return &vm.Notice{Text: text}
}

func errorNotice(text string) *vm.Notice {
	return &vm.Notice{Text: text, IsError: true}
}

// statusFor maps a service error to the status of the re-rendered page.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidDomain),
		errors.Is(err, model.ErrInvalidSelector),
		errors.Is(err, model.ErrInvalidCredential),
		errors.Is(err, model.ErrIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrDuplicateDomain):
		return http.StatusConflict
	case errors.Is(err, model.ErrUnknownDomain):
		return http.StatusNotFound
	case errors.Is(err, model.ErrPersistence):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrNoActiveTab),
		errors.Is(err, model.ErrDomainMismatch),
		errors.Is(err, model.ErrMessaging),
		errors.Is(err, model.ErrFillRejected):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
