package httphandler

import (
	"encoding/json"
	"net/http"

	"github.com/ericfisherdev/selectorpass/internal/domain/model"
)

// FillFailedMessage is shown to the user whenever a fill cannot be delivered
// or the page rejects it.
const FillFailedMessage = "Failed to fill form. Please refresh the page and try again."

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// DomainResponse is the JSON representation of a configured domain.
type DomainResponse struct {
	Domain           string               `json:"domain"`
	UsernameSelector string               `json:"username_selector"`
	PasswordSelector string               `json:"password_selector"`
	AutoSortRecent   bool                 `json:"auto_sort_recent"`
	Credentials      []CredentialResponse `json:"credentials"`
}

// CredentialResponse is the JSON representation of a saved credential.
// Index is its position in the domain's list.
type CredentialResponse struct {
	Index    int    `json:"index"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// DomainRequest is the JSON body for creating or updating a domain.
// A missing auto_sort_recent means true.
type DomainRequest struct {
	UsernameSelector string `json:"username_selector"`
	PasswordSelector string `json:"password_selector"`
	AutoSortRecent   *bool  `json:"auto_sort_recent"`
}

func (r DomainRequest) autoSort() bool {
	return r.AutoSortRecent == nil || *r.AutoSortRecent
}

// RenameDomainRequest is the JSON body for the rename endpoint.
type RenameDomainRequest struct {
	DomainRequest
	NewDomain string `json:"new_domain"`
}

// CredentialRequest is the JSON body for adding or editing a credential.
type CredentialRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ReorderRequest is the JSON body for the reorder endpoint.
type ReorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// FillRequest is the JSON body for the fill endpoint.
type FillRequest struct {
	Domain string `json:"domain"`
	Index  int    `json:"index"`
}

// FillResponse reports whether the fill was sent or skipped.
type FillResponse struct {
	Outcome string `json:"outcome"`
}

// ProbeResponse reports which configured fields a document contains.
type ProbeResponse struct {
	UsernameFound bool `json:"username_found"`
	PasswordFound bool `json:"password_found"`
	Fillable      bool `json:"fillable"`
}

// TabResponse is the JSON representation of a browser tab.
type TabResponse struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// CurrentDomainResponse is the JSON representation of the active tab's domain.
type CurrentDomainResponse struct {
	Domain     string `json:"domain"`
	Configured bool   `json:"configured"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toDomainResponse converts a domain configuration to its JSON response representation.
func toDomainResponse(domain string, cfg model.DomainConfig) DomainResponse {
	creds := make([]CredentialResponse, 0, len(cfg.Credentials))
	for i, c := range cfg.Credentials {
		creds = append(creds, CredentialResponse{Index: i, Username: c.Username, Password: c.Password})
	}

	return DomainResponse{
		Domain:           domain,
		UsernameSelector: cfg.UsernameSelector,
		PasswordSelector: cfg.PasswordSelector,
		AutoSortRecent:   cfg.AutoSortEnabled(),
		Credentials:      creds,
	}
}
