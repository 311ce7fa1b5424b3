// Package viewmodel defines presentation-ready structs for templ components.
// View models decouple template rendering from domain model types.
package viewmodel

import (
	"net/url"
	"strconv"
	"strings"
)

// Notice is a message shown above a page's content.
type Notice struct {
	Text    string
	IsError bool
}

// CredentialItem is one saved credential in a list. Password is populated
// only while the credential is being edited.
type CredentialItem struct {
	Index    int
	Username string
	Password string
	Editing  bool
	Deleting bool
	IsFirst  bool
	IsLast   bool
}

// PopupViewModel holds presentation-ready data for the popup page.
type PopupViewModel struct {
	Domain       string
	HasTab       bool
	Configured   bool
	Credentials  []CredentialItem
	Notice       *Notice
	ConfigureURL string
	CSRFToken    string
}

// DomainForm holds the values of a domain's selector form.
type DomainForm struct {
	Domain           string
	UsernameSelector string
	PasswordSelector string
	AutoSortRecent   bool
}

// Complete reports whether the domain and both selectors are filled in.
func (f DomainForm) Complete() bool {
	return strings.TrimSpace(f.Domain) != "" &&
		strings.TrimSpace(f.UsernameSelector) != "" &&
		strings.TrimSpace(f.PasswordSelector) != ""
}

// DomainItem holds presentation-ready data for one domain on the options page.
// Key is the stored domain name used in URLs and element ids; Form holds the
// input values, which differ from Key after a rejected edit.
type DomainItem struct {
	Key         string
	Form        DomainForm
	Expanded    bool
	Editing     bool
	Deleting    bool
	Credentials []CredentialItem
}

// OptionsViewModel holds presentation-ready data for the options page.
type OptionsViewModel struct {
	AddDomainExpanded bool
	AddForm           DomainForm
	Domains           []DomainItem
	Notice            *Notice
	CSRFToken         string
}

// EditState is the options page's transient UI state, carried in the query
// string: which domain or credential is being edited and which deletion is
// awaiting confirmation.
type EditState struct {
	Prefill          string
	EditDomain       string
	EditCredential   *CredentialRef
	DeleteDomain     string
	DeleteCredential *CredentialRef
}

// CredentialRef addresses a credential by domain and position.
type CredentialRef struct {
	Domain string
	Index  int
}

// ParseEditState reads an EditState from query parameters. Malformed
// credential references are ignored.
func ParseEditState(q url.Values) EditState {
	return EditState{
		Prefill:          strings.TrimSpace(q.Get("domain")),
		EditDomain:       q.Get("edit"),
		EditCredential:   parseRef(q.Get("edit_cred"), q.Get("index")),
		DeleteDomain:     q.Get("delete"),
		DeleteCredential: parseRef(q.Get("delete_cred"), q.Get("index")),
	}
}

func parseRef(domain, index string) *CredentialRef {
	if domain == "" {
		return nil
	}
	i, err := strconv.Atoi(index)
	if err != nil || i < 0 {
		return nil
	}
	return &CredentialRef{Domain: domain, Index: i}
}

// Matches reports whether ref addresses the credential at index of domain.
func (ref *CredentialRef) Matches(domain string, index int) bool {
	return ref != nil && ref.Domain == domain && ref.Index == index
}

// OptionsURL returns the options page URL for the given query parameters,
// given as key/value pairs.
func OptionsURL(pairs ...string) string {
	if len(pairs) < 2 {
		return "/options"
	}
	q := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		q.Set(pairs[i], pairs[i+1])
	}
	return "/options?" + q.Encode()
}

// DomainPath returns the escaped path segment for domain under prefix.
func DomainPath(prefix, domain string, rest ...string) string {
	parts := append([]string{strings.TrimSuffix(prefix, "/"), url.PathEscape(domain)}, rest...)
	return strings.Join(parts, "/")
}
