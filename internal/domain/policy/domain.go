// Package policy holds the validation and ordering rules applied to domain
// configurations before they reach the store.
package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ericfisherdev/selectorpass/internal/domain/model"
)

// maxDomainLength is the longest accepted domain name, in bytes.
const maxDomainLength = 253

// domainPattern matches dot-separated labels of 1-63 alphanumerics with
// hyphens allowed only between them.
var domainPattern = regexp.MustCompile(`^[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// NormalizeDomain trims s and validates it as a domain name. Case is
// preserved: "Example.com" and "example.com" are distinct keys.
func NormalizeDomain(s string) (string, error) {
	domain := strings.TrimSpace(s)
	if domain == "" {
		return "", fmt.Errorf("%w: domain is required", model.ErrInvalidDomain)
	}
	if len(domain) > maxDomainLength {
		return "", fmt.Errorf("%w: %d characters exceeds %d", model.ErrInvalidDomain, len(domain), maxDomainLength)
	}
	if !domainPattern.MatchString(domain) {
		return "", fmt.Errorf("%w: %q", model.ErrInvalidDomain, domain)
	}
	return domain, nil
}
