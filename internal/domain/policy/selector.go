package policy

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"

	"github.com/ericfisherdev/selectorpass/internal/domain/model"
)

// NormalizeSelector trims s and checks that it parses as a CSS selector group,
// the same grammar document queries accept.
func NormalizeSelector(s string) (string, error) {
	selector := strings.TrimSpace(s)
	if selector == "" {
		return "", fmt.Errorf("%w: selector is required", model.ErrInvalidSelector)
	}
	if _, err := cascadia.ParseGroup(selector); err != nil {
		return "", fmt.Errorf("%w: %q: %v", model.ErrInvalidSelector, selector, err)
	}
	return selector, nil
}
