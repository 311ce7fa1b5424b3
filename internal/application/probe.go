package application

import (
	"context"

	"github.com/ericfisherdev/selectorpass/internal/domain/port/driven"
)

// ProbeResult reports which configured fields a document contains.
type ProbeResult struct {
	UsernameFound bool
	PasswordFound bool
}

// Fillable reports whether a fill against the document would succeed.
func (r ProbeResult) Fillable() bool {
	return r.UsernameFound || r.PasswordFound
}

// ProbeSelectors locates both fields in doc without modifying it.
func ProbeSelectors(ctx context.Context, doc driven.Document, usernameSelector, passwordSelector string) (ProbeResult, error) {
	userField, passField, err := locateFields(ctx, doc, usernameSelector, passwordSelector)
	if err != nil {
		return ProbeResult{}, err
	}
	return ProbeResult{
		UsernameFound: userField != nil,
		PasswordFound: passField != nil,
	}, nil
}
