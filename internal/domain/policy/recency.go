package policy

import "github.com/ericfisherdev/selectorpass/internal/domain/model"

// ShouldPromote reports whether the credential at usedIndex should move to
// the front of cfg's list after it fills a form.
func ShouldPromote(cfg model.DomainConfig, usedIndex int) bool {
	return cfg.AutoSortEnabled() && usedIndex > 0
}
