package web

import (
	"errors"

	vm "github.com/ericfisherdev/selectorpass/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/selectorpass/internal/domain/model"
	"github.com/ericfisherdev/selectorpass/internal/domain/policy"
)

func toDomainForm(domain string, cfg model.DomainConfig) vm.DomainForm {
	return vm.DomainForm{
		Domain:           domain,
		UsernameSelector: cfg.UsernameSelector,
		PasswordSelector: cfg.PasswordSelector,
		AutoSortRecent:   cfg.AutoSortEnabled(),
	}
}

// toCredentialItems converts creds for display. Passwords are only copied
// into the item being edited.
func toCredentialItems(domain string, creds []model.Credential, state vm.EditState) []vm.CredentialItem {
	items := make([]vm.CredentialItem, 0, len(creds))
	for i, c := range creds {
		item := vm.CredentialItem{
			Index:    i,
			Username: c.Username,
			Editing:  state.EditCredential.Matches(domain, i),
			Deleting: state.DeleteCredential.Matches(domain, i),
			IsFirst:  i == 0,
			IsLast:   i == len(creds)-1,
		}
		if item.Editing {
			item.Password = c.Password
		}
		items = append(items, item)
	}
	return items
}

// domainErrorMessage picks the notice for a failed domain save.
func domainErrorMessage(err error, form vm.DomainForm) string {
	switch {
	case errors.Is(err, model.ErrInvalidDomain):
		return msgInvalidDomain
	case errors.Is(err, model.ErrInvalidSelector):
		return selectorErrorMessage(form)
	case errors.Is(err, model.ErrDuplicateDomain):
		return msgDomainExists
	case errors.Is(err, model.ErrUnknownDomain):
		return msgDomainNotFound
	default:
		return msgSaveDomainFailed
	}
}

func selectorErrorMessage(form vm.DomainForm) string {
	_, userErr := policy.NormalizeSelector(form.UsernameSelector)
	_, passErr := policy.NormalizeSelector(form.PasswordSelector)
	switch {
	case userErr != nil && passErr != nil:
		return "Please enter valid CSS selectors"
	case userErr != nil:
		return "Please enter a valid CSS selector for username field"
	default:
		return "Please enter a valid CSS selector for password field"
	}
}

// credentialErrorMessage picks the notice for a failed credential save,
// falling back to fallback for storage errors.
func credentialErrorMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, policy.ErrCredentialTooLong):
		return msgCredentialTooLong
	case errors.Is(err, model.ErrInvalidCredential):
		return msgCredentialRequired
	case errors.Is(err, model.ErrUnknownDomain):
		return msgDomainNotFound
	default:
		return fallback
	}
}
