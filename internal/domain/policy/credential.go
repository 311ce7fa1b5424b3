package policy

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ericfisherdev/selectorpass/internal/domain/model"
)

// Credential validation failures. Both wrap model.ErrInvalidCredential.
var (
	ErrCredentialRequired = fmt.Errorf("%w: username and password are required", model.ErrInvalidCredential)
	ErrCredentialTooLong  = fmt.Errorf("%w: username and password must be at most %d characters",
		model.ErrInvalidCredential, model.MaxCredentialFieldLength)
)

// NormalizeCredential trims both fields and enforces presence and length.
func NormalizeCredential(username, password string) (model.Credential, error) {
	cred := model.Credential{
		Username: strings.TrimSpace(username),
		Password: strings.TrimSpace(password),
	}

	if cred.Username == "" || cred.Password == "" {
		return model.Credential{}, ErrCredentialRequired
	}
	if utf8.RuneCountInString(cred.Username) > model.MaxCredentialFieldLength ||
		utf8.RuneCountInString(cred.Password) > model.MaxCredentialFieldLength {
		return model.Credential{}, ErrCredentialTooLong
	}

	return cred, nil
}
