package model

// MaxCredentialFieldLength is the longest username or password accepted, in characters.
const MaxCredentialFieldLength = 100

// Credential is a saved username/password pair. It has no stable identity;
// callers address it by its index within the owning domain's list.
type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
