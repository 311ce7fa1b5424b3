package model

// DomainConfig holds the field selectors and saved credentials for one
// domain. Credentials are ordered; index 0 is the most preferred entry.
type DomainConfig struct {
	UsernameSelector string       `json:"usernameSelector"`
	PasswordSelector string       `json:"passwordSelector"`
	AutoSortRecent   *bool        `json:"autoSortRecent,omitempty"`
	Credentials      []Credential `json:"credentials"`
}

// AutoSortEnabled reports whether recently used credentials move to the
// front. An absent flag counts as enabled.
func (c DomainConfig) AutoSortEnabled() bool {
	return c.AutoSortRecent == nil || *c.AutoSortRecent
}

// Clone returns a copy whose credential slice does not alias c's.
func (c DomainConfig) Clone() DomainConfig {
	out := c
	if c.AutoSortRecent != nil {
		v := *c.AutoSortRecent
		out.AutoSortRecent = &v
	}
	out.Credentials = make([]Credential, len(c.Credentials))
	copy(out.Credentials, c.Credentials)
	return out
}

// DomainEntry pairs a domain name with its configuration for ordered listings.
type DomainEntry struct {
	Domain string
	Config DomainConfig
}

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool {
	return &v
}
