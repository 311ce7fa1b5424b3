package model

// ViewState is the persisted expand/collapse state of the options page.
type ViewState struct {
	AddDomainExpanded bool     `json:"addDomainExpanded"`
	ExpandedDomains   []string `json:"expandedDomains"`
}
