package model

import "sort"

// Store maps domain names to their configuration. It is persisted as a whole.
type Store map[string]DomainConfig

// Entries returns the store's domains sorted by name.
func (s Store) Entries() []DomainEntry {
	entries := make([]DomainEntry, 0, len(s))
	for domain, cfg := range s {
		entries = append(entries, DomainEntry{Domain: domain, Config: cfg})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Domain < entries[j].Domain
	})
	return entries
}
