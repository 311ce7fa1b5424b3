package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/selectorpass/internal/domain/model"
	"github.com/ericfisherdev/selectorpass/internal/domain/policy"
	"github.com/ericfisherdev/selectorpass/internal/domain/port/driven"
)

// domainsKey is the record under which the whole Store is persisted.
const domainsKey = "domains"

// CredentialStore owns the persisted domain map. Every mutation loads the
// full map, changes it in memory and saves it back. There is no isolation
// between concurrent callers: the last save wins for the whole map.
type CredentialStore struct {
	records driven.RecordStore
	logger  *slog.Logger
}

// NewCredentialStore creates a CredentialStore over the given record store.
func NewCredentialStore(records driven.RecordStore, logger *slog.Logger) *CredentialStore {
	return &CredentialStore{
		records: records,
		logger:  logger,
	}
}

// Load returns the persisted store. A missing record or a failed read yields
// an empty store; read failures are logged, not returned.
func (s *CredentialStore) Load(ctx context.Context) model.Store {
	store, err := s.read(ctx)
	if err != nil {
		s.logger.Warn("failed to load domains, using empty store", "error", err)
		return model.Store{}
	}
	return store
}

// Save replaces the persisted store. Any substrate failure is wrapped with
// model.ErrPersistence.
func (s *CredentialStore) Save(ctx context.Context, store model.Store) error {
	if store == nil {
		store = model.Store{}
	}
	data, err := json.Marshal(store)
	if err != nil {
		return fmt.Errorf("%w: encode domains: %w", model.ErrPersistence, err)
	}
	if err := s.records.Set(ctx, map[string]json.RawMessage{domainsKey: data}); err != nil {
		return fmt.Errorf("%w: save domains: %w", model.ErrPersistence, err)
	}
	return nil
}

// GetDomain returns the configuration for domain, or (nil, nil) if the
// domain is not configured.
func (s *CredentialStore) GetDomain(ctx context.Context, domain string) (*model.DomainConfig, error) {
	store, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	cfg, ok := store[strings.TrimSpace(domain)]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

// ListDomains returns every configured domain sorted by name.
func (s *CredentialStore) ListDomains(ctx context.Context) ([]model.DomainEntry, error) {
	store, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return store.Entries(), nil
}

// UpsertDomain validates and saves the selectors for domain. An existing
// domain keeps its credentials; a new one starts with none. The returned
// entry carries the normalized key the domain was stored under.
func (s *CredentialStore) UpsertDomain(
	ctx context.Context,
	domain, usernameSelector, passwordSelector string,
	autoSortRecent bool,
) (model.DomainEntry, error) {
	domain, userSel, passSel, err := normalizeDomainInput(domain, usernameSelector, passwordSelector)
	if err != nil {
		return model.DomainEntry{}, err
	}

	var saved model.DomainConfig
	err = s.update(ctx, func(store model.Store) error {
		saved = model.DomainConfig{
			UsernameSelector: userSel,
			PasswordSelector: passSel,
			AutoSortRecent:   model.BoolPtr(autoSortRecent),
			Credentials:      existingCredentials(store, domain),
		}
		store[domain] = saved
		return nil
	})
	if err != nil {
		return model.DomainEntry{}, err
	}

	s.logger.Info("domain saved", "domain", domain, "credentials", len(saved.Credentials))
	return model.DomainEntry{Domain: domain, Config: saved}, nil
}

// RenameDomain saves the selectors under newDomain and, when the name
// changed, moves oldDomain's credentials there and removes oldDomain.
func (s *CredentialStore) RenameDomain(
	ctx context.Context,
	oldDomain, newDomain, usernameSelector, passwordSelector string,
	autoSortRecent bool,
) (model.DomainEntry, error) {
	oldDomain = strings.TrimSpace(oldDomain)
	newDomain, userSel, passSel, err := normalizeDomainInput(newDomain, usernameSelector, passwordSelector)
	if err != nil {
		return model.DomainEntry{}, err
	}

	var saved model.DomainConfig
	err = s.update(ctx, func(store model.Store) error {
		if newDomain != oldDomain {
			if _, exists := store[newDomain]; exists {
				return fmt.Errorf("rename %q to %q: %w", oldDomain, newDomain, model.ErrDuplicateDomain)
			}
		}

		saved = model.DomainConfig{
			UsernameSelector: userSel,
			PasswordSelector: passSel,
			AutoSortRecent:   model.BoolPtr(autoSortRecent),
			Credentials:      existingCredentials(store, oldDomain),
		}
		store[newDomain] = saved
		if newDomain != oldDomain {
			delete(store, oldDomain)
		}
		return nil
	})
	if err != nil {
		return model.DomainEntry{}, err
	}

	s.logger.Info("domain updated", "old_domain", oldDomain, "domain", newDomain)
	return model.DomainEntry{Domain: newDomain, Config: saved}, nil
}

// DeleteDomain removes domain and all of its credentials.
func (s *CredentialStore) DeleteDomain(ctx context.Context, domain string) error {
	domain = strings.TrimSpace(domain)
	err := s.update(ctx, func(store model.Store) error {
		if _, ok := store[domain]; !ok {
			return fmt.Errorf("delete %q: %w", domain, model.ErrUnknownDomain)
		}
		delete(store, domain)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("domain deleted", "domain", domain)
	return nil
}

// AddCredential appends a credential to domain's list.
func (s *CredentialStore) AddCredential(ctx context.Context, domain, username, password string) (model.DomainConfig, error) {
	return s.mutateDomain(ctx, domain, func(cfg *model.DomainConfig) error {
		cred, err := policy.NormalizeCredential(username, password)
		if err != nil {
			return err
		}
		cfg.Credentials = append(cfg.Credentials, cred)
		return nil
	})
}

// EditCredential replaces the credential at index, keeping its position.
func (s *CredentialStore) EditCredential(ctx context.Context, domain string, index int, username, password string) (model.DomainConfig, error) {
	return s.mutateDomain(ctx, domain, func(cfg *model.DomainConfig) error {
		if !inRange(index, len(cfg.Credentials)) {
			return fmt.Errorf("edit credential %d: %w", index, model.ErrIndexOutOfRange)
		}
		cred, err := policy.NormalizeCredential(username, password)
		if err != nil {
			return err
		}
		cfg.Credentials[index] = cred
		return nil
	})
}

// DeleteCredential removes the credential at index. Later entries shift down.
func (s *CredentialStore) DeleteCredential(ctx context.Context, domain string, index int) (model.DomainConfig, error) {
	return s.mutateDomain(ctx, domain, func(cfg *model.DomainConfig) error {
		if !inRange(index, len(cfg.Credentials)) {
			return fmt.Errorf("delete credential %d: %w", index, model.ErrIndexOutOfRange)
		}
		cfg.Credentials = append(cfg.Credentials[:index], cfg.Credentials[index+1:]...)
		return nil
	})
}

// ReorderCredential removes the credential at from and inserts it at to in
// the shortened list. Moving an entry onto itself saves nothing.
func (s *CredentialStore) ReorderCredential(ctx context.Context, domain string, from, to int) (model.DomainConfig, error) {
	if from == to {
		cfg, err := s.GetDomain(ctx, domain)
		if err != nil {
			return model.DomainConfig{}, err
		}
		if cfg == nil {
			return model.DomainConfig{}, fmt.Errorf("reorder in %q: %w", strings.TrimSpace(domain), model.ErrUnknownDomain)
		}
		if !inRange(from, len(cfg.Credentials)) {
			return model.DomainConfig{}, fmt.Errorf("reorder %d to %d: %w", from, to, model.ErrIndexOutOfRange)
		}
		return *cfg, nil
	}

	return s.mutateDomain(ctx, domain, func(cfg *model.DomainConfig) error {
		n := len(cfg.Credentials)
		if !inRange(from, n) || !inRange(to, n) {
			return fmt.Errorf("reorder %d to %d: %w", from, to, model.ErrIndexOutOfRange)
		}
		cfg.Credentials = moveCredential(cfg.Credentials, from, to)
		return nil
	})
}

// PromoteToFront moves the credential at index to the front of the list.
func (s *CredentialStore) PromoteToFront(ctx context.Context, domain string, index int) (model.DomainConfig, error) {
	return s.ReorderCredential(ctx, domain, index, 0)
}

// read loads the store and reports failures, unlike Load. Mutations use it so
// a failed read can never be followed by a save that wipes every domain.
func (s *CredentialStore) read(ctx context.Context) (model.Store, error) {
	rec, err := s.records.Get(ctx, domainsKey)
	if err != nil {
		return nil, fmt.Errorf("%w: load domains: %w", model.ErrPersistence, err)
	}

	store := model.Store{}
	raw, ok := rec[domainsKey]
	if !ok || len(raw) == 0 {
		return store, nil
	}
	if err := json.Unmarshal(raw, &store); err != nil {
		return nil, fmt.Errorf("%w: decode domains: %w", model.ErrPersistence, err)
	}
	if store == nil {
		store = model.Store{}
	}

	for domain, cfg := range store {
		if cfg.Credentials == nil {
			cfg.Credentials = []model.Credential{}
			store[domain] = cfg
		}
	}
	return store, nil
}

// update runs fn against a freshly read store and saves the result if fn
// succeeds.
func (s *CredentialStore) update(ctx context.Context, fn func(model.Store) error) error {
	store, err := s.read(ctx)
	if err != nil {
		return err
	}
	if err := fn(store); err != nil {
		return err
	}
	return s.Save(ctx, store)
}

// mutateDomain applies fn to an existing domain's configuration.
func (s *CredentialStore) mutateDomain(ctx context.Context, domain string, fn func(*model.DomainConfig) error) (model.DomainConfig, error) {
	domain = strings.TrimSpace(domain)

	var saved model.DomainConfig
	err := s.update(ctx, func(store model.Store) error {
		cfg, ok := store[domain]
		if !ok {
			return fmt.Errorf("%q: %w", domain, model.ErrUnknownDomain)
		}
		cfg = cfg.Clone()
		if err := fn(&cfg); err != nil {
			return err
		}
		store[domain] = cfg
		saved = cfg
		return nil
	})
	if err != nil {
		return model.DomainConfig{}, err
	}
	return saved, nil
}

func normalizeDomainInput(domain, usernameSelector, passwordSelector string) (string, string, string, error) {
	domain, err := policy.NormalizeDomain(domain)
	if err != nil {
		return "", "", "", err
	}
	userSel, err := policy.NormalizeSelector(usernameSelector)
	if err != nil {
		return "", "", "", fmt.Errorf("username selector: %w", err)
	}
	passSel, err := policy.NormalizeSelector(passwordSelector)
	if err != nil {
		return "", "", "", fmt.Errorf("password selector: %w", err)
	}
	return domain, userSel, passSel, nil
}

func existingCredentials(store model.Store, domain string) []model.Credential {
	if cfg, ok := store[domain]; ok && cfg.Credentials != nil {
		return cfg.Credentials
	}
	return []model.Credential{}
}

// moveCredential removes creds[from] and reinserts it at to.
func moveCredential(creds []model.Credential, from, to int) []model.Credential {
	moved := creds[from]
	rest := append(creds[:from:from], creds[from+1:]...)

	out := make([]model.Credential, 0, len(creds))
	out = append(out, rest[:to]...)
	out = append(out, moved)
	out = append(out, rest[to:]...)
	return out
}

func inRange(i, n int) bool {
	return i >= 0 && i < n
}
