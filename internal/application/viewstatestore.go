package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/ericfisherdev/selectorpass/internal/domain/model"
	"github.com/ericfisherdev/selectorpass/internal/domain/port/driven"
)

const viewStateKey = "view_state"

// ViewStateStore persists which sections of the options page are expanded.
type ViewStateStore struct {
	records driven.RecordStore
	logger  *slog.Logger
}

// NewViewStateStore creates a ViewStateStore over the given record store.
func NewViewStateStore(records driven.RecordStore, logger *slog.Logger) *ViewStateStore {
	return &ViewStateStore{records: records, logger: logger}
}

// Load returns the saved view state, or the zero state if none is stored or
// the read fails.
func (s *ViewStateStore) Load(ctx context.Context) model.ViewState {
	var state model.ViewState

	rec, err := s.records.Get(ctx, viewStateKey)
	if err != nil {
		s.logger.Warn("failed to load view state", "error", err)
		return state
	}
	raw, ok := rec[viewStateKey]
	if !ok {
		return state
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		s.logger.Warn("failed to decode view state", "error", err)
		return model.ViewState{}
	}
	return state
}

// SetAddDomainExpanded records whether the add-domain form is open.
func (s *ViewStateStore) SetAddDomainExpanded(ctx context.Context, expanded bool) error {
	state := s.Load(ctx)
	state.AddDomainExpanded = expanded
	return s.save(ctx, state)
}

// ToggleDomain flips the expanded state of domain's section and returns the
// new state.
func (s *ViewStateStore) ToggleDomain(ctx context.Context, domain string) (bool, error) {
	state := s.Load(ctx)

	expanded := !slices.Contains(state.ExpandedDomains, domain)
	if expanded {
		state.ExpandedDomains = append(state.ExpandedDomains, domain)
	} else {
		state.ExpandedDomains = slices.DeleteFunc(state.ExpandedDomains, func(d string) bool { return d == domain })
	}

	return expanded, s.save(ctx, state)
}

func (s *ViewStateStore) save(ctx context.Context, state model.ViewState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode view state: %w", err)
	}
	if err := s.records.Set(ctx, map[string]json.RawMessage{viewStateKey: data}); err != nil {
		return fmt.Errorf("%w: save view state: %w", model.ErrPersistence, err)
	}
	return nil
}
