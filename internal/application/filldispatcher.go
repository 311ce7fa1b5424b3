package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ericfisherdev/selectorpass/internal/domain/model"
	"github.com/ericfisherdev/selectorpass/internal/domain/policy"
	"github.com/ericfisherdev/selectorpass/internal/domain/port/driven"
)

// FillDispatcher sends a chosen credential to the filler in the active tab.
type FillDispatcher struct {
	store     *CredentialStore
	tabs      driven.TabResolver
	injector  driven.Injector
	messenger driven.Messenger
	sender    model.Sender
	timeout   time.Duration
	logger    *slog.Logger
}

// NewFillDispatcher creates a FillDispatcher. runtimeID is the identity the
// page filler checks; timeout bounds each fill message (0 disables it).
func NewFillDispatcher(
	store *CredentialStore,
	tabs driven.TabResolver,
	injector driven.Injector,
	messenger driven.Messenger,
	runtimeID string,
	timeout time.Duration,
	logger *slog.Logger,
) *FillDispatcher {
	return &FillDispatcher{
		store:     store,
		tabs:      tabs,
		injector:  injector,
		messenger: messenger,
		sender:    model.Sender{ID: runtimeID},
		timeout:   timeout,
		logger:    logger,
	}
}

// CurrentDomain returns the hostname of the active tab. The hostname is used
// as-is, without case folding.
func (d *FillDispatcher) CurrentDomain(ctx context.Context) (string, error) {
	tab, err := d.activeTab(ctx)
	if err != nil {
		return "", err
	}
	return tabHostname(tab)
}

// FillByIndex loads domain's configuration and fills the credential at index.
// An empty domain means the active tab's domain.
func (d *FillDispatcher) FillByIndex(ctx context.Context, domain string, index int) (model.FillOutcome, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		current, err := d.CurrentDomain(ctx)
		if err != nil {
			return "", err
		}
		domain = current
	}

	cfg, err := d.store.GetDomain(ctx, domain)
	if err != nil {
		return "", err
	}
	return d.Fill(ctx, domain, cfg, index)
}

// Fill sends the credential at index of cfg to the active tab.
//
// A request that cannot be acted on (missing config, bad index, empty
// fields) returns FillSkipped and no error. The active tab must be on domain;
// otherwise ErrDomainMismatch is returned and nothing is saved or sent. When
// the recency policy applies, the promotion is saved before the message is
// sent and is kept even if the fill then fails.
func (d *FillDispatcher) Fill(ctx context.Context, domain string, cfg *model.DomainConfig, index int) (model.FillOutcome, error) {
	if !fillable(cfg, index) {
		d.logger.Debug("fill request skipped", "domain", domain, "index", index)
		return model.FillSkipped, nil
	}
	cred := cfg.Credentials[index]

	tab, err := d.activeTab(ctx)
	if err != nil {
		return "", err
	}
	host, err := tabHostname(tab)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(host, strings.TrimSpace(domain)) {
		d.logger.Warn("fill refused, tab is on another domain", "domain", domain, "tab", tab.ID, "host", host)
		return "", fmt.Errorf("%w: tab %s is on %s, not %s", model.ErrDomainMismatch, tab.ID, host, domain)
	}

	if policy.ShouldPromote(*cfg, index) {
		if _, err := d.store.PromoteToFront(ctx, domain, index); err != nil {
			d.logger.Warn("failed to promote credential", "domain", domain, "index", index, "error", err)
		}
	}

	if err := d.injector.EnsureFiller(ctx, tab.ID); err != nil && !errors.Is(err, driven.ErrFillerPresent) {
		d.logger.Debug("filler injection failed, assuming present", "tab", tab.ID, "error", err)
	}

	msg := model.Message{
		Action:           model.ActionFillCredentials,
		UsernameSelector: strings.TrimSpace(cfg.UsernameSelector),
		PasswordSelector: strings.TrimSpace(cfg.PasswordSelector),
		Username:         strings.TrimSpace(cred.Username),
		Password:         strings.TrimSpace(cred.Password),
	}

	sendCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	ack, err := d.messenger.Send(sendCtx, tab.ID, msg, d.sender)
	if err != nil {
		d.logger.Error("fill message failed", "domain", domain, "tab", tab.ID, "error", err)
		return "", fmt.Errorf("%w: %w", model.ErrMessaging, err)
	}
	if !ack.Success {
		reason := ack.Error
		if reason == "" {
			reason = "no fields filled"
		}
		d.logger.Warn("page rejected fill", "domain", domain, "tab", tab.ID, "reason", reason)
		return "", fmt.Errorf("%w: %s", model.ErrFillRejected, reason)
	}

	d.logger.Info("credential filled", "domain", domain, "tab", tab.ID)
	return model.FillCompleted, nil
}

func (d *FillDispatcher) activeTab(ctx context.Context) (*model.Tab, error) {
	tab, err := d.tabs.ActiveTab(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrNoActiveTab, err)
	}
	if tab == nil || tab.ID == "" {
		return nil, model.ErrNoActiveTab
	}
	return tab, nil
}

func tabHostname(tab *model.Tab) (string, error) {
	u, err := url.Parse(tab.URL)
	if err != nil {
		return "", fmt.Errorf("%w: parse tab url: %w", model.ErrNoActiveTab, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: tab %s has no hostname", model.ErrNoActiveTab, tab.ID)
	}
	return u.Hostname(), nil
}

func fillable(cfg *model.DomainConfig, index int) bool {
	if cfg == nil || cfg.Credentials == nil {
		return false
	}
	if !inRange(index, len(cfg.Credentials)) {
		return false
	}
	cred := cfg.Credentials[index]
	if strings.TrimSpace(cred.Username) == "" || strings.TrimSpace(cred.Password) == "" {
		return false
	}
	return strings.TrimSpace(cfg.UsernameSelector) != "" && strings.TrimSpace(cfg.PasswordSelector) != ""
}
