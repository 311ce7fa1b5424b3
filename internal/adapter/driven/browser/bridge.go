package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/ericfisherdev/selectorpass/internal/domain/model"
	"github.com/ericfisherdev/selectorpass/internal/domain/port/driven"
)

// ErrNoReceiver is returned by Send when no filler is installed in the tab.
var ErrNoReceiver = errors.New("no filler installed in tab")

// Compile-time interface satisfaction checks.
var (
	_ driven.TabResolver = (*Bridge)(nil)
	_ driven.Injector    = (*Bridge)(nil)
	_ driven.Messenger   = (*Bridge)(nil)
)

// FillerFactory builds the message handler installed into a tab.
type FillerFactory func(doc driven.Document) driven.MessageHandler

// tabEntry is a tab's chromedp context. ready is closed once the attach
// finished; err is only read after that.
type tabEntry struct {
	ctx    context.Context
	cancel context.CancelFunc
	ready  chan struct{}
	err    error
}

// Bridge implements the tab, injection and messaging ports against a
// chromedp browser context.
type Bridge struct {
	browserCtx context.Context
	keepTabs   bool
	newFiller  FillerFactory
	logger     *slog.Logger

	listTargets func(ctx context.Context) ([]*target.Info, error)
	activate    func(ctx context.Context, tabID string) error
	evaluate    evalFunc
	attachTab   func(ctx context.Context) error

	mu      sync.Mutex
	tabs    map[string]*tabEntry
	fillers map[string]driven.MessageHandler
	active  string
}

// NewBridge creates a Bridge over browserCtx, a context returned by Start.
// With keepTabs set, tabs the bridge attached to are left open when it shuts
// down; use it when attached to a browser the bridge did not launch.
func NewBridge(browserCtx context.Context, keepTabs bool, newFiller FillerFactory, logger *slog.Logger) *Bridge {
	b := &Bridge{
		browserCtx: browserCtx,
		keepTabs:   keepTabs,
		newFiller:  newFiller,
		logger:     logger,
		tabs:       make(map[string]*tabEntry),
		fillers:    make(map[string]driven.MessageHandler),
	}
	b.listTargets = b.cdpTargets
	b.activate = b.cdpActivate
	b.evaluate = b.cdpEvaluate
	b.attachTab = func(ctx context.Context) error { return chromedp.Run(ctx) }
	return b
}

// RegisterTab records ctx as the chromedp context of tabID. Used for the
// browser's initial tab, whose context already exists.
func (b *Bridge) RegisterTab(ctx context.Context, tabID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ready := make(chan struct{})
	close(ready)
	b.tabs[tabID] = &tabEntry{ctx: ctx, cancel: func() {}, ready: ready}
}

// ListTabs returns the browser's page targets. Bookkeeping for tabs that no
// longer exist is released.
func (b *Bridge) ListTabs(ctx context.Context) ([]model.Tab, error) {
	infos, err := b.listTargets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}

	tabs := make([]model.Tab, 0, len(infos))
	live := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		if info == nil || info.Type != "page" {
			continue
		}
		id := string(info.TargetID)
		live[id] = struct{}{}
		tabs = append(tabs, model.Tab{ID: id, URL: info.URL, Title: info.Title})
	}

	b.prune(live)
	return tabs, nil
}

// ActiveTab returns the tab last activated through the bridge, or the first
// page when that tab is gone. A browser with no pages yields nil.
func (b *Bridge) ActiveTab(ctx context.Context) (*model.Tab, error) {
	tabs, err := b.ListTabs(ctx)
	if err != nil {
		return nil, err
	}
	if len(tabs) == 0 {
		return nil, nil
	}

	b.mu.Lock()
	active := b.active
	b.mu.Unlock()

	for i := range tabs {
		if tabs[i].ID == active {
			return &tabs[i], nil
		}
	}
	return &tabs[0], nil
}

// ActivateTab brings tabID to the front and makes it the active tab.
func (b *Bridge) ActivateTab(ctx context.Context, tabID string) error {
	tabs, err := b.ListTabs(ctx)
	if err != nil {
		return err
	}
	if !containsTab(tabs, tabID) {
		return fmt.Errorf("%w: tab %s not found", model.ErrNoActiveTab, tabID)
	}

	if err := b.activate(ctx, tabID); err != nil {
		return fmt.Errorf("activate tab %s: %w", tabID, err)
	}

	b.mu.Lock()
	b.active = tabID
	b.mu.Unlock()

	b.logger.Debug("tab activated", "tab", tabID)
	return nil
}

// EnsureFiller installs a filler into tabID. It returns
// driven.ErrFillerPresent when one is already installed, and an error when
// the tab's page cannot be scripted.
func (b *Bridge) EnsureFiller(ctx context.Context, tabID string) error {
	b.mu.Lock()
	_, present := b.fillers[tabID]
	b.mu.Unlock()
	if present {
		return driven.ErrFillerPresent
	}

	var ready bool
	if err := b.evaluate(ctx, tabID, pingScript, &ready); err != nil {
		return fmt.Errorf("script tab %s: %w", tabID, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, present := b.fillers[tabID]; present {
		return driven.ErrFillerPresent
	}
	b.fillers[tabID] = b.newFiller(&tabDocument{tabID: tabID, eval: b.evaluate})
	b.logger.Debug("filler installed", "tab", tabID)
	return nil
}

// Send delivers msg to the filler in tabID and waits for its ack.
func (b *Bridge) Send(ctx context.Context, tabID string, msg model.Message, sender model.Sender) (model.Ack, error) {
	b.mu.Lock()
	h := b.fillers[tabID]
	b.mu.Unlock()
	if h == nil {
		return model.Ack{}, fmt.Errorf("%w: %s", ErrNoReceiver, tabID)
	}

	ack := h.HandleMessage(ctx, msg, sender)
	if err := ctx.Err(); err != nil {
		return model.Ack{}, fmt.Errorf("waiting for ack from tab %s: %w", tabID, err)
	}
	return ack, nil
}

func (b *Bridge) prune(live map[string]struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, entry := range b.tabs {
		if _, ok := live[id]; !ok {
			entry.cancel()
			delete(b.tabs, id)
		}
	}
	for id := range b.fillers {
		if _, ok := live[id]; !ok {
			delete(b.fillers, id)
		}
	}
	if _, ok := live[b.active]; !ok {
		b.active = ""
	}
}

// tabContext returns the chromedp context attached to tabID, attaching on
// first use. Concurrent callers share one attach, and each waits for it no
// longer than its own ctx allows.
func (b *Bridge) tabContext(ctx context.Context, tabID string) (context.Context, error) {
	b.mu.Lock()
	entry, ok := b.tabs[tabID]
	if !ok {
		entry = b.startAttach(tabID)
		b.tabs[tabID] = entry
	}
	b.mu.Unlock()

	select {
	case <-entry.ready:
	case <-ctx.Done():
		return nil, fmt.Errorf("attach to tab %s: %w", tabID, ctx.Err())
	}
	if entry.err != nil {
		return nil, entry.err
	}
	return entry.ctx, nil
}

// startAttach attaches to tabID in the background. The attach runs on the
// tab's own context because chromedp ties the target's event loop to it.
// Must be called with b.mu held.
func (b *Bridge) startAttach(tabID string) *tabEntry {
	parent := b.browserCtx
	if b.keepTabs {
		// Cancelling an attached tab context closes the tab.
		parent = context.WithoutCancel(parent)
	}
	ctx, cancel := chromedp.NewContext(parent, chromedp.WithTargetID(target.ID(tabID)))
	entry := &tabEntry{ctx: ctx, cancel: cancel, ready: make(chan struct{})}

	go func() {
		defer close(entry.ready)
		if err := b.attachTab(ctx); err != nil {
			cancel()
			entry.err = fmt.Errorf("attach to tab %s: %w", tabID, err)
			b.mu.Lock()
			if b.tabs[tabID] == entry {
				delete(b.tabs, tabID)
			}
			b.mu.Unlock()
		}
	}()
	return entry
}

func (b *Bridge) cdpTargets(ctx context.Context) ([]*target.Info, error) {
	runCtx, cancel := bind(ctx, b.browserCtx)
	defer cancel()
	return chromedp.Targets(runCtx)
}

func (b *Bridge) cdpActivate(ctx context.Context, tabID string) error {
	tabCtx, err := b.tabContext(ctx, tabID)
	if err != nil {
		return err
	}
	runCtx, cancel := bind(ctx, tabCtx)
	defer cancel()
	return chromedp.Run(runCtx, page.BringToFront())
}

func (b *Bridge) cdpEvaluate(ctx context.Context, tabID, expression string, res any) error {
	tabCtx, err := b.tabContext(ctx, tabID)
	if err != nil {
		return err
	}
	runCtx, cancel := bind(ctx, tabCtx)
	defer cancel()
	return chromedp.Run(runCtx, chromedp.Evaluate(expression, res))
}

// bind derives a context carrying cdpCtx's chromedp state that is also
// cancelled when ctx is done.
func bind(ctx, cdpCtx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(cdpCtx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func containsTab(tabs []model.Tab, id string) bool {
	for _, t := range tabs {
		if t.ID == id {
			return true
		}
	}
	return false
}
