package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/ericfisherdev/selectorpass/internal/domain/model"
	"github.com/ericfisherdev/selectorpass/internal/domain/port/driven"
)

// --- Fake implementations of driven ports ---

// memRecords is an in-memory driven.RecordStore with injectable failures.
type memRecords struct {
	mu     sync.Mutex
	data   map[string]json.RawMessage
	getErr error
	setErr error
	sets   int
}

func newMemRecords() *memRecords {
	return &memRecords{data: map[string]json.RawMessage{}}
}

func (m *memRecords) Get(_ context.Context, keys ...string) (map[string]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := map[string]json.RawMessage{}
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out, nil
}

func (m *memRecords) Set(_ context.Context, record map[string]json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.sets++
	for k, v := range record {
		m.data[k] = append(json.RawMessage(nil), v...)
	}
	return nil
}

func (m *memRecords) setCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

type fakeTabs struct {
	tab *model.Tab
	err error
}

func (f *fakeTabs) ActiveTab(_ context.Context) (*model.Tab, error) { return f.tab, f.err }
func (f *fakeTabs) ListTabs(_ context.Context) ([]model.Tab, error) {
	if f.tab == nil {
		return nil, f.err
	}
	return []model.Tab{*f.tab}, f.err
}
func (f *fakeTabs) ActivateTab(_ context.Context, _ string) error { return f.err }

type fakeInjector struct {
	err   error
	calls []string
}

func (f *fakeInjector) EnsureFiller(_ context.Context, tabID string) error {
	f.calls = append(f.calls, tabID)
	return f.err
}

// recordingMessenger captures sent messages and snapshots the persisted
// store at send time so tests can check ordering against the promotion.
type recordingMessenger struct {
	ack      model.Ack
	err      error
	sent     []model.Message
	senders  []model.Sender
	records  *memRecords
	atSend   []json.RawMessage
	deadline bool
}

func (m *recordingMessenger) Send(ctx context.Context, _ string, msg model.Message, sender model.Sender) (model.Ack, error) {
	m.sent = append(m.sent, msg)
	m.senders = append(m.senders, sender)
	if _, ok := ctx.Deadline(); ok {
		m.deadline = true
	}
	if m.records != nil {
		rec, _ := m.records.Get(ctx, domainsKey)
		m.atSend = append(m.atSend, rec[domainsKey])
	}
	return m.ack, m.err
}

// fakeDocument maps selectors to elements. Selectors not in the map match nothing.
type fakeDocument struct {
	elements map[string]*fakeElement
	queryErr error
	queries  []string
}

func (d *fakeDocument) QuerySelector(_ context.Context, selector string) (driven.Element, error) {
	d.queries = append(d.queries, selector)
	if d.queryErr != nil {
		return nil, d.queryErr
	}
	el, ok := d.elements[selector]
	if !ok {
		return nil, nil
	}
	return el, nil
}

type fakeEvent struct {
	Type    string
	Bubbles bool
}

type fakeElement struct {
	value    string
	events   []fakeEvent
	setErr   error
	panicMsg string
}

func (e *fakeElement) SetValue(_ context.Context, value string) error {
	if e.panicMsg != "" {
		panic(e.panicMsg)
	}
	if e.setErr != nil {
		return e.setErr
	}
	e.value = value
	return nil
}

func (e *fakeElement) DispatchEvent(_ context.Context, eventType string, bubbles bool) error {
	e.events = append(e.events, fakeEvent{Type: eventType, Bubbles: bubbles})
	return nil
}

// --- Helpers ---

var errSubstrate = errors.New("substrate unavailable")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func creds(usernames ...string) []model.Credential {
	out := make([]model.Credential, 0, len(usernames))
	for _, u := range usernames {
		out = append(out, model.Credential{Username: u, Password: "pw-" + u})
	}
	return out
}

func usernames(cs []model.Credential) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Username)
	}
	return out
}
