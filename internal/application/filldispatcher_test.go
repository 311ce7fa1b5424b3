package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/selectorpass/internal/domain/model"
	"github.com/ericfisherdev/selectorpass/internal/domain/port/driven"
)

type dispatcherFixture struct {
	store     *CredentialStore
	records   *memRecords
	tabs      *fakeTabs
	injector  *fakeInjector
	messenger *recordingMessenger
	d         *FillDispatcher
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	records := newMemRecords()
	store := NewCredentialStore(records, discardLogger())
	tabs := &fakeTabs{tab: &model.Tab{ID: "tab-1", URL: "https://bank.example/login"}}
	injector := &fakeInjector{}
	messenger := &recordingMessenger{ack: model.Ack{Success: true}, records: records}

	return &dispatcherFixture{
		store:     store,
		records:   records,
		tabs:      tabs,
		injector:  injector,
		messenger: messenger,
		d:         NewFillDispatcher(store, tabs, injector, messenger, testRuntimeID, time.Second, discardLogger()),
	}
}

func (f *dispatcherFixture) seedBank(t *testing.T, autoSort *bool) *model.DomainConfig {
	t.Helper()
	cfg := model.DomainConfig{
		UsernameSelector: "#user",
		PasswordSelector: "#pass",
		AutoSortRecent:   autoSort,
		Credentials: []model.Credential{
			{Username: "alice", Password: "alice-pw"},
			{Username: "bob", Password: "bob-pw"},
		},
	}
	seed(t, f.records, model.Store{"bank.example": cfg})
	return &cfg
}

func persistedUsernames(t *testing.T, raw json.RawMessage) []string {
	t.Helper()
	var store model.Store
	require.NoError(t, json.Unmarshal(raw, &store))
	return usernames(store["bank.example"].Credentials)
}

func TestFillDispatcher_PromotesThenFills(t *testing.T) {
	f := newDispatcherFixture(t)
	cfg := f.seedBank(t, model.BoolPtr(true))
	ctx := context.Background()

	outcome, err := f.d.Fill(ctx, "bank.example", cfg, 1)

	require.NoError(t, err)
	assert.Equal(t, model.FillCompleted, outcome)

	// (a) persisted reorder
	assert.Equal(t, []string{"bob", "alice"}, usernames(f.store.Load(ctx)["bank.example"].Credentials))

	// (b) exactly one message with bob's values
	require.Len(t, f.messenger.sent, 1)
	assert.Equal(t, model.Message{
		Action:           model.ActionFillCredentials,
		UsernameSelector: "#user",
		PasswordSelector: "#pass",
		Username:         "bob",
		Password:         "bob-pw",
	}, f.messenger.sent[0])
	assert.Equal(t, model.Sender{ID: testRuntimeID}, f.messenger.senders[0])

	// promotion was saved before the message went out
	require.Len(t, f.messenger.atSend, 1)
	assert.Equal(t, []string{"bob", "alice"}, persistedUsernames(t, f.messenger.atSend[0]))
	assert.True(t, f.messenger.deadline, "fill message is bounded by the timeout")
}

func TestFillDispatcher_RejectedFillKeepsPromotion(t *testing.T) {
	f := newDispatcherFixture(t)
	cfg := f.seedBank(t, model.BoolPtr(true))
	f.messenger.ack = model.Ack{Success: false, Error: "No fields found"}
	ctx := context.Background()

	_, err := f.d.Fill(ctx, "bank.example", cfg, 1)

	require.ErrorIs(t, err, model.ErrFillRejected)
	assert.Contains(t, err.Error(), "No fields found")
	assert.Len(t, f.messenger.sent, 1, "no automatic retry")
	assert.Equal(t, []string{"bob", "alice"}, usernames(f.store.Load(ctx)["bank.example"].Credentials))
}

func TestFillDispatcher_NoPromotionWhenDisabled(t *testing.T) {
	f := newDispatcherFixture(t)
	cfg := f.seedBank(t, model.BoolPtr(false))
	ctx := context.Background()

	_, err := f.d.Fill(ctx, "bank.example", cfg, 1)

	require.NoError(t, err)
	assert.Zero(t, f.records.setCount())
	assert.Equal(t, []string{"alice", "bob"}, usernames(f.store.Load(ctx)["bank.example"].Credentials))
}

func TestFillDispatcher_NoPromotionForFirstEntry(t *testing.T) {
	f := newDispatcherFixture(t)
	cfg := f.seedBank(t, nil)

	_, err := f.d.Fill(context.Background(), "bank.example", cfg, 0)

	require.NoError(t, err)
	assert.Zero(t, f.records.setCount())
	assert.Equal(t, "alice", f.messenger.sent[0].Username)
}

func TestFillDispatcher_SkipsInvalidRequests(t *testing.T) {
	valid := model.DomainConfig{
		UsernameSelector: "#user",
		PasswordSelector: "#pass",
		Credentials:      []model.Credential{{Username: "alice", Password: "pw"}},
	}
	tests := []struct {
		name  string
		cfg   *model.DomainConfig
		index int
	}{
		{name: "nil config", cfg: nil, index: 0},
		{name: "nil credentials", cfg: &model.DomainConfig{UsernameSelector: "#u", PasswordSelector: "#p"}, index: 0},
		{name: "negative index", cfg: &valid, index: -1},
		{name: "index past end", cfg: &valid, index: 1},
		{name: "empty password", cfg: &model.DomainConfig{UsernameSelector: "#u", PasswordSelector: "#p", Credentials: []model.Credential{{Username: "a"}}}, index: 0},
		{name: "empty selector", cfg: &model.DomainConfig{UsernameSelector: " ", PasswordSelector: "#p", Credentials: []model.Credential{{Username: "a", Password: "b"}}}, index: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatcherFixture(t)

			outcome, err := f.d.Fill(context.Background(), "bank.example", tt.cfg, tt.index)

			require.NoError(t, err)
			assert.Equal(t, model.FillSkipped, outcome)
			assert.Empty(t, f.messenger.sent)
			assert.Empty(t, f.injector.calls)
			assert.Zero(t, f.records.setCount())
		})
	}
}

func TestFillDispatcher_NoActiveTab(t *testing.T) {
	f := newDispatcherFixture(t)
	cfg := f.seedBank(t, nil)

	f.tabs.tab = nil
	_, err := f.d.Fill(context.Background(), "bank.example", cfg, 0)
	require.ErrorIs(t, err, model.ErrNoActiveTab)

	f.tabs.err = errors.New("browser gone")
	_, err = f.d.Fill(context.Background(), "bank.example", cfg, 0)
	require.ErrorIs(t, err, model.ErrNoActiveTab)

	assert.Empty(t, f.messenger.sent)
}

func TestFillDispatcher_RefusesTabOnAnotherDomain(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want error
	}{
		{name: "other host", url: "https://evil.example/login", want: model.ErrDomainMismatch},
		{name: "subdomain", url: "https://login.bank.example/", want: model.ErrDomainMismatch},
		{name: "no hostname", url: "about:blank", want: model.ErrNoActiveTab},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatcherFixture(t)
			cfg := f.seedBank(t, model.BoolPtr(true))
			f.tabs.tab = &model.Tab{ID: "tab-9", URL: tt.url}

			_, err := f.d.Fill(context.Background(), "bank.example", cfg, 1)

			require.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.messenger.sent)
			assert.Empty(t, f.injector.calls)
			assert.Zero(t, f.records.setCount(), "order must not change for a refused fill")
		})
	}
}

func TestFillDispatcher_HostComparisonIgnoresCase(t *testing.T) {
	f := newDispatcherFixture(t)
	cfg := f.seedBank(t, nil)
	f.tabs.tab = &model.Tab{ID: "tab-1", URL: "https://BANK.example/login"}

	outcome, err := f.d.Fill(context.Background(), "bank.example", cfg, 0)

	require.NoError(t, err)
	assert.Equal(t, model.FillCompleted, outcome)
}

func TestFillDispatcher_InjectionFailureIgnored(t *testing.T) {
	for _, injErr := range []error{driven.ErrFillerPresent, errors.New("cannot access chrome:// URL")} {
		f := newDispatcherFixture(t)
		cfg := f.seedBank(t, nil)
		f.injector.err = injErr

		outcome, err := f.d.Fill(context.Background(), "bank.example", cfg, 0)

		require.NoError(t, err)
		assert.Equal(t, model.FillCompleted, outcome)
		assert.Equal(t, []string{"tab-1"}, f.injector.calls)
		assert.Len(t, f.messenger.sent, 1)
	}
}

func TestFillDispatcher_MessagingFailure(t *testing.T) {
	f := newDispatcherFixture(t)
	cfg := f.seedBank(t, nil)
	f.messenger.err = errors.New("receiving end does not exist")

	_, err := f.d.Fill(context.Background(), "bank.example", cfg, 0)

	require.ErrorIs(t, err, model.ErrMessaging)
	assert.Len(t, f.messenger.sent, 1)
}

func TestFillDispatcher_PromotionFailureDoesNotAbortFill(t *testing.T) {
	f := newDispatcherFixture(t)
	cfg := f.seedBank(t, nil)
	f.records.setErr = errSubstrate

	outcome, err := f.d.Fill(context.Background(), "bank.example", cfg, 1)

	require.NoError(t, err)
	assert.Equal(t, model.FillCompleted, outcome)
	require.Len(t, f.messenger.sent, 1)
	assert.Equal(t, "bob", f.messenger.sent[0].Username)
}

func TestFillDispatcher_TrimsMessageFields(t *testing.T) {
	f := newDispatcherFixture(t)
	cfg := &model.DomainConfig{
		UsernameSelector: " #user ",
		PasswordSelector: "#pass\n",
		Credentials:      []model.Credential{{Username: " alice ", Password: " pw "}},
	}

	_, err := f.d.Fill(context.Background(), "bank.example", cfg, 0)
	require.NoError(t, err)

	msg := f.messenger.sent[0]
	assert.Equal(t, "#user", msg.UsernameSelector)
	assert.Equal(t, "#pass", msg.PasswordSelector)
	assert.Equal(t, "alice", msg.Username)
	assert.Equal(t, "pw", msg.Password)
}

func TestFillDispatcher_CurrentDomain(t *testing.T) {
	tests := []struct {
		name    string
		tab     *model.Tab
		want    string
		wantErr bool
	}{
		{name: "https with path", tab: &model.Tab{ID: "1", URL: "https://bank.example/login?next=/"}, want: "bank.example"},
		{name: "port stripped", tab: &model.Tab{ID: "1", URL: "http://localhost:8080/"}, want: "localhost"},
		{name: "case preserved", tab: &model.Tab{ID: "1", URL: "https://Bank.Example/"}, want: "Bank.Example"},
		{name: "no host", tab: &model.Tab{ID: "1", URL: "about:blank"}, wantErr: true},
		{name: "no tab", tab: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatcherFixture(t)
			f.tabs.tab = tt.tab

			got, err := f.d.CurrentDomain(context.Background())
			if tt.wantErr {
				require.ErrorIs(t, err, model.ErrNoActiveTab)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFillDispatcher_FillByIndexUsesCurrentDomain(t *testing.T) {
	f := newDispatcherFixture(t)
	f.seedBank(t, nil)

	outcome, err := f.d.FillByIndex(context.Background(), "", 1)

	require.NoError(t, err)
	assert.Equal(t, model.FillCompleted, outcome)
	assert.Equal(t, "bob", f.messenger.sent[0].Username)
}

func TestFillDispatcher_FillByIndexUnknownDomainSkips(t *testing.T) {
	f := newDispatcherFixture(t)

	outcome, err := f.d.FillByIndex(context.Background(), "nowhere.example", 0)

	require.NoError(t, err)
	assert.Equal(t, model.FillSkipped, outcome)
}

// End to end through a real PageFiller: the messenger hands the message to
// the filler bound to the tab's document.
func TestFillDispatcher_WithPageFiller(t *testing.T) {
	records := newMemRecords()
	store := NewCredentialStore(records, discardLogger())
	user, pass := &fakeElement{}, &fakeElement{}
	doc := &fakeDocument{elements: map[string]*fakeElement{"#user": user, "#pass": pass}}
	filler := NewPageFiller(testRuntimeID, doc, discardLogger())

	d := NewFillDispatcher(store, &fakeTabs{tab: &model.Tab{ID: "t", URL: "https://bank.example/"}},
		&fakeInjector{}, handlerMessenger{filler}, testRuntimeID, 0, discardLogger())

	cfg := &model.DomainConfig{UsernameSelector: "#user", PasswordSelector: "#pass", Credentials: creds("alice")}
	outcome, err := d.Fill(context.Background(), "bank.example", cfg, 0)

	require.NoError(t, err)
	assert.Equal(t, model.FillCompleted, outcome)
	assert.Equal(t, "alice", user.value)
	assert.Equal(t, "pw-alice", pass.value)
}

func TestFillDispatcher_ForeignRuntimeRejectedByFiller(t *testing.T) {
	store := NewCredentialStore(newMemRecords(), discardLogger())
	user := &fakeElement{}
	filler := NewPageFiller(testRuntimeID, &fakeDocument{elements: map[string]*fakeElement{"#user": user}}, discardLogger())

	d := NewFillDispatcher(store, &fakeTabs{tab: &model.Tab{ID: "t", URL: "https://bank.example/"}},
		&fakeInjector{}, handlerMessenger{filler}, "another-extension", 0, discardLogger())

	cfg := &model.DomainConfig{UsernameSelector: "#user", PasswordSelector: "#pass", Credentials: creds("alice")}
	_, err := d.Fill(context.Background(), "bank.example", cfg, 0)

	require.ErrorIs(t, err, model.ErrFillRejected)
	assert.Contains(t, err.Error(), "Invalid sender")
	assert.Empty(t, user.value)
}

type handlerMessenger struct {
	h driven.MessageHandler
}

func (m handlerMessenger) Send(ctx context.Context, _ string, msg model.Message, sender model.Sender) (model.Ack, error) {
	return m.h.HandleMessage(ctx, msg, sender), nil
}
