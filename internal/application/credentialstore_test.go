package application

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/selectorpass/internal/domain/model"
)

func newTestStore(t *testing.T) (*CredentialStore, *memRecords) {
	t.Helper()
	records := newMemRecords()
	return NewCredentialStore(records, discardLogger()), records
}

// seed writes store directly to the records, bypassing validation.
func seed(t *testing.T, records *memRecords, store model.Store) {
	t.Helper()
	data, err := json.Marshal(store)
	require.NoError(t, err)
	records.data[domainsKey] = data
}

func TestCredentialStore_UpsertDomainValidation(t *testing.T) {
	tests := []struct {
		name    string
		domain  string
		userSel string
		passSel string
		wantErr error
	}{
		{name: "valid", domain: "example.com", userSel: "#user", passSel: "#pass"},
		{name: "invalid hyphens", domain: "-bad-.com", userSel: "#user", passSel: "#pass", wantErr: model.ErrInvalidDomain},
		{name: "label too long", domain: strings.Repeat("a", 254), userSel: "#user", passSel: "#pass", wantErr: model.ErrInvalidDomain},
		{name: "empty username selector", domain: "example.com", userSel: " ", passSel: "#pass", wantErr: model.ErrInvalidSelector},
		{name: "malformed password selector", domain: "example.com", userSel: "#user", passSel: "input[", wantErr: model.ErrInvalidSelector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, records := newTestStore(t)
			ctx := context.Background()

			_, err := s.UpsertDomain(ctx, tt.domain, tt.userSel, tt.passSel, true)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, records.setCount(), "store must not be written on validation failure")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, records.setCount())
		})
	}
}

func TestCredentialStore_UpsertDomainTrimsAndDefaults(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	entry, err := s.UpsertDomain(ctx, "  bank.example ", " #user ", "\t#pass", true)
	require.NoError(t, err)
	assert.Equal(t, "bank.example", entry.Domain)
	cfg := entry.Config
	assert.Equal(t, "#user", cfg.UsernameSelector)
	assert.Equal(t, "#pass", cfg.PasswordSelector)
	assert.NotNil(t, cfg.Credentials)
	assert.Empty(t, cfg.Credentials)

	got, err := s.GetDomain(ctx, "bank.example")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.AutoSortEnabled())
}

func TestCredentialStore_UpsertDomainPreservesCredentials(t *testing.T) {
	s, records := newTestStore(t)
	ctx := context.Background()
	seed(t, records, model.Store{
		"bank.example": {UsernameSelector: "#old-u", PasswordSelector: "#old-p", Credentials: creds("alice", "bob")},
	})

	entry, err := s.UpsertDomain(ctx, "bank.example", "#u", "#p", false)
	require.NoError(t, err)
	cfg := entry.Config
	assert.Equal(t, []string{"alice", "bob"}, usernames(cfg.Credentials))
	assert.Equal(t, "#u", cfg.UsernameSelector)
	assert.False(t, cfg.AutoSortEnabled())
}

func TestCredentialStore_SaveLoadRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	want := model.Store{
		"bank.example": {
			UsernameSelector: "#u",
			PasswordSelector: "#p",
			AutoSortRecent:   model.BoolPtr(false),
			Credentials:      creds("alice", "bob"),
		},
		"mail.example": {
			UsernameSelector: "input[name=email]",
			PasswordSelector: "input[type=password]",
			AutoSortRecent:   model.BoolPtr(true),
			Credentials:      []model.Credential{},
		},
	}

	require.NoError(t, s.Save(ctx, want))
	got := s.Load(ctx)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCredentialStore_LoadMissingIsEmpty(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Empty(t, s.Load(context.Background()))
}

func TestCredentialStore_LoadReadFailureIsEmpty(t *testing.T) {
	s, records := newTestStore(t)
	seed(t, records, model.Store{"bank.example": {UsernameSelector: "#u", PasswordSelector: "#p"}})
	records.getErr = errSubstrate

	store := s.Load(context.Background())
	assert.NotNil(t, store)
	assert.Empty(t, store)
}

func TestCredentialStore_LoadAbsentAutoSortFlag(t *testing.T) {
	s, records := newTestStore(t)
	records.data[domainsKey] = json.RawMessage(`{"old.example":{"usernameSelector":"#u","passwordSelector":"#p","credentials":null}}`)

	store := s.Load(context.Background())
	cfg := store["old.example"]
	assert.Nil(t, cfg.AutoSortRecent)
	assert.True(t, cfg.AutoSortEnabled())
	assert.NotNil(t, cfg.Credentials)
}

func TestCredentialStore_SaveFailureIsPersistenceError(t *testing.T) {
	s, records := newTestStore(t)
	records.setErr = errSubstrate

	err := s.Save(context.Background(), model.Store{})
	require.ErrorIs(t, err, model.ErrPersistence)
	require.ErrorIs(t, err, errSubstrate)

	_, err = s.UpsertDomain(context.Background(), "bank.example", "#u", "#p", true)
	require.ErrorIs(t, err, model.ErrPersistence)
}

func TestCredentialStore_MutationAbortsOnReadFailure(t *testing.T) {
	s, records := newTestStore(t)
	seed(t, records, model.Store{"bank.example": {UsernameSelector: "#u", PasswordSelector: "#p", Credentials: creds("alice")}})
	records.getErr = errSubstrate

	_, err := s.AddCredential(context.Background(), "bank.example", "bob", "pw")
	require.ErrorIs(t, err, model.ErrPersistence)
	assert.Zero(t, records.setCount(), "a failed read must not be followed by a save")
}

func TestCredentialStore_RenameDomain(t *testing.T) {
	t.Run("moves credentials to new key", func(t *testing.T) {
		s, records := newTestStore(t)
		ctx := context.Background()
		seed(t, records, model.Store{"old.example": {UsernameSelector: "#u", PasswordSelector: "#p", Credentials: creds("alice")}})

		entry, err := s.RenameDomain(ctx, "old.example", " new.example ", "#user", "#pass", false)
		require.NoError(t, err)
		assert.Equal(t, "new.example", entry.Domain)
		assert.Equal(t, []string{"alice"}, usernames(entry.Config.Credentials))

		store := s.Load(ctx)
		assert.NotContains(t, store, "old.example")
		require.Contains(t, store, "new.example")
		assert.Equal(t, "#user", store["new.example"].UsernameSelector)
		assert.False(t, store["new.example"].AutoSortEnabled())
	})

	t.Run("rejects existing target", func(t *testing.T) {
		s, records := newTestStore(t)
		seed(t, records, model.Store{
			"old.example": {UsernameSelector: "#u", PasswordSelector: "#p", Credentials: creds("alice")},
			"new.example": {UsernameSelector: "#u", PasswordSelector: "#p", Credentials: creds("bob")},
		})

		_, err := s.RenameDomain(context.Background(), "old.example", "new.example", "#u", "#p", true)
		require.ErrorIs(t, err, model.ErrDuplicateDomain)
		assert.Zero(t, records.setCount())
	})

	t.Run("same name updates in place", func(t *testing.T) {
		s, records := newTestStore(t)
		ctx := context.Background()
		seed(t, records, model.Store{"bank.example": {UsernameSelector: "#u", PasswordSelector: "#p", Credentials: creds("alice")}})

		_, err := s.RenameDomain(ctx, "bank.example", "bank.example", "#u2", "#p2", true)
		require.NoError(t, err)

		store := s.Load(ctx)
		require.Len(t, store, 1)
		assert.Equal(t, "#u2", store["bank.example"].UsernameSelector)
		assert.Equal(t, []string{"alice"}, usernames(store["bank.example"].Credentials))
	})

	t.Run("validates new name", func(t *testing.T) {
		s, records := newTestStore(t)
		seed(t, records, model.Store{"bank.example": {UsernameSelector: "#u", PasswordSelector: "#p"}})

		_, err := s.RenameDomain(context.Background(), "bank.example", "bad_name", "#u", "#p", true)
		require.ErrorIs(t, err, model.ErrInvalidDomain)
	})
}

func TestCredentialStore_DeleteDomain(t *testing.T) {
	s, records := newTestStore(t)
	ctx := context.Background()
	seed(t, records, model.Store{
		"bank.example": {UsernameSelector: "#u", PasswordSelector: "#p", Credentials: creds("alice", "bob")},
		"mail.example": {UsernameSelector: "#u", PasswordSelector: "#p"},
	})

	require.NoError(t, s.DeleteDomain(ctx, "bank.example"))

	store := s.Load(ctx)
	assert.NotContains(t, store, "bank.example")
	assert.Contains(t, store, "mail.example")

	err := s.DeleteDomain(ctx, "bank.example")
	require.ErrorIs(t, err, model.ErrUnknownDomain)
}

func TestCredentialStore_AddCredential(t *testing.T) {
	s, records := newTestStore(t)
	ctx := context.Background()
	seed(t, records, model.Store{"bank.example": {UsernameSelector: "#u", PasswordSelector: "#p", Credentials: creds("alice")}})

	cfg, err := s.AddCredential(ctx, "bank.example", " bob ", " secret ")
	require.NoError(t, err)
	require.Len(t, cfg.Credentials, 2)
	assert.Equal(t, model.Credential{Username: "bob", Password: "secret"}, cfg.Credentials[1])

	_, err = s.AddCredential(ctx, "nowhere.example", "bob", "pw")
	require.ErrorIs(t, err, model.ErrUnknownDomain)

	_, err = s.AddCredential(ctx, "bank.example", "bob", "")
	require.ErrorIs(t, err, model.ErrInvalidCredential)

	_, err = s.AddCredential(ctx, "bank.example", strings.Repeat("x", 101), "pw")
	require.ErrorIs(t, err, model.ErrInvalidCredential)

	assert.Equal(t, 1, records.setCount())
}

func TestCredentialStore_AddThenDeleteRestoresList(t *testing.T) {
	s, records := newTestStore(t)
	ctx := context.Background()
	seed(t, records, model.Store{"bank.example": {UsernameSelector: "#u", PasswordSelector: "#p", Credentials: creds("alice", "bob")}})
	before := s.Load(ctx)["bank.example"].Credentials

	cfg, err := s.AddCredential(ctx, "bank.example", "carol", "pw")
	require.NoError(t, err)
	_, err = s.DeleteCredential(ctx, "bank.example", len(cfg.Credentials)-1)
	require.NoError(t, err)

	after := s.Load(ctx)["bank.example"].Credentials
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("list not restored (-before +after):\n%s", diff)
	}
}

func TestCredentialStore_EditCredential(t *testing.T) {
	s, records := newTestStore(t)
	ctx := context.Background()
	seed(t, records, model.Store{"bank.example": {UsernameSelector: "#u", PasswordSelector: "#p", Credentials: creds("alice", "bob", "carol")}})

	cfg, err := s.EditCredential(ctx, "bank.example", 1, "robert", "new-pw")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "robert", "carol"}, usernames(cfg.Credentials))
	assert.Equal(t, "new-pw", cfg.Credentials[1].Password)

	for _, idx := range []int{-1, 3} {
		_, err = s.EditCredential(ctx, "bank.example", idx, "x", "y")
		require.ErrorIs(t, err, model.ErrIndexOutOfRange)
	}

	_, err = s.EditCredential(ctx, "bank.example", 0, "", "y")
	require.ErrorIs(t, err, model.ErrInvalidCredential)
}

func TestCredentialStore_DeleteCredentialShifts(t *testing.T) {
	s, records := newTestStore(t)
	ctx := context.Background()
	seed(t, records, model.Store{"bank.example": {UsernameSelector: "#u", PasswordSelector: "#p", Credentials: creds("A", "B", "C", "D")}})

	cfg, err := s.DeleteCredential(ctx, "bank.example", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "D"}, usernames(cfg.Credentials))

	_, err = s.DeleteCredential(ctx, "bank.example", 3)
	require.ErrorIs(t, err, model.ErrIndexOutOfRange)
}

func TestCredentialStore_ReorderCredential(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     []string
		wantErr  error
	}{
		{name: "move third to front", from: 2, to: 0, want: []string{"C", "A", "B", "D"}},
		{name: "move first to end", from: 0, to: 3, want: []string{"B", "C", "D", "A"}},
		{name: "move down one", from: 1, to: 2, want: []string{"A", "C", "B", "D"}},
		{name: "move up one", from: 3, to: 2, want: []string{"A", "B", "D", "C"}},
		{name: "from out of range", from: 4, to: 0, wantErr: model.ErrIndexOutOfRange},
		{name: "to out of range", from: 0, to: 4, wantErr: model.ErrIndexOutOfRange},
		{name: "negative", from: -1, to: 0, wantErr: model.ErrIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, records := newTestStore(t)
			ctx := context.Background()
			seed(t, records, model.Store{"bank.example": {UsernameSelector: "#u", PasswordSelector: "#p", Credentials: creds("A", "B", "C", "D")}})

			cfg, err := s.ReorderCredential(ctx, "bank.example", tt.from, tt.to)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Zero(t, records.setCount())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, usernames(cfg.Credentials))
			assert.Equal(t, tt.want, usernames(s.Load(ctx)["bank.example"].Credentials))
		})
	}
}

func TestCredentialStore_PromoteToFront(t *testing.T) {
	s, records := newTestStore(t)
	ctx := context.Background()
	seed(t, records, model.Store{"bank.example": {UsernameSelector: "#u", PasswordSelector: "#p", Credentials: creds("alice", "bob", "carol")}})

	cfg, err := s.PromoteToFront(ctx, "bank.example", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, usernames(cfg.Credentials))
	assert.Zero(t, records.setCount(), "promoting the first entry is a no-op")

	cfg, err = s.PromoteToFront(ctx, "bank.example", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol", "alice", "bob"}, usernames(cfg.Credentials))

	_, err = s.PromoteToFront(ctx, "nowhere.example", 0)
	require.ErrorIs(t, err, model.ErrUnknownDomain)
}

// Domain keys are not case-folded: a hostname reported as "Example.com"
// does not find a configuration saved as "example.com".
func TestCredentialStore_DomainKeysAreCaseSensitive(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertDomain(ctx, "example.com", "#u", "#p", true)
	require.NoError(t, err)
	_, err = s.UpsertDomain(ctx, "Example.com", "#user", "#pass", true)
	require.NoError(t, err)

	entries, err := s.ListDomains(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	lower, err := s.GetDomain(ctx, "example.com")
	require.NoError(t, err)
	assert.Equal(t, "#u", lower.UsernameSelector)

	missing, err := s.GetDomain(ctx, "EXAMPLE.COM")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// Known race: two contexts that each load, mutate and save the whole store
// lose one side's change. Last write wins; there is no conflict detection.
func TestCredentialStore_ConcurrentWritersLastWriteWins(t *testing.T) {
	s, records := newTestStore(t)
	ctx := context.Background()
	seed(t, records, model.Store{"bank.example": {UsernameSelector: "#u", PasswordSelector: "#p", Credentials: creds("alice")}})

	// The options page loads its snapshot first.
	optionsSnapshot := s.Load(ctx)

	// Meanwhile the popup adds a credential and saves.
	_, err := s.AddCredential(ctx, "bank.example", "bob", "pw")
	require.NoError(t, err)

	// The options page then saves its own edit on top of the stale snapshot.
	cfg := optionsSnapshot["bank.example"]
	cfg.UsernameSelector = "#login"
	optionsSnapshot["bank.example"] = cfg
	require.NoError(t, s.Save(ctx, optionsSnapshot))

	final := s.Load(ctx)["bank.example"]
	assert.Equal(t, "#login", final.UsernameSelector)
	assert.Equal(t, []string{"alice"}, usernames(final.Credentials), "popup's credential is lost")
}

func TestCredentialStore_ListDomainsSorted(t *testing.T) {
	s, records := newTestStore(t)
	seed(t, records, model.Store{
		"zeta.example":  {UsernameSelector: "#u", PasswordSelector: "#p"},
		"alpha.example": {UsernameSelector: "#u", PasswordSelector: "#p"},
	})

	entries, err := s.ListDomains(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alpha.example", entries[0].Domain)
	assert.Equal(t, "zeta.example", entries[1].Domain)
}
