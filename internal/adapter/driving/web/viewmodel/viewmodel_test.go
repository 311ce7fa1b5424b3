package viewmodel

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEditState(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  EditState
	}{
		{name: "empty", query: "", want: EditState{}},
		{name: "prefill trimmed", query: "domain=+bank.example+", want: EditState{Prefill: "bank.example"}},
		{name: "edit domain", query: "edit=bank.example", want: EditState{EditDomain: "bank.example"}},
		{
			name:  "edit credential",
			query: "edit_cred=bank.example&index=2",
			want:  EditState{EditCredential: &CredentialRef{Domain: "bank.example", Index: 2}},
		},
		{name: "bad index ignored", query: "edit_cred=bank.example&index=two", want: EditState{}},
		{name: "negative index ignored", query: "delete_cred=bank.example&index=-1", want: EditState{}},
		{
			name:  "confirm deletions",
			query: "delete=bank.example&delete_cred=mail.example&index=0",
			want: EditState{
				DeleteDomain:     "bank.example",
				DeleteCredential: &CredentialRef{Domain: "mail.example", Index: 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, ParseEditState(q))
		})
	}
}

func TestCredentialRefMatches(t *testing.T) {
	var none *CredentialRef
	assert.False(t, none.Matches("bank.example", 0))

	ref := &CredentialRef{Domain: "bank.example", Index: 1}
	assert.True(t, ref.Matches("bank.example", 1))
	assert.False(t, ref.Matches("bank.example", 0))
	assert.False(t, ref.Matches("Bank.example", 1))
}

func TestOptionsURL(t *testing.T) {
	assert.Equal(t, "/options", OptionsURL())
	assert.Equal(t, "/options?edit=bank.example", OptionsURL("edit", "bank.example"))
	assert.Equal(t, "/options?edit_cred=a.example&index=3", OptionsURL("edit_cred", "a.example", "index", "3"))
}

func TestDomainPath(t *testing.T) {
	assert.Equal(t, "/options/domains/bank.example/credentials", DomainPath("/options/domains", "bank.example", "credentials"))
	assert.Equal(t, "/options/domains/a%2Fb", DomainPath("/options/domains/", "a/b"))
}

func TestDomainFormComplete(t *testing.T) {
	full := DomainForm{Domain: "bank.example", UsernameSelector: "#u", PasswordSelector: "#p"}
	assert.True(t, full.Complete())

	missing := full
	missing.PasswordSelector = "  "
	assert.False(t, missing.Complete())
	assert.False(t, DomainForm{}.Complete())
}
