package model

import (
	"encoding/json"
	"fmt"
)

// Action identifies the instruction carried by a Message.
type Action int

const (
	ActionUnknown Action = iota
	ActionFillCredentials
)

const actionFillCredentialsName = "fillCredentials"

// String returns the wire name of the action.
func (a Action) String() string {
	switch a {
	case ActionFillCredentials:
		return actionFillCredentialsName
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the action as its wire name.
func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes a wire name. Unrecognized names decode to
// ActionUnknown rather than failing, so the receiver can answer them.
func (a *Action) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("decode action: %w", err)
	}
	*a = ParseAction(name)
	return nil
}

// ParseAction maps a wire name to an Action.
func ParseAction(name string) Action {
	switch name {
	case actionFillCredentialsName:
		return ActionFillCredentials
	default:
		return ActionUnknown
	}
}

// Message is the instruction sent from the dispatcher to a page's filler.
type Message struct {
	Action           Action `json:"action"`
	UsernameSelector string `json:"usernameSelector"`
	PasswordSelector string `json:"passwordSelector"`
	Username         string `json:"username"`
	Password         string `json:"password"`
}

// Sender identifies the context a message was sent from.
type Sender struct {
	ID string
}

// Ack is the single response a filler returns for a message.
type Ack struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// FillOutcome reports what a fill request did when it returned no error.
type FillOutcome string

const (
	// FillSkipped means the request was not actionable and nothing happened.
	FillSkipped FillOutcome = "skipped"
	// FillCompleted means the page acknowledged the fill.
	FillCompleted FillOutcome = "completed"
)
