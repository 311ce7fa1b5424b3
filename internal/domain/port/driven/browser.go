package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/selectorpass/internal/domain/model"
)

// ErrFillerPresent is returned by Injector.EnsureFiller when the target page
// already has a filler installed.
var ErrFillerPresent = errors.New("filler already present")

// TabResolver locates browser pages.
type TabResolver interface {
	// ActiveTab returns the page the user is working in, or (nil, nil) if
	// there is none.
	ActiveTab(ctx context.Context) (*model.Tab, error)
	ListTabs(ctx context.Context) ([]model.Tab, error)
	ActivateTab(ctx context.Context, tabID string) error
}

// Injector installs the page filler into a tab. Installing into a tab that
// already has one fails with ErrFillerPresent.
type Injector interface {
	EnsureFiller(ctx context.Context, tabID string) error
}

// Messenger delivers a message to the filler in a tab and waits for its ack.
// A non-nil error means the message was not delivered or no ack arrived.
type Messenger interface {
	Send(ctx context.Context, tabID string, msg model.Message, sender model.Sender) (model.Ack, error)
}

// MessageHandler is the receiving end installed in a page.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg model.Message, sender model.Sender) model.Ack
}
