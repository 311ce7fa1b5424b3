package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/selectorpass/internal/domain/model"
	"github.com/ericfisherdev/selectorpass/internal/domain/port/driven"
)

// Ack error texts returned to the dispatcher.
const (
	ackInvalidSender     = "Invalid sender"
	ackUnknownAction     = "Unknown action"
	ackInvalidParameters = "Invalid parameters"
	ackNoFieldsFound     = "No fields found"
	ackFillFailed        = "Failed to fill credentials"
)

// Synthetic events raised after a value is written, in this order.
var fillEvents = []string{"input", "change"}

// Compile-time interface satisfaction check.
var _ driven.MessageHandler = (*PageFiller)(nil)

// PageFiller is the message handler installed in a page. It accepts fill
// instructions only from its own runtime and writes the credential into the
// page through doc.
type PageFiller struct {
	runtimeID string
	doc       driven.Document
	logger    *slog.Logger
}

// NewPageFiller creates a PageFiller bound to one page's document.
func NewPageFiller(runtimeID string, doc driven.Document, logger *slog.Logger) *PageFiller {
	return &PageFiller{
		runtimeID: runtimeID,
		doc:       doc,
		logger:    logger,
	}
}

// HandleMessage processes msg and returns exactly one ack. It never panics
// and never returns an error; every failure becomes Success=false.
func (f *PageFiller) HandleMessage(ctx context.Context, msg model.Message, sender model.Sender) (ack model.Ack) {
	defer func() {
		if v := recover(); v != nil {
			f.logger.Error("page filler panic recovered", "panic", v)
			ack = model.Ack{Success: false, Error: ackFillFailed}
		}
	}()

	if sender.ID == "" || sender.ID != f.runtimeID {
		f.logger.Warn("rejected message", "error", model.ErrSenderValidation, "sender", sender.ID)
		return model.Ack{Success: false, Error: ackInvalidSender}
	}

	switch msg.Action {
	case model.ActionFillCredentials:
		return f.fillCredentials(ctx, msg)
	case model.ActionUnknown:
		f.logger.Warn("unknown action", "action", msg.Action.String())
		return model.Ack{Success: false, Error: ackUnknownAction}
	default:
		return model.Ack{Success: false, Error: ackUnknownAction}
	}
}

func (f *PageFiller) fillCredentials(ctx context.Context, msg model.Message) model.Ack {
	if msg.UsernameSelector == "" || msg.PasswordSelector == "" || msg.Username == "" || msg.Password == "" {
		f.logger.Warn("fill message missing parameters")
		return model.Ack{Success: false, Error: ackInvalidParameters}
	}

	userField, passField, err := locateFields(ctx, f.doc, msg.UsernameSelector, msg.PasswordSelector)
	if err != nil {
		f.logger.Error("failed to locate fields", "error", err)
		return model.Ack{Success: false, Error: ackFillFailed}
	}

	filled := 0
	for _, target := range []struct {
		el       driven.Element
		value    string
		selector string
	}{
		{userField, msg.Username, msg.UsernameSelector},
		{passField, msg.Password, msg.PasswordSelector},
	} {
		if target.el == nil {
			f.logger.Warn("field not found", "selector", target.selector)
			continue
		}
		if err := fillElement(ctx, target.el, target.value); err != nil {
			f.logger.Error("failed to fill field", "selector", target.selector, "error", err)
			return model.Ack{Success: false, Error: ackFillFailed}
		}
		filled++
	}

	if filled == 0 {
		f.logger.Warn("no fields found to fill")
		return model.Ack{Success: false, Error: ackNoFieldsFound}
	}

	f.logger.Info("filled fields", "count", filled)
	return model.Ack{Success: true}
}

// locateFields queries both selectors independently. A selector that matches
// nothing yields a nil element; only query failures are errors.
func locateFields(ctx context.Context, doc driven.Document, usernameSelector, passwordSelector string) (driven.Element, driven.Element, error) {
	if doc == nil {
		return nil, nil, errors.New("no document")
	}
	userField, err := doc.QuerySelector(ctx, usernameSelector)
	if err != nil {
		return nil, nil, fmt.Errorf("query username field: %w", err)
	}
	passField, err := doc.QuerySelector(ctx, passwordSelector)
	if err != nil {
		return nil, nil, fmt.Errorf("query password field: %w", err)
	}
	return userField, passField, nil
}

// fillElement writes value and raises the bubbling input and change events
// page frameworks listen for.
func fillElement(ctx context.Context, el driven.Element, value string) error {
	if err := el.SetValue(ctx, value); err != nil {
		return fmt.Errorf("set value: %w", err)
	}
	for _, event := range fillEvents {
		if err := el.DispatchEvent(ctx, event, true); err != nil {
			return fmt.Errorf("dispatch %s: %w", event, err)
		}
	}
	return nil
}
