package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfisherdev/selectorpass/internal/domain/port/driven"
)

var errElementGone = errors.New("element no longer in document")

// Compile-time interface satisfaction checks.
var (
	_ driven.Document = (*tabDocument)(nil)
	_ driven.Element  = (*tabElement)(nil)
)

// evalFunc evaluates expression in a tab and decodes the result into res.
type evalFunc func(ctx context.Context, tabID, expression string, res any) error

// tabDocument is the live document of one browser tab.
type tabDocument struct {
	tabID string
	eval  evalFunc
}

func (d *tabDocument) QuerySelector(ctx context.Context, selector string) (driven.Element, error) {
	var found bool
	if err := d.eval(ctx, d.tabID, querySelectorScript(selector), &found); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	if !found {
		return nil, nil
	}
	return &tabElement{doc: d, selector: selector}, nil
}

// tabElement addresses an element by the selector that found it. Each
// operation re-resolves the selector against the current document.
type tabElement struct {
	doc      *tabDocument
	selector string
}

func (e *tabElement) SetValue(ctx context.Context, value string) error {
	var ok bool
	if err := e.doc.eval(ctx, e.doc.tabID, setValueScript(e.selector, value), &ok); err != nil {
		return err
	}
	if !ok {
		return errElementGone
	}
	return nil
}

func (e *tabElement) DispatchEvent(ctx context.Context, eventType string, bubbles bool) error {
	var ok bool
	if err := e.doc.eval(ctx, e.doc.tabID, dispatchEventScript(e.selector, eventType, bubbles), &ok); err != nil {
		return err
	}
	if !ok {
		return errElementGone
	}
	return nil
}
