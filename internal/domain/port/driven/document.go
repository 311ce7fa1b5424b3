package driven

import "context"

// Document is the view of a page the filler needs.
type Document interface {
	// QuerySelector returns the first element matching selector, or
	// (nil, nil) when nothing matches. A malformed selector is an error.
	QuerySelector(ctx context.Context, selector string) (Element, error)
}

// Element is a form field located in a Document.
type Element interface {
	SetValue(ctx context.Context, value string) error

	// DispatchEvent raises a synthetic event of the given type on the element.
	DispatchEvent(ctx context.Context, eventType string, bubbles bool) error
}
