// Package htmldoc implements the driven.Document port over a parsed HTML tree.
// It backs selector probing of fetched pages and offline fills.
package htmldoc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ericfisherdev/selectorpass/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.Document = (*Document)(nil)
	_ driven.Element  = (*Element)(nil)
)

// Event is a synthetic event raised on an element.
type Event struct {
	Selector string
	Type     string
	Bubbles  bool
}

// Document is an in-memory DOM. It is safe for concurrent use.
type Document struct {
	mu     sync.Mutex
	root   *html.Node
	events []Event
}

// Parse reads an HTML document from r.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// QuerySelector returns the first element matching selector, or nil when
// nothing matches. An invalid selector is an error.
func (d *Document) QuerySelector(ctx context.Context, selector string) (driven.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("compile selector %q: %w", selector, err)
	}

	d.mu.Lock()
	n := sel.MatchFirst(d.root)
	d.mu.Unlock()

	if n == nil {
		return nil, nil
	}
	return &Element{doc: d, node: n, selector: selector}, nil
}

// Events returns the events raised so far, oldest first.
func (d *Document) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.events...)
}

// Render serializes the current tree.
func (d *Document) Render() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

// Element is a node matched by QuerySelector.
type Element struct {
	doc      *Document
	node     *html.Node
	selector string
}

// SetValue writes value into the element. Textareas get their text content
// replaced; every other element gets its value attribute set.
func (e *Element) SetValue(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	if e.node.DataAtom == atom.Textarea {
		for c := e.node.FirstChild; c != nil; {
			next := c.NextSibling
			e.node.RemoveChild(c)
			c = next
		}
		e.node.AppendChild(&html.Node{Type: html.TextNode, Data: value})
		return nil
	}

	for i, attr := range e.node.Attr {
		if attr.Namespace == "" && attr.Key == "value" {
			e.node.Attr[i].Val = value
			return nil
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: "value", Val: value})
	return nil
}

// DispatchEvent records an event on the owning document.
func (e *Element) DispatchEvent(ctx context.Context, eventType string, bubbles bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.doc.events = append(e.doc.events, Event{Selector: e.selector, Type: eventType, Bubbles: bubbles})
	return nil
}

// Value returns the element's current value.
func (e *Element) Value() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	if e.node.DataAtom == atom.Textarea {
		var sb strings.Builder
		for c := e.node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
			}
		}
		return sb.String()
	}
	for _, attr := range e.node.Attr {
		if attr.Namespace == "" && attr.Key == "value" {
			return attr.Val
		}
	}
	return ""
}
