package browser

import (
	"encoding/json"
	"fmt"
)

// Page scripts take their arguments as JSON literals so selectors and
// credential values are never spliced into code.

func querySelectorScript(selector string) string {
	return fmt.Sprintf(`(function(sel) {
	return document.querySelector(sel) !== null;
})(%s)`, jsLiteral(selector))
}

func setValueScript(selector, value string) string {
	return fmt.Sprintf(`(function(sel, val) {
	const el = document.querySelector(sel);
	if (el === null) {
		return false;
	}
	el.value = val;
	return true;
})(%s, %s)`, jsLiteral(selector), jsLiteral(value))
}

func dispatchEventScript(selector, eventType string, bubbles bool) string {
	return fmt.Sprintf(`(function(sel, type, bubbles) {
	const el = document.querySelector(sel);
	if (el === null) {
		return false;
	}
	el.dispatchEvent(new Event(type, { bubbles: bubbles }));
	return true;
})(%s, %s, %t)`, jsLiteral(selector), jsLiteral(eventType), bubbles)
}

const pingScript = `document.readyState !== undefined`

func jsLiteral(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		// Marshalling a string cannot fail.
		panic(err)
	}
	return string(b)
}
