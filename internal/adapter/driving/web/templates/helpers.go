// Package templates renders the GUI's HTML as templ components.
package templates

import (
	"strconv"

	vm "github.com/ericfisherdev/selectorpass/internal/adapter/driving/web/viewmodel"
)

// hiddenField is a name/value pair posted alongside a button.
type hiddenField struct {
	Name  string
	Value string
}

func field(name, value string) hiddenField {
	return hiddenField{Name: name, Value: value}
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

func credentialCount(n int) string {
	if n == 1 {
		return "1 credential"
	}
	return itoa(n) + " credentials"
}

func toggleLabel(d vm.DomainItem) string {
	if d.Expanded {
		return "▾ " + d.Key
	}
	return "▸ " + d.Key
}

func onOff(b bool) string {
	if b {
		return "On"
	}
	return "Off"
}

// credentialPath builds /options/domains/{domain}/credentials[/rest...].
func credentialPath(domain string, rest ...string) string {
	return vm.DomainPath("/options/domains", domain, append([]string{"credentials"}, rest...)...)
}
