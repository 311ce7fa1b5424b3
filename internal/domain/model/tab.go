package model

// Tab is a browser page the dispatcher can target.
type Tab struct {
	ID    string
	URL   string
	Title string
}
