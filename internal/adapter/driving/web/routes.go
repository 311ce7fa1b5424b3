package web

import (
	"io/fs"
	"net/http"
)

// RegisterRoutes registers all web GUI routes on the provided mux.
// Static assets are served from the embedded filesystem at /static/*.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	staticFS, _ := fs.Sub(StaticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	mux.HandleFunc("GET /{$}", h.Popup)
	mux.HandleFunc("POST /popup/fill", h.PopupFill)
	mux.HandleFunc("GET /help", h.Help)

	mux.HandleFunc("GET /options", h.Options)
	mux.HandleFunc("POST /options/domains", h.CreateDomain)
	mux.HandleFunc("POST /options/domains/{domain}/update", h.UpdateDomain)
	mux.HandleFunc("POST /options/domains/{domain}/delete", h.DeleteDomain)
	mux.HandleFunc("POST /options/domains/{domain}/credentials", h.AddCredential)
	mux.HandleFunc("POST /options/domains/{domain}/credentials/reorder", h.ReorderCredential)
	mux.HandleFunc("POST /options/domains/{domain}/credentials/{index}/update", h.EditCredential)
	mux.HandleFunc("POST /options/domains/{domain}/credentials/{index}/delete", h.DeleteCredential)

	mux.HandleFunc("POST /options/view/add-domain", h.ToggleAddDomain)
	mux.HandleFunc("POST /options/view/domains/{domain}", h.ToggleDomain)
}
