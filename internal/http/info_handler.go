package http

import (
	"net/http"
)

// AppInfo describes the running deployment.
type AppInfo struct {
	AppName    string
	AdminEmail string
	Version    string
}

// InfoHandler serves the health and info endpoints.
type InfoHandler struct {
	info      AppInfo
	responder responder
}

func NewInfoHandler(info AppInfo) *InfoHandler {
	return &InfoHandler{info: info, responder: newResponder(nil)}
}

// Health handles GET /.
func (h *InfoHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.responder.writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// Info handles GET /info.
func (h *InfoHandler) Info(w http.ResponseWriter, r *http.Request) {
	h.responder.writeJSON(r.Context(), w, http.StatusOK, infoResponse{
		AppName:    h.info.AppName,
		AdminEmail: h.info.AdminEmail,
		Version:    h.info.Version,
	})
}

type infoResponse struct {
	AppName    string `json:"app_name"`
	AdminEmail string `json:"admin_email"`
	Version    string `json:"version"`
}
