package api

import (
	"net/http"

	"github.com/seenimoa/kstock/internal/config"
)

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
type ConfigResponse struct {
	Config   *config.Config         `json:"config"`
	Settings []config.SettingStatus `json:"settings"`
}

// handleGetConfig returns the running configuration and where each value
// came from. The API is read-only; configuration changes go through the
// config file or KSTOCK_ environment variables.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ConfigResponse{
			Config:   s.cfg,
			Settings: config.Settings(s.cfg),
		},
	})
}
