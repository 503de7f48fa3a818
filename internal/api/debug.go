package api

import (
	"net/http"
	"time"

	"fleetplan/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build":    buildinfo.Info(),
		"time":     time.Now().UTC().Format(time.RFC3339),
		"sessions": s.Sessions.Len(),
		"config":   s.Cfg.Public(),
	}
	writeJSON(w, http.StatusOK, info)
}
