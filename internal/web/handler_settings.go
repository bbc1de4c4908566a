package web

import (
	"net/http"

	"github.com/vbonduro/restockr/internal/auth"
	"github.com/vbonduro/restockr/internal/service"
)

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.ListHistory(r.Context(), auth.UserID(r.Context()), queryLimit(r))
	if err != nil {
		s.writeServiceError(w, "list history", err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.ListAudit(r.Context(), auth.UserID(r.Context()), queryLimit(r))
	if err != nil {
		s.writeServiceError(w, "list audit", err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.service.GetConfig(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeServiceError(w, "get config", err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch service.ConfigPatch
	if !s.decodeJSON(w, r, &patch) {
		return
	}
	cfg, err := s.service.UpdateConfig(r.Context(), auth.UserID(r.Context()), patch)
	if err != nil {
		s.writeServiceError(w, "update config", err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}
