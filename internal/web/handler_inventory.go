package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vbonduro/restockr/internal/auth"
	"github.com/vbonduro/restockr/internal/service"
)

func (s *Server) handleListInventory(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListInventory(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeServiceError(w, "list inventory", err)
		return
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var in service.ItemInput
	if !s.decodeJSON(w, r, &in) {
		return
	}
	item, err := s.service.CreateItem(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		s.writeServiceError(w, "create item", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var in service.ItemInput
	if !s.decodeJSON(w, r, &in) {
		return
	}
	item, err := s.service.UpdateItem(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeServiceError(w, "update item", err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteItem(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, "delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecordUsage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount float64 `json:"amount"`
	}
	if !s.decodeJSON(w, r, &body) {
		return
	}
	item, err := s.service.RecordUsage(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), body.Amount)
	if err != nil {
		s.writeServiceError(w, "record usage", err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}
