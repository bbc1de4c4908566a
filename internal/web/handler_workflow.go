package web

import (
	"net/http"

	"github.com/vbonduro/restockr/internal/auth"
	"github.com/vbonduro/restockr/internal/domain"
)

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.Cart(auth.UserID(r.Context())))
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.service.RunForecast(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeServiceError(w, "forecast", err)
		return
	}
	s.writeJSON(w, http.StatusOK, outcome)
}

// handleApplyPurchases records purchases the user made themselves. Any method
// supplied by the client is ignored.
func (s *Server) handleApplyPurchases(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items []domain.PurchaseUpdate `json:"items"`
	}
	if !s.decodeJSON(w, r, &body) {
		return
	}
	for i := range body.Items {
		body.Items[i].Method = ""
	}
	outcome, err := s.service.ApplyUpdates(r.Context(), auth.UserID(r.Context()), body.Items)
	if err != nil {
		s.writeServiceError(w, "apply purchases", err)
		return
	}
	s.writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.service.Checkout(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.writeServiceError(w, "checkout", err)
		return
	}
	s.writeJSON(w, http.StatusOK, outcome)
}
