package http

import (
	"fmt"
	"net/http"

	"picocompta/internal/services"
)

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	rows, err := s.svc.Clients.ListWithStats(r.Context(), s.today())
	if err != nil {
		s.fail(w, r, "list_clients", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, "get_client", err)
		return
	}
	c, err := s.svc.Clients.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, "get_client", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var in services.ClientInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, "create_client", err)
		return
	}
	c, err := s.svc.Clients.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, "create_client", err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", fmt.Sprintf("/api/clients/%d", c.ID)).
		JSON(c).
		Write(w)
}

func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.fail(w, r, "update_client", err)
		return
	}
	var in services.ClientInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, "update_client", err)
		return
	}
	c, err := s.svc.Clients.Update(r.Context(), id, in)
	if err != nil {
		s.fail(w, r, "update_client", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
