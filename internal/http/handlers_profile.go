package http

import (
	"net/http"

	"picocompta/internal/services"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	pi, err := s.svc.Profile.Get(r.Context())
	if err != nil {
		s.fail(w, r, "get_profile", err)
		return
	}
	writeJSON(w, http.StatusOK, pi)
}

func (s *Server) handleRegisterProfile(w http.ResponseWriter, r *http.Request) {
	var in services.ProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, "register_profile", err)
		return
	}
	pi, err := s.svc.Profile.Register(r.Context(), in)
	if err != nil {
		s.fail(w, r, "register_profile", err)
		return
	}
	writeJSON(w, http.StatusCreated, pi)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in services.ProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.fail(w, r, "update_profile", err)
		return
	}
	pi, err := s.svc.Profile.Update(r.Context(), in)
	if err != nil {
		s.fail(w, r, "update_profile", err)
		return
	}
	writeJSON(w, http.StatusOK, pi)
}
