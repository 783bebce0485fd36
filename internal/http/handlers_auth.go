package http

import (
	"net/http"

	"tally/internal/auth"
	"tally/internal/core"
)

type credentialsInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string    `json:"token"`
	User  core.User `json:"user"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var in credentialsInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	token, u, err := s.auth.SignUp(r.Context(), sanitizeInput(in.Email), in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(tokenResponse{Token: token, User: u}).Write(w)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var in credentialsInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	token, u, err := s.auth.SignIn(r.Context(), sanitizeInput(in.Email), in.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(tokenResponse{Token: token, User: u}).Write(w)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	token, _ := auth.BearerToken(r)
	if err := s.auth.SignOut(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.auth.CurrentUser(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(u).Write(w)
}

type emailInput struct {
	Email string `json:"email"`
}

type passwordInput struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
}

func (s *Server) handleUpdateEmail(w http.ResponseWriter, r *http.Request) {
	var in emailInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.auth.UpdateEmail(r.Context(), sanitizeInput(in.Email))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(u).Write(w)
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var in passwordInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.auth.UpdatePassword(r.Context(), in.Current, in.New); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}
