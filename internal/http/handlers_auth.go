package http

import (
	"net/http"

	"allowance/internal/log"
)

type loginPage struct {
	Error    string
	Username string
	Email    string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.currentSession(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.currentSession(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	NewPage("login.html").Data(loginPage{}).Write(w, s.templates)
}

// handleLogin logs in or registers, then starts a fresh session. New users
// and users without an allowance go to the allowance setup first.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	form, err := parseLoginForm(w, r)
	if err != nil {
		ErrorResponse(http.StatusBadRequest, "Invalid form", w)
		return
	}

	res, err := s.auth.Login(ctx, form.Username, form.Email, form.Password)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			log.FromContext(ctx).ErrorContext(ctx, "Login failed",
				log.FieldUsername, form.Username, log.FieldOperation, log.OpLogin, log.FieldError, err)
		}
		NewPage("login.html").
			Status(status).
			Data(loginPage{Error: errorMessage(err), Username: form.Username, Email: form.Email}).
			Write(w, s.templates)
		return
	}

	if old, ok := s.currentSession(r); ok {
		s.sessions.Destroy(old.ID)
	}
	sess := s.sessions.Create(res.Record)
	s.setSessionCookie(w, sess.ID)

	dest := "/dashboard"
	if res.NeedsAllowance() {
		dest = "/allowance"
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.currentSession(r); ok {
		s.sessions.Destroy(sess.ID)
		log.FromContext(r.Context()).InfoContext(r.Context(), "User logged out", log.FieldUsername, sess.Username())
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
