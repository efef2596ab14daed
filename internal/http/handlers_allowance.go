package http

import (
	"errors"
	"net/http"

	"allowance/internal/core"
	"allowance/internal/log"
	"allowance/internal/session"
)

type allowancePage struct {
	Error     string
	Username  string
	Allowance string
}

// handleAllowancePage shows the first-time allowance setup.
func (s *Server) handleAllowancePage(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	rec, _ := sess.Snapshot()
	if rec.IsConfigured() {
		redirectToDashboard(w, r)
		return
	}
	NewPage("allowance.html").Data(allowancePage{Username: rec.Username}).Write(w, s.templates)
}

// handleSetAllowance performs first-time setup only. A configured account
// goes back to the dashboard with its expenses untouched.
func (s *Server) handleSetAllowance(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	ctx := r.Context()
	if rec, _ := sess.Snapshot(); rec.IsConfigured() {
		redirectToDashboard(w, r)
		return
	}
	raw, err := parseField(w, r, "allowance")
	if err != nil {
		ErrorResponse(http.StatusBadRequest, "Invalid form", w)
		return
	}

	if err := s.allowance.SetAllowance(ctx, sess, raw); err != nil {
		if errors.Is(err, core.ErrAllowanceConfigured) {
			redirectToDashboard(w, r)
			return
		}
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			log.FromContext(ctx).ErrorContext(ctx, "Operation failed", log.FieldOperation, log.OpSetAllowance, log.FieldError, err)
		}
		NewPage("allowance.html").
			Status(status).
			Data(allowancePage{Error: errorMessage(err), Username: sess.Username(), Allowance: raw}).
			Write(w, s.templates)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Allowance set", log.FieldOperation, log.OpSetAllowance, log.FieldAmount, raw)
	redirectToDashboard(w, r)
}

func (s *Server) handleEditAllowance(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	raw, err := parseField(w, r, "allowance")
	if err != nil {
		ErrorResponse(http.StatusBadRequest, "Invalid form", w)
		return
	}
	if err := s.allowance.EditAllowance(r.Context(), sess, raw); err != nil {
		s.renderDashboardError(w, r, sess, log.OpEditAllowance, err, nil)
		return
	}
	redirectToDashboard(w, r)
}

func (s *Server) handleSetCurrency(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	symbol, err := parseField(w, r, "currency")
	if err != nil {
		ErrorResponse(http.StatusBadRequest, "Invalid form", w)
		return
	}
	if err := s.allowance.SetCurrency(r.Context(), sess, symbol); err != nil {
		s.renderDashboardError(w, r, sess, log.OpSetCurrency, err, nil)
		return
	}
	redirectToDashboard(w, r)
}

// handleResetMonth archives the current month under today's month key.
func (s *Server) handleResetMonth(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if _, err := s.allowance.ResetMonth(r.Context(), sess, s.now()); err != nil {
		s.renderDashboardError(w, r, sess, log.OpResetMonth, err, nil)
		return
	}
	redirectToDashboard(w, r)
}
