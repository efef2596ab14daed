package http

import (
	"net/http"

	"allowance/internal/log"
	"allowance/internal/session"
	"allowance/internal/view"
)

type dashboardPage struct {
	view.Dashboard
	Error string
}

// handleDashboard renders the month so far. ?month= selects an archived
// month to show in detail.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	rec, pending := sess.Snapshot()
	if !rec.IsConfigured() {
		http.Redirect(w, r, "/allowance", http.StatusSeeOther)
		return
	}
	month := sanitizeInput(r.URL.Query().Get("month"))
	d := view.BuildDashboard(rec, pending, month)
	NewPage("dashboard.html").Data(dashboardPage{Dashboard: d}).Write(w, s.templates)
}

// renderDashboardError re-renders the dashboard with a banner for err. When
// input is set, the expense form keeps the values the user typed.
func (s *Server) renderDashboardError(w http.ResponseWriter, r *http.Request, sess *session.Session, op string, err error, input *expenseForm) {
	ctx := r.Context()
	status := statusFor(err)
	logger := log.FromContext(ctx)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(ctx, "Operation failed", log.FieldOperation, op, log.FieldError, err)
	} else {
		logger.InfoContext(ctx, "Input rejected", log.FieldOperation, op, log.FieldError, err)
	}

	rec, pending := sess.Snapshot()
	d := view.BuildDashboard(rec, pending, "")
	if input != nil {
		d.Form.Date = input.Date
		d.Form.Desc = input.Desc
		d.Form.Amount = input.Amount
	}
	NewPage("dashboard.html").
		Status(status).
		Data(dashboardPage{Dashboard: d, Error: errorMessage(err)}).
		Write(w, s.templates)
}

func redirectToDashboard(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}
