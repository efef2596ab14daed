package http

import (
	"net/http"

	"allowance/internal/log"
	"allowance/internal/session"
)

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	ctx := r.Context()
	form, err := parseExpenseForm(w, r)
	if err != nil {
		ErrorResponse(http.StatusBadRequest, "Invalid form", w)
		return
	}

	e, err := s.expenses.AddExpense(ctx, sess, form.Date, form.Desc, form.Amount)
	if err != nil {
		s.renderDashboardError(w, r, sess, log.OpAddExpense, err, &form)
		return
	}
	log.FromContext(ctx).WithComponent(log.ComponentExpense).InfoContext(ctx, "Expense added",
		log.FieldOperation, log.OpAddExpense,
		log.FieldExpenseID, e.ID,
		log.FieldAmount, e.Amount.String())
	redirectToDashboard(w, r)
}

// handleBeginEdit puts the expense into the form; the next update replaces it.
func (s *Server) handleBeginEdit(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if _, err := s.expenses.BeginEdit(sess, r.PathValue("id")); err != nil {
		s.renderDashboardError(w, r, sess, log.OpBeginEdit, err, nil)
		return
	}
	http.Redirect(w, r, "/dashboard#expense-form", http.StatusSeeOther)
}

func (s *Server) handleCommitEdit(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	form, err := parseExpenseForm(w, r)
	if err != nil {
		ErrorResponse(http.StatusBadRequest, "Invalid form", w)
		return
	}
	if err := s.expenses.CommitEdit(r.Context(), sess, form.Date, form.Desc, form.Amount); err != nil {
		s.renderDashboardError(w, r, sess, log.OpCommitEdit, err, &form)
		return
	}
	redirectToDashboard(w, r)
}

func (s *Server) handleCancelEdit(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.expenses.CancelEdit(sess)
	redirectToDashboard(w, r)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	ctx := r.Context()
	id := r.PathValue("id")
	if err := s.expenses.DeleteExpense(ctx, sess, id); err != nil {
		s.renderDashboardError(w, r, sess, log.OpDeleteExpense, err, nil)
		return
	}
	log.FromContext(ctx).WithComponent(log.ComponentExpense).InfoContext(ctx, "Expense deleted", log.FieldOperation, log.OpDeleteExpense, log.FieldExpenseID, id)
	redirectToDashboard(w, r)
}
