package handlers

import (
	"net/http"
	"strconv"
	"time"

	apperrors "splitbase-backend/errors"
	"splitbase-backend/repository"
	"splitbase-backend/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handlers) GetExpenses(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	filter, err := parseExpenseFilter(r)
	if err != nil {
		handleError(w, err)
		return
	}

	expenses, err := h.expenseService.ListByGroup(r.Context(), chi.URLParam(r, "groupID"), userID, filter)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, expenses)
}

func (h *Handlers) CreateExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	var input services.ExpenseInput
	if err := decodeBody(r, &input); err != nil {
		handleError(w, err)
		return
	}

	expense, err := h.expenseService.Create(r.Context(), chi.URLParam(r, "groupID"), userID, &input)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusCreated, expense)
}

func (h *Handlers) GetExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	expense, err := h.expenseService.GetByID(r.Context(), chi.URLParam(r, "expenseID"), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, expense)
}

func (h *Handlers) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	var input services.ExpenseInput
	if err := decodeBody(r, &input); err != nil {
		handleError(w, err)
		return
	}

	expense, err := h.expenseService.Update(r.Context(), chi.URLParam(r, "expenseID"), userID, &input)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, expense)
}

func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	if err := h.expenseService.Delete(r.Context(), chi.URLParam(r, "expenseID"), userID); err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func parseExpenseFilter(r *http.Request) (repository.ExpenseFilter, error) {
	var filter repository.ExpenseFilter
	q := r.URL.Query()

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, apperrors.InvalidFieldFormat("from", "RFC 3339 timestamp")
		}
		filter.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, apperrors.InvalidFieldFormat("to", "RFC 3339 timestamp")
		}
		filter.To = &t
	}
	if v := q.Get("category"); v != "" {
		filter.Category = &v
	}
	if v := q.Get("payer"); v != "" {
		filter.PayerMemberID = &v
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return filter, apperrors.InvalidFieldFormat("limit", "positive integer")
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, apperrors.InvalidFieldFormat("offset", "non-negative integer")
		}
		filter.Offset = n
	}
	return filter, nil
}
