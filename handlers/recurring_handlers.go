package handlers

import (
	"net/http"
	"time"

	"splitbase-backend/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handlers) GetRecurringRules(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	rules, err := h.recurringService.ListByGroup(r.Context(), chi.URLParam(r, "groupID"), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, rules)
}

func (h *Handlers) CreateRecurringRule(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	var input services.RecurringRuleInput
	if err := decodeBody(r, &input); err != nil {
		handleError(w, err)
		return
	}

	rule, err := h.recurringService.Create(r.Context(), chi.URLParam(r, "groupID"), userID, &input)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusCreated, rule)
}

func (h *Handlers) GetRecurringRule(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	rule, err := h.recurringService.GetByID(r.Context(), chi.URLParam(r, "ruleID"), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, rule)
}

func (h *Handlers) UpdateRecurringRule(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	var input services.RecurringRuleInput
	if err := decodeBody(r, &input); err != nil {
		handleError(w, err)
		return
	}

	rule, err := h.recurringService.Update(r.Context(), chi.URLParam(r, "ruleID"), userID, &input)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, rule)
}

func (h *Handlers) DeactivateRecurringRule(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	if err := h.recurringService.Deactivate(r.Context(), chi.URLParam(r, "ruleID"), userID); err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// GenerateRecurring forces a sweep outside the scheduled interval. Guarded by
// the admin key middleware.
func (h *Handlers) GenerateRecurring(w http.ResponseWriter, r *http.Request) {
	outcomes, err := h.recurringService.GenerateDue(r.Context(), time.Now())
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, outcomes)
}
