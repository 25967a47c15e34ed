package handlers

import (
	"context"
	"net/http"

	apperrors "splitbase-backend/errors"
	"splitbase-backend/models"
	"splitbase-backend/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handlers) GetSettlements(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	var status *models.SettlementStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s := models.SettlementStatus(v)
		switch s {
		case models.SettlementPending, models.SettlementConfirmed, models.SettlementRejected, models.SettlementCancelled:
			status = &s
		default:
			handleError(w, apperrors.InvalidFieldFormat("status", "pending, confirmed, rejected or cancelled"))
			return
		}
	}

	settlements, err := h.settlementService.ListByGroup(r.Context(), chi.URLParam(r, "groupID"), userID, status)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, settlements)
}

func (h *Handlers) CreateSettlement(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	var input services.SettlementInput
	if err := decodeBody(r, &input); err != nil {
		handleError(w, err)
		return
	}

	settlement, err := h.settlementService.Create(r.Context(), chi.URLParam(r, "groupID"), userID, &input)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusCreated, settlement)
}

func (h *Handlers) GetSettlement(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	settlement, err := h.settlementService.GetByID(r.Context(), chi.URLParam(r, "settlementID"), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, settlement)
}

func (h *Handlers) ConfirmSettlement(w http.ResponseWriter, r *http.Request) {
	h.resolveSettlement(w, r, h.settlementService.Confirm)
}

func (h *Handlers) RejectSettlement(w http.ResponseWriter, r *http.Request) {
	h.resolveSettlement(w, r, h.settlementService.Reject)
}

func (h *Handlers) CancelSettlement(w http.ResponseWriter, r *http.Request) {
	h.resolveSettlement(w, r, h.settlementService.Cancel)
}

func (h *Handlers) resolveSettlement(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, settlementID, userID string) (*models.Settlement, error)) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	settlement, err := fn(r.Context(), chi.URLParam(r, "settlementID"), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, settlement)
}
