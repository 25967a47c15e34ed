package handlers

import (
	"net/http"

	apperrors "splitbase-backend/errors"
	"splitbase-backend/models"
	"splitbase-backend/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handlers) GetGroups(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	groups, err := h.groupService.GetByUserID(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, groups)
}

func (h *Handlers) CreateGroup(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	var input services.GroupInput
	if err := decodeBody(r, &input); err != nil {
		handleError(w, err)
		return
	}

	group, err := h.groupService.Create(r.Context(), userID, &input)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusCreated, group)
}

func (h *Handlers) GetGroup(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	group, err := h.groupService.GetByID(r.Context(), chi.URLParam(r, "groupID"), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, group)
}

func (h *Handlers) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	var input services.GroupInput
	if err := decodeBody(r, &input); err != nil {
		handleError(w, err)
		return
	}

	group, err := h.groupService.Update(r.Context(), chi.URLParam(r, "groupID"), userID, &input)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, group)
}

func (h *Handlers) UpdateGroupCurrency(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	var input struct {
		DefaultCurrency string `json:"default_currency"`
	}
	if err := decodeBody(r, &input); err != nil {
		handleError(w, err)
		return
	}

	group, err := h.groupService.UpdateDefaultCurrency(r.Context(), chi.URLParam(r, "groupID"), userID, input.DefaultCurrency)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, group)
}

func (h *Handlers) RotateJoinCode(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	group, err := h.groupService.RotateJoinCode(r.Context(), chi.URLParam(r, "groupID"), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, group)
}

func (h *Handlers) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	if err := h.groupService.Delete(r.Context(), chi.URLParam(r, "groupID"), userID); err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handlers) JoinGroup(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	var input struct {
		JoinCode string `json:"join_code"`
	}
	if err := decodeBody(r, &input); err != nil {
		handleError(w, err)
		return
	}
	if input.JoinCode == "" {
		handleError(w, apperrors.MissingRequiredField("join_code"))
		return
	}

	group, err := h.groupService.JoinByCode(r.Context(), userID, input.JoinCode)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, group)
}

func (h *Handlers) LeaveGroup(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	if err := h.groupService.Leave(r.Context(), chi.URLParam(r, "groupID"), userID); err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]string{"status": "left"})
}

func (h *Handlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	err = h.groupService.RemoveMember(r.Context(),
		chi.URLParam(r, "groupID"), userID, chi.URLParam(r, "memberID"))
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handlers) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	var input struct {
		Role models.MemberRole `json:"role"`
	}
	if err := decodeBody(r, &input); err != nil {
		handleError(w, err)
		return
	}

	err = h.groupService.UpdateMemberRole(r.Context(),
		chi.URLParam(r, "groupID"), userID, chi.URLParam(r, "memberID"), input.Role)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handlers) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	var input struct {
		MemberID string `json:"member_id"`
	}
	if err := decodeBody(r, &input); err != nil {
		handleError(w, err)
		return
	}
	if input.MemberID == "" {
		handleError(w, apperrors.MissingRequiredField("member_id"))
		return
	}

	err = h.groupService.TransferOwnership(r.Context(), chi.URLParam(r, "groupID"), userID, input.MemberID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]string{"status": "transferred"})
}

func (h *Handlers) GetBalances(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	skipCache := r.URL.Query().Get("skip_cache") == "true"
	balances, err := h.balanceService.GetGroupBalances(r.Context(), chi.URLParam(r, "groupID"), userID, skipCache)
	if err != nil {
		handleError(w, err)
		return
	}

	balances.FormatAmounts()
	respondData(w, http.StatusOK, balances)
}
