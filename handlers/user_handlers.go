package handlers

import (
	"net/http"

	apperrors "splitbase-backend/errors"
	"splitbase-backend/services"

	"github.com/go-chi/chi/v5"
)

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var input services.RegisterInput
	if err := decodeBody(r, &input); err != nil {
		handleError(w, err)
		return
	}

	user, tokens, err := h.userService.Register(r.Context(), &input)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusCreated, map[string]interface{}{
		"user":   user,
		"tokens": tokens,
	})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var input services.LoginInput
	if err := decodeBody(r, &input); err != nil {
		handleError(w, err)
		return
	}

	user, tokens, err := h.userService.Login(r.Context(), &input)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"user":   user,
		"tokens": tokens,
	})
}

func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var input struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeBody(r, &input); err != nil {
		handleError(w, err)
		return
	}
	if input.RefreshToken == "" {
		handleError(w, apperrors.MissingRequiredField("refresh_token"))
		return
	}

	tokens, err := h.userService.Refresh(r.Context(), input.RefreshToken)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, tokens)
}

func (h *Handlers) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, user)
}

func (h *Handlers) UpdateCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	var input struct {
		DisplayName string `json:"display_name"`
	}
	if err := decodeBody(r, &input); err != nil {
		handleError(w, err)
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, input.DisplayName)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, user)
}

func (h *Handlers) ExportCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	export, err := h.userService.Export(r.Context(), userID)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, export)
}

func (h *Handlers) RequestDeletion(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	if err := h.userService.RequestDeletion(r.Context(), userID); err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusAccepted, map[string]string{"status": "deletion_requested"})
}

func (h *Handlers) CancelDeletion(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	if err := h.userService.CancelDeletion(r.Context(), userID); err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]string{"status": "deletion_cancelled"})
}

func (h *Handlers) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"
	notifications, err := h.notificationService.List(r.Context(), userID, unreadOnly)
	if err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, notifications)
}

func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	notificationID := chi.URLParam(r, "notificationID")
	if err := h.notificationService.MarkRead(r.Context(), notificationID, userID); err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]string{"status": "read"})
}

func (h *Handlers) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userID, err := getUserID(r)
	if err != nil {
		handleError(w, err)
		return
	}

	if err := h.notificationService.MarkAllRead(r.Context(), userID); err != nil {
		handleError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]string{"status": "read"})
}
