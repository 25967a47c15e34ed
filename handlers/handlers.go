package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	apperrors "splitbase-backend/errors"
	"splitbase-backend/middleware"
	"splitbase-backend/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Envelope is the uniform response shape: {"success":true,"data":...} or
// {"success":false,"error":{...}}.
type Envelope struct {
	Success bool          `json:"success"`
	Data    interface{}   `json:"data,omitempty"`
	Error   *ErrorPayload `json:"error,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type Handlers struct {
	userService         services.UserService
	groupService        services.GroupService
	expenseService      services.ExpenseService
	settlementService   services.SettlementService
	balanceService      services.BalanceService
	recurringService    services.RecurringService
	notificationService services.NotificationService
}

func NewHandlers(
	userService services.UserService,
	groupService services.GroupService,
	expenseService services.ExpenseService,
	settlementService services.SettlementService,
	balanceService services.BalanceService,
	recurringService services.RecurringService,
	notificationService services.NotificationService,
) *Handlers {
	return &Handlers{
		userService:         userService,
		groupService:        groupService,
		expenseService:      expenseService,
		settlementService:   settlementService,
		balanceService:      balanceService,
		recurringService:    recurringService,
		notificationService: notificationService,
	}
}

// RegisterRoutes wires the authenticated /v1 surface. Auth endpoints are
// registered separately so they can sit outside the auth middleware.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/groups", func(r chi.Router) {
		r.Get("/", h.GetGroups)
		r.Post("/", h.CreateGroup)
		r.Post("/join", h.JoinGroup)
		r.Get("/{groupID}", h.GetGroup)
		r.Put("/{groupID}", h.UpdateGroup)
		r.Delete("/{groupID}", h.DeleteGroup)
		r.Put("/{groupID}/currency", h.UpdateGroupCurrency)
		r.Post("/{groupID}/join-code", h.RotateJoinCode)
		r.Post("/{groupID}/leave", h.LeaveGroup)
		r.Delete("/{groupID}/members/{memberID}", h.RemoveMember)
		r.Put("/{groupID}/members/{memberID}/role", h.UpdateMemberRole)
		r.Post("/{groupID}/transfer-ownership", h.TransferOwnership)
		r.Get("/{groupID}/balances", h.GetBalances)
		r.Get("/{groupID}/expenses", h.GetExpenses)
		r.Post("/{groupID}/expenses", h.CreateExpense)
		r.Get("/{groupID}/settlements", h.GetSettlements)
		r.Post("/{groupID}/settlements", h.CreateSettlement)
		r.Get("/{groupID}/recurring", h.GetRecurringRules)
		r.Post("/{groupID}/recurring", h.CreateRecurringRule)
	})

	r.Route("/expenses", func(r chi.Router) {
		r.Get("/{expenseID}", h.GetExpense)
		r.Put("/{expenseID}", h.UpdateExpense)
		r.Delete("/{expenseID}", h.DeleteExpense)
	})

	r.Route("/settlements", func(r chi.Router) {
		r.Get("/{settlementID}", h.GetSettlement)
		r.Post("/{settlementID}/confirm", h.ConfirmSettlement)
		r.Post("/{settlementID}/reject", h.RejectSettlement)
		r.Post("/{settlementID}/cancel", h.CancelSettlement)
	})

	r.Route("/recurring", func(r chi.Router) {
		r.Get("/{ruleID}", h.GetRecurringRule)
		r.Put("/{ruleID}", h.UpdateRecurringRule)
		r.Delete("/{ruleID}", h.DeactivateRecurringRule)
	})

	r.Route("/users/me", func(r chi.Router) {
		r.Get("/", h.GetCurrentUser)
		r.Put("/", h.UpdateCurrentUser)
		r.Get("/export", h.ExportCurrentUser)
		r.Post("/deletion", h.RequestDeletion)
		r.Delete("/deletion", h.CancelDeletion)
	})

	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.GetNotifications)
		r.Post("/{notificationID}/read", h.MarkNotificationRead)
		r.Post("/read-all", h.MarkAllNotificationsRead)
	})
}

// RegisterAuthRoutes wires the unauthenticated endpoints.
func (h *Handlers) RegisterAuthRoutes(r chi.Router) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/refresh", h.RefreshToken)
}

// RegisterAdminRoutes wires the operational endpoints behind the admin key.
func (h *Handlers) RegisterAdminRoutes(r chi.Router) {
	r.Post("/generate-recurring", h.GenerateRecurring)
}

func respondData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Envelope{Success: true, Data: data}); err != nil {
		zap.L().Error("Failed to encode JSON response", zap.Error(err))
	}
}

func handleError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	payload := &ErrorPayload{
		Code:    string(apperrors.CodeInternalError),
		Message: "An unexpected error occurred. Please try again later.",
	}
	status := http.StatusInternalServerError

	if appErr, ok := apperrors.AsAppError(err); ok {
		status = apperrors.GetHTTPStatus(appErr.Type)
		payload.Code = string(appErr.Code)
		payload.Message = appErr.Message
		payload.Details = appErr.Details

		if status >= 500 {
			zap.L().Error("App Error (Internal)",
				zap.String("code", string(appErr.Code)),
				zap.Error(appErr.Err))
		} else {
			zap.L().Debug("App Error (Client)",
				zap.String("code", string(appErr.Code)),
				zap.String("message", appErr.Message))
		}
	} else {
		zap.L().Error("Non-AppError returned (bug)",
			zap.Error(err),
			zap.String("error_type", fmt.Sprintf("%T", err)))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(Envelope{Success: false, Error: payload}); encErr != nil {
		zap.L().Error("Failed to encode error response", zap.Error(encErr))
	}
}

func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.InvalidRequest("Invalid request body.")
	}
	return nil
}

func getUserID(r *http.Request) (string, error) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		return "", apperrors.Unauthorized("User ID not found in authentication context")
	}
	return userID, nil
}
