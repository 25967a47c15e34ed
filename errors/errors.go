package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type ErrorCode string

const (
	CodeUnauthorized     ErrorCode = "AUTH_001"
	CodeTokenExpired     ErrorCode = "AUTH_002"
	CodeTokenInvalid     ErrorCode = "AUTH_003"
	CodeForbidden        ErrorCode = "AUTH_004"
	CodeNotGroupMember   ErrorCode = "AUTH_005"
	CodeInsufficientRole ErrorCode = "AUTH_006"

	CodeInvalidRequest       ErrorCode = "VALIDATION_001"
	CodeMissingRequiredField ErrorCode = "VALIDATION_002"
	CodeInvalidFieldFormat   ErrorCode = "VALIDATION_003"
	CodeInvalidAmount        ErrorCode = "VALIDATION_004"
	CodeAmountMismatch       ErrorCode = "VALIDATION_005"
	CodeCurrencyMismatch     ErrorCode = "VALIDATION_006"
	CodeInvalidJoinCode      ErrorCode = "VALIDATION_007"

	CodeNotFound           ErrorCode = "NOT_FOUND_001"
	CodeUserNotFound       ErrorCode = "NOT_FOUND_002"
	CodeGroupNotFound      ErrorCode = "NOT_FOUND_003"
	CodeExpenseNotFound    ErrorCode = "NOT_FOUND_004"
	CodeSettlementNotFound ErrorCode = "NOT_FOUND_005"
	CodeRuleNotFound       ErrorCode = "NOT_FOUND_006"

	CodeConflict          ErrorCode = "CONFLICT_001"
	CodeDuplicateEntry    ErrorCode = "CONFLICT_002"
	CodeAlreadyMember     ErrorCode = "CONFLICT_003"
	CodeInvalidTransition ErrorCode = "CONFLICT_004"
	CodeCannotSelfAction  ErrorCode = "CONFLICT_005"
	CodeJoinCodeExhausted ErrorCode = "CONFLICT_006"

	CodeBusinessError      ErrorCode = "BUSINESS_001"
	CodeSoleOwner          ErrorCode = "BUSINESS_002"
	CodeInvalidSettlement  ErrorCode = "BUSINESS_003"
	CodeDeletionNotAllowed ErrorCode = "BUSINESS_004"

	CodeDatabaseError       ErrorCode = "DATABASE_001"
	CodeDatabaseTransaction ErrorCode = "DATABASE_002"
	CodeTransientError      ErrorCode = "DATABASE_003"

	CodeInternalError ErrorCode = "INTERNAL_001"
)

type ErrorType int

const (
	ErrorTypeUnauthorized ErrorType = iota
	ErrorTypeForbidden
	ErrorTypeBadRequest
	ErrorTypeNotFound
	ErrorTypeConflict
	ErrorTypeUnprocessable
	ErrorTypeRateLimited
	ErrorTypeInternal
	ErrorTypeServiceUnavailable
)

type AppError struct {
	Type    ErrorType `json:"-"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func TokenExpired() *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Code:    CodeTokenExpired,
		Message: "Your session has expired. Please log in again.",
	}
}

func TokenInvalid() *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Code:    CodeTokenInvalid,
		Message: "Invalid authentication token.",
	}
}

func InvalidCredentials() *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Code:    CodeUnauthorized,
		Message: "Invalid email or password.",
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeForbidden,
		Code:    CodeForbidden,
		Message: message,
	}
}

func NotGroupMember() *AppError {
	return &AppError{
		Type:    ErrorTypeForbidden,
		Code:    CodeNotGroupMember,
		Message: "You are not an active member of this group.",
	}
}

func InsufficientRole(required string) *AppError {
	return &AppError{
		Type:    ErrorTypeForbidden,
		Code:    CodeInsufficientRole,
		Message: fmt.Sprintf("This action requires the %s role.", required),
	}
}

func InvalidRequest(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeBadRequest,
		Code:    CodeInvalidRequest,
		Message: message,
	}
}

func MissingRequiredField(fieldName string) *AppError {
	return &AppError{
		Type:    ErrorTypeBadRequest,
		Code:    CodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required.", fieldName),
	}
}

func InvalidFieldFormat(fieldName, expectedFormat string) *AppError {
	return &AppError{
		Type:    ErrorTypeBadRequest,
		Code:    CodeInvalidFieldFormat,
		Message: fmt.Sprintf("Invalid format for %s.", fieldName),
		Details: fmt.Sprintf("Expected format: %s", expectedFormat),
	}
}

func InvalidAmount(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeBadRequest,
		Code:    CodeInvalidAmount,
		Message: message,
	}
}

func AmountMismatch(actual, expected, kind string) *AppError {
	return &AppError{
		Type:    ErrorTypeBadRequest,
		Code:    CodeAmountMismatch,
		Message: fmt.Sprintf("Sum of %s amounts (%s) does not equal the expense subtotal (%s).", kind, actual, expected),
	}
}

func CurrencyMismatch(got, want string) *AppError {
	return &AppError{
		Type:    ErrorTypeBadRequest,
		Code:    CodeCurrencyMismatch,
		Message: fmt.Sprintf("Currency %s does not match the group currency %s.", got, want),
	}
}

// InvalidJoinCode is returned for codes that never existed, once existed, or
// contain characters outside the alphabet. All three cases look the same to
// the caller.
func InvalidJoinCode() *AppError {
	return &AppError{
		Type:    ErrorTypeBadRequest,
		Code:    CodeInvalidJoinCode,
		Message: "Invalid join code.",
	}
}

func NotFound(resourceType string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found.", resourceType),
	}
}

func UserNotFound() *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    CodeUserNotFound,
		Message: "User not found.",
	}
}

func GroupNotFound() *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    CodeGroupNotFound,
		Message: "Group not found.",
	}
}

func ExpenseNotFound() *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    CodeExpenseNotFound,
		Message: "Expense not found.",
	}
}

func SettlementNotFound() *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    CodeSettlementNotFound,
		Message: "Settlement not found.",
	}
}

func RecurringRuleNotFound() *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    CodeRuleNotFound,
		Message: "Recurring rule not found.",
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Code:    CodeConflict,
		Message: message,
	}
}

func DuplicateEntry(resourceType string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Code:    CodeDuplicateEntry,
		Message: fmt.Sprintf("%s already exists.", resourceType),
	}
}

func AlreadyMember() *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Code:    CodeAlreadyMember,
		Message: "User is already a member of this group.",
	}
}

func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("Cannot move settlement from %s to %s.", from, to),
	}
}

func CannotSelfAction(action string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Code:    CodeCannotSelfAction,
		Message: fmt.Sprintf("You cannot %s yourself.", action),
	}
}

func JoinCodeExhausted() *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Code:    CodeJoinCodeExhausted,
		Message: "Could not generate a unique join code. Please try again.",
	}
}

func CannotSettleToSelf() *AppError {
	return &AppError{
		Type:    ErrorTypeBadRequest,
		Code:    CodeInvalidSettlement,
		Message: "Cannot settle a payment with yourself.",
	}
}

func SoleOwnerCannotLeave() *AppError {
	return &AppError{
		Type:    ErrorTypeUnprocessable,
		Code:    CodeSoleOwner,
		Message: "The sole owner cannot leave the group.",
		Details: "Transfer ownership to another member first.",
	}
}

func DatabaseError(operation string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Code:    CodeDatabaseError,
		Message: "A database error occurred. Please try again.",
		Details: operation,
		Err:     err,
	}
}

// TransientError marks a failure the caller may retry.
func TransientError(operation string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeServiceUnavailable,
		Code:    CodeTransientError,
		Message: "The service is temporarily unavailable. Please try again.",
		Details: operation,
		Err:     err,
	}
}

func InternalError(err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Code:    CodeInternalError,
		Message: "An unexpected error occurred. Please try again.",
		Err:     err,
	}
}

func Wrap(err error, appErr *AppError) *AppError {
	appErr.Err = err
	return appErr
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func GetHTTPStatus(errType ErrorType) int {
	switch errType {
	case ErrorTypeUnauthorized:
		return 401
	case ErrorTypeForbidden:
		return 403
	case ErrorTypeBadRequest:
		return 400
	case ErrorTypeNotFound:
		return 404
	case ErrorTypeConflict:
		return 409
	case ErrorTypeUnprocessable:
		return 422
	case ErrorTypeRateLimited:
		return 429
	case ErrorTypeServiceUnavailable:
		return 503
	default:
		return 500
	}
}

func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, pgx.ErrNoRows)
}

func IsDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
