package common

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"tenantcrm/internal/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	PrincipalKey contextKey = "principal"
	RequestIDKey contextKey = "request_id"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string, details map[string]string) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

// SendError writes a standardized error body with the given status.
func SendError(c echo.Context, status int, code, message string, details map[string]string) error {
	return c.JSON(status, CreateErrorResponse(code, message, details))
}

// SendValidationError sends a validation error response
func SendValidationError(c echo.Context, field, message string) error {
	details := map[string]string{
		field: message,
	}
	return SendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", details)
}

func SendNotFoundError(c echo.Context, resource string) error {
	return SendError(c, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource), nil)
}

func SendUnauthorizedError(c echo.Context) error {
	return SendError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized access", nil)
}

func SendServerError(c echo.Context, message string) error {
	return SendError(c, http.StatusInternalServerError, "SERVER_ERROR", message, nil)
}

// ValidateUUID parses a path or query id, naming the field on failure.
func ValidateUUID(idStr string, fieldName string) (uuid.UUID, error) {
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		return uuid.Nil, fmt.Errorf("%s is required", fieldName)
	}
	if len(idStr) != 36 {
		return uuid.Nil, fmt.Errorf("%s must be exactly 36 characters (including hyphens)", fieldName)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s contains invalid characters: %v", fieldName, err)
	}
	return id, nil
}

// ValidatePaginationParams clamps limit to [1,100] with a default of 10.
func ValidatePaginationParams(limit, offset int) (int, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		return 0, 0, fmt.Errorf("offset cannot be negative")
	}
	return limit, offset, nil
}

// Pagination reads limit and offset query parameters.
func Pagination(c echo.Context) (int, int, error) {
	limit, offset := 0, 0
	var err error
	if v := c.QueryParam("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("limit must be an integer")
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil {
			return 0, 0, fmt.Errorf("offset must be an integer")
		}
	}
	return ValidatePaginationParams(limit, offset)
}

func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// GetPrincipalFromContext returns the caller identified by the auth middleware.
func GetPrincipalFromContext(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(models.Principal)
	return p, ok
}

func GetTenantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	p, ok := GetPrincipalFromContext(ctx)
	if !ok || p.TenantID == uuid.Nil {
		return uuid.Nil, false
	}
	return p.TenantID, true
}
