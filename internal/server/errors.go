package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/tapcoin/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/tapcoin/internal/ledger/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// validationRule turns a domain sentinel into a 400 with a field-level entry.
type validationRule struct {
	err     error
	field   string
	code    string
	message string
}

var validationRules = []validationRule{
	{ErrInvalidRequest, "request", "invalid_request", "invalid request"},
	{invoicedomain.ErrInvalidPackage, "package_id", "invalid_package", "unknown package"},
	{invoicedomain.ErrInvalidUser, "user_id", "invalid_user", "user_id must be a positive integer"},
	{ledgerdomain.ErrInvalidUser, "user_id", "invalid_user", "user_id must be a positive integer"},
	{invoicedomain.ErrInvalidInvoiceID, "invoice_id", "invalid_invoice_id", "invoice_id must be a positive integer"},
}

// statusRule maps any of its sentinels to a status and error type.
type statusRule struct {
	errs    []error
	status  int
	typ     string
	message string
}

var statusRules = []statusRule{
	{
		errs:    []error{ErrNotFound, invoicedomain.ErrNotFound, ledgerdomain.ErrNotFound, gorm.ErrRecordNotFound},
		status:  http.StatusNotFound,
		typ:     "not_found",
		message: "not found",
	},
	{
		errs:    []error{invoicedomain.ErrPackageUnavailable},
		status:  http.StatusConflict,
		typ:     "package_unavailable",
		message: "package no longer available",
	},
	{
		errs:    []error{ErrRateLimited},
		status:  http.StatusTooManyRequests,
		typ:     "rate_limited",
		message: "too many requests",
	},
	{
		errs:    []error{ErrServiceUnavailable},
		status:  http.StatusServiceUnavailable,
		typ:     "service_unavailable",
		message: "service unavailable",
	},
}

// ErrorHandlingMiddleware renders the last handler error as the JSON envelope
// unless the handler already wrote a response.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{{Field: field, Code: code, Message: message}},
	}
}

func mapError(err error) (int, errorPayload) {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, validationPayload(vErr.Errors...)
	}

	for _, rule := range validationRules {
		if errors.Is(err, rule.err) {
			return http.StatusBadRequest, validationPayload(ValidationError{
				Field:   rule.field,
				Code:    rule.code,
				Message: rule.message,
			})
		}
	}

	for _, rule := range statusRules {
		for _, target := range rule.errs {
			if errors.Is(err, target) {
				return rule.status, errorPayload{Type: rule.typ, Message: rule.message}
			}
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

func validationPayload(entries ...ValidationError) errorPayload {
	return errorPayload{
		Type:    "validation_error",
		Message: "validation error",
		Errors:  entries,
	}
}

// classifyErrorForLog feeds the request logger the same type the client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}
