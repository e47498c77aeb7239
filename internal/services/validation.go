package services

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/clearledger/backend/internal/schema"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string              `json:"error"`             // Error message
	Details map[string]string   `json:"details,omitempty"` // Request-shape validation details
	Fields  []schema.FieldError `json:"fields,omitempty"`  // Field-level validation failures
}

// ValidationHelper provides shared request-shape validation functionality.
// Domain rules with exact message contracts live in the schema package; this
// helper only gates malformed request structures before they reach it.
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	if validationErr != nil {
		errorResp.Details = make(map[string]string)
		for _, err := range validationErr.(validator.ValidationErrors) {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

// SendFieldErrors sends a 400 carrying every violated rule. Multi-rule
// fields (password) surface all their messages at once.
func SendFieldErrors(w http.ResponseWriter, message string, fieldErrs schema.FieldErrors) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:  message,
		Fields: fieldErrs,
	})
}
