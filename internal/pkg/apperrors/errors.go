package apperrors

import "errors"

// Common errors
var (
	// Resource errors
	ErrResourceNotFound = errors.New("resource not found")
	ErrStudentNotFound  = errors.New("student not found")
	ErrConflict         = errors.New("conflict")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrUnauthorized       = errors.New("authentication required")

	// Authorization errors
	ErrPermissionDenied = errors.New("permission denied")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")

	// Storage errors
	ErrDatabase    = errors.New("database operation failed")
	ErrUnsafePath  = errors.New("unsafe attachment path")
	ErrGone        = errors.New("endpoint no longer available")
	ErrConfigError = errors.New("server configuration error")
)

// CustomError carries an underlying sentinel plus request-specific context.
type CustomError struct {
	Err     error
	Message string
	// Fields maps field names to per-field validation messages.
	Fields map[string]string
}

// Error implements the error interface.
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap.
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a validation error with field-level messages.
func NewValidationError(message string, fields map[string]string) error {
	return &CustomError{
		Err:     ErrValidationFailed,
		Message: message,
		Fields:  fields,
	}
}

// NewNotFoundError creates a not-found error with a message.
func NewNotFoundError(message string) error {
	return &CustomError{
		Err:     ErrResourceNotFound,
		Message: message,
	}
}

// NewForbiddenError creates a permission-denied error with a message.
func NewForbiddenError(message string) error {
	return &CustomError{
		Err:     ErrPermissionDenied,
		Message: message,
	}
}

// NewBadRequestError creates a bad-request error with a message.
func NewBadRequestError(message string) error {
	return &CustomError{
		Err:     ErrBadRequest,
		Message: message,
	}
}

// NewDatabaseError wraps a SQL failure so the boundary maps it to a 500
// without leaking driver detail to the client.
func NewDatabaseError(err error) error {
	return &CustomError{
		Err:     ErrDatabase,
		Message: "database operation failed: " + err.Error(),
	}
}

// FieldErrors extracts the field->message map from a validation error, nil
// when err carries none.
func FieldErrors(err error) map[string]string {
	var custom *CustomError
	if errors.As(err, &custom) {
		return custom.Fields
	}
	return nil
}
