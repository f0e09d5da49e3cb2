package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Message keys resolved through the i18n catalogs.
const (
	MessageKeyGeneric    = "error.generic"
	MessageKeyValidation = "error.validation"
	MessageKeyStorage    = "error.storage"
	MessageKeyLedger     = "error.ledger"
	MessageKeyState      = "error.state"
)

type AppError struct {
	Code       string
	Message    string
	MessageKey string
	Severity   Severity
	Retryable  bool
	cause      error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:       "E100",
		Message:    msg,
		MessageKey: MessageKeyValidation,
		Severity:   SeverityLow,
		Retryable:  false,
	}
}

// NewStorageError wraps a failure of the conversation state backend.
func NewStorageError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:       "E200",
		Message:    fmt.Sprintf("State storage error: %s", underlyingMsg),
		MessageKey: MessageKeyStorage,
		Severity:   SeverityHigh,
		Retryable:  true,
		cause:      cause,
	}
}

func NewExternalAPIError(apiName string, cause error) *AppError {
	return &AppError{
		Code:       "E300",
		Message:    fmt.Sprintf("External API error: %s", apiName),
		MessageKey: MessageKeyLedger,
		Severity:   SeverityMedium,
		Retryable:  true,
		cause:      cause,
	}
}

func NewStateError(msg string) *AppError {
	return &AppError{
		Code:       "E400",
		Message:    msg,
		MessageKey: MessageKeyState,
		Severity:   SeverityMedium,
		Retryable:  false,
	}
}
