package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Availability errors (retryable)
const (
	// ErrCodeServiceUnavailable indicates the worker cannot accept more work right now.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// Request errors
const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
)

// Transcription request validation errors.
const (
	// ErrCodeInvalidEngine indicates the engine is not one of the supported backends.
	ErrCodeInvalidEngine ErrorCode = "INVALID_ENGINE"
	// ErrCodeMissingModel indicates no model name was supplied or defaulted.
	ErrCodeMissingModel ErrorCode = "MISSING_MODEL"
	// ErrCodeMissingAudio indicates neither blob nor url was supplied.
	ErrCodeMissingAudio ErrorCode = "MISSING_AUDIO"
)

// Inference errors
const (
	// ErrCodeModelLoad indicates the model loader failed.
	ErrCodeModelLoad ErrorCode = "MODEL_LOAD_FAILED"
	// ErrCodeTranscription indicates the model failed at the call or mid-stream.
	ErrCodeTranscription ErrorCode = "TRANSCRIPTION_FAILED"
)

// Internal errors
const (
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeTimeout:            true,
	ErrCodeExternalService:    true,
	ErrCodeModelLoad:          true,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
