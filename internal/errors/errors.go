package errors

import "fmt"

// ErrorCode represents a Grimoire error code.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"      // 400
	ErrSessionNotFound     ErrorCode = "SESSION_NOT_FOUND"    // 404
	ErrAnalyzerUnavailable ErrorCode = "ANALYZER_UNAVAILABLE" // 503
	ErrAnalyzerTimeout     ErrorCode = "ANALYZER_TIMEOUT"     // 504
	ErrAnalyzerFailed      ErrorCode = "ANALYZER_FAILED"      // 502
	ErrVaultWriteFailed    ErrorCode = "VAULT_WRITE_FAILED"   // 500
	ErrInternal            ErrorCode = "INTERNAL"             // 500
)

// GrimoireError represents a structured error with code, status, and details.
type GrimoireError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *GrimoireError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *GrimoireError {
	return &GrimoireError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewSessionNotFound creates a 404 error for an unknown session.
func NewSessionNotFound(sessionID string) *GrimoireError {
	return &GrimoireError{
		Code:    ErrSessionNotFound,
		Status:  404,
		Message: fmt.Sprintf("session not found: %s", sessionID),
		Details: map[string]any{"session_id": sessionID},
	}
}

// NewAnalyzerUnavailable creates a 503 error for a missing analyzer binary.
func NewAnalyzerUnavailable(command string) *GrimoireError {
	return &GrimoireError{
		Code:    ErrAnalyzerUnavailable,
		Status:  503,
		Message: fmt.Sprintf("analyzer command not found: %s", command),
		Details: map[string]any{"command": command},
	}
}

// NewAnalyzerTimeout creates a 504 error for an analyzer call that ran out of time.
func NewAnalyzerTimeout(timeoutSecs int) *GrimoireError {
	return &GrimoireError{
		Code:    ErrAnalyzerTimeout,
		Status:  504,
		Message: fmt.Sprintf("analyzer call timed out after %ds", timeoutSecs),
		Details: map[string]any{"timeout_secs": timeoutSecs},
	}
}

// NewAnalyzerFailed creates a 502 error for a non-zero analyzer exit.
func NewAnalyzerFailed(exitStatus int, diagnostics string) *GrimoireError {
	return &GrimoireError{
		Code:    ErrAnalyzerFailed,
		Status:  502,
		Message: fmt.Sprintf("analyzer exited with status %d", exitStatus),
		Details: map[string]any{"exit_status": exitStatus, "diagnostics": diagnostics},
	}
}

// NewVaultWriteFailed creates a 500 error for a failed vault document write.
func NewVaultWriteFailed(path string, err error) *GrimoireError {
	return &GrimoireError{
		Code:    ErrVaultWriteFailed,
		Status:  500,
		Message: fmt.Sprintf("vault write failed for %s: %v", path, err),
		Details: map[string]any{"path": path},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *GrimoireError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &GrimoireError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a GrimoireError with the given code.
func Is(err error, code ErrorCode) bool {
	if gErr, ok := err.(*GrimoireError); ok {
		return gErr.Code == code
	}
	return false
}
