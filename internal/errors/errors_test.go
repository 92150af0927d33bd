package errors

import (
	"fmt"
	"testing"
)

func TestGrimoireError_Error(t *testing.T) {
	err := &GrimoireError{
		Code:    ErrSessionNotFound,
		Status:  404,
		Message: "session not found",
	}

	expected := "SESSION_NOT_FOUND: session not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("content is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "content is required" {
		t.Errorf("Message = %q, want %q", err.Message, "content is required")
	}
}

func TestNewSessionNotFound(t *testing.T) {
	err := NewSessionNotFound("01ARZ3NDEK")

	if err.Code != ErrSessionNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrSessionNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["session_id"] != "01ARZ3NDEK" {
		t.Errorf("Details[session_id] = %v, want %q", err.Details["session_id"], "01ARZ3NDEK")
	}
}

func TestNewAnalyzerUnavailable(t *testing.T) {
	err := NewAnalyzerUnavailable("claude")

	if err.Code != ErrAnalyzerUnavailable {
		t.Errorf("Code = %q, want %q", err.Code, ErrAnalyzerUnavailable)
	}
	if err.Status != 503 {
		t.Errorf("Status = %d, want 503", err.Status)
	}
	if err.Details["command"] != "claude" {
		t.Errorf("Details[command] = %v, want %q", err.Details["command"], "claude")
	}
}

func TestNewAnalyzerTimeout(t *testing.T) {
	err := NewAnalyzerTimeout(120)

	if err.Code != ErrAnalyzerTimeout {
		t.Errorf("Code = %q, want %q", err.Code, ErrAnalyzerTimeout)
	}
	if err.Details["timeout_secs"] != 120 {
		t.Errorf("Details[timeout_secs] = %v, want 120", err.Details["timeout_secs"])
	}
}

func TestNewAnalyzerFailed(t *testing.T) {
	err := NewAnalyzerFailed(2, "rate limited")

	if err.Code != ErrAnalyzerFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrAnalyzerFailed)
	}
	if err.Details["exit_status"] != 2 {
		t.Errorf("Details[exit_status] = %v, want 2", err.Details["exit_status"])
	}
	if err.Details["diagnostics"] != "rate limited" {
		t.Errorf("Details[diagnostics] = %v, want %q", err.Details["diagnostics"], "rate limited")
	}
}

func TestNewVaultWriteFailed(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := NewVaultWriteFailed("entities/order/INDEX.md", cause)

	if err.Code != ErrVaultWriteFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrVaultWriteFailed)
	}
	if err.Details["path"] != "entities/order/INDEX.md" {
		t.Errorf("Details[path] = %v, want %q", err.Details["path"], "entities/order/INDEX.md")
	}
}

func TestNewInternal(t *testing.T) {
	err := NewInternal(fmt.Errorf("boom"))

	if err.Code != ErrInternal {
		t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
	}
	if err.Message != "boom" {
		t.Errorf("Message = %q, want %q", err.Message, "boom")
	}

	nilErr := NewInternal(nil)
	if nilErr.Message != "internal error" {
		t.Errorf("Message = %q, want %q", nilErr.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	err := NewSessionNotFound("x")

	if !Is(err, ErrSessionNotFound) {
		t.Error("Is() should match the session-not-found code")
	}
	if Is(err, ErrInternal) {
		t.Error("Is() should not match a different code")
	}
	if Is(fmt.Errorf("plain"), ErrInternal) {
		t.Error("Is() should not match a plain error")
	}
}
